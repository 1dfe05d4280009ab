package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"fortio.org/log"
	"github.com/go-gl/mathgl/mgl32"
)

// OBJLoader loads Wavefront OBJ files, geometry only: v and f directives.
// Texture coordinates, normals and material statements are skipped;
// directives the loader does not recognise at all are logged and counted
// as non-critical errors, and the load continues.
type OBJLoader struct {
	// NonCriticalErrors counts tolerated oddities of the last load.
	NonCriticalErrors int
}

// NewOBJLoader creates an OBJ loader.
func NewOBJLoader() *OBJLoader {
	return &OBJLoader{}
}

// LoadFile loads an OBJ file from disk.
func (l *OBJLoader) LoadFile(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open OBJ file: %w", err)
	}
	defer f.Close()
	return l.Load(f, path)
}

// Load parses an OBJ from a reader.
func (l *OBJLoader) Load(r io.Reader, name string) (*Mesh, error) {
	m := New(name)
	l.NonCriticalErrors = 0

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: invalid vertex (need x y z)", lineNum)
			}
			p, err := parseVec3(fields[1:4], lineNum, "vertex")
			if err != nil {
				return nil, err
			}
			m.AddVertex(p)

		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: face needs at least 3 indices", lineNum)
			}
			idx := make([]int32, 0, len(fields)-1)
			for _, field := range fields[1:] {
				vi, err := parseOBJIndex(field, len(m.Verts))
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNum, err)
				}
				idx = append(idx, vi)
			}
			// polygons are fan-triangulated
			for i := 1; i+1 < len(idx); i++ {
				m.AddFace(idx[0], idx[i], idx[i+1])
			}

		case "vn", "vt", "vp", "g", "o", "s", "mtllib", "usemtl", "l", "p":
			// geometry-irrelevant, skipped silently

		default:
			log.Warnf("OBJ %s line %d: unrecognised directive %q", name, lineNum, fields[0])
			l.NonCriticalErrors++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading OBJ: %w", err)
	}
	return m, nil
}

// parseOBJIndex resolves one face corner. OBJ indices are 1-based;
// negative values count back from the current end of the vertex list.
// Slash-separated texture/normal references are ignored.
func parseOBJIndex(field string, numVerts int) (int32, error) {
	if slash := strings.IndexByte(field, '/'); slash >= 0 {
		field = field[:slash]
	}
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("invalid face index %q: %w", field, err)
	}
	switch {
	case n > 0 && n <= numVerts:
		return int32(n - 1), nil
	case n < 0 && -n <= numVerts:
		return int32(numVerts + n), nil
	default:
		return 0, fmt.Errorf("face index %d out of range (have %d vertices)", n, numVerts)
	}
}

// OBJWriter exports geometry-only OBJ.
type OBJWriter struct{}

// SaveFile writes the mesh to path.
func (w *OBJWriter) SaveFile(m *Mesh, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create OBJ file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return w.Save(m, f)
}

// Save writes v and f lines for the live elements.
func (w *OBJWriter) Save(m *Mesh, wr io.Writer) error {
	bw := bufio.NewWriter(wr)
	fmt.Fprintf(bw, "# exported by meshcheck\n")
	remap := liveVertexRemap(m, func(p mgl32.Vec3) {
		fmt.Fprintf(bw, "v %g %g %g\n", p.X(), p.Y(), p.Z())
	})
	for i := range m.Faces {
		f := &m.Faces[i]
		if f.Deleted() {
			continue
		}
		fmt.Fprintf(bw, "f %d %d %d\n",
			remap[f.V[0]]+1, remap[f.V[1]]+1, remap[f.V[2]]+1)
	}
	return bw.Flush()
}

// liveVertexRemap visits live vertices in order and returns old-index to
// export-index mapping for face rewriting.
func liveVertexRemap(m *Mesh, emit func(p mgl32.Vec3)) []int32 {
	remap := make([]int32, len(m.Verts))
	next := int32(0)
	for i := range m.Verts {
		v := &m.Verts[i]
		if v.Deleted() {
			remap[i] = -1
			continue
		}
		remap[i] = next
		next++
		emit(v.P)
	}
	return remap
}

// LoadOBJ loads an OBJ file with default settings.
func LoadOBJ(path string) (*Mesh, error) {
	return NewOBJLoader().LoadFile(path)
}
