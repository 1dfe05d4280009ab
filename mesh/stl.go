package mesh

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// STLLoader loads STL (stereolithography) files in both ASCII and binary
// formats. Duplicate positions across facets are merged during parsing so
// faces come out sharing vertex indices.
type STLLoader struct {
	// MergeTolerance controls the vertex merge; see DefaultMergeTolerance.
	MergeTolerance float32
}

// NewSTLLoader creates an STL loader with default settings.
func NewSTLLoader() *STLLoader {
	return &STLLoader{MergeTolerance: DefaultMergeTolerance}
}

// LoadFile loads an STL file from disk.
func (l *STLLoader) LoadFile(path string) (*Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read STL file: %w", err)
	}
	return l.LoadBytes(data, path)
}

// Load parses STL from a reader. The content is read fully to detect the
// format.
func (l *STLLoader) Load(r io.Reader, name string) (*Mesh, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read STL data: %w", err)
	}
	return l.LoadBytes(data, name)
}

// LoadBytes parses STL from a byte slice.
func (l *STLLoader) LoadBytes(data []byte, name string) (*Mesh, error) {
	if isBinarySTL(data) {
		return l.loadBinary(data, name)
	}
	return l.loadASCII(data, name)
}

// isBinarySTL detects binary STL: an 80-byte header plus a 4-byte
// little-endian triangle count. ASCII starts with "solid", but a binary
// header may too, so the declared size is checked against the file size.
func isBinarySTL(data []byte) bool {
	if len(data) < 84 {
		return false
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("solid")) {
		triCount := binary.LittleEndian.Uint32(data[80:84])
		return uint32(len(data)) == 84+triCount*50
	}
	return true
}

// stlDedup merges identical facet corners into shared vertex indices.
type stlDedup struct {
	mesh      *Mesh
	tolerance float32
	index     map[mergeKey]int32
}

func (d *stlDedup) vertex(p mgl32.Vec3) int32 {
	key := positionKey(p, d.tolerance)
	if idx, ok := d.index[key]; ok {
		return idx
	}
	idx := d.mesh.AddVertex(p)
	d.index[key] = idx
	return idx
}

func (l *STLLoader) loadBinary(data []byte, name string) (*Mesh, error) {
	if len(data) < 84 {
		return nil, fmt.Errorf("binary STL too short: %d bytes", len(data))
	}
	triCount := binary.LittleEndian.Uint32(data[80:84])
	expected := 84 + triCount*50
	if uint32(len(data)) < expected {
		return nil, fmt.Errorf("binary STL truncated: expected %d bytes, got %d", expected, len(data))
	}

	m := New(name)
	dedup := &stlDedup{mesh: m, tolerance: l.MergeTolerance, index: make(map[mergeKey]int32)}

	offset := 84
	for range triCount {
		normal := mgl32.Vec3{
			readFloat32LE(data[offset:]),
			readFloat32LE(data[offset+4:]),
			readFloat32LE(data[offset+8:]),
		}
		offset += 12

		var vi [3]int32
		for v := range 3 {
			p := mgl32.Vec3{
				readFloat32LE(data[offset:]),
				readFloat32LE(data[offset+4:]),
				readFloat32LE(data[offset+8:]),
			}
			offset += 12
			vi[v] = dedup.vertex(p)
		}
		offset += 2 // attribute byte count

		fi := m.AddFace(vi[0], vi[1], vi[2])
		if normal.Len() > 0 {
			m.Faces[fi].N = normal
		}
	}
	return m, nil
}

func readFloat32LE(data []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(data))
}

func (l *STLLoader) loadASCII(data []byte, name string) (*Mesh, error) {
	m := New(name)
	dedup := &stlDedup{mesh: m, tolerance: l.MergeTolerance, index: make(map[mergeKey]int32)}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0

	var currentNormal mgl32.Vec3
	var faceVerts []int32
	inFacet := false
	inLoop := false

	for scanner.Scan() {
		lineNum++
		fields := strings.Fields(strings.TrimSpace(scanner.Text()))
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "solid":
			if len(fields) > 1 {
				m.Name = fields[1]
			}

		case "facet":
			if len(fields) >= 5 && strings.ToLower(fields[1]) == "normal" {
				n, err := parseVec3(fields[2:5], lineNum, "normal")
				if err != nil {
					return nil, err
				}
				currentNormal = n
			}
			inFacet = true
			faceVerts = faceVerts[:0]

		case "outer":
			if len(fields) >= 2 && strings.ToLower(fields[1]) == "loop" {
				inLoop = true
			}

		case "vertex":
			if !inFacet || !inLoop {
				return nil, fmt.Errorf("line %d: vertex outside facet/loop", lineNum)
			}
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: vertex needs x y z", lineNum)
			}
			p, err := parseVec3(fields[1:4], lineNum, "vertex")
			if err != nil {
				return nil, err
			}
			faceVerts = append(faceVerts, dedup.vertex(p))

		case "endloop":
			inLoop = false

		case "endfacet":
			if len(faceVerts) >= 3 {
				fi := m.AddFace(faceVerts[0], faceVerts[1], faceVerts[2])
				if currentNormal.Len() > 0 {
					m.Faces[fi].N = currentNormal
				}
			}
			inFacet = false
			faceVerts = faceVerts[:0]

		case "endsolid":
			// done

		default:
			// ignore unknown tokens
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading ASCII STL: %w", err)
	}
	return m, nil
}

func parseVec3(fields []string, lineNum int, what string) (mgl32.Vec3, error) {
	var v mgl32.Vec3
	for i, field := range fields[:3] {
		f, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return v, fmt.Errorf("line %d: invalid %s component: %w", lineNum, what, err)
		}
		v[i] = float32(f)
	}
	return v, nil
}

// STLWriter exports a mesh as STL. Binary is the default; ASCII is opt-in.
type STLWriter struct {
	ASCII bool
}

// SaveFile writes the mesh to path.
func (w *STLWriter) SaveFile(m *Mesh, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create STL file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return w.Save(m, f)
}

// Save writes the mesh to wr. Deleted elements are skipped and surviving
// faces reference the live geometry only.
func (w *STLWriter) Save(m *Mesh, wr io.Writer) error {
	if w.ASCII {
		return w.saveASCII(m, wr)
	}
	return w.saveBinary(m, wr)
}

func (w *STLWriter) saveBinary(m *Mesh, wr io.Writer) error {
	bw := bufio.NewWriter(wr)
	header := make([]byte, 80)
	copy(header, "meshcheck binary STL export")
	if _, err := bw.Write(header); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(m.FaceCount())); err != nil {
		return err
	}
	var buf [50]byte
	for i := range m.Faces {
		f := &m.Faces[i]
		if f.Deleted() {
			continue
		}
		n := m.faceNormal(f)
		putVec3(buf[0:], n)
		putVec3(buf[12:], m.Verts[f.V[0]].P)
		putVec3(buf[24:], m.Verts[f.V[1]].P)
		putVec3(buf[36:], m.Verts[f.V[2]].P)
		buf[48], buf[49] = 0, 0
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func putVec3(dst []byte, v mgl32.Vec3) {
	binary.LittleEndian.PutUint32(dst[0:], math.Float32bits(v.X()))
	binary.LittleEndian.PutUint32(dst[4:], math.Float32bits(v.Y()))
	binary.LittleEndian.PutUint32(dst[8:], math.Float32bits(v.Z()))
}

func (w *STLWriter) saveASCII(m *Mesh, wr io.Writer) error {
	bw := bufio.NewWriter(wr)
	name := m.Name
	if name == "" {
		name = "mesh"
	}
	fmt.Fprintf(bw, "solid %s\n", name)
	for i := range m.Faces {
		f := &m.Faces[i]
		if f.Deleted() {
			continue
		}
		n := m.faceNormal(f)
		fmt.Fprintf(bw, "  facet normal %g %g %g\n", n.X(), n.Y(), n.Z())
		fmt.Fprintf(bw, "    outer loop\n")
		for k := 0; k < 3; k++ {
			p := m.Verts[f.V[k]].P
			fmt.Fprintf(bw, "      vertex %g %g %g\n", p.X(), p.Y(), p.Z())
		}
		fmt.Fprintf(bw, "    endloop\n")
		fmt.Fprintf(bw, "  endfacet\n")
	}
	fmt.Fprintf(bw, "endsolid %s\n", name)
	return bw.Flush()
}

// LoadSTL loads an STL file with default settings.
func LoadSTL(path string) (*Mesh, error) {
	return NewSTLLoader().LoadFile(path)
}
