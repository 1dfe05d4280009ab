package mesh

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"fortio.org/log"
	"github.com/go-gl/mathgl/mgl32"
)

// PLYLoader loads PLY meshes, ASCII or binary-little-endian, geometry
// only: the vertex element's x/y/z floats and the face element's vertex
// index lists. Other elements and properties are skipped. Quad faces are
// split along their shortest diagonal; larger polygons are fanned.
type PLYLoader struct {
	NonCriticalErrors int
}

// NewPLYLoader creates a PLY loader.
func NewPLYLoader() *PLYLoader {
	return &PLYLoader{}
}

type plyFormat int

const (
	plyASCII plyFormat = iota
	plyBinaryLE
)

type plyProperty struct {
	name      string
	typ       string
	isList    bool
	countType string
	itemType  string
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

var plyTypeSize = map[string]int{
	"char": 1, "int8": 1, "uchar": 1, "uint8": 1,
	"short": 2, "int16": 2, "ushort": 2, "uint16": 2,
	"int": 4, "int32": 4, "uint": 4, "uint32": 4,
	"float": 4, "float32": 4, "double": 8, "float64": 8,
}

// LoadFile loads a PLY file from disk.
func (l *PLYLoader) LoadFile(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PLY file: %w", err)
	}
	defer f.Close()
	return l.Load(f, path)
}

// Load parses a PLY stream.
func (l *PLYLoader) Load(r io.Reader, name string) (*Mesh, error) {
	l.NonCriticalErrors = 0
	br := bufio.NewReader(r)

	format, elements, err := parsePLYHeader(br)
	if err != nil {
		return nil, err
	}

	m := New(name)
	for _, elem := range elements {
		switch elem.name {
		case "vertex":
			err = l.readVertices(br, m, elem, format)
		case "face":
			err = l.readFaces(br, m, elem, format)
		default:
			err = l.skipElement(br, elem, format)
		}
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

func parsePLYHeader(br *bufio.Reader) (plyFormat, []plyElement, error) {
	line, err := readHeaderLine(br)
	if err != nil {
		return 0, nil, err
	}
	if line != "ply" {
		return 0, nil, fmt.Errorf("not a PLY file: missing magic")
	}

	format := plyASCII
	haveFormat := false
	var elements []plyElement
	for {
		line, err := readHeaderLine(br)
		if err != nil {
			return 0, nil, fmt.Errorf("unterminated PLY header: %w", err)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "comment", "obj_info":
			// skip
		case "format":
			if len(fields) < 2 {
				return 0, nil, fmt.Errorf("malformed format line %q", line)
			}
			switch fields[1] {
			case "ascii":
				format = plyASCII
			case "binary_little_endian":
				format = plyBinaryLE
			default:
				return 0, nil, fmt.Errorf("unsupported PLY format %q", fields[1])
			}
			haveFormat = true
		case "element":
			if len(fields) < 3 {
				return 0, nil, fmt.Errorf("malformed element line %q", line)
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return 0, nil, fmt.Errorf("bad element count in %q", line)
			}
			elements = append(elements, plyElement{name: fields[1], count: count})
		case "property":
			if len(elements) == 0 {
				return 0, nil, fmt.Errorf("property before any element: %q", line)
			}
			elem := &elements[len(elements)-1]
			if len(fields) >= 5 && fields[1] == "list" {
				elem.props = append(elem.props, plyProperty{
					name: fields[4], isList: true, countType: fields[2], itemType: fields[3],
				})
			} else if len(fields) >= 3 {
				elem.props = append(elem.props, plyProperty{name: fields[2], typ: fields[1]})
			} else {
				return 0, nil, fmt.Errorf("malformed property line %q", line)
			}
		case "end_header":
			if !haveFormat {
				return 0, nil, fmt.Errorf("PLY header has no format line")
			}
			return format, elements, nil
		default:
			return 0, nil, fmt.Errorf("unrecognised header line %q", line)
		}
	}
}

func readHeaderLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (l *PLYLoader) readVertices(br *bufio.Reader, m *Mesh, elem plyElement, format plyFormat) error {
	xi, yi, zi := -1, -1, -1
	for i, p := range elem.props {
		switch p.name {
		case "x":
			xi = i
		case "y":
			yi = i
		case "z":
			zi = i
		}
	}
	if xi < 0 || yi < 0 || zi < 0 {
		return fmt.Errorf("PLY vertex element lacks x/y/z properties")
	}
	for range elem.count {
		values, err := l.readRow(br, elem, format)
		if err != nil {
			return fmt.Errorf("reading PLY vertex: %w", err)
		}
		m.AddVertex(mgl32.Vec3{
			float32(values[xi].scalar),
			float32(values[yi].scalar),
			float32(values[zi].scalar),
		})
	}
	return nil
}

func (l *PLYLoader) readFaces(br *bufio.Reader, m *Mesh, elem plyElement, format plyFormat) error {
	listIdx := -1
	for i, p := range elem.props {
		if p.isList && (p.name == "vertex_indices" || p.name == "vertex_index") {
			listIdx = i
			break
		}
	}
	if listIdx < 0 {
		return fmt.Errorf("PLY face element lacks a vertex index list")
	}
	for range elem.count {
		values, err := l.readRow(br, elem, format)
		if err != nil {
			return fmt.Errorf("reading PLY face: %w", err)
		}
		idx := values[listIdx].list
		for _, vi := range idx {
			if vi < 0 || int(vi) >= len(m.Verts) {
				return fmt.Errorf("PLY face index %d out of range", vi)
			}
		}
		l.addPolygon(m, idx)
	}
	return nil
}

// addPolygon triangulates one PLY face: triangles pass through, quads are
// split along the shorter diagonal, and larger polygons are fanned with a
// non-critical warning.
func (l *PLYLoader) addPolygon(m *Mesh, idx []int32) {
	switch len(idx) {
	case 0, 1, 2:
		log.Warnf("PLY %s: skipping %d-gon face", m.Name, len(idx))
		l.NonCriticalErrors++
	case 3:
		m.AddFace(idx[0], idx[1], idx[2])
	case 4:
		a, b, c, d := idx[0], idx[1], idx[2], idx[3]
		if diag(m, a, c) <= diag(m, b, d) {
			m.AddFace(a, b, c)
			m.AddFace(a, c, d)
		} else {
			m.AddFace(a, b, d)
			m.AddFace(b, c, d)
		}
	default:
		log.Warnf("PLY %s: fan-triangulating a %d-gon face", m.Name, len(idx))
		l.NonCriticalErrors++
		for i := 1; i+1 < len(idx); i++ {
			m.AddFace(idx[0], idx[i], idx[i+1])
		}
	}
}

func diag(m *Mesh, a, b int32) float32 {
	return m.Verts[a].P.Sub(m.Verts[b].P).Len()
}

func (l *PLYLoader) skipElement(br *bufio.Reader, elem plyElement, format plyFormat) error {
	for range elem.count {
		if _, err := l.readRow(br, elem, format); err != nil {
			return fmt.Errorf("skipping PLY element %s: %w", elem.name, err)
		}
	}
	return nil
}

// plyValue is one decoded property: a scalar or an index list.
type plyValue struct {
	scalar float64
	list   []int32
}

func (l *PLYLoader) readRow(br *bufio.Reader, elem plyElement, format plyFormat) ([]plyValue, error) {
	if format == plyASCII {
		return readRowASCII(br, elem)
	}
	return readRowBinary(br, elem)
}

func readRowASCII(br *bufio.Reader, elem plyElement) ([]plyValue, error) {
	line, err := br.ReadString('\n')
	if err != nil && strings.TrimSpace(line) == "" {
		return nil, err
	}
	fields := strings.Fields(line)
	values := make([]plyValue, len(elem.props))
	pos := 0
	next := func() (float64, error) {
		if pos >= len(fields) {
			return 0, fmt.Errorf("short row for element %s", elem.name)
		}
		v, err := strconv.ParseFloat(fields[pos], 64)
		pos++
		return v, err
	}
	for i, p := range elem.props {
		if p.isList {
			count, err := next()
			if err != nil {
				return nil, err
			}
			list := make([]int32, int(count))
			for j := range list {
				v, err := next()
				if err != nil {
					return nil, err
				}
				list[j] = int32(v)
			}
			values[i] = plyValue{list: list}
			continue
		}
		v, err := next()
		if err != nil {
			return nil, err
		}
		values[i] = plyValue{scalar: v}
	}
	return values, nil
}

func readRowBinary(br *bufio.Reader, elem plyElement) ([]plyValue, error) {
	values := make([]plyValue, len(elem.props))
	for i, p := range elem.props {
		if p.isList {
			count, err := readBinaryScalar(br, p.countType)
			if err != nil {
				return nil, err
			}
			list := make([]int32, int(count))
			for j := range list {
				v, err := readBinaryScalar(br, p.itemType)
				if err != nil {
					return nil, err
				}
				list[j] = int32(v)
			}
			values[i] = plyValue{list: list}
			continue
		}
		v, err := readBinaryScalar(br, p.typ)
		if err != nil {
			return nil, err
		}
		values[i] = plyValue{scalar: v}
	}
	return values, nil
}

func readBinaryScalar(br *bufio.Reader, typ string) (float64, error) {
	size, ok := plyTypeSize[typ]
	if !ok {
		return 0, fmt.Errorf("unsupported PLY property type %q", typ)
	}
	var buf [8]byte
	if _, err := io.ReadFull(br, buf[:size]); err != nil {
		return 0, err
	}
	switch typ {
	case "char", "int8":
		return float64(int8(buf[0])), nil
	case "uchar", "uint8":
		return float64(buf[0]), nil
	case "short", "int16":
		return float64(int16(binary.LittleEndian.Uint16(buf[:2]))), nil
	case "ushort", "uint16":
		return float64(binary.LittleEndian.Uint16(buf[:2])), nil
	case "int", "int32":
		return float64(int32(binary.LittleEndian.Uint32(buf[:4]))), nil
	case "uint", "uint32":
		return float64(binary.LittleEndian.Uint32(buf[:4])), nil
	case "float", "float32":
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[:4]))), nil
	default: // double, float64
		return math.Float64frombits(binary.LittleEndian.Uint64(buf[:8])), nil
	}
}

// PLYWriter exports geometry-only PLY. Binary little-endian is the
// default; ASCII is opt-in.
type PLYWriter struct {
	ASCII bool
}

// SaveFile writes the mesh to path.
func (w *PLYWriter) SaveFile(m *Mesh, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create PLY file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return w.Save(m, f)
}

// Save writes the live geometry to wr.
func (w *PLYWriter) Save(m *Mesh, wr io.Writer) error {
	bw := bufio.NewWriter(wr)
	formatLine := "binary_little_endian"
	if w.ASCII {
		formatLine = "ascii"
	}
	fmt.Fprintf(bw, "ply\nformat %s 1.0\ncomment exported by meshcheck\n", formatLine)
	fmt.Fprintf(bw, "element vertex %d\n", m.VertexCount())
	fmt.Fprintf(bw, "property float x\nproperty float y\nproperty float z\n")
	fmt.Fprintf(bw, "element face %d\n", m.FaceCount())
	fmt.Fprintf(bw, "property list uchar int vertex_indices\n")
	fmt.Fprintf(bw, "end_header\n")

	if w.ASCII {
		remap := liveVertexRemap(m, func(p mgl32.Vec3) {
			fmt.Fprintf(bw, "%g %g %g\n", p.X(), p.Y(), p.Z())
		})
		for i := range m.Faces {
			f := &m.Faces[i]
			if f.Deleted() {
				continue
			}
			fmt.Fprintf(bw, "3 %d %d %d\n", remap[f.V[0]], remap[f.V[1]], remap[f.V[2]])
		}
		return bw.Flush()
	}

	var verr error
	remap := liveVertexRemap(m, func(p mgl32.Vec3) {
		var buf [12]byte
		putVec3(buf[:], p)
		if _, err := bw.Write(buf[:]); err != nil && verr == nil {
			verr = err
		}
	})
	if verr != nil {
		return verr
	}
	for i := range m.Faces {
		f := &m.Faces[i]
		if f.Deleted() {
			continue
		}
		var buf [13]byte
		buf[0] = 3
		binary.LittleEndian.PutUint32(buf[1:], uint32(remap[f.V[0]]))
		binary.LittleEndian.PutUint32(buf[5:], uint32(remap[f.V[1]]))
		binary.LittleEndian.PutUint32(buf[9:], uint32(remap[f.V[2]]))
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// LoadPLY loads a PLY file with default settings.
func LoadPLY(path string) (*Mesh, error) {
	return NewPLYLoader().LoadFile(path)
}
