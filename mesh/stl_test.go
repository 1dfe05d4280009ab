package mesh

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSTLLoaderASCII(t *testing.T) {
	asciiSTL := `solid cube
  facet normal 0 0 -1
    outer loop
      vertex 0 0 0
      vertex 1 0 0
      vertex 1 1 0
    endloop
  endfacet
  facet normal 0 0 -1
    outer loop
      vertex 0 0 0
      vertex 1 1 0
      vertex 0 1 0
    endloop
  endfacet
endsolid cube`

	loader := NewSTLLoader()
	mesh, err := loader.Load(bytes.NewReader([]byte(asciiSTL)), "test.stl")
	require.NoError(t, err)

	assert.Equal(t, "cube", mesh.Name)
	assert.Equal(t, 2, mesh.FaceCount())
	assert.Equal(t, 4, mesh.VertexCount(), "shared corners are deduplicated")
}

func TestSTLLoaderBinary(t *testing.T) {
	var buf bytes.Buffer
	header := make([]byte, 80)
	copy(header, "Binary STL test")
	buf.Write(header)
	binary.Write(&buf, binary.LittleEndian, uint32(1))
	// normal
	for _, v := range []float32{0, 0, 1} {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	// three vertices
	for _, v := range []float32{0, 0, 0, 1, 0, 0, 0, 1, 0} {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	binary.Write(&buf, binary.LittleEndian, uint16(0))

	mesh, err := NewSTLLoader().LoadBytes(buf.Bytes(), "test.stl")
	require.NoError(t, err)
	assert.Equal(t, 1, mesh.FaceCount())
	assert.Equal(t, 3, mesh.VertexCount())
	assert.Equal(t, float32(1), mesh.Faces[0].N.Z())
}

func TestSTLDetection(t *testing.T) {
	ascii := []byte("solid test\nfacet normal 0 0 1\n")
	assert.False(t, isBinarySTL(ascii))

	var buf bytes.Buffer
	buf.Write(make([]byte, 80))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	assert.True(t, isBinarySTL(buf.Bytes()))
}

func TestSTLBinaryRoundTrip(t *testing.T) {
	m := buildCube()
	var buf bytes.Buffer
	require.NoError(t, (&STLWriter{}).Save(m, &buf))
	require.Equal(t, 84+12*50, buf.Len())

	back, err := NewSTLLoader().LoadBytes(buf.Bytes(), "cube.stl")
	require.NoError(t, err)

	assert.Equal(t, 12, back.FaceCount())
	assert.Equal(t, 8, back.VertexCount(), "positions dedup back to shared vertices")

	min, max, ok := back.BoundingBox()
	require.True(t, ok)
	assert.Equal(t, m.Verts[0].P, min)
	assert.Equal(t, m.Verts[6].P, max)
	assert.InDelta(t, m.SignedVolume(), back.SignedVolume(), 1e-6)
	assert.InDelta(t, m.SurfaceArea(), back.SurfaceArea(), 1e-6)
}

func TestSTLASCIIRoundTrip(t *testing.T) {
	m := buildCube()
	var buf bytes.Buffer
	require.NoError(t, (&STLWriter{ASCII: true}).Save(m, &buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("solid ")))

	back, err := NewSTLLoader().LoadBytes(buf.Bytes(), "cube.stl")
	require.NoError(t, err)
	assert.Equal(t, 12, back.FaceCount())
	assert.Equal(t, 8, back.VertexCount())
	assert.InDelta(t, 8, back.SignedVolume(), 1e-6)
}

func TestSTLTruncatedBinary(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(make([]byte, 80))
	binary.Write(&buf, binary.LittleEndian, uint32(5)) // claims 5 triangles
	_, err := NewSTLLoader().LoadBytes(buf.Bytes(), "bad.stl")
	assert.Error(t, err)
}
