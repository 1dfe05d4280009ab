package mesh

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCubeMetrics(t *testing.T) {
	m := buildCube()
	require.Equal(t, 8, m.VertexCount())
	require.Equal(t, 12, m.FaceCount())

	assert.InDelta(t, 24, m.SurfaceArea(), 1e-9)
	assert.InDelta(t, 8, m.SignedVolume(), 1e-9)

	min, max, ok := m.BoundingBox()
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{-1, -1, -1}, min)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, max)
}

func TestFlipNegatesVolume(t *testing.T) {
	m := buildCube()
	before := m.SignedVolume()
	m.FlipMesh()
	assert.Equal(t, -before, m.SignedVolume(), "flip must negate the volume exactly")
	m.FlipMesh()
	assert.Equal(t, before, m.SignedVolume())
}

func TestEmptyMesh(t *testing.T) {
	m := New("empty")
	assert.Zero(t, m.SurfaceArea())
	assert.Zero(t, m.SignedVolume())
	_, _, ok := m.BoundingBox()
	assert.False(t, ok)

	r := m.Check(CheckOptions{})
	assert.False(t, r.IsGoodMesh, "an empty mesh is never good")
	assert.Zero(t, r.NumFaces)
	assert.Zero(t, r.NumVertices)
	assert.Zero(t, r.Shells)
	assert.Zero(t, r.Area)
	assert.Zero(t, r.Volume)
}

func TestDeleteAndCompact(t *testing.T) {
	m := buildCube()
	m.DeleteFace(0)
	m.DeleteFace(1)
	assert.Equal(t, 10, m.FaceCount())
	assert.Len(t, m.Faces, 12, "deletion is by flag")

	m.Compact()
	assert.Len(t, m.Faces, 10)
	assert.Equal(t, 10, m.FaceCount())
	for i := range m.Faces {
		f := &m.Faces[i]
		for k := 0; k < 3; k++ {
			assert.Less(t, int(f.V[k]), len(m.Verts))
			assert.False(t, m.Verts[f.V[k]].Deleted())
		}
	}
}

func TestRemoveUnreferencedVertices(t *testing.T) {
	m := buildTriangle()
	m.AddVertex(mgl32.Vec3{5, 5, 5})
	removed := m.RemoveUnreferencedVertices()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 3, m.VertexCount())
}

func TestCloneIsIndependent(t *testing.T) {
	m := buildCube()
	c := m.Clone()
	c.DeleteFace(0)
	c.Verts[0].P = mgl32.Vec3{9, 9, 9}
	assert.Equal(t, 12, m.FaceCount())
	assert.Equal(t, mgl32.Vec3{-1, -1, -1}, m.Verts[0].P)
}

func TestCalculateVertexNormals(t *testing.T) {
	m := buildCube()
	m.CalculateVertexNormals()
	for i := range m.Verts {
		n := m.Verts[i].N
		assert.InDelta(t, 1, float64(n.Len()), 1e-6, "vertex %d normal is unit", i)
		// corner normals point away from the center
		assert.Positive(t, n.Dot(m.Verts[i].P), "vertex %d normal points outward", i)
	}
}

func TestMarkEpochAdvances(t *testing.T) {
	m := buildCube()
	m.BuildFaceTopology()
	require.True(t, m.TopologyCurrent())

	mark := m.Mark()
	m.AddVertex(mgl32.Vec3{2, 2, 2})
	assert.Greater(t, m.Mark(), mark, "structural edits bump the epoch")
	assert.False(t, m.TopologyCurrent(), "topology is stale after an edit")
}
