package mesh

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckPerfectCube(t *testing.T) {
	m := buildCube()
	r := m.Check(CheckOptions{})

	assert.Equal(t, CheckVersion, r.Version)
	assert.Equal(t, 12, r.NumFaces)
	assert.Equal(t, 8, r.NumVertices)
	assert.Zero(t, r.DegenerateFacesRemoved)
	assert.Zero(t, r.DuplicateFacesRemoved)
	assert.True(t, r.IsWatertight)
	assert.True(t, r.IsCoherentlyOriented)
	assert.True(t, r.IsPositiveVolume)
	assert.Zero(t, r.IntersectingFaces)
	assert.Equal(t, 1, r.Shells)
	assert.Zero(t, r.NonManifoldEdges)
	assert.Zero(t, r.Holes)
	assert.True(t, r.IsGoodMesh)

	assert.Equal(t, float32(-1), r.MinX)
	assert.Equal(t, float32(1), r.MaxX)
	assert.Equal(t, float32(-1), r.MinY)
	assert.Equal(t, float32(1), r.MaxY)
	assert.Equal(t, float32(-1), r.MinZ)
	assert.Equal(t, float32(1), r.MaxZ)
	assert.InDelta(t, 24, r.Area, 1e-9)
	assert.InDelta(t, 8, r.Volume, 1e-9)
}

func TestCheckTwoDisjointCubes(t *testing.T) {
	m := buildCube()
	addCube(m, mgl32.Vec3{5, 0, 0})
	r := m.Check(CheckOptions{})

	assert.Equal(t, 2, r.Shells)
	assert.Equal(t, 24, r.NumFaces)
	assert.Equal(t, 16, r.NumVertices)
	assert.True(t, r.IsGoodMesh)
	assert.InDelta(t, 48, r.Area, 1e-9)
	assert.InDelta(t, 16, r.Volume, 1e-9)
}

func TestCheckHoledCube(t *testing.T) {
	m := buildCubeWithHole()
	r := m.Check(CheckOptions{})

	assert.False(t, r.IsWatertight)
	assert.Equal(t, 1, r.Holes)
	assert.False(t, r.IsGoodMesh)
}

func TestCheckNonManifold(t *testing.T) {
	m := buildCubeWithFin()
	r := m.Check(CheckOptions{})

	assert.GreaterOrEqual(t, r.NonManifoldEdges, 1)
	assert.Equal(t, -1, r.Holes, "hole count is undefined with non-manifold edges")
	assert.False(t, r.IsGoodMesh)
}

func TestCheckInvertedCube(t *testing.T) {
	m := buildCube()
	m.FlipMesh()
	r := m.Check(CheckOptions{})

	assert.True(t, r.IsWatertight)
	assert.True(t, r.IsCoherentlyOriented)
	assert.False(t, r.IsPositiveVolume)
	assert.False(t, r.IsGoodMesh)
	assert.InDelta(t, -8, r.Volume, 1e-9)
}

func TestCheckCountsCleanups(t *testing.T) {
	m := buildCube()
	m.AddFace(0, 2, 3) // duplicate of face 0 (reversed winding)
	m.AddFace(1, 1, 2) // degenerate

	r := m.Check(CheckOptions{})
	assert.Equal(t, 1, r.DuplicateFacesRemoved)
	assert.Equal(t, 1, r.DegenerateFacesRemoved)
	assert.Equal(t, 12, r.NumFaces, "the cube survives intact")
}

func TestReportKeys(t *testing.T) {
	m := buildCube()
	r := m.Check(CheckOptions{})
	rep := r.Report()

	require.Equal(t, CheckVersion, rep["num_version"])
	require.Equal(t, 12, rep["num_face"])
	require.Equal(t, 8, rep["num_vertices"])
	require.Equal(t, true, rep["is_good_mesh"])
	require.Equal(t, 0, rep["num_holes"])
	require.Len(t, rep, 21)
}
