package mesh

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillCubeHole(t *testing.T) {
	m := buildCubeWithHole()
	m.BuildFaceTopology()
	require.False(t, m.IsWatertight())

	filled := m.FillHoles(HoleFillOptions{})
	assert.Equal(t, 1, filled)

	require.NoError(t, m.CheckFaceTopology())
	assert.True(t, m.IsWatertight())
	assert.True(t, m.IsCoherentlyOriented(), "fill triangles wind with the surface")
	assert.InDelta(t, 8, m.SignedVolume(), 1e-6)
	assert.Equal(t, 12, m.FaceCount())
}

func TestFillHoleRespectsSizeCap(t *testing.T) {
	m := buildCubeWithHole() // four border edges
	m.BuildFaceTopology()

	filled := m.FillHoles(HoleFillOptions{MaxHoleSize: 3})
	assert.Zero(t, filled, "loop larger than the cap is left open")
	assert.False(t, m.IsWatertight())
}

func TestFillTriangularHole(t *testing.T) {
	m := buildCube()
	m.DeleteFace(2) // one top triangle
	m.Compact()
	m.BuildFaceTopology()
	require.Equal(t, 1, m.CountHoles())

	filled := m.FillHoles(HoleFillOptions{})
	assert.Equal(t, 1, filled)
	assert.True(t, m.IsWatertight())
	assert.InDelta(t, 8, m.SignedVolume(), 1e-6)
}

func TestFillHolesNothingToDo(t *testing.T) {
	m := buildCube()
	m.BuildFaceTopology()
	assert.Zero(t, m.FillHoles(HoleFillOptions{}))
	assert.Equal(t, 12, m.FaceCount())
}

func TestFillHolesProgressCallback(t *testing.T) {
	m := buildCubeWithHole()
	m.BuildFaceTopology()

	calls := 0
	last := -1
	m.FillHoles(HoleFillOptions{Progress: func(percent int, msg string) bool {
		calls++
		assert.GreaterOrEqual(t, percent, last)
		last = percent
		assert.NotEmpty(t, msg)
		return false // advisory only, must not cancel
	}})
	assert.Positive(t, calls)
	assert.True(t, m.IsWatertight(), "returning false does not cancel the fill")
}

func TestFillTwoHoles(t *testing.T) {
	m := New("two holes")
	addCube(m, mgl32.Vec3{})
	addCube(m, mgl32.Vec3{5, 0, 0})
	// open one triangle in each cube's top
	m.DeleteFace(2)
	m.DeleteFace(14)
	m.Compact()
	m.BuildFaceTopology()
	require.Equal(t, 2, m.CountHoles())

	filled := m.FillHoles(HoleFillOptions{})
	assert.Equal(t, 2, filled)
	assert.True(t, m.IsWatertight())
}
