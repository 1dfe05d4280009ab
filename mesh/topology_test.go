package mesh

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCubeTopology(t *testing.T) {
	m := buildCube()
	m.BuildFaceTopology()

	require.NoError(t, m.CheckFaceTopology())
	assert.Zero(t, m.BorderEdgeCount())
	assert.Zero(t, m.NonManifoldEdgeCount())
	assert.True(t, m.IsWatertight())
	assert.True(t, m.IsCoherentlyOriented())
	assert.Equal(t, 1, m.ShellCount())
	assert.Zero(t, m.CountHoles())

	for i := range m.Faces {
		for k := 0; k < 3; k++ {
			assert.NotEqual(t, Border, m.Faces[i].FF[k], "face %d edge %d", i, k)
		}
	}
}

func TestBuildFaceTopologyIdempotent(t *testing.T) {
	m := buildCubeWithHole()
	m.BuildFaceTopology()
	first := m.BorderEdgeCount()
	m.BuildFaceTopology()
	assert.Equal(t, first, m.BorderEdgeCount())
	require.NoError(t, m.CheckFaceTopology())
}

func TestIsolatedTriangle(t *testing.T) {
	m := buildTriangle()
	m.BuildFaceTopology()

	assert.Equal(t, 3, m.BorderEdgeCount())
	assert.False(t, m.IsWatertight())
	assert.Equal(t, 1, m.ShellCount())
	assert.Equal(t, 1, m.CountHoles())
	for k := 0; k < 3; k++ {
		assert.True(t, m.Faces[0].BorderEdge(k))
	}
	for i := range m.Verts {
		assert.True(t, m.Verts[i].IsBorder(), "vertex %d", i)
	}
}

func TestCubeWithHoleBorder(t *testing.T) {
	m := buildCubeWithHole()
	m.BuildFaceTopology()

	assert.Equal(t, 4, m.BorderEdgeCount())
	assert.False(t, m.IsWatertight())
	assert.Equal(t, 1, m.CountHoles())
	assert.True(t, m.IsCoherentlyOriented())

	borderVerts := 0
	for i := range m.Verts {
		if m.Verts[i].IsBorder() {
			borderVerts++
		}
	}
	assert.Equal(t, 4, borderVerts, "only the rim vertices are border")
}

func TestNonManifoldEdge(t *testing.T) {
	m := buildCubeWithFin()
	m.BuildFaceTopology()

	assert.Equal(t, 1, m.NonManifoldEdgeCount())
	assert.False(t, m.IsWatertight())

	nmSlots := 0
	for i := range m.Faces {
		for k := 0; k < 3; k++ {
			if m.Faces[i].NonManifoldEdge(k) {
				nmSlots++
				assert.Equal(t, Border, m.Faces[i].FF[k], "non-manifold slots stay unpaired")
			}
		}
	}
	assert.Equal(t, 3, nmSlots, "all three incident faces record the bit")
}

func TestTwoShells(t *testing.T) {
	m := buildCube()
	addCube(m, mgl32.Vec3{5, 0, 0})
	m.BuildFaceTopology()

	assert.Equal(t, 2, m.ShellCount())
	assert.True(t, m.IsWatertight())
	assert.Zero(t, m.CountHoles())
}

func TestHoleCountMatchesWatertight(t *testing.T) {
	for name, build := range map[string]func() *Mesh{
		"cube":     buildCube,
		"holed":    buildCubeWithHole,
		"triangle": buildTriangle,
	} {
		m := build()
		m.BuildFaceTopology()
		if m.NonManifoldEdgeCount() != 0 {
			continue
		}
		holes := m.CountHoles()
		if m.IsWatertight() {
			assert.Zero(t, holes, name)
		} else {
			assert.Positive(t, holes, name)
		}
	}
}

func TestTopologyAfterLoadConsistency(t *testing.T) {
	for _, build := range []func() *Mesh{buildCube, buildCubeWithHole, buildCubeWithFin, buildTriangle} {
		m := build()
		m.BuildFaceTopology()
		require.NoError(t, m.CheckFaceTopology())
	}
}
