package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkThenRepair(t *testing.T, m *Mesh) (CheckResult, RepairResult) {
	t.Helper()
	pre := m.Check(CheckOptions{})
	require.False(t, pre.IsGoodMesh, "fixture must need repair")
	return pre, m.RepairAndCheck(pre, RepairOptions{})
}

func TestRepairNoopOnGoodMesh(t *testing.T) {
	m := buildCube()
	pre := m.Check(CheckOptions{})
	require.True(t, pre.IsGoodMesh)

	res := m.RepairAndCheck(pre, RepairOptions{})
	assert.Equal(t, RepairVersion, res.RepairRecord.Version)
	assert.False(t, res.MadeCoherentlyOriented)
	assert.False(t, res.FlippedNormalsOutside)
	assert.Zero(t, res.NonManifoldFacesRemoved)
	assert.Zero(t, res.HolesFilled)
	assert.True(t, res.IsGoodRepair)
}

func TestRepairFillsHole(t *testing.T) {
	m := buildCubeWithHole()
	pre, res := checkThenRepair(t, m)

	assert.Equal(t, 1, res.HolesFilled)
	assert.Zero(t, res.NonManifoldFacesRemoved)
	assert.True(t, res.IsWatertight)
	assert.True(t, res.IsGoodMesh)
	assert.True(t, res.IsGoodRepair)
	assert.Equal(t, pre.Shells, res.Shells)
	assert.Equal(t, pre.IntersectingFaces, res.IntersectingFaces)
}

func TestRepairFlipsInvertedCube(t *testing.T) {
	m := buildCube()
	m.FlipMesh()
	pre, res := checkThenRepair(t, m)

	require.True(t, pre.IsCoherentlyOriented)
	require.False(t, pre.IsPositiveVolume)
	assert.True(t, res.FlippedNormalsOutside)
	assert.False(t, res.MadeCoherentlyOriented)
	assert.True(t, res.IsPositiveVolume)
	assert.True(t, res.IsGoodRepair)
}

func TestRepairOrientsIncoherentCube(t *testing.T) {
	m := buildCube()
	m.Faces[7].Flip()
	m.bumpMark()
	pre, res := checkThenRepair(t, m)

	require.False(t, pre.IsCoherentlyOriented)
	assert.True(t, res.MadeCoherentlyOriented)
	assert.True(t, res.IsCoherentlyOriented)
	assert.True(t, res.IsPositiveVolume)
	assert.True(t, res.IsGoodRepair)
}

func TestRepairRemovesNonManifoldFaces(t *testing.T) {
	m := buildCubeWithFin()
	pre, res := checkThenRepair(t, m)

	require.GreaterOrEqual(t, pre.NonManifoldEdges, 1)
	require.Equal(t, -1, pre.Holes)
	assert.Equal(t, 3, res.NonManifoldFacesRemoved)
	assert.True(t, res.IsWatertight)
	assert.Zero(t, res.NonManifoldEdges)
}

func TestRepairIdempotent(t *testing.T) {
	m := buildCubeWithHole()
	_, first := checkThenRepair(t, m)
	require.True(t, first.IsGoodRepair)

	pre2 := m.Check(CheckOptions{})
	res2 := m.RepairAndCheck(pre2, RepairOptions{})
	assert.Equal(t, first.CheckResult, res2.CheckResult, "second run reports the same record")
	assert.Zero(t, res2.HolesFilled)
}

func TestRepairHoleTooLargeForCap(t *testing.T) {
	m := buildCubeWithHole()
	pre := m.Check(CheckOptions{})
	res := m.RepairAndCheck(pre, RepairOptions{MaxHoleSize: 3})

	assert.Zero(t, res.HolesFilled)
	assert.False(t, res.IsWatertight)
	assert.False(t, res.IsGoodRepair)
}

func TestRequireZeroHolesFlag(t *testing.T) {
	m := buildCubeWithHole()
	pre := m.Check(CheckOptions{})
	res := m.RepairAndCheck(pre, RepairOptions{RequireZeroHoles: true})
	assert.True(t, res.IsGoodRepair, "repair closed the hole, so the stricter policy passes too")
	assert.Zero(t, res.Holes)
}

func TestRepairReportKeys(t *testing.T) {
	m := buildCubeWithHole()
	_, res := checkThenRepair(t, m)
	rep := res.Report()

	require.Equal(t, RepairVersion, rep["repair_version"])
	require.Equal(t, 1, rep["num_hole_fix"])
	require.Equal(t, true, rep["r_is_watertight"])
	require.Equal(t, true, rep["is_good_repair"])
	require.Contains(t, rep, "r_num_face")
	require.Contains(t, rep, "does_make_coherent_orient")
	require.Contains(t, rep, "does_flip_normal_outside")
	require.Contains(t, rep, "num_rm_non_manif_faces")
	require.Len(t, rep, 27)
}
