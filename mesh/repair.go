package mesh

import (
	"time"

	"fortio.org/log"
)

// RepairVersion is the repair record version emitted as repair_version.
const RepairVersion = 1

// RepairOptions tunes the repair driver.
type RepairOptions struct {
	MergeTolerance float32
	MaxHoleSize    int
	Progress       ProgressFunc

	// RequireZeroHoles additionally demands that the post-repair hole
	// count is zero for a repair to be called good. The historical
	// policy ignores hole counts; the flag defaults to off.
	RequireZeroHoles bool
}

// RepairRecord describes which repair steps fired and how much they
// touched.
type RepairRecord struct {
	Version                 int
	MadeCoherentlyOriented  bool
	FlippedNormalsOutside   bool
	NonManifoldFacesRemoved int
	HolesFilled             int
	IsGoodRepair            bool
}

// RepairResult bundles the post-repair diagnostic record with the repair
// record.
type RepairResult struct {
	CheckResult
	RepairRecord
}

// Report returns the post-repair JSON record: every diagnostic key with
// an r_ prefix plus the repair keys.
func (r *RepairResult) Report() map[string]any {
	out := r.CheckResult.report("r_")
	out["repair_version"] = r.RepairRecord.Version
	out["does_make_coherent_orient"] = r.MadeCoherentlyOriented
	out["does_flip_normal_outside"] = r.FlippedNormalsOutside
	out["num_rm_non_manif_faces"] = r.NonManifoldFacesRemoved
	out["num_hole_fix"] = r.HolesFilled
	out["is_good_repair"] = r.IsGoodRepair
	return out
}

// Repair applies at most one pass of each repair step, in order,
// re-evaluating the affected predicates after each: non-manifold face
// removal, hole filling, coherent re-orientation, outward normal flip.
// pre is the diagnostic record the decisions are based on. The driver
// never fails; a step that cannot complete leaves the mesh in its best
// intermediate state.
func (m *Mesh) Repair(pre CheckResult, opts RepairOptions) RepairRecord {
	start := time.Now()
	rec := RepairRecord{Version: RepairVersion}

	watertight := pre.IsWatertight
	coherent := pre.IsCoherentlyOriented

	if !watertight && pre.NonManifoldEdges > 0 {
		rec.NonManifoldFacesRemoved = m.RemoveNonManifoldFaces()
		m.RebuildTopology()
		watertight = m.IsWatertight()
		coherent = m.IsCoherentlyOriented()
	}

	if !watertight {
		filled := m.FillHoles(HoleFillOptions{MaxHoleSize: opts.MaxHoleSize, Progress: opts.Progress})
		if filled > 0 {
			rec.HolesFilled = filled
			m.MergeDuplicateVertices(opts.MergeTolerance, true)
			m.RebuildTopology()
			watertight = m.IsWatertight()
			coherent = m.IsCoherentlyOriented()
		}
	}

	if watertight && !coherent {
		m.OrientCoherently()
		rec.MadeCoherentlyOriented = true
		coherent = m.IsCoherentlyOriented()
	}

	if watertight && coherent && m.SignedVolume() <= 0 {
		m.FlipMesh()
		rec.FlippedNormalsOutside = true
	}

	log.LogVf("repair of %q took %v", m.Name, time.Since(start))
	return rec
}

// goodRepair is the success policy for a repair: the mesh must now be
// good, and the shell count and the self-intersection count must be the
// same as before the repair (a change in either direction fails).
func goodRepair(pre CheckResult, post CheckResult, requireZeroHoles bool) bool {
	if !post.IsGoodMesh {
		return false
	}
	if pre.Shells != post.Shells {
		return false
	}
	if pre.IntersectingFaces != post.IntersectingFaces {
		return false
	}
	if requireZeroHoles && post.Holes != 0 {
		return false
	}
	return true
}

// RepairAndCheck runs Repair followed by a fresh diagnostic pass and
// evaluates the repair success policy.
func (m *Mesh) RepairAndCheck(pre CheckResult, opts RepairOptions) RepairResult {
	rec := m.Repair(pre, opts)
	post := m.Check(CheckOptions{MergeTolerance: opts.MergeTolerance})
	rec.IsGoodRepair = goodRepair(pre, post, opts.RequireZeroHoles)
	return RepairResult{CheckResult: post, RepairRecord: rec}
}
