package mesh

import (
	"time"

	"fortio.org/log"
)

// CheckVersion is the diagnostic record version emitted as num_version.
const CheckVersion = 4

// CheckResult is the flat diagnostic record for one mesh. The counts for
// degenerate and duplicate faces come from the cleaning pass that Check
// runs before evaluating the read-only predicates, mirroring the report
// contract (num_degenerated_faces_removed, num_duplicated_faces_removed).
type CheckResult struct {
	Version                int
	NumFaces               int
	NumVertices            int
	DegenerateFacesRemoved int
	DuplicateFacesRemoved  int
	IsWatertight           bool
	IsCoherentlyOriented   bool
	IsPositiveVolume       bool
	IntersectingFaces      int
	Shells                 int
	NonManifoldEdges       int
	Holes                  int // -1 when undefined (non-manifold edges present)
	IsGoodMesh             bool

	MinX, MaxX float32
	MinY, MaxY float32
	MinZ, MaxZ float32
	Area       float64
	Volume     float64
}

// CheckOptions tunes the diagnostic pass.
type CheckOptions struct {
	// MergeTolerance is passed to the duplicate-vertex merge; see
	// DefaultMergeTolerance.
	MergeTolerance float32
}

// goodMesh is the success policy: watertight, coherently oriented and
// positive volume. An empty mesh has zero volume and therefore fails.
func (r *CheckResult) goodMesh() bool {
	return r.IsWatertight && r.IsCoherentlyOriented && r.IsPositiveVolume
}

// Check runs the cleaning pre-pass (duplicate-vertex merge with
// degenerate removal, duplicate-face removal) followed by the full
// predicate suite. The mesh is left compacted with current face-face
// adjacency.
func (m *Mesh) Check(opts CheckOptions) CheckResult {
	start := time.Now()
	r := CheckResult{Version: CheckVersion, Holes: -1}

	r.DegenerateFacesRemoved = m.MergeDuplicateVertices(opts.MergeTolerance, true)
	r.DegenerateFacesRemoved += m.RemoveDegenerateFaces()
	r.DuplicateFacesRemoved = m.RemoveDuplicateFaces()
	m.RemoveUnreferencedVertices()

	r.NumFaces = m.FaceCount()
	r.NumVertices = m.VertexCount()

	if min, max, ok := m.BoundingBox(); ok {
		r.MinX, r.MaxX = min.X(), max.X()
		r.MinY, r.MaxY = min.Y(), max.Y()
		r.MinZ, r.MaxZ = min.Z(), max.Z()
	}
	r.Area = m.SurfaceArea()
	r.Volume = m.SignedVolume()

	m.RebuildTopology()

	r.IsWatertight = m.IsWatertight()
	r.IsCoherentlyOriented = m.IsCoherentlyOriented()
	r.IsPositiveVolume = r.Volume > 0
	r.IntersectingFaces = m.SelfIntersectionCount()
	r.Shells = m.ShellCount()
	r.NonManifoldEdges = m.NonManifoldEdgeCount()
	if r.NonManifoldEdges == 0 {
		r.Holes = m.CountHoles()
	}
	r.IsGoodMesh = r.goodMesh()

	log.LogVf("check of %q took %v", m.Name, time.Since(start))
	return r
}

// report flattens the record into JSON keys, optionally prefixed (the
// post-repair record repeats every key with an r_ prefix).
func (r *CheckResult) report(prefix string) map[string]any {
	return map[string]any{
		prefix + "num_version":                   r.Version,
		prefix + "num_face":                      r.NumFaces,
		prefix + "num_vertices":                  r.NumVertices,
		prefix + "num_degenerated_faces_removed": r.DegenerateFacesRemoved,
		prefix + "num_duplicated_faces_removed":  r.DuplicateFacesRemoved,
		prefix + "is_watertight":                 r.IsWatertight,
		prefix + "is_coherently_oriented":        r.IsCoherentlyOriented,
		prefix + "is_positive_volume":            r.IsPositiveVolume,
		prefix + "num_intersecting_faces":        r.IntersectingFaces,
		prefix + "num_shells":                    r.Shells,
		prefix + "num_non_manifold_edges":        r.NonManifoldEdges,
		prefix + "num_holes":                     r.Holes,
		prefix + "is_good_mesh":                  r.IsGoodMesh,
		prefix + "min_x":                         r.MinX,
		prefix + "max_x":                         r.MaxX,
		prefix + "min_y":                         r.MinY,
		prefix + "max_y":                         r.MaxY,
		prefix + "min_z":                         r.MinZ,
		prefix + "max_z":                         r.MaxZ,
		prefix + "area":                          r.Area,
		prefix + "volume":                        r.Volume,
	}
}

// Report returns the pre-repair JSON record.
func (r *CheckResult) Report() map[string]any {
	return r.report("")
}
