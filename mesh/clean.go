package mesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// DefaultMergeTolerance is the vertex-merge tolerance used by the file
// loaders and the repair driver: 0 means positions must match bit-exactly
// in single precision. A positive value merges positions that round to the
// same multiple of the tolerance on every axis; two positions closer than
// the tolerance can still fall on either side of a rounding boundary and
// stay apart.
const DefaultMergeTolerance float32 = 0

// mergeKey buckets a position for duplicate-vertex lookup. With a
// non-positive tolerance the raw float32 bit patterns are used, so only
// bit-exact positions collide.
type mergeKey struct {
	x, y, z int64
}

func positionKey(p mgl32.Vec3, tolerance float32) mergeKey {
	if tolerance <= 0 {
		return mergeKey{
			x: int64(math.Float32bits(p.X())),
			y: int64(math.Float32bits(p.Y())),
			z: int64(math.Float32bits(p.Z())),
		}
	}
	scale := 1 / float64(tolerance)
	return mergeKey{
		x: int64(math.Round(float64(p.X()) * scale)),
		y: int64(math.Round(float64(p.Y()) * scale)),
		z: int64(math.Round(float64(p.Z()) * scale)),
	}
}

// MergeDuplicateVertices merges live vertices at the same position (or on
// the same tolerance grid point; see DefaultMergeTolerance) into the first occurrence and
// rewrites face indices to the survivor. With removeDegenerate set, faces
// that collapse onto a repeated index are flagged deleted. Returns the
// number of faces removed.
func (m *Mesh) MergeDuplicateVertices(tolerance float32, removeDegenerate bool) int {
	if m.vn == 0 {
		return 0
	}
	survivor := make(map[mergeKey]int32, m.vn)
	remap := make([]int32, len(m.Verts))
	merged := 0
	for i := range m.Verts {
		v := &m.Verts[i]
		if v.Deleted() {
			remap[i] = -1
			continue
		}
		key := positionKey(v.P, tolerance)
		if first, ok := survivor[key]; ok {
			remap[i] = first
			v.SetDeleted()
			m.vn--
			merged++
		} else {
			survivor[key] = int32(i)
			remap[i] = int32(i)
		}
	}

	removedFaces := 0
	if merged > 0 {
		for i := range m.Faces {
			f := &m.Faces[i]
			if f.Deleted() {
				continue
			}
			for k := 0; k < 3; k++ {
				f.V[k] = remap[f.V[k]]
			}
			if removeDegenerate && (f.V[0] == f.V[1] || f.V[1] == f.V[2] || f.V[2] == f.V[0]) {
				f.SetDeleted()
				m.fn--
				removedFaces++
			}
		}
	}
	m.bumpMark()
	return removedFaces
}

// canonicalTriple sorts a face's vertex indices so duplicate detection
// ignores rotation and winding.
func canonicalTriple(v [3]int32) [3]int32 {
	if v[0] > v[1] {
		v[0], v[1] = v[1], v[0]
	}
	if v[1] > v[2] {
		v[1], v[2] = v[2], v[1]
	}
	if v[0] > v[1] {
		v[0], v[1] = v[1], v[0]
	}
	return v
}

// RemoveDuplicateFaces flags every live face whose unordered vertex triple
// already appeared on an earlier face. Returns the number removed.
func (m *Mesh) RemoveDuplicateFaces() int {
	seen := make(map[[3]int32]bool, m.fn)
	removed := 0
	for i := range m.Faces {
		f := &m.Faces[i]
		if f.Deleted() {
			continue
		}
		key := canonicalTriple(f.V)
		if seen[key] {
			f.SetDeleted()
			m.fn--
			removed++
			continue
		}
		seen[key] = true
	}
	if removed > 0 {
		m.bumpMark()
	}
	return removed
}

// DegenerateFaceCount counts live faces with zero area or a repeated
// vertex index. Read-only; the removal counterpart is
// RemoveDegenerateFaces.
func (m *Mesh) DegenerateFaceCount() int {
	count := 0
	for i := range m.Faces {
		if f := &m.Faces[i]; !f.Deleted() && m.faceDegenerate(f) {
			count++
		}
	}
	return count
}

// DuplicateFaceCount counts live faces sharing an unordered vertex triple
// with an earlier live face. Read-only.
func (m *Mesh) DuplicateFaceCount() int {
	seen := make(map[[3]int32]bool, m.fn)
	count := 0
	for i := range m.Faces {
		f := &m.Faces[i]
		if f.Deleted() {
			continue
		}
		key := canonicalTriple(f.V)
		if seen[key] {
			count++
		}
		seen[key] = true
	}
	return count
}

func (m *Mesh) faceDegenerate(f *Face) bool {
	if f.V[0] == f.V[1] || f.V[1] == f.V[2] || f.V[2] == f.V[0] {
		return true
	}
	p0 := m.Verts[f.V[0]].P
	p1 := m.Verts[f.V[1]].P
	p2 := m.Verts[f.V[2]].P
	return p1.Sub(p0).Cross(p2.Sub(p0)).Len() == 0
}

// RemoveDegenerateFaces flags all degenerate live faces deleted and
// returns the number removed.
func (m *Mesh) RemoveDegenerateFaces() int {
	removed := 0
	for i := range m.Faces {
		f := &m.Faces[i]
		if f.Deleted() || !m.faceDegenerate(f) {
			continue
		}
		f.SetDeleted()
		m.fn--
		removed++
	}
	if removed > 0 {
		m.bumpMark()
	}
	return removed
}

// RemoveNonManifoldFaces deletes every face incident to an edge shared by
// three or more faces. The removal is aggressive: all incident faces go,
// and the repair driver relies on hole filling to close the wound.
// Returns the number of faces removed.
func (m *Mesh) RemoveNonManifoldFaces() int {
	incidence := make(map[edgeKey][]int32, m.fn*3/2)
	for i := range m.Faces {
		f := &m.Faces[i]
		if f.Deleted() {
			continue
		}
		for k := 0; k < 3; k++ {
			a, b := f.Edge(k)
			key := undirected(a, b)
			incidence[key] = append(incidence[key], int32(i))
		}
	}
	removed := 0
	for _, faces := range incidence {
		if len(faces) < 3 {
			continue
		}
		for _, fi := range faces {
			f := &m.Faces[fi]
			if f.Deleted() {
				continue
			}
			f.SetDeleted()
			m.fn--
			removed++
		}
	}
	if removed > 0 {
		m.bumpMark()
	}
	return removed
}

// OrientCoherently re-winds faces so that every interior edge is
// traversed in opposite directions by its two incident faces. The walk is
// a breadth-first flood over face-face adjacency from an arbitrary seed
// per shell; crossing an edge whose direction matches the current face
// flips the neighbor. oriented reports that the flood covered every live
// face; orientable is false when a contradiction was met (a Möbius-like
// configuration), in which case the mesh is left partially flipped.
func (m *Mesh) OrientCoherently() (oriented, orientable bool) {
	m.requireTopology()
	orientable = true
	visited := make([]bool, len(m.Faces))
	queue := make([]int32, 0, 64)

	for seed := range m.Faces {
		if m.Faces[seed].Deleted() || visited[seed] {
			continue
		}
		visited[seed] = true
		queue = append(queue[:0], int32(seed))
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			f := &m.Faces[cur]
			for k := 0; k < 3; k++ {
				g := f.FF[k]
				if g == Border {
					continue
				}
				a, b := f.Edge(k)
				n := &m.Faces[g]
				slot := n.slotOf(a, b)
				if slot < 0 {
					continue
				}
				na, nb := n.Edge(slot)
				sameDirection := na == a && nb == b
				if visited[g] {
					if sameDirection {
						orientable = false
					}
					continue
				}
				if sameDirection {
					n.Flip()
				}
				visited[g] = true
				queue = append(queue, g)
			}
		}
	}
	m.bumpMark()
	m.topo.mark = m.mark // flips keep undirected adjacency valid
	return true, orientable
}

// FlipMesh reverses the winding of every live face, negating the signed
// volume of a closed coherently oriented mesh.
func (m *Mesh) FlipMesh() {
	topoWasCurrent := m.TopologyCurrent()
	for i := range m.Faces {
		f := &m.Faces[i]
		if f.Deleted() {
			continue
		}
		f.Flip()
	}
	m.bumpMark()
	if topoWasCurrent {
		m.topo.mark = m.mark
	}
}
