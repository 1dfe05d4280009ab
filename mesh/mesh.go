// Package mesh implements an indexed triangle mesh with face-face
// adjacency, a suite of printability diagnostics, and a deterministic
// repair pipeline (non-manifold face removal, hole filling, orientation
// fixes). File I/O for STL, OBJ, PLY and glTF lives in this package too.
package mesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// Border is the sentinel stored in Face.FF when the edge has no
// neighboring face.
const Border int32 = -1

// Element flag bits shared by vertices and faces.
const (
	FlagDeleted uint32 = 1 << iota
	FlagVisited
	FlagSelected
	FlagBorder // vertex: endpoint of at least one border edge
	FlagUserWritable
	FlagUser0
)

// Per-edge face flag bits. Edge k of a face runs from V[k] to V[(k+1)%3];
// shifting by k selects the edge.
const (
	FlagEdgeBorder0 uint32 = 1 << (8 + iota)
	FlagEdgeBorder1
	FlagEdgeBorder2
	FlagEdgeNonManifold0
	FlagEdgeNonManifold1
	FlagEdgeNonManifold2
)

// Vertex holds a position, a normal, a flag word and a mark stamp used to
// invalidate per-vertex caches.
type Vertex struct {
	P     mgl32.Vec3
	N     mgl32.Vec3
	Flags uint32
	Mark  int32
}

// Deleted reports whether the vertex has been flagged deleted.
func (v *Vertex) Deleted() bool { return v.Flags&FlagDeleted != 0 }

// SetDeleted flags the vertex deleted.
func (v *Vertex) SetDeleted() { v.Flags |= FlagDeleted }

// IsBorder reports whether the vertex lies on a border edge. The bit is
// derived by the topology builder, never set directly by callers.
func (v *Vertex) IsBorder() bool { return v.Flags&FlagBorder != 0 }

// Face is a triangle: three vertex indices, three face neighbors (FF[k]
// is the face across edge k, or Border), a face normal, flags and a mark.
type Face struct {
	V     [3]int32
	FF    [3]int32
	N     mgl32.Vec3
	Flags uint32
	Mark  int32
}

// Deleted reports whether the face has been flagged deleted.
func (f *Face) Deleted() bool { return f.Flags&FlagDeleted != 0 }

// SetDeleted flags the face deleted.
func (f *Face) SetDeleted() { f.Flags |= FlagDeleted }

// BorderEdge reports whether edge k has no neighboring face.
func (f *Face) BorderEdge(k int) bool { return f.Flags&(FlagEdgeBorder0<<k) != 0 }

// NonManifoldEdge reports whether edge k has three or more incident faces.
func (f *Face) NonManifoldEdge(k int) bool { return f.Flags&(FlagEdgeNonManifold0<<k) != 0 }

// Edge returns the directed vertex pair of edge k.
func (f *Face) Edge(k int) (a, b int32) {
	return f.V[k], f.V[(k+1)%3]
}

// HasVertex reports whether the face references vertex index v.
func (f *Face) HasVertex(v int32) bool {
	return f.V[0] == v || f.V[1] == v || f.V[2] == v
}

// Flip reverses the face winding by swapping the second and third vertex
// indices. Neighbor slots and per-edge bits are permuted to stay aligned
// with the new edge order.
func (f *Face) Flip() {
	f.V[1], f.V[2] = f.V[2], f.V[1]
	f.FF[0], f.FF[2] = f.FF[2], f.FF[0]
	b0 := f.Flags & FlagEdgeBorder0
	b2 := f.Flags & FlagEdgeBorder2
	n0 := f.Flags & FlagEdgeNonManifold0
	n2 := f.Flags & FlagEdgeNonManifold2
	f.Flags &^= FlagEdgeBorder0 | FlagEdgeBorder2 | FlagEdgeNonManifold0 | FlagEdgeNonManifold2
	if b0 != 0 {
		f.Flags |= FlagEdgeBorder2
	}
	if b2 != 0 {
		f.Flags |= FlagEdgeBorder0
	}
	if n0 != 0 {
		f.Flags |= FlagEdgeNonManifold2
	}
	if n2 != 0 {
		f.Flags |= FlagEdgeNonManifold0
	}
	f.N = f.N.Mul(-1)
}

// Mesh owns vertex and face storage. Deletion is by flag; indices stay
// stable until Compact. The mark epoch increases on every structural edit
// and stale derived topology must be rebuilt before use.
type Mesh struct {
	Name  string
	Verts []Vertex
	Faces []Face

	vn int // live vertices
	fn int // live faces

	mark int // structural edit epoch

	topo topoState
}

// topoState is the face-face adjacency bookkeeping written by
// BuildFaceTopology.
type topoState struct {
	mark        int // mesh mark at the time of the last build
	borderEdges int
	nonManifold int
}

// New creates an empty mesh.
func New(name string) *Mesh {
	return &Mesh{Name: name}
}

// VertexCount returns the number of live vertices.
func (m *Mesh) VertexCount() int { return m.vn }

// FaceCount returns the number of live faces.
func (m *Mesh) FaceCount() int { return m.fn }

// Mark returns the current structural edit epoch.
func (m *Mesh) Mark() int { return m.mark }

// bumpMark records a structural edit, invalidating derived topology.
func (m *Mesh) bumpMark() { m.mark++ }

// TopologyCurrent reports whether face-face adjacency matches the current
// mark epoch.
func (m *Mesh) TopologyCurrent() bool { return m.topo.mark == m.mark && m.mark != 0 }

// AddVertex appends a vertex and returns its index.
func (m *Mesh) AddVertex(p mgl32.Vec3) int32 {
	m.Verts = append(m.Verts, Vertex{P: p})
	m.vn++
	m.bumpMark()
	return int32(len(m.Verts) - 1)
}

// AddFace appends a triangle and returns its index. The face normal is
// computed from the vertex positions; neighbor slots start as Border.
func (m *Mesh) AddFace(v0, v1, v2 int32) int32 {
	f := Face{V: [3]int32{v0, v1, v2}, FF: [3]int32{Border, Border, Border}}
	f.N = m.faceNormal(&f)
	m.Faces = append(m.Faces, f)
	m.fn++
	m.bumpMark()
	return int32(len(m.Faces) - 1)
}

// DeleteFace flags face i deleted.
func (m *Mesh) DeleteFace(i int32) {
	f := &m.Faces[i]
	if !f.Deleted() {
		f.SetDeleted()
		m.fn--
		m.bumpMark()
	}
}

// DeleteVertex flags vertex i deleted.
func (m *Mesh) DeleteVertex(i int32) {
	v := &m.Verts[i]
	if !v.Deleted() {
		v.SetDeleted()
		m.vn--
		m.bumpMark()
	}
}

// faceNormal computes the (normalized) normal of f from vertex positions.
// Degenerate faces get a zero normal.
func (m *Mesh) faceNormal(f *Face) mgl32.Vec3 {
	p0 := m.Verts[f.V[0]].P
	p1 := m.Verts[f.V[1]].P
	p2 := m.Verts[f.V[2]].P
	n := p1.Sub(p0).Cross(p2.Sub(p0))
	if l := n.Len(); l > 0 {
		return n.Mul(1 / l)
	}
	return mgl32.Vec3{}
}

// CalculateFaceNormals recomputes the normal of every live face.
func (m *Mesh) CalculateFaceNormals() {
	for i := range m.Faces {
		f := &m.Faces[i]
		if f.Deleted() {
			continue
		}
		f.N = m.faceNormal(f)
	}
}

// CalculateVertexNormals computes area-weighted averaged normals for the
// live vertices by accumulating the unnormalized face normals.
func (m *Mesh) CalculateVertexNormals() {
	for i := range m.Verts {
		m.Verts[i].N = mgl32.Vec3{}
	}
	for i := range m.Faces {
		f := &m.Faces[i]
		if f.Deleted() {
			continue
		}
		p0 := m.Verts[f.V[0]].P
		p1 := m.Verts[f.V[1]].P
		p2 := m.Verts[f.V[2]].P
		n := p1.Sub(p0).Cross(p2.Sub(p0)) // not normalized: larger faces weigh more
		for k := 0; k < 3; k++ {
			v := &m.Verts[f.V[k]]
			v.N = v.N.Add(n)
		}
	}
	for i := range m.Verts {
		v := &m.Verts[i]
		if l := v.N.Len(); l > 0 {
			v.N = v.N.Mul(1 / l)
		}
	}
}

// BoundingBox returns the axis-aligned bounds over live vertices.
// ok is false on a mesh with no live vertices.
func (m *Mesh) BoundingBox() (min, max mgl32.Vec3, ok bool) {
	first := true
	for i := range m.Verts {
		v := &m.Verts[i]
		if v.Deleted() {
			continue
		}
		if first {
			min, max = v.P, v.P
			first = false
			continue
		}
		for a := 0; a < 3; a++ {
			if v.P[a] < min[a] {
				min[a] = v.P[a]
			}
			if v.P[a] > max[a] {
				max[a] = v.P[a]
			}
		}
	}
	return min, max, !first
}

// SurfaceArea sums the area of all live faces. Accumulation is in double
// precision to keep large meshes stable.
func (m *Mesh) SurfaceArea() float64 {
	var area float64
	for i := range m.Faces {
		f := &m.Faces[i]
		if f.Deleted() {
			continue
		}
		p0 := vec64(m.Verts[f.V[0]].P)
		p1 := vec64(m.Verts[f.V[1]].P)
		p2 := vec64(m.Verts[f.V[2]].P)
		area += 0.5 * p1.Sub(p0).Cross(p2.Sub(p0)).Len()
	}
	return area
}

// SignedVolume computes the divergence-theorem volume of the mesh. The
// sign depends on orientation: outward-facing coherent windings give a
// positive value.
func (m *Mesh) SignedVolume() float64 {
	var vol float64
	for i := range m.Faces {
		f := &m.Faces[i]
		if f.Deleted() {
			continue
		}
		p0 := vec64(m.Verts[f.V[0]].P)
		p1 := vec64(m.Verts[f.V[1]].P)
		p2 := vec64(m.Verts[f.V[2]].P)
		vol += p0.Dot(p1.Cross(p2)) / 6
	}
	return vol
}

// Compact physically removes deleted faces and vertices and remaps the
// survivors' indices. All externally held indices are invalidated.
func (m *Mesh) Compact() {
	vmap := make([]int32, len(m.Verts))
	keptV := m.Verts[:0]
	for i := range m.Verts {
		if m.Verts[i].Deleted() {
			vmap[i] = -1
			continue
		}
		vmap[i] = int32(len(keptV))
		keptV = append(keptV, m.Verts[i])
	}
	m.Verts = keptV

	keptF := m.Faces[:0]
	for i := range m.Faces {
		f := m.Faces[i]
		if f.Deleted() {
			continue
		}
		for k := 0; k < 3; k++ {
			f.V[k] = vmap[f.V[k]]
			f.FF[k] = Border // adjacency is face-indexed and now stale
		}
		keptF = append(keptF, f)
	}
	m.Faces = keptF
	m.vn = len(m.Verts)
	m.fn = len(m.Faces)
	m.bumpMark()
}

// RemoveUnreferencedVertices flags vertices used by no live face as
// deleted and returns how many were removed.
func (m *Mesh) RemoveUnreferencedVertices() int {
	referenced := make([]bool, len(m.Verts))
	for i := range m.Faces {
		f := &m.Faces[i]
		if f.Deleted() {
			continue
		}
		referenced[f.V[0]] = true
		referenced[f.V[1]] = true
		referenced[f.V[2]] = true
	}
	removed := 0
	for i := range m.Verts {
		if !m.Verts[i].Deleted() && !referenced[i] {
			m.DeleteVertex(int32(i))
			removed++
		}
	}
	return removed
}

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	c := &Mesh{Name: m.Name, vn: m.vn, fn: m.fn, mark: m.mark, topo: m.topo}
	c.Verts = append([]Vertex(nil), m.Verts...)
	c.Faces = append([]Face(nil), m.Faces...)
	return c
}

// maxDim returns the largest bounding-box extent, or 0 on an empty mesh.
func (m *Mesh) maxDim() float64 {
	min, max, ok := m.BoundingBox()
	if !ok {
		return 0
	}
	d := max.Sub(min)
	return math.Max(float64(d.X()), math.Max(float64(d.Y()), float64(d.Z())))
}

// vec64 widens a single-precision vector for double-precision geometry.
func vec64(v mgl32.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{float64(v.X()), float64(v.Y()), float64(v.Z())}
}
