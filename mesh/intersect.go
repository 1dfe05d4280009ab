package mesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// aabb is an axis-aligned box in double precision.
type aabb struct {
	min, max mgl64.Vec3
}

func (a aabb) overlaps(b aabb) bool {
	return a.max.X() >= b.min.X() && a.min.X() <= b.max.X() &&
		a.max.Y() >= b.min.Y() && a.min.Y() <= b.max.Y() &&
		a.max.Z() >= b.min.Z() && a.min.Z() <= b.max.Z()
}

func (m *Mesh) faceBox(f *Face) aabb {
	p0 := vec64(m.Verts[f.V[0]].P)
	p1 := vec64(m.Verts[f.V[1]].P)
	p2 := vec64(m.Verts[f.V[2]].P)
	box := aabb{min: p0, max: p0}
	for _, p := range []mgl64.Vec3{p1, p2} {
		for a := 0; a < 3; a++ {
			box.min[a] = math.Min(box.min[a], p[a])
			box.max[a] = math.Max(box.max[a], p[a])
		}
	}
	return box
}

// cellKey addresses one cell of the uniform grid.
type cellKey struct {
	x, y, z int
}

// spatialGrid is a uniform hash grid over face bounding boxes, used as
// the broad phase for triangle-triangle intersection queries. The grid is
// scoped to a single predicate or repair call; nothing persists between
// invocations.
type spatialGrid struct {
	mesh     *Mesh
	cellSize float64
	mask     int
	cells    [][]int32
	boxes    []aabb
	stamp    int32
}

func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

// newSpatialGrid builds a grid over all live faces. The cell size tracks
// the mean face extent so a face lands in a handful of cells.
func newSpatialGrid(m *Mesh) *spatialGrid {
	maxDim := m.maxDim()
	if maxDim == 0 {
		maxDim = 1
	}
	var sumExtent float64
	live := 0
	boxes := make([]aabb, len(m.Faces))
	stamp := int32(0)
	for i := range m.Faces {
		f := &m.Faces[i]
		if f.Mark > stamp {
			stamp = f.Mark
		}
		if f.Deleted() {
			continue
		}
		boxes[i] = m.faceBox(f)
		d := boxes[i].max.Sub(boxes[i].min)
		sumExtent += math.Max(d.X(), math.Max(d.Y(), d.Z()))
		live++
	}
	cellSize := maxDim / 8
	if live > 0 {
		cellSize = 2 * sumExtent / float64(live)
	}
	cellSize = math.Max(cellSize, maxDim/256)

	numCells := nextPowerOfTwo(2 * live)
	if numCells > 1<<20 {
		numCells = 1 << 20
	}
	g := &spatialGrid{
		mesh:     m,
		cellSize: cellSize,
		mask:     numCells - 1,
		cells:    make([][]int32, numCells),
		boxes:    boxes,
		stamp:    stamp,
	}
	for i := range m.Faces {
		if !m.Faces[i].Deleted() {
			g.insert(int32(i))
		}
	}
	return g
}

func (g *spatialGrid) cellOf(p mgl64.Vec3) cellKey {
	return cellKey{
		x: int(math.Floor(p.X() / g.cellSize)),
		y: int(math.Floor(p.Y() / g.cellSize)),
		z: int(math.Floor(p.Z() / g.cellSize)),
	}
}

func (g *spatialGrid) hash(k cellKey) int {
	h := (k.x * 73856093) ^ (k.y * 19349663) ^ (k.z * 83492791)
	return h & g.mask
}

// insert records face fi in every cell its bounding box touches. Faces
// added after construction (the hole filler) grow the box table.
func (g *spatialGrid) insert(fi int32) {
	for int(fi) >= len(g.boxes) {
		g.boxes = append(g.boxes, aabb{})
	}
	g.boxes[fi] = g.mesh.faceBox(&g.mesh.Faces[fi])
	lo := g.cellOf(g.boxes[fi].min)
	hi := g.cellOf(g.boxes[fi].max)
	for x := lo.x; x <= hi.x; x++ {
		for y := lo.y; y <= hi.y; y++ {
			for z := lo.z; z <= hi.z; z++ {
				idx := g.hash(cellKey{x, y, z})
				g.cells[idx] = append(g.cells[idx], fi)
			}
		}
	}
}

// visitOverlapping calls fn once per distinct live face whose bounding
// box overlaps box. Face marks stamp the visit so hash collisions and
// multi-cell faces do not repeat.
func (g *spatialGrid) visitOverlapping(box aabb, fn func(fi int32)) {
	g.stamp++
	lo := g.cellOf(box.min)
	hi := g.cellOf(box.max)
	for x := lo.x; x <= hi.x; x++ {
		for y := lo.y; y <= hi.y; y++ {
			for z := lo.z; z <= hi.z; z++ {
				idx := g.hash(cellKey{x, y, z})
				for _, fi := range g.cells[idx] {
					f := &g.mesh.Faces[fi]
					if f.Mark == g.stamp || f.Deleted() {
						continue
					}
					f.Mark = g.stamp
					if box.overlaps(g.boxes[fi]) {
						fn(fi)
					}
				}
			}
		}
	}
}

// SelfIntersectingFaces returns the indices of live faces participating
// in at least one triangle-triangle intersection with a face they share
// no vertex with.
func (m *Mesh) SelfIntersectingFaces() []int32 {
	if m.fn < 2 {
		return nil
	}
	grid := newSpatialGrid(m)
	hit := make([]bool, len(m.Faces))
	for i := range m.Faces {
		f := &m.Faces[i]
		if f.Deleted() {
			continue
		}
		fi := int32(i)
		grid.visitOverlapping(grid.boxes[i], func(gi int32) {
			if gi <= fi {
				return
			}
			gf := &m.Faces[gi]
			if sharesVertex(f, gf) {
				return
			}
			if m.facesIntersect(f, gf) {
				hit[fi] = true
				hit[gi] = true
			}
		})
	}
	var out []int32
	for i, h := range hit {
		if h {
			out = append(out, int32(i))
		}
	}
	return out
}

// SelfIntersectionCount counts the live faces participating in at least
// one triangle-triangle intersection; see SelfIntersectingFaces.
func (m *Mesh) SelfIntersectionCount() int {
	return len(m.SelfIntersectingFaces())
}

func sharesVertex(f, g *Face) bool {
	return g.HasVertex(f.V[0]) || g.HasVertex(f.V[1]) || g.HasVertex(f.V[2])
}

func (m *Mesh) facesIntersect(f, g *Face) bool {
	return triTriIntersect(
		vec64(m.Verts[f.V[0]].P), vec64(m.Verts[f.V[1]].P), vec64(m.Verts[f.V[2]].P),
		vec64(m.Verts[g.V[0]].P), vec64(m.Verts[g.V[1]].P), vec64(m.Verts[g.V[2]].P),
	)
}

// triTriIntersect implements Möller's interval-overlap triangle
// intersection test, including the coplanar case.
func triTriIntersect(v0, v1, v2, u0, u1, u2 mgl64.Vec3) bool {
	const eps = 1e-12

	// plane of triangle V
	n1 := v1.Sub(v0).Cross(v2.Sub(v0))
	d1 := -n1.Dot(v0)
	du0 := n1.Dot(u0) + d1
	du1 := n1.Dot(u1) + d1
	du2 := n1.Dot(u2) + d1
	if math.Abs(du0) < eps {
		du0 = 0
	}
	if math.Abs(du1) < eps {
		du1 = 0
	}
	if math.Abs(du2) < eps {
		du2 = 0
	}
	du0du1 := du0 * du1
	du0du2 := du0 * du2
	if du0du1 > 0 && du0du2 > 0 {
		return false // all of U on one side
	}

	// plane of triangle U
	n2 := u1.Sub(u0).Cross(u2.Sub(u0))
	d2 := -n2.Dot(u0)
	dv0 := n2.Dot(v0) + d2
	dv1 := n2.Dot(v1) + d2
	dv2 := n2.Dot(v2) + d2
	if math.Abs(dv0) < eps {
		dv0 = 0
	}
	if math.Abs(dv1) < eps {
		dv1 = 0
	}
	if math.Abs(dv2) < eps {
		dv2 = 0
	}
	dv0dv1 := dv0 * dv1
	dv0dv2 := dv0 * dv2
	if dv0dv1 > 0 && dv0dv2 > 0 {
		return false
	}

	d := n1.Cross(n2)
	// dominant axis of the intersection line
	axis := 0
	maxComp := math.Abs(d.X())
	if b := math.Abs(d.Y()); b > maxComp {
		maxComp = b
		axis = 1
	}
	if c := math.Abs(d.Z()); c > maxComp {
		maxComp = c
		axis = 2
	}
	if maxComp < eps {
		// triangles are coplanar
		return coplanarTriTri(n1, v0, v1, v2, u0, u1, u2)
	}

	vp0, vp1, vp2 := v0[axis], v1[axis], v2[axis]
	up0, up1, up2 := u0[axis], u1[axis], u2[axis]

	isect1, ok := computeIntervals(vp0, vp1, vp2, dv0, dv1, dv2, dv0dv1, dv0dv2)
	if !ok {
		return coplanarTriTri(n1, v0, v1, v2, u0, u1, u2)
	}
	isect2, ok := computeIntervals(up0, up1, up2, du0, du1, du2, du0du1, du0du2)
	if !ok {
		return coplanarTriTri(n1, v0, v1, v2, u0, u1, u2)
	}

	if isect1[0] > isect1[1] {
		isect1[0], isect1[1] = isect1[1], isect1[0]
	}
	if isect2[0] > isect2[1] {
		isect2[0], isect2[1] = isect2[1], isect2[0]
	}
	return isect1[1] >= isect2[0] && isect2[1] >= isect1[0]
}

// computeIntervals projects a triangle onto the intersection line. ok is
// false when the triangle actually lies in the other plane.
func computeIntervals(vv0, vv1, vv2, d0, d1, d2, d0d1, d0d2 float64) ([2]float64, bool) {
	switch {
	case d0d1 > 0:
		// d2 on the other side
		return intervalsFor(vv2, vv0, vv1, d2, d0, d1), true
	case d0d2 > 0:
		return intervalsFor(vv1, vv0, vv2, d1, d0, d2), true
	case d1*d2 > 0 || d0 != 0:
		return intervalsFor(vv0, vv1, vv2, d0, d1, d2), true
	case d1 != 0:
		return intervalsFor(vv1, vv0, vv2, d1, d0, d2), true
	case d2 != 0:
		return intervalsFor(vv2, vv0, vv1, d2, d0, d1), true
	default:
		return [2]float64{}, false // coplanar
	}
}

// intervalsFor computes the two crossing parameters for the vertex at va
// lying opposite the plane from vb and vc.
func intervalsFor(va, vb, vc, da, db, dc float64) [2]float64 {
	return [2]float64{
		va + (vb-va)*da/(da-db),
		va + (vc-va)*da/(da-dc),
	}
}

// coplanarTriTri handles coplanar triangles by 2D edge tests and
// containment checks in the dominant plane of n.
func coplanarTriTri(n, v0, v1, v2, u0, u1, u2 mgl64.Vec3) bool {
	// project onto the plane axis-pair where n is largest
	var i0, i1 int
	a := [3]float64{math.Abs(n.X()), math.Abs(n.Y()), math.Abs(n.Z())}
	switch {
	case a[0] >= a[1] && a[0] >= a[2]:
		i0, i1 = 1, 2
	case a[1] >= a[2]:
		i0, i1 = 0, 2
	default:
		i0, i1 = 0, 1
	}

	tv := [3][2]float64{{v0[i0], v0[i1]}, {v1[i0], v1[i1]}, {v2[i0], v2[i1]}}
	tu := [3][2]float64{{u0[i0], u0[i1]}, {u1[i0], u1[i1]}, {u2[i0], u2[i1]}}

	for e := 0; e < 3; e++ {
		for h := 0; h < 3; h++ {
			if segmentsIntersect2D(tv[e], tv[(e+1)%3], tu[h], tu[(h+1)%3]) {
				return true
			}
		}
	}
	return pointInTri2D(tv[0], tu) || pointInTri2D(tu[0], tv)
}

func segmentsIntersect2D(a0, a1, b0, b1 [2]float64) bool {
	d1 := cross2D(b0, b1, a0)
	d2 := cross2D(b0, b1, a1)
	d3 := cross2D(a0, a1, b0)
	d4 := cross2D(a0, a1, b1)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return false
}

func cross2D(a, b, c [2]float64) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func pointInTri2D(p [2]float64, t [3][2]float64) bool {
	d1 := cross2D(t[0], t[1], p)
	d2 := cross2D(t[1], t[2], p)
	d3 := cross2D(t[2], t[0], p)
	hasNeg := d1 < 0 || d2 < 0 || d3 < 0
	hasPos := d1 > 0 || d2 > 0 || d3 > 0
	return !(hasNeg && hasPos)
}
