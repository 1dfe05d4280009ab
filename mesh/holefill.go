package mesh

import (
	"math"

	"fortio.org/log"
	"github.com/go-gl/mathgl/mgl64"
)

// DefaultMaxHoleSize caps how many border edges a loop may have and still
// be considered for filling.
const DefaultMaxHoleSize = 100

// ProgressFunc receives advisory progress from long-running operations.
// The return value is ignored by this package; cancellation is not
// supported.
type ProgressFunc func(percent int, msg string) bool

// HoleFillOptions tunes FillHoles.
type HoleFillOptions struct {
	MaxHoleSize int // border edges per loop; 0 means DefaultMaxHoleSize
	Progress    ProgressFunc
}

// ringEntry is one vertex of the shrinking hole polygon. face is the mesh
// face currently bordering the edge from this vertex to the next ring
// vertex; it anchors the dihedral quality measure.
type ringEntry struct {
	v    int32
	face int32
}

// FillHoles closes border loops by self-intersection-checked ear cutting.
// Ears are ranked by dihedral deviation from the two faces flanking the
// ear; ears whose longest edge exceeds 1% of the bounding-box extent are
// only used when no shorter ear exists. An ear that would pierce nearby
// geometry is rejected outright. Loops larger than the size cap are left
// alone. Returns the number of loops fully closed; face-face adjacency is
// rebuilt and verified before returning.
func (m *Mesh) FillHoles(opts HoleFillOptions) int {
	maxSize := opts.MaxHoleSize
	if maxSize <= 0 {
		maxSize = DefaultMaxHoleSize
	}
	maxEdge := 0.01 * m.maxDim()

	loops := m.borderLoops()
	if len(loops) == 0 {
		return 0
	}
	grid := newSpatialGrid(m)

	closed := 0
	for li, loop := range loops {
		if opts.Progress != nil {
			opts.Progress(li*100/len(loops), "filling holes")
		}
		if len(loop) < 3 || len(loop) > maxSize {
			continue
		}
		if loop[len(loop)-1].to != loop[0].from {
			continue // open walk, nothing to close
		}
		if m.fillLoop(loop, grid, maxEdge) {
			closed++
		}
	}
	if opts.Progress != nil {
		opts.Progress(100, "filling holes")
	}

	m.BuildFaceTopology()
	if err := m.CheckFaceTopology(); err != nil {
		panic("mesh: inconsistent adjacency after hole fill: " + err.Error())
	}
	if closed > 0 {
		log.Infof("hole filling closed %d of %d border loops", closed, len(loops))
	}
	return closed
}

// fillLoop ear-cuts a single closed border walk. The ring runs opposite
// the border direction so emitted triangles wind coherently with the
// surrounding surface.
func (m *Mesh) fillLoop(loop []borderEdge, grid *spatialGrid, maxEdge float64) bool {
	n := len(loop)
	ring := make([]ringEntry, n)
	ring[0] = ringEntry{v: loop[0].from, face: loop[n-1].face}
	for j := 1; j < n; j++ {
		ring[j] = ringEntry{v: loop[n-j].from, face: loop[n-j-1].face}
	}

	for len(ring) > 3 {
		best, bestPreferred := -1, false
		bestQuality := math.Inf(1)
		for i := range ring {
			quality, preferred, ok := m.evaluateEar(ring, i, grid, maxEdge)
			if !ok {
				continue
			}
			if (preferred && !bestPreferred) ||
				(preferred == bestPreferred && quality < bestQuality) {
				best, bestPreferred, bestQuality = i, preferred, quality
			}
		}
		if best < 0 {
			return false // no admissible ear; leave what we built
		}
		ring = m.cutEar(ring, best, grid)
	}

	// the closing triangle must pass the same intersection veto
	if _, _, ok := m.evaluateEar(ring, 1, grid, maxEdge); !ok {
		return false
	}
	m.cutEar(ring, 1, grid)
	return true
}

// evaluateEar checks the ear at ring position i. ok is false when the
// triangle is degenerate or stabs nearby geometry; preferred is false
// when its longest edge exceeds maxEdge; quality is the worst dihedral
// deviation against the two flanking faces (lower is better).
func (m *Mesh) evaluateEar(ring []ringEntry, i int, grid *spatialGrid, maxEdge float64) (quality float64, preferred, ok bool) {
	n := len(ring)
	prev := ring[(i+n-1)%n]
	cur := ring[i]
	next := ring[(i+1)%n]
	if prev.v == cur.v || cur.v == next.v || prev.v == next.v {
		return 0, false, false
	}

	p0 := vec64(m.Verts[prev.v].P)
	p1 := vec64(m.Verts[cur.v].P)
	p2 := vec64(m.Verts[next.v].P)
	earNormal := p1.Sub(p0).Cross(p2.Sub(p0))
	if earNormal.Len() == 0 {
		return 0, false, false
	}
	earNormal = earNormal.Normalize()

	box := aabb{min: p0, max: p0}
	for _, p := range []mgl64.Vec3{p1, p2} {
		for a := 0; a < 3; a++ {
			box.min[a] = math.Min(box.min[a], p[a])
			box.max[a] = math.Max(box.max[a], p[a])
		}
	}
	pierced := false
	grid.visitOverlapping(box, func(fi int32) {
		if pierced {
			return
		}
		f := &m.Faces[fi]
		if f.HasVertex(prev.v) || f.HasVertex(cur.v) || f.HasVertex(next.v) {
			return
		}
		if triTriIntersect(p0, p1, p2,
			vec64(m.Verts[f.V[0]].P), vec64(m.Verts[f.V[1]].P), vec64(m.Verts[f.V[2]].P)) {
			pierced = true
		}
	})
	if pierced {
		return 0, false, false
	}

	longest := math.Max(p1.Sub(p0).Len(), math.Max(p2.Sub(p1).Len(), p0.Sub(p2).Len()))
	preferred = maxEdge <= 0 || longest <= maxEdge

	quality = math.Max(
		m.normalDeviation(earNormal, prev.face),
		m.normalDeviation(earNormal, cur.face),
	)
	return quality, preferred, true
}

// normalDeviation measures the angle between the ear normal and an
// existing face's normal.
func (m *Mesh) normalDeviation(earNormal mgl64.Vec3, face int32) float64 {
	if face == Border || face < 0 || int(face) >= len(m.Faces) {
		return 0
	}
	fn := vec64(m.Faces[face].N)
	if fn.Len() == 0 {
		return 0
	}
	dot := earNormal.Dot(fn.Normalize())
	dot = math.Max(-1, math.Min(1, dot))
	return math.Acos(dot)
}

// cutEar emits the triangle at ring position i, registers it with the
// grid, and removes the consumed vertex from the ring. The new face
// becomes the flanking face of the fresh border edge.
func (m *Mesh) cutEar(ring []ringEntry, i int, grid *spatialGrid) []ringEntry {
	n := len(ring)
	pi := (i + n - 1) % n
	prev := ring[pi]
	cur := ring[i]
	next := ring[(i+1)%n]

	nf := m.AddFace(prev.v, cur.v, next.v)
	grid.insert(nf)
	ring[pi].face = nf
	return append(ring[:i], ring[i+1:]...)
}
