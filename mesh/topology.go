package mesh

import "fmt"

// edgeKey is an undirected edge: a < b.
type edgeKey struct {
	a, b int32
}

func undirected(a, b int32) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// edgeSlot locates one edge occurrence: face index plus edge slot.
type edgeSlot struct {
	face int32
	slot int8
}

// BuildFaceTopology recomputes face-face adjacency by hashing undirected
// edge keys. Edges with exactly two incident faces are paired; edges with
// one are flagged border; edges with three or more are flagged
// non-manifold on every incident slot and left unpaired. Vertex border
// bits are rewritten from the border edges. The operation is idempotent
// and stamps the mesh mark so TopologyCurrent reports true until the next
// structural edit.
func (m *Mesh) BuildFaceTopology() {
	edges := make(map[edgeKey][]edgeSlot, m.fn*3/2)
	for i := range m.Faces {
		f := &m.Faces[i]
		f.FF = [3]int32{Border, Border, Border}
		f.Flags &^= FlagEdgeBorder0 | FlagEdgeBorder1 | FlagEdgeBorder2 |
			FlagEdgeNonManifold0 | FlagEdgeNonManifold1 | FlagEdgeNonManifold2
		if f.Deleted() {
			continue
		}
		for k := 0; k < 3; k++ {
			a, b := f.Edge(k)
			key := undirected(a, b)
			edges[key] = append(edges[key], edgeSlot{face: int32(i), slot: int8(k)})
		}
	}

	for i := range m.Verts {
		m.Verts[i].Flags &^= FlagBorder
	}

	borderEdges, nonManifold := 0, 0
	for key, slots := range edges {
		switch {
		case len(slots) == 2:
			f, g := slots[0], slots[1]
			m.Faces[f.face].FF[f.slot] = g.face
			m.Faces[g.face].FF[g.slot] = f.face
		case len(slots) == 1:
			s := slots[0]
			m.Faces[s.face].Flags |= FlagEdgeBorder0 << s.slot
			m.Verts[key.a].Flags |= FlagBorder
			m.Verts[key.b].Flags |= FlagBorder
			borderEdges++
		default:
			for _, s := range slots {
				m.Faces[s.face].Flags |= FlagEdgeNonManifold0 << s.slot
			}
			nonManifold++
		}
	}

	m.topo = topoState{mark: m.mark, borderEdges: borderEdges, nonManifold: nonManifold}
	if m.topo.mark == 0 {
		// an untouched empty mesh still counts as built
		m.bumpMark()
		m.topo.mark = m.mark
	}
}

// RebuildTopology compacts the mesh and rebuilds face-face adjacency from
// scratch. It replaces the export/re-import round trip the repair driver
// historically used between major steps, and panics if the rebuilt
// adjacency is not consistent.
func (m *Mesh) RebuildTopology() {
	m.Compact()
	m.BuildFaceTopology()
	if err := m.CheckFaceTopology(); err != nil {
		panic(fmt.Sprintf("mesh: inconsistent adjacency after rebuild: %v", err))
	}
}

// requireTopology guards predicates that read face-face adjacency.
func (m *Mesh) requireTopology() {
	if !m.TopologyCurrent() {
		panic("mesh: face-face adjacency is stale; call BuildFaceTopology first")
	}
}

// CheckFaceTopology verifies the adjacency invariant: for every paired
// edge (a,b) of face f, the neighbor holds the reversed-or-same edge and
// points back at f. A nil return means the adjacency is consistent.
func (m *Mesh) CheckFaceTopology() error {
	for i := range m.Faces {
		f := &m.Faces[i]
		if f.Deleted() {
			continue
		}
		for k := 0; k < 3; k++ {
			g := f.FF[k]
			if g == Border {
				continue
			}
			if g < 0 || int(g) >= len(m.Faces) {
				return fmt.Errorf("face %d edge %d: neighbor %d out of range", i, k, g)
			}
			n := &m.Faces[g]
			if n.Deleted() {
				return fmt.Errorf("face %d edge %d: neighbor %d is deleted", i, k, g)
			}
			a, b := f.Edge(k)
			slot := n.slotOf(a, b)
			if slot < 0 {
				return fmt.Errorf("face %d edge %d: neighbor %d does not share edge (%d,%d)", i, k, g, a, b)
			}
			if n.FF[slot] != int32(i) {
				return fmt.Errorf("face %d edge %d: neighbor %d points back at %d", i, k, g, n.FF[slot])
			}
		}
	}
	return nil
}

// slotOf returns the edge slot of f holding the undirected edge (a,b),
// or -1 when the face does not contain it.
func (f *Face) slotOf(a, b int32) int {
	for k := 0; k < 3; k++ {
		ea, eb := f.Edge(k)
		if (ea == a && eb == b) || (ea == b && eb == a) {
			return k
		}
	}
	return -1
}

// BorderEdgeCount returns the number of edges with exactly one incident
// face, as recorded by the last topology build.
func (m *Mesh) BorderEdgeCount() int {
	m.requireTopology()
	return m.topo.borderEdges
}

// NonManifoldEdgeCount returns the number of edges with three or more
// incident faces, as recorded by the last topology build.
func (m *Mesh) NonManifoldEdgeCount() int {
	m.requireTopology()
	return m.topo.nonManifold
}

// IsWatertight reports whether the mesh has no border edges and no
// non-manifold edges.
func (m *Mesh) IsWatertight() bool {
	m.requireTopology()
	return m.topo.borderEdges == 0 && m.topo.nonManifold == 0
}

// IsCoherentlyOriented reports whether every interior edge is traversed
// in opposite directions by its two incident faces.
func (m *Mesh) IsCoherentlyOriented() bool {
	m.requireTopology()
	for i := range m.Faces {
		f := &m.Faces[i]
		if f.Deleted() {
			continue
		}
		for k := 0; k < 3; k++ {
			g := f.FF[k]
			if g == Border || g <= int32(i) {
				continue // each pair once
			}
			a, b := f.Edge(k)
			n := &m.Faces[g]
			slot := n.slotOf(a, b)
			if slot < 0 {
				continue
			}
			na, nb := n.Edge(slot)
			if na == a && nb == b {
				return false // same direction on both sides
			}
		}
	}
	return true
}

// ShellCount returns the number of connected components of the face-face
// adjacency graph.
func (m *Mesh) ShellCount() int {
	m.requireTopology()
	visited := make([]bool, len(m.Faces))
	queue := make([]int32, 0, 64)
	shells := 0
	for i := range m.Faces {
		if m.Faces[i].Deleted() || visited[i] {
			continue
		}
		shells++
		visited[i] = true
		queue = append(queue[:0], int32(i))
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for k := 0; k < 3; k++ {
				g := m.Faces[cur].FF[k]
				if g == Border || visited[g] {
					continue
				}
				visited[g] = true
				queue = append(queue, g)
			}
		}
	}
	return shells
}

// borderEdge is one border half-edge, directed as its owning face winds.
type borderEdge struct {
	face int32
	slot int8
	from int32
	to   int32
}

// borderLoops enumerates the maximal closed walks along border edges.
// Each border edge is visited exactly once; the walk advances through the
// next unvisited border edge around the current endpoint. Loops that fail
// to close (possible on pinched or corrupt borders) are still returned so
// every border edge lands in exactly one walk.
func (m *Mesh) borderLoops() [][]borderEdge {
	m.requireTopology()

	all := make([]borderEdge, 0, m.topo.borderEdges)
	byVertex := make(map[int32][]int, m.topo.borderEdges)
	for i := range m.Faces {
		f := &m.Faces[i]
		if f.Deleted() {
			continue
		}
		for k := 0; k < 3; k++ {
			if !f.BorderEdge(k) {
				continue
			}
			a, b := f.Edge(k)
			idx := len(all)
			all = append(all, borderEdge{face: int32(i), slot: int8(k), from: a, to: b})
			byVertex[a] = append(byVertex[a], idx)
			byVertex[b] = append(byVertex[b], idx)
		}
	}

	used := make([]bool, len(all))
	var loops [][]borderEdge
	for start := range all {
		if used[start] {
			continue
		}
		used[start] = true
		loop := []borderEdge{all[start]}
		at := all[start].to
		for at != all[start].from {
			next := -1
			for _, idx := range byVertex[at] {
				if !used[idx] {
					next = idx
					break
				}
			}
			if next < 0 {
				break // open walk on a pinched border
			}
			used[next] = true
			e := all[next]
			if e.from != at {
				e.from, e.to = e.to, e.from
			}
			loop = append(loop, e)
			at = e.to
		}
		loops = append(loops, loop)
	}
	return loops
}

// CountHoles returns the number of distinct closed walks along border
// edges. The count is only meaningful when the mesh has no non-manifold
// edges; callers gate on NonManifoldEdgeCount.
func (m *Mesh) CountHoles() int {
	return len(m.borderLoops())
}
