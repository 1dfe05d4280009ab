package mesh

import "github.com/go-gl/mathgl/mgl32"

// cubeVerts are the corners of the reference cube of side 2 centered at
// the origin.
var cubeVerts = []mgl32.Vec3{
	{-1, -1, -1}, // 0
	{1, -1, -1},  // 1
	{1, 1, -1},   // 2
	{-1, 1, -1},  // 3
	{-1, -1, 1},  // 4
	{1, -1, 1},   // 5
	{1, 1, 1},    // 6
	{-1, 1, 1},   // 7
}

// cubeFaces are twelve coherently oriented, outward-facing triangles.
var cubeFaces = [][3]int32{
	{0, 3, 2}, {0, 2, 1}, // bottom (z = -1)
	{4, 5, 6}, {4, 6, 7}, // top (z = +1)
	{0, 1, 5}, {0, 5, 4}, // front (y = -1)
	{3, 7, 6}, {3, 6, 2}, // back (y = +1)
	{0, 4, 7}, {0, 7, 3}, // left (x = -1)
	{1, 2, 6}, {1, 6, 5}, // right (x = +1)
}

// buildCube returns the reference cube: 8 vertices, 12 faces, area 24,
// volume +8.
func buildCube() *Mesh {
	return buildCubeAt(mgl32.Vec3{})
}

func buildCubeAt(offset mgl32.Vec3) *Mesh {
	m := New("cube")
	addCube(m, offset)
	return m
}

func addCube(m *Mesh, offset mgl32.Vec3) {
	base := int32(len(m.Verts))
	for _, p := range cubeVerts {
		m.AddVertex(p.Add(offset))
	}
	for _, f := range cubeFaces {
		m.AddFace(base+f[0], base+f[1], base+f[2])
	}
}

// buildCubeWithHole returns the cube with both top faces removed: one
// four-edge border loop.
func buildCubeWithHole() *Mesh {
	m := New("holed cube")
	for _, p := range cubeVerts {
		m.AddVertex(p)
	}
	for i, f := range cubeFaces {
		if i == 2 || i == 3 {
			continue // top
		}
		m.AddFace(f[0], f[1], f[2])
	}
	return m
}

// buildCubeWithFin returns the cube plus an extra triangle glued to the
// cube edge (0,1), making that edge non-manifold.
func buildCubeWithFin() *Mesh {
	m := buildCube()
	apex := m.AddVertex(mgl32.Vec3{0, -1.5, -1.5})
	m.AddFace(0, 1, apex)
	return m
}

// buildTriangle returns a single isolated triangle.
func buildTriangle() *Mesh {
	m := New("triangle")
	a := m.AddVertex(mgl32.Vec3{0, 0, 0})
	b := m.AddVertex(mgl32.Vec3{1, 0, 0})
	c := m.AddVertex(mgl32.Vec3{0, 1, 0})
	m.AddFace(a, b, c)
	return m
}
