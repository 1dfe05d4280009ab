package mesh

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// GLTFLoader loads glTF/GLB files, geometry only: triangle primitives'
// positions and indices, with the node hierarchy's transforms applied.
// Materials, textures and animations are ignored.
type GLTFLoader struct{}

// NewGLTFLoader creates a glTF loader.
func NewGLTFLoader() *GLTFLoader {
	return &GLTFLoader{}
}

// LoadFile loads a glTF or GLB file and returns the merged scene
// geometry.
func (l *GLTFLoader) LoadFile(path string) (*Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}

	m := New(path)
	if len(doc.Scenes) > 0 {
		sceneIdx := 0
		if doc.Scene != nil {
			sceneIdx = int(*doc.Scene)
		}
		for _, nodeIdx := range doc.Scenes[sceneIdx].Nodes {
			if err := l.processNode(doc, int(nodeIdx), mgl32.Ident4(), m); err != nil {
				return nil, err
			}
		}
	} else {
		for i := range doc.Nodes {
			if err := l.processNode(doc, i, mgl32.Ident4(), m); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// processNode accumulates the node transform and appends the node's mesh
// primitives, then recurses into children.
func (l *GLTFLoader) processNode(doc *gltf.Document, nodeIdx int, parent mgl32.Mat4, m *Mesh) error {
	node := doc.Nodes[nodeIdx]

	local := mgl32.Ident4()
	if node.Matrix != [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1} {
		for i, v := range node.Matrix {
			local[i] = float32(v) // both column-major
		}
	} else {
		t := node.Translation
		r := node.Rotation
		s := node.Scale
		local = mgl32.Translate3D(float32(t[0]), float32(t[1]), float32(t[2]))
		quat := mgl32.Quat{
			W: float32(r[3]),
			V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])},
		}
		if quat.Len() > 0 {
			local = local.Mul4(quat.Normalize().Mat4())
		}
		if s != [3]float64{0, 0, 0} {
			local = local.Mul4(mgl32.Scale3D(float32(s[0]), float32(s[1]), float32(s[2])))
		}
	}
	world := parent.Mul4(local)

	if node.Mesh != nil {
		if err := l.appendMesh(doc, doc.Meshes[int(*node.Mesh)], world, m); err != nil {
			return err
		}
	}
	for _, child := range node.Children {
		if err := l.processNode(doc, int(child), world, m); err != nil {
			return err
		}
	}
	return nil
}

func (l *GLTFLoader) appendMesh(doc *gltf.Document, gm *gltf.Mesh, world mgl32.Mat4, m *Mesh) error {
	for _, prim := range gm.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles && prim.Mode != 0 {
			continue
		}
		posIdx, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			continue
		}
		positions, err := modeler.ReadPosition(doc, doc.Accessors[int(posIdx)], nil)
		if err != nil {
			return fmt.Errorf("read positions: %w", err)
		}

		base := int32(len(m.Verts))
		for _, p := range positions {
			wp := mgl32.TransformCoordinate(mgl32.Vec3{p[0], p[1], p[2]}, world)
			m.AddVertex(wp)
		}

		if prim.Indices != nil {
			indices, err := modeler.ReadIndices(doc, doc.Accessors[int(*prim.Indices)], nil)
			if err != nil {
				return fmt.Errorf("read indices: %w", err)
			}
			for i := 0; i+2 < len(indices); i += 3 {
				m.AddFace(
					base+int32(indices[i]),
					base+int32(indices[i+1]),
					base+int32(indices[i+2]),
				)
			}
		} else {
			for i := 0; i+2 < len(positions); i += 3 {
				m.AddFace(base+int32(i), base+int32(i+1), base+int32(i+2))
			}
		}
	}
	return nil
}

// LoadGLB loads a glTF/GLB file with default settings.
func LoadGLB(path string) (*Mesh, error) {
	return NewGLTFLoader().LoadFile(path)
}
