// Package reader loads models that can be fed to the spatial indices and
// the scene raycaster.
package reader

import (
	"fmt"
	"strings"

	"github.com/achilleasa/raypick/asset"
	"github.com/achilleasa/raypick/batch"
	"github.com/achilleasa/raypick/geom"
	"github.com/achilleasa/raypick/mesh"
	"github.com/go-gl/mathgl/mgl64"
)

// Material describes the raycasting relevant properties of a model material.
type Material struct {
	Name string
	Side geom.Side
}

// Camera is an optional viewpoint stored with the model.
type Camera struct {
	// Vertical FOV in degrees.
	FOV float64

	Eye  mgl64.Vec3
	Look mgl64.Vec3
	Up   mgl64.Vec3
}

// Object is an indexed triangle list with full precision positions.
type Object struct {
	Name string

	// Flat xyz positions.
	Positions []float64

	// Flat uv coordinates; nil if no face of the object defines them.
	UVs []float32

	Indices []uint32

	// Index buffer ranges that use the same model material.
	Groups []mesh.Group

	Bounds geom.Box3

	// Maps (position, uv) pairs to emitted vertices.
	vertexKeys map[[2]int]uint32
	hasUVs     bool
}

func newObject(name string) *Object {
	return &Object{
		Name:       name,
		Bounds:     geom.EmptyBox(),
		vertexKeys: make(map[[2]int]uint32),
	}
}

// Emit a vertex for a face corner reusing vertices that share the same
// position and uv coordinates.
func (o *Object) addVertex(position, uv int, vertexList []mgl64.Vec3, uvList []mgl64.Vec2) {
	key := [2]int{position, uv}
	if index, exists := o.vertexKeys[key]; exists {
		o.Indices = append(o.Indices, index)
		return
	}

	index := uint32(len(o.Positions) / 3)
	o.vertexKeys[key] = index
	o.Indices = append(o.Indices, index)

	p := vertexList[position]
	o.Positions = append(o.Positions, p[0], p[1], p[2])
	o.Bounds = o.Bounds.ExpandByPoint(p)

	if uv >= 0 {
		o.hasUVs = true
		o.UVs = append(o.UVs, float32(uvList[uv][0]), float32(uvList[uv][1]))
	} else {
		o.UVs = append(o.UVs, 0, 0)
	}
}

// Extend the last group with the most recently added triangle or start a
// new group if the material changed.
func (o *Object) extendGroup(materialIndex int) {
	start := len(o.Indices) - 3
	if last := len(o.Groups) - 1; last >= 0 {
		group := &o.Groups[last]
		if group.MaterialIndex == materialIndex && group.Start+group.Count == start {
			group.Count += 3
			return
		}
	}
	o.Groups = append(o.Groups, mesh.Group{Start: start, Count: 3, MaterialIndex: materialIndex})
}

func (o *Object) finalize() {
	if !o.hasUVs {
		o.UVs = nil
	}
	o.vertexKeys = nil
}

// Get the number of triangles in the object.
func (o *Object) TriangleCount() int {
	return len(o.Indices) / 3
}

// Create a mesh geometry for the object.
func (o *Object) Geometry() (*mesh.Geometry, error) {
	g, err := mesh.NewGeometry(o.Positions, o.Indices)
	if err != nil {
		return nil, fmt.Errorf("reader: object %q: %w", o.Name, err)
	}
	if o.UVs != nil {
		g.UV = mesh.NewAttribute(o.UVs, 2)
	}
	g.Groups = append(g.Groups, o.Groups...)
	return g, nil
}

// Instance places an object in the model.
type Instance struct {
	Object    *Object
	Transform mgl64.Mat4

	// World space bounds of the placed object.
	Bounds geom.Box3
}

// Model is the result of reading a model file.
type Model struct {
	Objects   []*Object
	Instances []*Instance
	Materials []*Material

	// Nil if the model does not define a camera.
	Camera *Camera
}

// Get the union of the instance bounds.
func (m *Model) Bounds() geom.Box3 {
	bounds := geom.EmptyBox()
	for _, inst := range m.Instances {
		bounds = bounds.Union(inst.Bounds)
	}
	return bounds
}

// Get the materials of the model as mesh materials. Group material indices
// of the model objects index this list.
func (m *Model) MeshMaterials() []*mesh.Material {
	out := make([]*mesh.Material, len(m.Materials))
	for i, mat := range m.Materials {
		out[i] = &mesh.Material{Name: mat.Name, Side: mat.Side}
	}
	return out
}

// Generate a render view for each instance. Views are laid out one after
// the other in instance order inside the merged buffers produced by
// MergedGeometry.
func (m *Model) BatchViews() []*batch.RenderView {
	views := make([]*batch.RenderView, 0, len(m.Instances))
	var vertStart, indexStart int
	for instIndex, inst := range m.Instances {
		obj := inst.Object

		// Indices are generated by the reader so they are always valid
		indices, _ := geom.NewIndexBuffer(obj.Indices, len(obj.Positions)/3)
		views = append(views, &batch.RenderView{
			ID:         fmt.Sprintf("%s#%d", obj.Name, instIndex),
			Indices:    indices,
			Positions:  obj.Positions,
			Bounds:     obj.Bounds,
			VertStart:  vertStart,
			IndexStart: indexStart,
		})
		vertStart += len(obj.Positions) / 3
		indexStart += len(obj.Indices)
	}
	return views
}

// Build a batch index over all instances. Each member is placed using its
// instance transform.
func (m *Model) BuildBatch(opts batch.BuildOptions) (*batch.Index, error) {
	opts.Transforms = make([]mgl64.Mat4, len(m.Instances))
	for i, inst := range m.Instances {
		opts.Transforms[i] = inst.Transform
	}
	return batch.Build(m.BatchViews(), opts)
}

// Merge all placed instances into a single geometry whose layout matches
// the views returned by BatchViews.
func (m *Model) MergedGeometry() (*mesh.Geometry, error) {
	var (
		positions []float64
		uvs       []float32
		indices   []uint32
		groups    []mesh.Group
		hasUVs    bool
	)
	for _, inst := range m.Instances {
		obj := inst.Object
		vertStart := uint32(len(positions) / 3)
		indexStart := len(indices)

		for i := 0; i+2 < len(obj.Positions); i += 3 {
			p := mgl64.TransformCoordinate(mgl64.Vec3{obj.Positions[i], obj.Positions[i+1], obj.Positions[i+2]}, inst.Transform)
			positions = append(positions, p[0], p[1], p[2])
		}
		if obj.UVs != nil {
			hasUVs = true
			uvs = append(uvs, obj.UVs...)
		} else {
			uvs = append(uvs, make([]float32, 2*len(obj.Positions)/3)...)
		}
		for _, index := range obj.Indices {
			indices = append(indices, vertStart+index)
		}
		for _, group := range obj.Groups {
			group.Start += indexStart
			groups = append(groups, group)
		}
	}

	g, err := mesh.NewGeometry(positions, indices)
	if err != nil {
		return nil, fmt.Errorf("reader: merged geometry: %w", err)
	}
	if hasUVs {
		g.UV = mesh.NewAttribute(uvs, 2)
	}
	g.Groups = groups
	return g, nil
}

// Read a model from a file or URL. The reader is selected by the file
// extension.
func ReadModel(pathToModel string) (*Model, error) {
	if !strings.HasSuffix(strings.ToLower(pathToModel), ".obj") {
		return nil, fmt.Errorf("reader: unsupported model format for %q", pathToModel)
	}

	res, err := asset.NewResource(pathToModel, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	return ReadOBJ(res)
}
