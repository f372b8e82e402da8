package mesh

import (
	"errors"
	"fmt"
	"math"

	"github.com/achilleasa/raypick/batch"
	"github.com/achilleasa/raypick/geom"
	"github.com/achilleasa/raypick/log"
	"github.com/achilleasa/raypick/scene"
	"github.com/achilleasa/raypick/spatial"
	"github.com/go-gl/mathgl/mgl64"
)

var ErrNoGeometry = errors.New("mesh: no geometry")

var logger = log.New("mesh")

// Mesh is a scene graph leaf that renders a triangle geometry. Raycasts use
// the attached spatial index (BVH) or batch index (BatchBVH) when present
// and fall back to testing every triangle otherwise.
type Mesh struct {
	scene.Node

	Geometry *Geometry

	// A single material applies to the whole geometry; with more than one
	// material the geometry groups select the material of each triangle.
	Materials []*Material

	// Weights of Geometry.MorphPositions.
	MorphInfluences []float64

	Skin *Skin

	BVH      *spatial.Index
	BatchBVH *batch.Index
}

// Create a mesh on the mesh content layer.
func NewMesh(name string, geometry *Geometry, materials ...*Material) *Mesh {
	m := &Mesh{
		Geometry:  geometry,
		Materials: materials,
	}
	m.Init(name)
	m.SetLayers(scene.LayersOf(scene.LayerContentMesh))
	return m
}

// Create a mesh backed by a batch index. The geometry is optional and, when
// set, must be the merged geometry the batch members are views of.
func NewBatchMesh(name string, index *batch.Index, geometry *Geometry, materials ...*Material) *Mesh {
	m := NewMesh(name, geometry, materials...)
	m.BatchBVH = index
	return m
}

// Build a spatial index over the mesh geometry. Morph targets and skinning
// are not taken into account by the index.
func (m *Mesh) BuildBVH(opts ...spatial.Option) error {
	if m.Geometry == nil || m.Geometry.VertexCount() == 0 {
		return ErrNoGeometry
	}

	positions := m.Geometry.Positions64()
	index, err := spatial.New(m.Geometry.TriangleIndices(), positions, geom.BoxFromPositions(positions), opts...)
	if err != nil {
		return fmt.Errorf("mesh: %s: %w", m.Name, err)
	}
	m.BVH = index

	logger.Debugf("built index for mesh %q with %d triangles", m.Name, index.TriangleCount())
	return nil
}

func (m *Mesh) multiMaterial() bool {
	return len(m.Materials) > 1
}

// Raycast implements scene.Object.
func (m *Mesh) Raycast(rc *scene.Raycaster, intersects []scene.Intersection) []scene.Intersection {
	if len(m.Materials) == 0 || (!m.multiMaterial() && m.Materials[0] == nil) {
		return intersects
	}

	matrixWorld := m.MatrixWorld()
	if matrixWorld.Det() == 0 {
		return intersects
	}
	local := rc.Ray.ApplyMatrix4(matrixWorld.Inv())

	switch {
	case m.BVH != nil || m.BatchBVH != nil:
		return m.raycastAccelerated(rc, local, matrixWorld, intersects)
	case m.Geometry != nil:
		return m.raycastGeometry(rc, local, matrixWorld, intersects)
	}
	return intersects
}

// An index hit expressed in the mesh local frame.
type localHit struct {
	geom.Hit
	member *batch.Member
}

func (m *Mesh) raycastAccelerated(rc *scene.Raycaster, local geom.Ray, matrixWorld mgl64.Mat4, intersects []scene.Intersection) []scene.Intersection {
	side := geom.DoubleSide
	if !m.multiMaterial() {
		side = m.Materials[0].Side
	}

	// Per group culling needs every candidate hit
	firstOnly := rc.FirstHitOnly && !m.multiMaterial()

	var hits []localHit
	switch {
	case m.BatchBVH != nil && firstOnly:
		if hit, found := m.BatchBVH.RaycastFirst(local, side); found {
			hits = append(hits, m.fromBatch(hit))
		}
	case m.BatchBVH != nil:
		for _, hit := range m.BatchBVH.Raycast(local, side) {
			hits = append(hits, m.fromBatch(hit))
		}
	case firstOnly:
		if hit, found := m.BVH.RaycastFirst(local, side); found {
			hits = append(hits, localHit{Hit: hit})
		}
	default:
		for _, hit := range m.BVH.Raycast(local, side) {
			hits = append(hits, localHit{Hit: hit})
		}
	}

	var (
		found   bool
		nearest scene.Intersection
	)
	for _, hit := range hits {
		if m.multiMaterial() && !m.acceptGroupHit(local, &hit.Hit) {
			continue
		}

		in, ok := m.toIntersection(rc, matrixWorld, hit.Hit)
		if !ok {
			continue
		}
		in.BatchObject = hit.member

		if !rc.FirstHitOnly {
			intersects = append(intersects, in)
			continue
		}
		if !found || in.Distance < nearest.Distance {
			found, nearest = true, in
		}
	}

	if found {
		intersects = append(intersects, nearest)
	}
	return intersects
}

// Convert a batch hit so that face and triangle indices refer to the merged
// buffers.
func (m *Mesh) fromBatch(hit batch.Hit) localHit {
	view := hit.Member.RenderView
	vertOffset := uint32(view.VertStart)
	hit.Face.A += vertOffset
	hit.Face.B += vertOffset
	hit.Face.C += vertOffset
	hit.FaceIndex += view.IndexStart / 3
	return localHit{Hit: hit.Hit, member: hit.Member}
}

// Apply the side of the material that the hit triangle group maps to and
// record the group material index.
func (m *Mesh) acceptGroupHit(local geom.Ray, hit *geom.Hit) bool {
	if m.Geometry == nil {
		return false
	}
	group := m.Geometry.groupAt(3 * hit.FaceIndex)
	if group == nil || group.MaterialIndex >= len(m.Materials) {
		return false
	}
	material := m.Materials[group.MaterialIndex]
	if material == nil || !material.Side.Accepts(local.Direction, hit.Face.Normal) {
		return false
	}
	hit.Face.MaterialIndex = group.MaterialIndex
	return true
}

// Move an index hit to world space, interpolate its texture coordinates and
// apply the raycaster range.
func (m *Mesh) toIntersection(rc *scene.Raycaster, matrixWorld mgl64.Mat4, hit geom.Hit) (scene.Intersection, bool) {
	if m.Geometry != nil && faceInRange(hit.Face, m.Geometry.VertexCount()) {
		tri := geom.Triangle{
			A: m.Geometry.Position(int(hit.Face.A)),
			B: m.Geometry.Position(int(hit.Face.B)),
			C: m.Geometry.Position(int(hit.Face.C)),
		}
		hit.UV = interpolate(m.Geometry.UV, tri, hit.Point, hit.Face)
		hit.UV2 = interpolate(m.Geometry.UV2, tri, hit.Point, hit.Face)
	}

	point := mgl64.TransformCoordinate(hit.Point, matrixWorld)
	distance := rc.Ray.DistanceTo(point)
	if !rc.InRange(distance) {
		return scene.Intersection{}, false
	}

	face := hit.Face
	return scene.Intersection{
		Distance:  distance,
		Point:     point,
		Object:    m,
		Face:      &face,
		FaceIndex: hit.FaceIndex,
		UV:        hit.UV,
		UV2:       hit.UV2,
	}, true
}

// Check that all face vertices are below count.
func faceInRange(face geom.Face, count int) bool {
	return int(face.A) < count && int(face.B) < count && int(face.C) < count
}

func interpolate(attr *Attribute, tri geom.Triangle, p mgl64.Vec3, face geom.Face) *mgl64.Vec2 {
	if attr == nil || !faceInRange(face, attr.Count()) {
		return nil
	}
	uv, ok := tri.InterpolateVec2(p, attr.Vec2(int(face.A)), attr.Vec2(int(face.B)), attr.Vec2(int(face.C)))
	if !ok {
		return nil
	}
	return &uv
}

// Get the position of a vertex after applying morph targets and skinning.
func (m *Mesh) vertexPosition(vertex int) mgl64.Vec3 {
	g := m.Geometry
	p := g.Position(vertex)

	if len(g.MorphPositions) != 0 && len(m.MorphInfluences) != 0 {
		var morphed mgl64.Vec3
		for i, morph := range g.MorphPositions {
			if i >= len(m.MorphInfluences) || m.MorphInfluences[i] == 0 {
				continue
			}
			delta := morph.Vec3(vertex)
			if !g.MorphTargetsRelative {
				delta = delta.Sub(p)
			}
			morphed = morphed.Add(delta.Mul(m.MorphInfluences[i]))
		}
		p = p.Add(morphed)
	}

	if m.Skin != nil {
		p = m.Skin.BoneTransform(g, vertex, p)
	}
	return p
}

// Get the local bounds used for early rejection. Skinned meshes compute
// their bounds from the posed vertices as bones may have moved.
func (m *Mesh) localBounds() (geom.Box3, geom.Sphere) {
	g := m.Geometry
	if m.Skin == nil {
		box, sphere := g.BoundingBox, g.BoundingSphere
		if sphere == nil {
			s := g.ComputeBoundingSphere()
			sphere = &s
		}
		if box == nil {
			b := g.ComputeBoundingBox()
			box = &b
		}
		return *box, *sphere
	}

	box := geom.EmptyBox()
	for i := 0; i < g.VertexCount(); i++ {
		box = box.ExpandByPoint(m.vertexPosition(i))
	}
	center := box.Center()
	var maxDistSq float64
	for i := 0; i < g.VertexCount(); i++ {
		maxDistSq = math.Max(maxDistSq, m.vertexPosition(i).Sub(center).LenSqr())
	}
	return box, geom.Sphere{Center: center, Radius: math.Sqrt(maxDistSq)}
}
