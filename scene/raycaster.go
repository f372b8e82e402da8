package scene

import (
	"math"
	"sort"

	"github.com/achilleasa/raypick/batch"
	"github.com/achilleasa/raypick/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// Intersection is a world space hit reported by a scene raycast.
type Intersection struct {
	Distance float64
	Point    mgl64.Vec3

	// The leaf object that was hit.
	Object Object

	// The batch member that owns the hit triangle when the leaf is backed
	// by a batch index.
	BatchObject *batch.Member

	Face      *geom.Face
	FaceIndex int

	UV  *mgl64.Vec2
	UV2 *mgl64.Vec2
}

// Raycaster casts rays against the subset of the scene graph whose layers
// are enabled.
type Raycaster struct {
	Ray geom.Ray

	// Hits outside [Near, Far] are discarded.
	Near float64
	Far  float64

	// Leafs backed by an acceleration structure report at most one hit.
	FirstHitOnly bool

	// Enabled layers.
	Layers Layers

	// Optional hook invoked before an object is tested.
	OnObjectIntersectionTest func(Object)
}

// Create a raycaster that only visits the content, mesh and line layers.
// A zero far value means no far limit.
func NewRaycaster(origin, direction mgl64.Vec3, near, far float64) *Raycaster {
	if far == 0 {
		far = math.Inf(1)
	}
	return &Raycaster{
		Ray:    geom.NewRay(origin, direction),
		Near:   near,
		Far:    far,
		Layers: LayersOf(LayerContent, LayerContentMesh, LayerContentLine),
	}
}

// Update the ray origin and direction.
func (rc *Raycaster) Set(origin, direction mgl64.Vec3) {
	rc.Ray = geom.NewRay(origin, direction)
}

// Point the ray from the camera through a location given in normalized
// device coordinates.
func (rc *Raycaster) SetFromCamera(ndc mgl64.Vec2, cam *Camera) {
	target := mgl64.TransformCoordinate(mgl64.Vec3{ndc[0], ndc[1], 0.5}, cam.InvViewProjMat())
	rc.Set(cam.Position, target.Sub(cam.Position))
}

// Check whether a distance lies inside the raycaster range.
func (rc *Raycaster) InRange(distance float64) bool {
	return distance >= rc.Near && distance <= rc.Far
}

// Intersect a single object (and optionally its descendants) and return
// the hits sorted by distance.
func (rc *Raycaster) IntersectObject(object Object, recursive bool, intersects []Intersection) []Intersection {
	intersects = rc.intersect(object, recursive, intersects)
	sortByDistance(intersects)
	return intersects
}

// Intersect a list of objects (and optionally their descendants) and return
// the hits sorted by distance.
func (rc *Raycaster) IntersectObjects(objects []Object, recursive bool, intersects []Intersection) []Intersection {
	for _, object := range objects {
		intersects = rc.intersect(object, recursive, intersects)
	}
	sortByDistance(intersects)
	return intersects
}

func (rc *Raycaster) intersect(object Object, recursive bool, intersects []Intersection) []Intersection {
	if object.Layers().Test(rc.Layers) {
		if rc.OnObjectIntersectionTest != nil {
			rc.OnObjectIntersectionTest(object)
		}
		intersects = object.Raycast(rc, intersects)
	}

	// Children are visited even when the parent is filtered out
	if recursive {
		for _, child := range object.Children() {
			intersects = rc.intersect(child, true, intersects)
		}
	}
	return intersects
}

func sortByDistance(intersects []Intersection) {
	sort.SliceStable(intersects, func(i, j int) bool {
		return intersects[i].Distance < intersects[j].Distance
	})
}
