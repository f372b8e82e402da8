package geom

import "github.com/go-gl/mathgl/mgl64"

// Side selects which triangle faces a material renders and, therefore,
// which faces a ray may hit.
type Side uint8

const (
	FrontSide Side = iota
	BackSide
	DoubleSide
)

func (s Side) String() string {
	switch s {
	case FrontSide:
		return "front"
	case BackSide:
		return "back"
	case DoubleSide:
		return "double"
	}
	return "unknown"
}

// Check whether a hit on a face with the given front face normal survives
// the culling rules of this side.
func (s Side) Accepts(rayDir, faceNormal mgl64.Vec3) bool {
	facing := rayDir.Dot(faceNormal)
	switch s {
	case FrontSide:
		return facing < 0
	case BackSide:
		return facing > 0
	}
	return true
}

// Face metadata for a ray hit.
type Face struct {
	// Vertex indices of the hit triangle.
	A, B, C uint32

	// Front face normal in the space of the source geometry.
	Normal mgl64.Vec3

	// The material group the triangle belongs to.
	MaterialIndex int
}

// A raw ray hit. Point and Distance are expressed in the frame of the ray
// that produced the hit.
type Hit struct {
	Point    mgl64.Vec3
	Distance float64

	Face      Face
	FaceIndex int

	// Interpolated texture coordinates; nil when the geometry does not
	// define them.
	UV  *mgl64.Vec2
	UV2 *mgl64.Vec2
}
