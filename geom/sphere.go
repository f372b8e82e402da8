package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// A bounding sphere. A negative radius denotes an empty sphere.
type Sphere struct {
	Center mgl64.Vec3
	Radius float64
}

// Build a sphere centered on the box of a flat xyz position list.
func SphereFromPositions(positions []float64) Sphere {
	box := BoxFromPositions(positions)
	if box.IsEmpty() {
		return Sphere{Radius: -1}
	}

	center := box.Center()
	var maxDistSq float64
	for i := 0; i+2 < len(positions); i += 3 {
		d := mgl64.Vec3{positions[i], positions[i+1], positions[i+2]}.Sub(center)
		maxDistSq = math.Max(maxDistSq, d.Dot(d))
	}
	return Sphere{Center: center, Radius: math.Sqrt(maxDistSq)}
}

// Returns true if the sphere has a negative radius.
func (s Sphere) IsEmpty() bool {
	return s.Radius < 0
}

// Transform the sphere by m. The radius is scaled by the largest axis scale
// of the matrix so the result still encloses the transformed volume.
func (s Sphere) ApplyMatrix4(m mgl64.Mat4) Sphere {
	return Sphere{
		Center: mgl64.TransformCoordinate(s.Center, m),
		Radius: s.Radius * maxScaleOnAxis(m),
	}
}

func maxScaleOnAxis(m mgl64.Mat4) float64 {
	var maxSq float64
	for col := 0; col < 3; col++ {
		axis := m.Col(col).Vec3()
		maxSq = math.Max(maxSq, axis.Dot(axis))
	}
	return math.Sqrt(maxSq)
}
