package geom

import "github.com/go-gl/mathgl/mgl64"

// A plane defined by n.p + D = 0. Points with a positive distance lie on
// the side the normal points to.
type Plane struct {
	Normal mgl64.Vec3
	D      float64
}

func (p Plane) normalize() Plane {
	l := p.Normal.Len()
	if l == 0 {
		return p
	}
	return Plane{Normal: p.Normal.Mul(1 / l), D: p.D / l}
}

// Get the signed distance between the plane and a point.
func (p Plane) DistanceToPoint(v mgl64.Vec3) float64 {
	return p.Normal.Dot(v) + p.D
}

// Frustum planes, ordered right, left, bottom, top, far, near. All normals
// point inwards.
type Frustum [6]Plane

// Extract the frustum planes of a combined projection * view matrix using
// the Gribb/Hartmann method.
func FrustumFromMatrix(m mgl64.Mat4) Frustum {
	row := func(r int) [4]float64 {
		return [4]float64{m[r], m[4+r], m[8+r], m[12+r]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	plane := func(a [4]float64, b [4]float64, sign float64) Plane {
		return Plane{
			Normal: mgl64.Vec3{a[0] + sign*b[0], a[1] + sign*b[1], a[2] + sign*b[2]},
			D:      a[3] + sign*b[3],
		}.normalize()
	}

	return Frustum{
		plane(r3, r0, -1),
		plane(r3, r0, 1),
		plane(r3, r1, 1),
		plane(r3, r1, -1),
		plane(r3, r2, -1),
		plane(r3, r2, 1),
	}
}

// Check whether p lies inside the frustum.
func (f Frustum) ContainsPoint(p mgl64.Vec3) bool {
	for _, plane := range f {
		if plane.DistanceToPoint(p) < 0 {
			return false
		}
	}
	return true
}

// Conservative box test; returns false only if the box is fully outside
// one of the frustum planes.
func (f Frustum) IntersectsBox(b Box3) bool {
	for _, plane := range f {
		var p mgl64.Vec3
		for axis := 0; axis < 3; axis++ {
			if plane.Normal[axis] > 0 {
				p[axis] = b.Max[axis]
			} else {
				p[axis] = b.Min[axis]
			}
		}
		if plane.DistanceToPoint(p) < 0 {
			return false
		}
	}
	return true
}

// Check whether the box lies entirely inside the frustum.
func (f Frustum) ContainsBox(b Box3) bool {
	for _, plane := range f {
		var p mgl64.Vec3
		for axis := 0; axis < 3; axis++ {
			if plane.Normal[axis] > 0 {
				p[axis] = b.Min[axis]
			} else {
				p[axis] = b.Max[axis]
			}
		}
		if plane.DistanceToPoint(p) < 0 {
			return false
		}
	}
	return true
}
