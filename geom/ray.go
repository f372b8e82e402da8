// Package geom provides the full precision primitives shared by the
// acceleration structures and the scene raycaster.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// A Ray is a half-line with a normalized direction.
type Ray struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
}

// Create a new ray. The direction is normalized.
func NewRay(origin, direction mgl64.Vec3) Ray {
	return Ray{Origin: origin, Direction: direction.Normalize()}
}

// Get the point at distance t along the ray.
func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// Return a copy of the ray transformed by an affine matrix. The direction of
// the returned ray is re-normalized.
func (r Ray) ApplyMatrix4(m mgl64.Mat4) Ray {
	return Ray{
		Origin:    mgl64.TransformCoordinate(r.Origin, m),
		Direction: m.Mul4x1(r.Direction.Vec4(0)).Vec3().Normalize(),
	}
}

// Get the distance between the ray origin and a point.
func (r Ray) DistanceTo(p mgl64.Vec3) float64 {
	return p.Sub(r.Origin).Len()
}

// Get the squared distance between the ray and a point.
func (r Ray) DistanceSqToPoint(p mgl64.Vec3) float64 {
	toPoint := p.Sub(r.Origin)
	along := toPoint.Dot(r.Direction)

	// Point lies behind the ray origin
	if along < 0 {
		return toPoint.Dot(toPoint)
	}

	d := r.At(along).Sub(p)
	return d.Dot(d)
}

// Check whether the ray passes through a sphere.
func (r Ray) IntersectsSphere(s Sphere) bool {
	return r.DistanceSqToPoint(s.Center) <= s.Radius*s.Radius
}

// Check whether the ray passes through a box.
func (r Ray) IntersectsBox(b Box3) bool {
	_, hit := r.IntersectBox(b)
	return hit
}

// Intersect the ray with an axis aligned box using the slab method. Returns
// the entry point, or the exit point if the origin lies inside the box.
func (r Ray) IntersectBox(b Box3) (mgl64.Vec3, bool) {
	tmin, tmax, hit := r.slabRange(b)
	if !hit {
		return mgl64.Vec3{}, false
	}
	if tmin >= 0 {
		return r.At(tmin), true
	}
	return r.At(tmax), true
}

// Get the distance along the ray where it enters a box (0 if the origin
// is inside the box).
func (r Ray) BoxDistance(b Box3) (float64, bool) {
	tmin, _, hit := r.slabRange(b)
	if !hit {
		return 0, false
	}
	return math.Max(tmin, 0), true
}

func (r Ray) slabRange(b Box3) (float64, float64, bool) {
	if b.IsEmpty() {
		return 0, 0, false
	}

	tmin, tmax := slab(r.Origin[0], r.Direction[0], b.Min[0], b.Max[0])
	for axis := 1; axis < 3; axis++ {
		amin, amax := slab(r.Origin[axis], r.Direction[axis], b.Min[axis], b.Max[axis])
		if tmin > amax || amin > tmax {
			return 0, 0, false
		}

		// The NaN checks guard against rays starting exactly on a slab
		// plane while running parallel to it.
		if amin > tmin || math.IsNaN(tmin) {
			tmin = amin
		}
		if amax < tmax || math.IsNaN(tmax) {
			tmax = amax
		}
	}

	if tmax < 0 {
		return 0, 0, false
	}
	return tmin, tmax, true
}

func slab(origin, dir, min, max float64) (float64, float64) {
	invDir := 1 / dir
	if invDir >= 0 {
		return (min - origin) * invDir, (max - origin) * invDir
	}
	return (max - origin) * invDir, (min - origin) * invDir
}

// Intersect the ray with triangle abc. When backfaceCulling is set, triangles
// whose counter-clockwise winding faces away from the ray are ignored.
func (r Ray) IntersectTriangle(a, b, c mgl64.Vec3, backfaceCulling bool) (mgl64.Vec3, bool) {
	edge1 := b.Sub(a)
	edge2 := c.Sub(a)
	normal := edge1.Cross(edge2)

	var sign float64
	ddn := r.Direction.Dot(normal)
	switch {
	case ddn > 0:
		if backfaceCulling {
			return mgl64.Vec3{}, false
		}
		sign = 1
	case ddn < 0:
		sign = -1
		ddn = -ddn
	default:
		return mgl64.Vec3{}, false
	}

	diff := r.Origin.Sub(a)
	ddqxe2 := sign * r.Direction.Dot(diff.Cross(edge2))
	if ddqxe2 < 0 {
		return mgl64.Vec3{}, false
	}

	dde1xq := sign * r.Direction.Dot(edge1.Cross(diff))
	if dde1xq < 0 {
		return mgl64.Vec3{}, false
	}

	if ddqxe2+dde1xq > ddn {
		return mgl64.Vec3{}, false
	}

	// Triangle lies behind the ray origin
	qdn := -sign * diff.Dot(normal)
	if qdn < 0 {
		return mgl64.Vec3{}, false
	}

	return r.At(qdn / ddn), true
}

// Intersect the ray with a triangle honoring the culling rules of a material side.
func (r Ray) IntersectTriangleSide(a, b, c mgl64.Vec3, side Side) (mgl64.Vec3, bool) {
	if side == BackSide {
		return r.IntersectTriangle(c, b, a, true)
	}
	return r.IntersectTriangle(a, b, c, side != DoubleSide)
}
