package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// An axis aligned bounding box.
type Box3 struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// Create an empty box that can be grown via ExpandByPoint or Union.
func EmptyBox() Box3 {
	return Box3{
		Min: mgl64.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)},
		Max: mgl64.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)},
	}
}

// Create a box enclosing a flat xyz position list.
func BoxFromPositions(positions []float64) Box3 {
	box := EmptyBox()
	for i := 0; i+2 < len(positions); i += 3 {
		box = box.ExpandByPoint(mgl64.Vec3{positions[i], positions[i+1], positions[i+2]})
	}
	return box
}

// Returns true if the box min extent exceeds its max extent along any axis.
func (b Box3) IsEmpty() bool {
	return b.Max[0] < b.Min[0] || b.Max[1] < b.Min[1] || b.Max[2] < b.Min[2]
}

// Returns true if any of the box extents is not a finite number.
func (b Box3) IsDegenerate() bool {
	for axis := 0; axis < 3; axis++ {
		if !isFinite(b.Min[axis]) || !isFinite(b.Max[axis]) {
			return true
		}
	}
	return false
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Grow the box so it includes p.
func (b Box3) ExpandByPoint(p mgl64.Vec3) Box3 {
	for axis := 0; axis < 3; axis++ {
		b.Min[axis] = math.Min(b.Min[axis], p[axis])
		b.Max[axis] = math.Max(b.Max[axis], p[axis])
	}
	return b
}

// Get the smallest box enclosing both boxes.
func (b Box3) Union(other Box3) Box3 {
	if other.IsEmpty() {
		return b
	}
	if b.IsEmpty() {
		return other
	}
	return b.ExpandByPoint(other.Min).ExpandByPoint(other.Max)
}

// Get box center.
func (b Box3) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Get box extents.
func (b Box3) Size() mgl64.Vec3 {
	if b.IsEmpty() {
		return mgl64.Vec3{}
	}
	return b.Max.Sub(b.Min)
}

// Check whether p lies inside or on the surface of the box.
func (b Box3) ContainsPoint(p mgl64.Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

// Check whether two boxes overlap.
func (b Box3) IntersectsBox(other Box3) bool {
	return !(other.Max[0] < b.Min[0] || other.Min[0] > b.Max[0] ||
		other.Max[1] < b.Min[1] || other.Min[1] > b.Max[1] ||
		other.Max[2] < b.Min[2] || other.Min[2] > b.Max[2])
}

// Grow the box by a fixed margin along each axis.
func (b Box3) ExpandByScalar(s float64) Box3 {
	return Box3{
		Min: b.Min.Sub(mgl64.Vec3{s, s, s}),
		Max: b.Max.Add(mgl64.Vec3{s, s, s}),
	}
}

// Transform the 8 box corners by m and return the box enclosing them.
func (b Box3) ApplyMatrix4(m mgl64.Mat4) Box3 {
	if b.IsEmpty() {
		return b
	}

	out := EmptyBox()
	for corner := 0; corner < 8; corner++ {
		p := b.Min
		if corner&1 != 0 {
			p[0] = b.Max[0]
		}
		if corner&2 != 0 {
			p[1] = b.Max[1]
		}
		if corner&4 != 0 {
			p[2] = b.Max[2]
		}
		out = out.ExpandByPoint(mgl64.TransformCoordinate(p, m))
	}
	return out
}

// Get the sphere that encloses the box.
func (b Box3) BoundingSphere() Sphere {
	if b.IsEmpty() {
		return Sphere{Radius: -1}
	}
	return Sphere{
		Center: b.Center(),
		Radius: b.Size().Len() * 0.5,
	}
}
