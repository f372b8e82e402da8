package geom

import "github.com/go-gl/mathgl/mgl64"

// A triangle with counter-clockwise front face winding.
type Triangle struct {
	A, B, C mgl64.Vec3
}

// Get the unit normal of the triangle front face. Degenerate triangles
// yield a zero vector.
func (t Triangle) Normal() mgl64.Vec3 {
	n := t.C.Sub(t.B).Cross(t.A.Sub(t.B))
	if l := n.Len(); l > 0 {
		return n.Mul(1 / l)
	}
	return mgl64.Vec3{}
}

// Calculate the barycentric coordinates of p with respect to the triangle.
// Returns false for degenerate triangles.
func (t Triangle) Barycoord(p mgl64.Vec3) (mgl64.Vec3, bool) {
	v0 := t.C.Sub(t.A)
	v1 := t.B.Sub(t.A)
	v2 := p.Sub(t.A)

	dot00 := v0.Dot(v0)
	dot01 := v0.Dot(v1)
	dot02 := v0.Dot(v2)
	dot11 := v1.Dot(v1)
	dot12 := v1.Dot(v2)

	denom := dot00*dot11 - dot01*dot01
	if denom == 0 {
		return mgl64.Vec3{}, false
	}

	invDenom := 1 / denom
	u := (dot11*dot02 - dot01*dot12) * invDenom
	v := (dot00*dot12 - dot01*dot02) * invDenom
	return mgl64.Vec3{1 - u - v, v, u}, true
}

// Interpolate a per-vertex 2D attribute at point p.
func (t Triangle) InterpolateVec2(p mgl64.Vec3, a, b, c mgl64.Vec2) (mgl64.Vec2, bool) {
	bary, ok := t.Barycoord(p)
	if !ok {
		return mgl64.Vec2{}, false
	}
	return a.Mul(bary[0]).Add(b.Mul(bary[1])).Add(c.Mul(bary[2])), true
}

// Transform all triangle vertices by m.
func (t Triangle) ApplyMatrix4(m mgl64.Mat4) Triangle {
	return Triangle{
		A: mgl64.TransformCoordinate(t.A, m),
		B: mgl64.TransformCoordinate(t.B, m),
		C: mgl64.TransformCoordinate(t.C, m),
	}
}

// Get triangle AABB.
func (t Triangle) Bounds() Box3 {
	return EmptyBox().ExpandByPoint(t.A).ExpandByPoint(t.B).ExpandByPoint(t.C)
}
