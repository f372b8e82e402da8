package geom

import "github.com/go-gl/mathgl/mgl64"

// Cuboid face layout: the normal axis, its sign and the two tangent axes
// whose cross product yields the outward normal.
var cuboidFaces = [6]struct {
	axis, u, v int
	sign       float64
}{
	{0, 1, 2, 1},
	{0, 2, 1, -1},
	{1, 2, 0, 1},
	{1, 0, 2, -1},
	{2, 0, 1, 1},
	{2, 1, 0, -1},
}

// Generate an axis aligned box mesh with 4 vertices per face (24 vertices, 12
// triangles) and outward facing counter-clockwise winding. Returns flat xyz
// positions, flat uv coordinates and the triangle index list.
func Cuboid(center, size mgl64.Vec3) (positions []float64, uvs []float32, indices []uint32) {
	half := size.Mul(0.5)
	corners := [4][2]float64{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	faceUVs := [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

	positions = make([]float64, 0, 24*3)
	uvs = make([]float32, 0, 24*2)
	indices = make([]uint32, 0, 36)
	for faceIndex, face := range cuboidFaces {
		for cornerIndex, corner := range corners {
			var p mgl64.Vec3
			p[face.axis] = face.sign * half[face.axis]
			p[face.u] = corner[0] * half[face.u]
			p[face.v] = corner[1] * half[face.v]
			p = p.Add(center)
			positions = append(positions, p[0], p[1], p[2])
			uvs = append(uvs, faceUVs[cornerIndex][0], faceUVs[cornerIndex][1])
		}

		base := uint32(faceIndex * 4)
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return positions, uvs, indices
}
