package mesh

import (
	"github.com/achilleasa/raypick/geom"
	"github.com/achilleasa/raypick/scene"
	"github.com/go-gl/mathgl/mgl64"
)

// Intersect the ray with every triangle inside the draw range, honoring
// material groups, morph targets and skinning.
func (m *Mesh) raycastGeometry(rc *scene.Raycaster, local geom.Ray, matrixWorld mgl64.Mat4, intersects []scene.Intersection) []scene.Intersection {
	g := m.Geometry
	if g.VertexCount() == 0 {
		return intersects
	}

	box, sphere := m.localBounds()
	if sphere.IsEmpty() || !rc.Ray.IntersectsSphere(sphere.ApplyMatrix4(matrixWorld)) {
		return intersects
	}
	if !local.IntersectsBox(box) {
		return intersects
	}

	count := g.VertexCount()
	if g.Index != nil {
		count = g.Index.Len()
	}
	vertexAt := func(i int) int {
		if g.Index != nil {
			return int(g.Index.At(i))
		}
		return i
	}

	drawEnd := g.DrawRange.end()
	if !m.multiMaterial() {
		start := max(0, g.DrawRange.Start)
		end := min(count, drawEnd)
		for i := start; i+2 < end; i += 3 {
			face := geom.Face{A: uint32(vertexAt(i)), B: uint32(vertexAt(i + 1)), C: uint32(vertexAt(i + 2))}
			if in, ok := m.intersectFace(rc, local, matrixWorld, m.Materials[0], face, i/3); ok {
				intersects = append(intersects, in)
			}
		}
		return intersects
	}

	for _, group := range g.Groups {
		if group.MaterialIndex >= len(m.Materials) || m.Materials[group.MaterialIndex] == nil {
			continue
		}
		material := m.Materials[group.MaterialIndex]

		start := max(group.Start, g.DrawRange.Start)
		end := min(count, min(group.Start+group.Count, drawEnd))
		for i := start; i+2 < end; i += 3 {
			face := geom.Face{
				A:             uint32(vertexAt(i)),
				B:             uint32(vertexAt(i + 1)),
				C:             uint32(vertexAt(i + 2)),
				MaterialIndex: group.MaterialIndex,
			}
			if in, ok := m.intersectFace(rc, local, matrixWorld, material, face, i/3); ok {
				intersects = append(intersects, in)
			}
		}
	}
	return intersects
}

func (m *Mesh) intersectFace(rc *scene.Raycaster, local geom.Ray, matrixWorld mgl64.Mat4, material *Material, face geom.Face, faceIndex int) (scene.Intersection, bool) {
	tri := geom.Triangle{
		A: m.vertexPosition(int(face.A)),
		B: m.vertexPosition(int(face.B)),
		C: m.vertexPosition(int(face.C)),
	}

	p, hit := local.IntersectTriangleSide(tri.A, tri.B, tri.C, material.Side)
	if !hit {
		return scene.Intersection{}, false
	}

	point := mgl64.TransformCoordinate(p, matrixWorld)
	distance := rc.Ray.DistanceTo(point)
	if !rc.InRange(distance) {
		return scene.Intersection{}, false
	}

	face.Normal = tri.Normal()
	return scene.Intersection{
		Distance:  distance,
		Point:     point,
		Object:    m,
		Face:      &face,
		FaceIndex: faceIndex,
		UV:        interpolate(m.Geometry.UV, tri, p, face),
		UV2:       interpolate(m.Geometry.UV2, tri, p, face),
	}, true
}
