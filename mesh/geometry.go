package mesh

import (
	"math"

	"github.com/achilleasa/raypick/geom"
	"github.com/go-gl/mathgl/mgl64"
)

// A Group is a range of the index (or vertex, for non-indexed geometry)
// buffer rendered with one material.
type Group struct {
	Start         int
	Count         int
	MaterialIndex int
}

// DrawRange limits the part of the geometry that is rendered. A count <= 0
// means "until the end of the buffer".
type DrawRange struct {
	Start int
	Count int
}

func (r DrawRange) end() int {
	if r.Count <= 0 {
		return math.MaxInt
	}
	return r.Start + r.Count
}

// Geometry holds the vertex attributes of a mesh.
type Geometry struct {
	// Optional index buffer; nil for non-indexed geometry.
	Index geom.IndexBuffer

	// Positions are the sum of the high and the optional low components.
	PositionHigh *Attribute64
	PositionLow  *Attribute

	UV  *Attribute
	UV2 *Attribute

	// Skinning attributes with 4 components per vertex.
	SkinIndex  *Attribute
	SkinWeight *Attribute

	// Morph target positions. Depending on MorphTargetsRelative they store
	// either offsets from the base position or absolute positions.
	MorphPositions       []*Attribute
	MorphTargetsRelative bool

	Groups    []Group
	DrawRange DrawRange

	// Cached bounds; see ComputeBoundingBox and ComputeBoundingSphere.
	BoundingBox    *geom.Box3
	BoundingSphere *geom.Sphere
}

// Create a geometry from flat xyz positions and an optional triangle index
// list.
func NewGeometry(positions []float64, indices []uint32) (*Geometry, error) {
	g := &Geometry{
		PositionHigh: NewAttribute64(positions, 3),
	}

	if indices != nil {
		buf, err := geom.NewIndexBuffer(indices, len(positions)/3)
		if err != nil {
			return nil, err
		}
		g.Index = buf
	}
	return g, nil
}

// Get the number of vertices.
func (g *Geometry) VertexCount() int {
	if g.PositionHigh == nil {
		return 0
	}
	return g.PositionHigh.Count()
}

// Get the full precision position of vertex i.
func (g *Geometry) Position(i int) mgl64.Vec3 {
	p := g.PositionHigh.Vec3(i)
	if g.PositionLow != nil {
		p = p.Add(g.PositionLow.Vec3(i))
	}
	return p
}

// Get all vertex positions as a flat xyz list.
func (g *Geometry) Positions64() []float64 {
	if g.PositionLow == nil {
		return g.PositionHigh.Array
	}

	out := make([]float64, 0, 3*g.VertexCount())
	for i := 0; i < g.VertexCount(); i++ {
		p := g.Position(i)
		out = append(out, p[0], p[1], p[2])
	}
	return out
}

// Get an index buffer covering every triangle of the geometry.
func (g *Geometry) TriangleIndices() geom.IndexBuffer {
	if g.Index != nil {
		return g.Index
	}
	return geom.SequentialIndices(g.VertexCount())
}

// Find the group containing the triangle that starts at the given index
// buffer offset.
func (g *Geometry) groupAt(offset int) *Group {
	for i := range g.Groups {
		if offset >= g.Groups[i].Start && offset < g.Groups[i].Start+g.Groups[i].Count {
			return &g.Groups[i]
		}
	}
	return nil
}

// Compute and cache the bounding box of the geometry, including the extents
// of any morph targets.
func (g *Geometry) ComputeBoundingBox() geom.Box3 {
	box := geom.EmptyBox()
	for i := 0; i < g.VertexCount(); i++ {
		box = box.ExpandByPoint(g.Position(i))
	}

	base := box
	for _, morph := range g.MorphPositions {
		morphBox := geom.EmptyBox()
		for i := 0; i < morph.Count(); i++ {
			morphBox = morphBox.ExpandByPoint(morph.Vec3(i))
		}
		if g.MorphTargetsRelative {
			box = box.ExpandByPoint(base.Min.Add(morphBox.Min))
			box = box.ExpandByPoint(base.Max.Add(morphBox.Max))
		} else {
			box = box.ExpandByPoint(morphBox.Min)
			box = box.ExpandByPoint(morphBox.Max)
		}
	}

	g.BoundingBox = &box
	return box
}

// Compute and cache the bounding sphere of the geometry. The sphere is
// centered on the bounding box and encloses every base and morphed vertex.
func (g *Geometry) ComputeBoundingSphere() geom.Sphere {
	if g.VertexCount() == 0 {
		sphere := geom.Sphere{Radius: -1}
		g.BoundingSphere = &sphere
		return sphere
	}

	center := g.ComputeBoundingBox().Center()
	var maxDistSq float64
	for i := 0; i < g.VertexCount(); i++ {
		p := g.Position(i)
		maxDistSq = math.Max(maxDistSq, p.Sub(center).LenSqr())

		for _, morph := range g.MorphPositions {
			mp := morph.Vec3(i)
			if g.MorphTargetsRelative {
				mp = mp.Add(p)
			}
			maxDistSq = math.Max(maxDistSq, mp.Sub(center).LenSqr())
		}
	}

	sphere := geom.Sphere{Center: center, Radius: math.Sqrt(maxDistSq)}
	g.BoundingSphere = &sphere
	return sphere
}

// Create an axis aligned box geometry with one group per face. Groups are
// assigned material indices 0 to 5 in +X, -X, +Y, -Y, +Z, -Z order.
func NewBoxGeometry(center, size mgl64.Vec3) *Geometry {
	positions, uvs, indices := geom.Cuboid(center, size)

	// A cuboid always has 24 vertices so the index buffer is always valid
	g, _ := NewGeometry(positions, indices)
	g.UV = NewAttribute(uvs, 2)
	for face := 0; face < 6; face++ {
		g.Groups = append(g.Groups, Group{Start: face * 6, Count: 6, MaterialIndex: face})
	}
	return g
}
