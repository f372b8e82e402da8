// Package batch aggregates the spatial indices of objects that share a
// merged draw call while keeping track of which object owns each hit.
package batch

import (
	"errors"
	"fmt"

	"github.com/achilleasa/raypick/geom"
	"github.com/achilleasa/raypick/spatial"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrAlreadyBuilt = errors.New("batch: member index already built")
	ErrNotBuilt     = errors.New("batch: member index not built")
	ErrNoMembers    = errors.New("batch: no members")
)

// RenderView describes the geometry of one logical object inside a merged
// draw call.
type RenderView struct {
	// Identity of the logical object.
	ID string

	// Object geometry. Positions are flat xyz values at full precision.
	Indices   geom.IndexBuffer
	Positions []float64

	// World space bounds of the object geometry.
	Bounds geom.Box3

	// Offsets of the object inside the merged vertex and index buffers.
	VertStart  int
	IndexStart int
}

// A Hit produced by a batch index together with the member that produced it.
type Hit struct {
	geom.Hit

	Member *Member
}

// Member couples the geometry of a single object with its spatial index and
// its placement transform. The placement transform is caller owned state; it
// must not be mutated while a query against the member is in flight.
type Member struct {
	RenderView *RenderView
	BatchIndex int

	// Object to world placement and its inverse.
	Transform    mgl64.Mat4
	TransformInv mgl64.Mat4

	index *spatial.Index
}

// Create a new member with an identity placement.
func NewMember(view *RenderView, batchIndex int) *Member {
	return &Member{
		RenderView:   view,
		BatchIndex:   batchIndex,
		Transform:    mgl64.Ident4(),
		TransformInv: mgl64.Ident4(),
	}
}

// Build the member spatial index from the member geometry. It may only be
// called once.
func (m *Member) BuildBVH(bounds geom.Box3, opts ...spatial.Option) error {
	if m.index != nil {
		return ErrAlreadyBuilt
	}

	index, err := spatial.New(m.RenderView.Indices, m.RenderView.Positions, bounds, opts...)
	if err != nil {
		return fmt.Errorf("batch: member %d (%s): %w", m.BatchIndex, m.RenderView.ID, err)
	}
	m.index = index
	return nil
}

// Get the member spatial index or nil if it has not been built yet.
func (m *Member) Index() *spatial.Index {
	return m.index
}

// Update the placement transform. The spatial index is not rebuilt.
func (m *Member) SetTransform(transform mgl64.Mat4) {
	m.Transform = transform
	m.TransformInv = transform.Inv()
}

// Intersect a world space ray with the member. Hits are expressed in world
// space and tagged with the member.
func (m *Member) Raycast(ray geom.Ray, side geom.Side) []Hit {
	local := ray.ApplyMatrix4(m.TransformInv)
	rawHits := m.index.Raycast(local, side)
	if len(rawHits) == 0 {
		return nil
	}

	hits := make([]Hit, len(rawHits))
	for i, raw := range rawHits {
		hits[i] = m.toWorld(ray, raw)
	}
	return hits
}

// Like Raycast but returns the first hit reported by the member index.
func (m *Member) RaycastFirst(ray geom.Ray, side geom.Side) (Hit, bool) {
	raw, found := m.index.RaycastFirst(ray.ApplyMatrix4(m.TransformInv), side)
	if !found {
		return Hit{}, false
	}
	return m.toWorld(ray, raw), true
}

func (m *Member) toWorld(ray geom.Ray, raw geom.Hit) Hit {
	raw.Point = mgl64.TransformCoordinate(raw.Point, m.Transform)
	raw.Distance = ray.DistanceTo(raw.Point)
	raw.Face.Normal = m.Transform.Mat3().Inv().Transpose().Mul3x1(raw.Face.Normal).Normalize()
	return Hit{Hit: raw, Member: m}
}

// Get the world space bounds of the member.
func (m *Member) BoundingBox() geom.Box3 {
	return m.index.BoundingBox().ApplyMatrix4(m.Transform)
}

// Run a shapecast over the member geometry. Boxes and triangles are handed
// to the callbacks in world space.
func (m *Member) Shapecast(cb geom.ShapecastCallbacks) bool {
	transform := m.Transform

	var wrapped geom.ShapecastCallbacks
	if cb.IntersectsBounds != nil {
		wrapped.IntersectsBounds = func(box geom.Box3, isLeaf bool, score float64, depth, nodeIndex int) geom.Containment {
			return cb.IntersectsBounds(box.ApplyMatrix4(transform), isLeaf, score, depth, nodeIndex)
		}
	}
	if cb.TraverseBoundsOrder != nil {
		wrapped.TraverseBoundsOrder = func(box geom.Box3) float64 {
			return cb.TraverseBoundsOrder(box.ApplyMatrix4(transform))
		}
	}
	if cb.IntersectsTriangle != nil {
		wrapped.IntersectsTriangle = func(tri geom.Triangle, triIndex int, contained bool, depth int) bool {
			return cb.IntersectsTriangle(tri.ApplyMatrix4(transform), triIndex, contained, depth)
		}
	}
	return m.index.Shapecast(wrapped)
}
