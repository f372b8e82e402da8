package batch

import (
	"fmt"

	"github.com/achilleasa/raypick/geom"
	"github.com/achilleasa/raypick/log"
)

var logger = log.New("batch index")

// Callbacks drive a shapecast over a batch index. They mirror
// geom.ShapecastCallbacks but the triangle visitor also receives the member
// that owns the triangle.
type Callbacks struct {
	IntersectsBounds    func(box geom.Box3, isLeaf bool, score float64, depth, nodeIndex int) geom.Containment
	TraverseBoundsOrder func(box geom.Box3) float64
	IntersectsTriangle  func(tri geom.Triangle, triIndex int, contained bool, depth int, member *Member) bool
}

// Index aggregates the members of a merged draw call. The member list is
// fixed at construction time.
type Index struct {
	members []*Member

	// Union of the member bounds at construction time. It is not updated
	// when member placements change.
	Bounds geom.Box3
}

// Create a new batch index. All members must have their spatial index
// built.
func New(members []*Member) (*Index, error) {
	if len(members) == 0 {
		return nil, ErrNoMembers
	}

	bounds := geom.EmptyBox()
	for _, m := range members {
		if m.Index() == nil {
			return nil, fmt.Errorf("%w: member %d", ErrNotBuilt, m.BatchIndex)
		}
		bounds = bounds.Union(m.BoundingBox())
	}

	idx := &Index{
		members: append([]*Member(nil), members...),
		Bounds:  bounds,
	}

	logger.Infof(
		"created batch index with %d members; bounds min: %v, max: %v",
		len(members), bounds.Min, bounds.Max,
	)
	return idx, nil
}

// Get the batch members in batch order.
func (idx *Index) Members() []*Member {
	return idx.members
}

// Intersect a ray with every member of the batch. Hits are tagged with the
// member that produced them and returned in member order; they are not
// sorted by distance.
func (idx *Index) Raycast(ray geom.Ray, side geom.Side) []Hit {
	if !ray.IntersectsBox(idx.Bounds) {
		return nil
	}

	var hits []Hit
	for _, m := range idx.members {
		hits = append(hits, m.Raycast(ray, side)...)
	}
	return hits
}

// Return the hit of the first member, in batch order, that reports any hit.
// This is not a nearest hit search across members: a farther hit on an
// earlier member wins over a nearer hit on a later one. Callers that need
// the nearest hit should sort the results of Raycast.
func (idx *Index) RaycastFirst(ray geom.Ray, side geom.Side) (Hit, bool) {
	if !ray.IntersectsBox(idx.Bounds) {
		return Hit{}, false
	}

	for _, m := range idx.members {
		if hit, found := m.RaycastFirst(ray, side); found {
			return hit, true
		}
	}
	return Hit{}, false
}

// Run a shapecast over every member. The bounds and ordering callbacks are
// passed through to each member while the triangle visitor additionally
// receives the owning member. Returns true if any member shapecast returned
// true.
func (idx *Index) Shapecast(cb Callbacks) bool {
	var result bool
	for _, m := range idx.members {
		member := m
		memberCb := geom.ShapecastCallbacks{
			IntersectsBounds:    cb.IntersectsBounds,
			TraverseBoundsOrder: cb.TraverseBoundsOrder,
		}
		if cb.IntersectsTriangle != nil {
			memberCb.IntersectsTriangle = func(tri geom.Triangle, triIndex int, contained bool, depth int) bool {
				return cb.IntersectsTriangle(tri, triIndex, contained, depth, member)
			}
		}
		if member.Shapecast(memberCb) {
			result = true
		}
	}
	return result
}

// Compute the union of the current member bounds.
func (idx *Index) BoundingBox() geom.Box3 {
	bounds := geom.EmptyBox()
	for _, m := range idx.members {
		bounds = bounds.Union(m.BoundingBox())
	}
	return bounds
}

// Get the number of triangles indexed by all members.
func (idx *Index) TriangleCount() int {
	var count int
	for _, m := range idx.members {
		count += m.Index().TriangleCount()
	}
	return count
}
