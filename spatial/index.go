// Package spatial wraps a reduced precision triangle hierarchy with a
// recentering transform so that geometry located far from the origin can be
// indexed and queried without losing precision.
package spatial

import (
	"errors"
	"fmt"
	"math"

	"github.com/achilleasa/raypick/bvh"
	"github.com/achilleasa/raypick/geom"
	"github.com/achilleasa/raypick/log"
	"github.com/achilleasa/raypick/types"
	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrEmptyBounds      = errors.New("spatial: bounds are empty")
	ErrDegenerateBounds = errors.New("spatial: bounds are not finite")
	ErrVertexCount      = errors.New("spatial: vertex buffer does not match index buffer")
)

var logger = log.New("spatial index")

// Hierarchy is implemented by the triangle hierarchies that an Index can
// wrap. All coordinates are expressed in the local (recentered) frame.
type Hierarchy interface {
	Raycast(ray geom.Ray, side geom.Side) []geom.Hit
	RaycastFirst(ray geom.Ray, side geom.Side) (geom.Hit, bool)
	Shapecast(cb geom.ShapecastCallbacks) bool
	BoundingBox() geom.Box3
	TriangleCount() int
}

// Builder constructs a Hierarchy over local frame vertices.
type Builder func(indices geom.IndexBuffer, positions []types.Vec3) (Hierarchy, error)

// Option configures index construction.
type Option func(*config)

type config struct {
	builder Builder
}

// Use a custom hierarchy builder.
func WithBuilder(builder Builder) Option {
	return func(c *config) {
		c.builder = builder
	}
}

// Build the hierarchy using a bvh tree with the given options.
func WithBVHOptions(opts bvh.Options) Option {
	return WithBuilder(bvhBuilder(opts))
}

func bvhBuilder(opts bvh.Options) Builder {
	return func(indices geom.IndexBuffer, positions []types.Vec3) (Hierarchy, error) {
		return bvh.Build(indices, positions, opts)
	}
}

// Index is an immutable triangle index whose hierarchy is built in a frame
// centered on the supplied bounds.
type Index struct {
	// World to local frame translation.
	LocalTransform mgl64.Mat4

	// Local to world frame translation.
	LocalTransformInv mgl64.Mat4

	// The bounds used to derive the translation.
	RelativeBounds geom.Box3

	hierarchy Hierarchy
}

// Create a new index from an index buffer and a flat xyz full precision
// position buffer. The local frame is centered on bounds.
func New(indices geom.IndexBuffer, positions []float64, bounds geom.Box3, opts ...Option) (*Index, error) {
	cfg := config{builder: bvhBuilder(bvh.DefaultOptions())}
	for _, opt := range opts {
		opt(&cfg)
	}

	switch {
	case bounds.IsEmpty():
		return nil, ErrEmptyBounds
	case bounds.IsDegenerate():
		return nil, ErrDegenerateBounds
	case len(positions)%3 != 0:
		return nil, fmt.Errorf("%w: position buffer length %d is not a multiple of 3", ErrVertexCount, len(positions))
	case indices != nil && indices.Len()%3 != 0:
		return nil, fmt.Errorf("%w: index count %d is not a multiple of 3", ErrVertexCount, indices.Len())
	}

	vertexCount := len(positions) / 3
	if indices != nil {
		for i := 0; i < indices.Len(); i++ {
			if int(indices.At(i)) >= vertexCount {
				return nil, fmt.Errorf("%w: index %d references vertex %d (vertex count %d)", ErrVertexCount, i, indices.At(i), vertexCount)
			}
		}
	}

	center := bounds.Center()
	idx := &Index{
		LocalTransform:    mgl64.Translate3D(-center[0], -center[1], -center[2]),
		LocalTransformInv: mgl64.Translate3D(center[0], center[1], center[2]),
		RelativeBounds:    bounds,
	}

	// Recenter at full precision and only then drop to float32
	local := make([]types.Vec3, vertexCount)
	for i := range local {
		local[i] = types.Vec3From64(mgl64.Vec3{
			positions[3*i] - center[0],
			positions[3*i+1] - center[1],
			positions[3*i+2] - center[2],
		})
	}

	hierarchy, err := cfg.builder(indices, local)
	if err != nil {
		return nil, fmt.Errorf("spatial: could not build hierarchy: %w", err)
	}
	idx.hierarchy = hierarchy

	logger.Debugf(
		"indexed %d triangles recentered on (%.3f, %.3f, %.3f)",
		hierarchy.TriangleCount(), center[0], center[1], center[2],
	)
	return idx, nil
}

// Get the wrapped hierarchy.
func (idx *Index) Hierarchy() Hierarchy {
	return idx.hierarchy
}

// Get the number of indexed triangles.
func (idx *Index) TriangleCount() int {
	return idx.hierarchy.TriangleCount()
}

// Intersect a ray expressed in the input frame with the index. Hit points
// and distances are expressed in the input frame. Hits are not sorted.
func (idx *Index) Raycast(ray geom.Ray, side geom.Side) []geom.Hit {
	hits := idx.hierarchy.Raycast(ray.ApplyMatrix4(idx.LocalTransform), side)
	for i := range hits {
		idx.toInputFrame(ray, &hits[i])
	}
	return hits
}

// Like Raycast but returns the first hit reported by the hierarchy.
func (idx *Index) RaycastFirst(ray geom.Ray, side geom.Side) (geom.Hit, bool) {
	hit, found := idx.hierarchy.RaycastFirst(ray.ApplyMatrix4(idx.LocalTransform), side)
	if found {
		idx.toInputFrame(ray, &hit)
	}
	return hit, found
}

func (idx *Index) toInputFrame(ray geom.Ray, hit *geom.Hit) {
	hit.Point = mgl64.TransformCoordinate(hit.Point, idx.LocalTransformInv)
	hit.Distance = ray.DistanceTo(hit.Point)
}

// Run a shapecast over the index. Boxes and triangles are handed to the
// callbacks in the input frame; containment and ordering decisions are
// passed through unchanged.
func (idx *Index) Shapecast(cb geom.ShapecastCallbacks) bool {
	inv := idx.LocalTransformInv

	var wrapped geom.ShapecastCallbacks
	if cb.IntersectsBounds != nil {
		wrapped.IntersectsBounds = func(box geom.Box3, isLeaf bool, score float64, depth, nodeIndex int) geom.Containment {
			return cb.IntersectsBounds(box.ApplyMatrix4(inv), isLeaf, score, depth, nodeIndex)
		}
	}
	if cb.TraverseBoundsOrder != nil {
		wrapped.TraverseBoundsOrder = func(box geom.Box3) float64 {
			return cb.TraverseBoundsOrder(box.ApplyMatrix4(inv))
		}
	}
	if cb.IntersectsTriangle != nil {
		wrapped.IntersectsTriangle = func(tri geom.Triangle, triIndex int, contained bool, depth int) bool {
			return cb.IntersectsTriangle(tri.ApplyMatrix4(inv), triIndex, contained, depth)
		}
	}
	return idx.hierarchy.Shapecast(wrapped)
}

// Get the bounding box of the indexed geometry in the input frame. The box
// is padded by the rounding error introduced when the local vertices were
// truncated so that it contains the full precision source vertices.
func (idx *Index) BoundingBox() geom.Box3 {
	local := idx.hierarchy.BoundingBox()

	var maxLocal float64
	for axis := 0; axis < 3; axis++ {
		maxLocal = math.Max(maxLocal, math.Max(math.Abs(local.Min[axis]), math.Abs(local.Max[axis])))
	}
	center := idx.RelativeBounds.Center()
	maxCenter := math.Max(math.Abs(center[0]), math.Max(math.Abs(center[1]), math.Abs(center[2])))

	pad := maxLocal*float32Epsilon + maxCenter*float64Epsilon
	return local.ExpandByScalar(pad).ApplyMatrix4(idx.LocalTransformInv)
}

const (
	// Relative rounding error bounds; twice the unit roundoff.
	float32Epsilon = 1.0 / (1 << 22)
	float64Epsilon = 1.0 / (1 << 50)
)
