package geom

// Containment is returned by shapecast bounds callbacks to steer traversal.
type Containment uint8

const (
	// Skip the node and its subtree.
	NotIntersected Containment = iota

	// Descend into the node.
	Intersected

	// The node is fully inside the query shape; all triangles underneath
	// are visited with contained set to true without further bounds tests.
	Contained
)

// ShapecastCallbacks drive a generic hierarchy traversal.
type ShapecastCallbacks struct {
	// Classify a node box against the query shape. A nil callback descends
	// into every node.
	IntersectsBounds func(box Box3, isLeaf bool, score float64, depth, nodeIndex int) Containment

	// Optional; returns a score for a child box. Children with the lower
	// score are visited first.
	TraverseBoundsOrder func(box Box3) float64

	// Visit a triangle. Returning true stops the traversal and makes the
	// shapecast return true.
	IntersectsTriangle func(tri Triangle, triIndex int, contained bool, depth int) bool
}
