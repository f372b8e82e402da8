package bvh

import (
	"math"

	"github.com/achilleasa/raypick/geom"
)

// Intersect a ray with the tree and return every triangle hit, in traversal
// order. Hit distances are measured from the ray origin.
func (t *Tree) Raycast(ray geom.Ray, side geom.Side) []geom.Hit {
	var hits []geom.Hit

	stack := make([]uint32, 1, 64)
	for len(stack) > 0 {
		nodeIndex := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := &t.nodes[nodeIndex]
		if !ray.IntersectsBox(node.Box()) {
			continue
		}

		if node.IsLeaf() {
			first, count := node.GetPrimitives()
			for slot := first; slot < first+count; slot++ {
				if hit, ok := t.intersectTriangle(ray, side, int(t.triangles[slot])); ok {
					hits = append(hits, hit)
				}
			}
			continue
		}

		// Push right child first so the left subtree is visited first
		left, right := node.GetChildNodes()
		stack = append(stack, right, left)
	}

	return hits
}

// Intersect a ray with the tree and return the nearest triangle hit. Child
// nodes are visited near to far and subtrees whose boxes start beyond the
// best hit so far are pruned.
func (t *Tree) RaycastFirst(ray geom.Ray, side geom.Side) (geom.Hit, bool) {
	type entry struct {
		nodeIndex uint32
		dist      float64
	}

	var (
		best     geom.Hit
		found    bool
		bestDist = math.Inf(1)
	)

	rootDist, ok := ray.BoxDistance(t.nodes[0].Box())
	if !ok {
		return best, false
	}

	stack := make([]entry, 1, 64)
	stack[0] = entry{0, rootDist}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.dist > bestDist {
			continue
		}

		node := &t.nodes[e.nodeIndex]
		if node.IsLeaf() {
			first, count := node.GetPrimitives()
			for slot := first; slot < first+count; slot++ {
				hit, ok := t.intersectTriangle(ray, side, int(t.triangles[slot]))
				if ok && hit.Distance < bestDist {
					best, bestDist, found = hit, hit.Distance, true
				}
			}
			continue
		}

		left, right := node.GetChildNodes()
		leftDist, leftHit := ray.BoxDistance(t.nodes[left].Box())
		rightDist, rightHit := ray.BoxDistance(t.nodes[right].Box())

		// Push the far child first so the near one is popped next
		switch {
		case leftHit && rightHit:
			if leftDist <= rightDist {
				stack = append(stack, entry{right, rightDist}, entry{left, leftDist})
			} else {
				stack = append(stack, entry{left, leftDist}, entry{right, rightDist})
			}
		case leftHit:
			stack = append(stack, entry{left, leftDist})
		case rightHit:
			stack = append(stack, entry{right, rightDist})
		}
	}

	return best, found
}

func (t *Tree) intersectTriangle(ray geom.Ray, side geom.Side, triIndex int) (geom.Hit, bool) {
	tri := t.Triangle(triIndex)
	point, ok := ray.IntersectTriangleSide(tri.A, tri.B, tri.C, side)
	if !ok {
		return geom.Hit{}, false
	}

	return geom.Hit{
		Point:    point,
		Distance: ray.DistanceTo(point),
		Face: geom.Face{
			A:      t.indices.At(3 * triIndex),
			B:      t.indices.At(3*triIndex + 1),
			C:      t.indices.At(3*triIndex + 2),
			Normal: tri.Normal(),
		},
		FaceIndex: triIndex,
	}, true
}

// Run a generic traversal driven by the supplied callbacks. Returns true if
// the IntersectsTriangle callback requested the traversal to stop.
func (t *Tree) Shapecast(cb geom.ShapecastCallbacks) bool {
	root := &t.nodes[0]
	rootBox := root.Box()

	var score float64
	if cb.TraverseBoundsOrder != nil {
		score = cb.TraverseBoundsOrder(rootBox)
	}
	return t.shapecastChild(0, rootBox, score, 0, &cb)
}

// Classify a node against the query shape and act on the result.
func (t *Tree) shapecastChild(nodeIndex uint32, box geom.Box3, score float64, depth int, cb *geom.ShapecastCallbacks) bool {
	node := &t.nodes[nodeIndex]

	containment := geom.Intersected
	if cb.IntersectsBounds != nil {
		containment = cb.IntersectsBounds(box, node.IsLeaf(), score, depth, int(nodeIndex))
	}

	switch containment {
	case geom.NotIntersected:
		return false
	case geom.Contained:
		first, count := t.subtreeRange(nodeIndex)
		return t.visitTriangles(first, count, true, depth, cb)
	}

	if node.IsLeaf() {
		first, count := node.GetPrimitives()
		return t.visitTriangles(first, count, false, depth, cb)
	}

	left, right := node.GetChildNodes()
	leftBox, rightBox := t.nodes[left].Box(), t.nodes[right].Box()

	var leftScore, rightScore float64
	if cb.TraverseBoundsOrder != nil {
		leftScore = cb.TraverseBoundsOrder(leftBox)
		rightScore = cb.TraverseBoundsOrder(rightBox)
		if rightScore < leftScore {
			left, right = right, left
			leftBox, rightBox = rightBox, leftBox
			leftScore, rightScore = rightScore, leftScore
		}
	}

	if t.shapecastChild(left, leftBox, leftScore, depth+1, cb) {
		return true
	}
	return t.shapecastChild(right, rightBox, rightScore, depth+1, cb)
}

func (t *Tree) visitTriangles(first, count uint32, contained bool, depth int, cb *geom.ShapecastCallbacks) bool {
	if cb.IntersectsTriangle == nil {
		return false
	}

	for slot := first; slot < first+count; slot++ {
		triIndex := int(t.triangles[slot])
		if cb.IntersectsTriangle(t.Triangle(triIndex), triIndex, contained, depth) {
			return true
		}
	}
	return false
}

// Get the range of triangle slots covered by the subtree rooted at
// nodeIndex. Leafs are emitted depth first so the range is contiguous.
func (t *Tree) subtreeRange(nodeIndex uint32) (first, count uint32) {
	leftmost := nodeIndex
	for !t.nodes[leftmost].IsLeaf() {
		leftmost, _ = t.nodes[leftmost].GetChildNodes()
	}
	rightmost := nodeIndex
	for !t.nodes[rightmost].IsLeaf() {
		_, rightmost = t.nodes[rightmost].GetChildNodes()
	}

	first, _ = t.nodes[leftmost].GetPrimitives()
	lastFirst, lastCount := t.nodes[rightmost].GetPrimitives()
	return first, lastFirst + lastCount - first
}
