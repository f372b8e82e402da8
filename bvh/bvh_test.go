package bvh

import (
	"errors"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/achilleasa/raypick/geom"
	"github.com/achilleasa/raypick/types"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"
)

type testVolume struct {
	min, max types.Vec3
}

func (v testVolume) BBox() [2]types.Vec3 { return [2]types.Vec3{v.min, v.max} }
func (v testVolume) Center() types.Vec3  { return v.min.Add(v.max).Mul(0.5) }

func TestLeafCallback(t *testing.T) {
	itemList := []BoundedVolume{
		testVolume{types.Vec3{-2, 0, -2}, types.Vec3{-1, 1, -1}},
		testVolume{types.Vec3{1, 0, -2}, types.Vec3{2, 1, -1}},
		testVolume{types.Vec3{-2, 0, 1}, types.Vec3{-1, 1, 2}},
		testVolume{types.Vec3{1, 0, 1}, types.Vec3{2, 1, 2}},
	}

	var cbCount = 0
	var expItemListCount = 0
	cb := func(leaf *Node, itemList []BoundedVolume) {
		cbCount++
		if len(itemList) != expItemListCount {
			t.Fatalf("expected leaf callback to be called with %d items; got %d", expItemListCount, len(itemList))
		}
	}

	var expCount = 0

	// Partition each item in a single leaf
	cbCount = 0
	expItemListCount = 1
	treeNodes := Partition(itemList, Options{MinLeafItems: 1}, cb)

	expCount = 4
	if cbCount != expCount {
		t.Fatalf("expected leaf callback to be called %d times; called %d", expCount, cbCount)
	}
	expCount = 7
	if len(treeNodes) != expCount {
		t.Fatalf("expected bvh tree to have %d nodes; got %d", expCount, len(treeNodes))
	}

	// Partition two items in a single leaf
	cbCount = 0
	expItemListCount = 2
	treeNodes = Partition(itemList, Options{MinLeafItems: 2}, cb)

	expCount = 2
	if cbCount != expCount {
		t.Fatalf("expected leaf callback to be called %d times; called %d", expCount, cbCount)
	}
	expCount = 3
	if len(treeNodes) != expCount {
		t.Fatalf("expected bvh tree to have %d nodes; got %d", expCount, len(treeNodes))
	}
	if treeNodes[0].IsLeaf() {
		t.Fatal("expected root node to be an inner node")
	}
}

func TestBuildErrors(t *testing.T) {
	positions := []types.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}

	if _, err := Build(nil, positions, DefaultOptions()); !errors.Is(err, ErrNoTriangles) {
		t.Fatalf("expected to get ErrNoTriangles; got %v", err)
	}

	if _, err := Build(geom.Uint16Indices{0, 1, 3}, positions, DefaultOptions()); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected to get ErrIndexOutOfRange; got %v", err)
	}
}

// Generate a soup of small random triangles inside a 20 unit cube.
func randomSoup(triCount int, seed int64) (geom.IndexBuffer, []types.Vec3) {
	rng := rand.New(rand.NewSource(seed))
	positions := make([]types.Vec3, 0, triCount*3)
	for i := 0; i < triCount; i++ {
		base := types.Vec3{rng.Float32()*20 - 10, rng.Float32()*20 - 10, rng.Float32()*20 - 10}
		for k := 0; k < 3; k++ {
			positions = append(positions, base.Add(types.Vec3{rng.Float32()*2 - 1, rng.Float32()*2 - 1, rng.Float32()*2 - 1}))
		}
	}
	return geom.SequentialIndices(len(positions)), positions
}

func bruteForce(indices geom.IndexBuffer, positions []types.Vec3, ray geom.Ray) []int {
	var out []int
	for triIndex := 0; triIndex < indices.Len()/3; triIndex++ {
		a := positions[indices.At(3*triIndex)].Vec64()
		b := positions[indices.At(3*triIndex+1)].Vec64()
		c := positions[indices.At(3*triIndex+2)].Vec64()
		if _, ok := ray.IntersectTriangleSide(a, b, c, geom.DoubleSide); ok {
			out = append(out, triIndex)
		}
	}
	return out
}

func TestRaycastMatchesBruteForce(t *testing.T) {
	indices, positions := randomSoup(3000, 42)
	tree, err := Build(indices, positions, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	if got := tree.TriangleCount(); got != 3000 {
		t.Fatalf("expected tree to index 3000 triangles; got %d", got)
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		origin := mgl64.Vec3{rng.Float64()*40 - 20, rng.Float64()*40 - 20, 30}
		target := mgl64.Vec3{rng.Float64()*10 - 5, rng.Float64()*10 - 5, 0}
		ray := geom.NewRay(origin, target.Sub(origin))

		exp := bruteForce(indices, positions, ray)

		hits := tree.Raycast(ray, geom.DoubleSide)
		var got []int
		for _, hit := range hits {
			got = append(got, hit.FaceIndex)
		}
		sort.Ints(got)

		if diff := cmp.Diff(exp, got); diff != "" {
			t.Fatalf("[ray %d] raycast mismatch (-brute force +bvh):\n%s", i, diff)
		}

		first, found := tree.RaycastFirst(ray, geom.DoubleSide)
		if found != (len(exp) != 0) {
			t.Fatalf("[ray %d] expected RaycastFirst found to be %t; got %t", i, len(exp) != 0, found)
		}
		for _, hit := range hits {
			if hit.Distance < first.Distance {
				t.Fatalf("[ray %d] expected RaycastFirst to return the nearest hit (%f); got %f", i, hit.Distance, first.Distance)
			}
		}
	}
}

func TestRaycastHitMetadata(t *testing.T) {
	positions := []types.Vec3{{-1, -1, 0}, {1, -1, 0}, {0, 1, 0}, {-1, -1, -5}, {1, -1, -5}, {0, 1, -5}}
	indices := geom.Uint16Indices{0, 1, 2, 3, 4, 5}
	tree, err := Build(indices, positions, Options{MinLeafItems: 1})
	if err != nil {
		t.Fatal(err)
	}

	ray := geom.NewRay(mgl64.Vec3{0, 0, 10}, mgl64.Vec3{0, 0, -1})
	hit, found := tree.RaycastFirst(ray, geom.FrontSide)
	if !found {
		t.Fatal("expected ray to hit the front triangle")
	}

	exp := geom.Hit{
		Point:     mgl64.Vec3{0, 0, 0},
		Distance:  10,
		Face:      geom.Face{A: 0, B: 1, C: 2, Normal: mgl64.Vec3{0, 0, 1}},
		FaceIndex: 0,
	}
	if diff := cmp.Diff(exp, hit); diff != "" {
		t.Fatalf("unexpected hit (-want +got):\n%s", diff)
	}

	if got := len(tree.Raycast(ray, geom.FrontSide)); got != 2 {
		t.Fatalf("expected ray to hit 2 triangles; got %d", got)
	}
	if got := len(tree.Raycast(ray, geom.BackSide)); got != 0 {
		t.Fatalf("expected back side raycast to cull both triangles; got %d hits", got)
	}
}

func TestShapecast(t *testing.T) {
	indices, positions := randomSoup(500, 3)
	tree, err := Build(indices, positions, Options{MinLeafItems: 2})
	if err != nil {
		t.Fatal(err)
	}

	query := geom.Box3{Min: mgl64.Vec3{-5, -5, -5}, Max: mgl64.Vec3{5, 5, 5}}

	var exp []int
	for triIndex := 0; triIndex < 500; triIndex++ {
		if tri := tree.Triangle(triIndex); query.IntersectsBox(tri.Bounds()) {
			exp = append(exp, triIndex)
		}
	}

	var got []int
	var containedVisits int
	stopped := tree.Shapecast(geom.ShapecastCallbacks{
		IntersectsBounds: func(box geom.Box3, isLeaf bool, score float64, depth, nodeIndex int) geom.Containment {
			switch {
			case !query.IntersectsBox(box):
				return geom.NotIntersected
			case query.ContainsPoint(box.Min) && query.ContainsPoint(box.Max):
				return geom.Contained
			}
			return geom.Intersected
		},
		IntersectsTriangle: func(tri geom.Triangle, triIndex int, contained bool, depth int) bool {
			if contained {
				containedVisits++
			}
			if contained || query.IntersectsBox(tri.Bounds()) {
				got = append(got, triIndex)
			}
			return false
		},
	})

	if stopped {
		t.Fatal("expected shapecast to visit the entire tree")
	}
	sort.Ints(got)
	if diff := cmp.Diff(exp, got); diff != "" {
		t.Fatalf("shapecast selection mismatch (-want +got):\n%s", diff)
	}
	if containedVisits == 0 {
		t.Fatal("expected at least one subtree to be reported as contained")
	}

	// Stop on the first visited triangle
	var visits int
	stopped = tree.Shapecast(geom.ShapecastCallbacks{
		IntersectsTriangle: func(tri geom.Triangle, triIndex int, contained bool, depth int) bool {
			visits++
			return true
		},
	})
	if !stopped || visits != 1 {
		t.Fatalf("expected shapecast to stop after 1 visit; stopped: %t, visits: %d", stopped, visits)
	}
}

func TestShapecastTraversalOrder(t *testing.T) {
	indices, positions := randomSoup(200, 11)
	tree, err := Build(indices, positions, Options{MinLeafItems: 4})
	if err != nil {
		t.Fatal(err)
	}

	target := mgl64.Vec3{10, 10, 10}
	scoreFn := func(box geom.Box3) float64 {
		return box.Center().Sub(target).Len()
	}

	visitOrder := make(map[int]int)
	tree.Shapecast(geom.ShapecastCallbacks{
		TraverseBoundsOrder: scoreFn,
		IntersectsBounds: func(box geom.Box3, isLeaf bool, score float64, depth, nodeIndex int) geom.Containment {
			visitOrder[nodeIndex] = len(visitOrder)
			if exp := scoreFn(box); exp != score {
				t.Fatalf("expected node %d score to be %f; got %f", nodeIndex, exp, score)
			}
			return geom.Intersected
		},
	})

	nodes := tree.Nodes()
	if len(visitOrder) != len(nodes) {
		t.Fatalf("expected all %d nodes to be visited; visited %d", len(nodes), len(visitOrder))
	}
	for _, node := range nodes {
		if node.IsLeaf() {
			continue
		}
		left, right := node.GetChildNodes()
		leftScore, rightScore := scoreFn(nodes[left].Box()), scoreFn(nodes[right].Box())
		if leftScore == rightScore {
			continue
		}
		near, far := left, right
		if rightScore < leftScore {
			near, far = right, left
		}
		if visitOrder[int(near)] > visitOrder[int(far)] {
			t.Fatalf("expected node %d (score %f) to be visited before node %d", near, scoreFn(nodes[near].Box()), far)
		}
	}
}

func TestStats(t *testing.T) {
	indices, positions := randomSoup(100, 1)
	tree, err := Build(indices, positions, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	stats := tree.Stats()
	for _, exp := range []string{"Triangles", "Nodes", "Leafs", "Max depth"} {
		if !strings.Contains(stats, exp) {
			t.Fatalf("expected stats output to contain %q; got:\n%s", exp, stats)
		}
	}
}
