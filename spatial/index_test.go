package spatial

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"os"
	"strings"
	"testing"

	"github.com/achilleasa/raypick/bvh"
	"github.com/achilleasa/raypick/geom"
	"github.com/achilleasa/raypick/log"
	"github.com/achilleasa/raypick/types"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func cubeIndex(t *testing.T, center, size mgl64.Vec3, opts ...Option) (*Index, []float64) {
	t.Helper()
	positions, _, indices := geom.Cuboid(center, size)
	buf, err := geom.NewIndexBuffer(indices, len(positions)/3)
	if err != nil {
		t.Fatal(err)
	}
	idx, err := New(buf, positions, geom.BoxFromPositions(positions), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return idx, positions
}

func TestNewErrors(t *testing.T) {
	positions, _, indices := geom.Cuboid(mgl64.Vec3{}, mgl64.Vec3{1, 1, 1})
	buf, _ := geom.NewIndexBuffer(indices, len(positions)/3)
	bounds := geom.BoxFromPositions(positions)

	specs := []struct {
		name      string
		indices   geom.IndexBuffer
		positions []float64
		bounds    geom.Box3
		expErr    error
	}{
		{"empty bounds", buf, positions, geom.EmptyBox(), ErrEmptyBounds},
		{"non-finite bounds", buf, positions, geom.Box3{Min: mgl64.Vec3{math.NaN(), 0, 0}, Max: mgl64.Vec3{1, 1, 1}}, ErrDegenerateBounds},
		{"truncated position buffer", buf, positions[:len(positions)-1], bounds, ErrVertexCount},
		{"too few vertices", buf, positions[:30], bounds, ErrVertexCount},
		{"partial triangle", geom.Uint32Indices{0, 1, 2, 1}, positions[:9], bounds, ErrVertexCount},
	}

	for _, spec := range specs {
		idx, err := New(spec.indices, spec.positions, spec.bounds)
		if !errors.Is(err, spec.expErr) {
			t.Fatalf("[%s] expected to get error %v; got %v", spec.name, spec.expErr, err)
		}
		if idx != nil {
			t.Fatalf("[%s] expected no index to be returned on error", spec.name)
		}
	}
}

func TestBuildLogging(t *testing.T) {
	var buf bytes.Buffer
	log.SetSink(&buf)
	log.SetLevel(log.Debug)
	defer func() {
		log.SetSink(os.Stdout)
		log.SetLevel(log.Notice)
	}()

	// The package logger is created before the sink is replaced
	cubeIndex(t, mgl64.Vec3{10, 0, 0}, mgl64.Vec3{1, 1, 1})
	out := buf.String()
	if !strings.Contains(out, "[spatial index]") || !strings.Contains(out, "indexed 12 triangles") {
		t.Fatalf("expected build to be logged at debug level; got %q", out)
	}
}

func TestRoundTripTransform(t *testing.T) {
	idx, _ := cubeIndex(t, mgl64.Vec3{1e6, -2.5e5, 42}, mgl64.Vec3{3, 3, 3})

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		p := mgl64.Vec3{rng.Float64()*2e6 - 1e6, rng.Float64()*2e6 - 1e6, rng.Float64()*2e6 - 1e6}
		local := mgl64.TransformCoordinate(p, idx.LocalTransform)
		back := mgl64.TransformCoordinate(local, idx.LocalTransformInv)
		if !back.ApproxEqualThreshold(p, 1e-9*math.Max(1, p.Len())) {
			t.Fatalf("expected round trip of %v to be lossless; got %v", p, back)
		}
	}

	// The translation is the exact center of the bounds
	exp := mgl64.Translate3D(-1e6, 2.5e5, -42)
	if diff := cmp.Diff(exp, idx.LocalTransform); diff != "" {
		t.Fatalf("unexpected local transform (-want +got):\n%s", diff)
	}
}

func TestBoundsContainment(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	origin := mgl64.Vec3{6378137, 1234567.891, -987654.321}

	positions := make([]float64, 0, 300*9)
	for i := 0; i < 300*3; i++ {
		positions = append(positions,
			origin[0]+rng.Float64()*100,
			origin[1]+rng.Float64()*100,
			origin[2]+rng.Float64()*100,
		)
	}
	indices := geom.SequentialIndices(len(positions) / 3)

	idx, err := New(indices, positions, geom.BoxFromPositions(positions))
	if err != nil {
		t.Fatal(err)
	}

	box := idx.BoundingBox()
	for i := 0; i < len(positions); i += 3 {
		p := mgl64.Vec3{positions[i], positions[i+1], positions[i+2]}
		if !box.ContainsPoint(p) {
			t.Fatalf("expected vertex %d (%v) to lie within the index bounds %v", i/3, p, box)
		}
	}
}

func TestRaycastFarFromOrigin(t *testing.T) {
	center := mgl64.Vec3{5e6, 3e6, 100.25}
	idx, _ := cubeIndex(t, center, mgl64.Vec3{1, 1, 1})

	// Ray along -Z hitting the top face of the cube at its center
	origin := center.Add(mgl64.Vec3{0.125, -0.25, 10})
	ray := geom.NewRay(origin, mgl64.Vec3{0, 0, -1})

	hit, found := idx.RaycastFirst(ray, geom.FrontSide)
	if !found {
		t.Fatal("expected ray to hit the cube")
	}

	expPoint := center.Add(mgl64.Vec3{0.125, -0.25, 0.5})
	if !hit.Point.ApproxEqualThreshold(expPoint, 1e-6) {
		t.Fatalf("expected hit point %v; got %v", expPoint, hit.Point)
	}
	if math.Abs(hit.Distance-9.5) > 1e-6 {
		t.Fatalf("expected hit distance to be 9.5; got %f", hit.Distance)
	}
	if diff := cmp.Diff(mgl64.Vec3{0, 0, 1}, hit.Face.Normal, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("unexpected face normal (-want +got):\n%s", diff)
	}

	hits := idx.Raycast(ray, geom.DoubleSide)
	if len(hits) != 2 {
		t.Fatalf("expected double sided raycast to hit the top and bottom faces; got %d hits", len(hits))
	}
	for _, h := range hits {
		if math.Abs(h.Distance-ray.DistanceTo(h.Point)) > 1e-9 {
			t.Fatalf("expected hit distance to be measured in the input frame; got %f", h.Distance)
		}
	}

	// Miss
	miss := geom.NewRay(center.Add(mgl64.Vec3{2, 0, 10}), mgl64.Vec3{0, 0, -1})
	if hits := idx.Raycast(miss, geom.DoubleSide); len(hits) != 0 {
		t.Fatalf("expected ray to miss the cube; got %d hits", len(hits))
	}
}

func TestShapecastInputFrame(t *testing.T) {
	center := mgl64.Vec3{-4e6, 2e6, 7}
	idx, positions := cubeIndex(t, center, mgl64.Vec3{2, 2, 2})

	isSourceVertex := func(v mgl64.Vec3) bool {
		for i := 0; i < len(positions); i += 3 {
			if v.ApproxEqualThreshold(mgl64.Vec3{positions[i], positions[i+1], positions[i+2]}, 1e-6) {
				return true
			}
		}
		return false
	}

	var boxes, triangles int
	idx.Shapecast(geom.ShapecastCallbacks{
		IntersectsBounds: func(box geom.Box3, isLeaf bool, score float64, depth, nodeIndex int) geom.Containment {
			boxes++
			if !box.ContainsPoint(center) && depth == 0 {
				t.Fatalf("expected root box %v to be expressed in the input frame", box)
			}
			return geom.Intersected
		},
		TraverseBoundsOrder: func(box geom.Box3) float64 {
			return box.Center().Sub(center).Len()
		},
		IntersectsTriangle: func(tri geom.Triangle, triIndex int, contained bool, depth int) bool {
			triangles++
			for _, v := range []mgl64.Vec3{tri.A, tri.B, tri.C} {
				if !isSourceVertex(v) {
					t.Fatalf("expected triangle %d vertex %v to match a source vertex", triIndex, v)
				}
			}
			return false
		},
	})

	if boxes == 0 || triangles != 12 {
		t.Fatalf("expected shapecast to visit at least one box and 12 triangles; got %d boxes and %d triangles", boxes, triangles)
	}
}

type countingHierarchy struct {
	Hierarchy
	positions []types.Vec3
	raycasts  int
}

func (h *countingHierarchy) Raycast(ray geom.Ray, side geom.Side) []geom.Hit {
	h.raycasts++
	return h.Hierarchy.Raycast(ray, side)
}

func TestCustomBuilder(t *testing.T) {
	var built *countingHierarchy
	builder := func(indices geom.IndexBuffer, positions []types.Vec3) (Hierarchy, error) {
		inner, err := bvhBuilder(bvh.DefaultOptions())(indices, positions)
		if err != nil {
			return nil, err
		}
		built = &countingHierarchy{Hierarchy: inner, positions: positions}
		return built, nil
	}

	idx, _ := cubeIndex(t, mgl64.Vec3{100, 200, 300}, mgl64.Vec3{2, 4, 6}, WithBuilder(builder))
	if idx.Hierarchy() != Hierarchy(built) {
		t.Fatal("expected index to wrap the hierarchy returned by the custom builder")
	}

	// The builder receives recentered vertices
	for _, v := range built.positions {
		if math.Abs(float64(v[0])) > 1 || math.Abs(float64(v[1])) > 2 || math.Abs(float64(v[2])) > 3 {
			t.Fatalf("expected builder to receive local frame vertices; got %v", v)
		}
	}

	idx.Raycast(geom.NewRay(mgl64.Vec3{100, 200, 400}, mgl64.Vec3{0, 0, -1}), geom.FrontSide)
	if built.raycasts != 1 {
		t.Fatalf("expected index to delegate to the hierarchy once; got %d", built.raycasts)
	}

	failing := func(geom.IndexBuffer, []types.Vec3) (Hierarchy, error) {
		return nil, errors.New("boom")
	}
	positions, _, indices := geom.Cuboid(mgl64.Vec3{}, mgl64.Vec3{1, 1, 1})
	buf, _ := geom.NewIndexBuffer(indices, len(positions)/3)
	if idx, err := New(buf, positions, geom.BoxFromPositions(positions), WithBuilder(failing)); err == nil || idx != nil {
		t.Fatalf("expected builder error to be propagated; got index %v, error %v", idx, err)
	}
}
