package types

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestMinMaxVec3(t *testing.T) {
	v1 := Vec3{1, -2, 3}
	v2 := Vec3{-1, 2, 5}

	expMin := Vec3{-1, -2, 3}
	if got := MinVec3(v1, v2); got != expMin {
		t.Fatalf("expected min to be %v; got %v", expMin, got)
	}

	expMax := Vec3{1, 2, 5}
	if got := MaxVec3(v1, v2); got != expMax {
		t.Fatalf("expected max to be %v; got %v", expMax, got)
	}

	if got := v1.Add(v2).Mul(0.5); got != (Vec3{0, 0, 4}) {
		t.Fatalf("expected midpoint to be (0, 0, 4); got %v", got)
	}
	if got := expMax.Sub(expMin); got != (Vec3{2, 4, 2}) {
		t.Fatalf("expected extent to be (2, 4, 2); got %v", got)
	}
}

func TestPrecisionConversion(t *testing.T) {
	// A value far from the origin loses its fractional part when truncated
	far := mgl64.Vec3{12345678.25, 0, 0}
	if got := Vec3From64(far).Vec64(); got == far {
		t.Fatalf("expected %v to lose precision when truncated to float32", far)
	}

	// The same offset relative to a nearby origin survives the round-trip
	near := mgl64.Vec3{0.25, -1.5, 3}
	if got := Vec3From64(near).Vec64(); got != near {
		t.Fatalf("expected %v to survive the float32 round-trip; got %v", near, got)
	}
}
