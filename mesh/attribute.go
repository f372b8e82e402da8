// Package mesh implements raycastable triangle meshes that use a spatial
// index when one is available and fall back to brute force intersection
// otherwise.
package mesh

import "github.com/go-gl/mathgl/mgl64"

// Attribute is a flat float32 per-vertex attribute buffer.
type Attribute struct {
	Array    []float32
	ItemSize int
}

func NewAttribute(array []float32, itemSize int) *Attribute {
	return &Attribute{Array: array, ItemSize: itemSize}
}

// Get the number of items in the buffer.
func (a *Attribute) Count() int {
	return len(a.Array) / a.ItemSize
}

// Get component c of item i.
func (a *Attribute) Component(i, c int) float64 {
	return float64(a.Array[i*a.ItemSize+c])
}

func (a *Attribute) Vec2(i int) mgl64.Vec2 {
	o := i * a.ItemSize
	return mgl64.Vec2{float64(a.Array[o]), float64(a.Array[o+1])}
}

func (a *Attribute) Vec3(i int) mgl64.Vec3 {
	o := i * a.ItemSize
	return mgl64.Vec3{float64(a.Array[o]), float64(a.Array[o+1]), float64(a.Array[o+2])}
}

// Attribute64 is a flat full precision per-vertex attribute buffer.
type Attribute64 struct {
	Array    []float64
	ItemSize int
}

func NewAttribute64(array []float64, itemSize int) *Attribute64 {
	return &Attribute64{Array: array, ItemSize: itemSize}
}

// Get the number of items in the buffer.
func (a *Attribute64) Count() int {
	return len(a.Array) / a.ItemSize
}

func (a *Attribute64) Vec3(i int) mgl64.Vec3 {
	o := i * a.ItemSize
	return mgl64.Vec3{a.Array[o], a.Array[o+1], a.Array[o+2]}
}
