package bvh

import (
	"github.com/achilleasa/raypick/geom"
	"github.com/achilleasa/raypick/types"
)

// Bvh nodes are comprised of two Vec3 and two multipurpose int32 parameters
// whose value depends on the node type:
//
// - For inner nodes they are both >0 and point to the L/R child nodes
// - For leafs:
//   - left W is <= 0 and points to the first triangle slot of the leaf
//   - right W is >0 and contains the count of leaf triangles
type Node struct {
	Min   types.Vec3
	LData int32

	Max   types.Vec3
	RData int32
}

// Set bounding box.
func (n *Node) SetBBox(bbox [2]types.Vec3) {
	n.Min = bbox[0]
	n.Max = bbox[1]
}

// Set left and right child node indices.
func (n *Node) SetChildNodes(left, right uint32) {
	n.LData = int32(left)
	n.RData = int32(right)
}

// Get left and right child node indices.
func (n *Node) GetChildNodes() (left, right uint32) {
	return uint32(n.LData), uint32(n.RData)
}

// Set primitive index and count.
func (n *Node) SetPrimitives(firstPrimIndex, count uint32) {
	n.LData = -int32(firstPrimIndex)
	n.RData = int32(count)
}

// Get primitive index and count.
func (n *Node) GetPrimitives() (firstPrimIndex, count uint32) {
	return uint32(-n.LData), uint32(n.RData)
}

// Check if this is a leaf node.
func (n *Node) IsLeaf() bool {
	return n.LData <= 0
}

// Get the node bounding box at full precision.
func (n *Node) Box() geom.Box3 {
	return geom.Box3{Min: n.Min.Vec64(), Max: n.Max.Vec64()}
}
