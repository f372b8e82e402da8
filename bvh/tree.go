// Package bvh implements a bounding volume hierarchy over reduced precision
// triangle soups.
package bvh

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/achilleasa/raypick/geom"
	"github.com/achilleasa/raypick/types"
	"github.com/olekukonko/tablewriter"
)

var (
	ErrNoTriangles     = errors.New("bvh: geometry contains no triangles")
	ErrIndexOutOfRange = errors.New("bvh: triangle index out of range")
)

// A triangle wrapper that can be partitioned by the builder.
type triangleVolume struct {
	id     uint32
	bbox   [2]types.Vec3
	center types.Vec3
}

func (t *triangleVolume) BBox() [2]types.Vec3 { return t.bbox }
func (t *triangleVolume) Center() types.Vec3  { return t.center }

// Tree is an immutable triangle BVH. All coordinates are expressed in the
// frame of the positions the tree was built from.
type Tree struct {
	nodes []Node

	// Triangle ids in leaf order. Leaf primitive ranges index this list.
	triangles []uint32

	indices   geom.IndexBuffer
	positions []types.Vec3

	stats stats
}

// Build a BVH over the triangles defined by indices. Every three consecutive
// entries in indices reference the positions of one triangle.
func Build(indices geom.IndexBuffer, positions []types.Vec3, opts Options) (*Tree, error) {
	if indices == nil || indices.Len() < 3 {
		return nil, ErrNoTriangles
	}

	triCount := indices.Len() / 3
	volumes := make([]triangleVolume, triCount)
	workList := make([]BoundedVolume, triCount)
	for triIndex := 0; triIndex < triCount; triIndex++ {
		vol := &volumes[triIndex]
		vol.id = uint32(triIndex)
		vol.bbox = [2]types.Vec3{
			{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
			{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32},
		}
		for k := 0; k < 3; k++ {
			vIndex := indices.At(3*triIndex + k)
			if int(vIndex) >= len(positions) {
				return nil, fmt.Errorf("%w: triangle %d references vertex %d (vertex count %d)", ErrIndexOutOfRange, triIndex, vIndex, len(positions))
			}
			v := positions[vIndex]
			vol.bbox[0] = types.MinVec3(vol.bbox[0], v)
			vol.bbox[1] = types.MaxVec3(vol.bbox[1], v)
		}
		vol.center = vol.bbox[0].Add(vol.bbox[1]).Mul(0.5)
		workList[triIndex] = vol
	}

	t := &Tree{
		triangles: make([]uint32, 0, triCount),
		indices:   indices,
		positions: positions,
	}
	leafCb := func(leaf *Node, itemList []BoundedVolume) {
		leaf.SetPrimitives(uint32(len(t.triangles)), uint32(len(itemList)))
		for _, item := range itemList {
			t.triangles = append(t.triangles, item.(*triangleVolume).id)
		}
	}

	t.nodes, t.stats = partitionWithStats(workList, opts, leafCb)
	return t, nil
}

// Get the number of indexed triangles.
func (t *Tree) TriangleCount() int {
	return len(t.triangles)
}

// Get the number of tree nodes.
func (t *Tree) NodeCount() int {
	return len(t.nodes)
}

// Get the tree nodes. The root is stored at index 0.
func (t *Tree) Nodes() []Node {
	return t.nodes
}

// Get the bounding box of the indexed geometry.
func (t *Tree) BoundingBox() geom.Box3 {
	return t.nodes[0].Box()
}

// Get the triangle with the given id promoted to full precision.
func (t *Tree) Triangle(triIndex int) geom.Triangle {
	return geom.Triangle{
		A: t.positions[t.indices.At(3*triIndex)].Vec64(),
		B: t.positions[t.indices.At(3*triIndex+1)].Vec64(),
		C: t.positions[t.indices.At(3*triIndex+2)].Vec64(),
	}
}

// Build a tabular representation of the tree statistics.
func (t *Tree) Stats() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Stat", "Value"})
	table.Append([]string{"Triangles", fmt.Sprint(t.stats.totalItems)})
	table.Append([]string{"Nodes", fmt.Sprint(t.stats.nodes)})
	table.Append([]string{"Leafs", fmt.Sprint(t.stats.leafs)})
	table.Append([]string{"Max depth", fmt.Sprint(t.stats.maxDepth)})
	table.Append([]string{"Build time", t.stats.buildTime.String()})
	table.Append([]string{" ", " "})
	table.Append([]string{"Nodes size", fmtSize(t.nodes)})
	table.Append([]string{"Vertices size", fmtSize(t.positions)})
	table.Append([]string{"Triangle list size", fmtSize(t.triangles)})
	table.SetFooter([]string{"Total", fmtSize(t.nodes, t.positions, t.triangles)})

	table.Render()
	return buf.String()
}

// Sum the total space used by a set of slices and return back a formatted
// value with the appropriate byte/kb/mb unit.
func fmtSize(items ...interface{}) string {
	var totalBytes float32 = 0.0
	for _, item := range items {
		t := reflect.TypeOf(item)
		v := reflect.ValueOf(item)
		if v.Len() == 0 {
			continue
		}

		totalBytes += float32(int(t.Elem().Size()) * v.Len())
	}

	if totalBytes < 1e3 {
		return fmt.Sprintf("%3d bytes", int(totalBytes))
	} else if totalBytes < 1e6 {
		return fmt.Sprintf("%3.1f kb", totalBytes/1e3)
	}
	return fmt.Sprintf("%5.1f mb", totalBytes/1e6)
}
