package bvh

import (
	"math"
	"time"

	"github.com/achilleasa/raypick/log"
	"github.com/achilleasa/raypick/types"
)

type Axis uint8

const (
	XAxis Axis = iota
	YAxis
	ZAxis

	// The BVH builder will not attempt to calculate split candidates
	// if the centroid spread along an axis is less than this threshold.
	minSideLength float32 = 1e-6

	// Number of split candidates evaluated per axis at the root. Deeper
	// nodes evaluate maxSplitCandidates / (depth+1) candidates but never
	// less than minSplitCandidates.
	maxSplitCandidates = 64
	minSplitCandidates = 8

	// Work lists smaller than this are scored on the calling goroutine.
	parallelScoreThreshold = 2048
)

var (
	// A split scoring strategy that uses the surface area heuristic (SAH).
	SurfaceAreaHeuristic = surfaceAreaHeuristic{}

	logger = log.New("bvh builder")
)

// The BoundedVolume interface is implemented by all primitives that can
// be partitioned by the bvh builder.
type BoundedVolume interface {
	BBox() [2]types.Vec3
	Center() types.Vec3
}

// A callback that is called whenever the BVH builder creates a new leaf.
type LeafCallback func(leaf *Node, itemList []BoundedVolume)

// A split scoring strategy.
type ScoreStrategy interface {
	// Calculate a score for splitting workList at splitPoint along a particular Axis.
	ScoreSplit(workList []BoundedVolume, splitAxis Axis, splitPoint float32) (leftCount, rightCount int, score float32)

	// Calculate a score for all items in workList.
	ScorePartition(workList []BoundedVolume) (score float32)
}

// Options control the shape of the generated tree.
type Options struct {
	// The BVH builder will automatically generate leafs if the incoming
	// work length is <= MinLeafItems.
	MinLeafItems int

	// Nodes at this depth are always turned into leafs.
	MaxDepth int

	// The split scoring strategy to use.
	Strategy ScoreStrategy
}

// Get the default build options.
func DefaultOptions() Options {
	return Options{
		MinLeafItems: 8,
		MaxDepth:     40,
		Strategy:     SurfaceAreaHeuristic,
	}
}

// Fill any zero option values with their defaults.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MinLeafItems <= 0 {
		o.MinLeafItems = def.MinLeafItems
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = def.MaxDepth
	}
	if o.Strategy == nil {
		o.Strategy = def.Strategy
	}
	return o
}

type splitScore struct {
	axis       Axis
	splitPoint float32

	leftCount, rightCount int
	score                 float32
}

// Check whether s should be preferred over other. Ties are broken by axis
// and split point so that the generated tree does not depend on the order
// in which the scoring goroutines report back.
func (s *splitScore) betterThan(other *splitScore) bool {
	if other == nil {
		return true
	}
	if s.score != other.score {
		return s.score < other.score
	}
	if s.axis != other.axis {
		return s.axis < other.axis
	}
	return s.splitPoint < other.splitPoint
}

type stats struct {
	partitionedItems int
	totalItems       int
	nodes            int
	leafs            int
	maxDepth         int
	buildTime        time.Duration
}

type builder struct {
	logger log.Logger

	// Bvh nodes stored as a contiguous list
	nodes []Node

	// A callback invoked to set up BVH leafs.
	leafCb LeafCallback

	opts Options

	// Stats
	stats stats
}

// Construct a BVH from a set of bounded volumes.
//
// The builder uses SAH for scoring splits by default:
// score = num_polygons * node bbox face area.
//
// The root node is always stored at index 0 and child nodes are always
// stored after their parent. Leafs are emitted in depth-first order so the
// leafs of any subtree occupy a contiguous range of callback invocations.
func Partition(workList []BoundedVolume, opts Options, leafCb LeafCallback) []Node {
	nodes, _ := partitionWithStats(workList, opts, leafCb)
	return nodes
}

func partitionWithStats(workList []BoundedVolume, opts Options, leafCb LeafCallback) ([]Node, stats) {
	b := &builder{
		logger: logger,
		nodes:  make([]Node, 0, 2*len(workList)/max(opts.MinLeafItems, 1)+1),
		leafCb: leafCb,
		opts:   opts.withDefaults(),
		stats: stats{
			totalItems: len(workList),
		},
	}

	start := time.Now()
	b.partition(workList, 0)
	b.stats.buildTime = time.Since(start)
	b.logger.Debugf(
		"BVH tree build time: %d ms, items: %d, maxDepth: %d, nodes: %d, leafs: %d",
		b.stats.buildTime.Nanoseconds()/1e6,
		b.stats.totalItems, b.stats.maxDepth, b.stats.nodes, b.stats.leafs,
	)
	return b.nodes, b.stats
}

// Partition worklist and return node index.
func (b *builder) partition(workList []BoundedVolume, depth int) uint32 {
	if depth > b.stats.maxDepth {
		b.stats.maxDepth = depth
	}

	node := Node{
		Min: types.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
		Max: types.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32},
	}

	// Calculate bounding box for node and for the item centers. Split
	// candidates are placed inside the center bounds.
	cmin := node.Min
	cmax := node.Max
	for _, item := range workList {
		itemBBox := item.BBox()
		node.Min = types.MinVec3(node.Min, itemBBox[0])
		node.Max = types.MaxVec3(node.Max, itemBBox[1])
		center := item.Center()
		cmin = types.MinVec3(cmin, center)
		cmax = types.MaxVec3(cmax, center)
	}

	// Do we have enough items for partitioning? If not create a leaf
	if len(workList) <= b.opts.MinLeafItems || depth >= b.opts.MaxDepth {
		return b.createLeaf(&node, workList)
	}

	bestSplit := b.findSplit(workList, cmin, cmax, depth)

	// If we can't find a split that improves the current node score create a leaf
	if bestSplit == nil {
		return b.createLeaf(&node, workList)
	}

	// split work list into two sets
	leftWorkList := make([]BoundedVolume, bestSplit.leftCount)
	rightWorkList := make([]BoundedVolume, bestSplit.rightCount)
	leftIndex := 0
	rightIndex := 0
	for _, item := range workList {
		center := item.Center()
		if center[bestSplit.axis] < bestSplit.splitPoint {
			leftWorkList[leftIndex] = item
			leftIndex++
		} else {
			rightWorkList[rightIndex] = item
			rightIndex++
		}
	}

	// Add node to list
	nodeIndex := len(b.nodes)
	b.nodes = append(b.nodes, node)
	b.stats.nodes++

	// Partition children and update node indices
	leftNodeIndex := b.partition(leftWorkList, depth+1)
	rightNodeIndex := b.partition(rightWorkList, depth+1)
	b.nodes[nodeIndex].SetChildNodes(leftNodeIndex, rightNodeIndex)

	return uint32(nodeIndex)
}

// Evaluate split candidates along each axis and return the split with the
// best score or nil if no split improves the score of the unsplit list.
func (b *builder) findSplit(workList []BoundedVolume, cmin, cmax types.Vec3, depth int) *splitScore {
	candidates := max(maxSplitCandidates/(depth+1), minSplitCandidates)

	type candidate struct {
		axis       Axis
		splitPoint float32
	}
	var candidateList []candidate

	side := cmax.Sub(cmin)
	for axis := XAxis; axis <= ZAxis; axis++ {
		// Skip axis if the item centers are too close to be separated
		if side[axis] < minSideLength {
			continue
		}

		splitStep := side[axis] / float32(candidates)
		for k := 1; k < candidates; k++ {
			candidateList = append(candidateList, candidate{axis, cmin[axis] + float32(k)*splitStep})
		}
	}
	if len(candidateList) == 0 {
		return nil
	}

	// Calc current node score
	best := &splitScore{score: b.opts.Strategy.ScorePartition(workList)}
	score := func(c candidate) splitScore {
		lCount, rCount, score := b.opts.Strategy.ScoreSplit(workList, c.axis, c.splitPoint)
		return splitScore{
			axis:       c.axis,
			splitPoint: c.splitPoint,

			leftCount:  lCount,
			rightCount: rCount,
			score:      score,
		}
	}

	var bestSplit *splitScore
	consider := func(s splitScore) {
		if s.leftCount == 0 || s.rightCount == 0 || s.score >= best.score {
			return
		}
		if s.betterThan(bestSplit) {
			bestSplit = &s
		}
	}

	if len(workList) < parallelScoreThreshold {
		for _, c := range candidateList {
			consider(score(c))
		}
		return bestSplit
	}

	// Run axis split tests in parallel
	scoreChan := make(chan splitScore, len(candidateList))
	for _, c := range candidateList {
		go func(c candidate) {
			scoreChan <- score(c)
		}(c)
	}

	// Process all scores and pick the best split
	for pendingScores := len(candidateList); pendingScores > 0; pendingScores-- {
		consider(<-scoreChan)
	}
	return bestSplit
}

// Setup the given node item as a leaf node containing all items in the work list.
// Returns the index to the node in the bvh node array.
func (b *builder) createLeaf(node *Node, workList []BoundedVolume) uint32 {
	b.leafCb(node, workList)

	// append node to list
	nodeIndex := len(b.nodes)
	b.nodes = append(b.nodes, *node)

	// update stats
	b.stats.nodes++
	b.stats.leafs++
	b.stats.partitionedItems += len(workList)

	return uint32(nodeIndex)
}

// A score implementation that uses surface area heuristic for calculating split scores.
type surfaceAreaHeuristic struct{}

// Score a BVH split based on the surface area heuristic. The SAH calculates
// the split score using the formula (lower score is better):
//
// left count * left BBOX area + rightCount * right BBOX area.
//
// SAH avoids splits that generate empty partitions by assigning the worst
// possible score (MaxFloat32) when it enounters such cases.
func (h surfaceAreaHeuristic) ScoreSplit(workList []BoundedVolume, axis Axis, splitPoint float32) (leftCount, rightCount int, score float32) {
	lmin := types.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	rmin := types.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	lmax := types.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}
	rmax := types.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}

	for _, item := range workList {
		center := item.Center()
		itemBBox := item.BBox()
		if center[axis] < splitPoint {
			leftCount++
			lmin = types.MinVec3(lmin, itemBBox[0])
			lmax = types.MaxVec3(lmax, itemBBox[1])
		} else {
			rightCount++
			rmin = types.MinVec3(rmin, itemBBox[0])
			rmax = types.MaxVec3(rmax, itemBBox[1])
		}
	}

	// Make sure that we don't generate empty partitions
	if leftCount == 0 || rightCount == 0 {
		return leftCount, rightCount, math.MaxFloat32
	}

	return leftCount, rightCount, float32(leftCount)*halfArea(lmin, lmax) + float32(rightCount)*halfArea(rmin, rmax)
}

// Calculate score for a partitioned workList using formula:
// count * BBOX area
//
// If the workList is empty, then this method returns the worst possible
// score (MaxFloat32).
func (h surfaceAreaHeuristic) ScorePartition(workList []BoundedVolume) (score float32) {
	if len(workList) == 0 {
		return math.MaxFloat32
	}

	min := types.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	max := types.Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}

	for _, item := range workList {
		itemBBox := item.BBox()
		min = types.MinVec3(min, itemBBox[0])
		max = types.MaxVec3(max, itemBBox[1])
	}

	return float32(len(workList)) * halfArea(min, max)
}

func halfArea(min, max types.Vec3) float32 {
	side := max.Sub(min)
	return side[0]*side[1] + side[1]*side[2] + side[0]*side[2]
}
