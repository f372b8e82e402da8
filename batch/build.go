package batch

import (
	"runtime"
	"time"

	"github.com/achilleasa/raypick/geom"
	"github.com/achilleasa/raypick/spatial"
	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/sync/errgroup"
)

// BuildOptions control batch construction.
type BuildOptions struct {
	// Max number of member indices built in parallel. Defaults to the
	// number of CPUs.
	Concurrency int

	// Options passed to each member spatial index.
	IndexOptions []spatial.Option

	// Optional per view placement transforms. They are applied before the
	// batch bounds are computed.
	Transforms []mgl64.Mat4
}

// Create a member for each render view, build the member indices in
// parallel and assemble them into a batch index. Members are assigned
// sequential batch indices in view order.
func Build(views []*RenderView, opts BuildOptions) (*Index, error) {
	if len(views) == 0 {
		return nil, ErrNoMembers
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	members := make([]*Member, len(views))
	for i, view := range views {
		members[i] = NewMember(view, i)
		if i < len(opts.Transforms) {
			members[i].SetTransform(opts.Transforms[i])
		}
	}

	start := time.Now()
	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, m := range members {
		member := m
		g.Go(func() error {
			return member.BuildBVH(member.RenderView.Bounds, opts.IndexOptions...)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Debugf(
		"built %d member indices in %d ms using %d workers",
		len(members), time.Since(start).Nanoseconds()/1e6, concurrency,
	)

	return New(members)
}

// Select the members with at least one triangle inside or crossing the
// frustum. Members are returned in batch order.
func SelectInFrustum(idx *Index, f geom.Frustum) []*Member {
	selected := make(map[*Member]bool)
	idx.Shapecast(Callbacks{
		IntersectsBounds: func(box geom.Box3, isLeaf bool, score float64, depth, nodeIndex int) geom.Containment {
			switch {
			case f.ContainsBox(box):
				return geom.Contained
			case f.IntersectsBox(box):
				return geom.Intersected
			}
			return geom.NotIntersected
		},
		IntersectsTriangle: func(tri geom.Triangle, triIndex int, contained bool, depth int, member *Member) bool {
			if contained || f.IntersectsBox(tri.Bounds()) {
				selected[member] = true
				// Stop visiting the remaining triangles of this member
				return true
			}
			return false
		},
	})

	var out []*Member
	for _, m := range idx.Members() {
		if selected[m] {
			out = append(out, m)
		}
	}
	return out
}
