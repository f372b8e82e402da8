package cmd

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/achilleasa/raypick/asset/reader"
	"github.com/achilleasa/raypick/batch"
	"github.com/achilleasa/raypick/bvh"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Display model and batch index information.
func ShowModelInfo(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	if ctx.NArg() != 1 {
		return errors.New("missing model file argument")
	}

	model, err := reader.ReadModel(ctx.Args().First())
	if err != nil {
		return err
	}
	if len(model.Instances) == 0 {
		return fmt.Errorf("model %q does not contain any faces", ctx.Args().First())
	}

	index, err := model.BuildBatch(batch.BuildOptions{Concurrency: ctx.Int("workers")})
	if err != nil {
		return err
	}

	logger.Noticef("model information:\n%s", modelStats(model, index))
	return nil
}

func modelStats(model *reader.Model, index *batch.Index) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Member", "Triangles", "Vertices", "BVH nodes", "Bounds min", "Bounds max"})

	var totalTris, totalVerts, totalNodes int
	for _, member := range index.Members() {
		view := member.RenderView
		nodes := 0
		if tree, ok := member.Index().Hierarchy().(*bvh.Tree); ok {
			nodes = tree.NodeCount()
		}
		bounds := member.BoundingBox()
		tris := member.Index().TriangleCount()
		verts := len(view.Positions) / 3

		table.Append([]string{
			view.ID,
			fmt.Sprintf("%d", tris),
			fmt.Sprintf("%d", verts),
			fmt.Sprintf("%d", nodes),
			fmtVec3(bounds.Min),
			fmtVec3(bounds.Max),
		})
		totalTris += tris
		totalVerts += verts
		totalNodes += nodes
	}

	bounds := index.BoundingBox()
	table.SetFooter([]string{
		fmt.Sprintf("%d members", len(index.Members())),
		fmt.Sprintf("%d", totalTris),
		fmt.Sprintf("%d", totalVerts),
		fmt.Sprintf("%d", totalNodes),
		fmtVec3(bounds.Min),
		fmtVec3(bounds.Max),
	})
	table.Render()

	return fmt.Sprintf("%s%d objects, %d materials\n", buf.String(), len(model.Objects), len(model.Materials))
}
