package cmd

import (
	"bytes"
	"fmt"
	"time"

	"github.com/achilleasa/raypick/scene"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

var raycastFlags = append([]cli.Flag{
	cli.StringFlag{
		Name:  "origin",
		Value: "0,0,0",
		Usage: "ray origin as x,y,z",
	},
	cli.StringFlag{
		Name:  "dir",
		Value: "0,0,-1",
		Usage: "ray direction as x,y,z",
	},
	cli.Float64Flag{
		Name:  "near",
		Usage: "discard hits closer than this distance",
	},
	cli.Float64Flag{
		Name:  "far",
		Usage: "discard hits farther than this distance (0 disables the limit)",
	},
	cli.BoolFlag{
		Name:  "first",
		Usage: "only report the first hit of each object (batch members stop at the first member hit in list order)",
	},
	cli.StringSliceFlag{
		Name:  "layers",
		Value: &cli.StringSlice{},
		Usage: "enabled layers (defaults to content, mesh and line)",
	},
}, sceneFlags...)

// Get the flags of the raycast command.
func RaycastFlags() []cli.Flag {
	return raycastFlags
}

// Cast a single ray against a model and display the hits.
func Raycast(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	origin, err := parseVec3(ctx.String("origin"))
	if err != nil {
		return err
	}
	dir, err := parseVec3(ctx.String("dir"))
	if err != nil {
		return err
	}
	if dir.Len() == 0 {
		return fmt.Errorf("ray direction must not be a zero vector")
	}
	layers, err := parseLayers(ctx.StringSlice("layers"))
	if err != nil {
		return err
	}

	root, _, err := loadScene(ctx)
	if err != nil {
		return err
	}

	rc := scene.NewRaycaster(origin, dir, ctx.Float64("near"), ctx.Float64("far"))
	rc.FirstHitOnly = ctx.Bool("first")
	rc.Layers = layers

	start := time.Now()
	intersects := rc.IntersectObject(root, true, nil)
	elapsed := time.Since(start)

	logger.Noticef("%d hits in %s\n%s", len(intersects), elapsed, hitTable(intersects))
	return nil
}

func hitTable(intersects []scene.Intersection) string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"#", "Distance", "Point", "Object", "Batch index", "Face", "Material", "UV"})
	for i, in := range intersects {
		batchIndex := "-"
		if in.BatchObject != nil {
			batchIndex = fmt.Sprintf("%d", in.BatchObject.BatchIndex)
		}
		face, material := "-", "-"
		if in.Face != nil {
			face = fmt.Sprintf("%d (%d, %d, %d)", in.FaceIndex, in.Face.A, in.Face.B, in.Face.C)
			material = fmt.Sprintf("%d", in.Face.MaterialIndex)
		}
		uv := "-"
		if in.UV != nil {
			uv = fmtVec2(*in.UV)
		}

		table.Append([]string{
			fmt.Sprintf("%d", i),
			fmt.Sprintf("%.6f", in.Distance),
			fmtVec3(in.Point),
			ownerName(in),
			batchIndex,
			face,
			material,
			uv,
		})
	}
	table.Render()
	return buf.String()
}

func fmtVec3(v mgl64.Vec3) string {
	return fmt.Sprintf("(%.6f, %.6f, %.6f)", v[0], v[1], v[2])
}

func fmtVec2(v mgl64.Vec2) string {
	return fmt.Sprintf("(%.4f, %.4f)", v[0], v[1])
}
