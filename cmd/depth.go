package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"runtime"
	"time"

	"github.com/achilleasa/raypick/asset/reader"
	"github.com/achilleasa/raypick/scene"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

var depthFlags = append([]cli.Flag{
	cli.IntFlag{
		Name:  "width",
		Value: 512,
		Usage: "image width",
	},
	cli.IntFlag{
		Name:  "height",
		Value: 512,
		Usage: "image height",
	},
	cli.StringFlag{
		Name:  "out, o",
		Value: "depth.png",
		Usage: "image filename for the depth map",
	},
}, sceneFlags...)

// Get the flags of the depth command.
func DepthFlags() []cli.Flag {
	return depthFlags
}

// Render a depth map of a model by casting one ray per pixel.
func RenderDepth(ctx *cli.Context) error {
	if err := setupLogging(ctx); err != nil {
		return err
	}

	width, height := ctx.Int("width"), ctx.Int("height")
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", width, height)
	}

	root, model, err := loadScene(ctx)
	if err != nil {
		return err
	}

	cam := setupCamera(model, float64(width)/float64(height))

	workers := ctx.Int("workers")
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	start := time.Now()
	depth, err := renderDepth(context.Background(), root, cam, width, height, workers)
	if err != nil {
		return err
	}
	logger.Noticef("rendered %dx%d depth map in %d ms", width, height, time.Since(start).Nanoseconds()/1e6)

	f, err := os.Create(ctx.String("out"))
	if err != nil {
		return err
	}
	defer f.Close()

	if err = png.Encode(f, depthImage(depth, width, height)); err != nil {
		return err
	}
	logger.Noticef("wrote depth map to %s", ctx.String("out"))
	return nil
}

// Setup the camera stored with the model or frame the model bounds when
// the model does not define one.
func setupCamera(model *reader.Model, aspect float64) *scene.Camera {
	var cam *scene.Camera
	if mc := model.Camera; mc != nil {
		cam = scene.NewCamera(mc.FOV)
		cam.Position = mc.Eye
		cam.LookAt = mc.Look
		cam.Up = mc.Up
	} else {
		bounds := modelBounds(model)
		center := bounds.Center()
		radius := bounds.Size().Len() / 2
		cam = scene.NewCamera(45)
		cam.Position = center.Add(mgl64.Vec3{0, 0, radius / math.Tan(mgl64.DegToRad(22.5))})
		cam.LookAt = center
		cam.Far = 4 * (radius + 1)
	}
	cam.SetupProjection(aspect)
	return cam
}

// Cast a ray through the center of each pixel and record the distance to
// the nearest hit. Pixels without a hit get a +Inf depth. Each worker
// renders full rows with its own raycaster.
//
// All hits are collected since batch first hit queries stop at the first
// member in list order; the sorted raycaster output holds the nearest hit.
func renderDepth(ctx context.Context, root scene.Object, cam *scene.Camera, width, height, workers int) ([]float64, error) {
	if root == nil {
		return nil, errors.New("no scene to render")
	}

	depth := make([]float64, width*height)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for y := 0; y < height; y++ {
		y := y
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			rc := scene.NewRaycaster(cam.Position, mgl64.Vec3{0, 0, -1}, 0, 0)

			var intersects []scene.Intersection
			for x := 0; x < width; x++ {
				rc.Ray = cam.Ray((float64(x)+0.5)/float64(width), (float64(y)+0.5)/float64(height))
				intersects = rc.IntersectObject(root, true, intersects[:0])

				d := math.Inf(1)
				if len(intersects) > 0 {
					d = intersects[0].Distance
				}
				depth[y*width+x] = d
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return depth, nil
}

// Map depth values to a grayscale image where near hits are bright and
// misses are black.
func depthImage(depth []float64, width, height int) *image.Gray {
	minDepth, maxDepth := math.Inf(1), math.Inf(-1)
	for _, d := range depth {
		if math.IsInf(d, 1) {
			continue
		}
		minDepth = min(minDepth, d)
		maxDepth = max(maxDepth, d)
	}

	img := image.NewGray(image.Rect(0, 0, width, height))
	span := maxDepth - minDepth
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			d := depth[y*width+x]
			if math.IsInf(d, 1) {
				continue
			}

			shade := 1.0
			if span > 0 {
				shade = 1 - (d-minDepth)/span
			}
			img.SetGray(x, y, color.Gray{Y: uint8(32 + shade*223)})
		}
	}
	return img
}
