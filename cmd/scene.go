package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/achilleasa/raypick/asset/reader"
	"github.com/achilleasa/raypick/batch"
	"github.com/achilleasa/raypick/geom"
	"github.com/achilleasa/raypick/mesh"
	"github.com/achilleasa/raypick/scene"
	"github.com/urfave/cli"
)

// The acceleration used by the meshes of a loaded scene.
type accelMode int

const (
	// A single mesh backed by a batch index over all instances.
	accelBatch accelMode = iota

	// A mesh per instance with its own spatial index.
	accelPerObject

	// A mesh per instance without any acceleration.
	accelNone
)

func (m accelMode) String() string {
	switch m {
	case accelBatch:
		return "batch"
	case accelPerObject:
		return "per-object"
	}
	return "fallback"
}

var sceneFlags = []cli.Flag{
	cli.BoolFlag{
		Name:  "per-object",
		Usage: "build a spatial index per object instead of a single batch index",
	},
	cli.BoolFlag{
		Name:  "fallback",
		Usage: "disable spatial indices and test every triangle",
	},
	cli.StringFlag{
		Name:  "side",
		Usage: "override the side of all materials (front, back or double)",
	},
	cli.IntFlag{
		Name:  "workers",
		Usage: "max number of parallel index builds (defaults to the number of CPUs)",
	},
}

// Load the model given as the first command argument and assemble a scene
// graph according to the scene flags.
func loadScene(ctx *cli.Context) (*scene.Node, *reader.Model, error) {
	if ctx.NArg() != 1 {
		return nil, nil, errors.New("missing model file argument")
	}

	side, err := parseSide(ctx.String("side"))
	if err != nil {
		return nil, nil, err
	}

	mode := accelBatch
	switch {
	case ctx.Bool("fallback"):
		mode = accelNone
	case ctx.Bool("per-object"):
		mode = accelPerObject
	}

	model, err := reader.ReadModel(ctx.Args().First())
	if err != nil {
		return nil, nil, err
	}
	if len(model.Instances) == 0 {
		return nil, nil, fmt.Errorf("model %q does not contain any faces", ctx.Args().First())
	}

	materials := model.MeshMaterials()
	if side != nil {
		for _, mat := range materials {
			mat.Side = *side
		}
	}

	start := time.Now()
	root, err := buildScene(model, materials, mode, ctx.Int("workers"))
	if err != nil {
		return nil, nil, err
	}
	logger.Noticef("assembled %s scene in %d ms", mode, time.Since(start).Nanoseconds()/1e6)

	return root, model, nil
}

func buildScene(model *reader.Model, materials []*mesh.Material, mode accelMode, workers int) (*scene.Node, error) {
	root := scene.NewNode("root")

	if mode == accelBatch {
		index, err := model.BuildBatch(batch.BuildOptions{Concurrency: workers})
		if err != nil {
			return nil, err
		}
		geometry, err := model.MergedGeometry()
		if err != nil {
			return nil, err
		}
		root.Add(mesh.NewBatchMesh("batch", index, geometry, materials...))
		return root, nil
	}

	for instIndex, inst := range model.Instances {
		geometry, err := inst.Object.Geometry()
		if err != nil {
			return nil, err
		}

		m := mesh.NewMesh(fmt.Sprintf("%s#%d", inst.Object.Name, instIndex), geometry, materials...)
		m.Matrix = inst.Transform
		if mode == accelPerObject {
			if err = m.BuildBVH(); err != nil {
				return nil, err
			}
		} else {
			// Compute cached bounds up front so concurrent queries never
			// write to the geometry
			geometry.ComputeBoundingSphere()
		}
		root.Add(m)
	}
	return root, nil
}

// Get the name of the batch member or object that owns an intersection.
func ownerName(in scene.Intersection) string {
	if in.BatchObject != nil {
		return in.BatchObject.RenderView.ID
	}
	return in.Object.Base().Name
}

// Get the bounds of all instances in a model padded so that flat models
// still get a usable camera frame.
func modelBounds(model *reader.Model) geom.Box3 {
	return model.Bounds().ExpandByScalar(1e-3)
}
