package main

import (
	"fmt"
	"os"

	"github.com/achilleasa/raypick/cmd"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "raypick"
	app.Usage = "build spatial indices for triangle meshes and raycast against them"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "set the log level (critical, error, warning, notice, info or debug)",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "info",
			Usage: "display model and spatial index statistics",
			Description: `
Parse a wavefront obj file, build a batch index over all object instances and
display the per member triangle, vertex and BVH node counts.`,
			ArgsUsage: "model.obj",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "workers",
					Usage: "max number of parallel index builds (defaults to the number of CPUs)",
				},
			},
			Action: cmd.ShowModelInfo,
		},
		{
			Name:  "raycast",
			Usage: "cast a single ray against a model",
			Description: `
Load a model, assemble a scene graph using the selected acceleration mode and
list all hits of a single ray sorted by distance.`,
			ArgsUsage: "model.obj",
			Flags:     cmd.RaycastFlags(),
			Action:    cmd.Raycast,
		},
		{
			Name:  "depth",
			Usage: "render a depth map by casting a ray per pixel",
			Description: `
Load a model and cast one ray through each pixel of the model camera. When the
model does not define a camera, one is placed so that it frames the model.`,
			ArgsUsage: "model.obj",
			Flags:     cmd.DepthFlags(),
			Action:    cmd.RenderDepth,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
