package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/achilleasa/raypick/geom"
	"github.com/achilleasa/raypick/scene"
	"github.com/go-gl/mathgl/mgl64"
)

// Parse a "x,y,z" vector flag value.
func parseVec3(value string) (mgl64.Vec3, error) {
	tokens := strings.Split(value, ",")
	if len(tokens) != 3 {
		return mgl64.Vec3{}, fmt.Errorf("invalid vector %q; expected 3 comma separated values", value)
	}

	var v mgl64.Vec3
	for i, token := range tokens {
		coord, err := strconv.ParseFloat(strings.TrimSpace(token), 64)
		if err != nil {
			return mgl64.Vec3{}, fmt.Errorf("invalid vector %q: %w", value, err)
		}
		v[i] = coord
	}
	return v, nil
}

// Parse a list of layer names into a layer mask. An empty list selects the
// default raycaster layers.
func parseLayers(names []string) (scene.Layers, error) {
	if len(names) == 0 {
		return scene.LayersOf(scene.LayerContent, scene.LayerContentMesh, scene.LayerContentLine), nil
	}

	var mask scene.Layers
	for _, entry := range names {
		for _, name := range strings.Split(entry, ",") {
			l, err := scene.ParseLayer(name)
			if err != nil {
				return 0, err
			}
			mask.Enable(l)
		}
	}
	return mask, nil
}

// Parse a material side override. An empty value keeps the model materials
// unchanged.
func parseSide(value string) (*geom.Side, error) {
	if value == "" {
		return nil, nil
	}
	for _, side := range []geom.Side{geom.FrontSide, geom.BackSide, geom.DoubleSide} {
		if side.String() == value {
			return &side, nil
		}
	}
	return nil, fmt.Errorf("invalid side %q; expected one of front, back or double", value)
}
