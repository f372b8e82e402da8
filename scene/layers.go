package scene

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownLayer = errors.New("scene: unknown layer")

// A Layer is a category channel that scene nodes can be assigned to.
type Layer uint8

const (
	LayerNone Layer = iota
	LayerContent
	LayerProps
	LayerShadowcatcher
	LayerOverlay
	LayerMeasurements
)

// Content sub-categories.
const (
	LayerContentMesh Layer = iota + 10
	LayerContentLine
	LayerContentPoint
	LayerContentText
	LayerContentPointCloud
)

var layerNames = map[Layer]string{
	LayerNone:              "none",
	LayerContent:           "content",
	LayerProps:             "props",
	LayerShadowcatcher:     "shadowcatcher",
	LayerOverlay:           "overlay",
	LayerMeasurements:      "measurements",
	LayerContentMesh:       "mesh",
	LayerContentLine:       "line",
	LayerContentPoint:      "point",
	LayerContentText:       "text",
	LayerContentPointCloud: "pointcloud",
}

func (l Layer) String() string {
	if name, ok := layerNames[l]; ok {
		return name
	}
	return "unknown"
}

// Map a layer name (case-insensitive) to a Layer.
func ParseLayer(name string) (Layer, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for l, layerName := range layerNames {
		if layerName == name {
			return l, nil
		}
	}
	return LayerNone, fmt.Errorf("%w %q", ErrUnknownLayer, name)
}

// Layers is a bitmask of enabled layer channels.
type Layers uint32

// Create a mask with the given layers enabled.
func LayersOf(layers ...Layer) Layers {
	var mask Layers
	for _, l := range layers {
		mask.Enable(l)
	}
	return mask
}

// Enable only the given layer.
func (m *Layers) Set(l Layer) {
	*m = 1 << l
}

// Enable a layer.
func (m *Layers) Enable(l Layer) {
	*m |= 1 << l
}

// Disable a layer.
func (m *Layers) Disable(l Layer) {
	*m &^= 1 << l
}

// Toggle a layer.
func (m *Layers) Toggle(l Layer) {
	*m ^= 1 << l
}

// Enable all layers.
func (m *Layers) EnableAll() {
	*m = ^Layers(0)
}

// Disable all layers.
func (m *Layers) DisableAll() {
	*m = 0
}

// Check whether a layer is enabled.
func (m Layers) IsEnabled(l Layer) bool {
	return m&(1<<l) != 0
}

// Check whether the two masks share at least one enabled layer.
func (m Layers) Test(other Layers) bool {
	return m&other != 0
}
