// Package style describes how each decoded layer is extruded and colored.
package style

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gopkg.in/yaml.v3"

	"github.com/pissang/little-big-city/internal/extrude"
	"github.com/pissang/little-big-city/internal/scene"
	"github.com/pissang/little-big-city/internal/vectortile"
)

//go:embed default.yaml
var defaultPreset []byte

const (
	GeometryPolygon  = "polygon"
	GeometryPolyline = "polyline"

	diffuseMap = "paper-detail.png"

	defaultCloudColor = "#ffffff"
)

type Preset struct {
	Earth  Earth   `yaml:"earth"`
	Clouds Clouds  `yaml:"clouds"`
	Layers []Layer `yaml:"layers" validate:"dive"`
}

type Earth struct {
	Color string `yaml:"color" validate:"required,hexcolor"`
}

// Clouds is optional in preset files and defaults to white.
type Clouds struct {
	Color string `yaml:"color" validate:"omitempty,hexcolor"`
}

type Layer struct {
	Kind     vectortile.Kind `yaml:"kind" validate:"oneof=buildings roads water"`
	Geometry string          `yaml:"geometry" validate:"oneof=polygon polyline"`
	Color    string          `yaml:"color" validate:"required,hexcolor"`
	Depth    Depth           `yaml:"depth"`
}

// Depth is either a fixed extrusion height or a linear function of a
// numeric feature property: (value or Default) * Scale + Offset.
type Depth struct {
	Fixed    float64 `yaml:"fixed" validate:"gte=0"`
	Property string  `yaml:"property"`
	Default  float64 `yaml:"default"`
	Scale    float64 `yaml:"scale"`
	Offset   float64 `yaml:"offset"`
}

// Default returns the built-in preset.
func Default() Preset {
	p, err := Parse(defaultPreset)
	if err != nil {
		panic(fmt.Sprintf("style: invalid built-in preset: %v", err))
	}
	return p
}

// Load reads a preset from path, or returns Default when path is empty.
func Load(path string) (Preset, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, fmt.Errorf("failed to read style file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (Preset, error) {
	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Preset{}, fmt.Errorf("failed to parse style: %w", err)
	}
	if err := validator.New().Struct(p); err != nil {
		return Preset{}, fmt.Errorf("invalid style: %w", err)
	}

	seen := make(map[vectortile.Kind]bool, len(p.Layers))
	for _, l := range p.Layers {
		if seen[l.Kind] {
			return Preset{}, fmt.Errorf("invalid style: duplicate layer %q", l.Kind)
		}
		seen[l.Kind] = true
	}
	if p.Clouds.Color == "" {
		p.Clouds.Color = defaultCloudColor
	}
	return p, nil
}

func (p Preset) Layer(kind vectortile.Kind) (Layer, bool) {
	for _, l := range p.Layers {
		if l.Kind == kind {
			return l, true
		}
	}
	return Layer{}, false
}

func (p Preset) EarthMaterial() scene.Material {
	return scene.Material{
		Name:       "mat_earth",
		Color:      p.Earth.Color,
		Roughness:  1,
		DiffuseMap: diffuseMap,
		UVRepeat:   [2]float64{2, 2},
	}
}

func (p Preset) CloudMaterial() scene.Material {
	return scene.Material{
		Name:      "mat_cloud",
		Color:     p.Clouds.Color,
		Roughness: 1,
		UVRepeat:  [2]float64{1, 1},
	}
}

// Material returns the material of everything committed under node.
func (p Preset) Material(node scene.Node) (scene.Material, bool) {
	switch node {
	case scene.NodeEarth:
		return p.EarthMaterial(), true
	case scene.NodeClouds:
		return p.CloudMaterial(), true
	}
	l, ok := p.Layer(vectortile.Kind(node))
	if !ok {
		return scene.Material{}, false
	}
	return l.Material(), true
}

// Color returns the color of node.
func (p Preset) Color(node scene.Node) (string, bool) {
	m, ok := p.Material(node)
	return m.Color, ok
}

// WithColor returns a copy of p with node recolored. The receiver's layers
// are not modified.
func (p Preset) WithColor(node scene.Node, color string) (Preset, error) {
	if err := validator.New().Var(color, "required,hexcolor"); err != nil {
		return Preset{}, fmt.Errorf("invalid color %q: %w", color, err)
	}
	layers := make([]Layer, len(p.Layers))
	copy(layers, p.Layers)
	p.Layers = layers

	switch node {
	case scene.NodeEarth:
		p.Earth.Color = color
		return p, nil
	case scene.NodeClouds:
		p.Clouds.Color = color
		return p, nil
	}
	for i := range p.Layers {
		if scene.Node(p.Layers[i].Kind) == node {
			p.Layers[i].Color = color
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("no layer for node %q", node)
}

func (l Layer) Material() scene.Material {
	return scene.Material{
		Name:       "mat_" + string(l.Kind),
		Color:      l.Color,
		Roughness:  1,
		DiffuseMap: diffuseMap,
		UVRepeat:   [2]float64{10, 10},
	}
}

// Accepts reports whether g matches the layer's geometry kind.
func (l Layer) Accepts(g orb.Geometry) bool {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return l.Geometry == GeometryPolygon
	case orb.LineString, orb.MultiLineString:
		return l.Geometry == GeometryPolyline
	}
	return false
}

// Filter drops features whose geometry does not match the layer.
func (l Layer) Filter(features []*geojson.Feature) []*geojson.Feature {
	out := features[:0]
	for _, f := range features {
		if f != nil && f.Geometry != nil && l.Accepts(f.Geometry) {
			out = append(out, f)
		}
	}
	return out
}

func (d Depth) Of(f *geojson.Feature) float64 {
	if d.Property == "" {
		return d.Fixed
	}
	v, ok := number(f.Properties[d.Property])
	if !ok || v == 0 {
		v = d.Default
	}
	return v*d.Scale + d.Offset
}

func (d Depth) Func() extrude.DepthFunc {
	return d.Of
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
