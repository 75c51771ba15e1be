// Package pipeline turns visible map tiles into committed scene meshes.
package pipeline

import (
	"fmt"
	"time"

	"github.com/jinzhu/copier"

	"github.com/pissang/little-big-city/internal/surface"
	"github.com/pissang/little-big-city/pkg/config"
)

const (
	StyleSphere = "sphere"
	StyleTile   = "tile"
)

// Params are the tunables of a pipeline pass. Field names mirror
// config.Pipeline and config.Upstream so they can be copied across.
type Params struct {
	Style     string
	Radius    float64
	Curveness float64
	Zoom      uint32
	MaxTiles  int

	CacheSize   int
	Concurrency int
	Debounce    time.Duration

	SubdivideDistance   float64
	TessellateTolerance float64
	ScaleX              float64
	ScaleY              float64
	LineWidth           float64
	SimplifyTolerance   float64

	EarthDepth    float64
	EarthSegments int
	EarthWidth    float64
	EarthHeight   float64

	AnimationDelay    time.Duration
	AnimationDuration time.Duration
	AnimationTick     time.Duration

	// CloudSeed makes cloud shapes reproducible; 0 seeds from the clock.
	CloudSeed uint64

	URLTemplate string
	APIKey      string
	Subdomains  []string
}

func DefaultParams() Params {
	return Params{
		Style:               StyleSphere,
		Radius:              60,
		Curveness:           1,
		Zoom:                16,
		MaxTiles:            6,
		CacheSize:           50,
		Concurrency:         6,
		Debounce:            500 * time.Millisecond,
		SubdivideDistance:   4,
		TessellateTolerance: 5,
		ScaleX:              1e4,
		ScaleY:              1.4e4,
		LineWidth:           0.5,
		SimplifyTolerance:   0.01,
		EarthDepth:          4,
		EarthSegments:       20,
		EarthWidth:          55,
		EarthHeight:         58.5,
		AnimationDelay:      time.Second,
		AnimationDuration:   2 * time.Second,
		AnimationTick:       16 * time.Millisecond,
		URLTemplate:         "https://{s}.tile.nextzen.org/tilezen/vector/v1/256/all/{z}/{x}/{y}.mvt?api_key={key}",
		Subdomains:          []string{"a", "b", "c"},
	}
}

// NewParams maps the pipeline and upstream config groups onto Params.
func NewParams(p config.Pipeline, u config.Upstream) (Params, error) {
	var params Params
	if err := copier.Copy(&params, &p); err != nil {
		return Params{}, fmt.Errorf("failed to copy pipeline config: %w", err)
	}
	if err := copier.Copy(&params, &u); err != nil {
		return Params{}, fmt.Errorf("failed to copy upstream config: %w", err)
	}
	return params, nil
}

func (p Params) TileStyle() bool {
	return p.Style == StyleTile
}

func (p Params) Projector() surface.Projector {
	return surface.Projector{FullSize: p.Radius, Curveness: p.Curveness}
}

// EarthRect is the ground plate footprint in tile style, centered on the origin.
func (p Params) EarthRect() surface.Rect {
	return surface.Rect{
		X:      -p.EarthWidth / 2,
		Y:      -p.EarthHeight / 2,
		Width:  p.EarthWidth,
		Height: p.EarthHeight,
	}
}
