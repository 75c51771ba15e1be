// Package vectortile decodes Mapbox vector tiles into per-kind GeoJSON features.
package vectortile

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
)

// Kind is the semantic type of a feature list.
type Kind string

const (
	KindBuildings Kind = "buildings"
	KindRoads     Kind = "roads"
	KindWater     Kind = "water"
)

// Kinds lists the decoded layers in build order.
var Kinds = []Kind{KindBuildings, KindRoads, KindWater}

var (
	// ErrEmptyTile is returned for a zero-length payload.
	ErrEmptyTile = errors.New("empty tile data")
	// ErrMissingBuildings is returned when the tile has no buildings layer.
	ErrMissingBuildings = errors.New("tile has no buildings layer")
)

var gzipMagic = []byte{0x1f, 0x8b}

// Features holds decoded features grouped by kind. Coordinates are WGS84
// longitude/latitude right after Decode.
type Features map[Kind][]*geojson.Feature

// Count returns the total number of features.
func (f Features) Count() int {
	n := 0
	for _, list := range f {
		n += len(list)
	}
	return n
}

// Clone returns a deep copy so geometry can be mutated without touching f.
func (f Features) Clone() Features {
	out := make(Features, len(f))
	for kind, list := range f {
		cloned := make([]*geojson.Feature, 0, len(list))
		for _, feat := range list {
			if feat == nil {
				continue
			}
			c := geojson.NewFeature(nil)
			c.ID = feat.ID
			c.Type = feat.Type
			if feat.Geometry != nil {
				c.Geometry = orb.Clone(feat.Geometry)
			}
			c.Properties = feat.Properties.Clone()
			cloned = append(cloned, c)
		}
		out[kind] = cloned
	}
	return out
}

// Decode parses a (possibly gzipped) vector tile payload and projects its
// buildings, roads and water layers to WGS84 using tile.
func Decode(data []byte, tile maptile.Tile) (Features, error) {
	if len(data) == 0 {
		return nil, ErrEmptyTile
	}

	var (
		layers mvt.Layers
		err    error
	)
	if bytes.HasPrefix(data, gzipMagic) {
		layers, err = mvt.UnmarshalGzipped(data)
	} else {
		layers, err = mvt.Unmarshal(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal MVT data: %w", err)
	}

	byName := make(map[string]*mvt.Layer, len(layers))
	for _, l := range layers {
		byName[l.Name] = l
	}
	if _, ok := byName[string(KindBuildings)]; !ok {
		return nil, ErrMissingBuildings
	}

	features := make(Features, len(Kinds))
	for _, kind := range Kinds {
		l, ok := byName[string(kind)]
		if !ok {
			continue
		}
		l.ProjectToWGS84(tile)
		list := make([]*geojson.Feature, 0, len(l.Features))
		for _, f := range l.Features {
			if f == nil || f.Geometry == nil {
				continue
			}
			list = append(list, f)
		}
		features[kind] = list
	}
	return features, nil
}
