// Package polyops provides planar boolean operations over ring-based polygons.
package polyops

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// SetOps is the pluggable boolean-operation capability used by the pipeline.
// Implementations must return an empty MultiPolygon (not an error) for empty input.
type SetOps interface {
	Union(polygons []orb.Polygon) orb.MultiPolygon
	Intersect(subject orb.MultiPolygon, clip orb.Polygon) orb.MultiPolygon
}

// Polygons flattens the polygonal geometry of features. Other geometry types are skipped.
func Polygons(features []*geojson.Feature) []orb.Polygon {
	var out []orb.Polygon
	for _, f := range features {
		if f == nil {
			continue
		}
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			out = append(out, g)
		case orb.MultiPolygon:
			out = append(out, g...)
		}
	}
	return out
}

// UnionFeatures merges all polygon rings of features into a single feature.
func UnionFeatures(ops SetOps, features []*geojson.Feature) *geojson.Feature {
	merged := ops.Union(Polygons(features))
	return geojson.NewFeature(simplest(merged))
}

// CullToRect clips every polygonal feature against rect. Features whose
// intersection is empty get a nil geometry; callers filter them out.
func CullToRect(ops SetOps, features []*geojson.Feature, rect orb.Bound) {
	clip := rect.ToPolygon()
	for _, f := range features {
		if f == nil || f.Geometry == nil {
			continue
		}

		var subject orb.MultiPolygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			subject = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			subject = g
		default:
			continue
		}

		bound := subject.Bound()
		if !bound.Intersects(rect) {
			f.Geometry = nil
			continue
		}
		if rect.Contains(bound.Min) && rect.Contains(bound.Max) {
			continue
		}

		result := ops.Intersect(subject, clip)
		if len(result) == 0 {
			f.Geometry = nil
			continue
		}
		f.Geometry = simplest(result)
	}
}

// simplest returns a Polygon when mp holds exactly one polygon.
func simplest(mp orb.MultiPolygon) orb.Geometry {
	if len(mp) == 1 {
		return mp[0]
	}
	if mp == nil {
		return orb.MultiPolygon{}
	}
	return mp
}
