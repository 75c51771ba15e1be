// Package subdivide inserts extra vertices along long edges so that later
// surface projection does not facet straight segments.
package subdivide

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Points returns a copy of pts where no two consecutive points are farther
// apart than maxDist. Each long segment is split into ⌈d/maxDist⌉ equal parts.
// The first and last point are kept bit-for-bit.
func Points(pts []orb.Point, maxDist float64) []orb.Point {
	if len(pts) < 2 || maxDist <= 0 {
		return pts
	}

	out := make([]orb.Point, 0, len(pts))
	for i := 0; i < len(pts)-1; i++ {
		a, b := pts[i], pts[i+1]
		out = append(out, a)

		dist := planar.Distance(a, b)
		n := int(math.Ceil(dist / maxDist))
		for k := 1; k < n; k++ {
			t := float64(k) / float64(n)
			out = append(out, orb.Point{
				a[0] + (b[0]-a[0])*t,
				a[1] + (b[1]-a[1])*t,
			})
		}
	}
	return append(out, pts[len(pts)-1])
}

func LineString(ls orb.LineString, maxDist float64) orb.LineString {
	return orb.LineString(Points(ls, maxDist))
}

func Ring(r orb.Ring, maxDist float64) orb.Ring {
	return orb.Ring(Points(r, maxDist))
}

// Geometry subdivides every line and ring of g. Points and unsupported
// geometry types are returned unchanged.
func Geometry(g orb.Geometry, maxDist float64) orb.Geometry {
	switch g := g.(type) {
	case orb.LineString:
		return LineString(g, maxDist)
	case orb.MultiLineString:
		for i := range g {
			g[i] = LineString(g[i], maxDist)
		}
		return g
	case orb.Ring:
		return Ring(g, maxDist)
	case orb.Polygon:
		for i := range g {
			g[i] = Ring(g[i], maxDist)
		}
		return g
	case orb.MultiPolygon:
		for i := range g {
			for k := range g[i] {
				g[i][k] = Ring(g[i][k], maxDist)
			}
		}
		return g
	}
	return g
}

// Features rewrites the geometry of each feature in place.
func Features(features []*geojson.Feature, maxDist float64) {
	for _, f := range features {
		if f == nil || f.Geometry == nil {
			continue
		}
		f.Geometry = Geometry(f.Geometry, maxDist)
	}
}
