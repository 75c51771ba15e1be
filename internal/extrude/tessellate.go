package extrude

import (
	"fmt"

	"github.com/ByteArena/poly2tri-go"
	"github.com/paulmach/orb"
)

// tessellate runs a constrained Delaunay triangulation over an open outer
// ring and its holes. It returns the vertices and counter-clockwise
// triangles indexing into them.
func tessellate(outer orb.Ring, holes []orb.Ring) (pts []orb.Point, tris []int, err error) {
	// poly2tri reports collinear edges, repeated points and intersecting
	// constraints by panicking.
	defer func() {
		if r := recover(); r != nil {
			pts, tris, err = nil, nil, fmt.Errorf("tessellate: %v", r)
		}
	}()

	index := make(map[*poly2tri.Point]int, len(outer))
	contour := func(r orb.Ring) []*poly2tri.Point {
		out := make([]*poly2tri.Point, len(r))
		for i, p := range r {
			out[i] = poly2tri.NewPoint(p[0], p[1])
			index[out[i]] = len(pts)
			pts = append(pts, p)
		}
		return out
	}

	sc := poly2tri.NewSweepContext(contour(outer), false)
	for _, h := range holes {
		if len(h) < 3 {
			continue
		}
		sc.AddHole(contour(h))
	}
	sc.Triangulate()

	for _, t := range sc.GetTriangles() {
		a, okA := index[t.GetPoint(0)]
		b, okB := index[t.GetPoint(1)]
		c, okC := index[t.GetPoint(2)]
		if !okA || !okB || !okC {
			return nil, nil, fmt.Errorf("tessellate: triangle references unknown vertex")
		}
		switch area := cross(pts[a], pts[b], pts[c]); {
		case area == 0:
			continue
		case area < 0:
			b, c = c, b
		}
		tris = append(tris, a, b, c)
	}
	if len(tris) == 0 {
		return nil, nil, fmt.Errorf("tessellate: no triangles")
	}
	return pts, tris, nil
}

// cross returns twice the signed area of triangle abc.
func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}
