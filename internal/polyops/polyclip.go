package polyops

import (
	"math"
	"sort"

	polyclip "github.com/ctessum/polyclip-go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Polyclip implements SetOps with the Martinez-Rueda clipper from polyclip-go.
type Polyclip struct{}

var _ SetOps = Polyclip{}

func (Polyclip) Union(polygons []orb.Polygon) orb.MultiPolygon {
	var acc polyclip.Polygon
	for _, p := range polygons {
		next := toPolyclip(p)
		if len(next) == 0 {
			continue
		}
		// polyclip returns a clone of the subject when the clip is empty,
		// so the first polygon seeds the accumulator as is.
		if len(acc) == 0 {
			acc = next
			continue
		}
		acc = acc.Construct(polyclip.UNION, next)
	}
	return fromPolyclip(acc)
}

func (Polyclip) Intersect(subject orb.MultiPolygon, clip orb.Polygon) orb.MultiPolygon {
	var s polyclip.Polygon
	for _, p := range subject {
		s = append(s, toPolyclip(p)...)
	}
	c := toPolyclip(clip)
	if len(s) == 0 || len(c) == 0 {
		return orb.MultiPolygon{}
	}
	return fromPolyclip(s.Construct(polyclip.INTERSECTION, c))
}

// toPolyclip drops the closing point of each ring and rings with fewer than 3 vertices.
func toPolyclip(p orb.Polygon) polyclip.Polygon {
	out := make(polyclip.Polygon, 0, len(p))
	for _, ring := range p {
		n := len(ring)
		if n > 1 && ring[0] == ring[n-1] {
			n--
		}
		if n < 3 {
			continue
		}
		c := make(polyclip.Contour, n)
		for i := 0; i < n; i++ {
			c[i] = polyclip.Point{X: ring[i][0], Y: ring[i][1]}
		}
		out = append(out, c)
	}
	return out
}

type contour struct {
	ring   orb.Ring
	area   float64
	depth  int
	parent int
}

// fromPolyclip rebuilds GeoJSON-style polygons from an unordered contour soup.
// A contour nested inside an even number of others is an outer ring,
// otherwise it is a hole of its smallest enclosing outer ring.
func fromPolyclip(p polyclip.Polygon) orb.MultiPolygon {
	contours := make([]contour, 0, len(p))
	for _, c := range p {
		if len(c) < 3 {
			continue
		}
		ring := make(orb.Ring, 0, len(c)+1)
		for _, pt := range c {
			ring = append(ring, orb.Point{pt.X, pt.Y})
		}
		ring = append(ring, ring[0])
		area := math.Abs(planar.Area(ring))
		if area == 0 {
			continue
		}
		contours = append(contours, contour{ring: ring, area: area, parent: -1})
	}

	// Larger rings first so parents precede children.
	sort.SliceStable(contours, func(i, j int) bool { return contours[i].area > contours[j].area })

	for i := range contours {
		inside := interiorPoint(contours[i].ring)
		for j := i - 1; j >= 0; j-- {
			if !planar.RingContains(contours[j].ring, inside) {
				continue
			}
			contours[i].depth++
			if contours[i].parent == -1 {
				// j walks from smallest to largest, so the first hit is the tightest.
				contours[i].parent = j
			}
		}
	}

	out := orb.MultiPolygon{}
	index := make(map[int]int)
	for i, c := range contours {
		if c.depth%2 != 0 {
			continue
		}
		ring := c.ring
		if ring.Orientation() != orb.CCW {
			ring.Reverse()
		}
		index[i] = len(out)
		out = append(out, orb.Polygon{ring})
	}
	for _, c := range contours {
		if c.depth%2 == 0 || c.parent == -1 {
			continue
		}
		k, ok := index[c.parent]
		if !ok {
			continue
		}
		ring := c.ring
		if ring.Orientation() != orb.CW {
			ring.Reverse()
		}
		out[k] = append(out[k], ring)
	}
	return out
}

// interiorPoint returns a point just inside the ring near its first edge,
// avoiding vertices that may be shared with neighbouring contours.
func interiorPoint(r orb.Ring) orb.Point {
	a, b := r[0], r[1]
	mid := orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
	dx, dy := b[0]-a[0], b[1]-a[1]
	l := math.Hypot(dx, dy)
	if l == 0 {
		return mid
	}
	// Inward normal depends on winding.
	nx, ny := -dy/l, dx/l
	if r.Orientation() == orb.CW {
		nx, ny = -nx, -ny
	}
	step := math.Min(l, math.Sqrt(math.Abs(planar.Area(r)))) * 1e-6
	return orb.Point{mid[0] + nx*step, mid[1] + ny*step}
}
