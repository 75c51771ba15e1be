// Package extrude turns flat polygon and line features into prism meshes.
package extrude

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"

	"github.com/pissang/little-big-city/internal/surface"
)

// DepthFunc returns the extrusion height of a feature.
type DepthFunc func(f *geojson.Feature) float64

// Options controls extrusion.
type Options struct {
	// LineWidth is the full ribbon width of line features.
	LineWidth float64
	// ExcludeBottom skips the bottom cap.
	ExcludeBottom bool
	// SimplifyTolerance is the Douglas-Peucker threshold, 0 disables it.
	SimplifyTolerance float64
	// Depth is consulted per feature; nil means a depth of 1.
	Depth DepthFunc
}

// Geometry is the extruded mesh of one geometry kind.
type Geometry struct {
	Position     []float32
	UV           []float32
	Indices      []uint32
	BoundingRect surface.Rect
}

// VertexCount returns the number of vertices.
func (g *Geometry) VertexCount() int {
	return len(g.Position) / 3
}

// Result holds the extruded polygon and polyline meshes.
type Result struct {
	Polygon  Geometry
	Polyline Geometry
}

// Extruder builds prism meshes from features.
type Extruder interface {
	Extrude(features []*geojson.Feature, opts Options) Result
}

// Service is the default Extruder.
type Service struct{}

var _ Extruder = Service{}

func (Service) Extrude(features []*geojson.Feature, opts Options) Result {
	var polygons, polylines builder
	for _, f := range features {
		if f == nil || f.Geometry == nil {
			continue
		}
		depth := 1.0
		if opts.Depth != nil {
			depth = opts.Depth(f)
		}

		switch g := f.Geometry.(type) {
		case orb.Polygon:
			polygons.polygon(g, depth, opts)
		case orb.MultiPolygon:
			for _, p := range g {
				polygons.polygon(p, depth, opts)
			}
		case orb.LineString:
			polylines.line(g, depth, opts)
		case orb.MultiLineString:
			for _, l := range g {
				polylines.line(l, depth, opts)
			}
		}
	}
	return Result{Polygon: polygons.geometry(), Polyline: polylines.geometry()}
}

type builder struct {
	position []float32
	uv       []float32
	indices  []uint32
	rect     surface.Rect
	used     bool
}

func (b *builder) geometry() Geometry {
	g := Geometry{Position: b.position, UV: b.uv, Indices: b.indices}
	if b.used {
		g.BoundingRect = b.rect
	}
	return g
}

func (b *builder) vertex(x, y, z, u, v float64) uint32 {
	idx := uint32(len(b.position) / 3)
	b.position = append(b.position, float32(x), float32(y), float32(z))
	b.uv = append(b.uv, float32(u), float32(v))
	if !b.used {
		b.rect = surface.EmptyRect()
		b.used = true
	}
	b.rect = b.rect.Extend(x, y)
	return idx
}

// lid emits a flat triangulated face at height z, facing up unless flip is set.
func (b *builder) lid(pts []orb.Point, tris []int, z float64, flip bool) {
	base := make([]uint32, len(pts))
	for i, p := range pts {
		base[i] = b.vertex(p[0], p[1], z, p[0], p[1])
	}
	for t := 0; t+2 < len(tris); t += 3 {
		i1, i2, i3 := base[tris[t]], base[tris[t+1]], base[tris[t+2]]
		if flip {
			i2, i3 = i3, i2
		}
		b.indices = append(b.indices, i1, i2, i3)
	}
}

// walls emits one outward facing quad per edge of the open ring. The solid
// is assumed to lie on the left of the ring direction.
func (b *builder) walls(ring orb.Ring, depth float64) {
	n := len(ring)
	dist := 0.0
	for i := 0; i < n; i++ {
		p, q := ring[i], ring[(i+1)%n]
		l := planar.Distance(p, q)
		if l == 0 {
			continue
		}
		a0 := b.vertex(p[0], p[1], 0, dist, 0)
		b0 := b.vertex(q[0], q[1], 0, dist+l, 0)
		b1 := b.vertex(q[0], q[1], depth, dist+l, depth)
		a1 := b.vertex(p[0], p[1], depth, dist, depth)
		b.indices = append(b.indices, a0, b0, b1, a0, b1, a1)
		dist += l
	}
}

func (b *builder) polygon(p orb.Polygon, depth float64, opts Options) {
	if len(p) == 0 {
		return
	}
	outer := prepareRing(p[0], opts.SimplifyTolerance, orb.CCW)
	if outer == nil {
		return
	}
	var holes []orb.Ring
	for _, r := range p[1:] {
		if h := prepareRing(r, opts.SimplifyTolerance, orb.CW); h != nil {
			holes = append(holes, h)
		}
	}

	pts, tris, err := tessellate(outer, holes)
	if err != nil {
		return
	}
	b.lid(pts, tris, depth, false)
	if !opts.ExcludeBottom {
		b.lid(pts, tris, 0, true)
	}
	b.walls(outer, depth)
	for _, h := range holes {
		b.walls(h, depth)
	}
}

func (b *builder) line(l orb.LineString, depth float64, opts Options) {
	if opts.SimplifyTolerance > 0 && len(l) > 2 {
		l = simplify.DouglasPeucker(opts.SimplifyTolerance).LineString(l.Clone())
	}
	outline := ribbon(dedupe(l), opts.LineWidth/2)
	if outline == nil {
		return
	}
	pts, tris, err := tessellate(orb.Ring(outline), nil)
	if err != nil {
		// Ribbons that fold over themselves are not simple rings. Their
		// outline is still a quad strip between the two offsets.
		pts, tris = outline, ribbonStrip(len(outline))
	}
	b.lid(pts, tris, depth, false)
	if !opts.ExcludeBottom {
		b.lid(pts, tris, 0, true)
	}
	b.walls(orb.Ring(outline), depth)
}

// ribbonStrip triangulates a ribbon outline of n points as quads between the
// right offset, running forwards, and the left offset, running backwards.
func ribbonStrip(n int) []int {
	half := n / 2
	tris := make([]int, 0, 6*(half-1))
	for i := 0; i < half-1; i++ {
		r0, r1 := i, i+1
		l0, l1 := n-1-i, n-2-i
		tris = append(tris, r0, r1, l1, r0, l1, l0)
	}
	return tris
}

// prepareRing simplifies r, drops its closing point and orients it. It
// returns nil when fewer than three distinct vertices remain.
func prepareRing(r orb.Ring, tolerance float64, orientation orb.Orientation) orb.Ring {
	r = r.Clone()
	if tolerance > 0 {
		r = simplify.DouglasPeucker(tolerance).Ring(r)
	}
	if planar.Area(r) == 0 {
		return nil
	}
	if r.Orientation() != orientation {
		r.Reverse()
	}
	open := orb.Ring(dedupe(orb.LineString(r)))
	if len(open) > 1 && open[0] == open[len(open)-1] {
		open = open[:len(open)-1]
	}
	if len(open) < 3 {
		return nil
	}
	return open
}

func dedupe(l orb.LineString) orb.LineString {
	out := make(orb.LineString, 0, len(l))
	for i, p := range l {
		if i > 0 && p == out[len(out)-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}

// miterLimit caps the join length at sharp turns, in multiples of the half width.
const miterLimit = 2.0

// ribbon offsets l by halfWidth to both sides with mitred joins and returns
// the right side followed by the reversed left side.
func ribbon(l orb.LineString, halfWidth float64) []orb.Point {
	n := len(l)
	if n < 2 || halfWidth <= 0 {
		return nil
	}

	normals := make([]orb.Point, n-1)
	for i := 0; i < n-1; i++ {
		dx, dy := l[i+1][0]-l[i][0], l[i+1][1]-l[i][1]
		d := math.Hypot(dx, dy)
		normals[i] = orb.Point{-dy / d, dx / d}
	}

	left := make([]orb.Point, n)
	right := make([]orb.Point, n)
	for i := 0; i < n; i++ {
		var m orb.Point
		scale := halfWidth
		switch i {
		case 0:
			m = normals[0]
		case n - 1:
			m = normals[n-2]
		default:
			n1, n2 := normals[i-1], normals[i]
			m = orb.Point{n1[0] + n2[0], n1[1] + n2[1]}
			ml := math.Hypot(m[0], m[1])
			if ml < 1e-9 {
				// The line doubles back on itself.
				m = n1
			} else {
				m = orb.Point{m[0] / ml, m[1] / ml}
				cos := m[0]*n1[0] + m[1]*n1[1]
				scale = math.Min(halfWidth/cos, halfWidth*miterLimit)
			}
		}
		left[i] = orb.Point{l[i][0] + m[0]*scale, l[i][1] + m[1]*scale}
		right[i] = orb.Point{l[i][0] - m[0]*scale, l[i][1] - m[1]*scale}
	}

	out := make([]orb.Point, 0, 2*n)
	out = append(out, right...)
	for i := n - 1; i >= 0; i-- {
		out = append(out, left[i])
	}
	return out
}
