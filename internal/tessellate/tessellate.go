// Package tessellate refines the roof triangles of an extruded mesh so that
// curvature applied afterwards does not show visible facets.
package tessellate

import (
	"math"

	"github.com/golang/geo/r3"
)

// keyPrecision is the rounding scale of the vertex deduplication key.
const keyPrecision = 100

type vertexKey struct {
	x, y, z int64
}

func keyOf(p r3.Vector) vertexKey {
	return vertexKey{
		x: int64(math.Round(p.X * keyPrecision)),
		y: int64(math.Round(p.Y * keyPrecision)),
		z: int64(math.Round(p.Z * keyPrecision)),
	}
}

// maxDepth bounds how often a patch triangle produced by stitching may itself
// be refined again.
const maxDepth = 8

type builder struct {
	position  []float32
	appended  []float32
	indices   []uint32
	base      uint32
	vertexMap map[vertexKey]uint32
	tolerance float64
}

func (b *builder) vertex(i uint32) r3.Vector {
	if i < b.base {
		return vertexAt(b.position, i)
	}
	return vertexAt(b.appended, i-b.base)
}

// add returns the index of pt, appending a new vertex unless pt is one of the
// triangle's corners or already emitted at the same rounded position.
func (b *builder) add(pt edgePoint, corners [3]uint32) uint32 {
	if pt.corner >= 0 {
		return corners[pt.corner]
	}
	k := keyOf(pt.p)
	if idx, ok := b.vertexMap[k]; ok {
		return idx
	}
	idx := b.base + uint32(len(b.appended)/3)
	b.appended = append(b.appended, float32(pt.p.X), float32(pt.p.Y), float32(pt.p.Z))
	b.vertexMap[k] = idx
	return idx
}

// triangle emits (i1, i2, i3), refining it first when required.
func (b *builder) triangle(i1, i2, i3 uint32, depth int) {
	if depth < maxDepth && needsRefine(b.vertex(i1), b.vertex(i2), b.vertex(i3), b.tolerance) {
		b.refine(i1, i2, i3, depth)
		return
	}
	b.indices = append(b.indices, i1, i2, i3)
}

func vertexAt(position []float32, i uint32) r3.Vector {
	return r3.Vector{
		X: float64(position[i*3]),
		Y: float64(position[i*3+1]),
		Z: float64(position[i*3+2]),
	}
}

func needsRefine(p1, p2, p3 r3.Vector, tolerance float64) bool {
	if p1.Z <= 0 || p2.Z <= 0 || p3.Z <= 0 {
		return false
	}
	return p1.Distance(p2) > tolerance || p3.Distance(p2) > tolerance || p3.Distance(p1) > tolerance
}

// point on a walked edge: either an exact corner or an interpolated position.
type edgePoint struct {
	p      r3.Vector
	corner int
}

// walk returns points from a to b spaced at most tolerance apart, with a
// uniform step of length/⌈length/tolerance⌉.
func walk(a, b edgePoint, tolerance float64) []edgePoint {
	length := a.p.Distance(b.p)
	n := int(math.Ceil(length / tolerance))
	if n < 1 {
		n = 1
	}
	pts := make([]edgePoint, 0, n+1)
	pts = append(pts, a)
	dir := b.p.Sub(a.p)
	for k := 1; k < n; k++ {
		t := float64(k) / float64(n)
		pts = append(pts, edgePoint{p: a.p.Add(dir.Mul(t)), corner: -1})
	}
	return append(pts, b)
}

// Tessellate refines every triangle whose three vertices lie above z = 0 and
// has an edge longer than tolerance. Refined triangles are replaced by a patch
// of triangles whose edges are at most tolerance long; new vertices are
// appended after the existing ones so every original index stays valid.
//
// When nothing needs refinement the input slices are returned as is.
func Tessellate(position []float32, indices []uint32, tolerance float64) ([]float32, []uint32) {
	if tolerance <= 0 {
		return position, indices
	}

	first := -1
	for f := 0; f+2 < len(indices); f += 3 {
		p1 := vertexAt(position, indices[f])
		p2 := vertexAt(position, indices[f+1])
		p3 := vertexAt(position, indices[f+2])
		if needsRefine(p1, p2, p3, tolerance) {
			first = f
			break
		}
	}
	if first < 0 {
		return position, indices
	}

	b := &builder{
		position:  position,
		indices:   make([]uint32, first, len(indices)*2),
		base:      uint32(len(position) / 3),
		vertexMap: make(map[vertexKey]uint32),
		tolerance: tolerance,
	}
	copy(b.indices, indices[:first])
	for f := first; f+2 < len(indices); f += 3 {
		b.triangle(indices[f], indices[f+1], indices[f+2], 0)
	}

	out := make([]float32, len(position)+len(b.appended))
	copy(out, position)
	copy(out[len(position):], b.appended)
	return out, b.indices
}

// refine walks p2→p1 and p2→p3, interpolates a subdivided row between each
// pair of corresponding points and stitches consecutive rows into strips.
// Where the walked edges differ in length the shorter one is clamped at its
// end, so stitched triangles can still be too long; those are refined again.
func (b *builder) refine(i1, i2, i3 uint32, depth int) {
	corners := [3]uint32{i1, i2, i3}
	c1 := edgePoint{p: b.vertex(i1), corner: 0}
	c2 := edgePoint{p: b.vertex(i2), corner: 1}
	c3 := edgePoint{p: b.vertex(i3), corner: 2}

	e1 := walk(c2, c1, b.tolerance)
	e2 := walk(c2, c3, b.tolerance)
	len1, len2 := len(e1), len(e2)

	var patch []uint32
	last := []uint32{i2}
	rows := max(len1, len2)
	for i := 1; i < rows; i++ {
		a := e1[min(len1-1, i)]
		c := e2[min(len2-1, i)]

		row := walk(a, c, b.tolerance)
		current := make([]uint32, len(row))
		for k, pt := range row {
			current[k] = b.add(pt, corners)
		}

		lastMax := len(last) - 1
		for m := 0; m < len(current)-1; m++ {
			n := min(lastMax, m)
			n2 := min(lastMax, m+1)
			patch = appendTriangle(patch, current[m], last[n], current[m+1])
			if n != n2 {
				patch = appendTriangle(patch, last[n], last[n2], current[m+1])
			}
		}
		last = current
	}

	// Patch vertices are all placed before recursing so neighbouring patch
	// triangles share their edge samples.
	for f := 0; f+2 < len(patch); f += 3 {
		b.triangle(patch[f], patch[f+1], patch[f+2], depth+1)
	}
}

// appendTriangle skips triangles collapsed onto a clamped corner.
func appendTriangle(dst []uint32, i1, i2, i3 uint32) []uint32 {
	if i1 == i2 || i2 == i3 || i1 == i3 {
		return dst
	}
	return append(dst, i1, i2, i3)
}
