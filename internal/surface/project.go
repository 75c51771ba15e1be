// Package surface maps tile-local geometry onto the faces of a rounded cube.
package surface

import (
	"math"

	"github.com/golang/geo/r3"
)

// Projector holds the sphere parameters shared by every face.
type Projector struct {
	// FullSize is the cube edge length; the fully bulged radius is FullSize/√2.
	FullSize float64
	// Curveness in (0,1]. 1 bulges the faces into a sphere, smaller values flatten them.
	Curveness float64
}

func (p Projector) FullRadius() float64 {
	return p.FullSize / math.Sqrt2
}

func (p Projector) Radius() float64 {
	return p.FullRadius() / p.Curveness
}

// Direction returns the unit direction for face-local (u, v) before scaling.
func Direction(u, v float64, face Face) r3.Vector {
	var d r3.Vector
	switch face {
	case FacePosZ:
		d = r3.Vector{X: u, Y: v, Z: 1}
	case FaceNegZ:
		d = r3.Vector{X: -u, Y: v, Z: -1}
	case FacePosX:
		d = r3.Vector{X: 1, Y: v, Z: -u}
	case FaceNegX:
		d = r3.Vector{X: -1, Y: -u, Z: v}
	case FacePosY:
		d = r3.Vector{X: -u, Y: 1, Z: v}
	case FaceNegY:
		d = r3.Vector{X: u, Y: -1, Z: v}
	}
	return d.Normalize()
}

// offsetAxis returns the face normal axis the seam offset is applied along.
func offsetAxis(face Face) r3.Vector {
	switch face {
	case FacePosZ:
		return r3.Vector{Z: -1}
	case FaceNegZ:
		return r3.Vector{Z: 1}
	case FacePosX:
		return r3.Vector{X: -1}
	case FaceNegX:
		return r3.Vector{X: 1}
	case FacePosY:
		return r3.Vector{Y: -1}
	case FaceNegY:
		return r3.Vector{Y: 1}
	}
	return r3.Vector{}
}

// ProjectPoint maps a local point inside rect onto face. The z component is
// treated as height above the surface.
//
// A rect with zero width or height divides by zero and yields NaN or Inf
// coordinates; callers are responsible for passing a non-degenerate rect.
func (p Projector) ProjectPoint(pt r3.Vector, rect Rect, face Face) r3.Vector {
	u := ((pt.X-rect.X)/rect.Width*2 - 1) * p.Curveness
	v := ((pt.Y-rect.Y)/rect.Height*2 - 1) * p.Curveness

	fullRadius := p.FullRadius()
	radius := fullRadius / p.Curveness
	r := pt.Z + radius
	off := radius - fullRadius

	return Direction(u, v, face).Mul(r).Add(offsetAxis(face).Mul(off))
}

// Project rewrites every xyz triple of position in place and returns it.
func (p Projector) Project(position []float32, rect Rect, face Face) []float32 {
	for i := 0; i+2 < len(position); i += 3 {
		out := p.ProjectPoint(r3.Vector{
			X: float64(position[i]),
			Y: float64(position[i+1]),
			Z: float64(position[i+2]),
		}, rect, face)
		position[i] = float32(out.X)
		position[i+1] = float32(out.Y)
		position[i+2] = float32(out.Z)
	}
	return position
}
