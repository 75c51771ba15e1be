package surface

import (
	"math"

	"github.com/paulmach/orb"
)

// Rect is an axis-aligned box in a tile's local planar space.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// EmptyRect returns the identity element for Union.
func EmptyRect() Rect {
	return Rect{X: math.Inf(1), Y: math.Inf(1), Width: math.Inf(-1), Height: math.Inf(-1)}
}

func (r Rect) IsEmpty() bool {
	return math.IsInf(r.X, 1) || r.Width < 0 || r.Height < 0
}

func (r Rect) MaxX() float64 { return r.X + r.Width }
func (r Rect) MaxY() float64 { return r.Y + r.Height }

// Union returns the smallest rect covering r and o. Empty rects are ignored.
func (r Rect) Union(o Rect) Rect {
	if r.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return r
	}
	x := math.Min(r.X, o.X)
	y := math.Min(r.Y, o.Y)
	return Rect{
		X:      x,
		Y:      y,
		Width:  math.Max(r.MaxX(), o.MaxX()) - x,
		Height: math.Max(r.MaxY(), o.MaxY()) - y,
	}
}

// Extend grows r to include the point (x, y).
func (r Rect) Extend(x, y float64) Rect {
	return r.Union(Rect{X: x, Y: y})
}

// Ring returns the closed corner ring of r, counter-clockwise.
func (r Rect) Ring() orb.Ring {
	return orb.Ring{
		{r.X, r.Y},
		{r.MaxX(), r.Y},
		{r.MaxX(), r.MaxY()},
		{r.X, r.MaxY()},
		{r.X, r.Y},
	}
}

// Bound converts r to an orb.Bound.
func (r Rect) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{r.X, r.Y}, Max: orb.Point{r.MaxX(), r.MaxY()}}
}
