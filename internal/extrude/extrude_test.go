package extrude

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func trianglesArea(pts []orb.Point, tris []int) float64 {
	total := 0.0
	for t := 0; t+2 < len(tris); t += 3 {
		a := cross(pts[tris[t]], pts[tris[t+1]], pts[tris[t+2]]) / 2
		if a < 0 {
			return math.NaN()
		}
		total += a
	}
	return total
}

func TestTessellateConvex(t *testing.T) {
	outer := orb.Ring{{0, 0}, {4, 0}, {4, 3}, {0, 3}}
	pts, tris, err := tessellate(outer, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(tris) != 6 {
		t.Fatalf("expected 2 triangles, got %d", len(tris)/3)
	}
	if a := trianglesArea(pts, tris); math.Abs(a-12) > 1e-9 {
		t.Errorf("expected area 12, got %f", a)
	}
}

func TestTessellateConcave(t *testing.T) {
	// L shape
	outer := orb.Ring{{0, 0}, {4, 0}, {4, 1}, {1, 1}, {1, 4}, {0, 4}}
	pts, tris, err := tessellate(outer, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(tris) != 3*4 {
		t.Fatalf("expected 4 triangles, got %d", len(tris)/3)
	}
	if a := trianglesArea(pts, tris); math.Abs(a-7) > 1e-9 {
		t.Errorf("expected area 7, got %f", a)
	}
}

func TestTessellateWithHole(t *testing.T) {
	outer := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	hole := orb.Ring{{3, 3}, {3, 7}, {7, 7}, {7, 3}}
	pts, tris, err := tessellate(outer, []orb.Ring{hole})
	if err != nil {
		t.Fatal(err)
	}
	if a := trianglesArea(pts, tris); math.Abs(a-84) > 1e-9 {
		t.Errorf("expected area 84, got %f", a)
	}
}

func TestTessellateTwoHoles(t *testing.T) {
	outer := orb.Ring{{0, 0}, {20, 0}, {20, 10}, {0, 10}}
	holes := []orb.Ring{
		{{2, 2}, {2, 6}, {6, 6}, {6, 2}},
		{{12, 3}, {12, 8}, {18, 8}, {18, 3}},
	}
	pts, tris, err := tessellate(outer, holes)
	if err != nil {
		t.Fatal(err)
	}
	if a := trianglesArea(pts, tris); math.Abs(a-(200-16-30)) > 1e-9 {
		t.Errorf("expected area 154, got %f", a)
	}
}

func TestTessellateRejectsRepeatedPoints(t *testing.T) {
	outer := orb.Ring{{0, 0}, {4, 0}, {4, 0}, {0, 3}}
	if _, _, err := tessellate(outer, nil); err == nil {
		t.Error("expected an error for a ring with a zero length edge")
	}
}

func TestRibbonStrip(t *testing.T) {
	outline := ribbon(orb.LineString{{0, 0}, {4, 0}, {8, 0}}, 1)
	tris := ribbonStrip(len(outline))
	if len(tris) != 3*4 {
		t.Fatalf("expected 4 triangles, got %d", len(tris)/3)
	}
	if a := trianglesArea(outline, tris); math.Abs(a-16) > 1e-9 {
		t.Errorf("expected area 16, got %f", a)
	}
}

func TestExtrudePolygon(t *testing.T) {
	f := geojson.NewFeature(orb.Polygon{{{0, 0}, {0, 2}, {2, 2}, {2, 0}, {0, 0}}})
	f.Properties["height"] = 40.0

	res := Service{}.Extrude([]*geojson.Feature{f}, Options{
		ExcludeBottom: true,
		Depth: func(f *geojson.Feature) float64 {
			return f.Properties.MustFloat64("height", 30)/10 + 1
		},
	})

	g := res.Polygon
	// 4 roof vertices and 4 walls of 4 vertices.
	if got := g.VertexCount(); got != 4+16 {
		t.Errorf("expected 20 vertices, got %d", got)
	}
	// 2 roof triangles and 8 wall triangles.
	if got := len(g.Indices) / 3; got != 10 {
		t.Errorf("expected 10 triangles, got %d", got)
	}
	maxZ := float32(0)
	for i := 2; i < len(g.Position); i += 3 {
		maxZ = max(maxZ, g.Position[i])
	}
	if maxZ != 5 {
		t.Errorf("expected roof at 5, got %f", maxZ)
	}
	if r := g.BoundingRect; r.X != 0 || r.Y != 0 || r.Width != 2 || r.Height != 2 {
		t.Errorf("unexpected bounding rect %+v", r)
	}
	if res.Polyline.VertexCount() != 0 {
		t.Error("expected no polyline output")
	}
}

func TestExtrudePolygonWithBottom(t *testing.T) {
	f := geojson.NewFeature(orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}})
	res := Service{}.Extrude([]*geojson.Feature{f}, Options{})
	if got := len(res.Polygon.Indices) / 3; got != 12 {
		t.Errorf("expected 12 triangles with bottom cap, got %d", got)
	}
}

func TestExtrudeRoofFacesUp(t *testing.T) {
	// Clockwise input must still produce an upward roof.
	f := geojson.NewFeature(orb.Polygon{{{0, 0}, {0, 2}, {2, 2}, {2, 0}, {0, 0}}})
	g := Service{}.Extrude([]*geojson.Feature{f}, Options{ExcludeBottom: true}).Polygon

	for tri := 0; tri+2 < len(g.Indices); tri += 3 {
		i1, i2, i3 := g.Indices[tri], g.Indices[tri+1], g.Indices[tri+2]
		if g.Position[i1*3+2] != 1 || g.Position[i2*3+2] != 1 || g.Position[i3*3+2] != 1 {
			continue
		}
		a := orb.Point{float64(g.Position[i1*3]), float64(g.Position[i1*3+1])}
		b := orb.Point{float64(g.Position[i2*3]), float64(g.Position[i2*3+1])}
		c := orb.Point{float64(g.Position[i3*3]), float64(g.Position[i3*3+1])}
		if cross(a, b, c) <= 0 {
			t.Errorf("roof triangle %d faces down", tri/3)
		}
	}
}

func TestExtrudeLine(t *testing.T) {
	f := geojson.NewFeature(orb.LineString{{0, 0}, {10, 0}, {10, 10}})
	res := Service{}.Extrude([]*geojson.Feature{f}, Options{
		LineWidth:     1,
		ExcludeBottom: true,
		Depth:         func(*geojson.Feature) float64 { return 1.2 },
	})

	g := res.Polyline
	if g.VertexCount() == 0 {
		t.Fatal("expected polyline geometry")
	}
	for _, idx := range g.Indices {
		if int(idx) >= g.VertexCount() {
			t.Fatalf("index %d out of range", idx)
		}
	}
	r := g.BoundingRect
	if r.X != 0 || math.Abs(r.Y+0.5) > 1e-6 {
		t.Errorf("expected ribbon to extend half the width beside the line, got %+v", r)
	}
	if math.Abs(r.MaxX()-10.5) > 1e-6 || math.Abs(r.MaxY()-10) > 1e-6 {
		t.Errorf("unexpected ribbon extent %+v", r)
	}
}

func TestRibbonMiter(t *testing.T) {
	out := ribbon(orb.LineString{{0, 0}, {10, 0}, {10, 10}}, 1)
	if len(out) != 6 {
		t.Fatalf("expected 6 outline points, got %d", len(out))
	}
	// Outer corner of the left turn is on the right side.
	if corner := out[1]; math.Abs(corner[0]-11) > 1e-9 || math.Abs(corner[1]+1) > 1e-9 {
		t.Errorf("expected mitred corner at (11,-1), got %v", corner)
	}
}

func TestExtrudeSkipsDegenerate(t *testing.T) {
	features := []*geojson.Feature{
		geojson.NewFeature(orb.Polygon{{{0, 0}, {1, 1}, {2, 2}, {0, 0}}}),
		geojson.NewFeature(orb.LineString{{1, 1}, {1, 1}}),
		geojson.NewFeature(nil),
		nil,
	}
	res := Service{}.Extrude(features, Options{LineWidth: 1})
	if res.Polygon.VertexCount() != 0 || res.Polyline.VertexCount() != 0 {
		t.Errorf("expected no geometry, got %d and %d vertices",
			res.Polygon.VertexCount(), res.Polyline.VertexCount())
	}
}
