package subdivide

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

func assertBounded(t *testing.T, pts []orb.Point, maxDist float64) {
	t.Helper()
	for i := 0; i < len(pts)-1; i++ {
		if d := planar.Distance(pts[i], pts[i+1]); d > maxDist+1e-9 {
			t.Errorf("segment %d has length %f, max %f", i, d, maxDist)
		}
	}
}

func TestPointsBound(t *testing.T) {
	pts := []orb.Point{{0, 0}, {10, 0}, {10, 3.3}, {-7.1, 12.25}}
	out := Points(pts, 4)

	assertBounded(t, out, 4)
	if out[0] != pts[0] || out[len(out)-1] != pts[len(pts)-1] {
		t.Errorf("expected endpoints to be preserved, got %v and %v", out[0], out[len(out)-1])
	}
	// 10 -> 3 parts, 3.3 -> 1 part, ~19.6 -> 5 parts
	if len(out) != 1+3+1+5 {
		t.Errorf("expected 10 points, got %d", len(out))
	}
}

func TestPointsKeepsOriginalVertices(t *testing.T) {
	pts := []orb.Point{{0, 0}, {9, 0}, {9, 9}}
	out := Points(pts, 2)

	found := 0
	for _, p := range out {
		for _, q := range pts {
			if p == q {
				found++
			}
		}
	}
	if found != len(pts) {
		t.Errorf("expected all %d original vertices in output, found %d", len(pts), found)
	}
}

func TestPointsEvenSpacing(t *testing.T) {
	out := Points([]orb.Point{{0, 0}, {10, 0}}, 4)
	if len(out) != 4 {
		t.Fatalf("expected 4 points, got %d", len(out))
	}
	for i := 0; i < 3; i++ {
		d := planar.Distance(out[i], out[i+1])
		if d < 3.33 || d > 3.34 {
			t.Errorf("expected even spacing of 10/3, got %f", d)
		}
	}
}

func TestPointsShortInputUnchanged(t *testing.T) {
	pts := []orb.Point{{1, 1}}
	if out := Points(pts, 1); len(out) != 1 || out[0] != pts[0] {
		t.Errorf("expected single point unchanged, got %v", out)
	}
	dup := []orb.Point{{1, 1}, {1, 1}}
	if out := Points(dup, 1); len(out) != 2 {
		t.Errorf("expected zero-length segment to keep 2 points, got %d", len(out))
	}
}

func TestFeaturesClosedRingStaysClosed(t *testing.T) {
	poly := orb.Polygon{{{0, 0}, {20, 0}, {20, 20}, {0, 20}, {0, 0}}}
	f := geojson.NewFeature(poly)
	line := geojson.NewFeature(orb.MultiLineString{{{0, 0}, {0, 13}}})

	Features([]*geojson.Feature{f, line, geojson.NewFeature(nil)}, 4)

	ring := f.Geometry.(orb.Polygon)[0]
	if !ring.Closed() {
		t.Error("expected ring to stay closed")
	}
	assertBounded(t, ring, 4)
	assertBounded(t, line.Geometry.(orb.MultiLineString)[0], 4)
	if len(ring) != 4*5+1 {
		t.Errorf("expected 21 ring points, got %d", len(ring))
	}
}
