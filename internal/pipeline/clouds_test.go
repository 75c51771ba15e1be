package pipeline

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/pissang/little-big-city/internal/scene"
)

// maxCloudExtent bounds how far a cloud vertex can be from the cloud center:
// the outer puffs sit at most 2.2 spacings of 6 away with a radius up to 6.
const maxCloudExtent = 2.2*6 + 6

func testClouds(tileStyle bool) []cloud {
	return generateClouds(rand.New(rand.NewPCG(7, 7)), tileStyle)
}

func TestGenerateClouds(t *testing.T) {
	if n := len(testClouds(false)); n != sphereCloudCount {
		t.Errorf("expected %d sphere clouds, got %d", sphereCloudCount, n)
	}

	clouds := testClouds(true)
	if len(clouds) != tileCloudCount {
		t.Fatalf("expected %d tile clouds, got %d", tileCloudCount, len(clouds))
	}
	for i, c := range clouds {
		// A hull of points in general position has at least 4 faces.
		if len(c.triangles) < 4*cloudPuffs {
			t.Errorf("cloud %d: expected at least %d triangles, got %d", i, 4*cloudPuffs, len(c.triangles))
		}
		if c.height < 20 || c.height > 30 {
			t.Errorf("cloud %d: height %v outside [20,30]", i, c.height)
		}
		for _, tri := range c.triangles {
			for _, v := range tri {
				if v.Norm() > maxCloudExtent {
					t.Fatalf("cloud %d: vertex %v too far from the cloud center", i, v)
				}
			}
		}
	}
}

func TestGenerateCloudsSeeded(t *testing.T) {
	a, b := testClouds(false), testClouds(false)
	if a[0].dir != b[0].dir || a[0].triangles[0] != b[0].triangles[0] {
		t.Error("expected the same seed to give the same clouds")
	}
}

func TestOutward(t *testing.T) {
	tris := [][3]r3.Vector{
		{{X: 1}, {Y: 1}, {Z: 1}},
		{{X: 1}, {Z: 1}, {Y: 1}},
	}
	for i, tri := range outward(tris, r3.Vector{}) {
		n := tri[1].Sub(tri[0]).Cross(tri[2].Sub(tri[0]))
		if n.Dot(tri[0]) <= 0 {
			t.Errorf("triangle %d faces the center", i)
		}
	}
}

func TestBuildCloudsSphere(t *testing.T) {
	p := DefaultParams()
	b := newTestBuilder(p)
	clouds := testClouds(false)

	built := b.clouds(clouds)
	if len(built) != len(clouds) {
		t.Fatalf("expected %d meshes, got %d", len(clouds), len(built))
	}
	if built[0].Key != "00" || built[0].Node != scene.NodeClouds || built[0].Material.Name != "mat_cloud" {
		t.Errorf("unexpected cloud entry %s/%s %+v", built[0].Node, built[0].Key, built[0].Material)
	}

	for i, m := range built {
		if err := m.Mesh.Validate(); err != nil {
			t.Fatalf("cloud %d: %v", i, err)
		}
		c := clouds[i]
		center := c.dir.Mul(p.Radius/math.Sqrt2 + c.height)
		for j := 0; j < len(m.Mesh.Position); j += 3 {
			v := r3.Vector{
				X: float64(m.Mesh.Position[j]),
				Y: float64(m.Mesh.Position[j+1]),
				Z: float64(m.Mesh.Position[j+2]),
			}
			if d := v.Sub(center).Norm(); d > maxCloudExtent+1e-3 {
				t.Fatalf("cloud %d: vertex %d is %v from its center", i, j/3, d)
			}
		}
	}
}

func TestBuildCloudsFollowRadius(t *testing.T) {
	p := DefaultParams()
	clouds := testClouds(false)
	before := newTestBuilder(p).clouds(clouds)

	p.Radius += 20
	after := newTestBuilder(p).clouds(clouds)

	shift := clouds[0].dir.Mul(20 / math.Sqrt2)
	for k := 0; k < 3; k++ {
		got := float64(after[0].Mesh.Position[k] - before[0].Mesh.Position[k])
		want := [3]float64{shift.X, shift.Y, shift.Z}[k]
		if math.Abs(got-want) > 1e-3 {
			t.Errorf("axis %d: expected the cloud to move by %v, got %v", k, want, got)
		}
	}
}

func TestBuildCloudsTileStyle(t *testing.T) {
	p := DefaultParams()
	p.Style = StyleTile
	built := newTestBuilder(p).clouds(testClouds(true))

	for i, m := range built {
		for j := 2; j < len(m.Mesh.Position); j += 3 {
			// Lowest offset 25 minus the scaled puff radius.
			if z := m.Mesh.Position[j]; z < 25-tileCloudScale*6 {
				t.Fatalf("cloud %d: vertex at z=%v below the cloud layer", i, z)
			}
		}
	}
}
