package pipeline

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/golang/geo/r3"
	quickhull "github.com/markus-wa/quickhull-go/v2"

	"github.com/pissang/little-big-city/internal/mesh"
	"github.com/pissang/little-big-city/internal/scene"
)

const (
	sphereCloudCount = 15
	tileCloudCount   = 10
	cloudPuffs       = 5
	puffPoints       = 100
	tileCloudScale   = 0.6
)

// cloud is a row of convex puffs in a local frame whose +z axis points away
// from the ground. Only its placement depends on the earth radius.
type cloud struct {
	triangles [][3]r3.Vector
	// dir is the unit direction of the cloud from the sphere center.
	dir    r3.Vector
	height float64
	// offset places the cloud above the ground plate in tile style.
	offset r3.Vector
}

func newCloudRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed))
}

// randomOnSphere returns a random point on the sphere of radius r around
// the origin.
func randomOnSphere(rng *rand.Rand, r float64) r3.Vector {
	alpha := rng.Float64() * 2 * math.Pi
	beta := rng.Float64() * math.Pi
	ring := math.Sin(beta) * r
	return r3.Vector{X: math.Cos(alpha) * ring, Y: math.Sin(alpha) * ring, Z: math.Cos(beta) * r}
}

func generateClouds(rng *rand.Rand, tileStyle bool) []cloud {
	n := sphereCloudCount
	if tileStyle {
		n = tileCloudCount
	}
	clouds := make([]cloud, n)
	for i := range clouds {
		c := &clouds[i]
		c.triangles = cloudShape(rng)
		c.height = rng.Float64()*10 + 20
		if tileStyle {
			c.offset = r3.Vector{
				X: (rng.Float64() - 0.5) * 60,
				Y: (rng.Float64() - 0.5) * 60,
				Z: rng.Float64()*10 + 25,
			}
		} else {
			c.dir = randomOnSphere(rng, 1)
		}
	}
	return clouds
}

// cloudShape lines up cloudPuffs hulls along a random horizontal axis, the
// middle one largest.
func cloudShape(rng *rand.Rand) [][3]r3.Vector {
	axis := r3.Vector{X: rng.Float64() - 0.5, Y: rng.Float64() - 0.5}
	if axis.Norm() < 1e-9 {
		axis = r3.Vector{X: 1}
	}
	axis = axis.Normalize()
	spacing := 4 + rng.Float64()*2

	var out [][3]r3.Vector
	for i := 0; i < cloudPuffs; i++ {
		pos := float64(i-cloudPuffs/2) + rng.Float64()*0.4 - 0.2
		base := 3 - math.Abs(pos)
		center := axis.Mul(pos * spacing)

		points := make([]r3.Vector, puffPoints)
		for j := range points {
			points[j] = center.Add(randomOnSphere(rng, rng.Float64()*base+base))
		}
		hull := new(quickhull.QuickHull).ConvexHull(points, true, false, 0)
		out = append(out, outward(hull.Triangles(), center)...)
	}
	return out
}

// outward flips triangles whose normal points towards center.
func outward(tris [][3]r3.Vector, center r3.Vector) [][3]r3.Vector {
	for i, t := range tris {
		n := t[1].Sub(t[0]).Cross(t[2].Sub(t[0]))
		if n.Dot(t[0].Sub(center)) < 0 {
			tris[i][1], tris[i][2] = t[2], t[1]
		}
	}
	return tris
}

// clouds places every cloud for the current radius. On the sphere a cloud
// floats radius/√2 + height from the center with its +z axis pointing
// outwards; in tile style it is scaled down above the ground plate.
func (b *builder) clouds(cs []cloud) []built {
	out := make([]built, 0, len(cs))
	for i, c := range cs {
		place := b.cloudPlacement(c)
		m := &mesh.Buffers{
			Position: make([]float32, 0, 9*len(c.triangles)),
			Indices:  make([]uint32, 0, 3*len(c.triangles)),
		}
		for _, t := range c.triangles {
			for _, v := range t {
				w := place(v)
				m.Indices = append(m.Indices, uint32(m.VertexCount()))
				m.Position = append(m.Position, float32(w.X), float32(w.Y), float32(w.Z))
			}
		}
		// Unshared vertices give each hull face its own flat normal.
		m.ComputeNormals()
		out = append(out, built{
			Node:     scene.NodeClouds,
			Key:      fmt.Sprintf("%02d", i),
			Mesh:     m,
			Material: b.preset.CloudMaterial(),
		})
	}
	return out
}

func (b *builder) cloudPlacement(c cloud) func(r3.Vector) r3.Vector {
	if b.params.TileStyle() {
		return func(v r3.Vector) r3.Vector {
			return c.offset.Add(v.Mul(tileCloudScale))
		}
	}

	z := c.dir
	ref := r3.Vector{Z: 1}
	if math.Abs(z.Dot(ref)) > 0.9 {
		ref = r3.Vector{X: 1}
	}
	x := ref.Cross(z).Normalize()
	y := z.Cross(x)
	center := z.Mul(b.params.Radius/math.Sqrt2 + c.height)
	return func(v r3.Vector) r3.Vector {
		return center.Add(x.Mul(v.X)).Add(y.Mul(v.Y)).Add(z.Mul(v.Z))
	}
}
