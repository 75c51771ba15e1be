package pipeline

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"

	"github.com/pissang/little-big-city/internal/extrude"
	"github.com/pissang/little-big-city/internal/mesh"
	"github.com/pissang/little-big-city/internal/polyops"
	"github.com/pissang/little-big-city/internal/scene"
	"github.com/pissang/little-big-city/internal/style"
	"github.com/pissang/little-big-city/internal/subdivide"
	"github.com/pissang/little-big-city/internal/surface"
	"github.com/pissang/little-big-city/internal/tessellate"
	"github.com/pissang/little-big-city/internal/vectortile"
	"github.com/pissang/little-big-city/pkg/metrics"
)

// roofHeight is where building roofs start their rise animation.
const roofHeight = 1

// built is a finished mesh waiting to be committed. From is set for meshes
// that rise into place instead of appearing at once.
type built struct {
	Node     scene.Node
	Key      string
	Mesh     *mesh.Buffers
	Material scene.Material
	From     []float32
}

// builder holds the stateless geometry stages of a pass. It is safe for
// concurrent use.
type builder struct {
	params    Params
	preset    style.Preset
	ops       polyops.SetOps
	extruder  extrude.Extruder
	projector surface.Projector
}

func newBuilder(p Params, preset style.Preset, ops polyops.SetOps, x extrude.Extruder) *builder {
	return &builder{
		params:    p,
		preset:    preset,
		ops:       ops,
		extruder:  x,
		projector: p.Projector(),
	}
}

// normalize moves decoded lon/lat features into the job's local space,
// culls them in tile style and merges water. The result is what gets cached.
func (b *builder) normalize(job TileJob, decoded vectortile.Features) vectortile.Features {
	scaleX, scaleY := b.params.ScaleX, b.params.ScaleY
	toLocal := func(p orb.Point) orb.Point {
		return orb.Point{
			(p[0] + job.Offset[0]) * scaleX,
			(p[1] + job.Offset[1]) * scaleY,
		}
	}

	earth := b.params.EarthRect().Bound()
	out := make(vectortile.Features, len(decoded))
	for kind, features := range decoded {
		for _, f := range features {
			f.Geometry = project.Geometry(f.Geometry, toLocal)
		}
		if b.params.TileStyle() {
			polyops.CullToRect(b.ops, features, earth)
		}
		out[kind] = features
	}

	if water, ok := out[vectortile.KindWater]; ok {
		out[vectortile.KindWater] = b.mergeWater(water)
	}

	for kind, features := range out {
		layer, ok := b.preset.Layer(kind)
		if !ok {
			delete(out, kind)
			continue
		}
		out[kind] = layer.Filter(features)
	}
	return out
}

func (b *builder) mergeWater(features []*geojson.Feature) []*geojson.Feature {
	if len(polyops.Polygons(features)) == 0 {
		return nil
	}
	merged := polyops.UnionFeatures(b.ops, features)
	if len(polyops.Polygons([]*geojson.Feature{merged})) == 0 {
		return nil
	}
	return []*geojson.Feature{merged}
}

// build extrudes every layer of features for job. features is consumed.
func (b *builder) build(job TileJob, features vectortile.Features) []built {
	var out []built
	for _, kind := range vectortile.Kinds {
		layer, ok := b.preset.Layer(kind)
		if !ok || len(features[kind]) == 0 {
			continue
		}
		start := time.Now()
		if m := b.buildLayer(job, layer, features[kind]); m != nil {
			out = append(out, *m)
		}
		metrics.BuildDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	}
	return out
}

func (b *builder) buildLayer(job TileJob, layer style.Layer, features []*geojson.Feature) *built {
	sphere := !b.params.TileStyle()
	kind := layer.Kind

	if kind == vectortile.KindWater || (sphere && kind == vectortile.KindRoads) {
		subdivide.Features(features, b.params.SubdivideDistance)
	}

	simplifyTolerance := 0.0
	if !sphere || kind == vectortile.KindBuildings {
		simplifyTolerance = b.params.SimplifyTolerance
	}

	result := b.extruder.Extrude(features, extrude.Options{
		LineWidth:         b.params.LineWidth,
		ExcludeBottom:     true,
		SimplifyTolerance: simplifyTolerance,
		Depth:             layer.Depth.Func(),
	})
	geo := result.Polygon
	if layer.Geometry == style.GeometryPolyline {
		geo = result.Polyline
	}
	if len(geo.Indices) == 0 {
		return nil
	}

	m := &mesh.Buffers{Position: geo.Position, UV: geo.UV, Indices: geo.Indices}
	if sphere && kind == vectortile.KindWater {
		before := m.VertexCount()
		m.Position, m.Indices = tessellate.Tessellate(m.Position, m.Indices, b.params.TessellateTolerance)
		if added := m.VertexCount() - before; added > 0 {
			m.UV = extendRoofUV(m.UV, m.Position, before)
			metrics.TessellatedVertices.Add(float64(added))
		}
	}

	out := &built{
		Node:     scene.Node(kind),
		Key:      job.Name(),
		Mesh:     m,
		Material: layer.Material(),
	}

	if kind == vectortile.KindBuildings {
		out.From = flattenRoofs(m.Position)
		if sphere {
			b.projector.Project(out.From, job.Rect, job.Face)
		}
	}
	if sphere {
		b.projector.Project(m.Position, job.Rect, job.Face)
	}
	m.ComputeNormals()
	return out
}

// flattenRoofs copies position with every vertex above the ground lowered
// to roofHeight.
func flattenRoofs(position []float32) []float32 {
	out := make([]float32, len(position))
	copy(out, position)
	for i := 2; i < len(out); i += 3 {
		if out[i] > 0 {
			out[i] = roofHeight
		}
	}
	return out
}

// extendRoofUV gives vertices appended by tessellation the planar uv roofs
// use, which is their local x and y.
func extendRoofUV(uv, position []float32, from int) []float32 {
	for i := from; i < len(position)/3; i++ {
		uv = append(uv, position[3*i], position[3*i+1])
	}
	return uv
}

// earthSphere returns one bulged plane per cube face.
func (b *builder) earthSphere() []built {
	rect := surface.Rect{X: -1, Y: -1, Width: 2, Height: 2}
	out := make([]built, 0, len(surface.Faces))
	for _, face := range surface.Faces {
		m := mesh.Plane(b.params.EarthSegments, b.params.EarthSegments)
		b.projector.Project(m.Position, rect, face)
		m.ComputeNormals()
		out = append(out, built{
			Node:     scene.NodeEarth,
			Key:      face.String(),
			Mesh:     m,
			Material: b.preset.EarthMaterial(),
		})
	}
	return out
}

// earthGround returns the ground plate shown under a single tile, sunk so
// its top sits just below the tile's features.
func (b *builder) earthGround() built {
	depth := b.params.EarthDepth
	plate := geojson.NewFeature(orb.Polygon{b.params.EarthRect().Ring()})
	result := b.extruder.Extrude([]*geojson.Feature{plate}, extrude.Options{
		Depth: func(*geojson.Feature) float64 { return depth },
	})

	geo := result.Polygon
	m := &mesh.Buffers{Position: geo.Position, UV: geo.UV, Indices: geo.Indices}
	shift := float32(-depth + 0.1)
	for i := 2; i < len(m.Position); i += 3 {
		m.Position[i] += shift
	}
	m.ComputeNormals()

	return built{
		Node:     scene.NodeEarth,
		Key:      "ground",
		Mesh:     m,
		Material: b.preset.EarthMaterial(),
	}
}
