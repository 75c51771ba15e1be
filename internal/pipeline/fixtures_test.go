package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"github.com/pissang/little-big-city/internal/mesh"
	"github.com/pissang/little-big-city/internal/repository/cache"
	"github.com/pissang/little-big-city/internal/scene"
)

var testCenter = View{Lng: -74.0130345, Lat: 40.7063516}

// lerp returns the point at fractions (fx, fy) of the bound.
func lerp(b orb.Bound, fx, fy float64) orb.Point {
	return orb.Point{b.Min[0] + (b.Max[0]-b.Min[0])*fx, b.Min[1] + (b.Max[1]-b.Min[1])*fy}
}

func square(b orb.Bound, x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{{
		lerp(b, x0, y0), lerp(b, x1, y0), lerp(b, x1, y1), lerp(b, x0, y1), lerp(b, x0, y0),
	}}
}

// tileLayers returns lon/lat layers inside t: one building, one road, two
// overlapping water polygons and a stray polygon in the roads layer.
func tileLayers(t maptile.Tile, withBuildings bool) map[string]*geojson.FeatureCollection {
	b := t.Bound()
	layers := make(map[string]*geojson.FeatureCollection)

	if withBuildings {
		building := geojson.NewFeature(square(b, 0.2, 0.2, 0.4, 0.4))
		building.Properties["height"] = 40.0
		buildings := geojson.NewFeatureCollection()
		buildings.Append(building)
		layers["buildings"] = buildings
	}

	roads := geojson.NewFeatureCollection()
	roads.Append(geojson.NewFeature(orb.LineString{lerp(b, 0.1, 0.6), lerp(b, 0.9, 0.6)}))
	roads.Append(geojson.NewFeature(square(b, 0.05, 0.05, 0.1, 0.1)))
	layers["roads"] = roads

	water := geojson.NewFeatureCollection()
	water.Append(geojson.NewFeature(square(b, 0.5, 0.7, 0.7, 0.9)))
	water.Append(geojson.NewFeature(square(b, 0.6, 0.7, 0.8, 0.9)))
	layers["water"] = water

	return layers
}

func marshalTile(tile maptile.Tile, withBuildings bool) ([]byte, error) {
	ls := mvt.NewLayers(tileLayers(tile, withBuildings))
	ls.ProjectToTile(tile)
	return mvt.Marshal(ls)
}

func encodeTile(t *testing.T, tile maptile.Tile, withBuildings bool) []byte {
	t.Helper()
	data, err := marshalTile(tile, withBuildings)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

// fakeFetcher serves encoded tiles for any requested key. A tile listed in
// gates blocks until its gate is closed, ignoring cancellation.
type fakeFetcher struct {
	mu          sync.Mutex
	calls       map[string]int
	gates       map[cache.TileCacheKey]chan struct{}
	started     chan cache.TileCacheKey
	noBuildings bool
	failWith    error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		calls:   make(map[string]int),
		gates:   make(map[cache.TileCacheKey]chan struct{}),
		started: make(chan cache.TileCacheKey, 64),
	}
}

func (f *fakeFetcher) gate(key cache.TileCacheKey) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[key] = ch
	return ch
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, key cache.TileCacheKey) ([]byte, error) {
	f.mu.Lock()
	f.calls[url]++
	gate := f.gates[key]
	noBuildings, failWith := f.noBuildings, f.failWith
	f.mu.Unlock()

	select {
	case f.started <- key:
	default:
	}
	if gate != nil {
		<-gate
	}
	if failWith != nil {
		return nil, failWith
	}
	tile := maptile.New(uint32(key.X), uint32(key.Y), maptile.Zoom(key.Z))
	return marshalTile(tile, !noBuildings)
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// recorder is a scene.Store that also logs every commit.
type recorder struct {
	*scene.Store

	mu      sync.Mutex
	commits []string
}

func newRecorder() *recorder {
	return &recorder{Store: scene.NewStore()}
}

func (r *recorder) Commit(node scene.Node, key string, m *mesh.Buffers, mat scene.Material) {
	r.mu.Lock()
	r.commits = append(r.commits, string(node)+"/"+key)
	r.mu.Unlock()
	r.Store.Commit(node, key, m, mat)
}

func (r *recorder) committed(node scene.Node, key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := string(node) + "/" + key
	for _, c := range r.commits {
		if c == want {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

var errNetwork = errors.New("connection reset")
