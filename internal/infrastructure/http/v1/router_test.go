package v1

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/pissang/little-big-city/internal/infrastructure/http/v1/handler"
	"github.com/pissang/little-big-city/internal/mesh"
	"github.com/pissang/little-big-city/internal/pipeline"
	"github.com/pissang/little-big-city/internal/repository/cache"
	"github.com/pissang/little-big-city/internal/scene"
	"github.com/pissang/little-big-city/internal/vectortile"
	"github.com/pissang/little-big-city/pkg/logger"
)

type fakeEngine struct {
	mu        sync.Mutex
	scheduled []pipeline.View
	updates   []pipeline.Update
	err       error
}

func (f *fakeEngine) Schedule(_ context.Context, v pipeline.View) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.scheduled = append(f.scheduled, v)
	return nil
}

func (f *fakeEngine) Configure(_ context.Context, u pipeline.Update) (pipeline.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return pipeline.Settings{}, f.err
	}
	f.updates = append(f.updates, u)
	s := f.Settings()
	if u.Radius != nil {
		s.Radius = *u.Radius
	}
	for node, c := range u.Colors {
		s.Colors[node] = c
	}
	return s, nil
}

func (f *fakeEngine) Settings() pipeline.Settings {
	return pipeline.Settings{
		Style:     pipeline.StyleSphere,
		Radius:    60,
		Curveness: 1,
		Colors:    map[scene.Node]string{scene.NodeEarth: "#c2ebb6"},
		Visible:   map[scene.Node]bool{scene.NodeEarth: true},
	}
}

func (f *fakeEngine) View() pipeline.View {
	return pipeline.View{Lng: 1, Lat: 2}
}

func (f *fakeEngine) Stats() pipeline.Stats {
	return pipeline.Stats{Generation: 3, Passes: 3}
}

type fakeTiles map[cache.TileCacheKey][]byte

func (f fakeTiles) GetCachedTile(_ context.Context, x, y, z int) ([]byte, bool, error) {
	data, ok := f[cache.TileCacheKey{X: x, Y: y, Z: z}]
	return data, ok, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router   *gin.Engine
	engine   *fakeEngine
	store    *scene.Store
	features *cache.FeatureCache
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	features, err := cache.NewFeatureCache(10)
	if err != nil {
		t.Fatalf("NewFeatureCache failed: %v", err)
	}
	s := &testServer{
		engine:   &fakeEngine{},
		store:    scene.NewStore(),
		features: features,
	}
	tiles := fakeTiles{{X: 1, Y: 2, Z: 16}: []byte{0x1a, 0x02}}
	h := handler.NewHandler(validator.New(), s.engine, s.store, tiles, s.features)
	s.router = NewRouter(h, logger.NewNop(), false)
	return s
}

func (s *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec, _ := s.do(t, http.MethodGet, "/api/v1/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("expected 200 OK, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestSetView(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodPost, "/api/v1/view", `{"lng": -74.01, "lat": 0}`)
	if rec.Code != http.StatusAccepted || !env.Success {
		t.Fatalf("expected 202, got %d %s", rec.Code, rec.Body.String())
	}
	if len(s.engine.scheduled) != 1 || s.engine.scheduled[0] != (pipeline.View{Lng: -74.01, Lat: 0}) {
		t.Errorf("expected the view to be scheduled, got %+v", s.engine.scheduled)
	}

	tests := []struct {
		name string
		body string
	}{
		{"missing lat", `{"lng": 10}`},
		{"latitude out of range", `{"lng": 10, "lat": 89}`},
		{"longitude out of range", `{"lng": 190, "lat": 10}`},
		{"malformed json", `{"lng":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(t, http.MethodPost, "/api/v1/view", tt.body)
			if rec.Code != http.StatusBadRequest || env.Success {
				t.Errorf("expected 400, got %d %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSetViewStoppedEngine(t *testing.T) {
	s := newTestServer(t)
	s.engine.err = pipeline.ErrStopped

	rec, _ := s.do(t, http.MethodPost, "/api/v1/view", `{"lng": 1, "lat": 1}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestGetView(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodGet, "/api/v1/view", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var data struct {
		View  pipeline.View  `json:"view"`
		Stats pipeline.Stats `json:"stats"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if data.View.Lat != 2 || data.Stats.Generation != 3 {
		t.Errorf("unexpected view response %+v", data)
	}
}

func TestGetConfig(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, http.MethodGet, "/api/v1/config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var data pipeline.Settings
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if data.Radius != 60 || data.Colors[scene.NodeEarth] != "#c2ebb6" {
		t.Errorf("unexpected settings %+v", data)
	}
}

func TestUpdateConfig(t *testing.T) {
	s := newTestServer(t)

	body := `{"radius": 80, "colors": {"clouds": "#eeeeee"}, "visible": {"water": false}, "regenerateClouds": true}`
	rec, env := s.do(t, http.MethodPatch, "/api/v1/config", body)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var data pipeline.Settings
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if data.Radius != 80 || data.Colors[scene.NodeClouds] != "#eeeeee" {
		t.Errorf("unexpected settings %+v", data)
	}

	if len(s.engine.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(s.engine.updates))
	}
	u := s.engine.updates[0]
	if u.Radius == nil || *u.Radius != 80 || u.Curveness != nil || !u.RegenerateClouds {
		t.Errorf("unexpected update %+v", u)
	}
	if v, ok := u.Visible[scene.NodeWater]; !ok || v {
		t.Errorf("expected water hidden, got %+v", u.Visible)
	}

	tests := []struct {
		name string
		body string
	}{
		{"radius out of range", `{"radius": 10}`},
		{"curveness out of range", `{"curveness": 0}`},
		{"unknown node", `{"colors": {"sky": "#ffffff"}}`},
		{"bad color", `{"colors": {"earth": "green"}}`},
		{"unknown visible node", `{"visible": {"sky": true}}`},
		{"malformed json", `{"radius":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := s.do(t, http.MethodPatch, "/api/v1/config", tt.body)
			if rec.Code != http.StatusBadRequest || env.Success {
				t.Errorf("expected 400, got %d %s", rec.Code, rec.Body.String())
			}
		})
	}
	if len(s.engine.updates) != 1 {
		t.Errorf("expected rejected requests to never reach the engine, got %d updates", len(s.engine.updates))
	}
}

func TestUpdateConfigEngineErrors(t *testing.T) {
	s := newTestServer(t)

	s.engine.err = fmt.Errorf("%w: earth depth 0", pipeline.ErrInvalidUpdate)
	if rec, _ := s.do(t, http.MethodPatch, "/api/v1/config", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a rejected update, got %d", rec.Code)
	}

	s.engine.err = pipeline.ErrStopped
	if rec, _ := s.do(t, http.MethodPatch, "/api/v1/config", `{}`); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestScene(t *testing.T) {
	s := newTestServer(t)
	s.store.Commit(scene.NodeBuildings, "16/1/2", mesh.Plane(1, 1), scene.Material{Name: "mat_buildings"})

	rec, env := s.do(t, http.MethodGet, "/api/v1/scene", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var data struct {
		Entries []scene.Summary `json:"entries"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if len(data.Entries) != 1 || data.Entries[0].Key != "16/1/2" || data.Entries[0].Vertices != 4 {
		t.Errorf("unexpected snapshot %+v", data.Entries)
	}
}

func TestMesh(t *testing.T) {
	s := newTestServer(t)
	s.store.Commit(scene.NodeBuildings, "16/1/2", mesh.Plane(1, 1), scene.Material{Name: "mat_buildings"})

	rec, env := s.do(t, http.MethodGet, "/api/v1/scene/buildings/16/1/2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	var data struct {
		Key        string `json:"key"`
		IndexWidth int    `json:"indexWidth"`
		Position   string `json:"position"`
		Indices    string `json:"indices"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	position, err := base64.StdEncoding.DecodeString(data.Position)
	if err != nil {
		t.Fatalf("position is not base64: %v", err)
	}
	indices, _ := base64.StdEncoding.DecodeString(data.Indices)
	if data.Key != "16/1/2" || len(position) != 4*12 || len(indices) != 2*6 || data.IndexWidth != 16 {
		t.Errorf("unexpected mesh response key=%s position=%d indices=%d width=%d",
			data.Key, len(position), len(indices), data.IndexWidth)
	}

	if rec, _ := s.do(t, http.MethodGet, "/api/v1/scene/buildings/16/9/9", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a missing mesh, got %d", rec.Code)
	}
	if rec, _ := s.do(t, http.MethodGet, "/api/v1/scene/trees/16/1/2", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an unknown node, got %d", rec.Code)
	}
}

func TestTile(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, http.MethodGet, "/api/v1/tile/16/1/2", "")
	if rec.Code != http.StatusOK || rec.Body.Len() != 2 {
		t.Errorf("expected cached bytes, got %d (%d bytes)", rec.Code, rec.Body.Len())
	}

	if rec, _ := s.do(t, http.MethodGet, "/api/v1/tile/16/5/5", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an uncached tile, got %d", rec.Code)
	}
	if rec, _ := s.do(t, http.MethodGet, "/api/v1/tile/16/x/5", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad coordinate, got %d", rec.Code)
	}
}

func TestCache(t *testing.T) {
	s := newTestServer(t)
	s.features.Add("https://a.example.com/16/1/2.mvt", vectortile.Features{})
	s.features.Get("https://a.example.com/16/1/2.mvt")

	rec, env := s.do(t, http.MethodGet, "/api/v1/cache", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats cache.FeatureCacheStats
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if stats.Size != 1 || stats.Capacity != 10 || stats.Hits != 1 {
		t.Errorf("unexpected cache stats %+v", stats)
	}
}
