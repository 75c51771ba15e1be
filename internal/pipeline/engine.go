package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/pissang/little-big-city/internal/extrude"
	"github.com/pissang/little-big-city/internal/polyops"
	"github.com/pissang/little-big-city/internal/repository/cache"
	"github.com/pissang/little-big-city/internal/scene"
	"github.com/pissang/little-big-city/internal/style"
	"github.com/pissang/little-big-city/internal/vectortile"
	"github.com/pissang/little-big-city/pkg/logger"
	"github.com/pissang/little-big-city/pkg/metrics"
	"github.com/pissang/little-big-city/pkg/telemetry"
)

var (
	ErrStopped       = errors.New("pipeline engine stopped")
	ErrInvalidUpdate = errors.New("invalid settings update")
)

// Fetcher returns the encoded vector tile behind url.
type Fetcher interface {
	Fetch(ctx context.Context, url string, key cache.TileCacheKey) ([]byte, error)
}

type Stats struct {
	Generation uint64 `json:"generation"`
	Passes     uint64 `json:"passes"`
	Pending    int    `json:"pending"`
	CacheHits  uint64 `json:"cacheHits"`
	Fetches    uint64 `json:"fetches"`
	Commits    uint64 `json:"commits"`
	Superseded uint64 `json:"superseded"`
	Aborted    uint64 `json:"aborted"`
	Failed     uint64 `json:"failed"`
	Animating  int    `json:"animating"`
}

type request struct {
	view      View
	immediate bool
}

// Update changes scene settings at runtime. Nil fields and missing map
// entries keep their current value.
type Update struct {
	Radius     *float64
	Curveness  *float64
	EarthDepth *float64
	Colors     map[scene.Node]string
	Visible    map[scene.Node]bool
	// RegenerateClouds replaces every cloud with a new random shape.
	RegenerateClouds bool
}

// Settings are the runtime adjustable scene settings.
type Settings struct {
	Style      string                `json:"style"`
	Radius     float64               `json:"radius"`
	Curveness  float64               `json:"curveness"`
	EarthDepth float64               `json:"earthDepth"`
	Colors     map[scene.Node]string `json:"colors"`
	Visible    map[scene.Node]bool   `json:"visible"`
}

type configRequest struct {
	update Update
	reply  chan error
}

type tileResult struct {
	generation uint64
	job        TileJob
	// features is set when the tile was fetched and decoded by this pass.
	features vectortile.Features
	meshes   []built
	err      error
}

// Engine regenerates the scene for the current view. All scene, cache and
// generation mutations happen on the goroutine running Run; fetching and
// mesh building run on worker goroutines.
type Engine struct {
	params   Params
	preset   style.Preset
	builder  *builder
	fetcher  Fetcher
	renderer scene.Renderer
	features *cache.FeatureCache
	animator *Animator
	logger   logger.Logger
	now      func() time.Time

	requests chan request
	configs  chan configRequest
	results  chan tileResult
	done     chan struct{}

	generation atomic.Uint64

	debounce   *debouncer
	passCancel context.CancelFunc
	pending    int

	rng     *rand.Rand
	clouds  []cloud
	visible map[scene.Node]bool

	mu       sync.RWMutex
	view     View
	stats    Stats
	settings Settings
}

func NewEngine(p Params, preset style.Preset, fetcher Fetcher, renderer scene.Renderer, features *cache.FeatureCache, l logger.Logger) *Engine {
	e := &Engine{
		params:   p,
		preset:   preset,
		builder:  newBuilder(p, preset, polyops.Polyclip{}, extrude.Service{}),
		fetcher:  fetcher,
		renderer: renderer,
		features: features,
		animator: NewAnimator(),
		logger:   l,
		now:      time.Now,
		requests: make(chan request),
		configs:  make(chan configRequest),
		results:  make(chan tileResult, max(p.MaxTiles, 1)),
		done:     make(chan struct{}),
		debounce: newDebouncer(p.Debounce),
		rng:      newCloudRand(p.CloudSeed),
		visible:  make(map[scene.Node]bool, len(scene.Nodes)),
	}
	for _, node := range scene.Nodes {
		e.visible[node] = true
	}
	e.settings = e.snapshotSettings()
	return e
}

// Run coordinates passes until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)

	tick := time.NewTicker(e.params.AnimationTick)
	defer tick.Stop()
	defer e.debounce.cancel()
	defer func() {
		if e.passCancel != nil {
			e.passCancel()
		}
	}()

	e.clouds = generateClouds(e.rng, e.params.TileStyle())
	e.commitEarth()

	e.logger.Info("pipeline engine started", "style", e.params.Style, "zoom", e.params.Zoom)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("pipeline engine stopped")
			return ctx.Err()
		case req := <-e.requests:
			e.setView(req.view)
			if req.immediate {
				e.debounce.cancel()
				e.startPass(ctx, req.view)
			} else {
				e.debounce.trigger(req.view)
			}
		case cr := <-e.configs:
			cr.reply <- e.reconfigure(ctx, cr.update)
		case <-e.debounce.C():
			if v, ok := e.debounce.take(); ok {
				e.startPass(ctx, v)
			}
		case res := <-e.results:
			e.handle(res)
		case <-tick.C:
			if e.animator.Len() > 0 {
				e.animator.Step(e.now(), e.renderer)
				e.updateStats(func(s *Stats) { s.Animating = e.animator.Len() })
			}
		}
	}
}

// Schedule asks for a regeneration once the view has been quiet for the
// debounce period. Rapid calls coalesce into one pass for the last view.
func (e *Engine) Schedule(ctx context.Context, v View) error {
	return e.send(ctx, request{view: v})
}

// Regenerate starts a pass for v immediately.
func (e *Engine) Regenerate(ctx context.Context, v View) error {
	return e.send(ctx, request{view: v, immediate: true})
}

// Configure applies u on the coordinator and returns the resulting settings.
// A geometry change rebuilds the earth and clouds and starts a new pass for
// the current view.
func (e *Engine) Configure(ctx context.Context, u Update) (Settings, error) {
	cr := configRequest{update: u, reply: make(chan error, 1)}
	select {
	case e.configs <- cr:
	case <-e.done:
		return Settings{}, ErrStopped
	case <-ctx.Done():
		return Settings{}, ctx.Err()
	}
	if err := <-cr.reply; err != nil {
		return Settings{}, err
	}
	return e.Settings(), nil
}

func (e *Engine) send(ctx context.Context, req request) error {
	select {
	case e.requests <- req:
		return nil
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) Generation() uint64 {
	return e.generation.Load()
}

func (e *Engine) View() View {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.view
}

func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

func (e *Engine) Settings() Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings
}

// snapshotSettings copies the coordinator's settings for readers.
func (e *Engine) snapshotSettings() Settings {
	s := Settings{
		Style:      e.params.Style,
		Radius:     e.params.Radius,
		Curveness:  e.params.Curveness,
		EarthDepth: e.params.EarthDepth,
		Colors:     make(map[scene.Node]string, len(scene.Nodes)),
		Visible:    make(map[scene.Node]bool, len(scene.Nodes)),
	}
	for _, node := range scene.Nodes {
		if c, ok := e.preset.Color(node); ok {
			s.Colors[node] = c
		}
		s.Visible[node] = e.visible[node]
	}
	return s
}

// reconfigure validates u against copies of the current settings before
// touching the scene, so a rejected update changes nothing.
func (e *Engine) reconfigure(ctx context.Context, u Update) error {
	params, preset := e.params, e.preset
	if u.Radius != nil {
		params.Radius = *u.Radius
	}
	if u.Curveness != nil {
		params.Curveness = *u.Curveness
	}
	if u.EarthDepth != nil {
		params.EarthDepth = *u.EarthDepth
	}
	if params.Radius <= 0 || params.Curveness <= 0 || params.Curveness > 1 || params.EarthDepth <= 0 {
		return fmt.Errorf("%w: radius %v, curveness %v, earth depth %v",
			ErrInvalidUpdate, params.Radius, params.Curveness, params.EarthDepth)
	}
	for node, color := range u.Colors {
		var err error
		if preset, err = preset.WithColor(node, color); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
		}
	}
	for node := range u.Visible {
		if _, err := scene.ParseNode(string(node)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
		}
	}

	reshaped := params.Radius != e.params.Radius || params.Curveness != e.params.Curveness
	deepened := params.EarthDepth != e.params.EarthDepth
	e.params, e.preset = params, preset
	e.builder = newBuilder(params, preset, polyops.Polyclip{}, extrude.Service{})

	for node := range u.Colors {
		mat, _ := preset.Material(node)
		e.renderer.SetMaterial(node, mat)
		e.animator.Restyle(node, mat)
	}
	for node, v := range u.Visible {
		e.visible[node] = v
		e.renderer.SetVisible(node, v)
	}
	if u.RegenerateClouds {
		e.clouds = generateClouds(e.rng, params.TileStyle())
	}

	switch {
	case params.TileStyle():
		if deepened && e.generation.Load() > 0 {
			e.commit(e.builder.earthGround())
		}
		if u.RegenerateClouds {
			e.commitClouds()
		}
	case reshaped:
		e.commitEarth()
		if e.generation.Load() > 0 {
			e.debounce.cancel()
			e.startPass(ctx, e.View())
		}
	case u.RegenerateClouds:
		e.commitClouds()
	}

	e.mu.Lock()
	e.settings = e.snapshotSettings()
	e.mu.Unlock()
	e.logger.Info("settings updated", "radius", params.Radius, "curveness", params.Curveness,
		"earth_depth", params.EarthDepth, "reshaped", reshaped)
	return nil
}

// commitEarth commits the sphere faces in sphere style and places the
// clouds for the current radius. The tile style ground plate follows each
// pass instead.
func (e *Engine) commitEarth() {
	if !e.params.TileStyle() {
		for _, b := range e.builder.earthSphere() {
			e.commit(b)
		}
	}
	e.commitClouds()
}

func (e *Engine) commitClouds() {
	e.renderer.RemoveAll(scene.NodeClouds)
	for _, b := range e.builder.clouds(e.clouds) {
		e.commit(b)
	}
}

func (e *Engine) setView(v View) {
	e.mu.Lock()
	e.view = v
	e.mu.Unlock()
}

func (e *Engine) updateStats(fn func(s *Stats)) {
	e.mu.Lock()
	fn(&e.stats)
	e.mu.Unlock()
}

// startPass bumps the generation, clears the tile layers and fans out one
// worker per visible tile.
func (e *Engine) startPass(ctx context.Context, v View) {
	gen := e.generation.Add(1)
	if e.passCancel != nil {
		e.passCancel()
	}
	passCtx, cancel := context.WithCancel(ctx)
	e.passCancel = cancel

	for _, node := range []scene.Node{scene.NodeBuildings, scene.NodeRoads, scene.NodeWater} {
		e.renderer.RemoveAll(node)
	}
	e.animator.Stop(scene.NodeBuildings)

	b := e.builder
	limit := max(e.params.Concurrency, 1)
	jobs := e.params.Jobs(v.Point())
	e.pending = len(jobs)
	metrics.PassesStarted.Inc()

	type lookup struct {
		job    TileJob
		cached vectortile.Features
		hit    bool
	}
	lookups := make([]lookup, len(jobs))
	hits := 0
	for i, job := range jobs {
		cached, hit := e.features.Get(job.URL)
		if hit {
			hits++
		}
		lookups[i] = lookup{job: job, cached: cached, hit: hit}
	}

	e.updateStats(func(s *Stats) {
		s.Generation = gen
		s.Passes++
		s.Pending = len(jobs)
		s.CacheHits += uint64(hits)
		s.Fetches += uint64(len(jobs) - hits)
		s.Animating = e.animator.Len()
	})
	e.logger.Debug("pass started", "generation", gen, "lng", v.Lng, "lat", v.Lat, "tiles", len(jobs), "cache_hits", hits)

	if len(jobs) == 0 {
		e.passDone(gen)
		return
	}

	go func() {
		var g errgroup.Group
		g.SetLimit(limit)
		for _, l := range lookups {
			g.Go(func() error {
				res := e.process(passCtx, b, gen, l.job, l.cached, l.hit)
				select {
				case e.results <- res:
				case <-ctx.Done():
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// process runs one tile up to the point of committing with the builder of
// its pass. Cached features are cloned before building so the cache entry is
// never mutated.
func (e *Engine) process(ctx context.Context, b *builder, gen uint64, job TileJob, cached vectortile.Features, hit bool) tileResult {
	res := tileResult{generation: gen, job: job}

	features := cached
	if !hit {
		e.logger.Debug("fetch issued", "tile", job.Name(), "generation", gen)
		data, err := e.fetcher.Fetch(ctx, job.URL, job.Key())
		if err != nil {
			res.err = err
			return res
		}
		if e.generation.Load() != gen {
			return res
		}

		decoded, err := e.decode(ctx, job, data)
		if err != nil {
			res.err = err
			return res
		}
		features = b.normalize(job, decoded)
		res.features = features
	}

	res.meshes = b.build(job, features.Clone())
	return res
}

func (e *Engine) decode(ctx context.Context, job TileJob, data []byte) (vectortile.Features, error) {
	_, span := telemetry.StartSpan(ctx, "tile.decode",
		attribute.String("tile", job.Name()),
		attribute.Int("tile.size", len(data)),
	)
	defer span.End()

	features, err := vectortile.Decode(data, job.Tile)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("tile.features", features.Count()))
	return features, nil
}

// handle applies a worker result on the coordinator. Results of an older
// generation are dropped without touching the scene or the cache.
func (e *Engine) handle(res tileResult) {
	current := e.generation.Load()
	if res.generation != current {
		metrics.TileResults.WithLabelValues("superseded").Inc()
		e.updateStats(func(s *Stats) { s.Superseded++ })
		e.logger.Debug("tile superseded", "tile", res.job.Name(), "generation", res.generation, "current", current)
		return
	}

	e.pending--

	switch {
	case errors.Is(res.err, vectortile.ErrMissingBuildings), errors.Is(res.err, vectortile.ErrEmptyTile):
		metrics.TileResults.WithLabelValues("aborted").Inc()
		e.updateStats(func(s *Stats) { s.Aborted++ })
		e.logger.Info("tile aborted", "tile", res.job.Name(), "reason", res.err)
	case res.err != nil:
		metrics.TileResults.WithLabelValues("failed").Inc()
		e.updateStats(func(s *Stats) { s.Failed++ })
		e.logger.Warn("tile failed", "tile", res.job.Name(), "url", res.job.URL, "error", res.err)
	default:
		if res.features != nil {
			if evicted := e.features.Add(res.job.URL, res.features); evicted {
				e.logger.Debug("feature cache evicted an entry", "size", e.features.Len())
			}
		}
		for _, b := range res.meshes {
			e.commit(b)
		}
		metrics.TileResults.WithLabelValues("committed").Inc()
		e.logger.Debug("tile committed", "tile", res.job.Name(), "meshes", len(res.meshes))
	}

	e.updateStats(func(s *Stats) { s.Pending = e.pending })
	if e.pending == 0 {
		e.passDone(current)
	}
}

func (e *Engine) passDone(gen uint64) {
	if e.params.TileStyle() {
		e.commit(e.builder.earthGround())
	}
	e.logger.Debug("pass completed", "generation", gen)
}

// commit hands b to the renderer, or starts its rise animation when b has
// a starting position buffer.
func (e *Engine) commit(b built) {
	if b.From != nil {
		e.animator.Add(&Transition{
			Node:     b.Node,
			Key:      b.Key,
			Target:   b.Mesh,
			Material: b.Material,
			From:     b.From,
			Start:    e.now(),
			Delay:    e.params.AnimationDelay,
			Duration: e.params.AnimationDuration,
			Easing:   ElasticOut,
		})
	} else {
		e.renderer.Commit(b.Node, b.Key, b.Mesh, b.Material)
	}
	metrics.Commits.WithLabelValues(string(b.Node)).Inc()
	e.updateStats(func(s *Stats) {
		s.Commits++
		s.Animating = e.animator.Len()
	})
}
