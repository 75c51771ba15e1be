package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"

	v1 "github.com/pissang/little-big-city/internal/infrastructure/http/v1"
	"github.com/pissang/little-big-city/internal/infrastructure/http/v1/handler"
	"github.com/pissang/little-big-city/internal/pipeline"
	"github.com/pissang/little-big-city/internal/repository/cache"
	"github.com/pissang/little-big-city/internal/scene"
	"github.com/pissang/little-big-city/internal/style"
	"github.com/pissang/little-big-city/internal/usecase"
	"github.com/pissang/little-big-city/pkg/config"
	"github.com/pissang/little-big-city/pkg/http_server"
	"github.com/pissang/little-big-city/pkg/logger"
	"github.com/pissang/little-big-city/pkg/telemetry"
)

func Run(cfg *config.Config) {
	l := logger.NewZapLogger(cfg.Logger)
	defer func() { _ = l.Sync() }()

	l.Info("app config", "cfg", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx = logger.WithLogger(ctx, l)

	shutdownTelemetry, err := telemetry.InitTracer(ctx, cfg.Telemetry)
	if err != nil {
		l.Fatal("failed to initialize telemetry", "error", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			l.Error("failed to shutdown telemetry", "error", err)
		}
	}()

	store, closeStore, err := newTileStore(ctx, cfg, l)
	if err != nil {
		l.Fatal("failed to initialize tile store", "driver", cfg.Store.Driver, "error", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			l.Error("failed to close tile store", "error", err)
		}
	}()

	fetchUseCase := usecase.NewTileFetchUseCase(cache.NewInstrumented(store), cfg.Upstream.Timeout, cfg.Upstream.UserAgent, l)

	features, err := cache.NewFeatureCache(cfg.Pipeline.CacheSize)
	if err != nil {
		l.Fatal("failed to initialize feature cache", "error", err)
	}

	preset, err := style.Load(cfg.Pipeline.StyleFile)
	if err != nil {
		l.Fatal("failed to load style preset", "file", cfg.Pipeline.StyleFile, "error", err)
	}

	params, err := pipeline.NewParams(cfg.Pipeline, cfg.Upstream)
	if err != nil {
		l.Fatal("failed to build pipeline params", "error", err)
	}

	sceneStore := scene.NewStore()
	engine := pipeline.NewEngine(params, preset, fetchUseCase, sceneStore, features, l)

	runner := startRunner(ctx, engine)

	initial := pipeline.View{Lng: cfg.Pipeline.CenterLng, Lat: cfg.Pipeline.CenterLat}
	if err := engine.Regenerate(ctx, initial); err != nil {
		l.Error("failed to start initial pass", "error", err)
	}

	h := handler.NewHandler(validator.New(), engine, sceneStore, fetchUseCase, features)
	router := v1.NewRouter(h, l, cfg.Telemetry.Enabled)

	httpServer := http_server.NewServer(ctx, cfg.HTTP.Server, router)
	adminServer := http_server.NewAdminServer(ctx, cfg.HTTP.Admin)

	for _, srv := range []*http.Server{httpServer, adminServer} {
		go func() {
			l.Info("starting http server...", "address", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.Fatal("http server failed", "address", srv.Addr, "error", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		l.Info("received shutdown signal")
	case err := <-runner.Done():
		runner.markExited()
		l.Error("pipeline engine exited", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.Timeout)
	defer shutdownCancel()

	for _, srv := range []*http.Server{httpServer, adminServer} {
		l.Info("shutting down http server...", "address", srv.Addr)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.Error("http server shutdown failed", "address", srv.Addr, "error", err)
		}
	}

	stop()
	if err := runner.Wait(shutdownCtx); err != nil {
		l.Warn("timeout waiting for pipeline engine to stop", "error", err)
	}

	l.Info("application shutdown completed")
}

// newTileStore opens the raw tile store selected by cfg.Store.Driver.
func newTileStore(ctx context.Context, cfg *config.Config, l logger.Logger) (cache.TileCache, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store.Driver {
	case "none":
		return cache.NopCache{}, noop, nil
	case "memory":
		return cache.NewMapCache(), noop, nil
	case "sqlite":
		c, err := cache.NewSQLiteCache(cfg.Store.SQLiteDSN, l)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	case "redis":
		c, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

