package http_server

import (
	"context"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/mux"
	"github.com/pissang/little-big-city/pkg/config"
	"github.com/pissang/little-big-city/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewServer(ctx context.Context, cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      withLoggingMiddleware(ctx, handler),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// NewAdminServer serves prometheus metrics, a liveness check and pprof.
func NewAdminServer(ctx context.Context, cfg config.Server) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      NewAdminRouter(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
}

func NewAdminRouter() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	debug := r.PathPrefix("/debug/pprof").Subrouter()
	debug.HandleFunc("/cmdline", pprof.Cmdline)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)
	debug.PathPrefix("/").HandlerFunc(pprof.Index)

	return r
}

func withLoggingMiddleware(ctx context.Context, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := logger.FromContext(ctx)

		l.Debug("new request", "method", r.Method, "path", r.URL.Path, "ip", r.RemoteAddr)

		start := time.Now()

		next.ServeHTTP(w, r.WithContext(logger.WithLogger(r.Context(), l)))

		duration := time.Since(start)

		l.Debug("new response", "method", r.Method, "path", r.URL.Path, "duration", duration)
	})
}
