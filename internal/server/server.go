// Package server exposes the query pipeline and the stored farm telemetry
// over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/farmsense/server/internal/agent/graph"
	"github.com/farmsense/server/internal/agent/model"
	"github.com/farmsense/server/internal/metrics"
	logx "github.com/farmsense/server/pkg/logger"
)

// TelemetryFetcher reads the fused telemetry windows.
type TelemetryFetcher interface {
	Fetch(ctx context.Context, crops []string) (model.TelemetrySnapshot, error)
}

// Config holds the server's dependencies. Gatherer may be nil to disable
// /metrics.
type Config struct {
	Runner    graph.Runner
	Telemetry TelemetryFetcher
	Store     model.TelemetryStore
	Farm      model.FarmConfig
	HTTP      model.ServerConfig
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
}

type Server struct {
	httpServer *http.Server
	handler    http.Handler
}

func New(cfg Config) (*Server, error) {
	if cfg.Runner == nil || cfg.Telemetry == nil || cfg.Store == nil {
		return nil, errors.New("server: runner, telemetry and store are required")
	}
	readTimeout := 30 * time.Second
	if cfg.HTTP.ReadTimeout != "" {
		d, err := time.ParseDuration(cfg.HTTP.ReadTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid SERVER_READ_TIMEOUT %q: %w", cfg.HTTP.ReadTimeout, err)
		}
		readTimeout = d
	}

	h := &handlers{
		runner:    cfg.Runner,
		telemetry: cfg.Telemetry,
		store:     cfg.Store,
		farm:      cfg.Farm,
		service:   cfg.HTTP.ServiceName,
		maxBody:   cfg.HTTP.MaxBodyBytes,
	}
	route := func(pattern, name string, fn http.HandlerFunc) (string, http.Handler) {
		return pattern, instrument(cfg.Metrics, name, fn)
	}

	mux := http.NewServeMux()
	mux.Handle(route("POST /rag-query", "/rag-query", h.ragQuery))
	mux.Handle(route("GET /api/farm-data", "/api/farm-data", h.farmData))
	mux.Handle(route("GET /api/satellite-data", "/api/satellite-data", h.satelliteData))
	mux.Handle(route("GET /api/environmental-data", "/api/environmental-data", h.environmentalData))
	mux.Handle(route("GET /health", "/health", h.health))
	if cfg.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	var handler http.Handler = mux
	handler = recoveryMiddleware(handler)
	handler = loggingMiddleware(handler)

	// No WriteTimeout: streamed answers stay open for the whole model call.
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       readTimeout,
		},
		handler: handler,
	}, nil
}

// Handler returns the root handler for tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	logx.Info().Msg("shutting down http server")
	return s.httpServer.Shutdown(shutdownCtx)
}
