package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/farmsense/server/internal/agent/bus"
	"github.com/farmsense/server/internal/agent/coordinator"
	"github.com/farmsense/server/internal/agent/model"
	"github.com/farmsense/server/internal/agent/sources"
	"github.com/farmsense/server/internal/metrics"
	"github.com/farmsense/server/internal/repo"
	"github.com/farmsense/server/migrations"
	logx "github.com/farmsense/server/pkg/logger"
)

const (
	roleAll         = "all"
	roleAgents      = "agents"
	roleCoordinator = "coordinator"

	memoryBusBuffer = 64
)

var (
	bureauRole        string
	bureauMetricsAddr string
)

var bureauCmd = &cobra.Command{
	Use:   "bureau",
	Short: "Run the source agents and the collection coordinator",
	Long: `bureau runs the four source agents and the collection coordinator. With
--role all (the default) everything runs in this process and the agents are
asked for fresh data on startup and every BUREAU_INTERVAL. Split roles need
BUS_BACKEND=redis; the coordinator role sends the requests.`,
	RunE: runBureau,
}

func init() {
	bureauCmd.Flags().StringVar(&bureauRole, "role", roleAll, "which part to run: all, agents or coordinator")
	bureauCmd.Flags().StringVar(&bureauMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9102")
}

func runBureau(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig(envFile)
	if err != nil {
		return err
	}
	cfg.initLogger("farmsense-bureau")

	switch bureauRole {
	case roleAll, roleAgents, roleCoordinator:
	default:
		return fmt.Errorf("invalid --role %q", bureauRole)
	}
	if bureauRole != roleAll && cfg.Bus == BusMemory {
		return fmt.Errorf("--role %s needs BUS_BACKEND=%s", bureauRole, BusRedis)
	}
	interval, err := parseInterval(cfg.Bureau.Interval)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	b, closeBus, err := newBus(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBus()

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	var coord *coordinator.Coordinator
	if bureauRole != roleAgents {
		pool, err := cfg.Postgres.New(ctx)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		store := repo.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx, migrations.FS); err != nil {
			return err
		}

		opts, err := coordinator.OptionsFromConfig(cfg.Coordinator, cfg.Farm.ID, m)
		if err != nil {
			return err
		}
		coord, err = coordinator.New(store, opts)
		if err != nil {
			return err
		}
		if err := coordinator.NewDispatcher(coord).Serve(ctx, b); err != nil {
			return err
		}
	}

	if bureauRole != roleCoordinator {
		if err := serveAgents(ctx, b); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if bureauRole != roleAgents {
		g.Go(func() error { return requestLoop(gctx, b, cfg.Farm, interval) })
	}
	if bureauMetricsAddr != "" {
		g.Go(func() error { return serveMetrics(gctx, bureauMetricsAddr, reg) })
	}

	logx.Info().Str("role", bureauRole).Str("bus", cfg.Bus).Str("farm", cfg.Farm.ID).Msg("bureau started")
	<-gctx.Done()
	err = g.Wait()

	if coord != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if cerr := coord.Close(closeCtx); cerr != nil {
			logx.Warn().Err(cerr).Msg("coordinator did not drain cleanly")
		}
	}
	logx.Info().Msg("bureau stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newBus(ctx context.Context, cfg *AppConfig) (bus.Bus, func(), error) {
	if cfg.Bus == BusMemory {
		return bus.NewMemoryBus(memoryBusBuffer), func() {}, nil
	}
	rdb, err := cfg.Redis.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return bus.NewRedisBus(rdb), func() { _ = rdb.Close() }, nil
}

func serveAgents(ctx context.Context, b bus.Bus) error {
	fetchers := sources.StaticFetchers(time.Now)
	for _, kind := range model.SourceKinds {
		f, ok := fetchers[kind]
		if !ok {
			return fmt.Errorf("no fetcher for %s", kind)
		}
		if err := sources.NewAgent(kind, f, b).Serve(ctx); err != nil {
			return err
		}
	}
	return nil
}

// requestLoop asks every agent for data now, then every interval when it is
// positive.
func requestLoop(ctx context.Context, b bus.Bus, farm model.FarmConfig, interval time.Duration) error {
	send := func() {
		if err := sources.RequestAll(ctx, b, farm); err != nil {
			logx.Error().Err(err).Msg("failed to send agent requests")
		}
	}
	send()
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			send()
		}
	}
}

func serveMetrics(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func parseInterval(v string) (time.Duration, error) {
	if v == "" || v == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid BUREAU_INTERVAL %q: %w", v, err)
	}
	return d, nil
}
