package commands

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/farmsense/server/internal/agent/graph"
	"github.com/farmsense/server/internal/agent/graph/nodes"
	"github.com/farmsense/server/internal/agent/telemetry"
	"github.com/farmsense/server/internal/metrics"
	"github.com/farmsense/server/internal/repo"
	"github.com/farmsense/server/internal/server"
	"github.com/farmsense/server/migrations"
	logx "github.com/farmsense/server/pkg/logger"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides PORT)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig(envFile)
	if err != nil {
		return err
	}
	cfg.initLogger(cfg.Server.ServiceName)
	if err := cfg.requireAPIKey(); err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	pool, err := cfg.Postgres.New(ctx)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	store := repo.NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx, migrations.FS); err != nil {
		return err
	}

	qc, err := cfg.Qdrant.New()
	if err != nil {
		return err
	}
	defer qc.Close()

	chatModels, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		DecomposeConfig: &cfg.Decompose,
		RespConfig:      &cfg.Response,
	})
	if err != nil {
		return err
	}
	embedder := repo.NewGeminiEmbedder(chatModels.Client, cfg.Embedding)
	docs := repo.NewQdrantStore(qc, cfg.Qdrant.Collection, cfg.Embedding.Dimensions, embedder)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	runner, err := graph.BuildQueryGraph(ctx, graph.Config{
		ChatModels:      chatModels,
		DecomposeModel:  cfg.Decompose,
		DocumentStore:   docs,
		TelemetryStore:  store,
		RetrievalConfig: cfg.Retrieval,
		Metrics:         m,
	})
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Runner:    runner,
		Telemetry: telemetry.NewFuser(store, m),
		Store:     store,
		Farm:      cfg.Farm,
		HTTP:      cfg.Server,
		Metrics:   m,
		Gatherer:  reg,
	})
	if err != nil {
		return err
	}

	logx.Info().
		Str("decompose_model", chatModels.DecomposeModelName).
		Str("response_model", chatModels.ResponseModelName).
		Str("collection", cfg.Qdrant.Collection).
		Msg("query pipeline ready")
	return srv.Run(ctx)
}
