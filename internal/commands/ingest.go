package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/farmsense/server/internal/agent/graph/nodes"
	"github.com/farmsense/server/internal/ingest"
	"github.com/farmsense/server/internal/repo"
	logx "github.com/farmsense/server/pkg/logger"
)

var (
	ingestDir     string
	ingestSize    int
	ingestOverlap int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Chunk the knowledge base text files and index them in Qdrant",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDir, "dir", "./static_knowledge_base", "directory of .txt knowledge files")
	ingestCmd.Flags().IntVar(&ingestSize, "chunk-size", ingest.DefaultChunkSize, "maximum characters per chunk")
	ingestCmd.Flags().IntVar(&ingestOverlap, "chunk-overlap", ingest.DefaultChunkOverlap, "characters shared by consecutive chunks")
}

func runIngest(cmd *cobra.Command, _ []string) error {
	cfg, err := LoadConfig(envFile)
	if err != nil {
		return err
	}
	cfg.initLogger("farmsense-ingest")
	if err := cfg.requireAPIKey(); err != nil {
		return err
	}
	if ingestSize <= 0 || ingestOverlap < 0 || ingestOverlap >= ingestSize {
		return fmt.Errorf("chunk overlap must be in [0, chunk-size)")
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	docs, err := ingest.LoadDir(ingestDir, ingest.Chunker{
		Size:       ingestSize,
		Overlap:    ingestOverlap,
		Separators: ingest.DefaultSeparators,
	})
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		logx.Warn().Str("dir", ingestDir).Msg("no documents found to add")
		return nil
	}

	client, err := nodes.NewGeminiClient(ctx, cfg.APIKey, cfg.BaseURL)
	if err != nil {
		return err
	}
	qc, err := cfg.Qdrant.New()
	if err != nil {
		return err
	}
	defer qc.Close()

	store := repo.NewQdrantStore(qc, cfg.Qdrant.Collection, cfg.Embedding.Dimensions, repo.NewGeminiEmbedder(client, cfg.Embedding))
	if err := store.EnsureCollection(ctx); err != nil {
		return err
	}
	n, err := store.Upsert(ctx, docs)
	if err != nil {
		return fmt.Errorf("indexed %d of %d chunks: %w", n, len(docs), err)
	}
	logx.Info().Int("chunks", n).Str("collection", cfg.Qdrant.Collection).Msg("knowledge base indexed")
	return nil
}
