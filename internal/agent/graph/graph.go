// Package graph wires the query pipeline: an eino graph prepares the prompt
// (decompose, retrieve, telemetry, assemble) and the streamer runs the
// response model over it.
package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/farmsense/server/internal/agent/decompose"
	"github.com/farmsense/server/internal/agent/graph/nodes"
	"github.com/farmsense/server/internal/agent/graph/observers"
	"github.com/farmsense/server/internal/agent/model"
	"github.com/farmsense/server/internal/agent/retrieval"
	"github.com/farmsense/server/internal/agent/streamer"
	"github.com/farmsense/server/internal/agent/telemetry"
	errx "github.com/farmsense/server/internal/core/error"
	"github.com/farmsense/server/internal/metrics"
	logx "github.com/farmsense/server/pkg/logger"
)

const noUserMessage = "No user messages found"

// Runner answers RAG requests.
type Runner interface {
	// Prepare runs the pipeline up to the assembled prompt.
	Prepare(ctx context.Context, req model.RAGRequest) (*model.PreparedPrompt, error)
	// Answer prepares the prompt and makes one blocking model call.
	Answer(ctx context.Context, req model.RAGRequest) (model.Answer, error)
	// Stream prepares the prompt and streams the model output. Errors before
	// the model call are returned directly; later ones arrive as an error event.
	Stream(ctx context.Context, req model.RAGRequest) (*schema.StreamReader[model.StreamEvent], error)
	// ModelName identifies the response model.
	ModelName() string
}

// Config holds everything needed to compose the pipeline end-to-end.
// This is a convenience layer over GraphConfig that builds the components
// from chat models and stores.
type Config struct {
	ChatModels      *nodes.ChatModels
	DecomposeModel  model.DecomposeModelConfig
	DocumentStore   model.DocumentStore
	TelemetryStore  model.TelemetryStore
	RetrievalConfig model.RetrievalConfig
	Metrics         *metrics.Metrics
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	Decomposer      nodes.Decomposer
	Retriever       nodes.Retriever
	Telemetry       nodes.TelemetrySource
	Streamer        *streamer.Streamer
	RetrievalConfig model.RetrievalConfig
	Metrics         *metrics.Metrics
}

// GraphBuilder handles the construction of the prompt preparation graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.RAGRequest, *model.PreparedPrompt]
}

type graphRunner struct {
	runnable compose.Runnable[model.RAGRequest, *model.PreparedPrompt]
	streamer *streamer.Streamer
	metrics  *metrics.Metrics
}

func (r *graphRunner) Prepare(ctx context.Context, req model.RAGRequest) (*model.PreparedPrompt, error) {
	// Checked here as well as in the input node so callers see the AppError
	// itself rather than a graph run error.
	if _, ok := req.LatestUserContent(); !ok {
		return nil, errx.BadRequest(noUserMessage)
	}
	out, err := r.runnable.Invoke(ctx, req, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("query graph returned no prompt")
	}
	return out, nil
}

func (r *graphRunner) ModelName() string { return r.streamer.ModelName() }

func (r *graphRunner) Answer(ctx context.Context, req model.RAGRequest) (model.Answer, error) {
	r.metrics.ObserveQuery("answer")
	p, err := r.Prepare(ctx, req)
	if err != nil {
		return model.Answer{}, err
	}
	return r.streamer.Answer(ctx, p)
}

func (r *graphRunner) Stream(ctx context.Context, req model.RAGRequest) (*schema.StreamReader[model.StreamEvent], error) {
	r.metrics.ObserveQuery("stream")
	p, err := r.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return r.streamer.Stream(ctx, p), nil
}

// BuildQueryGraph builds the components from chat models and stores, then the graph.
func BuildQueryGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.ChatModels == nil || cfg.ChatModels.Decompose == nil || cfg.ChatModels.Response == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if cfg.DocumentStore == nil || cfg.TelemetryStore == nil {
		return nil, fmt.Errorf("document and telemetry stores are required")
	}

	return NewRunner(ctx, &GraphConfig{
		Decomposer:      decompose.New(cfg.ChatModels.Decompose, cfg.DecomposeModel.Temperature, cfg.Metrics),
		Retriever:       retrieval.New(cfg.DocumentStore, cfg.Metrics),
		Telemetry:       telemetry.NewFuser(cfg.TelemetryStore, cfg.Metrics),
		Streamer:        streamer.New(cfg.ChatModels.Response, cfg.ChatModels.ResponseModelName, cfg.Metrics),
		RetrievalConfig: cfg.RetrievalConfig,
		Metrics:         cfg.Metrics,
	})
}

// NewRunner compiles the graph and pairs it with the streamer.
func NewRunner(ctx context.Context, config *GraphConfig) (Runner, error) {
	runnable, err := BuildGraph(ctx, config)
	if err != nil {
		return nil, err
	}
	logx.Debug().Msg("Query graph built successfully")
	return &graphRunner{runnable: runnable, streamer: config.Streamer, metrics: config.Metrics}, nil
}

// BuildGraph constructs and returns the compiled prompt preparation graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.RAGRequest, *model.PreparedPrompt], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Decomposer == nil || config.Retriever == nil || config.Telemetry == nil {
		return nil, fmt.Errorf("pipeline components are not properly initialized")
	}
	if config.Streamer == nil {
		return nil, fmt.Errorf("streamer is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.RAGRequest, *model.PreparedPrompt](
			compose.WithGenLocalState(func(ctx context.Context) *model.QueryState {
				return &model.QueryState{}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	steps := []struct {
		name string
		add  func() error
	}{
		{nodes.NodeInput, func() error {
			return b.graph.AddLambdaNode(nodes.NodeInput, nodes.NewInputNode(),
				compose.WithStatePreHandler(nodes.NewInputPreHandler(b.config.RetrievalConfig)),
				compose.WithStatePostHandler(nodes.NewInputPostHandler()),
			)
		}},
		{nodes.NodeDecompose, func() error {
			return b.graph.AddLambdaNode(nodes.NodeDecompose, nodes.NewDecomposeNode(b.config.Decomposer),
				compose.WithStatePostHandler(nodes.NewDecomposePostHandler()),
			)
		}},
		{nodes.NodeRetrieve, func() error {
			return b.graph.AddLambdaNode(nodes.NodeRetrieve, nodes.NewRetrieveNode(b.config.Retriever),
				compose.WithStatePostHandler(nodes.NewRetrievePostHandler()),
			)
		}},
		{nodes.NodeTelemetry, func() error {
			return b.graph.AddLambdaNode(nodes.NodeTelemetry, nodes.NewTelemetryNode(b.config.Telemetry),
				compose.WithStatePostHandler(nodes.NewTelemetryPostHandler()),
			)
		}},
		{nodes.NodeAssemble, func() error {
			return b.graph.AddLambdaNode(nodes.NodeAssemble, nodes.NewAssembleNode())
		}},
	}
	for _, s := range steps {
		if err := s.add(); err != nil {
			logx.Error().Err(err).Str("node", s.name).Msg("Error adding node")
			return fmt.Errorf("error adding node %s: %w", s.name, err)
		}
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeInput},
		{nodes.NodeInput, nodes.NodeDecompose},
		{nodes.NodeDecompose, nodes.NodeRetrieve},
		{nodes.NodeRetrieve, nodes.NodeTelemetry},
		{nodes.NodeTelemetry, nodes.NodeAssemble},
		{nodes.NodeAssemble, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("error adding edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.RAGRequest, *model.PreparedPrompt], error) {
	runnable, err := b.graph.Compile(ctx,
		compose.WithGraphName("farmsense_query"),
		compose.WithMaxRunSteps(10),
	)
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
