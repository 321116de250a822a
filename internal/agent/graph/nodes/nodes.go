package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/farmsense/server/internal/agent/graph/prompts"
	"github.com/farmsense/server/internal/agent/model"
	errx "github.com/farmsense/server/internal/core/error"
	logx "github.com/farmsense/server/pkg/logger"
)

const (
	NodeInput     = "input"
	NodeDecompose = "decompose"
	NodeRetrieve  = "retrieve"
	NodeTelemetry = "telemetry"
	NodeAssemble  = "assemble"
)

// Decomposer splits a question into search phrases. It never fails.
type Decomposer interface {
	Decompose(ctx context.Context, question string) []string
}

// Retriever returns de-duplicated passages for the phrases. It never fails.
type Retriever interface {
	Retrieve(ctx context.Context, phrases []string, limit int) []model.ContextItem
}

// TelemetrySource renders live farm data, degrading per domain.
type TelemetrySource interface {
	FetchAndRender(ctx context.Context, crops []string) string
}

// NewInputPreHandler clamps the result count and records the request in state.
func NewInputPreHandler(cfg model.RetrievalConfig) func(context.Context, model.RAGRequest, *model.QueryState) (model.RAGRequest, error) {
	return func(ctx context.Context, in model.RAGRequest, s *model.QueryState) (model.RAGRequest, error) {
		in.NResults = ClampResults(in.NResults, cfg)
		s.Request = in
		return in, nil
	}
}

// NewInputNode extracts the latest user message. A request without one is a
// caller error.
func NewInputNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.RAGRequest) (string, error) {
		q, ok := in.LatestUserContent()
		if !ok {
			return "", errx.BadRequest("No user messages found")
		}
		return q, nil
	})
}

// NewInputPostHandler keeps the question for later nodes.
func NewInputPostHandler() func(context.Context, string, *model.QueryState) (string, error) {
	return func(ctx context.Context, q string, s *model.QueryState) (string, error) {
		s.Question = q
		return q, nil
	}
}

func NewDecomposeNode(d Decomposer) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, question string) ([]string, error) {
		return d.Decompose(ctx, question), nil
	})
}

func NewDecomposePostHandler() func(context.Context, []string, *model.QueryState) ([]string, error) {
	return func(ctx context.Context, phrases []string, s *model.QueryState) ([]string, error) {
		s.Phrases = phrases
		logx.Debug().Strs("phrases", phrases).Msg("search phrases")
		return phrases, nil
	}
}

func NewRetrieveNode(r Retriever) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, phrases []string) ([]model.ContextItem, error) {
		limit := 0
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.QueryState) error {
			limit = s.Request.NResults
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("read query state: %w", err)
		}
		return r.Retrieve(ctx, phrases, limit), nil
	})
}

func NewRetrievePostHandler() func(context.Context, []model.ContextItem, *model.QueryState) ([]model.ContextItem, error) {
	return func(ctx context.Context, items []model.ContextItem, s *model.QueryState) ([]model.ContextItem, error) {
		s.Context = items
		return items, nil
	}
}

// NewTelemetryNode ignores its input; the retrieved items are already in
// state.
func NewTelemetryNode(t TelemetrySource) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ []model.ContextItem) (string, error) {
		var crops []string
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.QueryState) error {
			crops = s.Request.Crops
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("read query state: %w", err)
		}
		return t.FetchAndRender(ctx, crops), nil
	})
}

func NewTelemetryPostHandler() func(context.Context, string, *model.QueryState) (string, error) {
	return func(ctx context.Context, text string, s *model.QueryState) (string, error) {
		s.Telemetry = text
		return text, nil
	}
}

// NewAssembleNode builds the response model input from state.
func NewAssembleNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, telemetry string) (*model.PreparedPrompt, error) {
		var (
			history []model.ChatMessage
			items   []model.ContextItem
		)
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.QueryState) error {
			history = s.Request.Messages
			items = s.Context
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("read query state: %w", err)
		}

		msgs, err := prompts.Assemble(ctx, history, items, telemetry)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []model.ContextItem{}
		}
		return &model.PreparedPrompt{Messages: msgs, Context: items, Telemetry: telemetry}, nil
	})
}

// ClampResults applies the default for a missing count and bounds it to
// [1, MaxResults].
func ClampResults(n int, cfg model.RetrievalConfig) int {
	def := cfg.DefaultResults
	if def <= 0 {
		def = 3
	}
	max := cfg.MaxResults
	if max <= 0 {
		max = 20
	}
	if n <= 0 {
		n = def
	}
	return clampInt(n, 1, max)
}

// clampInt returns v limited to [min, max].
func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
