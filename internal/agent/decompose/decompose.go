// Package decompose splits a farmer's question into focused search phrases
// with a small chat model. It never fails: any problem falls back to the
// question itself.
package decompose

import (
	"context"
	"regexp"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/farmsense/server/internal/agent/graph/prompts"
	"github.com/farmsense/server/internal/metrics"
	logx "github.com/farmsense/server/pkg/logger"
)

// DefaultTemperature keeps the phrasing stable between calls.
const DefaultTemperature float32 = 0.3

// listMarker matches bullets and numbering models like to add anyway.
var listMarker = regexp.MustCompile(`^(?:[-*•]+|\d+[.)])\s+`)

type Decomposer struct {
	chat        einomodel.BaseChatModel
	temperature float32
	metrics     *metrics.Metrics
}

func New(chat einomodel.BaseChatModel, temperature float32, m *metrics.Metrics) *Decomposer {
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	return &Decomposer{chat: chat, temperature: temperature, metrics: m}
}

// Decompose returns the ordered search phrases for question, or a single
// element slice holding question when the model fails or says nothing useful.
func (d *Decomposer) Decompose(ctx context.Context, question string) []string {
	fallback := []string{question}
	if d == nil || d.chat == nil {
		return fallback
	}

	msgs, err := prompts.DecomposeMessages(ctx, question)
	if err != nil {
		logx.Warn().Err(err).Msg("decompose prompt failed, searching the raw question")
		d.metrics.ObserveDecompositionFallback()
		return fallback
	}

	out, err := d.chat.Generate(ctx, msgs, einomodel.WithTemperature(d.temperature))
	if err != nil {
		logx.Warn().Err(err).Msg("query decomposition failed, searching the raw question")
		d.metrics.ObserveDecompositionFallback()
		return fallback
	}
	if out == nil {
		d.metrics.ObserveDecompositionFallback()
		return fallback
	}

	phrases := SplitPhrases(out.Content)
	if len(phrases) == 0 {
		logx.Warn().Msg("query decomposition returned no phrases, searching the raw question")
		d.metrics.ObserveDecompositionFallback()
		return fallback
	}
	logx.Debug().Strs("phrases", phrases).Msg("decomposed question")
	return phrases
}

// SplitPhrases splits model output on line boundaries, trims each line, strips
// list markers and drops empty lines. Order is kept and nothing is
// de-duplicated.
func SplitPhrases(raw string) []string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
