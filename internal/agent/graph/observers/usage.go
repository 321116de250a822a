package observers

import (
	"github.com/cloudwego/eino/schema"

	"github.com/farmsense/server/internal/agent/model"
	logx "github.com/farmsense/server/pkg/logger"
)

// LogUsage logs token usage and its USD cost for one model call and returns
// the total cost. A nil usage logs nothing.
func LogUsage(node, modelName string, usage *schema.TokenUsage) float64 {
	if usage == nil {
		return 0
	}
	inC, outC, totalC := model.ComputeCost(usage, model.ResolvePricing(modelName))
	logx.Debug().
		Str("node", node).
		Str("model", modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")
	return totalC
}

func logNode(name, msg string) {
	logx.Debug().Str("component", "lambda").Str("node", name).Msg(msg)
}

func logNodeError(name string, err error) {
	logx.Error().Err(err).Str("node", name).Msg("node error")
}
