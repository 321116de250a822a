package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/farmsense/server/internal/agent/model"
)

//go:embed template/system_prompt.txt
var systemPrompt string

// NoContextSentinel replaces an empty knowledge base block.
const NoContextSentinel = "No relevant knowledge base passages were found."

const unknownSource = "unknown"

// ContextBlock renders retrieved items as "[Source: x]" headed passages
// separated by a blank line, in retrieval order.
func ContextBlock(items []model.ContextItem) string {
	if len(items) == 0 {
		return NoContextSentinel
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		src := it.Source()
		if src == "" {
			src = unknownSource
		}
		parts = append(parts, fmt.Sprintf("[Source: %s]\n%s", src, it.Text))
	}
	return strings.Join(parts, "\n\n")
}

// Assemble builds the message list sent to the response model: one rendered
// system message, then every non-system history message in its original
// order. History is not truncated.
func Assemble(ctx context.Context, history []model.ChatMessage, items []model.ContextItem, telemetry string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(systemPrompt),
		schema.MessagesPlaceholder("history", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"RealtimeData": telemetry,
		"RAGContext":   ContextBlock(items),
		"history":      HistoryMessages(history),
	})
	if err != nil {
		return nil, fmt.Errorf("system prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil || msgs[0].Role != schema.System {
		return nil, fmt.Errorf("system prompt render: empty result")
	}
	return msgs, nil
}

// HistoryMessages converts caller history, dropping system entries.
func HistoryMessages(history []model.ChatMessage) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		switch schema.RoleType(m.Role) {
		case schema.System:
			continue
		case schema.Assistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		case schema.User:
			out = append(out, schema.UserMessage(m.Content))
		default:
			out = append(out, &schema.Message{Role: schema.RoleType(m.Role), Content: m.Content})
		}
	}
	return out
}
