package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/decompose_prompt.txt
var decomposePrompt string

// DecomposeMessages renders the query splitting instruction followed by the
// raw question. The question is passed through a placeholder so braces in it
// are never interpreted as template syntax.
func DecomposeMessages(ctx context.Context, question string) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(decomposePrompt),
		schema.MessagesPlaceholder("question", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"question": []*schema.Message{schema.UserMessage(question)},
	})
	if err != nil {
		return nil, fmt.Errorf("decompose prompt render: %w", err)
	}
	if len(msgs) != 2 {
		return nil, fmt.Errorf("decompose prompt render: expected 2 messages, got %d", len(msgs))
	}
	return msgs, nil
}
