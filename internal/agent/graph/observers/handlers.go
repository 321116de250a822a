// Package observers logs eino component lifecycles and model usage.
package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/compose"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"
)

// NewAllCallbacks aggregates the prompt, model and lambda observers into one
// callbacks.Handler.
func NewAllCallbacks() einocb.Handler {
	return callbackHelper.NewHandlerHelper().
		ChatModel(newModelHandler()).
		Prompt(newPromptHandler()).
		Lambda(newLambdaHandler()).
		Handler()
}

// WithModelCallbacks attaches the observers to ctx for a chat model called
// outside a compiled graph.
func WithModelCallbacks(ctx context.Context, name string) context.Context {
	return einocb.InitCallbacks(ctx, &einocb.RunInfo{
		Name:      name,
		Type:      "Gemini",
		Component: components.ComponentOfChatModel,
	}, NewAllCallbacks())
}

func newLambdaHandler() einocb.Handler {
	return einocb.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackInput) context.Context {
			if info.Component == compose.ComponentOfLambda {
				logNode(info.Name, "node start")
			}
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logNodeError(info.Name, err)
			return ctx
		}).
		Build()
}
