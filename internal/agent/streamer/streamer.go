// Package streamer runs the response model over an assembled prompt, either
// streaming normalized deltas or returning one normalized answer.
package streamer

import (
	"context"
	"errors"
	"fmt"
	"io"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/farmsense/server/internal/agent/graph/observers"
	"github.com/farmsense/server/internal/agent/model"
	errx "github.com/farmsense/server/internal/core/error"
	"github.com/farmsense/server/internal/metrics"
	logx "github.com/farmsense/server/pkg/logger"
)

const (
	StageContext = "context"

	modeStream = "stream"
	modeAnswer = "answer"

	maxStatusSources = 2
	excerptLen       = 160
)

type state int

const (
	stateIdle state = iota
	stateStatusSent
	stateStreaming
	stateDone
	stateError
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateStatusSent:
		return "status_sent"
	case stateStreaming:
		return "streaming"
	case stateDone:
		return "done"
	case stateError:
		return "error"
	}
	return "unknown"
}

type Streamer struct {
	chat      einomodel.BaseChatModel
	modelName string
	opts      []einomodel.Option
	metrics   *metrics.Metrics
}

func New(chat einomodel.BaseChatModel, modelName string, m *metrics.Metrics, opts ...einomodel.Option) *Streamer {
	return &Streamer{chat: chat, modelName: modelName, opts: opts, metrics: m}
}

func (s *Streamer) ModelName() string { return s.modelName }

// Answer makes one blocking model call and normalizes the full text.
func (s *Streamer) Answer(ctx context.Context, p *model.PreparedPrompt) (model.Answer, error) {
	if p == nil {
		return model.Answer{}, errors.New("nil prompt")
	}
	ctx = observers.WithModelCallbacks(ctx, "response")

	out, err := s.chat.Generate(ctx, p.Messages, s.opts...)
	if err == nil && out == nil {
		err = errors.New("model returned no message")
	}
	if err != nil {
		s.metrics.ObserveModelError(modeAnswer)
		logx.Error().Err(err).Str("model", s.modelName).Msg("response generation failed")
		return model.Answer{}, errx.WrapModel(err)
	}
	if out.ResponseMeta != nil {
		observers.LogUsage("response", s.modelName, out.ResponseMeta.Usage)
	}

	items := p.Context
	if items == nil {
		items = []model.ContextItem{}
	}
	return model.Answer{Text: Normalize(out.Content), Context: items, Model: s.modelName}, nil
}

// Stream emits at most one status event, the normalized deltas, and a final
// done event. A model failure ends the stream with a single error event.
// Closing the returned reader stops the producer and closes the upstream
// model stream; ctx is passed to the model call.
func (s *Streamer) Stream(ctx context.Context, p *model.PreparedPrompt) *schema.StreamReader[model.StreamEvent] {
	sr, sw := schema.Pipe[model.StreamEvent](8)
	go s.pump(ctx, p, sw)
	return sr
}

func (s *Streamer) pump(ctx context.Context, p *model.PreparedPrompt, sw *schema.StreamWriter[model.StreamEvent]) {
	defer sw.Close()
	st := stateIdle

	fail := func(err error) {
		s.metrics.ObserveModelError(modeStream)
		logx.Error().Err(err).Str("state", st.String()).Str("model", s.modelName).Msg("response stream failed")
		st = stateError
		sw.Send(model.ErrorEvent(errx.WrapModel(err).Error()), nil)
	}

	if p == nil {
		fail(errors.New("nil prompt"))
		return
	}

	if msg, excerpt, ok := statusFor(p.Context); ok {
		if closed := sw.Send(model.StatusEvent(StageContext, msg, excerpt), nil); closed {
			return
		}
		st = stateStatusSent
	}

	upstream, err := s.chat.Stream(observers.WithModelCallbacks(ctx, "response"), p.Messages, s.opts...)
	if err != nil {
		fail(err)
		return
	}
	defer upstream.Close()
	st = stateStreaming

	norm := &Normalizer{}
	var usage *schema.TokenUsage
	for {
		chunk, err := upstream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fail(err)
			return
		}
		if chunk == nil {
			continue
		}
		if chunk.ResponseMeta != nil && chunk.ResponseMeta.Usage != nil {
			usage = chunk.ResponseMeta.Usage
		}
		if text := norm.Push(chunk.Content); text != "" {
			if closed := sw.Send(model.DeltaEvent(text), nil); closed {
				logx.Info().Str("state", st.String()).Msg("stream reader closed, cancelling model stream")
				return
			}
		}
	}
	if tail := norm.Flush(); tail != "" {
		if closed := sw.Send(model.DeltaEvent(tail), nil); closed {
			return
		}
	}

	observers.LogUsage("response", s.modelName, usage)
	st = stateDone
	sw.Send(model.DoneEvent(), nil)
}

// statusFor summarises the first two distinct sources of the retrieved
// context. It reports false when no item names a source.
func statusFor(items []model.ContextItem) (msg, excerpt string, ok bool) {
	var sources []string
	seen := map[string]bool{}
	for _, it := range items {
		src := it.Source()
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		sources = append(sources, src)
		if excerpt == "" {
			excerpt = clip(it.Text, excerptLen)
		}
		if len(sources) == maxStatusSources {
			break
		}
	}
	switch len(sources) {
	case 0:
		return "", "", false
	case 1:
		return fmt.Sprintf("Consulting %s", sources[0]), excerpt, true
	default:
		return fmt.Sprintf("Consulting %s and %s", sources[0], sources[1]), excerpt, true
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
