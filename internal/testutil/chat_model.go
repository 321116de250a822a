package testutil

import (
	"context"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModel is a scripted einomodel.BaseChatModel.
//
// Generate returns Reply (or Err). Stream emits Chunks in order, then
// StreamErr if set. When Gate is non-nil every chunk waits for a value on it,
// which lets tests interleave with the producer.
type ChatModel struct {
	Reply     string
	Chunks    []string
	Err       error
	StreamErr error
	Usage     *schema.TokenUsage
	Gate      chan struct{}

	mu      sync.Mutex
	inputs  [][]*schema.Message
	options []*einomodel.Options
	done    chan struct{}
}

func (m *ChatModel) observe(input []*schema.Message, opts []einomodel.Option) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, input)
	m.options = append(m.options, einomodel.GetCommonOptions(&einomodel.Options{}, opts...))
}

func (m *ChatModel) Generate(_ context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	m.observe(input, opts)
	if m.Err != nil {
		return nil, m.Err
	}
	msg := schema.AssistantMessage(m.Reply, nil)
	if m.Usage != nil {
		msg.ResponseMeta = &schema.ResponseMeta{Usage: m.Usage}
	}
	return msg, nil
}

func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	m.observe(input, opts)
	if m.Err != nil {
		return nil, m.Err
	}

	done := make(chan struct{})
	m.mu.Lock()
	m.done = done
	m.mu.Unlock()

	sr, sw := schema.Pipe[*schema.Message](1)
	go func() {
		defer close(done)
		defer sw.Close()
		for i, chunk := range m.Chunks {
			if m.Gate != nil {
				select {
				case <-m.Gate:
				case <-ctx.Done():
					sw.Send(nil, ctx.Err())
					return
				}
			}
			msg := schema.AssistantMessage(chunk, nil)
			if i == len(m.Chunks)-1 && m.Usage != nil {
				msg.ResponseMeta = &schema.ResponseMeta{Usage: m.Usage}
			}
			if closed := sw.Send(msg, nil); closed {
				return
			}
		}
		if m.StreamErr != nil {
			sw.Send(nil, m.StreamErr)
		}
	}()
	return sr, nil
}

// Inputs returns the message lists received so far.
func (m *ChatModel) Inputs() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]*schema.Message(nil), m.inputs...)
}

// Options returns the resolved common options of every call.
func (m *ChatModel) Options() []*einomodel.Options {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*einomodel.Options(nil), m.options...)
}

// StreamDone is closed once the producer goroutine of the last Stream call
// has exited. It is nil before the first Stream call.
func (m *ChatModel) StreamDone() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

var _ einomodel.BaseChatModel = (*ChatModel)(nil)
