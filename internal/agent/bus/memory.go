package bus

import (
	"context"
	"sync"

	logx "github.com/farmsense/server/pkg/logger"
)

// MemoryBus is an in-process Bus for single binary deployments and tests.
// Each subscriber owns a buffered queue; when it is full the message is dropped,
// mirroring the at-most-once behaviour of the Redis transport.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]chan []byte
	buffer int
}

func NewMemoryBus(buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = 64
	}
	return &MemoryBus{subs: make(map[string][]chan []byte), buffer: buffer}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[topic] {
		msg := append([]byte(nil), payload...)
		select {
		case ch <- msg:
		case <-ctx.Done():
			return ctx.Err()
		default:
			logx.Warn().Str("topic", topic).Msg("subscriber queue full, dropping message")
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string, h Handler) error {
	ch := make(chan []byte, b.buffer)
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	go func() {
		defer b.unsubscribe(topic, ch)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-ch:
				h(ctx, msg)
			}
		}
	}()
	return nil
}

func (b *MemoryBus) unsubscribe(topic string, ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[topic]
	for i, c := range subs {
		if c == ch {
			b.subs[topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

var _ Bus = (*MemoryBus)(nil)
