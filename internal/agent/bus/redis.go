package bus

import (
	"context"

	"github.com/redis/go-redis/v9"

	errx "github.com/farmsense/server/internal/core/error"
	logx "github.com/farmsense/server/pkg/logger"
)

// RedisBus implements Bus on Redis Pub/Sub, which matches the at-most-once
// contract: subscribers that are not connected miss the message.
type RedisBus struct {
	rdb redis.UniversalClient
}

func NewRedisBus(rdb redis.UniversalClient) *RedisBus {
	return &RedisBus{rdb: rdb}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.rdb.Publish(ctx, topic, payload).Err(); err != nil {
		logx.Error().Err(err).Str("topic", topic).Msg("failed to publish to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, topic string, h Handler) error {
	ps := b.rdb.Subscribe(ctx, topic)
	// Receive blocks until the subscription is confirmed by the server.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		logx.Error().Err(err).Str("topic", topic).Msg("failed to subscribe to redis channel")
		return errx.WrapRedis(err)
	}

	go func() {
		defer ps.Close()
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				h(ctx, []byte(msg.Payload))
			}
		}
	}()

	logx.Debug().Str("topic", topic).Msg("subscribed to redis channel")
	return nil
}

var _ Bus = (*RedisBus)(nil)
