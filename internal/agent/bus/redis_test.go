package bus

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("redis integration test skipped in -short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(ctx).Err())
	return rdb
}

func TestRedisBus_PublishSubscribe(t *testing.T) {
	rdb := newRedisClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewRedisBus(rdb)

	var mu sync.Mutex
	var got []string
	var wg sync.WaitGroup
	wg.Add(2)
	require.NoError(t, b.Subscribe(ctx, RecordsTopic, func(_ context.Context, payload []byte) {
		mu.Lock()
		got = append(got, string(payload))
		mu.Unlock()
		wg.Done()
	}))

	require.NoError(t, b.Publish(ctx, RecordsTopic, []byte("one")))
	require.NoError(t, b.Publish(ctx, "farmsense:elsewhere", []byte("ignored")))
	require.NoError(t, b.Publish(ctx, RecordsTopic, []byte("two")))

	waitTimeout(t, &wg)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestRedisBus_NoSubscriberDropsMessage(t *testing.T) {
	rdb := newRedisClient(t)
	ctx := context.Background()

	b := NewRedisBus(rdb)
	require.NoError(t, b.Publish(ctx, "farmsense:nobody", []byte("lost")))

	received := make(chan string, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	require.NoError(t, b.Subscribe(subCtx, "farmsense:nobody", func(_ context.Context, payload []byte) {
		received <- string(payload)
	}))

	select {
	case p := <-received:
		t.Fatalf("late subscriber received %q", p)
	case <-time.After(200 * time.Millisecond):
	}
}
