package sources

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmsense/server/internal/agent/bus"
	"github.com/farmsense/server/internal/agent/model"
)

var fixedNow = func() time.Time { return time.Date(2025, 10, 1, 15, 30, 0, 0, time.UTC) }

func collect(t *testing.T, ctx context.Context, b bus.Bus, topic string) <-chan []byte {
	t.Helper()
	out := make(chan []byte, 16)
	require.NoError(t, b.Subscribe(ctx, topic, func(_ context.Context, payload []byte) {
		out <- payload
	}))
	return out
}

func receive(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestAgent_ServePublishesEnvelope(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.NewMemoryBus(8)
	records := collect(t, ctx, b, bus.RecordsTopic)

	agent := NewAgent(model.KindMarket, StaticMarket{Now: fixedNow}, b)
	agent.now = fixedNow
	require.NoError(t, agent.Serve(ctx))

	req, err := json.Marshal(model.AgentRequest{ID: "r1", Kind: model.KindMarket, FarmID: "farm-9", CropType: "Wheat"})
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, bus.RequestTopic(model.KindMarket), req))

	env, err := model.DecodeEnvelope(receive(t, records))
	require.NoError(t, err)
	assert.Equal(t, model.KindMarket, env.Kind)
	assert.Equal(t, "market_agent", env.Sender)
	assert.Equal(t, "farm-9", env.FarmID)
	assert.Equal(t, fixedNow(), env.SentAt)

	var rec model.MarketRecord
	require.NoError(t, json.Unmarshal(env.Payload, &rec))
	assert.Equal(t, "Wheat", rec.CropName)
	assert.Len(t, rec.PriceRecords, forecastDays)
}

func TestAgent_RespondRejectsWrongKind(t *testing.T) {
	b := bus.NewMemoryBus(1)
	agent := NewAgent(model.KindWeather, StaticSoil{Now: fixedNow}, b)

	err := agent.Respond(context.Background(), model.AgentRequest{Kind: model.KindWeather})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "soil record for weather agent")
}

func TestAgent_RespondPublishesNothingOnFetchError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.NewMemoryBus(1)
	records := collect(t, ctx, b, bus.RecordsTopic)

	boom := errors.New("provider down")
	agent := NewAgent(model.KindSoil, FetcherFunc(func(context.Context, model.AgentRequest) (model.Record, error) {
		return nil, boom
	}), b)

	err := agent.Respond(ctx, model.AgentRequest{Kind: model.KindSoil})
	require.ErrorIs(t, err, boom)

	select {
	case <-records:
		t.Fatal("nothing should be published when the fetch fails")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRequestAll_SendsOnePerKind(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.NewMemoryBus(4)
	topics := map[model.SourceKind]<-chan []byte{}
	for _, kind := range model.SourceKinds {
		topics[kind] = collect(t, ctx, b, bus.RequestTopic(kind))
	}

	farm := model.FarmConfig{ID: "f1", Latitude: 40.7128, Longitude: -74.006, CropType: "Wheat"}
	require.NoError(t, RequestAll(ctx, b, farm))

	for kind, ch := range topics {
		var req model.AgentRequest
		require.NoError(t, json.Unmarshal(receive(t, ch), &req))
		assert.Equal(t, kind, req.Kind)
		assert.Equal(t, "f1", req.FarmID)
		if kind == model.KindMarket {
			assert.Equal(t, "Wheat", req.CropType)
			assert.Zero(t, req.Latitude)
		} else {
			assert.Equal(t, 40.7128, req.Latitude)
			assert.Empty(t, req.CropType)
		}
	}
}
