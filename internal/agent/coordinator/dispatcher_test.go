package coordinator

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
	"github.com/farmsense/server/internal/testutil"
)

type arrivals struct {
	got []model.Record
}

func (a *arrivals) OnArrival(_ context.Context, rec model.Record) (bool, error) {
	a.got = append(a.got, rec)
	return false, nil
}

func envelope(t *testing.T, rec model.Record) model.Envelope {
	t.Helper()
	env, err := model.NewEnvelope("test", "farm-1", rec, fixedNow())
	require.NoError(t, err)
	return env
}

func TestDispatcher_RoutesByKind(t *testing.T) {
	target := &arrivals{}
	d := NewDispatcher(target)

	for _, rec := range []model.Record{market(), soil(), weather(70, "2025-10-01"), model.SatelliteRecord{Status: "ok"}} {
		require.NoError(t, d.Dispatch(context.Background(), envelope(t, rec)))
	}
	require.Len(t, target.got, 4)
	assert.IsType(t, model.MarketRecord{}, target.got[0])
	assert.IsType(t, model.SoilRecord{}, target.got[1])
	assert.IsType(t, model.WeatherRecord{}, target.got[2])
	assert.IsType(t, model.SatelliteRecord{}, target.got[3])
}

func TestDispatcher_AcceptsNewerSchemaWithUnknownFields(t *testing.T) {
	target := &arrivals{}
	d := NewDispatcher(target)

	env := model.Envelope{
		ID:            "e1",
		Kind:          model.KindSoil,
		SchemaVersion: model.CurrentSchemaVersion + 1,
		Payload:       json.RawMessage(`{"ph":6.8,"salinity":0.4}`),
	}
	require.NoError(t, d.Dispatch(context.Background(), env))
	require.Len(t, target.got, 1)
	assert.Equal(t, 6.8, *target.got[0].(model.SoilRecord).PH)
}

func TestDispatcher_RejectsUnknownKindAndBadPayload(t *testing.T) {
	target := &arrivals{}
	d := NewDispatcher(target)

	err := d.Dispatch(context.Background(), model.Envelope{Kind: "rainfall", Payload: json.RawMessage(`{}`)})
	assert.ErrorContains(t, err, "no decoder")

	err = d.Dispatch(context.Background(), model.Envelope{Kind: model.KindMarket, Payload: json.RawMessage(`{"price_records":"x"}`)})
	assert.Error(t, err)

	// malformed messages on the bus are dropped without reaching the target
	d.HandleMessage(context.Background(), []byte(`{`))
	assert.Empty(t, target.got)
}

func TestDispatcher_RegisterOverridesDecoder(t *testing.T) {
	target := &arrivals{}
	d := NewDispatcher(target)
	d.Register(model.KindMarket, func(json.RawMessage) (model.Record, error) {
		return nil, errors.New("disabled")
	})
	err := d.Dispatch(context.Background(), envelope(t, market()))
	assert.ErrorContains(t, err, "disabled")
}

func TestDispatcher_ServeOverBusCommits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := testutil.NewRecordingSink()
	c := newCoordinator(t, sink, Options{TriggerKind: model.KindMarket})
	b := bus.NewMemoryBus(8)
	require.NoError(t, NewDispatcher(c).Serve(ctx, b))

	for _, rec := range []model.Record{weather(70, "2025-10-01"), weather(71, "2025-10-01"), market()} {
		data, err := json.Marshal(envelope(t, rec))
		require.NoError(t, err)
		require.NoError(t, b.Publish(ctx, bus.RecordsTopic, data))
	}

	assert.Eventually(t, func() bool {
		return sink.CallsFor("market") == 1
	}, 2*time.Second, 10*time.Millisecond)
	drain(t, c)
	assert.Equal(t, 1, sink.CallsFor("weather"))
}
