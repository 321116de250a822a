package coordinator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/farmsense/server/internal/agent/bus"
	"github.com/farmsense/server/internal/agent/model"
	logx "github.com/farmsense/server/pkg/logger"
)

// Decoder turns an envelope payload into a record.
type Decoder func(payload json.RawMessage) (model.Record, error)

// ArrivalHandler receives decoded records. *Coordinator implements it.
type ArrivalHandler interface {
	OnArrival(ctx context.Context, rec model.Record) (bool, error)
}

// Dispatcher routes envelopes to the coordinator through a decoder table
// keyed by kind.
type Dispatcher struct {
	target   ArrivalHandler
	decoders map[model.SourceKind]Decoder
}

func NewDispatcher(target ArrivalHandler) *Dispatcher {
	return &Dispatcher{
		target: target,
		decoders: map[model.SourceKind]Decoder{
			model.KindWeather:   decodeAs[model.WeatherRecord],
			model.KindSatellite: decodeAs[model.SatelliteRecord],
			model.KindMarket:    decodeAs[model.MarketRecord],
			model.KindSoil:      decodeAs[model.SoilRecord],
		},
	}
}

// Register replaces the decoder for kind.
func (d *Dispatcher) Register(kind model.SourceKind, dec Decoder) {
	d.decoders[kind] = dec
}

// Serve subscribes the dispatcher to the records topic.
func (d *Dispatcher) Serve(ctx context.Context, b bus.Bus) error {
	if err := b.Subscribe(ctx, bus.RecordsTopic, d.HandleMessage); err != nil {
		return fmt.Errorf("subscribe records: %w", err)
	}
	logx.Info().Str("topic", bus.RecordsTopic).Msg("coordinator listening")
	return nil
}

// HandleMessage is a bus.Handler. Bad messages are logged and dropped.
func (d *Dispatcher) HandleMessage(ctx context.Context, payload []byte) {
	env, err := model.DecodeEnvelope(payload)
	if err != nil {
		logx.Warn().Err(err).Msg("discarding malformed envelope")
		return
	}
	if err := d.Dispatch(ctx, env); err != nil {
		logx.Warn().Err(err).Str("envelope_id", env.ID).Str("sender", env.Sender).Msg("envelope not dispatched")
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, env model.Envelope) error {
	dec, ok := d.decoders[env.Kind]
	if !ok {
		return fmt.Errorf("no decoder for kind %q", env.Kind)
	}
	if env.SchemaVersion > model.CurrentSchemaVersion {
		logx.Debug().
			Int("schema_version", env.SchemaVersion).
			Str("kind", string(env.Kind)).
			Msg("envelope is newer than this build, unknown fields ignored")
	}

	rec, err := dec(env.Payload)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Kind, err)
	}
	if rec.Kind() != env.Kind {
		return fmt.Errorf("decoder for %s produced %s record", env.Kind, rec.Kind())
	}

	logx.Info().Str("kind", string(env.Kind)).Str("sender", env.Sender).Msg("received record")
	_, err = d.target.OnArrival(ctx, rec)
	return err
}

func decodeAs[T model.Record](payload json.RawMessage) (model.Record, error) {
	var rec T
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}
