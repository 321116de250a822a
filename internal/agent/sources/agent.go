// Package sources implements the four Source Agents. An agent listens on its
// request topic, asks its Fetcher for one record, and publishes the record in
// an envelope on the records topic. Agents keep no state between requests.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/farmsense/server/internal/agent/bus"
	"github.com/farmsense/server/internal/agent/model"
	logx "github.com/farmsense/server/pkg/logger"
)

// Fetcher produces one record for a request. Real provider adapters live
// behind this interface.
type Fetcher interface {
	Fetch(ctx context.Context, req model.AgentRequest) (model.Record, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req model.AgentRequest) (model.Record, error)

func (f FetcherFunc) Fetch(ctx context.Context, req model.AgentRequest) (model.Record, error) {
	return f(ctx, req)
}

type Agent struct {
	name    string
	kind    model.SourceKind
	fetcher Fetcher
	bus     bus.Bus
	now     func() time.Time
}

func NewAgent(kind model.SourceKind, fetcher Fetcher, b bus.Bus) *Agent {
	return &Agent{
		name:    string(kind) + "_agent",
		kind:    kind,
		fetcher: fetcher,
		bus:     b,
		now:     time.Now,
	}
}

func (a *Agent) Name() string           { return a.name }
func (a *Agent) Kind() model.SourceKind { return a.kind }

// Serve subscribes to the agent's request topic. Requests are handled one at a
// time until ctx is cancelled.
func (a *Agent) Serve(ctx context.Context) error {
	if err := a.bus.Subscribe(ctx, bus.RequestTopic(a.kind), a.handle); err != nil {
		return fmt.Errorf("%s subscribe: %w", a.name, err)
	}
	logx.Info().Str("agent", a.name).Msg("source agent listening")
	return nil
}

func (a *Agent) handle(ctx context.Context, payload []byte) {
	var req model.AgentRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		logx.Warn().Err(err).Str("agent", a.name).Msg("discarding malformed request")
		return
	}
	if err := a.Respond(ctx, req); err != nil {
		logx.Error().Err(err).Str("agent", a.name).Str("request_id", req.ID).Msg("failed to answer request")
	}
}

// Respond fetches one record and publishes it. There is no acknowledgement.
func (a *Agent) Respond(ctx context.Context, req model.AgentRequest) error {
	logx.Info().
		Str("agent", a.name).
		Str("request_id", req.ID).
		Float64("latitude", req.Latitude).
		Float64("longitude", req.Longitude).
		Str("crop_type", req.CropType).
		Msg("received request")

	rec, err := a.fetcher.Fetch(ctx, req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("fetch returned no record")
	}
	if rec.Kind() != a.kind {
		return fmt.Errorf("fetcher produced %s record for %s agent", rec.Kind(), a.kind)
	}

	env, err := model.NewEnvelope(a.name, req.FarmID, rec, a.now())
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := a.bus.Publish(ctx, bus.RecordsTopic, data); err != nil {
		return fmt.Errorf("publish envelope: %w", err)
	}

	logx.Debug().Str("agent", a.name).Str("envelope_id", env.ID).Msg("published record")
	return nil
}
