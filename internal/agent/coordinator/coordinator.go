// Package coordinator reconciles records that arrive independently from the
// Source Agents into commit cycles. Each arrival overwrites the state for its
// kind; when the trigger kind is present the populated records are handed to a
// background committer and the state is reset.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/farmsense/server/internal/agent/model"
	"github.com/farmsense/server/internal/metrics"
	logx "github.com/farmsense/server/pkg/logger"
)

// ResetPolicy decides which kinds are cleared after a commit.
type ResetPolicy string

const (
	// ResetCommitted clears every kind included in the commit, so stale records
	// are never persisted twice.
	ResetCommitted ResetPolicy = "committed"
	// ResetTrigger clears only the trigger kind; other kinds are re-persisted
	// on the next commit unless they were refreshed in between.
	ResetTrigger ResetPolicy = "trigger"
)

func ParseResetPolicy(v string) (ResetPolicy, error) {
	switch ResetPolicy(v) {
	case ResetCommitted, ResetTrigger:
		return ResetPolicy(v), nil
	case "":
		return ResetCommitted, nil
	}
	return "", fmt.Errorf("unknown reset policy %q", v)
}

var ErrClosed = errors.New("coordinator closed")

type Options struct {
	FarmID         string
	TriggerKind    model.SourceKind
	ResetPolicy    ResetPolicy
	QueueSize      int
	PersistTimeout time.Duration
	Metrics        *metrics.Metrics
	Now            func() time.Time
}

// OptionsFromConfig converts the env config into Options.
func OptionsFromConfig(cfg model.CoordinatorConfig, farmID string, m *metrics.Metrics) (Options, error) {
	policy, err := ParseResetPolicy(cfg.ResetPolicy)
	if err != nil {
		return Options{}, err
	}
	timeout := 10 * time.Second
	if cfg.PersistTimeout != "" {
		timeout, err = time.ParseDuration(cfg.PersistTimeout)
		if err != nil {
			return Options{}, fmt.Errorf("parse persist timeout: %w", err)
		}
	}
	return Options{
		FarmID:         farmID,
		TriggerKind:    cfg.TriggerKind,
		ResetPolicy:    policy,
		QueueSize:      cfg.QueueSize,
		PersistTimeout: timeout,
		Metrics:        m,
	}, nil
}

type Coordinator struct {
	opts Options
	sink model.RecordSink

	mu     sync.Mutex
	state  *CollectedState
	closed bool

	queue chan Batch
	done  chan struct{}
}

// New starts a coordinator and its committer goroutine. Call Close to drain
// pending commits.
func New(sink model.RecordSink, opts Options) (*Coordinator, error) {
	if sink == nil {
		return nil, errors.New("coordinator requires a record sink")
	}
	if opts.TriggerKind == "" {
		opts.TriggerKind = model.KindWeather
	}
	if _, err := model.ParseSourceKind(string(opts.TriggerKind)); err != nil {
		return nil, err
	}
	if opts.ResetPolicy == "" {
		opts.ResetPolicy = ResetCommitted
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Coordinator{
		opts:  opts,
		sink:  sink,
		state: NewCollectedState(),
		queue: make(chan Batch, opts.QueueSize),
		done:  make(chan struct{}),
	}
	go c.commitLoop()
	return c, nil
}

func (c *Coordinator) TriggerKind() model.SourceKind { return c.opts.TriggerKind }

// OnArrival records rec under its kind and, when the trigger kind is present,
// schedules a commit of every populated kind. It reports whether a commit was
// scheduled. Arrivals are serialized; persistence never runs on this path.
func (c *Coordinator) OnArrival(ctx context.Context, rec model.Record) (bool, error) {
	if rec == nil {
		return false, errors.New("nil record")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, ErrClosed
	}

	kind := rec.Kind()
	c.state.Set(rec)
	c.opts.Metrics.ObserveArrival(string(kind))
	logx.Info().Str("kind", string(kind)).Strs("populated", kindNames(c.state.Populated())).Msg("record arrived")

	if !c.state.Has(c.opts.TriggerKind) {
		return false, nil
	}

	batch := BuildBatch(c.opts.FarmID, c.state.Snapshot(), c.opts.Now())

	// The queue is sized to absorb bursts; a full queue applies backpressure
	// to the arrival path instead of dropping a commit.
	select {
	case c.queue <- batch:
	case <-ctx.Done():
		logx.Warn().Err(ctx.Err()).Strs("kinds", kindNames(batch.Kinds)).Msg("commit abandoned, state kept")
		return false, ctx.Err()
	}
	c.opts.Metrics.ObserveCommit()
	c.opts.Metrics.SetQueueDepth(len(c.queue))

	switch c.opts.ResetPolicy {
	case ResetTrigger:
		c.state.Clear(c.opts.TriggerKind)
	default:
		c.state.Clear(batch.Kinds...)
	}

	logx.Info().
		Strs("kinds", kindNames(batch.Kinds)).
		Str("reset_policy", string(c.opts.ResetPolicy)).
		Msg("commit scheduled")
	return true, nil
}

// Populated reports the kinds currently held.
func (c *Coordinator) Populated() []model.SourceKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Populated()
}

// Close stops accepting arrivals and waits for queued commits to finish or ctx
// to expire.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.queue)
	}
	c.mu.Unlock()

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain commit queue: %w", ctx.Err())
	}
}

func (c *Coordinator) commitLoop() {
	defer close(c.done)
	for batch := range c.queue {
		c.opts.Metrics.SetQueueDepth(len(c.queue))
		c.persist(batch)
	}
}

// persist writes each domain independently. A failing domain is logged and
// counted; the others still commit. Nothing is retried.
func (c *Coordinator) persist(b Batch) {
	c.persistDomain("weather", len(b.Weather), len(b.Weather) > 0, func(ctx context.Context) error {
		return c.sink.UpsertWeather(ctx, b.Weather)
	})
	c.persistDomain("market", len(b.Market), len(b.Market) > 0, func(ctx context.Context) error {
		return c.sink.UpsertMarket(ctx, b.Market)
	})
	c.persistDomain("environmental", 1, b.Environmental != nil, func(ctx context.Context) error {
		return c.sink.UpsertEnvironmental(ctx, *b.Environmental)
	})
	c.persistDomain("satellite", 1, b.Satellite != nil, func(ctx context.Context) error {
		return c.sink.UpsertSatellite(ctx, *b.Satellite)
	})
}

func (c *Coordinator) persistDomain(domain string, rows int, present bool, upsert func(context.Context) error) {
	if !present {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.PersistTimeout)
	defer cancel()

	err := upsert(ctx)
	c.opts.Metrics.ObservePersist(domain, rows, err)
	if err != nil {
		logx.Error().Err(err).Str("domain", domain).Str("farm_id", c.opts.FarmID).Msg("failed to persist records")
		return
	}
	logx.Info().Str("domain", domain).Int("rows", rows).Str("farm_id", c.opts.FarmID).Msg("persisted records")
}

func kindNames(kinds []model.SourceKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
