// Package testutil provides in-memory fakes of the stores and chat models for
// package tests.
package testutil

import (
	"context"
	"sync"

	"github.com/farmsense/server/internal/agent/model"
)

// SinkCall records one upsert received by RecordingSink.
type SinkCall struct {
	Domain string
	Rows   int
}

// RecordingSink is a model.RecordSink that remembers every call. Errors can be
// injected per domain.
type RecordingSink struct {
	mu     sync.Mutex
	calls  []SinkCall
	Errors map[string]error

	Weather       [][]model.WeatherRow
	Market        [][]model.MarketRow
	Environmental []model.EnvironmentalRow
	Satellite     []model.SatelliteRow

	notify chan struct{}
}

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{Errors: map[string]error{}, notify: make(chan struct{}, 64)}
}

func (s *RecordingSink) record(domain string, rows int) error {
	s.calls = append(s.calls, SinkCall{Domain: domain, Rows: rows})
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return s.Errors[domain]
}

func (s *RecordingSink) UpsertWeather(_ context.Context, rows []model.WeatherRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Weather = append(s.Weather, rows)
	return s.record("weather", len(rows))
}

func (s *RecordingSink) UpsertMarket(_ context.Context, rows []model.MarketRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Market = append(s.Market, rows)
	return s.record("market", len(rows))
}

func (s *RecordingSink) UpsertEnvironmental(_ context.Context, row model.EnvironmentalRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Environmental = append(s.Environmental, row)
	return s.record("environmental", 1)
}

func (s *RecordingSink) UpsertSatellite(_ context.Context, row model.SatelliteRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Satellite = append(s.Satellite, row)
	return s.record("satellite", 1)
}

// Calls returns a copy of the calls seen so far.
func (s *RecordingSink) Calls() []SinkCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SinkCall(nil), s.calls...)
}

// CallsFor counts the upserts for one domain.
func (s *RecordingSink) CallsFor(domain string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Domain == domain {
			n++
		}
	}
	return n
}

var _ model.RecordSink = (*RecordingSink)(nil)
