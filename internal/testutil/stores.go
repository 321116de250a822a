package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/farmsense/server/internal/agent/model"
)

// TelemetryStore is an in-memory model.TelemetryStore. Rows are returned as
// stored, so tests load them already ordered. Errors are injected per method
// name: "weather", "market", "environmental", "satellite".
type TelemetryStore struct {
	mu            sync.Mutex
	Weather       []model.WeatherRow
	Market        []model.MarketRow
	Environmental []model.EnvironmentalRow
	Satellite     []model.SatelliteRow
	Errors        map[string]error
}

func (s *TelemetryStore) err(domain string) error {
	if s.Errors == nil {
		return nil
	}
	return s.Errors[domain]
}

func (s *TelemetryStore) RecentWeather(_ context.Context, limit int) ([]model.WeatherRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("weather"); err != nil {
		return nil, err
	}
	return head(s.Weather, limit), nil
}

func (s *TelemetryStore) MarketPrices(_ context.Context, crops []string) ([]model.MarketRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("market"); err != nil {
		return nil, err
	}
	if len(crops) == 0 {
		return append([]model.MarketRow(nil), s.Market...), nil
	}
	var out []model.MarketRow
	for _, r := range s.Market {
		for _, c := range crops {
			if strings.EqualFold(r.CropName, c) {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func (s *TelemetryStore) RecentEnvironmental(_ context.Context, limit int) ([]model.EnvironmentalRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("environmental"); err != nil {
		return nil, err
	}
	return head(s.Environmental, limit), nil
}

func (s *TelemetryStore) RecentSatellite(_ context.Context, limit int) ([]model.SatelliteRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("satellite"); err != nil {
		return nil, err
	}
	return head(s.Satellite, limit), nil
}

func (s *TelemetryStore) LatestSatellite(_ context.Context) (*model.SatelliteRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("satellite"); err != nil {
		return nil, err
	}
	if len(s.Satellite) == 0 {
		return nil, nil
	}
	row := s.Satellite[0]
	return &row, nil
}

func (s *TelemetryStore) LatestEnvironmental(_ context.Context, farmID string) (*model.EnvironmentalRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.err("environmental"); err != nil {
		return nil, err
	}
	for _, r := range s.Environmental {
		if r.FarmID == farmID {
			row := r
			return &row, nil
		}
	}
	return nil, nil
}

func head[T any](rows []T, limit int) []T {
	if limit >= 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return append([]T(nil), rows...)
}

// DocumentStore answers queries from a fixed table keyed by query text.
// Unknown queries return nothing.
type DocumentStore struct {
	mu      sync.Mutex
	Results map[string][]model.ContextItem
	Errors  map[string]error
	Queries []string
}

func (s *DocumentStore) Query(_ context.Context, text string, limit int) ([]model.ContextItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Queries = append(s.Queries, text)
	if err := s.Errors[text]; err != nil {
		return nil, err
	}
	return head(s.Results[text], limit), nil
}

var (
	_ model.TelemetryStore = (*TelemetryStore)(nil)
	_ model.DocumentStore  = (*DocumentStore)(nil)
)
