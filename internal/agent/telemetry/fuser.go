// Package telemetry reads bounded windows of live farm data from the
// relational store and renders them into the text block the response model
// sees.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/farmsense/server/internal/agent/model"
	"github.com/farmsense/server/internal/metrics"
	logx "github.com/farmsense/server/pkg/logger"
)

const (
	WeatherDays              = 7
	EnvironmentalFetchLimit  = 10
	EnvironmentalRenderLimit = 5
	SatelliteLimit           = 5
	MarketRowsPerCrop        = 10
)

type Fuser struct {
	store   model.TelemetryStore
	metrics *metrics.Metrics
}

func NewFuser(store model.TelemetryStore, m *metrics.Metrics) *Fuser {
	return &Fuser{store: store, metrics: m}
}

// Fetch reads the four domains concurrently. A failing domain degrades to an
// empty slice; the snapshot is always usable and the returned error joins the
// per-domain failures for callers that care.
func (f *Fuser) Fetch(ctx context.Context, crops []string) (model.TelemetrySnapshot, error) {
	snap := model.TelemetrySnapshot{
		Weather:       []model.WeatherRow{},
		Market:        []model.MarketRow{},
		Environmental: []model.EnvironmentalRow{},
		Satellite:     []model.SatelliteRow{},
	}
	var errWeather, errMarket, errEnv, errSat error

	// A plain Group: one domain failing must not cancel its siblings.
	var g errgroup.Group
	g.Go(func() error {
		rows, err := f.store.RecentWeather(ctx, WeatherDays)
		if errWeather = f.degrade("weather", err); errWeather == nil && rows != nil {
			snap.Weather = rows
		}
		return nil
	})
	g.Go(func() error {
		rows, err := f.store.MarketPrices(ctx, crops)
		if errMarket = f.degrade("market", err); errMarket == nil && rows != nil {
			snap.Market = rows
		}
		return nil
	})
	g.Go(func() error {
		rows, err := f.store.RecentEnvironmental(ctx, EnvironmentalFetchLimit)
		if errEnv = f.degrade("environmental", err); errEnv == nil && rows != nil {
			snap.Environmental = rows
		}
		return nil
	})
	g.Go(func() error {
		rows, err := f.store.RecentSatellite(ctx, SatelliteLimit)
		if errSat = f.degrade("satellite", err); errSat == nil && rows != nil {
			snap.Satellite = rows
		}
		return nil
	})
	_ = g.Wait()

	return snap, errors.Join(errWeather, errMarket, errEnv, errSat)
}

// FetchAndRender is the prompt path: errors are already logged, only the text
// matters.
func (f *Fuser) FetchAndRender(ctx context.Context, crops []string) string {
	snap, _ := f.Fetch(ctx, crops)
	return Render(snap)
}

func (f *Fuser) degrade(domain string, err error) error {
	if err == nil {
		return nil
	}
	logx.Error().Err(err).Str("domain", domain).Msg("telemetry fetch failed, rendering domain as empty")
	f.metrics.ObserveTelemetryError(domain)
	return fmt.Errorf("%s: %w", domain, err)
}

// Domains is the number of independently fetched telemetry domains.
const Domains = 4

// FailedDomains counts the domain failures carried by an error from Fetch.
func FailedDomains(err error) int {
	if err == nil {
		return 0
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return len(joined.Unwrap())
	}
	return 1
}
