package sources

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/farmsense/server/internal/agent/model"
)

const forecastDays = 7

// StaticFetchers returns fixture fetchers for every kind. They return fixed
// readings so the pipeline can run without provider credentials.
func StaticFetchers(now func() time.Time) map[model.SourceKind]Fetcher {
	if now == nil {
		now = time.Now
	}
	return map[model.SourceKind]Fetcher{
		model.KindWeather:   StaticWeather{Now: now},
		model.KindSatellite: StaticSatellite{Now: now},
		model.KindMarket:    StaticMarket{Now: now},
		model.KindSoil:      StaticSoil{Now: now},
	}
}

// StaticWeather returns a seven day forecast starting today.
type StaticWeather struct {
	Now func() time.Time
}

func (s StaticWeather) Fetch(_ context.Context, _ model.AgentRequest) (model.Record, error) {
	start := s.Now().UTC().Truncate(24 * time.Hour)
	days := make([]model.DailyWeather, 0, forecastDays)
	for i := range forecastDays {
		// small deterministic swing so the days are distinguishable
		swing := float64(i%3) - 1
		code := 2
		dir := "NW"
		days = append(days, model.DailyWeather{
			Date:                start.AddDate(0, 0, i).Format(time.DateOnly),
			WeatherCode:         &code,
			TemperatureHigh:     model.Float(72 + swing*2),
			TemperatureLow:      model.Float(55 + swing),
			TemperatureMean:     model.Float(63.5 + swing*1.5),
			PrecipitationChance: model.Float(20 + float64(i)*5),
			PrecipitationSum:    model.Float(round(0.05*float64(i), 2)),
			WindSpeedMax:        model.Float(7.5),
			WindGustsMax:        model.Float(14),
			WindDirection:       &dir,
			HumidityMean:        model.Float(65),
			Evapotranspiration:  model.Float(0.15),
			SunshineDuration:    model.Float(8.5),
			DewPoint:            model.Float(48),
			UVIndex:             model.Float(6),
		})
	}
	return model.WeatherRecord{
		CurrentHumidity:      model.Float(65),
		CurrentWindSpeed:     model.Float(7.5),
		CurrentWindDirection: "NW",
		CurrentCondition:     "Partly Cloudy",
		DailyForecast:        days,
	}, nil
}

type StaticSatellite struct {
	Now func() time.Time
}

func (s StaticSatellite) Fetch(_ context.Context, _ model.AgentRequest) (model.Record, error) {
	return model.SatelliteRecord{
		Status:        "satellite data connected",
		CapturedAt:    s.Now().UTC().Format(time.RFC3339),
		NDVI:          model.IndexStats{Mean: model.Float(0.62), Min: model.Float(0.18), Max: model.Float(0.87)},
		NDWI:          model.IndexStats{Mean: model.Float(0.21), Min: model.Float(-0.12), Max: model.Float(0.44)},
		CloudCoverPct: model.Float(12),
	}, nil
}

// StaticMarket returns a week of daily prices for the requested crop.
type StaticMarket struct {
	Now func() time.Time
}

func (s StaticMarket) Fetch(_ context.Context, req model.AgentRequest) (model.Record, error) {
	if req.CropType == "" {
		return nil, fmt.Errorf("market request has no crop_type")
	}
	end := s.Now().UTC().Truncate(24 * time.Hour)
	points := make([]model.PricePoint, 0, forecastDays)
	for i := forecastDays - 1; i >= 0; i-- {
		points = append(points, model.PricePoint{
			Date:  end.AddDate(0, 0, -i).Format(time.DateOnly),
			Price: round(250-float64(i)*1.25, 2),
		})
	}
	return model.MarketRecord{CropName: req.CropType, Unit: "ton", PriceRecords: points}, nil
}

type StaticSoil struct {
	Now func() time.Time
}

func (s StaticSoil) Fetch(_ context.Context, req model.AgentRequest) (model.Record, error) {
	return model.SoilRecord{
		PH:            model.Float(6.5),
		Moisture:      model.Float(28),
		Temperature:   model.Float(16.5),
		OrganicMatter: model.Float(4.2),
		Nitrogen:      model.Float(42),
		Phosphorus:    model.Float(31),
		Potassium:     model.Float(180),
		Summary: fmt.Sprintf("Soil at location (%g, %g) has pH 6.5, high organic content, and optimal moisture levels.",
			req.Latitude, req.Longitude),
		MeasurementDate: s.Now().UTC().Format(time.DateOnly),
	}, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
