package model

import (
	"context"
	"time"
)

// WeatherRow is one stored forecast day, keyed by (farm_id, date).
type WeatherRow struct {
	FarmID              string    `json:"farm_id" db:"farm_id"`
	Date                time.Time `json:"date" db:"date"`
	WeatherCode         *int32    `json:"weather_code" db:"weather_code"`
	TemperatureHigh     *float64  `json:"temperature_high" db:"temperature_high"`
	TemperatureLow      *float64  `json:"temperature_low" db:"temperature_low"`
	TemperatureMean     *float64  `json:"temperature_mean" db:"temperature_mean"`
	PrecipitationChance *float64  `json:"precipitation_chance" db:"precipitation_chance"`
	PrecipitationSum    *float64  `json:"precipitation_sum" db:"precipitation_sum"`
	WindSpeedMax        *float64  `json:"wind_speed_max" db:"wind_speed_max"`
	WindGustsMax        *float64  `json:"wind_gusts_max" db:"wind_gusts_max"`
	WindDirection       *string   `json:"wind_direction" db:"wind_direction"`
	HumidityMean        *float64  `json:"humidity_mean" db:"humidity_mean"`
	Evapotranspiration  *float64  `json:"evapotranspiration" db:"evapotranspiration"`
	SunshineDuration    *float64  `json:"sunshine_duration" db:"sunshine_duration"`
	DewPoint            *float64  `json:"dew_point" db:"dew_point"`
	UVIndex             *float64  `json:"uv_index" db:"uv_index"`
}

// MarketRow is one price point, keyed by (date, crop_name).
type MarketRow struct {
	Date     time.Time `json:"date" db:"date"`
	CropName string    `json:"crop_name" db:"crop_name"`
	Unit     *string   `json:"unit" db:"unit"`
	Price    *float64  `json:"price" db:"price"`
}

// EnvironmentalRow is the latest soil reading for a farm, keyed by farm_id.
type EnvironmentalRow struct {
	FarmID        string    `json:"farm_id" db:"farm_id"`
	Date          time.Time `json:"date" db:"date"`
	SoilPH        *float64  `json:"soil_ph" db:"soil_ph"`
	SoilMoisture  *float64  `json:"soil_moisture" db:"soil_moisture"`
	SoilTemp      *float64  `json:"soil_temperature" db:"soil_temperature"`
	OrganicMatter *float64  `json:"organic_matter" db:"organic_matter"`
	Nitrogen      *float64  `json:"nitrogen" db:"nitrogen"`
	Phosphorus    *float64  `json:"phosphorus" db:"phosphorus"`
	Potassium     *float64  `json:"potassium" db:"potassium"`
	Summary       *string   `json:"summary" db:"summary"`
}

// SatelliteRow is one stored imagery analysis, keyed by an internal id and updated in place.
type SatelliteRow struct {
	ID            string    `json:"id" db:"id"`
	FarmID        string    `json:"farm_id" db:"farm_id"`
	Status        *string   `json:"status" db:"status"`
	NDVIMean      *float64  `json:"ndvi_mean" db:"ndvi_mean"`
	NDVIMin       *float64  `json:"ndvi_min" db:"ndvi_min"`
	NDVIMax       *float64  `json:"ndvi_max" db:"ndvi_max"`
	NDWIMean      *float64  `json:"ndwi_mean" db:"ndwi_mean"`
	NDWIMin       *float64  `json:"ndwi_min" db:"ndwi_min"`
	NDWIMax       *float64  `json:"ndwi_max" db:"ndwi_max"`
	CloudCoverPct *float64  `json:"cloud_cover_pct" db:"cloud_cover_pct"`
	NDVIImageURL  *string   `json:"ndvi_image_url" db:"ndvi_image_url"`
	NDWIImageURL  *string   `json:"ndwi_image_url" db:"ndwi_image_url"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// TelemetrySnapshot is the fused, bounded view of live data for one request.
type TelemetrySnapshot struct {
	Weather       []WeatherRow       `json:"weather"`
	Market        []MarketRow        `json:"market"`
	Environmental []EnvironmentalRow `json:"environmental"`
	Satellite     []SatelliteRow     `json:"satellite"`
}

// TelemetryStore reads the relational store for the telemetry fuser and the farm-data API.
// Implementations must be safe for concurrent use.
type TelemetryStore interface {
	// RecentWeather returns up to limit rows ordered by date ascending.
	RecentWeather(ctx context.Context, limit int) ([]WeatherRow, error)
	// MarketPrices returns every price row ordered by date ascending, restricted
	// to crops (case-insensitive) when crops is non-empty.
	MarketPrices(ctx context.Context, crops []string) ([]MarketRow, error)
	// RecentEnvironmental returns up to limit rows ordered by date descending.
	RecentEnvironmental(ctx context.Context, limit int) ([]EnvironmentalRow, error)
	// RecentSatellite returns up to limit rows ordered by created_at descending.
	RecentSatellite(ctx context.Context, limit int) ([]SatelliteRow, error)
	// LatestSatellite returns the newest satellite row or nil.
	LatestSatellite(ctx context.Context) (*SatelliteRow, error)
	// LatestEnvironmental returns the stored row for farmID or nil.
	LatestEnvironmental(ctx context.Context, farmID string) (*EnvironmentalRow, error)
}

// RecordSink receives the coordinator's persistence batches. Each call is one upsert.
type RecordSink interface {
	UpsertWeather(ctx context.Context, rows []WeatherRow) error
	UpsertMarket(ctx context.Context, rows []MarketRow) error
	UpsertEnvironmental(ctx context.Context, row EnvironmentalRow) error
	UpsertSatellite(ctx context.Context, row SatelliteRow) error
}
