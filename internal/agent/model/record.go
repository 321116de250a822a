package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// SourceKind names one of the four data-fetch domains.
type SourceKind string

const (
	KindWeather   SourceKind = "weather"
	KindSatellite SourceKind = "satellite"
	KindMarket    SourceKind = "market"
	KindSoil      SourceKind = "soil"
)

// SourceKinds lists every kind in a stable order.
var SourceKinds = []SourceKind{KindWeather, KindSatellite, KindMarket, KindSoil}

// CurrentSchemaVersion is stamped on every envelope this build publishes.
// Record payloads only ever gain fields, so readers accept any version.
const CurrentSchemaVersion = 2

// ParseSourceKind validates a kind name coming from config or the wire.
func ParseSourceKind(v string) (SourceKind, error) {
	for _, k := range SourceKinds {
		if string(k) == v {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown source kind %q", v)
}

// Decode lets envconfig populate a SourceKind field.
func (k *SourceKind) Decode(value string) error {
	parsed, err := ParseSourceKind(value)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Record is the closed set of payloads a Source Agent can produce.
type Record interface {
	Kind() SourceKind
	isRecord()
}

// ================ Weather ================

// DailyWeather is one forecast day. Pointer fields are optional on the wire.
type DailyWeather struct {
	Date                string   `json:"date"`
	WeatherCode         *int     `json:"weather_code,omitempty"`
	TemperatureHigh     *float64 `json:"temperature_high,omitempty"`
	TemperatureLow      *float64 `json:"temperature_low,omitempty"`
	TemperatureMean     *float64 `json:"temperature_mean,omitempty"`
	PrecipitationChance *float64 `json:"precipitation_chance,omitempty"`
	PrecipitationSum    *float64 `json:"precipitation_sum,omitempty"`
	WindSpeedMax        *float64 `json:"wind_speed_max,omitempty"`
	WindGustsMax        *float64 `json:"wind_gusts_max,omitempty"`
	WindDirection       *string  `json:"wind_direction,omitempty"`
	HumidityMean        *float64 `json:"humidity_mean,omitempty"`
	Evapotranspiration  *float64 `json:"evapotranspiration,omitempty"`
	SunshineDuration    *float64 `json:"sunshine_duration,omitempty"`
	DewPoint            *float64 `json:"dew_point,omitempty"`
	UVIndex             *float64 `json:"uv_index,omitempty"`
}

type WeatherRecord struct {
	CurrentHumidity      *float64       `json:"current_humidity,omitempty"`
	CurrentWindSpeed     *float64       `json:"current_wind_speed,omitempty"`
	CurrentWindDirection string         `json:"current_wind_direction,omitempty"`
	CurrentCondition     string         `json:"current_condition,omitempty"`
	DailyForecast        []DailyWeather `json:"daily_forecast"`
}

func (WeatherRecord) Kind() SourceKind { return KindWeather }
func (WeatherRecord) isRecord()        {}

// ================ Satellite ================

// IndexStats summarises one spectral index over the farm polygon.
type IndexStats struct {
	Mean *float64 `json:"mean,omitempty"`
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
}

type SatelliteRecord struct {
	Status        string     `json:"status"`
	CapturedAt    string     `json:"captured_at,omitempty"`
	NDVI          IndexStats `json:"ndvi"`
	NDWI          IndexStats `json:"ndwi"`
	CloudCoverPct *float64   `json:"cloud_cover_pct,omitempty"`
	NDVIImageURL  string     `json:"ndvi_image_url,omitempty"`
	NDWIImageURL  string     `json:"ndwi_image_url,omitempty"`
}

func (SatelliteRecord) Kind() SourceKind { return KindSatellite }
func (SatelliteRecord) isRecord()        {}

// ================ Market ================

type PricePoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

type MarketRecord struct {
	CropName     string       `json:"crop_name"`
	Unit         string       `json:"unit"`
	PriceRecords []PricePoint `json:"price_records"`
}

func (MarketRecord) Kind() SourceKind { return KindMarket }
func (MarketRecord) isRecord()        {}

// ================ Soil ================

type SoilRecord struct {
	PH              *float64 `json:"ph,omitempty"`
	Moisture        *float64 `json:"moisture,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	OrganicMatter   *float64 `json:"organic_matter,omitempty"`
	Nitrogen        *float64 `json:"nitrogen,omitempty"`
	Phosphorus      *float64 `json:"phosphorus,omitempty"`
	Potassium       *float64 `json:"potassium,omitempty"`
	Summary         string   `json:"summary,omitempty"`
	MeasurementDate string   `json:"measurement_date,omitempty"`
}

func (SoilRecord) Kind() SourceKind { return KindSoil }
func (SoilRecord) isRecord()        {}

// ================ Wire ================

// Envelope carries one record between a Source Agent and the coordinator.
type Envelope struct {
	ID            string          `json:"id"`
	Kind          SourceKind      `json:"kind"`
	SchemaVersion int             `json:"schema_version"`
	Sender        string          `json:"sender"`
	FarmID        string          `json:"farm_id,omitempty"`
	SentAt        time.Time       `json:"sent_at"`
	Payload       json.RawMessage `json:"payload"`
}

// AgentRequest asks one Source Agent for a fresh record.
type AgentRequest struct {
	ID        string     `json:"id"`
	Kind      SourceKind `json:"kind"`
	FarmID    string     `json:"farm_id,omitempty"`
	Latitude  float64    `json:"latitude,omitempty"`
	Longitude float64    `json:"longitude,omitempty"`
	CropType  string     `json:"crop_type,omitempty"`
}

// Float returns a pointer to v, for building optional fields.
func Float(v float64) *float64 { return &v }
