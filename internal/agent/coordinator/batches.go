package coordinator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/farmsense/server/internal/agent/model"
	logx "github.com/farmsense/server/pkg/logger"
)

// satelliteNamespace scopes the deterministic satellite row ids.
var satelliteNamespace = uuid.MustParse("6f1c3a0e-2b7d-4c5e-9a41-0d8e5b2f7c19")

// SatelliteRowID is the internal key of a farm's satellite row. It is stable
// so each commit updates the same row in place.
func SatelliteRowID(farmID string) string {
	return uuid.NewSHA1(satelliteNamespace, []byte(farmID)).String()
}

// Batch is the set of rows one commit writes, one group per domain.
type Batch struct {
	Kinds         []model.SourceKind
	Weather       []model.WeatherRow
	Market        []model.MarketRow
	Environmental *model.EnvironmentalRow
	Satellite     *model.SatelliteRow
}

// BuildBatch converts the populated records into persistence rows. Rows whose
// dates cannot be parsed are skipped with a warning rather than failing the
// whole commit.
func BuildBatch(farmID string, records map[model.SourceKind]model.Record, now time.Time) Batch {
	b := Batch{}
	for _, kind := range model.SourceKinds {
		rec, ok := records[kind]
		if !ok {
			continue
		}
		b.Kinds = append(b.Kinds, kind)
		switch r := rec.(type) {
		case model.WeatherRecord:
			b.Weather = weatherRows(farmID, r)
		case model.MarketRecord:
			b.Market = marketRows(r)
		case model.SoilRecord:
			row := environmentalRow(farmID, r, now)
			b.Environmental = &row
		case model.SatelliteRecord:
			row := satelliteRow(farmID, r, now)
			b.Satellite = &row
		}
	}
	return b
}

func weatherRows(farmID string, r model.WeatherRecord) []model.WeatherRow {
	rows := make([]model.WeatherRow, 0, len(r.DailyForecast))
	for _, day := range r.DailyForecast {
		date, err := parseDate(day.Date)
		if err != nil {
			logx.Warn().Err(err).Str("domain", "weather").Msg("skipping forecast day")
			continue
		}
		var code *int32
		if day.WeatherCode != nil {
			c := int32(*day.WeatherCode)
			code = &c
		}
		rows = append(rows, model.WeatherRow{
			FarmID:              farmID,
			Date:                date,
			WeatherCode:         code,
			TemperatureHigh:     day.TemperatureHigh,
			TemperatureLow:      day.TemperatureLow,
			TemperatureMean:     day.TemperatureMean,
			PrecipitationChance: day.PrecipitationChance,
			PrecipitationSum:    day.PrecipitationSum,
			WindSpeedMax:        day.WindSpeedMax,
			WindGustsMax:        day.WindGustsMax,
			WindDirection:       day.WindDirection,
			HumidityMean:        day.HumidityMean,
			Evapotranspiration:  day.Evapotranspiration,
			SunshineDuration:    day.SunshineDuration,
			DewPoint:            day.DewPoint,
			UVIndex:             day.UVIndex,
		})
	}
	return rows
}

func marketRows(r model.MarketRecord) []model.MarketRow {
	rows := make([]model.MarketRow, 0, len(r.PriceRecords))
	unit := optString(r.Unit)
	for _, p := range r.PriceRecords {
		date, err := parseDate(p.Date)
		if err != nil {
			logx.Warn().Err(err).Str("domain", "market").Str("crop", r.CropName).Msg("skipping price point")
			continue
		}
		price := p.Price
		rows = append(rows, model.MarketRow{
			Date:     date,
			CropName: r.CropName,
			Unit:     unit,
			Price:    &price,
		})
	}
	return rows
}

func environmentalRow(farmID string, r model.SoilRecord, now time.Time) model.EnvironmentalRow {
	date := now.UTC()
	if r.MeasurementDate != "" {
		if d, err := parseDate(r.MeasurementDate); err == nil {
			date = d
		}
	}
	return model.EnvironmentalRow{
		FarmID:        farmID,
		Date:          date,
		SoilPH:        r.PH,
		SoilMoisture:  r.Moisture,
		SoilTemp:      r.Temperature,
		OrganicMatter: r.OrganicMatter,
		Nitrogen:      r.Nitrogen,
		Phosphorus:    r.Phosphorus,
		Potassium:     r.Potassium,
		Summary:       optString(r.Summary),
	}
}

func satelliteRow(farmID string, r model.SatelliteRecord, now time.Time) model.SatelliteRow {
	created := now.UTC()
	if r.CapturedAt != "" {
		if t, err := time.Parse(time.RFC3339, r.CapturedAt); err == nil {
			created = t.UTC()
		}
	}
	return model.SatelliteRow{
		ID:            SatelliteRowID(farmID),
		FarmID:        farmID,
		Status:        optString(r.Status),
		NDVIMean:      r.NDVI.Mean,
		NDVIMin:       r.NDVI.Min,
		NDVIMax:       r.NDVI.Max,
		NDWIMean:      r.NDWI.Mean,
		NDWIMin:       r.NDWI.Min,
		NDWIMax:       r.NDWI.Max,
		CloudCoverPct: r.CloudCoverPct,
		NDVIImageURL:  optString(r.NDVIImageURL),
		NDWIImageURL:  optString(r.NDWIImageURL),
		CreatedAt:     created,
	}
}

func parseDate(v string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", v, err)
	}
	return d, nil
}

func optString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
