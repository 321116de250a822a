package telemetry

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmsense/server/internal/agent/model"
)

func date(s string) time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}

func strp(s string) *string { return &s }

func sampleSnapshot() model.TelemetrySnapshot {
	return model.TelemetrySnapshot{
		Weather: []model.WeatherRow{
			{Date: date("2025-10-02"), TemperatureHigh: model.Float(74), TemperatureLow: model.Float(56)},
			{Date: date("2025-10-01"), TemperatureHigh: model.Float(72), TemperatureLow: model.Float(55), WindDirection: strp("NW")},
		},
		Market: []model.MarketRow{
			{Date: date("2025-10-01"), CropName: "winter wheat", Unit: strp("ton"), Price: model.Float(250)},
			{Date: date("2025-10-01"), CropName: "corn", Unit: strp("bushel"), Price: model.Float(4.1)},
			{Date: date("2025-09-30"), CropName: "winter wheat", Unit: strp("ton"), Price: model.Float(248.5)},
		},
		Environmental: []model.EnvironmentalRow{
			{FarmID: "f1", Date: date("2025-09-01"), SoilPH: model.Float(6.2)},
			{FarmID: "f1", Date: date("2025-10-01"), SoilPH: model.Float(6.5)},
		},
		Satellite: []model.SatelliteRow{
			{CreatedAt: time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC), NDVIMean: model.Float(0.4)},
			{CreatedAt: time.Date(2025, 10, 1, 10, 0, 0, 0, time.UTC), NDVIMean: model.Float(0.62)},
		},
	}
}

func TestRender_IsDeterministic(t *testing.T) {
	snap := sampleSnapshot()
	assert.Equal(t, Render(snap), Render(snap))
	// rendering must not reorder the caller's rows
	assert.Equal(t, date("2025-10-02"), snap.Weather[0].Date)
}

func TestRender_EmptySnapshotUsesSentinels(t *testing.T) {
	out := Render(model.TelemetrySnapshot{})
	assert.True(t, strings.HasPrefix(out, Header))
	assert.True(t, strings.HasSuffix(out, Footer+"\n"))
	for _, s := range []string{NoWeather, NoMarket, NoEnvironmental, NoSatellite} {
		assert.Contains(t, out, s)
	}
}

func TestRender_SectionOrder(t *testing.T) {
	out := Render(sampleSnapshot())
	w := strings.Index(out, "--- Weather Forecast")
	m := strings.Index(out, "--- Market Prices")
	e := strings.Index(out, "--- Soil & Environmental Readings")
	s := strings.Index(out, "--- Satellite Crop Health")
	require.True(t, w >= 0 && m >= 0 && e >= 0 && s >= 0)
	assert.True(t, w < m && m < e && e < s)
}

func TestRender_RowOrdering(t *testing.T) {
	out := Render(sampleSnapshot())

	assert.Less(t, strings.Index(out, "Date: 2025-10-01\n"), strings.Index(out, "Date: 2025-10-02\n"),
		"weather ascends by date")
	assert.Less(t, strings.Index(out, "Date: 2025-10-01 (farm f1)"), strings.Index(out, "Date: 2025-09-01 (farm f1)"),
		"environmental descends by date")
	assert.Less(t, strings.Index(out, "Captured: 2025-10-01 10:00 UTC"), strings.Index(out, "Captured: 2025-09-01 10:00 UTC"),
		"satellite descends by capture time")
}

func TestRender_MissingValuesAreNA(t *testing.T) {
	out := Render(sampleSnapshot())
	assert.Contains(t, out, "  - Temperature: 55°F to 72°F (mean N/A)\n")
	assert.Contains(t, out, "  - Wind: N/A max, gusts N/A, from NW\n")
	assert.Contains(t, out, "  - Soil Moisture: N/A\n")
	assert.Contains(t, out, "  - Status: N/A\n")
}

func TestRender_MarketGroupedFirstSeenAndTitleCased(t *testing.T) {
	out := Render(sampleSnapshot())

	wheat := strings.Index(out, "\nWinter Wheat (ton):\n")
	corn := strings.Index(out, "\nCorn (bushel):\n")
	require.GreaterOrEqual(t, wheat, 0)
	require.GreaterOrEqual(t, corn, 0)
	assert.Less(t, wheat, corn, "crops appear in first-seen order")
	assert.Contains(t, out, "Winter Wheat (ton):\n  - 2025-09-30: $248.50\n  - 2025-10-01: $250.00\n")
}

func TestRender_Caps(t *testing.T) {
	var snap model.TelemetrySnapshot
	start := date("2025-01-01")
	for i := range 15 {
		d := start.AddDate(0, 0, i)
		snap.Market = append(snap.Market, model.MarketRow{Date: d, CropName: "wheat", Price: model.Float(float64(i))})
		snap.Environmental = append(snap.Environmental, model.EnvironmentalRow{Date: d})
		snap.Satellite = append(snap.Satellite, model.SatelliteRow{CreatedAt: d})
		snap.Weather = append(snap.Weather, model.WeatherRow{Date: d})
	}
	out := Render(snap)

	assert.Equal(t, MarketRowsPerCrop, strings.Count(out, "  - 2025-01-"))
	assert.Contains(t, out, "Wheat (N/A):", "unit falls back to N/A")
	assert.Equal(t, EnvironmentalRenderLimit, strings.Count(out, "  - Soil pH:"))
	assert.Equal(t, SatelliteLimit, strings.Count(out, "Captured:"))
	assert.Equal(t, WeatherDays, strings.Count(out, "  - UV Index:"))
}
