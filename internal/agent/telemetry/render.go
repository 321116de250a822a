package telemetry

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/farmsense/server/internal/agent/model"
)

const (
	Header = "=== REAL-TIME PERSONALIZED FARM DATA ==="
	Footer = "=== END REAL-TIME DATA ==="

	NoWeather       = "No weather data available."
	NoMarket        = "No market data available."
	NoEnvironmental = "No environmental data available."
	NoSatellite     = "No satellite data available."

	na = "N/A"
)

// Render formats a snapshot. It is pure: the same snapshot always yields the
// same text. Sections come in a fixed order and each section sorts its own
// copy of the rows, so callers need not pre-sort.
func Render(s model.TelemetrySnapshot) string {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteString("\n\n")
	renderWeather(&b, s.Weather)
	renderMarket(&b, s.Market)
	renderEnvironmental(&b, s.Environmental)
	renderSatellite(&b, s.Satellite)
	b.WriteString(Footer)
	b.WriteString("\n")
	return b.String()
}

func renderWeather(b *strings.Builder, rows []model.WeatherRow) {
	if len(rows) == 0 {
		fmt.Fprintf(b, "--- Weather Forecast ---\n%s\n\n", NoWeather)
		return
	}
	rows = slices.Clone(rows)
	slices.SortStableFunc(rows, func(a, c model.WeatherRow) int { return a.Date.Compare(c.Date) })
	if len(rows) > WeatherDays {
		rows = rows[:WeatherDays]
	}

	fmt.Fprintf(b, "--- Weather Forecast (Next %d Days) ---\n", WeatherDays)
	for _, d := range rows {
		fmt.Fprintf(b, "Date: %s\n", day(d.Date))
		fmt.Fprintf(b, "  - Temperature: %s to %s (mean %s)\n",
			num(d.TemperatureLow, "°F"), num(d.TemperatureHigh, "°F"), num(d.TemperatureMean, "°F"))
		fmt.Fprintf(b, "  - Precipitation: %s chance, %s\n", num(d.PrecipitationChance, "%"), num(d.PrecipitationSum, " mm"))
		fmt.Fprintf(b, "  - Wind: %s max, gusts %s, from %s\n",
			num(d.WindSpeedMax, " mph"), num(d.WindGustsMax, " mph"), str(d.WindDirection))
		fmt.Fprintf(b, "  - Humidity: %s\n", num(d.HumidityMean, "%"))
		fmt.Fprintf(b, "  - Evapotranspiration: %s\n", num(d.Evapotranspiration, " mm"))
		fmt.Fprintf(b, "  - Sunshine: %s\n", num(d.SunshineDuration, " h"))
		fmt.Fprintf(b, "  - Dew Point: %s\n", num(d.DewPoint, "°F"))
		fmt.Fprintf(b, "  - UV Index: %s\n\n", num(d.UVIndex, ""))
	}
}

func renderMarket(b *strings.Builder, rows []model.MarketRow) {
	if len(rows) == 0 {
		fmt.Fprintf(b, "--- Market Prices ---\n%s\n\n", NoMarket)
		return
	}

	var order []string
	byCrop := map[string][]model.MarketRow{}
	for _, r := range rows {
		if _, ok := byCrop[r.CropName]; !ok {
			order = append(order, r.CropName)
		}
		byCrop[r.CropName] = append(byCrop[r.CropName], r)
	}

	title := cases.Title(language.English)
	b.WriteString("--- Market Prices ---\n")
	for _, crop := range order {
		prices := byCrop[crop]
		slices.SortStableFunc(prices, func(a, c model.MarketRow) int { return a.Date.Compare(c.Date) })
		name := crop
		if name == "" {
			name = "Unknown"
		}
		fmt.Fprintf(b, "\n%s (%s):\n", title.String(name), str(prices[0].Unit))
		if len(prices) > MarketRowsPerCrop {
			prices = prices[:MarketRowsPerCrop]
		}
		for _, p := range prices {
			fmt.Fprintf(b, "  - %s: %s\n", day(p.Date), money(p.Price))
		}
	}
	b.WriteString("\n")
}

func renderEnvironmental(b *strings.Builder, rows []model.EnvironmentalRow) {
	if len(rows) == 0 {
		fmt.Fprintf(b, "--- Soil & Environmental Readings ---\n%s\n\n", NoEnvironmental)
		return
	}
	rows = slices.Clone(rows)
	slices.SortStableFunc(rows, func(a, c model.EnvironmentalRow) int { return c.Date.Compare(a.Date) })
	if len(rows) > EnvironmentalRenderLimit {
		rows = rows[:EnvironmentalRenderLimit]
	}

	b.WriteString("--- Soil & Environmental Readings ---\n")
	for _, r := range rows {
		fmt.Fprintf(b, "Date: %s (farm %s)\n", day(r.Date), cmp.Or(r.FarmID, na))
		fmt.Fprintf(b, "  - Soil pH: %s\n", num(r.SoilPH, ""))
		fmt.Fprintf(b, "  - Soil Moisture: %s\n", num(r.SoilMoisture, "%"))
		fmt.Fprintf(b, "  - Soil Temperature: %s\n", num(r.SoilTemp, "°C"))
		fmt.Fprintf(b, "  - Organic Matter: %s\n", num(r.OrganicMatter, "%"))
		fmt.Fprintf(b, "  - Nitrogen: %s\n", num(r.Nitrogen, " ppm"))
		fmt.Fprintf(b, "  - Phosphorus: %s\n", num(r.Phosphorus, " ppm"))
		fmt.Fprintf(b, "  - Potassium: %s\n", num(r.Potassium, " ppm"))
		fmt.Fprintf(b, "  - Summary: %s\n\n", str(r.Summary))
	}
}

func renderSatellite(b *strings.Builder, rows []model.SatelliteRow) {
	if len(rows) == 0 {
		fmt.Fprintf(b, "--- Satellite Crop Health ---\n%s\n\n", NoSatellite)
		return
	}
	rows = slices.Clone(rows)
	slices.SortStableFunc(rows, func(a, c model.SatelliteRow) int { return c.CreatedAt.Compare(a.CreatedAt) })
	if len(rows) > SatelliteLimit {
		rows = rows[:SatelliteLimit]
	}

	b.WriteString("--- Satellite Crop Health ---\n")
	for _, r := range rows {
		fmt.Fprintf(b, "Captured: %s\n", stamp(r.CreatedAt))
		fmt.Fprintf(b, "  - Status: %s\n", str(r.Status))
		fmt.Fprintf(b, "  - NDVI (vegetation): mean %s, min %s, max %s\n", num(r.NDVIMean, ""), num(r.NDVIMin, ""), num(r.NDVIMax, ""))
		fmt.Fprintf(b, "  - NDWI (water): mean %s, min %s, max %s\n", num(r.NDWIMean, ""), num(r.NDWIMin, ""), num(r.NDWIMax, ""))
		fmt.Fprintf(b, "  - Cloud Cover: %s\n\n", num(r.CloudCoverPct, "%"))
	}
}

func num(v *float64, unit string) string {
	if v == nil {
		return na
	}
	return strconv.FormatFloat(*v, 'f', -1, 64) + unit
}

func money(v *float64) string {
	if v == nil {
		return na
	}
	return "$" + strconv.FormatFloat(*v, 'f', 2, 64)
}

func str(v *string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return na
	}
	return *v
}

func day(t time.Time) string {
	if t.IsZero() {
		return na
	}
	return t.Format(time.DateOnly)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return na
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}
