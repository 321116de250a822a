// Package repo holds the storage adapters: Postgres for telemetry rows and
// Qdrant for the knowledge base.
package repo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmsense/server/internal/agent/model"
	errx "github.com/farmsense/server/internal/core/error"
	logx "github.com/farmsense/server/pkg/logger"
)

const (
	weatherColumns = `farm_id, date, weather_code, temperature_high, temperature_low, temperature_mean,
		precipitation_chance, precipitation_sum, wind_speed_max, wind_gusts_max, wind_direction,
		humidity_mean, evapotranspiration, sunshine_duration, dew_point, uv_index`

	marketColumns = `date, crop_name, unit, price`

	environmentalColumns = `farm_id, date, soil_ph, soil_moisture, soil_temperature, organic_matter,
		nitrogen, phosphorus, potassium, summary`

	satelliteColumns = `id::text AS id, farm_id, status, ndvi_mean, ndvi_min, ndvi_max, ndwi_mean,
		ndwi_min, ndwi_max, cloud_cover_pct, ndvi_image_url, ndwi_image_url, created_at`
)

// PostgresStore implements model.TelemetryStore and model.RecordSink.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema applies the .sql files of migrations that are not yet recorded
// in schema_migrations, in name order.
func (s *PostgresStore) EnsureSchema(ctx context.Context, migrations fs.FS) error {
	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("load applied migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("load applied migrations: %w", err)
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}

	entries, err := fs.ReadDir(migrations, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") || applied[name] {
			continue
		}
		content, err := fs.ReadFile(migrations, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		logx.Info().Str("file", name).Msg("applying migration")
		if _, err := s.pool.Exec(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING`, name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

// ================ Reads ================

func (s *PostgresStore) RecentWeather(ctx context.Context, limit int) ([]model.WeatherRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+weatherColumns+` FROM weather_data ORDER BY date ASC LIMIT $1`, limit)
	if err != nil {
		return nil, s.fail(err, "weather_data")
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.WeatherRow])
	if err != nil {
		return nil, s.fail(err, "weather_data")
	}
	return out, nil
}

func (s *PostgresStore) MarketPrices(ctx context.Context, crops []string) ([]model.MarketRow, error) {
	lowered := make([]string, 0, len(crops))
	for _, c := range crops {
		if c = strings.TrimSpace(c); c != "" {
			lowered = append(lowered, strings.ToLower(c))
		}
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+marketColumns+` FROM market_prices
		 WHERE cardinality($1::text[]) = 0 OR lower(crop_name) = ANY($1::text[])
		 ORDER BY date ASC, crop_name ASC`, lowered)
	if err != nil {
		return nil, s.fail(err, "market_prices")
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.MarketRow])
	if err != nil {
		return nil, s.fail(err, "market_prices")
	}
	return out, nil
}

func (s *PostgresStore) RecentEnvironmental(ctx context.Context, limit int) ([]model.EnvironmentalRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+environmentalColumns+` FROM environmental_data ORDER BY date DESC LIMIT $1`, limit)
	if err != nil {
		return nil, s.fail(err, "environmental_data")
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.EnvironmentalRow])
	if err != nil {
		return nil, s.fail(err, "environmental_data")
	}
	return out, nil
}

func (s *PostgresStore) RecentSatellite(ctx context.Context, limit int) ([]model.SatelliteRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+satelliteColumns+` FROM satellite_data ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, s.fail(err, "satellite_data")
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.SatelliteRow])
	if err != nil {
		return nil, s.fail(err, "satellite_data")
	}
	return out, nil
}

func (s *PostgresStore) LatestSatellite(ctx context.Context) (*model.SatelliteRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+satelliteColumns+` FROM satellite_data ORDER BY created_at DESC LIMIT 1`)
	if err != nil {
		return nil, s.fail(err, "satellite_data")
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.SatelliteRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.fail(err, "satellite_data")
	}
	return row, nil
}

func (s *PostgresStore) LatestEnvironmental(ctx context.Context, farmID string) (*model.EnvironmentalRow, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+environmentalColumns+` FROM environmental_data WHERE farm_id = $1`, farmID)
	if err != nil {
		return nil, s.fail(err, "environmental_data")
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.EnvironmentalRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.fail(err, "environmental_data")
	}
	return row, nil
}

// ================ Upserts ================

func (s *PostgresStore) UpsertWeather(ctx context.Context, rows []model.WeatherRow) error {
	if len(rows) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, r := range rows {
		b.Queue(`INSERT INTO weather_data (`+weatherColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			ON CONFLICT (farm_id, date) DO UPDATE SET
				weather_code = EXCLUDED.weather_code,
				temperature_high = EXCLUDED.temperature_high,
				temperature_low = EXCLUDED.temperature_low,
				temperature_mean = EXCLUDED.temperature_mean,
				precipitation_chance = EXCLUDED.precipitation_chance,
				precipitation_sum = EXCLUDED.precipitation_sum,
				wind_speed_max = EXCLUDED.wind_speed_max,
				wind_gusts_max = EXCLUDED.wind_gusts_max,
				wind_direction = EXCLUDED.wind_direction,
				humidity_mean = EXCLUDED.humidity_mean,
				evapotranspiration = EXCLUDED.evapotranspiration,
				sunshine_duration = EXCLUDED.sunshine_duration,
				dew_point = EXCLUDED.dew_point,
				uv_index = EXCLUDED.uv_index,
				updated_at = now()`,
			r.FarmID, r.Date, r.WeatherCode, r.TemperatureHigh, r.TemperatureLow, r.TemperatureMean,
			r.PrecipitationChance, r.PrecipitationSum, r.WindSpeedMax, r.WindGustsMax, r.WindDirection,
			r.HumidityMean, r.Evapotranspiration, r.SunshineDuration, r.DewPoint, r.UVIndex)
	}
	return s.sendBatch(ctx, b, "weather_data")
}

func (s *PostgresStore) UpsertMarket(ctx context.Context, rows []model.MarketRow) error {
	if len(rows) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, r := range rows {
		b.Queue(`INSERT INTO market_prices (`+marketColumns+`) VALUES ($1, $2, $3, $4)
			ON CONFLICT (date, crop_name) DO UPDATE SET
				unit = EXCLUDED.unit,
				price = EXCLUDED.price,
				updated_at = now()`,
			r.Date, r.CropName, r.Unit, r.Price)
	}
	return s.sendBatch(ctx, b, "market_prices")
}

func (s *PostgresStore) UpsertEnvironmental(ctx context.Context, r model.EnvironmentalRow) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO environmental_data (`+environmentalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (farm_id) DO UPDATE SET
			date = EXCLUDED.date,
			soil_ph = EXCLUDED.soil_ph,
			soil_moisture = EXCLUDED.soil_moisture,
			soil_temperature = EXCLUDED.soil_temperature,
			organic_matter = EXCLUDED.organic_matter,
			nitrogen = EXCLUDED.nitrogen,
			phosphorus = EXCLUDED.phosphorus,
			potassium = EXCLUDED.potassium,
			summary = EXCLUDED.summary,
			updated_at = now()`,
		r.FarmID, r.Date, r.SoilPH, r.SoilMoisture, r.SoilTemp, r.OrganicMatter,
		r.Nitrogen, r.Phosphorus, r.Potassium, r.Summary)
	if err != nil {
		return s.fail(err, "environmental_data")
	}
	return nil
}

func (s *PostgresStore) UpsertSatellite(ctx context.Context, r model.SatelliteRow) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO satellite_data (id, farm_id, status, ndvi_mean, ndvi_min,
			ndvi_max, ndwi_mean, ndwi_min, ndwi_max, cloud_cover_pct, ndvi_image_url, ndwi_image_url, created_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			ndvi_mean = EXCLUDED.ndvi_mean,
			ndvi_min = EXCLUDED.ndvi_min,
			ndvi_max = EXCLUDED.ndvi_max,
			ndwi_mean = EXCLUDED.ndwi_mean,
			ndwi_min = EXCLUDED.ndwi_min,
			ndwi_max = EXCLUDED.ndwi_max,
			cloud_cover_pct = EXCLUDED.cloud_cover_pct,
			ndvi_image_url = EXCLUDED.ndvi_image_url,
			ndwi_image_url = EXCLUDED.ndwi_image_url,
			created_at = EXCLUDED.created_at`,
		r.ID, r.FarmID, r.Status, r.NDVIMean, r.NDVIMin, r.NDVIMax, r.NDWIMean, r.NDWIMin,
		r.NDWIMax, r.CloudCoverPct, r.NDVIImageURL, r.NDWIImageURL, r.CreatedAt)
	if err != nil {
		return s.fail(err, "satellite_data")
	}
	return nil
}

func (s *PostgresStore) sendBatch(ctx context.Context, b *pgx.Batch, table string) error {
	if err := s.pool.SendBatch(ctx, b).Close(); err != nil {
		return s.fail(err, table)
	}
	return nil
}

func (s *PostgresStore) fail(err error, table string) error {
	logx.Error().Err(err).Str("table", table).Msg("postgres operation failed")
	return errx.WrapPostgres(err)
}

var (
	_ model.TelemetryStore = (*PostgresStore)(nil)
	_ model.RecordSink     = (*PostgresStore)(nil)
)
