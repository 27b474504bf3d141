package db

import (
	"context"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/suncheck/suncheck/internal/models"
)

// Store wraps database access for persisted analyses.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by a pgx pool and ensures the schema exists.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS analyses (
    id                BIGSERIAL PRIMARY KEY,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    lat               DOUBLE PRECISION NOT NULL,
    lng               DOUBLE PRECISION NOT NULL,
    solar_irradiance  DOUBLE PRECISION,
    wind_speed        DOUBLE PRECISION,
    elevation_m       DOUBLE PRECISION,
    score             INTEGER NOT NULL,
    grade             VARCHAR(4) NOT NULL,
    solar_score       DOUBLE PRECISION,
    wind_score        DOUBLE PRECISION,
    elevation_score   DOUBLE PRECISION,
    annual_energy_kwh DOUBLE PRECISION,
    annual_savings    DOUBLE PRECISION,
    payback_years     DOUBLE PRECISION,
    lifetime_profit   DOUBLE PRECISION,
    ai_summary        TEXT,
    ai_provider       VARCHAR(50)
);
CREATE INDEX IF NOT EXISTS analyses_created_at_idx ON analyses (created_at);
`

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

const appendSQL = `
INSERT INTO analyses (
    lat, lng, solar_irradiance, wind_speed, elevation_m,
    score, grade, solar_score, wind_score, elevation_score,
    annual_energy_kwh, annual_savings, payback_years, lifetime_profit,
    ai_summary, ai_provider
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
RETURNING id, created_at
`

// Append persists one analysis record and returns its assigned id.
func (s *Store) Append(ctx context.Context, r models.AnalysisRecord) (int64, error) {
	// Infinite payback is stored as NULL; SQL doubles cannot carry Inf.
	var payback *float64
	if r.PaybackYears.IsFinite() {
		v := float64(r.PaybackYears)
		payback = &v
	}

	var id int64
	var createdAt time.Time
	err := s.pool.QueryRow(ctx, appendSQL,
		r.Lat, r.Lng, r.SolarIrradiance, r.WindSpeed, r.ElevationM,
		r.Score, r.Grade, r.SolarScore, r.WindScore, r.ElevationScore,
		r.AnnualEnergyKWH, r.AnnualSavings, payback, r.LifetimeProfit,
		r.AISummary, r.AIProvider,
	).Scan(&id, &createdAt)
	if err != nil {
		return 0, err
	}
	return id, nil
}

const replaySQL = `
SELECT id, created_at, lat, lng, solar_irradiance, wind_speed, elevation_m,
       score, grade, solar_score, wind_score, elevation_score,
       annual_energy_kwh, annual_savings, payback_years, lifetime_profit,
       ai_summary, ai_provider
FROM analyses
WHERE created_at >= $1
ORDER BY created_at ASC
`

// Replay returns records created at or after since, oldest first. The
// calibrator warm-up depends on the ascending order.
func (s *Store) Replay(ctx context.Context, since time.Time) ([]models.AnalysisRecord, error) {
	rows, err := s.pool.Query(ctx, replaySQL, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

const recentSQL = `
SELECT id, created_at, lat, lng, solar_irradiance, wind_speed, elevation_m,
       score, grade, solar_score, wind_score, elevation_score,
       annual_energy_kwh, annual_savings, payback_years, lifetime_profit,
       ai_summary, ai_provider
FROM analyses
ORDER BY created_at DESC
LIMIT $1
`

// Recent returns the most recent analyses, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	rows, err := s.pool.Query(ctx, recentSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRecords(rows pgxRows) ([]models.AnalysisRecord, error) {
	records := make([]models.AnalysisRecord, 0)
	for rows.Next() {
		var (
			r       models.AnalysisRecord
			payback *float64
		)
		if err := rows.Scan(
			&r.ID, &r.CreatedAt, &r.Lat, &r.Lng,
			&r.SolarIrradiance, &r.WindSpeed, &r.ElevationM,
			&r.Score, &r.Grade,
			&r.SolarScore, &r.WindScore, &r.ElevationScore,
			&r.AnnualEnergyKWH, &r.AnnualSavings, &payback, &r.LifetimeProfit,
			&r.AISummary, &r.AIProvider,
		); err != nil {
			return nil, err
		}
		if payback != nil {
			r.PaybackYears = models.Years(*payback)
		} else {
			r.PaybackYears = models.Years(math.Inf(1))
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
