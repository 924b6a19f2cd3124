package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(ctx context.Context, connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &DB{db}, nil
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(ctx context.Context, migrationsDir string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		logger.Info("running migration", "file", filename)

		content, err := os.ReadFile(filepath.Join(migrationsDir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	logger.Info("migrations completed", "count", len(sqlFiles))
	return nil
}

// InsertReading appends a raw reading
func (db *DB) InsertReading(ctx context.Context, r *Reading) error {
	query := `
		INSERT INTO readings (
			zone, timestamp, pm2_5, pm10, o3, co, so2, no2, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	return db.QueryRowContext(ctx,
		query,
		r.Zone,
		r.Timestamp,
		r.PM25,
		r.PM10,
		r.O3,
		r.CO,
		r.SO2,
		r.NO2,
		r.ReceivedAt,
	).Scan(&r.ID)
}

// QueryReadings returns readings with start <= timestamp <= end in arrival order
func (db *DB) QueryReadings(ctx context.Context, start, end time.Time) ([]Reading, error) {
	query := `
		SELECT id, zone, timestamp, pm2_5, pm10, o3, co, so2, no2, received_at
		FROM readings
		WHERE timestamp >= $1 AND timestamp <= $2
		ORDER BY id
	`

	rows, err := db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		var r Reading
		var pm25, pm10, o3, co, so2, no2 sql.NullFloat64
		if err := rows.Scan(
			&r.ID,
			&r.Zone,
			&r.Timestamp,
			&pm25,
			&pm10,
			&o3,
			&co,
			&so2,
			&no2,
			&r.ReceivedAt,
		); err != nil {
			return nil, err
		}
		r.PM25 = nullableFloat(pm25)
		r.PM10 = nullableFloat(pm10)
		r.O3 = nullableFloat(o3)
		r.CO = nullableFloat(co)
		r.SO2 = nullableFloat(so2)
		r.NO2 = nullableFloat(no2)
		readings = append(readings, r)
	}

	return readings, rows.Err()
}

// InsertAggregate appends an aggregate record
func (db *DB) InsertAggregate(ctx context.Context, rec *AggregateRecord) error {
	query := `
		INSERT INTO aqi_aggregates (
			interval_start, interval_end, pm2_5_avg, pm10_avg, aqi,
			aqi_pm25, aqi_pm10, aqi_o3, aqi_co, aqi_so2, aqi_no2, pollutant
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`

	return db.QueryRowContext(ctx,
		query,
		rec.IntervalStart,
		rec.IntervalEnd,
		rec.PM25Avg,
		rec.PM10Avg,
		rec.AQI,
		rec.AQIPM25,
		rec.AQIPM10,
		rec.AQIO3,
		rec.AQICO,
		rec.AQISO2,
		rec.AQINO2,
		rec.Pollutant,
	).Scan(&rec.ID, &rec.CreatedAt)
}

const aggregateColumns = `
	id, interval_start, interval_end, pm2_5_avg, pm10_avg, aqi,
	aqi_pm25, aqi_pm10, aqi_o3, aqi_co, aqi_so2, aqi_no2, pollutant, created_at
`

// QueryAggregates returns records newest first, limited to
// interval_start >= startDate when startDate is set
func (db *DB) QueryAggregates(ctx context.Context, startDate *time.Time) ([]AggregateRecord, error) {
	query := `SELECT ` + aggregateColumns + `
		FROM aqi_aggregates
		WHERE $1::timestamptz IS NULL OR interval_start >= $1
		ORDER BY interval_start DESC, id DESC
	`

	var since sql.NullTime
	if startDate != nil {
		since = sql.NullTime{Time: *startDate, Valid: true}
	}

	rows, err := db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []AggregateRecord
	for rows.Next() {
		var rec AggregateRecord
		if err := scanAggregate(rows, &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// LatestAggregate retrieves the record with the greatest interval_start
func (db *DB) LatestAggregate(ctx context.Context) (*AggregateRecord, error) {
	query := `SELECT ` + aggregateColumns + `
		FROM aqi_aggregates
		ORDER BY interval_start DESC, id DESC
		LIMIT 1
	`
	return db.queryOneAggregate(ctx, query)
}

// LatestIndices retrieves the index fields of the latest record
func (db *DB) LatestIndices(ctx context.Context) (*IndexSnapshot, error) {
	query := `
		SELECT interval_start, aqi, aqi_pm25, aqi_pm10, aqi_o3, aqi_co, aqi_so2, aqi_no2, pollutant
		FROM aqi_aggregates
		ORDER BY interval_start DESC, id DESC
		LIMIT 1
	`

	var s IndexSnapshot
	err := db.QueryRowContext(ctx, query).Scan(
		&s.IntervalStart,
		&s.AQI,
		&s.AQIPM25,
		&s.AQIPM10,
		&s.AQIO3,
		&s.AQICO,
		&s.AQISO2,
		&s.AQINO2,
		&s.Pollutant,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// HighestAggregate retrieves the record with the largest aqi, most recent first on ties
func (db *DB) HighestAggregate(ctx context.Context) (*AggregateRecord, error) {
	query := `SELECT ` + aggregateColumns + `
		FROM aqi_aggregates
		ORDER BY aqi DESC, interval_start DESC, id DESC
		LIMIT 1
	`
	return db.queryOneAggregate(ctx, query)
}

func (db *DB) queryOneAggregate(ctx context.Context, query string) (*AggregateRecord, error) {
	var rec AggregateRecord
	err := scanAggregate(db.QueryRowContext(ctx, query), &rec)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAggregate(s scanner, rec *AggregateRecord) error {
	return s.Scan(
		&rec.ID,
		&rec.IntervalStart,
		&rec.IntervalEnd,
		&rec.PM25Avg,
		&rec.PM10Avg,
		&rec.AQI,
		&rec.AQIPM25,
		&rec.AQIPM10,
		&rec.AQIO3,
		&rec.AQICO,
		&rec.AQISO2,
		&rec.AQINO2,
		&rec.Pollutant,
		&rec.CreatedAt,
	)
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
