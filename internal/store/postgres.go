package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PratikDhanave/driving-alerts/internal/models"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore is the durable persistence layer for events and alerts.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// InsertEvent persists an event. A caller-supplied ID that already exists
// yields ErrDuplicateEvent, which keeps client retries from inflating counts.
func (p *PostgresStore) InsertEvent(ctx context.Context, e models.DrivingEvent) (string, error) {
	if e.LocationType == "" {
		return "", errors.New("locationType required")
	}
	if err := checkTimestamp(e.Timestamp); err != nil {
		return "", err
	}
	if e.ID == "" {
		e.ID = newID()
	}

	// RETURNING only yields a row when inserted; duplicates return no rows.
	var id string
	err := p.pool.QueryRow(ctx, `
		INSERT INTO driving_events(id, ts, is_safe_driving, vehicle_id, location_type)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO NOTHING
		RETURNING id
	`, e.ID, e.Timestamp.UTC(), e.IsSafeDriving, e.VehicleID, e.LocationType).Scan(&id)

	if errors.Is(err, pgx.ErrNoRows) {
		return e.ID, ErrDuplicateEvent
	}
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

// CountUnsafeInWindow counts unsafe events for category in [start,end].
// Both bounds are inclusive so boundary events count.
func (p *PostgresStore) CountUnsafeInWindow(ctx context.Context, category string, start, end time.Time) (int64, error) {
	var count int64
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM driving_events
		WHERE location_type = $1
		  AND NOT is_safe_driving
		  AND ts >= $2
		  AND ts <= $3
	`, category, start.UTC(), end.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unsafe events: %w", err)
	}
	return count, nil
}

// InsertAlert persists an alert and returns its ID.
func (p *PostgresStore) InsertAlert(ctx context.Context, a models.Alert) (string, error) {
	if err := checkTimestamp(a.Timestamp); err != nil {
		return "", err
	}
	if a.ID == "" {
		a.ID = newID()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO alerts(id, ts, location_type)
		VALUES ($1,$2,$3)
	`, a.ID, a.Timestamp.UTC(), a.LocationType)
	if err != nil {
		return "", fmt.Errorf("insert alert: %w", err)
	}
	return a.ID, nil
}

// ExistsInWindow reports whether an alert for category has ts in [start,end].
func (p *PostgresStore) ExistsInWindow(ctx context.Context, category string, start, end time.Time) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM alerts
			WHERE location_type = $1
			  AND ts >= $2
			  AND ts <= $3
		)
	`, category, start.UTC(), end.UTC()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check alert window: %w", err)
	}
	return exists, nil
}

// FindAlertByID loads one alert.
func (p *PostgresStore) FindAlertByID(ctx context.Context, id string) (*models.Alert, error) {
	var a models.Alert
	err := p.pool.QueryRow(ctx, `
		SELECT id, ts, location_type
		FROM alerts
		WHERE id = $1
	`, id).Scan(&a.ID, &a.Timestamp, &a.LocationType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find alert: %w", err)
	}
	a.Timestamp = a.Timestamp.UTC()
	return &a, nil
}
