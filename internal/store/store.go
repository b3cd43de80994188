// Package store persists driving events and alerts.
//
// Three backends implement Store: Postgres (pgx), an embedded bbolt file, and
// an in-memory store for tests and local runs. Window bounds are inclusive at
// both ends in every backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/PratikDhanave/driving-alerts/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEvent is returned when an event with the same ID was already stored.
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrTimestampOutOfRange is returned for timestamps outside the range of
	// int64 Unix nanoseconds (about 1677 to 2262).
	ErrTimestampOutOfRange = errors.New("timestamp out of range")
)

var (
	minTimestamp = time.Unix(0, math.MinInt64).UTC()
	maxTimestamp = time.Unix(0, math.MaxInt64).UTC()
)

// EventStore is the durable collection of driving events.
type EventStore interface {
	// InsertEvent stores e and returns its ID. A missing ID is generated.
	InsertEvent(ctx context.Context, e models.DrivingEvent) (string, error)

	// CountUnsafeInWindow counts unsafe events of category with start <= ts <= end.
	CountUnsafeInWindow(ctx context.Context, category string, start, end time.Time) (int64, error)
}

// AlertStore is the durable collection of alerts.
type AlertStore interface {
	// InsertAlert stores a and returns its ID. A missing ID is generated.
	InsertAlert(ctx context.Context, a models.Alert) (string, error)

	// ExistsInWindow reports whether an alert of category has start <= ts <= end.
	ExistsInWindow(ctx context.Context, category string, start, end time.Time) (bool, error)

	// FindAlertByID returns ErrNotFound when no alert has the given ID.
	FindAlertByID(ctx context.Context, id string) (*models.Alert, error)
}

// Store is a backend holding both collections.
type Store interface {
	EventStore
	AlertStore
	Ping(ctx context.Context) error
	Close() error
}

func newID() string {
	return uuid.New().String()
}

// checkTimestamp rejects instants every backend cannot order the same way.
func checkTimestamp(ts time.Time) error {
	if ts.Before(minTimestamp) || ts.After(maxTimestamp) {
		return fmt.Errorf("%w: %s", ErrTimestampOutOfRange, ts.UTC().Format(time.RFC3339))
	}
	return nil
}

// withinWindow reports start <= ts <= end.
func withinWindow(ts, start, end time.Time) bool {
	return !ts.Before(start) && !ts.After(end)
}
