package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/PratikDhanave/driving-alerts/internal/models"
)

// MemoryStore keeps everything in process memory. It is used by tests and
// by STORAGE_BACKEND=memory for local runs; nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	events   []models.DrivingEvent
	eventIDs map[string]struct{}
	alerts   []models.Alert
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{eventIDs: make(map[string]struct{})}
}

func (m *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }
func (m *MemoryStore) Close() error                   { return nil }

func (m *MemoryStore) InsertEvent(ctx context.Context, e models.DrivingEvent) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if e.LocationType == "" {
		return "", errors.New("locationType required")
	}
	if err := checkTimestamp(e.Timestamp); err != nil {
		return "", err
	}
	if e.ID == "" {
		e.ID = newID()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.eventIDs[e.ID]; ok {
		return e.ID, ErrDuplicateEvent
	}
	m.eventIDs[e.ID] = struct{}{}
	m.events = append(m.events, e)
	return e.ID, nil
}

func (m *MemoryStore) CountUnsafeInWindow(ctx context.Context, category string, start, end time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, e := range m.events {
		if e.LocationType == category && !e.IsSafeDriving && withinWindow(e.Timestamp, start, end) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) InsertAlert(ctx context.Context, a models.Alert) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := checkTimestamp(a.Timestamp); err != nil {
		return "", err
	}
	if a.ID == "" {
		a.ID = newID()
	}
	m.mu.Lock()
	m.alerts = append(m.alerts, a)
	m.mu.Unlock()
	return a.ID, nil
}

func (m *MemoryStore) ExistsInWindow(ctx context.Context, category string, start, end time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.alerts {
		if a.LocationType == category && withinWindow(a.Timestamp, start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) FindAlertByID(ctx context.Context, id string) (*models.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.alerts {
		if a.ID == id {
			out := a
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// Alerts returns a copy of every stored alert in insertion order.
func (m *MemoryStore) Alerts() []models.Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}
