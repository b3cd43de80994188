package store

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/PratikDhanave/driving-alerts/internal/logging"
	"github.com/PratikDhanave/driving-alerts/internal/metrics"
	"github.com/PratikDhanave/driving-alerts/internal/models"
)

// BreakerConfig configures the circuit breaker in front of a Store.
type BreakerConfig struct {
	Name string
	// ConsecutiveFailures opens the breaker. Default: 5
	ConsecutiveFailures uint32
	// Cooldown is how long the breaker stays open before probing. Default: 30s
	Cooldown time.Duration
}

// BreakerStore fails fast while the wrapped store keeps erroring, so a
// dead database costs each caller one rejected call instead of a timeout.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker[interface{}]
}

// NewBreakerStore wraps next with a circuit breaker.
func NewBreakerStore(next Store, cfg BreakerConfig) *BreakerStore {
	if cfg.Name == "" {
		cfg.Name = "store"
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}

	log := logging.WithComponent("store")
	metrics.BreakerState.WithLabelValues(cfg.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("store breaker state change")
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
		// Misses, duplicates and rejected input mean the store answered. A
		// caller giving up on its own request says nothing about the store.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, ErrDuplicateEvent) ||
				errors.Is(err, ErrTimestampOutOfRange) ||
				errors.Is(err, context.Canceled)
		},
	})

	return &BreakerStore{next: next, cb: cb}
}

// State returns the current breaker state.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) Ping(ctx context.Context) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Ping(ctx)
	})
	return err
}

func (b *BreakerStore) Close() error {
	return b.next.Close()
}

func (b *BreakerStore) InsertEvent(ctx context.Context, e models.DrivingEvent) (string, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.InsertEvent(ctx, e)
	})
	id, _ := res.(string)
	return id, err
}

func (b *BreakerStore) CountUnsafeInWindow(ctx context.Context, category string, start, end time.Time) (int64, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.CountUnsafeInWindow(ctx, category, start, end)
	})
	n, _ := res.(int64)
	return n, err
}

func (b *BreakerStore) InsertAlert(ctx context.Context, a models.Alert) (string, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.InsertAlert(ctx, a)
	})
	id, _ := res.(string)
	return id, err
}

func (b *BreakerStore) ExistsInWindow(ctx context.Context, category string, start, end time.Time) (bool, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.ExistsInWindow(ctx, category, start, end)
	})
	ok, _ := res.(bool)
	return ok, err
}

func (b *BreakerStore) FindAlertByID(ctx context.Context, id string) (*models.Alert, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.FindAlertByID(ctx, id)
	})
	a, _ := res.(*models.Alert)
	return a, err
}
