package engine

import (
	"context"
	"time"

	"github.com/PratikDhanave/driving-alerts/internal/store"
)

// Window is the trailing interval [Start, End], inclusive at both ends.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// TrailingWindow returns [now-length, now].
func TrailingWindow(now time.Time, length time.Duration) Window {
	return Window{Start: now.Add(-length), End: now}
}

// Contains reports Start <= ts <= End.
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && !ts.After(w.End)
}

// Evaluator counts unsafe events for one category inside a trailing window.
// It only reads; alerting decisions belong to the Engine.
type Evaluator struct {
	events  store.EventStore
	timeout time.Duration
}

// NewEvaluator returns an Evaluator whose store queries are bounded by timeout.
// A zero timeout leaves queries bounded only by the caller's context.
func NewEvaluator(events store.EventStore, timeout time.Duration) *Evaluator {
	return &Evaluator{events: events, timeout: timeout}
}

// Evaluate returns the window ending at now and the unsafe-event count in it.
// Store failures come back as *QueryError.
func (ev *Evaluator) Evaluate(ctx context.Context, category string, now time.Time, length time.Duration) (Window, int64, error) {
	w := TrailingWindow(now, length)

	ctx, cancel := withTimeout(ctx, ev.timeout)
	defer cancel()

	n, err := ev.events.CountUnsafeInWindow(ctx, category, w.Start, w.End)
	if err != nil {
		return w, 0, &QueryError{Category: category, Op: "count unsafe events", Err: err}
	}
	return w, n, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
