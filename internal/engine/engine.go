// Package engine evaluates the driving rules.
//
// One evaluation cycle walks the rule catalog in lexicographic order and, for
// each category, counts unsafe events in the trailing window, compares the
// count with the category threshold, and inserts at most one alert per
// window. Cycles may run concurrently; the check-then-insert step is
// serialized per category so concurrent triggers cannot double-alert.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/PratikDhanave/driving-alerts/internal/logging"
	"github.com/PratikDhanave/driving-alerts/internal/metrics"
	"github.com/PratikDhanave/driving-alerts/internal/models"
	"github.com/PratikDhanave/driving-alerts/internal/rules"
	"github.com/PratikDhanave/driving-alerts/internal/store"
)

// DefaultWindow is the trailing window length shared by all categories.
const DefaultWindow = 5 * time.Minute

// Trigger names what started a cycle.
type Trigger string

const (
	TriggerPeriodic Trigger = "periodic"
	TriggerEvent    Trigger = "event"
	TriggerManual   Trigger = "manual"
)

// Config configures an Engine.
type Config struct {
	// Window is the trailing window length. Default: 5m
	Window time.Duration
	// StoreTimeout bounds every individual store call. Default: 5s
	StoreTimeout time.Duration
	// Now returns the evaluation time. Default: time.Now
	Now func() time.Time
}

// Engine runs evaluation cycles against an event store and an alert store.
type Engine struct {
	catalog   *rules.Catalog
	evaluator *Evaluator
	alerts    store.AlertStore
	window    time.Duration
	timeout   time.Duration
	now       func() time.Time
	log       zerolog.Logger

	// guards holds one entry per catalog category; the catalog is immutable
	// so the map itself is never written after New.
	guards map[string]*categoryGuard
}

// categoryGuard serializes the dedup check and insert for one category and
// remembers the newest alert this process raised for it.
type categoryGuard struct {
	mu        sync.Mutex
	lastAlert time.Time
}

// New creates an Engine.
func New(catalog *rules.Catalog, events store.EventStore, alerts store.AlertStore, cfg Config) *Engine {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	guards := make(map[string]*categoryGuard, catalog.Len())
	for _, c := range catalog.Categories() {
		guards[c] = &categoryGuard{}
	}

	return &Engine{
		catalog:   catalog,
		evaluator: NewEvaluator(events, cfg.StoreTimeout),
		alerts:    alerts,
		window:    cfg.Window,
		timeout:   cfg.StoreTimeout,
		now:       cfg.Now,
		log:       logging.WithComponent("engine"),
		guards:    guards,
	}
}

// Window returns the configured trailing window length.
func (e *Engine) Window() time.Duration { return e.window }

// RunCycle evaluates every category at the current time, truncated to the
// microsecond precision every store backend keeps.
func (e *Engine) RunCycle(ctx context.Context, trigger Trigger) Report {
	return e.RunCycleAt(ctx, e.now().Truncate(time.Microsecond), trigger)
}

// RunCycleAt evaluates every category with the window ending at now.
// Per-category failures are logged and recorded in the report; they never
// stop the remaining categories.
func (e *Engine) RunCycleAt(ctx context.Context, now time.Time, trigger Trigger) Report {
	start := time.Now()
	report := Report{Trigger: trigger, At: now}

	for _, category := range e.catalog.Categories() {
		report.Results = append(report.Results, e.EvaluateCategory(ctx, category, now))
	}

	report.Duration = time.Since(start)
	metrics.CyclesTotal.WithLabelValues(string(trigger)).Inc()
	metrics.CycleDuration.Observe(report.Duration.Seconds())

	e.log.Debug().
		Str("trigger", string(trigger)).
		Time("at", now).
		Int("created", len(report.Created())).
		Int("failed", len(report.Failed())).
		Dur("duration", report.Duration).
		Msg("evaluation cycle finished")

	return report
}

// EvaluateCategory runs one category through count, threshold, dedup check
// and insert. Categories without a rule are skipped.
func (e *Engine) EvaluateCategory(ctx context.Context, category string, now time.Time) Result {
	threshold, ok := e.catalog.ThresholdFor(category)
	if !ok {
		return Result{Category: category, Outcome: OutcomeSkipped}
	}

	w, count, err := e.evaluator.Evaluate(ctx, category, now, e.window)
	res := Result{Category: category, Threshold: threshold, Window: w, Count: count}
	if err != nil {
		return e.failed(res, OutcomeQueryFailed, err)
	}
	if count < int64(threshold) {
		res.Outcome = OutcomeBelowThreshold
		return res
	}

	g := e.guards[category]
	g.mu.Lock()
	defer g.mu.Unlock()

	// A concurrent cycle with a later clock reading may already have alerted
	// for this window; its alert falls after w.End so the store query below
	// cannot see it.
	if !g.lastAlert.IsZero() && !g.lastAlert.Before(w.Start) {
		return e.suppressed(res)
	}

	exists, err := e.alertInWindow(ctx, category, w)
	if err != nil {
		return e.failed(res, OutcomeQueryFailed, err)
	}
	if exists {
		return e.suppressed(res)
	}

	id, err := e.insertAlert(ctx, models.Alert{Timestamp: now, LocationType: category})
	if err != nil {
		return e.failed(res, OutcomeWriteFailed, &WriteError{Category: category, Err: err})
	}
	if now.After(g.lastAlert) {
		g.lastAlert = now
	}

	res.Outcome = OutcomeCreated
	res.AlertID = id
	metrics.AlertsCreatedTotal.WithLabelValues(category).Inc()
	e.log.Info().
		Str("location_type", category).
		Str("alert_id", id).
		Int64("unsafe_count", count).
		Int("threshold", threshold).
		Time("window_start", w.Start).
		Time("window_end", w.End).
		Msg("alert created")
	return res
}

func (e *Engine) alertInWindow(ctx context.Context, category string, w Window) (bool, error) {
	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	exists, err := e.alerts.ExistsInWindow(ctx, category, w.Start, w.End)
	if err != nil {
		return false, &QueryError{Category: category, Op: "check alert window", Err: err}
	}
	return exists, nil
}

func (e *Engine) insertAlert(ctx context.Context, a models.Alert) (string, error) {
	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()
	return e.alerts.InsertAlert(ctx, a)
}

func (e *Engine) suppressed(res Result) Result {
	res.Outcome = OutcomeSuppressed
	metrics.AlertsSuppressedTotal.WithLabelValues(res.Category).Inc()
	e.log.Debug().
		Str("location_type", res.Category).
		Int64("unsafe_count", res.Count).
		Msg("alert already covers window")
	return res
}

func (e *Engine) failed(res Result, outcome Outcome, err error) Result {
	res.Outcome = outcome
	res.Err = err
	res.Error = err.Error()

	kind := "query"
	if errors.Is(err, ErrStoreWrite) {
		kind = "write"
	}
	metrics.EvaluationFailuresTotal.WithLabelValues(res.Category, kind).Inc()
	e.log.Error().
		Err(err).
		Str("location_type", res.Category).
		Str("kind", kind).
		Msg("rule evaluation failed")
	return res
}
