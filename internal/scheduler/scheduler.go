// Package scheduler drives evaluation cycles from two independent sources:
// a periodic ticker and a per-event trigger fired after each stored event.
package scheduler

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/PratikDhanave/driving-alerts/internal/engine"
	"github.com/PratikDhanave/driving-alerts/internal/logging"
	"github.com/PratikDhanave/driving-alerts/internal/metrics"
)

// Cycler runs one evaluation cycle. Satisfied by *engine.Engine.
type Cycler interface {
	RunCycle(ctx context.Context, trigger engine.Trigger) engine.Report
}

// Ticker is the periodic time source. Tests substitute a manual one.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) Chan() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()                  { r.t.Stop() }

// NewRealTicker wraps time.NewTicker.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Config holds scheduler configuration
type Config struct {
	// Interval between periodic cycles. Default: 5m
	Interval time.Duration
	// MaxConcurrent bounds event-triggered cycles running at once. Triggers
	// arriving while every slot is busy coalesce into one follow-up cycle.
	// Default: 8
	MaxConcurrent int
	// NewTicker creates the periodic ticker. Default: NewRealTicker
	NewTicker func(time.Duration) Ticker
	// OnReport, if set, receives every finished cycle's report.
	OnReport func(engine.Report)
}

// Scheduler owns the periodic loop and the detached event-triggered cycles.
type Scheduler struct {
	cycler    Cycler
	interval  time.Duration
	newTicker func(time.Duration) Ticker
	onReport  func(engine.Report)
	log       zerolog.Logger

	maxConcurrent int

	// base is the context for detached cycles; it outlives any request.
	base   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	idle    *sync.Cond
	stopped bool
	// running counts workers executing event-triggered cycles.
	running int
	// pending is set when a trigger found every worker busy. Any cycle that
	// starts after the trigger covers its event, so one flag is enough.
	pending bool
}

// New creates a scheduler. Call Serve to start the periodic loop.
func New(c Cycler, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = engine.DefaultWindow
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewRealTicker
	}

	base, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cycler:        c,
		interval:      cfg.Interval,
		newTicker:     cfg.NewTicker,
		onReport:      cfg.OnReport,
		log:           logging.WithComponent("scheduler"),
		maxConcurrent: cfg.MaxConcurrent,
		base:          base,
		cancel:        cancel,
	}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// Serve runs periodic cycles until ctx is canceled. It implements
// suture.Service and returns ctx.Err() on shutdown.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")

	ticker := s.newTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-ticker.Chan():
			s.RunOnce(ctx, engine.TriggerPeriodic)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *Scheduler) String() string { return "evaluation-scheduler" }

// Trigger schedules a detached cycle and returns immediately. The caller's
// outcome never depends on the cycle. Call only after the triggering event
// has been durably stored.
//
// At most MaxConcurrent workers exist; a trigger that finds them all busy
// marks a follow-up cycle instead of starting a goroutine.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		s.log.Debug().Msg("scheduler stopped, dropping event trigger")
		return
	}
	if s.running >= s.maxConcurrent {
		s.pending = true
		return
	}
	s.running++
	go s.work()
}

// work runs one event-triggered cycle, then keeps running follow-ups while
// triggers were coalesced during the previous cycle.
func (s *Scheduler) work() {
	for {
		s.RunOnce(s.base, engine.TriggerEvent)

		s.mu.Lock()
		if s.pending && !s.stopped {
			s.pending = false
			s.mu.Unlock()
			continue
		}
		s.running--
		if s.running == 0 {
			s.idle.Broadcast()
		}
		s.mu.Unlock()
		return
	}
}

// RunOnce runs a single cycle synchronously. Panics are recovered and
// logged; the next trigger proceeds normally.
func (s *Scheduler) RunOnce(ctx context.Context, trigger engine.Trigger) (report engine.Report) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Str("trigger", string(trigger)).
				Msg("evaluation cycle panic recovered")
			metrics.PanicsRecovered.WithLabelValues("scheduler").Inc()
			report = engine.Report{Trigger: trigger}
		}
	}()

	report = s.cycler.RunCycle(ctx, trigger)

	if failed := report.Failed(); len(failed) > 0 {
		categories := make([]string, 0, len(failed))
		for _, f := range failed {
			categories = append(categories, f.Category)
		}
		s.log.Warn().
			Str("trigger", string(trigger)).
			Strs("failed_categories", categories).
			Msg("evaluation cycle finished with failures")
	}

	if s.onReport != nil {
		s.onReport(report)
	}
	return report
}

// Stop rejects new triggers, drops coalesced ones, cancels the context of
// detached cycles, and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.pending = false
	s.mu.Unlock()

	s.cancel()
	s.Wait()
}

// Wait blocks until no event-triggered cycle is running or pending. It may be
// called concurrently with Trigger; it then returns at some moment the
// scheduler was idle.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.running > 0 {
		s.idle.Wait()
	}
}
