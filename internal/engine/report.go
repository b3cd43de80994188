package engine

import "time"

// Outcome is what happened to one category during a cycle.
type Outcome string

const (
	OutcomeSkipped        Outcome = "skipped"
	OutcomeBelowThreshold Outcome = "below_threshold"
	OutcomeCreated        Outcome = "created"
	OutcomeSuppressed     Outcome = "suppressed"
	OutcomeQueryFailed    Outcome = "query_failed"
	OutcomeWriteFailed    Outcome = "write_failed"
)

// Result is the evaluation of one category.
type Result struct {
	Category  string  `json:"locationType"`
	Outcome   Outcome `json:"outcome"`
	Count     int64   `json:"unsafeCount"`
	Threshold int     `json:"threshold,omitempty"`
	Window    Window  `json:"window"`
	AlertID   string  `json:"alertId,omitempty"`
	Err       error   `json:"-"`
	Error     string  `json:"error,omitempty"`
}

// Report summarises one evaluation cycle.
type Report struct {
	Trigger  Trigger       `json:"trigger"`
	At       time.Time     `json:"at"`
	Duration time.Duration `json:"duration"`
	Results  []Result      `json:"results"`
}

// Created returns the results that inserted an alert.
func (r Report) Created() []Result {
	return r.filter(OutcomeCreated)
}

// Failed returns the results that hit a store failure.
func (r Report) Failed() []Result {
	return r.filter(OutcomeQueryFailed, OutcomeWriteFailed)
}

// Result returns the result for category.
func (r Report) Result(category string) (Result, bool) {
	for _, res := range r.Results {
		if res.Category == category {
			return res, true
		}
	}
	return Result{}, false
}

func (r Report) filter(outcomes ...Outcome) []Result {
	var out []Result
	for _, res := range r.Results {
		for _, o := range outcomes {
			if res.Outcome == o {
				out = append(out, res)
				break
			}
		}
	}
	return out
}
