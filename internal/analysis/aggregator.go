package analysis

import (
	"errors"
	"sync"
	"time"
)

// Rating is the coarse performance summary derived from posture accuracy.
type Rating string

const (
	RatingExcellent        Rating = "excellent"
	RatingGood             Rating = "good"
	RatingNeedsImprovement Rating = "needs-improvement"
)

// ErrFinalized is returned when an aggregator receives updates after
// Finalize. That is a programmer error on the calling side; the frozen
// summary is never silently mutated.
var ErrFinalized = errors.New("session metrics already finalized")

// Metrics is the externally visible session aggregate.
type Metrics struct {
	TotalReps             int     `json:"totalReps"`
	CorrectReps           int     `json:"correctReps"`
	IncorrectReps         int     `json:"incorrectReps"`
	PostureAccuracy       float64 `json:"postureAccuracy"`
	MisalignmentsCount    int     `json:"misalignmentsCount"`
	IncorrectFormAlerts   int     `json:"incorrectFormAlerts"`
	AverageJointDeviation float64 `json:"averageJointDeviation"`
	SessionDuration       int     `json:"sessionDuration"`
	PerformanceRating     Rating  `json:"performanceRating"`
}

// Aggregator accumulates rep events and posture verdicts into session
// metrics. Updates come from the session's pipeline goroutine; Snapshot may
// be called concurrently from the API side, so all state is mutex-guarded.
type Aggregator struct {
	mu sync.Mutex

	totalReps     int
	correctReps   int
	incorrectReps int

	evaluatedFrames int
	correctFrames   int
	deviationMean   float64

	misalignments int
	formAlerts    int
	wasIncorrect  bool
	wasSevere     bool

	severeThreshold float64

	finalized bool
	duration  time.Duration
}

// NewAggregator returns an empty aggregator. severeThreshold is the smoothed
// deviation above which an incorrect period also counts as a form alert.
func NewAggregator(severeThreshold float64) *Aggregator {
	return &Aggregator{severeThreshold: severeThreshold}
}

// OnRep records one completed repetition.
func (a *Aggregator) OnRep(correct bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return ErrFinalized
	}
	a.totalReps++
	if correct {
		a.correctReps++
	} else {
		a.incorrectReps++
	}
	return nil
}

// OnVerdict records one frame's posture verdict. Indeterminate verdicts are
// ignored. Misalignment and form-alert counters advance on the rising edge
// of an incorrect (or severe) period, so a ten-frame slump counts once.
func (a *Aggregator) OnVerdict(v Verdict) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return ErrFinalized
	}
	if v.Indeterminate {
		return nil
	}

	a.evaluatedFrames++
	if v.Correct {
		a.correctFrames++
	}

	// Incremental mean keeps the running average stable without retaining
	// per-frame history.
	a.deviationMean += (v.Deviation - a.deviationMean) / float64(a.evaluatedFrames)

	incorrect := !v.Correct
	if incorrect && !a.wasIncorrect {
		a.misalignments++
	}
	severe := incorrect && v.Deviation > a.severeThreshold
	if severe && !a.wasSevere {
		a.formAlerts++
	}
	a.wasIncorrect = incorrect
	a.wasSevere = severe

	return nil
}

// Snapshot returns the current metrics. Safe to call at any time, including
// after Finalize.
func (a *Aggregator) Snapshot() Metrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.metricsLocked()
}

// Finalize freezes the metrics with the session's duration and returns the
// terminal summary. Idempotent: repeat calls return the frozen summary and
// do not change the recorded duration.
func (a *Aggregator) Finalize(duration time.Duration) Metrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.finalized {
		a.finalized = true
		a.duration = duration
	}
	return a.metricsLocked()
}

// Finalized reports whether Finalize has been called.
func (a *Aggregator) Finalized() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finalized
}

func (a *Aggregator) metricsLocked() Metrics {
	accuracy := 0.0
	if a.evaluatedFrames > 0 {
		accuracy = float64(a.correctFrames) / float64(a.evaluatedFrames) * 100
	}
	return Metrics{
		TotalReps:             a.totalReps,
		CorrectReps:           a.correctReps,
		IncorrectReps:         a.incorrectReps,
		PostureAccuracy:       accuracy,
		MisalignmentsCount:    a.misalignments,
		IncorrectFormAlerts:   a.formAlerts,
		AverageJointDeviation: a.deviationMean,
		SessionDuration:       int(a.duration.Seconds()),
		PerformanceRating:     ratingFor(accuracy),
	}
}

// ratingFor maps posture accuracy onto the coarse performance rating.
func ratingFor(accuracy float64) Rating {
	switch {
	case accuracy >= 90:
		return RatingExcellent
	case accuracy >= 75:
		return RatingGood
	default:
		return RatingNeedsImprovement
	}
}
