package analysis

import (
	"log/slog"
	"time"

	"rehabsense/internal/pose"
)

// Feedback is the per-frame record sent back over the session's stream:
// cumulative metrics plus the instantaneous posture status.
type Feedback struct {
	Metrics        Metrics
	PoseDetected   bool
	PostureCorrect bool
	Feedback       string
	RepCompleted   bool
	RepCorrect     bool
	TrackedAngle   float64
	HasAngle       bool
}

// Pipeline runs one session's per-frame analysis: angle engine, posture
// analyzer, rep counter, session aggregator. It is not safe for concurrent
// Process calls; each session feeds its pipeline from a single goroutine.
type Pipeline struct {
	exercise pose.Exercise
	minVis   float64
	analyzer *PostureAnalyzer
	counter  *RepCounter
	agg      *Aggregator
	log      *slog.Logger
}

// NewPipeline wires up the analysis chain for one session.
func NewPipeline(exercise pose.Exercise, pcfg PostureConfig, rcfg RepConfig, log *slog.Logger) *Pipeline {
	return &Pipeline{
		exercise: exercise,
		minVis:   pcfg.MinVisibility,
		analyzer: NewPostureAnalyzer(exercise, pcfg),
		counter:  NewRepCounter(rcfg),
		agg:      NewAggregator(pcfg.HighThreshold * 2),
		log:      log,
	}
}

// Exercise returns the exercise this pipeline analyzes.
func (p *Pipeline) Exercise() pose.Exercise {
	return p.exercise
}

// Process runs one landmark frame through the full chain and returns the
// outgoing feedback record. Missing or partial landmark data never fails;
// the only error is an update arriving after Finalize.
func (p *Pipeline) Process(f pose.Frame) (Feedback, error) {
	angles := pose.ExerciseAngles(p.exercise, f, p.minVis)
	verdict := p.analyzer.Analyze(f, angles)

	// The counter does its own stall accounting when the frame yields no
	// reliable tracked angle; it must see every frame exactly once.
	event, completed := p.counter.Update(angles, verdict)

	if err := p.agg.OnVerdict(verdict); err != nil {
		return Feedback{}, err
	}
	if completed {
		if err := p.agg.OnRep(event.Correct); err != nil {
			return Feedback{}, err
		}
		p.log.Debug("rep completed",
			slog.String("exercise", string(p.exercise)),
			slog.Bool("correct", event.Correct))
	}

	fb := Feedback{
		Metrics:        p.agg.Snapshot(),
		PoseDetected:   !verdict.Indeterminate,
		PostureCorrect: verdict.Correct,
		Feedback:       verdict.Feedback,
		RepCompleted:   completed,
		RepCorrect:     event.Correct,
	}
	if angle, ok := p.counter.LastAngle(); ok {
		fb.TrackedAngle = angle
		fb.HasAngle = true
	}
	return fb, nil
}

// ReportGap tells the rep counter that n frames were dropped before
// delivery, so a gap is not mistaken for smooth motion.
func (p *Pipeline) ReportGap(n int) {
	if n > 0 {
		p.counter.Gap(n)
	}
}

// Snapshot returns the current session metrics.
func (p *Pipeline) Snapshot() Metrics {
	return p.agg.Snapshot()
}

// Finalize freezes and returns the terminal session metrics. Idempotent and
// safe to call from the control path while frames are still in flight; the
// next Process call observes the frozen state and fails loudly.
func (p *Pipeline) Finalize(duration time.Duration) Metrics {
	return p.agg.Finalize(duration)
}

// Finalized reports whether the session's metrics have been frozen.
func (p *Pipeline) Finalized() bool {
	return p.agg.Finalized()
}
