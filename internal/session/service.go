package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rehabsense/internal/analysis"
	"rehabsense/internal/detector"
	"rehabsense/internal/platform/metrics"
	"rehabsense/internal/pose"
)

// Config carries the analysis tunables shared by every session.
type Config struct {
	// Posture configures smoothing and verdict hysteresis.
	Posture analysis.PostureConfig
	// StallFrames overrides the per-exercise stall window when > 0.
	StallFrames int
}

// DefaultConfig returns the service defaults.
func DefaultConfig() Config {
	return Config{Posture: analysis.DefaultPostureConfig()}
}

// Service owns the session lifecycle: start, frame intake, live snapshots,
// and finalization. One worker goroutine per active session drives that
// session's pipeline; sessions are fully independent.
type Service struct {
	reg     *Registry
	det     detector.Detector
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewService wires a Service. Metrics may be nil to disable metric recording
// (e.g. in tests).
func NewService(reg *Registry, det detector.Detector, cfg Config, log *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{reg: reg, det: det, cfg: cfg, log: log, metrics: m}
}

// Detector returns the landmark source sessions use for image frames.
func (s *Service) Detector() detector.Detector {
	return s.det
}

// Start creates a session for the exercise, spawns its worker, and registers
// it. The exercise is fixed for the session's lifetime.
func (s *Service) Start(exercise, userID string) (Info, error) {
	ex, err := pose.ParseExercise(exercise)
	if err != nil {
		return Info{}, err
	}

	rcfg := analysis.RepConfigFor(ex)
	if s.cfg.StallFrames > 0 {
		rcfg.StallFrames = s.cfg.StallFrames
	}

	ctx, cancel := context.WithCancel(context.Background())
	st := &State{
		ID:        ID(uuid.NewString()),
		Exercise:  ex,
		UserID:    userID,
		StartedAt: time.Now().UTC(),
		Pipeline:  analysis.NewPipeline(ex, s.cfg.Posture, rcfg, s.log),
		runtime:   newRuntime(cancel),
	}

	s.reg.Insert(st)
	go s.run(ctx, st)

	if s.metrics != nil {
		s.metrics.IncSessionsStarted()
	}
	s.log.Info("session started",
		"session_id", string(st.ID),
		"exercise", string(ex))

	return Info{SessionID: string(st.ID), Exercise: string(ex), StartedAt: st.StartedAt}, nil
}

// Submit hands one landmark frame to the session's worker. It never blocks;
// under pressure the stale undelivered frame is dropped and reported to the
// pipeline as a gap.
func (s *Service) Submit(id ID, f pose.Frame) error {
	rt, err := s.runtimeFor(id)
	if err != nil {
		return err
	}
	rt.submit(f)
	return nil
}

// Feedback returns the session's per-frame feedback channel. Only the most
// recent undelivered record is retained.
func (s *Service) Feedback(id ID) (<-chan analysis.Feedback, error) {
	rt, err := s.runtimeFor(id)
	if err != nil {
		return nil, err
	}
	return rt.feedback, nil
}

// Snapshot returns the live view of a session.
func (s *Service) Snapshot(id ID) (Snapshot, error) {
	snap, ok := s.reg.Snapshot(id)
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return snap, nil
}

// List returns live views of all known sessions.
func (s *Service) List() []Snapshot {
	return s.reg.List()
}

// End stops the session's worker, waits for the in-flight frame to drain,
// freezes the metrics, and returns the terminal summary. Idempotent: ending
// an already-ended session returns the same summary.
func (s *Service) End(id ID) (*Summary, error) {
	st, ok := s.reg.Resolve(id)
	if !ok {
		return nil, ErrNotFound
	}

	st.endMu.Lock()
	defer st.endMu.Unlock()

	if sum, ended := s.reg.Terminal(id); ended {
		return sum, nil
	}

	// Stop the worker before touching the pipeline from this goroutine:
	// finalization shares the per-session serialization with frame
	// processing.
	rt := st.runtime
	rt.cancel()
	<-rt.done

	endedAt := time.Now().UTC()
	m := st.Pipeline.Finalize(endedAt.Sub(st.StartedAt))
	summary := summaryFrom(st, m, endedAt)
	s.reg.MarkEnded(id, summary)

	if s.metrics != nil {
		s.metrics.IncSessionsEnded()
	}
	s.log.Info("session ended",
		"session_id", string(id),
		"total_reps", m.TotalReps,
		"rating", string(m.PerformanceRating))

	return summary, nil
}

// ActiveCount returns the number of sessions that have not ended.
func (s *Service) ActiveCount() int {
	return s.reg.ActiveCount()
}

func (s *Service) runtimeFor(id ID) (*runtime, error) {
	rt, ok, ended := s.reg.Runtime(id)
	if !ok {
		return nil, ErrNotFound
	}
	if ended || rt == nil {
		return nil, ErrEnded
	}
	return rt, nil
}
