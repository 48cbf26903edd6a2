package session

import (
	"sync"
	"time"

	"rehabsense/internal/analysis"
	"rehabsense/internal/pose"
)

// ID uniquely identifies an exercise session.
type ID string

// State is the in-memory representation of one session. The runtime field
// carries the worker wiring and is nil once the session has ended.
type State struct {
	ID        ID
	Exercise  pose.Exercise
	UserID    string
	StartedAt time.Time
	EndedAt   time.Time
	Ended     bool

	Pipeline *analysis.Pipeline
	Summary  *Summary

	runtime *runtime
	endMu   sync.Mutex
}

// Info is the response payload for a newly started session.
type Info struct {
	SessionID string    `json:"sessionId"`
	Exercise  string    `json:"exercise"`
	StartedAt time.Time `json:"startedAt"`
}

// Snapshot is the live view of an active (or ended) session.
type Snapshot struct {
	SessionID string           `json:"sessionId"`
	Exercise  string           `json:"exercise"`
	StartedAt time.Time        `json:"startedAt"`
	Ended     bool             `json:"ended"`
	Metrics   analysis.Metrics `json:"metrics"`
}

// Summary is the terminal record produced when a session ends. Field layout
// matches what session clients store.
type Summary struct {
	SessionID             string          `json:"sessionId"`
	Exercise              string          `json:"exercise"`
	TotalReps             int             `json:"totalReps"`
	CorrectReps           int             `json:"correctReps"`
	IncorrectReps         int             `json:"incorrectReps"`
	PostureAccuracy       float64         `json:"postureAccuracy"`
	MisalignmentsCount    int             `json:"misalignmentsCount"`
	IncorrectFormAlerts   int             `json:"incorrectFormAlerts"`
	SessionDuration       int             `json:"sessionDuration"`
	AverageJointDeviation float64         `json:"averageJointDeviation"`
	PerformanceRating     analysis.Rating `json:"performanceRating"`
	StartedAt             time.Time       `json:"startedAt"`
	EndedAt               time.Time       `json:"endedAt"`
}

func summaryFrom(s *State, m analysis.Metrics, endedAt time.Time) *Summary {
	return &Summary{
		SessionID:             string(s.ID),
		Exercise:              string(s.Exercise),
		TotalReps:             m.TotalReps,
		CorrectReps:           m.CorrectReps,
		IncorrectReps:         m.IncorrectReps,
		PostureAccuracy:       m.PostureAccuracy,
		MisalignmentsCount:    m.MisalignmentsCount,
		IncorrectFormAlerts:   m.IncorrectFormAlerts,
		SessionDuration:       m.SessionDuration,
		AverageJointDeviation: m.AverageJointDeviation,
		PerformanceRating:     m.PerformanceRating,
		StartedAt:             s.StartedAt,
		EndedAt:               endedAt,
	}
}
