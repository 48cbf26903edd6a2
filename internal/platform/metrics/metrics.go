package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the exercise-analysis
// backend.
type Metrics struct {
	registry             *prometheus.Registry
	requestsTotal        prometheus.Counter
	errorsTotal          prometheus.Counter
	sessionsStartedTotal prometheus.Counter
	sessionsEndedTotal   prometheus.Counter
	activeSessions       prometheus.Gauge
	framesProcessedTotal prometheus.Counter
	framesDroppedTotal   prometheus.Counter
	repsCountedTotal     prometheus.Counter
}

// New creates and registers Prometheus metrics for the backend.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rehab_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rehab_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	sessionsStartedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rehab_sessions_started_total",
		Help: "Total number of exercise sessions started",
	})
	sessionsEndedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rehab_sessions_ended_total",
		Help: "Total number of exercise sessions ended",
	})
	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rehab_active_sessions",
		Help: "Number of sessions that have not ended",
	})
	framesProcessedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rehab_frames_processed_total",
		Help: "Total number of landmark frames run through the analysis pipeline",
	})
	framesDroppedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rehab_frames_dropped_total",
		Help: "Total number of stale frames dropped under backpressure",
	})
	repsCountedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rehab_reps_counted_total",
		Help: "Total number of completed repetitions across all sessions",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		sessionsStartedTotal,
		sessionsEndedTotal,
		activeSessions,
		framesProcessedTotal,
		framesDroppedTotal,
		repsCountedTotal,
	)

	return &Metrics{
		registry:             registry,
		requestsTotal:        requestsTotal,
		errorsTotal:          errorsTotal,
		sessionsStartedTotal: sessionsStartedTotal,
		sessionsEndedTotal:   sessionsEndedTotal,
		activeSessions:       activeSessions,
		framesProcessedTotal: framesProcessedTotal,
		framesDroppedTotal:   framesDroppedTotal,
		repsCountedTotal:     repsCountedTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncSessionsStarted increments the sessions started counter.
func (m *Metrics) IncSessionsStarted() {
	m.sessionsStartedTotal.Inc()
}

// IncSessionsEnded increments the sessions ended counter.
func (m *Metrics) IncSessionsEnded() {
	m.sessionsEndedTotal.Inc()
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// IncFramesProcessed increments the processed frame counter.
func (m *Metrics) IncFramesProcessed() {
	m.framesProcessedTotal.Inc()
}

// AddFramesDropped adds n to the dropped frame counter.
func (m *Metrics) AddFramesDropped(n int) {
	m.framesDroppedTotal.Add(float64(n))
}

// IncRepsCounted increments the completed repetition counter.
func (m *Metrics) IncRepsCounted() {
	m.repsCountedTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g.
// active sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
