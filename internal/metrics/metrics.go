package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "socratic"

// Recorder receives orchestration measurements. The session service only
// depends on this interface.
type Recorder interface {
	SessionStarted()
	SessionClosed(status string)
	TurnProcessed(rule string, from, to int)
	TurnFailed(kind string)
	OracleCall(d time.Duration, err error)
}

// Metrics is the Prometheus-backed Recorder. Each instance owns a private
// registry so tests and multiple servers never collide.
type Metrics struct {
	registry *prometheus.Registry

	sessionsStarted prometheus.Counter
	sessionsClosed  *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	turns           *prometheus.CounterVec
	levelChanges    *prometheus.CounterVec
	turnErrors      *prometheus.CounterVec
	oracleLatency   *prometheus.HistogramVec
}

// New creates a Metrics instance with Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		sessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Sessions started.",
		}),
		sessionsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Sessions closed, by final status.",
		}, []string{"status"}),
		activeSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions started and not yet closed by this process.",
		}),
		turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Processed turns, by the level rule that fired.",
		}, []string{"rule"}),
		levelChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "level_changes_total",
			Help:      "Level changes, by direction.",
		}, []string{"direction"}),
		turnErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_errors_total",
			Help:      "Rejected or failed turns, by error kind.",
		}, []string{"kind"}),
		oracleLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_latency_seconds",
			Help:      "Latency of oracle calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		}, []string{"outcome"}),
	}
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SessionStarted() {
	m.sessionsStarted.Inc()
	m.activeSessions.Inc()
}

func (m *Metrics) SessionClosed(status string) {
	m.sessionsClosed.WithLabelValues(status).Inc()
	m.activeSessions.Dec()
}

func (m *Metrics) TurnProcessed(rule string, from, to int) {
	m.turns.WithLabelValues(rule).Inc()
	switch {
	case to > from:
		m.levelChanges.WithLabelValues("up").Inc()
	case to < from:
		m.levelChanges.WithLabelValues("down").Inc()
	}
}

func (m *Metrics) TurnFailed(kind string) {
	m.turnErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) OracleCall(d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.oracleLatency.WithLabelValues(outcome).Observe(d.Seconds())
}

// Nop is a Recorder that discards everything.
type Nop struct{}

func (Nop) SessionStarted()                {}
func (Nop) SessionClosed(string)           {}
func (Nop) TurnProcessed(string, int, int) {}
func (Nop) TurnFailed(string)              {}
func (Nop) OracleCall(time.Duration, error) {}
