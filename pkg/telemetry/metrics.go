package telemetry

import (
	"net/http"
	"time"

	"github.com/installkit/installkit/pkg/setup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for installation steps.
type Metrics struct {
	config MetricsConfig

	stepsTotal    *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	errorsByClass *prometheus.CounterVec
	statusSignal  *prometheus.GaugeVec
	completed     prometheus.Gauge

	registry *prometheus.Registry
}

var _ setup.StepRecorder = (*Metrics)(nil)

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// No-op instance; every Record method checks for nil collectors
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		stepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Total number of installation step invocations",
			},
			[]string{"step", "outcome"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of installation steps in seconds",
				Buckets:   buckets,
			},
			[]string{"step"},
		),
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of failed steps by error class",
			},
			[]string{"class"},
		),
		statusSignal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "status_signal",
				Help:      "Last observed installation status signal (1=true, 0=false)",
			},
			[]string{"signal"},
		),
		completed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "completed",
				Help:      "Whether the last observed installation status was complete",
			},
		),
	}

	registry.MustRegister(
		m.stepsTotal,
		m.stepDuration,
		m.errorsByClass,
		m.statusSignal,
		m.completed,
	)

	return m, nil
}

// RecordStep records one step invocation with its outcome and duration.
func (m *Metrics) RecordStep(step string, outcome setup.Outcome, duration time.Duration) {
	if m.stepsTotal == nil {
		return
	}
	m.stepsTotal.WithLabelValues(step, string(outcome)).Inc()
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
	if outcome != setup.OutcomeSuccess && outcome != setup.OutcomeSkipped {
		m.errorsByClass.WithLabelValues(string(outcome)).Inc()
	}
}

// RecordStatus publishes every signal of a status snapshot.
func (m *Metrics) RecordStatus(status setup.InstallationStatus) {
	if m.statusSignal == nil {
		return
	}
	for _, sig := range setup.Signals {
		m.statusSignal.WithLabelValues(string(sig)).Set(boolToFloat(status.Value(sig)))
	}
	m.completed.Set(boolToFloat(status.Completed()))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

// Registry returns the underlying registry, nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
