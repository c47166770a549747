package telemetry

import (
	"context"

	"github.com/installkit/installkit/pkg/setup"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles logging, tracing and metrics.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config
}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}, nil
}

// NewNop returns telemetry that records nothing.
func NewNop() *Telemetry {
	cfg := DefaultConfig()
	cfg.Metrics.Enabled = false
	tracer, _ := NewTracer(TracingConfig{}, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	metrics, _ := NewMetrics(cfg.Metrics)
	return &Telemetry{
		Logger:  NewNopLogger(),
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.Tracer.Shutdown(ctx)
}

// StepContext carries the span, logger and timer of one running step.
type StepContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger

	step    string
	timer   *Timer
	metrics *Metrics
}

// StartStep begins an instrumented installation step.
func (t *Telemetry) StartStep(ctx context.Context, step string) *StepContext {
	spanCtx, span := t.Tracer.StartStepSpan(ctx, step)

	logger := t.Logger.WithStep(step)
	if span.SpanContext().IsValid() {
		logger = logger.WithField("trace_id", span.SpanContext().TraceID().String())
	}

	return &StepContext{
		Ctx:     logger.WithContext(spanCtx),
		Span:    span,
		Logger:  logger,
		step:    step,
		timer:   NewTimer(),
		metrics: t.Metrics,
	}
}

// End finishes the step, recording the result on the span and in metrics.
func (sc *StepContext) End(res setup.Result) {
	sc.Span.SetAttributes(AttrOutcome.String(string(res.Outcome)))
	if res.Success {
		RecordSuccess(sc.Span)
	} else {
		sc.Span.SetAttributes(AttrErrorClass.String(string(res.Outcome)))
		RecordError(sc.Span, &setup.InstallError{
			Class:   setup.ErrorClass(res.Outcome),
			Message: res.Message,
		})
	}
	sc.Span.End()
	sc.metrics.RecordStep(sc.step, res.Outcome, sc.timer.Duration())
}
