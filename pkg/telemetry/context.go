package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides a unified telemetry interface combining logging, tracing, metrics, and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Initialize logger
	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	// Initialize tracer
	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	// Initialize metrics
	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	// Initialize event publisher
	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	// Shutdown in reverse order of initialization
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}

	if err := t.Tracer.Shutdown(ctx); err != nil {
		return err
	}

	// Metrics server is not explicitly shut down here as it may need to continue
	// serving metrics until the very end of the application lifecycle

	return nil
}

// Flush forces all pending telemetry data to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// Context Helpers for common instrumentation patterns

// InstrumentedContext creates a context with telemetry, logger fields, and a trace span.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation begins an instrumented operation with logging, tracing, and timing.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &InstrumentedContext{
			Ctx:    ctx,
			Logger: FromContext(ctx),
			Timer:  NewTimer(),
		}
	}

	// Start trace span
	spanCtx, span := tel.Tracer.StartSpan(ctx, operation, attrs...)

	// Create logger with operation field
	logger := tel.Logger.WithField("operation", operation)

	// Add trace context to logger if available
	if span.SpanContext().IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &InstrumentedContext{
		Ctx:    spanCtx,
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End finishes the instrumented operation, recording success or failure.
func (ic *InstrumentedContext) End(err error) {
	if ic.Span != nil {
		if err != nil {
			RecordError(ic.Span, err)
		} else {
			RecordSuccess(ic.Span)
		}
		ic.Span.End()
	}
}

// WithMissionContext creates a context enriched with mission-specific telemetry.
func WithMissionContext(ctx context.Context, missionID, name string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	// Start mission span
	spanCtx, span := tel.Tracer.StartMissionSpan(ctx, missionID)

	// Create mission-specific logger
	logger := tel.Logger.WithMissionID(missionID).WithField("mission", name)
	spanCtx = logger.WithContext(spanCtx)

	// Publish mission started event
	_ = tel.Events.PublishMissionStarted(missionID, name)

	// Store the span and timer in context for later retrieval
	spanCtx = context.WithValue(spanCtx, missionSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, missionTimerKey{}, NewTimer())

	return spanCtx
}

// missionSpanKey is the context key for mission spans.
type missionSpanKey struct{}

// missionTimerKey is the context key for mission timers.
type missionTimerKey struct{}

// EndMissionContext completes the mission context, recording metrics and events.
func EndMissionContext(ctx context.Context, missionID, status string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	// Get the mission span from context
	if span, ok := ctx.Value(missionSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	// Get the timer from context
	var duration time.Duration
	if timer, ok := ctx.Value(missionTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	// Publish events
	if err != nil {
		_ = tel.Events.PublishMissionFailed(missionID, err.Error())
	} else {
		_ = tel.Events.PublishMissionCompleted(missionID, status, duration)
	}
}

// WithGoalContext creates a context enriched with goal-specific telemetry.
func WithGoalContext(ctx context.Context, missionID, goalID, class string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	// Start goal span
	spanCtx, span := tel.Tracer.StartGoalSpan(ctx, goalID, class)

	// Create goal-specific logger
	logger := tel.Logger.
		WithMissionID(missionID).
		WithGoal(goalID, class)
	spanCtx = logger.WithContext(spanCtx)

	// Record goal started metric
	tel.Metrics.RecordGoalStarted(class)

	// Publish goal started event
	_ = tel.Events.PublishGoalStarted(missionID, goalID, class)

	// Store the span and timer in context
	spanCtx = context.WithValue(spanCtx, goalSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, goalTimerKey{}, NewTimer())

	return spanCtx
}

// goalSpanKey is the context key for goal spans.
type goalSpanKey struct{}

// goalTimerKey is the context key for goal timers.
type goalTimerKey struct{}

// EndGoalContext completes the goal context, recording metrics and events.
func EndGoalContext(ctx context.Context, missionID, goalID, class string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	// Get the span from context
	if span, ok := ctx.Value(goalSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	// Get the timer from context
	var duration time.Duration
	if timer, ok := ctx.Value(goalTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	// Record metrics and publish events
	if err != nil {
		tel.Metrics.RecordGoalCompleted(class, "failed", duration)
		_ = tel.Events.PublishGoalFailed(missionID, goalID, class, err.Error())
	} else {
		tel.Metrics.RecordGoalCompleted(class, "succeeded", duration)
		_ = tel.Events.PublishGoalSucceeded(missionID, goalID, class, duration)
	}
}

// RecordActionOperation records an external action call with metrics and tracing.
func RecordActionOperation(ctx context.Context, action string, fn func() error) error {
	tel := FromTelemetryContext(ctx)

	// Start span
	var span trace.Span
	if tel != nil {
		ctx, span = tel.Tracer.StartActionSpan(ctx, action)
		defer span.End()
	}

	// Start timer
	timer := NewTimer()

	// Execute operation
	err := fn()

	// Record metrics
	if tel != nil {
		duration := timer.Duration()
		tel.Metrics.RecordActionCall(action, duration)
		if err != nil {
			tel.Metrics.RecordActionError(action)
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
	}

	return err
}
