package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for OpenRove.
type Metrics struct {
	config MetricsConfig

	// Goal metrics
	goalsStarted   *prometheus.CounterVec
	goalsCompleted *prometheus.CounterVec
	goalDuration   *prometheus.HistogramVec

	// Failure and retry metrics
	failuresTotal *prometheus.CounterVec
	retriesTotal  *prometheus.CounterVec

	// Navigation metrics
	navigationRetriggers prometheus.Counter

	// Lock metrics
	lockAcquisitions *prometheus.CounterVec
	lockWaitDuration *prometheus.HistogramVec
	lockHoldDuration *prometheus.HistogramVec

	// Fluent metrics
	fluentWrites *prometheus.CounterVec
	pulsesTotal  *prometheus.CounterVec

	// Action metrics
	actionCalls    *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	actionErrors   *prometheus.CounterVec

	// Mission metrics
	missionSteps *prometheus.CounterVec

	// System metrics
	activeGoals     prometheus.Gauge
	objectsBelieved prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		// Goal metrics
		goalsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "goals_started_total",
				Help:      "Total number of goals started",
			},
			[]string{"class"},
		),
		goalsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "goals_completed_total",
				Help:      "Total number of goals completed",
			},
			[]string{"class", "outcome"},
		),
		goalDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "goal_duration_seconds",
				Help:      "Duration of goal execution in seconds",
				Buckets:   buckets,
			},
			[]string{"class"},
		),

		// Failure and retry metrics
		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failures_total",
				Help:      "Total number of plan failures by kind",
			},
			[]string{"kind"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Total number of retries by failure kind",
			},
			[]string{"kind"},
		),

		// Navigation metrics
		navigationRetriggers: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "navigation_retriggers_total",
				Help:      "Total number of re-navigations after a lost target location",
			},
		),

		// Lock metrics
		lockAcquisitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lock_acquisitions_total",
				Help:      "Total number of lock acquisitions",
			},
			[]string{"class"},
		),
		lockWaitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "lock_wait_seconds",
				Help:      "Time spent waiting for a lock in seconds",
				Buckets:   buckets,
			},
			[]string{"class"},
		),
		lockHoldDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "lock_hold_seconds",
				Help:      "Time a lock was held in seconds",
				Buckets:   buckets,
			},
			[]string{"class"},
		),

		// Fluent metrics
		fluentWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fluent_writes_total",
				Help:      "Total number of fluent writes",
			},
			[]string{"fluent"},
		),
		pulsesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fluent_pulses_total",
				Help:      "Total number of fluent pulses observed",
			},
			[]string{"fluent"},
		),

		// Action metrics
		actionCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "action_calls_total",
				Help:      "Total number of external action calls",
			},
			[]string{"action"},
		),
		actionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "action_duration_seconds",
				Help:      "Duration of external action calls in seconds",
				Buckets:   buckets,
			},
			[]string{"action"},
		),
		actionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "action_errors_total",
				Help:      "Total number of external action errors",
			},
			[]string{"action"},
		),

		// Mission metrics
		missionSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mission_steps_total",
				Help:      "Total number of mission steps executed",
			},
			[]string{"status"},
		),

		// System metrics
		activeGoals: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_goals",
				Help:      "Current number of active goals",
			},
		),
		objectsBelieved: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "objects_believed",
				Help:      "Current number of objects in the belief store",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.goalsStarted,
		m.goalsCompleted,
		m.goalDuration,
		m.failuresTotal,
		m.retriesTotal,
		m.navigationRetriggers,
		m.lockAcquisitions,
		m.lockWaitDuration,
		m.lockHoldDuration,
		m.fluentWrites,
		m.pulsesTotal,
		m.actionCalls,
		m.actionDuration,
		m.actionErrors,
		m.missionSteps,
		m.activeGoals,
		m.objectsBelieved,
	)

	return m, nil
}

// Goal Metrics

// RecordGoalStarted increments the counter for started goals.
func (m *Metrics) RecordGoalStarted(class string) {
	if m.goalsStarted == nil {
		return
	}
	m.goalsStarted.WithLabelValues(class).Inc()
	m.activeGoals.Inc()
}

// RecordGoalCompleted records a completed goal with its outcome and duration.
func (m *Metrics) RecordGoalCompleted(class, outcome string, duration time.Duration) {
	if m.goalsCompleted == nil {
		return
	}
	m.goalsCompleted.WithLabelValues(class, outcome).Inc()
	m.goalDuration.WithLabelValues(class).Observe(duration.Seconds())
	m.activeGoals.Dec()
}

// Failure Metrics

// RecordFailure records a plan failure by kind.
func (m *Metrics) RecordFailure(kind string) {
	if m.failuresTotal == nil {
		return
	}
	m.failuresTotal.WithLabelValues(kind).Inc()
}

// RecordRetry records a retry attempt after a failure of the given kind.
func (m *Metrics) RecordRetry(kind string) {
	if m.retriesTotal == nil {
		return
	}
	m.retriesTotal.WithLabelValues(kind).Inc()
}

// Navigation Metrics

// RecordNavigationRetrigger records a re-navigation after a lost target.
func (m *Metrics) RecordNavigationRetrigger() {
	if m.navigationRetriggers == nil {
		return
	}
	m.navigationRetriggers.Inc()
}

// Lock Metrics

// RecordLockAcquired records a lock acquisition with its wait duration.
func (m *Metrics) RecordLockAcquired(class string, wait time.Duration) {
	if m.lockAcquisitions == nil {
		return
	}
	m.lockAcquisitions.WithLabelValues(class).Inc()
	m.lockWaitDuration.WithLabelValues(class).Observe(wait.Seconds())
}

// RecordLockReleased records a lock release with its hold duration.
func (m *Metrics) RecordLockReleased(class string, held time.Duration) {
	if m.lockHoldDuration == nil {
		return
	}
	m.lockHoldDuration.WithLabelValues(class).Observe(held.Seconds())
}

// Fluent Metrics

// RecordFluentWrite records a write to a named fluent.
func (m *Metrics) RecordFluentWrite(fluent string) {
	if m.fluentWrites == nil {
		return
	}
	m.fluentWrites.WithLabelValues(fluent).Inc()
}

// RecordPulse records an observed pulse on a named fluent.
func (m *Metrics) RecordPulse(fluent string) {
	if m.pulsesTotal == nil {
		return
	}
	m.pulsesTotal.WithLabelValues(fluent).Inc()
}

// Action Metrics

// RecordActionCall records an external action call with its duration.
func (m *Metrics) RecordActionCall(action string, duration time.Duration) {
	if m.actionCalls == nil {
		return
	}
	m.actionCalls.WithLabelValues(action).Inc()
	m.actionDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordActionError records an external action error.
func (m *Metrics) RecordActionError(action string) {
	if m.actionErrors == nil {
		return
	}
	m.actionErrors.WithLabelValues(action).Inc()
}

// Mission Metrics

// RecordMissionStep records the execution of a mission step.
func (m *Metrics) RecordMissionStep(status string) {
	if m.missionSteps == nil {
		return
	}
	m.missionSteps.WithLabelValues(status).Inc()
}

// System Metrics

// SetActiveGoals sets the current number of active goals.
func (m *Metrics) SetActiveGoals(count float64) {
	if m.activeGoals == nil {
		return
	}
	m.activeGoals.Set(count)
}

// SetObjectsBelieved sets the current number of believed objects.
func (m *Metrics) SetObjectsBelieved(count float64) {
	if m.objectsBelieved == nil {
		return
	}
	m.objectsBelieved.Set(count)
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

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
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

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
