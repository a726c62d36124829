// Package telemetry provides comprehensive observability instrumentation for OpenRove.
//
// The telemetry package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a unified system
// for monitoring and debugging robot plan execution.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for audit and journaling
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "rove"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context propagation:
//
//	logger := tel.Logger.NewComponentLogger("executive")
//	logger = logger.WithGoal("goal-123", "at-location").WithTaskPath("fetch-object/at-location")
//	logger.Info("Starting navigation")
//	logger.WithError(err).Error("Navigation failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into goal execution flow and timing:
//
//	ctx, span := tel.Tracer.StartGoalSpan(ctx, goalID, "at-location")
//	defer span.End()
//
//	span.SetAttributes(
//	    telemetry.AttrGoalClass.String("at-location"),
//	    telemetry.AttrTargetPose.String(target.String()),
//	)
//
//	span.AddEvent("navigation.arrived")
//
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development), None (testing)
//
// # Metrics
//
// Prometheus metrics track executive behavior and performance:
//
//	tel.Metrics.RecordGoalStarted("at-location")
//	tel.Metrics.RecordGoalCompleted("at-location", "succeeded", duration)
//	tel.Metrics.RecordFailure("unreachable")
//	tel.Metrics.RecordRetry("unreachable")
//	tel.Metrics.RecordLockAcquired("navigation", waited)
//	tel.Metrics.RecordNavigationRetrigger()
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering. The
// journal subscribes to it to persist an episode log of every mission:
//
//	tel.Events.PublishGoalStarted(missionID, goalID, "at-location")
//	tel.Events.PublishNavigationLost(goalID, losses)
//	tel.Events.PublishObjectSeen("mug-1", "mug")
//
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// Event filters: FilterByLevel, FilterByType, FilterByMissionID, FilterByGoalID
//
// # Context Helpers
//
// High-level helpers simplify common instrumentation patterns:
//
//	// Instrument an operation
//	ic := telemetry.StartOperation(ctx, "designator.resolve",
//	    attribute.String("designator", name))
//	defer ic.End(err)
//
//	// Mission context
//	ctx = telemetry.WithMissionContext(ctx, missionID, name)
//	defer telemetry.EndMissionContext(ctx, missionID, status, err)
//
//	// Goal context
//	ctx = telemetry.WithGoalContext(ctx, missionID, goalID, class)
//	defer telemetry.EndGoalContext(ctx, missionID, goalID, class, err)
//
//	// External action
//	err := telemetry.RecordActionOperation(ctx, "navigate", func() error {
//	    return nav.Navigate(ctx, target)
//	})
//
// # Configuration
//
// The package provides pre-configured setups for different environments:
//
//	// Development (verbose logging, stdout traces, full sampling)
//	cfg := telemetry.DevelopmentConfig()
//
//	// Production (JSON logs, OTLP traces, 10% sampling)
//	cfg := telemetry.ProductionConfig()
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
//
// This ensures all buffered events are published and all pending traces are
// exported.
//
// # Common Metrics
//
// Key metrics exposed:
//
//   - rove_goals_started_total{class}
//   - rove_goals_completed_total{class,outcome}
//   - rove_goal_duration_seconds{class}
//   - rove_failures_total{kind}
//   - rove_retries_total{kind}
//   - rove_navigation_retriggers_total
//   - rove_lock_acquisitions_total{class}
//   - rove_lock_wait_seconds{class}
//   - rove_lock_hold_seconds{class}
//   - rove_fluent_writes_total{fluent}
//   - rove_action_calls_total{action}
//   - rove_mission_steps_total{status}
//   - rove_active_goals
//   - rove_objects_believed
package telemetry
