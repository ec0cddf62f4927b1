package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrIntent    = "intent"
	attrResult    = "result"
	attrOperation = "operation"
	attrStatus    = "status"
)

// Result values for query and confirmation metrics.
const (
	ResultSuccess      = "success"
	ResultError        = "error"
	ResultNotFound     = "not_found"
	ResultExpired      = "expired"
	ResultClarify      = "clarification"
	ResultConfirmation = "confirmation"
)

// Metrics records the agent's observability metrics. The zero value is a
// no-op recorder, used when instrumentation is disabled.
type Metrics struct {
	queriesTotal       metric.Int64Counter
	confirmationsTotal metric.Int64Counter
	cancellationsTotal metric.Int64Counter
	pendingActions     metric.Int64UpDownCounter
	gatewayOpDuration  metric.Float64Histogram
}

// NewMetrics creates a Metrics instance with all instruments initialized.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.queriesTotal, err = meter.Int64Counter(
		"agent_queries_total",
		metric.WithDescription("Total number of natural language queries handled"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent_queries_total counter: %w", err)
	}

	m.confirmationsTotal, err = meter.Int64Counter(
		"agent_confirmations_total",
		metric.WithDescription("Total number of confirm requests by result"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent_confirmations_total counter: %w", err)
	}

	m.cancellationsTotal, err = meter.Int64Counter(
		"agent_cancellations_total",
		metric.WithDescription("Total number of cancel requests by result"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent_cancellations_total counter: %w", err)
	}

	m.pendingActions, err = meter.Int64UpDownCounter(
		"agent_pending_actions",
		metric.WithDescription("Number of pending actions awaiting confirmation"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent_pending_actions gauge: %w", err)
	}

	m.gatewayOpDuration, err = meter.Float64Histogram(
		"calendar_gateway_operation_duration_seconds",
		metric.WithDescription("Calendar gateway operation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar_gateway_operation_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordQuery records a handled query with the resolved intent kind and
// its result.
func (m *Metrics) RecordQuery(ctx context.Context, intentKind, result string) {
	if m == nil || m.queriesTotal == nil {
		return
	}
	m.queriesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrIntent, intentKind),
		attribute.String(attrResult, result),
	))
}

// RecordConfirmation records a confirm request by result.
func (m *Metrics) RecordConfirmation(ctx context.Context, result string) {
	if m == nil || m.confirmationsTotal == nil {
		return
	}
	m.confirmationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// RecordCancellation records a cancel request by result.
func (m *Metrics) RecordCancellation(ctx context.Context, result string) {
	if m == nil || m.cancellationsTotal == nil {
		return
	}
	m.cancellationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrResult, result),
	))
}

// PendingActionsAdd adjusts the pending actions gauge by delta.
func (m *Metrics) PendingActionsAdd(ctx context.Context, delta int64) {
	if m == nil || m.pendingActions == nil {
		return
	}
	m.pendingActions.Add(ctx, delta)
}

// RecordGatewayOperation records a calendar gateway call's duration and
// status.
func (m *Metrics) RecordGatewayOperation(ctx context.Context, operation string, duration time.Duration, err error) {
	if m == nil || m.gatewayOpDuration == nil {
		return
	}
	status := ResultSuccess
	if err != nil {
		status = ResultError
	}
	m.gatewayOpDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	))
}
