package webhook

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/leokalinowski/purpose-driven-crm/engine/pipeline"
)

const (
	outcomeSuccess   = "success"
	outcomeSkipped   = "skipped"
	outcomeDuplicate = "duplicate"
	outcomeError     = "error"
)

// Metrics instruments webhook processing. A nil meter disables every
// method, so wiring stays unconditional at call sites.
type Metrics struct {
	meter             metric.Meter
	receivedTotal     metric.Int64Counter
	unauthorizedTotal metric.Int64Counter
	outcomeTotal      metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{meter: meter}
	if meter == nil {
		return m, nil
	}
	var err error
	if m.receivedTotal, err = meter.Int64Counter(
		"webhook_received_total",
		metric.WithDescription("Total webhook requests received"),
	); err != nil {
		return nil, fmt.Errorf("creating received counter: %w", err)
	}
	if m.unauthorizedTotal, err = meter.Int64Counter(
		"webhook_unauthorized_total",
		metric.WithDescription("Total webhook requests failing signature verification"),
	); err != nil {
		return nil, fmt.Errorf("creating unauthorized counter: %w", err)
	}
	if m.outcomeTotal, err = meter.Int64Counter(
		"webhook_outcome_total",
		metric.WithDescription("Schedule invocations by outcome"),
	); err != nil {
		return nil, fmt.Errorf("creating outcome counter: %w", err)
	}
	return m, nil
}

func (m *Metrics) Received(ctx context.Context) {
	if m == nil || m.receivedTotal == nil {
		return
	}
	m.receivedTotal.Add(ctx, 1)
}

func (m *Metrics) Unauthorized(ctx context.Context) {
	if m == nil || m.unauthorizedTotal == nil {
		return
	}
	m.unauthorizedTotal.Add(ctx, 1)
}

func (m *Metrics) ScheduleOutcome(ctx context.Context, result *pipeline.ScheduleResult, err error) {
	if m == nil || m.outcomeTotal == nil {
		return
	}
	outcome := outcomeSuccess
	switch {
	case err != nil:
		outcome = outcomeError
	case result == nil:
		outcome = outcomeError
	case result.Duplicate:
		outcome = outcomeDuplicate
	case result.Skipped:
		outcome = outcomeSkipped
	}
	m.outcomeTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
