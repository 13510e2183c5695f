package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the engine's counters. A nil *Metrics is valid and records
// nothing, so wiring stays optional in tests.
type Metrics struct {
	eventsHandled metric.Int64Counter
	reconcileRuns metric.Int64Counter
	reconcileOrgs metric.Int64Counter
}

// NewMetrics creates the engine's instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	eventsHandled, err := meter.Int64Counter("membersync.webhook.events",
		metric.WithDescription("Webhook events handled, by type and outcome"))
	if err != nil {
		return nil, err
	}
	reconcileRuns, err := meter.Int64Counter("membersync.reconcile.runs",
		metric.WithDescription("Reconciliation runs completed"))
	if err != nil {
		return nil, err
	}
	reconcileOrgs, err := meter.Int64Counter("membersync.reconcile.organizations",
		metric.WithDescription("Organizations processed by reconciliation"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		eventsHandled: eventsHandled,
		reconcileRuns: reconcileRuns,
		reconcileOrgs: reconcileOrgs,
	}, nil
}

// RecordEvent counts one handled webhook event.
func (m *Metrics) RecordEvent(ctx context.Context, eventType, outcome string) {
	if m == nil {
		return
	}
	m.eventsHandled.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("event.type", eventType),
			attribute.String("outcome", outcome),
		))
}

// RecordReconcileRun counts one completed reconciliation run and the
// organizations it touched.
func (m *Metrics) RecordReconcileRun(ctx context.Context, orgs int, failed int) {
	if m == nil {
		return
	}
	m.reconcileRuns.Add(ctx, 1)
	m.reconcileOrgs.Add(ctx, int64(orgs),
		metric.WithAttributes(attribute.Int("failed", failed)))
}
