// Package telemetry emits sync-event records for processed webhook
// deliveries and reconciliation runs. Emission is best-effort and
// fire-and-forget; it never affects request outcomes.
package telemetry

import (
	"context"
	"time"
)

// SyncEvent is one record in the sync-event stream: what the engine did with
// one delivery or one reconciliation run.
type SyncEvent struct {
	// ID is a unique record id (uuid), distinct from the IdP's event id.
	ID string `json:"id"`
	// EventID is the IdP event id ("" for reconciliation records).
	EventID string `json:"event_id,omitempty"`
	// EventType is the IdP event type, or "reconciliation.completed".
	EventType string `json:"event_type"`
	// OrganizationID when the event is org-scoped.
	OrganizationID string `json:"organization_id,omitempty"`
	// Outcome is applied, skipped, ignored, or failed.
	Outcome string `json:"outcome"`
	// At is when the engine finished handling the event.
	At time.Time `json:"at"`
}

// EventEmitter emits sync events (e.g. to Kafka). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *SyncEvent) error
}
