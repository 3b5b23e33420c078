package audit

import "time"

// Event is an immutable, append-only internal audit record.
//
// Invariants:
// - Events are never updated or deleted.
// - Audit is best-effort; operational flows must not block on audit failures.
//
// Storage recommendation (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: partition by time for retention.

type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated operator causing the event, if any.
	// Maintenance runs triggered by the scheduler use the actor "scheduler".
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// Target identifiers (optional, depending on the event type).
	IdentityID  string `json:"identity_id,omitempty" db:"identity_id"`
	RecipientID string `json:"recipient_id,omitempty" db:"recipient_id"`
	Job         string `json:"job,omitempty" db:"job"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details (e.g. maintenance counts).
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCircuitReset   EventType = "circuit_reset"
	EventTypeMaintenanceRun EventType = "maintenance_run"
)
