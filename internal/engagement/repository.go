package engagement

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidArgument = errors.New("engagement: invalid argument")
	ErrInvalidUpdate   = errors.New("engagement: invalid update")

	// ErrOptedOutTerminal rejects any attempt to move a record out of
	// opted_out. Surfaced to callers, never silently applied.
	ErrOptedOutTerminal = errors.New("engagement: opted_out is terminal")

	// ErrLifecycleBackward rejects a backward lifecycle move without an
	// explicit reactivation.
	ErrLifecycleBackward = errors.New("engagement: lifecycle stage cannot move backward")
)

// Repository is the durable-store contract for engagement records.
//
// Records are never hard-deleted; opted_out and churned are terminal
// logical states. "Not found" is represented by the found flag on Get,
// not by an error.
type Repository interface {
	Get(ctx context.Context, recipientID string) (State, bool, error)

	// Create persists a new record. Racing creates for the same recipient
	// must not fail; the first write wins.
	Create(ctx context.Context, s State) error

	// ApplyUpdates performs a validated partial update. It enforces the
	// Updates rules (opted_out terminal, cooling-off pairing, lifecycle
	// direction) and creates a default record if none exists yet.
	ApplyUpdates(ctx context.Context, recipientID string, u Updates) error

	// FindCandidatesForDecay returns records eligible for temperature
	// decay: not opted out, temperature above zero, and no engagement or
	// decay activity since the cutoff.
	FindCandidatesForDecay(ctx context.Context, cutoff time.Time) ([]State, error)

	// ExpireCoolingOff bulk-transitions records whose cooling-off window
	// has passed back to active. Returns the number of rows changed.
	ExpireCoolingOff(ctx context.Context, now time.Time) (int64, error)

	// ResetWeeklyContactCounts bulk-zeroes every non-zero rolling counter.
	ResetWeeklyContactCounts(ctx context.Context, now time.Time) (int64, error)

	// MarkChurned bulk-transitions records with no inbound activity since
	// inactiveBefore to churned. Skips opted_out records and records that
	// are already churned.
	MarkChurned(ctx context.Context, inactiveBefore, now time.Time) (int64, error)
}
