package policy

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"outreach-platform/internal/circuit"
	"outreach-platform/internal/engagement"
)

var ErrInvalidArgument = errors.New("policy: invalid argument")

// Gaps are the minimum intervals between outbound attempts per temperature
// band. Hotter recipients tolerate more frequent contact.
type Gaps struct {
	Hot  time.Duration
	Warm time.Duration
	Cold time.Duration
}

func (g Gaps) withDefaults() Gaps {
	out := g
	if out.Hot <= 0 {
		out.Hot = 24 * time.Hour
	}
	if out.Warm <= 0 {
		out.Warm = 72 * time.Hour
	}
	if out.Cold <= 0 {
		out.Cold = 168 * time.Hour
	}
	return out
}

func (g Gaps) forBand(b engagement.Band) time.Duration {
	switch b {
	case engagement.BandHot:
		return g.Hot
	case engagement.BandWarm:
		return g.Warm
	default:
		return g.Cold
	}
}

// Facade is the single call site consulted immediately before sending.
// It combines identity-circuit health and recipient engagement state into
// one decision; it never blocks sending on an unhandled fault.
type Facade struct {
	circuits *circuit.Registry
	states   *engagement.Store
	gaps     Gaps
	log      *slog.Logger
	clock    func() time.Time
}

func NewFacade(circuits *circuit.Registry, states *engagement.Store, gaps Gaps, log *slog.Logger) *Facade {
	if log == nil {
		log = slog.Default()
	}
	return &Facade{
		circuits: circuits,
		states:   states,
		gaps:     gaps.withDefaults(),
		log:      log,
		clock:    time.Now,
	}
}

// MayContact decides whether identityID may contact recipientID right now.
//
// Check order is deliberate: identity health first (cheapest, avoids a
// recipient read for a known-bad identity), then the terminal recipient
// state, then the explicit pause override, then the time-bounded states.
// The decision is a best-effort snapshot, not a reservation: two concurrent
// calls for the same pair can both be allowed.
func (f *Facade) MayContact(ctx context.Context, identityID, recipientID string) (Decision, error) {
	if identityID == "" || recipientID == "" {
		return Decision{}, ErrInvalidArgument
	}

	if !f.circuits.CanUse(identityID) {
		return deny(ReasonIdentityUnavailable), nil
	}

	rec, err := f.states.Load(ctx, recipientID)
	if err != nil {
		return Decision{}, err
	}
	now := f.clock().UTC()

	if rec.PermissionState == engagement.PermissionOptedOut {
		return deny(ReasonOptedOut), nil
	}
	if rec.Flags[FlagPauseContact] {
		return deny(ReasonContactPaused), nil
	}
	if rec.PermissionState == engagement.PermissionCoolingOff &&
		rec.CoolingOffUntil != nil && rec.CoolingOffUntil.After(now) {
		return denyFor(ReasonCoolingOff, rec.CoolingOffUntil.Sub(now)), nil
	}
	if rec.NextAllowedAt != nil && rec.NextAllowedAt.After(now) {
		return denyFor(ReasonRateLimited, rec.NextAllowedAt.Sub(now)), nil
	}

	return allow(), nil
}

// RecordAttempt books an outbound attempt against the recipient: bumps the
// rolling contact counter, stamps the outbound marker, and pushes
// next_allowed_at forward by the gap for the recipient's temperature band.
// Circuit outcome reporting is separate; the caller registers
// success/failure on the registry once the attempt completes.
func (f *Facade) RecordAttempt(ctx context.Context, identityID, recipientID, actor string) error {
	if identityID == "" || recipientID == "" {
		return ErrInvalidArgument
	}

	rec, err := f.states.Load(ctx, recipientID)
	if err != nil {
		return err
	}

	now := f.clock().UTC()
	count := rec.ContactCount7d + 1
	next := now.Add(f.gaps.forBand(rec.TemperatureBand))
	u := engagement.Updates{
		ContactCount7d: &count,
		LastOutboundAt: &now,
		NextAllowedAt:  &next,
	}
	if actor != "" {
		u.LastOutboundActor = &actor
	}

	if err := f.states.SaveUpdates(ctx, recipientID, u); err != nil {
		return err
	}
	f.log.Debug("outbound attempt recorded",
		"identity_id", identityID,
		"recipient_id", recipientID,
		"contact_count_7d", count,
		"next_allowed_at", next,
	)
	return nil
}
