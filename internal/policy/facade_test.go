package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"outreach-platform/internal/circuit"
	"outreach-platform/internal/engagement"
)

func newTestFacade(t *testing.T) (*Facade, *circuit.Registry, *engagement.MemoryRepository, time.Time) {
	t.Helper()
	base := time.Now().UTC().Truncate(time.Second)
	reg := circuit.NewRegistry(circuit.Options{FailureThreshold: 3, ResetTimeout: 300 * time.Second})
	repo := engagement.NewMemoryRepository()
	repo.SetClock(func() time.Time { return base })
	f := NewFacade(reg, engagement.NewStore(repo, nil, nil), Gaps{}, nil)
	f.clock = func() time.Time { return base }
	return f, reg, repo, base
}

func tripCircuit(reg *circuit.Registry, identityID string) {
	for i := 0; i < 3; i++ {
		reg.RegisterFailure(identityID, 500, "send failed")
	}
}

func TestMayContact_AllowsByDefault(t *testing.T) {
	f, _, _, _ := newTestFacade(t)

	d, err := f.MayContact(context.Background(), "id-1", "r-1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !d.Allowed || d.Reason != ReasonAllowed {
		t.Fatalf("expected allow for an untouched recipient, got %+v", d)
	}
}

func TestMayContact_DeniesWhenCircuitOpen(t *testing.T) {
	f, reg, _, _ := newTestFacade(t)
	tripCircuit(reg, "id-1")

	d, err := f.MayContact(context.Background(), "id-1", "r-1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if d.Allowed || d.Reason != ReasonIdentityUnavailable {
		t.Fatalf("expected identity_unavailable, got %+v", d)
	}

	// Other identities are unaffected.
	d, _ = f.MayContact(context.Background(), "id-2", "r-1")
	if !d.Allowed {
		t.Fatalf("expected other identity allowed, got %+v", d)
	}
}

func TestMayContact_OptedOutIsTerminal(t *testing.T) {
	f, _, repo, _ := newTestFacade(t)
	opted := engagement.PermissionOptedOut
	if err := repo.ApplyUpdates(context.Background(), "r-1", engagement.Updates{PermissionState: &opted}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	d, err := f.MayContact(context.Background(), "id-1", "r-1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if d.Allowed || d.Reason != ReasonOptedOut {
		t.Fatalf("expected opted_out, got %+v", d)
	}
	if d.RetryAfter != 0 {
		t.Fatalf("terminal denial must carry no retry hint, got %v", d.RetryAfter)
	}
}

func TestMayContact_PauseFlagOverrides(t *testing.T) {
	f, _, repo, _ := newTestFacade(t)
	err := repo.ApplyUpdates(context.Background(), "r-1", engagement.Updates{
		Flags: map[string]bool{FlagPauseContact: true},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	d, _ := f.MayContact(context.Background(), "id-1", "r-1")
	if d.Allowed || d.Reason != ReasonContactPaused {
		t.Fatalf("expected contact_paused, got %+v", d)
	}
}

func TestMayContact_CoolingOffCarriesRetryAfter(t *testing.T) {
	f, _, repo, base := newTestFacade(t)
	cooling := engagement.PermissionCoolingOff
	until := base.Add(6 * time.Hour)
	err := repo.ApplyUpdates(context.Background(), "r-1", engagement.Updates{
		PermissionState: &cooling,
		CoolingOffUntil: &until,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	d, _ := f.MayContact(context.Background(), "id-1", "r-1")
	if d.Allowed || d.Reason != ReasonCoolingOff {
		t.Fatalf("expected cooling_off, got %+v", d)
	}
	if d.RetryAfter != 6*time.Hour {
		t.Fatalf("expected retry after 6h, got %v", d.RetryAfter)
	}
}

func TestMayContact_ExpiredCoolingOffAllows(t *testing.T) {
	f, _, repo, base := newTestFacade(t)
	cooling := engagement.PermissionCoolingOff
	until := base.Add(-time.Minute)
	err := repo.ApplyUpdates(context.Background(), "r-1", engagement.Updates{
		PermissionState: &cooling,
		CoolingOffUntil: &until,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// The deadline has passed even though the bulk expiry job has not run.
	d, _ := f.MayContact(context.Background(), "id-1", "r-1")
	if !d.Allowed {
		t.Fatalf("expected allow once the deadline passed, got %+v", d)
	}
}

func TestMayContact_RateLimited(t *testing.T) {
	f, _, repo, base := newTestFacade(t)
	next := base.Add(30 * time.Minute)
	err := repo.ApplyUpdates(context.Background(), "r-1", engagement.Updates{NextAllowedAt: &next})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	d, _ := f.MayContact(context.Background(), "id-1", "r-1")
	if d.Allowed || d.Reason != ReasonRateLimited {
		t.Fatalf("expected rate_limited, got %+v", d)
	}
	if d.RetryAfter != 30*time.Minute {
		t.Fatalf("expected retry after 30m, got %v", d.RetryAfter)
	}
}

func TestMayContact_InvalidArguments(t *testing.T) {
	f, _, _, _ := newTestFacade(t)
	if _, err := f.MayContact(context.Background(), "", "r-1"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := f.MayContact(context.Background(), "id-1", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRecordAttempt_BooksRateWindow(t *testing.T) {
	f, _, repo, base := newTestFacade(t)

	if err := f.RecordAttempt(context.Background(), "id-1", "r-1", "agent:42"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	rec, found, _ := repo.Get(context.Background(), "r-1")
	if !found {
		t.Fatalf("expected record created")
	}
	if rec.ContactCount7d != 1 {
		t.Fatalf("expected contact count 1, got %d", rec.ContactCount7d)
	}
	if rec.LastOutboundAt == nil || !rec.LastOutboundAt.Equal(base) {
		t.Fatalf("expected last_outbound_at stamped, got %v", rec.LastOutboundAt)
	}
	if rec.LastOutboundActor != "agent:42" {
		t.Fatalf("expected actor recorded, got %q", rec.LastOutboundActor)
	}
	// Default temperature 0.5 sits in the warm band, gap 72h.
	want := base.Add(72 * time.Hour)
	if rec.NextAllowedAt == nil || !rec.NextAllowedAt.Equal(want) {
		t.Fatalf("expected next_allowed_at %v, got %v", want, rec.NextAllowedAt)
	}

	// The booked window immediately rate-limits the next decision.
	d, _ := f.MayContact(context.Background(), "id-1", "r-1")
	if d.Allowed || d.Reason != ReasonRateLimited {
		t.Fatalf("expected rate_limited after booking, got %+v", d)
	}
}

func TestRecordAttempt_HotBandUsesShortGap(t *testing.T) {
	f, _, repo, base := newTestFacade(t)
	temp := 0.9
	band := engagement.BandFor(temp)
	err := repo.ApplyUpdates(context.Background(), "r-1", engagement.Updates{
		Temperature:     &temp,
		TemperatureBand: &band,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := f.RecordAttempt(context.Background(), "id-1", "r-1", ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	rec, _, _ := repo.Get(context.Background(), "r-1")
	want := base.Add(24 * time.Hour)
	if rec.NextAllowedAt == nil || !rec.NextAllowedAt.Equal(want) {
		t.Fatalf("expected hot-band gap 24h, got %v", rec.NextAllowedAt)
	}
}
