package engagement

import (
	"testing"
	"time"
)

func TestParseEnums_UnknownFallsBackToSafeDefault(t *testing.T) {
	if got := ParsePermissionState("banana"); got != PermissionNone {
		t.Fatalf("expected none, got %q", got)
	}
	if got := ParseTrend(""); got != TrendStable {
		t.Fatalf("expected stable, got %q", got)
	}
	if got := ParseBand("scorching"); got != BandCold {
		t.Fatalf("expected cold, got %q", got)
	}
	if got := ParseRiskTolerance("extreme"); got != RiskUnknown {
		t.Fatalf("expected unknown, got %q", got)
	}
	if got := ParseLifecycleStage("vip"); got != StageNew {
		t.Fatalf("expected new, got %q", got)
	}
}

func TestParseEnums_KnownValuesRoundTrip(t *testing.T) {
	if got := ParsePermissionState("opted_out"); got != PermissionOptedOut {
		t.Fatalf("expected opted_out, got %q", got)
	}
	if got := ParseLifecycleStage("churned"); got != StageChurned {
		t.Fatalf("expected churned, got %q", got)
	}
}

func TestBandFor(t *testing.T) {
	cases := []struct {
		temp float64
		want Band
	}{
		{0, BandCold},
		{0.34, BandCold},
		{0.35, BandWarm},
		{0.5, BandWarm},
		{0.69, BandWarm},
		{0.7, BandHot},
		{1, BandHot},
	}
	for _, tc := range cases {
		if got := BandFor(tc.temp); got != tc.want {
			t.Fatalf("BandFor(%v) = %q, want %q", tc.temp, got, tc.want)
		}
	}
}

func TestDefaultState(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := DefaultState("r1", now)
	if s.PermissionState != PermissionNone {
		t.Fatalf("expected none, got %q", s.PermissionState)
	}
	if s.Temperature != 0.5 {
		t.Fatalf("expected temperature 0.5, got %v", s.Temperature)
	}
	if s.TemperatureBand != BandWarm {
		t.Fatalf("expected warm band for default temperature, got %q", s.TemperatureBand)
	}
	if s.LifecycleStage != StageNew {
		t.Fatalf("expected new stage, got %q", s.LifecycleStage)
	}
}

func TestUpdatesValidate_OptedOutIsTerminal(t *testing.T) {
	current := State{RecipientID: "r1", PermissionState: PermissionOptedOut}

	active := PermissionActive
	if err := (Updates{PermissionState: &active}).Validate(current); err != ErrOptedOutTerminal {
		t.Fatalf("expected ErrOptedOutTerminal, got %v", err)
	}

	// Re-asserting opted_out is allowed (idempotent opt-out webhooks).
	opted := PermissionOptedOut
	if err := (Updates{PermissionState: &opted}).Validate(current); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestUpdatesValidate_CoolingOffRequiresDeadline(t *testing.T) {
	current := State{RecipientID: "r1", PermissionState: PermissionActive}

	cooling := PermissionCoolingOff
	if err := (Updates{PermissionState: &cooling}).Validate(current); err != ErrInvalidUpdate {
		t.Fatalf("expected ErrInvalidUpdate without deadline, got %v", err)
	}

	until := time.Now().Add(24 * time.Hour)
	if err := (Updates{PermissionState: &cooling, CoolingOffUntil: &until}).Validate(current); err != nil {
		t.Fatalf("expected nil with deadline, got %v", err)
	}

	// A bare deadline on a non-cooling-off record makes no sense.
	if err := (Updates{CoolingOffUntil: &until}).Validate(current); err != ErrInvalidUpdate {
		t.Fatalf("expected ErrInvalidUpdate for orphan deadline, got %v", err)
	}
}

func TestUpdatesValidate_TemperatureRange(t *testing.T) {
	current := State{RecipientID: "r1"}
	for _, bad := range []float64{-0.1, 1.01} {
		v := bad
		if err := (Updates{Temperature: &v}).Validate(current); err != ErrInvalidUpdate {
			t.Fatalf("expected ErrInvalidUpdate for %v, got %v", bad, err)
		}
	}
	ok := 0.42
	if err := (Updates{Temperature: &ok}).Validate(current); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestUpdatesValidate_LifecycleForwardOnly(t *testing.T) {
	current := State{RecipientID: "r1", LifecycleStage: StageCommitted}

	back := StageEngaged
	if err := (Updates{LifecycleStage: &back}).Validate(current); err != ErrLifecycleBackward {
		t.Fatalf("expected ErrLifecycleBackward, got %v", err)
	}
	if err := (Updates{LifecycleStage: &back, Reactivate: true}).Validate(current); err != nil {
		t.Fatalf("expected nil with explicit reactivation, got %v", err)
	}
	forward := StageChurned
	if err := (Updates{LifecycleStage: &forward}).Validate(current); err != nil {
		t.Fatalf("expected nil for forward move, got %v", err)
	}
}

func TestUpdatesApply_PermissionTransitionClearsCoolingOff(t *testing.T) {
	until := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	current := State{RecipientID: "r1", PermissionState: PermissionCoolingOff, CoolingOffUntil: &until}

	active := PermissionActive
	now := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)
	next := (Updates{PermissionState: &active}).apply(current, now)
	if next.PermissionState != PermissionActive {
		t.Fatalf("expected active, got %q", next.PermissionState)
	}
	if next.CoolingOffUntil != nil {
		t.Fatalf("expected cooling_off_until cleared")
	}
	if !next.UpdatedAt.Equal(now) {
		t.Fatalf("expected updated_at stamped")
	}
}
