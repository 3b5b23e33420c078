package maintenance

import (
	"testing"
	"time"
)

func TestDecayedTemperature_HalfLife(t *testing.T) {
	halfLife := 14 * 24 * time.Hour

	got := decayedTemperature(0.8, halfLife, halfLife)
	if got < 0.399 || got > 0.401 {
		t.Fatalf("expected one half-life to halve 0.8, got %f", got)
	}

	got = decayedTemperature(0.8, 2*halfLife, halfLife)
	if got < 0.199 || got > 0.201 {
		t.Fatalf("expected two half-lives to quarter 0.8, got %f", got)
	}
}

func TestDecayedTemperature_MonotonicDecreasing(t *testing.T) {
	halfLife := 14 * 24 * time.Hour
	prev := 1.0
	for days := 1; days <= 60; days += 7 {
		got := decayedTemperature(1.0, time.Duration(days)*24*time.Hour, halfLife)
		if got >= prev {
			t.Fatalf("expected strictly decreasing temperature, got %f after %f at %d days", got, prev, days)
		}
		prev = got
	}
}

func TestDecayedTemperature_ZeroStaysZero(t *testing.T) {
	if got := decayedTemperature(0, 48*time.Hour, 14*24*time.Hour); got != 0 {
		t.Fatalf("expected zero temperature to stay zero, got %f", got)
	}
}

func TestDecayedTemperature_SnapsToZeroBelowFloor(t *testing.T) {
	// A year of decay on a 14-day half-life leaves nothing meaningful.
	if got := decayedTemperature(0.9, 365*24*time.Hour, 14*24*time.Hour); got != 0 {
		t.Fatalf("expected floor snap to zero, got %f", got)
	}
}

func TestClampTemperature_CapsAtOne(t *testing.T) {
	if got := clampTemperature(1.2); got != 1 {
		t.Fatalf("expected cap at 1, got %f", got)
	}
}
