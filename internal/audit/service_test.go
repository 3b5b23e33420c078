package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogCircuitReset(context.Background(), "u1", "operator", "chip-a", "manual reset after provider fix"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].Type != EventTypeCircuitReset {
		t.Fatalf("expected circuit_reset, got %q", evs[0].Type)
	}
	if evs[0].IdentityID != "chip-a" {
		t.Fatalf("expected identity captured")
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and created_at populated")
	}
}

func TestService_LogMaintenanceRunCarriesCounts(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogMaintenanceRun(context.Background(), "scheduler", "daily", `{"decayed":12}`); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	evs := repo.Events()
	if len(evs) != 1 || evs[0].Job != "daily" || evs[0].Metadata != `{"decayed":12}` {
		t.Fatalf("expected maintenance metadata captured, got %+v", evs)
	}
}
