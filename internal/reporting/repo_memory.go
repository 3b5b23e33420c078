package reporting

import (
	"context"
	"sync"

	"outreach-platform/internal/engagement"
)

// MemoryRepo is a simple in-memory reporting repository for tests and early
// development.
type MemoryRepo struct {
	mu     sync.Mutex
	States []engagement.State
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) EngagementBreakdown(_ context.Context) (Breakdown, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := Breakdown{
		ByPermission: map[string]int{},
		ByBand:       map[string]int{},
		ByStage:      map[string]int{},
	}
	for _, s := range r.States {
		b.Total++
		b.TemperatureSum += s.Temperature
		b.ByPermission[string(s.PermissionState)]++
		b.ByBand[string(s.TemperatureBand)]++
		b.ByStage[string(s.LifecycleStage)]++
		if s.ActiveObjection != "" && s.ObjectionResolvedAt == nil {
			b.ActiveObjections++
		}
	}
	return b, nil
}
