package engagement

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository used by tests and local
// wiring. It mirrors the Postgres repository's semantics, including the
// validation performed at the repository boundary.
type MemoryRepository struct {
	mu     sync.Mutex
	states map[string]State
	clock  func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{states: make(map[string]State), clock: time.Now}
}

// SetClock overrides the repository clock for deterministic tests.
func (r *MemoryRepository) SetClock(clock func() time.Time) { r.clock = clock }

func (r *MemoryRepository) Get(_ context.Context, recipientID string) (State, bool, error) {
	if recipientID == "" {
		return State{}, false, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[recipientID]
	return s, ok, nil
}

func (r *MemoryRepository) Create(_ context.Context, s State) error {
	if s.RecipientID == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.states[s.RecipientID]; exists {
		// First write wins, matching ON CONFLICT DO NOTHING.
		return nil
	}
	r.states[s.RecipientID] = s
	return nil
}

func (r *MemoryRepository) ApplyUpdates(_ context.Context, recipientID string, u Updates) error {
	if recipientID == "" {
		return ErrInvalidArgument
	}
	if u.IsEmpty() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock().UTC()
	current, ok := r.states[recipientID]
	if !ok {
		current = DefaultState(recipientID, now)
	}
	if err := u.Validate(current); err != nil {
		return err
	}
	r.states[recipientID] = u.apply(current, now)
	return nil
}

func (r *MemoryRepository) FindCandidatesForDecay(_ context.Context, cutoff time.Time) ([]State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []State
	for _, s := range r.states {
		if s.PermissionState == PermissionOptedOut || s.Temperature <= 0 {
			continue
		}
		anchor := s.CreatedAt
		if s.LastInboundAt != nil && s.LastInboundAt.After(anchor) {
			anchor = *s.LastInboundAt
		}
		if s.LastDecayAt != nil && s.LastDecayAt.After(anchor) {
			anchor = *s.LastDecayAt
		}
		if anchor.Before(cutoff) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecipientID < out[j].RecipientID })
	return out, nil
}

func (r *MemoryRepository) ExpireCoolingOff(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, s := range r.states {
		if s.PermissionState != PermissionCoolingOff {
			continue
		}
		if s.CoolingOffUntil == nil || !s.CoolingOffUntil.Before(now) {
			continue
		}
		s.PermissionState = PermissionActive
		s.CoolingOffUntil = nil
		s.UpdatedAt = now.UTC()
		r.states[id] = s
		n++
	}
	return n, nil
}

func (r *MemoryRepository) ResetWeeklyContactCounts(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, s := range r.states {
		if s.ContactCount7d == 0 {
			continue
		}
		s.ContactCount7d = 0
		s.UpdatedAt = now.UTC()
		r.states[id] = s
		n++
	}
	return n, nil
}

func (r *MemoryRepository) MarkChurned(_ context.Context, inactiveBefore, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, s := range r.states {
		if s.PermissionState == PermissionOptedOut || s.LifecycleStage == StageChurned {
			continue
		}
		if s.LastInboundAt == nil || !s.LastInboundAt.Before(inactiveBefore) {
			continue
		}
		s.LifecycleStage = StageChurned
		s.UpdatedAt = now.UTC()
		r.states[id] = s
		n++
	}
	return n, nil
}
