package engagement

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Store is the cache-aside read/write path for engagement records.
//
// Reads never fail on "not found": a default record is the canonical
// answer for an unseen recipient. Durable-store read failures degrade to
// an in-memory default so policy evaluation proceeds as "untouched
// recipient" instead of blocking outbound attempts.
type Store struct {
	repo  Repository
	cache Cache
	log   *slog.Logger
	clock func() time.Time
}

func NewStore(repo Repository, cache Cache, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{repo: repo, cache: cache, log: log, clock: time.Now}
}

// Load returns the engagement record for a recipient, creating and
// persisting a default one on first reference.
func (s *Store) Load(ctx context.Context, recipientID string) (State, error) {
	if recipientID == "" {
		return State{}, ErrInvalidArgument
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, recipientID); ok {
			return cached, nil
		}
	}

	now := s.clock().UTC()
	rec, found, err := s.repo.Get(ctx, recipientID)
	if err != nil {
		// Degraded read: evaluate policy against an untouched default
		// rather than blocking every outbound attempt on storage.
		s.log.Error("engagement load failed, using default", "recipient_id", recipientID, "err", err)
		return DefaultState(recipientID, now), nil
	}
	if !found {
		rec = DefaultState(recipientID, now)
		if err := s.repo.Create(ctx, rec); err != nil {
			s.log.Error("engagement default create failed", "recipient_id", recipientID, "err", err)
			// Still serve the default; the next read retries the create.
			return rec, nil
		}
	}

	if s.cache != nil {
		s.cache.Set(ctx, recipientID, rec)
	}
	return rec, nil
}

// SaveUpdates applies a partial update. The cache entry is invalidated
// before the durable write: if the write then fails, the entry stays cold
// and the next read hits the durable store, which is safe.
func (s *Store) SaveUpdates(ctx context.Context, recipientID string, u Updates) error {
	if recipientID == "" {
		return ErrInvalidArgument
	}
	if u.IsEmpty() {
		return nil
	}

	if s.cache != nil {
		s.cache.Delete(ctx, recipientID)
	}
	if err := s.repo.ApplyUpdates(ctx, recipientID, u); err != nil {
		s.log.Error("engagement update failed", "recipient_id", recipientID, "err", err)
		return fmt.Errorf("engagement: save updates for %s: %w", recipientID, err)
	}
	return nil
}

// ResolveObjection stamps the active objection as resolved.
func (s *Store) ResolveObjection(ctx context.Context, recipientID string) error {
	now := s.clock().UTC()
	return s.SaveUpdates(ctx, recipientID, Updates{ObjectionResolvedAt: &now})
}

// FindCandidatesForDecay exposes the durable-store decay scan to the
// maintenance jobs. It bypasses the cache on purpose: the jobs need the
// persisted truth, not a snapshot.
func (s *Store) FindCandidatesForDecay(ctx context.Context, cutoff time.Time) ([]State, error) {
	return s.repo.FindCandidatesForDecay(ctx, cutoff)
}

/* ===================== bulk maintenance pass-throughs ===================== */

// The set-based jobs write directly against the durable store. Cache
// entries touched by a bulk transition go stale for at most the cache TTL,
// which the TTL bound makes acceptable.

func (s *Store) ExpireCoolingOff(ctx context.Context) (int64, error) {
	return s.repo.ExpireCoolingOff(ctx, s.clock().UTC())
}

func (s *Store) ResetWeeklyContactCounts(ctx context.Context) (int64, error) {
	return s.repo.ResetWeeklyContactCounts(ctx, s.clock().UTC())
}

func (s *Store) MarkChurned(ctx context.Context, inactiveBefore time.Time) (int64, error) {
	return s.repo.MarkChurned(ctx, inactiveBefore, s.clock().UTC())
}
