package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// Callers should treat audit logging as best-effort: a failed append is
// reported but must never abort the operation being audited.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogCircuitReset records a manual circuit reset by an operator.
func (s *Service) LogCircuitReset(ctx context.Context, actorUserID, actorRole, identityID, message string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeCircuitReset,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IdentityID:  identityID,
		Message:     message,
	})
}

// LogMaintenanceRun records one maintenance job execution with its counts.
func (s *Service) LogMaintenanceRun(ctx context.Context, actorUserID, job, metadata string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeMaintenanceRun,
		ActorUserID: actorUserID,
		Job:         job,
		Message:     "maintenance run completed",
		Metadata:    metadata,
	})
}
