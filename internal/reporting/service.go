package reporting

import (
	"context"
	"errors"

	"outreach-platform/internal/circuit"
)

// Repository abstracts data access for reporting.
//
// Implementations aggregate in the store where possible; reports run over
// the whole engagement population, not per-recipient reads.
type Repository interface {
	EngagementBreakdown(ctx context.Context) (Breakdown, error)
}

type Service struct {
	repo     Repository
	circuits *circuit.Registry
}

func NewService(repo Repository, circuits *circuit.Registry) *Service {
	return &Service{repo: repo, circuits: circuits}
}

// EngagementSummary aggregates the engagement population for operators.
func (s *Service) EngagementSummary(ctx context.Context) (EngagementSummary, error) {
	if s.repo == nil {
		return EngagementSummary{}, errors.New("reporting: repository not configured")
	}

	b, err := s.repo.EngagementBreakdown(ctx)
	if err != nil {
		return EngagementSummary{}, err
	}

	out := EngagementSummary{
		TotalRecipients:   b.Total,
		ByPermissionState: b.ByPermission,
		ByTemperatureBand: b.ByBand,
		ByLifecycleStage:  b.ByStage,
		ActiveObjections:  b.ActiveObjections,
	}
	if out.ByPermissionState == nil {
		out.ByPermissionState = map[string]int{}
	}
	if out.ByTemperatureBand == nil {
		out.ByTemperatureBand = map[string]int{}
	}
	if out.ByLifecycleStage == nil {
		out.ByLifecycleStage = map[string]int{}
	}
	if b.Total > 0 {
		out.AverageTemperature = b.TemperatureSum / float64(b.Total)
		out.OptedOutRate = float64(out.ByPermissionState["opted_out"]) / float64(b.Total)
	}
	return out, nil
}

// CircuitSummary snapshots every known sending-identity circuit.
func (s *Service) CircuitSummary() (CircuitSummary, error) {
	if s.circuits == nil {
		return CircuitSummary{}, errors.New("reporting: circuit registry not configured")
	}
	statuses := s.circuits.AllStatuses()
	return CircuitSummary{
		TotalCircuits:  len(statuses),
		OpenIdentities: s.circuits.OpenIdentities(),
		Statuses:       statuses,
	}, nil
}
