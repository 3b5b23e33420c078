package reporting

import "outreach-platform/internal/circuit"

// Breakdown is the raw aggregate a repository returns for the engagement
// population. Maps are keyed by the stored enum value.
type Breakdown struct {
	Total            int
	TemperatureSum   float64
	ByPermission     map[string]int
	ByBand           map[string]int
	ByStage          map[string]int
	ActiveObjections int
}

// EngagementSummary is the operator-facing engagement report.
type EngagementSummary struct {
	TotalRecipients    int     `json:"total_recipients"`
	AverageTemperature float64 `json:"average_temperature"`

	ByPermissionState map[string]int `json:"by_permission_state"`
	ByTemperatureBand map[string]int `json:"by_temperature_band"`
	ByLifecycleStage  map[string]int `json:"by_lifecycle_stage"`

	ActiveObjections int     `json:"active_objections"`
	OptedOutRate     float64 `json:"opted_out_rate"`
}

// CircuitSummary reports the sending-identity circuit population. Snapshot
// of process-local state; other instances report their own circuits.
type CircuitSummary struct {
	TotalCircuits  int                       `json:"total_circuits"`
	OpenIdentities []string                  `json:"open_identities"`
	Statuses       map[string]circuit.Status `json:"statuses"`
}
