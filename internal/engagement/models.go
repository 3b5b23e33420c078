package engagement

import "time"

// PermissionState is the contact-permission state of a recipient.
//
// opted_out is terminal: no update may ever move a record out of it.
type PermissionState string

const (
	PermissionNone       PermissionState = "none"
	PermissionActive     PermissionState = "active"
	PermissionCoolingOff PermissionState = "cooling_off"
	PermissionOptedOut   PermissionState = "opted_out"
)

// ParsePermissionState decodes a stored value. Unknown values decode to
// none rather than failing: a record we cannot interpret must stay
// contactable-by-default-rules, not crash policy evaluation.
func ParsePermissionState(v string) PermissionState {
	switch PermissionState(v) {
	case PermissionNone, PermissionActive, PermissionCoolingOff, PermissionOptedOut:
		return PermissionState(v)
	default:
		return PermissionNone
	}
}

// Trend is the coarse direction of the engagement score.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendStable  Trend = "stable"
	TrendFalling Trend = "falling"
)

func ParseTrend(v string) Trend {
	switch Trend(v) {
	case TrendRising, TrendStable, TrendFalling:
		return Trend(v)
	default:
		return TrendStable
	}
}

// Band buckets the continuous temperature into cold/warm/hot.
type Band string

const (
	BandCold Band = "cold"
	BandWarm Band = "warm"
	BandHot  Band = "hot"
)

func ParseBand(v string) Band {
	switch Band(v) {
	case BandCold, BandWarm, BandHot:
		return Band(v)
	default:
		return BandCold
	}
}

// BandFor derives the band from a temperature in [0,1].
func BandFor(temperature float64) Band {
	switch {
	case temperature >= 0.7:
		return BandHot
	case temperature >= 0.35:
		return BandWarm
	default:
		return BandCold
	}
}

type RiskTolerance string

const (
	RiskLow     RiskTolerance = "low"
	RiskMedium  RiskTolerance = "medium"
	RiskHigh    RiskTolerance = "high"
	RiskUnknown RiskTolerance = "unknown"
)

func ParseRiskTolerance(v string) RiskTolerance {
	switch RiskTolerance(v) {
	case RiskLow, RiskMedium, RiskHigh, RiskUnknown:
		return RiskTolerance(v)
	default:
		return RiskUnknown
	}
}

type ObjectionSeverity string

const (
	SeverityLow    ObjectionSeverity = "low"
	SeverityMedium ObjectionSeverity = "medium"
	SeverityHigh   ObjectionSeverity = "high"
)

func ParseObjectionSeverity(v string) ObjectionSeverity {
	switch ObjectionSeverity(v) {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return ObjectionSeverity(v)
	default:
		return SeverityLow
	}
}

// LifecycleStage is the coarse recipient-journey bucket.
// Progression is forward-only except for explicit reactivation.
type LifecycleStage string

const (
	StageNew       LifecycleStage = "new"
	StageEngaged   LifecycleStage = "engaged"
	StageCommitted LifecycleStage = "committed"
	StageDormant   LifecycleStage = "dormant"
	StageChurned   LifecycleStage = "churned"
)

var stageRank = map[LifecycleStage]int{
	StageNew:       0,
	StageEngaged:   1,
	StageCommitted: 2,
	StageDormant:   3,
	StageChurned:   4,
}

func ParseLifecycleStage(v string) LifecycleStage {
	if _, ok := stageRank[LifecycleStage(v)]; ok {
		return LifecycleStage(v)
	}
	return StageNew
}

// State is the engagement record for one recipient.
//
// Ownership: this subsystem is the only writer. Collaborators read
// snapshots and submit mutations through Store.SaveUpdates.
type State struct {
	RecipientID string `json:"recipient_id" db:"recipient_id"`

	PermissionState PermissionState `json:"permission_state" db:"permission_state"`
	// CoolingOffUntil is set only while PermissionState is cooling_off.
	CoolingOffUntil *time.Time `json:"cooling_off_until,omitempty" db:"cooling_off_until"`

	// Temperature is a continuous engagement score in [0,1].
	Temperature      float64 `json:"temperature" db:"temperature"`
	TemperatureTrend Trend   `json:"temperature_trend" db:"temperature_trend"`
	TemperatureBand  Band    `json:"temperature_band" db:"temperature_band"`

	RiskTolerance RiskTolerance `json:"risk_tolerance" db:"risk_tolerance"`

	LastInboundAt     *time.Time `json:"last_inbound_at,omitempty" db:"last_inbound_at"`
	LastOutboundAt    *time.Time `json:"last_outbound_at,omitempty" db:"last_outbound_at"`
	LastOutboundActor string     `json:"last_outbound_actor,omitempty" db:"last_outbound_actor"`

	// NextAllowedAt is the earliest time a new outbound attempt is permitted.
	NextAllowedAt *time.Time `json:"next_allowed_at,omitempty" db:"next_allowed_at"`

	// ContactCount7d is a rolling counter, bulk-reset on a weekly cadence.
	ContactCount7d int `json:"contact_count_7d" db:"contact_count_7d"`

	ActiveObjection     string            `json:"active_objection,omitempty" db:"active_objection"`
	ObjectionSeverity   ObjectionSeverity `json:"objection_severity,omitempty" db:"objection_severity"`
	ObjectionDetectedAt *time.Time        `json:"objection_detected_at,omitempty" db:"objection_detected_at"`
	ObjectionResolvedAt *time.Time        `json:"objection_resolved_at,omitempty" db:"objection_resolved_at"`

	PendingAction string `json:"pending_action,omitempty" db:"pending_action"`
	CurrentIntent string `json:"current_intent,omitempty" db:"current_intent"`

	LifecycleStage LifecycleStage `json:"lifecycle_stage" db:"lifecycle_stage"`

	// Flags are free-form policy overrides. Known flags are documented at
	// their check sites (see policy.FlagPauseContact).
	Flags map[string]bool `json:"flags,omitempty" db:"flags"`

	// LastDecayAt is the idempotency marker of the decay job.
	LastDecayAt *time.Time `json:"last_decay_at,omitempty" db:"last_decay_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultState is the canonical record for a recipient that has never been
// seen. "Not found" is never an error on the read path; this is the answer.
func DefaultState(recipientID string, now time.Time) State {
	return State{
		RecipientID:      recipientID,
		PermissionState:  PermissionNone,
		Temperature:      0.5,
		TemperatureTrend: TrendStable,
		TemperatureBand:  BandFor(0.5),
		RiskTolerance:    RiskUnknown,
		LifecycleStage:   StageNew,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Updates is a partial mutation of a State. Nil fields are left untouched.
//
// Rules enforced at the repository boundary:
// - opted_out is terminal; any attempt to leave it is rejected
// - a transition to cooling_off must carry CoolingOffUntil; a transition to
//   any other permission state clears it
// - temperature must stay in [0,1]
// - lifecycle stage moves forward only, unless Reactivate is set
type Updates struct {
	PermissionState *PermissionState
	CoolingOffUntil *time.Time

	Temperature      *float64
	TemperatureTrend *Trend
	TemperatureBand  *Band

	RiskTolerance *RiskTolerance

	LastInboundAt     *time.Time
	LastOutboundAt    *time.Time
	LastOutboundActor *string

	NextAllowedAt  *time.Time
	ContactCount7d *int

	ActiveObjection     *string
	ObjectionSeverity   *ObjectionSeverity
	ObjectionDetectedAt *time.Time
	ObjectionResolvedAt *time.Time

	PendingAction *string
	CurrentIntent *string

	LifecycleStage *LifecycleStage
	// Reactivate permits a backward lifecycle move (explicit reactivation).
	Reactivate bool

	// Flags replaces the whole flag map when non-nil.
	Flags map[string]bool

	LastDecayAt *time.Time
}

// IsEmpty reports whether the update would change nothing.
func (u Updates) IsEmpty() bool {
	return u.PermissionState == nil &&
		u.CoolingOffUntil == nil &&
		u.Temperature == nil &&
		u.TemperatureTrend == nil &&
		u.TemperatureBand == nil &&
		u.RiskTolerance == nil &&
		u.LastInboundAt == nil &&
		u.LastOutboundAt == nil &&
		u.LastOutboundActor == nil &&
		u.NextAllowedAt == nil &&
		u.ContactCount7d == nil &&
		u.ActiveObjection == nil &&
		u.ObjectionSeverity == nil &&
		u.ObjectionDetectedAt == nil &&
		u.ObjectionResolvedAt == nil &&
		u.PendingAction == nil &&
		u.CurrentIntent == nil &&
		u.LifecycleStage == nil &&
		u.Flags == nil &&
		u.LastDecayAt == nil
}

// Validate checks the update against the current record.
func (u Updates) Validate(current State) error {
	if u.PermissionState != nil {
		next := *u.PermissionState
		if current.PermissionState == PermissionOptedOut && next != PermissionOptedOut {
			return ErrOptedOutTerminal
		}
		if next == PermissionCoolingOff && u.CoolingOffUntil == nil {
			return ErrInvalidUpdate
		}
	}
	if u.CoolingOffUntil != nil && u.PermissionState == nil && current.PermissionState != PermissionCoolingOff {
		return ErrInvalidUpdate
	}
	if u.Temperature != nil && (*u.Temperature < 0 || *u.Temperature > 1) {
		return ErrInvalidUpdate
	}
	if u.ContactCount7d != nil && *u.ContactCount7d < 0 {
		return ErrInvalidUpdate
	}
	if u.LifecycleStage != nil && !u.Reactivate {
		if stageRank[*u.LifecycleStage] < stageRank[current.LifecycleStage] {
			return ErrLifecycleBackward
		}
	}
	return nil
}

// apply merges the update into a copy of s. Shared by the memory repository
// and by degraded in-memory evaluation; the Postgres repository performs the
// equivalent partial UPDATE.
func (u Updates) apply(s State, now time.Time) State {
	if u.PermissionState != nil {
		s.PermissionState = *u.PermissionState
		if *u.PermissionState == PermissionCoolingOff {
			s.CoolingOffUntil = u.CoolingOffUntil
		} else {
			s.CoolingOffUntil = nil
		}
	} else if u.CoolingOffUntil != nil {
		s.CoolingOffUntil = u.CoolingOffUntil
	}
	if u.Temperature != nil {
		s.Temperature = *u.Temperature
	}
	if u.TemperatureTrend != nil {
		s.TemperatureTrend = *u.TemperatureTrend
	}
	if u.TemperatureBand != nil {
		s.TemperatureBand = *u.TemperatureBand
	}
	if u.RiskTolerance != nil {
		s.RiskTolerance = *u.RiskTolerance
	}
	if u.LastInboundAt != nil {
		s.LastInboundAt = u.LastInboundAt
	}
	if u.LastOutboundAt != nil {
		s.LastOutboundAt = u.LastOutboundAt
	}
	if u.LastOutboundActor != nil {
		s.LastOutboundActor = *u.LastOutboundActor
	}
	if u.NextAllowedAt != nil {
		s.NextAllowedAt = u.NextAllowedAt
	}
	if u.ContactCount7d != nil {
		s.ContactCount7d = *u.ContactCount7d
	}
	if u.ActiveObjection != nil {
		s.ActiveObjection = *u.ActiveObjection
	}
	if u.ObjectionSeverity != nil {
		s.ObjectionSeverity = *u.ObjectionSeverity
	}
	if u.ObjectionDetectedAt != nil {
		s.ObjectionDetectedAt = u.ObjectionDetectedAt
	}
	if u.ObjectionResolvedAt != nil {
		s.ObjectionResolvedAt = u.ObjectionResolvedAt
	}
	if u.PendingAction != nil {
		s.PendingAction = *u.PendingAction
	}
	if u.CurrentIntent != nil {
		s.CurrentIntent = *u.CurrentIntent
	}
	if u.LifecycleStage != nil {
		s.LifecycleStage = *u.LifecycleStage
	}
	if u.Flags != nil {
		s.Flags = u.Flags
	}
	if u.LastDecayAt != nil {
		s.LastDecayAt = u.LastDecayAt
	}
	s.UpdatedAt = now
	return s
}
