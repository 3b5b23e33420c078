package engagement

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"outreach-platform/pkg/utils"
)

// NOTE: This repository assumes the following table exists:
//
//   engagement_states (
//     recipient_id          TEXT PRIMARY KEY,
//     permission_state      TEXT NOT NULL,
//     cooling_off_until     TIMESTAMPTZ,
//     temperature           DOUBLE PRECISION NOT NULL,
//     temperature_trend     TEXT NOT NULL,
//     temperature_band      TEXT NOT NULL,
//     risk_tolerance        TEXT NOT NULL,
//     last_inbound_at       TIMESTAMPTZ,
//     last_outbound_at      TIMESTAMPTZ,
//     last_outbound_actor   TEXT NOT NULL DEFAULT '',
//     next_allowed_at       TIMESTAMPTZ,
//     contact_count_7d      INT NOT NULL DEFAULT 0,
//     active_objection      TEXT NOT NULL DEFAULT '',
//     objection_severity    TEXT NOT NULL DEFAULT '',
//     objection_detected_at TIMESTAMPTZ,
//     objection_resolved_at TIMESTAMPTZ,
//     pending_action        TEXT NOT NULL DEFAULT '',
//     current_intent        TEXT NOT NULL DEFAULT '',
//     lifecycle_stage       TEXT NOT NULL,
//     flags                 JSONB NOT NULL DEFAULT '{}',
//     last_decay_at         TIMESTAMPTZ,
//     created_at            TIMESTAMPTZ NOT NULL,
//     updated_at            TIMESTAMPTZ NOT NULL
//   )

// PostgresRepository persists engagement records in Postgres via database/sql.
type PostgresRepository struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, clock: time.Now}
}

const stateColumns = `
recipient_id, permission_state, cooling_off_until,
temperature, temperature_trend, temperature_band, risk_tolerance,
last_inbound_at, last_outbound_at, last_outbound_actor,
next_allowed_at, contact_count_7d,
active_objection, objection_severity, objection_detected_at, objection_resolved_at,
pending_action, current_intent, lifecycle_stage, flags, last_decay_at,
created_at, updated_at`

func (r *PostgresRepository) Get(ctx context.Context, recipientID string) (State, bool, error) {
	if recipientID == "" {
		return State{}, false, ErrInvalidArgument
	}
	q := `SELECT ` + stateColumns + ` FROM engagement_states WHERE recipient_id = $1`
	s, err := scanState(r.db.QueryRowContext(ctx, q, recipientID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return State{}, false, nil
		}
		return State{}, false, err
	}
	return s, true, nil
}

func (r *PostgresRepository) Create(ctx context.Context, s State) error {
	if s.RecipientID == "" {
		return ErrInvalidArgument
	}
	return insertState(ctx, r.db, s)
}

// ApplyUpdates validates and applies a partial update inside a row-locked
// transaction, creating a default record first when none exists.
//
// The row lock serializes concurrent updates to the same recipient, so a
// concurrent writer's fields are merged rather than silently overwritten.
func (r *PostgresRepository) ApplyUpdates(ctx context.Context, recipientID string, u Updates) error {
	if recipientID == "" {
		return ErrInvalidArgument
	}
	if u.IsEmpty() {
		return nil
	}

	now := r.clock().UTC()
	return utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		current, found, err := lockState(ctx, tx, recipientID)
		if err != nil {
			return err
		}
		if !found {
			current = DefaultState(recipientID, now)
			if err := insertStateTx(ctx, tx, current); err != nil {
				return err
			}
		}
		if err := u.Validate(current); err != nil {
			return err
		}
		return updateState(ctx, tx, u.apply(current, now))
	})
}

func (r *PostgresRepository) FindCandidatesForDecay(ctx context.Context, cutoff time.Time) ([]State, error) {
	q := `
SELECT ` + stateColumns + `
FROM engagement_states
WHERE permission_state <> $1
  AND temperature > 0
  AND COALESCE(GREATEST(last_inbound_at, last_decay_at), created_at) < $2
ORDER BY recipient_id
`
	rows, err := r.db.QueryContext(ctx, q, string(PermissionOptedOut), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []State
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ExpireCoolingOff(ctx context.Context, now time.Time) (int64, error) {
	const q = `
UPDATE engagement_states
SET permission_state = $1, cooling_off_until = NULL, updated_at = $2
WHERE permission_state = $3 AND cooling_off_until < $2
`
	res, err := r.db.ExecContext(ctx, q, string(PermissionActive), now.UTC(), string(PermissionCoolingOff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) ResetWeeklyContactCounts(ctx context.Context, now time.Time) (int64, error) {
	const q = `
UPDATE engagement_states
SET contact_count_7d = 0, updated_at = $1
WHERE contact_count_7d > 0
`
	res, err := r.db.ExecContext(ctx, q, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRepository) MarkChurned(ctx context.Context, inactiveBefore, now time.Time) (int64, error) {
	const q = `
UPDATE engagement_states
SET lifecycle_stage = $1, updated_at = $2
WHERE permission_state <> $3
  AND lifecycle_stage <> $1
  AND last_inbound_at IS NOT NULL
  AND last_inbound_at < $4
`
	res, err := r.db.ExecContext(ctx, q, string(StageChurned), now.UTC(), string(PermissionOptedOut), inactiveBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

/* ===================== row helpers ===================== */

func lockState(ctx context.Context, tx *sql.Tx, recipientID string) (State, bool, error) {
	q := `SELECT ` + stateColumns + ` FROM engagement_states WHERE recipient_id = $1 FOR UPDATE`
	s, err := scanState(tx.QueryRowContext(ctx, q, recipientID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return State{}, false, nil
		}
		return State{}, false, err
	}
	return s, true, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertState(ctx context.Context, db execer, s State) error {
	// First write wins: racing creates for the same recipient are benign.
	q := `
INSERT INTO engagement_states (` + stateColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
ON CONFLICT (recipient_id) DO NOTHING
`
	flags, err := marshalFlags(s.Flags)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, q,
		s.RecipientID,
		string(s.PermissionState),
		s.CoolingOffUntil,
		s.Temperature,
		string(s.TemperatureTrend),
		string(s.TemperatureBand),
		string(s.RiskTolerance),
		s.LastInboundAt,
		s.LastOutboundAt,
		s.LastOutboundActor,
		s.NextAllowedAt,
		s.ContactCount7d,
		s.ActiveObjection,
		string(s.ObjectionSeverity),
		s.ObjectionDetectedAt,
		s.ObjectionResolvedAt,
		s.PendingAction,
		s.CurrentIntent,
		string(s.LifecycleStage),
		flags,
		s.LastDecayAt,
		s.CreatedAt,
		s.UpdatedAt,
	)
	return err
}

func insertStateTx(ctx context.Context, tx *sql.Tx, s State) error {
	return insertState(ctx, tx, s)
}

func updateState(ctx context.Context, tx *sql.Tx, s State) error {
	const q = `
UPDATE engagement_states SET
  permission_state = $2,
  cooling_off_until = $3,
  temperature = $4,
  temperature_trend = $5,
  temperature_band = $6,
  risk_tolerance = $7,
  last_inbound_at = $8,
  last_outbound_at = $9,
  last_outbound_actor = $10,
  next_allowed_at = $11,
  contact_count_7d = $12,
  active_objection = $13,
  objection_severity = $14,
  objection_detected_at = $15,
  objection_resolved_at = $16,
  pending_action = $17,
  current_intent = $18,
  lifecycle_stage = $19,
  flags = $20,
  last_decay_at = $21,
  updated_at = $22
WHERE recipient_id = $1
`
	flags, err := marshalFlags(s.Flags)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, q,
		s.RecipientID,
		string(s.PermissionState),
		s.CoolingOffUntil,
		s.Temperature,
		string(s.TemperatureTrend),
		string(s.TemperatureBand),
		string(s.RiskTolerance),
		s.LastInboundAt,
		s.LastOutboundAt,
		s.LastOutboundActor,
		s.NextAllowedAt,
		s.ContactCount7d,
		s.ActiveObjection,
		string(s.ObjectionSeverity),
		s.ObjectionDetectedAt,
		s.ObjectionResolvedAt,
		s.PendingAction,
		s.CurrentIntent,
		string(s.LifecycleStage),
		flags,
		s.LastDecayAt,
		s.UpdatedAt,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanState(row rowScanner) (State, error) {
	var (
		s         State
		perm      string
		trend     string
		band      string
		risk      string
		severity  string
		stage     string
		flagsJSON []byte
	)
	err := row.Scan(
		&s.RecipientID,
		&perm,
		&s.CoolingOffUntil,
		&s.Temperature,
		&trend,
		&band,
		&risk,
		&s.LastInboundAt,
		&s.LastOutboundAt,
		&s.LastOutboundActor,
		&s.NextAllowedAt,
		&s.ContactCount7d,
		&s.ActiveObjection,
		&severity,
		&s.ObjectionDetectedAt,
		&s.ObjectionResolvedAt,
		&s.PendingAction,
		&s.CurrentIntent,
		&stage,
		&flagsJSON,
		&s.LastDecayAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return State{}, err
	}

	// Unknown stored enum values decode to safe defaults; this is a
	// documented contract, not silent coercion. See the Parse functions.
	s.PermissionState = ParsePermissionState(perm)
	s.TemperatureTrend = ParseTrend(trend)
	s.TemperatureBand = ParseBand(band)
	s.RiskTolerance = ParseRiskTolerance(risk)
	if severity != "" {
		s.ObjectionSeverity = ParseObjectionSeverity(severity)
	}
	s.LifecycleStage = ParseLifecycleStage(stage)

	if len(flagsJSON) > 0 {
		if err := json.Unmarshal(flagsJSON, &s.Flags); err != nil {
			return State{}, fmt.Errorf("engagement: decode flags for %s: %w", s.RecipientID, err)
		}
	}
	return s, nil
}

func marshalFlags(flags map[string]bool) ([]byte, error) {
	if flags == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(flags)
}
