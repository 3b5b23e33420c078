package reporting

import (
	"context"
	"database/sql"
)

// PostgresRepo aggregates directly in the store with GROUP BY queries
// against the engagement_states table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) EngagementBreakdown(ctx context.Context) (Breakdown, error) {
	b := Breakdown{
		ByPermission: map[string]int{},
		ByBand:       map[string]int{},
		ByStage:      map[string]int{},
	}

	const totals = `
SELECT COUNT(*),
       COALESCE(SUM(temperature), 0),
       COUNT(*) FILTER (WHERE active_objection <> '' AND objection_resolved_at IS NULL)
FROM engagement_states
`
	err := r.db.QueryRowContext(ctx, totals).Scan(&b.Total, &b.TemperatureSum, &b.ActiveObjections)
	if err != nil {
		return Breakdown{}, err
	}

	for _, g := range []struct {
		column string
		into   map[string]int
	}{
		{"permission_state", b.ByPermission},
		{"temperature_band", b.ByBand},
		{"lifecycle_stage", b.ByStage},
	} {
		if err := r.groupCount(ctx, g.column, g.into); err != nil {
			return Breakdown{}, err
		}
	}
	return b, nil
}

func (r *PostgresRepo) groupCount(ctx context.Context, column string, into map[string]int) error {
	// column is one of the fixed names above, never caller input.
	q := `SELECT ` + column + `, COUNT(*) FROM engagement_states GROUP BY ` + column
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		into[key] = n
	}
	return rows.Err()
}
