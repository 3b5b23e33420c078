package maintenance

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"outreach-platform/internal/audit"
	"outreach-platform/internal/engagement"
)

// Locker guards a scheduled job against concurrent runs from multiple
// scheduler instances. Advisory only: every job here is idempotent, the
// lock just avoids duplicated work and write pressure.
type Locker interface {
	AcquireJobLock(ctx context.Context, job string, ttl time.Duration) (bool, error)
	ReleaseJobLock(ctx context.Context, job string) error
}

// Config tunes the maintenance jobs. Zero values use the documented defaults.
type Config struct {
	BatchSize        int
	DecayHalfLife    time.Duration
	DecayPeriod      time.Duration
	InactivityWindow time.Duration
	LockTTL          time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if out.BatchSize <= 0 {
		out.BatchSize = 200
	}
	if out.DecayHalfLife <= 0 {
		out.DecayHalfLife = 14 * 24 * time.Hour
	}
	if out.DecayPeriod <= 0 {
		out.DecayPeriod = 24 * time.Hour
	}
	if out.InactivityWindow <= 0 {
		out.InactivityWindow = 90 * 24 * time.Hour
	}
	if out.LockTTL <= 0 {
		out.LockTTL = 15 * time.Minute
	}
	return out
}

// Runner executes the scheduled engagement maintenance jobs. It owns no
// scheduling itself; an external trigger invokes RunDaily/RunWeekly (or the
// individual jobs) on fixed cadences.
type Runner struct {
	store *engagement.Store
	lock  Locker         // optional
	audit *audit.Service // optional, best-effort
	log   *slog.Logger
	clock func() time.Time
	cfg   Config
}

func NewRunner(store *engagement.Store, lock Locker, auditSvc *audit.Service, log *slog.Logger, cfg Config) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		store: store,
		lock:  lock,
		audit: auditSvc,
		log:   log,
		clock: time.Now,
		cfg:   cfg.withDefaults(),
	}
}

// Report aggregates the counts of one maintenance run.
type Report struct {
	Job string `json:"job"`

	Decayed            int   `json:"decayed"`
	CoolingOffExpired  int64 `json:"cooling_off_expired"`
	Churned            int64 `json:"churned"`
	ContactCountsReset int64 `json:"contact_counts_reset"`

	// StepErrors counts failed steps; a failed step never prevents the
	// remaining steps from attempting to run.
	StepErrors int `json:"step_errors"`

	// Skipped is set when another instance holds the job lock.
	Skipped bool `json:"skipped,omitempty"`
}

// DecayAllTemperatures decays the engagement score of every candidate
// record, in batches of batchSize. Idempotent: a record decayed within the
// last decay period is skipped, so re-running the job the same day is a
// no-op. Returns the number of records mutated.
func (r *Runner) DecayAllTemperatures(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = r.cfg.BatchSize
	}
	now := r.clock().UTC()

	candidates, err := r.store.FindCandidatesForDecay(ctx, now.Add(-r.cfg.DecayPeriod))
	if err != nil {
		return 0, err
	}

	mutated := 0
	for start := 0; start < len(candidates); start += batchSize {
		end := start + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		for _, rec := range candidates[start:end] {
			if n, changed := r.decayOne(ctx, rec, now); changed {
				mutated += n
			}
		}
	}

	r.log.Info("temperature decay finished", "candidates", len(candidates), "mutated", mutated)
	return mutated, nil
}

func (r *Runner) decayOne(ctx context.Context, rec engagement.State, now time.Time) (int, bool) {
	// Idempotency guard: never apply decay twice for the same period.
	if rec.LastDecayAt != nil && now.Sub(*rec.LastDecayAt) < r.cfg.DecayPeriod {
		return 0, false
	}

	// Elapsed time counts from the most recent engagement signal, or from
	// the previous decay if that is more recent.
	anchor := rec.CreatedAt
	if rec.LastInboundAt != nil && rec.LastInboundAt.After(anchor) {
		anchor = *rec.LastInboundAt
	}
	if rec.LastDecayAt != nil && rec.LastDecayAt.After(anchor) {
		anchor = *rec.LastDecayAt
	}
	elapsed := now.Sub(anchor)
	if elapsed < r.cfg.DecayPeriod {
		return 0, false
	}

	newTemp := decayedTemperature(rec.Temperature, elapsed, r.cfg.DecayHalfLife)
	if newTemp >= rec.Temperature {
		return 0, false
	}

	trend := engagement.TrendFalling
	band := engagement.BandFor(newTemp)
	decayedAt := now
	err := r.store.SaveUpdates(ctx, rec.RecipientID, engagement.Updates{
		Temperature:      &newTemp,
		TemperatureTrend: &trend,
		TemperatureBand:  &band,
		LastDecayAt:      &decayedAt,
	})
	if err != nil {
		// Per-record failures are skipped, not fatal to the batch.
		r.log.Error("decay update failed", "recipient_id", rec.RecipientID, "err", err)
		return 0, false
	}
	return 1, true
}

// ExpireCoolingOff transitions every record whose cooling-off window has
// passed back to active. Pure set-based operation.
func (r *Runner) ExpireCoolingOff(ctx context.Context) (int64, error) {
	n, err := r.store.ExpireCoolingOff(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.log.Info("cooling-off windows expired", "count", n)
	}
	return n, nil
}

// ResetWeeklyContactCounts zeroes every non-zero rolling contact counter.
// Runs on a fixed weekly cadence, not per-recipient anniversaries.
func (r *Runner) ResetWeeklyContactCounts(ctx context.Context) (int64, error) {
	n, err := r.store.ResetWeeklyContactCounts(ctx)
	if err != nil {
		return 0, err
	}
	r.log.Info("weekly contact counters reset", "count", n)
	return n, nil
}

// UpdateLifecycleStages churns recipients with no inbound activity inside
// the inactivity window. opted_out records are left untouched.
func (r *Runner) UpdateLifecycleStages(ctx context.Context) (int64, error) {
	now := r.clock().UTC()
	n, err := r.store.MarkChurned(ctx, now.Add(-r.cfg.InactivityWindow))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.log.Info("recipients churned", "count", n)
	}
	return n, nil
}

// RunDaily executes decay, cooling-off expiry and lifecycle update in that
// fixed order. A step failure is logged and counted; later steps still run.
func (r *Runner) RunDaily(ctx context.Context) Report {
	return r.run(ctx, "daily", false)
}

// RunWeekly executes the daily sequence plus the weekly counter reset.
func (r *Runner) RunWeekly(ctx context.Context) Report {
	return r.run(ctx, "weekly", true)
}

func (r *Runner) run(ctx context.Context, job string, weekly bool) Report {
	rep := Report{Job: job}

	if release, ok := r.acquire(ctx, job); !ok {
		r.log.Info("maintenance skipped, lock held elsewhere", "job", job)
		rep.Skipped = true
		return rep
	} else if release != nil {
		defer release()
	}

	var err error
	if rep.Decayed, err = r.DecayAllTemperatures(ctx, r.cfg.BatchSize); err != nil {
		r.log.Error("decay step failed", "job", job, "err", err)
		rep.StepErrors++
	}
	if rep.CoolingOffExpired, err = r.ExpireCoolingOff(ctx); err != nil {
		r.log.Error("cooling-off step failed", "job", job, "err", err)
		rep.StepErrors++
	}
	if rep.Churned, err = r.UpdateLifecycleStages(ctx); err != nil {
		r.log.Error("lifecycle step failed", "job", job, "err", err)
		rep.StepErrors++
	}
	if weekly {
		if rep.ContactCountsReset, err = r.ResetWeeklyContactCounts(ctx); err != nil {
			r.log.Error("weekly reset step failed", "job", job, "err", err)
			rep.StepErrors++
		}
	}

	r.recordRun(ctx, rep)
	return rep
}

// acquire takes the job lock when a locker is configured. Lock outages
// degrade to running unlocked: the jobs are idempotent, and a broken lock
// backend must not stop maintenance entirely.
func (r *Runner) acquire(ctx context.Context, job string) (func(), bool) {
	if r.lock == nil {
		return nil, true
	}
	ok, err := r.lock.AcquireJobLock(ctx, job, r.cfg.LockTTL)
	if err != nil {
		r.log.Warn("job lock unavailable, running unlocked", "job", job, "err", err)
		return nil, true
	}
	if !ok {
		return nil, false
	}
	return func() {
		if err := r.lock.ReleaseJobLock(ctx, job); err != nil {
			r.log.Warn("job lock release failed", "job", job, "err", err)
		}
	}, true
}

func (r *Runner) recordRun(ctx context.Context, rep Report) {
	if r.audit == nil {
		return
	}
	meta, err := json.Marshal(rep)
	if err != nil {
		return
	}
	if err := r.audit.LogMaintenanceRun(ctx, "scheduler", rep.Job, string(meta)); err != nil {
		r.log.Warn("maintenance audit append failed", "job", rep.Job, "err", err)
	}
}
