// Package jobs contains the scheduled maintenance jobs of the gamification engine.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/campushub/gamification/internal/application/engine"
	"github.com/campushub/gamification/internal/domain/gamification"
	"github.com/campushub/gamification/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE LEDGER JOB
// ══════════════════════════════════════════════════════════════════════════════

// Auditor compares a user's aggregate with the ledger.
type Auditor interface {
	AuditUser(ctx context.Context, user *gamification.User) (engine.AuditReport, error)
}

// ReconcileStats contains statistics from a reconciliation run.
type ReconcileStats struct {
	StartedAt    time.Time
	CompletedAt  time.Time
	Duration     time.Duration
	UsersChecked int
	PointsDrift  int
	LevelDrift   int
	Errors       int
}

// Drifted returns the number of users with any inconsistency.
func (s ReconcileStats) Drifted() int {
	return s.PointsDrift + s.LevelDrift
}

// ReconcileLedgerJob checks every user's cached total against the ledger sum
// and the stored level against the experience. It reports and never repairs:
// a drifted user needs a human to decide which side is right.
type ReconcileLedgerJob struct {
	users    gamification.UserRepository
	auditor  Auditor
	logger   *slog.Logger
	pageSize int
	onReport func(ReconcileStats)

	last atomic.Pointer[ReconcileStats]
}

// NewReconcileLedgerJob creates the job. onReport may be nil.
func NewReconcileLedgerJob(
	users gamification.UserRepository,
	auditor Auditor,
	logger *slog.Logger,
	pageSize int,
	onReport func(ReconcileStats),
) *ReconcileLedgerJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileLedgerJob{
		users:    users,
		auditor:  auditor,
		logger:   logger.With("job", "reconcile_ledger"),
		pageSize: shared.ClampLimit(pageSize),
		onReport: onReport,
	}
}

// Name implements scheduler.Job.
func (j *ReconcileLedgerJob) Name() string { return "reconcile_ledger" }

// Description implements scheduler.Job.
func (j *ReconcileLedgerJob) Description() string {
	return "Compares cached user totals and levels with the points ledger"
}

// Run implements scheduler.Job.
func (j *ReconcileLedgerJob) Run(ctx context.Context) error {
	stats := ReconcileStats{StartedAt: time.Now()}

	page := shared.NewPage(j.pageSize, 0)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		users, err := j.users.List(ctx, page)
		if err != nil {
			return fmt.Errorf("list users at offset %d: %w", page.Offset, err)
		}

		for _, u := range users {
			report, err := j.auditor.AuditUser(ctx, u)
			if err != nil {
				stats.Errors++
				j.logger.Error("audit failed", "user_id", u.ID, "error", err)
				continue
			}
			stats.UsersChecked++

			if report.PointsDrift() {
				stats.PointsDrift++
				j.logger.Warn("points drift",
					"user_id", u.ID,
					"total_points", report.TotalPoints,
					"ledger_total", report.LedgerTotal,
				)
			}
			if report.LevelDrift() {
				stats.LevelDrift++
				j.logger.Warn("level drift",
					"user_id", u.ID,
					"level", report.Level,
					"expected_level", report.ExpectedLevel,
					"experience_points", report.ExperiencePoints,
				)
			}
		}

		if len(users) < page.Limit {
			break
		}
		page = page.Next()
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
	j.last.Store(&stats)

	j.logger.Info("reconciliation finished",
		"users_checked", stats.UsersChecked,
		"points_drift", stats.PointsDrift,
		"level_drift", stats.LevelDrift,
		"errors", stats.Errors,
		"duration", stats.Duration.String(),
	)

	if j.onReport != nil {
		j.onReport(stats)
	}
	return nil
}

// LastStats returns the stats of the last completed run, or nil.
func (j *ReconcileLedgerJob) LastStats() *ReconcileStats {
	return j.last.Load()
}
