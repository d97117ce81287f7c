// Package reconcile repairs drift between the stored rank level and the
// level derived from the verse counter. Drift can only appear through manual
// data edits or schema migrations; the recorder itself keeps both in sync.
package reconcile

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/lampstack/versekeeper/internal/app/domain/rank"
	"github.com/lampstack/versekeeper/internal/app/storage"
	"github.com/lampstack/versekeeper/internal/app/system"
	"github.com/lampstack/versekeeper/pkg/logger"
)

var _ system.Service = (*Reconciler)(nil)

// DefaultSchedule runs the sweep nightly, off peak.
const DefaultSchedule = "0 3 * * *"

// Reconciler periodically sweeps all users and rewrites any cached rank that
// no longer matches the counter.
type Reconciler struct {
	users    storage.UserStore
	log      *logger.Logger
	schedule string

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// New creates a lifecycle-managed rank reconciler. An empty schedule uses
// DefaultSchedule.
func New(users storage.UserStore, schedule string, log *logger.Logger) *Reconciler {
	if log == nil {
		log = logger.NewDefault("reconcile")
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Reconciler{
		users:    users,
		log:      log,
		schedule: schedule,
	}
}

func (r *Reconciler) Name() string { return "rank-reconciler" }

func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(r.schedule, func() {
		if _, err := r.Sweep(context.Background()); err != nil {
			r.log.WithError(err).Error("rank sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule rank sweep: %w", err)
	}
	c.Start()

	r.cron = c
	r.running = true
	r.log.WithField("schedule", r.schedule).Info("rank reconciler started")
	return nil
}

func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return nil
	}
	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	r.running = false
	r.log.Info("rank reconciler stopped")
	return nil
}

// Sweep recomputes every user's rank from their counter and repairs any
// mismatch, returning how many rows were rewritten. The rank timestamp is
// preserved so leaderboard tie ordering is unaffected.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	users, err := r.users.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	repaired := 0
	for _, u := range users {
		expected := rank.Initial().Level
		if u.VersesMemorized > 0 {
			expected = rank.Calculate(u.VersesMemorized).Current.Level
		}
		if u.CurrentRank == expected {
			continue
		}
		if err := r.users.UpdateUserRank(ctx, u.ID, expected, u.RankUpdatedAt); err != nil {
			r.log.WithError(err).WithField("user_id", u.ID).Warn("rank repair failed")
			continue
		}
		r.log.WithField("user_id", u.ID).
			WithField("stored", u.CurrentRank).
			WithField("expected", expected).
			Warn("repaired drifted rank")
		repaired++
	}
	return repaired, nil
}
