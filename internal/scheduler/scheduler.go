package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"propsync/internal/domain"
)

// Runner starts one end-to-end sync run.
type Runner interface {
	RunOnce(ctx context.Context) (*domain.SyncRun, error)
}

// Scheduler ticks once a minute and fires the runner whenever the policy
// says the current minute is a sync boundary. An overlapping trigger is
// reported by the runner as domain.ErrRunAlreadyActive and ignored.
type Scheduler struct {
	runner     Runner
	policy     *Policy
	runTimeout time.Duration
	logger     *slog.Logger
}

func NewScheduler(runner Runner, policy *Policy, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:     runner,
		policy:     policy,
		runTimeout: runTimeout,
		logger:     logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	now := time.Now()
	s.logger.Info("scheduler started",
		"interval_minutes", s.policy.SyncInterval(now),
		"business_hours", s.policy.IsBusinessHours(now),
		"next_sync", s.policy.NextSyncTime(now),
	)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case tick := <-ticker.C:
			if !s.policy.ShouldSyncNow(tick) {
				continue
			}
			s.runSync(ctx)
		}
	}
}

func (s *Scheduler) runSync(ctx context.Context) {
	syncCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	if _, err := s.runner.RunOnce(syncCtx); err != nil {
		if errors.Is(err, domain.ErrRunAlreadyActive) {
			s.logger.Warn("previous sync run still active, skipping boundary")
			return
		}
		s.logger.Error("sync run failed", "error", err)
	}
}
