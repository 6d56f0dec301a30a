package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"propsync/internal/config"
	"propsync/internal/domain"
)

// FailureEscalationService tracks consecutive run failures per connection
// and notifies a human when they cross the configured threshold, rate
// limited by a cooldown window so a flapping connection does not produce a
// notification storm.
type FailureEscalationService struct {
	alerts   AlertStore
	notifier Notifier
	logger   *slog.Logger
	cfg      config.AlertsConfig

	now func() time.Time
}

func NewFailureEscalationService(alerts AlertStore, notifier Notifier, logger *slog.Logger, cfg config.AlertsConfig) *FailureEscalationService {
	return &FailureEscalationService{
		alerts:   alerts,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// HandleSyncCompleted consumes a finished run. A completed run resets the
// failure counter; a failed run increments it, clears any acknowledgment and
// may send a notification.
func (s *FailureEscalationService) HandleSyncCompleted(ctx context.Context, run *domain.SyncRun) error {
	if run.Status == domain.RunStatusCompleted {
		if err := s.alerts.ResetFailures(ctx, run.ConnectionID); err != nil {
			return fmt.Errorf("reset failure counter: %w", err)
		}
		return nil
	}

	detail := domain.FailureDetail{
		RunID:      run.ID,
		Error:      errorSummary(run),
		OccurredAt: s.now(),
	}

	alert, err := s.alerts.RecordFailure(ctx, run.ConnectionID, detail)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}

	if !s.shouldNotify(alert) {
		s.logger.Debug("failure below notification criteria",
			"connection_id", run.ConnectionID,
			"consecutive_failures", alert.ConsecutiveFailures,
		)
		return nil
	}

	if err := s.notifier.NotifyFailure(ctx, alert, run); err != nil {
		// A broken notification channel must not fail the pipeline.
		s.logger.Error("failure notification failed",
			"connection_id", run.ConnectionID,
			"error", err,
		)
		return nil
	}

	metrics.alertsSent.Inc()
	s.logger.Warn("failure notification sent",
		"connection_id", run.ConnectionID,
		"consecutive_failures", alert.ConsecutiveFailures,
	)

	if err := s.alerts.MarkAlertSent(ctx, run.ConnectionID, s.now()); err != nil {
		return fmt.Errorf("stamp alert sent: %w", err)
	}
	return nil
}

func (s *FailureEscalationService) shouldNotify(alert *domain.SyncFailureAlert) bool {
	if !s.cfg.NotificationsEnabled {
		return false
	}
	if alert.ConsecutiveFailures < s.cfg.FailureThreshold {
		return false
	}
	if alert.LastAlertSentAt != nil && s.now().Sub(*alert.LastAlertSentAt) < s.cfg.Cooldown() {
		return false
	}
	return true
}

// AcknowledgeAlert stamps who silenced the alert. The failure counter is
// untouched; the acknowledgment only suppresses alerts until the next
// failure clears it.
func (s *FailureEscalationService) AcknowledgeAlert(ctx context.Context, alert *domain.SyncFailureAlert, user string) error {
	at := s.now()
	if err := s.alerts.Acknowledge(ctx, alert.ID, user, at); err != nil {
		return fmt.Errorf("acknowledge alert: %w", err)
	}
	alert.AcknowledgedAt = &at
	alert.AcknowledgedBy = &user
	return nil
}

func errorSummary(run *domain.SyncRun) string {
	if run.ErrorSummary != nil {
		return *run.ErrorSummary
	}
	if len(run.ResourceErrors) > 0 {
		return run.ResourceErrors[0].Message
	}
	return "sync run failed"
}
