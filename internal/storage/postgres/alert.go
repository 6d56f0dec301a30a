package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"propsync/internal/domain"
)

// SyncFailureAlertStore keeps one alert row per connection. Counter updates
// are single statements so overlapping triggers cannot lose an increment.
type SyncFailureAlertStore struct {
	db *sqlx.DB
}

func NewSyncFailureAlertStore(db *sqlx.DB) *SyncFailureAlertStore {
	return &SyncFailureAlertStore{db: db}
}

type alertRow struct {
	domain.SyncFailureAlert
	FailureDetailsJSON []byte `db:"failure_details"`
}

func (r *alertRow) toDomain() (*domain.SyncFailureAlert, error) {
	alert := r.SyncFailureAlert
	if len(r.FailureDetailsJSON) > 0 {
		if err := json.Unmarshal(r.FailureDetailsJSON, &alert.FailureDetails); err != nil {
			return nil, fmt.Errorf("unmarshal failure details: %w", err)
		}
	}
	return &alert, nil
}

const alertColumns = `id, connection_id, consecutive_failures, last_alert_sent_at,
	acknowledged_at, acknowledged_by, failure_details, created_at, updated_at`

func (s *SyncFailureAlertStore) GetByConnection(ctx context.Context, connectionID int64) (*domain.SyncFailureAlert, error) {
	var row alertRow
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row,
		"SELECT "+alertColumns+" FROM sync_failure_alerts WHERE connection_id = $1",
		connectionID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

// ResetFailures zeroes the counter, creating the row for a connection that
// never failed before. Acknowledgment state is preserved.
func (s *SyncFailureAlertStore) ResetFailures(ctx context.Context, connectionID int64) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`INSERT INTO sync_failure_alerts (connection_id, consecutive_failures)
		 VALUES ($1, 0)
		 ON CONFLICT (connection_id) DO UPDATE SET
			consecutive_failures = 0,
			updated_at = now()`,
		connectionID,
	)
	return err
}

// RecordFailure increments the counter, appends the detail to the bounded
// history (oldest entry dropped beyond the cap) and clears any prior
// acknowledgment, all in one statement.
func (s *SyncFailureAlertStore) RecordFailure(ctx context.Context, connectionID int64, detail domain.FailureDetail) (*domain.SyncFailureAlert, error) {
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return nil, fmt.Errorf("marshal failure detail: %w", err)
	}

	query := `
		INSERT INTO sync_failure_alerts (connection_id, consecutive_failures, failure_details)
		VALUES ($1, 1, jsonb_build_array($2::jsonb))
		ON CONFLICT (connection_id) DO UPDATE SET
			consecutive_failures = sync_failure_alerts.consecutive_failures + 1,
			failure_details = (
				CASE WHEN jsonb_array_length(sync_failure_alerts.failure_details) >= $3
					THEN sync_failure_alerts.failure_details - 0
					ELSE sync_failure_alerts.failure_details
				END
			) || $2::jsonb,
			acknowledged_at = NULL,
			acknowledged_by = NULL,
			updated_at = now()
		RETURNING ` + alertColumns

	var row alertRow
	if err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row, query,
		connectionID, detailJSON, domain.MaxFailureDetails,
	); err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (s *SyncFailureAlertStore) MarkAlertSent(ctx context.Context, connectionID int64, at time.Time) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		"UPDATE sync_failure_alerts SET last_alert_sent_at = $2, updated_at = now() WHERE connection_id = $1",
		connectionID, at,
	)
	return err
}

func (s *SyncFailureAlertStore) Acknowledge(ctx context.Context, alertID int64, user string, at time.Time) error {
	result, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		"UPDATE sync_failure_alerts SET acknowledged_at = $2, acknowledged_by = $3, updated_at = now() WHERE id = $1",
		alertID, at, user,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("alert %d not found", alertID)
	}
	return nil
}
