package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"propsync/internal/domain"
)

const pgUniqueViolation = "23505"

type SyncRunStore struct {
	db *sqlx.DB
}

func NewSyncRunStore(db *sqlx.DB) *SyncRunStore {
	return &SyncRunStore{db: db}
}

// Create inserts a pending run. A partial unique index on
// sync_runs(connection_id) for non-terminal statuses is the serialization
// point per connection: a second active run trips the index and is reported
// as domain.ErrRunAlreadyActive.
func (s *SyncRunStore) Create(ctx context.Context, run *domain.SyncRun) error {
	query := `
		INSERT INTO sync_runs (id, connection_id, mode, status, resource_metrics, resource_errors)
		VALUES ($1, $2, $3, $4, '{}', '[]')`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		run.ID,
		run.ConnectionID,
		run.Mode,
		domain.RunStatusPending,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return domain.ErrRunAlreadyActive
	}
	if err != nil {
		return err
	}

	run.Status = domain.RunStatusPending
	return nil
}

// Start moves a pending run to running. The status guard makes a second
// start attempt fail instead of silently restarting the run.
func (s *SyncRunStore) Start(ctx context.Context, runID string, at time.Time) error {
	result, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`UPDATE sync_runs SET status = $2, started_at = $3 WHERE id = $1 AND status = $4`,
		runID, domain.RunStatusRunning, at, domain.RunStatusPending,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("run %s is not pending", runID)
	}
	return nil
}

// Finalize writes the terminal status together with the aggregated metrics
// and error list in one statement.
func (s *SyncRunStore) Finalize(ctx context.Context, run *domain.SyncRun) error {
	metricsJSON, err := json.Marshal(run.ResourceMetrics)
	if err != nil {
		return fmt.Errorf("marshal resource metrics: %w", err)
	}
	if run.ResourceMetrics == nil {
		metricsJSON = []byte("{}")
	}

	errorsJSON, err := json.Marshal(run.ResourceErrors)
	if err != nil {
		return fmt.Errorf("marshal resource errors: %w", err)
	}
	if run.ResourceErrors == nil {
		errorsJSON = []byte("[]")
	}

	query := `
		UPDATE sync_runs SET
			status = $2,
			ended_at = $3,
			error_summary = $4,
			resource_metrics = $5,
			resource_errors = $6
		WHERE id = $1 AND status = $7`

	result, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		run.ID,
		run.Status,
		run.EndedAt,
		run.ErrorSummary,
		metricsJSON,
		errorsJSON,
		domain.RunStatusRunning,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("run %s is not running", run.ID)
	}
	return nil
}

// LastCompletedAt returns the start instant of the connection's most recent
// completed run, or nil when none exists. Incremental runs use it as the
// modified_since watermark.
func (s *SyncRunStore) LastCompletedAt(ctx context.Context, connectionID int64) (*time.Time, error) {
	var at time.Time
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &at,
		`SELECT started_at FROM sync_runs
		 WHERE connection_id = $1 AND status = $2 AND started_at IS NOT NULL
		 ORDER BY started_at DESC LIMIT 1`,
		connectionID, domain.RunStatusCompleted,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &at, nil
}

func (s *SyncRunStore) Get(ctx context.Context, runID string) (*domain.SyncRun, error) {
	row := struct {
		domain.SyncRun
		MetricsJSON []byte `db:"resource_metrics"`
		ErrorsJSON  []byte `db:"resource_errors"`
	}{}

	query := `
		SELECT id, connection_id, mode, status, started_at, ended_at, error_summary,
		       created_at, resource_metrics, resource_errors
		FROM sync_runs
		WHERE id = $1`

	if err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row, query, runID); err != nil {
		return nil, err
	}

	run := row.SyncRun
	if len(row.MetricsJSON) > 0 {
		if err := json.Unmarshal(row.MetricsJSON, &run.ResourceMetrics); err != nil {
			return nil, fmt.Errorf("unmarshal resource metrics: %w", err)
		}
	}
	if len(row.ErrorsJSON) > 0 {
		if err := json.Unmarshal(row.ErrorsJSON, &run.ResourceErrors); err != nil {
			return nil, fmt.Errorf("unmarshal resource errors: %w", err)
		}
	}
	return &run, nil
}
