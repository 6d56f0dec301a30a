package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"propsync/internal/domain"
)

// RawEventStore is append-only: events are never updated, and deleted only
// by the retention sweep.
type RawEventStore struct {
	db *sqlx.DB
}

func NewRawEventStore(db *sqlx.DB) *RawEventStore {
	return &RawEventStore{db: db}
}

func (s *RawEventStore) Append(ctx context.Context, event *domain.RawEvent) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		`INSERT INTO raw_events (run_id, resource, external_id, payload, received_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		event.RunID,
		event.Resource,
		event.ExternalID,
		[]byte(event.Payload),
		event.ReceivedAt,
	)
	return err
}

func (s *RawEventStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		"DELETE FROM raw_events WHERE received_at < $1",
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *RawEventStore) CountByRun(ctx context.Context, runID string) (int64, error) {
	var count int64
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &count,
		"SELECT COUNT(*) FROM raw_events WHERE run_id = $1", runID)
	return count, err
}
