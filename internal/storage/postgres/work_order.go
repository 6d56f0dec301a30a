package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"propsync/internal/domain"
)

type WorkOrderStore struct {
	db *sqlx.DB
}

func NewWorkOrderStore(db *sqlx.DB) *WorkOrderStore {
	return &WorkOrderStore{db: db}
}

func (s *WorkOrderStore) Upsert(ctx context.Context, workOrder *domain.WorkOrder) (int64, bool, error) {
	query := `
		INSERT INTO work_orders (
			connection_id, external_id, property_id, unit_id, title,
			description, status, priority, remote_updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (connection_id, external_id) DO UPDATE SET
			property_id = EXCLUDED.property_id,
			unit_id = EXCLUDED.unit_id,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			priority = EXCLUDED.priority,
			remote_updated_at = EXCLUDED.remote_updated_at,
			updated_at = now()
		RETURNING id, (xmax = 0) AS inserted`

	var id int64
	var inserted bool
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		workOrder.ConnectionID,
		workOrder.ExternalID,
		workOrder.PropertyID,
		workOrder.UnitID,
		workOrder.Title,
		workOrder.Description,
		workOrder.Status,
		workOrder.Priority,
		workOrder.RemoteUpdatedAt,
	).Scan(&id, &inserted)
	if err != nil {
		return 0, false, err
	}

	workOrder.ID = id
	return id, inserted, nil
}
