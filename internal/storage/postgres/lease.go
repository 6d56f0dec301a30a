package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"propsync/internal/domain"
)

type LeaseStore struct {
	db *sqlx.DB
}

func NewLeaseStore(db *sqlx.DB) *LeaseStore {
	return &LeaseStore{db: db}
}

func (s *LeaseStore) Upsert(ctx context.Context, lease *domain.Lease) (int64, bool, error) {
	query := `
		INSERT INTO leases (
			connection_id, external_id, unit_id, tenant_name, status,
			starts_on, ends_on, rent_cents, remote_updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (connection_id, external_id) DO UPDATE SET
			unit_id = EXCLUDED.unit_id,
			tenant_name = EXCLUDED.tenant_name,
			status = EXCLUDED.status,
			starts_on = EXCLUDED.starts_on,
			ends_on = EXCLUDED.ends_on,
			rent_cents = EXCLUDED.rent_cents,
			remote_updated_at = EXCLUDED.remote_updated_at,
			updated_at = now()
		RETURNING id, (xmax = 0) AS inserted`

	var id int64
	var inserted bool
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		lease.ConnectionID,
		lease.ExternalID,
		lease.UnitID,
		lease.TenantName,
		lease.Status,
		lease.StartsOn,
		lease.EndsOn,
		lease.RentCents,
		lease.RemoteUpdatedAt,
	).Scan(&id, &inserted)
	if err != nil {
		return 0, false, err
	}

	lease.ID = id
	return id, inserted, nil
}
