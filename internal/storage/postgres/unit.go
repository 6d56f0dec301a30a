package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"propsync/internal/domain"
)

type UnitStore struct {
	db *sqlx.DB
}

func NewUnitStore(db *sqlx.DB) *UnitStore {
	return &UnitStore{db: db}
}

func (s *UnitStore) Upsert(ctx context.Context, unit *domain.Unit) (int64, bool, error) {
	query := `
		INSERT INTO units (
			connection_id, external_id, property_id, unit_number, bedrooms,
			bathrooms, status, market_rent_cents, remote_updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (connection_id, external_id) DO UPDATE SET
			property_id = EXCLUDED.property_id,
			unit_number = EXCLUDED.unit_number,
			bedrooms = EXCLUDED.bedrooms,
			bathrooms = EXCLUDED.bathrooms,
			status = EXCLUDED.status,
			market_rent_cents = EXCLUDED.market_rent_cents,
			remote_updated_at = EXCLUDED.remote_updated_at,
			updated_at = now()
		RETURNING id, (xmax = 0) AS inserted`

	var id int64
	var inserted bool
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		unit.ConnectionID,
		unit.ExternalID,
		unit.PropertyID,
		unit.UnitNumber,
		unit.Bedrooms,
		unit.Bathrooms,
		unit.Status,
		unit.MarketRentCents,
		unit.RemoteUpdatedAt,
	).Scan(&id, &inserted)
	if err != nil {
		return 0, false, err
	}

	unit.ID = id
	return id, inserted, nil
}

func (s *UnitStore) IDByExternalID(ctx context.Context, connectionID int64, externalID string) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &id,
		"SELECT id FROM units WHERE connection_id = $1 AND external_id = $2",
		connectionID, externalID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}
