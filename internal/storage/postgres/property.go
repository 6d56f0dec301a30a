package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"propsync/internal/domain"
)

type PropertyStore struct {
	db *sqlx.DB
}

func NewPropertyStore(db *sqlx.DB) *PropertyStore {
	return &PropertyStore{db: db}
}

// Upsert writes the synchronized columns keyed by (connection_id,
// external_id). Local-only columns are deliberately absent from the update
// list so other subsystems' data survives a re-sync. The xmax = 0 check
// reports whether the row was freshly inserted.
func (s *PropertyStore) Upsert(ctx context.Context, property *domain.Property) (int64, bool, error) {
	query := `
		INSERT INTO properties (
			connection_id, external_id, name, address_line1, city, state,
			postal_code, remote_updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (connection_id, external_id) DO UPDATE SET
			name = EXCLUDED.name,
			address_line1 = EXCLUDED.address_line1,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			postal_code = EXCLUDED.postal_code,
			remote_updated_at = EXCLUDED.remote_updated_at,
			updated_at = now()
		RETURNING id, (xmax = 0) AS inserted`

	var id int64
	var inserted bool
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		property.ConnectionID,
		property.ExternalID,
		property.Name,
		property.AddressLine1,
		property.City,
		property.State,
		property.PostalCode,
		property.RemoteUpdatedAt,
	).Scan(&id, &inserted)
	if err != nil {
		return 0, false, err
	}

	property.ID = id
	return id, inserted, nil
}

// IDByExternalID returns 0 when the property is not known locally.
func (s *PropertyStore) IDByExternalID(ctx context.Context, connectionID int64, externalID string) (int64, error) {
	var id int64
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &id,
		"SELECT id FROM properties WHERE connection_id = $1 AND external_id = $2",
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
