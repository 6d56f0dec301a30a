package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"propsync/internal/domain"
)

type ConnectionStore struct {
	db *sqlx.DB
}

func NewConnectionStore(db *sqlx.DB) *ConnectionStore {
	return &ConnectionStore{db: db}
}

func (s *ConnectionStore) GetByName(ctx context.Context, name string) (*domain.Connection, error) {
	var conn domain.Connection
	query := `
		SELECT id, name, base_url, client_id, encrypted_secret, status, created_at, updated_at
		FROM connections
		WHERE name = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &conn, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// Ensure creates or updates the connection row from configuration and
// returns the stored row. Status moves to configured when credentials are
// present, otherwise unconfigured; connected/error are set later by the
// startup probe.
func (s *ConnectionStore) Ensure(ctx context.Context, conn *domain.Connection) (*domain.Connection, error) {
	status := domain.ConnectionStatusUnconfigured
	if conn.IsConfigured() {
		status = domain.ConnectionStatusConfigured
	}

	query := `
		INSERT INTO connections (name, base_url, client_id, encrypted_secret, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			base_url = EXCLUDED.base_url,
			client_id = EXCLUDED.client_id,
			encrypted_secret = EXCLUDED.encrypted_secret,
			status = EXCLUDED.status,
			updated_at = now()
		RETURNING id, name, base_url, client_id, encrypted_secret, status, created_at, updated_at`

	var stored domain.Connection
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &stored, query,
		conn.Name,
		conn.BaseURL,
		conn.ClientID,
		conn.EncryptedSecret,
		status,
	)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *ConnectionStore) UpdateStatus(ctx context.Context, id int64, status domain.ConnectionStatus) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		"UPDATE connections SET status = $2, updated_at = now() WHERE id = $1",
		id, status,
	)
	return err
}
