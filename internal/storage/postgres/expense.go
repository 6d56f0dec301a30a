package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"propsync/internal/domain"
)

type ExpenseStore struct {
	db *sqlx.DB
}

func NewExpenseStore(db *sqlx.DB) *ExpenseStore {
	return &ExpenseStore{db: db}
}

func (s *ExpenseStore) Upsert(ctx context.Context, expense *domain.Expense) (int64, bool, error) {
	query := `
		INSERT INTO expenses (
			connection_id, external_id, property_id, gl_account, amount_cents,
			memo, incurred_on, remote_updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (connection_id, external_id) DO UPDATE SET
			property_id = EXCLUDED.property_id,
			gl_account = EXCLUDED.gl_account,
			amount_cents = EXCLUDED.amount_cents,
			memo = EXCLUDED.memo,
			incurred_on = EXCLUDED.incurred_on,
			remote_updated_at = EXCLUDED.remote_updated_at,
			updated_at = now()
		RETURNING id, (xmax = 0) AS inserted`

	var id int64
	var inserted bool
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		expense.ConnectionID,
		expense.ExternalID,
		expense.PropertyID,
		expense.GLAccount,
		expense.AmountCents,
		expense.Memo,
		expense.IncurredOn,
		expense.RemoteUpdatedAt,
	).Scan(&id, &inserted)
	if err != nil {
		return 0, false, err
	}

	expense.ID = id
	return id, inserted, nil
}
