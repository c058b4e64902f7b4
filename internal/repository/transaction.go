package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sharevest/backend/internal/model"
)

var ErrTransactionNotFound = errors.New("transaction not found")

func (r *Repository) CreateTransaction(ctx context.Context, txn *model.Transaction) error {
	query := `
		INSERT INTO transactions (user_id, amount, currency, source_kind, source_ref, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	return r.db.QueryRowContext(ctx, query,
		txn.UserID,
		txn.Amount,
		txn.Currency,
		txn.SourceKind,
		txn.SourceRef,
		txn.CompletedAt,
	).Scan(&txn.ID)
}

func (r *Repository) GetTransactionBySourceRef(ctx context.Context, sourceRef string) (*model.Transaction, error) {
	var txn model.Transaction
	err := r.db.GetContext(ctx, &txn, "SELECT * FROM transactions WHERE source_ref = $1", sourceRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// ListCompletedTransactions returns a user's completed purchases,
// oldest first.
func (r *Repository) ListCompletedTransactions(ctx context.Context, userID int64) ([]model.Transaction, error) {
	var txns []model.Transaction
	err := r.db.SelectContext(ctx, &txns, `
		SELECT * FROM transactions
		WHERE user_id = $1
		ORDER BY completed_at ASC`, userID)
	return txns, err
}
