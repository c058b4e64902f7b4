package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sharevest/backend/internal/model"
)

var ErrWithdrawalNotFound = errors.New("withdrawal not found")

// CreateWithdrawal inserts a pending withdrawal and credits the pending
// bucket in the same transaction, so the ledger never disagrees with
// the withdrawals table.
func (r *Repository) CreateWithdrawal(ctx context.Context, w *model.Withdrawal) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO withdrawals (user_id, amount, currency, destination, client_reference, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err = tx.QueryRowContext(ctx, query,
		w.UserID,
		w.Amount,
		w.Currency,
		w.Destination,
		w.ClientReference,
		model.WithdrawalStatusPending,
	).Scan(&w.ID, &w.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create withdrawal: %w", err)
	}
	w.Status = model.WithdrawalStatusPending

	if err := addToBucket(ctx, tx, w.UserID, w.Currency, model.BucketPending, w.Amount); err != nil {
		return fmt.Errorf("failed to credit pending bucket: %w", err)
	}

	return tx.Commit()
}

func (r *Repository) GetWithdrawal(ctx context.Context, id uuid.UUID) (*model.Withdrawal, error) {
	var w model.Withdrawal
	err := r.db.GetContext(ctx, &w, "SELECT * FROM withdrawals WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (r *Repository) GetWithdrawalByClientReference(ctx context.Context, clientReference string) (*model.Withdrawal, error) {
	var w model.Withdrawal
	err := r.db.GetContext(ctx, &w, "SELECT * FROM withdrawals WHERE client_reference = $1", clientReference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &w, nil
}

// ListWithdrawalsByStatus returns non-flagged withdrawals in a status,
// oldest first. Flagged records are excluded from automatic processing.
func (r *Repository) ListWithdrawalsByStatus(ctx context.Context, status model.WithdrawalStatus) ([]model.Withdrawal, error) {
	var ws []model.Withdrawal
	err := r.db.SelectContext(ctx, &ws, `
		SELECT * FROM withdrawals
		WHERE status = $1 AND NOT flagged
		ORDER BY created_at ASC`, status)
	return ws, err
}

func (r *Repository) ListFlaggedWithdrawals(ctx context.Context) ([]model.Withdrawal, error) {
	var ws []model.Withdrawal
	err := r.db.SelectContext(ctx, &ws,
		"SELECT * FROM withdrawals WHERE flagged ORDER BY created_at ASC")
	return ws, err
}

// MarkProcessing advances pending -> processing and moves the amount
// between buckets atomically. Returns false when the withdrawal was no
// longer pending, which makes the transition idempotent under
// concurrent reconciler runs.
func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var (
		userID   int64
		amount   int64
		currency model.Currency
	)
	err = tx.QueryRowContext(ctx, `
		UPDATE withdrawals
		SET status = 'processing', processing_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING user_id, amount, currency`,
		id,
	).Scan(&userID, &amount, &currency)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := moveBuckets(ctx, tx, userID, currency, model.BucketPending, model.BucketProcessing, amount); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// MarkPaid advances from pending or processing to paid, moving the
// amount from the matching bucket into withdrawn.
func (r *Repository) MarkPaid(ctx context.Context, id uuid.UUID, from model.WithdrawalStatus, providerRef string) (bool, error) {
	fromBucket, err := statusBucket(from)
	if err != nil {
		return false, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var (
		userID   int64
		amount   int64
		currency model.Currency
	)
	err = tx.QueryRowContext(ctx, `
		UPDATE withdrawals
		SET status = 'paid', provider_reference = $3, paid_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING user_id, amount, currency`,
		id, from, providerRef,
	).Scan(&userID, &amount, &currency)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := moveBuckets(ctx, tx, userID, currency, fromBucket, model.BucketWithdrawn, amount); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// MarkFailed advances from pending or processing to failed. The amount
// leaves the ledger buckets entirely; the funds return to the user's
// available pool.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, from model.WithdrawalStatus, reason string, failedAt *time.Time) (bool, error) {
	fromBucket, err := statusBucket(from)
	if err != nil {
		return false, err
	}
	if failedAt == nil {
		now := time.Now()
		failedAt = &now
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var (
		userID   int64
		amount   int64
		currency model.Currency
	)
	err = tx.QueryRowContext(ctx, `
		UPDATE withdrawals
		SET status = 'failed', failure_reason = $3, failed_at = $4
		WHERE id = $1 AND status = $2
		RETURNING user_id, amount, currency`,
		id, from, reason, failedAt,
	).Scan(&userID, &amount, &currency)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := subtractFromBucket(ctx, tx, userID, currency, fromBucket, amount); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// FlagWithdrawal excludes a withdrawal from automatic transitions
// after a consistency failure.
func (r *Repository) FlagWithdrawal(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "UPDATE withdrawals SET flagged = TRUE WHERE id = $1", id)
	return err
}

func statusBucket(s model.WithdrawalStatus) (model.Bucket, error) {
	switch s {
	case model.WithdrawalStatusPending:
		return model.BucketPending, nil
	case model.WithdrawalStatusProcessing:
		return model.BucketProcessing, nil
	default:
		return "", fmt.Errorf("status %q has no ledger bucket", s)
	}
}
