package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sharevest/backend/internal/model"
)

// ErrInsufficientBucket means a bucket-to-bucket move would drive the
// source bucket negative. The caller must treat the record as
// inconsistent rather than retry.
var ErrInsufficientBucket = errors.New("ledger bucket has insufficient funds")

func (r *Repository) GetLedgerBuckets(ctx context.Context, userID int64, currency model.Currency) (*model.LedgerBuckets, error) {
	var buckets model.LedgerBuckets
	err := r.db.GetContext(ctx, &buckets,
		"SELECT * FROM ledger_buckets WHERE user_id = $1 AND currency = $2",
		userID, currency)
	if errors.Is(err, sql.ErrNoRows) {
		// A user with no withdrawals has empty buckets.
		return &model.LedgerBuckets{UserID: userID, Currency: currency}, nil
	}
	if err != nil {
		return nil, err
	}
	return &buckets, nil
}

// bucketColumn whitelists bucket names into column names; amounts are
// bound as parameters, bucket names never come from user input.
func bucketColumn(b model.Bucket) (string, error) {
	switch b {
	case model.BucketPending:
		return "pending_amt", nil
	case model.BucketProcessing:
		return "processing_amt", nil
	case model.BucketWithdrawn:
		return "withdrawn_amt", nil
	default:
		return "", fmt.Errorf("unknown ledger bucket %q", b)
	}
}

// ensureLedgerRow creates the bucket row for (user, currency) if it
// does not exist yet, so later conditional updates have a target.
func ensureLedgerRow(ctx context.Context, tx *sqlx.Tx, userID int64, currency model.Currency) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_buckets (user_id, currency)
		VALUES ($1, $2)
		ON CONFLICT (user_id, currency) DO NOTHING`,
		userID, currency)
	return err
}

// addToBucket credits one bucket inside the caller's transaction.
func addToBucket(ctx context.Context, tx *sqlx.Tx, userID int64, currency model.Currency, bucket model.Bucket, amount int64) error {
	col, err := bucketColumn(bucket)
	if err != nil {
		return err
	}
	if err := ensureLedgerRow(ctx, tx, userID, currency); err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE ledger_buckets
		SET %s = %s + $3, updated_at = NOW()
		WHERE user_id = $1 AND currency = $2`, col, col)
	_, err = tx.ExecContext(ctx, query, userID, currency, amount)
	return err
}

// subtractFromBucket debits one bucket, failing with
// ErrInsufficientBucket instead of going negative.
func subtractFromBucket(ctx context.Context, tx *sqlx.Tx, userID int64, currency model.Currency, bucket model.Bucket, amount int64) error {
	col, err := bucketColumn(bucket)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE ledger_buckets
		SET %s = %s - $3, updated_at = NOW()
		WHERE user_id = $1 AND currency = $2 AND %s >= $3`, col, col, col)
	res, err := tx.ExecContext(ctx, query, userID, currency, amount)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInsufficientBucket
	}
	return nil
}

// moveBuckets transfers amount between two buckets of the same user
// and currency, atomically within the caller's transaction.
func moveBuckets(ctx context.Context, tx *sqlx.Tx, userID int64, currency model.Currency, from, to model.Bucket, amount int64) error {
	if err := subtractFromBucket(ctx, tx, userID, currency, from, amount); err != nil {
		return err
	}
	return addToBucket(ctx, tx, userID, currency, to, amount)
}
