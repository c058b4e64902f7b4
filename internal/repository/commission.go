package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sharevest/backend/internal/model"
)

// ReplaceBeneficiaryCommissions deletes every commission of a
// beneficiary and inserts the freshly computed set together with its
// aggregate, all in one transaction. Running it twice with the same
// input leaves the database unchanged.
func (r *Repository) ReplaceBeneficiaryCommissions(ctx context.Context, beneficiaryID int64, commissions []model.Commission, agg *model.ReferralAggregate) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM commissions WHERE beneficiary_id = $1", beneficiaryID); err != nil {
		return fmt.Errorf("failed to delete commissions: %w", err)
	}

	for i := range commissions {
		c := &commissions[i]
		err := tx.QueryRowContext(ctx, `
			INSERT INTO commissions (beneficiary_id, referred_user_id, generation, amount, currency, source_ref, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at`,
			c.BeneficiaryID, c.ReferredUserID, c.Generation, c.Amount, c.Currency, c.SourceRef, c.Status,
		).Scan(&c.ID, &c.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert commission: %w", err)
		}
	}

	if err := upsertAggregate(ctx, tx, agg); err != nil {
		return err
	}

	return tx.Commit()
}

// InsertCommission inserts a single commission, treating a uniqueness
// conflict as success (the desired row already exists). Returns whether
// a new row was written.
func (r *Repository) InsertCommission(ctx context.Context, c *model.Commission) (bool, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO commissions (beneficiary_id, referred_user_id, generation, amount, currency, source_ref, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (beneficiary_id, referred_user_id, generation, source_ref) DO NOTHING
		RETURNING id, created_at`,
		c.BeneficiaryID, c.ReferredUserID, c.Generation, c.Amount, c.Currency, c.SourceRef, c.Status,
	).Scan(&c.ID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repository) ListCommissionsByBeneficiary(ctx context.Context, beneficiaryID int64) ([]model.Commission, error) {
	var cs []model.Commission
	err := r.db.SelectContext(ctx, &cs, `
		SELECT * FROM commissions
		WHERE beneficiary_id = $1
		ORDER BY generation, referred_user_id, source_ref`, beneficiaryID)
	return cs, err
}

func (r *Repository) GetReferralAggregate(ctx context.Context, userID int64) (*model.ReferralAggregate, error) {
	var agg model.ReferralAggregate
	err := r.db.GetContext(ctx, &agg,
		"SELECT * FROM referral_aggregates WHERE user_id = $1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.ReferralAggregate{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

// RefreshReferralAggregate recomputes a beneficiary's aggregate from
// the commissions table. Used by the live commission hook; the batch
// recompute passes its own aggregate through
// ReplaceBeneficiaryCommissions instead.
func (r *Repository) RefreshReferralAggregate(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO referral_aggregates
			(user_id, referred_users, total_earnings,
			 gen1_count, gen1_earnings, gen2_count, gen2_earnings, gen3_count, gen3_earnings, updated_at)
		SELECT $1,
			(SELECT COUNT(*) FROM users d
			  WHERE LOWER(d.referred_by) = LOWER((SELECT handle FROM users WHERE id = $1))),
			COALESCE(SUM(amount), 0),
			COUNT(*) FILTER (WHERE generation = 1), COALESCE(SUM(amount) FILTER (WHERE generation = 1), 0),
			COUNT(*) FILTER (WHERE generation = 2), COALESCE(SUM(amount) FILTER (WHERE generation = 2), 0),
			COUNT(*) FILTER (WHERE generation = 3), COALESCE(SUM(amount) FILTER (WHERE generation = 3), 0),
			NOW()
		FROM commissions WHERE beneficiary_id = $1
		ON CONFLICT (user_id) DO UPDATE SET
			referred_users = EXCLUDED.referred_users,
			total_earnings = EXCLUDED.total_earnings,
			gen1_count = EXCLUDED.gen1_count, gen1_earnings = EXCLUDED.gen1_earnings,
			gen2_count = EXCLUDED.gen2_count, gen2_earnings = EXCLUDED.gen2_earnings,
			gen3_count = EXCLUDED.gen3_count, gen3_earnings = EXCLUDED.gen3_earnings,
			updated_at = NOW()`,
		userID)
	return err
}

func upsertAggregate(ctx context.Context, tx txExecer, agg *model.ReferralAggregate) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO referral_aggregates
			(user_id, referred_users, total_earnings,
			 gen1_count, gen1_earnings, gen2_count, gen2_earnings, gen3_count, gen3_earnings, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			referred_users = EXCLUDED.referred_users,
			total_earnings = EXCLUDED.total_earnings,
			gen1_count = EXCLUDED.gen1_count, gen1_earnings = EXCLUDED.gen1_earnings,
			gen2_count = EXCLUDED.gen2_count, gen2_earnings = EXCLUDED.gen2_earnings,
			gen3_count = EXCLUDED.gen3_count, gen3_earnings = EXCLUDED.gen3_earnings,
			updated_at = NOW()`,
		agg.UserID, agg.ReferredUsers, agg.TotalEarnings,
		agg.Gen1Count, agg.Gen1Earnings,
		agg.Gen2Count, agg.Gen2Earnings,
		agg.Gen3Count, agg.Gen3Earnings)
	return err
}

type txExecer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}
