package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sharevest/backend/internal/model"
)

var ErrPlanNotFound = errors.New("installment plan not found")

func (r *Repository) CreatePlan(ctx context.Context, plan *model.InstallmentPlan) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO installment_plans (user_id, total_price, currency, status, late_fee_bps)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		plan.UserID, plan.TotalPrice, plan.Currency, plan.Status, plan.LateFeeBPS,
	).Scan(&plan.ID, &plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}

	for i := range plan.Installments {
		inst := &plan.Installments[i]
		inst.PlanID = plan.ID
		err := tx.QueryRowContext(ctx, `
			INSERT INTO installments (plan_id, seq, amount, due_date, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, updated_at`,
			inst.PlanID, inst.Seq, inst.Amount, inst.DueDate, model.InstallmentStatusPending,
		).Scan(&inst.ID, &inst.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create installment: %w", err)
		}
		inst.Status = model.InstallmentStatusPending
	}

	return tx.Commit()
}

func (r *Repository) GetPlan(ctx context.Context, id uuid.UUID) (*model.InstallmentPlan, error) {
	var plan model.InstallmentPlan
	err := r.db.GetContext(ctx, &plan, "SELECT * FROM installment_plans WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if err := r.loadInstallments(ctx, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListPlansForPenaltyCheck returns plans eligible for overdue
// evaluation (pending, active or late), installments included.
func (r *Repository) ListPlansForPenaltyCheck(ctx context.Context) ([]model.InstallmentPlan, error) {
	return r.listPlansByStatus(ctx,
		model.PlanStatusPending, model.PlanStatusActive, model.PlanStatusLate)
}

// ListLatePlans returns plans already marked late, installments included.
func (r *Repository) ListLatePlans(ctx context.Context) ([]model.InstallmentPlan, error) {
	return r.listPlansByStatus(ctx, model.PlanStatusLate)
}

func (r *Repository) listPlansByStatus(ctx context.Context, statuses ...model.PlanStatus) ([]model.InstallmentPlan, error) {
	query, args, err := sqlx.In(
		"SELECT * FROM installment_plans WHERE status IN (?) ORDER BY created_at ASC", statuses)
	if err != nil {
		return nil, err
	}
	var plans []model.InstallmentPlan
	if err := r.db.SelectContext(ctx, &plans, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for i := range plans {
		if err := r.loadInstallments(ctx, &plans[i]); err != nil {
			return nil, err
		}
	}
	return plans, nil
}

func (r *Repository) loadInstallments(ctx context.Context, plan *model.InstallmentPlan) error {
	return r.db.SelectContext(ctx, &plan.Installments,
		"SELECT * FROM installments WHERE plan_id = $1 ORDER BY seq ASC", plan.ID)
}

// SaveInstallmentPenalty persists an installment's accrued late fee and
// overdue status.
func (r *Repository) SaveInstallmentPenalty(ctx context.Context, installmentID uuid.UUID, lateFee int64, status model.InstallmentStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE installments
		SET late_fee = $2, status = $3, updated_at = NOW()
		WHERE id = $1`,
		installmentID, lateFee, status)
	return err
}

// SavePlanPenaltyState persists a plan's penalty bookkeeping after an
// evaluation pass.
func (r *Repository) SavePlanPenaltyState(ctx context.Context, planID uuid.UUID, status model.PlanStatus, currentLateFee int64, monthsLate int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE installment_plans
		SET status = $2, current_late_fee = $3, months_late = $4, updated_at = NOW()
		WHERE id = $1`,
		planID, status, currentLateFee, monthsLate)
	return err
}

// SavePlanPayment writes the plan totals and every touched installment
// in one transaction after a payment application.
func (r *Repository) SavePlanPayment(ctx context.Context, plan *model.InstallmentPlan, touched []model.Installment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE installment_plans
		SET status = $2, total_paid = $3, current_late_fee = $4, months_late = $5, updated_at = NOW()
		WHERE id = $1`,
		plan.ID, plan.Status, plan.TotalPaid, plan.CurrentLateFee, plan.MonthsLate)
	if err != nil {
		return err
	}

	for _, inst := range touched {
		_, err = tx.ExecContext(ctx, `
			UPDATE installments
			SET paid_amount = $2, status = $3, updated_at = NOW()
			WHERE id = $1`,
			inst.ID, inst.PaidAmount, inst.Status)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}
