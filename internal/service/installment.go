package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sharevest/backend/internal/config"
	"github.com/sharevest/backend/internal/model"
	"github.com/sharevest/backend/internal/money"
)

var (
	ErrPlanNotPayable = errors.New("plan does not accept payments")
	ErrInvalidTenor   = errors.New("installment count must be between 1 and 60")
)

const (
	overdueMonthDays = 30
	lateFeeCapBPS    = money.BPS(750) // 7.5% of plan total price
)

// InstallmentStore is the persistence surface of the penalty engine.
// Implemented by *repository.Repository; faked in tests.
type InstallmentStore interface {
	CreatePlan(ctx context.Context, plan *model.InstallmentPlan) error
	ListPlansForPenaltyCheck(ctx context.Context) ([]model.InstallmentPlan, error)
	ListLatePlans(ctx context.Context) ([]model.InstallmentPlan, error)
	GetPlan(ctx context.Context, id uuid.UUID) (*model.InstallmentPlan, error)
	SaveInstallmentPenalty(ctx context.Context, installmentID uuid.UUID, lateFee int64, status model.InstallmentStatus) error
	SavePlanPenaltyState(ctx context.Context, planID uuid.UUID, status model.PlanStatus, currentLateFee int64, monthsLate int) error
	SavePlanPayment(ctx context.Context, plan *model.InstallmentPlan, touched []model.Installment) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
}

// PenaltyStats summarizes one penalty run.
type PenaltyStats struct {
	PlansChecked      int   `json:"plans_checked"`
	PenaltiesApplied  int   `json:"penalties_applied"`
	PlansLate         int   `json:"plans_late"`
	TotalFeesAccrued  int64 `json:"total_fees_accrued"`
	NotificationsSent int   `json:"notifications_sent"`
	Errors            int   `json:"errors"`
}

type InstallmentService struct {
	store    InstallmentStore
	notifier Notifier
	alerter  Alerter

	lateFeeRate money.BPS // monthly, on the outstanding amount
	capRate     money.BPS // of the plan's total price
	gracePeriod time.Duration
}

func NewInstallmentService(store InstallmentStore, cfg config.InstallmentConfig) *InstallmentService {
	capRate := money.ParsePercent(cfg.LateFeeCapPercent)
	if capRate <= 0 {
		capRate = lateFeeCapBPS
	}
	grace := time.Duration(cfg.GracePeriodDays) * 24 * time.Hour
	if grace <= 0 {
		grace = 7 * 24 * time.Hour
	}
	return &InstallmentService{
		store:       store,
		lateFeeRate: money.ParsePercent(cfg.LateFeePercent),
		capRate:     capRate,
		gracePeriod: grace,
	}
}

func (s *InstallmentService) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *InstallmentService) SetAlerter(a Alerter) {
	s.alerter = a
}

// CreatePlan opens a plan over equal monthly installments. The total
// is split by floor division and the last installment absorbs the
// remainder, so installment amounts always sum to the total price.
func (s *InstallmentService) CreatePlan(ctx context.Context, userID int64, totalPrice int64, currency model.Currency, months int, firstDue time.Time) (*model.InstallmentPlan, error) {
	if totalPrice <= 0 {
		return nil, ErrInvalidAmount
	}
	if currency != model.CurrencyNaira && currency != model.CurrencyUSDT {
		return nil, ErrInvalidCurrency
	}
	if months < 1 || months > 60 {
		return nil, ErrInvalidTenor
	}

	per := totalPrice / int64(months)
	plan := &model.InstallmentPlan{
		UserID:     userID,
		TotalPrice: totalPrice,
		Currency:   currency,
		Status:     model.PlanStatusPending,
		LateFeeBPS: int64(s.lateFeeRate),
	}
	for seq := 1; seq <= months; seq++ {
		amount := per
		if seq == months {
			amount = totalPrice - per*int64(months-1)
		}
		plan.Installments = append(plan.Installments, model.Installment{
			Seq:     seq,
			Amount:  amount,
			DueDate: firstDue.AddDate(0, seq-1, 0),
			Status:  model.InstallmentStatusPending,
		})
	}

	if err := s.store.CreatePlan(ctx, plan); err != nil {
		return nil, err
	}

	log.Info().
		Str("plan_id", plan.ID.String()).
		Int64("user_id", userID).
		Int64("total_price", totalPrice).
		Int("months", months).
		Msg("installment plan created")

	return plan, nil
}

func (s *InstallmentService) Get(ctx context.Context, planID uuid.UUID) (*model.InstallmentPlan, error) {
	return s.store.GetPlan(ctx, planID)
}

// RunDaily scans all open plans, accrues capped late fees on overdue
// installments and transitions plan state.
func (s *InstallmentService) RunDaily(ctx context.Context, now time.Time) *PenaltyStats {
	stats := &PenaltyStats{}

	plans, err := s.store.ListPlansForPenaltyCheck(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list plans for penalty check")
		stats.Errors++
		return stats
	}

	for i := range plans {
		if ctx.Err() != nil {
			return stats
		}
		plan := &plans[i]
		stats.PlansChecked++

		eval := evaluatePlan(plan, now, s.gracePeriod, s.lateFeeRate, s.capRate)
		if !eval.Changed() {
			continue
		}

		if err := s.persistEvaluation(ctx, plan, eval); err != nil {
			log.Warn().Err(err).Str("plan_id", plan.ID.String()).Msg("failed to persist penalty evaluation")
			stats.Errors++
			continue
		}

		stats.PenaltiesApplied += len(eval.Overdue)
		stats.TotalFeesAccrued += eval.FeeDelta
		if eval.PlanStatus == model.PlanStatusLate {
			stats.PlansLate++
		}
		if eval.FeeDelta > 0 {
			s.notifyHolder(ctx, plan, eval.FeeDelta)
			stats.NotificationsSent++
		}
	}

	log.Info().
		Int("plans_checked", stats.PlansChecked).
		Int("penalties_applied", stats.PenaltiesApplied).
		Int("plans_late", stats.PlansLate).
		Int64("total_fees", stats.TotalFeesAccrued).
		Msg("daily installment penalty run complete")

	return stats
}

// RunWeekly is the daily pass plus an aggregate operator summary.
func (s *InstallmentService) RunWeekly(ctx context.Context, now time.Time) *PenaltyStats {
	stats := s.RunDaily(ctx, now)

	if s.alerter != nil {
		msg := fmt.Sprintf(
			"Weekly installment summary: %d plans checked, %d late, %d penalties applied, %d total fees accrued, %d errors.",
			stats.PlansChecked, stats.PlansLate, stats.PenaltiesApplied, stats.TotalFeesAccrued, stats.Errors)
		if err := s.alerter.Alert(msg); err != nil {
			log.Warn().Err(err).Msg("weekly summary alert failed")
		}
	}
	return stats
}

// RunMonthly applies one month's penalty on the entire outstanding
// balance of plans already late, capped against the existing fee.
func (s *InstallmentService) RunMonthly(ctx context.Context, now time.Time) *PenaltyStats {
	stats := &PenaltyStats{}

	plans, err := s.store.ListLatePlans(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list late plans")
		stats.Errors++
		return stats
	}

	for i := range plans {
		if ctx.Err() != nil {
			return stats
		}
		plan := &plans[i]
		stats.PlansChecked++

		delta := monthlyPenalty(plan, s.lateFeeRate, s.capRate)
		newFee := plan.CurrentLateFee + delta
		monthsLate := plan.MonthsLate + 1

		if err := s.store.SavePlanPenaltyState(ctx, plan.ID, plan.Status, newFee, monthsLate); err != nil {
			log.Warn().Err(err).Str("plan_id", plan.ID.String()).Msg("failed to apply monthly penalty")
			stats.Errors++
			continue
		}
		plan.CurrentLateFee = newFee
		plan.MonthsLate = monthsLate

		stats.TotalFeesAccrued += delta
		if delta > 0 {
			stats.PenaltiesApplied++
			s.notifyHolder(ctx, plan, delta)
			stats.NotificationsSent++
		}
	}

	log.Info().
		Int("plans_checked", stats.PlansChecked).
		Int("penalties_applied", stats.PenaltiesApplied).
		Int64("total_fees", stats.TotalFeesAccrued).
		Msg("monthly installment penalty run complete")

	return stats
}

// ApplyPayment applies money to a plan's oldest unpaid installments
// and completes the plan once everything is paid. Returns the amount
// actually applied.
func (s *InstallmentService) ApplyPayment(ctx context.Context, planID uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return 0, err
	}
	if plan.Status == model.PlanStatusCompleted || plan.Status == model.PlanStatusCancelled {
		return 0, ErrPlanNotPayable
	}

	remaining := amount

	// Accrued late fees settle before any principal.
	feePaid := money.Min(remaining, plan.CurrentLateFee)
	plan.CurrentLateFee -= feePaid
	remaining -= feePaid

	var touched []model.Installment
	principal := int64(0)
	allPaid := true

	for i := range plan.Installments {
		inst := &plan.Installments[i]
		if inst.Status == model.InstallmentStatusPaid {
			continue
		}
		if remaining > 0 {
			pay := money.Min(remaining, inst.Remaining())
			inst.PaidAmount += pay
			remaining -= pay
			principal += pay
			if inst.Remaining() == 0 {
				inst.Status = model.InstallmentStatusPaid
			}
			touched = append(touched, *inst)
		}
		if inst.Status != model.InstallmentStatusPaid {
			allPaid = false
		}
	}

	plan.TotalPaid += principal
	applied := feePaid + principal

	switch {
	case allPaid && plan.CurrentLateFee == 0:
		plan.Status = model.PlanStatusCompleted
	case plan.Status == model.PlanStatusPending:
		plan.Status = model.PlanStatusActive
	case plan.Status == model.PlanStatusLate && !anyOverdue(plan, time.Now(), s.gracePeriod):
		plan.Status = model.PlanStatusActive
		plan.MonthsLate = 0
	}

	if err := s.store.SavePlanPayment(ctx, plan, touched); err != nil {
		return 0, err
	}

	log.Info().
		Str("plan_id", plan.ID.String()).
		Int64("applied", applied).
		Str("status", string(plan.Status)).
		Msg("installment payment applied")

	return applied, nil
}

func (s *InstallmentService) persistEvaluation(ctx context.Context, plan *model.InstallmentPlan, eval planEvaluation) error {
	for _, o := range eval.Overdue {
		if err := s.store.SaveInstallmentPenalty(ctx, o.InstallmentID, o.LateFee, model.InstallmentStatusOverdue); err != nil {
			return err
		}
	}
	if err := s.store.SavePlanPenaltyState(ctx, plan.ID, eval.PlanStatus, eval.CurrentLateFee, eval.MonthsLate); err != nil {
		return err
	}
	plan.Status = eval.PlanStatus
	plan.CurrentLateFee = eval.CurrentLateFee
	plan.MonthsLate = eval.MonthsLate
	return nil
}

func (s *InstallmentService) notifyHolder(ctx context.Context, plan *model.InstallmentPlan, applied int64) {
	if s.notifier == nil {
		return
	}
	user, err := s.store.GetUser(ctx, plan.UserID)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", plan.UserID).Msg("failed to load plan holder for notification")
		return
	}
	cap := money.Pct(plan.TotalPrice, s.capRate)
	if err := s.notifier.LateFeeApplied(user.Email, plan, applied, cap); err != nil {
		log.Warn().Err(err).Str("plan_id", plan.ID.String()).Msg("late fee notification failed")
	}
}

// overduePenalty is the computed accrual for one overdue installment.
type overduePenalty struct {
	InstallmentID uuid.UUID
	LateFee       int64
	MonthsOverdue int
}

// planEvaluation is the outcome of one daily pass over a plan.
type planEvaluation struct {
	PlanStatus     model.PlanStatus
	CurrentLateFee int64
	MonthsLate     int
	FeeDelta       int64 // newly accrued fees this pass
	Overdue        []overduePenalty
	statusChanged  bool
}

func (e planEvaluation) Changed() bool {
	return len(e.Overdue) > 0 || e.FeeDelta > 0 || e.statusChanged
}

// anyOverdue reports whether the plan still has an unpaid installment
// past its grace period.
func anyOverdue(plan *model.InstallmentPlan, now time.Time, grace time.Duration) bool {
	for _, inst := range plan.Installments {
		if inst.Status == model.InstallmentStatusPaid {
			continue
		}
		if now.Sub(inst.DueDate) > grace {
			return true
		}
	}
	return false
}

// evaluatePlan computes the capped late fees for every overdue
// installment of a plan. Pure; the caller persists the result.
func evaluatePlan(plan *model.InstallmentPlan, now time.Time, grace time.Duration, rate, capRate money.BPS) planEvaluation {
	eval := planEvaluation{
		PlanStatus:     plan.Status,
		CurrentLateFee: plan.CurrentLateFee,
		MonthsLate:     plan.MonthsLate,
	}
	cap := money.Pct(plan.TotalPrice, capRate)

	totalFees := int64(0)
	maxMonths := 0
	for _, inst := range plan.Installments {
		if inst.Status == model.InstallmentStatusPaid {
			continue
		}
		overdueFor := now.Sub(inst.DueDate)
		if overdueFor <= grace {
			continue
		}

		daysOverdue := int64(overdueFor.Hours() / 24)
		monthsOverdue := int(money.CeilDiv(daysOverdue, overdueMonthDays))
		monthlyPenalty := money.Pct(inst.Remaining(), rate)
		lateFee := money.Min(monthlyPenalty*int64(monthsOverdue), cap)

		eval.Overdue = append(eval.Overdue, overduePenalty{
			InstallmentID: inst.ID,
			LateFee:       lateFee,
			MonthsOverdue: monthsOverdue,
		})
		totalFees += lateFee
		if monthsOverdue > maxMonths {
			maxMonths = monthsOverdue
		}
	}

	if len(eval.Overdue) > 0 {
		eval.PlanStatus = model.PlanStatusLate
		if maxMonths > eval.MonthsLate {
			eval.MonthsLate = maxMonths
		}
		// The monthly job accrues on the whole outstanding balance and
		// may exceed the per-installment sum; never roll it back.
		newFee := money.Min(totalFees, cap)
		if newFee > eval.CurrentLateFee {
			eval.FeeDelta = newFee - eval.CurrentLateFee
			eval.CurrentLateFee = newFee
		}
	} else if plan.Status == model.PlanStatusLate {
		// Every overdue installment has been settled; the plan is in
		// good standing again. Any unpaid fee stays collectible.
		eval.PlanStatus = model.PlanStatusActive
		eval.MonthsLate = 0
	}
	eval.statusChanged = eval.PlanStatus != plan.Status

	return eval
}

// monthlyPenalty prices one month of lateness on a plan's whole
// outstanding balance, respecting the cap already consumed.
func monthlyPenalty(plan *model.InstallmentPlan, rate, capRate money.BPS) int64 {
	cap := money.Pct(plan.TotalPrice, capRate)
	headroom := cap - plan.CurrentLateFee
	if headroom <= 0 {
		return 0
	}
	outstanding := plan.TotalPrice - plan.TotalPaid
	if outstanding <= 0 {
		return 0
	}
	return money.Min(money.Pct(outstanding, rate), headroom)
}
