package model

import (
	"time"

	"github.com/google/uuid"
)

type PlanStatus string

const (
	PlanStatusPending   PlanStatus = "pending"
	PlanStatusActive    PlanStatus = "active"
	PlanStatusLate      PlanStatus = "late"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusCancelled PlanStatus = "cancelled"
)

type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "pending"
	InstallmentStatusPaid    InstallmentStatus = "paid"
	InstallmentStatusOverdue InstallmentStatus = "overdue"
)

type InstallmentPlan struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	UserID         int64      `json:"user_id" db:"user_id"`
	TotalPrice     int64      `json:"total_price" db:"total_price"`
	Currency       Currency   `json:"currency" db:"currency"`
	Status         PlanStatus `json:"status" db:"status"`
	LateFeeBPS     int64      `json:"late_fee_bps" db:"late_fee_bps"` // monthly rate, basis points
	CurrentLateFee int64      `json:"current_late_fee" db:"current_late_fee"`
	MonthsLate     int        `json:"months_late" db:"months_late"`
	TotalPaid      int64      `json:"total_paid" db:"total_paid"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`

	Installments []Installment `json:"installments,omitempty" db:"-"`
}

type Installment struct {
	ID         uuid.UUID         `json:"id" db:"id"`
	PlanID     uuid.UUID         `json:"plan_id" db:"plan_id"`
	Seq        int               `json:"seq" db:"seq"`
	Amount     int64             `json:"amount" db:"amount"`
	PaidAmount int64             `json:"paid_amount" db:"paid_amount"`
	DueDate    time.Time         `json:"due_date" db:"due_date"`
	LateFee    int64             `json:"late_fee" db:"late_fee"`
	Status     InstallmentStatus `json:"status" db:"status"`
	UpdatedAt  time.Time         `json:"updated_at" db:"updated_at"`
}

// Remaining is the unpaid portion of the installment principal.
func (i *Installment) Remaining() int64 {
	return i.Amount - i.PaidAmount
}
