package model

import (
	"time"

	"github.com/google/uuid"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusPaid       WithdrawalStatus = "paid"
	WithdrawalStatusFailed     WithdrawalStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalStatusPaid || s == WithdrawalStatusFailed
}

type Withdrawal struct {
	ID                uuid.UUID        `json:"id" db:"id"`
	UserID            int64            `json:"user_id" db:"user_id"`
	Amount            int64            `json:"amount" db:"amount"`
	Currency          Currency         `json:"currency" db:"currency"`
	Destination       string           `json:"destination" db:"destination"` // bank/wallet details, opaque JSON
	ClientReference   string           `json:"client_reference" db:"client_reference"`
	Status            WithdrawalStatus `json:"status" db:"status"`
	ProviderReference *string          `json:"provider_reference,omitempty" db:"provider_reference"`
	FailureReason     *string          `json:"failure_reason,omitempty" db:"failure_reason"`
	Flagged           bool             `json:"flagged" db:"flagged"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	ProcessingAt      *time.Time       `json:"processing_at,omitempty" db:"processing_at"`
	PaidAt            *time.Time       `json:"paid_at,omitempty" db:"paid_at"`
	FailedAt          *time.Time       `json:"failed_at,omitempty" db:"failed_at"`
}
