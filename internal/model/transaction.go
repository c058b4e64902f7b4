package model

import (
	"time"

	"github.com/google/uuid"
)

type Currency string

const (
	CurrencyNaira Currency = "naira"
	CurrencyUSDT  Currency = "usdt"
)

type SourceKind string

const (
	SourceKindShare     SourceKind = "share"
	SourceKindCofounder SourceKind = "cofounder"
)

// Transaction is a completed share purchase. Immutable once completed.
type Transaction struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	UserID      int64      `json:"user_id" db:"user_id"`
	Amount      int64      `json:"amount" db:"amount"` // minor units
	Currency    Currency   `json:"currency" db:"currency"`
	SourceKind  SourceKind `json:"source_kind" db:"source_kind"`
	SourceRef   string     `json:"source_ref" db:"source_ref"`
	CompletedAt time.Time  `json:"completed_at" db:"completed_at"`
}
