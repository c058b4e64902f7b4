package model

import "time"

// Bucket names a per-user, per-currency accumulator. Every withdrawal
// amount lives in exactly one bucket matching its status, except failed
// withdrawals whose funds return to the user's available pool.
type Bucket string

const (
	BucketPending    Bucket = "pending"
	BucketProcessing Bucket = "processing"
	BucketWithdrawn  Bucket = "withdrawn"
)

// LedgerBuckets holds the three withdrawal buckets for one user and
// currency. Amounts are non-negative minor units.
type LedgerBuckets struct {
	UserID        int64     `json:"user_id" db:"user_id"`
	Currency      Currency  `json:"currency" db:"currency"`
	PendingAmt    int64     `json:"pending_amt" db:"pending_amt"`
	ProcessingAmt int64     `json:"processing_amt" db:"processing_amt"`
	WithdrawnAmt  int64     `json:"withdrawn_amt" db:"withdrawn_amt"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
