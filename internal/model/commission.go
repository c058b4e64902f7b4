package model

import (
	"time"

	"github.com/google/uuid"
)

type CommissionStatus string

const (
	CommissionStatusEarned CommissionStatus = "earned"
	CommissionStatusPaid   CommissionStatus = "paid"
)

// Commission is a referral reward earned by an upline user from a
// downline user's completed purchase. Uniquely keyed by
// (beneficiary, referred user, generation, source ref).
type Commission struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	BeneficiaryID  int64            `json:"beneficiary_id" db:"beneficiary_id"`
	ReferredUserID int64            `json:"referred_user_id" db:"referred_user_id"`
	Generation     int              `json:"generation" db:"generation"` // 1..3
	Amount         int64            `json:"amount" db:"amount"`
	Currency       Currency         `json:"currency" db:"currency"`
	SourceRef      string           `json:"source_ref" db:"source_ref"`
	Status         CommissionStatus `json:"status" db:"status"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
}

// GenerationStats is one generation's slice of a user's referral earnings.
type GenerationStats struct {
	Count    int   `json:"count"`
	Earnings int64 `json:"earnings"`
}

// ReferralAggregate is the cached per-user rollup over commissions.
type ReferralAggregate struct {
	UserID        int64     `json:"user_id" db:"user_id"`
	ReferredUsers int       `json:"referred_users" db:"referred_users"`
	TotalEarnings int64     `json:"total_earnings" db:"total_earnings"`
	Gen1Count     int       `json:"-" db:"gen1_count"`
	Gen1Earnings  int64     `json:"-" db:"gen1_earnings"`
	Gen2Count     int       `json:"-" db:"gen2_count"`
	Gen2Earnings  int64     `json:"-" db:"gen2_earnings"`
	Gen3Count     int       `json:"-" db:"gen3_count"`
	Gen3Earnings  int64     `json:"-" db:"gen3_earnings"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// PerGen returns the aggregate's per-generation stats indexed 1..3.
func (a *ReferralAggregate) PerGen() map[int]GenerationStats {
	return map[int]GenerationStats{
		1: {Count: a.Gen1Count, Earnings: a.Gen1Earnings},
		2: {Count: a.Gen2Count, Earnings: a.Gen2Earnings},
		3: {Count: a.Gen3Count, Earnings: a.Gen3Earnings},
	}
}
