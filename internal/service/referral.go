package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sharevest/backend/internal/config"
	"github.com/sharevest/backend/internal/model"
	"github.com/sharevest/backend/internal/money"
	"github.com/sharevest/backend/internal/repository"
)

// ReferralStore is the persistence surface of the referral engine.
// Implemented by *repository.Repository; faked in tests.
type ReferralStore interface {
	ListUsersWithHandle(ctx context.Context) ([]model.User, error)
	ListCompletedTransactions(ctx context.Context, userID int64) ([]model.Transaction, error)
	ListCommissionsByBeneficiary(ctx context.Context, beneficiaryID int64) ([]model.Commission, error)
	ReplaceBeneficiaryCommissions(ctx context.Context, beneficiaryID int64, commissions []model.Commission, agg *model.ReferralAggregate) error
	InsertCommission(ctx context.Context, c *model.Commission) (bool, error)
	RefreshReferralAggregate(ctx context.Context, userID int64) error
	GetReferralAggregate(ctx context.Context, userID int64) (*model.ReferralAggregate, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByHandle(ctx context.Context, handle string) (*model.User, error)
}

// RecomputeStats summarizes one full recompute run.
type RecomputeStats struct {
	Processed          int                      `json:"processed"`
	WithReferrals      int                      `json:"with_referrals"`
	CommissionsCreated int                      `json:"commissions_created"`
	Earnings           map[model.Currency]int64 `json:"earnings"`
	Errors             int                      `json:"errors"`
}

type ReferralService struct {
	store ReferralStore
	rates [3]money.BPS // generation 1..3 commission rates
}

func NewReferralService(store ReferralStore, cfg config.ReferralConfig) *ReferralService {
	return &ReferralService{
		store: store,
		rates: [3]money.BPS{
			money.ParsePercent(cfg.Gen1Percent),
			money.ParsePercent(cfg.Gen2Percent),
			money.ParsePercent(cfg.Gen3Percent),
		},
	}
}

func (s *ReferralService) GetAggregate(ctx context.Context, userID int64) (*model.ReferralAggregate, error) {
	return s.store.GetReferralAggregate(ctx, userID)
}

func (s *ReferralService) ListCommissions(ctx context.Context, userID int64) ([]model.Commission, error) {
	return s.store.ListCommissionsByBeneficiary(ctx, userID)
}

// Recompute deletes and regenerates every beneficiary's commissions
// from completed transactions across three referral generations, then
// rebuilds the aggregates. Running it twice back to back yields the
// same commissions and aggregates.
func (s *ReferralService) Recompute(ctx context.Context) (*RecomputeStats, error) {
	stats := &RecomputeStats{Earnings: make(map[model.Currency]int64)}

	users, err := s.store.ListUsersWithHandle(ctx)
	if err != nil {
		return nil, err
	}

	graph := buildReferralGraph(users)
	txnCache := make(map[int64][]model.Transaction)

	for i := range users {
		// Stop between beneficiaries on shutdown, never mid-replace.
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		u := &users[i]
		commissions, agg, err := s.computeBeneficiary(ctx, u, graph, txnCache)
		if err != nil {
			log.Warn().Err(err).
				Int64("beneficiary_id", u.ID).
				Str("handle", u.Handle).
				Msg("failed to compute commissions")
			stats.Errors++
			continue
		}

		if err := s.store.ReplaceBeneficiaryCommissions(ctx, u.ID, commissions, agg); err != nil {
			log.Warn().Err(err).
				Int64("beneficiary_id", u.ID).
				Msg("failed to replace commissions")
			stats.Errors++
			continue
		}

		stats.Processed++
		if agg.ReferredUsers > 0 {
			stats.WithReferrals++
		}
		stats.CommissionsCreated += len(commissions)
		for _, c := range commissions {
			stats.Earnings[c.Currency] += c.Amount
		}
	}

	log.Info().
		Int("processed", stats.Processed).
		Int("with_referrals", stats.WithReferrals).
		Int("commissions_created", stats.CommissionsCreated).
		Int("errors", stats.Errors).
		Msg("referral recompute complete")

	return stats, nil
}

// computeBeneficiary walks up to three generations below a beneficiary
// and prices every completed purchase in the subtree.
func (s *ReferralService) computeBeneficiary(ctx context.Context, u *model.User, graph *referralGraph, txnCache map[int64][]model.Transaction) ([]model.Commission, *model.ReferralAggregate, error) {
	agg := &model.ReferralAggregate{UserID: u.ID}
	var commissions []model.Commission

	generation := graph.directReferrals(u)
	agg.ReferredUsers = len(generation)

	for gen := 1; gen <= 3; gen++ {
		var next []*model.User
		for _, downline := range generation {
			txns, err := s.transactionsOf(ctx, downline.ID, txnCache)
			if err != nil {
				return nil, nil, err
			}
			for _, t := range txns {
				amount := money.Pct(t.Amount, s.rates[gen-1])
				commissions = append(commissions, model.Commission{
					BeneficiaryID:  u.ID,
					ReferredUserID: downline.ID,
					Generation:     gen,
					Amount:         amount,
					Currency:       t.Currency,
					SourceRef:      t.SourceRef,
					Status:         model.CommissionStatusEarned,
				})
				applyToAggregate(agg, gen, amount)
			}
			next = append(next, graph.directReferrals(downline)...)
		}
		generation = next
	}

	return commissions, agg, nil
}

func (s *ReferralService) transactionsOf(ctx context.Context, userID int64, cache map[int64][]model.Transaction) ([]model.Transaction, error) {
	if txns, ok := cache[userID]; ok {
		return txns, nil
	}
	txns, err := s.store.ListCompletedTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	cache[userID] = txns
	return txns, nil
}

// OnTransactionCompleted is the live hook: when a purchase completes,
// credit up to three upline generations immediately. It uses the same
// uniqueness key as the batch recompute, so a conflict means the row
// already exists and is treated as success.
func (s *ReferralService) OnTransactionCompleted(ctx context.Context, txn *model.Transaction) error {
	buyer, err := s.store.GetUser(ctx, txn.UserID)
	if err != nil {
		return err
	}

	current := buyer
	for gen := 1; gen <= 3; gen++ {
		if current.ReferredBy == nil || *current.ReferredBy == "" {
			return nil
		}
		if strings.EqualFold(*current.ReferredBy, current.Handle) {
			log.Warn().
				Int64("user_id", current.ID).
				Str("handle", current.Handle).
				Msg("user is their own referrer, chain terminated")
			return nil
		}

		upline, err := s.findReferrer(ctx, *current.ReferredBy)
		if err != nil {
			return err
		}
		if upline == nil {
			// Dangling referredBy terminates the chain.
			return nil
		}

		c := &model.Commission{
			BeneficiaryID:  upline.ID,
			ReferredUserID: buyer.ID,
			Generation:     gen,
			Amount:         money.Pct(txn.Amount, s.rates[gen-1]),
			Currency:       txn.Currency,
			SourceRef:      txn.SourceRef,
			Status:         model.CommissionStatusEarned,
		}
		if _, err := s.store.InsertCommission(ctx, c); err != nil {
			return err
		}
		if err := s.store.RefreshReferralAggregate(ctx, upline.ID); err != nil {
			return err
		}

		current = upline
	}
	return nil
}

func (s *ReferralService) findReferrer(ctx context.Context, handle string) (*model.User, error) {
	u, err := s.store.GetUserByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func applyToAggregate(agg *model.ReferralAggregate, gen int, amount int64) {
	agg.TotalEarnings += amount
	switch gen {
	case 1:
		agg.Gen1Count++
		agg.Gen1Earnings += amount
	case 2:
		agg.Gen2Count++
		agg.Gen2Earnings += amount
	case 3:
		agg.Gen3Count++
		agg.Gen3Earnings += amount
	}
}

// referralGraph is the adjacency table handle -> direct referrals,
// built once per recompute. Handles match case-insensitively; a user
// referring themselves is dropped with a warning, and cycles deeper
// than three generations are cut by the depth bound.
type referralGraph struct {
	children map[string][]*model.User
}

func buildReferralGraph(users []model.User) *referralGraph {
	g := &referralGraph{children: make(map[string][]*model.User)}
	for i := range users {
		u := &users[i]
		if u.ReferredBy == nil || *u.ReferredBy == "" {
			continue
		}
		if strings.EqualFold(*u.ReferredBy, u.Handle) {
			log.Warn().
				Int64("user_id", u.ID).
				Str("handle", u.Handle).
				Msg("user is their own referrer, edge ignored")
			continue
		}
		key := strings.ToLower(*u.ReferredBy)
		g.children[key] = append(g.children[key], u)
	}
	return g
}

func (g *referralGraph) directReferrals(u *model.User) []*model.User {
	return g.children[strings.ToLower(u.Handle)]
}
