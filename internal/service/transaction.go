package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sharevest/backend/internal/model"
	"github.com/sharevest/backend/internal/repository"
)

var ErrDuplicateSourceRef = errors.New("source reference already recorded")

// TransactionStore is the persistence surface for completed purchases.
// Implemented by *repository.Repository; faked in tests.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, txn *model.Transaction) error
	GetTransactionBySourceRef(ctx context.Context, sourceRef string) (*model.Transaction, error)
}

// TransactionService records completed share purchases and feeds them
// to the referral engine.
type TransactionService struct {
	store       TransactionStore
	referralSvc *ReferralService
}

func NewTransactionService(store TransactionStore, referralSvc *ReferralService) *TransactionService {
	return &TransactionService{store: store, referralSvc: referralSvc}
}

// Record persists a completed purchase and credits the buyer's upline.
// Source references are unique; a replay of the same reference returns
// ErrDuplicateSourceRef without touching commissions. A failure in the
// referral hook is logged and never fails the record: the batch
// recompute repairs any missed commission.
func (s *TransactionService) Record(ctx context.Context, txn *model.Transaction) error {
	if txn.Amount <= 0 {
		return ErrInvalidAmount
	}
	if txn.Currency != model.CurrencyNaira && txn.Currency != model.CurrencyUSDT {
		return ErrInvalidCurrency
	}
	if txn.SourceKind == "" {
		txn.SourceKind = model.SourceKindShare
	}
	if txn.CompletedAt.IsZero() {
		txn.CompletedAt = time.Now()
	}

	if existing, err := s.store.GetTransactionBySourceRef(ctx, txn.SourceRef); err == nil && existing != nil {
		return ErrDuplicateSourceRef
	} else if err != nil && !errors.Is(err, repository.ErrTransactionNotFound) {
		return err
	}

	if err := s.store.CreateTransaction(ctx, txn); err != nil {
		return err
	}

	log.Info().
		Str("transaction_id", txn.ID.String()).
		Int64("user_id", txn.UserID).
		Int64("amount", txn.Amount).
		Str("source_ref", txn.SourceRef).
		Msg("purchase recorded")

	if s.referralSvc != nil {
		if err := s.referralSvc.OnTransactionCompleted(ctx, txn); err != nil {
			log.Warn().Err(err).
				Str("source_ref", txn.SourceRef).
				Msg("referral hook failed, batch recompute will backfill")
		}
	}
	return nil
}

func (s *TransactionService) GetBySourceRef(ctx context.Context, sourceRef string) (*model.Transaction, error) {
	return s.store.GetTransactionBySourceRef(ctx, sourceRef)
}
