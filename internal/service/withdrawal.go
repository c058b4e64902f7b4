package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sharevest/backend/internal/gateway"
	"github.com/sharevest/backend/internal/model"
	"github.com/sharevest/backend/internal/repository"
)

var (
	ErrInvalidAmount   = errors.New("withdrawal amount must be positive")
	ErrInvalidCurrency = errors.New("unsupported currency")
)

// WithdrawalStore is the persistence surface the state machine needs.
// Implemented by *repository.Repository; faked in tests.
type WithdrawalStore interface {
	CreateWithdrawal(ctx context.Context, w *model.Withdrawal) error
	GetWithdrawal(ctx context.Context, id uuid.UUID) (*model.Withdrawal, error)
	GetWithdrawalByClientReference(ctx context.Context, clientReference string) (*model.Withdrawal, error)
	ListWithdrawalsByStatus(ctx context.Context, status model.WithdrawalStatus) ([]model.Withdrawal, error)
	ListFlaggedWithdrawals(ctx context.Context) ([]model.Withdrawal, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	MarkPaid(ctx context.Context, id uuid.UUID, from model.WithdrawalStatus, providerRef string) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, from model.WithdrawalStatus, reason string, failedAt *time.Time) (bool, error)
	FlagWithdrawal(ctx context.Context, id uuid.UUID) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetLedgerBuckets(ctx context.Context, userID int64, currency model.Currency) (*model.LedgerBuckets, error)
}

// Notifier delivers user-facing notifications after state changes.
// Implemented by notify.Mailer. All calls are best-effort.
type Notifier interface {
	WithdrawalPaid(email string, w *model.Withdrawal) error
	WithdrawalFailed(email string, w *model.Withdrawal) error
	LateFeeApplied(email string, plan *model.InstallmentPlan, applied int64, cap int64) error
}

// Alerter pushes operator alerts. Implemented by notify.OpsAlerter.
type Alerter interface {
	Alert(message string) error
}

type WithdrawalService struct {
	store    WithdrawalStore
	notifier Notifier
	alerter  Alerter
}

func NewWithdrawalService(store WithdrawalStore) *WithdrawalService {
	return &WithdrawalService{store: store}
}

// SetNotifier sets the notifier for user notifications.
func (s *WithdrawalService) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetAlerter sets the operator alert channel.
func (s *WithdrawalService) SetAlerter(a Alerter) {
	s.alerter = a
}

// Submit records a new withdrawal in pending and credits the pending
// bucket. The client reference is generated when the caller does not
// supply one.
func (s *WithdrawalService) Submit(ctx context.Context, userID int64, amount int64, currency model.Currency, destination, clientReference string) (*model.Withdrawal, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if currency != model.CurrencyNaira && currency != model.CurrencyUSDT {
		return nil, ErrInvalidCurrency
	}
	if clientReference == "" {
		clientReference = uuid.NewString()
	}

	w := &model.Withdrawal{
		UserID:          userID,
		Amount:          amount,
		Currency:        currency,
		Destination:     destination,
		ClientReference: clientReference,
	}
	if err := s.store.CreateWithdrawal(ctx, w); err != nil {
		return nil, err
	}

	log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("client_reference", w.ClientReference).
		Int64("user_id", userID).
		Int64("amount", amount).
		Msg("withdrawal submitted")

	return w, nil
}

func (s *WithdrawalService) Get(ctx context.Context, id uuid.UUID) (*model.Withdrawal, error) {
	return s.store.GetWithdrawal(ctx, id)
}

func (s *WithdrawalService) GetByClientReference(ctx context.Context, clientReference string) (*model.Withdrawal, error) {
	return s.store.GetWithdrawalByClientReference(ctx, clientReference)
}

func (s *WithdrawalService) ListFlagged(ctx context.Context) ([]model.Withdrawal, error) {
	return s.store.ListFlaggedWithdrawals(ctx)
}

func (s *WithdrawalService) Buckets(ctx context.Context, userID int64, currency model.Currency) (*model.LedgerBuckets, error) {
	return s.store.GetLedgerBuckets(ctx, userID, currency)
}

// Apply feeds one gateway result into the state machine. It returns
// whether a transition happened. Terminal withdrawals and unknown
// gateway statuses are no-ops, so Apply is safe to call at any
// frequency with the same inputs.
func (s *WithdrawalService) Apply(ctx context.Context, w *model.Withdrawal, res *gateway.Result) (bool, error) {
	if w.Status.IsTerminal() || w.Flagged {
		return false, nil
	}

	switch {
	case res.Status == gateway.StatusSuccessful:
		return s.applyPaid(ctx, w, res)

	case res.Status == gateway.StatusProcessing:
		if w.Status != model.WithdrawalStatusPending {
			return false, nil
		}
		applied, err := s.store.MarkProcessing(ctx, w.ID)
		if err != nil {
			return false, s.handleTransitionErr(ctx, w, "pending -> processing", err)
		}
		if applied {
			log.Info().
				Str("withdrawal_id", w.ID.String()).
				Msg("withdrawal moved to processing")
		}
		return applied, nil

	case res.IsFailure():
		return s.applyFailed(ctx, w, res)

	default: // unknown: provider has not seen the reference yet
		return false, nil
	}
}

func (s *WithdrawalService) applyPaid(ctx context.Context, w *model.Withdrawal, res *gateway.Result) (bool, error) {
	applied, err := s.store.MarkPaid(ctx, w.ID, w.Status, res.ProviderRef)
	if err != nil {
		return false, s.handleTransitionErr(ctx, w, fmt.Sprintf("%s -> paid", w.Status), err)
	}
	if !applied {
		return false, nil
	}

	log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("provider_reference", res.ProviderRef).
		Msg("withdrawal paid")

	// Notification and receipt happen after commit; a failure here is
	// logged and never rolls back the transition.
	if s.notifier != nil {
		paid, err := s.store.GetWithdrawal(ctx, w.ID)
		if err == nil {
			if user, err := s.store.GetUser(ctx, w.UserID); err == nil {
				if err := s.notifier.WithdrawalPaid(user.Email, paid); err != nil {
					log.Warn().Err(err).Str("withdrawal_id", w.ID.String()).Msg("paid notification failed")
				}
			}
		}
	}
	return true, nil
}

func (s *WithdrawalService) applyFailed(ctx context.Context, w *model.Withdrawal, res *gateway.Result) (bool, error) {
	applied, err := s.store.MarkFailed(ctx, w.ID, w.Status, res.FailureReason, res.FailedAt)
	if err != nil {
		return false, s.handleTransitionErr(ctx, w, fmt.Sprintf("%s -> failed", w.Status), err)
	}
	if !applied {
		return false, nil
	}

	log.Info().
		Str("withdrawal_id", w.ID.String()).
		Str("reason", res.FailureReason).
		Msg("withdrawal failed, funds returned to available balance")

	if s.notifier != nil {
		failed, err := s.store.GetWithdrawal(ctx, w.ID)
		if err == nil {
			if user, err := s.store.GetUser(ctx, w.UserID); err == nil {
				if err := s.notifier.WithdrawalFailed(user.Email, failed); err != nil {
					log.Warn().Err(err).Str("withdrawal_id", w.ID.String()).Msg("failed notification failed")
				}
			}
		}
	}
	return true, nil
}

// handleTransitionErr flags the withdrawal and alerts the operator
// when the ledger refused the move; anything else passes through.
func (s *WithdrawalService) handleTransitionErr(ctx context.Context, w *model.Withdrawal, transition string, err error) error {
	if !errors.Is(err, repository.ErrInsufficientBucket) {
		return err
	}

	if flagErr := s.store.FlagWithdrawal(ctx, w.ID); flagErr != nil {
		log.Error().Err(flagErr).Str("withdrawal_id", w.ID.String()).Msg("failed to flag withdrawal")
	}
	log.Error().
		Str("withdrawal_id", w.ID.String()).
		Str("transition", transition).
		Msg("ledger inconsistency, withdrawal flagged for manual reconciliation")

	if s.alerter != nil {
		msg := fmt.Sprintf("Ledger inconsistency on withdrawal %s (%s): bucket underflow during %s. Record flagged.",
			w.ID, w.ClientReference, transition)
		if alertErr := s.alerter.Alert(msg); alertErr != nil {
			log.Warn().Err(alertErr).Msg("operator alert failed")
		}
	}
	return fmt.Errorf("withdrawal %s: %w", w.ID, err)
}
