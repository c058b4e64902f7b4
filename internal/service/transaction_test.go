package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sharevest/backend/internal/model"
)

func TestRecordPurchaseCreditsUpline(t *testing.T) {
	store := newChainStore()
	svc := NewTransactionService(store, NewReferralService(store, defaultRates()))

	txn := &model.Transaction{
		UserID:    4,
		Amount:    100000,
		Currency:  model.CurrencyNaira,
		SourceRef: "TXN-1",
	}
	if err := svc.Record(context.Background(), txn); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if txn.SourceKind != model.SourceKindShare {
		t.Errorf("source kind = %s, want share default", txn.SourceKind)
	}
	if txn.CompletedAt.IsZero() {
		t.Error("completed at not stamped")
	}

	got, err := store.GetTransactionBySourceRef(context.Background(), "TXN-1")
	if err != nil {
		t.Fatalf("GetTransactionBySourceRef: %v", err)
	}
	if got.Amount != 100000 {
		t.Errorf("amount = %d, want 100000", got.Amount)
	}

	// The live referral hook fired for all three generations.
	if len(store.commissions) != 3 {
		t.Errorf("commissions = %d, want 3", len(store.commissions))
	}
}

func TestRecordRejectsDuplicateSourceRef(t *testing.T) {
	store := newChainStore()
	svc := NewTransactionService(store, NewReferralService(store, defaultRates()))

	first := &model.Transaction{UserID: 4, Amount: 100000, Currency: model.CurrencyNaira, SourceRef: "TXN-1"}
	if err := svc.Record(context.Background(), first); err != nil {
		t.Fatal(err)
	}

	replay := &model.Transaction{UserID: 4, Amount: 100000, Currency: model.CurrencyNaira, SourceRef: "TXN-1"}
	if err := svc.Record(context.Background(), replay); !errors.Is(err, ErrDuplicateSourceRef) {
		t.Errorf("err = %v, want ErrDuplicateSourceRef", err)
	}
	if len(store.txns[4]) != 1 {
		t.Errorf("transactions = %d, want 1", len(store.txns[4]))
	}
	if len(store.commissions) != 3 {
		t.Errorf("commissions = %d, want 3 (replay must not re-credit)", len(store.commissions))
	}
}

func TestRecordValidation(t *testing.T) {
	store := newChainStore()
	svc := NewTransactionService(store, nil)

	if err := svc.Record(context.Background(), &model.Transaction{UserID: 4, Amount: 0, Currency: model.CurrencyNaira, SourceRef: "T"}); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("err = %v, want ErrInvalidAmount", err)
	}
	if err := svc.Record(context.Background(), &model.Transaction{UserID: 4, Amount: 100, Currency: model.Currency("eur"), SourceRef: "T"}); !errors.Is(err, ErrInvalidCurrency) {
		t.Errorf("err = %v, want ErrInvalidCurrency", err)
	}
}
