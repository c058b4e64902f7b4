package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sharevest/backend/internal/config"
	"github.com/sharevest/backend/internal/model"
)

func defaultRates() config.ReferralConfig {
	return config.ReferralConfig{Gen1Percent: 15, Gen2Percent: 3, Gen3Percent: 2}
}

// A <- B <- C <- D chain: D's purchase pays C, B and A at the
// generation 1, 2 and 3 rates.
func newChainStore() *fakeStore {
	store := newFakeStore()
	store.addUser(1, "alice", "")
	store.addUser(2, "bob", "alice")
	store.addUser(3, "carol", "bob")
	store.addUser(4, "dave", "carol")
	return store
}

func findCommission(t *testing.T, store *fakeStore, beneficiaryID, referredID int64, gen int) *model.Commission {
	t.Helper()
	for i := range store.commissions {
		c := &store.commissions[i]
		if c.BeneficiaryID == beneficiaryID && c.ReferredUserID == referredID && c.Generation == gen {
			return c
		}
	}
	t.Fatalf("no commission for beneficiary %d referred %d gen %d", beneficiaryID, referredID, gen)
	return nil
}

func TestRecomputeThreeGenerationChain(t *testing.T) {
	store := newChainStore()
	store.addTransaction(4, 100000, model.CurrencyNaira, "TXN-1")
	svc := NewReferralService(store, defaultRates())

	stats, err := svc.Recompute(context.Background())
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if stats.Processed != 4 {
		t.Errorf("processed = %d, want 4", stats.Processed)
	}
	if stats.CommissionsCreated != 3 {
		t.Errorf("commissions created = %d, want 3", stats.CommissionsCreated)
	}
	if stats.Errors != 0 {
		t.Errorf("errors = %d, want 0", stats.Errors)
	}

	for _, tc := range []struct {
		beneficiary int64
		gen         int
		amount      int64
	}{
		{3, 1, 15000}, // carol, 15%
		{2, 2, 3000},  // bob, 3%
		{1, 3, 2000},  // alice, 2%
	} {
		c := findCommission(t, store, tc.beneficiary, 4, tc.gen)
		if c.Amount != tc.amount {
			t.Errorf("gen %d commission = %d, want %d", tc.gen, c.Amount, tc.amount)
		}
		if c.Currency != model.CurrencyNaira {
			t.Errorf("gen %d currency = %s, want naira", tc.gen, c.Currency)
		}
		if c.SourceRef != "TXN-1" {
			t.Errorf("gen %d source ref = %s, want TXN-1", tc.gen, c.SourceRef)
		}
	}
	if len(store.commissions) != 3 {
		t.Errorf("total commissions = %d, want 3", len(store.commissions))
	}
	if stats.Earnings[model.CurrencyNaira] != 20000 {
		t.Errorf("naira earnings = %d, want 20000", stats.Earnings[model.CurrencyNaira])
	}
}

// Running the recompute twice yields identical commissions and
// aggregates.
func TestRecomputeIsIdempotent(t *testing.T) {
	store := newChainStore()
	store.addTransaction(4, 100000, model.CurrencyNaira, "TXN-1")
	store.addTransaction(3, 50000, model.CurrencyUSDT, "TXN-2")
	svc := NewReferralService(store, defaultRates())

	first, err := svc.Recompute(context.Background())
	if err != nil {
		t.Fatalf("first Recompute: %v", err)
	}
	firstCount := len(store.commissions)
	firstAgg, _ := store.GetReferralAggregate(context.Background(), 1)

	second, err := svc.Recompute(context.Background())
	if err != nil {
		t.Fatalf("second Recompute: %v", err)
	}
	if len(store.commissions) != firstCount {
		t.Errorf("commissions after rerun = %d, want %d", len(store.commissions), firstCount)
	}
	if second.CommissionsCreated != first.CommissionsCreated {
		t.Errorf("created = %d, want %d", second.CommissionsCreated, first.CommissionsCreated)
	}
	secondAgg, _ := store.GetReferralAggregate(context.Background(), 1)
	if *secondAgg != *firstAgg {
		t.Errorf("aggregate changed across reruns: %+v vs %+v", secondAgg, firstAgg)
	}
}

func TestRecomputeAggregatesMatchCommissions(t *testing.T) {
	store := newChainStore()
	store.addTransaction(4, 100000, model.CurrencyNaira, "TXN-1")
	store.addTransaction(2, 200000, model.CurrencyNaira, "TXN-3")
	svc := NewReferralService(store, defaultRates())

	if _, err := svc.Recompute(context.Background()); err != nil {
		t.Fatalf("Recompute: %v", err)
	}

	// alice earns gen 1 from bob's 200000 (30000) plus gen 3 from
	// dave's 100000 (2000).
	agg, _ := store.GetReferralAggregate(context.Background(), 1)
	if agg.Gen1Earnings != 30000 || agg.Gen1Count != 1 {
		t.Errorf("gen1 = %d/%d, want 30000/1", agg.Gen1Earnings, agg.Gen1Count)
	}
	if agg.Gen3Earnings != 2000 || agg.Gen3Count != 1 {
		t.Errorf("gen3 = %d/%d, want 2000/1", agg.Gen3Earnings, agg.Gen3Count)
	}
	if agg.TotalEarnings != 32000 {
		t.Errorf("total = %d, want 32000", agg.TotalEarnings)
	}
	if agg.ReferredUsers != 1 {
		t.Errorf("referred users = %d, want 1", agg.ReferredUsers)
	}
}

func TestRecomputeSelfReferralIgnored(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, "loop", "loop")
	store.addTransaction(1, 100000, model.CurrencyNaira, "TXN-1")
	svc := NewReferralService(store, defaultRates())

	stats, err := svc.Recompute(context.Background())
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if len(store.commissions) != 0 {
		t.Errorf("self-referral produced %d commissions", len(store.commissions))
	}
	if stats.Errors != 0 {
		t.Errorf("errors = %d, want 0 (edge ignored, not failed)", stats.Errors)
	}
}

func TestRecomputeDanglingReferrer(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, "bob", "ghost") // referrer never registered
	store.addTransaction(1, 100000, model.CurrencyNaira, "TXN-1")
	svc := NewReferralService(store, defaultRates())

	if _, err := svc.Recompute(context.Background()); err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if len(store.commissions) != 0 {
		t.Errorf("dangling referrer produced %d commissions", len(store.commissions))
	}
}

func TestRecomputeHandlesAreCaseInsensitive(t *testing.T) {
	store := newFakeStore()
	store.addUser(1, "Alice", "")
	store.addUser(2, "bob", "ALICE")
	store.addTransaction(2, 100000, model.CurrencyNaira, "TXN-1")
	svc := NewReferralService(store, defaultRates())

	if _, err := svc.Recompute(context.Background()); err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	c := findCommission(t, store, 1, 2, 1)
	if c.Amount != 15000 {
		t.Errorf("amount = %d, want 15000", c.Amount)
	}
}

// One beneficiary failing to persist must not stop the run.
func TestRecomputeContinuesPastBeneficiaryError(t *testing.T) {
	store := newChainStore()
	store.addTransaction(4, 100000, model.CurrencyNaira, "TXN-1")
	store.replaceErr[2] = errors.New("deadlock detected")
	svc := NewReferralService(store, defaultRates())

	stats, err := svc.Recompute(context.Background())
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if stats.Errors != 1 {
		t.Errorf("errors = %d, want 1", stats.Errors)
	}
	if stats.Processed != 3 {
		t.Errorf("processed = %d, want 3", stats.Processed)
	}
	// The other beneficiaries still got their rows.
	findCommission(t, store, 3, 4, 1)
	findCommission(t, store, 1, 4, 3)
}

func TestOnTransactionCompletedCreditsUpline(t *testing.T) {
	store := newChainStore()
	svc := NewReferralService(store, defaultRates())

	txn := &model.Transaction{
		UserID:    4,
		Amount:    100000,
		Currency:  model.CurrencyNaira,
		SourceRef: "TXN-1",
	}
	if err := svc.OnTransactionCompleted(context.Background(), txn); err != nil {
		t.Fatalf("OnTransactionCompleted: %v", err)
	}

	if got := findCommission(t, store, 3, 4, 1).Amount; got != 15000 {
		t.Errorf("gen1 = %d, want 15000", got)
	}
	if got := findCommission(t, store, 2, 4, 2).Amount; got != 3000 {
		t.Errorf("gen2 = %d, want 3000", got)
	}
	if got := findCommission(t, store, 1, 4, 3).Amount; got != 2000 {
		t.Errorf("gen3 = %d, want 2000", got)
	}

	agg, _ := store.GetReferralAggregate(context.Background(), 3)
	if agg.Gen1Earnings != 15000 {
		t.Errorf("carol gen1 earnings = %d, want 15000", agg.Gen1Earnings)
	}
}

// Replays of the same completion event hit the uniqueness key and
// leave the rows unchanged.
func TestOnTransactionCompletedIsIdempotent(t *testing.T) {
	store := newChainStore()
	svc := NewReferralService(store, defaultRates())

	txn := &model.Transaction{UserID: 4, Amount: 100000, Currency: model.CurrencyNaira, SourceRef: "TXN-1"}
	for i := 0; i < 2; i++ {
		if err := svc.OnTransactionCompleted(context.Background(), txn); err != nil {
			t.Fatalf("replay %d: %v", i, err)
		}
	}
	if len(store.commissions) != 3 {
		t.Errorf("commissions = %d, want 3 after replay", len(store.commissions))
	}
	agg, _ := store.GetReferralAggregate(context.Background(), 3)
	if agg.Gen1Earnings != 15000 {
		t.Errorf("carol gen1 earnings = %d after replay, want 15000", agg.Gen1Earnings)
	}
}

// The live hook and the batch recompute must agree.
func TestLiveHookMatchesRecompute(t *testing.T) {
	liveStore := newChainStore()
	liveSvc := NewReferralService(liveStore, defaultRates())
	txn := &model.Transaction{UserID: 4, Amount: 100000, Currency: model.CurrencyNaira, SourceRef: "TXN-1"}
	if err := liveSvc.OnTransactionCompleted(context.Background(), txn); err != nil {
		t.Fatal(err)
	}

	batchStore := newChainStore()
	batchStore.addTransaction(4, 100000, model.CurrencyNaira, "TXN-1")
	batchSvc := NewReferralService(batchStore, defaultRates())
	if _, err := batchSvc.Recompute(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, id := range []int64{1, 2, 3} {
		live, _ := liveStore.GetReferralAggregate(context.Background(), id)
		batch, _ := batchStore.GetReferralAggregate(context.Background(), id)
		if live.TotalEarnings != batch.TotalEarnings {
			t.Errorf("user %d: live total %d, batch total %d", id, live.TotalEarnings, batch.TotalEarnings)
		}
	}
}
