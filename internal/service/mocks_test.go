package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sharevest/backend/internal/gateway"
	"github.com/sharevest/backend/internal/model"
	"github.com/sharevest/backend/internal/repository"
)

// fakeStore is an in-memory implementation of the service store
// interfaces, with the same transactional semantics as the real
// repository: conditional status updates and non-negative buckets.
type fakeStore struct {
	users       map[int64]*model.User
	txns        map[int64][]model.Transaction
	withdrawals map[uuid.UUID]*model.Withdrawal
	buckets     map[string]*model.LedgerBuckets
	commissions []model.Commission
	aggregates  map[int64]*model.ReferralAggregate
	plans       map[uuid.UUID]*model.InstallmentPlan

	replaceErr map[int64]error // per-beneficiary failure injection
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       make(map[int64]*model.User),
		txns:        make(map[int64][]model.Transaction),
		withdrawals: make(map[uuid.UUID]*model.Withdrawal),
		buckets:     make(map[string]*model.LedgerBuckets),
		aggregates:  make(map[int64]*model.ReferralAggregate),
		plans:       make(map[uuid.UUID]*model.InstallmentPlan),
		replaceErr:  make(map[int64]error),
	}
}

func (f *fakeStore) addUser(id int64, handle, referredBy string) *model.User {
	u := &model.User{ID: id, Handle: handle, Email: fmt.Sprintf("%s@example.com", strings.ToLower(handle))}
	if referredBy != "" {
		u.ReferredBy = &referredBy
	}
	f.users[id] = u
	return u
}

func (f *fakeStore) addTransaction(userID int64, amount int64, currency model.Currency, sourceRef string) {
	f.txns[userID] = append(f.txns[userID], model.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      amount,
		Currency:    currency,
		SourceKind:  model.SourceKindShare,
		SourceRef:   sourceRef,
		CompletedAt: time.Now(),
	})
}

func bucketKey(userID int64, currency model.Currency) string {
	return fmt.Sprintf("%d/%s", userID, currency)
}

func (f *fakeStore) bucketsFor(userID int64, currency model.Currency) *model.LedgerBuckets {
	key := bucketKey(userID, currency)
	if b, ok := f.buckets[key]; ok {
		return b
	}
	b := &model.LedgerBuckets{UserID: userID, Currency: currency}
	f.buckets[key] = b
	return b
}

// --- WithdrawalStore ---

func (f *fakeStore) CreateWithdrawal(ctx context.Context, w *model.Withdrawal) error {
	for _, existing := range f.withdrawals {
		if existing.ClientReference == w.ClientReference {
			return fmt.Errorf("duplicate client reference %s", w.ClientReference)
		}
	}
	w.ID = uuid.New()
	w.Status = model.WithdrawalStatusPending
	w.CreatedAt = time.Now()
	f.withdrawals[w.ID] = w
	f.bucketsFor(w.UserID, w.Currency).PendingAmt += w.Amount
	return nil
}

func (f *fakeStore) GetWithdrawal(ctx context.Context, id uuid.UUID) (*model.Withdrawal, error) {
	w, ok := f.withdrawals[id]
	if !ok {
		return nil, repository.ErrWithdrawalNotFound
	}
	copied := *w
	return &copied, nil
}

func (f *fakeStore) GetWithdrawalByClientReference(ctx context.Context, ref string) (*model.Withdrawal, error) {
	for _, w := range f.withdrawals {
		if w.ClientReference == ref {
			copied := *w
			return &copied, nil
		}
	}
	return nil, repository.ErrWithdrawalNotFound
}

func (f *fakeStore) ListWithdrawalsByStatus(ctx context.Context, status model.WithdrawalStatus) ([]model.Withdrawal, error) {
	var out []model.Withdrawal
	for _, w := range f.withdrawals {
		if w.Status == status && !w.Flagged {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) ListFlaggedWithdrawals(ctx context.Context) ([]model.Withdrawal, error) {
	var out []model.Withdrawal
	for _, w := range f.withdrawals {
		if w.Flagged {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	w, ok := f.withdrawals[id]
	if !ok || w.Status != model.WithdrawalStatusPending {
		return false, nil
	}
	b := f.bucketsFor(w.UserID, w.Currency)
	if b.PendingAmt < w.Amount {
		return false, repository.ErrInsufficientBucket
	}
	b.PendingAmt -= w.Amount
	b.ProcessingAmt += w.Amount
	now := time.Now()
	w.Status = model.WithdrawalStatusProcessing
	w.ProcessingAt = &now
	return true, nil
}

func (f *fakeStore) MarkPaid(ctx context.Context, id uuid.UUID, from model.WithdrawalStatus, providerRef string) (bool, error) {
	w, ok := f.withdrawals[id]
	if !ok || w.Status != from {
		return false, nil
	}
	b := f.bucketsFor(w.UserID, w.Currency)
	switch from {
	case model.WithdrawalStatusPending:
		if b.PendingAmt < w.Amount {
			return false, repository.ErrInsufficientBucket
		}
		b.PendingAmt -= w.Amount
	case model.WithdrawalStatusProcessing:
		if b.ProcessingAmt < w.Amount {
			return false, repository.ErrInsufficientBucket
		}
		b.ProcessingAmt -= w.Amount
	default:
		return false, fmt.Errorf("status %q has no ledger bucket", from)
	}
	b.WithdrawnAmt += w.Amount
	now := time.Now()
	w.Status = model.WithdrawalStatusPaid
	w.ProviderReference = &providerRef
	w.PaidAt = &now
	return true, nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, id uuid.UUID, from model.WithdrawalStatus, reason string, failedAt *time.Time) (bool, error) {
	w, ok := f.withdrawals[id]
	if !ok || w.Status != from {
		return false, nil
	}
	b := f.bucketsFor(w.UserID, w.Currency)
	switch from {
	case model.WithdrawalStatusPending:
		if b.PendingAmt < w.Amount {
			return false, repository.ErrInsufficientBucket
		}
		b.PendingAmt -= w.Amount
	case model.WithdrawalStatusProcessing:
		if b.ProcessingAmt < w.Amount {
			return false, repository.ErrInsufficientBucket
		}
		b.ProcessingAmt -= w.Amount
	default:
		return false, fmt.Errorf("status %q has no ledger bucket", from)
	}
	if failedAt == nil {
		now := time.Now()
		failedAt = &now
	}
	w.Status = model.WithdrawalStatusFailed
	w.FailureReason = &reason
	w.FailedAt = failedAt
	return true, nil
}

func (f *fakeStore) FlagWithdrawal(ctx context.Context, id uuid.UUID) error {
	if w, ok := f.withdrawals[id]; ok {
		w.Flagged = true
	}
	return nil
}

func (f *fakeStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeStore) GetLedgerBuckets(ctx context.Context, userID int64, currency model.Currency) (*model.LedgerBuckets, error) {
	b := f.bucketsFor(userID, currency)
	copied := *b
	return &copied, nil
}

// --- TransactionStore ---

func (f *fakeStore) CreateTransaction(ctx context.Context, txn *model.Transaction) error {
	txn.ID = uuid.New()
	f.txns[txn.UserID] = append(f.txns[txn.UserID], *txn)
	return nil
}

func (f *fakeStore) GetTransactionBySourceRef(ctx context.Context, sourceRef string) (*model.Transaction, error) {
	for _, txns := range f.txns {
		for i := range txns {
			if txns[i].SourceRef == sourceRef {
				copied := txns[i]
				return &copied, nil
			}
		}
	}
	return nil, repository.ErrTransactionNotFound
}

// --- ReferralStore ---

func (f *fakeStore) ListUsersWithHandle(ctx context.Context) ([]model.User, error) {
	var out []model.User
	for _, u := range f.users {
		if u.Handle != "" {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetUserByHandle(ctx context.Context, handle string) (*model.User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Handle, handle) {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeStore) ListCompletedTransactions(ctx context.Context, userID int64) ([]model.Transaction, error) {
	return f.txns[userID], nil
}

func (f *fakeStore) ListCommissionsByBeneficiary(ctx context.Context, beneficiaryID int64) ([]model.Commission, error) {
	var out []model.Commission
	for _, c := range f.commissions {
		if c.BeneficiaryID == beneficiaryID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) ReplaceBeneficiaryCommissions(ctx context.Context, beneficiaryID int64, commissions []model.Commission, agg *model.ReferralAggregate) error {
	if err := f.replaceErr[beneficiaryID]; err != nil {
		return err
	}
	kept := f.commissions[:0]
	for _, c := range f.commissions {
		if c.BeneficiaryID != beneficiaryID {
			kept = append(kept, c)
		}
	}
	f.commissions = kept
	for _, c := range commissions {
		c.ID = uuid.New()
		c.CreatedAt = time.Now()
		f.commissions = append(f.commissions, c)
	}
	copied := *agg
	f.aggregates[beneficiaryID] = &copied
	return nil
}

func (f *fakeStore) InsertCommission(ctx context.Context, c *model.Commission) (bool, error) {
	for _, existing := range f.commissions {
		if existing.BeneficiaryID == c.BeneficiaryID &&
			existing.ReferredUserID == c.ReferredUserID &&
			existing.Generation == c.Generation &&
			existing.SourceRef == c.SourceRef {
			return false, nil
		}
	}
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	f.commissions = append(f.commissions, *c)
	return true, nil
}

func (f *fakeStore) RefreshReferralAggregate(ctx context.Context, userID int64) error {
	agg := &model.ReferralAggregate{UserID: userID}
	for _, c := range f.commissions {
		if c.BeneficiaryID != userID {
			continue
		}
		agg.TotalEarnings += c.Amount
		switch c.Generation {
		case 1:
			agg.Gen1Count++
			agg.Gen1Earnings += c.Amount
		case 2:
			agg.Gen2Count++
			agg.Gen2Earnings += c.Amount
		case 3:
			agg.Gen3Count++
			agg.Gen3Earnings += c.Amount
		}
	}
	f.aggregates[userID] = agg
	return nil
}

func (f *fakeStore) GetReferralAggregate(ctx context.Context, userID int64) (*model.ReferralAggregate, error) {
	if agg, ok := f.aggregates[userID]; ok {
		copied := *agg
		return &copied, nil
	}
	return &model.ReferralAggregate{UserID: userID}, nil
}

// --- InstallmentStore ---

func (f *fakeStore) addPlan(plan *model.InstallmentPlan) *model.InstallmentPlan {
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	for i := range plan.Installments {
		if plan.Installments[i].ID == uuid.Nil {
			plan.Installments[i].ID = uuid.New()
		}
		plan.Installments[i].PlanID = plan.ID
	}
	f.plans[plan.ID] = plan
	return plan
}

func (f *fakeStore) CreatePlan(ctx context.Context, plan *model.InstallmentPlan) error {
	plan.CreatedAt = time.Now()
	f.addPlan(plan)
	return nil
}

func (f *fakeStore) ListPlansForPenaltyCheck(ctx context.Context) ([]model.InstallmentPlan, error) {
	var out []model.InstallmentPlan
	for _, p := range f.plans {
		switch p.Status {
		case model.PlanStatusPending, model.PlanStatusActive, model.PlanStatusLate:
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (f *fakeStore) ListLatePlans(ctx context.Context) ([]model.InstallmentPlan, error) {
	var out []model.InstallmentPlan
	for _, p := range f.plans {
		if p.Status == model.PlanStatusLate {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetPlan(ctx context.Context, id uuid.UUID) (*model.InstallmentPlan, error) {
	p, ok := f.plans[id]
	if !ok {
		return nil, repository.ErrPlanNotFound
	}
	copied := *p
	copied.Installments = append([]model.Installment(nil), p.Installments...)
	return &copied, nil
}

func (f *fakeStore) SaveInstallmentPenalty(ctx context.Context, installmentID uuid.UUID, lateFee int64, status model.InstallmentStatus) error {
	for _, p := range f.plans {
		for i := range p.Installments {
			if p.Installments[i].ID == installmentID {
				p.Installments[i].LateFee = lateFee
				p.Installments[i].Status = status
				return nil
			}
		}
	}
	return fmt.Errorf("installment %s not found", installmentID)
}

func (f *fakeStore) SavePlanPenaltyState(ctx context.Context, planID uuid.UUID, status model.PlanStatus, currentLateFee int64, monthsLate int) error {
	p, ok := f.plans[planID]
	if !ok {
		return repository.ErrPlanNotFound
	}
	p.Status = status
	p.CurrentLateFee = currentLateFee
	p.MonthsLate = monthsLate
	return nil
}

func (f *fakeStore) SavePlanPayment(ctx context.Context, plan *model.InstallmentPlan, touched []model.Installment) error {
	p, ok := f.plans[plan.ID]
	if !ok {
		return repository.ErrPlanNotFound
	}
	p.Status = plan.Status
	p.TotalPaid = plan.TotalPaid
	p.CurrentLateFee = plan.CurrentLateFee
	p.MonthsLate = plan.MonthsLate
	for _, t := range touched {
		for i := range p.Installments {
			if p.Installments[i].ID == t.ID {
				p.Installments[i].PaidAmount = t.PaidAmount
				p.Installments[i].Status = t.Status
			}
		}
	}
	return nil
}

// --- gateway fake ---

// fakeGateway serves scripted results per client reference.
type fakeGateway struct {
	configured bool
	results    map[string]*gateway.Result
	errs       map[string]error
	lookups    int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		configured: true,
		results:    make(map[string]*gateway.Result),
		errs:       make(map[string]error),
	}
}

func (g *fakeGateway) Configured() bool { return g.configured }

func (g *fakeGateway) Lookup(ctx context.Context, ref string) (*gateway.Result, error) {
	g.lookups++
	if err, ok := g.errs[ref]; ok {
		return nil, err
	}
	if res, ok := g.results[ref]; ok {
		return res, nil
	}
	return &gateway.Result{Status: gateway.StatusUnknown}, nil
}

// --- notifier/alerter fakes ---

type recordingNotifier struct {
	paid    []string // withdrawal client references
	failed  []string
	lateFee []string // plan IDs
	err     error
}

func (n *recordingNotifier) WithdrawalPaid(email string, w *model.Withdrawal) error {
	n.paid = append(n.paid, w.ClientReference)
	return n.err
}

func (n *recordingNotifier) WithdrawalFailed(email string, w *model.Withdrawal) error {
	n.failed = append(n.failed, w.ClientReference)
	return n.err
}

func (n *recordingNotifier) LateFeeApplied(email string, plan *model.InstallmentPlan, applied, cap int64) error {
	n.lateFee = append(n.lateFee, plan.ID.String())
	return n.err
}

type recordingAlerter struct {
	messages []string
}

func (a *recordingAlerter) Alert(message string) error {
	a.messages = append(a.messages, message)
	return nil
}
