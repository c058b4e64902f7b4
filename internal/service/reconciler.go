package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sharevest/backend/internal/gateway"
	"github.com/sharevest/backend/internal/model"
)

// GatewayClient is what the reconciler needs from the payment
// provider. Implemented by *gateway.Client.
type GatewayClient interface {
	Configured() bool
	Lookup(ctx context.Context, clientReference string) (*gateway.Result, error)
}

// CycleStats summarizes one reconciliation pass.
type CycleStats struct {
	Status       model.WithdrawalStatus `json:"status"`
	Checked      int                    `json:"checked"`
	Transitioned int                    `json:"transitioned"`
	Skipped      int                    `json:"skipped"` // gateway unavailable
	Errors       int                    `json:"errors"`
	ConfigError  bool                   `json:"config_error,omitempty"`
}

// ReconcilerStatus is the externally visible worker state.
type ReconcilerStatus struct {
	IsRunning bool      `json:"is_running"`
	LastRun   time.Time `json:"last_run"`
	RunCount  int64     `json:"run_count"`
}

// Reconciler periodically drives the withdrawal state machine for all
// non-terminal withdrawals by consulting the gateway. Pending and
// processing records are handled by two independent loops; a record
// only ever belongs to one of them, so the loops never race on the
// same withdrawal.
type Reconciler struct {
	withdrawalSvc *WithdrawalService
	gw            GatewayClient

	pendingInterval    time.Duration
	processingInterval time.Duration

	mu        sync.Mutex
	isRunning bool
	lastRun   time.Time
	runCount  int64
}

func NewReconciler(withdrawalSvc *WithdrawalService, gw GatewayClient, pendingInterval, processingInterval time.Duration) *Reconciler {
	if pendingInterval <= 0 {
		pendingInterval = 2 * time.Minute
	}
	if processingInterval <= 0 {
		processingInterval = 2 * time.Minute
	}
	return &Reconciler{
		withdrawalSvc:      withdrawalSvc,
		gw:                 gw,
		pendingInterval:    pendingInterval,
		processingInterval: processingInterval,
	}
}

// Start launches both verification loops and blocks until ctx is
// cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	r.isRunning = true
	r.mu.Unlock()

	log.Info().
		Dur("pending_interval", r.pendingInterval).
		Dur("processing_interval", r.processingInterval).
		Msg("reconciler started")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.loop(ctx, model.WithdrawalStatusPending, r.pendingInterval)
	}()
	go func() {
		defer wg.Done()
		r.loop(ctx, model.WithdrawalStatusProcessing, r.processingInterval)
	}()
	wg.Wait()

	r.mu.Lock()
	r.isRunning = false
	r.mu.Unlock()
	log.Info().Msg("reconciler stopped")
}

func (r *Reconciler) loop(ctx context.Context, status model.WithdrawalStatus, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Verify(ctx, status)
		}
	}
}

// VerifyPending runs one pass over pending withdrawals. Exposed for
// manual admin triggers; the periodic loop calls the same body.
func (r *Reconciler) VerifyPending(ctx context.Context) CycleStats {
	return r.Verify(ctx, model.WithdrawalStatusPending)
}

// VerifyProcessing runs one pass over processing withdrawals.
func (r *Reconciler) VerifyProcessing(ctx context.Context) CycleStats {
	return r.Verify(ctx, model.WithdrawalStatusProcessing)
}

// Verify reconciles every withdrawal currently in the given status.
// Records are processed sequentially; a gateway outage skips the
// record, any other failure is logged and counted, and the cycle
// always runs to completion.
func (r *Reconciler) Verify(ctx context.Context, status model.WithdrawalStatus) CycleStats {
	stats := CycleStats{Status: status}
	defer r.recordRun()

	if !r.gw.Configured() {
		log.Error().Str("status", string(status)).Msg("gateway api key not configured, skipping reconciliation pass")
		stats.ConfigError = true
		return stats
	}

	withdrawals, err := r.withdrawalSvc.store.ListWithdrawalsByStatus(ctx, status)
	if err != nil {
		log.Error().Err(err).Str("status", string(status)).Msg("failed to list withdrawals")
		stats.Errors++
		return stats
	}

	for i := range withdrawals {
		// Stop between records on shutdown, never mid-record.
		if ctx.Err() != nil {
			return stats
		}

		w := &withdrawals[i]
		stats.Checked++

		res, err := r.gw.Lookup(ctx, w.ClientReference)
		if err != nil {
			if errors.Is(err, gateway.ErrUnavailable) {
				stats.Skipped++
				continue
			}
			log.Warn().Err(err).
				Str("withdrawal_id", w.ID.String()).
				Msg("gateway lookup failed")
			stats.Errors++
			continue
		}

		changed, err := r.withdrawalSvc.Apply(ctx, w, res)
		if err != nil {
			stats.Errors++
			continue
		}
		if changed {
			stats.Transitioned++
		}
	}

	if stats.Checked > 0 {
		log.Info().
			Str("status", string(status)).
			Int("checked", stats.Checked).
			Int("transitioned", stats.Transitioned).
			Int("skipped", stats.Skipped).
			Int("errors", stats.Errors).
			Msg("reconciliation pass complete")
	}
	return stats
}

func (r *Reconciler) recordRun() {
	r.mu.Lock()
	r.lastRun = time.Now()
	r.runCount++
	r.mu.Unlock()
}

func (r *Reconciler) Status() ReconcilerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ReconcilerStatus{
		IsRunning: r.isRunning,
		LastRun:   r.lastRun,
		RunCount:  r.runCount,
	}
}
