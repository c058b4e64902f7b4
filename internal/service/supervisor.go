package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/sharevest/backend/internal/config"
)

// Supervisor owns every background worker: the two reconciler loops
// and the calendar-scheduled batch jobs. Lifecycle is init -> Start ->
// Stop; workers stop at the next safe point when the context is
// cancelled.
type Supervisor struct {
	reconciler     *Reconciler
	referralSvc    *ReferralService
	installmentSvc *InstallmentService
	alerter        Alerter

	referralCfg    config.ReferralConfig
	installmentCfg config.InstallmentConfig

	cron   *cron.Cron
	cancel context.CancelFunc
}

func NewSupervisor(
	reconciler *Reconciler,
	referralSvc *ReferralService,
	installmentSvc *InstallmentService,
	referralCfg config.ReferralConfig,
	installmentCfg config.InstallmentConfig,
) *Supervisor {
	return &Supervisor{
		reconciler:     reconciler,
		referralSvc:    referralSvc,
		installmentSvc: installmentSvc,
		referralCfg:    referralCfg,
		installmentCfg: installmentCfg,
	}
}

func (s *Supervisor) SetAlerter(a Alerter) {
	s.alerter = a
}

func (s *Supervisor) Reconciler() *Reconciler {
	return s.reconciler
}

// Start launches the reconciler loops and registers the cron entries.
// It returns immediately; workers run until Stop.
func (s *Supervisor) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	go s.reconciler.Start(ctx)

	s.cron = cron.New()

	entries := []struct {
		spec string
		name string
		run  func()
	}{
		{s.referralCfg.DailySpec, "referral daily recompute", func() {
			if _, err := s.referralSvc.Recompute(ctx); err != nil {
				log.Error().Err(err).Msg("referral recompute failed")
			}
		}},
		{s.referralCfg.WeeklySpec, "referral weekly recompute", func() {
			stats, err := s.referralSvc.Recompute(ctx)
			if err != nil {
				log.Error().Err(err).Msg("referral recompute failed")
				return
			}
			if s.alerter != nil {
				msg := fmt.Sprintf(
					"Weekly referral summary: %d users processed, %d with referrals, %d commissions, %d errors.",
					stats.Processed, stats.WithReferrals, stats.CommissionsCreated, stats.Errors)
				if err := s.alerter.Alert(msg); err != nil {
					log.Warn().Err(err).Msg("weekly referral alert failed")
				}
			}
		}},
		{s.installmentCfg.DailySpec, "installment daily penalty", func() {
			s.installmentSvc.RunDaily(ctx, time.Now())
		}},
		{s.installmentCfg.WeeklySpec, "installment weekly penalty", func() {
			s.installmentSvc.RunWeekly(ctx, time.Now())
		}},
		{s.installmentCfg.MonthlySpec, "installment monthly penalty", func() {
			s.installmentSvc.RunMonthly(ctx, time.Now())
		}},
	}

	for _, e := range entries {
		name := e.name
		if _, err := s.cron.AddFunc(e.spec, e.run); err != nil {
			return fmt.Errorf("failed to schedule %s (%q): %w", name, e.spec, err)
		}
		log.Info().Str("job", name).Str("schedule", e.spec).Msg("job scheduled")
	}

	s.cron.Start()
	return nil
}

// Stop cancels the workers and waits for the cron scheduler to drain.
// In-flight record processing finishes; no transaction is interrupted.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	log.Info().Msg("supervisor stopped")
}
