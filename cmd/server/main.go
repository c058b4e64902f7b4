package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sharevest/backend/internal/config"
	"github.com/sharevest/backend/internal/gateway"
	"github.com/sharevest/backend/internal/handler"
	"github.com/sharevest/backend/internal/middleware"
	"github.com/sharevest/backend/internal/notify"
	"github.com/sharevest/backend/internal/repository"
	"github.com/sharevest/backend/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	if cfg.Server.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Connect to database
	repo, err := repository.New(cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer repo.Close()

	// Payment gateway client
	gw := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, cfg.Gateway.LookupTimeout)
	if !gw.Configured() {
		log.Error().Msg("gateway api key missing, withdrawal reconciliation will be idle until configured")
	}

	// Create services
	withdrawalSvc := service.NewWithdrawalService(repo)
	referralSvc := service.NewReferralService(repo, cfg.Referral)
	transactionSvc := service.NewTransactionService(repo, referralSvc)
	installmentSvc := service.NewInstallmentService(repo, cfg.Installment)
	reconciler := service.NewReconciler(withdrawalSvc, gw, cfg.Gateway.PendingInterval, cfg.Gateway.ProcessingInterval)
	supervisor := service.NewSupervisor(reconciler, referralSvc, installmentSvc, cfg.Referral, cfg.Installment)

	// User notifications over email
	mailer := notify.NewMailer(cfg.SMTP)
	withdrawalSvc.SetNotifier(mailer)
	installmentSvc.SetNotifier(mailer)

	// Operator alert channel
	if alerter, err := notify.NewOpsAlerter(cfg.Telegram.BotToken, cfg.Telegram.OpsChatID); err != nil {
		log.Warn().Err(err).Msg("operator alerts disabled")
	} else {
		withdrawalSvc.SetAlerter(alerter)
		installmentSvc.SetAlerter(alerter)
		supervisor.SetAlerter(alerter)
	}

	// Create handlers
	h := handler.New(cfg, repo, withdrawalSvc, transactionSvc, referralSvc, installmentSvc, supervisor)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ReadTimeout: config.HTTPReadTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Admin-Key",
	}))

	// Health check
	app.Get("/health", h.Health)
	app.Get("/internal/health", h.Health)

	// Service API
	api := app.Group("/api", middleware.Auth(cfg))

	api.Post("/transactions", h.RecordTransaction)
	api.Get("/transactions/reference/:source_ref", h.GetTransactionByReference)
	api.Post("/withdrawals", h.SubmitWithdrawal)
	api.Get("/withdrawals/reference/:client_reference", h.GetWithdrawalByReference)
	api.Get("/withdrawals/:withdrawal_id", h.GetWithdrawal)
	api.Get("/users/:user_id/ledger", h.GetLedgerBuckets)
	api.Get("/users/:user_id/referrals", h.GetReferralAggregate)
	api.Get("/users/:user_id/commissions", h.ListCommissions)
	api.Post("/installments", h.CreateInstallmentPlan)
	api.Get("/installments/:plan_id", h.GetInstallmentPlan)
	api.Post("/installments/:plan_id/payments", h.ApplyInstallmentPayment)

	// Admin triggers (manual invocations of the job bodies)
	admin := app.Group("/api/admin", middleware.Auth(cfg), middleware.AdminAuth(cfg))
	admin.Post("/jobs/referral-recompute", h.TriggerReferralRecompute)
	admin.Post("/jobs/installment-check", h.TriggerInstallmentCheck)
	admin.Post("/jobs/reconcile", h.TriggerReconcile)
	admin.Get("/reconciler/status", h.ReconcilerStatus)
	admin.Get("/withdrawals/flagged", h.ListFlaggedWithdrawals)

	// Start background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := supervisor.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start background jobs")
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("shutting down server")
		supervisor.Stop()
		cancel()
		_ = app.Shutdown()
	}()

	// Start server
	log.Info().Str("port", cfg.Server.Port).Msg("server starting")
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}
