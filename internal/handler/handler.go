package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/sharevest/backend/internal/config"
	"github.com/sharevest/backend/internal/service"
)

// Pinger reports database liveness. Implemented by *repository.Repository.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	cfg            *config.Config
	db             Pinger
	withdrawalSvc  *service.WithdrawalService
	transactionSvc *service.TransactionService
	referralSvc    *service.ReferralService
	installmentSvc *service.InstallmentService
	supervisor     *service.Supervisor
}

func New(
	cfg *config.Config,
	db Pinger,
	withdrawalSvc *service.WithdrawalService,
	transactionSvc *service.TransactionService,
	referralSvc *service.ReferralService,
	installmentSvc *service.InstallmentService,
	supervisor *service.Supervisor,
) *Handler {
	return &Handler{
		cfg:            cfg,
		db:             db,
		withdrawalSvc:  withdrawalSvc,
		transactionSvc: transactionSvc,
		referralSvc:    referralSvc,
		installmentSvc: installmentSvc,
		supervisor:     supervisor,
	}
}

func (h *Handler) Health(c *fiber.Ctx) error {
	if err := h.db.Ping(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "degraded",
			"error":  "database unreachable",
		})
	}
	return c.JSON(fiber.Map{
		"status": "ok",
	})
}
