package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sharevest/backend/internal/model"
	"github.com/sharevest/backend/internal/repository"
	"github.com/sharevest/backend/internal/service"
)

type createPlanRequest struct {
	UserID       int64          `json:"user_id"`
	TotalPrice   int64          `json:"total_price"` // minor units
	Currency     model.Currency `json:"currency"`
	Months       int            `json:"months"`
	FirstDueDate time.Time      `json:"first_due_date"`
}

func (h *Handler) CreateInstallmentPlan(c *fiber.Ctx) error {
	var req createPlanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.FirstDueDate.IsZero() {
		req.FirstDueDate = time.Now().AddDate(0, 1, 0)
	}

	plan, err := h.installmentSvc.CreatePlan(c.Context(), req.UserID, req.TotalPrice, req.Currency, req.Months, req.FirstDueDate)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAmount) ||
			errors.Is(err, service.ErrInvalidCurrency) ||
			errors.Is(err, service.ErrInvalidTenor) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create installment plan",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(plan)
}

func (h *Handler) GetInstallmentPlan(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("plan_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid plan id",
		})
	}

	plan, err := h.installmentSvc.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrPlanNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "installment plan not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to get installment plan",
		})
	}

	return c.JSON(plan)
}

type planPaymentRequest struct {
	Amount int64 `json:"amount"` // minor units
}

func (h *Handler) ApplyInstallmentPayment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("plan_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid plan id",
		})
	}

	var req planPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	applied, err := h.installmentSvc.ApplyPayment(c.Context(), id, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPlanNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "installment plan not found",
			})
		case errors.Is(err, service.ErrInvalidAmount), errors.Is(err, service.ErrPlanNotPayable):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to apply payment",
			})
		}
	}

	plan, err := h.installmentSvc.Get(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load plan after payment",
		})
	}

	return c.JSON(fiber.Map{
		"applied": applied,
		"plan":    plan,
	})
}
