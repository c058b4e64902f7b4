package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sharevest/backend/internal/model"
	"github.com/sharevest/backend/internal/repository"
	"github.com/sharevest/backend/internal/service"
)

type submitWithdrawalRequest struct {
	UserID          int64          `json:"user_id"`
	Amount          int64          `json:"amount"` // minor units
	Currency        model.Currency `json:"currency"`
	Destination     string         `json:"destination"`
	ClientReference string         `json:"client_reference,omitempty"`
}

func (h *Handler) SubmitWithdrawal(c *fiber.Ctx) error {
	var req submitWithdrawalRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	w, err := h.withdrawalSvc.Submit(c.Context(), req.UserID, req.Amount, req.Currency, req.Destination, req.ClientReference)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAmount) || errors.Is(err, service.ErrInvalidCurrency) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to submit withdrawal",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(w)
}

func (h *Handler) GetWithdrawal(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("withdrawal_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid withdrawal id",
		})
	}

	w, err := h.withdrawalSvc.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrWithdrawalNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "withdrawal not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to get withdrawal",
		})
	}

	return c.JSON(w)
}

func (h *Handler) GetWithdrawalByReference(c *fiber.Ctx) error {
	ref := c.Params("client_reference")

	w, err := h.withdrawalSvc.GetByClientReference(c.Context(), ref)
	if err != nil {
		if errors.Is(err, repository.ErrWithdrawalNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "withdrawal not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to get withdrawal",
		})
	}

	return c.JSON(w)
}

func (h *Handler) GetLedgerBuckets(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("user_id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid user id",
		})
	}
	currency := model.Currency(c.Query("currency", string(model.CurrencyNaira)))

	buckets, err := h.withdrawalSvc.Buckets(c.Context(), int64(userID), currency)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to get ledger buckets",
		})
	}

	return c.JSON(buckets)
}
