package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sharevest/backend/internal/model"
	"github.com/sharevest/backend/internal/repository"
	"github.com/sharevest/backend/internal/service"
)

type recordTransactionRequest struct {
	UserID     int64            `json:"user_id"`
	Amount     int64            `json:"amount"` // minor units
	Currency   model.Currency   `json:"currency"`
	SourceKind model.SourceKind `json:"source_kind,omitempty"`
	SourceRef  string           `json:"source_ref"`
}

func (h *Handler) RecordTransaction(c *fiber.Ctx) error {
	var req recordTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.SourceRef == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "source_ref is required",
		})
	}

	txn := &model.Transaction{
		UserID:     req.UserID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		SourceKind: req.SourceKind,
		SourceRef:  req.SourceRef,
	}
	if err := h.transactionSvc.Record(c.Context(), txn); err != nil {
		switch {
		case errors.Is(err, service.ErrDuplicateSourceRef):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, service.ErrInvalidAmount), errors.Is(err, service.ErrInvalidCurrency):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to record transaction",
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(txn)
}

func (h *Handler) GetTransactionByReference(c *fiber.Ctx) error {
	txn, err := h.transactionSvc.GetBySourceRef(c.Context(), c.Params("source_ref"))
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "transaction not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to get transaction",
		})
	}
	return c.JSON(txn)
}
