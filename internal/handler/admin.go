package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// TriggerReferralRecompute runs the same job body the scheduler runs,
// synchronously, and returns its stats even when some beneficiaries
// failed.
func (h *Handler) TriggerReferralRecompute(c *fiber.Ctx) error {
	stats, err := h.referralSvc.Recompute(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(stats)
}

// TriggerInstallmentCheck runs one penalty pass. The kind query
// parameter selects the daily, weekly or monthly body.
func (h *Handler) TriggerInstallmentCheck(c *fiber.Ctx) error {
	now := time.Now()
	switch c.Query("kind", "daily") {
	case "daily":
		return c.JSON(h.installmentSvc.RunDaily(c.Context(), now))
	case "weekly":
		return c.JSON(h.installmentSvc.RunWeekly(c.Context(), now))
	case "monthly":
		return c.JSON(h.installmentSvc.RunMonthly(c.Context(), now))
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "kind must be daily, weekly or monthly",
		})
	}
}

// TriggerReconcile runs one manual reconciliation pass per status.
func (h *Handler) TriggerReconcile(c *fiber.Ctx) error {
	rec := h.supervisor.Reconciler()
	pending := rec.VerifyPending(c.Context())
	processing := rec.VerifyProcessing(c.Context())
	return c.JSON(fiber.Map{
		"pending":    pending,
		"processing": processing,
	})
}

func (h *Handler) ReconcilerStatus(c *fiber.Ctx) error {
	return c.JSON(h.supervisor.Reconciler().Status())
}

func (h *Handler) ListFlaggedWithdrawals(c *fiber.Ctx) error {
	ws, err := h.withdrawalSvc.ListFlagged(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list flagged withdrawals",
		})
	}
	return c.JSON(ws)
}
