package handler

import (
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) GetReferralAggregate(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("user_id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid user id",
		})
	}

	agg, err := h.referralSvc.GetAggregate(c.Context(), int64(userID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to get referral aggregate",
		})
	}

	return c.JSON(fiber.Map{
		"user_id":        agg.UserID,
		"referred_users": agg.ReferredUsers,
		"total_earnings": agg.TotalEarnings,
		"per_generation": agg.PerGen(),
	})
}

func (h *Handler) ListCommissions(c *fiber.Ctx) error {
	userID, err := c.ParamsInt("user_id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid user id",
		})
	}

	commissions, err := h.referralSvc.ListCommissions(c.Context(), int64(userID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list commissions",
		})
	}
	return c.JSON(commissions)
}
