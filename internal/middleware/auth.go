package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sharevest/backend/internal/config"
)

// Auth guards the service API with a static bearer token. The public
// product API in front of this service does user authentication; this
// backend only checks that the caller is the trusted frontend.
func Auth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.Server.AuthToken == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "service auth token not configured",
			})
		}

		header := c.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header || !secureEqual(token, cfg.Server.AuthToken) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or missing bearer token",
			})
		}

		return c.Next()
	}
}

// AdminAuth guards the admin trigger endpoints with a separate key
// passed in the X-Admin-Key header.
func AdminAuth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.Server.AdminKey == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "admin key not configured",
			})
		}

		if !secureEqual(c.Get("X-Admin-Key"), cfg.Server.AdminKey) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "admin access denied",
			})
		}

		return c.Next()
	}
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
