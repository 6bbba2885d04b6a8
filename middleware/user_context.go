package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware reads the caller identity the gateway forwards in
// X-User-ID. Secured routes (under /s/) refuse requests without one.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if strings.HasPrefix(c.Path(), "/s/") && userID == "" {
			slog.Warn("missing user context on secured route", "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID, request must come through gateway with auth context",
			})
		}
		c.Locals("user_id", userID)
		return c.Next()
	}
}
