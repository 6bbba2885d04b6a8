package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"boardgame-tracker/services"
)

// validIDs answers 404 for any id path parameter that is not a UUID; no row
// can carry such an id.
func validIDs(c *fiber.Ctx) error {
	for _, name := range c.Route().Params {
		if name != "id" && !strings.HasSuffix(name, "_id") {
			continue
		}
		if _, err := uuid.Parse(c.Params(name)); err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": services.ErrNotFound.Error(),
				"cause": "malformed " + name,
			})
		}
	}
	return c.Next()
}
