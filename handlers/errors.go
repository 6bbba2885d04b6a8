package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"boardgame-tracker/services"
)

// writeError maps service error kinds onto HTTP statuses.
func writeError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	kind := services.ErrInternal
	switch {
	case errors.Is(err, services.ErrNotFound):
		status, kind = fiber.StatusNotFound, services.ErrNotFound
	case errors.Is(err, services.ErrUnauthorized):
		status, kind = fiber.StatusForbidden, services.ErrUnauthorized
	case errors.Is(err, services.ErrConflict):
		status, kind = fiber.StatusConflict, services.ErrConflict
	case errors.Is(err, services.ErrInvalid):
		status, kind = fiber.StatusBadRequest, services.ErrInvalid
	}
	if status == fiber.StatusInternalServerError {
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "err", err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": kind.Error(),
		"cause": err.Error(),
	})
}

func badBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid request body",
		"cause": err.Error(),
	})
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}
