package handlers

import (
	"github.com/gofiber/fiber/v2"

	"boardgame-tracker/middleware"
	"boardgame-tracker/services"
)

func SetupSharingRoutes(app *fiber.App, sharing *services.SharingService, links *services.LinkService) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	// Re-run the fan-out for a match the caller owns.
	secured.Post("/matches/:id/share", validIDs, func(c *fiber.Ctx) error {
		report, err := sharing.TriggerShareFanOut(c.UserContext(), userID(c), c.Params("id"))
		if report == nil && err != nil {
			return writeError(c, err)
		}
		status := fiber.StatusOK
		if err != nil {
			status = fiber.StatusMultiStatus
		}
		return c.Status(status).JSON(report)
	})

	secured.Delete("/shared-matches/:id", validIDs, func(c *fiber.Ctx) error {
		if err := sharing.RevokeMatchShare(c.UserContext(), userID(c), c.Params("id")); err != nil {
			return writeError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	secured.Post("/share-requests/:id/accept", validIDs, func(c *fiber.Ctx) error {
		req, err := sharing.AcceptShareRequest(c.UserContext(), userID(c), c.Params("id"))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(req)
	})

	secured.Post("/share-requests/:id/reject", validIDs, func(c *fiber.Ctx) error {
		if err := sharing.RejectShareRequest(c.UserContext(), userID(c), c.Params("id")); err != nil {
			return writeError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	secured.Post("/links/:kind/:id", validIDs, func(c *fiber.Ctx) error {
		var body struct {
			LocalID *string `json:"local_id"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return badBody(c, err)
			}
		}
		localID, err := links.Link(c.UserContext(), userID(c), services.LinkKind(c.Params("kind")), c.Params("id"), body.LocalID)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"local_id": localID})
	})
}
