package handlers

import (
	"github.com/gofiber/fiber/v2"

	"boardgame-tracker/middleware"
	"boardgame-tracker/models"
	"boardgame-tracker/services"
)

// matchRef reads a match reference from the :kind/:id path segments.
func matchRef(c *fiber.Ctx) models.Ref {
	return models.Ref{Kind: models.SourceType(c.Params("kind")), ID: c.Params("id")}
}

func SetupMatchRoutes(app *fiber.App, matches *services.MatchService, resolver *services.Resolver) {
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Post("/matches", func(c *fiber.Ctx) error {
		var in services.CreateMatchInput
		if err := c.BodyParser(&in); err != nil {
			return badBody(c, err)
		}
		out, err := matches.CreateMatch(c.UserContext(), userID(c), in)
		if err != nil {
			return writeError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(out)
	})

	secured.Get("/matches/:kind/:id", validIDs, func(c *fiber.Ctx) error {
		out, err := matches.GetMatch(c.UserContext(), userID(c), matchRef(c))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(out)
	})

	secured.Put("/matches/:kind/:id", validIDs, func(c *fiber.Ctx) error {
		var in services.EditMatchInput
		if err := c.BodyParser(&in); err != nil {
			return badBody(c, err)
		}
		out, err := matches.EditMatch(c.UserContext(), userID(c), matchRef(c), in)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(out)
	})

	secured.Delete("/matches/:kind/:id", validIDs, func(c *fiber.Ctx) error {
		if err := matches.DeleteMatch(c.UserContext(), userID(c), matchRef(c)); err != nil {
			return writeError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	secured.Post("/matches/:kind/:id/finish", validIDs, func(c *fiber.Ctx) error {
		out, err := matches.FinishMatch(c.UserContext(), userID(c), matchRef(c))
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(out)
	})

	updateScore := func(c *fiber.Ctx) error {
		var in services.ScoreInput
		if err := c.BodyParser(&in); err != nil {
			return badBody(c, err)
		}
		if round := c.Params("round_id"); round != "" {
			in.RoundID = &round
		}
		out, err := matches.UpdateScore(c.UserContext(), userID(c), matchRef(c), in)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(out)
	}
	secured.Put("/matches/:kind/:id/rounds/:round_id/scores", validIDs, updateScore)
	secured.Put("/matches/:kind/:id/scores", validIDs, updateScore)

	secured.Put("/matches/:kind/:id/placements", validIDs, func(c *fiber.Ctx) error {
		var in services.UpdatePlacementsInput
		if err := c.BodyParser(&in); err != nil {
			return badBody(c, err)
		}
		out, err := matches.UpdatePlacements(c.UserContext(), userID(c), matchRef(c), in)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(out)
	})

	secured.Put("/matches/:kind/:id/winners", validIDs, func(c *fiber.Ctx) error {
		var in services.SetWinnersInput
		if err := c.BodyParser(&in); err != nil {
			return badBody(c, err)
		}
		out, err := matches.SetWinners(c.UserContext(), userID(c), matchRef(c), in)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(out)
	})

	secured.Get("/matches/:kind/:id/players/:player_kind/:player_id", validIDs, func(c *fiber.Ctx) error {
		player := models.Ref{Kind: models.SourceType(c.Params("player_kind")), ID: c.Params("player_id")}
		out, err := resolver.Resolve(c.UserContext(), userID(c), matchRef(c), player)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(out)
	})
}
