package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tripwise/tripwise-backend/internal/api/handlers"
)

// SetupRoutes registers the planner's HTTP surface.
func SetupRoutes(app *fiber.App, chat *handlers.ChatHandler) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := app.Group("/api/v1")
	v1.Post("/chat", chat.Chat)
	v1.Get("/sessions", chat.ListSessions)
}
