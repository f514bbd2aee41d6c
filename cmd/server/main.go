package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/tripwise/tripwise-backend/internal/agent"
	"github.com/tripwise/tripwise-backend/internal/api"
	"github.com/tripwise/tripwise-backend/internal/api/handlers"
	"github.com/tripwise/tripwise-backend/internal/config"
	"github.com/tripwise/tripwise-backend/internal/database"
	"github.com/tripwise/tripwise-backend/internal/providers/openrouter"
	"github.com/tripwise/tripwise-backend/internal/repository/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	llmClient, err := openrouter.NewClient(cfg.AI)
	if err != nil {
		log.Fatal("Failed to create LLM client:", err)
	}

	catalogRepo := postgres.NewCatalogRepository(db.DB)
	conversationRepo := postgres.NewConversationRepository(db.DB)

	orchestrator := agent.NewOrchestrator(llmClient, catalogRepo, conversationRepo, agent.Options{
		Model:                  cfg.AI.Model,
		MaxRetries:             cfg.AI.MaxRetries,
		RequestTimeout:         cfg.AI.RequestTimeout,
		MaxToolRounds:          cfg.AI.MaxToolRounds,
		LegacyStatusMode:       cfg.AI.LegacyStatusMode,
		SearchingFirstResponse: cfg.AI.SearchingFirstResponse,
	})

	app := fiber.New(fiber.Config{
		AppName:      "Tripwise Backend",
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, X-User-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	chatHandler := handlers.NewChatHandler(orchestrator, conversationRepo)
	api.SetupRoutes(app, chatHandler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Tripwise backend starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
