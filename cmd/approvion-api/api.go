// Package main provides the Approvion API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/approvion/pkg/engine"
	"github.com/dukex/approvion/pkg/eventbus"
	"github.com/dukex/approvion/pkg/persistence"
	"github.com/dukex/approvion/pkg/registry"
	"github.com/dukex/approvion/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	engine      *engine.Engine
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persist persistence.Persistence,
	reg *registry.Registry,
	eng *engine.Engine,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persist,
		registry:    reg,
		engine:      eng,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.engine, a.registry, a.persistence, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Approvion API")
	})

	app.Get("/workflows", handlers.GetWorkflows)

	r := app.Group("/requests")
	r.Get("/", handlers.ListRequests)
	r.Post("/", handlers.CreateRequest)
	r.Get("/:id", handlers.GetRequest)
	r.Post("/:id/submit", handlers.SubmitRequest)
	r.Post("/:id/decide", handlers.DecideRequest)
	r.Post("/:id/cancel", handlers.CancelRequest)
	r.Get("/:id/audit", handlers.GetAuditTrail)

	app.Get("/approvers/:approverId/pending", handlers.ListPendingApprovals)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
