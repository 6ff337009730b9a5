package api

import (
	"time"

	"github.com/bilgisen/newsbot/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteOptions selects the optional parts of the HTTP surface.
type RouteOptions struct {
	AdminAPIKey string
	// WebhookSecret enables POST /telegram/webhook when set.
	WebhookSecret string
}

// NewServer builds the fiber app with the global middleware and all routes.
func NewServer(h *Handlers, opts RouteOptions, timeout time.Duration) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:           timeout,
		WriteTimeout:          timeout,
		IdleTimeout:           120 * time.Second,
		ErrorHandler:          middleware.ErrorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLogger())

	SetupRoutes(app, h, opts)
	return app
}

// SetupRoutes configures all the routes for the application
func SetupRoutes(app *fiber.App, h *Handlers, opts RouteOptions) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")
	api.Get("/health", h.HealthCheck)

	posts := api.Group("/posts", middleware.AdminOnly(opts.AdminAPIKey))
	{
		posts.Get("", middleware.ValidateQueryParams(func() any { return &listQuery{} }), h.ListPosts)
		posts.Get("/stats", h.Stats)
		posts.Get("/:id", h.GetPost)
	}

	if opts.WebhookSecret != "" {
		app.Post("/telegram/webhook", middleware.TelegramSecret(opts.WebhookSecret), h.TelegramWebhook)
	}

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
		})
	})
}
