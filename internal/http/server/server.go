// Package server assembles the Fiber app that fronts the dispatcher locally.
package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"docconv/internal/config"
	"docconv/internal/http/handlers"
	"docconv/internal/http/middleware"
	"docconv/internal/infra/logging"
)

// InvocationPath is the Lambda runtime interface emulator endpoint.
const InvocationPath = "/2015-03-31/functions/function/invocations"

// New creates and configures the Fiber app.
func New(cfg config.Config, h *handlers.Handlers) *fiber.App {
	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		DisableStartupMessage: true,
		BodyLimit:             cfg.Limits.MaxEnvelopeBytes + 64*1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal Server Error"

			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
				msg = fe.Message
			}

			logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

			return c.Status(code).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    code,
					"message": msg,
				},
			})
		},
	})

	middleware.Register(app, cfg)
	RegisterRoutes(app, h)

	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

// RegisterRoutes mounts all route handlers on app.
func RegisterRoutes(app *fiber.App, h *handlers.Handlers) {
	app.Post(InvocationPath, h.HandleInvocation)

	v1 := app.Group("/v1")
	v1.Post("/invoke", h.HandleInvoke)
	v1.Get("/operations", h.HandleOperations)
	v1.Get("/chrome/stats", h.HandleChromeStats)

	v1.Get("/monitor", monitor.New())
}
