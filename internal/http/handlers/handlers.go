// Package handlers serves the invocation endpoints over Fiber.
package handlers

import (
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gofiber/fiber/v2"

	"docconv/internal/config"
	"docconv/internal/dispatch"
	"docconv/internal/infra/chrome"
	"docconv/internal/infra/logging"
	"docconv/internal/invoke"
)

// Handlers holds what the HTTP endpoints need.
type Handlers struct {
	cfg        config.Config
	dispatcher *dispatch.Dispatcher
	lambda     *invoke.Handler
	pool       *chrome.Pool
}

// New wires the endpoints. pool may be nil when rendering runs without a pool.
func New(cfg config.Config, d *dispatch.Dispatcher, lambda *invoke.Handler, pool *chrome.Pool) *Handlers {
	return &Handlers{cfg: cfg, dispatcher: d, lambda: lambda, pool: pool}
}

// HandleInvocation accepts a Lambda proxy event and answers with the proxy
// response as JSON, like the Lambda runtime interface emulator.
func (h *Handlers) HandleInvocation(c *fiber.Ctx) error {
	var event events.APIGatewayProxyRequest
	if err := json.Unmarshal(c.Body(), &event); err != nil {
		logging.Warn("Invalid invocation event", "error", err)
		return fiber.NewError(fiber.StatusBadRequest, "Invalid event JSON")
	}

	resp, err := h.lambda.Handle(c.UserContext(), event)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(resp)
}

// HandleInvoke takes the envelope text as the request body and maps the
// response onto HTTP.
func (h *Handlers) HandleInvoke(c *fiber.Ctx) error {
	resp := h.dispatcher.Dispatch(c.UserContext(), string(c.Body()))
	for k, v := range resp.Headers {
		c.Set(k, v)
	}
	return c.Status(resp.StatusCode).SendString(resp.Body)
}

// HandleOperations lists the callable operation names.
func (h *Handlers) HandleOperations(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"operations": h.dispatcher.Registry().Names()})
}

// HandleChromeStats reports the Chrome pool state.
func (h *Handlers) HandleChromeStats(c *fiber.Ctx) error {
	if h.pool == nil {
		return c.JSON(chrome.Stats{
			PoolSizeConf: h.cfg.PDF.ChromePoolSize,
			TimeoutSecs:  h.cfg.PDF.TimeoutSecs,
		})
	}
	return c.JSON(h.pool.Stats(h.cfg.PDF.TimeoutSecs))
}
