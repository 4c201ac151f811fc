// Package app builds the service components from configuration and owns
// their lifecycle.
package app

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"docconv/internal/config"
	"docconv/internal/convert"
	"docconv/internal/dispatch"
	"docconv/internal/http/handlers"
	"docconv/internal/http/server"
	"docconv/internal/infra/cache"
	"docconv/internal/infra/chrome"
	"docconv/internal/infra/logging"
	"docconv/internal/invoke"
	"docconv/internal/raster"
)

// App is the wired service.
type App struct {
	Config     config.Config
	Pool       *chrome.Pool
	Raster     raster.Engine
	Redis      *redis.Client
	Service    *convert.Service
	Dispatcher *dispatch.Dispatcher
	Lambda     *invoke.Handler
}

// New builds every component. A Chrome pool that cannot be prepared is not
// fatal: renders then start a browser per request.
func New(cfg config.Config) (*App, error) {
	engine, err := raster.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("raster engine: %w", err)
	}

	a := &App{Config: cfg, Raster: engine}

	if cfg.PDF.ChromePoolSize > 0 {
		pool, err := chrome.NewPool(cfg)
		if err != nil {
			logging.Warn("Chrome pool unavailable, rendering without pool", "error", err)
		} else {
			a.Pool = pool
		}
	}

	if cfg.Cache.PDFCacheEnabled {
		a.Redis = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.PDFCacheDB,
		})
	}

	a.Service = convert.NewService(cfg,
		convert.NewChromeRenderer(cfg, a.Pool),
		engine,
		cache.New(a.Redis, cfg.Cache.PDFCacheTTL),
	)
	a.Dispatcher = dispatch.New(dispatch.NewRegistry(a.Service), cfg.Limits.MaxEnvelopeBytes)
	a.Lambda = invoke.NewHandler(a.Dispatcher)

	logging.Info("Service ready",
		"raster_engine", cfg.Raster.Engine,
		"chrome_pool", a.Pool != nil,
		"pdf_cache", a.Redis != nil,
		"operations", a.Dispatcher.Registry().Names(),
	)
	return a, nil
}

// HTTP returns the local Fiber front.
func (a *App) HTTP() *fiber.App {
	return server.New(a.Config, handlers.New(a.Config, a.Dispatcher, a.Lambda, a.Pool))
}

// Close releases the browser, the rasterizer and the Redis client.
func (a *App) Close() error {
	if a.Pool != nil {
		a.Pool.Close()
	}
	var firstErr error
	if a.Raster != nil {
		if err := a.Raster.Close(); err != nil {
			firstErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
