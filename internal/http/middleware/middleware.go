// Package middleware holds the global Fiber middleware chain.
package middleware

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"
	"github.com/rs/xid"

	"docconv/internal/config"
	"docconv/internal/dispatch"
	"docconv/internal/infra/logging"
)

// HealthPath is the liveness probe endpoint.
const HealthPath = "/ops/health"

// Register attaches global middleware to app.
func Register(app *fiber.App, cfg config.Config) {
	app.Use(cors.New())

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(healthcheck.New(healthcheck.Config{
		LivenessEndpoint: HealthPath,
	}))

	if cfg.RateLimiter.UserLimit > 0 {
		app.Use(UserRateLimit(cfg, NewRateLimitStore(cfg)))
	}

	app.Use(RequestContext())
}

// NewRateLimitStore returns Redis storage when rate_limiter.use_redis is set
// and reachable, and in-memory storage otherwise.
func NewRateLimitStore(cfg config.Config) fiber.Storage {
	if cfg.RateLimiter.UseRedis {
		if store := newRedisStore(cfg); store != nil {
			return store
		}
	}
	return memoryStorage.New()
}

// newRedisStore returns nil when the Redis storage cannot be created; the
// storage constructor panics on connection failure.
func newRedisStore(cfg config.Config) (store fiber.Storage) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Redis limiter store init panicked, falling back to memory", "panic", r)
			store = nil
		}
	}()
	store = redisStorage.New(redisStorage.Config{
		Addrs:    []string{cfg.Cache.RedisHost},
		Database: cfg.Cache.RateLimitDB,
	})
	logging.Info("Using Redis for rate limiting", "addr", cfg.Cache.RedisHost, "db", cfg.Cache.RateLimitDB)
	return store
}

func clientKey(c *fiber.Ctx) string {
	sum := sha256.Sum256([]byte(c.IP() + c.Get("User-Agent")))
	return hex.EncodeToString(sum[:])
}

// UserRateLimit limits requests per client (IP plus User-Agent) with a
// sliding window. A limit of zero disables it.
func UserRateLimit(cfg config.Config, store fiber.Storage) fiber.Handler {
	if cfg.RateLimiter.UserLimit <= 0 {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}
	return limiter.New(limiter.Config{
		Max:               cfg.RateLimiter.UserLimit,
		Expiration:        cfg.RateLimiter.Interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           store,
		KeyGenerator:      clientKey,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == HealthPath
		},
		LimitReached: func(c *fiber.Ctx) error {
			logging.Warn("Rate limit exceeded", "user", clientKey(c), "path", c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    fiber.StatusTooManyRequests,
					"message": "Too Many Requests",
				},
			})
		},
	})
}

// RequestContext logs each request and carries its X-Request-ID into the
// user context so dispatch logs can be correlated.
func RequestContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(fiber.HeaderXRequestID)
		if requestID == "" {
			requestID = c.GetRespHeader(fiber.HeaderXRequestID)
		}
		c.SetUserContext(dispatch.WithRequestID(c.UserContext(), requestID))
		logging.Info("Incoming request", "method", c.Method(), "path", c.Path(), "request_id", requestID)
		return c.Next()
	}
}
