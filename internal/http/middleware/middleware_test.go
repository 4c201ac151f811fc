package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	memoryStorage "github.com/gofiber/storage/memory/v2"

	"docconv/internal/config"
	"docconv/internal/dispatch"
)

type memStore struct {
	sync.RWMutex
	m map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{m: make(map[string][]byte)}
}

func (s *memStore) Get(key string) ([]byte, error) {
	s.RLock()
	defer s.RUnlock()
	val, ok := s.m[key]
	if !ok {
		return nil, nil
	}
	return val, nil
}

func (s *memStore) Set(key string, val []byte, exp time.Duration) error {
	s.Lock()
	s.m[key] = val
	s.Unlock()
	return nil
}

func (s *memStore) Delete(key string) error {
	s.Lock()
	delete(s.m, key)
	s.Unlock()
	return nil
}

func (s *memStore) Reset() error {
	s.Lock()
	s.m = make(map[string][]byte)
	s.Unlock()
	return nil
}

func (s *memStore) Close() error { return nil }

func limitConfig(limit int) config.Config {
	cfg := config.Default()
	cfg.RateLimiter.UserLimit = limit
	cfg.RateLimiter.Interval = time.Hour
	return cfg
}

func makeReq(path, agent string) *http.Request {
	req := httptest.NewRequest("GET", path, nil)
	req.Header.Set("User-Agent", agent)
	req.RemoteAddr = "1.2.3.4:5678"
	return req
}

func TestUserRateLimit(t *testing.T) {
	app := fiber.New()
	app.Use(UserRateLimit(limitConfig(2), newMemStore()))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < 2; i++ {
		resp, err := app.Test(makeReq("/", "test-agent"), -1)
		if err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200 but got %d", resp.StatusCode)
		}
	}

	resp, err := app.Test(makeReq("/", "test-agent"), -1)
	if err != nil {
		t.Fatalf("third request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 but got %d", resp.StatusCode)
	}

	// a different client has its own window
	resp, err = app.Test(makeReq("/", "other-agent"), -1)
	if err != nil {
		t.Fatalf("other client request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for other client but got %d", resp.StatusCode)
	}
}

func TestUserRateLimit_DisabledAndHealthExempt(t *testing.T) {
	app := fiber.New()
	app.Use(UserRateLimit(limitConfig(0), newMemStore()))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })
	for i := 0; i < 5; i++ {
		resp, err := app.Test(makeReq("/", "a"), -1)
		if err != nil || resp.StatusCode != fiber.StatusOK {
			t.Fatalf("disabled limiter blocked request %d: %v %v", i+1, err, resp)
		}
	}

	app = fiber.New()
	app.Use(UserRateLimit(limitConfig(1), newMemStore()))
	app.Get(HealthPath, func(c *fiber.Ctx) error { return c.SendString("ok") })
	for i := 0; i < 3; i++ {
		resp, err := app.Test(makeReq(HealthPath, "a"), -1)
		if err != nil || resp.StatusCode != fiber.StatusOK {
			t.Fatalf("health probe limited on request %d: %v %v", i+1, err, resp)
		}
	}
}

func TestNewRateLimitStore_MemoryByDefault(t *testing.T) {
	store := NewRateLimitStore(config.Default())
	defer store.Close()
	if err := store.Set("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := store.Get("k")
	if err != nil || string(got) != "v" {
		t.Fatalf("expected stored value, got %q (%v)", got, err)
	}
}

func TestNewRateLimitStore_Redis(t *testing.T) {
	mrs, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mrs.Close()

	cfg := config.Default()
	cfg.RateLimiter.UseRedis = true
	cfg.Cache.RedisHost = mrs.Addr()
	cfg.Cache.RateLimitDB = 0

	store := NewRateLimitStore(cfg)
	defer store.Close()
	if _, ok := store.(*memoryStorage.Storage); ok {
		t.Fatalf("expected redis storage, got memory")
	}
	if err := store.Set("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if !mrs.Exists("k") {
		t.Fatalf("expected key in redis")
	}
}

func TestNewRateLimitStore_RedisUnreachableFallsBack(t *testing.T) {
	mrs, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	addr := mrs.Addr()
	mrs.Close()

	cfg := config.Default()
	cfg.RateLimiter.UseRedis = true
	cfg.Cache.RedisHost = addr

	store := NewRateLimitStore(cfg)
	defer store.Close()
	if _, ok := store.(*memoryStorage.Storage); !ok {
		t.Fatalf("expected memory fallback, got %T", store)
	}
}

func TestRegister_RequestIDReachesUserContext(t *testing.T) {
	app := fiber.New()
	Register(app, config.Default())

	var seen string
	app.Get("/whoami", func(c *fiber.Ctx) error {
		seen = dispatch.RequestID(c.UserContext())
		return c.SendString("ok")
	})

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set(fiber.HeaderOrigin, "https://example.com")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	header := resp.Header.Get(fiber.HeaderXRequestID)
	if header == "" {
		t.Fatalf("expected X-Request-ID response header")
	}
	if seen != header {
		t.Fatalf("expected request id %q in user context, got %q", header, seen)
	}
	if resp.Header.Get(fiber.HeaderAccessControlAllowOrigin) != "*" {
		t.Fatalf("expected CORS header on response")
	}
}

func TestRegister_Health(t *testing.T) {
	app := fiber.New()
	Register(app, config.Default())

	resp, err := app.Test(httptest.NewRequest("GET", HealthPath, nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 from health probe, got %d", resp.StatusCode)
	}
}
