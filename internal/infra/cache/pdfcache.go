// Package cache stores rendered PDFs in Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"docconv/internal/infra/logging"
)

const opTimeout = time.Second

// PDFCache is a best-effort PDF store; failures are logged, never returned.
type PDFCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New wraps rdb. A nil client yields a nil cache, which is a valid no-op.
func New(rdb *redis.Client, ttl time.Duration) *PDFCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &PDFCache{rdb: rdb, ttl: ttl}
}

// Key derives the cache key for a render request.
func Key(html string, stylesheets []string, paperWidth, paperHeight, margin float64, printBackground bool) string {
	h := sha256.New()
	writeField := func(s string) {
		// length prefix keeps ("ab","c") and ("a","bc") apart
		h.Write([]byte(strconv.Itoa(len(s))))
		h.Write([]byte{':'})
		h.Write([]byte(s))
	}
	writeField(html)
	for _, s := range stylesheets {
		writeField(s)
	}
	writeField(strconv.FormatFloat(paperWidth, 'f', 2, 64))
	writeField(strconv.FormatFloat(paperHeight, 'f', 2, 64))
	writeField(strconv.FormatFloat(margin, 'f', 2, 64))
	writeField(strconv.FormatBool(printBackground))
	return "pdfcache:" + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached PDF, or nil on a miss or error.
func (c *PDFCache) Get(ctx context.Context, key string) []byte {
	if c == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cached, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		logging.Warn("Redis read failed", "error", err)
		return nil
	}
	logging.Info("PDF cache hit", "key", key)
	return cached
}

// Set stores data under key with the configured TTL.
func (c *PDFCache) Set(ctx context.Context, key string, data []byte) {
	if c == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logging.Warn("Redis write failed", "error", err)
	}
}
