package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*PDFCache, *miniredis.Miniredis) {
	t.Helper()
	mrs, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mrs.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mrs.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, ttl), mrs
}

func TestPDFCache_SetGet(t *testing.T) {
	c, mrs := newTestCache(t, time.Hour)
	ctx := context.Background()

	key := Key("<h1>x</h1>", nil, 8.27, 11.69, 0.4, true)
	assert.Nil(t, c.Get(ctx, key))

	c.Set(ctx, key, []byte("%PDF-1.4"))
	assert.Equal(t, []byte("%PDF-1.4"), c.Get(ctx, key))

	ttl := mrs.TTL(key)
	assert.True(t, ttl > 59*time.Minute && ttl <= time.Hour, "unexpected ttl %v", ttl)
}

func TestPDFCache_DefaultTTL(t *testing.T) {
	c, mrs := newTestCache(t, 0)
	c.Set(context.Background(), "k", []byte("pdf"))
	ttl := mrs.TTL("k")
	assert.True(t, ttl >= 50*time.Second && ttl <= 70*time.Second, "expected default ttl around 1m, got %v", ttl)
}

func TestPDFCache_NilIsNoop(t *testing.T) {
	var c *PDFCache
	assert.Nil(t, New(nil, time.Minute))
	c.Set(context.Background(), "k", []byte("x"))
	assert.Nil(t, c.Get(context.Background(), "k"))
}

func TestPDFCache_ReadErrorIsMiss(t *testing.T) {
	mrs, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mrs.Addr(), MaxRetries: -1})
	defer rdb.Close()
	c := New(rdb, time.Minute)

	mrs.Close()
	assert.Nil(t, c.Get(context.Background(), "k"))
	c.Set(context.Background(), "k", []byte("x")) // logged, not returned
}

func TestKey_SeparatesInputs(t *testing.T) {
	base := Key("<p>a</p>", []string{"p{}"}, 8.27, 11.69, 0.4, true)
	assert.Equal(t, base, Key("<p>a</p>", []string{"p{}"}, 8.27, 11.69, 0.4, true))
	assert.NotEqual(t, base, Key("<p>a</p>", []string{"p{", "}"}, 8.27, 11.69, 0.4, true))
	assert.NotEqual(t, base, Key("<p>a</p>", []string{"p{}"}, 8.5, 11, 0.4, true))
	assert.NotEqual(t, base, Key("<p>a</p>", []string{"p{}"}, 8.27, 11.69, 0.5, true))
	assert.NotEqual(t, base, Key("<p>a</p>p{}", nil, 8.27, 11.69, 0.4, true))
	assert.NotEqual(t, base, Key("<p>a</p>", []string{"p{}"}, 8.27, 11.69, 0.4, false))
	assert.Contains(t, base, "pdfcache:")
}
