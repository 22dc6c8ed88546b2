package metadata

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/geocoder89/visionhub/internal/redisclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_RoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	rc := redisclient.New(redisclient.Config{Addr: addr})
	t.Cleanup(func() { _ = rc.Close() })

	ctx := context.Background()
	require.NoError(t, rc.Ping(ctx))

	c := NewRedisCache(rc.Raw())
	key := "metadata:test:" + time.Now().Format(time.RFC3339Nano)

	_, err := c.Get(ctx, key)
	assert.ErrorIs(t, err, ErrCacheMiss)

	want := Page{URL: "https://example.com", Title: "Example"}
	require.NoError(t, c.Set(ctx, key, want, time.Minute))

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_ = rc.Raw().Del(ctx, key).Err()
}
