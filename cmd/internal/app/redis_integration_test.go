//go:build integration

package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// Run with: go test -tags integration ./...
func TestRedisLimiter_Container(t *testing.T) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := newRedisClient(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	l := NewRedisLimiter(client, 2, time.Hour)
	// Pin the clock to the start of a window so the test never straddles two.
	start := time.Now().Truncate(time.Hour)
	l.now = func() time.Time { return start }

	for i := range 2 {
		ok, _, err := l.Allow(ctx, "ip:198.51.100.1")
		require.NoError(t, err)
		require.True(t, ok, "request %d", i)
	}

	ok, retry, err := l.Allow(ctx, "ip:198.51.100.1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Hour, retry)

	ok, _, err = l.Allow(ctx, "ip:198.51.100.2")
	require.NoError(t, err)
	assert.True(t, ok, "keys are counted independently")

	l.now = func() time.Time { return start.Add(time.Hour) }
	ok, _, err = l.Allow(ctx, "ip:198.51.100.1")
	require.NoError(t, err)
	assert.True(t, ok, "a new window resets the count")

	k, _ := l.windowKey("ip:198.51.100.2", start)
	ttl, err := client.TTL(ctx, k).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
