package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/config"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := NewClient(ctx, config.RedisConfig{Addr: addr, DB: 15, PoolSize: 2})
	if err != nil {
		t.Skipf("skipping: redis unavailable: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_SetGet(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	t.Cleanup(func() { c.DeletePrefix(ctx, "termlens-test:") })

	require.NoError(t, c.Set(ctx, "termlens-test:a", []byte("one"), time.Minute))

	got, found, err := c.Get(ctx, "termlens-test:a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("one"), got)

	got, found, err = c.Get(ctx, "termlens-test:missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
	assert.NoError(t, c.Ping(ctx))
}

func TestClient_DeletePrefix(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	// more than one unlink batch
	for i := range scanBatch + 7 {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("termlens-test:%d", i), []byte("x"), time.Minute))
	}
	require.NoError(t, c.Set(ctx, "termlens-keep", []byte("y"), time.Minute))
	t.Cleanup(func() { c.DeletePrefix(ctx, "termlens-keep") })

	deleted, err := c.DeletePrefix(ctx, "termlens-test:")
	require.NoError(t, err)
	assert.Equal(t, int64(scanBatch+7), deleted)

	_, found, err := c.Get(ctx, "termlens-test:3")
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = c.Get(ctx, "termlens-keep")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestNewClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewClient(ctx, config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.ErrorContains(t, err, "redis ping failed")
}
