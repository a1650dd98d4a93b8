package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/config"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("SP_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	c, err := NewClient(config.RedisConfig{Addr: addr, PoolSize: 2}, "bsbi-test")
	if err != nil {
		t.Skipf("redis unavailable at %s: %v", addr, err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSetGetFlush(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "search:a", []byte(`{"hits":1}`), time.Minute))
	require.NoError(t, c.Set(ctx, "search:b", []byte(`{"hits":2}`), time.Minute))

	got, err := c.Get(ctx, "search:a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"hits":1}`, string(got))

	n, err := c.FlushByPattern(ctx, "search:*")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = c.Get(ctx, "search:a")
	assert.True(t, IsNilError(err))
}
