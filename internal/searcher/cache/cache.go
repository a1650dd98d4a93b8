// Package cache stores search results in Redis keyed by index generation
// and request, and collapses concurrent identical misses with singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/bsbi-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/resilience"
	pkgredis "github.com/Adithya-Monish-Kumar-K/bsbi-search/pkg/redis"
)

const keyPrefix = "search:"

// Store is the subset of the Redis client the cache uses.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

var _ Store = (*pkgredis.Client)(nil)

// Key identifies one cached answer. Generation changes whenever the served
// index is replaced, so stale entries are simply never read again.
type Key struct {
	Generation string
	Request    executor.Request
}

type QueryCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
	// isMiss reports store errors that just mean the key is absent.
	isMiss  func(error) bool
	breaker *resilience.Breaker

	// computeTimeout bounds a shared computation, which outlives the
	// request that started it.
	computeTimeout time.Duration
}

func New(store Store, ttl, computeTimeout time.Duration, m *metrics.Metrics) *QueryCache {
	c := &QueryCache{
		store:          store,
		ttl:            ttl,
		computeTimeout: computeTimeout,
		metrics:        m,
		logger:         slog.Default().With("component", "query-cache"),
		isMiss:         pkgredis.IsNilError,
	}
	c.breaker = resilience.NewBreaker("query-cache", resilience.BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         10 * time.Second,
		IsFailure:        func(err error) bool { return err != nil && !c.isMiss(err) },
	})
	return c
}

func (c *QueryCache) Get(ctx context.Context, k Key) (*executor.SearchResult, bool) {
	key := buildKey(k)
	var data []byte
	err := c.breaker.Do(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		return err
	})
	if err != nil {
		switch {
		case c.isMiss(err):
		case errors.Is(err, resilience.ErrCircuitOpen):
			c.logger.Debug("cache bypassed", "error", err)
		default:
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	c.metrics.CacheHit()
	c.logger.Debug("cache hit", "query", k.Request.Query, "key", key)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, k Key, result *executor.SearchResult) {
	key := buildKey(k)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Do(func() error { return c.store.Set(ctx, key, data, c.ttl) })
	if err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for k or runs computeFn once for
// all concurrent callers asking for the same key. Errors are not cached.
//
// computeFn gets a context detached from any one caller and bounded by the
// compute timeout, so a caller going away does not fail the others waiting
// on the same key. A caller whose own ctx ends stops waiting and gets its
// ctx error.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	k Key,
	computeFn func(ctx context.Context) (*executor.SearchResult, error),
) (*executor.SearchResult, bool, error) {
	if result, ok := c.Get(ctx, k); ok {
		return result, true, nil
	}
	ch := c.group.DoChan(buildKey(k), func() (interface{}, error) {
		shared := context.WithoutCancel(ctx)
		if c.computeTimeout > 0 {
			var cancel context.CancelFunc
			shared, cancel = context.WithTimeout(shared, c.computeTimeout)
			defer cancel()
		}
		result, err := computeFn(shared)
		if err != nil {
			return nil, err
		}
		c.Set(shared, k, result)
		return result, nil
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, false, r.Err
		}
		return r.Val.(*executor.SearchResult), false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// State reports whether the cache is currently bypassed.
func (c *QueryCache) State() resilience.State {
	return c.breaker.State()
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	c.metrics.CacheMiss()
}

func buildKey(k Key) string {
	req := k.Request
	raw := fmt.Sprintf("%s|%s|%s|%d|%s",
		k.Generation, req.Mode, req.Weight, req.Limit, normalizeQuery(req.Query))
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// normalizeQuery collapses whitespace and case. Word order is kept: it
// changes the meaning of a boolean query.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
