package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/termlens/internal/fetch"
	"github.com/Adithya-Monish-Kumar-K/termlens/pkg/config"
)

const keyPrefix = "page:"

// Store is the remote tier of the cache. The pkg/redis client satisfies it.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// PageCache caches fetched pages by URL in a local LRU and, when configured,
// in Redis. Concurrent misses for the same URL share a single fetch.
type PageCache struct {
	remote Store
	local  *lru.LRU[string, *fetch.Page]
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a PageCache. remote may be nil to run with the local tier only.
func New(remote Store, cfg config.RedisConfig) *PageCache {
	size := cfg.LocalItems
	if size <= 0 {
		size = 256
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &PageCache{
		remote: remote,
		local:  lru.NewLRU[string, *fetch.Page](size, nil, ttl),
		ttl:    ttl,
		logger: slog.Default().With("component", "page-cache"),
	}
}

// Get returns the cached page for rawURL.
func (c *PageCache) Get(ctx context.Context, rawURL string) (*fetch.Page, bool) {
	key := buildKey(rawURL)
	if page, ok := c.local.Get(key); ok {
		c.hits.Add(1)
		return page, true
	}
	if c.remote == nil {
		c.misses.Add(1)
		return nil, false
	}
	data, found, err := c.remote.Get(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
	}
	if !found {
		c.misses.Add(1)
		return nil, false
	}
	var page fetch.Page
	if err := json.Unmarshal(data, &page); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.local.Add(key, &page)
	c.hits.Add(1)
	c.logger.Debug("cache hit", "url", rawURL, "key", key)
	return &page, true
}

// Set stores page under rawURL in both tiers.
func (c *PageCache) Set(ctx context.Context, rawURL string, page *fetch.Page) {
	key := buildKey(rawURL)
	c.local.Add(key, page)
	if c.remote == nil {
		return
	}
	data, err := json.Marshal(page)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.remote.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrFetch returns the cached page or calls fetchFn once per key across
// concurrent callers. The boolean reports a cache hit.
func (c *PageCache) GetOrFetch(
	ctx context.Context,
	rawURL string,
	fetchFn func(ctx context.Context) (*fetch.Page, error),
) (*fetch.Page, bool, error) {
	if page, ok := c.Get(ctx, rawURL); ok {
		return page, true, nil
	}
	key := buildKey(rawURL)
	val, err, _ := c.group.Do(key, func() (any, error) {
		if page, ok := c.local.Get(key); ok {
			return page, nil
		}
		page, err := fetchFn(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, rawURL, page)
		return page, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*fetch.Page), false, nil
}

// Invalidate drops every cached page.
func (c *PageCache) Invalidate(ctx context.Context) error {
	c.local.Purge()
	if c.remote == nil {
		c.logger.Info("cache invalidate", "tier", "local")
		return nil
	}
	deleted, err := c.remote.DeletePrefix(ctx, keyPrefix)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

// Stats returns hit and miss counters since start.
func (c *PageCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Remote reports whether a remote tier is configured.
func (c *PageCache) Remote() bool {
	return c.remote != nil
}

func buildKey(rawURL string) string {
	hash := sha256.Sum256([]byte(normalizeURL(rawURL)))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// normalizeURL lower-cases scheme and host and drops the fragment so that
// trivially different spellings share a cache entry.
func normalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return strings.TrimSpace(rawURL)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}
