package agents

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/research-orchestrator/internal/circuitbreaker"
	"github.com/Kocoro-lab/research-orchestrator/internal/metrics"
	"github.com/Kocoro-lab/research-orchestrator/internal/workers"
)

const (
	defaultCacheSize = 512
	defaultCacheTTL  = 10 * time.Minute
)

// SearchCache stores search results by key.
type SearchCache interface {
	Get(ctx context.Context, key string) ([]workers.SearchRecord, bool)
	Set(ctx context.Context, key string, records []workers.SearchRecord, ttl time.Duration)
	// Backend names the store in metrics.
	Backend() string
}

// SearchCacheKey normalizes the query so that casing and surrounding
// whitespace do not split cache entries.
func SearchCacheKey(query string, maxResults int) string {
	h := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(query)) + "|" + strconv.Itoa(maxResults)))
	return "search:" + hex.EncodeToString(h[:])
}

type lruEntry struct {
	records []workers.SearchRecord
	expires time.Time
}

// LRUCache is an in-process cache with per-entry expiry.
type LRUCache struct {
	mu    sync.Mutex
	cache *lru.Cache[string, lruEntry]
	now   func() time.Time
}

// NewLRUCache creates a cache holding at most size entries.
func NewLRUCache(size int) (*LRUCache, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	c, err := lru.New[string, lruEntry](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{cache: c, now: time.Now}, nil
}

func (c *LRUCache) Get(_ context.Context, key string) ([]workers.SearchRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	if !c.now().Before(ent.expires) {
		c.cache.Remove(key)
		return nil, false
	}
	return ent.records, true
}

func (c *LRUCache) Set(_ context.Context, key string, records []workers.SearchRecord, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, lruEntry{records: records, expires: c.now().Add(ttl)})
}

func (c *LRUCache) Backend() string { return "lru" }

// RedisCache stores JSON-encoded results in Redis behind a circuit breaker.
// Errors degrade to cache misses.
type RedisCache struct {
	cli    *circuitbreaker.RedisWrapper
	logger *zap.Logger
}

// NewRedisCache wraps an existing wrapper; the caller owns the client.
func NewRedisCache(cli *circuitbreaker.RedisWrapper, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{cli: cli, logger: logger}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]workers.SearchRecord, bool) {
	b, found, err := r.cli.Get(ctx, key)
	if err != nil {
		r.logger.Debug("Search cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}
	var records []workers.SearchRecord
	if err := json.Unmarshal(b, &records); err != nil {
		r.logger.Warn("Discarding undecodable search cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return records, true
}

func (r *RedisCache) Set(ctx context.Context, key string, records []workers.SearchRecord, ttl time.Duration) {
	b, err := json.Marshal(records)
	if err != nil {
		return
	}
	if err := r.cli.Set(ctx, key, b, ttl); err != nil {
		r.logger.Debug("Search cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (r *RedisCache) Backend() string { return "redis" }

// CachedProvider serves repeated queries from a SearchCache. Only
// successful, non-empty results are stored.
type CachedProvider struct {
	inner  SearchProvider
	cache  SearchCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProvider wraps inner; a ttl of zero uses the default.
func NewCachedProvider(inner SearchProvider, cache SearchCache, ttl time.Duration, logger *zap.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

func (p *CachedProvider) Search(ctx context.Context, query string, maxResults int) ([]workers.SearchRecord, error) {
	key := SearchCacheKey(query, maxResults)
	if records, ok := p.cache.Get(ctx, key); ok {
		metrics.RecordSearchCacheLookup(p.cache.Backend(), true)
		return records, nil
	}
	metrics.RecordSearchCacheLookup(p.cache.Backend(), false)

	records, err := p.inner.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		p.cache.Set(ctx, key, records, p.ttl)
	}
	return records, nil
}
