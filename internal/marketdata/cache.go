package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"trading-botv1/internal/model"
)

// Cache stores JSON-encodable values with a TTL.
type Cache interface {
	// Get decodes the cached value for key into v. The bool reports a hit.
	Get(ctx context.Context, key string, v any) (bool, error)

	// Set stores v under key for ttl.
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}

// ──────────────────────────────────────────────
// In-memory cache
// ──────────────────────────────────────────────

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is a process-local Cache with lazy expiry.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time // stubbed in tests
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryCache) Get(_ context.Context, key string, v any) (bool, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && m.now().After(e.expiresAt) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(e.data, v); err != nil {
		return false, err
	}
	return true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[key] = memoryEntry{data: data, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// ──────────────────────────────────────────────
// Redis cache
// ──────────────────────────────────────────────

// RedisCache is a Cache backed by Redis, for sharing quotes across processes.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache wraps an existing Redis client. Keys are namespaced with
// prefix to keep the bot's entries apart from other users of the instance.
func NewRedisCache(rdb *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "mdcache"
	}
	return &RedisCache{rdb: rdb, prefix: prefix}
}

func (r *RedisCache) key(k string) string { return r.prefix + ":" + k }

func (r *RedisCache) Get(ctx context.Context, key string, v any) (bool, error) {
	data, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// ──────────────────────────────────────────────
// Caching provider decorator
// ──────────────────────────────────────────────

// Counter is the increment-only surface of a metrics counter.
// prometheus.Counter satisfies it.
type Counter interface {
	Inc()
}

// CachedProvider serves quotes and history from a Cache, falling through to
// the underlying Provider on a miss. A cache read error is treated as a miss
// so a broken Redis never blocks data.
type CachedProvider struct {
	next       Provider
	cache      Cache
	quoteTTL   time.Duration
	historyTTL time.Duration
	hits       Counter
	misses     Counter
}

// NewCachedProvider layers cache over next. Zero TTLs default to 1 minute
// for quotes and 5 minutes for history.
func NewCachedProvider(next Provider, cache Cache, quoteTTL, historyTTL time.Duration) *CachedProvider {
	if quoteTTL <= 0 {
		quoteTTL = time.Minute
	}
	if historyTTL <= 0 {
		historyTTL = 5 * time.Minute
	}
	return &CachedProvider{next: next, cache: cache, quoteTTL: quoteTTL, historyTTL: historyTTL}
}

// Instrument attaches hit/miss counters and returns p for chaining at
// wiring time. Nil counters disable counting.
func (p *CachedProvider) Instrument(hits, misses Counter) *CachedProvider {
	p.hits = hits
	p.misses = misses
	return p
}

func (p *CachedProvider) hit() {
	if p.hits != nil {
		p.hits.Inc()
	}
}

func (p *CachedProvider) miss() {
	if p.misses != nil {
		p.misses.Inc()
	}
}

func (p *CachedProvider) Current(ctx context.Context, symbol string) (Quote, error) {
	key := "quote:" + symbol
	var q Quote
	if hit, err := p.cache.Get(ctx, key, &q); err == nil && hit {
		p.hit()
		return q, nil
	}
	p.miss()

	q, err := p.next.Current(ctx, symbol)
	if err != nil {
		return Quote{}, err
	}
	_ = p.cache.Set(ctx, key, q, p.quoteTTL)
	return q, nil
}

func (p *CachedProvider) History(ctx context.Context, symbol, period string) (model.PriceSeries, error) {
	key := "history:" + symbol + ":" + period
	var series model.PriceSeries
	if hit, err := p.cache.Get(ctx, key, &series); err == nil && hit {
		p.hit()
		return series, nil
	}
	p.miss()

	series, err := p.next.History(ctx, symbol, period)
	if err != nil {
		return model.PriceSeries{}, err
	}
	_ = p.cache.Set(ctx, key, series, p.historyTTL)
	return series, nil
}
