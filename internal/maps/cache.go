// README: Route-pair cache backends (in-process go-cache, shared Redis) and the caching RouteClient decorator.
package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"wayfare/internal/metrics"
	"wayfare/internal/types"
)

// Router is the routing capability shared by RouteClient and CachedRouteClient.
type Router interface {
	ComputeRoute(ctx context.Context, origin, destination types.GeoPoint, opts RouteOptions) (*RouteResult, error)
	ComputeMatrix(ctx context.Context, origins, destinations []types.GeoPoint, opts RouteOptions) (RouteMatrix, error)
}

// Cache stores single route results by key.
type Cache interface {
	Get(ctx context.Context, key string) (*RouteResult, bool, error)
	Set(ctx context.Context, key string, result *RouteResult, ttl time.Duration) error
	Name() string
}

// MemoryCache is an in-process cache backed by go-cache.
type MemoryCache struct {
	c *gocache.Cache
}

// NewMemoryCache creates a MemoryCache that sweeps expired entries every cleanup interval.
func NewMemoryCache(defaultTTL, cleanup time.Duration) *MemoryCache {
	return &MemoryCache{c: gocache.New(defaultTTL, cleanup)}
}

func (m *MemoryCache) Name() string { return "memory" }

func (m *MemoryCache) Get(_ context.Context, key string) (*RouteResult, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	r, ok := v.(RouteResult)
	if !ok {
		return nil, false, nil
	}
	return &r, true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, result *RouteResult, ttl time.Duration) error {
	if result == nil {
		return nil
	}
	// stored by value so callers can't mutate cached entries
	m.c.Set(key, *result, ttl)
	return nil
}

// RedisCache shares route results between instances. Values are JSON encoded.
type RedisCache struct {
	rdb    redis.Cmdable
	prefix string
}

// NewRedisCache wraps a redis client; keys are namespaced with prefix.
func NewRedisCache(rdb redis.Cmdable, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "wayfare:route:"
	}
	return &RedisCache{rdb: rdb, prefix: prefix}
}

func (r *RedisCache) Name() string { return "redis" }

func (r *RedisCache) Get(ctx context.Context, key string) (*RouteResult, bool, error) {
	raw, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var res RouteResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, false, fmt.Errorf("redis decode: %w", err)
	}
	return &res, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, result *RouteResult, ttl time.Duration) error {
	if result == nil {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("redis encode: %w", err)
	}
	if err := r.rdb.Set(ctx, r.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// CachedRouteClient memoises ComputeRoute. Matrix calls pass straight through.
// Any cache failure degrades to a direct provider call.
type CachedRouteClient struct {
	next   Router
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedRouteClient decorates next with cache.
func NewCachedRouteClient(next Router, cache Cache, ttl time.Duration, logger *slog.Logger) *CachedRouteClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedRouteClient{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (c *CachedRouteClient) ComputeRoute(ctx context.Context, origin, destination types.GeoPoint, opts RouteOptions) (*RouteResult, error) {
	key := routeCacheKey(origin, destination, opts)

	cached, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		c.logger.WarnContext(ctx, "route cache read failed", slog.String("backend", c.cache.Name()), slog.Any("error", err))
	case ok:
		metrics.CacheHits.WithLabelValues(c.cache.Name()).Inc()
		return cached, nil
	}
	metrics.CacheMisses.WithLabelValues(c.cache.Name()).Inc()

	res, err := c.next.ComputeRoute(ctx, origin, destination, opts)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, res, c.ttl); err != nil {
		c.logger.WarnContext(ctx, "route cache write failed", slog.String("backend", c.cache.Name()), slog.Any("error", err))
	}
	return res, nil
}

func (c *CachedRouteClient) ComputeMatrix(ctx context.Context, origins, destinations []types.GeoPoint, opts RouteOptions) (RouteMatrix, error) {
	return c.next.ComputeMatrix(ctx, origins, destinations, opts)
}

// routeCacheKey rounds coordinates to 5 decimals (~1 m).
func routeCacheKey(origin, destination types.GeoPoint, opts RouteOptions) string {
	return fmt.Sprintf("%s|%t|%t|%.5f,%.5f|%.5f,%.5f",
		opts.mode(), opts.AvoidTolls, opts.AvoidHighways,
		origin.Lat, origin.Lng, destination.Lat, destination.Lng)
}
