package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "paroquia:views"

// CacheObserver receives hit and miss notifications.
type CacheObserver interface {
	CacheHit(resource, view string)
	CacheMiss(resource, view string)
}

// ViewCache caches public view responses in Redis. Each resource has its
// own version counter; bumping it orphans every cached entry of that
// resource, which then expire by TTL.
type ViewCache struct {
	client   *redis.Client
	ttl      time.Duration
	observer CacheObserver
	logger   *slog.Logger
}

// NewViewCache instantiates the cache helper. A nil client disables caching.
func NewViewCache(client *redis.Client, ttl time.Duration, observer CacheObserver, logger *slog.Logger) *ViewCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ViewCache{client: client, ttl: ttl, observer: observer, logger: logger}
}

func versionKey(resource string) string {
	return cacheKeyPrefix + ":" + resource + ":version"
}

// Version returns the current cache version of resource, initialising when missing.
func (c *ViewCache) Version(ctx context.Context, resource string) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey(resource)).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, versionKey(resource), 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes the cache key with the resource's current version.
func (c *ViewCache) BuildKey(ctx context.Context, resource string, parts ...string) (string, error) {
	ver, err := c.Version(ctx, resource)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:%d:%s", cacheKeyPrefix, resource, ver, strings.Join(parts, ":")), nil
}

// Entry is a freshly built view. A positive MaxAge shortens the cache TTL; a
// negative one serves the value without storing it.
type Entry struct {
	Value  any
	MaxAge time.Duration
}

// Fetch returns the cached JSON for the view or builds, stores and returns
// it. Redis failures degrade to building without caching.
func (c *ViewCache) Fetch(ctx context.Context, resource, view string, parts []string, loader func(context.Context) (Entry, error)) ([]byte, error) {
	build := func(ctx context.Context) ([]byte, time.Duration, error) {
		entry, err := loader(ctx)
		if err != nil {
			return nil, 0, err
		}
		raw, err := json.Marshal(entry.Value)
		return raw, entry.MaxAge, err
	}
	if c == nil || c.client == nil {
		raw, _, err := build(ctx)
		return raw, err
	}
	key, err := c.BuildKey(ctx, resource, append([]string{view}, parts...)...)
	if err != nil {
		c.warn("view cache version", err)
		raw, _, err := build(ctx)
		return raw, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		c.hit(resource, view)
		return payload, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.warn("view cache get", err)
		raw, _, err := build(ctx)
		return raw, err
	}
	c.miss(resource, view)
	raw, err, _ := singleflightBuild(ctx, key, func(ctx context.Context) ([]byte, error) {
		raw, maxAge, err := build(ctx)
		if err != nil {
			return nil, err
		}
		if maxAge < 0 {
			return raw, nil
		}
		ttl := c.ttl
		if maxAge > 0 && maxAge < ttl {
			ttl = maxAge
		}
		if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
			c.warn("view cache set", err)
		}
		return raw, nil
	})
	return raw, err
}

// Bump invalidates every cached view of resource.
func (c *ViewCache) Bump(ctx context.Context, resource string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(resource)).Err()
}

func (c *ViewCache) hit(resource, view string) {
	if c.observer != nil {
		c.observer.CacheHit(resource, view)
	}
}

func (c *ViewCache) miss(resource, view string) {
	if c.observer != nil {
		c.observer.CacheMiss(resource, view)
	}
}

func (c *ViewCache) warn(msg string, err error) {
	if c.logger != nil {
		c.logger.Warn(msg, slog.Any("error", err))
	}
}
