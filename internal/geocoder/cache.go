package geocoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/automax/routing/internal/logger"
	"github.com/automax/routing/internal/metrics"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// CachedClient keeps successful lookups in a process-local cache and, when a
// Redis client is given, in a cache shared by every instance. Failures are
// never cached.
type CachedClient struct {
	next    Client
	local   *cache.Cache
	shared  *redis.Client
	ttl     time.Duration
	log     *logger.Logger
	metrics *metrics.RoutingMetrics
}

func NewCachedClient(next Client, shared *redis.Client, ttl time.Duration, log *logger.Logger, m *metrics.RoutingMetrics) *CachedClient {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedClient{
		next:    next,
		local:   cache.New(ttl, ttl*2),
		shared:  shared,
		ttl:     ttl,
		log:     log,
		metrics: m,
	}
}

func addressKey(addr Address) string {
	return fmt.Sprintf("geocoder:address:%s|%s|%s",
		NormalizeStreet(addr.Street), strings.TrimSpace(addr.Number), strings.ToUpper(strings.TrimSpace(addr.Letter)))
}

func zoneKey(zone string, info *AddressInfo) string {
	return fmt.Sprintf("geocoder:zone:%s:%.2f:%.2f", zone, info.XCoordinate, info.YCoordinate)
}

func (c *CachedClient) ResolveAddress(ctx context.Context, addr Address) (*AddressInfo, error) {
	key := addressKey(addr)
	var info AddressInfo
	if c.lookup(ctx, key, &info) {
		return &info, nil
	}

	resolved, err := c.next.ResolveAddress(ctx, addr)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, *resolved)
	return resolved, nil
}

func (c *CachedClient) ResolvePolygonCode(ctx context.Context, zone string, info *AddressInfo) (string, error) {
	if info == nil {
		return c.next.ResolvePolygonCode(ctx, zone, info)
	}
	key := zoneKey(zone, info)
	var code string
	if c.lookup(ctx, key, &code) {
		return code, nil
	}

	code, err := c.next.ResolvePolygonCode(ctx, zone, info)
	if err != nil {
		return "", err
	}
	if code != "" {
		c.store(ctx, key, code)
	}
	return code, nil
}

func (c *CachedClient) lookup(ctx context.Context, key string, dest interface{}) bool {
	if cached, found := c.local.Get(key); found {
		if data, ok := cached.([]byte); ok && json.Unmarshal(data, dest) == nil {
			c.hit("local")
			return true
		}
	}
	if c.shared == nil {
		return false
	}

	data, err := c.shared.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("geocoder shared cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.log.Warn("geocoder shared cache entry is corrupt", "key", key, "error", err)
		return false
	}
	c.local.Set(key, data, cache.DefaultExpiration)
	c.hit("shared")
	return true
}

func (c *CachedClient) store(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.local.Set(key, data, cache.DefaultExpiration)
	if c.shared == nil {
		return
	}
	if err := c.shared.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn("geocoder shared cache write failed", "key", key, "error", err)
	}
}

func (c *CachedClient) hit(layer string) {
	if c.metrics != nil {
		c.metrics.GeocoderCacheHits.WithLabelValues(layer).Inc()
	}
}
