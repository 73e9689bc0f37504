package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/sagesync/internal/metrics"
	"github.com/d60-Lab/sagesync/pkg/logger"
)

// CachedGateway serves reads of immutable catalog resources from redis and
// passes everything else through. Cache errors fall back to the inner gateway.
type CachedGateway struct {
	Gateway
	cache     *redis.Client
	ttl       time.Duration
	resources map[string]bool

	hits   atomic.Int64
	misses atomic.Int64
}

// CatalogResources are the read-only resources cached by default.
var CatalogResources = []string{ResourceProducts, ResourceCategories}

func NewCachedGateway(inner Gateway, cache *redis.Client, ttl time.Duration, resources ...string) *CachedGateway {
	if len(resources) == 0 {
		resources = CatalogResources
	}
	set := make(map[string]bool, len(resources))
	for _, r := range resources {
		set[r] = true
	}
	return &CachedGateway{Gateway: inner, cache: cache, ttl: ttl, resources: set}
}

func (g *CachedGateway) List(ctx context.Context, resource string, filters Filters, page, pageSize int) (*Page, error) {
	if !g.resources[resource] {
		return g.Gateway.List(ctx, resource, filters, page, pageSize)
	}
	key := listKey(resource, filters, page, pageSize)
	var cached Page
	if g.lookup(ctx, key, &cached) {
		return &cached, nil
	}
	p, err := g.Gateway.List(ctx, resource, filters, page, pageSize)
	if err != nil {
		return nil, err
	}
	g.store(ctx, key, p)
	return p, nil
}

func (g *CachedGateway) Get(ctx context.Context, resource, id string) (json.RawMessage, error) {
	if !g.resources[resource] {
		return g.Gateway.Get(ctx, resource, id)
	}
	key := fmt.Sprintf("sagesync:get:%s:%s", resource, id)
	var cached json.RawMessage
	if g.lookup(ctx, key, &cached) {
		return cached, nil
	}
	raw, err := g.Gateway.Get(ctx, resource, id)
	if err != nil {
		return nil, err
	}
	g.store(ctx, key, raw)
	return raw, nil
}

// Invalidate drops every cached entry of resource.
func (g *CachedGateway) Invalidate(ctx context.Context, resource string) error {
	for _, pattern := range []string{"sagesync:list:" + resource + ":*", "sagesync:get:" + resource + ":*"} {
		iter := g.cache.Scan(ctx, 0, pattern, 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := g.cache.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

// CacheCounters 命中统计
type CacheCounters struct {
	Hits   int64
	Misses int64
}

func (g *CachedGateway) Counters() CacheCounters {
	return CacheCounters{Hits: g.hits.Load(), Misses: g.misses.Load()}
}

func (g *CachedGateway) lookup(ctx context.Context, key string, dst any) bool {
	data, err := g.cache.Get(ctx, key).Bytes()
	if err == nil {
		if uErr := json.Unmarshal(data, dst); uErr == nil {
			g.hits.Add(1)
			metrics.RecordCacheLookup(true)
			return true
		}
	} else if err != redis.Nil {
		logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
	}
	g.misses.Add(1)
	metrics.RecordCacheLookup(false)
	return false
}

func (g *CachedGateway) store(ctx context.Context, key string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := g.cache.Set(ctx, key, payload, g.ttl).Err(); err != nil {
		logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func listKey(resource string, filters Filters, page, pageSize int) string {
	names := make([]string, 0, len(filters))
	for k := range filters {
		names = append(names, k)
	}
	slices.Sort(names)
	var b strings.Builder
	for _, k := range names {
		if filters[k] == "" {
			continue
		}
		fmt.Fprintf(&b, "%s=%s;", k, filters[k])
	}
	return fmt.Sprintf("sagesync:list:%s:%s:%d:%d", resource, b.String(), page, pageSize)
}
