package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/polyarb/arbengine/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DependencyCache implements domain.DependencyCache using Redis hashes, one
// per unordered market pair, with a TTL set at write time matching the
// classifier's confidence horizon.
type DependencyCache struct {
	rdb *redis.Client
}

// NewDependencyCache creates a DependencyCache backed by the given Client.
func NewDependencyCache(c *Client) *DependencyCache {
	return &DependencyCache{rdb: c.Underlying()}
}

func dependencyKey(marketA, marketB string) string {
	a, b := domain.PairKey(marketA, marketB)
	return "dep:" + a + ":" + b
}

// Get returns the cached dependency for the unordered pair (marketA,
// marketB), or domain.ErrNoDependency on a cache miss.
func (dc *DependencyCache) Get(ctx context.Context, marketA, marketB string) (domain.Dependency, error) {
	key := dependencyKey(marketA, marketB)
	vals, err := dc.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.Dependency{}, fmt.Errorf("redis: get dependency %s: %w", key, err)
	}
	if len(vals) == 0 {
		return domain.Dependency{}, domain.ErrNoDependency
	}

	confidence, _ := strconv.ParseFloat(vals["confidence"], 64)
	discoveredNano, _ := strconv.ParseInt(vals["discovered_at"], 10, 64)
	expiresNano, _ := strconv.ParseInt(vals["expires_at"], 10, 64)

	return domain.Dependency{
		SourceMarketID: vals["source"],
		TargetMarketID: vals["target"],
		Relation:       domain.RelationType(vals["relation"]),
		Confidence:     confidence,
		DiscoveredAt:   time.Unix(0, discoveredNano),
		ExpiresAt:      time.Unix(0, expiresNano),
	}, nil
}

// Set stores a dependency for its unordered pair, expiring it after ttl.
func (dc *DependencyCache) Set(ctx context.Context, dep domain.Dependency, ttl time.Duration) error {
	key := dependencyKey(dep.SourceMarketID, dep.TargetMarketID)
	fields := map[string]interface{}{
		"source":        dep.SourceMarketID,
		"target":        dep.TargetMarketID,
		"relation":      string(dep.Relation),
		"confidence":    strconv.FormatFloat(dep.Confidence, 'f', -1, 64),
		"discovered_at": strconv.FormatInt(dep.DiscoveredAt.UnixNano(), 10),
		"expires_at":    strconv.FormatInt(dep.ExpiresAt.UnixNano(), 10),
	}

	pipe := dc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set dependency %s: %w", key, err)
	}
	return nil
}

// Has reports whether a dependency is cached for the unordered pair,
// without deserializing it.
func (dc *DependencyCache) Has(ctx context.Context, marketA, marketB string) (bool, error) {
	n, err := dc.rdb.Exists(ctx, dependencyKey(marketA, marketB)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: exists dependency: %w", err)
	}
	return n > 0, nil
}

// Compile-time interface check.
var _ domain.DependencyCache = (*DependencyCache)(nil)
