package gacha

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"
)

const ResolverCacheSize = 32

// ResolverCache shares immutable resolvers between trials and requests that
// use the same rate configuration.
type ResolverCache struct {
	cache *lru.Cache[string, *Resolver]

	hits   atomic.Int64
	misses atomic.Int64
}

func NewResolverCache(size int) (*ResolverCache, error) {
	c, err := lru.New[string, *Resolver](size)
	if err != nil {
		return nil, fmt.Errorf("resolver cache: %w", err)
	}
	return &ResolverCache{cache: c}, nil
}

func resolverKey(numFeatured int, mode TargetMode, rate decimal.Decimal) string {
	return fmt.Sprintf("%d|%s|%s", numFeatured, mode, rate.String())
}

// Get returns the resolver for the configuration, building it on a miss.
func (c *ResolverCache) Get(numFeatured int, mode TargetMode, rate decimal.Decimal) (*Resolver, error) {
	key := resolverKey(numFeatured, mode, rate)
	if r, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return r, nil
	}
	c.misses.Add(1)
	model, err := ComputeTargetRates(numFeatured, mode, rate)
	if err != nil {
		return nil, err
	}
	r, err := NewResolver(model)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, r)
	return r, nil
}

// ForBanner is Get for a banner and target mode.
func (c *ResolverCache) ForBanner(b Banner, mode TargetMode) (*Resolver, error) {
	return c.Get(b.NumFeatured(), mode, b.NonFeaturedFiveStarRate)
}

// Counts returns cache hits and misses since creation.
func (c *ResolverCache) Counts() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
