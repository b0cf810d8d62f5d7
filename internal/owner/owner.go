// Package owner resolves owner-reference properties on deals into owner
// details, memoizing lookups for the lifetime of one invocation.
package owner

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/deal-enricher/internal/model"
)

// Lookup fetches a single owner by ID.
type Lookup interface {
	GetOwner(ctx context.Context, ownerID string) (*model.Owner, error)
}

// Cache memoizes successful owner lookups. It has no eviction; create one
// per invocation.
type Cache struct {
	mu     sync.RWMutex
	owners map[string]*model.Owner
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{owners: make(map[string]*model.Owner)}
}

// Get returns the cached owner for id.
func (c *Cache) Get(id string) (*model.Owner, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.owners[id]
	return o, ok
}

// Set stores an owner.
func (c *Cache) Set(id string, o *model.Owner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owners[id] = o
}

// Len returns the number of cached owners.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.owners)
}

// Stats summarizes one Resolve call.
type Stats struct {
	Referenced int // distinct owner IDs referenced
	CacheHits  int
	Fetched    int
	Failed     int
}

// Resolver attaches "<property>_details" to deals.
type Resolver struct {
	client      Lookup
	cache       *Cache
	concurrency int
}

// NewResolver creates a Resolver. A nil cache gets a fresh one.
func NewResolver(client Lookup, cache *Cache, concurrency int) *Resolver {
	if cache == nil {
		cache = NewCache()
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Resolver{client: client, cache: cache, concurrency: concurrency}
}

// Cache exposes the resolver's cache.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// Resolve looks up every distinct owner ID referenced by property and
// attaches the details. A failed lookup attaches empty details; deals
// without the property are left untouched.
func (r *Resolver) Resolve(ctx context.Context, deals []*model.Deal, property string) Stats {
	var stats Stats

	var missing []string
	seen := make(map[string]bool)
	for _, d := range deals {
		id := d.Property(property)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := r.cache.Get(id); ok {
			stats.CacheHits++
			continue
		}
		missing = append(missing, id)
	}
	stats.Referenced = len(seen)

	var (
		mu     sync.Mutex
		failed = make(map[string]bool)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, id := range missing {
		g.Go(func() error {
			o, err := r.client.GetOwner(gctx, id)
			if err != nil {
				zap.L().Warn("owner: lookup failed",
					zap.String("property", property),
					zap.String("owner_id", id),
					zap.Error(err),
				)
				mu.Lock()
				failed[id] = true
				mu.Unlock()
				return nil
			}
			r.cache.Set(id, o)
			return nil
		})
	}
	_ = g.Wait()

	stats.Failed = len(failed)
	stats.Fetched = len(missing) - stats.Failed

	for _, d := range deals {
		id := d.Property(property)
		if id == "" {
			continue
		}
		if o, ok := r.cache.Get(id); ok {
			d.SetOwnerDetails(property, o)
			continue
		}
		d.SetOwnerDetails(property, &model.Owner{})
	}

	zap.L().Debug("owner: resolved",
		zap.String("property", property),
		zap.Int("referenced", stats.Referenced),
		zap.Int("cache_hits", stats.CacheHits),
		zap.Int("failed", stats.Failed),
	)
	return stats
}

// ResolveAll runs Resolve for each property in order.
func (r *Resolver) ResolveAll(ctx context.Context, deals []*model.Deal, properties []string) {
	for _, p := range properties {
		r.Resolve(ctx, deals, p)
	}
}
