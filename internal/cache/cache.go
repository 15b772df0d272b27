// Package cache memoizes final retrieval decisions per (tenant, normalized
// query). It is the only structure in the engine that outlives a request.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/faqline/faqline/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Entry wraps a decision with the rendered answer so a cache hit performs no
// item-store lookups. Owned exclusively by the cache.
type Entry struct {
	Decision  domain.RetrievalDecision
	Answer    string
	NextSteps []string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ResultCache is a read-through TTL cache with per-tenant bulk invalidation.
// Concurrent callers of GetOrCompute for the same uncached key share a single
// pipeline run.
type ResultCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]map[string]*Entry // tenantID -> queryHash -> entry

	group singleflight.Group
}

// New creates a ResultCache with the given TTL.
func New(ttl time.Duration) *ResultCache {
	return &ResultCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]map[string]*Entry),
	}
}

// QueryHash derives the cache key component from a normalized query. Also
// stored in decision logs so offline analysis can join on it.
func QueryHash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Get returns the live entry for (tenant, normalized query), if any.
func (c *ResultCache) Get(tenantID, normalized string) (*Entry, bool) {
	hash := QueryHash(normalized)

	c.mu.RLock()
	entry := c.entries[tenantID][hash]
	c.mu.RUnlock()

	if entry == nil || c.now().After(entry.ExpiresAt) {
		return nil, false
	}
	return entry, true
}

// Put stores an entry for (tenant, normalized query) with the cache TTL.
func (c *ResultCache) Put(tenantID, normalized string, decision domain.RetrievalDecision, answer string, nextSteps []string) *Entry {
	hash := QueryHash(normalized)
	created := c.now()
	entry := &Entry{
		Decision:  decision,
		Answer:    answer,
		NextSteps: nextSteps,
		CreatedAt: created,
		ExpiresAt: created.Add(c.ttl),
	}

	c.mu.Lock()
	tenant := c.entries[tenantID]
	if tenant == nil {
		tenant = make(map[string]*Entry)
		c.entries[tenantID] = tenant
	}
	tenant[hash] = entry
	c.mu.Unlock()

	return entry
}

// GetOrCompute returns the cached entry or runs compute exactly once per key
// across concurrent callers, storing the result. compute errors are returned
// without caching anything.
func (c *ResultCache) GetOrCompute(ctx context.Context, tenantID, normalized string, compute func(ctx context.Context) (domain.RetrievalDecision, string, []string, error)) (*Entry, bool, error) {
	if entry, ok := c.Get(tenantID, normalized); ok {
		return entry, true, nil
	}

	key := tenantID + "\x00" + QueryHash(normalized)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check inside the flight: a concurrent caller may have filled
		// the entry between our miss and the flight starting.
		if entry, ok := c.Get(tenantID, normalized); ok {
			return entry, nil
		}
		decision, answer, nextSteps, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		return c.Put(tenantID, normalized, decision, answer, nextSteps), nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*Entry), false, nil
}

// InvalidateTenant drops every entry for a tenant. Called when the tenant's
// item set is republished; a stale entry referencing a retired item must
// never be served.
func (c *ResultCache) InvalidateTenant(tenantID string) {
	c.mu.Lock()
	delete(c.entries, tenantID)
	c.mu.Unlock()
}

// Len reports the number of live entries, expired included. Test helper.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, tenant := range c.entries {
		n += len(tenant)
	}
	return n
}
