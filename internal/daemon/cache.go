package daemon

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/barryels/Spark/internal/ir"
)

// DefaultCacheSize is the number of applications whose bindings are cached.
const DefaultCacheSize = 128

type bindings = map[ir.TriggerID]ir.ActionID

// bindingCache memoizes TriggersForApplication per application.
// Any mutation of the library must Purge it.
type bindingCache struct {
	lru     *lru.Cache[ir.ApplicationID, bindings]
	metrics *metrics
}

func newBindingCache(size int, m *metrics) (*bindingCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[ir.ApplicationID, bindings](size)
	if err != nil {
		return nil, err
	}
	return &bindingCache{lru: c, metrics: m}, nil
}

// Get returns the cached bindings for app, computing them on a miss.
func (c *bindingCache) Get(app ir.ApplicationID, compute func(ir.ApplicationID) bindings) bindings {
	if b, ok := c.lru.Get(app); ok {
		c.metrics.cacheHits.Inc()
		return b
	}
	c.metrics.cacheMisses.Inc()
	b := compute(app)
	c.lru.Add(app, b)
	return b
}

// Purge drops every cached entry.
func (c *bindingCache) Purge() {
	c.lru.Purge()
}
