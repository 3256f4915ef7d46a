package cache

import (
	"log/slog"

	"globe-overlay/internal/labels"
	"globe-overlay/internal/logger"
	"globe-overlay/internal/metrics"
)

// LabelCache holds label records keyed by (dataset, id)
type LabelCache struct {
	store *batchStore[labels.Key, *labels.Record]
	log   *slog.Logger
}

// NewLabelCache creates a label cache from cfg
func NewLabelCache(cfg *Config) *LabelCache {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &LabelCache{
		store: newBatchStore[labels.Key, *labels.Record](cfg.LabelLimit, cfg.LabelTrim),
		log:   logger.With("labelcache"),
	}
}

// Get retrieves a record
func (c *LabelCache) Get(key labels.Key) (*labels.Record, bool) {
	rec, ok := c.store.get(key)
	if ok {
		metrics.CacheHitsTotal.WithLabelValues("label").Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues("label").Inc()
	}
	return rec, ok
}

// Put stores a record, replacing and re-appending any previous one
func (c *LabelCache) Put(rec *labels.Record) {
	if n := c.store.put(rec.Key(), rec); n > 0 {
		metrics.CacheEvictionsTotal.WithLabelValues("label").Add(float64(n))
		c.log.Debug("Trimmed label cache", "evicted", n, "size", c.store.len())
	}
}

// Len returns the number of cached records
func (c *LabelCache) Len() int {
	return c.store.len()
}

// Records returns all records, oldest first
func (c *LabelCache) Records() []*labels.Record {
	return c.store.values()
}

// Clear removes all records
func (c *LabelCache) Clear() {
	c.store.clear()
}
