package cache

import (
	"log/slog"
	"time"

	"globe-overlay/internal/common"
	"globe-overlay/internal/logger"
	"globe-overlay/internal/metrics"
	"globe-overlay/internal/poitile"
)

// TileKey identifies a cached tile
type TileKey struct {
	Coord common.TileCoord
	Kind  common.DatasetKind
}

// TileRecord is a decoded tile. A record without Pois is a negative entry:
// the server answered but had nothing for the tile.
type TileRecord struct {
	Coord       common.TileCoord   `json:"coord"`
	Kind        common.DatasetKind `json:"kind"`
	Dataset     string             `json:"dataset"`
	FetchedAt   time.Time          `json:"fetchedAt"`
	StringTable []string           `json:"stringTable,omitempty"`
	Pois        []poitile.Poi      `json:"-"`
	Schema      string             `json:"schema,omitempty"`
}

// Key returns the cache key of the record
func (r *TileRecord) Key() TileKey {
	return TileKey{Coord: r.Coord, Kind: r.Kind}
}

// Negative reports whether the record is a "fetched, found nothing" entry
func (r *TileRecord) Negative() bool {
	return len(r.Pois) == 0
}

// TileCache holds decoded tiles for the lifetime of an overlay. Entries
// are never expired, only trimmed oldest-first in batches.
type TileCache struct {
	store *batchStore[TileKey, *TileRecord]
	log   *slog.Logger
}

// NewTileCache creates a tile cache from cfg
func NewTileCache(cfg *Config) *TileCache {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &TileCache{
		store: newBatchStore[TileKey, *TileRecord](cfg.TileLimit, cfg.TileTrim),
		log:   logger.With("tilecache"),
	}
}

// Get retrieves a tile from cache
func (c *TileCache) Get(key TileKey) (*TileRecord, bool) {
	rec, ok := c.store.get(key)
	if ok {
		metrics.CacheHitsTotal.WithLabelValues("tile").Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues("tile").Inc()
	}
	return rec, ok
}

// Put stores a tile, replacing any previous record for the same key
func (c *TileCache) Put(rec *TileRecord) {
	if n := c.store.put(rec.Key(), rec); n > 0 {
		metrics.CacheEvictionsTotal.WithLabelValues("tile").Add(float64(n))
		c.log.Debug("Trimmed tile cache", "evicted", n, "size", c.store.len())
	}
}

// Len returns the number of cached tiles
func (c *TileCache) Len() int {
	return c.store.len()
}

// Records returns the cached tiles, oldest first
func (c *TileCache) Records() []*TileRecord {
	return c.store.values()
}

// Clear removes all cached tiles
func (c *TileCache) Clear() {
	c.store.clear()
}
