// Package fetch downloads, decodes and caches label tiles for the tracked viewport.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"globe-overlay/internal/cache"
	"globe-overlay/internal/common"
	"globe-overlay/internal/logger"
	"globe-overlay/internal/metrics"
	"globe-overlay/internal/poitile"
	"globe-overlay/internal/ratelimit"
)

// Config controls fetch concurrency and the HTTP client
type Config struct {
	MaxConcurrent int64
	Timeout       time.Duration
	UserAgent     string
}

// TileHandler receives each tile record of a cycle, cached or fresh.
// It may be called from several goroutines at once.
type TileHandler func(rec *cache.TileRecord)

// Scheduler turns tracked tiles into cached tile records
type Scheduler struct {
	datasets []*Dataset
	client   *Client
	tiles    *cache.TileCache
	limiter  *ratelimit.Handler
	sem      *semaphore.Weighted
	log      *slog.Logger
}

// NewScheduler creates a scheduler. limiter may be nil.
func NewScheduler(datasets []*Dataset, tiles *cache.TileCache, limiter *ratelimit.Handler, cfg Config) (*Scheduler, error) {
	for _, ds := range datasets {
		if err := ds.Compile(); err != nil {
			return nil, err
		}
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	if limiter == nil {
		limiter = ratelimit.NewHandler(nil)
	}

	return &Scheduler{
		datasets: datasets,
		client:   NewClient(cfg.Timeout, cfg.UserAgent),
		tiles:    tiles,
		limiter:  limiter,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		log:      logger.With("fetch"),
	}, nil
}

// Datasets returns the configured datasets
func (s *Scheduler) Datasets() []*Dataset { return s.datasets }

// Run resolves every (tile, dataset) pair the datasets cover. Cached tiles
// are handed to onTile directly; missing ones are fetched concurrently and
// handed over as they complete. Network failures leave no cache entry.
// Per-tile failures are joined into the returned error.
func (s *Scheduler) Run(ctx context.Context, tiles []common.RenderedTile, onTile TileHandler) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	addErr := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for _, tile := range tiles {
		for _, ds := range s.datasets {
			if !ds.Covers(tile) {
				continue
			}

			key := cache.TileKey{Coord: tile.Coord, Kind: ds.Kind}
			if rec, ok := s.tiles.Get(key); ok {
				onTile(rec)
				continue
			}

			if s.limiter.IsRateLimited(ds.Name) {
				metrics.TileFetchesTotal.WithLabelValues(ds.Name, "throttled").Inc()
				continue
			}

			if err := s.sem.Acquire(ctx, 1); err != nil {
				addErr(err)
				wg.Wait()
				return errors.Join(errs...)
			}

			wg.Add(1)
			go func(ds *Dataset, coord common.TileCoord) {
				defer wg.Done()
				defer s.sem.Release(1)

				rec, err := s.FetchTile(ctx, ds, coord)
				if err != nil {
					addErr(err)
					return
				}
				s.tiles.Put(rec)
				onTile(rec)
			}(ds, tile.Coord)
		}
	}

	wg.Wait()
	return errors.Join(errs...)
}

// FetchTile downloads and decodes one tile without touching the cache.
// An answered request without usable data yields a negative record.
func (s *Scheduler) FetchTile(ctx context.Context, ds *Dataset, coord common.TileCoord) (*cache.TileRecord, error) {
	res, status := s.client.Fetch(ctx, ds, coord)
	metrics.TileFetchDurationMs.WithLabelValues(ds.Name).Observe(float64(res.Elapsed.Milliseconds()))

	if res.Error != nil {
		metrics.TileFetchesTotal.WithLabelValues(ds.Name, "network_error").Inc()
		s.log.Warn("Tile fetch failed", "dataset", ds.Name, "tile", coord.Key(), "err", res.Error)
		return nil, res.Error
	}

	if s.limiter.CheckStatus(ds.Name, status) {
		metrics.TileFetchesTotal.WithLabelValues(ds.Name, "throttled").Inc()
		return nil, &NetworkFetchError{Dataset: ds.Name, Tile: coord, URL: ds.TileURL(coord), StatusCode: status, Err: ErrThrottled}
	}

	switch {
	case status == http.StatusNotFound || status == http.StatusNoContent:
		res.Negative = true
	case status < 200 || status > 299:
		metrics.TileFetchesTotal.WithLabelValues(ds.Name, "network_error").Inc()
		err := &NetworkFetchError{Dataset: ds.Name, Tile: coord, URL: ds.TileURL(coord), StatusCode: status, Err: errors.New(http.StatusText(status))}
		s.log.Warn("Tile fetch failed", "dataset", ds.Name, "tile", coord.Key(), "err", err)
		return nil, err
	}

	rec, err := s.decode(ds, res)
	if err != nil {
		metrics.TileFetchesTotal.WithLabelValues(ds.Name, "decode_error").Inc()
		return nil, fmt.Errorf("decode %s tile %s: %w", ds.Name, coord.Key(), err)
	}

	outcome := "ok"
	if rec.Negative() {
		outcome = "negative"
	}
	metrics.TileFetchesTotal.WithLabelValues(ds.Name, outcome).Inc()
	s.log.Debug("Fetched tile", "dataset", ds.Name, "tile", coord.Key(), "pois", len(rec.Pois),
		"schema", rec.Schema, "elapsed", res.Elapsed)
	return rec, nil
}

func (s *Scheduler) decode(ds *Dataset, res common.TileFetchResult) (*cache.TileRecord, error) {
	rec := &cache.TileRecord{
		Coord:     res.Coord,
		Kind:      ds.Kind,
		Dataset:   ds.Name,
		FetchedAt: res.FetchedAt,
	}
	if res.Negative {
		return rec, nil
	}

	switch ds.Kind {
	case common.DatasetRoadLabel:
		pois, err := poitile.DecodeRoad(res.Data)
		if err != nil {
			return nil, err
		}
		rec.Pois = pois
	default:
		packet, err := poitile.Decode(res.Data)
		if err != nil {
			return nil, err
		}
		if !packet.Empty() {
			metrics.TileDecodeSchemaTotal.WithLabelValues(packet.Schema).Inc()
		}
		rec.StringTable = packet.StringTable
		rec.Pois = packet.Pois
		rec.Schema = packet.Schema
	}
	return rec, nil
}
