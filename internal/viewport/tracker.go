// Package viewport tracks which renderer tiles the overlay should serve.
package viewport

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"globe-overlay/internal/common"
	"globe-overlay/internal/logger"
	"globe-overlay/internal/metrics"
)

// Source is the part of the renderer the tracker reads
type Source interface {
	// RenderedTiles returns the tiles the renderer currently draws
	RenderedTiles() []common.RenderedTile

	// LoadQueues returns the pending-render and high-priority-load queue depths
	LoadQueues() (pendingRender, highPriorityLoad int)
}

// Config controls quiescence polling and zoom band fan-out
type Config struct {
	PollInterval        time.Duration
	MaxWait             time.Duration
	MaxPendingRender    int
	MaxHighPriorityLoad int

	// MaxZoomBands is the number of distinct zoom levels kept per cycle
	MaxZoomBands int
}

// DefaultConfig returns the default tracker configuration
func DefaultConfig() Config {
	return Config{
		PollInterval: 100 * time.Millisecond,
		MaxWait:      5 * time.Second,
		MaxZoomBands: 4,
	}
}

// Tracker remembers the last tracked tile set
type Tracker struct {
	src Source
	cfg Config
	log *slog.Logger

	mu      sync.Mutex
	current []common.RenderedTile
}

// NewTracker creates a tracker over src
func NewTracker(src Source, cfg Config) *Tracker {
	defaults := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.MaxZoomBands <= 0 {
		cfg.MaxZoomBands = defaults.MaxZoomBands
	}
	return &Tracker{src: src, cfg: cfg, log: logger.With("viewport")}
}

// Settled reports whether the renderer's load queues are small enough to
// trust the rendered tile list
func (t *Tracker) Settled() bool {
	pending, high := t.src.LoadQueues()
	return pending <= t.cfg.MaxPendingRender && high <= t.cfg.MaxHighPriorityLoad
}

// WaitQuiescent polls until the renderer settles. After MaxWait (when set)
// it stops waiting and returns nil so the cycle proceeds with what is
// rendered.
func (t *Tracker) WaitQuiescent(ctx context.Context) error {
	if t.Settled() {
		return nil
	}

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if t.cfg.MaxWait > 0 {
		timer := time.NewTimer(t.cfg.MaxWait)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			t.log.Debug("Renderer still busy, proceeding with current tiles", "maxWait", t.cfg.MaxWait)
			return nil
		case <-ticker.C:
			if t.Settled() {
				return nil
			}
		}
	}
}

// Select orders tiles by descending zoom and cuts the list when a zoom
// beyond the first maxBands distinct levels appears
func Select(tiles []common.RenderedTile, maxBands int) []common.RenderedTile {
	sorted := slices.Clone(tiles)
	slices.SortStableFunc(sorted, func(a, b common.RenderedTile) int {
		return b.Coord.Zoom - a.Coord.Zoom
	})

	bands := 0
	lastZoom := 0
	for i, tile := range sorted {
		if i == 0 || tile.Coord.Zoom != lastZoom {
			bands++
			lastZoom = tile.Coord.Zoom
		}
		if bands > maxBands {
			return sorted[:i]
		}
	}
	return sorted
}

// SameTiles compares two tile lists as unordered sets of coordinates
func SameTiles(a, b []common.RenderedTile) bool {
	coords := func(tiles []common.RenderedTile) map[common.TileCoord]struct{} {
		return lo.SliceToMap(tiles, func(t common.RenderedTile) (common.TileCoord, struct{}) {
			return t.Coord, struct{}{}
		})
	}
	setA, setB := coords(a), coords(b)
	if len(setA) != len(setB) {
		return false
	}
	for c := range setA {
		if _, ok := setB[c]; !ok {
			return false
		}
	}
	return true
}

// Update selects tiles and records them as current. It returns the
// selection and whether it differs from the previous one.
func (t *Tracker) Update(tiles []common.RenderedTile) ([]common.RenderedTile, bool) {
	selected := Select(tiles, t.cfg.MaxZoomBands)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil && SameTiles(selected, t.current) {
		metrics.ViewportCyclesTotal.WithLabelValues("unchanged").Inc()
		return selected, false
	}
	t.current = selected
	metrics.ViewportCyclesTotal.WithLabelValues("changed").Inc()
	return selected, true
}

// Track runs one tracking cycle: optionally wait for quiescence, read the
// rendered tiles and compare them to the previous cycle
func (t *Tracker) Track(ctx context.Context, wait bool) ([]common.RenderedTile, bool, error) {
	if wait {
		if err := t.WaitQuiescent(ctx); err != nil {
			return nil, false, err
		}
	}
	tiles, changed := t.Update(t.src.RenderedTiles())
	if !changed {
		t.log.Debug("Viewport unchanged, skipping cycle", "tiles", len(tiles))
	}
	return tiles, changed, nil
}

// Current returns the last tracked tile set
func (t *Tracker) Current() []common.RenderedTile {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.current)
}

// Reset forgets the tracked set so the next cycle counts as changed
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = nil
}
