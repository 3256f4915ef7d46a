// Package schedule turns camera signals into refresh and collision passes.
package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"

	"globe-overlay/internal/common"
	"globe-overlay/internal/logger"
	"globe-overlay/internal/poitile"
)

// Pipeline is the work the controller schedules
type Pipeline interface {
	// Bootstrap runs fetch and sync for a caller supplied tile set
	Bootstrap(ctx context.Context, tiles []common.RenderedTile) error
	// RefreshTiles tracks the viewport and runs fetch and sync
	RefreshTiles(ctx context.Context, bootstrap bool) error
	// ResolveCollisions runs one collision pass
	ResolveCollisions(bootstrap bool)
}

// Config holds the cadences
type Config struct {
	RefreshInterval   time.Duration
	CollisionInterval time.Duration
	BootstrapInterval time.Duration
	BootstrapTicks    int

	// TrailingCollision is the quiet period after the last "changed"
	// signal before a final collision pass; zero disables it
	TrailingCollision time.Duration

	// TrailingRefresh is the quiet period after a throttled "move end"
	// signal before a catch-up refresh; zero disables it
	TrailingRefresh time.Duration
}

// DefaultConfig returns the default cadences
func DefaultConfig() Config {
	return Config{
		RefreshInterval:   300 * time.Millisecond,
		CollisionInterval: 150 * time.Millisecond,
		BootstrapInterval: 600 * time.Millisecond,
		BootstrapTicks:    4,
		TrailingCollision: 200 * time.Millisecond,
		TrailingRefresh:   300 * time.Millisecond,
	}
}

// Controller gates camera signals by the time since the last action of
// each cadence and drives the bootstrap tick sequence after activation
type Controller struct {
	p       Pipeline
	cfg     Config
	log     *slog.Logger
	now     func() time.Time
	onError func(error)

	mu            sync.Mutex
	active        bool
	bootstrap     bool
	ticks         int
	lastRefresh   time.Time
	lastCollision time.Time
	ctx           context.Context
	cancel        context.CancelFunc
	trailing      func(func())
	trailingMove  func(func())
	bootstrapped  chan struct{}
	wg            sync.WaitGroup
}

// NewController creates an inactive controller
func NewController(p Pipeline, cfg Config) *Controller {
	defaults := DefaultConfig()
	if cfg.BootstrapInterval <= 0 {
		cfg.BootstrapInterval = defaults.BootstrapInterval
	}
	if cfg.BootstrapTicks < 0 {
		cfg.BootstrapTicks = 0
	}

	c := &Controller{
		p:   p,
		cfg: cfg,
		log: logger.With("schedule"),
		now: time.Now,
	}
	if cfg.TrailingCollision > 0 {
		c.trailing = debounce.New(cfg.TrailingCollision)
	}
	if cfg.TrailingRefresh > 0 {
		c.trailingMove = debounce.New(cfg.TrailingRefresh)
	}
	return c
}

// SetOnError installs a callback for errors returned by pipeline runs
func (c *Controller) SetOnError(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// Start activates the controller: it runs the bootstrap pass for tiles at
// once, then BootstrapTicks ticks at BootstrapInterval in the background.
// The returned channel closes when bootstrap ends.
func (c *Controller) Start(ctx context.Context, tiles []common.RenderedTile) <-chan struct{} {
	c.mu.Lock()
	if c.active {
		done := c.bootstrapped
		c.mu.Unlock()
		return done
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.active = true
	c.bootstrap = true
	c.ticks = 0
	c.lastRefresh, c.lastCollision = time.Time{}, time.Time{}
	c.bootstrapped = make(chan struct{})
	runCtx, done := c.ctx, c.bootstrapped
	c.mu.Unlock()

	c.log.Info("Overlay activated", "tiles", len(tiles), "bootstrapTicks", c.cfg.BootstrapTicks)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(done)

		c.report(runCtx, c.p.Bootstrap(runCtx, tiles))
		if c.cfg.BootstrapTicks == 0 {
			c.endBootstrap()
			return
		}

		ticker := time.NewTicker(c.cfg.BootstrapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if c.Tick(runCtx) {
					return
				}
			}
		}
	}()
	return done
}

// Tick runs one bootstrap tick: a bootstrap refresh, plus a collision pass
// on every other tick. It reports whether bootstrap is over.
func (c *Controller) Tick(ctx context.Context) bool {
	c.mu.Lock()
	if !c.active || !c.bootstrap {
		c.mu.Unlock()
		return true
	}
	c.ticks++
	tick := c.ticks
	c.mu.Unlock()

	c.report(ctx, c.p.RefreshTiles(ctx, true))
	if tick%2 == 0 {
		c.p.ResolveCollisions(true)
	}

	if tick >= c.cfg.BootstrapTicks {
		c.endBootstrap()
		return true
	}
	return false
}

func (c *Controller) endBootstrap() {
	c.mu.Lock()
	c.bootstrap = false
	now := c.now()
	c.lastRefresh, c.lastCollision = now, now
	c.mu.Unlock()
	c.log.Debug("Bootstrap finished")
}

// MoveEnd handles the camera move-end signal. A refresh starts in the
// background when RefreshInterval has passed since the last one; the
// result reports whether it did. A throttled signal arms a trailing refresh.
func (c *Controller) MoveEnd() bool {
	c.mu.Lock()
	if !c.active || c.bootstrap {
		c.mu.Unlock()
		return false
	}
	if c.now().Sub(c.lastRefresh) < c.cfg.RefreshInterval {
		if c.trailingMove != nil {
			c.trailingMove(c.trailingRefresh)
		}
		c.mu.Unlock()
		return false
	}
	c.startRefreshLocked()
	c.mu.Unlock()
	return true
}

func (c *Controller) trailingRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active || c.bootstrap {
		return
	}
	c.startRefreshLocked()
}

// startRefreshLocked runs a refresh in the background. Callers hold c.mu.
func (c *Controller) startRefreshLocked() {
	c.lastRefresh = c.now()
	ctx := c.ctx
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		c.report(ctx, c.p.RefreshTiles(ctx, false))
	}()
}

// Changed handles the camera changed signal. A collision pass runs when
// CollisionInterval has passed since the last one, and a trailing pass is
// (re)armed either way.
func (c *Controller) Changed() bool {
	c.mu.Lock()
	if !c.active || c.bootstrap {
		c.mu.Unlock()
		return false
	}
	if c.trailing != nil {
		c.trailing(c.trailingPass)
	}
	now := c.now()
	if now.Sub(c.lastCollision) < c.cfg.CollisionInterval {
		c.mu.Unlock()
		return false
	}
	c.lastCollision = now
	c.mu.Unlock()

	c.p.ResolveCollisions(false)
	return true
}

func (c *Controller) trailingPass() {
	c.mu.Lock()
	if !c.active || c.bootstrap {
		c.mu.Unlock()
		return
	}
	c.lastCollision = c.now()
	c.mu.Unlock()

	c.p.ResolveCollisions(false)
}

// Stop detaches the controller from camera signals, cancels running
// work and waits for it to return
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	c.bootstrap = false
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()
	c.log.Info("Overlay deactivated")
}

// Active reports whether the controller reacts to camera signals
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Bootstrapping reports whether the bootstrap window is open
func (c *Controller) Bootstrapping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bootstrap
}

func (c *Controller) report(ctx context.Context, err error) {
	if err == nil || ctx.Err() != nil {
		return
	}
	var decodeErr *poitile.SchemaDecodeError
	if errors.As(err, &decodeErr) {
		c.log.Error("Tile decode failed during refresh", "err", err)
	} else {
		c.log.Warn("Refresh finished with errors", "err", err)
	}

	c.mu.Lock()
	fn := c.onError
	c.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
