// Package overlay assembles the label pipeline for one overlay instance:
// viewport tracking, tile fetch, label records, scene sync and decluttering.
package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"globe-overlay/internal/cache"
	"globe-overlay/internal/collision"
	"globe-overlay/internal/common"
	"globe-overlay/internal/fetch"
	"globe-overlay/internal/labels"
	"globe-overlay/internal/logger"
	"globe-overlay/internal/metrics"
	"globe-overlay/internal/ratelimit"
	"globe-overlay/internal/scene"
	"globe-overlay/internal/schedule"
	"globe-overlay/internal/viewport"
)

// Renderer is everything the overlay needs from the 3D scene
type Renderer interface {
	scene.Renderer
	viewport.Source
}

// Options configures an overlay
type Options struct {
	Datasets    []*fetch.Dataset
	Labels      labels.Config
	Cache       *cache.Config
	Viewport    viewport.Config
	Schedule    schedule.Config
	Fetch       fetch.Config
	Padding     collision.Padding
	AutoCollide bool

	// Limiter is shared between overlays; nil creates a private one
	Limiter *ratelimit.Handler
}

// Overlay owns the caches and live labels of one overlay instance.
// A single mutex serializes cache and scene mutation. Readers get
// snapshots or immutable records, never live entities.
type Overlay struct {
	id          string
	autoCollide bool
	log         *slog.Logger
	now         func() time.Time

	tracker   *viewport.Tracker
	scheduler *fetch.Scheduler
	factory   *labels.Factory
	tiles     *cache.TileCache
	labels    *cache.LabelCache
	syncer    *scene.Syncer
	resolver  *collision.Resolver
	index     *collision.Index
	ctrl      *schedule.Controller

	mu sync.Mutex
	// swept is the start of the newest cycle whose sweep has run
	swept time.Time
}

// New creates an inactive overlay drawing into r
func New(r Renderer, opts Options) (*Overlay, error) {
	id := uuid.NewString()

	factory, err := labels.NewFactory(opts.Labels)
	if err != nil {
		return nil, fmt.Errorf("failed to create label factory: %w", err)
	}

	tiles := cache.NewTileCache(opts.Cache)
	scheduler, err := fetch.NewScheduler(opts.Datasets, tiles, opts.Limiter, opts.Fetch)
	if err != nil {
		return nil, fmt.Errorf("failed to create tile scheduler: %w", err)
	}

	o := &Overlay{
		id:          id,
		autoCollide: opts.AutoCollide,
		log:         logger.With("overlay").With("overlay", id),
		now:         time.Now,
		tracker:     viewport.NewTracker(r, opts.Viewport),
		scheduler:   scheduler,
		factory:     factory,
		tiles:       tiles,
		labels:      cache.NewLabelCache(opts.Cache),
		syncer:      scene.NewSyncer(r, id),
		resolver:    collision.NewResolver(r, opts.Padding),
		index:       collision.NewIndex(),
	}
	o.ctrl = schedule.NewController(o, opts.Schedule)
	return o, nil
}

// ID returns the overlay's entity marker
func (o *Overlay) ID() string { return o.id }

// Controller returns the schedule controller driving the overlay
func (o *Overlay) Controller() *schedule.Controller { return o.ctrl }

// Activate starts the overlay with an initial tile set and returns a
// channel closed when the bootstrap window ends
func (o *Overlay) Activate(ctx context.Context, tiles []common.RenderedTile) <-chan struct{} {
	return o.ctrl.Start(ctx, tiles)
}

// MoveEnd forwards the camera move-end signal
func (o *Overlay) MoveEnd() bool { return o.ctrl.MoveEnd() }

// Changed forwards the camera changed signal
func (o *Overlay) Changed() bool { return o.ctrl.Changed() }

// Bootstrap runs one cycle over tiles supplied by the caller
func (o *Overlay) Bootstrap(ctx context.Context, tiles []common.RenderedTile) error {
	selected, _ := o.tracker.Update(tiles)
	return o.runCycle(ctx, selected, true)
}

// RefreshTiles waits for the renderer to settle, tracks its tiles and
// runs a cycle unless the tile set is unchanged
func (o *Overlay) RefreshTiles(ctx context.Context, bootstrap bool) error {
	tiles, changed, err := o.tracker.Track(ctx, true)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return o.runCycle(ctx, tiles, bootstrap)
}

func (o *Overlay) runCycle(ctx context.Context, tiles []common.RenderedTile, bootstrap bool) error {
	cycleStart := o.now()

	err := o.scheduler.Run(ctx, tiles, func(rec *cache.TileRecord) {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.ingest(rec, cycleStart, bootstrap)
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}

	o.mu.Lock()
	swept := o.syncer.Sweep(cycleStart, bootstrap)
	if !bootstrap && cycleStart.After(o.swept) {
		o.swept = cycleStart
	}
	o.mu.Unlock()

	o.log.Debug("Refresh cycle finished", "tiles", len(tiles), "swept", swept, "bootstrap", bootstrap,
		"elapsed", time.Since(cycleStart))

	if !bootstrap && o.autoCollide {
		o.ResolveCollisions(false)
	}
	return err
}

// ingest refreshes or builds the label records of one tile and adds them
// to the scene. Callers hold o.mu.
func (o *Overlay) ingest(rec *cache.TileRecord, cycleStart time.Time, bootstrap bool) {
	if rec.Negative() {
		return
	}

	now := o.now()
	records := make([]*labels.Record, 0, len(rec.Pois))
	for i := range rec.Pois {
		poi := &rec.Pois[i]
		key := labels.Key{Dataset: rec.Dataset, ID: poi.ID}

		if cached, ok := o.labels.Get(key); ok {
			refreshed := *cached
			refreshed.RefreshedAt = now
			o.labels.Put(&refreshed)
			records = append(records, &refreshed)
			continue
		}

		built, ok := o.factory.Build(poi, rec.StringTable, rec.Coord, rec.Dataset, rec.Kind, now)
		if !ok {
			continue
		}
		o.labels.Put(built)
		records = append(records, built)
	}

	o.syncer.Add(records, cycleStart, bootstrap)
}

// ResolveCollisions runs a collision pass over the live labels. It first
// re-sweeps against the newest finished cycle, which drops labels an older
// overlapping cycle added after that cycle's sweep.
func (o *Overlay) ResolveCollisions(bootstrap bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.swept.IsZero() {
		o.syncer.Sweep(o.swept, bootstrap)
	}

	live := o.syncer.Labels()
	if len(live) == 0 {
		o.index.Reset()
		return
	}

	res := o.resolver.Resolve(live)
	hidden := o.syncer.ApplyVisibility(live, res.Show)
	o.index.Rebuild(res)

	metrics.LabelsHiddenTotal.Add(float64(hidden))
	o.log.Debug("Resolved label collisions", "labels", len(live), "hidden", hidden, "bootstrap", bootstrap)
}

// Deactivate stops the controller, removes every live label of the
// overlay and drops the caches
func (o *Overlay) Deactivate() {
	o.ctrl.Stop()

	o.mu.Lock()
	defer o.mu.Unlock()

	removed := o.syncer.RemoveAll()
	o.tiles.Clear()
	o.labels.Clear()
	o.index.Reset()
	o.tracker.Reset()
	o.swept = time.Time{}
	o.log.Info("Overlay torn down", "removed", removed)
}

// Pick returns the records of visible labels under a window point, as of
// the last collision pass
func (o *Overlay) Pick(x, y float64) []*labels.Record {
	return o.index.Pick(x, y)
}

// TileRecords returns the cached tiles, oldest first
func (o *Overlay) TileRecords() []*cache.TileRecord { return o.tiles.Records() }

// LabelRecords returns the cached label records, oldest first
func (o *Overlay) LabelRecords() []*labels.Record { return o.labels.Records() }

// Labels returns copies of the live scene labels
func (o *Overlay) Labels() []scene.Label { return o.syncer.Snapshot() }
