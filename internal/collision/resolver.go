package collision

import (
	"log/slog"
	"slices"
	"time"

	"github.com/samber/lo"

	"globe-overlay/internal/common"
	"globe-overlay/internal/logger"
	"globe-overlay/internal/metrics"
	"globe-overlay/internal/scene"
)

// Result is the outcome of one collision pass. Boxes and Show are indexed
// like Labels.
type Result struct {
	Labels []*scene.Label
	Boxes  []Rect
	Show   []bool
}

// Resolver runs the two-phase priority suppression
type Resolver struct {
	proj    scene.Projector
	padding Padding
	log     *slog.Logger
}

// NewResolver creates a resolver projecting through proj
func NewResolver(proj scene.Projector, padding Padding) *Resolver {
	return &Resolver{proj: proj, padding: padding, log: logger.With("collision")}
}

// Resolve shows every label, recomputes its box, then hides labels that
// overlap a label of lower priority value: first within each cluster,
// then across all survivors.
func (r *Resolver) Resolve(ls []*scene.Label) Result {
	start := time.Now()

	res := Result{
		Labels: ls,
		Boxes:  make([]Rect, len(ls)),
		Show:   make([]bool, len(ls)),
	}
	for i, l := range ls {
		res.Boxes[i] = BoxFor(l, r.proj, r.padding)
		res.Show[i] = true
	}

	all := lo.Range(len(ls))
	clusters := lo.GroupBy(all, func(i int) common.TileCoord { return ls[i].Record.ClusterKey })
	for _, members := range clusters {
		res.suppress(members)
	}

	survivors := lo.Filter(all, func(i int, _ int) bool { return res.Show[i] })
	res.suppress(survivors)

	hidden := lo.CountBy(res.Show, func(show bool) bool { return !show })

	metrics.CollisionPassesTotal.Inc()
	metrics.CollisionPassDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000)
	r.log.Debug("Collision pass finished", "labels", len(ls), "hidden", hidden, "clusters", len(clusters))
	return res
}

// suppress orders idx by ascending priority, keeping array order for ties,
// and hides every later label overlapping a shown one
func (res *Result) suppress(idx []int) {
	order := slices.Clone(idx)
	slices.SortStableFunc(order, func(a, b int) int {
		pa, pb := res.Labels[a].Record.Priority, res.Labels[b].Record.Priority
		switch {
		case pa < pb:
			return -1
		case pa > pb:
			return 1
		}
		return 0
	})

	for n, i := range order {
		if !res.Show[i] {
			continue
		}
		for _, j := range order[n+1:] {
			if res.Boxes[i].Overlaps(res.Boxes[j]) {
				res.Show[j] = false
			}
		}
	}
}
