package overlay

import (
	"github.com/samber/lo"

	"globe-overlay/internal/fetch"
)

// Stats is a point-in-time summary of an overlay
type Stats struct {
	ID            string   `json:"id"`
	Active        bool     `json:"active"`
	Bootstrapping bool     `json:"bootstrapping"`
	TrackedTiles  int      `json:"trackedTiles"`
	CachedTiles   int      `json:"cachedTiles"`
	CachedLabels  int      `json:"cachedLabels"`
	LiveLabels    int      `json:"liveLabels"`
	VisibleLabels int      `json:"visibleLabels"`
	Pickable      int      `json:"pickable"`
	Datasets      []string `json:"datasets"`
}

// Stats summarizes the overlay
func (o *Overlay) Stats() Stats {
	return Stats{
		ID:            o.id,
		Active:        o.ctrl.Active(),
		Bootstrapping: o.ctrl.Bootstrapping(),
		TrackedTiles:  len(o.tracker.Current()),
		CachedTiles:   o.tiles.Len(),
		CachedLabels:  o.labels.Len(),
		LiveLabels:    o.syncer.Len(),
		VisibleLabels: o.syncer.VisibleCount(),
		Pickable:      o.index.Len(),
		Datasets:      lo.Map(o.scheduler.Datasets(), func(d *fetch.Dataset, _ int) string { return d.Name }),
	}
}
