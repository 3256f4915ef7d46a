package scene

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"globe-overlay/internal/labels"
	"globe-overlay/internal/logger"
	"globe-overlay/internal/metrics"
)

// Syncer reconciles label records with the live entities of one overlay
type Syncer struct {
	r      Renderer
	marker string
	log    *slog.Logger

	mu    sync.RWMutex
	live  map[labels.Key]*Label
	order []labels.Key
}

// NewSyncer creates a syncer that tags its entities with marker
func NewSyncer(r Renderer, marker string) *Syncer {
	return &Syncer{
		r:      r,
		marker: marker,
		log:    logger.With("scene").With("overlay", marker),
		live:   make(map[labels.Key]*Label),
	}
}

// Add puts every record refreshed at or after cycleStart into the scene.
// Records already live only get their timestamp and contents replaced,
// and never by a record older than the one they carry. During bootstrap
// new entities start hidden.
func (s *Syncer) Add(records []*labels.Record, cycleStart time.Time, bootstrap bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, rec := range records {
		if rec.RefreshedAt.Before(cycleStart) {
			continue
		}

		key := rec.Key()
		if l, ok := s.live[key]; ok {
			if rec.RefreshedAt.Before(l.RefreshedAt) {
				continue
			}
			l.Record = rec
			l.RefreshedAt = rec.RefreshedAt
			continue
		}

		l := &Label{
			Record:      rec,
			Marker:      s.marker,
			Show:        !bootstrap,
			RefreshedAt: rec.RefreshedAt,
		}
		s.live[key] = l
		s.order = append(s.order, key)
		s.r.AddLabel(l)
		added++
	}

	if added > 0 {
		metrics.SceneLabelsAddedTotal.Add(float64(added))
		s.log.Debug("Added labels to scene", "count", added, "bootstrap", bootstrap)
	}
	return added
}

// Sweep removes live entities of this overlay older than cycleStart.
// It does nothing during bootstrap.
func (s *Syncer) Sweep(cycleStart time.Time, bootstrap bool) int {
	if bootstrap {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.removeWhere(func(l *Label) bool {
		return l.Marker == s.marker && l.RefreshedAt.Before(cycleStart)
	})
	if removed > 0 {
		metrics.SceneLabelsRemovedTotal.Add(float64(removed))
		s.log.Debug("Swept stale labels", "count", removed)
	}
	return removed
}

// RemoveAll removes every live entity of this overlay
func (s *Syncer) RemoveAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.removeWhere(func(l *Label) bool { return l.Marker == s.marker })
	metrics.SceneLabelsRemovedTotal.Add(float64(removed))
	return removed
}

func (s *Syncer) removeWhere(match func(*Label) bool) int {
	removed := 0
	s.order = slices.DeleteFunc(s.order, func(key labels.Key) bool {
		l := s.live[key]
		if !match(l) {
			return false
		}
		delete(s.live, key)
		s.r.RemoveLabel(l)
		removed++
		return true
	})
	return removed
}

// Labels returns the live entities in insertion order. The entities are
// shared with the syncer: callers must serialize with Add, Sweep and
// ApplyVisibility.
func (s *Syncer) Labels() []*Label {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Label, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.live[key])
	}
	return out
}

// Snapshot returns copies of the live entities in insertion order. The
// copies are safe to read while other goroutines sync the scene.
func (s *Syncer) Snapshot() []Label {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Label, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, *s.live[key])
	}
	return out
}

// Get returns the live entity for key
func (s *Syncer) Get(key labels.Key) (*Label, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.live[key]
	return l, ok
}

// Len returns the number of live entities
func (s *Syncer) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.live)
}

// VisibleCount returns how many live entities are shown
func (s *Syncer) VisibleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, l := range s.live {
		if l.Show {
			n++
		}
	}
	return n
}

// ApplyVisibility sets Show on each label and forwards changes to the renderer.
// show is indexed like ls.
func (s *Syncer) ApplyVisibility(ls []*Label, show []bool) (hidden int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, l := range ls {
		if _, ok := s.live[l.Key()]; !ok {
			continue
		}
		if !show[i] {
			hidden++
		}
		if l.Show == show[i] {
			continue
		}
		l.Show = show[i]
		s.r.SetShow(l, show[i])
	}
	return hidden
}
