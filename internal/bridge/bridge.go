// Package bridge is the Go side of the globe renderer. The frontend pushes
// frame snapshots; label commands go back as Wails events.
package bridge

import (
	"log/slog"
	"sync"
	"time"

	"globe-overlay/internal/common"
	"globe-overlay/internal/logger"
	"globe-overlay/internal/scene"
)

// Event names emitted to the frontend
const (
	EventLabelAdd    = "overlay:add"
	EventLabelRemove = "overlay:remove"
	EventLabelShow   = "overlay:show"
)

// Emitter sends an event to the frontend, e.g. a wrapper of runtime.EventsEmit
type Emitter func(event string, data ...any)

// LabelPayload is the data of an overlay:add event
type LabelPayload struct {
	ID      string `json:"id"`
	Overlay string `json:"overlay"`
	Show    bool   `json:"show"`
	Record  any    `json:"record"`
}

// ShowPayload is the data of an overlay:show event
type ShowPayload struct {
	ID   string `json:"id"`
	Show bool   `json:"show"`
}

// Bridge implements the overlay renderer on top of pushed frames
type Bridge struct {
	emit Emitter
	log  *slog.Logger

	mu    sync.RWMutex
	frame Frame
}

// New creates a bridge emitting through emit
func New(emit Emitter) *Bridge {
	return &Bridge{emit: emit, log: logger.With("bridge")}
}

// PushFrame replaces the current frame snapshot
func (b *Bridge) PushFrame(f Frame) {
	f.ReceivedAt = time.Now()
	b.mu.Lock()
	b.frame = f
	b.mu.Unlock()
}

// RenderedTiles implements viewport.Source
func (b *Bridge) RenderedTiles() []common.RenderedTile {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frame.RenderedTiles()
}

// LoadQueues implements viewport.Source
func (b *Bridge) LoadQueues() (int, int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frame.PendingRender, b.frame.HighPriorityLoad
}

// Project implements scene.Projector
func (b *Bridge) Project(pos common.Position, ref common.HeightReference) (float64, float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.frame.project(pos, ref)
	return p.X, p.Y, ok
}

func (b *Bridge) AddLabel(l *scene.Label) {
	b.emit(EventLabelAdd, LabelPayload{ID: l.EntityID(), Overlay: l.Marker, Show: l.Show, Record: l.Record})
}

func (b *Bridge) RemoveLabel(l *scene.Label) {
	b.emit(EventLabelRemove, l.EntityID())
}

func (b *Bridge) SetShow(l *scene.Label, show bool) {
	b.emit(EventLabelShow, ShowPayload{ID: l.EntityID(), Show: show})
}
