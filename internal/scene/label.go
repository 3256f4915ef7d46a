package scene

import (
	"time"

	"globe-overlay/internal/labels"
)

// Label is a live scene entity created from a label record
type Label struct {
	Record *labels.Record `json:"record"`

	// Marker identifies the overlay that owns the entity
	Marker string `json:"marker"`

	Show        bool      `json:"show"`
	RefreshedAt time.Time `json:"refreshedAt"`
}

// Key returns the record key of the label
func (l *Label) Key() labels.Key {
	return l.Record.Key()
}

// EntityID is the id the renderer knows the entity by
func (l *Label) EntityID() string {
	return l.Marker + "/" + l.Record.Dataset + "/" + l.Record.ID
}
