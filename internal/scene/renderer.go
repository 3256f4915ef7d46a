// Package scene keeps the live label entities of one overlay in step with
// the label cache.
package scene

import (
	"globe-overlay/internal/common"
)

// Projector maps world positions to window coordinates in pixels.
// ok is false when the position is behind the camera or off the globe.
type Projector interface {
	Project(pos common.Position, ref common.HeightReference) (x, y float64, ok bool)
}

// Renderer is the entity side of the 3D scene
type Renderer interface {
	Projector

	AddLabel(l *Label)
	RemoveLabel(l *Label)
	SetShow(l *Label, show bool)
}
