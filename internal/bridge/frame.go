package bridge

import (
	"time"

	"globe-overlay/internal/common"
)

// FrameTile is one rendered tile reported by the globe
type FrameTile struct {
	X     int     `json:"x"`
	Y     int     `json:"y"`
	Zoom  int     `json:"z"`
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Frame is a snapshot of the globe's camera and tile state
type Frame struct {
	Tiles            []FrameTile `json:"tiles"`
	PendingRender    int         `json:"pendingRender"`
	HighPriorityLoad int         `json:"highPriorityLoad"`

	// ViewProjection is the column-major 4x4 matrix taking ECEF meters to clip space
	ViewProjection [16]float64 `json:"viewProjection"`
	// Camera is the camera position in ECEF meters; zero disables horizon culling
	Camera [3]float64 `json:"camera"`

	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	ReceivedAt time.Time `json:"-"`
}

// RenderedTiles converts the frame's tile list
func (f *Frame) RenderedTiles() []common.RenderedTile {
	out := make([]common.RenderedTile, len(f.Tiles))
	for i, t := range f.Tiles {
		out[i] = common.RenderedTile{
			Coord: common.TileCoord{X: t.X, Y: t.Y, Zoom: t.Zoom},
			Rect:  common.NewBound(t.West, t.South, t.East, t.North),
		}
	}
	return out
}
