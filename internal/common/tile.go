package common

import (
	"fmt"

	"github.com/paulmach/orb/maptile"
)

// TileCoord addresses a cell of the renderer's quadtree tiling scheme
type TileCoord struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	Zoom int `json:"zoom"`
}

// Key returns the "x_y_zoom" form used in logs and cache listings
func (t TileCoord) Key() string {
	return fmt.Sprintf("%d_%d_%d", t.X, t.Y, t.Zoom)
}

// Parent returns the tile one zoom level coarser that contains t.
// The root level is its own parent.
func (t TileCoord) Parent() TileCoord {
	if t.Zoom <= 0 || t.X < 0 || t.Y < 0 {
		return t
	}
	p := maptile.New(uint32(t.X), uint32(t.Y), maptile.Zoom(t.Zoom)).Parent()
	return TileCoord{X: int(p.X), Y: int(p.Y), Zoom: int(p.Z)}
}

// String implements fmt.Stringer
func (t TileCoord) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Zoom, t.X, t.Y)
}

// Position is a geodetic position in degrees and meters
type Position struct {
	Lon    float64 `json:"lon"`
	Lat    float64 `json:"lat"`
	Height float64 `json:"height"`
}

// HeightReference tells the renderer how to interpret Position.Height
type HeightReference int32

const (
	HeightNone HeightReference = iota
	HeightClampToGround
	HeightRelativeToGround
)
