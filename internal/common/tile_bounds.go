package common

import "github.com/paulmach/orb"

// RenderedTile is one entry of the renderer's currently rendered tile list
type RenderedTile struct {
	Coord TileCoord `json:"coord"`
	// Rect is the tile rectangle in degrees (Min = west/south, Max = east/north)
	Rect orb.Bound `json:"rect"`
}

// NewBound builds an orb.Bound from west/south/east/north degrees
func NewBound(west, south, east, north float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{west, south},
		Max: orb.Point{east, north},
	}
}

// Intersects reports whether the rendered tile overlaps the coverage bounds.
// An empty coverage bound means "everywhere".
func (rt RenderedTile) Intersects(coverage orb.Bound) bool {
	if coverage.IsZero() {
		return true
	}
	return rt.Rect.Intersects(coverage)
}
