// Package collision declutters live labels in screen space.
package collision

import "fmt"

// Rect is an axis-aligned screen rectangle in pixels, y growing downwards.
// The zero Rect is empty and overlaps nothing.
type Rect struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Empty reports whether r has no area
func (r Rect) Empty() bool {
	return r.MaxX <= r.MinX || r.MaxY <= r.MinY
}

// Overlaps reports whether r and o share interior area
func (r Rect) Overlaps(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.MinX < o.MaxX && o.MinX < r.MaxX &&
		r.MinY < o.MaxY && o.MinY < r.MaxY
}

// Contains reports whether the point lies inside r
func (r Rect) Contains(x, y float64) bool {
	return !r.Empty() && x >= r.MinX && x <= r.MaxX && y >= r.MinY && y <= r.MaxY
}

func (r Rect) String() string {
	return fmt.Sprintf("[%.1f,%.1f %.1f,%.1f]", r.MinX, r.MinY, r.MaxX, r.MaxY)
}

// Padding insets a box in pixels: top, right, bottom, left
type Padding [4]float64

func (p Padding) top() float64    { return p[0] }
func (p Padding) right() float64  { return p[1] }
func (p Padding) bottom() float64 { return p[2] }
func (p Padding) left() float64   { return p[3] }
