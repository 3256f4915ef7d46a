package collision

import (
	"globe-overlay/internal/labels"
	"globe-overlay/internal/scene"
)

// BoxFor computes the screen box of a label. A label whose anchor does not
// project gets the empty Rect.
//
// Text width is the estimated width units times font size and label scale.
// The icon footprint is size times scale on both axes. Horizontally
// centered labels are centered on the anchor; otherwise the icon is
// centered on the anchor and the text sits on the side given by the origin.
func BoxFor(l *scene.Label, proj scene.Projector, pad Padding) Rect {
	rec := l.Record
	x, y, ok := proj.Project(rec.Position, rec.HeightReference)
	if !ok {
		return Rect{}
	}

	ls, is := rec.Style.Label, rec.Style.Icon
	scale := orOne(ls.Scale)
	textW := labels.EstimateTextWidth(rec.Text) * ls.FontSize * scale
	textH := ls.FontSize * scale
	icon := is.Size * orOne(is.Scale)

	var minX, maxX float64
	switch ls.Horizontal {
	case labels.HorizontalLeft:
		minX = x - icon/2
		maxX = x + icon/2 + textW
	case labels.HorizontalRight:
		minX = x - icon/2 - textW
		maxX = x + icon/2
	default:
		w := max(textW, icon)
		minX = x - w/2
		maxX = x + w/2
	}

	h := max(textH, icon)
	return Rect{
		MinX: minX - pad.left(),
		MinY: y - h/2 - pad.top(),
		MaxX: maxX + pad.right(),
		MaxY: y + h/2 + pad.bottom(),
	}
}

func orOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}
