package labels

import (
	"github.com/samber/lo"

	"globe-overlay/internal/poitile"
)

// HorizontalOrigin positions a label or icon horizontally relative to its anchor
type HorizontalOrigin int

const (
	HorizontalCenter HorizontalOrigin = iota
	HorizontalLeft
	HorizontalRight
)

// VerticalOrigin positions a label or icon vertically relative to its anchor
type VerticalOrigin int

const (
	VerticalCenter VerticalOrigin = iota
	VerticalBottom
	VerticalTop
)

// LabelStyle is the resolved text style of a label
type LabelStyle struct {
	Font            string           `json:"font"`
	FontSize        float64          `json:"fontSize"`
	FontFamily      string           `json:"fontFamily"`
	Bold            bool             `json:"bold"`
	Italic          bool             `json:"italic"`
	FillColor       string           `json:"fillColor"`
	OutlineColor    string           `json:"outlineColor"`
	OutlineWidth    float64          `json:"outlineWidth"`
	ShowBackground  bool             `json:"showBackground"`
	BackgroundColor string           `json:"backgroundColor"`
	ShineColor      string           `json:"shineColor"`
	ShineSize       float64          `json:"shineSize"`
	Scale           float64          `json:"scale"`
	Horizontal      HorizontalOrigin `json:"horizontalOrigin"`
	Vertical        VerticalOrigin   `json:"verticalOrigin"`
}

// IconStyle is the resolved icon (billboard) style of a label
type IconStyle struct {
	Image      string           `json:"image"`
	Size       float64          `json:"size"`
	Scale      float64          `json:"scale"`
	Rotation   float64          `json:"rotation"`
	Horizontal HorizontalOrigin `json:"horizontalOrigin"`
	Vertical   VerticalOrigin   `json:"verticalOrigin"`
}

// Style pairs the text and icon styles
type Style struct {
	Label LabelStyle `json:"label"`
	Icon  IconStyle  `json:"icon"`
}

// Override carries per-field values that replace a Style field when set
type Override struct {
	FontSize        *float64
	FontFamily      *string
	Bold            *bool
	Italic          *bool
	FillColor       *string
	OutlineColor    *string
	OutlineWidth    *float64
	ShowBackground  *bool
	BackgroundColor *string
	ShineColor      *string
	ShineSize       *float64
	Scale           *float64
	IconSize        *float64
	Rotation        *float64
}

// Merge applies o on top of s. Fields are applied in declaration order of
// Override; font composition happens afterwards in the factory.
func (s Style) Merge(o Override) Style {
	out := s
	out.Label.FontSize = lo.FromPtrOr(o.FontSize, s.Label.FontSize)
	out.Label.FontFamily = lo.FromPtrOr(o.FontFamily, s.Label.FontFamily)
	out.Label.Bold = lo.FromPtrOr(o.Bold, s.Label.Bold)
	out.Label.Italic = lo.FromPtrOr(o.Italic, s.Label.Italic)
	out.Label.FillColor = lo.FromPtrOr(o.FillColor, s.Label.FillColor)
	out.Label.OutlineColor = lo.FromPtrOr(o.OutlineColor, s.Label.OutlineColor)
	out.Label.OutlineWidth = lo.FromPtrOr(o.OutlineWidth, s.Label.OutlineWidth)
	out.Label.ShowBackground = lo.FromPtrOr(o.ShowBackground, s.Label.ShowBackground)
	out.Label.BackgroundColor = lo.FromPtrOr(o.BackgroundColor, s.Label.BackgroundColor)
	out.Label.ShineColor = lo.FromPtrOr(o.ShineColor, s.Label.ShineColor)
	out.Label.ShineSize = lo.FromPtrOr(o.ShineSize, s.Label.ShineSize)
	out.Label.Scale = lo.FromPtrOr(o.Scale, s.Label.Scale)
	out.Icon.Size = lo.FromPtrOr(o.IconSize, s.Icon.Size)
	out.Icon.Rotation = lo.FromPtrOr(o.Rotation, s.Icon.Rotation)
	return out
}

// OverrideFromPoi collects the style fields a feature actually carries.
// Zero values count as absent; the font family resolves through the tile's
// string table.
func OverrideFromPoi(poi *poitile.Poi, stringTable []string) Override {
	st := poi.Style
	o := Override{
		FillColor:       lo.EmptyableToPtr(st.FontColor),
		OutlineColor:    lo.EmptyableToPtr(st.OutlineColor),
		OutlineWidth:    lo.EmptyableToPtr(float64(st.OutlineWidth)),
		ShowBackground:  lo.EmptyableToPtr(st.ShowBackground),
		BackgroundColor: lo.EmptyableToPtr(st.BackgroundColor),
		ShineColor:      lo.EmptyableToPtr(st.ShiningColor),
		ShineSize:       lo.EmptyableToPtr(float64(st.ShiningSize)),
		Scale:           lo.EmptyableToPtr(float64(st.Scale)),
		FontSize:        lo.EmptyableToPtr(float64(st.FontSize)),
		IconSize:        lo.EmptyableToPtr(float64(st.DisplaySize)),
		Rotation:        lo.EmptyableToPtr(float64(st.Rotation)),
	}

	if st.FontIndex >= 0 && int(st.FontIndex) < len(stringTable) {
		o.FontFamily = lo.EmptyableToPtr(stringTable[st.FontIndex])
	}
	if st.FontStyle != 0 {
		o.Bold = lo.ToPtr(st.FontStyle&poitile.FontStyleBold != 0)
		o.Italic = lo.ToPtr(st.FontStyle&poitile.FontStyleItalic != 0)
	}
	return o
}
