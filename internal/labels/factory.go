package labels

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/valyala/fasttemplate"

	"globe-overlay/internal/common"
	"globe-overlay/internal/poitile"
)

const fontCacheSize = 256

// Config controls how records are styled
type Config struct {
	Defaults Style

	// ServerFirstStyle lets per-feature style fields override Defaults
	ServerFirstStyle bool

	// IconTemplate builds the icon image from the feature's icon id, e.g.
	// "icons/{icon}.png". Empty keeps Defaults.Icon.Image.
	IconTemplate string
}

type fontKey struct {
	size   float64
	family string
	bold   bool
	italic bool
}

// Factory turns decoded features into label records
type Factory struct {
	cfg   Config
	icons *fasttemplate.Template
	fonts *lru.Cache[fontKey, string]
}

// NewFactory creates a label factory
func NewFactory(cfg Config) (*Factory, error) {
	fonts, err := lru.New[fontKey, string](fontCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create font cache: %w", err)
	}

	f := &Factory{cfg: cfg, fonts: fonts}
	if cfg.IconTemplate != "" {
		tpl, err := fasttemplate.NewTemplate(cfg.IconTemplate, "{", "}")
		if err != nil {
			return nil, fmt.Errorf("invalid icon template %q: %w", cfg.IconTemplate, err)
		}
		f.icons = tpl
	}
	return f, nil
}

// Build creates the record for one feature. Features that are not single
// points yield ok == false.
func (f *Factory) Build(poi *poitile.Poi, stringTable []string, tile common.TileCoord, dataset string, kind common.DatasetKind, now time.Time) (*Record, bool) {
	if !poi.IsPoint() {
		return nil, false
	}

	style := f.cfg.Defaults
	if f.cfg.ServerFirstStyle {
		style = style.Merge(OverrideFromPoi(poi, stringTable))
	}
	style.Icon.Image = f.iconImage(poi.Style.IconID)

	if kind == common.DatasetRoadLabel {
		style.Label.Horizontal = HorizontalCenter
		style.Label.Vertical = VerticalCenter
		style.Icon.Horizontal = HorizontalCenter
		style.Icon.Vertical = VerticalCenter
	}

	style.Label.Font = f.font(style.Label)

	return &Record{
		ID:              poi.ID,
		Dataset:         dataset,
		Kind:            kind,
		Tile:            tile,
		ClusterKey:      tile.Parent(),
		Text:            poi.Name,
		Position:        poi.Positions[0],
		HeightReference: poi.HeightReference,
		Priority:        poi.Priority,
		Style:           style,
		RefreshedAt:     now,
	}, true
}

func (f *Factory) iconImage(iconID string) string {
	if iconID == "" || f.icons == nil {
		return f.cfg.Defaults.Icon.Image
	}
	return f.icons.ExecuteString(map[string]interface{}{"icon": iconID})
}

// font composes a CSS font shorthand such as "italic bold 14px Noto Sans"
func (f *Factory) font(ls LabelStyle) string {
	key := fontKey{size: ls.FontSize, family: ls.FontFamily, bold: ls.Bold, italic: ls.Italic}
	if font, ok := f.fonts.Get(key); ok {
		return font
	}

	var b strings.Builder
	if ls.Italic {
		b.WriteString("italic ")
	}
	if ls.Bold {
		b.WriteString("bold ")
	}
	b.WriteString(strconv.FormatFloat(ls.FontSize, 'f', -1, 64))
	b.WriteString("px ")
	b.WriteString(ls.FontFamily)

	font := b.String()
	f.fonts.Add(key, font)
	return font
}
