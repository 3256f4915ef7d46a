package fetch

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/valyala/fasttemplate"

	"globe-overlay/internal/common"
)

// Dataset is one tiled label source
type Dataset struct {
	Name       string
	Kind       common.DatasetKind
	URL        string
	Subdomains []string

	// Bounds is the coverage rectangle in degrees; zero means everywhere
	Bounds  orb.Bound
	MinZoom int
	MaxZoom int

	tpl *fasttemplate.Template
}

// Compile parses the URL template. It must be called before TileURL.
func (d *Dataset) Compile() error {
	tpl, err := fasttemplate.NewTemplate(d.URL, "{", "}")
	if err != nil {
		return fmt.Errorf("invalid url template for dataset %s: %w", d.Name, err)
	}
	d.tpl = tpl
	return nil
}

// Covers reports whether the dataset serves the rendered tile
func (d *Dataset) Covers(tile common.RenderedTile) bool {
	z := tile.Coord.Zoom
	if z < d.MinZoom || (d.MaxZoom > 0 && z > d.MaxZoom) {
		return false
	}
	return tile.Intersects(d.Bounds)
}

// Subdomain picks the subdomain for a tile round-robin by (x+y) mod n
func (d *Dataset) Subdomain(c common.TileCoord) string {
	n := len(d.Subdomains)
	if n == 0 {
		return ""
	}
	i := (c.X + c.Y) % n
	if i < 0 {
		i += n
	}
	return d.Subdomains[i]
}

// TileURL expands the template. {z} is the renderer zoom plus one.
func (d *Dataset) TileURL(c common.TileCoord) string {
	return d.tpl.ExecuteString(map[string]any{
		"x": strconv.Itoa(c.X),
		"y": strconv.Itoa(c.Y),
		"z": strconv.Itoa(c.Zoom + 1),
		"s": d.Subdomain(c),
	})
}
