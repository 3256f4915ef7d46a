package poitile

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"globe-overlay/internal/common"
)

// roadLabelWire is one element of the road label JSON array.
// X and Y are longitude and latitude in degrees.
type roadLabelWire struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Height float64 `json:"h,omitempty"`
	Name   string  `json:"name"`
}

// DecodeRoad parses a road label tile. An empty body or an empty array
// yields no labels and no error.
func DecodeRoad(data []byte) ([]Poi, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var wire []roadLabelWire
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse road labels: %w", err)
	}

	pois := make([]Poi, 0, len(wire))
	for _, w := range wire {
		if w.Name == "" {
			continue
		}
		pois = append(pois, Poi{
			// Not unique for two labels anchored at the same point
			ID:              strconv.FormatFloat(w.X, 'f', -1, 64) + "_" + strconv.FormatFloat(w.Y, 'f', -1, 64),
			Name:            w.Name,
			Geometry:        GeometryPoint,
			Positions:       []common.Position{{Lon: w.X, Lat: w.Y, Height: w.Height}},
			HeightReference: common.HeightClampToGround,
			Style:           PoiStyle{FontIndex: -1},
		})
	}
	return pois, nil
}
