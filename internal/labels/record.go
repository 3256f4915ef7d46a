package labels

import (
	"time"

	"globe-overlay/internal/common"
)

// Key identifies a label across tiles
type Key struct {
	Dataset string
	ID      string
}

// Record is the renderer-agnostic description of one label
type Record struct {
	ID      string             `json:"id"`
	Dataset string             `json:"dataset"`
	Kind    common.DatasetKind `json:"kind"`
	Tile    common.TileCoord   `json:"tile"`

	// ClusterKey is the parent of Tile; sibling tiles share it
	ClusterKey common.TileCoord `json:"clusterKey"`

	Text            string                 `json:"text"`
	Position        common.Position        `json:"position"`
	HeightReference common.HeightReference `json:"heightReference"`
	Priority        int32                  `json:"priority"`
	Style           Style                  `json:"style"`

	RefreshedAt time.Time `json:"refreshedAt"`
}

// Key returns the label cache key
func (r *Record) Key() Key {
	return Key{Dataset: r.Dataset, ID: r.ID}
}
