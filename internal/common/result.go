package common

import "time"

// TileFetchResult is the outcome of fetching and decoding a single tile
type TileFetchResult struct {
	Coord   TileCoord
	Kind    DatasetKind
	Dataset string

	// Data is the raw response body
	Data []byte

	// Negative marks a structurally valid response without data
	Negative bool

	FetchedAt time.Time
	Elapsed   time.Duration

	// Error is set for transport or decode failures
	Error error
}
