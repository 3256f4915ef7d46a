package fetch

import (
	"errors"
	"fmt"

	"globe-overlay/internal/common"
)

// ErrThrottled marks a response the server refused for rate limiting
var ErrThrottled = errors.New("throttled")

// NetworkFetchError is a transport failure or unusable HTTP status.
// No cache entry is written; the tile is retried the next time it is tracked.
type NetworkFetchError struct {
	Dataset    string
	Tile       common.TileCoord
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s tile %s: HTTP %d: %v", e.Dataset, e.Tile, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s tile %s: %v", e.Dataset, e.Tile, e.Err)
}

func (e *NetworkFetchError) Unwrap() error {
	return e.Err
}
