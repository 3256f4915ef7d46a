package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"globe-overlay/internal/common"
)

// DefaultUserAgent is sent when no user agent is configured
const DefaultUserAgent = "globe-overlay/1.0"

// maxBodySize caps a single tile response
const maxBodySize = 16 << 20

// Client downloads raw tile payloads
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a tile client with system proxy support
func NewClient(timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 16,
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		userAgent: userAgent,
	}
}

// Fetch downloads one tile. Result.Error is a *NetworkFetchError on
// transport failure; HTTP status handling is left to the caller.
func (c *Client) Fetch(ctx context.Context, ds *Dataset, coord common.TileCoord) (common.TileFetchResult, int) {
	url := ds.TileURL(coord)
	res := common.TileFetchResult{Coord: coord, Kind: ds.Kind, Dataset: ds.Name}
	start := time.Now()

	fail := func(status int, err error) (common.TileFetchResult, int) {
		res.Elapsed = time.Since(start)
		res.Error = &NetworkFetchError{Dataset: ds.Name, Tile: coord, URL: url, StatusCode: status, Err: err}
		return res, status
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fail(resp.StatusCode, fmt.Errorf("failed to read body: %w", err))
	}

	res.Data = data
	res.FetchedAt = time.Now()
	res.Elapsed = res.FetchedAt.Sub(start)
	return res, resp.StatusCode
}
