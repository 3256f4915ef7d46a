package fetch

import (
	"bytes"
	"compress/flate"
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"globe-overlay/internal/cache"
	"globe-overlay/internal/common"
	"globe-overlay/internal/poitile"
	"globe-overlay/internal/ratelimit"
)

// pointTile builds a framed single-feature point tile
func pointTile(t *testing.T, name string) []byte {
	t.Helper()

	var coords []byte
	for _, v := range []float64{10, 20, 0} {
		coords = protowire.AppendFixed64(coords, math.Float64bits(v))
	}
	var poi []byte
	poi = protowire.AppendTag(poi, 1, protowire.VarintType)
	poi = protowire.AppendVarint(poi, 7)
	poi = protowire.AppendTag(poi, 2, protowire.BytesType)
	poi = protowire.AppendString(poi, name)
	poi = protowire.AppendTag(poi, 4, protowire.BytesType)
	poi = protowire.AppendBytes(poi, coords)

	var env []byte
	env = protowire.AppendTag(env, 2, protowire.VarintType)
	env = protowire.AppendVarint(env, 42)
	env = protowire.AppendTag(env, 4, protowire.BytesType)
	env = protowire.AppendBytes(env, poi)

	return framed(t, env)
}

func framed(t *testing.T, payload []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.Write(make([]byte, poitile.HeaderSize))
	w, err := flate.NewWriter(&buf, flate.BestSpeed)
	if err != nil {
		t.Fatalf("Failed to create deflate writer: %v", err)
	}
	w.Write(payload)
	w.Close()
	buf.Write(make([]byte, poitile.TrailerSize))
	return buf.Bytes()
}

func rendered(x, y, z int) common.RenderedTile {
	return common.RenderedTile{
		Coord: common.TileCoord{X: x, Y: y, Zoom: z},
		Rect:  common.NewBound(0, 0, 1, 1),
	}
}

type collector struct {
	mu   sync.Mutex
	recs []*cache.TileRecord
}

func (c *collector) handle(rec *cache.TileRecord) {
	c.mu.Lock()
	c.recs = append(c.recs, rec)
	c.mu.Unlock()
}

func TestDatasetTileURL(t *testing.T) {
	ds := &Dataset{Name: "poi", URL: "https://{s}.example.com/t/{z}/{x}/{y}", Subdomains: []string{"a", "b", "c"}}
	if err := ds.Compile(); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	got := ds.TileURL(common.TileCoord{X: 4, Y: 1, Zoom: 9})
	want := "https://c.example.com/t/10/4/1"
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestDatasetCovers(t *testing.T) {
	ds := &Dataset{Bounds: common.NewBound(100, 20, 120, 40), MinZoom: 3, MaxZoom: 10}

	inside := common.RenderedTile{Coord: common.TileCoord{Zoom: 5}, Rect: common.NewBound(110, 30, 111, 31)}
	outside := common.RenderedTile{Coord: common.TileCoord{Zoom: 5}, Rect: common.NewBound(0, 0, 1, 1)}
	tooDeep := common.RenderedTile{Coord: common.TileCoord{Zoom: 11}, Rect: inside.Rect}

	if !ds.Covers(inside) {
		t.Error("Expected tile inside coverage to be served")
	}
	if ds.Covers(outside) {
		t.Error("Expected tile outside coverage to be skipped")
	}
	if ds.Covers(tooDeep) {
		t.Error("Expected tile beyond max zoom to be skipped")
	}
}

func TestRunFetchesDecodesAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if strings.HasPrefix(r.URL.Path, "/roads/") {
			w.Write([]byte(`[{"x":1.5,"y":2.5,"name":"Main St"}]`))
			return
		}
		w.Write(pointTile(t, "Cafe"))
	}))
	defer srv.Close()

	tiles := cache.NewTileCache(nil)
	s, err := NewScheduler([]*Dataset{
		{Name: "poi", Kind: common.DatasetPoint, URL: srv.URL + "/poi/{z}/{x}/{y}"},
		{Name: "roads", Kind: common.DatasetRoadLabel, URL: srv.URL + "/roads/{z}/{x}/{y}"},
	}, tiles, nil, Config{MaxConcurrent: 2})
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}

	var got collector
	if err := s.Run(context.Background(), []common.RenderedTile{rendered(1, 2, 3)}, got.handle); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(got.recs) != 2 || tiles.Len() != 2 {
		t.Fatalf("Expected 2 records delivered and cached, got %d and %d", len(got.recs), tiles.Len())
	}

	poi, ok := tiles.Get(cache.TileKey{Coord: common.TileCoord{X: 1, Y: 2, Zoom: 3}, Kind: common.DatasetPoint})
	if !ok || len(poi.Pois) != 1 || poi.Pois[0].ID != "7_42" {
		t.Errorf("Expected decoded point tile with id 7_42, got %+v", poi)
	}

	// Second run is served from cache
	var again collector
	s.Run(context.Background(), []common.RenderedTile{rendered(1, 2, 3)}, again.handle)
	if hits.Load() != 2 || len(again.recs) != 2 {
		t.Errorf("Expected cached run without requests, got %d requests and %d records", hits.Load(), len(again.recs))
	}
}

func TestRunNegativeEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("short"))
	}))
	defer srv.Close()

	tiles := cache.NewTileCache(nil)
	s, _ := NewScheduler([]*Dataset{{Name: "poi", Kind: common.DatasetPoint, URL: srv.URL + "/{z}/{x}/{y}"}}, tiles, nil, Config{})

	var got collector
	if err := s.Run(context.Background(), []common.RenderedTile{rendered(0, 0, 1)}, got.handle); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if tiles.Len() != 1 || !got.recs[0].Negative() {
		t.Errorf("Expected one negative cache entry, got %d entries", tiles.Len())
	}
}

func TestRunNetworkFailureLeavesNoEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tiles := cache.NewTileCache(nil)
	s, _ := NewScheduler([]*Dataset{{Name: "poi", Kind: common.DatasetPoint, URL: srv.URL + "/{z}/{x}/{y}"}}, tiles, nil, Config{})

	err := s.Run(context.Background(), []common.RenderedTile{rendered(0, 0, 1)}, func(*cache.TileRecord) {
		t.Error("Expected no record for a failed fetch")
	})

	var netErr *NetworkFetchError
	if !errors.As(err, &netErr) || netErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected NetworkFetchError with status 500, got %v", err)
	}
	if tiles.Len() != 0 {
		t.Errorf("Expected no cache entry, got %d", tiles.Len())
	}
}

func TestRunSchemaDecodeErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(framed(t, []byte{0x20, 0x05, 0x08, 0x01}))
	}))
	defer srv.Close()

	tiles := cache.NewTileCache(nil)
	s, _ := NewScheduler([]*Dataset{{Name: "poi", Kind: common.DatasetPoint, URL: srv.URL + "/{z}/{x}/{y}"}}, tiles, nil, Config{})

	err := s.Run(context.Background(), []common.RenderedTile{rendered(0, 0, 1)}, func(*cache.TileRecord) {})

	var decodeErr *poitile.SchemaDecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("Expected SchemaDecodeError, got %v", err)
	}
	if tiles.Len() != 0 {
		t.Errorf("Expected no cache entry, got %d", tiles.Len())
	}
}

func TestRunThrottledDatasetIsSkipped(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	limiter := ratelimit.NewHandler(nil)
	tiles := cache.NewTileCache(nil)
	s, _ := NewScheduler([]*Dataset{{Name: "poi", Kind: common.DatasetPoint, URL: srv.URL + "/{z}/{x}/{y}"}}, tiles, limiter, Config{})

	err := s.Run(context.Background(), []common.RenderedTile{rendered(0, 0, 1)}, func(*cache.TileRecord) {})
	if !errors.Is(err, ErrThrottled) {
		t.Errorf("Expected ErrThrottled, got %v", err)
	}

	if err := s.Run(context.Background(), []common.RenderedTile{rendered(1, 0, 1)}, func(*cache.TileRecord) {}); err != nil {
		t.Errorf("Expected throttled dataset to be skipped silently, got %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("Expected a single request while throttled, got %d", hits.Load())
	}
}
