package cache

import (
	"testing"
	"time"

	"globe-overlay/internal/common"
	"globe-overlay/internal/labels"
)

func tileKey(i int) TileKey {
	return TileKey{Coord: common.TileCoord{X: i, Y: i % 7, Zoom: 12}, Kind: common.DatasetPoint}
}

func TestTileCacheBatchEviction(t *testing.T) {
	c := NewTileCache(nil)

	for i := 0; i < 1000; i++ {
		key := tileKey(i)
		c.Put(&TileRecord{Coord: key.Coord, Kind: key.Kind, FetchedAt: time.Now()})
	}

	if c.Len() > 999 {
		t.Errorf("Expected at most 999 entries, got %d", c.Len())
	}
	for i := 0; i < 500; i++ {
		if _, ok := c.Get(tileKey(i)); ok {
			t.Fatalf("Expected early key %d to be evicted", i)
		}
	}
	for i := 501; i < 1000; i++ {
		if _, ok := c.Get(tileKey(i)); !ok {
			t.Fatalf("Expected recent key %d to be retained", i)
		}
	}
}

func TestTileCacheReplaceMovesToNewest(t *testing.T) {
	c := NewTileCache(&Config{TileLimit: 3, TileTrim: 2, LabelLimit: 10, LabelTrim: 5})

	for i := 0; i < 3; i++ {
		key := tileKey(i)
		c.Put(&TileRecord{Coord: key.Coord, Kind: key.Kind})
	}
	// re-insert the oldest key, then overflow
	first := tileKey(0)
	c.Put(&TileRecord{Coord: first.Coord, Kind: first.Kind, Dataset: "again"})
	if c.Len() != 3 {
		t.Fatalf("Expected replace not to grow the cache, got %d", c.Len())
	}

	next := tileKey(3)
	c.Put(&TileRecord{Coord: next.Coord, Kind: next.Kind})

	if _, ok := c.Get(tileKey(1)); ok {
		t.Error("Expected key 1 to be trimmed")
	}
	if _, ok := c.Get(tileKey(2)); ok {
		t.Error("Expected key 2 to be trimmed")
	}
	rec, ok := c.Get(first)
	if !ok || rec.Dataset != "again" {
		t.Errorf("Expected replaced key 0 to survive with new contents, got %+v (%v)", rec, ok)
	}
}

func TestTileCacheNegativeRecord(t *testing.T) {
	rec := &TileRecord{Coord: common.TileCoord{X: 1}, Kind: common.DatasetRoadLabel}
	if !rec.Negative() {
		t.Error("Expected record without pois to be negative")
	}
}

func TestLabelCacheEviction(t *testing.T) {
	c := NewLabelCache(nil)

	for i := 0; i < 1001; i++ {
		c.Put(&labels.Record{Dataset: "poi", ID: string(rune('a'+i%26)) + time.Duration(i).String()})
	}
	if c.Len() != 751 {
		t.Errorf("Expected 751 records after one trim, got %d", c.Len())
	}
}

func TestLabelCacheReplace(t *testing.T) {
	c := NewLabelCache(nil)
	c.Put(&labels.Record{Dataset: "poi", ID: "1", Text: "old"})
	c.Put(&labels.Record{Dataset: "poi", ID: "1", Text: "new"})
	c.Put(&labels.Record{Dataset: "roads", ID: "1", Text: "road"})

	if c.Len() != 2 {
		t.Errorf("Expected 2 records, got %d", c.Len())
	}
	rec, ok := c.Get(labels.Key{Dataset: "poi", ID: "1"})
	if !ok || rec.Text != "new" {
		t.Errorf("Expected most recent record to win, got %+v", rec)
	}
}
