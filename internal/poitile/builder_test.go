package poitile

import (
	"bytes"
	"compress/flate"
	"math"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

// wirePoi is a test-side description of one PoiWire message
type wirePoi struct {
	id          uint64
	name        string
	coords      []float64
	iterate     uint64 // v0 only, field 11 varint
	background  string // v1+, field 11 string
	heightRef   uint64 // v1+
	priority    uint64 // v2
	interlace   []uint64
	fontIndex   *uint64
	fontSize    uint64
	fontStyle   uint64 // v2
	shiningSize float32
	iconID      string
	geometry    uint64
}

func appendPoi(b []byte, p wirePoi) []byte {
	var msg []byte
	msg = protowire.AppendTag(msg, 1, protowire.VarintType)
	msg = protowire.AppendVarint(msg, p.id)
	msg = protowire.AppendTag(msg, 2, protowire.BytesType)
	msg = protowire.AppendString(msg, p.name)
	if p.geometry != 0 {
		msg = protowire.AppendTag(msg, 3, protowire.VarintType)
		msg = protowire.AppendVarint(msg, p.geometry)
	}
	if len(p.coords) > 0 {
		var packed []byte
		for _, c := range p.coords {
			packed = protowire.AppendFixed64(packed, math.Float64bits(c))
		}
		msg = protowire.AppendTag(msg, 4, protowire.BytesType)
		msg = protowire.AppendBytes(msg, packed)
	}
	if p.iconID != "" {
		msg = protowire.AppendTag(msg, 5, protowire.BytesType)
		msg = protowire.AppendString(msg, p.iconID)
	}
	if p.fontIndex != nil {
		msg = protowire.AppendTag(msg, 10, protowire.VarintType)
		msg = protowire.AppendVarint(msg, *p.fontIndex)
	}
	if p.iterate != 0 {
		msg = protowire.AppendTag(msg, 11, protowire.VarintType)
		msg = protowire.AppendVarint(msg, p.iterate)
	}
	if p.background != "" {
		msg = protowire.AppendTag(msg, 11, protowire.BytesType)
		msg = protowire.AppendString(msg, p.background)
	}
	if p.fontSize != 0 {
		msg = protowire.AppendTag(msg, 12, protowire.VarintType)
		msg = protowire.AppendVarint(msg, p.fontSize)
	}
	if p.heightRef != 0 {
		msg = protowire.AppendTag(msg, 16, protowire.VarintType)
		msg = protowire.AppendVarint(msg, p.heightRef)
	}
	if p.priority != 0 {
		msg = protowire.AppendTag(msg, 17, protowire.VarintType)
		msg = protowire.AppendVarint(msg, p.priority)
	}
	if len(p.interlace) > 0 {
		var packed []byte
		for _, v := range p.interlace {
			packed = protowire.AppendVarint(packed, v)
		}
		msg = protowire.AppendTag(msg, 18, protowire.BytesType)
		msg = protowire.AppendBytes(msg, packed)
	}
	if p.fontStyle != 0 {
		msg = protowire.AppendTag(msg, 19, protowire.VarintType)
		msg = protowire.AppendVarint(msg, p.fontStyle)
	}
	if p.shiningSize != 0 {
		msg = protowire.AppendTag(msg, 21, protowire.Fixed32Type)
		msg = protowire.AppendFixed32(msg, math.Float32bits(p.shiningSize))
	}

	b = protowire.AppendTag(b, 4, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func buildTile(version, tileKey uint64, table []string, pois ...wirePoi) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, version)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, tileKey)
	for _, s := range table {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, s)
	}
	for _, p := range pois {
		b = appendPoi(b, p)
	}
	return b
}

// frame deflates a payload and wraps it in the response envelope
func frame(t *testing.T, payload []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.Write(make([]byte, HeaderSize))
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		t.Fatalf("Failed to create deflate writer: %v", err)
	}
	if _, err := w.Write(payload); err != nil {
		t.Fatalf("Failed to deflate payload: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close deflate writer: %v", err)
	}
	buf.Write(make([]byte, TrailerSize))
	return buf.Bytes()
}

func uptr(v uint64) *uint64 { return &v }
