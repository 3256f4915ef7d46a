package poitile

import (
	"bytes"
	"compress/flate"
	"fmt"
	"io"
	"strconv"

	"globe-overlay/internal/common"
)

// Framing of point tile responses. The server wraps the compressed
// payload in an opaque header and trailer that are stripped unread.
const (
	HeaderSize  = 8
	TrailerSize = 4

	// MinPayloadSize is the largest response that still counts as "no data"
	MinPayloadSize = HeaderSize + TrailerSize

	// MaxInflatedSize caps the decompressed payload
	MaxInflatedSize = 32 << 20
)

// GeometryType of a decoded feature. Only points are rendered.
type GeometryType int32

const (
	GeometryPoint GeometryType = iota
	GeometryLine
	GeometryPolygon
)

// Packet is a decoded point tile
type Packet struct {
	Version     int64
	TileKey     int64
	StringTable []string
	Pois        []Poi

	// Schema is the name of the schema that decoded the payload ("v2", "v1", "v0")
	Schema string
}

// Empty reports whether the packet carries no features
func (p *Packet) Empty() bool {
	return p == nil || len(p.Pois) == 0
}

// Poi is a single decoded feature
type Poi struct {
	ID       string
	SourceID int64
	Name     string

	Geometry        GeometryType
	Positions       []common.Position
	HeightReference common.HeightReference

	// Priority orders collision resolution, lower wins. Zero when absent.
	Priority  int32
	Interlace []int32

	// Iterate is only carried by the oldest schema
	Iterate int32

	Style PoiStyle
}

// IsPoint reports whether the feature can be rendered as a label
func (p *Poi) IsPoint() bool {
	return p.Geometry == GeometryPoint && len(p.Positions) > 0
}

// PoiStyle holds the server supplied style attributes. Zero values mean
// "not supplied", except FontIndex which is -1 when absent.
type PoiStyle struct {
	IconID          string
	DisplaySize     int32
	OutlineColor    string
	OutlineWidth    float32
	ShowBackground  bool
	BackgroundColor string
	FontIndex       int32
	FontSize        int32
	FontColor       string
	FontStyle       int32
	ShiningColor    string
	ShiningSize     float32
	Rotation        float32
	Scale           float32
}

// Font style bits carried in PoiStyle.FontStyle
const (
	FontStyleBold   = 1 << 0
	FontStyleItalic = 1 << 1
)

// Decode parses a raw point tile response.
//
// Responses at or below MinPayloadSize are not an error: they decode to an
// empty packet so the caller can cache the negative result. Payloads that
// no schema accepts return a *SchemaDecodeError.
func Decode(data []byte) (*Packet, error) {
	if len(data) <= MinPayloadSize {
		return &Packet{}, nil
	}

	inflated, err := Inflate(Unframe(data))
	if err != nil {
		return nil, err
	}

	packet, err := decodeSchemas(inflated, schemas)
	if err != nil {
		return nil, err
	}

	tileKey := strconv.FormatInt(packet.TileKey, 10)
	for i := range packet.Pois {
		packet.Pois[i].ID = strconv.FormatInt(packet.Pois[i].SourceID, 10) + "_" + tileKey
	}

	return packet, nil
}

// Unframe strips the fixed header and trailer
func Unframe(data []byte) []byte {
	if len(data) <= MinPayloadSize {
		return nil
	}
	return data[HeaderSize : len(data)-TrailerSize]
}

// Inflate decompresses a raw DEFLATE stream (no zlib or gzip header)
func Inflate(data []byte) ([]byte, error) {
	reader := flate.NewReader(bytes.NewReader(data))
	defer reader.Close()

	result, err := io.ReadAll(io.LimitReader(reader, MaxInflatedSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to inflate tile payload: %w", err)
	}
	if len(result) > MaxInflatedSize {
		return nil, fmt.Errorf("inflated tile payload exceeds %d bytes", MaxInflatedSize)
	}

	return result, nil
}
