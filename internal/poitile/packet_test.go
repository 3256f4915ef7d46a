package poitile

import (
	"errors"
	"testing"

	"globe-overlay/internal/common"
)

func TestDecodeV2WithoutFallback(t *testing.T) {
	payload := buildTile(2, 77, []string{"Noto Sans", "Microsoft YaHei"}, wirePoi{
		id:          12,
		name:        "Central Station",
		coords:      []float64{116.39, 39.9, 10},
		heightRef:   2,
		priority:    3,
		interlace:   []uint64{1, 2, 3},
		fontIndex:   uptr(1),
		fontSize:    16,
		fontStyle:   FontStyleBold | FontStyleItalic,
		shiningSize: 1.5,
		iconID:      "rail",
		background:  "#112233",
	})

	packet, err := Decode(frame(t, payload))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if packet.Schema != "v2" {
		t.Errorf("Expected schema v2, got %s", packet.Schema)
	}
	if packet.TileKey != 77 || len(packet.StringTable) != 2 {
		t.Errorf("Unexpected envelope: key=%d table=%v", packet.TileKey, packet.StringTable)
	}
	if len(packet.Pois) != 1 {
		t.Fatalf("Expected 1 poi, got %d", len(packet.Pois))
	}

	poi := packet.Pois[0]
	if poi.ID != "12_77" {
		t.Errorf("Expected id 12_77, got %s", poi.ID)
	}
	if poi.Priority != 3 {
		t.Errorf("Expected priority 3, got %d", poi.Priority)
	}
	if len(poi.Interlace) != 3 {
		t.Errorf("Expected 3 interlace values, got %v", poi.Interlace)
	}
	if poi.HeightReference != common.HeightRelativeToGround {
		t.Errorf("Expected relative height reference, got %d", poi.HeightReference)
	}
	if poi.Style.FontIndex != 1 || poi.Style.FontSize != 16 || poi.Style.FontStyle != 3 {
		t.Errorf("Unexpected font style: %+v", poi.Style)
	}
	if poi.Style.ShiningSize != 1.5 || poi.Style.BackgroundColor != "#112233" {
		t.Errorf("Unexpected shine/background: %+v", poi.Style)
	}
	if !poi.IsPoint() || poi.Positions[0].Lat != 39.9 {
		t.Errorf("Unexpected positions: %+v", poi.Positions)
	}
}

func TestDecodeV0ViaFallback(t *testing.T) {
	payload := buildTile(0, 5, nil,
		wirePoi{id: 1, name: "Old Mill", coords: []float64{1, 2, 0}, iterate: 4},
		wirePoi{id: 2, name: "Bridge", coords: []float64{3, 4, 0}, iterate: 1},
	)

	packet, err := Decode(frame(t, payload))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if packet.Schema != "v0" {
		t.Errorf("Expected schema v0, got %s", packet.Schema)
	}
	if len(packet.Pois) != 2 {
		t.Fatalf("Expected 2 pois, got %d", len(packet.Pois))
	}
	if packet.Pois[0].Iterate != 4 {
		t.Errorf("Expected iterate 4, got %d", packet.Pois[0].Iterate)
	}
	if packet.Pois[0].Priority != 0 {
		t.Errorf("Expected default priority 0, got %d", packet.Pois[0].Priority)
	}
	if packet.Pois[0].HeightReference != common.HeightClampToGround {
		t.Errorf("Expected clamp-to-ground for v0, got %d", packet.Pois[0].HeightReference)
	}
	if packet.Pois[0].Style.FontIndex != -1 {
		t.Errorf("Expected absent font index, got %d", packet.Pois[0].Style.FontIndex)
	}
}

func TestDecodeV1PayloadReadsAsV2(t *testing.T) {
	payload := buildTile(1, 9, nil, wirePoi{id: 3, name: "Park", coords: []float64{0, 0, 0}, heightRef: 1})

	packet, err := Decode(frame(t, payload))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if packet.Schema != "v2" {
		t.Errorf("Expected v1 payload to be accepted by v2, got %s", packet.Schema)
	}
}

func TestDecodeNoSchemaMatches(t *testing.T) {
	// pois field sent as a varint: wrong wire type for every schema
	payload := []byte{0x20, 0x05, 0x08, 0x01}

	_, err := Decode(frame(t, payload))
	if err == nil {
		t.Fatal("Expected decode error")
	}

	var decodeErr *SchemaDecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("Expected SchemaDecodeError, got %T: %v", err, err)
	}
	if len(decodeErr.Attempts) != 3 {
		t.Errorf("Expected 3 attempts, got %d", len(decodeErr.Attempts))
	}
	if !errors.Is(err, ErrWireType) {
		t.Errorf("Expected ErrWireType in chain, got %v", err)
	}
}

func TestDecodeTruncatedPayload(t *testing.T) {
	payload := buildTile(2, 1, nil, wirePoi{id: 1, name: "X", coords: []float64{1, 2, 3}})
	_, err := Decode(frame(t, payload[:len(payload)-3]))
	if !errors.Is(err, ErrTruncated) {
		t.Errorf("Expected ErrTruncated, got %v", err)
	}
}

func TestDecodeShortPayloadIsEmpty(t *testing.T) {
	for _, size := range []int{0, 1, MinPayloadSize} {
		packet, err := Decode(make([]byte, size))
		if err != nil {
			t.Errorf("Size %d: expected no error, got %v", size, err)
			continue
		}
		if !packet.Empty() {
			t.Errorf("Size %d: expected empty packet", size)
		}
	}
}

func TestDecodeLineGeometryIsNotPoint(t *testing.T) {
	payload := buildTile(2, 1, nil, wirePoi{id: 1, name: "Trail", coords: []float64{1, 2, 0, 3, 4, 0}, geometry: uint64(GeometryLine)})
	packet, err := Decode(frame(t, payload))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if packet.Pois[0].IsPoint() {
		t.Error("Expected line geometry not to be a point")
	}
	if len(packet.Pois[0].Positions) != 2 {
		t.Errorf("Expected 2 positions, got %d", len(packet.Pois[0].Positions))
	}
}
