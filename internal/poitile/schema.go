package poitile

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"globe-overlay/internal/common"
)

// Envelope field numbers shared by every schema version
const (
	fieldVersion     protowire.Number = 1
	fieldTileKey     protowire.Number = 2
	fieldStringTable protowire.Number = 3
	fieldPois        protowire.Number = 4
)

type fieldKind int

const (
	kindVarint fieldKind = iota
	kindBool
	kindString
	kindFloat
	kindDoubleList
	kindIntList
)

func (k fieldKind) String() string {
	switch k {
	case kindVarint:
		return "varint"
	case kindBool:
		return "bool"
	case kindString:
		return "string"
	case kindFloat:
		return "float"
	case kindDoubleList:
		return "repeated double"
	case kindIntList:
		return "repeated int32"
	default:
		return "unknown"
	}
}

// accepts reports whether a wire type can carry a field of this kind.
// Repeated scalars may arrive packed or unpacked.
func (k fieldKind) accepts(typ protowire.Type) bool {
	switch k {
	case kindVarint, kindBool:
		return typ == protowire.VarintType
	case kindString:
		return typ == protowire.BytesType
	case kindFloat:
		return typ == protowire.Fixed32Type
	case kindDoubleList:
		return typ == protowire.BytesType || typ == protowire.Fixed64Type
	case kindIntList:
		return typ == protowire.BytesType || typ == protowire.VarintType
	}
	return false
}

type fieldSpec struct {
	name string
	kind fieldKind
}

// schema describes one PoiWire variant
type schema struct {
	name   string
	fields map[protowire.Number]fieldSpec

	// defaultHeight applies when the variant has no height reference field
	defaultHeight common.HeightReference
}

// v0 is the baseline layout with the legacy iterate field in slot 11
var schemaV0 = schema{
	name:          "v0",
	defaultHeight: common.HeightClampToGround,
	fields: map[protowire.Number]fieldSpec{
		1:  {"id", kindVarint},
		2:  {"name", kindString},
		3:  {"geometryType", kindVarint},
		4:  {"coordinates", kindDoubleList},
		5:  {"iconId", kindString},
		6:  {"displaySize", kindVarint},
		7:  {"outlineColor", kindString},
		8:  {"outlineWidth", kindFloat},
		9:  {"showBackground", kindBool},
		10: {"fontIndex", kindVarint},
		11: {"iterate", kindVarint},
		12: {"fontSize", kindVarint},
		13: {"fontColor", kindString},
		14: {"rotation", kindFloat},
		15: {"scale", kindFloat},
	},
}

// v1 reuses slot 11 for the background color and adds the height reference
var schemaV1 = schema{
	name:          "v1",
	defaultHeight: common.HeightNone,
	fields: withFields(schemaV0.fields, map[protowire.Number]fieldSpec{
		11: {"backgroundColor", kindString},
		16: {"heightReference", kindVarint},
	}),
}

// v2 adds priority, interlace and the richer font styling
var schemaV2 = schema{
	name:          "v2",
	defaultHeight: common.HeightNone,
	fields: withFields(schemaV1.fields, map[protowire.Number]fieldSpec{
		17: {"priority", kindVarint},
		18: {"interlace", kindIntList},
		19: {"fontStyle", kindVarint},
		20: {"shiningColor", kindString},
		21: {"shiningSize", kindFloat},
	}),
}

// schemas in decode order, most capable first
var schemas = []schema{schemaV2, schemaV1, schemaV0}

func withFields(base, extra map[protowire.Number]fieldSpec) map[protowire.Number]fieldSpec {
	out := make(map[protowire.Number]fieldSpec, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// decodeSchemas tries each schema in order and returns the first success
func decodeSchemas(data []byte, candidates []schema) (*Packet, error) {
	attempts := make([]error, 0, len(candidates))
	for _, s := range candidates {
		packet, err := s.decodePacket(data)
		if err == nil {
			packet.Schema = s.name
			return packet, nil
		}
		attempts = append(attempts, &AttemptError{Schema: s.name, Err: err})
	}
	return nil, &SchemaDecodeError{Attempts: attempts}
}

func (s schema) decodePacket(b []byte) (*Packet, error) {
	packet := &Packet{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, truncated("tag", n)
		}
		b = b[n:]

		switch num {
		case fieldVersion, fieldTileKey:
			if typ != protowire.VarintType {
				return nil, wireTypeError(num, "envelope varint", typ)
			}
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, truncated("envelope varint", n)
			}
			if num == fieldVersion {
				packet.Version = int64(v)
			} else {
				packet.TileKey = int64(v)
			}
			b = b[n:]
		case fieldStringTable:
			if typ != protowire.BytesType {
				return nil, wireTypeError(num, "stringTable", typ)
			}
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, truncated("stringTable", n)
			}
			packet.StringTable = append(packet.StringTable, v)
			b = b[n:]
		case fieldPois:
			if typ != protowire.BytesType {
				return nil, wireTypeError(num, "pois", typ)
			}
			msg, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, truncated("pois", n)
			}
			poi, err := s.decodePoi(msg)
			if err != nil {
				return nil, fmt.Errorf("poi %d: %w", len(packet.Pois), err)
			}
			packet.Pois = append(packet.Pois, poi)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, truncated("unknown field", n)
			}
			b = b[n:]
		}
	}
	return packet, nil
}

func (s schema) decodePoi(b []byte) (Poi, error) {
	poi := Poi{HeightReference: s.defaultHeight}
	poi.Style.FontIndex = -1

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return poi, truncated("tag", n)
		}
		b = b[n:]

		spec, known := s.fields[num]
		if !known {
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return poi, truncated("unknown field", n)
			}
			b = b[n:]
			continue
		}
		if !spec.kind.accepts(typ) {
			return poi, wireTypeError(num, spec.name+" "+spec.kind.String(), typ)
		}

		var err error
		switch spec.kind {
		case kindVarint, kindBool:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			if n >= 0 {
				assignVarint(&poi, spec.name, v)
			}
		case kindString:
			var v string
			v, n = protowire.ConsumeString(b)
			if n >= 0 {
				assignString(&poi, spec.name, v)
			}
		case kindFloat:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			if n >= 0 {
				assignFloat(&poi, spec.name, math.Float32frombits(v))
			}
		case kindDoubleList:
			var values []float64
			values, n, err = consumeDoubles(b, typ)
			if err == nil {
				poi.Positions = append(poi.Positions, toPositions(values)...)
			}
		case kindIntList:
			var values []int32
			values, n, err = consumeInts(b, typ)
			if err == nil {
				poi.Interlace = append(poi.Interlace, values...)
			}
		}
		if err != nil {
			return poi, fmt.Errorf("%s: %w", spec.name, err)
		}
		if n < 0 {
			return poi, truncated(spec.name, n)
		}
		b = b[n:]
	}
	return poi, nil
}

func assignVarint(p *Poi, name string, v uint64) {
	switch name {
	case "id":
		p.SourceID = int64(v)
	case "geometryType":
		p.Geometry = GeometryType(int32(v))
	case "displaySize":
		p.Style.DisplaySize = int32(v)
	case "showBackground":
		p.Style.ShowBackground = v != 0
	case "fontIndex":
		p.Style.FontIndex = int32(v)
	case "iterate":
		p.Iterate = int32(v)
	case "fontSize":
		p.Style.FontSize = int32(v)
	case "heightReference":
		p.HeightReference = common.HeightReference(int32(v))
	case "priority":
		p.Priority = int32(v)
	case "fontStyle":
		p.Style.FontStyle = int32(v)
	}
}

func assignString(p *Poi, name, v string) {
	switch name {
	case "name":
		p.Name = v
	case "iconId":
		p.Style.IconID = v
	case "outlineColor":
		p.Style.OutlineColor = v
	case "backgroundColor":
		p.Style.BackgroundColor = v
	case "fontColor":
		p.Style.FontColor = v
	case "shiningColor":
		p.Style.ShiningColor = v
	}
}

func assignFloat(p *Poi, name string, v float32) {
	switch name {
	case "outlineWidth":
		p.Style.OutlineWidth = v
	case "shiningSize":
		p.Style.ShiningSize = v
	case "rotation":
		p.Style.Rotation = v
	case "scale":
		p.Style.Scale = v
	}
}

func consumeDoubles(b []byte, typ protowire.Type) ([]float64, int, error) {
	if typ == protowire.Fixed64Type {
		v, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return nil, n, nil
		}
		return []float64{math.Float64frombits(v)}, n, nil
	}

	packed, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, n, nil
	}
	if len(packed)%8 != 0 {
		return nil, n, fmt.Errorf("%w: packed double length %d", ErrTruncated, len(packed))
	}
	values := make([]float64, 0, len(packed)/8)
	for len(packed) > 0 {
		v, m := protowire.ConsumeFixed64(packed)
		values = append(values, math.Float64frombits(v))
		packed = packed[m:]
	}
	return values, n, nil
}

func consumeInts(b []byte, typ protowire.Type) ([]int32, int, error) {
	if typ == protowire.VarintType {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, n, nil
		}
		return []int32{int32(v)}, n, nil
	}

	packed, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, n, nil
	}
	var values []int32
	for len(packed) > 0 {
		v, m := protowire.ConsumeVarint(packed)
		if m < 0 {
			return nil, n, truncated("packed int32", m)
		}
		values = append(values, int32(v))
		packed = packed[m:]
	}
	return values, n, nil
}

// toPositions groups flattened lon/lat/height triples. A trailing partial
// triple is dropped.
func toPositions(values []float64) []common.Position {
	positions := make([]common.Position, 0, len(values)/3)
	for i := 0; i+2 < len(values); i += 3 {
		positions = append(positions, common.Position{
			Lon:    values[i],
			Lat:    values[i+1],
			Height: values[i+2],
		})
	}
	return positions
}
