package poitile

import "testing"

func TestDecodeRoad(t *testing.T) {
	data := []byte(`[{"x":116.5,"y":39.25,"name":"Ring Road"},{"x":1,"y":2,"name":""}]`)

	pois, err := DecodeRoad(data)
	if err != nil {
		t.Fatalf("DecodeRoad failed: %v", err)
	}
	if len(pois) != 1 {
		t.Fatalf("Expected 1 labelled road, got %d", len(pois))
	}
	if pois[0].ID != "116.5_39.25" {
		t.Errorf("Expected id 116.5_39.25, got %s", pois[0].ID)
	}
	if pois[0].Positions[0].Lon != 116.5 {
		t.Errorf("Unexpected position: %+v", pois[0].Positions[0])
	}
}

func TestDecodeRoadEmpty(t *testing.T) {
	for _, body := range []string{"", "  ", "null", "[]"} {
		pois, err := DecodeRoad([]byte(body))
		if err != nil {
			t.Errorf("%q: unexpected error %v", body, err)
		}
		if len(pois) != 0 {
			t.Errorf("%q: expected no labels, got %d", body, len(pois))
		}
	}
}

func TestDecodeRoadInvalid(t *testing.T) {
	if _, err := DecodeRoad([]byte(`{"x":1}`)); err == nil {
		t.Error("Expected error for non-array body")
	}
}
