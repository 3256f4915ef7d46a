package common

import "fmt"

// DatasetKind identifies which wire format and label layout a dataset uses
type DatasetKind string

const (
	// DatasetPoint is the compressed protobuf point-of-interest dataset
	DatasetPoint DatasetKind = "point"

	// DatasetRoadLabel is the uncompressed JSON road label dataset
	DatasetRoadLabel DatasetKind = "road"
)

// ParseDatasetKind converts a config string to a DatasetKind
// Accepted values: "point", "road"
func ParseDatasetKind(kind string) (DatasetKind, error) {
	switch DatasetKind(kind) {
	case DatasetPoint, DatasetRoadLabel:
		return DatasetKind(kind), nil
	default:
		return "", fmt.Errorf("invalid dataset kind: %s (must be 'point' or 'road')", kind)
	}
}

// String returns the string representation of the dataset kind
func (k DatasetKind) String() string {
	return string(k)
}
