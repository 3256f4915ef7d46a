package poitile

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrTruncated marks a payload that ends inside a field
	ErrTruncated = errors.New("truncated payload")

	// ErrWireType marks a field whose wire type does not match the schema
	ErrWireType = errors.New("wire type mismatch")
)

// AttemptError is the failure of decoding against one schema
type AttemptError struct {
	Schema string
	Err    error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("schema %s: %v", e.Schema, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// SchemaDecodeError is returned when no schema accepts a payload.
// It carries every attempt, most capable schema first.
type SchemaDecodeError struct {
	Attempts []error
}

func (e *SchemaDecodeError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, err := range e.Attempts {
		parts[i] = err.Error()
	}
	return "no schema accepted tile payload: " + strings.Join(parts, "; ")
}

func (e *SchemaDecodeError) Unwrap() []error {
	return e.Attempts
}

func truncated(what string, n int) error {
	return fmt.Errorf("%w: %s: %v", ErrTruncated, what, protowire.ParseError(n))
}

func wireTypeError(num protowire.Number, want string, got protowire.Type) error {
	return fmt.Errorf("%w: field %d expects %s, got wire type %d", ErrWireType, num, want, got)
}
