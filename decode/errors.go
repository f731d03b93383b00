package decode

import (
	"errors"
	"fmt"

	"github.com/TFMV/bqdecode/wire"
)

var (
	// ErrStructural matches every *StructuralError.
	ErrStructural = errors.New("structural error")
	// ErrRowRange is reported when a page would be written outside the table.
	ErrRowRange = errors.New("rows outside the allocated table")
)

// StructuralError reports a location that must hold an array or an object
// but does not. It aborts the whole decode.
type StructuralError struct {
	// Field is the dotted field path, or "rows" for the page envelope.
	Field string
	// Row is the absolute table row being written, -1 if unknown.
	Row  int
	Want string
	Got  string
}

func (e *StructuralError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("decode: %s: expected %s, got %s", e.Field, e.Want, e.Got)
	}
	return fmt.Sprintf("decode: %s (row %d): expected %s, got %s", e.Field, e.Row, e.Want, e.Got)
}

func (e *StructuralError) Is(target error) bool { return target == ErrStructural }

func structural(path, want string, got wire.Node) *StructuralError {
	return &StructuralError{Field: path, Row: -1, Want: want, Got: wire.Kind(got)}
}

// SourceError reports a page that could not be acquired or parsed.
type SourceError struct {
	Index int
	Name  string
	Err   error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("decode: source %d (%s): %v", e.Index, e.Name, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
