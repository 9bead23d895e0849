package field

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadSize is returned for a size string outside the S(rows,cols) grammar.
var ErrBadSize = errors.New("field: malformed grid size")

// Size describes the dimensions of a simulation grid.
type Size struct {
	Rows int
	Cols int
}

// Cells returns Rows*Cols.
func (s Size) Cells() int { return s.Rows * s.Cols }

// String renders the size as S(rows,cols).
func (s Size) String() string {
	return fmt.Sprintf("S(%d,%d)", s.Rows, s.Cols)
}

// MarshalText implements encoding.TextMarshaler.
func (s Size) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Size) UnmarshalText(b []byte) error {
	parsed, err := ParseSize(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSize parses S(rows,cols). Both dimensions must be at least 3 so a
// wall border can enclose an interior.
func ParseSize(s string) (Size, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "S(") || !strings.HasSuffix(s, ")") {
		return Size{}, fmt.Errorf("%w: %q", ErrBadSize, s)
	}
	args := strings.Split(s[2:len(s)-1], ",")
	if len(args) != 2 {
		return Size{}, fmt.Errorf("%w: %q: missing comma", ErrBadSize, s)
	}
	rows, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return Size{}, fmt.Errorf("%w: %q: rows: %v", ErrBadSize, s, err)
	}
	cols, err := strconv.Atoi(strings.TrimSpace(args[1]))
	if err != nil {
		return Size{}, fmt.Errorf("%w: %q: cols: %v", ErrBadSize, s, err)
	}
	if rows < 3 || cols < 3 {
		return Size{}, fmt.Errorf("%w: %q: dimensions below 3", ErrBadSize, s)
	}
	return Size{Rows: rows, Cols: cols}, nil
}
