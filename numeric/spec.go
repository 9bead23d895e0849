package numeric

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadSpec is returned for a type string outside the representation grammar.
var ErrBadSpec = errors.New("numeric: malformed type")

// Kind enumerates the representation families.
type Kind uint8

const (
	KindFloat Kind = iota + 1
	KindDouble
	KindFixed
	KindFastFixed
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "FLOAT"
	case KindDouble:
		return "DOUBLE"
	case KindFixed:
		return "FIXED"
	case KindFastFixed:
		return "FAST_FIXED"
	}
	return "UNKNOWN"
}

// Spec identifies a representation: its kind and, for fixed kinds, the
// declared width and fraction.
type Spec struct {
	Kind     Kind
	Width    uint
	Fraction uint
}

// String renders the type in the grammar ParseSpec accepts.
func (s Spec) String() string {
	switch s.Kind {
	case KindFixed, KindFastFixed:
		return fmt.Sprintf("%s(%d,%d)", s.Kind, s.Width, s.Fraction)
	}
	return s.Kind.String()
}

// MarshalText implements encoding.TextMarshaler.
func (s Spec) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Spec) UnmarshalText(b []byte) error {
	parsed, err := ParseSpec(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSpec parses FLOAT, DOUBLE, FIXED(w,f) or FAST_FIXED(w,f).
func ParseSpec(s string) (Spec, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "FLOAT":
		return Spec{Kind: KindFloat}, nil
	case "DOUBLE":
		return Spec{Kind: KindDouble}, nil
	}

	var kind Kind
	var rest string
	switch {
	case strings.HasPrefix(s, "FAST_FIXED("):
		kind, rest = KindFastFixed, strings.TrimPrefix(s, "FAST_FIXED(")
	case strings.HasPrefix(s, "FIXED("):
		kind, rest = KindFixed, strings.TrimPrefix(s, "FIXED(")
	default:
		return Spec{}, fmt.Errorf("%w: %q", ErrBadSpec, s)
	}

	if !strings.HasSuffix(rest, ")") {
		return Spec{}, fmt.Errorf("%w: %q: missing ')'", ErrBadSpec, s)
	}
	args := strings.Split(strings.TrimSuffix(rest, ")"), ",")
	if len(args) != 2 {
		return Spec{}, fmt.Errorf("%w: %q: want two parameters", ErrBadSpec, s)
	}
	width, err := strconv.ParseUint(strings.TrimSpace(args[0]), 10, 8)
	if err != nil || width == 0 || width > 64 {
		return Spec{}, fmt.Errorf("%w: %q: bad width", ErrBadSpec, s)
	}
	frac, err := strconv.ParseUint(strings.TrimSpace(args[1]), 10, 8)
	if err != nil || frac > width {
		return Spec{}, fmt.Errorf("%w: %q: bad fraction", ErrBadSpec, s)
	}
	return Spec{Kind: kind, Width: uint(width), Fraction: uint(frac)}, nil
}

// MustParseSpec is like ParseSpec but panics on error.
func MustParseSpec(s string) Spec {
	spec, err := ParseSpec(s)
	if err != nil {
		panic(err)
	}
	return spec
}
