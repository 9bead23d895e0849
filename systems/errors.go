package systems

import (
	"errors"
	"fmt"
)

// ErrInvariant marks a broken simulation invariant. A run that hits one must
// stop; its state is no longer trustworthy.
var ErrInvariant = errors.New("systems: invariant violated")

// InvariantError locates an invariant violation.
type InvariantError struct {
	Iteration int
	Phase     string
	Row, Col  int
	Reason    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("iteration %d, %s at (%d,%d): %s", e.Iteration, e.Phase, e.Row, e.Col, e.Reason)
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }

func (s *Simulator[P, V, F]) invariant(phase string, cell int, format string, args ...any) error {
	row, col := s.grid.Coords(cell)
	return &InvariantError{
		Iteration: s.iteration,
		Phase:     phase,
		Row:       row,
		Col:       col,
		Reason:    fmt.Sprintf(format, args...),
	}
}
