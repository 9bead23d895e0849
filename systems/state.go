package systems

import (
	"fmt"

	"github.com/pthm-cable/cellflow/field"
	"github.com/pthm-cable/cellflow/numeric"
)

// State is the kind-erased state of a simulator between steps. Values pass
// through float64, which holds every supported kind exactly.
type State struct {
	Iteration int                      `json:"iteration"`
	Tick      int                      `json:"tick"`
	Rows      []string                 `json:"rows"`
	Pressure  []float64                `json:"pressure"`
	Velocity  [][field.NumDirs]float64 `json:"velocity"`
}

// State exports the current state.
func (s *Simulator[P, V, F]) State() State {
	n := s.grid.Size().Cells()
	st := State{
		Iteration: s.iteration,
		Tick:      s.ut,
		Rows:      s.grid.Rows(),
		Pressure:  make([]float64, n),
		Velocity:  make([][field.NumDirs]float64, n),
	}
	for i := 0; i < n; i++ {
		st.Pressure[i] = s.p.Get(i).Float64()
		for _, d := range field.Directions {
			st.Velocity[i][d] = s.velocity.Get(i, d).Float64()
		}
	}
	return st
}

// Restore replaces the simulator state. The state must match the grid size.
func (s *Simulator[P, V, F]) Restore(st State) error {
	n := s.grid.Size().Cells()
	if len(st.Pressure) != n || len(st.Velocity) != n {
		return fmt.Errorf("%w: state has %d cells, grid %s has %d", field.ErrBadMap, len(st.Pressure), s.grid.Size(), n)
	}
	if err := s.grid.Load(st.Rows); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		s.p.Set(i, numeric.Of[P](st.Pressure[i]))
		for _, d := range field.Directions {
			s.velocity.Set(i, d, numeric.Of[V](st.Velocity[i][d]))
		}
	}
	lu := s.grid.LastUse()
	for i := range lu {
		lu[i] = 0
	}
	s.iteration = st.Iteration
	s.ut = st.Tick
	return nil
}
