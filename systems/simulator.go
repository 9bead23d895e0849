// Package systems implements the per-iteration phases of the grid fluid
// simulation: gravity, pressure diffusion, flow saturation, velocity
// relaxation and movement resolution.
package systems

import (
	"fmt"

	"github.com/pthm-cable/cellflow/field"
	"github.com/pthm-cable/cellflow/numeric"
)

// Types names the numeric kinds a simulator was built with.
type Types struct {
	Pressure numeric.Spec `json:"pressure" yaml:"pressure"`
	Velocity numeric.Spec `json:"velocity" yaml:"velocity"`
	Flow     numeric.Spec `json:"flow" yaml:"flow"`
}

func (t Types) String() string {
	return fmt.Sprintf("P=%s V=%s F=%s", t.Pressure, t.Velocity, t.Flow)
}

// PhaseObserver is told when each phase of a step begins.
// telemetry.PerfCollector satisfies it.
type PhaseObserver interface {
	StartPhase(id string)
}

type nopObserver struct{}

func (nopObserver) StartPhase(string) {}

// Options tunes a simulator beyond its grid and densities.
type Options struct {
	// MaxFlowRounds caps saturation rounds per step. Zero means no cap.
	// Exceeding the cap is an invariant violation.
	MaxFlowRounds int
}

// Runner is the kind-erased view of a Simulator used by the engine and the
// registry.
type Runner interface {
	Step(src *numeric.Source, obs PhaseObserver) (StepStats, error)
	// Ready reports whether a run can do anything: the empty-species
	// density and the pressure kind's infinity must both be non-zero.
	Ready() bool
	Grid() *field.Grid
	Types() Types
	Iteration() int
	Pressure(i int) float64
	Velocity(i int, d field.Dir) float64
	State() State
	Restore(State) error
	Release()
}

// Simulator holds the typed fields of one run. P is the pressure and density
// kind, V the velocity capacity kind and F the flow kind.
type Simulator[P numeric.Number[P], V numeric.Number[V], F numeric.Number[F]] struct {
	grid *field.Grid
	opts Options

	rho      [256]P
	p        field.Scalar[P]
	oldP     field.Scalar[P]
	velocity field.Vector[V]
	flow     field.Vector[F]

	inf         P
	ut          int
	iteration   int
	totalDeltaP P

	moveStack []moveFrame
	stopStack []int
}

// New builds a simulator over grid. Densities are converted to P once here.
// The grid must already hold its field map.
func New[P numeric.Number[P], V numeric.Number[V], F numeric.Number[F]](grid *field.Grid, rho field.Densities, opts Options) *Simulator[P, V, F] {
	s := &Simulator[P, V, F]{
		grid:     grid,
		opts:     opts,
		p:        field.NewScalar[P](grid),
		oldP:     field.NewScalar[P](grid),
		velocity: field.NewVector[V](grid),
		flow:     field.NewVector[F](grid),
		inf:      numeric.Infinity[P](),
	}
	for i, d := range rho {
		s.rho[i] = numeric.Of[P](d)
	}
	return s
}

// Ready reports whether stepping can change anything.
func (s *Simulator[P, V, F]) Ready() bool {
	var zero P
	return s.rho[field.Empty] != zero && s.inf != zero
}

// Grid returns the underlying grid.
func (s *Simulator[P, V, F]) Grid() *field.Grid { return s.grid }

// Types reports the numeric kinds of this simulator.
func (s *Simulator[P, V, F]) Types() Types {
	var (
		p P
		v V
		f F
	)
	return Types{Pressure: p.Spec(), Velocity: v.Spec(), Flow: f.Spec()}
}

// Iteration returns the number of completed steps.
func (s *Simulator[P, V, F]) Iteration() int { return s.iteration }

// Pressure returns the pressure of cell i as float64.
func (s *Simulator[P, V, F]) Pressure(i int) float64 { return s.p.Get(i).Float64() }

// Velocity returns the capacity of edge (i, d) as float64.
func (s *Simulator[P, V, F]) Velocity(i int, d field.Dir) float64 {
	return s.velocity.Get(i, d).Float64()
}

// SetVelocity writes the capacity of edge (i, d).
func (s *Simulator[P, V, F]) SetVelocity(i int, d field.Dir, v V) { s.velocity.Set(i, d, v) }

// SetPressure writes the pressure of cell i.
func (s *Simulator[P, V, F]) SetPressure(i int, p P) { s.p.Set(i, p) }

// Flow returns the realized flow on edge (i, d) from the last saturation.
func (s *Simulator[P, V, F]) Flow(i int, d field.Dir) F { return s.flow.Get(i, d) }

// Release drops the grid storage and typed fields. Safe to call more than
// once.
func (s *Simulator[P, V, F]) Release() {
	if s == nil {
		return
	}
	s.grid.Release()
	s.p = field.Scalar[P]{}
	s.oldP = field.Scalar[P]{}
	s.velocity = field.Vector[V]{}
	s.flow = field.Vector[F]{}
	s.moveStack = nil
	s.stopStack = nil
}

// rotate exchanges the occupant state of cells a and b through a temporary:
// species, pressure and the full velocity vector.
func (s *Simulator[P, V, F]) rotate(a, b int) {
	sp := s.grid.Species()
	pv := s.p.Values()
	var tmp struct {
		species  byte
		pressure P
		velocity [field.NumDirs]V
	}
	swap := func(i int) {
		sp[i], tmp.species = tmp.species, sp[i]
		pv[i], tmp.pressure = tmp.pressure, pv[i]
		cell := s.velocity.Cell(i)
		*cell, tmp.velocity = tmp.velocity, *cell
	}
	swap(a)
	swap(b)
	swap(a)
}
