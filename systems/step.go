package systems

import (
	"log/slog"

	"github.com/pthm-cable/cellflow/numeric"
)

// StepStats summarizes one iteration.
type StepStats struct {
	Iteration   int     `csv:"iteration" json:"iteration"`
	Chains      int     `csv:"chains" json:"chains"`
	Moved       int     `csv:"moved" json:"moved"`
	Rotated     int     `csv:"rotated" json:"rotated"`
	FlowRounds  int     `csv:"flow_rounds" json:"flow_rounds"`
	TotalDeltaP float64 `csv:"total_delta_p" json:"total_delta_p"`
	Occupied    int     `csv:"occupied" json:"occupied"`
}

// Snapshot reports whether the step should emit a grid snapshot: true when
// at least one movement chain started.
func (s StepStats) Snapshot() bool { return s.Chains > 0 }

// LogValue implements slog.LogValuer.
func (s StepStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("iteration", s.Iteration),
		slog.Int("chains", s.Chains),
		slog.Int("moved", s.Moved),
		slog.Int("rotated", s.Rotated),
		slog.Int("flow_rounds", s.FlowRounds),
		slog.Float64("total_delta_p", s.TotalDeltaP),
		slog.Int("occupied", s.Occupied),
	)
}

// Step runs one iteration: gravity, pressure diffusion, flow saturation,
// velocity relaxation and movement resolution, strictly in that order.
// obs may be nil. An invariant violation aborts the step and is returned as
// an *InvariantError.
func (s *Simulator[P, V, F]) Step(src *numeric.Source, obs PhaseObserver) (StepStats, error) {
	if obs == nil {
		obs = nopObserver{}
	}
	s.grid.ComputeOpenNeighbors()

	stats := StepStats{Iteration: s.iteration}
	var zero P
	s.totalDeltaP = zero

	obs.StartPhase(PhaseGravity)
	s.applyGravity()

	obs.StartPhase(PhaseDiffusion)
	s.diffusePressure()

	obs.StartPhase(PhaseSaturation)
	rounds, err := s.saturateFlow()
	stats.FlowRounds = rounds
	if err != nil {
		return stats, err
	}

	obs.StartPhase(PhaseRelaxation)
	if err := s.relaxVelocity(); err != nil {
		return stats, err
	}

	obs.StartPhase(PhaseMovement)
	mv, err := s.resolveMovement(src)
	stats.Chains = mv.chains
	stats.Moved = mv.moved
	stats.Rotated = mv.rotated
	if err != nil {
		return stats, err
	}

	stats.TotalDeltaP = s.totalDeltaP.Float64()
	stats.Occupied = s.grid.OccupiedCount()
	s.iteration++
	return stats, nil
}
