package systems

import (
	"github.com/pthm-cable/cellflow/field"
	"github.com/pthm-cable/cellflow/numeric"
)

// saturateFlow resets the flow field and runs push rounds until a round in
// which no start pushed a positive amount. It returns the number of rounds.
//
// This is a greedy augmenting heuristic, not a max-flow solver: every round
// starts a depth-first push from each cell not yet finished in that round.
func (s *Simulator[P, V, F]) saturateFlow() (int, error) {
	s.flow.Reset()
	sp := s.grid.Species()
	lu := s.grid.LastUse()
	one := numeric.OfInt[P](1)
	var zero P

	rounds := 0
	for {
		if s.opts.MaxFlowRounds > 0 && rounds >= s.opts.MaxFlowRounds {
			return rounds, s.invariant(PhaseSaturation, 0, "no fixed point after %d rounds", rounds)
		}
		rounds++
		s.ut += 2
		pushed := false
		for i, c := range sp {
			if c == field.Wall || lu[i] == s.ut {
				continue
			}
			t, _, _ := s.propagateFlow(i, one)
			if t.Cmp(zero) > 0 {
				pushed = true
			}
		}
		if !pushed {
			return rounds, nil
		}
	}
}

// propagateFlow pushes at most lim out of cell i. Only positive amounts are
// pushed, so flow never goes negative. Cells on the active path
// carry tick ut-1; reaching one closes a cycle and the push succeeds back to
// that cell. It returns the amount pushed, whether the caller should still
// add it to its own edge, and the cell that closed the cycle (-1 if none).
func (s *Simulator[P, V, F]) propagateFlow(i int, lim P) (P, bool, int) {
	sp := s.grid.Species()
	lu := s.grid.LastUse()
	lu[i] = s.ut - 1

	var ret, zero P
	for _, d := range field.Directions {
		n := s.grid.Neighbor(i, d)
		if sp[n] == field.Wall || lu[n] >= s.ut {
			continue
		}
		capacity := numeric.Convert[F](s.velocity.Get(i, d))
		flow := s.flow.Ptr(i, d)
		if *flow == capacity {
			continue
		}
		vp := numeric.Min(lim, numeric.Convert[P](capacity.Sub(*flow)))
		// Nothing left to push on this edge, or the residual is outside P.
		if vp.Cmp(zero) <= 0 {
			continue
		}
		if lu[n] == s.ut-1 {
			*flow = (*flow).Add(numeric.Convert[F](vp))
			lu[n] = s.ut
			return vp, true, n
		}
		t, prop, end := s.propagateFlow(n, vp)
		ret = ret.Add(t)
		if prop {
			*flow = (*flow).Add(numeric.Convert[F](t))
			lu[i] = s.ut
			return t, end != i, end
		}
	}
	lu[i] = s.ut
	return ret, false, -1
}
