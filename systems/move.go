package systems

import (
	"github.com/pthm-cable/cellflow/field"
	"github.com/pthm-cable/cellflow/numeric"
)

// moveFrame is one cell of a movement chain on the explicit stack.
type moveFrame struct {
	cell  int
	dest  int
	first bool
}

// movementStats counts what one movement phase did.
type movementStats struct {
	chains  int
	moved   int
	rotated int
}

// resolveMovement visits every open cell not yet closed this phase. A cell
// whose propensity beats a random draw starts a movement chain; any other
// cell propagates a forced stop.
func (s *Simulator[P, V, F]) resolveMovement(src *numeric.Source) (movementStats, error) {
	var st movementStats
	s.ut += 2
	sp := s.grid.Species()
	lu := s.grid.LastUse()

	for i := range sp {
		if sp[i] == field.Wall || lu[i] == s.ut {
			continue
		}
		if s.moveProb(i).Cmp(numeric.Random01[P](src)) > 0 {
			st.chains++
			ok, err := s.propagateMove(i, src, &st)
			if err != nil {
				return st, err
			}
			if ok {
				st.moved++
			}
		} else {
			s.propagateStop(i, true)
		}
	}
	return st, nil
}

// moveProb sums the non-negative capacities toward open cells not closed in
// this phase.
func (s *Simulator[P, V, F]) moveProb(i int) P {
	sp := s.grid.Species()
	lu := s.grid.LastUse()
	var sum P
	var zero V
	for _, d := range field.Directions {
		n := s.grid.Neighbor(i, d)
		if sp[n] == field.Wall || lu[n] == s.ut {
			continue
		}
		v := s.velocity.Get(i, d)
		if v.Cmp(zero) < 0 {
			continue
		}
		sum = sum.Add(numeric.Convert[P](v))
	}
	return sum
}

// drawDestination picks the next cell of a chain from cell i, weighting each
// candidate direction by its capacity. It returns -1 when no candidate
// remains.
func (s *Simulator[P, V, F]) drawDestination(i int, src *numeric.Source) (int, error) {
	sp := s.grid.Species()
	lu := s.grid.LastUse()
	var (
		cum  [field.NumDirs]P
		sum  P
		zero V
	)
	for _, d := range field.Directions {
		n := s.grid.Neighbor(i, d)
		if sp[n] != field.Wall && lu[n] != s.ut {
			if v := s.velocity.Get(i, d); v.Cmp(zero) >= 0 {
				sum = sum.Add(numeric.Convert[P](v))
			}
		}
		cum[d] = sum
	}
	if numeric.IsZero(sum) {
		return -1, nil
	}

	scaled := sum.Mul(numeric.Random01[P](src))
	k := 0
	for k < field.NumDirs && cum[k].Cmp(scaled) <= 0 {
		k++
	}
	if k == field.NumDirs {
		return -1, s.invariant(PhaseMovement, i, "draw %s beyond cumulative capacity %s", scaled, sum)
	}

	d := field.Dir(k)
	n := s.grid.Neighbor(i, d)
	if s.velocity.Get(i, d).Cmp(zero) <= 0 || sp[n] == field.Wall || lu[n] >= s.ut {
		return -1, s.invariant(PhaseMovement, i, "drew unusable edge %s", d)
	}
	return n, nil
}

// propagateMove resolves the chain that starts at start. The start carries
// tick ut-1 while the chain is open and every chained cell carries ut, so a
// chain can only succeed by returning to its start. Each cell keeps drawing
// among its remaining candidates until one succeeds or none is left.
func (s *Simulator[P, V, F]) propagateMove(start int, src *numeric.Source, st *movementStats) (bool, error) {
	lu := s.grid.LastUse()
	lu[start] = s.ut - 1

	stack := append(s.moveStack[:0], moveFrame{cell: start, dest: -1, first: true})
	defer func() { s.moveStack = stack[:0] }()

	var (
		result  bool
		resumed bool
	)
	for len(stack) > 0 {
		top := len(stack) - 1
		f := stack[top]

		if !resumed || !result {
			resumed = false
			dest, err := s.drawDestination(f.cell, src)
			if err != nil {
				return false, err
			}
			if dest >= 0 {
				stack[top].dest = dest
				if lu[dest] != s.ut-1 {
					lu[dest] = s.ut
					stack = append(stack, moveFrame{cell: dest, dest: -1})
					continue
				}
				f.dest = dest
				result = true
			} else {
				result = false
			}
		}

		if err := s.finishMove(f, result, st); err != nil {
			return false, err
		}
		stack = stack[:top]
		resumed = true
	}
	return result, nil
}

// finishMove closes cell f.cell, stops neighbours that push into it and, on
// success, rotates the occupant along the chain edge. A chain edge that is
// not one of the four directions is an invariant error.
func (s *Simulator[P, V, F]) finishMove(f moveFrame, ok bool, st *movementStats) error {
	sp := s.grid.Species()
	lu := s.grid.LastUse()
	lu[f.cell] = s.ut

	var zero V
	for _, d := range field.Directions {
		n := s.grid.Neighbor(f.cell, d)
		if sp[n] != field.Wall && lu[n] < s.ut-1 && s.velocity.Get(f.cell, d).Cmp(zero) < 0 {
			s.propagateStop(n, false)
		}
	}
	if ok && !f.first {
		if _, err := s.grid.DirTo(f.cell, f.dest); err != nil {
			return s.invariant(PhaseMovement, f.cell, "chain edge to cell %d: %v", f.dest, err)
		}
		s.rotate(f.cell, f.dest)
		st.rotated++
	}
	return nil
}

// propagateStop closes cell i unless it still has positive capacity toward a
// cell outside this phase's closed set; forced stops close unconditionally.
// Closing spreads to open neighbours whose edge from the closed cell is not
// positive.
func (s *Simulator[P, V, F]) propagateStop(i int, force bool) {
	sp := s.grid.Species()
	lu := s.grid.LastUse()
	var zero V

	stack := append(s.stopStack[:0], i)
	forced := force
	defer func() { s.stopStack = stack[:0] }()

	for len(stack) > 0 {
		x := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if lu[x] == s.ut {
			continue
		}
		if !forced && !s.shouldStop(x) {
			continue
		}
		forced = false
		lu[x] = s.ut

		// Pushed in reverse so neighbours pop in direction order.
		for k := field.NumDirs - 1; k >= 0; k-- {
			d := field.Directions[k]
			n := s.grid.Neighbor(x, d)
			if sp[n] == field.Wall || lu[n] == s.ut || s.velocity.Get(x, d).Cmp(zero) > 0 {
				continue
			}
			stack = append(stack, n)
		}
	}
}

// shouldStop reports whether cell x has no positive capacity toward an open
// cell still outside this phase.
func (s *Simulator[P, V, F]) shouldStop(x int) bool {
	sp := s.grid.Species()
	lu := s.grid.LastUse()
	var zero V
	for _, d := range field.Directions {
		n := s.grid.Neighbor(x, d)
		if sp[n] != field.Wall && lu[n] < s.ut-1 && s.velocity.Get(x, d).Cmp(zero) > 0 {
			return false
		}
	}
	return true
}
