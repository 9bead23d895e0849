package systems

import (
	"github.com/pthm-cable/cellflow/field"
	"github.com/pthm-cable/cellflow/numeric"
)

// applyGravity adds the pressure kind's infinity to the downward capacity of
// every open cell that has an open cell below it.
func (s *Simulator[P, V, F]) applyGravity() {
	g := numeric.Convert[V](s.inf)
	sp := s.grid.Species()
	for i, c := range sp {
		if c == field.Wall || sp[s.grid.Neighbor(i, field.Down)] == field.Wall {
			continue
		}
		v := s.velocity.Ptr(i, field.Down)
		*v = (*v).Add(g)
	}
}

// diffusePressure turns pressure differences against the previous snapshot
// into capacity. A force is first absorbed by the neighbour's capacity back
// toward this cell; any remainder becomes forward capacity and leaves this
// cell's pressure.
func (s *Simulator[P, V, F]) diffusePressure() {
	s.oldP.CopyFrom(s.p)
	old := s.oldP.Values()
	sp := s.grid.Species()
	open := s.grid.Open()

	for i, c := range sp {
		if c == field.Wall {
			continue
		}
		for _, d := range field.Directions {
			n := s.grid.Neighbor(i, d)
			if sp[n] == field.Wall || old[n].Cmp(old[i]) >= 0 {
				continue
			}
			force := old[i].Sub(old[n])
			rhoN := s.rho[sp[n]]
			contr := s.velocity.Ptr(n, d.Opposite())
			held := numeric.Convert[P](*contr).Mul(rhoN)
			if force.Cmp(held) <= 0 {
				*contr = (*contr).Sub(numeric.Convert[V](force.Div(rhoN)))
				continue
			}
			force = force.Sub(held)
			var zero V
			*contr = zero

			fwd := s.velocity.Ptr(i, d)
			*fwd = (*fwd).Add(numeric.Convert[V](force.Div(s.rho[c])))

			share := force.Div(numeric.OfInt[P](open[i]))
			s.p.Set(i, s.p.Get(i).Sub(share))
			s.totalDeltaP = s.totalDeltaP.Sub(share)
		}
	}
}
