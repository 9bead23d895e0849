package systems

import (
	"github.com/pthm-cable/cellflow/field"
	"github.com/pthm-cable/cellflow/numeric"
)

// fluidDamping scales the force released by the fluid species.
const fluidDamping = 0.8

// relaxVelocity replaces every positive capacity by the flow it carried and
// returns the dropped capacity as pressure. The pressure lands on the cell
// itself when the edge points into a wall, else on the downstream cell.
func (s *Simulator[P, V, F]) relaxVelocity() error {
	sp := s.grid.Species()
	open := s.grid.Open()
	damping := numeric.Of[P](fluidDamping)
	// Flow may overshoot a capacity by one epsilon of rounding.
	epsF := numeric.Epsilon[F]().Float64()
	var zero V

	for i, c := range sp {
		if c == field.Wall {
			continue
		}
		for _, d := range field.Directions {
			vel := s.velocity.Ptr(i, d)
			old := *vel
			if old.Cmp(zero) <= 0 {
				continue
			}
			flow := s.flow.Get(i, d)
			if flow.Float64() > old.Float64()+epsF {
				return s.invariant(PhaseRelaxation, i, "flow %s exceeds capacity %s toward %s", flow, old, d)
			}
			next := numeric.Convert[V](flow)
			if next.Cmp(old) > 0 {
				next = old
			}
			*vel = next

			force := numeric.Convert[P](old.Sub(next)).Mul(s.rho[c])
			if c == field.Fluid {
				force = force.Mul(damping)
			}
			target := s.grid.Neighbor(i, d)
			if sp[target] == field.Wall {
				target = i
			}
			share := force.Div(numeric.OfInt[P](open[target]))
			s.p.Set(target, s.p.Get(target).Add(share))
			s.totalDeltaP = s.totalDeltaP.Add(share)
		}
	}
	return nil
}
