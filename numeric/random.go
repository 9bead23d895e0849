package numeric

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
)

// drawResolution is the number of distinct values a draw can take.
const drawResolution = 1_000_000

// Source is the single seeded random stream of a run. It is not safe for
// concurrent use; every run owns its own Source.
type Source struct {
	pcg   *rand.PCG
	r     *rand.Rand
	seed  int64
	draws uint64
}

// NewSource creates a deterministic source from seed.
func NewSource(seed int64) *Source {
	pcg := rand.NewPCG(uint64(seed), 0)
	return &Source{
		pcg:  pcg,
		r:    rand.New(pcg),
		seed: seed,
	}
}

// Seed returns the seed the source was created with.
func (s *Source) Seed() int64 { return s.seed }

// Draws returns how many values have been drawn so far.
func (s *Source) Draws() uint64 { return s.draws }

// Draw returns a uniform value in [0, 1) with a resolution of 1e-6.
func (s *Source) Draw() float64 {
	s.draws++
	return float64(s.r.IntN(drawResolution)) / drawResolution
}

// MarshalBinary encodes the generator position so a run can resume with the
// exact same stream.
func (s *Source) MarshalBinary() ([]byte, error) {
	state, err := s.pcg.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 16, 16+len(state))
	binary.BigEndian.PutUint64(buf[0:], uint64(s.seed))
	binary.BigEndian.PutUint64(buf[8:], s.draws)
	return append(buf, state...), nil
}

// UnmarshalBinary restores a position written by MarshalBinary.
func (s *Source) UnmarshalBinary(data []byte) error {
	if len(data) < 16 {
		return fmt.Errorf("numeric: source state too short (%d bytes)", len(data))
	}
	pcg := &rand.PCG{}
	if err := pcg.UnmarshalBinary(data[16:]); err != nil {
		return fmt.Errorf("numeric: source state: %w", err)
	}
	s.seed = int64(binary.BigEndian.Uint64(data[0:]))
	s.draws = binary.BigEndian.Uint64(data[8:])
	s.pcg = pcg
	s.r = rand.New(pcg)
	return nil
}

// Random01 draws a uniform [0, 1) value of kind T from src.
func Random01[T Number[T]](src *Source) T {
	return Of[T](src.Draw())
}
