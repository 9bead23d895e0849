package field

import (
	"math/rand/v2"

	"github.com/ojrac/opensimplex-go"
)

// GenConfig holds parameters for procedural field maps.
type GenConfig struct {
	Seed int64
	// Scale is the base noise frequency in cells.
	Scale float64
	// Octaves layered into the obstacle noise.
	Octaves int
	// ObstacleThreshold in [0,1]; noise above it becomes wall.
	ObstacleThreshold float64
	// FluidLevel is the fraction of interior rows, from the top, filled with
	// fluid where no obstacle stands.
	FluidLevel float64
}

// DefaultGenConfig returns parameters that give a few scattered obstacles
// below a fluid pool.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Seed:              1,
		Scale:             0.12,
		Octaves:           3,
		ObstacleThreshold: 0.72,
		FluidLevel:        0.3,
	}
}

// Generate builds a procedural field map of the given size. The border is
// always wall. Interior cells become wall where octave noise exceeds the
// obstacle threshold, fluid in the top FluidLevel of rows, and empty
// elsewhere. The same config always yields the same map.
func Generate(size Size, cfg GenConfig) []string {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int64()
	}
	octaves := cfg.Octaves
	if octaves < 1 {
		octaves = 1
	}
	noise := opensimplex.NewNormalized(seed)
	fluidRows := int(cfg.FluidLevel * float64(size.Rows-2))

	rows := make([]string, size.Rows)
	line := make([]byte, size.Cols)
	for r := 0; r < size.Rows; r++ {
		for c := 0; c < size.Cols; c++ {
			if r == 0 || c == 0 || r == size.Rows-1 || c == size.Cols-1 {
				line[c] = Wall
				continue
			}
			n := octaveNoise(noise, float64(c), float64(r), octaves, cfg.Scale, 0.5)
			switch {
			case n > cfg.ObstacleThreshold:
				line[c] = Wall
			case r-1 < fluidRows:
				line[c] = Fluid
			default:
				line[c] = Empty
			}
		}
		rows[r] = string(line)
	}
	return rows
}

// octaveNoise layers octaves of noise at doubling frequency. The result stays
// in [0,1] because each octave is normalized.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxVal
}
