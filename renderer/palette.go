package renderer

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/cellflow/field"
)

// Overlay selects what the grid view colors cells by.
type Overlay int

const (
	OverlaySpecies Overlay = iota
	OverlayPressure
)

var (
	wallColor  = rl.Color{R: 40, G: 44, B: 52, A: 255}
	emptyColor = rl.Color{R: 230, G: 236, B: 240, A: 255}
	fluidColor = rl.Color{R: 40, G: 110, B: 200, A: 255}
)

// SpeciesColor returns the fill color of a species byte. Species beyond wall,
// empty and fluid get a stable hue derived from the byte.
func SpeciesColor(species byte) rl.Color {
	switch species {
	case field.Wall:
		return wallColor
	case field.Empty:
		return emptyColor
	case field.Fluid:
		return fluidColor
	}
	hue := float32(species) * 137.508
	hue -= 360 * float32(math.Floor(float64(hue/360)))
	return rl.ColorFromHSV(hue, 0.65, 0.85)
}

// PressureRange returns the finite min and max pressure over open cells.
func PressureRange(g *field.Grid, pressure func(int) float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := range g.Species() {
		if g.IsWall(i) {
			continue
		}
		p := pressure(i)
		if math.IsNaN(p) || math.IsInf(p, 0) {
			continue
		}
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}

// PressureColor maps p within [lo, hi] onto a blue to red ramp. A flat range
// maps to the midpoint; non-finite values are magenta.
func PressureColor(p, lo, hi float64) rl.Color {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return rl.Magenta
	}
	t := 0.5
	if hi > lo {
		t = (p - lo) / (hi - lo)
	}
	t = math.Max(0, math.Min(1, t))
	return rl.Color{
		R: uint8(255 * t),
		G: uint8(80 * (1 - math.Abs(2*t-1))),
		B: uint8(255 * (1 - t)),
		A: 255,
	}
}
