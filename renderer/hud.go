package renderer

import (
	"fmt"

	"github.com/dustin/go-humanize"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/cellflow/telemetry"
)

// HUDData holds all the data needed to render the status lines.
type HUDData struct {
	Title       string
	Types       string
	Size        string
	Iteration   int
	Steps       int
	Frames      int
	StepsPerSec float64
	FPS         int32
	Paused      bool
	Overlay     Overlay
	PressureLo  float64
	PressureHi  float64
	Err         error
}

// DrawHUD renders the status lines at (x, y).
func DrawHUD(x, y int32, data HUDData) {
	rl.DrawText(data.Title, x, y, 20, rl.White)
	rl.DrawText(fmt.Sprintf("%s  %s", data.Types, data.Size), x, y+25, 16, rl.LightGray)
	rl.DrawText(
		fmt.Sprintf("Iteration: %s / %s | Frames: %s | %.0f steps/s | FPS: %d",
			humanize.Comma(int64(data.Iteration)), humanize.Comma(int64(data.Steps)),
			humanize.Comma(int64(data.Frames)), data.StepsPerSec, data.FPS),
		x, y+45, 16, rl.LightGray,
	)

	if data.Overlay == OverlayPressure {
		rl.DrawText(fmt.Sprintf("Pressure %.3g .. %.3g", data.PressureLo, data.PressureHi), x, y+65, 16, rl.SkyBlue)
	}

	status, color := "Running", rl.Green
	switch {
	case data.Err != nil:
		status, color = data.Err.Error(), rl.Red
	case data.Iteration >= data.Steps:
		status, color = "Done", rl.SkyBlue
	case data.Paused:
		status, color = "PAUSED", rl.Yellow
	}
	rl.DrawText(status, x, y+85, 16, color)
}

// DrawPerfBreakdown lists each phase's share of step time at (x, y) and
// returns the y below the list.
func DrawPerfBreakdown(x, y int32, shares []telemetry.PhaseShare) int32 {
	if len(shares) == 0 {
		return y
	}
	rl.DrawText("Step time", x, y, 14, rl.LightGray)
	for _, sh := range shares {
		y += 16
		rl.DrawText(fmt.Sprintf("%-10s %5.1f%%  %s", sh.Name, sh.Pct, sh.Category), x, y, 14, rl.Gray)
	}
	return y + 24
}
