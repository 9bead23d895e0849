// Package renderer draws a running simulation with raylib: the grid colored
// by species or pressure, a status HUD and raygui run controls.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/cellflow/camera"
	"github.com/pthm-cable/cellflow/config"
	"github.com/pthm-cable/cellflow/engine"
	"github.com/pthm-cable/cellflow/field"
)

const (
	margin     = 10
	hudHeight  = 110
	panelWidth = 200
)

// Viewer owns the window and steps an engine from the frame loop.
type Viewer struct {
	engine        *engine.Engine
	camera        *camera.Camera
	cellSize      int32
	targetFPS     int32
	stepsPerFrame int

	paused  bool
	overlay Overlay
	runErr  error

	// Grid area on screen
	gridX, gridY int32
	gridW, gridH int32
}

// NewViewer creates a viewer for e using the viewer configuration section.
func NewViewer(e *engine.Engine, cfg config.ViewerConfig) *Viewer {
	v := &Viewer{
		engine:        e,
		cellSize:      int32(cfg.CellSize),
		targetFPS:     int32(cfg.TargetFPS),
		stepsPerFrame: cfg.StepsPerFrame,
	}
	if v.cellSize < 2 {
		v.cellSize = 2
	}
	if v.targetFPS < 1 {
		v.targetFPS = 30
	}
	if v.stepsPerFrame < 1 {
		v.stepsPerFrame = 1
	}
	return v
}

// Run opens the window and loops until it is closed or ctx is cancelled.
// Stepping stops at the first error, which stays on screen; the run is
// finished when the window closes and its error is returned.
func (v *Viewer) Run(ctx context.Context) error {
	size := v.engine.Size()
	v.gridX, v.gridY = margin, margin+hudHeight
	v.gridW = int32(size.Cols) * v.cellSize
	v.gridH = int32(size.Rows) * v.cellSize
	v.camera = camera.New(float32(v.gridW), float32(v.gridH), size.Cols, size.Rows, float32(v.cellSize))
	width := v.gridW + 3*margin + panelWidth
	height := v.gridH + 2*margin + hudHeight

	rl.InitWindow(width, height, "cellflow")
	defer rl.CloseWindow()
	rl.SetTargetFPS(v.targetFPS)

	for !rl.WindowShouldClose() {
		if ctx.Err() != nil {
			v.stop(ctx.Err())
			break
		}

		v.handleInput()
		v.handleCameraInput()
		if !v.paused {
			v.advance(v.stepsPerFrame)
		}
		v.engine.RecordFrame()

		rl.BeginDrawing()
		rl.ClearBackground(rl.Black)
		v.drawGrid()
		v.drawHUD(margin, margin)
		py := v.drawControls(v.gridW+2*margin, v.gridY)
		py = DrawPerfBreakdown(v.gridW+2*margin, py, v.engine.PerfStats().Breakdown())
		v.drawHover(v.gridW+2*margin, py)
		rl.EndDrawing()
	}

	return v.engine.Finish(v.runErr)
}

func (v *Viewer) handleInput() {
	if rl.IsKeyPressed(rl.KeySpace) {
		v.paused = !v.paused
	}
	if rl.IsKeyPressed(rl.KeyN) {
		v.advance(1)
	}
	if rl.IsKeyPressed(rl.KeyO) {
		v.toggleOverlay()
	}
}

// advance steps the engine n times unless it is done or stopped.
func (v *Viewer) advance(n int) {
	for i := 0; i < n; i++ {
		if v.runErr != nil || v.engine.Done() {
			return
		}
		if _, err := v.engine.Step(); err != nil {
			v.stop(err)
			return
		}
	}
}

func (v *Viewer) stop(err error) {
	if v.runErr != nil {
		return
	}
	v.runErr = err
	v.paused = true
	if !errors.Is(err, context.Canceled) {
		slog.Error("run stopped", "error", err, "iteration", v.engine.Iteration())
	}
}

func (v *Viewer) toggleOverlay() {
	if v.overlay == OverlaySpecies {
		v.overlay = OverlayPressure
	} else {
		v.overlay = OverlaySpecies
	}
}

// drawGrid draws the cells visible through the camera, clipped to the grid
// area.
func (v *Viewer) drawGrid() {
	sim := v.engine.Runner()
	g := sim.Grid()
	sp := g.Species()

	var lo, hi float64
	if v.overlay == OverlayPressure {
		lo, hi = PressureRange(g, sim.Pressure)
	}

	rl.BeginScissorMode(v.gridX, v.gridY, v.gridW, v.gridH)
	cell := v.camera.Zoom
	row0, row1, col0, col1 := v.camera.VisibleCells()
	for row := row0; row < row1; row++ {
		for col := col0; col < col1; col++ {
			i := g.Index(row, col)
			color := SpeciesColor(sp[i])
			if v.overlay == OverlayPressure && !g.IsWall(i) {
				color = PressureColor(sim.Pressure(i), lo, hi)
			}
			sx, sy := v.camera.WorldToScreen(float32(col), float32(row))
			rl.DrawRectangleRec(rl.Rectangle{
				X: float32(v.gridX) + sx, Y: float32(v.gridY) + sy,
				Width: cell, Height: cell,
			}, color)
		}
	}
	rl.EndScissorMode()
	rl.DrawRectangleLines(v.gridX, v.gridY, v.gridW, v.gridH, rl.DarkGray)
}

// hoveredCell returns the grid cell under the mouse.
func (v *Viewer) hoveredCell() (row, col int, ok bool) {
	m := rl.GetMousePosition()
	x, y := m.X-float32(v.gridX), m.Y-float32(v.gridY)
	if x < 0 || y < 0 || x >= float32(v.gridW) || y >= float32(v.gridH) {
		return 0, 0, false
	}
	return v.camera.CellAt(x, y)
}

// drawHover shows the species, pressure and capacities of the cell under the
// mouse.
func (v *Viewer) drawHover(x, y int32) {
	row, col, ok := v.hoveredCell()
	if !ok {
		return
	}
	sim := v.engine.Runner()
	g := sim.Grid()
	i := g.Index(row, col)
	rl.DrawText(fmt.Sprintf("Cell (%d, %d) %q", row, col, g.At(row, col)), x, y, 14, rl.LightGray)
	if g.IsWall(i) {
		return
	}
	y += 18
	rl.DrawText(fmt.Sprintf("p = %.4g", sim.Pressure(i)), x, y, 14, rl.LightGray)
	for _, d := range field.Directions {
		y += 16
		rl.DrawText(fmt.Sprintf("v %-5s %.4g", d, sim.Velocity(i, d)), x, y, 14, rl.Gray)
	}
}

func (v *Viewer) drawHUD(x, y int32) {
	sim := v.engine.Runner()
	data := HUDData{
		Title:       "cellflow",
		Types:       v.engine.Types().String(),
		Size:        v.engine.Size().String(),
		Iteration:   v.engine.Iteration(),
		Steps:       v.engine.Steps(),
		Frames:      v.engine.Frames(),
		StepsPerSec: v.engine.PerfStats().StepsPerSecond,
		FPS:         rl.GetFPS(),
		Paused:      v.paused,
		Overlay:     v.overlay,
		Err:         v.runErr,
	}
	if v.overlay == OverlayPressure {
		data.PressureLo, data.PressureHi = PressureRange(sim.Grid(), sim.Pressure)
	}
	DrawHUD(x, y, data)
}

// drawControls draws the run controls and returns the y below them.
func (v *Viewer) drawControls(x, y int32) int32 {
	px, py := float32(x), float32(y)

	if gui.Button(rl.Rectangle{X: px, Y: py, Width: panelWidth, Height: 30}, toggleText(v.paused, "Resume", "Pause")) {
		v.paused = !v.paused
	}
	py += 40
	if gui.Button(rl.Rectangle{X: px, Y: py, Width: panelWidth, Height: 30}, "Step") {
		v.advance(1)
	}
	py += 40
	if gui.Button(rl.Rectangle{X: px, Y: py, Width: panelWidth, Height: 30}, toggleText(v.overlay == OverlayPressure, "Show species", "Show pressure")) {
		v.toggleOverlay()
	}
	py += 50

	rl.DrawText("Steps per frame", int32(px), int32(py), 14, rl.Gray)
	py += 18
	n := gui.SliderBar(
		rl.Rectangle{X: px, Y: py, Width: panelWidth - 40, Height: 20},
		"", "",
		float32(v.stepsPerFrame), 1, 50,
	)
	v.stepsPerFrame = max(1, int(n))
	rl.DrawText(strconv.Itoa(v.stepsPerFrame), int32(px+panelWidth-30), int32(py+2), 16, rl.LightGray)
	py += 40

	rl.DrawText("space pause  n step  o overlay", int32(px), int32(py), 12, rl.Gray)
	py += 16
	rl.DrawText("wheel zoom  arrows/drag pan  home reset", int32(px), int32(py), 12, rl.Gray)
	return int32(py) + 30
}

func toggleText(on bool, onText, offText string) string {
	if on {
		return onText
	}
	return offText
}
