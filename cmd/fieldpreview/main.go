// Procedural field map preview - interactive generator tuning with sliders.
//
// Usage: go run ./cmd/fieldpreview [--config path] [--save out.map]
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/cellflow/config"
	"github.com/pthm-cable/cellflow/field"
	"github.com/pthm-cable/cellflow/renderer"
)

const (
	windowWidth  = 1100
	windowHeight = 720
	previewWidth = 700
	panelWidth   = windowWidth - previewWidth - 30
)

// previewParams holds the generator parameters under edit.
type previewParams struct {
	Rows              int
	Cols              int
	Scale             float32
	Octaves           int
	ObstacleThreshold float32
	FluidLevel        float32
	Seed              int64
}

func fromConfig(cfg *config.Config) previewParams {
	g := cfg.Grid.Generate
	seed := g.Seed
	if seed == 0 {
		seed = 1
	}
	return previewParams{
		Rows:              cfg.Derived.Size.Rows,
		Cols:              cfg.Derived.Size.Cols,
		Scale:             float32(g.Scale),
		Octaves:           g.Octaves,
		ObstacleThreshold: float32(g.ObstacleThreshold),
		FluidLevel:        float32(g.FluidLevel),
		Seed:              seed,
	}
}

func (p previewParams) size() field.Size { return field.Size{Rows: p.Rows, Cols: p.Cols} }

func (p previewParams) genConfig() field.GenConfig {
	return field.GenConfig{
		Seed:              p.Seed,
		Scale:             float64(p.Scale),
		Octaves:           p.Octaves,
		ObstacleThreshold: float64(p.ObstacleThreshold),
		FluidLevel:        float64(p.FluidLevel),
	}
}

// yaml renders the parameters as a grid config section.
func (p previewParams) yaml() string {
	return fmt.Sprintf(`grid:
  size: %s
  generate:
    enabled: true
    seed: %d
    scale: %.3f
    octaves: %d
    obstacle_threshold: %.3f
    fluid_level: %.3f`,
		p.size(), p.Seed, p.Scale, p.Octaves, p.ObstacleThreshold, p.FluidLevel)
}

// mapStats counts species in a generated map.
type mapStats struct {
	walls, empty, fluid int
}

func countMap(rows []string) mapStats {
	var s mapStats
	for _, row := range rows {
		for i := 0; i < len(row); i++ {
			switch row[i] {
			case field.Wall:
				s.walls++
			case field.Empty:
				s.empty++
			default:
				s.fluid++
			}
		}
	}
	return s
}

func main() {
	configPath := flag.String("config", "", "Config YAML file providing the starting parameters")
	savePath := flag.String("save", "field.map", "File written by the Save button")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	initial := fromConfig(cfg)
	params := initial

	rl.InitWindow(windowWidth, windowHeight, "Field Map Preview")
	defer rl.CloseWindow()
	rl.SetTargetFPS(30)

	rows := field.Generate(params.size(), params.genConfig())
	stats := countMap(rows)
	status := ""

	needsRegen := false

	for !rl.WindowShouldClose() {
		if needsRegen {
			rows = field.Generate(params.size(), params.genConfig())
			stats = countMap(rows)
			needsRegen = false
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		// Draw preview, scaled to fit
		cell := int32(previewWidth / params.Cols)
		if h := int32((windowHeight - 80) / params.Rows); h < cell {
			cell = h
		}
		if cell < 1 {
			cell = 1
		}
		for r, row := range rows {
			for c := 0; c < len(row); c++ {
				rl.DrawRectangle(10+int32(c)*cell, 10+int32(r)*cell, cell, cell, renderer.SpeciesColor(row[c]))
			}
		}
		rl.DrawRectangleLines(10, 10, int32(params.Cols)*cell, int32(params.Rows)*cell, rl.DarkGray)

		statsY := int32(windowHeight - 60)
		rl.DrawText(fmt.Sprintf("Walls: %d  Empty: %d  Fluid: %d", stats.walls, stats.empty, stats.fluid), 15, statsY, 16, rl.DarkGray)
		if status != "" {
			rl.DrawText(status, 15, statsY+20, 16, rl.DarkGray)
		}

		// Control panel
		panelX := float32(previewWidth + 20)
		panelY := float32(10)

		rl.DrawText("Generator Parameters", int32(panelX), int32(panelY), 20, rl.DarkGray)
		panelY += 35

		slider := func(label, lo, hi string, value, min, max float32, format string) float32 {
			rl.DrawText(label, int32(panelX), int32(panelY), 14, rl.Gray)
			panelY += 18
			v := gui.SliderBar(
				rl.Rectangle{X: panelX, Y: panelY, Width: float32(panelWidth - 80), Height: 20},
				lo, hi, value, min, max,
			)
			rl.DrawText(fmt.Sprintf(format, value), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
			panelY += 35
			return v
		}

		if v := int(slider("Rows", "4", "60", float32(params.Rows), 4, 60, "%.0f")); v != params.Rows {
			params.Rows = v
			needsRegen = true
		}
		if v := int(slider("Columns", "4", "120", float32(params.Cols), 4, 120, "%.0f")); v != params.Cols {
			params.Cols = v
			needsRegen = true
		}
		if v := slider("Scale (noise frequency per cell)", "0.01", "0.5", params.Scale, 0.01, 0.5, "%.3f"); v != params.Scale {
			params.Scale = v
			needsRegen = true
		}
		if v := int(slider("Octaves", "1", "6", float32(params.Octaves), 1, 6, "%.0f")); v != params.Octaves {
			params.Octaves = v
			needsRegen = true
		}
		if v := slider("Obstacle threshold (higher = fewer walls)", "0.3", "1.0", params.ObstacleThreshold, 0.3, 1.0, "%.3f"); v != params.ObstacleThreshold {
			params.ObstacleThreshold = v
			needsRegen = true
		}
		if v := slider("Fluid level (share of rows from the top)", "0", "1", params.FluidLevel, 0, 1, "%.2f"); v != params.FluidLevel {
			params.FluidLevel = v
			needsRegen = true
		}
		if v := int64(slider("Seed", "1", "99999", float32(params.Seed), 1, 99999, "%.0f")); v != params.Seed {
			params.Seed = v
			needsRegen = true
		}
		panelY += 10

		// Buttons
		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Random Seed") {
			params.Seed = int64(rl.GetRandomValue(1, 99999))
			needsRegen = true
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Reset All") {
			params = initial
			needsRegen = true
		}
		panelY += 45

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Save Map") {
			data := strings.Join(rows, "\n") + "\n"
			if err := os.WriteFile(*savePath, []byte(data), 0644); err != nil {
				status = fmt.Sprintf("save failed: %v", err)
			} else {
				status = "saved " + *savePath
			}
		}
		panelY += 55

		// Output YAML
		rl.DrawText("YAML Config:", int32(panelX), int32(panelY), 16, rl.DarkGray)
		panelY += 25
		for _, line := range strings.Split(params.yaml(), "\n") {
			rl.DrawText(line, int32(panelX), int32(panelY), 14, rl.Gray)
			panelY += 16
		}

		rl.DrawText("Press C to copy YAML to clipboard", int32(panelX), int32(windowHeight-30), 12, rl.LightGray)
		if rl.IsKeyPressed(rl.KeyC) {
			rl.SetClipboardText(params.yaml())
			status = "copied YAML"
		}

		rl.EndDrawing()
	}
}
