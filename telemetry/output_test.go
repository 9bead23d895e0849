package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/cellflow/config"
	"github.com/pthm-cable/cellflow/field"
	"github.com/pthm-cable/cellflow/systems"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("", "frames.txt")
	if err != nil || om != nil {
		t.Fatalf("empty dir should disable output, got %v, %v", om, err)
	}
	// Every method is safe on a nil manager.
	if err := om.WriteIteration(systems.StepStats{}); err != nil {
		t.Error(err)
	}
	if err := om.WriteWindow(WindowStats{}); err != nil {
		t.Error(err)
	}
	if om.Frames() != nil || om.Dir() != "" {
		t.Error("nil manager should have no sinks")
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
}

func TestOutputManagerWritesCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir, "frames.txt")
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := om.WriteIteration(systems.StepStats{Iteration: i, Chains: i, Occupied: 9}); err != nil {
			t.Fatal(err)
		}
	}
	if err := om.WriteWindow(WindowStats{WindowEnd: 3, Steps: 3, Chains: 3}); err != nil {
		t.Fatal(err)
	}
	if err := om.WritePerf(PerfStats{PhasePct: map[string]float64{}}, 3); err != nil {
		t.Fatal(err)
	}
	if err := om.WriteBookmark(Bookmark{Type: BookmarkFirstMovement, Iteration: 3, Description: "x"}); err != nil {
		t.Fatal(err)
	}
	fmt.Fprintln(om.Frames(), "#####")
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	iterations := readLines(t, filepath.Join(dir, "iterations.csv"))
	if len(iterations) != 4 {
		t.Fatalf("iterations.csv has %d lines, want header + 3", len(iterations))
	}
	if iterations[0] != "iteration,chains,moved,rotated,flow_rounds,total_delta_p,occupied" {
		t.Errorf("unexpected header %q", iterations[0])
	}
	if !strings.HasPrefix(iterations[3], "2,2,") {
		t.Errorf("unexpected last row %q", iterations[3])
	}

	windows := readLines(t, filepath.Join(dir, "windows.csv"))
	if len(windows) != 2 || !strings.HasPrefix(windows[0], "window_end,steps,") {
		t.Errorf("unexpected windows.csv: %v", windows)
	}
	if lines := readLines(t, filepath.Join(dir, "perf.csv")); len(lines) != 2 {
		t.Errorf("perf.csv has %d lines", len(lines))
	}
	bookmarks := readLines(t, filepath.Join(dir, "bookmarks.csv"))
	if len(bookmarks) != 2 || !strings.HasPrefix(bookmarks[1], "first_movement,3,") {
		t.Errorf("unexpected bookmarks.csv: %v", bookmarks)
	}
	if frames := readLines(t, filepath.Join(dir, "frames.txt")); len(frames) != 1 || frames[0] != "#####" {
		t.Errorf("unexpected frames: %v", frames)
	}
}

func TestOutputManagerConfigAndDensities(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	defer om.Close()

	if om.Frames() != nil {
		t.Error("no frames file requested")
	}

	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if err := om.WriteConfig(cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("written config does not load: %v", err)
	}

	if err := om.WriteDensities(field.DefaultDensities()); err != nil {
		t.Fatal(err)
	}
	rho, err := field.LoadDensityFile(filepath.Join(dir, "densities.csv"), field.Densities{})
	if err != nil {
		t.Fatal(err)
	}
	if rho != field.DefaultDensities() {
		t.Error("densities.csv does not round-trip")
	}
}
