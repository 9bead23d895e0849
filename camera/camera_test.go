package camera

import (
	"math"
	"testing"
)

func TestNew(t *testing.T) {
	cam := New(840, 360, 84, 36, 10)

	// Should be centered on the grid
	if cam.X != 42 || cam.Y != 18 {
		t.Errorf("expected camera at (42, 18), got (%f, %f)", cam.X, cam.Y)
	}
	if cam.Zoom != 10 {
		t.Errorf("expected zoom 10, got %f", cam.Zoom)
	}
}

func TestWorldToScreenCentered(t *testing.T) {
	cam := New(840, 360, 84, 36, 10)

	// Camera center should map to screen center
	sx, sy := cam.WorldToScreen(42, 18)
	if math.Abs(float64(sx-420)) > 0.01 || math.Abs(float64(sy-180)) > 0.01 {
		t.Errorf("expected screen center (420, 180), got (%f, %f)", sx, sy)
	}

	// Grid origin maps to the viewport origin when the grid fills it
	sx, sy = cam.WorldToScreen(0, 0)
	if math.Abs(float64(sx)) > 0.01 || math.Abs(float64(sy)) > 0.01 {
		t.Errorf("expected origin at (0, 0), got (%f, %f)", sx, sy)
	}
}

func TestScreenToWorldRoundtrip(t *testing.T) {
	cam := New(840, 360, 84, 36, 12)

	testCases := []struct{ sx, sy float32 }{
		{420, 180}, // center
		{15, 25},   // top-left
		{800, 340}, // near bottom-right
	}

	for _, tc := range testCases {
		wx, wy := cam.ScreenToWorld(tc.sx, tc.sy)
		sx, sy := cam.WorldToScreen(wx, wy)
		if math.Abs(float64(sx-tc.sx)) > 0.01 || math.Abs(float64(sy-tc.sy)) > 0.01 {
			t.Errorf("roundtrip failed: (%f,%f) -> (%f,%f) -> (%f,%f)",
				tc.sx, tc.sy, wx, wy, sx, sy)
		}
	}
}

func TestCellAt(t *testing.T) {
	cam := New(840, 360, 84, 36, 10)

	row, col, ok := cam.CellAt(25, 15)
	if !ok || row != 1 || col != 2 {
		t.Errorf("expected cell (1, 2), got (%d, %d) ok=%v", row, col, ok)
	}

	cam.Pan(-400, 0)
	if _, _, ok := cam.CellAt(5, 5); ok {
		t.Error("expected point left of the grid to miss")
	}
}

func TestZoomClamp(t *testing.T) {
	cam := New(840, 360, 84, 36, 10)

	cam.SetZoom(1000)
	if cam.Zoom != cam.MaxZoom {
		t.Errorf("expected zoom clamped to %f, got %f", cam.MaxZoom, cam.Zoom)
	}

	cam.SetZoom(0.0001)
	if cam.Zoom != cam.MinZoom {
		t.Errorf("expected zoom clamped to %f, got %f", cam.MinZoom, cam.Zoom)
	}
}

func TestZoomAtKeepsPointFixed(t *testing.T) {
	cam := New(840, 360, 84, 36, 10)

	wx, wy := cam.ScreenToWorld(300, 100)
	cam.ZoomAt(2, 300, 100)
	sx, sy := cam.WorldToScreen(wx, wy)
	if math.Abs(float64(sx-300)) > 0.01 || math.Abs(float64(sy-100)) > 0.01 {
		t.Errorf("expected (300, 100) to stay fixed, got (%f, %f)", sx, sy)
	}
	if cam.Zoom != 20 {
		t.Errorf("expected zoom 20, got %f", cam.Zoom)
	}
}

func TestPanStaysOnGrid(t *testing.T) {
	cam := New(840, 360, 84, 36, 10)

	cam.Pan(1e6, -1e6)
	if cam.X != 84 || cam.Y != 0 {
		t.Errorf("expected center clamped to (84, 0), got (%f, %f)", cam.X, cam.Y)
	}

	cam.Reset()
	if cam.X != 42 || cam.Y != 18 || cam.Zoom != 10 {
		t.Errorf("reset failed: (%f, %f) zoom %f", cam.X, cam.Y, cam.Zoom)
	}
}

func TestVisibleCells(t *testing.T) {
	cam := New(840, 360, 84, 36, 10)

	row0, row1, col0, col1 := cam.VisibleCells()
	if row0 != 0 || row1 != 36 || col0 != 0 || col1 != 84 {
		t.Errorf("expected full grid, got rows [%d,%d) cols [%d,%d)", row0, row1, col0, col1)
	}

	cam.SetZoom(20)
	row0, row1, col0, col1 = cam.VisibleCells()
	if row0 != 9 || row1 != 27 || col0 != 21 || col1 != 63 {
		t.Errorf("expected rows [9,27) cols [21,63), got rows [%d,%d) cols [%d,%d)", row0, row1, col0, col1)
	}
}
