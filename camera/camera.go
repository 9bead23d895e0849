// Package camera provides a 2D camera for viewing a bounded cell grid.
package camera

// Camera controls the viewport into the grid. Coordinates are in cells:
// column along X, row along Y. Zoom is screen pixels per cell.
type Camera struct {
	// Position is the camera center in grid coordinates
	X, Y float32

	// Zoom level in pixels per cell
	Zoom float32

	// Viewport dimensions (screen size)
	ViewportW, ViewportH float32

	// Grid dimensions in cells
	Cols, Rows float32

	// Zoom constraints
	MinZoom, MaxZoom float32

	initialZoom float32
}

// New creates a camera centered on a cols x rows grid at the given zoom.
func New(viewportW, viewportH float32, cols, rows int, zoom float32) *Camera {
	c := &Camera{
		ViewportW:   viewportW,
		ViewportH:   viewportH,
		Cols:        float32(cols),
		Rows:        float32(rows),
		MaxZoom:     64,
		initialZoom: zoom,
	}
	c.updateMinZoom()
	c.Reset()
	return c
}

// updateMinZoom lets the whole grid fit the viewport, but no smaller.
func (c *Camera) updateMinZoom() {
	minZoomX := c.ViewportW / c.Cols
	minZoomY := c.ViewportH / c.Rows
	c.MinZoom = minZoomX
	if minZoomY < c.MinZoom {
		c.MinZoom = minZoomY
	}
	if c.MinZoom > 1 {
		c.MinZoom = 1
	}
}

// WorldToScreen converts grid coordinates to screen coordinates.
func (c *Camera) WorldToScreen(wx, wy float32) (sx, sy float32) {
	sx = c.ViewportW/2 + (wx-c.X)*c.Zoom
	sy = c.ViewportH/2 + (wy-c.Y)*c.Zoom
	return sx, sy
}

// ScreenToWorld converts screen coordinates to grid coordinates.
func (c *Camera) ScreenToWorld(sx, sy float32) (wx, wy float32) {
	wx = c.X + (sx-c.ViewportW/2)/c.Zoom
	wy = c.Y + (sy-c.ViewportH/2)/c.Zoom
	return wx, wy
}

// CellAt returns the cell under a screen point, or ok=false when the point
// is outside the grid.
func (c *Camera) CellAt(sx, sy float32) (row, col int, ok bool) {
	wx, wy := c.ScreenToWorld(sx, sy)
	if wx < 0 || wy < 0 || wx >= c.Cols || wy >= c.Rows {
		return 0, 0, false
	}
	return int(wy), int(wx), true
}

// Pan moves the camera by the given delta in screen pixels. The center
// stays on the grid.
func (c *Camera) Pan(dx, dy float32) {
	c.X = clamp(c.X+dx/c.Zoom, 0, c.Cols)
	c.Y = clamp(c.Y+dy/c.Zoom, 0, c.Rows)
}

// SetZoom sets the zoom level, clamped to min/max.
func (c *Camera) SetZoom(zoom float32) {
	c.Zoom = clamp(zoom, c.MinZoom, c.MaxZoom)
}

// ZoomBy multiplies the current zoom by the given factor.
func (c *Camera) ZoomBy(factor float32) {
	c.SetZoom(c.Zoom * factor)
}

// ZoomAt zooms by factor keeping the grid point under (sx, sy) fixed on
// screen.
func (c *Camera) ZoomAt(factor, sx, sy float32) {
	wx, wy := c.ScreenToWorld(sx, sy)
	c.ZoomBy(factor)
	c.X = clamp(wx-(sx-c.ViewportW/2)/c.Zoom, 0, c.Cols)
	c.Y = clamp(wy-(sy-c.ViewportH/2)/c.Zoom, 0, c.Rows)
}

// Reset returns the camera to the grid center and the initial zoom.
func (c *Camera) Reset() {
	c.X = c.Cols / 2
	c.Y = c.Rows / 2
	c.SetZoom(c.initialZoom)
}

// VisibleCells returns the half-open row and column ranges that intersect
// the viewport, clipped to the grid.
func (c *Camera) VisibleCells() (row0, row1, col0, col1 int) {
	minX, minY := c.ScreenToWorld(0, 0)
	maxX, maxY := c.ScreenToWorld(c.ViewportW, c.ViewportH)
	col0 = int(clamp(minX, 0, c.Cols))
	row0 = int(clamp(minY, 0, c.Rows))
	col1 = ceilInt(clamp(maxX, 0, c.Cols))
	row1 = ceilInt(clamp(maxY, 0, c.Rows))
	return
}

func ceilInt(x float32) int {
	i := int(x)
	if float32(i) < x {
		i++
	}
	return i
}

// clamp restricts a value to a range.
func clamp(x, min, max float32) float32 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
