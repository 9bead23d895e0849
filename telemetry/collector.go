package telemetry

import "github.com/pthm-cable/cellflow/systems"

// Collector accumulates step stats within windows of iterations and produces
// WindowStats.
type Collector struct {
	windowSteps int

	// Current window tracking
	windowStart int

	steps         int
	snapshots     int
	chains        int
	moved         int
	rotated       int
	flowRoundsSum int
	flowRoundsMax int
	deltaPSum     float64
	occupied      int
}

// NewCollector creates a collector flushing every windowSteps iterations.
func NewCollector(windowSteps int) *Collector {
	if windowSteps < 1 {
		windowSteps = 1
	}
	return &Collector{windowSteps: windowSteps}
}

// NewCollectorAt creates a collector whose first window starts at iteration
// start, for resumed runs.
func NewCollectorAt(windowSteps, start int) *Collector {
	c := NewCollector(windowSteps)
	c.windowStart = start
	return c
}

// Record adds one step to the current window.
func (c *Collector) Record(s systems.StepStats) {
	c.steps++
	if s.Snapshot() {
		c.snapshots++
	}
	c.chains += s.Chains
	c.moved += s.Moved
	c.rotated += s.Rotated
	c.flowRoundsSum += s.FlowRounds
	if s.FlowRounds > c.flowRoundsMax {
		c.flowRoundsMax = s.FlowRounds
	}
	c.deltaPSum += s.TotalDeltaP
	c.occupied = s.Occupied
}

// ShouldFlush returns true once the window holds windowSteps iterations.
func (c *Collector) ShouldFlush() bool {
	return c.steps >= c.windowSteps
}

// Pending reports whether the window holds unflushed steps.
func (c *Collector) Pending() bool { return c.steps > 0 }

// Flush produces a WindowStats and resets counters for the next window.
// iteration is the number of completed iterations; pressures are sampled
// over open cells for the distribution columns.
func (c *Collector) Flush(iteration int, pressures []float64) WindowStats {
	var moveRate, roundsMean float64
	if c.chains > 0 {
		moveRate = float64(c.moved) / float64(c.chains)
	}
	if c.steps > 0 {
		roundsMean = float64(c.flowRoundsSum) / float64(c.steps)
	}
	mean, std, p10, p50, p90 := ComputeDistribution(pressures)

	stats := WindowStats{
		WindowStart: c.windowStart,
		WindowEnd:   iteration,
		Steps:       c.steps,

		Snapshots: c.snapshots,
		Chains:    c.chains,
		Moved:     c.moved,
		Rotated:   c.rotated,
		MoveRate:  moveRate,

		FlowRoundsMean: roundsMean,
		FlowRoundsMax:  c.flowRoundsMax,
		DeltaPSum:      c.deltaPSum,

		PressureMean: mean,
		PressureStd:  std,
		PressureP10:  p10,
		PressureP50:  p50,
		PressureP90:  p90,

		Occupied: c.occupied,
	}

	*c = Collector{windowSteps: c.windowSteps, windowStart: iteration}
	return stats
}
