package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/cellflow/systems"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.0},
		{"p10", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.1, 1.0},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.0},
		{"clamped", []float64{1, 2, 3}, 1.5, 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestComputeDistribution(t *testing.T) {
	values := []float64{4, 2, 8, 6}
	mean, std, p10, p50, p90 := ComputeDistribution(values)

	if math.Abs(mean-5) > 1e-9 {
		t.Errorf("mean = %v, want 5", mean)
	}
	if math.Abs(std-math.Sqrt(5)) > 1e-9 {
		t.Errorf("std = %v, want sqrt(5)", std)
	}
	if p10 != 2 || p50 != 4 || p90 != 8 {
		t.Errorf("percentiles = %v %v %v, want 2 4 8", p10, p50, p90)
	}
	if values[0] != 4 {
		t.Error("input slice must not be reordered")
	}
}

func TestComputeDistributionSkipsNonFinite(t *testing.T) {
	mean, _, _, _, _ := ComputeDistribution([]float64{1, math.NaN(), 3, math.Inf(1)})
	if mean != 2 {
		t.Errorf("mean = %v, want 2", mean)
	}

	mean, std, p10, p50, p90 := ComputeDistribution(nil)
	if mean != 0 || std != 0 || p10 != 0 || p50 != 0 || p90 != 0 {
		t.Error("empty input should give zeros")
	}
}

func TestCollectorWindow(t *testing.T) {
	c := NewCollector(3)
	steps := []systems.StepStats{
		{Iteration: 0, Chains: 0, FlowRounds: 1, Occupied: 9},
		{Iteration: 1, Chains: 4, Moved: 1, Rotated: 3, FlowRounds: 5, TotalDeltaP: 0.5, Occupied: 9},
		{Iteration: 2, Chains: 2, Moved: 1, Rotated: 2, FlowRounds: 3, TotalDeltaP: 0.25, Occupied: 9},
	}
	for i, s := range steps {
		if c.ShouldFlush() {
			t.Fatalf("flush requested after %d steps", i)
		}
		c.Record(s)
	}
	if !c.ShouldFlush() {
		t.Fatal("expected flush after 3 steps")
	}

	ws := c.Flush(3, []float64{1, 2, 3})
	if ws.WindowStart != 0 || ws.WindowEnd != 3 || ws.Steps != 3 {
		t.Errorf("window bounds = %d..%d (%d steps)", ws.WindowStart, ws.WindowEnd, ws.Steps)
	}
	if ws.Snapshots != 2 || ws.Chains != 6 || ws.Moved != 2 || ws.Rotated != 5 {
		t.Errorf("movement totals wrong: %+v", ws)
	}
	if math.Abs(ws.MoveRate-2.0/6.0) > 1e-12 {
		t.Errorf("MoveRate = %v", ws.MoveRate)
	}
	if ws.FlowRoundsMean != 3 || ws.FlowRoundsMax != 5 {
		t.Errorf("flow rounds = %v / %d", ws.FlowRoundsMean, ws.FlowRoundsMax)
	}
	if ws.DeltaPSum != 0.75 || ws.PressureMean != 2 || ws.Occupied != 9 {
		t.Errorf("pressure columns wrong: %+v", ws)
	}

	if c.Pending() {
		t.Error("collector should be empty after flush")
	}
	c.Record(steps[0])
	if next := c.Flush(4, nil); next.WindowStart != 3 {
		t.Errorf("next window starts at %d, want 3", next.WindowStart)
	}
}
