package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a window of iterations.
type WindowStats struct {
	WindowStart int `csv:"-"`
	WindowEnd   int `csv:"window_end"`
	Steps       int `csv:"steps"`

	// Movement during window
	Snapshots int     `csv:"snapshots"`
	Chains    int     `csv:"chains"`
	Moved     int     `csv:"moved"`
	Rotated   int     `csv:"rotated"`
	MoveRate  float64 `csv:"move_rate"` // moved chains per started chain

	// Saturation effort
	FlowRoundsMean float64 `csv:"flow_rounds_mean"`
	FlowRoundsMax  int     `csv:"flow_rounds_max"`

	// Pressure bookkeeping
	DeltaPSum float64 `csv:"delta_p_sum"`

	// Pressure distribution over open cells (sampled at window end)
	PressureMean float64 `csv:"pressure_mean"`
	PressureStd  float64 `csv:"pressure_std"`
	PressureP10  float64 `csv:"pressure_p10"`
	PressureP50  float64 `csv:"pressure_p50"`
	PressureP90  float64 `csv:"pressure_p90"`

	// Occupied cells at window end; constant over a healthy run
	Occupied int `csv:"occupied"`
}

// Percentile returns the empirical p-quantile of a sorted slice.
// p is clamped to [0, 1]. Returns 0 if the slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	p = math.Max(0, math.Min(1, p))
	if p == 0 {
		return sorted[0]
	}
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// ComputeDistribution returns mean, standard deviation and the 10th, 50th
// and 90th percentiles of values. Non-finite values are skipped.
func ComputeDistribution(values []float64) (mean, std, p10, p50, p90 float64) {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0, 0, 0, 0, 0
	}

	mean, std = stat.PopMeanStdDev(finite, nil)
	sort.Float64s(finite)
	return mean, std, Percentile(finite, 0.10), Percentile(finite, 0.50), Percentile(finite, 0.90)
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", s.WindowStart),
		slog.Int("window_end", s.WindowEnd),
		slog.Int("steps", s.Steps),
		slog.Int("snapshots", s.Snapshots),
		slog.Int("chains", s.Chains),
		slog.Int("moved", s.Moved),
		slog.Int("rotated", s.Rotated),
		slog.Float64("move_rate", s.MoveRate),
		slog.Float64("flow_rounds_mean", s.FlowRoundsMean),
		slog.Int("flow_rounds_max", s.FlowRoundsMax),
		slog.Float64("delta_p_sum", s.DeltaPSum),
		slog.Float64("pressure_mean", s.PressureMean),
		slog.Float64("pressure_std", s.PressureStd),
		slog.Float64("pressure_p10", s.PressureP10),
		slog.Float64("pressure_p50", s.PressureP50),
		slog.Float64("pressure_p90", s.PressureP90),
		slog.Int("occupied", s.Occupied),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEnd,
		"chains", s.Chains,
		"moved", s.Moved,
		"move_rate", s.MoveRate,
		"flow_rounds_mean", s.FlowRoundsMean,
		"pressure_mean", s.PressureMean,
		"occupied", s.Occupied,
	)
}
