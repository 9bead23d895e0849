package telemetry

import (
	"log/slog"
	"time"

	"github.com/pthm-cable/cellflow/systems"
)

// PhaseTelemetry times the engine's own bookkeeping after a step.
const PhaseTelemetry = "telemetry"

// phases names every timed phase: the step phases plus telemetry.
var phases = newPhases()

func newPhases() *systems.PhaseRegistry {
	reg := systems.NewPhaseRegistry()
	reg.Register(systems.PhaseInfo{
		ID:          PhaseTelemetry,
		Name:        "Telemetry",
		Description: "Records stats, perf samples and the run ledger",
		Category:    systems.CategoryOutput,
	})
	return reg
}

// trackedPhases lists the phases reported in logs and perf.csv, in step order.
var trackedPhases = phases.IDs()

// phaseCategories lists the categories reported in logs, in step order.
var phaseCategories = []string{
	systems.CategoryForces, systems.CategoryFlow, systems.CategoryTransport, systems.CategoryOutput,
}

// PerfSample holds timing data for a single step.
type PerfSample struct {
	StepDuration time.Duration
	Phases       map[string]time.Duration
}

// PerfCollector tracks step timing over a rolling window. A nil collector
// ignores every call, so callers need not check whether perf is enabled.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	stepStart     time.Time
	phaseStart    time.Time
	lastPhase     string

	// Frame timing (viewer mode)
	lastFrameTime time.Time
	frameDuration time.Duration
}

// NewPerfCollector creates a collector averaging over windowSize steps.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 50
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartStep begins timing a new step.
func (p *PerfCollector) StartStep() {
	if p == nil {
		return
	}
	p.stepStart = time.Now()
	p.currentPhases = make(map[string]time.Duration)
	p.lastPhase = ""
}

// StartPhase ends the running phase, if any, and begins timing phase.
// It satisfies systems.PhaseObserver.
func (p *PerfCollector) StartPhase(phase string) {
	if p == nil {
		return
	}
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndStep closes the running phase and records the sample.
func (p *PerfCollector) EndStep() {
	if p == nil {
		return
	}
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}

	p.samples[p.writeIndex] = PerfSample{
		StepDuration: now.Sub(p.stepStart),
		Phases:       p.currentPhases,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// RecordFrame records frame timing for the viewer.
func (p *PerfCollector) RecordFrame() {
	if p == nil {
		return
	}
	now := time.Now()
	if !p.lastFrameTime.IsZero() {
		p.frameDuration = now.Sub(p.lastFrameTime)
	}
	p.lastFrameTime = now
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgStepDuration time.Duration
	MinStepDuration time.Duration
	MaxStepDuration time.Duration

	// Average duration and share of step time per phase
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64

	StepsPerSecond float64

	FrameDuration time.Duration
	FPS           float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	if p == nil {
		return PerfStats{PhaseAvg: map[string]time.Duration{}, PhasePct: map[string]float64{}}
	}
	var fps float64
	if p.frameDuration > 0 {
		fps = float64(time.Second) / float64(p.frameDuration)
	}
	out := PerfStats{
		PhaseAvg:      make(map[string]time.Duration),
		PhasePct:      make(map[string]float64),
		FrameDuration: p.frameDuration,
		FPS:           fps,
	}
	if p.sampleCount == 0 {
		return out
	}

	var total time.Duration
	phaseSum := make(map[string]time.Duration)
	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.StepDuration
		if i == 0 || s.StepDuration < out.MinStepDuration {
			out.MinStepDuration = s.StepDuration
		}
		if s.StepDuration > out.MaxStepDuration {
			out.MaxStepDuration = s.StepDuration
		}
		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	out.AvgStepDuration = total / time.Duration(p.sampleCount)
	for phase, sum := range phaseSum {
		out.PhaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if out.AvgStepDuration > 0 {
			out.PhasePct[phase] = float64(out.PhaseAvg[phase]) / float64(out.AvgStepDuration) * 100
		}
	}
	if out.AvgStepDuration > 0 {
		out.StepsPerSecond = float64(time.Second) / float64(out.AvgStepDuration)
	}
	return out
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_step_us", s.AvgStepDuration.Microseconds(),
		"min_step_us", s.MinStepDuration.Microseconds(),
		"max_step_us", s.MaxStepDuration.Microseconds(),
		"steps_per_sec", int(s.StepsPerSecond),
	}
	if s.FPS > 0 {
		attrs = append(attrs, "fps", int(s.FPS))
	}
	for _, phase := range trackedPhases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", int(pct*10)/10.0)
		}
	}
	for _, cat := range phaseCategories {
		if pct := s.CategoryPct(cat); pct > 0.1 {
			attrs = append(attrs, cat+"_total_pct", int(pct*10)/10.0)
		}
	}
	slog.Info("perf", attrs...)
}

// PhaseShare is one line of a perf breakdown.
type PhaseShare struct {
	Name     string
	Category string
	Pct      float64
}

// Breakdown returns each timed phase's share of the average step, in step
// order. Phases with no samples are left out.
func (s PerfStats) Breakdown() []PhaseShare {
	var out []PhaseShare
	for _, info := range phases.All() {
		pct, ok := s.PhasePct[info.ID]
		if !ok {
			continue
		}
		out = append(out, PhaseShare{Name: info.Name, Category: info.Category, Pct: pct})
	}
	return out
}

// CategoryPct sums the shares of every phase in category.
func (s PerfStats) CategoryPct(category string) float64 {
	var sum float64
	for _, info := range phases.ByCategory(category) {
		sum += s.PhasePct[info.ID]
	}
	return sum
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_step_us", s.AvgStepDuration.Microseconds()),
		slog.Int64("min_step_us", s.MinStepDuration.Microseconds()),
		slog.Int64("max_step_us", s.MaxStepDuration.Microseconds()),
		slog.Float64("steps_per_sec", s.StepsPerSecond),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Float64("fps", s.FPS))
	}
	for _, phase := range trackedPhases {
		if pct, ok := s.PhasePct[phase]; ok {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	WindowEnd     int     `csv:"window_end"`
	AvgStepUS     int64   `csv:"avg_step_us"`
	MinStepUS     int64   `csv:"min_step_us"`
	MaxStepUS     int64   `csv:"max_step_us"`
	StepsPerSec   float64 `csv:"steps_per_sec"`
	FPS           float64 `csv:"fps"`
	GravityPct    float64 `csv:"gravity_pct"`
	DiffusionPct  float64 `csv:"diffusion_pct"`
	SaturationPct float64 `csv:"saturation_pct"`
	RelaxationPct float64 `csv:"relaxation_pct"`
	MovementPct   float64 `csv:"movement_pct"`
	SnapshotPct   float64 `csv:"snapshot_pct"`
	TelemetryPct  float64 `csv:"telemetry_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(windowEnd int) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:     windowEnd,
		AvgStepUS:     s.AvgStepDuration.Microseconds(),
		MinStepUS:     s.MinStepDuration.Microseconds(),
		MaxStepUS:     s.MaxStepDuration.Microseconds(),
		StepsPerSec:   s.StepsPerSecond,
		FPS:           s.FPS,
		GravityPct:    s.PhasePct[systems.PhaseGravity],
		DiffusionPct:  s.PhasePct[systems.PhaseDiffusion],
		SaturationPct: s.PhasePct[systems.PhaseSaturation],
		RelaxationPct: s.PhasePct[systems.PhaseRelaxation],
		MovementPct:   s.PhasePct[systems.PhaseMovement],
		SnapshotPct:   s.PhasePct[systems.PhaseSnapshot],
		TelemetryPct:  s.PhasePct[PhaseTelemetry],
	}
}
