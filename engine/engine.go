// Package engine drives a simulator through a run: field loading, the
// iteration loop, snapshot frames and every telemetry sink.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/pthm-cable/cellflow/config"
	"github.com/pthm-cable/cellflow/field"
	"github.com/pthm-cable/cellflow/numeric"
	"github.com/pthm-cable/cellflow/registry"
	"github.com/pthm-cable/cellflow/store"
	"github.com/pthm-cable/cellflow/systems"
	"github.com/pthm-cable/cellflow/telemetry"
)

// dbBatch is the number of iterations buffered before a ledger write.
const dbBatch = 100

// Options configures a run.
type Options struct {
	Config   *config.Config     // nil = config.Cfg()
	Registry *registry.Registry // nil = registry.Default()

	Seed  int64 // 0 = run.seed from config
	Steps int   // total iterations; 0 = run.steps from config

	LogStats    bool
	OutputDir   string // CSV telemetry, effective config, frames file
	SnapshotDir string // JSON checkpoints
	DBPath      string // SQLite run ledger
	ResumePath  string // checkpoint to continue from

	// Frames receives snapshot frames when they are not written to a file
	// under OutputDir. nil drops them.
	Frames io.Writer

	// StatsCallback, if set, receives every flushed window.
	StatsCallback func(telemetry.WindowStats)
}

// Engine holds the complete state of one run.
type Engine struct {
	cfg   *config.Config
	runID uuid.UUID
	seed  int64
	steps int
	types systems.Types
	size  field.Size

	sim systems.Runner
	src *numeric.Source

	// Telemetry
	collector        *telemetry.Collector
	perfCollector    *telemetry.PerfCollector
	bookmarkDetector *telemetry.BookmarkDetector
	outputManager    *telemetry.OutputManager
	statsCallback    func(telemetry.WindowStats)
	logStats         bool
	snapshotDir      string

	db      *store.DB
	pending []systems.StepStats

	frames      io.Writer
	frameCount  int
	started     time.Time
	resumedFrom int
	finished    bool
}

// New builds a run from options: it resolves the numeric kinds against the
// registry, loads or generates the field, restores a checkpoint when asked
// and opens every configured sink.
func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}
	reg := opts.Registry
	if reg == nil {
		reg = registry.Default()
	}

	e := &Engine{
		cfg:   cfg,
		runID: uuid.New(),
		seed:  opts.Seed,
		steps: opts.Steps,
		types: systems.Types{
			Pressure: cfg.Derived.Pressure,
			Velocity: cfg.Derived.Velocity,
			Flow:     cfg.Derived.Flow,
		},
		size:             cfg.Derived.Size,
		collector:        telemetry.NewCollector(cfg.Telemetry.StatsWindow),
		perfCollector:    telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
		bookmarkDetector: telemetry.NewBookmarkDetector(cfg.Telemetry.BookmarkHistorySize),
		statsCallback:    opts.StatsCallback,
		logStats:         opts.LogStats,
		snapshotDir:      opts.SnapshotDir,
		started:          time.Now(),
	}
	if e.seed == 0 {
		e.seed = cfg.Run.Seed
	}
	if e.steps == 0 {
		e.steps = cfg.Run.Steps
	}

	rows, err := loadField(cfg, e.size)
	if err != nil {
		return nil, err
	}

	simOpts := systems.Options{MaxFlowRounds: cfg.Run.MaxFlowRounds}
	e.sim, err = reg.Create(e.types, e.size, cfg.Grid.AllowDynamic, cfg.Derived.Densities, simOpts)
	if err != nil {
		return nil, err
	}
	if err := e.sim.Grid().Load(rows); err != nil {
		e.sim.Release()
		return nil, err
	}
	e.sim.Grid().ComputeOpenNeighbors()
	e.src = numeric.NewSource(e.seed)

	if opts.ResumePath != "" {
		if err := e.resume(opts.ResumePath); err != nil {
			e.sim.Release()
			return nil, err
		}
	}

	if err := e.openSinks(opts); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

// loadField picks the field map: an explicit file, then the generator, then
// the embedded default map.
func loadField(cfg *config.Config, size field.Size) ([]string, error) {
	switch {
	case cfg.Grid.FieldPath != "":
		return field.LoadMapFile(cfg.Grid.FieldPath)
	case cfg.Grid.Generate.Enabled:
		return field.Generate(size, cfg.Grid.Generate.GenConfig()), nil
	case size == field.DefaultSize:
		return field.DefaultMap(), nil
	}
	return nil, fmt.Errorf("%w: no field map for size %s (set grid.field_path or enable grid.generate)", field.ErrBadMap, size)
}

// resume restores simulator state and the random stream from a checkpoint.
func (e *Engine) resume(path string) error {
	snap, err := telemetry.LoadSnapshot(path)
	if err != nil {
		return err
	}
	if err := snap.Validate(e.types, e.size); err != nil {
		return fmt.Errorf("resume %s: %w", path, err)
	}
	if err := e.sim.Restore(snap.State); err != nil {
		return fmt.Errorf("resume %s: %w", path, err)
	}
	if err := e.src.UnmarshalBinary(snap.Source); err != nil {
		return fmt.Errorf("resume %s: %w", path, err)
	}
	e.seed = snap.Seed
	e.resumedFrom = snap.State.Iteration
	e.collector = telemetry.NewCollectorAt(e.cfg.Telemetry.StatsWindow, snap.State.Iteration)
	slog.Info("resumed from checkpoint",
		"path", path,
		"parent_run", snap.RunID,
		"iteration", snap.State.Iteration,
		"draws", e.src.Draws(),
	)
	return nil
}

func (e *Engine) openSinks(opts Options) error {
	framesFile := ""
	if e.cfg.Output.Frames {
		framesFile = e.cfg.Output.FramesFile
	}
	om, err := telemetry.NewOutputManager(opts.OutputDir, framesFile)
	if err != nil {
		return err
	}
	e.outputManager = om
	if err := om.WriteConfig(e.cfg); err != nil {
		return err
	}
	if err := om.WriteDensities(e.cfg.Derived.Densities); err != nil {
		return err
	}

	if e.cfg.Output.Frames {
		e.frames = opts.Frames
		if w := om.Frames(); w != nil {
			e.frames = w
		}
	}

	if opts.DBPath != "" {
		db, err := store.Open(opts.DBPath)
		if err != nil {
			return err
		}
		e.db = db
		if err := db.BeginRun(e.runID, e.seed, e.types, e.size.String(), e.started); err != nil {
			return err
		}
	}
	return nil
}

// RunID returns the run identifier used in the ledger and checkpoints.
func (e *Engine) RunID() uuid.UUID { return e.runID }

// Seed returns the seed of the random stream.
func (e *Engine) Seed() int64 { return e.seed }

// Steps returns the iteration count the run stops at.
func (e *Engine) Steps() int { return e.steps }

// Types returns the numeric kinds of the run.
func (e *Engine) Types() systems.Types { return e.types }

// Size returns the grid size.
func (e *Engine) Size() field.Size { return e.size }

// Runner exposes the simulator, for the viewer.
func (e *Engine) Runner() systems.Runner { return e.sim }

// Iteration returns the number of completed iterations.
func (e *Engine) Iteration() int { return e.sim.Iteration() }

// Frames returns the number of snapshot frames emitted so far.
func (e *Engine) Frames() int { return e.frameCount }

// Done reports whether the run reached its iteration count.
func (e *Engine) Done() bool { return e.sim.Iteration() >= e.steps }

// PerfStats returns the rolling step timing.
func (e *Engine) PerfStats() telemetry.PerfStats { return e.perfCollector.Stats() }

// RecordFrame records viewer frame timing.
func (e *Engine) RecordFrame() { e.perfCollector.RecordFrame() }

// Run iterates until the configured count is reached, the context is
// cancelled or an invariant breaks. Cancellation is checked between
// iterations only. The run is finished (sinks flushed, ledger closed out)
// before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	if !e.sim.Ready() {
		slog.Warn("nothing to simulate: air density or pressure infinity is zero",
			"types", e.types.String(),
		)
		return e.Finish(nil)
	}

	slog.Info("run started",
		"run_id", e.runID,
		"types", e.types.String(),
		"size", e.size.String(),
		"seed", e.seed,
		"steps", humanize.Comma(int64(e.steps)),
		"from", e.sim.Iteration(),
	)

	for !e.Done() {
		if err := ctx.Err(); err != nil {
			return e.Finish(err)
		}
		if _, err := e.Step(); err != nil {
			return e.Finish(err)
		}
	}
	return e.Finish(nil)
}

// Step runs one iteration and feeds every sink. It returns the simulator
// error unchanged, or a sink error.
func (e *Engine) Step() (systems.StepStats, error) {
	e.perfCollector.StartStep()
	stats, err := e.sim.Step(e.src, e.perfCollector)
	if err != nil {
		e.perfCollector.EndStep()
		return stats, err
	}

	e.perfCollector.StartPhase(systems.PhaseSnapshot)
	if stats.Snapshot() {
		if err := e.emitFrame(stats.Iteration); err != nil {
			e.perfCollector.EndStep()
			return stats, err
		}
	}

	e.perfCollector.StartPhase(telemetry.PhaseTelemetry)
	err = e.recordIteration(stats)
	e.perfCollector.EndStep()
	return stats, err
}

// Finish closes the run exactly once: pending telemetry is flushed, a final
// checkpoint is saved when a snapshot directory is set, the ledger row is
// closed and every sink is released. It returns runErr, or the first
// sink error when runErr is nil.
func (e *Engine) Finish(runErr error) error {
	if e.finished {
		return runErr
	}
	e.finished = true

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if e.collector.Pending() {
		keep(e.flushWindow())
	}
	if e.snapshotDir != "" && !errors.Is(runErr, systems.ErrInvariant) {
		keep(e.saveSnapshot(nil))
	}

	if e.db != nil {
		keep(e.flushLedger())
		status := store.StatusCompleted
		switch {
		case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
			status = store.StatusCancelled
		case runErr != nil:
			status = store.StatusFailed
		}
		keep(e.db.FinishRun(e.runID, status, e.sim.Iteration(), runErr, time.Now()))
	}

	elapsed := time.Since(e.started)
	slog.Info("run finished",
		"run_id", e.runID,
		"iterations", humanize.Comma(int64(e.sim.Iteration()-e.resumedFrom)),
		"frames", humanize.Comma(int64(e.frameCount)),
		"elapsed", elapsed.Round(time.Millisecond).String(),
		"error", runErr,
	)

	keep(e.Close())
	if runErr != nil {
		return runErr
	}
	return firstErr
}

// Close releases the sinks and the grid. Finish calls it; callers that
// never run the engine call it directly.
func (e *Engine) Close() error {
	var firstErr error
	if err := e.outputManager.Close(); err != nil {
		firstErr = err
	}
	e.outputManager = nil
	if e.db != nil {
		if err := e.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		e.db = nil
	}
	if e.sim != nil {
		e.sim.Release()
	}
	return firstErr
}
