package engine

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/cellflow/systems"
	"github.com/pthm-cable/cellflow/telemetry"
)

// emitFrame writes the grid, one line per row, to the frame sink and the
// ledger.
func (e *Engine) emitFrame(iteration int) error {
	e.frameCount++
	if e.frames != nil {
		if _, err := e.sim.Grid().WriteTo(e.frames); err != nil {
			return fmt.Errorf("writing frame %d: %w", iteration, err)
		}
	}
	if e.db != nil {
		if err := e.db.SaveFrame(e.runID, iteration, e.sim.Grid().Rows()); err != nil {
			return err
		}
	}
	return nil
}

// recordIteration feeds one step to the per-iteration sinks and flushes the
// stats window when it is full.
func (e *Engine) recordIteration(stats systems.StepStats) error {
	if err := e.outputManager.WriteIteration(stats); err != nil {
		return err
	}
	e.collector.Record(stats)

	if e.db != nil {
		e.pending = append(e.pending, stats)
		if len(e.pending) >= dbBatch {
			if err := e.flushLedger(); err != nil {
				return err
			}
		}
	}

	if !e.collector.ShouldFlush() {
		return nil
	}
	return e.flushWindow()
}

// flushLedger writes buffered iterations to the run ledger.
func (e *Engine) flushLedger() error {
	if err := e.db.SaveIterations(e.runID, e.pending); err != nil {
		return err
	}
	e.pending = e.pending[:0]
	return nil
}

// flushWindow closes the current stats window and handles bookmarks.
func (e *Engine) flushWindow() error {
	stats := e.collector.Flush(e.sim.Iteration(), e.samplePressures())
	perfStats := e.perfCollector.Stats()

	if e.statsCallback != nil {
		e.statsCallback(stats)
	}

	if e.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if err := e.outputManager.WriteWindow(stats); err != nil {
		return err
	}
	if err := e.outputManager.WritePerf(perfStats, stats.WindowEnd); err != nil {
		return err
	}

	for _, bm := range e.bookmarkDetector.Check(stats) {
		if e.logStats {
			bm.LogBookmark()
		}
		if err := e.outputManager.WriteBookmark(bm); err != nil {
			return err
		}
		if e.snapshotDir != "" {
			if err := e.saveSnapshot(&bm); err != nil {
				return err
			}
		}
	}
	return nil
}

// samplePressures collects the pressure of every open cell.
func (e *Engine) samplePressures() []float64 {
	g := e.sim.Grid()
	sp := g.Species()
	out := make([]float64, 0, len(sp))
	for i := range sp {
		if !g.IsWall(i) {
			out = append(out, e.sim.Pressure(i))
		}
	}
	return out
}

// saveSnapshot writes a resumable checkpoint of the current state.
func (e *Engine) saveSnapshot(bookmark *telemetry.Bookmark) error {
	snapshot, err := e.createSnapshot(bookmark)
	if err != nil {
		return err
	}

	path, err := telemetry.SaveSnapshot(snapshot, e.snapshotDir)
	if err != nil {
		return err
	}

	slog.Info("snapshot saved", "path", path, "iteration", snapshot.State.Iteration)
	return nil
}

// createSnapshot builds a checkpoint from the current state.
func (e *Engine) createSnapshot(bookmark *telemetry.Bookmark) (*telemetry.Snapshot, error) {
	source, err := e.src.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encoding random source: %w", err)
	}
	return &telemetry.Snapshot{
		Version:  telemetry.SnapshotVersion,
		RunID:    e.runID,
		Seed:     e.seed,
		Types:    e.types,
		Size:     e.size,
		Source:   source,
		State:    e.sim.State(),
		Bookmark: bookmark,
	}, nil
}
