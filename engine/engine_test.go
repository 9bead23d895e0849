package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/cellflow/config"
	"github.com/pthm-cable/cellflow/field"
	"github.com/pthm-cable/cellflow/registry"
	"github.com/pthm-cable/cellflow/store"
	"github.com/pthm-cable/cellflow/systems"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Telemetry.StatsWindow = 5
	return cfg
}

// runSteps steps e up to n iterations or the first error.
func runSteps(e *Engine, n int) ([]systems.StepStats, error) {
	var out []systems.StepStats
	for e.Iteration() < n {
		stats, err := e.Step()
		if err != nil {
			return out, err
		}
		out = append(out, stats)
	}
	return out, nil
}

func TestRunDeterministic(t *testing.T) {
	run := func() (string, int, error) {
		var frames bytes.Buffer
		e, err := New(Options{Config: testConfig(t), Steps: 15, Frames: &frames})
		require.NoError(t, err)
		err = e.Run(context.Background())
		return frames.String(), e.Frames(), err
	}

	framesA, countA, errA := run()
	framesB, countB, errB := run()

	if errA != nil {
		require.ErrorIs(t, errA, systems.ErrInvariant)
		require.EqualError(t, errB, errA.Error())
	} else {
		require.NoError(t, errB)
	}
	assert.Equal(t, framesA, framesB)
	assert.Equal(t, countA, countB)
	assert.Equal(t, countA*field.DefaultSize.Rows, strings.Count(framesA, "\n"))
}

func TestRunOutputs(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	dbPath := filepath.Join(dir, "runs.db")

	e, err := New(Options{Config: testConfig(t), Steps: 12, OutputDir: outDir, DBPath: dbPath})
	require.NoError(t, err)
	id := e.RunID()
	runErr := e.Run(context.Background())
	iterations := e.Iteration()
	if runErr != nil {
		require.ErrorIs(t, runErr, systems.ErrInvariant)
	} else {
		assert.Equal(t, 12, iterations)
	}

	for _, name := range []string{"config.yaml", "densities.csv", "iterations.csv", "windows.csv", "perf.csv", "bookmarks.csv", "frames.txt"} {
		assert.FileExists(t, filepath.Join(outDir, name))
	}
	data, err := os.ReadFile(filepath.Join(outDir, "iterations.csv"))
	require.NoError(t, err)
	assert.Equal(t, iterations+1, strings.Count(string(data), "\n"), "header plus one row per iteration")

	frames, err := os.ReadFile(filepath.Join(outDir, "frames.txt"))
	require.NoError(t, err)
	assert.Equal(t, e.Frames()*field.DefaultSize.Rows, strings.Count(string(frames), "\n"))

	db, err := store.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()
	run, err := db.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, iterations, run.Steps)
	if runErr != nil {
		assert.Equal(t, store.StatusFailed, run.Status)
		assert.NotEmpty(t, run.Error)
	} else {
		assert.Equal(t, store.StatusCompleted, run.Status)
	}
	stored, err := db.Iterations(id)
	require.NoError(t, err)
	assert.Len(t, stored, iterations)
	storedFrames, err := db.Frames(id)
	require.NoError(t, err)
	assert.Len(t, storedFrames, e.Frames())
}

func TestRunNoOpWithoutAirDensity(t *testing.T) {
	cfg := testConfig(t)
	rho := cfg.Derived.Densities
	rho[field.Empty] = 0
	cfg.SetDensities(rho)

	var frames bytes.Buffer
	e, err := New(Options{Config: cfg, Steps: 10, Frames: &frames})
	require.NoError(t, err)
	require.NoError(t, e.Run(context.Background()))
	assert.Zero(t, e.Iteration())
	assert.Zero(t, frames.Len())
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e, err := New(Options{Config: testConfig(t), Steps: 10, SnapshotDir: dir, DBPath: filepath.Join(dir, "runs.db")})
	require.NoError(t, err)
	id := e.RunID()
	err = e.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, e.Iteration())
	assert.FileExists(t, filepath.Join(dir, "snapshot_0.json"))

	db, err := store.Open(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer db.Close()
	run, err := db.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCancelled, run.Status)
}

func TestResumeMatchesUninterruptedRun(t *testing.T) {
	const total = 12

	var framesA bytes.Buffer
	a, err := New(Options{Config: testConfig(t), Steps: total, Frames: &framesA})
	require.NoError(t, err)
	statsA, errA := runSteps(a, total)
	reached := a.Iteration()
	finalA := a.Runner().State()
	require.NoError(t, a.Close())
	split := reached / 2

	// Interrupted half, checkpointed by Finish.
	dir := t.TempDir()
	var framesB bytes.Buffer
	b, err := New(Options{Config: testConfig(t), Steps: split, Frames: &framesB, SnapshotDir: dir})
	require.NoError(t, err)
	statsB, err := runSteps(b, split)
	require.NoError(t, err)
	require.NoError(t, b.Finish(nil))
	checkpoint := filepath.Join(dir, fmt.Sprintf("snapshot_%d.json", split))
	require.FileExists(t, checkpoint)

	var framesC bytes.Buffer
	c, err := New(Options{Config: testConfig(t), Steps: total, Frames: &framesC, ResumePath: checkpoint})
	require.NoError(t, err)
	require.Equal(t, split, c.Iteration())
	statsC, errC := runSteps(c, total)
	finalC := c.Runner().State()
	require.NoError(t, c.Close())

	if errA != nil {
		require.EqualError(t, errC, errA.Error())
	} else {
		require.NoError(t, errC)
	}
	assert.Equal(t, statsA, append(statsB, statsC...))
	assert.Equal(t, framesA.String(), framesB.String()+framesC.String())
	assert.Equal(t, finalA, finalC)
}

func TestResumeRejectsMismatch(t *testing.T) {
	dir := t.TempDir()
	e, err := New(Options{Config: testConfig(t), Steps: 1, SnapshotDir: dir})
	require.NoError(t, err)
	require.NoError(t, e.Finish(nil))

	cfg := testConfig(t)
	cfg.Types.Flow = "FLOAT"
	require.NoError(t, cfg.ComputeDerived())
	_, err = New(Options{Config: cfg, ResumePath: filepath.Join(dir, "snapshot_0.json")})
	assert.Error(t, err)
}

func TestNewRejectsConfiguration(t *testing.T) {
	t.Run("unsupported types", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Types.Pressure = "FIXED(40,8)"
		require.NoError(t, cfg.ComputeDerived())
		_, err := New(Options{Config: cfg})
		assert.ErrorIs(t, err, registry.ErrUnsupported)
	})
	t.Run("size without map", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Grid.Size = "S(10,10)"
		require.NoError(t, cfg.ComputeDerived())
		_, err := New(Options{Config: cfg})
		assert.ErrorIs(t, err, field.ErrBadMap)
	})
	t.Run("map size mismatch", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "small.txt")
		require.NoError(t, os.WriteFile(path, []byte("#####\n#.  #\n#####\n"), 0644))
		cfg := testConfig(t)
		cfg.Grid.FieldPath = path
		_, err := New(Options{Config: cfg})
		assert.ErrorIs(t, err, field.ErrBadMap)
	})
}

func TestGeneratedAndFileFields(t *testing.T) {
	cfg := testConfig(t)
	cfg.Grid.Size = "S(14,5)"
	cfg.Grid.Generate.Enabled = true
	require.NoError(t, cfg.ComputeDerived())
	e, err := New(Options{Config: cfg, Steps: 3})
	require.NoError(t, err)
	assert.Equal(t, field.Dense, e.Runner().Grid().Storage())
	require.NoError(t, e.Close())

	// A corridor at rest never starts a chain, so no frame is written. The
	// pressure kind must hold uniform draws in [0, 1) for a zero propensity
	// to lose every draw.
	path := filepath.Join(t.TempDir(), "corridor.txt")
	require.NoError(t, os.WriteFile(path, []byte("#####\n#.  #\n#####\n"), 0644))
	cfg = testConfig(t)
	cfg.Types.Pressure = "DOUBLE"
	cfg.Types.Velocity = "DOUBLE"
	cfg.Grid.Size = "S(3,5)"
	cfg.Grid.FieldPath = path
	require.NoError(t, cfg.ComputeDerived())
	var frames bytes.Buffer
	e, err = New(Options{Config: cfg, Steps: 4, Frames: &frames})
	require.NoError(t, err)
	assert.Equal(t, []string{"#####", "#.  #", "#####"}, e.Runner().Grid().Rows())
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 4, e.Iteration())
	assert.Zero(t, frames.Len())
	assert.Zero(t, e.Frames())
}
