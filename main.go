package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pthm-cable/cellflow/config"
	"github.com/pthm-cable/cellflow/engine"
	"github.com/pthm-cable/cellflow/registry"
	"github.com/pthm-cable/cellflow/renderer"
	"github.com/pthm-cable/cellflow/systems"
)

func main() {
	os.Exit(run())
}

func run() int {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	pType := flag.String("p-type", "", "Pressure type, e.g. FAST_FIXED(32,16) (empty = use config)")
	vType := flag.String("v-type", "", "Velocity type, e.g. FIXED(31,17) (empty = use config)")
	flowType := flag.String("v-flow-type", "", "Flow type, e.g. DOUBLE (empty = use config)")
	size := flag.String("size", "", "Grid size S(rows,cols) (empty = use config)")
	steps := flag.Int("steps", 0, "Iterations to run (0 = use config)")
	seed := flag.Int64("seed", 0, "Random seed (0 = use config)")
	fieldPath := flag.String("field", "", "Field map file (empty = config, generator or embedded map)")
	headless := flag.Bool("headless", true, "Run without graphics")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, config and frames")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for checkpoint files")
	dbPath := flag.String("db", "", "SQLite run ledger path")
	resume := flag.String("resume", "", "Checkpoint file to continue from")
	logStats := flag.Bool("log-stats", false, "Output window stats via slog")

	flag.Parse()

	cfg, err := loadConfig(*configPath, *pType, *vType, *flowType, *size, *fieldPath)

	// Frames go to stdout unless an output directory collects them, in which
	// case stdout stays free for logs.
	framesToStdout := *outputDir == "" && *headless
	logOut := io.Writer(os.Stdout)
	if framesToStdout {
		logOut = os.Stderr
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(logOut, nil)))

	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	opts := engine.Options{
		Config:      cfg,
		Seed:        *seed,
		Steps:       *steps,
		LogStats:    *logStats,
		OutputDir:   *outputDir,
		SnapshotDir: *snapshotDir,
		DBPath:      *dbPath,
		ResumePath:  *resume,
	}
	var stdout *bufio.Writer
	if framesToStdout {
		stdout = bufio.NewWriter(os.Stdout)
		defer stdout.Flush()
		opts.Frames = stdout
	}

	e, err := engine.New(opts)
	if err != nil {
		if errors.Is(err, registry.ErrUnsupported) {
			slog.Error("unsupported configuration", "error", err,
				"types", cfg.Types, "size", cfg.Grid.Size,
				"compiled", len(registry.Default().Keys()))
		} else {
			slog.Error("failed to start run", "error", err)
		}
		return 1
	}

	slog.Info("configuration",
		"p_type", e.Types().Pressure.String(),
		"v_type", e.Types().Velocity.String(),
		"v_flow_type", e.Types().Flow.String(),
		"size", e.Size().String(),
		"seed", e.Seed(),
		"steps", e.Steps(),
		"run_id", e.RunID(),
		"headless", *headless,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *headless {
		err = e.Run(ctx)
	} else {
		err = renderer.NewViewer(e, cfg.Viewer).Run(ctx)
	}

	var inv *systems.InvariantError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		slog.Info("run interrupted", "iteration", e.Iteration())
		return 0
	case errors.As(err, &inv):
		slog.Error("invariant violated",
			"error", err,
			"iteration", inv.Iteration,
			"phase", inv.Phase,
			"row", inv.Row,
			"col", inv.Col,
		)
		return 1
	default:
		slog.Error("run failed", "error", err)
		return 1
	}
}

// loadConfig overlays the config file on the defaults, then the command-line
// overrides on both.
func loadConfig(path, pType, vType, flowType, size, fieldPath string) (*config.Config, error) {
	if err := config.Init(path); err != nil {
		return nil, err
	}
	cfg := config.Cfg()

	if pType != "" {
		cfg.Types.Pressure = pType
	}
	if vType != "" {
		cfg.Types.Velocity = vType
	}
	if flowType != "" {
		cfg.Types.Flow = flowType
	}
	if size != "" {
		cfg.Grid.Size = size
	}
	if fieldPath != "" {
		cfg.Grid.FieldPath = fieldPath
	}
	if err := cfg.ComputeDerived(); err != nil {
		return nil, err
	}
	return cfg, nil
}
