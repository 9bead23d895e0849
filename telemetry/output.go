package telemetry

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/cellflow/config"
	"github.com/pthm-cable/cellflow/field"
	"github.com/pthm-cable/cellflow/systems"
)

// csvTable appends gocsv records to one file, writing the header once.
type csvTable[T any] struct {
	name          string
	file          *os.File
	headerWritten bool
}

func openTable[T any](dir, name string) (*csvTable[T], error) {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return &csvTable[T]{name: name, file: f}, nil
}

func (t *csvTable[T]) write(rec T) error {
	records := []T{rec}
	if !t.headerWritten {
		if err := gocsv.Marshal(records, t.file); err != nil {
			return fmt.Errorf("writing %s: %w", t.name, err)
		}
		t.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, t.file); err != nil {
		return fmt.Errorf("writing %s: %w", t.name, err)
	}
	return nil
}

func (t *csvTable[T]) close() error {
	if t == nil {
		return nil
	}
	return t.file.Close()
}

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir        string
	iterations *csvTable[systems.StepStats]
	windows    *csvTable[WindowStats]
	perf       *csvTable[PerfStatsCSV]
	bookmarks  *csvTable[Bookmark]

	framesFile *os.File
	frames     *bufio.Writer
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled). When framesFile is not
// empty, snapshot frames are collected in that file under dir.
func NewOutputManager(dir, framesFile string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	var err error
	if om.iterations, err = openTable[systems.StepStats](dir, "iterations.csv"); err != nil {
		om.Close()
		return nil, err
	}
	if om.windows, err = openTable[WindowStats](dir, "windows.csv"); err != nil {
		om.Close()
		return nil, err
	}
	if om.perf, err = openTable[PerfStatsCSV](dir, "perf.csv"); err != nil {
		om.Close()
		return nil, err
	}
	if om.bookmarks, err = openTable[Bookmark](dir, "bookmarks.csv"); err != nil {
		om.Close()
		return nil, err
	}

	if framesFile != "" {
		f, err := os.Create(filepath.Join(dir, framesFile))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", framesFile, err)
		}
		om.framesFile = f
		om.frames = bufio.NewWriter(f)
	}

	return om, nil
}

// WriteConfig saves the effective configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteDensities saves the density table the run used as densities.csv.
func (om *OutputManager) WriteDensities(rho field.Densities) error {
	if om == nil {
		return nil
	}
	f, err := os.Create(filepath.Join(om.dir, "densities.csv"))
	if err != nil {
		return fmt.Errorf("creating densities.csv: %w", err)
	}
	if err := rho.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteIteration writes one step record to iterations.csv.
func (om *OutputManager) WriteIteration(stats systems.StepStats) error {
	if om == nil {
		return nil
	}
	return om.iterations.write(stats)
}

// WriteWindow writes a window stats record to windows.csv.
func (om *OutputManager) WriteWindow(stats WindowStats) error {
	if om == nil {
		return nil
	}
	return om.windows.write(stats)
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int) error {
	if om == nil {
		return nil
	}
	return om.perf.write(stats.ToCSV(windowEnd))
}

// WriteBookmark writes a bookmark record to bookmarks.csv.
func (om *OutputManager) WriteBookmark(b Bookmark) error {
	if om == nil {
		return nil
	}
	return om.bookmarks.write(b)
}

// Frames returns the frame sink, or nil when frames are not written to a file.
func (om *OutputManager) Frames() io.Writer {
	if om == nil || om.frames == nil {
		return nil
	}
	return om.frames
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if om.frames != nil {
		keep(om.frames.Flush())
		keep(om.framesFile.Close())
	}
	keep(om.iterations.close())
	keep(om.windows.close())
	keep(om.perf.close())
	keep(om.bookmarks.close())
	return firstErr
}
