// Package store keeps a SQLite ledger of simulation runs: one row per run,
// its per-iteration stats and the snapshot frames it emitted.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/pthm-cable/cellflow/systems"
)

// ErrNotFound is returned when a run id is not in the ledger.
var ErrNotFound = errors.New("store: run not found")

// Run status values.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Run is one row of the runs table. Times are unix milliseconds.
type Run struct {
	ID         uuid.UUID `db:"id"`
	StartedAt  int64     `db:"started_at"`
	FinishedAt int64     `db:"finished_at"`
	Seed       int64     `db:"seed"`
	Pressure   string    `db:"pressure"`
	Velocity   string    `db:"velocity"`
	Flow       string    `db:"flow"`
	Size       string    `db:"size"`
	Steps      int       `db:"steps"`
	Status     string    `db:"status"`
	Error      string    `db:"error"`
}

// Started returns StartedAt as a time.
func (r Run) Started() time.Time { return time.UnixMilli(r.StartedAt) }

// Duration returns the wall time of a finished run, zero while running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt == 0 {
		return 0
	}
	return time.Duration(r.FinishedAt-r.StartedAt) * time.Millisecond
}

// Frame is one stored snapshot frame.
type Frame struct {
	Iteration int    `db:"iteration"`
	Grid      string `db:"grid"`
}

// Rows splits the frame back into grid rows.
func (f Frame) Rows() []string { return strings.Split(f.Grid, "\n") }

// DB wraps a SQLite connection for the run ledger.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL DEFAULT 0,
		seed INTEGER NOT NULL,
		pressure TEXT NOT NULL,
		velocity TEXT NOT NULL,
		flow TEXT NOT NULL,
		size TEXT NOT NULL,
		steps INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS iterations (
		run_id TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		chains INTEGER NOT NULL,
		moved INTEGER NOT NULL,
		rotated INTEGER NOT NULL,
		flow_rounds INTEGER NOT NULL,
		total_delta_p REAL NOT NULL,
		occupied INTEGER NOT NULL,
		PRIMARY KEY (run_id, iteration)
	);

	CREATE TABLE IF NOT EXISTS frames (
		run_id TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		grid TEXT NOT NULL,
		PRIMARY KEY (run_id, iteration)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// BeginRun records a new run in the running state.
func (db *DB) BeginRun(id uuid.UUID, seed int64, types systems.Types, size string, started time.Time) error {
	_, err := db.conn.Exec(`INSERT INTO runs
		(id, started_at, seed, pressure, velocity, flow, size, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, started.UnixMilli(), seed,
		types.Pressure.String(), types.Velocity.String(), types.Flow.String(),
		size, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", id, err)
	}
	return nil
}

// FinishRun closes a run with its final status and iteration count.
// runErr may be nil.
func (db *DB) FinishRun(id uuid.UUID, status string, steps int, runErr error, finished time.Time) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := db.conn.Exec(`UPDATE runs
		SET finished_at = ?, status = ?, steps = ?, error = ?
		WHERE id = ?`,
		finished.UnixMilli(), status, steps, msg, id,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// SaveIterations appends per-iteration stats in one transaction.
func (db *DB) SaveIterations(runID uuid.UUID, stats []systems.StepStats) error {
	if len(stats) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO iterations
		(run_id, iteration, chains, moved, rotated, flow_rounds, total_delta_p, occupied)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range stats {
		_, err := stmt.Exec(runID, s.Iteration, s.Chains, s.Moved, s.Rotated,
			s.FlowRounds, s.TotalDeltaP, s.Occupied)
		if err != nil {
			return fmt.Errorf("insert iteration %d: %w", s.Iteration, err)
		}
	}
	return tx.Commit()
}

// SaveFrame stores one snapshot frame.
func (db *DB) SaveFrame(runID uuid.UUID, iteration int, rows []string) error {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO frames (run_id, iteration, grid) VALUES (?, ?, ?)`,
		runID, iteration, strings.Join(rows, "\n"))
	if err != nil {
		return fmt.Errorf("insert frame %d: %w", iteration, err)
	}
	return nil
}

// GetRun loads a run by id.
func (db *DB) GetRun(id uuid.UUID) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT * FROM runs WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return r, err
	}
	return r, nil
}

// RecentRuns returns up to limit runs, newest first.
func (db *DB) RecentRuns(limit int) ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs,
		"SELECT * FROM runs ORDER BY started_at DESC, id LIMIT ?", limit)
	return runs, err
}

// iterationRow mirrors systems.StepStats with column names.
type iterationRow struct {
	RunID       uuid.UUID `db:"run_id"`
	Iteration   int       `db:"iteration"`
	Chains      int       `db:"chains"`
	Moved       int       `db:"moved"`
	Rotated     int       `db:"rotated"`
	FlowRounds  int       `db:"flow_rounds"`
	TotalDeltaP float64   `db:"total_delta_p"`
	Occupied    int       `db:"occupied"`
}

// Iterations returns the stored stats of a run in iteration order.
func (db *DB) Iterations(runID uuid.UUID) ([]systems.StepStats, error) {
	var rows []iterationRow
	err := db.conn.Select(&rows,
		"SELECT * FROM iterations WHERE run_id = ? ORDER BY iteration", runID)
	if err != nil {
		return nil, err
	}
	out := make([]systems.StepStats, len(rows))
	for i, r := range rows {
		out[i] = systems.StepStats{
			Iteration:   r.Iteration,
			Chains:      r.Chains,
			Moved:       r.Moved,
			Rotated:     r.Rotated,
			FlowRounds:  r.FlowRounds,
			TotalDeltaP: r.TotalDeltaP,
			Occupied:    r.Occupied,
		}
	}
	return out, nil
}

// Frames returns the stored frames of a run in iteration order.
func (db *DB) Frames(runID uuid.UUID) ([]Frame, error) {
	var frames []Frame
	err := db.conn.Select(&frames,
		"SELECT iteration, grid FROM frames WHERE run_id = ? ORDER BY iteration", runID)
	return frames, err
}
