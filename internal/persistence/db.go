// Package persistence records simulation runs in SQLite.
// The run log is written for later inspection and never read back to
// resume a run.
package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/geo-schelling/internal/engine"
	"github.com/talgya/geo-schelling/internal/world"
)

// DB wraps a SQLite connection holding the run log.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
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
		seed INTEGER NOT NULL,
		density REAL NOT NULL,
		minority_fraction REAL NOT NULL,
		regions INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		converged INTEGER NOT NULL DEFAULT 0,
		steps INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS steps (
		run_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		happy INTEGER NOT NULL,
		occupied INTEGER NOT NULL,
		moves INTEGER NOT NULL,
		running INTEGER NOT NULL,
		PRIMARY KEY (run_id, step)
	);

	CREATE TABLE IF NOT EXISTS regions (
		run_id TEXT NOT NULL,
		region_id TEXT NOT NULL,
		type TEXT NOT NULL,
		neighbors INTEGER NOT NULL,
		PRIMARY KEY (run_id, region_id)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Run is one row of the runs table.
type Run struct {
	ID               string  `db:"id" json:"id"`
	Seed             int64   `db:"seed" json:"seed"`
	Density          float64 `db:"density" json:"density"`
	MinorityFraction float64 `db:"minority_fraction" json:"minority_fraction"`
	Regions          int     `db:"regions" json:"regions"`
	StartedAt        string  `db:"started_at" json:"started_at"`
	Converged        bool    `db:"converged" json:"converged"`
	Steps            int     `db:"steps" json:"steps"`
}

// RegionState is the final type of one region in a run.
type RegionState struct {
	RegionID  string `db:"region_id" json:"id"`
	Type      string `db:"type" json:"type"`
	Neighbors int    `db:"neighbors" json:"neighbors"`
}

// RunLog writes the steps and final state of a single run.
type RunLog struct {
	db *DB
	ID string
}

// StartRun inserts a new run row for sim and returns its log.
func (db *DB) StartRun(sim *engine.Simulation) (*RunLog, error) {
	cfg := sim.Config()
	id := uuid.NewString()
	_, err := db.conn.Exec(`INSERT INTO runs
		(id, seed, density, minority_fraction, regions, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, sim.Seed(), cfg.Density, cfg.MinorityFraction, sim.Space.Len(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	slog.Info("run log started", "run_id", id, "seed", sim.Seed())
	return &RunLog{db: db, ID: id}, nil
}

// RecordStep appends one step. It has the engine.StepHook signature.
func (l *RunLog) RecordStep(ctx context.Context, rec engine.StepRecord) error {
	_, err := l.db.conn.ExecContext(ctx,
		"INSERT INTO steps (run_id, step, happy, occupied, moves, running) VALUES (?, ?, ?, ?, ?, ?)",
		l.ID, rec.Step, rec.Happy, rec.Occupied, rec.Moves, rec.Running,
	)
	if err != nil {
		return fmt.Errorf("insert step %d: %w", rec.Step, err)
	}
	return nil
}

// Export implements engine.Exporter by storing every region's final type.
func (l *RunLog) Export(ctx context.Context, space *world.Space) error {
	tx, err := l.db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex("INSERT OR REPLACE INTO regions (run_id, region_id, type, neighbors) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range space.Regions() {
		if _, err := stmt.Exec(l.ID, r.ID, r.Type.String(), len(space.Neighbors(r))); err != nil {
			return fmt.Errorf("insert region %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("final state exported", "format", "sqlite", "run_id", l.ID, "regions", space.Len())
	return nil
}

// Finish stores the run outcome.
func (l *RunLog) Finish(res engine.Result) error {
	_, err := l.db.conn.Exec("UPDATE runs SET converged = ?, steps = ? WHERE id = ?",
		res.Converged, res.Steps, l.ID)
	return err
}

// Runs returns every run, most recent first.
func (db *DB) Runs() ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs, "SELECT * FROM runs ORDER BY started_at DESC, rowid DESC")
	return runs, err
}

// GetRun returns one run by id.
func (db *DB) GetRun(id string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT * FROM runs WHERE id = ?", id)
	return r, err
}

// Steps returns the step series of a run in order.
func (db *DB) Steps(runID string) ([]engine.StepRecord, error) {
	var rows []struct {
		Step     int  `db:"step"`
		Happy    int  `db:"happy"`
		Occupied int  `db:"occupied"`
		Moves    int  `db:"moves"`
		Running  bool `db:"running"`
	}
	if err := db.conn.Select(&rows,
		"SELECT step, happy, occupied, moves, running FROM steps WHERE run_id = ? ORDER BY step",
		runID,
	); err != nil {
		return nil, err
	}
	out := make([]engine.StepRecord, len(rows))
	for i, r := range rows {
		out[i] = engine.StepRecord(r)
	}
	return out, nil
}

// Regions returns the final region states of a run ordered by region id.
func (db *DB) Regions(runID string) ([]RegionState, error) {
	var rs []RegionState
	err := db.conn.Select(&rs,
		"SELECT region_id, type, neighbors FROM regions WHERE run_id = ? ORDER BY region_id",
		runID,
	)
	return rs, err
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}
