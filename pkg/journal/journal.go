// Package journal keeps a SQLite record of tour runs: when each run
// started and finished, the visitor's name, every stage with its timing
// and outcome, and every interrupt pause.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/teslashibe/go-temitour/pkg/interrupt"
	"github.com/teslashibe/go-temitour/pkg/metrics"
	"github.com/teslashibe/go-temitour/pkg/tour"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	started_at   TEXT NOT NULL,
	finished_at  TEXT,
	user_name    TEXT
);

CREATE TABLE IF NOT EXISTS stages (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL,
	stage        TEXT NOT NULL,
	started_at   TEXT NOT NULL,
	elapsed_ms   INTEGER NOT NULL,
	error        TEXT,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS interrupts (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT,
	reason       TEXT NOT NULL,
	triggered_at TEXT NOT NULL,
	paused_ms    INTEGER,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS stages_run ON stages(run_id);
`

// ErrUnknownRun is returned when a run id has no row.
var ErrUnknownRun = errors.New("journal: unknown run")

// Run is one tour run.
type Run struct {
	ID         string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	UserName   string    `json:"user_name,omitempty"`
}

// StageRecord is one stage of a run.
type StageRecord struct {
	Stage     string        `json:"stage"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
	Error     string        `json:"error,omitempty"`
}

// Store writes the journal. It implements tour.Journal and
// interrupt.Recorder.
type Store struct {
	db *sql.DB

	// recordTimeout bounds the interrupt writes, which have no caller ctx.
	recordTimeout time.Duration

	// run and pending tie interrupt rows to the run in progress.
	mu      sync.Mutex
	run     string
	pending int64
}

var (
	_ tour.Journal       = (*Store)(nil)
	_ interrupt.Recorder = (*Store)(nil)
)

// Open opens a SQLite database and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, recordTimeout: 2 * time.Second}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// stampLayout is fixed width so stored times sort as text.
const stampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func stamp(t time.Time) string {
	return t.UTC().Format(stampLayout)
}

func fail(op string, err error) error {
	metrics.JournalErrors.WithLabelValues(op).Inc()
	return fmt.Errorf("journal: %s: %w", op, err)
}

// StartRun inserts a new run and returns its id.
func (s *Store) StartRun(ctx context.Context) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at) VALUES (?, ?)`,
		id, stamp(time.Now()),
	)
	if err != nil {
		return "", fail("start_run", err)
	}
	s.mu.Lock()
	s.run = id
	s.mu.Unlock()
	return id, nil
}

// RecordStage appends one stage to a run.
func (s *Store) RecordStage(ctx context.Context, runID, stage string, started time.Time, elapsed time.Duration, stageErr error) error {
	var msg sql.NullString
	if stageErr != nil {
		msg = sql.NullString{String: stageErr.Error(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stages (run_id, stage, started_at, elapsed_ms, error)
		 VALUES (?, ?, ?, ?, ?)`,
		runID, stage, stamp(started), elapsed.Milliseconds(), msg,
	)
	if err != nil {
		return fail("record_stage", err)
	}
	return nil
}

// SetUserName stores the visitor's name on a run.
func (s *Store) SetUserName(ctx context.Context, runID, name string) error {
	return s.update(ctx, "set_user_name", `UPDATE runs SET user_name = ? WHERE run_id = ?`, name, runID)
}

// FinishRun stamps the run's end time.
func (s *Store) FinishRun(ctx context.Context, runID string) error {
	if err := s.update(ctx, "finish_run", `UPDATE runs SET finished_at = ? WHERE run_id = ?`, stamp(time.Now()), runID); err != nil {
		return err
	}
	s.mu.Lock()
	if s.run == runID {
		s.run = ""
	}
	s.mu.Unlock()
	return nil
}

func (s *Store) update(ctx context.Context, op, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fail(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fail(op, err)
	}
	if n == 0 {
		return fail(op, ErrUnknownRun)
	}
	return nil
}

// InterruptTriggered opens an interrupt row against the current run.
// Failures are counted in metrics.JournalErrors and otherwise dropped.
func (s *Store) InterruptTriggered(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var run sql.NullString
	if s.run != "" {
		run = sql.NullString{String: s.run, Valid: true}
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.recordTimeout)
	defer cancel()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO interrupts (run_id, reason, triggered_at) VALUES (?, ?, ?)`,
		run, reason, stamp(time.Now()),
	)
	if err != nil {
		fail("interrupt", err)
		return
	}
	s.pending, _ = res.LastInsertId()
}

// InterruptCleared closes the open interrupt row.
func (s *Store) InterruptCleared(paused time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.recordTimeout)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, `UPDATE interrupts SET paused_ms = ? WHERE id = ?`, paused.Milliseconds(), s.pending); err != nil {
		fail("interrupt_cleared", err)
	}
	s.pending = 0
}

// RecentRuns returns the newest runs first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, started_at, finished_at, user_name FROM runs
		 ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r        Run
			started  string
			finished sql.NullString
			name     sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &name); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(stampLayout, started)
		if finished.Valid {
			r.FinishedAt, _ = time.Parse(stampLayout, finished.String)
		}
		r.UserName = name.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stages returns a run's stages in the order they ran.
func (s *Store) Stages(ctx context.Context, runID string) ([]StageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, started_at, elapsed_ms, error FROM stages
		 WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()

	var out []StageRecord
	for rows.Next() {
		var (
			r       StageRecord
			started string
			ms      int64
			msg     sql.NullString
		)
		if err := rows.Scan(&r.Stage, &started, &ms, &msg); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		r.StartedAt, _ = time.Parse(stampLayout, started)
		r.Elapsed = time.Duration(ms) * time.Millisecond
		r.Error = msg.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// InterruptCount returns how many interrupts were recorded against a run.
func (s *Store) InterruptCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM interrupts WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count interrupts: %w", err)
	}
	return n, nil
}
