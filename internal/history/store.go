// Package history records script runs in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/seatown/sqlbatch/internal/executor"

	_ "modernc.org/sqlite" // sqlite driver
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Run is a recorded run.
type Run struct {
	ID         string          `json:"id" yaml:"id"`
	Script     string          `json:"script" yaml:"script"`
	Checksum   string          `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	Target     string          `json:"target" yaml:"target"`
	BatchCount int             `json:"batch_count" yaml:"batch_count"`
	Status     executor.Status `json:"status" yaml:"status"`
	StartedAt  time.Time       `json:"started_at" yaml:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Error      string          `json:"error,omitempty" yaml:"error,omitempty"`
	Batches    []Batch         `json:"batches,omitempty" yaml:"batches,omitempty"`
}

// Batch is one executed batch of a run.
type Batch struct {
	Index      int    `json:"index" yaml:"index"`
	SQL        string `json:"sql" yaml:"sql"`
	DurationMS int64  `json:"duration_ms" yaml:"duration_ms"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Store is the SQLite-backed run history.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (creating if needed) the history database at path and migrates
// it. Use ":memory:" for an in-memory database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := "file::memory:?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create history directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// A single connection keeps an in-memory database alive and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	s := &Store{db: db, path: path, logger: logger}
	if err := s.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StartRun records a new run in the running state.
func (s *Store) StartRun(ctx context.Context, info executor.RunInfo) error {
	s.logger.Debug("recording run", slog.String("id", info.ID), slog.String("script", info.Script))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, script, checksum, target, batch_count, status, started_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		info.ID, info.Script, info.Checksum, info.Target, info.Batches, string(executor.StatusRunning), info.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// RecordBatch stores the outcome of one batch.
func (s *Store) RecordBatch(ctx context.Context, runID string, r executor.BatchResult) error {
	var errMsg *string
	if r.Err != nil {
		msg := r.Err.Error()
		errMsg = &msg
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_batches (run_id, batch_index, sql_text, duration_ms, error) VALUES (?, ?, ?, ?, ?)`,
		runID, r.Index, r.SQL, r.Duration.Milliseconds(), errMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to record batch %d: %w", r.Index, err)
	}
	return nil
}

// FinishRun marks a run as completed with the given status.
func (s *Store) FinishRun(ctx context.Context, runID string, status executor.Status, errMsg string) error {
	var errPtr *string
	if errMsg != "" {
		errPtr = &errMsg
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, error = ? WHERE id = ?`,
		string(status), time.Now().UTC(), errPtr, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `id, script, checksum, target, batch_count, status, started_at, finished_at, error`

// ListRuns returns the most recent runs, newest first, without batches.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// GetRun retrieves a run and its batches by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_index, sql_text, duration_ms, error FROM run_batches WHERE run_id = ? ORDER BY batch_index`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get batches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var b Batch
		var errMsg sql.NullString
		if err := rows.Scan(&b.Index, &b.SQL, &b.DurationMS, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		b.Error = errMsg.String
		run.Batches = append(run.Batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get batches: %w", err)
	}
	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	run := &Run{}
	var status string
	var finishedAt sql.NullTime
	var errMsg sql.NullString

	err := sc.Scan(&run.ID, &run.Script, &run.Checksum, &run.Target, &run.BatchCount,
		&status, &run.StartedAt, &finishedAt, &errMsg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Status = executor.Status(status)
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	run.Error = errMsg.String
	return run, nil
}

// Ensure Store implements executor.Recorder
var _ executor.Recorder = (*Store)(nil)
