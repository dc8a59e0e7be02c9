// Package executor runs split SQL scripts against a database adapter.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/seatown/sqlbatch/pkg/adapter"
	"github.com/seatown/sqlbatch/pkg/batch"
)

// Status is the state of a run.
type Status string

// Run statuses.
const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Script is a named list of batches ready for execution.
type Script struct {
	Name     string
	Checksum string
	Batches  []string
}

// BatchResult is the outcome of one batch. Index starts at 1.
type BatchResult struct {
	Index    int
	SQL      string
	Duration time.Duration
	Err      error
}

// Result summarises a run.
type Result struct {
	RunID    string
	Batches  []BatchResult
	Failed   int
	Duration time.Duration
}

// Status reports whether every executed batch succeeded.
func (r *Result) Status() Status {
	if r.Failed > 0 {
		return StatusFailed
	}
	return StatusSuccess
}

// BatchError reports the batch that failed.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d failed: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// RunInfo describes a run when it starts. Batches is 0 for streamed scripts.
type RunInfo struct {
	ID        string
	Script    string
	Checksum  string
	Target    string
	Batches   int
	StartedAt time.Time
}

// Recorder persists run progress. Failures to record are logged, never fatal,
// except for StartRun.
type Recorder interface {
	StartRun(ctx context.Context, info RunInfo) error
	RecordBatch(ctx context.Context, runID string, r BatchResult) error
	FinishRun(ctx context.Context, runID string, status Status, errMsg string) error
}

// Options configures an Executor.
type Options struct {
	// ContinueOnError keeps executing after a failed batch.
	ContinueOnError bool
	// Recorder is optional.
	Recorder Recorder
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Executor runs batches one at a time on a connected adapter.
type Executor struct {
	db       adapter.Adapter
	splitter *batch.Splitter
	opts     Options
	logger   *slog.Logger
}

// New creates an executor. The adapter must already be connected.
func New(db adapter.Adapter, s *batch.Splitter, opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if s == nil {
		s = batch.NewDefault()
	}
	return &Executor{db: db, splitter: s, opts: opts, logger: logger}
}

// Run executes every batch of sc in order.
func (e *Executor) Run(ctx context.Context, sc Script) (*Result, error) {
	info := RunInfo{Script: sc.Name, Checksum: sc.Checksum, Batches: len(sc.Batches)}
	return e.execute(ctx, info, func(yield func(string, error) bool) {
		for _, b := range sc.Batches {
			if !yield(b, nil) {
				return
			}
		}
	})
}

// RunReader splits r while executing, so batches run as soon as they are read.
func (e *Executor) RunReader(ctx context.Context, name string, r io.Reader) (*Result, error) {
	return e.execute(ctx, RunInfo{Script: name}, e.splitter.Batches(r))
}

func (e *Executor) execute(ctx context.Context, info RunInfo, batches iter.Seq2[string, error]) (*Result, error) {
	start := time.Now()
	info.ID = uuid.New().String()
	info.Target = e.db.DialectName()
	info.StartedAt = start.UTC()

	if e.opts.Recorder != nil {
		if err := e.opts.Recorder.StartRun(ctx, info); err != nil {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}
	}

	logger := e.logger.With(slog.String("run_id", info.ID))
	logger.Info("starting run", slog.String("script", info.Script), slog.String("target", info.Target))

	res := &Result{RunID: info.ID}
	var errs []error
	index := 0
	for sql, readErr := range batches {
		if readErr != nil {
			errs = append(errs, fmt.Errorf("failed to read %s: %w", info.Script, readErr))
			break
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		index++
		br := e.exec(ctx, index, sql)
		res.Batches = append(res.Batches, br)
		e.record(ctx, logger, info.ID, br)

		if br.Err != nil {
			res.Failed++
			logger.Warn("batch failed", slog.Int("batch", index), slog.String("error", br.Err.Error()))
			errs = append(errs, &BatchError{Index: index, Err: br.Err})
			if !e.opts.ContinueOnError {
				break
			}
		}
	}
	res.Duration = time.Since(start)

	runErr := errors.Join(errs...)
	status := StatusSuccess
	errMsg := ""
	if runErr != nil {
		status = StatusFailed
		errMsg = runErr.Error()
		logger.Info("run failed", slog.Int("batches", len(res.Batches)), slog.Int("failed", res.Failed))
	} else {
		logger.Info("run completed", slog.Int("batches", len(res.Batches)), slog.Duration("duration", res.Duration))
	}

	if e.opts.Recorder != nil {
		// The run is finished even when ctx was cancelled mid-way.
		if err := e.opts.Recorder.FinishRun(context.WithoutCancel(ctx), info.ID, status, errMsg); err != nil {
			logger.Warn("failed to finish run record", slog.String("error", err.Error()))
		}
	}
	return res, runErr
}

func (e *Executor) exec(ctx context.Context, index int, sql string) BatchResult {
	start := time.Now()
	err := e.db.Exec(ctx, sql)
	return BatchResult{Index: index, SQL: sql, Duration: time.Since(start), Err: err}
}

func (e *Executor) record(ctx context.Context, logger *slog.Logger, runID string, br BatchResult) {
	logger.Debug("batch executed", slog.Int("batch", br.Index), slog.Duration("duration", br.Duration))
	if e.opts.Recorder == nil {
		return
	}
	if err := e.opts.Recorder.RecordBatch(context.WithoutCancel(ctx), runID, br); err != nil {
		logger.Warn("failed to record batch", slog.Int("batch", br.Index), slog.String("error", err.Error()))
	}
}
