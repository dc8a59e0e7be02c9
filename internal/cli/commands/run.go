package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/seatown/sqlbatch/internal/cli/output"
	"github.com/seatown/sqlbatch/internal/executor"
	"github.com/seatown/sqlbatch/internal/history"
	"github.com/seatown/sqlbatch/pkg/adapter"
	"github.com/seatown/sqlbatch/pkg/batch"
	"github.com/seatown/sqlbatch/pkg/script"
	"github.com/spf13/cobra"

	// Built-in adapters register themselves.
	_ "github.com/seatown/sqlbatch/pkg/adapters/duckdb"
	_ "github.com/seatown/sqlbatch/pkg/adapters/postgres"
	_ "github.com/seatown/sqlbatch/pkg/adapters/sqlite"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	ContinueOnError bool
	NoHistory       bool
	Stream          bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Execute a SQL script batch by batch",
		Long: `Split a SQL script into batches and execute them in order against the
configured target (target.type in sqlbatch.yaml, or --target-type).

The first failing batch stops the run unless --continue-on-error is set.
Every run is recorded in the history database unless --no-history is set.`,
		Example: `  # Run against an in-memory DuckDB
  sqlbatch run deploy.sql

  # Run against a SQLite file, keep going after failures
  sqlbatch run --target-type sqlite --database app.db --continue-on-error deploy.sql

  # Execute batches while the script is still being read
  cat huge.sql | sqlbatch run --stream -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.ContinueOnError, "continue-on-error", false, "Keep executing after a batch fails")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "Do not record the run")
	cmd.Flags().BoolVar(&opts.Stream, "stream", false, "Execute batches as they are read instead of splitting first")

	return cmd
}

func runRun(cmd *cobra.Command, path string, opts *RunOptions) error {
	cfg, err := getConfig(cmd)
	if err != nil {
		return err
	}
	r := getRenderer(cmd)
	logger := getLogger(cmd)
	ctx := cmd.Context()

	if err := cfg.ValidateTarget(); err != nil {
		return err
	}
	s, err := batch.New(cfg.Batch(logger))
	if err != nil {
		return err
	}
	enc, err := cfg.ScriptEncoding()
	if err != nil {
		return err
	}

	db, err := adapter.NewAdapter(cfg.Target.Adapter(), logger)
	if err != nil {
		return err
	}
	if err := db.Connect(ctx, cfg.Target.Adapter()); err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	execOpts := executor.Options{ContinueOnError: opts.ContinueOnError, Logger: logger}
	if cfg.History.Enabled && !opts.NoHistory {
		store, err := history.Open(cfg.History.Path, logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		execOpts.Recorder = store
	}
	ex := executor.New(db, s, execOpts)

	res, runErr := execute(ctx, cmd, ex, s, path, enc, opts)
	if res == nil {
		return runErr
	}
	name := path
	if name == "-" {
		name = stdinName
	}
	if err := renderRun(r, newRunOutput(name, db.DialectName(), res, runErr)); err != nil {
		return err
	}
	return runErr
}

func execute(ctx context.Context, cmd *cobra.Command, ex *executor.Executor, s *batch.Splitter,
	path string, enc script.Encoding, opts *RunOptions,
) (*executor.Result, error) {
	if opts.Stream {
		if path == "-" {
			rd, err := script.NewReader(cmd.InOrStdin(), enc)
			if err != nil {
				return nil, err
			}
			return ex.RunReader(ctx, stdinName, rd)
		}
		rc, err := script.Open(path, enc)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rc.Close() }()
		return ex.RunReader(ctx, path, rc)
	}

	var (
		f   *script.File
		err error
	)
	if path == "-" {
		f, err = script.Split(s, stdinName, cmd.InOrStdin(), enc)
	} else {
		f, err = script.SplitFile(s, path, enc)
	}
	if err != nil {
		return nil, err
	}
	return ex.Run(ctx, executor.Script{Name: f.Path, Checksum: f.Checksum, Batches: f.Batches})
}

// runOutput is the machine-readable result of a run.
type runOutput struct {
	RunID      string           `json:"run_id" yaml:"run_id"`
	Script     string           `json:"script" yaml:"script"`
	Target     string           `json:"target" yaml:"target"`
	Status     executor.Status  `json:"status" yaml:"status"`
	Failed     int              `json:"failed" yaml:"failed"`
	DurationMS int64            `json:"duration_ms" yaml:"duration_ms"`
	Error      string           `json:"error,omitempty" yaml:"error,omitempty"`
	Batches    []batchRunOutput `json:"batches" yaml:"batches"`
}

type batchRunOutput struct {
	Index      int             `json:"index" yaml:"index"`
	Status     executor.Status `json:"status" yaml:"status"`
	DurationMS int64           `json:"duration_ms" yaml:"duration_ms"`
	Error      string          `json:"error,omitempty" yaml:"error,omitempty"`
}

func newRunOutput(path, target string, res *executor.Result, runErr error) runOutput {
	out := runOutput{
		RunID:      res.RunID,
		Script:     path,
		Target:     target,
		Status:     executor.StatusSuccess,
		Failed:     res.Failed,
		DurationMS: res.Duration.Milliseconds(),
		Batches:    make([]batchRunOutput, 0, len(res.Batches)),
	}
	if runErr != nil {
		out.Status = executor.StatusFailed
		out.Error = runErr.Error()
	}
	for _, b := range res.Batches {
		bo := batchRunOutput{Index: b.Index, Status: executor.StatusSuccess, DurationMS: b.Duration.Milliseconds()}
		if b.Err != nil {
			bo.Status = executor.StatusFailed
			bo.Error = b.Err.Error()
		}
		out.Batches = append(out.Batches, bo)
	}
	return out
}

func renderRun(r *output.Renderer, out runOutput) error {
	if encoded, err := r.Encode(out); encoded || err != nil {
		return err
	}

	styles := r.Styles()
	r.Header(1, fmt.Sprintf("Run %s", out.RunID))
	r.Muted(fmt.Sprintf("%s on %s", out.Script, out.Target))
	for _, b := range out.Batches {
		detail := formatDuration(time.Duration(b.DurationMS) * time.Millisecond)
		if b.Error != "" {
			detail += " " + b.Error
		}
		r.StatusLine(fmt.Sprintf("Batch %d", b.Index), string(b.Status), detail)
	}

	summary := fmt.Sprintf("%s: %d batches, %d failed in %s",
		output.Title(string(out.Status)), len(out.Batches), out.Failed,
		formatDuration(time.Duration(out.DurationMS)*time.Millisecond))
	if out.Status == executor.StatusSuccess {
		r.Success(summary)
	} else {
		r.Println(styles.Error.Render(summary))
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(10 * time.Millisecond).String()
}
