package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/seatown/sqlbatch/internal/cli/output"
	"github.com/seatown/sqlbatch/internal/config"
	"github.com/seatown/sqlbatch/internal/watch"
	"github.com/seatown/sqlbatch/pkg/batch"
	"github.com/seatown/sqlbatch/pkg/script"
	"github.com/spf13/cobra"
)

// stdinName is the path reported for a script read from standard input.
const stdinName = "<stdin>"

// SplitOptions holds options for the split command.
type SplitOptions struct {
	Format string
	Stats  bool
	Watch  bool
}

// NewSplitCommand creates the split command.
func NewSplitCommand() *cobra.Command {
	opts := &SplitOptions{}

	cmd := &cobra.Command{
		Use:   "split [files...]",
		Short: "Split SQL scripts into batches",
		Long: `Split SQL scripts into batches at separator lines (GO by default).

A separator only counts when it stands alone on its line outside comments,
strings and bracketed identifiers. With no files, or "-", the script is read
from standard input.

Output adapts to environment:
  - Terminal: batches followed by the separator line
  - Piped/Scripted: JSON

Use --format to override: auto, text, json, yaml`,
		Example: `  # Split a script
  sqlbatch split deploy.sql

  # Split from stdin as YAML
  cat deploy.sql | sqlbatch split --format yaml

  # Batch counts and checksums for several scripts
  sqlbatch split --stats migrations/*.sql

  # Re-split whenever the script changes
  sqlbatch split --watch deploy.sql`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Output format (auto|text|json|yaml), overrides --output")
	cmd.Flags().BoolVar(&opts.Stats, "stats", false, "Show batch counts and checksums instead of batches")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-split files when they change")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return output.Modes(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runSplit(cmd *cobra.Command, args []string, opts *SplitOptions) error {
	cfg, err := getConfig(cmd)
	if err != nil {
		return err
	}
	r, err := rendererFor(cmd, opts.Format)
	if err != nil {
		return err
	}
	logger := getLogger(cmd)

	s, err := batch.New(cfg.Batch(logger))
	if err != nil {
		return err
	}
	enc, err := cfg.ScriptEncoding()
	if err != nil {
		return err
	}

	if isStdin(args) {
		if opts.Watch {
			return fmt.Errorf("--watch needs at least one file")
		}
		f, err := script.Split(s, stdinName, cmd.InOrStdin(), enc)
		if err != nil {
			return err
		}
		return renderSplit(r, []*script.File{f}, cfg, opts)
	}

	ctx := cmd.Context()
	files, err := script.SplitFiles(ctx, s, args, enc, cfg.Concurrency)
	if err != nil {
		return err
	}
	if err := renderSplit(r, files, cfg, opts); err != nil {
		return err
	}

	if !opts.Watch {
		return nil
	}
	return watchSplit(ctx, r, s, args, enc, cfg, opts, logger)
}

func watchSplit(ctx context.Context, r *output.Renderer, s *batch.Splitter, paths []string,
	enc script.Encoding, cfg *config.Config, opts *SplitOptions, logger *slog.Logger,
) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	w, err := watch.New(paths, watch.DefaultDebounce, logger)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	_, _ = fmt.Fprintln(r.ErrWriter(), "Watching for changes, press Ctrl+C to stop")
	return w.Run(ctx, func(changed []string) {
		logger.Info("change detected", slog.Any("files", changed))
		files, err := script.SplitFiles(ctx, s, changed, enc, cfg.Concurrency)
		if err != nil {
			r.Warning(err.Error())
			return
		}
		if err := renderSplit(r, files, cfg, opts); err != nil {
			r.Warning(err.Error())
		}
	})
}

// splitStat is one row of --stats output.
type splitStat struct {
	Path     string `json:"path" yaml:"path"`
	Batches  int    `json:"batches" yaml:"batches"`
	Checksum string `json:"checksum" yaml:"checksum"`
}

func renderSplit(r *output.Renderer, files []*script.File, cfg *config.Config, opts *SplitOptions) error {
	if opts.Stats {
		stats := make([]splitStat, 0, len(files))
		for _, f := range files {
			stats = append(stats, splitStat{Path: f.Path, Batches: len(f.Batches), Checksum: f.Checksum})
		}
		if encoded, err := r.Encode(stats); encoded || err != nil {
			return err
		}
		rows := make([][]any, 0, len(stats))
		for _, st := range stats {
			rows = append(rows, []any{st.Path, st.Batches, shortChecksum(st.Checksum)})
		}
		r.Table([]string{"File", "Batches", "Checksum"}, rows)
		return nil
	}

	if encoded, err := r.Encode(files); encoded || err != nil {
		return err
	}
	splitText(r, files, strings.TrimSpace(cfg.Splitter.Separator))
	return nil
}

// splitText prints every batch followed by a separator line, so the output
// is itself a script that splits the same way.
func splitText(r *output.Renderer, files []*script.File, sep string) {
	for i, f := range files {
		if len(files) > 1 {
			if i > 0 {
				r.Println()
			}
			r.Header(2, "-- "+f.Path)
		}
		for _, b := range f.Batches {
			r.Println(b)
			r.Println(sep)
		}
	}
}

func shortChecksum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}
