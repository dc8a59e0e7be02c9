package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/seatown/sqlbatch/internal/cli/output"
	"github.com/seatown/sqlbatch/internal/history"
	"github.com/spf13/cobra"
)

// DefaultHistoryLimit is how many runs history lists by default.
const DefaultHistoryLimit = 20

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
}

// NewHistoryCommand creates the history command and its show subcommand.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long: `List the most recent runs recorded by "sqlbatch run", newest first.

The history database lives at history.path in sqlbatch.yaml
(default .sqlbatch/history.db next to the config file).`,
		Example: `  # Last 20 runs
  sqlbatch history

  # Last 5 runs as JSON
  sqlbatch history --limit 5 -o json

  # One run with its batches
  sqlbatch history show 3f2c...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistoryList(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", DefaultHistoryLimit, "Maximum number of runs to list")
	cmd.AddCommand(newHistoryShowCommand())

	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a recorded run and its batches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(cmd, args[0])
		},
	}
}

func openHistory(cmd *cobra.Command) (*history.Store, error) {
	cfg, err := getConfig(cmd)
	if err != nil {
		return nil, err
	}
	return history.Open(cfg.History.Path, getLogger(cmd))
}

func runHistoryList(cmd *cobra.Command, opts *HistoryOptions) error {
	if opts.Limit < 1 {
		return fmt.Errorf("--limit must be at least 1")
	}
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []*history.Run{}
	}

	r := getRenderer(cmd)
	if encoded, err := r.Encode(runs); encoded || err != nil {
		return err
	}
	if len(runs) == 0 {
		r.Muted("No runs recorded yet")
		return nil
	}

	rows := make([][]any, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []any{
			run.ID,
			run.Script,
			run.Target,
			run.BatchCount,
			output.Title(string(run.Status)),
			run.StartedAt.Local().Format(time.DateTime),
			runDuration(run),
		})
	}
	r.Table([]string{"ID", "Script", "Target", "Batches", "Status", "Started", "Duration"}, rows)
	return nil
}

func runHistoryShow(cmd *cobra.Command, id string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	run, err := store.GetRun(cmd.Context(), id)
	if errors.Is(err, history.ErrRunNotFound) {
		return fmt.Errorf("run %s not found\nHint: list run IDs with \"sqlbatch history\"", id)
	}
	if err != nil {
		return err
	}

	r := getRenderer(cmd)
	if encoded, err := r.Encode(run); encoded || err != nil {
		return err
	}

	styles := r.Styles()
	r.Header(1, "Run "+run.ID)
	r.Printf("  %s %s\n", styles.Bold.Render("Script:"), run.Script)
	r.Printf("  %s %s\n", styles.Bold.Render("Target:"), run.Target)
	r.Printf("  %s %s\n", styles.Bold.Render("Status:"), output.Title(string(run.Status)))
	r.Printf("  %s %s\n", styles.Bold.Render("Started:"), run.StartedAt.Local().Format(time.DateTime))
	r.Printf("  %s %s\n", styles.Bold.Render("Duration:"), runDuration(run))
	if run.Checksum != "" {
		r.Printf("  %s %s\n", styles.Bold.Render("Checksum:"), run.Checksum)
	}
	if run.Error != "" {
		r.Printf("  %s %s\n", styles.Bold.Render("Error:"), styles.Error.Render(run.Error))
	}
	r.Println()

	if len(run.Batches) == 0 {
		r.Muted("No batches executed")
		return nil
	}
	rows := make([][]any, 0, len(run.Batches))
	for _, b := range run.Batches {
		status := "success"
		if b.Error != "" {
			status = "failed"
		}
		rows = append(rows, []any{
			b.Index,
			styles.StatusIcon(status),
			strconv.FormatInt(b.DurationMS, 10) + "ms",
			firstLine(b.SQL),
			b.Error,
		})
	}
	r.Table([]string{"#", "", "Duration", "SQL", "Error"}, rows)
	return nil
}

func runDuration(run *history.Run) string {
	if run.FinishedAt == nil {
		return "-"
	}
	return formatDuration(run.FinishedAt.Sub(run.StartedAt))
}

// firstLine shortens a batch to its first line for table display.
func firstLine(sql string) string {
	const maxRunes = 60
	line, rest, _ := strings.Cut(sql, "\n")
	line = strings.TrimRight(line, "\r")
	if runes := []rune(line); len(runes) > maxRunes {
		return string(runes[:maxRunes]) + "…"
	}
	if rest != "" {
		return line + " …"
	}
	return line
}
