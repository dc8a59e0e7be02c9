// Package commands_test provides tests for CLI command creation.
package commands

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/seatown/sqlbatch/internal/cli/testutil"
	"github.com/seatown/sqlbatch/internal/config"
	"github.com/seatown/sqlbatch/internal/executor"
	"github.com/seatown/sqlbatch/pkg/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSplitCommand(t *testing.T) {
	cmd := NewSplitCommand()

	assert.Equal(t, "split [files...]", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	for _, flag := range []string{"format", "stats", "watch"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
	assert.Equal(t, "f", cmd.Flags().Lookup("format").Shorthand)
	assert.Equal(t, "w", cmd.Flags().Lookup("watch").Shorthand)
}

func TestNewRunCommand(t *testing.T) {
	cmd := NewRunCommand()

	assert.Equal(t, "run <file>", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")

	for _, flag := range []string{"continue-on-error", "no-history", "stream"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
	require.Error(t, cmd.Args(cmd, nil))
	require.NoError(t, cmd.Args(cmd, []string{"deploy.sql"}))
}

func TestNewHistoryCommand(t *testing.T) {
	cmd := NewHistoryCommand()

	assert.Equal(t, "history", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.Equal(t, "20", cmd.Flags().Lookup("limit").DefValue)

	show, _, err := cmd.Find([]string{"show"})
	require.NoError(t, err)
	assert.Equal(t, "show <run-id>", show.Use)
}

func TestIsStdin(t *testing.T) {
	assert.True(t, isStdin(nil))
	assert.True(t, isStdin([]string{"-"}))
	assert.False(t, isStdin([]string{"a.sql"}))
	assert.False(t, isStdin([]string{"-", "a.sql"}))
}

func TestRenderSplit(t *testing.T) {
	cfg := &config.Config{Splitter: config.SplitterConfig{Separator: "GO"}}
	files := []*script.File{
		{Path: "deploy.sql", Batches: []string{"SELECT 1", "SELECT 2"}, Checksum: "0123456789abcdef0123"},
	}

	t.Run("text", func(t *testing.T) {
		tr := testutil.NewTestRendererText()
		require.NoError(t, renderSplit(tr.Renderer, files, cfg, &SplitOptions{}))
		assert.Equal(t, "SELECT 1\nGO\nSELECT 2\nGO\n", tr.Output())
	})

	t.Run("stats text", func(t *testing.T) {
		tr := testutil.NewTestRendererText()
		require.NoError(t, renderSplit(tr.Renderer, files, cfg, &SplitOptions{Stats: true}))
		out := tr.Output()
		testutil.AssertNoANSI(t, out)
		assert.Contains(t, out, "deploy.sql")
		assert.Contains(t, out, "0123456789ab")
		assert.NotContains(t, out, "0123456789abc")
	})

	t.Run("stats json", func(t *testing.T) {
		tr := testutil.NewTestRendererJSON()
		require.NoError(t, renderSplit(tr.Renderer, files, cfg, &SplitOptions{Stats: true}))

		var stats []splitStat
		require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &stats))
		assert.Equal(t, []splitStat{{Path: "deploy.sql", Batches: 2, Checksum: "0123456789abcdef0123"}}, stats)
	})
}

func TestNewRunOutput(t *testing.T) {
	boom := errors.New("boom")
	res := &executor.Result{
		RunID:    "run-1",
		Failed:   1,
		Duration: 1500 * time.Millisecond,
		Batches: []executor.BatchResult{
			{Index: 1, SQL: "SELECT 1", Duration: 2 * time.Millisecond},
			{Index: 2, SQL: "SELECT x", Duration: 3 * time.Millisecond, Err: boom},
		},
	}
	runErr := &executor.BatchError{Index: 2, Err: boom}

	out := newRunOutput("deploy.sql", "sqlite", res, runErr)
	assert.Equal(t, executor.StatusFailed, out.Status)
	assert.Equal(t, "batch 2 failed: boom", out.Error)
	assert.Equal(t, int64(1500), out.DurationMS)
	require.Len(t, out.Batches, 2)
	assert.Equal(t, executor.StatusSuccess, out.Batches[0].Status)
	assert.Equal(t, executor.StatusFailed, out.Batches[1].Status)
	assert.Equal(t, "boom", out.Batches[1].Error)

	tr := testutil.NewTestRendererText()
	require.NoError(t, renderRun(tr.Renderer, out))
	text := tr.Output()
	testutil.AssertNoANSI(t, text)
	assert.Contains(t, text, "Run run-1")
	assert.Contains(t, text, "deploy.sql on sqlite")
	assert.Contains(t, text, "✓ Batch 1 2ms")
	assert.Contains(t, text, "✗ Batch 2 3ms boom")
	assert.Contains(t, text, "Failed: 2 batches, 1 failed in 1.5s")

	ok := newRunOutput("deploy.sql", "sqlite", &executor.Result{RunID: "run-2"}, nil)
	assert.Equal(t, executor.StatusSuccess, ok.Status)
	assert.Empty(t, ok.Error)
	assert.NotNil(t, ok.Batches)
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want string
	}{
		{name: "single line", sql: "SELECT 1", want: "SELECT 1"},
		{name: "crlf lines", sql: "SELECT 1\r\nFROM t", want: "SELECT 1 …"},
		{name: "long line", sql: strings.Repeat("é", 70), want: strings.Repeat("é", 60) + "…"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, firstLine(tt.sql))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "1.23s", formatDuration(1234*time.Millisecond))
	assert.Equal(t, "2m0s", formatDuration(2*time.Minute))
}
