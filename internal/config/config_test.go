package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/seatown/sqlbatch/pkg/adapter"
	"github.com/seatown/sqlbatch/pkg/batch"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("separator", "", "")
	flags.String("line-terminator", "", "")
	flags.Bool("case-sensitive", false, "")
	flags.String("database", "", "")
	flags.String("history", "", "")
	flags.StringP("output", "o", "auto", "")
	flags.String("format", "", "")
	return flags
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := load("", dir, nil)
	require.NoError(t, err)

	assert.Equal(t, "GO", cfg.Splitter.Separator)
	assert.Equal(t, LineTerminator("\r\n"), cfg.Splitter.LineTerminator)
	assert.False(t, cfg.Splitter.CaseSensitive)
	assert.Equal(t, batch.DefaultDelimiters(), cfg.Splitter.Delimiters)
	assert.Equal(t, DefaultEncoding, cfg.Encoding)
	assert.Equal(t, DefaultTargetType, cfg.Target.Type)
	assert.Equal(t, DefaultDatabase, cfg.Target.Database)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, filepath.Join(dir, DefaultHistoryPath), cfg.History.Path)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Empty(t, cfg.File)
	assert.Equal(t, dir, cfg.Root)

	assert.Equal(t, batch.DefaultConfig(), cfg.Batch(nil))
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `splitter:
  separator: END
  line_terminator: lf
  case_sensitive: true
  delimiters:
    - "-- eol"
    - open: "$$"
      close: "$$"
    - "' '"
target:
  type: sqlite
  database: data/app.db
  options:
    journal_mode: WAL
history:
  enabled: false
concurrency: 2
`)

	// Found by searching upward from a nested directory.
	nested := filepath.Join(dir, "sql", "migrations")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, err := load("", nested, nil)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, dir, cfg.Root)
	assert.Equal(t, "END", cfg.Splitter.Separator)
	assert.Equal(t, LineTerminator("\n"), cfg.Splitter.LineTerminator)
	assert.True(t, cfg.Splitter.CaseSensitive)
	assert.Equal(t, []batch.DelimiterPair{
		batch.LineComment("--"),
		{Open: "$$", Close: "$$"},
		{Open: "'", Close: "'"},
	}, cfg.Splitter.Delimiters)
	assert.Equal(t, "sqlite", cfg.Target.Type)
	assert.Equal(t, filepath.Join(dir, "data", "app.db"), cfg.Target.Database)
	assert.Equal(t, map[string]string{"journal_mode": "WAL"}, cfg.Target.Options)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, 2, cfg.Concurrency)

	s, err := batch.New(cfg.Batch(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT '\nEND\n'", "SELECT 2"}, s.ParseString("SELECT '\nEND\n'\nEND\nSELECT 2\n"))
}

func TestLoad_ExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("splitter:\n  separator: GOGO\n"), 0o600))

	cfg, err := load(path, t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, "GOGO", cfg.Splitter.Separator)
	assert.Equal(t, path, cfg.File)

	_, err = load(filepath.Join(dir, "missing.yaml"), dir, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_Precedence(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		flag  string
		wantS string
	}{
		{name: "file", wantS: "FILE"},
		{name: "env over file", env: "ENV", wantS: "ENV"},
		{name: "flag over env", env: "ENV", flag: "FLAG", wantS: "FLAG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := writeConfig(t, dir, "splitter:\n  separator: FILE\noutput: yaml\n")
			if tt.env != "" {
				t.Setenv("SQLBATCH_SPLITTER__SEPARATOR", tt.env)
			}
			flags := testFlags()
			if tt.flag != "" {
				require.NoError(t, flags.Set("separator", tt.flag))
			}

			cfg, err := load(path, dir, flags)
			require.NoError(t, err)
			assert.Equal(t, tt.wantS, cfg.Splitter.Separator)
			assert.Equal(t, "yaml", cfg.Output, "unchanged flag must not override the file")
		})
	}
}

func TestLoad_EnvTypes(t *testing.T) {
	t.Setenv("SQLBATCH_SPLITTER__CASE_SENSITIVE", "true")
	t.Setenv("SQLBATCH_TARGET__PORT", "5433")
	t.Setenv("SQLBATCH_TARGET__TYPE", "postgres")
	t.Setenv("SQLBATCH_TARGET__DATABASE", "warehouse")

	cfg, err := load("", t.TempDir(), nil)
	require.NoError(t, err)
	assert.True(t, cfg.Splitter.CaseSensitive)
	assert.Equal(t, 5433, cfg.Target.Port)
	assert.Equal(t, "postgres", cfg.Target.Type)
	assert.Equal(t, "warehouse", cfg.Target.Database, "server databases are not paths")
}

func TestLoad_Flags(t *testing.T) {
	dir := t.TempDir()
	flags := testFlags()
	require.NoError(t, flags.Set("line-terminator", "lf"))
	require.NoError(t, flags.Set("case-sensitive", "true"))
	require.NoError(t, flags.Set("history", "runs.db"))
	require.NoError(t, flags.Set("database", ":memory:"))
	require.NoError(t, flags.Set("format", "json"))

	cfg, err := load("", dir, flags)
	require.NoError(t, err)

	cwd, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, LineTerminator("\n"), cfg.Splitter.LineTerminator)
	assert.True(t, cfg.Splitter.CaseSensitive)
	assert.Equal(t, filepath.Join(cwd, "runs.db"), cfg.History.Path, "flag paths are relative to the working directory")
	assert.Equal(t, ":memory:", cfg.Target.Database)
}

func TestLoad_TargetEnvExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "s3cret")
	dir := t.TempDir()
	writeConfig(t, dir, `target:
  type: postgres
  user: ${TEST_DB_USER_UNSET}
  password: ${TEST_DB_PASSWORD}
`)

	cfg, err := load("", dir, nil)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Target.Password)
	assert.Equal(t, "${TEST_DB_USER_UNSET}", cfg.Target.User)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		errSubstr string
		isConfig  bool
	}{
		{
			name:      "separator with whitespace",
			content:   "splitter:\n  separator: \"G O\"\n",
			errSubstr: "must not contain whitespace",
			isConfig:  true,
		},
		{
			name:      "delimiter opens with separator",
			content:   "splitter:\n  delimiters:\n    - \"GO OG\"\n",
			errSubstr: "opening token must differ from the separator",
			isConfig:  true,
		},
		{
			name:      "malformed delimiter",
			content:   "splitter:\n  delimiters:\n    - \"a b c\"\n",
			errSubstr: "invalid delimiter",
		},
		{
			name:      "delimiter without open",
			content:   "splitter:\n  delimiters:\n    - close: \"*/\"\n",
			errSubstr: "has no open token",
		},
		{
			name:      "unknown encoding",
			content:   "encoding: ebcdic\n",
			errSubstr: "ebcdic",
		},
		{
			name:      "zero concurrency",
			content:   "concurrency: 0\n",
			errSubstr: "concurrency must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.content)

			_, err := load("", dir, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
			if tt.isConfig {
				assert.ErrorIs(t, err, batch.ErrInvalidConfig)
			}
		})
	}
}

func TestParseLineTerminator(t *testing.T) {
	tests := []struct {
		input   string
		want    LineTerminator
		wantErr bool
	}{
		{input: "crlf", want: "\r\n"},
		{input: "CRLF", want: "\r\n"},
		{input: "lf", want: "\n"},
		{input: " cr ", want: "\r"},
		{input: `\r\n`, want: "\r\n"},
		{input: `\n`, want: "\n"},
		{input: ";;", want: ";;"},
		{input: `\q`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLineTerminator(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		input   string
		want    batch.DelimiterPair
		wantErr bool
	}{
		{input: "--", want: batch.LineComment("--")},
		{input: "# eol", want: batch.LineComment("#")},
		{input: "# EOL", want: batch.LineComment("#")},
		{input: "/* */", want: batch.DelimiterPair{Open: "/*", Close: "*/"}},
		{input: "  [   ]  ", want: batch.DelimiterPair{Open: "[", Close: "]"}},
		{input: "", wantErr: true},
		{input: "a b c", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDelimiter(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTargetConfig_Adapter(t *testing.T) {
	target := TargetConfig{
		Type:     "postgres",
		Database: "app",
		Host:     "db",
		Port:     5432,
		User:     "me",
		Password: "pw",
		Options:  map[string]string{"sslmode": "require"},
	}

	assert.Equal(t, adapter.Config{
		Type:     "postgres",
		Path:     "app",
		Database: "app",
		Host:     "db",
		Port:     5432,
		Username: "me",
		Password: "pw",
		Options:  map[string]string{"sslmode": "require"},
	}, target.Adapter())
}

func TestConfig_ValidateTarget(t *testing.T) {
	cfg := &Config{Target: TargetConfig{Type: "oracle"}}

	err := cfg.ValidateTarget()
	var unknown *adapter.UnknownAdapterError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "oracle", unknown.Type)
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	logger := slog.New(slog.DiscardHandler)
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, GetLogger(ctx))
	assert.Same(t, logger, ctx.Value(LoggerKey()))
}
