// Package config loads sqlbatch settings from defaults, sqlbatch.yaml,
// SQLBATCH_ environment variables and command-line flags.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/seatown/sqlbatch/pkg/adapter"
	"github.com/seatown/sqlbatch/pkg/batch"
	"github.com/seatown/sqlbatch/pkg/script"
)

// Default values used when neither file, env nor flags set a key.
const (
	DefaultEncoding    = "auto"
	DefaultOutput      = "auto"
	DefaultTargetType  = "duckdb"
	DefaultDatabase    = ":memory:"
	DefaultHistoryPath = ".sqlbatch/history.db"
	DefaultConcurrency = 4
)

// Config is the fully resolved configuration.
type Config struct {
	Splitter    SplitterConfig `koanf:"splitter"`
	Encoding    string         `koanf:"encoding"`
	Target      TargetConfig   `koanf:"target"`
	History     HistoryConfig  `koanf:"history"`
	Output      string         `koanf:"output"`
	Verbose     bool           `koanf:"verbose"`
	Concurrency int            `koanf:"concurrency"`

	// File is the config file that was read, empty when none was found.
	File string `koanf:"-"`

	// Root anchors relative paths: the config file's directory, else the
	// working directory.
	Root string `koanf:"-"`
}

// SplitterConfig mirrors batch.Config.
type SplitterConfig struct {
	Separator      string                `koanf:"separator"`
	LineTerminator LineTerminator        `koanf:"line_terminator"`
	CaseSensitive  bool                  `koanf:"case_sensitive"`
	Delimiters     []batch.DelimiterPair `koanf:"delimiters"`
}

// TargetConfig selects and configures the database adapter used by run.
type TargetConfig struct {
	Type     string            `koanf:"type"`
	Database string            `koanf:"database"`
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	User     string            `koanf:"user"`
	Password string            `koanf:"password"`
	Options  map[string]string `koanf:"options"`
	Params   map[string]any    `koanf:"params"`
}

// HistoryConfig controls the run-history store.
type HistoryConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// Batch returns the splitter configuration with logger attached.
func (c *Config) Batch(logger *slog.Logger) batch.Config {
	return batch.Config{
		Separator:      c.Splitter.Separator,
		LineTerminator: string(c.Splitter.LineTerminator),
		CaseSensitive:  c.Splitter.CaseSensitive,
		Delimiters:     c.Splitter.Delimiters,
		Logger:         logger,
	}
}

// ScriptEncoding returns the parsed input encoding.
func (c *Config) ScriptEncoding() (script.Encoding, error) {
	return script.ParseEncoding(c.Encoding)
}

// Adapter converts the target into an adapter.Config.
func (t TargetConfig) Adapter() adapter.Config {
	return adapter.Config{
		Type:     t.Type,
		Path:     t.Database,
		Database: t.Database,
		Host:     t.Host,
		Port:     t.Port,
		Username: t.User,
		Password: t.Password,
		Options:  t.Options,
		Params:   t.Params,
	}
}

// Validate checks the settings that can be checked without touching a database.
func (c *Config) Validate() error {
	if err := c.Batch(nil).Validate(); err != nil {
		return err
	}
	if _, err := c.ScriptEncoding(); err != nil {
		return err
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Target.Type == "" {
		return fmt.Errorf("target type is required")
	}
	return nil
}

// ValidateTarget reports whether the target names a registered adapter.
func (c *Config) ValidateTarget() error {
	if !adapter.IsRegistered(c.Target.Type) {
		return &adapter.UnknownAdapterError{Type: c.Target.Type, Available: adapter.ListAdapters()}
	}
	return nil
}

// fileTargets store their database in a local file.
var fileTargets = map[string]bool{"duckdb": true, "sqlite": true}

func isFileDatabase(t TargetConfig) bool {
	return fileTargets[t.Type] && t.Database != "" && t.Database != DefaultDatabase
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns. Unset variables are left as-is.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}

func expandTargetEnvVars(t *TargetConfig) {
	t.Host = expandEnvVars(t.Host)
	t.Database = expandEnvVars(t.Database)
	t.User = expandEnvVars(t.User)
	t.Password = expandEnvVars(t.Password)
	for k, v := range t.Options {
		t.Options[k] = expandEnvVars(v)
	}
}

// resolvePathRelativeTo resolves path against baseDir unless it is empty or absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
