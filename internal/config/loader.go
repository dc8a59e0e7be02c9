package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config file names, in lookup order.
const (
	ConfigFileName    = "sqlbatch.yaml"
	ConfigFileNameAlt = "sqlbatch.yml"
)

// EnvPrefix prefixes every environment variable read by Load.
// A double underscore separates nesting levels: SQLBATCH_TARGET__TYPE.
const EnvPrefix = "SQLBATCH_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// flagKeys maps persistent flag names to config keys. Flags not listed here
// are command options and never reach the config.
var flagKeys = map[string]string{
	"separator":       "splitter.separator",
	"line-terminator": "splitter.line_terminator",
	"case-sensitive":  "splitter.case_sensitive",
	"encoding":        "encoding",
	"target-type":     "target.type",
	"database":        "target.database",
	"history":         "history.path",
	"verbose":         "verbose",
	"output":          "output",
}

type loggerKey struct{}

func defaults() map[string]any {
	return map[string]any{
		"splitter.separator":       "GO",
		"splitter.line_terminator": "crlf",
		"splitter.case_sensitive":  false,
		"splitter.delimiters": []any{
			map[string]any{"open": "--", "close": eolToken},
			map[string]any{"open": "/*", "close": "*/"},
			map[string]any{"open": "{", "close": "}"},
			map[string]any{"open": "[", "close": "]"},
			map[string]any{"open": "'", "close": "'"},
			map[string]any{"open": `"`, "close": `"`},
		},
		"encoding":        DefaultEncoding,
		"target.type":     DefaultTargetType,
		"target.database": DefaultDatabase,
		"history.enabled": true,
		"history.path":    DefaultHistoryPath,
		"output":          DefaultOutput,
		"verbose":         false,
		"concurrency":     DefaultConcurrency,
	}
}

// findConfigFile returns the config file in dir, or "" when there is none.
func findConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigFileUpward searches startDir and its parents for a config file.
func findConfigFileUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if path := findConfigFile(dir); path != "" {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// Load builds the configuration. Precedence, highest first: flags that were
// explicitly set, SQLBATCH_ environment variables, the config file, defaults.
// With an empty cfgFile the working directory and its parents are searched.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return load(cfgFile, cwd, flags)
}

func load(cfgFile, startDir string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if cfgFile == "" {
		cfgFile = findConfigFileUpward(startDir)
	}
	root := startDir
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
		if abs, err := filepath.Abs(cfgFile); err == nil {
			root = filepath.Dir(abs)
		}
	}

	// 3. Environment: SQLBATCH_TARGET__TYPE -> target.type
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set
	fromFlags := make(map[string]bool)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			fromFlags[f.Name] = true
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Decode
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook:       decodeHook(),
			Result:           &cfg,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = cfgFile
	cfg.Root = root

	expandTargetEnvVars(&cfg.Target)

	// Paths from flags are relative to the working directory, everything
	// else to the project root.
	cfg.History.Path = resolvePath(cfg.History.Path, root, fromFlags["history"])
	if isFileDatabase(cfg.Target) {
		cfg.Target.Database = resolvePath(cfg.Target.Database, root, fromFlags["database"])
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func resolvePath(path, root string, fromFlag bool) string {
	if path == DefaultDatabase {
		return path
	}
	if fromFlag {
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return resolvePathRelativeTo(path, root)
}

// LoggerKey returns the context key used for storing the logger.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}
