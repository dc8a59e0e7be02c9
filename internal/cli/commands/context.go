package commands

import (
	"context"
	"log/slog"

	"github.com/seatown/sqlbatch/internal/cli/output"
	"github.com/seatown/sqlbatch/internal/config"
	"github.com/spf13/cobra"
)

// configKey is used to store config in context.
type configKey struct{}

// rendererKey is used to store renderer in context.
type rendererKey struct{}

// WithConfig returns a copy of ctx carrying cfg.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// WithRenderer returns a copy of ctx carrying r.
func WithRenderer(ctx context.Context, r *output.Renderer) context.Context {
	return context.WithValue(ctx, rendererKey{}, r)
}

// getConfig returns the config stored by the root command, loading defaults
// when the command runs on its own.
func getConfig(cmd *cobra.Command) (*config.Config, error) {
	if c, ok := cmd.Context().Value(configKey{}).(*config.Config); ok {
		return c, nil
	}
	return config.Load("", nil)
}

// getRenderer returns the renderer stored by the root command, or an auto
// renderer on the command's streams.
func getRenderer(cmd *cobra.Command) *output.Renderer {
	if r, ok := cmd.Context().Value(rendererKey{}).(*output.Renderer); ok {
		return r
	}
	return output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ModeAuto)
}

func getLogger(cmd *cobra.Command) *slog.Logger {
	return config.GetLogger(cmd.Context())
}

// rendererFor honours a command-level --format flag over the global --output.
func rendererFor(cmd *cobra.Command, format string) (*output.Renderer, error) {
	if format == "" {
		return getRenderer(cmd), nil
	}
	mode, err := output.ParseMode(format)
	if err != nil {
		return nil, err
	}
	return output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode), nil
}

// isStdin reports whether args select standard input.
func isStdin(args []string) bool {
	return len(args) == 0 || (len(args) == 1 && args[0] == "-")
}
