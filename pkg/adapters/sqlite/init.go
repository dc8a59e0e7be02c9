package sqlite

import (
	"log/slog"

	"github.com/seatown/sqlbatch/pkg/adapter"
)

func init() {
	adapter.Register("sqlite", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
