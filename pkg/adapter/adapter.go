// Package adapter defines the database contract that batch execution runs on.
//
// Concrete adapter implementations are in pkg/adapters/ subdirectories and
// register themselves with this package from their init() functions.
package adapter

import (
	"context"
)

// Config holds connection settings for a target database.
type Config struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Options  map[string]string

	// Params carries adapter-specific settings, decoded by each adapter.
	Params map[string]any
}

// Adapter defines the interface that all database adapters must implement.
type Adapter interface {
	// Connect establishes a connection to the database using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database connection and releases resources.
	Close() error

	// Exec executes one batch. A batch may hold several statements.
	Exec(ctx context.Context, sql string) error

	// DialectName returns the registered name of the adapter's SQL dialect.
	DialectName() string
}
