package batch

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is matched by every *ConfigError via errors.Is.
var ErrInvalidConfig = errors.New("invalid splitter configuration")

// ConfigError reports a splitter configuration that cannot be used.
type ConfigError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid splitter config: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid splitter config: %s %q: %s", e.Field, e.Value, e.Reason)
}

// Is reports whether target is ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Common validation reasons
const (
	reasonEmpty         = "must not be empty"
	reasonWhitespace    = "must not contain whitespace"
	reasonDuplicateOpen = "opening token is already configured"
	reasonOpenIsSep     = "opening token must differ from the separator"
	reasonSepHasEOL     = "must not contain the line terminator"
)
