package batch

import (
	"log/slog"
	"strings"
	"unicode"
)

// Default configuration values, matching T-SQL client tools.
const (
	DefaultSeparator      = "GO"
	DefaultLineTerminator = "\r\n"
)

// Config holds the splitter settings. It is copied into the Splitter by New
// and never mutated afterwards.
type Config struct {
	// Separator ends a batch when it stands alone outside every exclusion region.
	Separator string

	// LineTerminator frames lines and closes line comments.
	LineTerminator string

	// CaseSensitive controls how Separator is matched. Delimiters always match exactly.
	CaseSensitive bool

	// Delimiters are tried in order when looking for an opening token.
	Delimiters []DelimiterPair

	// Logger receives debug records for emitted batches. Nil discards.
	Logger *slog.Logger
}

// DefaultConfig returns the T-SQL configuration: GO, CRLF, case-insensitive,
// and the six default exclusion regions.
func DefaultConfig() Config {
	return Config{
		Separator:      DefaultSeparator,
		LineTerminator: DefaultLineTerminator,
		CaseSensitive:  false,
		Delimiters:     DefaultDelimiters(),
	}
}

// WithDelimiter returns a copy of c where the pair opening with open closes
// with close. An existing pair keeps its position; a new one is appended.
// Pass an empty close for a region that ends at the line terminator.
func (c Config) WithDelimiter(open, close string) Config {
	pairs := make([]DelimiterPair, len(c.Delimiters), len(c.Delimiters)+1)
	copy(pairs, c.Delimiters)
	c.Delimiters = pairs

	for i := range c.Delimiters {
		if c.Delimiters[i].Open == open {
			c.Delimiters[i].Close = close
			return c
		}
	}
	c.Delimiters = append(c.Delimiters, DelimiterPair{Open: open, Close: close})
	return c
}

// Validate checks c and returns a *ConfigError describing the first problem.
func (c Config) Validate() error {
	sep := strings.TrimSpace(c.Separator)
	if sep == "" {
		return &ConfigError{Field: "separator", Reason: reasonEmpty}
	}
	if strings.IndexFunc(sep, unicode.IsSpace) >= 0 {
		return &ConfigError{Field: "separator", Value: sep, Reason: reasonWhitespace}
	}
	if c.LineTerminator == "" {
		return &ConfigError{Field: "line terminator", Reason: reasonEmpty}
	}
	if strings.Contains(sep, c.LineTerminator) {
		return &ConfigError{Field: "separator", Value: sep, Reason: reasonSepHasEOL}
	}

	seen := make(map[string]struct{}, len(c.Delimiters))
	for _, p := range c.Delimiters {
		if p.Open == "" {
			return &ConfigError{Field: "delimiter open", Reason: reasonEmpty}
		}
		if _, dup := seen[p.Open]; dup {
			return &ConfigError{Field: "delimiter open", Value: p.Open, Reason: reasonDuplicateOpen}
		}
		if strings.EqualFold(p.Open, sep) {
			return &ConfigError{Field: "delimiter open", Value: p.Open, Reason: reasonOpenIsSep}
		}
		seen[p.Open] = struct{}{}
	}
	return nil
}

// windowSize is the longest token length in runes plus one rune of look-behind.
func (c Config) windowSize() int {
	n := runeLen(c.Separator)
	n = max(n, runeLen(c.LineTerminator))
	for _, p := range c.Delimiters {
		n = max(n, runeLen(p.Open), runeLen(p.Close))
	}
	return n + 1
}

func runeLen(s string) int {
	return len([]rune(s))
}
