package batch

import (
	"io"
	"iter"
	"log/slog"
	"strings"
)

// Splitter divides SQL scripts into batches at separator lines.
//
// A Splitter is immutable once built and safe for concurrent use; every
// parse allocates its own buffers.
type Splitter struct {
	cfg    Config
	sep    []rune
	delims []delimiter
	size   int
	logger *slog.Logger
}

// New validates cfg and returns a Splitter for it.
func New(cfg Config) (*Splitter, error) {
	cfg.Separator = strings.TrimSpace(cfg.Separator)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Delimiters = append([]DelimiterPair(nil), cfg.Delimiters...)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Splitter{
		cfg:    cfg,
		sep:    []rune(cfg.Separator),
		delims: compileDelimiters(cfg.Delimiters, cfg.LineTerminator),
		size:   cfg.windowSize(),
		logger: logger,
	}, nil
}

// NewDefault returns a Splitter for DefaultConfig.
func NewDefault() *Splitter {
	s, err := New(DefaultConfig())
	if err != nil {
		panic(err) // the defaults always validate
	}
	return s
}

// Config returns a copy of the configuration in use.
func (s *Splitter) Config() Config {
	cfg := s.cfg
	cfg.Delimiters = append([]DelimiterPair(nil), s.cfg.Delimiters...)
	return cfg
}

// Parse reads r to the end and returns its non-blank batches in source order.
// Malformed content never fails; an unterminated region simply runs into the
// last batch. Read errors are returned as they come from r.
func (s *Splitter) Parse(r io.Reader) ([]string, error) {
	var out []string
	err := s.scan(r, func(b string) bool {
		out = append(out, b)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParseString splits an in-memory script.
func (s *Splitter) ParseString(script string) []string {
	out, _ := s.Parse(strings.NewReader(script))
	return out
}

// Batches streams the batches of r. A read error is yielded once, last.
func (s *Splitter) Batches(r io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		stopped := false
		err := s.scan(r, func(b string) bool {
			if !yield(b, nil) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil && !stopped {
			yield("", err)
		}
	}
}

// scan drives the line classifier over r and hands every finished batch to
// emit until emit returns false.
func (s *Splitter) scan(r io.Reader, emit func(string) bool) error {
	lines := newLineReader(r, s.cfg.LineTerminator)
	classifier := &lineClassifier{
		sep:    s.sep,
		fold:   !s.cfg.CaseSensitive,
		delims: s.delims,
		size:   s.size,
	}
	// Regions that span lines are tracked here; a line that starts inside
	// one can never be a separator line.
	carried := newTracker(s.delims, s.size)

	var buf strings.Builder
	count, lineCount := 0, 0
	flush := func() bool {
		text := strings.TrimSpace(buf.String())
		n := lineCount
		buf.Reset()
		lineCount = 0
		if text == "" {
			return true
		}
		count++
		s.logger.Debug("batch split", slog.Int("batch", count), slog.Int("lines", n))
		return emit(text)
	}

	for {
		line, err := lines.next()
		if line != "" {
			if carried.empty() && classifier.isSeparator(line) {
				if pre := classifier.content(); strings.TrimSpace(pre) != "" {
					buf.WriteString(pre)
					lineCount++
				}
				if !flush() {
					return nil
				}
				carried.reset()
			} else {
				carried.feedString(line)
				buf.WriteString(line)
				lineCount++
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
	}

	if !carried.empty() {
		s.logger.Debug("input ended inside an exclusion region", slog.Int("depth", carried.depth()))
	}
	flush()
	return nil
}
