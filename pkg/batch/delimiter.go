package batch

// DelimiterPair describes an exclusion region: a comment, quoted string or
// bracketed identifier inside which the separator is never recognised.
//
// An empty Close means the region ends at the line terminator, which is how
// line comments are declared.
type DelimiterPair struct {
	Open  string `json:"open" yaml:"open"`
	Close string `json:"close,omitempty" yaml:"close,omitempty"`
}

// LineComment returns a pair that opens with open and closes at end of line.
func LineComment(open string) DelimiterPair {
	return DelimiterPair{Open: open}
}

// ClosesAtEndOfLine reports whether the region ends at the line terminator.
func (p DelimiterPair) ClosesAtEndOfLine() bool {
	return p.Close == ""
}

// DefaultDelimiters returns the T-SQL exclusion regions in matching order.
func DefaultDelimiters() []DelimiterPair {
	return []DelimiterPair{
		LineComment("--"),
		{Open: "/*", Close: "*/"},
		{Open: "{", Close: "}"},
		{Open: "[", Close: "]"},
		{Open: "'", Close: "'"},
		{Open: `"`, Close: `"`},
	}
}

// delimiter is the compiled form of a DelimiterPair.
type delimiter struct {
	open    []rune
	close   []rune
	lineEnd bool
	toggle  bool // open == close, so the token never nests
}

func compileDelimiters(pairs []DelimiterPair, eol string) []delimiter {
	out := make([]delimiter, 0, len(pairs))
	for _, p := range pairs {
		d := delimiter{open: []rune(p.Open)}
		if p.ClosesAtEndOfLine() {
			d.close = []rune(eol)
			d.lineEnd = true
		} else {
			d.close = []rune(p.Close)
			d.toggle = p.Open == p.Close
		}
		out = append(out, d)
	}
	return out
}

// transition is what a single rune did to the delimiter stack.
type transition int

const (
	unchanged transition = iota
	opened
	closed
)

// tracker classifies a rune stream into inside/outside exclusion regions.
//
// The stack holds indices into delims. Nesting only happens for the pair on
// top of the stack: depth grows once per real opening token and shrinks once
// per real closing token. Line comments are cleared outright by the line
// terminator since a physical line holds at most one of them.
type tracker struct {
	delims []delimiter
	win    *window
	stack  []int
}

func newTracker(delims []delimiter, size int) *tracker {
	return &tracker{delims: delims, win: newWindow(size)}
}

// feed appends r to the window and updates the stack.
func (t *tracker) feed(r rune) transition {
	t.win.append(r)

	if len(t.stack) == 0 {
		for i, d := range t.delims {
			if t.win.endsWith(d.open, false) {
				t.stack = append(t.stack, i)
				t.win.consume()
				return opened
			}
		}
		return unchanged
	}

	d := t.delims[t.stack[len(t.stack)-1]]
	switch {
	case d.lineEnd:
		if t.win.endsWith(d.close, false) {
			t.stack = t.stack[:0]
			t.win.consume()
			return closed
		}
	case !d.toggle && t.win.endsWith(d.open, false):
		t.stack = append(t.stack, t.stack[len(t.stack)-1])
		t.win.consume()
		return opened
	case t.win.endsWith(d.close, false):
		t.stack = t.stack[:len(t.stack)-1]
		t.win.consume()
		return closed
	}
	return unchanged
}

// feedString feeds every rune of s.
func (t *tracker) feedString(s string) {
	for _, r := range s {
		t.feed(r)
	}
}

func (t *tracker) empty() bool {
	return len(t.stack) == 0
}

func (t *tracker) depth() int {
	return len(t.stack)
}

// top returns the innermost open region. Callers check empty first.
func (t *tracker) top() delimiter {
	return t.delims[t.stack[len(t.stack)-1]]
}

func (t *tracker) reset() {
	t.stack = t.stack[:0]
	t.win.clear()
}
