package batch

import (
	"unicode"
	"unicode/utf8"
)

// lineClassifier decides whether one line (terminator included) is a batch
// separator line. A line qualifies when it holds the separator:
//
//  1. outside every exclusion region,
//  2. as a standalone token, not the tail of a longer word,
//  3. followed only by whitespace or by regions that close on the same line.
type lineClassifier struct {
	sep    []rune
	fold   bool
	delims []delimiter
	size   int

	text    string
	offsets []int
}

// isSeparator classifies line and records its exposed content.
func (c *lineClassifier) isSeparator(line string) bool {
	c.text = line
	c.offsets = c.offsets[:0]

	t := newTracker(c.delims, c.size)
	n := len(c.sep)
	for off, r := range line {
		c.offsets = append(c.offsets, off)
		t.feed(r)

		if !t.empty() || !t.win.endsWith(c.sep, c.fold) {
			continue
		}
		if prev, ok := t.win.before(n); ok && isWordRune(prev) {
			continue
		}
		_, size := utf8.DecodeRuneInString(line[off:])
		if !c.tailIsEmpty(line[off+size:]) {
			continue
		}
		c.text = line[:c.offsets[len(c.offsets)-n]]
		return true
	}
	return false
}

// content is the line without the separator (and everything after it) when
// the last isSeparator call succeeded, or the whole line otherwise.
func (c *lineClassifier) content() string {
	return c.text
}

// tailIsEmpty reports whether rest holds nothing but whitespace and exclusion
// regions that close before the line ends.
func (c *lineClassifier) tailIsEmpty(rest string) bool {
	t := newTracker(c.delims, c.size)

	// Runes outside any region that are not whitespace. They are forgiven when
	// they turn out to be the leading runes of an opening token.
	var stray []int
	i := 0
	for _, r := range rest {
		switch t.feed(r) {
		case opened:
			first := i - len(t.top().open) + 1
			for len(stray) > 0 && stray[len(stray)-1] >= first {
				stray = stray[:len(stray)-1]
			}
		case closed:
		default:
			if t.empty() && !unicode.IsSpace(r) && !unicode.IsControl(r) {
				stray = append(stray, i)
			}
		}
		i++
	}

	if len(stray) > 0 {
		return false
	}
	// A trailing region may not span past this line. A line comment is the
	// exception: end of input ends it just like a terminator would.
	return t.empty() || t.top().lineEnd
}

// isWordRune reports whether r can be part of a T-SQL identifier.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '@' || r == '#' || r == '$'
}
