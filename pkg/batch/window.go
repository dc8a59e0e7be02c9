package batch

import "unicode"

// window holds the most recent runes seen by a scanner.
//
// Its capacity is one rune longer than the longest token being matched so the
// rune preceding a matched token is still available for boundary checks.
type window struct {
	buf  []rune
	size int

	// fresh counts runes appended since the last token match. A token only
	// matches when all of its runes are fresh, so two matches never share a rune.
	fresh int
}

func newWindow(size int) *window {
	if size < 1 {
		size = 1
	}
	return &window{buf: make([]rune, 0, size), size: size}
}

// append pushes r, dropping the oldest rune once the window is full.
func (w *window) append(r rune) {
	if len(w.buf) == w.size {
		copy(w.buf, w.buf[1:])
		w.buf = w.buf[:w.size-1]
	}
	w.buf = append(w.buf, r)
	w.fresh++
}

// content returns the current window.
func (w *window) content() string {
	return string(w.buf)
}

func (w *window) len() int {
	return len(w.buf)
}

func (w *window) clear() {
	w.buf = w.buf[:0]
	w.fresh = 0
}

// consume marks every rune currently in the window as used by a match.
func (w *window) consume() {
	w.fresh = 0
}

// endsWith reports whether tok is a suffix of the window made only of fresh runes.
func (w *window) endsWith(tok []rune, fold bool) bool {
	n := len(tok)
	if n == 0 || n > len(w.buf) || n > w.fresh {
		return false
	}
	tail := w.buf[len(w.buf)-n:]
	for i, r := range tok {
		if tail[i] == r {
			continue
		}
		if !fold || !equalFold(tail[i], r) {
			return false
		}
	}
	return true
}

// before returns the rune immediately preceding the last n runes.
func (w *window) before(n int) (rune, bool) {
	i := len(w.buf) - n - 1
	if i < 0 {
		return 0, false
	}
	return w.buf[i], true
}

func equalFold(a, b rune) bool {
	return unicode.ToLower(a) == unicode.ToLower(b) || unicode.ToUpper(a) == unicode.ToUpper(b)
}
