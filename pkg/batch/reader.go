package batch

import (
	"bufio"
	"io"
	"strings"
)

// lineReader frames input into lines ending with a (possibly multi-rune)
// terminator. The final line may lack one.
type lineReader struct {
	r     *bufio.Reader
	term  string
	delim byte
	sb    strings.Builder
}

func newLineReader(r io.Reader, term string) *lineReader {
	return &lineReader{
		r:     bufio.NewReader(r),
		term:  term,
		delim: term[len(term)-1],
	}
}

// next returns the next line including its terminator. At end of input it
// returns the remaining text, possibly empty, with io.EOF.
func (lr *lineReader) next() (string, error) {
	lr.sb.Reset()
	for {
		chunk, err := lr.r.ReadString(lr.delim)
		lr.sb.WriteString(chunk)
		if err != nil {
			return lr.sb.String(), err
		}
		if strings.HasSuffix(lr.sb.String(), lr.term) {
			return lr.sb.String(), nil
		}
	}
}
