package script

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names the byte encoding of a script file.
type Encoding string

// Supported encodings.
const (
	EncodingAuto        Encoding = "auto"
	EncodingUTF8        Encoding = "utf-8"
	EncodingUTF16LE     Encoding = "utf-16le"
	EncodingUTF16BE     Encoding = "utf-16be"
	EncodingWindows1252 Encoding = "windows-1252"
)

// Encodings lists every accepted encoding name.
func Encodings() []Encoding {
	return []Encoding{EncodingAuto, EncodingUTF8, EncodingUTF16LE, EncodingUTF16BE, EncodingWindows1252}
}

// ParseEncoding normalises name. An empty name means EncodingAuto.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return EncodingAuto, nil
	case "utf-8", "utf8":
		return EncodingUTF8, nil
	case "utf-16le", "utf16le", "unicode":
		return EncodingUTF16LE, nil
	case "utf-16be", "utf16be":
		return EncodingUTF16BE, nil
	case "windows-1252", "cp1252", "latin1":
		return EncodingWindows1252, nil
	}
	return "", &UnsupportedEncodingError{Name: name}
}

// UnsupportedEncodingError is returned for an unknown encoding name.
type UnsupportedEncodingError struct {
	Name string
}

func (e *UnsupportedEncodingError) Error() string {
	return fmt.Sprintf("unsupported encoding %q (supported: %v)", e.Name, Encodings())
}

// NewReader returns a reader that decodes r from enc into UTF-8. Byte order
// marks are stripped. In auto mode a UTF-16 BOM switches decoding to UTF-16
// and anything else is read as UTF-8.
func NewReader(r io.Reader, enc Encoding) (io.Reader, error) {
	var dec encoding.Encoding
	switch enc {
	case EncodingAuto, "":
		return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())), nil
	case EncodingUTF8:
		dec = unicode.UTF8BOM
	case EncodingUTF16LE:
		dec = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM)
	case EncodingUTF16BE:
		dec = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	case EncodingWindows1252:
		dec = charmap.Windows1252
	default:
		return nil, &UnsupportedEncodingError{Name: string(enc)}
	}
	return transform.NewReader(r, dec.NewDecoder()), nil
}
