package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/seatown/sqlbatch/pkg/batch"
)

// eolToken written as a closing token means the region ends at the line terminator.
const eolToken = "eol"

// LineTerminator is the decoded line terminator. In config it may be written
// as crlf, lf or cr, as an escaped string such as "\r\n", or literally.
type LineTerminator string

var terminatorNames = map[string]LineTerminator{
	"crlf": "\r\n",
	"lf":   "\n",
	"cr":   "\r",
}

// ParseLineTerminator resolves a configured line terminator.
func ParseLineTerminator(s string) (LineTerminator, error) {
	if t, ok := terminatorNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t, nil
	}
	if strings.Contains(s, `\`) {
		unquoted, err := strconv.Unquote(`"` + s + `"`)
		if err != nil {
			return "", fmt.Errorf("invalid line terminator %q: %w", s, err)
		}
		return LineTerminator(unquoted), nil
	}
	return LineTerminator(s), nil
}

// ParseDelimiter parses the "open close" shorthand. A lone token or a close
// of "eol" declares a line comment.
func ParseDelimiter(s string) (batch.DelimiterPair, error) {
	fields := strings.Fields(s)
	switch len(fields) {
	case 1:
		return batch.LineComment(fields[0]), nil
	case 2:
		return delimiterPair(fields[0], fields[1]), nil
	default:
		return batch.DelimiterPair{}, fmt.Errorf("invalid delimiter %q: want \"open close\"", s)
	}
}

func delimiterPair(open, closeTok string) batch.DelimiterPair {
	if strings.EqualFold(closeTok, eolToken) {
		return batch.LineComment(open)
	}
	return batch.DelimiterPair{Open: open, Close: closeTok}
}

var (
	delimiterType      = reflect.TypeOf(batch.DelimiterPair{})
	lineTerminatorType = reflect.TypeOf(LineTerminator(""))
)

// delimiterHook decodes delimiter pairs from either {open, close} maps or
// "open close" strings.
func delimiterHook() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != delimiterType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return ParseDelimiter(v)
		case map[string]any:
			open, _ := v["open"].(string)
			closeTok, _ := v["close"].(string)
			if open == "" {
				return nil, fmt.Errorf("delimiter %v has no open token", v)
			}
			return delimiterPair(open, closeTok), nil
		}
		return data, nil
	}
}

func lineTerminatorHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != lineTerminatorType || from.Kind() != reflect.String {
			return data, nil
		}
		return ParseLineTerminator(reflect.ValueOf(data).String())
	}
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		delimiterHook(),
		lineTerminatorHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}
