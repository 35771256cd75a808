// Package sanitize cleans text received from outside the process before it
// reaches the agent: task inputs from the CLI, the gateways and the inbox,
// and the string arguments of tool calls relayed by the gateways.
package sanitize

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxInputSize bounds a task input in bytes. EnvMaxInputSize
// overrides it.
const (
	DefaultMaxInputSize = 8192
	EnvMaxInputSize     = "CORTEX_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// Input checks a task input against the size limit and cleans it.
// Oversized input is rejected, never truncated.
func Input(input string) (string, error) {
	if limit := MaxInputSize(); len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	return Text(input)
}

// Text validates UTF-8 and drops control characters other than newline,
// tab and carriage return.
func Text(s string) (string, error) {
	if !utf8.ValidString(s) {
		return "", ErrInvalidUTF8
	}
	if strings.IndexFunc(s, unsafeControl) < 0 {
		return s, nil
	}
	return strings.Map(func(r rune) rune {
		if unsafeControl(r) {
			return -1
		}
		return r
	}, s), nil
}

// Arguments returns a copy of args where every string, at any depth, went
// through Text. The error names the dotted path of the first bad value.
// args is not modified.
func Arguments(args map[string]any) (map[string]any, error) {
	out, err := value("", args)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return map[string]any{}, nil
	}
	return out.(map[string]any), nil
}

func value(path string, v any) (any, error) {
	switch t := v.(type) {
	case string:
		s, err := Text(t)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", path, err)
		}
		return s, nil
	case map[string]any:
		if t == nil {
			return nil, nil
		}
		m := make(map[string]any, len(t))
		for k, item := range t {
			key := k
			if path != "" {
				key = path + "." + k
			}
			clean, err := value(key, item)
			if err != nil {
				return nil, err
			}
			m[k] = clean
		}
		return m, nil
	case []any:
		list := make([]any, len(t))
		for i, item := range t {
			clean, err := value(path+"["+strconv.Itoa(i)+"]", item)
			if err != nil {
				return nil, err
			}
			list[i] = clean
		}
		return list, nil
	default:
		return v, nil
	}
}

func unsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}

// MaxInputSize returns the active input limit.
func MaxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
