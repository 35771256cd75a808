// Package action converts planner output lines into typed actions.
//
// A line is either a tool call or a terminal answer:
//
//	CALL: send_email|to="a@b.c"|body.subject=Report|body.text='x = 1'
//	TERMINAL: The report was sent.
//
// Parameter values are decoded as literals (numbers, booleans, quoted strings,
// lists, tuples and records), then as JSON, and finally kept as raw strings
// with symmetric outer quotes removed. Dotted keys build nested maps.
package action

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/cortex/pkg/domain"
)

// Line markers.
const (
	CallMarker     = "CALL:"
	TerminalMarker = "TERMINAL:"
)

// ErrNoAction is returned by Classify when no line carries a marker.
var ErrNoAction = fmt.Errorf("%w: no %s or %s line", domain.ErrPlan, CallMarker, TerminalMarker)

// ParseError describes a malformed action line.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s: %q", e.Reason, e.Line)
}

// IsParseError reports whether err is a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// Parse converts one line into an Action.
func Parse(line string) (domain.Action, error) {
	trimmed := cleanLine(line)
	if answer, ok := strings.CutPrefix(trimmed, TerminalMarker); ok {
		act := domain.Terminal(strings.TrimSpace(answer))
		act.Raw = trimmed
		return act, nil
	}
	if !strings.HasPrefix(trimmed, CallMarker) {
		return domain.Action{}, &ParseError{Line: line, Reason: "missing " + CallMarker + " or " + TerminalMarker + " marker"}
	}

	name, args, err := ParseCall(trimmed)
	if err != nil {
		return domain.Action{}, err
	}
	act := domain.Call(name, args)
	act.Raw = trimmed
	return act, nil
}

// ParseCall parses a CALL line into a tool name and its nested arguments.
func ParseCall(line string) (string, map[string]any, error) {
	trimmed := cleanLine(line)
	body, ok := strings.CutPrefix(trimmed, CallMarker)
	if !ok {
		return "", nil, &ParseError{Line: line, Reason: "missing " + CallMarker + " marker"}
	}

	segments := splitSegments(body)
	name := strings.TrimSpace(segments[0])
	if name == "" {
		return "", nil, &ParseError{Line: line, Reason: "empty tool name"}
	}

	args := make(map[string]any)
	for _, segment := range segments[1:] {
		if strings.TrimSpace(segment) == "" {
			continue
		}
		key, raw, found := splitKeyValue(segment)
		if !found {
			return "", nil, &ParseError{Line: line, Reason: fmt.Sprintf("parameter %q has no '='", strings.TrimSpace(segment))}
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return "", nil, &ParseError{Line: line, Reason: "empty parameter name"}
		}
		if err := assign(args, strings.Split(key, "."), DecodeValue(raw)); err != nil {
			return "", nil, &ParseError{Line: line, Reason: err.Error()}
		}
	}

	return name, args, nil
}

// Classify finds the action in multi-line planner output.
// The first marked line decides the kind. For terminal output the answer is
// taken from the last terminal line, so later lines override earlier ones.
// Call lines are returned unparsed in Raw.
func Classify(raw string) (domain.Action, error) {
	for _, line := range strings.Split(raw, "\n") {
		line = cleanLine(line)
		switch {
		case strings.HasPrefix(line, CallMarker):
			return domain.Action{Kind: domain.ActionCall, Raw: line}, nil
		case strings.HasPrefix(line, TerminalMarker):
			act := domain.Terminal(LastTerminal(raw))
			act.Raw = line
			return act, nil
		}
	}
	return domain.Action{}, ErrNoAction
}

// LastTerminal returns the text of the last terminal line in raw, or an
// empty string when there is none.
func LastTerminal(raw string) string {
	answer := ""
	for _, line := range strings.Split(raw, "\n") {
		if rest, ok := strings.CutPrefix(cleanLine(line), TerminalMarker); ok {
			answer = strings.TrimSpace(rest)
		}
	}
	return answer
}

// Format renders an action as a single line that Parse accepts.
func Format(act domain.Action) string {
	if act.IsTerminal() {
		return TerminalMarker + " " + act.Answer
	}

	var b strings.Builder
	b.WriteString(CallMarker)
	b.WriteString(" ")
	b.WriteString(act.Tool)
	for _, key := range sortedKeys(act.Args) {
		b.WriteString("|")
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(encodeValue(act.Args[key]))
	}
	return b.String()
}

func encodeValue(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return strconv.Quote(fmt.Sprint(v))
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// DecodeValue decodes a raw parameter value.
func DecodeValue(raw string) any {
	s := strings.TrimSpace(raw)
	if v, err := parseLiteral(s); err == nil {
		return v
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return stripQuotes(s)
}

func cleanLine(line string) string {
	return strings.Trim(strings.TrimSpace(line), "`")
}

func stripQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// assign stores value under the dotted path, merging into existing maps.
func assign(args map[string]any, path []string, value any) error {
	current := args
	for i, part := range path[:len(path)-1] {
		part = strings.TrimSpace(part)
		next, exists := current[part]
		if !exists {
			child := make(map[string]any)
			current[part] = child
			current = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("key %q conflicts with a scalar value", strings.Join(path[:i+1], "."))
		}
		current = child
	}

	leaf := strings.TrimSpace(path[len(path)-1])
	if leaf == "" {
		return fmt.Errorf("empty key segment in %q", strings.Join(path, "."))
	}
	if existing, ok := current[leaf].(map[string]any); ok {
		if incoming, ok := value.(map[string]any); ok {
			for k, v := range incoming {
				existing[k] = v
			}
			return nil
		}
	}
	current[leaf] = value
	return nil
}
