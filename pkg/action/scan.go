package action

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

var errSyntax = errors.New("invalid literal")

// splitSegments splits a call body on '|'.
// Separators inside quoted values or bracketed literals are kept.
func splitSegments(body string) []string {
	var (
		segments   []string
		start      int
		quote      byte
		depth      int
		valueStart = true
	)
	for i := 0; i < len(body); i++ {
		c := body[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch {
		case (c == '"' || c == '\'') && (valueStart || depth > 0):
			quote = c
		case c == '[' || c == '{' || c == '(':
			if valueStart || depth > 0 {
				depth++
			}
		case (c == ']' || c == '}' || c == ')') && depth > 0:
			depth--
		case c == '|' && depth == 0:
			segments = append(segments, body[start:i])
			start = i + 1
			valueStart = true
			continue
		case c == '=' && depth == 0:
			valueStart = true
			continue
		}
		if !unicode.IsSpace(rune(c)) {
			valueStart = false
		}
	}
	return append(segments, body[start:])
}

// splitKeyValue splits a segment at the first '=' outside a quoted span.
func splitKeyValue(segment string) (string, string, bool) {
	var quote byte
	for i := 0; i < len(segment); i++ {
		c := segment[i]
		switch {
		case quote != 0 && c == '\\':
			i++
		case quote != 0 && c == quote:
			quote = 0
		case quote == 0 && (c == '"' || c == '\''):
			quote = c
		case quote == 0 && c == '=':
			return segment[:i], segment[i+1:], true
		}
	}
	return "", "", false
}

// parseLiteral decodes numbers, True/False/None, quoted strings and
// list, tuple and record literals. The whole input must be consumed.
func parseLiteral(s string) (any, error) {
	p := &literalParser{src: s}
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, fmt.Errorf("%w: trailing input at %d", errSyntax, p.pos)
	}
	return v, nil
}

type literalParser struct {
	src string
	pos int
}

func (p *literalParser) eof() bool { return p.pos >= len(p.src) }

func (p *literalParser) skipSpace() {
	for !p.eof() && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *literalParser) value() (any, error) {
	p.skipSpace()
	if p.eof() {
		return nil, fmt.Errorf("%w: unexpected end", errSyntax)
	}
	switch p.src[p.pos] {
	case '"', '\'':
		return p.str()
	case '[':
		p.pos++
		items, _, err := p.sequence(']')
		return items, err
	case '(':
		p.pos++
		items, trailingComma, err := p.sequence(')')
		if err != nil {
			return nil, err
		}
		// (x) is a parenthesized value, (x,) is a one-element tuple.
		if len(items) == 1 && !trailingComma {
			return items[0], nil
		}
		return items, nil
	case '{':
		p.pos++
		return p.record()
	default:
		return p.atom()
	}
}

func (p *literalParser) sequence(closer byte) ([]any, bool, error) {
	items := []any{}
	trailingComma := false
	for {
		p.skipSpace()
		if p.eof() {
			return nil, false, fmt.Errorf("%w: unterminated sequence", errSyntax)
		}
		if p.src[p.pos] == closer {
			p.pos++
			return items, trailingComma, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, false, err
		}
		items = append(items, v)
		trailingComma = false

		p.skipSpace()
		if p.eof() {
			return nil, false, fmt.Errorf("%w: unterminated sequence", errSyntax)
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
			trailingComma = true
		case closer:
		default:
			return nil, false, fmt.Errorf("%w: expected ',' at %d", errSyntax, p.pos)
		}
	}
}

func (p *literalParser) record() (map[string]any, error) {
	out := make(map[string]any)
	for {
		p.skipSpace()
		if p.eof() {
			return nil, fmt.Errorf("%w: unterminated record", errSyntax)
		}
		if p.src[p.pos] == '}' {
			p.pos++
			return out, nil
		}
		key, err := p.value()
		if err != nil {
			return nil, err
		}
		switch key.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("%w: unhashable record key", errSyntax)
		}

		p.skipSpace()
		if p.eof() || p.src[p.pos] != ':' {
			return nil, fmt.Errorf("%w: expected ':' at %d", errSyntax, p.pos)
		}
		p.pos++

		val, err := p.value()
		if err != nil {
			return nil, err
		}
		out[fmt.Sprint(key)] = val

		p.skipSpace()
		if p.eof() {
			return nil, fmt.Errorf("%w: unterminated record", errSyntax)
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case '}':
		default:
			return nil, fmt.Errorf("%w: expected ',' at %d", errSyntax, p.pos)
		}
	}
}

func (p *literalParser) str() (string, error) {
	quote := p.src[p.pos]
	p.pos++
	var b strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		p.pos++
		switch c {
		case quote:
			return b.String(), nil
		case '\\':
			if p.eof() {
				return "", fmt.Errorf("%w: dangling escape", errSyntax)
			}
			e := p.src[p.pos]
			p.pos++
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case '\\', '\'', '"', '/':
				b.WriteByte(e)
			case 'u':
				if p.pos+4 > len(p.src) {
					return "", fmt.Errorf("%w: short unicode escape", errSyntax)
				}
				code, err := strconv.ParseUint(p.src[p.pos:p.pos+4], 16, 32)
				if err != nil {
					return "", fmt.Errorf("%w: bad unicode escape", errSyntax)
				}
				p.pos += 4
				b.WriteRune(rune(code))
			default:
				b.WriteByte('\\')
				b.WriteByte(e)
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", fmt.Errorf("%w: unterminated string", errSyntax)
}

func (p *literalParser) atom() (any, error) {
	start := p.pos
	for !p.eof() && !strings.ContainsRune(",:]})[{( \t\r\n", rune(p.src[p.pos])) {
		p.pos++
	}
	token := p.src[start:p.pos]

	switch token {
	case "":
		return nil, fmt.Errorf("%w: empty token at %d", errSyntax, start)
	case "True":
		return true, nil
	case "False":
		return false, nil
	case "None":
		return nil, nil
	}

	if !isNumeric(token[0]) || !numberLiteral(token) {
		return nil, fmt.Errorf("%w: %q", errSyntax, token)
	}
	if n, err := strconv.Atoi(token); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("%w: %q", errSyntax, token)
}

// numberLiteral reports whether token is spelled as a decimal literal.
// Padded values such as 007 and the inf/nan spellings strconv accepts are
// rejected so they stay strings.
func numberLiteral(token string) bool {
	digits := token
	if digits[0] == '-' || digits[0] == '+' {
		digits = digits[1:]
	}
	if digits == "" || !(digits[0] >= '0' && digits[0] <= '9' || digits[0] == '.') {
		return false
	}
	if len(digits) > 1 && digits[0] == '0' {
		switch digits[1] {
		case '.', 'e', 'E':
		default:
			return false
		}
	}
	return !strings.ContainsAny(digits, "_xXpPiInN")
}

func isNumeric(c byte) bool {
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.'
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
