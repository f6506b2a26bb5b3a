package typestr

import "strings"

// depth tracks the three bracket kinds that can hide separators.
type depth struct {
	angle, paren, square int
}

// feed updates the counters for c. Angle brackets inside () or [] are
// ignored: there they are operators, and any separator is already shielded.
func (d *depth) feed(c byte) {
	switch c {
	case '<':
		if d.paren == 0 && d.square == 0 {
			d.angle++
		}
	case '>':
		if d.angle > 0 && d.paren == 0 && d.square == 0 {
			d.angle--
		}
	case '(':
		d.paren++
	case ')':
		if d.paren > 0 {
			d.paren--
		}
	case '[':
		d.square++
	case ']':
		if d.square > 0 {
			d.square--
		}
	}
}

func (d *depth) zero() bool { return d.angle == 0 && d.paren == 0 && d.square == 0 }

// SplitTopLevel splits s at every sep that sits outside <>, () and [].
// Segments are trimmed; a blank input yields nil.
func SplitTopLevel(s string, sep byte) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	var d depth
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == sep && d.zero() {
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
			continue
		}
		d.feed(c)
	}
	return append(out, strings.TrimSpace(s[start:]))
}

// MatchingClose returns the index of the bracket closing the one at s[open],
// or -1 when s is unbalanced. Brackets of the other two kinds are tracked so
// that e.g. a '>' inside a parameter list does not close a template.
func MatchingClose(s string, open int) int {
	if open < 0 || open >= len(s) {
		return -1
	}
	var closer byte
	switch s[open] {
	case '<':
		closer = '>'
	case '(':
		closer = ')'
	case '[':
		closer = ']'
	default:
		return -1
	}
	var d depth
	for i := open; i < len(s); i++ {
		c := s[i]
		d.feed(c)
		if c == closer && d.zero() {
			return i
		}
	}
	return -1
}

// Normalize canonicalizes whitespace so that textually different spellings of
// the same type compare equal: runs of blanks collapse, and a blank survives
// only between two identifier characters ("unsigned long", "const Foo").
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	var sb strings.Builder
	sb.Grow(len(s))
	pendingSpace := false
	var last byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isSpace(c) {
			pendingSpace = true
			continue
		}
		if pendingSpace && sb.Len() > 0 && isIdentChar(last) && isIdentChar(c) {
			sb.WriteByte(' ')
		}
		pendingSpace = false
		sb.WriteByte(c)
		last = c
	}
	return sb.String()
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func isIdentChar(c byte) bool {
	return c == '_' || c == '$' || c == '~' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// IsIdentChar reports whether c can appear in an identifier of the
// decompiler dialect (which admits '$' and '~').
func IsIdentChar(c byte) bool { return isIdentChar(c) }
