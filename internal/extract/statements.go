package extract

import "strings"

// statement is one ';'-terminated piece of a struct body.
type statement struct {
	text   string
	line   int
	nested bool // contains its own { } block
}

// splitStatements splits a body at top-level ';'. Block comments stay with
// their statement, and a block comment that follows the ';' on the same line
// (an offset annotation) is attached to the statement it trails. Line
// comments are dropped.
func splitStatements(body string, firstLine int) []statement {
	var out []statement
	var sb strings.Builder
	line := firstLine
	start := -1
	braces, parens := 0, 0
	inBlock, nested := false, false

	flush := func() {
		text := strings.TrimSpace(sb.String())
		if text != "" && start >= 0 {
			out = append(out, statement{text: text, line: start, nested: nested})
		}
		sb.Reset()
		start = -1
		nested = false
	}

	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '\n' {
			line++
		}
		if inBlock {
			sb.WriteByte(c)
			if c == '*' && i+1 < len(body) && body[i+1] == '/' {
				sb.WriteByte('/')
				i++
				inBlock = false
			}
			continue
		}
		if c == '/' && i+1 < len(body) {
			switch body[i+1] {
			case '*':
				inBlock = true
				sb.WriteString("/*")
				i++
				continue
			case '/':
				nl := strings.IndexByte(body[i:], '\n')
				if nl < 0 {
					i = len(body)
				} else {
					i += nl - 1
				}
				continue
			}
		}
		if start < 0 && c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			start = line
		}
		sb.WriteByte(c)
		switch c {
		case '(':
			parens++
		case ')':
			if parens > 0 {
				parens--
			}
		case '{':
			braces++
			nested = true
		case '}':
			if braces > 0 {
				braces--
			}
		case ';':
			if braces != 0 || parens != 0 {
				continue
			}
			i = trailingComment(body, i+1, &sb) - 1
			flush()
		}
	}
	if inBlock {
		return out
	}
	// text after the last ';' is kept only if it is more than comments
	if rest := commentRe.ReplaceAllString(sb.String(), ""); strings.TrimSpace(rest) != "" {
		flush()
	}
	return out
}

// trailingComment appends a same-line block comment starting at or after
// from, returning the index just past it (or from when there is none).
func trailingComment(body string, from int, sb *strings.Builder) int {
	j := from
	for j < len(body) && (body[j] == ' ' || body[j] == '\t') {
		j++
	}
	if j+1 >= len(body) || body[j] != '/' || body[j+1] != '*' {
		return from
	}
	end := strings.Index(body[j:], "*/")
	if end < 0 || strings.IndexByte(body[j:j+end], '\n') >= 0 {
		return from
	}
	sb.WriteByte(' ')
	sb.WriteString(body[j : j+end+2])
	return j + end + 2
}
