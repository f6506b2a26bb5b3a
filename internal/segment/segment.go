// Package segment cuts decompiler output into declaration and function-body
// blocks. Brace counting ignores braces inside comments, string and character
// literals, and `quoted' decompiler names.
package segment

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind distinguishes declaration blocks from function blocks.
type Kind uint8

const (
	KindDeclaration Kind = iota + 1
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindDeclaration:
		return "declaration"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// Segment is one block of source text.
type Segment struct {
	Kind     Kind
	Keyword  string // struct, union, enum, typedef (class is reported as struct)
	Text     string // declaration text, anchor comment removed
	Line     int    // 1-based first line of Text
	EndLine  int
	Anchored bool
	Ordinal  int64 // value of the /* N */ anchor
	Forward  bool  // no '{' before the terminating ';'

	Address   uint64
	Signature string
	Body      string
}

// Warning is a block that was dropped.
type Warning struct {
	Line   int
	Reason string
}

// Result holds the blocks of one file.
type Result struct {
	Segments []Segment
	Warnings []Warning
	Skipped  int // function blocks intentionally not modeled
}

var (
	anchorLine     = regexp.MustCompile(`^\s*/\*\s*(\d+)\s*\*/\s*(.*)$`)
	declStart      = regexp.MustCompile(`^\s*(?:(?:const|volatile)\s+)*(struct|union|enum|typedef|class)\b`)
	functionHeader = regexp.MustCompile(`^\s*//-{3,}\s*\(([0-9A-Fa-f]+)\)\s*-*\s*$`)
)

const vectorDeletingDtor = "vector deleting destructor"

// Split scans src and returns its blocks in source order.
func Split(src string) Result {
	lines := strings.Split(src, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], "\r")
	}
	var res Result
	var sc, top braceScanner
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if top.inBlock {
			top.feed(line)
			top.reset()
			continue
		}

		if m := functionHeader.FindStringSubmatch(line); m != nil {
			addr, _ := strconv.ParseUint(m[1], 16, 64)
			i = splitFunction(lines, i+1, addr, &res)
			continue
		}

		first, ordinal, anchored := line, int64(0), false
		if m := anchorLine.FindStringSubmatch(line); m != nil {
			ordinal, _ = strconv.ParseInt(m[1], 10, 64)
			anchored = true
			first = m[2]
			if strings.TrimSpace(first) == "" {
				if i+1 >= len(lines) || !declStart.MatchString(lines[i+1]) {
					continue
				}
				i++
				first = lines[i]
			}
		}
		m := declStart.FindStringSubmatch(first)
		if m == nil {
			top.feed(line)
			top.reset()
			continue
		}

		start := i
		sc.reset()
		seg := Segment{
			Kind:     KindDeclaration,
			Keyword:  m[1],
			Line:     start + 1,
			Anchored: anchored,
			Ordinal:  ordinal,
		}
		if seg.Keyword == "class" {
			seg.Keyword = "struct"
		}
		var text []string
		done := false
		for j := start; j < len(lines); j++ {
			l := lines[j]
			if j == start {
				l = first
			}
			text = append(text, l)
			ls := sc.feed(l)
			if !sc.sawOpen && ls.semi >= 0 {
				seg.Forward = true
				done = true
			} else if sc.sawOpen && ls.close >= 0 {
				done = true
			}
			if done {
				i = j
				seg.EndLine = j + 1
				break
			}
		}
		if !done {
			res.Warnings = append(res.Warnings, Warning{Line: start + 1, Reason: "unterminated " + seg.Keyword})
			return res
		}
		seg.Text = strings.Join(text, "\n")
		res.Segments = append(res.Segments, seg)
	}
	return res
}

// splitFunction collects the signature and body following a function header
// at lines[from-1]. It returns the index of the last consumed line.
func splitFunction(lines []string, from int, addr uint64, res *Result) int {
	var sig []string
	var sc braceScanner
	openAt := -1
	i := from
	for ; i < len(lines); i++ {
		if functionHeader.MatchString(lines[i]) {
			res.Warnings = append(res.Warnings, Warning{Line: from, Reason: "function block without body"})
			return i - 1
		}
		l := strings.TrimSpace(lines[i])
		switch {
		case l == "":
			if len(sig) == 0 {
				continue
			}
		case strings.HasPrefix(l, "#error"):
			if len(sig) == 0 {
				res.Skipped++
				return i
			}
		case strings.HasPrefix(l, "//"):
			continue
		}
		ls := sc.feed(lines[i])
		if ls.open >= 0 {
			openAt = ls.open
			sig = append(sig, lines[i][:openAt])
			break
		}
		if ls.semi >= 0 {
			// a prototype, not a definition
			return i
		}
		sig = append(sig, lines[i])
	}
	if i >= len(lines) {
		res.Warnings = append(res.Warnings, Warning{Line: from, Reason: "function block without body"})
		return i
	}

	startLine := i
	body := []string{lines[i][openAt:]}
	closed := sc.depth == 0
	for !closed && i+1 < len(lines) {
		i++
		body = append(body, lines[i])
		if ls := sc.feed(lines[i]); ls.close >= 0 {
			closed = true
		}
	}
	if !closed {
		res.Warnings = append(res.Warnings, Warning{Line: startLine + 1, Reason: "unterminated function body"})
		return i
	}

	signature := strings.TrimSpace(strings.Join(sig, "\n"))
	bodyText := strings.Join(body, "\n")
	if strings.Contains(signature, vectorDeletingDtor) || bodyStartsWithError(bodyText) {
		res.Skipped++
		return i
	}
	res.Segments = append(res.Segments, Segment{
		Kind:      KindFunction,
		Line:      from + 1,
		EndLine:   i + 1,
		Address:   addr,
		Signature: signature,
		Body:      bodyText,
	})
	return i
}

func bodyStartsWithError(body string) bool {
	b := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(body), "{"))
	return strings.HasPrefix(b, "#error")
}
