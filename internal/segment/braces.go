package segment

// braceScanner counts braces across lines. Block-comment state carries over
// from one line to the next.
type braceScanner struct {
	inBlock bool
	depth   int
	sawOpen bool
}

// lineScan reports positions found in one line, -1 when absent.
type lineScan struct {
	open  int // '{' that took depth from 0 to 1
	close int // '}' that took depth from 1 to 0
	semi  int // first ';' at depth 0 before any '{'
}

// reset clears brace state but keeps the comment state.
func (b *braceScanner) reset() {
	b.depth = 0
	b.sawOpen = false
}

func (b *braceScanner) feed(line string) lineScan {
	ls := lineScan{open: -1, close: -1, semi: -1}
	for i := 0; i < len(line); i++ {
		c := line[i]
		if b.inBlock {
			if c == '*' && i+1 < len(line) && line[i+1] == '/' {
				b.inBlock = false
				i++
			}
			continue
		}
		switch c {
		case '/':
			if i+1 < len(line) {
				switch line[i+1] {
				case '/':
					return ls
				case '*':
					b.inBlock = true
					i++
				}
			}
		case '"':
			i = skipQuoted(line, i, '"', len(line))
		case '\'':
			// only a short literal like 'a' or '\n'; a lone quote is text
			i = skipQuoted(line, i, '\'', i+6)
		case '`':
			if j := indexFrom(line, i+1, '\''); j > 0 {
				i = j
			}
		case '{':
			if b.depth == 0 && ls.open < 0 {
				ls.open = i
			}
			b.depth++
			b.sawOpen = true
		case '}':
			if b.depth > 0 {
				b.depth--
				if b.depth == 0 && ls.close < 0 {
					ls.close = i
				}
			}
		case ';':
			if b.depth == 0 && !b.sawOpen && ls.semi < 0 {
				ls.semi = i
			}
		}
	}
	return ls
}

// skipQuoted returns the index of the closing quote of the literal opening at
// start, or start when none is found before limit.
func skipQuoted(line string, start int, quote byte, limit int) int {
	if limit > len(line) {
		limit = len(line)
	}
	for j := start + 1; j < limit; j++ {
		switch line[j] {
		case '\\':
			j++
		case quote:
			return j
		}
	}
	return start
}

func indexFrom(s string, from int, c byte) int {
	for i := from; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}
