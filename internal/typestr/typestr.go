// Package typestr parses free-standing type expressions of the decompiler
// dialect ("const HashTable<unsigned long,void (__cdecl*)(T const&),0> *")
// into model.TypeDescriptor values. Parsing is best-effort: input that does
// not start with a type yields a descriptor with an empty BaseName.
package typestr

import (
	"strconv"
	"strings"

	"github.com/DeusData/typerecon/internal/model"
)

// leadingWords are dropped before the base path; const/volatile are recorded.
var leadingWords = map[string]bool{
	"const": true, "volatile": true, "struct": true, "class": true,
	"union": true, "enum": true, "typename": true, "__unaligned": true,
	"__cppobj": true, "mutable": true, "static": true,
}

// ignoredTrailing are pointer attributes that carry no layout meaning here.
var ignoredTrailing = map[string]bool{
	"__ptr32": true, "__ptr64": true, "__unaligned": true, "__restrict": true,
	"__sptr": true, "__uptr": true, "const": true, "volatile": true,
}

// primitiveModifiers combine with a following primitive word.
var primitiveModifiers = map[string]bool{
	"unsigned": true, "signed": true, "long": true, "short": true,
}

// primitiveWords may follow a modifier ("unsigned __int64", "long double").
var primitiveWords = map[string]bool{
	"int": true, "char": true, "long": true, "short": true, "double": true,
	"__int8": true, "__int16": true, "__int32": true, "__int64": true,
	"__int128": true, "wchar_t": true,
}

// Parse converts a type expression into a descriptor.
func Parse(s string) model.TypeDescriptor {
	raw := strings.TrimSpace(s)
	d := model.TypeDescriptor{Raw: raw}
	sc := &scanner{src: raw}

	sc.leading(&d)
	segments := sc.path()
	if len(segments) == 0 {
		return d
	}
	last := segments[len(segments)-1]
	d.BaseName = last.name
	if last.hasArgs {
		d.IsGeneric = true
		d.TemplateArgs = make([]model.TypeDescriptor, 0, len(last.args))
		for _, a := range last.args {
			d.TemplateArgs = append(d.TemplateArgs, Parse(a))
		}
	}
	for _, seg := range segments[:len(segments)-1] {
		d.Namespace = append(d.Namespace, seg.text)
	}
	sc.trailing(&d)
	return d
}

// Format renders d in canonical spelling, for display and storage.
func Format(d *model.TypeDescriptor) string {
	if d.IsFunctionPointer || !d.Valid() {
		return Normalize(d.Raw)
	}
	var sb strings.Builder
	if d.IsConst {
		sb.WriteString("const ")
	}
	if d.IsVolatile {
		sb.WriteString("volatile ")
	}
	sb.WriteString(Normalize(d.FullName()))
	if d.PointerDepth > 0 || d.IsReference {
		sb.WriteByte(' ')
	}
	sb.WriteString(strings.Repeat("*", d.PointerDepth))
	if d.IsReference {
		sb.WriteByte('&')
	}
	for _, n := range d.ArrayDims {
		sb.WriteString("[" + strconv.Itoa(n) + "]")
	}
	return sb.String()
}

// Key returns the lookup key of the named type: namespace, base name and
// template arguments in normalized spelling, qualifiers and declarators
// stripped.
func Key(d *model.TypeDescriptor) string {
	return Normalize(d.FullName())
}

// segment is one "::"-separated part of the base path.
type segment struct {
	name    string
	text    string
	args    []string
	hasArgs bool
}

type scanner struct {
	src string
	pos int
}

func (sc *scanner) skipSpace() {
	for sc.pos < len(sc.src) && isSpace(sc.src[sc.pos]) {
		sc.pos++
	}
}

func (sc *scanner) peekWord() (string, int) {
	i := sc.pos
	for i < len(sc.src) && isSpace(sc.src[i]) {
		i++
	}
	start := i
	if i < len(sc.src) && sc.src[i] == '-' && i+1 < len(sc.src) && sc.src[i+1] >= '0' && sc.src[i+1] <= '9' {
		i++
	}
	for i < len(sc.src) && isIdentChar(sc.src[i]) {
		i++
	}
	return sc.src[start:i], i
}

func (sc *scanner) leading(d *model.TypeDescriptor) {
	sc.skipSpace()
	if strings.HasPrefix(sc.src[sc.pos:], "::") {
		sc.pos += 2
	}
	for {
		w, end := sc.peekWord()
		if !leadingWords[w] {
			return
		}
		switch w {
		case "const":
			d.IsConst = true
		case "volatile":
			d.IsVolatile = true
		}
		sc.pos = end
	}
}

func (sc *scanner) path() []segment {
	var segs []segment
	for {
		w, end := sc.peekWord()
		if w == "" {
			return segs
		}
		sc.pos = end
		if primitiveModifiers[w] {
			w = sc.combinePrimitive(w)
		}
		seg := segment{name: w, text: w}

		sc.skipSpace()
		if sc.pos < len(sc.src) && sc.src[sc.pos] == '<' {
			closeAt := MatchingClose(sc.src, sc.pos)
			if closeAt < 0 {
				// unbalanced: keep what we have, drop the broken span
				segs = append(segs, seg)
				sc.pos = len(sc.src)
				return segs
			}
			inner := sc.src[sc.pos+1 : closeAt]
			seg.hasArgs = true
			seg.args = SplitTopLevel(inner, ',')
			seg.text = w + "<" + inner + ">"
			sc.pos = closeAt + 1
		}
		segs = append(segs, seg)

		save := sc.pos
		sc.skipSpace()
		if strings.HasPrefix(sc.src[sc.pos:], "::") {
			sc.pos += 2
			continue
		}
		sc.pos = save
		return segs
	}
}

// combinePrimitive glues multi-word builtin names such as "unsigned long long".
func (sc *scanner) combinePrimitive(w string) string {
	for {
		next, end := sc.peekWord()
		if !primitiveWords[next] && !primitiveModifiers[next] {
			return w
		}
		w += " " + next
		sc.pos = end
		// "long" may still be followed by "long", "double" or "int"
		if !primitiveModifiers[next] {
			return w
		}
	}
}

func (sc *scanner) trailing(d *model.TypeDescriptor) {
	defer func() {
		if d.IsArray {
			d.ArraySize = 1
			for _, n := range d.ArrayDims {
				d.ArraySize *= n
			}
		}
	}()
	for sc.pos < len(sc.src) {
		c := sc.src[sc.pos]
		switch {
		case isSpace(c):
			sc.pos++
		case c == '*':
			d.PointerDepth++
			d.IsPointer = true
			sc.pos++
		case c == '&':
			d.IsReference = true
			sc.pos++
		case c == '[':
			closeAt := MatchingClose(sc.src, sc.pos)
			if closeAt < 0 {
				return
			}
			n, _ := ParseInt(strings.TrimSpace(sc.src[sc.pos+1 : closeAt]))
			d.IsArray = true
			d.ArrayDims = append(d.ArrayDims, int(n))
			sc.pos = closeAt + 1
		case c == '(':
			if strings.Contains(sc.src[sc.pos:], "*") {
				d.IsFunctionPointer = true
			}
			sc.pos = len(sc.src)
		case isIdentChar(c):
			w, end := sc.peekWord()
			if !ignoredTrailing[w] {
				return
			}
			if w == "const" && d.PointerDepth == 0 {
				d.IsConst = true
			}
			sc.pos = end
		default:
			return
		}
	}
}

// ParseInt parses a decimal, hex (0x) or negative integer literal, ignoring
// u/l suffixes.
func ParseInt(s string) (int64, bool) {
	s = strings.TrimRight(strings.TrimSpace(s), "uUlL")
	if s == "" {
		return 0, false
	}
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	var v uint64
	var err error
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		v, err = strconv.ParseUint(s[2:], 16, 64)
	} else {
		v, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return 0, false
	}
	if neg {
		return -int64(v), true
	}
	return int64(v), true
}
