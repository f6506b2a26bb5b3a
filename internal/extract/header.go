package extract

import (
	"regexp"
	"strings"

	"github.com/DeusData/typerecon/internal/fqn"
	"github.com/DeusData/typerecon/internal/model"
	"github.com/DeusData/typerecon/internal/typestr"
)

var (
	vftMarker    = regexp.MustCompile(`/\*\s*VFT\s*\*/`)
	commentRe    = regexp.MustCompile(`/\*.*?\*/`)
	declspecRe   = regexp.MustCompile(`__declspec\s*\(\s*(\w+)\s*(?:\(\s*(\d+)\s*\))?\s*\)`)
	attrAlignRe  = regexp.MustCompile(`__attribute__\s*\(\(\s*aligned\s*\(\s*(\d+)\s*\)\s*\)\)`)
	accessWordRe = regexp.MustCompile(`^(?:(?:public|private|protected|virtual)\s+)+`)
)

// header is the parsed text in front of a declaration body.
type header struct {
	kind       model.Kind
	isConst    bool
	isVolatile bool
	isVTable   bool // /*VFT*/ on the declaration line
	isBitmask  bool
	alignment  *int
	name       string
	after      string // text after the top-level ':' (bases or enum underlying type)
}

// parseHeader reads "[const] struct [__cppobj] [__declspec(align(N))] Name : Bases".
func parseHeader(text string) header {
	var h header
	h.isVTable = vftMarker.MatchString(text)
	text = commentRe.ReplaceAllString(text, " ")
	text = stripLineComments(text)
	text = strings.Join(strings.Fields(text), " ")

	for _, m := range declspecRe.FindAllStringSubmatch(text, -1) {
		if m[1] == "align" && m[2] != "" {
			if n, ok := typestr.ParseInt(m[2]); ok {
				a := int(n)
				h.alignment = &a
			}
		}
	}
	text = declspecRe.ReplaceAllString(text, " ")
	if m := attrAlignRe.FindStringSubmatch(text); m != nil {
		if n, ok := typestr.ParseInt(m[1]); ok {
			a := int(n)
			h.alignment = &a
		}
		text = attrAlignRe.ReplaceAllString(text, " ")
	}

	text = strings.TrimSpace(text)
	for {
		w := leadingWord(text)
		switch w {
		case "const":
			h.isConst = true
		case "volatile":
			h.isVolatile = true
		case "struct", "class", "union", "enum", "typedef":
			// "enum class" keeps KindEnum
			if h.kind == model.KindUnknown {
				h.kind = model.ParseKind(w)
			}
		case "__bitmask":
			h.isBitmask = true
		case "__cppobj", "__unaligned", "__hidden":
		default:
			name, after := splitColon(text)
			h.name = name
			h.after = after
			return h
		}
		text = strings.TrimSpace(text[len(w):])
	}
}

// splitColon cuts s at its first top-level single ':'.
func splitColon(s string) (string, string) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(', '[':
			if c := typestr.MatchingClose(s, i); c > 0 {
				i = c
			}
		case '`':
			if j := strings.IndexByte(s[i+1:], '\''); j >= 0 {
				i += j + 1
			}
		case ':':
			if i+1 < len(s) && s[i+1] == ':' {
				i++
				continue
			}
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
		}
	}
	return strings.TrimSpace(s), ""
}

// entityName splits a declared name into scope, base name and template
// arguments. Names may contain `quoted' scopes the type parser rejects.
func entityName(name string) (ns []string, base string, args []model.TypeDescriptor) {
	ns, base = fqn.Scope(strings.TrimPrefix(strings.TrimSpace(name), "::"))
	if i := strings.IndexByte(base, '<'); i > 0 && strings.HasSuffix(base, ">") {
		if closeAt := typestr.MatchingClose(base, i); closeAt == len(base)-1 {
			for _, a := range typestr.SplitTopLevel(base[i+1:closeAt], ',') {
				args = append(args, typestr.Parse(a))
			}
			base = base[:i]
		}
	}
	return ns, base, args
}

// baseTypes parses an inheritance list.
func baseTypes(list string) []model.TypeDescriptor {
	var out []model.TypeDescriptor
	for _, b := range typestr.SplitTopLevel(list, ',') {
		b = accessWordRe.ReplaceAllString(b, "")
		if d := typestr.Parse(b); d.Valid() {
			out = append(out, d)
		}
	}
	return out
}

func stripLineComments(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if j := strings.Index(l, "//"); j >= 0 {
			lines[i] = l[:j]
		}
	}
	return strings.Join(lines, "\n")
}

func leadingWord(s string) string {
	i := 0
	for i < len(s) && typestr.IsIdentChar(s[i]) {
		i++
	}
	return s[:i]
}
