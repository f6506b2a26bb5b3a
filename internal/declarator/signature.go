package declarator

import (
	"strconv"
	"strings"

	"github.com/DeusData/typerecon/internal/model"
	"github.com/DeusData/typerecon/internal/typestr"
)

var callingConventions = map[string]bool{
	"__cdecl": true, "__stdcall": true, "__thiscall": true, "__fastcall": true,
	"__vectorcall": true, "__clrcall": true, "__usercall": true, "__userpurge": true,
	"__pascal": true, "__golang": true,
}

// functionAttributes may precede a return type and carry no type meaning.
var functionAttributes = map[string]bool{
	"static": true, "virtual": true, "inline": true, "__inline": true,
	"__forceinline": true, "__noreturn": true, "extern": true, "__noinline": true,
}

// paramAttributes are decompiler markers on parameters.
var paramAttributes = strings.NewReplacer(
	"__hidden ", "", "__struct_ptr ", "", "__return_ptr ", "", "__shifted ", "",
)

// IsCallingConvention reports whether word is a calling-convention keyword.
func IsCallingConvention(word string) bool { return callingConventions[word] }

// pointerShape is "RET (CC *REST)(PARAMS) TAIL" split into its parts.
type pointerShape struct {
	ret    string
	cc     string
	stars  int
	rest   string
	params string
}

type pointerResult struct {
	name string
	typ  model.TypeDescriptor
	sig  *model.FunctionSignature
}

// findPointerGroup locates the first top-level "(CC *...)" group that is
// directly followed by a parameter list.
func findPointerGroup(s string) (pointerShape, bool) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '[':
			if c := typestr.MatchingClose(s, i); c > 0 {
				i = c
			}
		case '(':
			closeAt := typestr.MatchingClose(s, i)
			if closeAt < 0 {
				return pointerShape{}, false
			}
			after := strings.TrimSpace(s[closeAt+1:])
			if cc, stars, rest, ok := parseGroup(s[i+1 : closeAt]); ok && strings.HasPrefix(after, "(") {
				if pc := typestr.MatchingClose(after, 0); pc > 0 {
					return pointerShape{
						ret:    strings.TrimSpace(s[:i]),
						cc:     cc,
						stars:  stars,
						rest:   rest,
						params: after[1:pc],
					}, true
				}
			}
			i = closeAt
		}
	}
	return pointerShape{}, false
}

// parseGroup reads "[CC] *[*...] REST" from the inside of a parenthesized
// declarator group.
func parseGroup(inner string) (cc string, stars int, rest string, ok bool) {
	g := strings.TrimSpace(inner)
	if w := leadingWord(g); callingConventions[w] {
		cc = w
		g = g[len(w):]
	}
	for {
		g = strings.TrimLeft(g, " \t")
		if strings.HasPrefix(g, "*") {
			stars++
			g = g[1:]
			continue
		}
		w := leadingWord(g)
		if stars > 0 && (w == "const" || w == "volatile" || strings.HasPrefix(w, "__ptr") || w == "__restrict") {
			g = g[len(w):]
			continue
		}
		break
	}
	return cc, stars, strings.TrimSpace(g), stars > 0
}

// resolve builds the signature for the shape. When REST is itself a pointer
// group the textual nesting is inverted: the inner group's convention and the
// following parameter list belong to the declared pointer, while the outer
// convention and parameter list describe the function it returns.
func (p pointerShape) resolve() pointerResult {
	ret := typestr.Parse(p.ret)
	return buildPointer(ret, nil, p.cc, p.stars, p.rest, p.params)
}

func buildPointer(ret model.TypeDescriptor, returned *model.FunctionSignature, cc string, stars int, rest, params string) pointerResult {
	ps, variadic := parseParams(params)
	sig := &model.FunctionSignature{
		ReturnType:              ret,
		CallingConvention:       cc,
		Parameters:              ps,
		IsVariadic:              variadic,
		ReturnFunctionSignature: returned,
	}
	typ := pointerDescriptor(ret, cc, stars, params)

	if strings.HasPrefix(rest, "(") {
		if closeAt := typestr.MatchingClose(rest, 0); closeAt > 0 {
			after := strings.TrimSpace(rest[closeAt+1:])
			cc2, stars2, rest2, ok := parseGroup(rest[1:closeAt])
			if ok && strings.HasPrefix(after, "(") {
				if pc := typestr.MatchingClose(after, 0); pc > 0 {
					return buildPointer(typ, sig, cc2, stars2, rest2, after[1:pc])
				}
			}
		}
	}

	// "[CC] NAME(PARAMS)": a function returning the pointer
	fnCC := ""
	if w := leadingWord(rest); callingConventions[w] {
		fnCC = w
		rest = strings.TrimSpace(rest[len(w):])
	}
	if open := strings.IndexByte(rest, '('); open > 0 && strings.HasSuffix(rest, ")") {
		fps, fvariadic := parseParams(rest[open+1 : len(rest)-1])
		name := strings.TrimSpace(rest[:open])
		return pointerResult{
			name: name,
			typ:  typ,
			sig: &model.FunctionSignature{
				Name:                    name,
				ReturnType:              typ,
				CallingConvention:       fnCC,
				Parameters:              fps,
				IsVariadic:              fvariadic,
				ReturnFunctionSignature: sig,
			},
		}
	}

	name, dims := splitArrays(rest)
	addDims(&typ, dims)
	sig.Name = name
	return pointerResult{name: name, typ: typ, sig: sig}
}

// pointerDescriptor renders the pointer type text and parses it, so the
// descriptor keeps the return type's base name for resolution.
func pointerDescriptor(ret model.TypeDescriptor, cc string, stars int, params string) model.TypeDescriptor {
	var sb strings.Builder
	sb.WriteString(ret.Raw)
	sb.WriteString(" (")
	if cc != "" {
		sb.WriteString(cc)
		sb.WriteByte(' ')
	}
	sb.WriteString(strings.Repeat("*", stars))
	sb.WriteString(")(")
	sb.WriteString(strings.TrimSpace(params))
	sb.WriteByte(')')
	return typestr.Parse(sb.String())
}

// parseParams splits a parameter list. "void" and "" mean no parameters; a
// trailing "..." marks the signature variadic.
func parseParams(s string) ([]model.Parameter, bool) {
	parts := typestr.SplitTopLevel(s, ',')
	if len(parts) == 0 || (len(parts) == 1 && (parts[0] == "" || parts[0] == "void")) {
		return nil, false
	}
	var params []model.Parameter
	variadic := false
	for _, p := range parts {
		if p == "..." {
			variadic = true
			continue
		}
		params = append(params, parseParam(p, len(params)))
	}
	return params, variadic
}

func parseParam(p string, pos int) model.Parameter {
	if eq := topLevelIndex(p, '='); eq >= 0 {
		p = strings.TrimSpace(p[:eq])
	}
	p = strings.TrimSpace(paramAttributes.Replace(p + " "))
	param := model.Parameter{Position: pos}

	if shape, ok := findPointerGroup(p); ok {
		r := shape.resolve()
		param.Name = r.name
		param.Type = r.typ
		param.IsFunctionPointerType = true
		param.Signature = r.sig
	} else {
		text, dims := splitArrays(p)
		typeText, name, named := splitDeclarator(text)
		param.Type = typestr.Parse(typeText)
		addDims(&param.Type, dims)
		if named {
			param.Name = name
		}
	}
	if param.Name == "" {
		param.Name = "__param" + strconv.Itoa(pos)
		param.Synthetic = true
	}
	return param
}

// ParseFunction parses a function signature such as
// "int __thiscall Archive::SetVersion(Archive *this, int version)" or a
// function returning a function pointer. The signature may span lines.
func ParseFunction(text string) (*model.FunctionSignature, error) {
	s := strings.Join(strings.Fields(text), " ")
	s = registerSuffix.ReplaceAllString(s, "")
	s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	if s == "" {
		return nil, unparsable(text, "empty signature")
	}

	if shape, ok := findPointerGroup(s); ok {
		r := shape.resolve()
		if r.name == "" || r.sig.Name == "" {
			return nil, unparsable(text, "function pointer without name")
		}
		return r.sig, nil
	}

	if !strings.HasSuffix(s, ")") {
		return nil, unparsable(text, "missing parameter list")
	}
	open := matchingOpen(s, len(s)-1)
	if open <= 0 {
		return nil, unparsable(text, "unbalanced parameter list")
	}
	before := strings.TrimSpace(s[:open])
	start := nameStart(before)
	name := before[start:]
	if name == "" {
		return nil, unparsable(text, "missing function name")
	}

	var kept []string
	for _, w := range strings.Fields(before[:start]) {
		if !functionAttributes[w] {
			kept = append(kept, w)
		}
	}
	prefix := strings.Join(kept, " ")
	// the convention may follow a '*' without a blank: "Foo *__thiscall"
	cc := ""
	j := len(prefix)
	for j > 0 && typestr.IsIdentChar(prefix[j-1]) {
		j--
	}
	if callingConventions[prefix[j:]] {
		cc = prefix[j:]
		prefix = strings.TrimSpace(prefix[:j])
	}

	ps, variadic := parseParams(s[open+1 : len(s)-1])
	return &model.FunctionSignature{
		Name:              name,
		ReturnType:        typestr.Parse(prefix),
		CallingConvention: cc,
		Parameters:        ps,
		IsVariadic:        variadic,
	}, nil
}

// nameStart returns where the (possibly qualified) function name in before
// begins. Template spans, `quoted' scopes and operator names are kept whole.
func nameStart(before string) int {
	end := len(before)
	if i := strings.LastIndex(before, "operator"); i >= 0 &&
		(i == 0 || !typestr.IsIdentChar(before[i-1])) &&
		(i+8 == len(before) || !typestr.IsIdentChar(before[i+8]) || before[i+8] == ' ') {
		end = i
	}
	i := end
	for i > 0 {
		c := before[i-1]
		switch {
		case typestr.IsIdentChar(c) || c == ':':
			i--
		case c == '>':
			open := matchingOpen(before, i-1)
			if open < 0 {
				return i
			}
			i = open
		case c == '\'':
			j := strings.LastIndexByte(before[:i-1], '`')
			if j < 0 {
				return i
			}
			i = j
		default:
			return i
		}
	}
	return i
}

// matchingOpen scans backwards from the ')' or '>' at closeAt.
func matchingOpen(s string, closeAt int) int {
	var opener, closer byte
	switch s[closeAt] {
	case ')':
		opener, closer = '(', ')'
	case '>':
		opener, closer = '<', '>'
	default:
		return -1
	}
	depth := 0
	for i := closeAt; i >= 0; i-- {
		switch s[i] {
		case closer:
			depth++
		case opener:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func topLevelIndex(s string, target byte) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(', '[':
			if c := typestr.MatchingClose(s, i); c > 0 {
				i = c
			}
		case target:
			return i
		}
	}
	return -1
}

func leadingWord(s string) string {
	s = strings.TrimLeft(s, " \t")
	i := 0
	for i < len(s) && typestr.IsIdentChar(s[i]) {
		i++
	}
	return s[:i]
}
