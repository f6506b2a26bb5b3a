// Package extract turns one source file into entities and functions. It is
// pure: no shared state, so files can be processed in parallel.
package extract

import (
	"errors"
	"strings"

	"github.com/DeusData/typerecon/internal/declarator"
	"github.com/DeusData/typerecon/internal/fqn"
	"github.com/DeusData/typerecon/internal/model"
	"github.com/DeusData/typerecon/internal/segment"
	"github.com/DeusData/typerecon/internal/typestr"
)

// Options tune per-file extraction.
type Options struct {
	// LocalTypes, when set, returns the type text of every local variable
	// declared in a function body.
	LocalTypes func(body []byte) ([]string, error)
}

// FileResult holds everything parsed from one file.
type FileResult struct {
	Path      string
	Entities  []*model.Entity
	Functions []*model.Function
	Warnings  []*declarator.ParseError
	Skipped   int // function blocks deliberately not modeled
	Padding   int // synthetic names issued
}

// ParseFile parses src. Bad lines and blocks become warnings; ParseFile never
// fails.
func ParseFile(path string, src []byte, opts Options) *FileResult {
	res := &FileResult{Path: path}
	seg := segment.Split(string(src))
	res.Skipped = seg.Skipped
	for _, w := range seg.Warnings {
		res.warn(w.Line, "", w.Reason)
	}

	var counter declarator.Counter
	for i := range seg.Segments {
		s := &seg.Segments[i]
		switch s.Kind {
		case segment.KindFunction:
			if fn := res.function(s, opts); fn != nil {
				res.Functions = append(res.Functions, fn)
			}
		case segment.KindDeclaration:
			for _, e := range res.declaration(s, &counter) {
				e.File = path
				res.Entities = append(res.Entities, e)
			}
		}
	}
	res.Padding = counter.Issued()
	return res
}

func (r *FileResult) warn(line int, text, reason string) {
	r.Warnings = append(r.Warnings, &declarator.ParseError{Line: line, Text: text, Reason: reason})
}

func (r *FileResult) warnErr(line int, err error) {
	var pe *declarator.ParseError
	if errors.As(err, &pe) {
		if pe.Line == 0 {
			pe.Line = line
		}
		r.Warnings = append(r.Warnings, pe)
		return
	}
	r.Warnings = append(r.Warnings, &declarator.ParseError{Line: line, Reason: err.Error(), Err: err})
}

// declaration builds the entities of one declaration block. A typedef of an
// inline aggregate yields two entities.
func (r *FileResult) declaration(s *segment.Segment, c *declarator.Counter) []*model.Entity {
	if s.Keyword == "typedef" {
		return r.typedef(s, c)
	}

	headText, body, hasBody := splitBody(s.Text)
	h := parseHeader(headText)
	if h.name == "" {
		r.warn(s.Line, firstLine(s.Text), "declaration without name")
		return nil
	}
	e := r.aggregate(h, body, hasBody, s.Line, s.Line+strings.Count(headText, "\n"), c)
	return []*model.Entity{e}
}

func (r *FileResult) aggregate(h header, body string, hasBody bool, line, bodyLine int, c *declarator.Counter) *model.Entity {
	ns, base, args := entityName(h.name)
	e := &model.Entity{
		Kind:         h.kind,
		BaseName:     base,
		Namespace:    ns,
		TemplateArgs: args,
		IsVTable:     h.isVTable || strings.HasSuffix(base, "_vtbl"),
		IsBitmask:    h.isBitmask,
		IsConst:      h.isConst,
		IsVolatile:   h.isVolatile,
		Alignment:    h.alignment,
		HasBody:      hasBody,
		Line:         line,
	}
	if e.Kind == model.KindEnum {
		if h.after != "" {
			u := typestr.Parse(h.after)
			e.Underlying = &u
		}
		if hasBody {
			e.Values = r.enumValues(body, bodyLine)
		}
		return e
	}
	e.BaseTypes = baseTypes(h.after)
	if hasBody {
		r.members(e, body, bodyLine, c)
	}
	return e
}

// members parses the statements of a struct or union body in order.
func (r *FileResult) members(e *model.Entity, body string, line int, c *declarator.Counter) {
	seen := make(map[string]bool, len(e.BaseTypes))
	for i := range e.BaseTypes {
		seen[typestr.Key(&e.BaseTypes[i])] = true
	}
	for _, st := range splitStatements(body, line) {
		if st.nested {
			r.warn(st.line, firstLine(st.text), "nested anonymous aggregate skipped")
			continue
		}
		d, err := declarator.ParseMember(st.text, c)
		if err != nil {
			r.warnErr(st.line, err)
			continue
		}
		if d.IsBaseClass {
			if k := typestr.Key(&d.Type); !seen[k] {
				seen[k] = true
				e.BaseTypes = append(e.BaseTypes, d.Type)
			}
			continue
		}
		e.Members = append(e.Members, d.Member(len(e.Members)))
	}
}

// enumValues evaluates enumerators with C rules: an implicit value is the
// previous value plus one, starting at zero.
func (r *FileResult) enumValues(body string, line int) []model.EnumValue {
	body = stripLineComments(commentRe.ReplaceAllString(body, " "))
	var out []model.EnumValue
	known := make(map[string]int64)
	next := int64(0)
	for _, item := range typestr.SplitTopLevel(body, ',') {
		if item == "" {
			continue
		}
		name, expr, explicit := strings.Cut(item, "=")
		name = strings.TrimSpace(name)
		expr = strings.TrimSpace(expr)
		if name == "" || !typestr.IsIdentChar(name[0]) {
			r.warn(line, item, "bad enumerator")
			continue
		}
		v := next
		if explicit {
			val, ok := evalEnumExpr(expr, known)
			if !ok {
				r.warn(line, item, "enumerator value not evaluated")
			} else {
				v = val
			}
		}
		known[name] = v
		out = append(out, model.EnumValue{Name: name, Value: v, Raw: expr})
		next = v + 1
	}
	return out
}

// evalEnumExpr handles literals, earlier enumerators and '|' combinations.
func evalEnumExpr(expr string, known map[string]int64) (int64, bool) {
	expr = strings.Trim(strings.TrimSpace(expr), "()")
	var acc int64
	for _, part := range strings.Split(expr, "|") {
		part = strings.Trim(strings.TrimSpace(part), "()")
		if v, ok := typestr.ParseInt(part); ok {
			acc |= v
			continue
		}
		if v, ok := known[part]; ok {
			acc |= v
			continue
		}
		return 0, false
	}
	return acc, true
}

// typedef handles simple, pointer, function-pointer and function-signature
// aliases, and "typedef struct Tag {...} Alias;".
func (r *FileResult) typedef(s *segment.Segment, c *declarator.Counter) []*model.Entity {
	text := strings.TrimSpace(commentRe.ReplaceAllString(s.Text, " "))
	text = strings.TrimSpace(strings.TrimPrefix(text, "typedef"))
	text = strings.TrimSpace(strings.TrimSuffix(text, ";"))

	var out []*model.Entity
	if headText, body, ok := splitBody(text); ok {
		closeAt := strings.LastIndexByte(text, '}')
		alias := strings.TrimSpace(text[closeAt+1:])
		h := parseHeader(headText)
		if h.name == "" {
			h.name = alias
		}
		if h.name == "" {
			r.warn(s.Line, firstLine(s.Text), "typedef without name")
			return nil
		}
		agg := r.aggregate(h, body, true, s.Line, s.Line+strings.Count(headText, "\n"), c)
		out = append(out, agg)
		if alias == "" || alias == agg.Key() {
			return out
		}
		text = agg.Key() + " " + alias
	}

	e := &model.Entity{Kind: model.KindTypedef, HasBody: true, Line: s.Line}
	var name string
	if d, err := declarator.ParseMember(text, nil); err == nil && !d.Synthetic {
		name = d.Name
		aliased := d.Type
		e.Aliased = &aliased
		e.Signature = d.Signature
	} else if sig, ferr := declarator.ParseFunction(text); ferr == nil {
		name = sig.Name
		e.Signature = sig
	} else {
		r.warn(s.Line, text, "unparsable typedef")
		return out
	}
	e.Namespace, e.BaseName, e.TemplateArgs = entityName(name)
	if e.Aliased != nil && !e.Aliased.IsIndirect() && !e.Aliased.IsArray &&
		typestr.Key(e.Aliased) == typestr.Normalize(e.Key()) {
		// "typedef struct Foo Foo;" names the struct itself
		return out
	}
	return append(out, e)
}

func (r *FileResult) function(s *segment.Segment, opts Options) *model.Function {
	sig, err := declarator.ParseFunction(s.Signature)
	if err != nil {
		r.warnErr(s.Line, err)
		return nil
	}
	ns, base := fqn.Scope(sig.Name)
	fn := &model.Function{
		Name:      base,
		Namespace: ns,
		Address:   s.Address,
		Signature: sig,
		File:      r.Path,
		Line:      s.Line,
	}
	if opts.LocalTypes != nil {
		types, err := opts.LocalTypes([]byte(s.Body))
		if err != nil {
			r.warnErr(s.Line, err)
		}
		for _, t := range types {
			if d := typestr.Parse(t); d.Valid() {
				fn.LocalTypes = append(fn.LocalTypes, d)
			}
		}
	}
	return fn
}

// splitBody separates "header { body }" ignoring braces in comments. ok is
// false for a forward declaration.
func splitBody(text string) (head, body string, ok bool) {
	open := firstBrace(text)
	if open < 0 {
		return strings.TrimSuffix(strings.TrimSpace(text), ";"), "", false
	}
	closeAt := strings.LastIndexByte(text, '}')
	if closeAt < open {
		closeAt = len(text)
	}
	return text[:open], text[open+1 : closeAt], true
}

func firstBrace(text string) int {
	inBlock := false
	for i := 0; i < len(text); i++ {
		switch {
		case inBlock:
			if text[i] == '*' && i+1 < len(text) && text[i+1] == '/' {
				inBlock = false
				i++
			}
		case text[i] == '/' && i+1 < len(text) && text[i+1] == '*':
			inBlock = true
			i++
		case text[i] == '/' && i+1 < len(text) && text[i+1] == '/':
			if nl := strings.IndexByte(text[i:], '\n'); nl >= 0 {
				i += nl
			} else {
				return -1
			}
		case text[i] == '{':
			return i
		}
	}
	return -1
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
