// Package declarator parses single member and parameter declarations of the
// decompiler dialect, plus function signatures, into the model types.
//
// A member line is processed in a fixed order: comments and offset
// annotations, bare padding arrays, alignment, function-pointer shape,
// bit-field width, array dimensions, and finally the name/type split.
package declarator

import (
	"regexp"
	"strings"

	"github.com/DeusData/typerecon/internal/model"
	"github.com/DeusData/typerecon/internal/typestr"
)

var (
	offsetComment  = regexp.MustCompile(`/\*\s*\+?(0[xX][0-9A-Fa-f]+|\d+)\s*\*/`)
	vftComment     = regexp.MustCompile(`/\*\s*VFT\s*\*/`)
	blockComment   = regexp.MustCompile(`/\*.*?\*/`)
	paddingArray   = regexp.MustCompile(`^_BYTE\s*\[\s*(0[xX][0-9A-Fa-f]+|\d+)\s*\]$`)
	alignDeclspec  = regexp.MustCompile(`__declspec\s*\(\s*align\s*\(\s*(\d+)\s*\)\s*\)`)
	baseClassName  = regexp.MustCompile(`^baseclass_([0-9A-Fa-f]+)$`)
	registerSuffix = regexp.MustCompile(`@<[^>]*>|__spoils<[^>]*>`)
)

// Declaration is the parsed form of one member or parameter line.
type Declaration struct {
	Name            string
	Synthetic       bool
	TypeText        string
	Type            model.TypeDescriptor
	SourceOffset    *int64
	Alignment       *int
	BitFieldWidth   *int
	IsPadding       bool
	IsBaseClass     bool
	BaseOffset      int64
	IsVTablePointer bool
	Signature       *model.FunctionSignature
}

// Member converts the declaration into a struct member at position order.
func (d *Declaration) Member(order int) model.Member {
	return model.Member{
		Name:              d.Name,
		Synthetic:         d.Synthetic,
		Type:              d.Type,
		DeclarationOrder:  order,
		SourceOffset:      d.SourceOffset,
		Alignment:         d.Alignment,
		BitFieldWidth:     d.BitFieldWidth,
		IsPadding:         d.IsPadding,
		IsVTablePointer:   d.IsVTablePointer,
		IsFunctionPointer: d.Signature != nil,
		Signature:         d.Signature,
	}
}

// ParseMember parses one statement of a struct or union body. Unnamed members
// draw a synthetic name from c; a nil c uses a private counter.
func ParseMember(line string, c *Counter) (*Declaration, error) {
	if c == nil {
		c = &Counter{}
	}
	text, offset, vft := stripComments(line)
	text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), ";"))
	if text == "" {
		return nil, unparsable(line, "empty declaration")
	}
	d := &Declaration{SourceOffset: offset, IsVTablePointer: vft}

	if m := paddingArray.FindStringSubmatch(text); m != nil {
		d.Name = c.Next()
		d.Synthetic = true
		d.IsPadding = true
		d.TypeText = text
		d.Type = typestr.Parse(text)
		return d, nil
	}

	if m := alignDeclspec.FindStringSubmatch(text); m != nil {
		if n, ok := typestr.ParseInt(m[1]); ok {
			a := int(n)
			d.Alignment = &a
		}
		text = strings.TrimSpace(alignDeclspec.ReplaceAllString(text, ""))
	}

	if shape, ok := findPointerGroup(text); ok {
		r := shape.resolve()
		if !r.sig.ReturnType.Valid() {
			return nil, unparsable(line, "function pointer without return type")
		}
		d.Signature = r.sig
		d.TypeText = text
		d.Type = r.typ
		d.Name = r.name
		if d.Name == "" {
			d.Name = c.Next()
			d.Synthetic = true
		}
		d.Signature.Name = d.Name
		return d, nil
	}
	if hasTopLevelParen(text) {
		return nil, unparsable(line, "not a data member")
	}

	text, d.BitFieldWidth = splitBitField(text)
	text, dims := splitArrays(text)

	typeText, name, named := splitDeclarator(text)
	d.Type = typestr.Parse(typeText)
	if !d.Type.Valid() {
		return nil, unparsable(line, "no type")
	}
	d.TypeText = typeText
	addDims(&d.Type, dims)
	if named {
		d.Name = name
	} else {
		d.Name = c.Next()
		d.Synthetic = true
	}
	if m := baseClassName.FindStringSubmatch(d.Name); m != nil {
		d.IsBaseClass = true
		d.BaseOffset, _ = typestr.ParseInt("0x" + m[1])
	}
	if d.Name == "__vftable" || d.Name == "__vfptr" {
		d.IsVTablePointer = true
	}
	return d, nil
}

// stripComments removes block and line comments, returning the offset
// annotation and the /*VFT*/ marker if present.
func stripComments(line string) (text string, offset *int64, vft bool) {
	text = line
	if m := offsetComment.FindStringSubmatch(text); m != nil {
		if n, ok := typestr.ParseInt(m[1]); ok {
			offset = &n
		}
		text = offsetComment.ReplaceAllString(text, " ")
	}
	if vftComment.MatchString(text) {
		vft = true
		text = vftComment.ReplaceAllString(text, " ")
	}
	text = blockComment.ReplaceAllString(text, " ")
	if i := strings.Index(text, "//"); i >= 0 {
		text = text[:i]
	}
	return text, offset, vft
}

// splitBitField cuts a trailing ": N" at the last top-level single colon.
func splitBitField(s string) (string, *int) {
	at := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(', '[':
			if c := typestr.MatchingClose(s, i); c > 0 {
				i = c
			}
		case ':':
			if i+1 < len(s) && s[i+1] == ':' {
				i++
				continue
			}
			at = i
		}
	}
	if at < 0 {
		return s, nil
	}
	n, ok := typestr.ParseInt(s[at+1:])
	if !ok {
		return s, nil
	}
	w := int(n)
	return strings.TrimSpace(s[:at]), &w
}

// splitArrays cuts trailing [N] groups, outermost first.
func splitArrays(s string) (string, []int) {
	var dims []int
	for strings.HasSuffix(s, "]") {
		open := strings.LastIndexByte(s, '[')
		if open < 0 {
			break
		}
		n, _ := typestr.ParseInt(s[open+1 : len(s)-1])
		dims = append([]int{int(n)}, dims...)
		s = strings.TrimSpace(s[:open])
	}
	return s, dims
}

func addDims(d *model.TypeDescriptor, dims []int) {
	if len(dims) == 0 {
		return
	}
	d.IsArray = true
	d.ArrayDims = append(d.ArrayDims, dims...)
	d.ArraySize = 1
	for _, n := range d.ArrayDims {
		d.ArraySize *= n
	}
}

func hasTopLevelParen(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '[':
			if c := typestr.MatchingClose(s, i); c > 0 {
				i = c
			}
		case '(':
			return true
		}
	}
	return false
}
