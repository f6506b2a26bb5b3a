package typestr

import (
	"strconv"
	"strings"

	"github.com/DeusData/typerecon/internal/model"
)

// FormatSignature renders s as "ret cc name(params)". Synthetic parameter
// names are omitted.
func FormatSignature(s *model.FunctionSignature) string {
	if s == nil {
		return ""
	}
	var sb strings.Builder
	if s.ReturnFunctionSignature != nil {
		sb.WriteString("(" + FormatSignature(s.ReturnFunctionSignature) + ")")
	} else {
		sb.WriteString(Format(&s.ReturnType))
	}
	if s.CallingConvention != "" {
		sb.WriteString(" " + s.CallingConvention)
	}
	if s.Name != "" {
		sb.WriteString(" " + s.Name)
	}
	sb.WriteByte('(')
	for i := range s.Parameters {
		if i > 0 {
			sb.WriteString(", ")
		}
		p := &s.Parameters[i]
		if p.Signature != nil {
			sb.WriteString(FormatSignature(p.Signature))
			continue
		}
		if p.Synthetic {
			sb.WriteString(Format(&p.Type))
		} else {
			sb.WriteString(Declare(&p.Type, p.Name))
		}
	}
	if s.IsVariadic {
		if len(s.Parameters) > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("...")
	}
	sb.WriteByte(')')
	return sb.String()
}

// Declare renders a declaration of name with type d: the name attaches to a
// trailing pointer or reference and array extents follow it.
func Declare(d *model.TypeDescriptor, name string) string {
	if name == "" || d.IsFunctionPointer || !d.Valid() {
		return strings.TrimSpace(Format(d) + " " + name)
	}
	scalar := *d
	scalar.ArrayDims = nil
	t := Format(&scalar)
	if !strings.HasSuffix(t, "*") && !strings.HasSuffix(t, "&") {
		t += " "
	}
	t += name
	for _, n := range d.ArrayDims {
		t += "[" + strconv.Itoa(n) + "]"
	}
	return t
}
