// Package model holds the reconstructed type model: descriptors parsed from
// type strings, entities (struct/enum/union/typedef), their members, function
// signatures and the arena that owns them.
package model

import "strings"

// Kind identifies the category of an entity.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindStruct
	KindUnion
	KindEnum
	KindTypedef
)

func (k Kind) String() string {
	switch k {
	case KindStruct:
		return "struct"
	case KindUnion:
		return "union"
	case KindEnum:
		return "enum"
	case KindTypedef:
		return "typedef"
	default:
		return "unknown"
	}
}

// ParseKind maps a declaration keyword to a Kind.
func ParseKind(s string) Kind {
	switch strings.ToLower(s) {
	case "struct", "class":
		return KindStruct
	case "union":
		return KindUnion
	case "enum":
		return KindEnum
	case "typedef":
		return KindTypedef
	default:
		return KindUnknown
	}
}

// EntityID addresses an entity in a Corpus. Zero means "no entity".
type EntityID int

// RefClass classifies the outcome of resolving a type reference.
type RefClass uint8

const (
	RefUnresolved RefClass = iota
	RefEntity
	RefPrimitive
	RefExternal
	RefFunction // function pointer; its signature is resolved separately
)

func (c RefClass) String() string {
	switch c {
	case RefEntity:
		return "entity"
	case RefPrimitive:
		return "primitive"
	case RefExternal:
		return "external"
	case RefFunction:
		return "function"
	default:
		return "unresolved"
	}
}

// TypeDescriptor is the structured form of one type expression.
type TypeDescriptor struct {
	Raw               string
	BaseName          string
	Namespace         []string
	IsConst           bool
	IsVolatile        bool
	IsPointer         bool
	PointerDepth      int
	IsReference       bool
	IsArray           bool
	ArraySize         int
	ArrayDims         []int
	IsGeneric         bool
	IsFunctionPointer bool
	TemplateArgs      []TypeDescriptor

	// Filled by the resolver.
	Target EntityID
	Class  RefClass
}

// Valid reports whether parsing produced a base name.
func (d *TypeDescriptor) Valid() bool { return d.BaseName != "" }

// QualifiedName returns namespace::BaseName without template arguments.
func (d *TypeDescriptor) QualifiedName() string {
	if len(d.Namespace) == 0 {
		return d.BaseName
	}
	return strings.Join(d.Namespace, "::") + "::" + d.BaseName
}

// NameWithTemplates returns BaseName followed by the reconstructed argument
// list, using each argument's source text.
func (d *TypeDescriptor) NameWithTemplates() string {
	if !d.IsGeneric {
		return d.BaseName
	}
	args := make([]string, len(d.TemplateArgs))
	for i := range d.TemplateArgs {
		args[i] = d.TemplateArgs[i].Raw
	}
	return d.BaseName + "<" + strings.Join(args, ",") + ">"
}

// FullName returns namespace::NameWithTemplates.
func (d *TypeDescriptor) FullName() string {
	if len(d.Namespace) == 0 {
		return d.NameWithTemplates()
	}
	return strings.Join(d.Namespace, "::") + "::" + d.NameWithTemplates()
}

// IsIndirect reports whether values of this type are stored as an address.
func (d *TypeDescriptor) IsIndirect() bool {
	return d.PointerDepth > 0 || d.IsReference || d.IsFunctionPointer
}

// Walk calls fn for d and every nested template argument, depth first.
func (d *TypeDescriptor) Walk(fn func(*TypeDescriptor)) {
	fn(d)
	for i := range d.TemplateArgs {
		d.TemplateArgs[i].Walk(fn)
	}
}

// Parameter is one entry of a function parameter list.
type Parameter struct {
	Name                  string
	Synthetic             bool
	Type                  TypeDescriptor
	Position              int
	IsFunctionPointerType bool
	Signature             *FunctionSignature
}

// FunctionSignature describes a function or function pointer.
type FunctionSignature struct {
	Name                    string
	ReturnType              TypeDescriptor
	CallingConvention       string
	Parameters              []Parameter
	IsVariadic              bool
	ReturnFunctionSignature *FunctionSignature
}

// Descriptors calls fn for every type descriptor reachable from the signature.
func (s *FunctionSignature) Descriptors(fn func(*TypeDescriptor)) {
	if s == nil {
		return
	}
	s.ReturnType.Walk(fn)
	for i := range s.Parameters {
		s.Parameters[i].Type.Walk(fn)
		s.Parameters[i].Signature.Descriptors(fn)
	}
	s.ReturnFunctionSignature.Descriptors(fn)
}

// Member is one field of a struct or union.
type Member struct {
	Name              string
	Synthetic         bool
	Type              TypeDescriptor
	DeclarationOrder  int
	Offset            *int64
	BitOffset         int
	SourceOffset      *int64
	Alignment         *int
	BitFieldWidth     *int
	IsPadding         bool
	IsVTablePointer   bool
	IsFunctionPointer bool
	Signature         *FunctionSignature
	OverloadIndex     int
}

// IsBitField reports whether the member carries a bit-field width.
func (m *Member) IsBitField() bool { return m.BitFieldWidth != nil }

// EnumValue is one enumerator.
type EnumValue struct {
	Name  string
	Value int64
	Raw   string
}

// Entity is a parsed struct, union, enum or typedef.
type Entity struct {
	ID           EntityID
	Kind         Kind
	BaseName     string
	Namespace    []string
	TemplateArgs []TypeDescriptor
	BaseTypes    []TypeDescriptor
	IsVTable     bool
	IsBitmask    bool
	IsConst      bool
	IsVolatile   bool
	Alignment    *int
	Members      []Member
	Values       []EnumValue
	Underlying   *TypeDescriptor
	Aliased      *TypeDescriptor
	Signature    *FunctionSignature
	HasBody      bool
	BaseTypePath string

	// Filled by the layout calculator.
	Size    int64
	Align   int64
	LaidOut bool

	File string
	Line int
}

// FullyQualifiedName returns namespace::BaseName without template arguments.
func (e *Entity) FullyQualifiedName() string {
	if len(e.Namespace) == 0 {
		return e.BaseName
	}
	return strings.Join(e.Namespace, "::") + "::" + e.BaseName
}

// NameWithTemplates returns BaseName followed by its template argument list.
func (e *Entity) NameWithTemplates() string {
	if len(e.TemplateArgs) == 0 {
		return e.BaseName
	}
	args := make([]string, len(e.TemplateArgs))
	for i := range e.TemplateArgs {
		args[i] = e.TemplateArgs[i].Raw
	}
	return e.BaseName + "<" + strings.Join(args, ",") + ">"
}

// Key is the identity of the entity: namespace plus template-inclusive name.
func (e *Entity) Key() string {
	if len(e.Namespace) == 0 {
		return e.NameWithTemplates()
	}
	return strings.Join(e.Namespace, "::") + "::" + e.NameWithTemplates()
}

// IsStub reports whether the entity came from a forward declaration only.
func (e *Entity) IsStub() bool { return !e.HasBody }

// Descriptors calls fn for every type descriptor owned by the entity.
func (e *Entity) Descriptors(fn func(*TypeDescriptor)) {
	for i := range e.TemplateArgs {
		e.TemplateArgs[i].Walk(fn)
	}
	for i := range e.BaseTypes {
		e.BaseTypes[i].Walk(fn)
	}
	for i := range e.Members {
		e.Members[i].Type.Walk(fn)
		e.Members[i].Signature.Descriptors(fn)
	}
	if e.Underlying != nil {
		e.Underlying.Walk(fn)
	}
	if e.Aliased != nil {
		e.Aliased.Walk(fn)
	}
	e.Signature.Descriptors(fn)
}

// Function is a function recovered from a decompiled body block.
type Function struct {
	Name       string
	Namespace  []string
	Address    uint64
	Signature  *FunctionSignature
	LocalTypes []TypeDescriptor
	File       string
	Line       int
}

// QualifiedName returns namespace::Name.
func (f *Function) QualifiedName() string {
	if len(f.Namespace) == 0 {
		return f.Name
	}
	return strings.Join(f.Namespace, "::") + "::" + f.Name
}

// Descriptors calls fn for every type descriptor owned by the function.
func (f *Function) Descriptors(fn func(*TypeDescriptor)) {
	f.Signature.Descriptors(fn)
	for i := range f.LocalTypes {
		f.LocalTypes[i].Walk(fn)
	}
}
