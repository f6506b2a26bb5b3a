package typestr

import (
	"strings"
	"testing"

	"github.com/DeusData/typerecon/internal/model"
)

func TestParseTemplateArgCount(t *testing.T) {
	tests := []struct {
		in       string
		wantArgs int
	}{
		{"IDClass<_tagVersionHandle,32,32>", 3},
		{"HashTable<unsigned long,void (__cdecl*)(T const&),0>", 3},
		{"Map<Pair<int,int>,Vec<Array<char,4>,Alloc<char> >,Fn<void (*)(int,int)> >", 3},
		{"Cb<void (__thiscall*)(A<int,int>*,B[2][3]),int[4]>", 2},
		{"Single<Foo>", 1},
		{"Plain", 0},
	}
	for _, tt := range tests {
		d := Parse(tt.in)
		if len(d.TemplateArgs) != tt.wantArgs {
			t.Errorf("Parse(%q): expected %d args, got %d", tt.in, tt.wantArgs, len(d.TemplateArgs))
		}
		if tt.wantArgs > 0 {
			name := d.NameWithTemplates()
			inner := name[strings.Index(name, "<")+1 : len(name)-1]
			if got := len(SplitTopLevel(inner, ',')); got != tt.wantArgs {
				t.Errorf("NameWithTemplates(%q) = %q: %d top-level args, want %d", tt.in, name, got, tt.wantArgs)
			}
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	d := Parse("IDClass<_tagVersionHandle,32,32>")
	if d.BaseName != "IDClass" {
		t.Fatalf("expected IDClass, got %q", d.BaseName)
	}
	if got := d.NameWithTemplates(); got != "IDClass<_tagVersionHandle,32,32>" {
		t.Errorf("round trip: got %q", got)
	}
	if c := strings.Count(d.NameWithTemplates(), ","); c != 2 {
		t.Errorf("expected 2 commas, got %d", c)
	}
	if d.TemplateArgs[1].BaseName != "32" || d.TemplateArgs[0].BaseName != "_tagVersionHandle" {
		t.Errorf("value parameters: got %q %q", d.TemplateArgs[0].BaseName, d.TemplateArgs[1].BaseName)
	}
}

func TestParseNestedFunctionPointerArg(t *testing.T) {
	d := Parse("const HashTable<unsigned long,void (__cdecl*)(T const&),0> *")
	if !d.IsConst || d.PointerDepth != 1 || !d.IsPointer {
		t.Errorf("qualifiers: const=%v depth=%d", d.IsConst, d.PointerDepth)
	}
	if len(d.TemplateArgs) != 3 {
		t.Fatalf("expected 3 args, got %d", len(d.TemplateArgs))
	}
	if d.TemplateArgs[0].BaseName != "unsigned long" {
		t.Errorf("arg0: got %q", d.TemplateArgs[0].BaseName)
	}
	fp := d.TemplateArgs[1]
	if fp.Raw != "void (__cdecl*)(T const&)" {
		t.Errorf("arg1 text: got %q", fp.Raw)
	}
	if !fp.IsFunctionPointer {
		t.Error("arg1 should be a function pointer")
	}
	if d.TemplateArgs[2].BaseName != "0" {
		t.Errorf("arg2: got %q", d.TemplateArgs[2].BaseName)
	}
}

func TestParseQualifiersAndDeclarators(t *testing.T) {
	tests := []struct {
		in        string
		base      string
		ns        string
		depth     int
		ref       bool
		isConst   bool
		arraySize int
	}{
		{"int", "int", "", 0, false, false, 0},
		{"unsigned __int64", "unsigned __int64", "", 0, false, false, 0},
		{"unsigned long long *", "unsigned long long", "", 1, false, false, 0},
		{"const char **", "char", "", 2, false, true, 0},
		{"T const&", "T", "", 0, true, true, 0},
		{"struct Foo::Bar * *", "Bar", "Foo", 2, false, false, 0},
		{"std::vector<int>::iterator", "iterator", "std::vector<int>", 0, false, false, 0},
		{"char[16]", "char", "", 0, false, false, 16},
		{"int[2][3]", "int", "", 0, false, false, 6},
		{"Foo *__ptr64", "Foo", "", 1, false, false, 0},
		{"::Global", "Global", "", 0, false, false, 0},
	}
	for _, tt := range tests {
		d := Parse(tt.in)
		if d.BaseName != tt.base {
			t.Errorf("%q: base %q, want %q", tt.in, d.BaseName, tt.base)
		}
		if ns := strings.Join(d.Namespace, "::"); ns != tt.ns {
			t.Errorf("%q: namespace %q, want %q", tt.in, ns, tt.ns)
		}
		if d.PointerDepth != tt.depth {
			t.Errorf("%q: depth %d, want %d", tt.in, d.PointerDepth, tt.depth)
		}
		if d.IsReference != tt.ref {
			t.Errorf("%q: reference %v, want %v", tt.in, d.IsReference, tt.ref)
		}
		if d.IsConst != tt.isConst {
			t.Errorf("%q: const %v, want %v", tt.in, d.IsConst, tt.isConst)
		}
		if d.ArraySize != tt.arraySize {
			t.Errorf("%q: array size %d, want %d", tt.in, d.ArraySize, tt.arraySize)
		}
	}
}

func TestParseUnparsableYieldsEmptyBase(t *testing.T) {
	for _, in := range []string{"", "   ", "*", "(*)", "<int>"} {
		d := Parse(in)
		if d.BaseName != "" {
			t.Errorf("Parse(%q): expected empty base, got %q", in, d.BaseName)
		}
	}
}

func TestParseUnbalancedTemplate(t *testing.T) {
	d := Parse("Broken<int,")
	if d.BaseName != "Broken" {
		t.Errorf("expected Broken, got %q", d.BaseName)
	}
	if d.IsGeneric {
		t.Error("unbalanced span must not produce template args")
	}
}

func TestSplitTopLevel(t *testing.T) {
	got := SplitTopLevel("a, b<c,d>, e(f,g), h[i,j]", ',')
	want := []string{"a", "b<c,d>", "e(f,g)", "h[i,j]"}
	if len(got) != len(want) {
		t.Fatalf("expected %d parts, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("part %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMatchingClose(t *testing.T) {
	s := "A<B<(x>y)>,C>"
	if got := MatchingClose(s, 1); got != len(s)-1 {
		t.Errorf("expected %d, got %d", len(s)-1, got)
	}
	if got := MatchingClose("A<B", 1); got != -1 {
		t.Errorf("unbalanced: expected -1, got %d", got)
	}
}

func TestNormalizeAndKey(t *testing.T) {
	if got := Normalize("  HashTable< unsigned   long , Foo * >  "); got != "HashTable<unsigned long,Foo*>" {
		t.Errorf("Normalize: got %q", got)
	}
	a := Parse("HashTable<unsigned long, Foo *> *")
	b := Parse("HashTable<unsigned long,Foo*>")
	if Key(&a) != Key(&b) {
		t.Errorf("keys differ: %q vs %q", Key(&a), Key(&b))
	}
}

func TestFormat(t *testing.T) {
	d := Parse("const  Foo::Bar<int , char>  **")
	if got := Format(&d); got != "const Foo::Bar<int,char> **" {
		t.Errorf("Format: got %q", got)
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"16", 16, true},
		{"0x10", 16, true},
		{"0xFFu", 255, true},
		{"-3", -3, true},
		{"N", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseInt(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseInt(%q) = %d,%v want %d,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFormatSignature(t *testing.T) {
	s := &model.FunctionSignature{
		Name:              "Destroy",
		ReturnType:        Parse("void"),
		CallingConvention: "__thiscall",
		Parameters: []model.Parameter{
			{Name: "this", Type: Parse("Archive *")},
			{Name: "__param1", Synthetic: true, Position: 1, Type: Parse("unsigned int")},
		},
		IsVariadic: true,
	}
	if got, want := FormatSignature(s), "void __thiscall Destroy(Archive *this, unsigned int, ...)"; got != want {
		t.Errorf("FormatSignature = %q, want %q", got, want)
	}
	if got := FormatSignature(nil); got != "" {
		t.Errorf("nil signature: %q", got)
	}
}

func TestDeclare(t *testing.T) {
	tests := []struct {
		typ, name, want string
	}{
		{"Archive *", "owner", "Archive *owner"},
		{"unsigned int", "count", "unsigned int count"},
		{"char[16]", "tag", "char tag[16]"},
		{"int", "", "int"},
	}
	for _, tt := range tests {
		d := Parse(tt.typ)
		if got := Declare(&d, tt.name); got != tt.want {
			t.Errorf("Declare(%q, %q) = %q, want %q", tt.typ, tt.name, got, tt.want)
		}
	}
}
