package segment

import (
	"strings"
	"testing"
)

const sample = `/* 1 */
struct __cppobj Archive
{
  Archive_vtbl *__vftable /*VFT*/;
  int version; /* } not a brace */
  // { neither is this
  char name[16];
};

/* 2 */
struct Archive::SetVersionRow;

/* 3 */ enum Mode : __int8 { ModeA, ModeB = 4 };

/* 4 */
typedef void (__cdecl *Callback)(int);

/*
struct Commented { int a; };
*/
`

func TestSplitDeclarations(t *testing.T) {
	res := Split(sample)
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
	if len(res.Segments) != 4 {
		t.Fatalf("expected 4 segments, got %d", len(res.Segments))
	}
	archive := res.Segments[0]
	if archive.Keyword != "struct" || archive.Forward || archive.Ordinal != 1 || !archive.Anchored {
		t.Errorf("segment 0: %+v", archive)
	}
	if archive.Line != 2 || archive.EndLine != 8 {
		t.Errorf("segment 0 lines: %d-%d", archive.Line, archive.EndLine)
	}
	if !strings.Contains(archive.Text, "char name[16];") {
		t.Errorf("segment 0 text truncated: %q", archive.Text)
	}

	fwd := res.Segments[1]
	if !fwd.Forward || fwd.Keyword != "struct" {
		t.Errorf("segment 1: %+v", fwd)
	}

	enum := res.Segments[2]
	if enum.Keyword != "enum" || enum.Forward || enum.Ordinal != 3 {
		t.Errorf("segment 2: %+v", enum)
	}
	if strings.Contains(enum.Text, "/* 3 */") {
		t.Errorf("anchor must be stripped: %q", enum.Text)
	}

	td := res.Segments[3]
	if td.Keyword != "typedef" || !td.Forward {
		t.Errorf("segment 3: %+v", td)
	}
}

func TestBracesInsideCommentsAndLiterals(t *testing.T) {
	src := "struct A\n{\n  /* { { {\n  } */\n  char c; // }\n  const char *s; /* \"}\" */\n};\nstruct B { int x; };\n"
	res := Split(src)
	if len(res.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(res.Segments), res.Segments)
	}
	if res.Segments[0].EndLine != 7 {
		t.Errorf("struct A should end on line 7, got %d", res.Segments[0].EndLine)
	}
}

func TestQuotedNamesDoNotHideBraces(t *testing.T) {
	src := "struct `anonymous namespace'::Impl { int a; };\nstruct C { int b; };\n"
	res := Split(src)
	if len(res.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(res.Segments))
	}
}

const functions = `//----- (00401000) --------------------------------------------------------
int __thiscall Archive::SetVersion(Archive *this,
        int version)
{
  char brace = '{';
  this->version = version; // }
  return 1;
}

//----- (00401020) --------------------------------------------------------
#error "401020: positive sp value has been found"

//----- (00401040) --------------------------------------------------------
void *__thiscall Archive::` + "`vector deleting destructor'" + `(Archive *this, char a2)
{
  return this;
}

//----- (00401060) --------------------------------------------------------
// attributes: thunk
void __cdecl Init()
{
#error "bad body"
}

//----- (00401080) --------------------------------------------------------
void __cdecl Done()
{
  if ( 1 )
  {
    return;
  }
}
`

func TestSplitFunctions(t *testing.T) {
	res := Split(functions)
	if res.Skipped != 3 {
		t.Errorf("expected 3 skipped blocks, got %d", res.Skipped)
	}
	if len(res.Segments) != 2 {
		t.Fatalf("expected 2 function segments, got %d", len(res.Segments))
	}
	f := res.Segments[0]
	if f.Kind != KindFunction || f.Address != 0x401000 {
		t.Errorf("segment 0: kind %v addr %x", f.Kind, f.Address)
	}
	if !strings.HasPrefix(f.Signature, "int __thiscall Archive::SetVersion(") || !strings.Contains(f.Signature, "int version)") {
		t.Errorf("signature: %q", f.Signature)
	}
	if !strings.HasPrefix(f.Body, "{") || !strings.HasSuffix(f.Body, "}") {
		t.Errorf("body: %q", f.Body)
	}
	done := res.Segments[1]
	if done.Address != 0x401080 || done.Signature != "void __cdecl Done()" {
		t.Errorf("segment 1: %+v", done)
	}
}

func TestUnterminatedDeclarationWarns(t *testing.T) {
	res := Split("/* 9 */\nstruct Broken\n{\n  int a;\n")
	if len(res.Segments) != 0 || len(res.Warnings) != 1 {
		t.Fatalf("got %d segments, %d warnings", len(res.Segments), len(res.Warnings))
	}
	if res.Warnings[0].Line != 2 {
		t.Errorf("warning line: %d", res.Warnings[0].Line)
	}
}
