package layout

import (
	"context"
	"testing"

	"github.com/DeusData/typerecon/internal/abi"
	"github.com/DeusData/typerecon/internal/corpus"
	"github.com/DeusData/typerecon/internal/extract"
	"github.com/DeusData/typerecon/internal/model"
	"github.com/DeusData/typerecon/internal/resolve"
)

func laidOut(t *testing.T, src string, m abi.Model) (*model.Corpus, Stats) {
	t.Helper()
	res := extract.ParseFile("t.h", []byte(src), extract.Options{})
	for _, w := range res.Warnings {
		t.Logf("warning: %v", w)
	}
	c := corpus.Aggregate([]*extract.FileResult{res}).Corpus()
	if _, err := resolve.New(c, resolve.Options{Workers: 1}).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	return c, New(c, m).Run()
}

func entity(t *testing.T, c *model.Corpus, key string) *model.Entity {
	t.Helper()
	id, ok := c.Lookup(key)
	if !ok {
		t.Fatalf("entity %q not found", key)
	}
	return c.Entity(id)
}

func offsets(e *model.Entity) []int64 {
	out := make([]int64, len(e.Members))
	for i, m := range e.Members {
		if m.Offset == nil {
			out[i] = -1
			continue
		}
		out[i] = *m.Offset
	}
	return out
}

func equal(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSequentialMembers(t *testing.T) {
	c, _ := laidOut(t, "struct S\n{\n  int a;\n  int b;\n  int c;\n};\n", abi.Default())
	e := entity(t, c, "S")
	if got := offsets(e); !equal(got, []int64{0, 4, 8}) {
		t.Errorf("offsets: %v", got)
	}
	if e.Size != 12 || e.Align != 4 || !e.LaidOut {
		t.Errorf("size %d align %d laid out %v", e.Size, e.Align, e.LaidOut)
	}
}

func TestBitFieldsShareUnit(t *testing.T) {
	src := `struct Flags
{
  unsigned int a : 1;
  unsigned int b : 1;
  unsigned int c : 30;
  unsigned int d : 1;
  char tail;
};
`
	c, _ := laidOut(t, src, abi.Default())
	e := entity(t, c, "Flags")
	if got := offsets(e); !equal(got, []int64{0, 0, 0, 4, 8}) {
		t.Errorf("offsets: %v", got)
	}
	wantBits := []int{0, 1, 2, 0, 0}
	for i, m := range e.Members {
		if m.BitOffset != wantBits[i] {
			t.Errorf("%s: bit offset %d, want %d", m.Name, m.BitOffset, wantBits[i])
		}
	}
	if e.Size != 12 {
		t.Errorf("size %d", e.Size)
	}
}

func TestBitFieldStorageChangeOpensUnit(t *testing.T) {
	src := `struct Mixed
{
  unsigned __int8 a : 3;
  unsigned __int16 b : 4;
  unsigned __int16 c : 4;
  unsigned int : 0;
  unsigned __int16 d : 1;
};
`
	c, _ := laidOut(t, src, abi.Default())
	e := entity(t, c, "Mixed")
	if got := offsets(e); !equal(got, []int64{0, 2, 2, 4, 4}) {
		t.Errorf("offsets: %v", got)
	}
	if e.Members[2].BitOffset != 4 {
		t.Errorf("c: bit offset %d", e.Members[2].BitOffset)
	}
}

func TestBasePrefixAndAlignment(t *testing.T) {
	src := `/* 1 */
struct Derived : Base
{
  char c;
  __int64 x;
  void *p;
  char buf[3];
  __declspec(align(16)) float v[4];
};

/* 2 */
struct Base
{
  int a;
  char b;
};

/* 3 */
struct __cppobj Other
{
  Base baseclass_0;
  char d;
};
`
	c, st := laidOut(t, src, abi.Default())
	base := entity(t, c, "Base")
	if base.Size != 8 {
		t.Fatalf("base size %d", base.Size)
	}
	d := entity(t, c, "Derived")
	if got := offsets(d); !equal(got, []int64{8, 16, 24, 28, 32}) {
		t.Errorf("derived offsets: %v", got)
	}
	if d.Size != 48 || d.Align != 16 {
		t.Errorf("derived size %d align %d", d.Size, d.Align)
	}
	if got := offsets(entity(t, c, "Other")); !equal(got, []int64{8}) {
		t.Errorf("baseclass member prefix: %v", got)
	}
	if st.Unsized != 0 || st.Cycles != 0 {
		t.Errorf("stats: %+v", st)
	}
}

func TestDependencyOrderAndPointerWidth(t *testing.T) {
	src := `struct Outer
{
  Inner in;
  Inner *link;
  int x;
};

struct Inner
{
  __int64 v;
};
`
	for _, tc := range []struct {
		name string
		abi  abi.Model
		want []int64
		size int64
	}{
		{"32-bit", abi.Default(), []int64{0, 8, 12}, 16},
		{"64-bit", abi.Model{PointerSize: 8, EnumSize: 4, LongDoubleSize: 8}, []int64{0, 8, 16}, 24},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := laidOut(t, src, tc.abi)
			e := entity(t, c, "Outer")
			if got := offsets(e); !equal(got, tc.want) {
				t.Errorf("offsets: %v", got)
			}
			if e.Size != tc.size {
				t.Errorf("size %d", e.Size)
			}
		})
	}
}

func TestUnionEnumAndTypedef(t *testing.T) {
	src := `enum Small : __int8
{
  One,
};

typedef unsigned __int16 WORD16;

union Value
{
  char c;
  double d;
  WORD16 w;
};

struct Holder
{
  Small s;
  WORD16 w;
  Value v;
};
`
	c, _ := laidOut(t, src, abi.Default())
	if e := entity(t, c, "Small"); e.Size != 1 {
		t.Errorf("enum size %d", e.Size)
	}
	u := entity(t, c, "Value")
	if got := offsets(u); !equal(got, []int64{0, 0, 0}) {
		t.Errorf("union offsets: %v", got)
	}
	if u.Size != 8 || u.Align != 8 {
		t.Errorf("union size %d align %d", u.Size, u.Align)
	}
	h := entity(t, c, "Holder")
	if got := offsets(h); !equal(got, []int64{0, 2, 8}) {
		t.Errorf("holder offsets: %v", got)
	}
}

func TestSourceOffsetCrossCheck(t *testing.T) {
	src := `struct Checked
{
  char a; /* 0x0 */
  int b; /* 0x4 */
  int c; /* 0xC */
};
`
	c, st := laidOut(t, src, abi.Default())
	e := entity(t, c, "Checked")
	if got := offsets(e); !equal(got, []int64{0, 4, 8}) {
		t.Errorf("computed offsets are authoritative: %v", got)
	}
	if st.Mismatches != 1 {
		t.Errorf("mismatches: %d", st.Mismatches)
	}
}

func TestUnsizedAndCycles(t *testing.T) {
	src := `struct Ext
{
  std::string s;
  int x;
};

struct A
{
  B b;
};

struct B
{
  A a;
};
`
	c, st := laidOut(t, src, abi.Default())
	if got := offsets(entity(t, c, "Ext")); !equal(got, []int64{0, 0}) {
		t.Errorf("external member occupies no bytes: %v", got)
	}
	if st.Unsized == 0 || st.Cycles != 1 {
		t.Errorf("stats: %+v", st)
	}
}
