package resolve

import (
	"context"
	"testing"

	"github.com/DeusData/typerecon/internal/corpus"
	"github.com/DeusData/typerecon/internal/extract"
	"github.com/DeusData/typerecon/internal/model"
	"github.com/DeusData/typerecon/internal/typestr"
)

const archiveGroup = `/* 1 */
struct Archive
{
  Archive_vtbl *__vftable /*VFT*/;
  Archive::SetVersionRow *rows;
  HashTable<unsigned long,Archive *> *index;
  std::string name;
  unsigned int count;
};

/* 2 */
struct Archive_vtbl
{
  void (__thiscall *Destroy)(Archive *this);
};

/* 3 */
struct Archive::SetVersionRow
{
  Archive::SetVersionRow_vtbl *__vftable /*VFT*/;
  int version;
};

/* 4 */
struct Archive::SetVersionRow_vtbl
{
  int (__thiscall *Get)(Archive::SetVersionRow *this);
};

/* 5 */
struct HashTable<unsigned long, Archive *>
{
  int size;
};

/* 6 */
struct Standalone_vtbl
{
  int x;
};
`

func build(t *testing.T, src string) *model.Corpus {
	t.Helper()
	a := corpus.Aggregate([]*extract.FileResult{extract.ParseFile("a.h", []byte(src), extract.Options{})})
	return a.Corpus()
}

func find(t *testing.T, c *model.Corpus, key string) *model.Entity {
	t.Helper()
	for _, e := range c.Entities() {
		if typestr.Normalize(e.Key()) == typestr.Normalize(key) {
			return e
		}
	}
	t.Fatalf("entity %q not found", key)
	return nil
}

func TestGroupingArchive(t *testing.T) {
	c := build(t, archiveGroup)
	r := New(c, Options{Workers: 2})
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"Archive", "Archive_vtbl", "Archive::SetVersionRow", "Archive::SetVersionRow_vtbl"} {
		if got := find(t, c, key).BaseTypePath; got != "Archive" {
			t.Errorf("%s: BaseTypePath %q, want Archive", key, got)
		}
	}
	if got := find(t, c, "Standalone_vtbl").BaseTypePath; got != "Standalone_vtbl" {
		t.Errorf("orphan vtable: %q", got)
	}
	if got := len(c.Group("Archive")); got != 4 {
		t.Errorf("group size: %d", got)
	}
}

func TestResolveMemberReferences(t *testing.T) {
	c := build(t, archiveGroup)
	st, err := New(c, Options{}).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	a := find(t, c, "Archive")
	rows := find(t, c, "Archive::SetVersionRow")
	vtbl := find(t, c, "Archive_vtbl")
	table := find(t, c, "HashTable<unsigned long, Archive *>")

	m := a.Members
	if m[0].Type.Target != vtbl.ID || m[0].Type.Class != model.RefEntity {
		t.Errorf("__vftable: %v %v", m[0].Type.Target, m[0].Type.Class)
	}
	if m[1].Type.Target != rows.ID {
		t.Errorf("rows: target %d, want %d", m[1].Type.Target, rows.ID)
	}
	// spelling differs only in whitespace
	if m[2].Type.Target != table.ID {
		t.Errorf("index: target %d, want %d", m[2].Type.Target, table.ID)
	}
	if arg := m[2].Type.TemplateArgs[1]; arg.Target != a.ID {
		t.Errorf("template arg: target %d, want %d", arg.Target, a.ID)
	}
	if m[3].Type.Class != model.RefExternal {
		t.Errorf("std::string: %v", m[3].Type.Class)
	}
	if m[4].Type.Class != model.RefPrimitive {
		t.Errorf("unsigned int: %v", m[4].Type.Class)
	}

	fp := vtbl.Members[0]
	if fp.Type.Class != model.RefFunction {
		t.Errorf("function pointer member: %v", fp.Type.Class)
	}
	if p := fp.Signature.Parameters[0].Type; p.Target != a.ID {
		t.Errorf("this parameter: target %d, want %d", p.Target, a.ID)
	}
	if st.Entity == 0 || st.Primitive == 0 || st.External == 0 || st.Groups == 0 {
		t.Errorf("stats: %+v", st)
	}
}

func TestResolveCachedText(t *testing.T) {
	c := build(t, archiveGroup)
	r := New(c, Options{CacheSize: 2})
	lookup := func(text string) (model.EntityID, model.RefClass) {
		d := typestr.Parse(text)
		r.Resolve(&d)
		return d.Target, d.Class
	}
	for i := 0; i < 3; i++ {
		id, class := lookup("const Archive::SetVersionRow *")
		if class != model.RefEntity || id != find(t, c, "Archive::SetVersionRow").ID {
			t.Fatalf("lookup %d: %d %v", i, id, class)
		}
	}
	if _, class := lookup("__int64"); class != model.RefPrimitive {
		t.Errorf("__int64: %v", class)
	}
	if _, class := lookup("*"); class != model.RefUnresolved {
		t.Errorf("garbage: %v", class)
	}
	// an instantiation never links to a different instantiation
	if _, class := lookup("HashTable<int,int>"); class != model.RefExternal {
		t.Errorf("other instantiation: %v", class)
	}
}

func TestRunHonorsCancel(t *testing.T) {
	c := build(t, archiveGroup)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(c, Options{}).Run(ctx); err == nil {
		t.Error("expected context error")
	}
}
