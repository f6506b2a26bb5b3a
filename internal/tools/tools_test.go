package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/typerecon/internal/pipeline"
	"github.com/DeusData/typerecon/internal/store"
)

const corpusHeader = `/* 1 */
struct __cppobj Archive : Base
{
  Archive_vtbl *__vftable /*VFT*/;
  Archive::Row *rows;
  unsigned int count;
};

/* 2 */
struct Archive_vtbl
{
  void (__thiscall *Destroy)(Archive *this);
};

/* 3 */
struct Archive::Row
{
  Archive *owner;
  int version;
};

/* 4 */
struct Base
{
  int id;
};

/* 5 */
struct Orphan;
`

const corpusFunctions = `//----- (00402000) --------------------------------------------------------
int __thiscall Archive::Count(Archive *this)
{
  Archive::Row *row;

  row = this->rows;
  return this->count;
}
`

type handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error)

func setup(t *testing.T) (*Server, string) {
	t.Helper()
	r, err := store.NewRouterWithDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.CloseAll)

	dir := t.TempDir()
	for name, content := range map[string]string{
		"types.h":   corpusHeader,
		"funcs.cpp": corpusFunctions,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return NewServer(r, "test"), dir
}

func call(t *testing.T, h handler, args map[string]any) (string, bool) {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatal(err)
	}
	res, err := h(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Arguments: raw},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if len(res.Content) != 1 {
		t.Fatalf("content: %d items", len(res.Content))
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content type %T", res.Content[0])
	}
	return text.Text, res.IsError
}

func decode(t *testing.T, text string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("decode %q: %v", text, err)
	}
}

func indexed(t *testing.T) (*Server, string) {
	t.Helper()
	srv, dir := setup(t)
	text, isErr := call(t, srv.handleIndexCorpus, map[string]any{"path": dir})
	if isErr {
		t.Fatalf("index_corpus: %s", text)
	}
	var out map[string]any
	decode(t, text, &out)
	if out["entities"] != float64(5) || out["functions"] != float64(1) {
		t.Fatalf("index result: %v", out)
	}
	return srv, pipeline.ProjectNameFromPath(dir)
}

func TestIndexCorpusUnchanged(t *testing.T) {
	srv, dir := setup(t)
	if _, isErr := call(t, srv.handleIndexCorpus, map[string]any{"path": dir}); isErr {
		t.Fatal("first index failed")
	}
	text, isErr := call(t, srv.handleIndexCorpus, map[string]any{"path": dir})
	if isErr {
		t.Fatal(text)
	}
	var out map[string]any
	decode(t, text, &out)
	if out["unchanged"] != true || out["entities"] != float64(5) {
		t.Errorf("second index: %v", out)
	}

	if _, isErr := call(t, srv.handleIndexCorpus, map[string]any{}); !isErr {
		t.Error("missing path should be an error")
	}
}

func TestGetEntity(t *testing.T) {
	srv, project := indexed(t)

	text, isErr := call(t, srv.handleGetEntity, map[string]any{"qualified_name": "Archive"})
	if isErr {
		t.Fatal(text)
	}
	var v entityView
	decode(t, text, &v)
	if v.Project != project || v.Kind != "struct" || v.Size == nil || *v.Size != 16 {
		t.Errorf("entity: %+v", v)
	}
	if len(v.Bases) != 1 || v.Bases[0].Target != "Base" {
		t.Errorf("bases: %+v", v.Bases)
	}
	if len(v.Members) != 3 || v.Members[0].Target != "Archive_vtbl" || !v.Members[0].VTablePtr {
		t.Fatalf("members: %+v", v.Members)
	}
	if off := v.Members[2].Offset; off == nil || *off != 12 {
		t.Errorf("count offset: %v", off)
	}
	if len(v.ReferencedBy) != 1 || v.ReferencedBy[0] != "Archive::Row" {
		t.Errorf("referenced_by: %v", v.ReferencedBy)
	}

	text, isErr = call(t, srv.handleGetEntity, map[string]any{"qualified_name": "Archive_vtbl", "project": project})
	if isErr {
		t.Fatal(text)
	}
	decode(t, text, &v)
	if !strings.Contains(v.Members[0].Signature, "__thiscall") {
		t.Errorf("function pointer signature: %q", v.Members[0].Signature)
	}

	if _, isErr := call(t, srv.handleGetEntity, map[string]any{"qualified_name": "Missing"}); !isErr {
		t.Error("missing entity should be an error")
	}
	if _, isErr := call(t, srv.handleGetEntity, map[string]any{"qualified_name": "Archive", "project": "nope"}); !isErr {
		t.Error("unknown project should be an error")
	}
}

func TestSearchEntities(t *testing.T) {
	srv, project := indexed(t)

	tests := []struct {
		name  string
		args  map[string]any
		total int
	}{
		{"all", map[string]any{}, 5},
		{"vtables", map[string]any{"vtables": true}, 1},
		{"no vtables", map[string]any{"vtables": false}, 4},
		{"stubs", map[string]any{"stubs_only": true}, 1},
		{"name regex", map[string]any{"name_pattern": "^Archive"}, 3},
		{"file glob", map[string]any{"file_pattern": "*.h"}, 5},
		{"kind", map[string]any{"kind": "enum"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.args["project"] = project
			text, isErr := call(t, srv.handleSearchEntities, tt.args)
			if isErr {
				t.Fatal(text)
			}
			var out struct {
				Total   int          `json:"total"`
				Results []entityView `json:"results"`
			}
			decode(t, text, &out)
			if out.Total != tt.total || len(out.Results) != tt.total {
				t.Errorf("total %d results %d, want %d", out.Total, len(out.Results), tt.total)
			}
		})
	}
}

func TestGetTypeGroup(t *testing.T) {
	srv, project := indexed(t)

	text, isErr := call(t, srv.handleGetTypeGroup, map[string]any{"project": project, "base_type_path": "Archive"})
	if isErr {
		t.Fatal(text)
	}
	var out struct {
		Entities []entityView `json:"entities"`
	}
	decode(t, text, &out)
	if len(out.Entities) != 3 {
		t.Errorf("group: %+v", out.Entities)
	}

	if _, isErr := call(t, srv.handleGetTypeGroup, map[string]any{"project": project, "base_type_path": "Nothing"}); !isErr {
		t.Error("empty group should be an error")
	}
}

func TestListFunctions(t *testing.T) {
	srv, project := indexed(t)

	text, isErr := call(t, srv.handleListFunctions, map[string]any{"project": project, "pattern": "Archive::*"})
	if isErr {
		t.Fatal(text)
	}
	var out []struct {
		Address    string   `json:"address"`
		Name       string   `json:"qualified_name"`
		LocalTypes []string `json:"local_types"`
	}
	decode(t, text, &out)
	if len(out) != 1 || out[0].Address != "0x402000" || out[0].Name != "Archive::Count" {
		t.Fatalf("functions: %+v", out)
	}
	if len(out[0].LocalTypes) != 1 || out[0].LocalTypes[0] != "Archive::Row *" {
		t.Errorf("local types: %v", out[0].LocalTypes)
	}
}

func TestListAndDeleteProjects(t *testing.T) {
	srv, project := indexed(t)

	text, _ := call(t, srv.handleListProjects, nil)
	var list []struct {
		Name     string `json:"name"`
		Entities int    `json:"entities"`
	}
	decode(t, text, &list)
	if len(list) != 1 || list[0].Name != project || list[0].Entities != 5 {
		t.Fatalf("projects: %+v", list)
	}

	if _, isErr := call(t, srv.handleDeleteProject, map[string]any{"project_name": project}); isErr {
		t.Fatal("delete failed")
	}
	if _, isErr := call(t, srv.handleDeleteProject, map[string]any{"project_name": project}); !isErr {
		t.Error("second delete should report a missing project")
	}
	text, _ = call(t, srv.handleListProjects, nil)
	decode(t, text, &list)
	if len(list) != 0 {
		t.Errorf("projects after delete: %+v", list)
	}
}

func TestArgHelpers(t *testing.T) {
	args, err := parseArgs(&mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{
		Arguments: json.RawMessage(`{"s":"x","n":7,"b":false}`),
	}})
	if err != nil {
		t.Fatal(err)
	}
	if getStringArg(args, "s") != "x" || getStringArg(args, "n") != "" {
		t.Error("getStringArg")
	}
	if getIntArg(args, "n", 1) != 7 || getIntArg(args, "missing", 3) != 3 {
		t.Error("getIntArg")
	}
	if b := getBoolArg(args, "b"); b == nil || *b {
		t.Error("getBoolArg present")
	}
	if getBoolArg(args, "missing") != nil {
		t.Error("getBoolArg absent")
	}
	if _, err := parseArgs(&mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: json.RawMessage(`[`)}}); err == nil {
		t.Error("expected error for malformed arguments")
	}
}
