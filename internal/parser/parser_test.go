package parser

import (
	"testing"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/typerecon/internal/lang"
)

func TestParseCPP(t *testing.T) {
	source := []byte(`void __thiscall Archive::SetVersion(Archive *this, int version)
{
  int v2;
  Archive *v3;

  v3 = this;
  v2 = version;
}
`)
	tree, err := Parse(lang.CPP, source)
	if err != nil {
		t.Fatalf("Parse C++: %v", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		t.Fatal("root node is nil")
	}

	var funcCount, declCount int
	Walk(root, func(n *tree_sitter.Node) bool {
		switch n.Kind() {
		case "function_definition":
			funcCount++
		case "declaration":
			declCount++
		}
		return true
	})
	if funcCount != 1 {
		t.Errorf("expected 1 function_definition, got %d", funcCount)
	}
	if declCount < 2 {
		t.Errorf("expected at least 2 declarations, got %d", declCount)
	}
}

func TestParseC(t *testing.T) {
	source := []byte(`int __cdecl main(int argc, const char **argv)
{
  char buf[16];
  return 0;
}
`)
	tree, err := Parse(lang.C, source)
	if err != nil {
		t.Fatalf("Parse C: %v", err)
	}
	defer tree.Close()

	var arrays int
	Walk(tree.RootNode(), func(n *tree_sitter.Node) bool {
		if n.Kind() == "array_declarator" {
			arrays++
		}
		return true
	})
	if arrays != 1 {
		t.Errorf("expected 1 array_declarator, got %d", arrays)
	}
}

func TestAllLanguagesLoad(t *testing.T) {
	for _, l := range lang.AllLanguages() {
		_, err := GetLanguage(l)
		if err != nil {
			t.Errorf("GetLanguage(%s): %v", l, err)
		}
	}
}

func TestUnsupportedLanguage(t *testing.T) {
	if _, err := Parse(lang.Language("pascal"), []byte("x")); err == nil {
		t.Error("expected error for unsupported language")
	}
}

func TestNodeText(t *testing.T) {
	source := []byte(`int Hello()
{
  return 1;
}
`)
	tree, err := Parse(lang.C, source)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	defer tree.Close()

	Walk(tree.RootNode(), func(n *tree_sitter.Node) bool {
		if n.Kind() == "function_declarator" {
			nameNode := n.ChildByFieldName("declarator")
			if nameNode == nil {
				t.Error("function has no declarator node")
				return false
			}
			if name := NodeText(nameNode, source); name != "Hello" {
				t.Errorf("expected Hello, got %s", name)
			}
			return false
		}
		return true
	})
}
