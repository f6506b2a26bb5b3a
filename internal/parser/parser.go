// Package parser wraps the tree-sitter C and C++ grammars. Parsers are
// expensive to create, so each grammar keeps a pool of them.
package parser

import (
	"fmt"
	"sync"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"

	"github.com/DeusData/typerecon/internal/lang"
)

type grammar struct {
	language *tree_sitter.Language
	parsers  sync.Pool
}

func newGrammar(ptr func() unsafe.Pointer) *grammar {
	g := &grammar{language: tree_sitter.NewLanguage(ptr())}
	g.parsers.New = func() any {
		p := tree_sitter.NewParser()
		if err := p.SetLanguage(g.language); err != nil {
			panic(fmt.Sprintf("tree-sitter: %v", err))
		}
		return p
	}
	return g
}

var grammars = sync.OnceValue(func() map[lang.Language]*grammar {
	return map[lang.Language]*grammar{
		lang.C:   newGrammar(tree_sitter_c.Language),
		lang.CPP: newGrammar(tree_sitter_cpp.Language),
	}
})

func lookup(l lang.Language) (*grammar, error) {
	g, ok := grammars()[l]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", l)
	}
	return g, nil
}

// GetLanguage returns the tree-sitter grammar of l.
func GetLanguage(l lang.Language) (*tree_sitter.Language, error) {
	g, err := lookup(l)
	if err != nil {
		return nil, err
	}
	return g.language, nil
}

// Parse parses source with the grammar of l. The caller closes the tree.
func Parse(l lang.Language, source []byte) (*tree_sitter.Tree, error) {
	g, err := lookup(l)
	if err != nil {
		return nil, err
	}
	p := g.parsers.Get().(*tree_sitter.Parser)
	defer g.parsers.Put(p)

	tree := p.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("%s: parse failed", l)
	}
	return tree, nil
}

// WalkFunc visits one node; returning false skips its subtree.
type WalkFunc func(node *tree_sitter.Node) bool

// Walk visits root and its descendants in document order.
func Walk(root *tree_sitter.Node, fn WalkFunc) {
	if root == nil {
		return
	}
	c := root.Walk()
	defer c.Close()

	for {
		if fn(c.Node()) && c.GotoFirstChild() {
			continue
		}
		for !c.GotoNextSibling() {
			if c.Depth() == 0 || !c.GotoParent() {
				return
			}
		}
	}
}

// NodeText returns the source text spanned by node.
func NodeText(node *tree_sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
