// Package bodyscan collects the types of local variables declared in a
// decompiled function body. It reports type usage only; calls and control
// flow are not modeled.
package bodyscan

import (
	"fmt"
	"slices"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/typerecon/internal/lang"
	"github.com/DeusData/typerecon/internal/parser"
)

// wrapper turns a bare "{ ... }" body into a parsable definition.
const wrapper = "void __body()\n"

// Scan returns the distinct type texts of local declarations in body, in
// first-seen order. body is the brace block following a function header.
func Scan(l lang.Language, body []byte) ([]string, error) {
	spec := lang.ForLanguage(l)
	if spec == nil {
		return nil, fmt.Errorf("bodyscan: unsupported language: %s", l)
	}
	src := make([]byte, 0, len(wrapper)+len(body))
	src = append(src, wrapper...)
	src = append(src, body...)

	tree, err := parser.Parse(l, src)
	if err != nil {
		return nil, fmt.Errorf("bodyscan: %w", err)
	}
	defer tree.Close()

	var out []string
	seen := make(map[string]bool)
	parser.Walk(tree.RootNode(), func(n *tree_sitter.Node) bool {
		if !slices.Contains(spec.VariableNodeTypes, n.Kind()) {
			return true
		}
		for _, t := range declarationTypes(spec, n, src) {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
		return true
	})
	return out, nil
}

// ForFile returns a scanner for the grammar matching path.
func ForFile(path string) func(body []byte) ([]string, error) {
	l := lang.ForFile(path)
	return func(body []byte) ([]string, error) { return Scan(l, body) }
}

// declarationTypes returns one type text per declarator of a declaration
// statement: "const Foo *" for "const Foo *a, b[4];" and "const Foo[4]".
func declarationTypes(spec *lang.LanguageSpec, decl *tree_sitter.Node, src []byte) []string {
	typeNode := decl.ChildByFieldName("type")
	if typeNode == nil || typeNode.IsError() {
		return nil
	}
	var quals []string
	var out []string
	for i := uint(0); i < decl.ChildCount(); i++ {
		child := decl.Child(i)
		if child == nil {
			continue
		}
		if slices.Contains(spec.QualifierNodeTypes, child.Kind()) {
			if q := parser.NodeText(child, src); q == "const" || q == "volatile" {
				quals = append(quals, q)
			}
			continue
		}
		if decl.FieldNameForChild(uint32(i)) != "declarator" {
			continue
		}
		suffix, ok := declaratorSuffix(spec, child, src)
		if !ok {
			continue
		}
		base := strings.Join(append(slices.Clone(quals), parser.NodeText(typeNode, src)), " ")
		out = append(out, strings.TrimSpace(base+" "+suffix))
	}
	return out
}

// declaratorSuffix renders the pointer, reference and array parts of d.
// ok is false for declarators that do not declare an object.
func declaratorSuffix(spec *lang.LanguageSpec, d *tree_sitter.Node, src []byte) (string, bool) {
	var stars, refs, dims string
	for d != nil {
		kind := d.Kind()
		if slices.Contains(spec.SkipDeclaratorTypes, kind) {
			return "", false
		}
		switch kind {
		case "identifier", "field_identifier", "qualified_identifier":
			return stars + refs + dims, true
		case "pointer_declarator":
			stars += "*"
			d = d.ChildByFieldName("declarator")
		case "reference_declarator":
			refs += "&"
			d = lastNamedChild(d)
		case "array_declarator":
			if size := d.ChildByFieldName("size"); size != nil {
				dims = "[" + parser.NodeText(size, src) + "]" + dims
			} else {
				dims = "[]" + dims
			}
			d = d.ChildByFieldName("declarator")
		case "init_declarator":
			d = d.ChildByFieldName("declarator")
		case "parenthesized_declarator":
			d = lastNamedChild(d)
		default:
			return "", false
		}
	}
	return "", false
}

func lastNamedChild(n *tree_sitter.Node) *tree_sitter.Node {
	for i := int(n.ChildCount()) - 1; i >= 0; i-- {
		if c := n.Child(uint(i)); c != nil && c.IsNamed() {
			return c
		}
	}
	return nil
}
