package graph

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// cExtractor extracts includes and definitions from C and C++ sources. Both
// grammars share the node kinds used here.
type cExtractor struct {
	lang Language
}

func (e *cExtractor) Extract(root *tree_sitter.Node, source []byte, filePath string) *FileFact {
	fb := newFactBuilder(e.lang)

	cursor := root.Walk()
	defer cursor.Close()

	walkTree(cursor, func(n *tree_sitter.Node) {
		switch n.Kind() {
		case "preproc_include":
			e.include(n, source, filePath, fb)
		case "function_definition":
			if decl := n.ChildByFieldName("declarator"); decl != nil {
				fb.addDefined(cDeclaratorName(decl, source))
			}
		case "struct_specifier", "class_specifier", "enum_specifier", "union_specifier":
			// Only definitions carry a body; `struct foo *p;` is a use.
			name := n.ChildByFieldName("name")
			if name != nil && n.ChildByFieldName("body") != nil {
				fb.addDefined(name.Utf8Text(source))
			}
		case "call_expression":
			if fn := n.ChildByFieldName("function"); fn != nil {
				fb.addUsed(fn.Utf8Text(source))
			}
		}
	})
	return fb.fact()
}

// include records "local.h" includes resolved upward and <system.h> bare.
func (e *cExtractor) include(n *tree_sitter.Node, source []byte, filePath string, fb *factBuilder) {
	p := n.ChildByFieldName("path")
	if p == nil {
		return
	}
	raw := p.Utf8Text(source)
	switch p.Kind() {
	case "string_literal":
		fb.addImport(cIncludes.ResolveOrBare(filePath, strings.Trim(raw, `"`)))
	case "system_lib_string":
		fb.addImport(strings.Trim(raw, "<>"))
	}
}

// cDeclaratorName unwraps pointer, reference and function declarators down
// to the declared name.
func cDeclaratorName(n *tree_sitter.Node, source []byte) string {
	for n != nil {
		switch n.Kind() {
		case "identifier", "field_identifier", "qualified_identifier",
			"destructor_name", "operator_name", "type_identifier":
			return n.Utf8Text(source)
		case "function_declarator", "pointer_declarator":
			n = n.ChildByFieldName("declarator")
		case "reference_declarator", "parenthesized_declarator", "attributed_declarator":
			n = n.NamedChild(0)
		default:
			return ""
		}
	}
	return ""
}
