package graph

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// javaExtractor extracts imports and declarations from Java sources.
type javaExtractor struct{}

func (e *javaExtractor) Extract(root *tree_sitter.Node, source []byte, filePath string) *FileFact {
	fb := newFactBuilder(LangJava)

	cursor := root.Walk()
	defer cursor.Close()

	walkTree(cursor, func(n *tree_sitter.Node) {
		switch n.Kind() {
		case "import_declaration":
			e.importDecl(n, source, filePath, fb)
		case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration":
			if name := n.ChildByFieldName("name"); name != nil {
				fb.addDefined(name.Utf8Text(source))
			}
		case "method_declaration", "constructor_declaration":
			if isJavaMember(n) {
				if name := n.ChildByFieldName("name"); name != nil {
					fb.addDefined(name.Utf8Text(source))
				}
			}
		case "method_invocation":
			fb.addUsed(javaCallee(n, source))
		}
	})
	return fb.fact()
}

// importDecl resolves `import a.b.C;` to a/b/C.java. Wildcard and static
// member imports are kept bare.
func (e *javaExtractor) importDecl(n *tree_sitter.Node, source []byte, filePath string, fb *factBuilder) {
	var name string
	wildcard := false
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "scoped_identifier", "identifier":
			name = child.Utf8Text(source)
		case "asterisk":
			wildcard = true
		}
	}
	if name == "" {
		return
	}
	if wildcard {
		fb.addImport(name + ".*")
		return
	}
	fb.addImport(javaImports.ResolveOrBare(filePath, name))
}

func isJavaMember(n *tree_sitter.Node) bool {
	parent := n.Parent()
	if parent == nil {
		return false
	}
	switch parent.Kind() {
	case "class_body", "interface_body", "enum_body_declarations", "record_body":
		return true
	}
	return false
}

// javaCallee renders obj.name or name for a method invocation.
func javaCallee(n *tree_sitter.Node, source []byte) string {
	name := n.ChildByFieldName("name")
	if name == nil {
		return ""
	}
	if obj := n.ChildByFieldName("object"); obj != nil {
		return strings.TrimSpace(obj.Utf8Text(source)) + "." + name.Utf8Text(source)
	}
	return name.Utf8Text(source)
}
