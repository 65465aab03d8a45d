package graph

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// pyKind is the finite set of Python syntax nodes the extractor reacts to.
type pyKind int

const (
	pyOther pyKind = iota
	pyImport
	pyImportFrom
	pyClassDef
	pyFunctionDef
	pyDecorated
	pyCall
	pyAssign
)

var pyKinds = map[string]pyKind{
	"import_statement":      pyImport,
	"import_from_statement": pyImportFrom,
	"class_definition":      pyClassDef,
	"function_definition":   pyFunctionDef,
	"decorated_definition":  pyDecorated,
	"call":                  pyCall,
	"assignment":            pyAssign,
}

// pyVisitor receives one callback per recognized node kind.
type pyVisitor interface {
	visitImport(n *tree_sitter.Node)
	visitImportFrom(n *tree_sitter.Node)
	visitClassDef(n *tree_sitter.Node)
	visitFunctionDef(n *tree_sitter.Node)
	visitDecorated(n *tree_sitter.Node)
	visitCall(n *tree_sitter.Node)
	visitAssign(n *tree_sitter.Node)
}

// walkPy dispatches every node of the tree to v in document order.
func walkPy(cursor *tree_sitter.TreeCursor, v pyVisitor) {
	walkTree(cursor, func(n *tree_sitter.Node) {
		switch pyKinds[n.Kind()] {
		case pyImport:
			v.visitImport(n)
		case pyImportFrom:
			v.visitImportFrom(n)
		case pyClassDef:
			v.visitClassDef(n)
		case pyFunctionDef:
			v.visitFunctionDef(n)
		case pyDecorated:
			v.visitDecorated(n)
		case pyCall:
			v.visitCall(n)
		case pyAssign:
			v.visitAssign(n)
		}
	})
}

// HTTP verbs accepted as client call attributes.
var pyCallVerbs = map[string]bool{
	"get": true, "post": true, "put": true, "delete": true,
	"patch": true, "head": true, "options": true, "request": true,
}

// Decorator names declaring a single-verb route.
var pyRouteVerbs = map[string]bool{
	"get": true, "post": true, "put": true, "delete": true,
	"patch": true, "head": true, "options": true,
}

// Decorator names declaring a route with a methods list.
var pyGenericRoutes = map[string]bool{
	"route": true, "api_route": true, "add_api_route": true,
}

// pyExtractor extracts facts from Python source files.
type pyExtractor struct {
	httpClients map[string]bool
}

func (e *pyExtractor) Extract(root *tree_sitter.Node, source []byte, filePath string) *FileFact {
	c := &pyCollector{
		source:      source,
		path:        filePath,
		httpClients: e.httpClients,
		fact:        newFactBuilder(LangPython),
		urls:        newURLResolver(source),
	}

	cursor := root.Walk()
	defer cursor.Close()
	walkPy(cursor, c)

	c.resolveCalls()
	return c.fact.fact()
}

// pendingCall is an HTTP call whose URL is resolved after the traversal.
type pendingCall struct {
	library string
	method  string
	args    *tree_sitter.Node
	line    int
}

// pyCollector is the pyVisitor building a FileFact.
type pyCollector struct {
	source      []byte
	path        string
	httpClients map[string]bool
	fact        *factBuilder
	urls        *urlResolver
	pending     []pendingCall
}

func (c *pyCollector) text(n *tree_sitter.Node) string {
	return n.Utf8Text(c.source)
}

func (c *pyCollector) addModule(module string) {
	c.fact.addImport(pythonImports.ResolveOrBare(c.path, module))
}

func (c *pyCollector) visitImport(n *tree_sitter.Node) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "dotted_name":
			c.addModule(c.text(child))
		case "aliased_import":
			if name := child.ChildByFieldName("name"); name != nil {
				c.addModule(c.text(name))
			}
		}
	}
}

func (c *pyCollector) visitImportFrom(n *tree_sitter.Node) {
	mod := n.ChildByFieldName("module_name")
	if mod == nil {
		return
	}
	switch mod.Kind() {
	case "dotted_name":
		c.addModule(c.text(mod))
	case "relative_import":
		// The leading dots are dropped; the upward search covers relative
		// placement. "from . import x" has no module to record.
		for i := uint(0); i < mod.NamedChildCount(); i++ {
			if child := mod.NamedChild(i); child != nil && child.Kind() == "dotted_name" {
				c.addModule(c.text(child))
			}
		}
	}
}

func (c *pyCollector) visitClassDef(n *tree_sitter.Node) {
	if isPyDefinitionScope(n) {
		if name := n.ChildByFieldName("name"); name != nil {
			c.fact.addDefined(c.text(name))
		}
	}
}

func (c *pyCollector) visitFunctionDef(n *tree_sitter.Node) {
	if isPyDefinitionScope(n) {
		if name := n.ChildByFieldName("name"); name != nil {
			c.fact.addDefined(c.text(name))
		}
	}
}

func (c *pyCollector) visitDecorated(n *tree_sitter.Node) {
	def := n.ChildByFieldName("definition")
	if def == nil || def.Kind() != "function_definition" {
		return
	}
	nameNode := def.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	funcName := c.text(nameNode)
	className := pyEnclosingClass(n, c.source)

	for i := uint(0); i < n.NamedChildCount(); i++ {
		dec := n.NamedChild(i)
		if dec == nil || dec.Kind() != "decorator" {
			continue
		}
		if r, ok := c.routeFromDecorator(dec); ok {
			r.FunctionName = funcName
			r.ClassName = className
			c.fact.routes = append(c.fact.routes, r)
		}
	}
}

// routeFromDecorator recognizes @x.verb("/p") and @x.route("/p", methods=[...]).
// Non-literal paths are skipped.
func (c *pyCollector) routeFromDecorator(dec *tree_sitter.Node) (Route, bool) {
	call := dec.NamedChild(0)
	if call == nil || call.Kind() != "call" {
		return Route{}, false
	}
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Kind() != "attribute" {
		return Route{}, false
	}
	attr := fn.ChildByFieldName("attribute")
	if attr == nil {
		return Route{}, false
	}
	name := c.text(attr)
	if !pyRouteVerbs[name] && !pyGenericRoutes[name] {
		return Route{}, false
	}

	args := call.ChildByFieldName("arguments")
	pathArg := pyFirstArg(args)
	if pathArg == nil {
		pathArg = pyKeywordArg(args, "path", c.source)
	}
	if pathArg == nil {
		return Route{}, false
	}
	path, ok := pyStringLiteral(pathArg, c.source)
	if !ok {
		return Route{}, false
	}

	var methods []string
	if pyRouteVerbs[name] {
		methods = []string{strings.ToUpper(name)}
	} else {
		methods = pyMethodsKeyword(args, c.source)
		if len(methods) == 0 {
			methods = []string{"GET"}
		}
	}
	return Route{
		Path:      path,
		Methods:   methods,
		Decorator: name,
		File:      c.path,
		Line:      nodeLine(dec),
	}, true
}

func (c *pyCollector) visitCall(n *tree_sitter.Node) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return
	}
	c.fact.addUsed(c.text(fn))

	if fn.Kind() != "attribute" {
		return
	}
	obj := fn.ChildByFieldName("object")
	attr := fn.ChildByFieldName("attribute")
	if obj == nil || attr == nil || obj.Kind() != "identifier" {
		return
	}
	lib, verb := c.text(obj), c.text(attr)
	if !c.httpClients[lib] || !pyCallVerbs[verb] {
		return
	}
	c.pending = append(c.pending, pendingCall{
		library: lib,
		method:  strings.ToUpper(verb),
		args:    n.ChildByFieldName("arguments"),
		line:    nodeLine(n),
	})
}

func (c *pyCollector) visitAssign(n *tree_sitter.Node) {
	c.urls.track(n)
}

// resolveCalls runs URL resolution once the whole file has been seen.
// request(method, url) takes its method from the first argument and its URL
// from the second.
func (c *pyCollector) resolveCalls() {
	for _, p := range c.pending {
		method, urlPos := p.method, 0
		if method == "REQUEST" {
			urlPos = 1
			m := pyPositionalArg(p.args, 0)
			if m == nil {
				m = pyKeywordArg(p.args, "method", c.source)
			}
			if lit, ok := pyStringLiteral(m, c.source); ok && lit != "" {
				method = strings.ToUpper(lit)
			}
		}
		arg := pyPositionalArg(p.args, urlPos)
		if arg == nil {
			arg = pyKeywordArg(p.args, "url", c.source)
		}
		c.fact.calls = append(c.fact.calls, HTTPCall{
			Library: p.library,
			Method:  method,
			URL:     c.urls.resolve(arg),
			File:    c.path,
			Line:    p.line,
		})
	}
}

// isPyDefinitionScope reports whether a def/class sits at module level or
// directly in a class body, looking through decorators.
func isPyDefinitionScope(n *tree_sitter.Node) bool {
	parent := n.Parent()
	if parent != nil && parent.Kind() == "decorated_definition" {
		parent = parent.Parent()
	}
	if parent == nil {
		return false
	}
	switch parent.Kind() {
	case "module":
		return true
	case "block":
		gp := parent.Parent()
		return gp != nil && gp.Kind() == "class_definition"
	}
	return false
}

// pyEnclosingClass returns the name of the nearest enclosing class, if any.
func pyEnclosingClass(n *tree_sitter.Node, source []byte) string {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Kind() == "class_definition" {
			if name := p.ChildByFieldName("name"); name != nil {
				return name.Utf8Text(source)
			}
			return ""
		}
	}
	return ""
}

// pyFirstArg returns the first positional argument of an argument_list.
func pyFirstArg(args *tree_sitter.Node) *tree_sitter.Node {
	return pyPositionalArg(args, 0)
}

// pyPositionalArg returns the positional argument at index pos.
func pyPositionalArg(args *tree_sitter.Node, pos int) *tree_sitter.Node {
	if args == nil {
		return nil
	}
	for i := uint(0); i < args.NamedChildCount(); i++ {
		child := args.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "keyword_argument", "comment", "list_splat", "dictionary_splat":
			continue
		}
		if pos == 0 {
			return child
		}
		pos--
	}
	return nil
}

// pyKeywordArg returns the value of keyword argument name.
func pyKeywordArg(args *tree_sitter.Node, name string, source []byte) *tree_sitter.Node {
	if args == nil {
		return nil
	}
	for i := uint(0); i < args.NamedChildCount(); i++ {
		child := args.NamedChild(i)
		if child == nil || child.Kind() != "keyword_argument" {
			continue
		}
		if key := child.ChildByFieldName("name"); key != nil && key.Utf8Text(source) == name {
			return child.ChildByFieldName("value")
		}
	}
	return nil
}

// pyMethodsKeyword reads methods=[...] as uppercased literal strings.
func pyMethodsKeyword(args *tree_sitter.Node, source []byte) []string {
	val := pyKeywordArg(args, "methods", source)
	if val == nil || (val.Kind() != "list" && val.Kind() != "tuple") {
		return nil
	}
	var methods []string
	for i := uint(0); i < val.NamedChildCount(); i++ {
		if s, ok := pyStringLiteral(val.NamedChild(i), source); ok && s != "" {
			methods = append(methods, strings.ToUpper(s))
		}
	}
	return methods
}

// pyStringLiteral returns the value of a plain or implicitly concatenated
// string. f-strings with interpolations are not literals.
func pyStringLiteral(n *tree_sitter.Node, source []byte) (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.Kind() {
	case "string":
		var b strings.Builder
		for i := uint(0); i < n.NamedChildCount(); i++ {
			child := n.NamedChild(i)
			if child == nil {
				continue
			}
			switch child.Kind() {
			case "interpolation":
				return "", false
			case "string_content", "escape_sequence":
				b.WriteString(child.Utf8Text(source))
			}
		}
		return b.String(), true
	case "concatenated_string":
		var b strings.Builder
		for i := uint(0); i < n.NamedChildCount(); i++ {
			part, ok := pyStringLiteral(n.NamedChild(i), source)
			if !ok {
				return "", false
			}
			b.WriteString(part)
		}
		return b.String(), true
	}
	return "", false
}
