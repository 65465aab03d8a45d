package graph

import (
	"context"
	"fmt"
	"slices"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	tree_sitter_cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// extractor folds a parsed tree-sitter AST into a FileFact.
type extractor interface {
	Extract(root *tree_sitter.Node, source []byte, filePath string) *FileFact
}

// DefaultHTTPClients is the default set of receiver identifiers treated as
// HTTP client libraries.
var DefaultHTTPClients = []string{"requests", "httpx", "urllib", "aiohttp"}

// ParserOption configures a TreeSitterParser.
type ParserOption func(*TreeSitterParser)

// WithHTTPClients replaces the HTTP client identifier set. An empty list
// keeps the default.
func WithHTTPClients(names ...string) ParserOption {
	return func(p *TreeSitterParser) {
		if len(names) > 0 {
			p.httpClients = slices.Clone(names)
		}
	}
}

// TreeSitterParser implements the Parser interface using tree-sitter grammars.
// A new tree-sitter parser is created per Parse call, so this type is safe for
// sequential use but individual Parse calls are not thread-safe.
type TreeSitterParser struct {
	languages   map[Language]*tree_sitter.Language
	extractors  map[Language]extractor
	httpClients []string
}

// NewTreeSitterParser creates a TreeSitterParser with Python, C, C++ and
// Java grammars registered.
func NewTreeSitterParser(opts ...ParserOption) *TreeSitterParser {
	p := &TreeSitterParser{httpClients: DefaultHTTPClients}
	for _, opt := range opts {
		opt(p)
	}

	p.languages = map[Language]*tree_sitter.Language{
		LangPython: tree_sitter.NewLanguage(tree_sitter_python.Language()),
		LangC:      tree_sitter.NewLanguage(tree_sitter_c.Language()),
		LangCPP:    tree_sitter.NewLanguage(tree_sitter_cpp.Language()),
		LangJava:   tree_sitter.NewLanguage(tree_sitter_java.Language()),
	}

	clients := make(map[string]bool, len(p.httpClients))
	for _, name := range p.httpClients {
		clients[name] = true
	}
	p.extractors = map[Language]extractor{
		LangPython: &pyExtractor{httpClients: clients},
		LangC:      &cExtractor{lang: LangC},
		LangCPP:    &cExtractor{lang: LangCPP},
		LangJava:   &javaExtractor{},
	}
	return p
}

// Parse extracts a FileFact from a single source file. A tree containing
// syntax errors is reported as ErrParse.
func (p *TreeSitterParser) Parse(_ context.Context, path string, source []byte, lang Language) (*FileFact, error) {
	tsLang, ok := p.languages[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}

	ext, ok := p.extractors[lang]
	if !ok {
		return nil, fmt.Errorf("%w: no extractor for %s", ErrUnsupportedLanguage, lang)
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(tsLang); err != nil {
		return nil, fmt.Errorf("set language %s: %w", lang, err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("%w: tree-sitter returned nil tree for %s", ErrParse, path)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w: %s", ErrParse, path)
	}
	return ext.Extract(root, source, path), nil
}

// SupportedLanguages returns the languages this parser can handle.
func (p *TreeSitterParser) SupportedLanguages() []Language {
	langs := make([]Language, 0, len(p.languages))
	for l := range p.languages {
		langs = append(langs, l)
	}
	slices.Sort(langs)
	return langs
}

// Close is a no-op because parsers are created per Parse call.
func (p *TreeSitterParser) Close() error {
	return nil
}

// factBuilder accumulates facts with set semantics for the name lists.
type factBuilder struct {
	lang    Language
	imports map[string]bool
	defined map[string]bool
	used    map[string]bool
	calls   []HTTPCall
	routes  []Route
}

func newFactBuilder(lang Language) *factBuilder {
	return &factBuilder{
		lang:    lang,
		imports: make(map[string]bool),
		defined: make(map[string]bool),
		used:    make(map[string]bool),
	}
}

func (b *factBuilder) addImport(s string) {
	if s != "" {
		b.imports[s] = true
	}
}

func (b *factBuilder) addDefined(s string) {
	if s != "" {
		b.defined[s] = true
	}
}

func (b *factBuilder) addUsed(s string) {
	if s != "" {
		b.used[s] = true
	}
}

func (b *factBuilder) fact() *FileFact {
	f := &FileFact{
		Language:       b.lang,
		Imports:        sortedKeys(b.imports),
		SymbolsDefined: sortedKeys(b.defined),
		SymbolsUsed:    sortedKeys(b.used),
		HTTPCalls:      b.calls,
		Routes:         b.routes,
	}
	if f.HTTPCalls == nil {
		f.HTTPCalls = []HTTPCall{}
	}
	if f.Routes == nil {
		f.Routes = []Route{}
	}
	return f
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// nodeLine returns the 1-based start line of n.
func nodeLine(n *tree_sitter.Node) int {
	return int(n.StartPosition().Row) + 1
}

// walkTree visits every node in document order.
func walkTree(cursor *tree_sitter.TreeCursor, visit func(n *tree_sitter.Node)) {
	visit(cursor.Node())
	if cursor.GotoFirstChild() {
		walkTree(cursor, visit)
		for cursor.GotoNextSibling() {
			walkTree(cursor, visit)
		}
		cursor.GotoParent()
	}
}
