package graph

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// URLDynamic marks a call URL that could not be traced to a literal.
const URLDynamic = "dynamic"

// EnvURLPrefix prefixes URLs read from an environment variable.
const EnvURLPrefix = "ENV:"

// IsMatchableURL reports whether url can take part in route matching.
func IsMatchableURL(url string) bool {
	return url != "" && url != URLDynamic && !strings.HasPrefix(url, EnvURLPrefix)
}

// urlResolver traces call arguments to literal values within one file. It
// keeps a flat name -> literal map where the last assignment wins.
type urlResolver struct {
	source      []byte
	assignments map[string]string
}

func newURLResolver(source []byte) *urlResolver {
	return &urlResolver{source: source, assignments: make(map[string]string)}
}

// track records `name = "literal"` assignments.
func (r *urlResolver) track(assign *tree_sitter.Node) {
	left := assign.ChildByFieldName("left")
	right := assign.ChildByFieldName("right")
	if left == nil || right == nil || left.Kind() != "identifier" {
		return
	}
	if val, ok := pyStringLiteral(right, r.source); ok {
		r.assignments[left.Utf8Text(r.source)] = val
	}
}

// resolve maps an argument expression to a URL value. It never fails:
// untraceable expressions resolve to URLDynamic.
func (r *urlResolver) resolve(arg *tree_sitter.Node) string {
	if arg == nil {
		return URLDynamic
	}
	if s, ok := pyStringLiteral(arg, r.source); ok {
		return s
	}
	switch arg.Kind() {
	case "identifier":
		if v, ok := r.assignments[arg.Utf8Text(r.source)]; ok {
			return v
		}
	case "call":
		if key, ok := r.envKey(arg); ok {
			return EnvURLPrefix + key
		}
	}
	return URLDynamic
}

// envKey matches os.getenv("K"), getenv("K") and os.environ.get("K").
func (r *urlResolver) envKey(call *tree_sitter.Node) (string, bool) {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return "", false
	}
	switch fn.Kind() {
	case "identifier":
		if fn.Utf8Text(r.source) != "getenv" {
			return "", false
		}
	case "attribute":
		obj := fn.ChildByFieldName("object")
		attr := fn.ChildByFieldName("attribute")
		if obj == nil || attr == nil {
			return "", false
		}
		o, a := obj.Utf8Text(r.source), attr.Utf8Text(r.source)
		isGetenv := a == "getenv" && o == "os"
		isEnvironGet := a == "get" && (o == "os.environ" || o == "environ")
		if !isGetenv && !isEnvironGet {
			return "", false
		}
	default:
		return "", false
	}
	return pyStringLiteral(pyFirstArg(call.ChildByFieldName("arguments")), r.source)
}
