package httplink

import (
	"net/url"
	"slices"
	"strings"

	"github.com/dusk-indust/repomap/internal/graph"
)

// NormalizePath extracts the path component of raw, strips a trailing
// slash and maps "" to "/". Query strings and fragments are dropped.
func NormalizePath(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// RouteAccepts reports whether route serves method, comparing the method
// list and the decorator name case-insensitively.
func RouteAccepts(route graph.Route, method string) bool {
	if strings.EqualFold(route.Decorator, method) {
		return true
	}
	return slices.ContainsFunc(route.Methods, func(m string) bool {
		return strings.EqualFold(m, method)
	})
}

// Matches reports whether call targets route: equal normalized paths and an
// accepted method. Dynamic and environment URLs never match, and
// parameterized paths are compared literally.
func Matches(call graph.HTTPCall, route graph.Route) bool {
	if !graph.IsMatchableURL(call.URL) {
		return false
	}
	return NormalizePath(call.URL) == NormalizePath(route.Path) && RouteAccepts(route, call.Method)
}

// RouteTable indexes routes by normalized path.
type RouteTable struct {
	byPath map[string][]graph.Route
}

// NewRouteTable builds a table from every route.
func NewRouteTable(routes []graph.Route) *RouteTable {
	t := &RouteTable{byPath: make(map[string][]graph.Route)}
	for _, r := range routes {
		p := NormalizePath(r.Path)
		t.byPath[p] = append(t.byPath[p], r)
	}
	return t
}

// Link returns the repoHttp matches for the calls of one file. Routes
// declared in self are skipped. Results are de-duplicated and keep the
// order of first discovery.
func (t *RouteTable) Link(self string, calls []graph.HTTPCall) []graph.RepoHTTPMatch {
	out := []graph.RepoHTTPMatch{}
	seen := make(map[graph.RepoHTTPMatch]bool)
	for _, call := range calls {
		if !graph.IsMatchableURL(call.URL) {
			continue
		}
		for _, route := range t.byPath[NormalizePath(call.URL)] {
			if route.File == self || !Matches(call, route) {
				continue
			}
			m := graph.RepoHTTPMatch{TargetFile: route.File, URL: call.URL}
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out
}
