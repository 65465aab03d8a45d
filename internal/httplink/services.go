package httplink

import (
	"cmp"
	"slices"

	"github.com/dusk-indust/repomap/internal/graph"
)

// ServiceEdges emits one calls_api edge per outbound call whose URL names a
// sibling service. Dynamic and environment URLs are skipped. Edges are
// sorted by caller, callee, file and line.
func ServiceEdges(reg *Registry, calls []graph.HTTPCall) []graph.Edge {
	var edges []graph.Edge
	for _, call := range calls {
		if !graph.IsMatchableURL(call.URL) {
			continue
		}
		from, ok := reg.RepoOf(call.File)
		if !ok {
			continue
		}
		to, ok := reg.MatchService(call.URL, from)
		if !ok {
			continue
		}
		edges = append(edges, graph.Edge{
			From:       from,
			To:         to,
			Type:       graph.EdgeTypeCallsAPI,
			Confidence: graph.ConfidenceMedium,
			Evidence:   &graph.Evidence{File: call.File, Line: call.Line, Signal: call.URL},
		})
	}
	slices.SortStableFunc(edges, func(a, b graph.Edge) int {
		return cmp.Or(
			cmp.Compare(a.From, b.From),
			cmp.Compare(a.To, b.To),
			cmp.Compare(a.Evidence.File, b.Evidence.File),
			cmp.Compare(a.Evidence.Line, b.Evidence.Line),
		)
	})
	return edges
}
