package export

import (
	"context"
	"time"

	"github.com/dusk-indust/repomap/internal/graph"
	"github.com/dusk-indust/repomap/internal/httplink"
)

// BuildServiceGraph returns one service node per registered repository and
// the calls_api edges found among calls.
func BuildServiceGraph(reg *httplink.Registry, calls []graph.HTTPCall, version string) *graph.ServiceGraph {
	sg := &graph.ServiceGraph{
		Nodes:    []graph.ServiceNode{},
		Edges:    httplink.ServiceEdges(reg, calls),
		Metadata: NewMetadata(version, time.Now()),
	}
	for _, svc := range reg.Services() {
		sg.Nodes = append(sg.Nodes, graph.ServiceNode{ID: svc.RepoName, Type: "service"})
	}
	return sg
}

// ServiceGraphFromStore builds the registry and call list from the
// persisted file nodes under root.
func ServiceGraphFromStore(ctx context.Context, store graph.Store, root, version string) (*graph.ServiceGraph, error) {
	nodes, err := FileNodes(ctx, store)
	if err != nil {
		return nil, err
	}
	files := make([]string, len(nodes))
	var calls []graph.HTTPCall
	for i, n := range nodes {
		files[i] = n.ID
		calls = append(calls, n.Fact.HTTPCalls...)
	}
	return BuildServiceGraph(httplink.NewRegistry(root, files), calls, version), nil
}
