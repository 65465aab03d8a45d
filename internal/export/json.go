// Package export assembles the terminal graph documents from the node store
// and writes them as JSON, Mermaid or uploaded artifacts.
package export

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/dusk-indust/repomap/internal/graph"
	"github.com/dusk-indust/repomap/internal/walk"
)

// ToolName is recorded in every document's metadata.
const ToolName = "repomap"

// NewMetadata stamps a document produced now by the given build version.
func NewMetadata(version string, now time.Time) graph.GraphMetadata {
	return graph.GraphMetadata{
		GeneratedAt: now.UTC().Format(time.RFC3339),
		Tool:        ToolName,
		Version:     version,
	}
}

// FileNodes loads every file node from store, ordered by id.
func FileNodes(ctx context.Context, store graph.Store) ([]graph.Node, error) {
	recs, err := store.Get(ctx, graph.OfType(graph.NodeTypeFile))
	if err != nil {
		return nil, fmt.Errorf("load file nodes: %w", err)
	}
	nodes := make([]graph.Node, len(recs))
	for i, rec := range recs {
		nodes[i] = graph.NodeFromRecord(rec)
	}
	return nodes, nil
}

// Assemble builds the dependency graph from the persisted file nodes. Only
// import and repoHttp targets that are themselves file nodes produce edges.
func Assemble(ctx context.Context, store graph.Store, root, version string) (*graph.Graph, error) {
	nodes, err := FileNodes(ctx, store)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(nodes))
	g := &graph.Graph{
		Nodes:    make([]graph.GraphNode, 0, len(nodes)),
		Edges:    []graph.Edge{},
		Metadata: NewMetadata(version, time.Now()),
	}
	for _, n := range nodes {
		known[n.ID] = true
		repo, _ := walk.RepoOf(root, n.ID)
		g.Nodes = append(g.Nodes, graph.GraphNode{
			ID:          n.ID,
			Name:        filepath.Base(n.ID),
			Repo:        repo,
			Description: n.Detailed,
		})
	}

	for _, n := range nodes {
		for _, imp := range n.Fact.Imports {
			if known[imp] && imp != n.ID {
				g.Edges = append(g.Edges, graph.Edge{From: n.ID, To: imp, Type: graph.EdgeTypeImport})
			}
		}
		for _, m := range n.RepoHTTP {
			if known[m.TargetFile] {
				g.Edges = append(g.Edges, graph.Edge{From: n.ID, To: m.TargetFile, Type: graph.EdgeTypeHTTP})
			}
		}
	}

	slices.SortFunc(g.Nodes, func(a, b graph.GraphNode) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(g.Edges, compareEdges)
	g.Edges = slices.CompactFunc(g.Edges, func(a, b graph.Edge) bool { return compareEdges(a, b) == 0 })
	return g, nil
}

func compareEdges(a, b graph.Edge) int {
	if c := cmp.Compare(a.From, b.From); c != 0 {
		return c
	}
	if c := cmp.Compare(a.To, b.To); c != 0 {
		return c
	}
	return cmp.Compare(a.Type, b.Type)
}

// WriteJSON writes v as indented JSON to path via WriteFile.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return WriteFile(path, append(data, '\n'))
}

// WriteFile writes data to path. The bytes go to a temporary file in the
// same directory first and are renamed into place, so an interrupted write
// never leaves a partial file at path.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
