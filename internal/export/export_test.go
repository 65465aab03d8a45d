package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/repomap/internal/graph"
)

const root = "/scan"

func fileNode(id string, imports []string, calls []graph.HTTPCall, links []graph.RepoHTTPMatch) graph.Node {
	return graph.Node{
		ID:       id,
		Type:     graph.NodeTypeFile,
		Parent:   filepath.Dir(id),
		Role:     graph.RoleModule,
		Short:    "short " + filepath.Base(id),
		Detailed: "detailed " + filepath.Base(id),
		Fact: &graph.FileFact{
			Language:  graph.LangPython,
			Imports:   imports,
			HTTPCalls: calls,
		},
		RepoHTTP: links,
	}
}

func seedStore(t *testing.T, nodes ...graph.Node) graph.Store {
	t.Helper()
	store := graph.NewMemStore()
	for _, n := range nodes {
		require.NoError(t, store.Upsert(context.Background(), n.Record()))
	}
	return store
}

func scenarioStore(t *testing.T) graph.Store {
	main := "/scan/svc-a/main.py"
	util := "/scan/svc-a/util.py"
	routes := "/scan/svc-b/routes.py"
	call := graph.HTTPCall{Library: "requests", Method: "get", URL: "http://svc-b/users", File: main, Line: 3}
	return seedStore(t,
		fileNode(main, []string{util, "requests", util}, []graph.HTTPCall{call},
			[]graph.RepoHTTPMatch{{TargetFile: routes, URL: call.URL}, {TargetFile: "/scan/gone.py", URL: call.URL}}),
		fileNode(util, []string{"os"}, nil, nil),
		fileNode(routes, nil, nil, nil),
		graph.Node{ID: "/scan/svc-a", Type: graph.NodeTypeRepo, Short: "repo a", Detailed: "repo a"},
	)
}

// ---------------------------------------------------------------------------
// Assemble
// ---------------------------------------------------------------------------

func TestAssemble(t *testing.T) {
	g, err := Assemble(context.Background(), scenarioStore(t), root, "v1.2.3")
	require.NoError(t, err)

	require.Len(t, g.Nodes, 3, "only file nodes")
	assert.Equal(t, graph.GraphNode{
		ID:          "/scan/svc-a/main.py",
		Name:        "main.py",
		Repo:        "svc-a",
		Description: "detailed main.py",
	}, g.Nodes[0])
	assert.Equal(t, "/scan/svc-b/routes.py", g.Nodes[2].ID)

	assert.Equal(t, []graph.Edge{
		{From: "/scan/svc-a/main.py", To: "/scan/svc-a/util.py", Type: graph.EdgeTypeImport},
		{From: "/scan/svc-a/main.py", To: "/scan/svc-b/routes.py", Type: graph.EdgeTypeHTTP},
	}, g.Edges)

	assert.Equal(t, "repomap", g.Metadata.Tool)
	assert.Equal(t, "v1.2.3", g.Metadata.Version)
	_, err = time.Parse(time.RFC3339, g.Metadata.GeneratedAt)
	assert.NoError(t, err)
}

func TestAssemble_EdgeReferentialIntegrity(t *testing.T) {
	g, err := Assemble(context.Background(), scenarioStore(t), root, "dev")
	require.NoError(t, err)

	ids := make(map[string]bool)
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	for _, e := range g.Edges {
		assert.True(t, ids[e.From], "edge from unknown node %s", e.From)
		assert.True(t, ids[e.To], "edge to unknown node %s", e.To)
	}
}

func TestAssemble_EmptyStore(t *testing.T) {
	g, err := Assemble(context.Background(), graph.NewMemStore(), root, "dev")
	require.NoError(t, err)

	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"nodes":[]`)
	assert.Contains(t, string(data), `"edges":[]`)
}

// ---------------------------------------------------------------------------
// WriteJSON
// ---------------------------------------------------------------------------

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "graph.json")

	g, err := Assemble(context.Background(), scenarioStore(t), root, "dev")
	require.NoError(t, err)
	require.NoError(t, WriteJSON(path, g))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got graph.Graph
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, *g, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "graph.json", entries[0].Name())
}

func TestWriteJSON_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, WriteJSON(path, map[string]int{"a": 1}))
	require.NoError(t, WriteJSON(path, map[string]int{"b": 2}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"b": 2}`, string(data))
}

func TestWriteFile_Mermaid(t *testing.T) {
	g, err := Assemble(context.Background(), scenarioStore(t), root, "dev")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "nested", "graph.mmd")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, WriteFile(path, []byte(GenerateMermaid(g))))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, GenerateMermaid(g), string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "graph.mmd", entries[0].Name())
}

// ---------------------------------------------------------------------------
// Mermaid
// ---------------------------------------------------------------------------

func TestGenerateMermaid(t *testing.T) {
	g, err := Assemble(context.Background(), scenarioStore(t), root, "dev")
	require.NoError(t, err)

	out := GenerateMermaid(g)
	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, `subgraph N0["svc-a"]`)
	assert.Contains(t, out, `N1["svc-a/main.py"]`)
	assert.Contains(t, out, `N2["svc-a/util.py"]`)
	assert.Contains(t, out, `subgraph N3["svc-b"]`)
	assert.Contains(t, out, `N4["svc-b/routes.py"]`)
	assert.Contains(t, out, "  N1 --> N2\n")
	assert.Contains(t, out, "  N1 -.->|http| N4\n")
	assert.Equal(t, 2, strings.Count(out, "  end\n"))
}

// ---------------------------------------------------------------------------
// Service graph
// ---------------------------------------------------------------------------

func TestServiceGraphFromStore(t *testing.T) {
	sg, err := ServiceGraphFromStore(context.Background(), scenarioStore(t), root, "dev")
	require.NoError(t, err)

	assert.Equal(t, []graph.ServiceNode{{ID: "svc-a", Type: "service"}, {ID: "svc-b", Type: "service"}}, sg.Nodes)
	require.Len(t, sg.Edges, 1)
	e := sg.Edges[0]
	assert.Equal(t, "svc-a", e.From)
	assert.Equal(t, "svc-b", e.To)
	assert.Equal(t, graph.EdgeTypeCallsAPI, e.Type)
	assert.Equal(t, graph.ConfidenceMedium, e.Confidence)
	require.NotNil(t, e.Evidence)
	assert.Equal(t, graph.Evidence{File: "/scan/svc-a/main.py", Line: 3, Signal: "http://svc-b/users"}, *e.Evidence)
	assert.Equal(t, "repomap", sg.Metadata.Tool)
}

// ---------------------------------------------------------------------------
// Upload
// ---------------------------------------------------------------------------

func TestNewS3Uploader_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  S3Config
	}{
		{"missing endpoint", S3Config{AccessKey: "a", SecretKey: "s", Bucket: "b"}},
		{"missing keys", S3Config{Endpoint: "localhost:9000", Bucket: "b"}},
		{"missing bucket", S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewS3Uploader(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestS3Uploader_ObjectKey(t *testing.T) {
	u, err := NewS3Uploader(S3Config{
		Endpoint:  "localhost:9000",
		AccessKey: "a",
		SecretKey: "s",
		Bucket:    "graphs",
		Prefix:    "/runs/2024/",
	})
	require.NoError(t, err)
	assert.Equal(t, "runs/2024/graph.json", u.ObjectKey("/tmp/out/graph.json"))
}
