package mcptools

import (
	"github.com/dusk-indust/repomap/internal/graph"
	"github.com/dusk-indust/repomap/internal/pipeline"
	"github.com/dusk-indust/repomap/internal/retrieve"
)

// --- MCP Tool Input Types ---
// These structs define the JSON schema for each MCP tool's input.
// The MCP Go SDK auto-generates JSON schemas from struct tags.

// IndexReposInput is the input for the index_repos MCP tool.
type IndexReposInput struct {
	Root        string   `json:"root,omitempty" jsonschema:"directory containing one subdirectory per repository (default: the configured root)"`
	ExcludeDirs []string `json:"excludeDirs,omitempty" jsonschema:"directory names to skip (e.g. node_modules, .git)"`
}

// IndexReposOutput is the result of the index_repos MCP tool.
type IndexReposOutput struct {
	Root  string         `json:"root"`
	Stats pipeline.Stats `json:"stats"`
}

// BuildGraphInput is the input for the build_graph MCP tool.
type BuildGraphInput struct {
	Output string `json:"output,omitempty" jsonschema:"path of the graph JSON document (default: the configured output)"`
}

// BuildGraphOutput is the result of the build_graph MCP tool.
type BuildGraphOutput struct {
	Path      string `json:"path"`
	NodeCount int    `json:"nodeCount"`
	EdgeCount int    `json:"edgeCount"`
}

// SearchNodesInput is the input for the search_nodes MCP tool.
type SearchNodesInput struct {
	Query string `json:"query" jsonschema:"natural language description of what to find"`
	Type  string `json:"type,omitempty" jsonschema:"filter by node type: repo, dir, file"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results (default: 5)"`
}

// SearchNodesOutput is the result of the search_nodes MCP tool.
type SearchNodesOutput struct {
	Results []retrieve.Result `json:"results"`
	Total   int               `json:"total"`
}

// GetNodeInput is the input for the get_node MCP tool.
type GetNodeInput struct {
	ID string `json:"id" jsonschema:"absolute path of the repo, directory or file"`
}

// NodeView is the decoded form of a stored node.
type NodeView struct {
	ID       string                `json:"id"`
	Type     graph.NodeType        `json:"type"`
	Parent   string                `json:"parent,omitempty"`
	Role     graph.Role            `json:"role,omitempty"`
	Short    string                `json:"short"`
	Detailed string                `json:"detailed"`
	Fact     *graph.FileFact       `json:"fact,omitempty"`
	RepoHTTP []graph.RepoHTTPMatch `json:"repoHttp,omitempty"`
}

// GetNodeOutput is the result of the get_node MCP tool.
type GetNodeOutput struct {
	Node NodeView `json:"node"`
}

// AskInput is the input for the ask MCP tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"question about the indexed repositories"`
}

// AskOutput is the result of the ask MCP tool.
type AskOutput struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}
