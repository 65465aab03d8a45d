package mcptools

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/repomap/internal/export"
	"github.com/dusk-indust/repomap/internal/graph"
	"github.com/dusk-indust/repomap/internal/llm"
	"github.com/dusk-indust/repomap/internal/pipeline"
	"github.com/dusk-indust/repomap/internal/retrieve"
)

// ServiceConfig configures the tool handlers.
type ServiceConfig struct {
	// Pipeline is the base configuration of index_repos; Root is the
	// default scan root.
	Pipeline pipeline.Config

	// GraphPath is the default output of build_graph.
	GraphPath string

	Version string
	K       int
	Logger  *slog.Logger
}

// RepoMapService holds the store and collaborators used by MCP tool handlers.
type RepoMapService struct {
	cfg       ServiceConfig
	store     graph.Store
	parser    graph.Parser
	gen       llm.TextGenerator
	emb       llm.Embedder
	retriever *retrieve.Retriever

	// mu serializes index runs over the store and guards root.
	mu   sync.Mutex
	root string // root of the last index run
}

// NewRepoMapService creates a RepoMapService over the given collaborators.
func NewRepoMapService(cfg ServiceConfig, store graph.Store, parser graph.Parser, gen llm.TextGenerator, emb llm.Embedder) *RepoMapService {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RepoMapService{
		cfg:       cfg,
		store:     store,
		parser:    parser,
		gen:       gen,
		emb:       emb,
		retriever: &retrieve.Retriever{Store: store, Embedder: emb, Gen: gen, K: cfg.K, Logger: cfg.Logger},
		root:      cfg.Pipeline.Root,
	}
}

// IndexRepos runs the full pipeline over a scan root.
func (s *RepoMapService) IndexRepos(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexReposInput,
) (*mcp.CallToolResult, IndexReposOutput, error) {
	cfg := s.cfg.Pipeline
	if input.Root != "" {
		cfg.Root = input.Root
	}
	if cfg.Root == "" {
		return nil, IndexReposOutput{}, fmt.Errorf("root is required")
	}
	if len(input.ExcludeDirs) > 0 {
		cfg.Exclude = append(slices.Clone(cfg.Exclude), input.ExcludeDirs...)
	}
	cfg.Progress = nil

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := pipeline.New(cfg, s.parser, s.store, s.gen, s.emb)
	if err != nil {
		return nil, IndexReposOutput{}, err
	}
	stats, err := p.Run(ctx)
	if err != nil {
		return nil, IndexReposOutput{}, fmt.Errorf("index %s: %w", p.Root(), err)
	}
	s.root = p.Root()
	return nil, IndexReposOutput{Root: p.Root(), Stats: stats}, nil
}

// BuildGraph assembles the graph document from the store and writes it.
func (s *RepoMapService) BuildGraph(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input BuildGraphInput,
) (*mcp.CallToolResult, BuildGraphOutput, error) {
	path := input.Output
	if path == "" {
		path = s.cfg.GraphPath
	}
	if path == "" {
		return nil, BuildGraphOutput{}, fmt.Errorf("output path is required")
	}
	root, err := s.scanRoot()
	if err != nil {
		return nil, BuildGraphOutput{}, err
	}

	g, err := export.Assemble(ctx, s.store, root, s.cfg.Version)
	if err != nil {
		return nil, BuildGraphOutput{}, err
	}
	if err := export.WriteJSON(path, g); err != nil {
		return nil, BuildGraphOutput{}, err
	}
	return nil, BuildGraphOutput{Path: path, NodeCount: len(g.Nodes), EdgeCount: len(g.Edges)}, nil
}

// SearchNodes returns the nodes most similar to a query.
func (s *RepoMapService) SearchNodes(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchNodesInput,
) (*mcp.CallToolResult, SearchNodesOutput, error) {
	var where graph.Filter
	switch graph.NodeType(input.Type) {
	case "":
	case graph.NodeTypeRepo, graph.NodeTypeDir, graph.NodeTypeFile:
		where = graph.OfType(graph.NodeType(input.Type))
	default:
		return nil, SearchNodesOutput{}, fmt.Errorf("unknown node type %q", input.Type)
	}

	r := *s.retriever
	if input.Limit > 0 {
		r.K = input.Limit
	}
	results, err := r.Retrieve(ctx, input.Query, where)
	if err != nil {
		return nil, SearchNodesOutput{}, err
	}
	if results == nil {
		results = []retrieve.Result{}
	}
	return nil, SearchNodesOutput{Results: results, Total: len(results)}, nil
}

// GetNode returns one stored node, decoded.
func (s *RepoMapService) GetNode(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetNodeInput,
) (*mcp.CallToolResult, GetNodeOutput, error) {
	if input.ID == "" {
		return nil, GetNodeOutput{}, fmt.Errorf("id is required")
	}
	rec, err := s.store.GetByID(ctx, input.ID)
	if err != nil {
		return nil, GetNodeOutput{}, err
	}
	if rec == nil {
		return nil, GetNodeOutput{}, fmt.Errorf("node not found: %s", input.ID)
	}
	n := graph.NodeFromRecord(*rec)
	return nil, GetNodeOutput{Node: NodeView{
		ID:       n.ID,
		Type:     n.Type,
		Parent:   n.Parent,
		Role:     n.Role,
		Short:    n.Short,
		Detailed: n.Detailed,
		Fact:     n.Fact,
		RepoHTTP: n.RepoHTTP,
	}}, nil
}

// Ask answers a question from the retrieved nodes.
func (s *RepoMapService) Ask(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	answer, results, err := s.retriever.Answer(ctx, input.Question)
	if err != nil {
		return nil, AskOutput{}, err
	}
	sources := make([]string, 0, len(results))
	for _, r := range results {
		sources = append(sources, r.Path)
	}
	return nil, AskOutput{Answer: answer, Sources: sources}, nil
}

func (s *RepoMapService) scanRoot() (string, error) {
	s.mu.Lock()
	last := s.root
	s.mu.Unlock()
	if last == "" {
		return "", fmt.Errorf("no scan root: run index_repos first or configure a root")
	}
	root, err := filepath.Abs(last)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(root); err != nil {
		return "", fmt.Errorf("cannot access root: %w", err)
	}
	return root, nil
}
