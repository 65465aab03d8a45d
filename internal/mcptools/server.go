package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewRepoMapMCPServer creates an MCP server with all 5 repomap tools registered.
func NewRepoMapMCPServer(svc *RepoMapService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "repomap",
		Version: svc.cfg.Version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "index_repos",
		Description: "Index a directory of repositories. Extracts imports, symbols, HTTP calls and routes from every source file, describes and embeds files in batches, links HTTP calls to routes, then summarizes directories bottom-up.",
	}, svc.IndexRepos)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "build_graph",
		Description: "Assemble the cross-repository dependency graph (file nodes, import and http edges) from the index and write it as JSON.",
	}, svc.BuildGraph)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_nodes",
		Description: "Find the repos, directories or files whose descriptions are most similar to a query. Optionally filter by node type and limit results.",
	}, svc.SearchNodes)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_node",
		Description: "Return one indexed node by absolute path, including its descriptions and, for files, imports, symbols, HTTP calls, routes and matched HTTP targets.",
	}, svc.GetNode)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question about the indexed repositories from the most relevant node descriptions.",
	}, svc.Ask)

	return server
}

// RunStdio serves the tools over stdin/stdout until ctx is done or the
// client disconnects.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the tools over streamable HTTP on addr.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
