package graph

// --- Enums ---

// Language identifies the source language of a scanned file.
type Language string

const (
	LangPython  Language = "python"
	LangC       Language = "c"
	LangCPP     Language = "cpp"
	LangJava    Language = "java"
	LangUnknown Language = "unknown"
)

// NodeType classifies persisted nodes.
type NodeType string

const (
	NodeTypeRepo NodeType = "repo"
	NodeTypeDir  NodeType = "dir"
	NodeTypeFile NodeType = "file"
)

// Role marks whether a file is a likely execution start point.
type Role string

const (
	RoleEntrypoint Role = "entrypoint"
	RoleModule     Role = "module"
)

// EdgeType classifies relationships between nodes.
type EdgeType string

const (
	EdgeTypeImport   EdgeType = "import"
	EdgeTypeHTTP     EdgeType = "http"
	EdgeTypeCallsAPI EdgeType = "calls_api"
)

// ConfidenceMedium is the fixed confidence of heuristic service edges.
const ConfidenceMedium = "medium"

// DefaultEntrypoints is the recognized entrypoint filename set.
var DefaultEntrypoints = []string{
	"main.py", "app.py", "server.py", "index.py", "cli.py",
	"wsgi.py", "asgi.py", "manage.py",
	"index.js", "index.ts",
	"Main.java", "main.c", "main.cpp",
}

// --- Facts ---

// HTTPCall is an outbound HTTP request found in source.
type HTTPCall struct {
	Library string `json:"library"`
	Method  string `json:"method"`
	URL     string `json:"url"`
	File    string `json:"file"`
	Line    int    `json:"line"`
}

// Route is an HTTP route declared by a decorator.
type Route struct {
	Path         string   `json:"path"`
	Methods      []string `json:"methods"`
	Decorator    string   `json:"decorator"`
	FunctionName string   `json:"function_name"`
	ClassName    string   `json:"class_name,omitempty"`
	File         string   `json:"file"`
	Line         int      `json:"line"`
}

// RepoHTTPMatch links an outbound call to the file declaring the matched route.
type RepoHTTPMatch struct {
	TargetFile string `json:"target_file"`
	URL        string `json:"url"`
}

// FileFact holds the static facts extracted from one source file. Imports,
// SymbolsDefined and SymbolsUsed are sorted and duplicate-free.
type FileFact struct {
	Language       Language   `json:"language"`
	Imports        []string   `json:"imports"`
	SymbolsDefined []string   `json:"symbols_defined"`
	SymbolsUsed    []string   `json:"symbols_used"`
	HTTPCalls      []HTTPCall `json:"http_calls"`
	Routes         []Route    `json:"routes"`
}

// Empty reports whether the fact carries no usable information.
func (f *FileFact) Empty() bool {
	return f == nil || f.Language == LangUnknown
}

// --- Persisted nodes ---

// Node is a persisted repo, directory or file.
type Node struct {
	ID        string
	Type      NodeType
	Parent    string // empty only for repo nodes
	Role      Role   // files only
	Short     string
	Detailed  string
	Embedding []float32

	// Files only.
	Fact     *FileFact
	RepoHTTP []RepoHTTPMatch
}

// --- Edges and graph documents ---

// Evidence records where an edge was observed.
type Evidence struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Signal string `json:"signal"`
}

// Edge is a directed relationship between two node ids.
type Edge struct {
	From       string    `json:"from"`
	To         string    `json:"to"`
	Type       EdgeType  `json:"type"`
	Confidence string    `json:"confidence,omitempty"`
	Evidence   *Evidence `json:"evidence,omitempty"`
}

// GraphNode is one file entry of the graph document.
type GraphNode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Repo        string `json:"repo"`
	Description string `json:"description"`
}

// GraphMetadata describes how a graph document was produced.
type GraphMetadata struct {
	GeneratedAt string `json:"generatedAt"`
	Tool        string `json:"tool"`
	Version     string `json:"version"`
}

// Graph is the terminal cross-repository dependency graph.
type Graph struct {
	Nodes    []GraphNode   `json:"nodes"`
	Edges    []Edge        `json:"edges"`
	Metadata GraphMetadata `json:"metadata"`
}

// ServiceNode is one repository in the service graph.
type ServiceNode struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// ServiceGraph holds repo-level calls_api edges.
type ServiceGraph struct {
	Nodes    []ServiceNode `json:"nodes"`
	Edges    []Edge        `json:"edges"`
	Metadata GraphMetadata `json:"metadata"`
}
