package export

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dusk-indust/repomap/internal/graph"
)

// GenerateMermaid produces a Mermaid graph TD diagram from an assembled
// graph. Files are grouped by repository; import edges become solid arrows
// and http edges dotted arrows labelled "http".
func GenerateMermaid(g *graph.Graph) string {
	// Build node → ID mapping for Mermaid (alphanumeric only).
	nodeIDs := make(map[string]string)
	nextID := 0
	getID := func(key string) string {
		if id, ok := nodeIDs[key]; ok {
			return id
		}
		id := fmt.Sprintf("N%d", nextID)
		nextID++
		nodeIDs[key] = id
		return id
	}

	byRepo := make(map[string][]graph.GraphNode)
	var repos []string
	for _, n := range g.Nodes {
		if _, ok := byRepo[n.Repo]; !ok {
			repos = append(repos, n.Repo)
		}
		byRepo[n.Repo] = append(byRepo[n.Repo], n)
	}
	slices.Sort(repos)

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, repo := range repos {
		members := byRepo[repo]
		slices.SortFunc(members, func(a, b graph.GraphNode) int { return strings.Compare(a.ID, b.ID) })
		label := repo
		if label == "" {
			label = "(root)"
		}
		fmt.Fprintf(&sb, "  subgraph %s[\"%.40s\"]\n", getID("repo:"+repo), escapeLabel(label))
		for _, n := range members {
			fmt.Fprintf(&sb, "    %s[\"%s\"]\n", getID(n.ID), escapeLabel(shortPath(n.ID)))
		}
		sb.WriteString("  end\n")
	}

	for _, e := range g.Edges {
		src, tgt := getID(e.From), getID(e.To)
		switch e.Type {
		case graph.EdgeTypeImport:
			fmt.Fprintf(&sb, "  %s --> %s\n", src, tgt)
		case graph.EdgeTypeHTTP:
			fmt.Fprintf(&sb, "  %s -.->|http| %s\n", src, tgt)
		}
	}

	return sb.String()
}

// shortPath returns the last 2 path segments for readability.
func shortPath(path string) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) <= 2 {
		return path
	}
	return strings.Join(parts[len(parts)-2:], "/")
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}
