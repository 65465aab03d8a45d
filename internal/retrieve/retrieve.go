// Package retrieve answers questions over the indexed node store: nearest
// neighbour retrieval, grounded answers, and repository summaries built from
// the persisted descriptions.
package retrieve

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dusk-indust/repomap/internal/graph"
	"github.com/dusk-indust/repomap/internal/llm"
)

// DefaultK is the number of nodes retrieved per query when unset.
const DefaultK = 5

// Limits of the repository context recipe.
const (
	MaxContextDirs        = 50
	MaxCompressedDirs     = 15
	MaxContextEntrypoints = 20
)

const defaultRepoShort = "Repository composed of multiple cooperating subsystems."

// Result is one retrieved node.
type Result struct {
	Type     graph.NodeType    `json:"type"`
	Path     string            `json:"path"`
	Document string            `json:"document"`
	Metadata map[string]string `json:"metadata"`
	Score    float64           `json:"score"`
}

// Retriever reads the node store built by the pipeline.
type Retriever struct {
	Store    graph.Store
	Embedder llm.Embedder
	Gen      llm.TextGenerator
	K        int
	Logger   *slog.Logger
}

func (r *Retriever) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// Retrieve embeds query and returns the K most similar nodes matching
// where (nil for all), best first.
func (r *Retriever) Retrieve(ctx context.Context, query string, where graph.Filter) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("retrieve: empty query")
	}
	vecs, err := r.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("retrieve: embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("retrieve: embedding count mismatch (got %d want 1)", len(vecs))
	}
	k := r.K
	if k <= 0 {
		k = DefaultK
	}
	hits, err := r.Store.QueryByEmbedding(ctx, vecs[0], k, where)
	if err != nil {
		return nil, fmt.Errorf("retrieve: query: %w", err)
	}
	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = Result{
			Type:     graph.NodeType(h.Metadata[graph.MetaType]),
			Path:     h.Metadata[graph.MetaPath],
			Document: h.Document,
			Metadata: h.Metadata,
			Score:    h.Score,
		}
	}
	r.logger().Debug("retrieve.query", "query", query, "hits", len(out))
	return out, nil
}

// Answer retrieves context for question and asks the generator to answer
// from it. The retrieved results are returned alongside the answer.
func (r *Retriever) Answer(ctx context.Context, question string) (string, []Result, error) {
	results, err := r.Retrieve(ctx, question, nil)
	if err != nil {
		return "", nil, err
	}
	var b strings.Builder
	for _, res := range results {
		fmt.Fprintf(&b, "[%s] %s\n%s\n\n", res.Type, res.Path, res.Document)
	}
	prompt := fmt.Sprintf(`You are answering questions about a set of source code repositories.

Use only the context below. If the context does not contain the answer, say so.

CONTEXT:
%s
QUESTION: %s
`, b.String(), question)
	answer, err := r.Gen.Generate(ctx, prompt)
	if err != nil {
		return "", results, fmt.Errorf("retrieve: answer: %w", err)
	}
	return strings.TrimSpace(answer), results, nil
}

// ---------------------------------------------------------------------------
// Repository summaries
// ---------------------------------------------------------------------------

// PathShort pairs a node path with its short description.
type PathShort struct {
	Path  string
	Short string
}

// RepoContext is the material a repository summary is written from.
type RepoContext struct {
	Root        string
	Short       string
	DirOverview string
	Entrypoints []PathShort
}

// BuildRepoContext collects the repo's short description, compresses the
// shorts of its directories (shallowest first) with one generation call,
// and lists its entrypoint files.
func (r *Retriever) BuildRepoContext(ctx context.Context, repoRoot string) (RepoContext, error) {
	root, err := filepath.Abs(repoRoot)
	if err != nil {
		return RepoContext{}, fmt.Errorf("retrieve: %w", err)
	}
	rc := RepoContext{Root: root, Short: defaultRepoShort}

	rec, err := r.Store.GetByID(ctx, root)
	if err != nil {
		return RepoContext{}, fmt.Errorf("retrieve: load repo: %w", err)
	}
	if rec != nil && rec.Metadata[graph.MetaShort] != "" {
		rc.Short = rec.Metadata[graph.MetaShort]
	}

	dirs, err := r.scopedShorts(ctx, root, graph.OfType(graph.NodeTypeDir))
	if err != nil {
		return RepoContext{}, err
	}
	slices.SortFunc(dirs, func(a, b PathShort) int {
		return cmp.Or(
			cmp.Compare(strings.Count(a.Path, string(filepath.Separator)), strings.Count(b.Path, string(filepath.Separator))),
			cmp.Compare(a.Path, b.Path),
		)
	})
	if len(dirs) > MaxContextDirs {
		dirs = dirs[:MaxContextDirs]
	}
	if rc.DirOverview, err = r.compressDirs(ctx, dirs); err != nil {
		return RepoContext{}, err
	}

	eps, err := r.scopedShorts(ctx, root, graph.And{
		graph.OfType(graph.NodeTypeFile),
		graph.Eq{Key: graph.MetaRole, Value: string(graph.RoleEntrypoint)},
	})
	if err != nil {
		return RepoContext{}, err
	}
	slices.SortFunc(eps, func(a, b PathShort) int { return cmp.Compare(a.Path, b.Path) })
	if len(eps) > MaxContextEntrypoints {
		eps = eps[:MaxContextEntrypoints]
	}
	rc.Entrypoints = eps
	return rc, nil
}

// scopedShorts returns path/short pairs of records matching where that lie
// under root and carry a short description.
func (r *Retriever) scopedShorts(ctx context.Context, root string, where graph.Filter) ([]PathShort, error) {
	recs, err := r.Store.Get(ctx, where)
	if err != nil {
		return nil, fmt.Errorf("retrieve: load nodes: %w", err)
	}
	prefix := root + string(filepath.Separator)
	var out []PathShort
	for _, rec := range recs {
		p, s := rec.Metadata[graph.MetaPath], rec.Metadata[graph.MetaShort]
		if p == "" || s == "" || !strings.HasPrefix(p, prefix) {
			continue
		}
		out = append(out, PathShort{Path: p, Short: s})
	}
	return out, nil
}

func (r *Retriever) compressDirs(ctx context.Context, dirs []PathShort) (string, error) {
	if len(dirs) == 0 {
		return "", nil
	}
	if len(dirs) > MaxCompressedDirs {
		dirs = dirs[:MaxCompressedDirs]
	}
	prompt := "Summarize the following directory purposes into a concise architectural overview.\n" +
		"Preserve key components and responsibilities.\n\n" + formatPairs(dirs)
	out, err := r.Gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("retrieve: compress directories: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// RepoSummary writes a README-style summary of one repository.
func (r *Retriever) RepoSummary(ctx context.Context, repoRoot string) (string, error) {
	rc, err := r.BuildRepoContext(ctx, repoRoot)
	if err != nil {
		return "", err
	}
	prompt := fmt.Sprintf(`You are writing high-quality developer documentation for a codebase.

Repository overview:
%s

Architecture overview (derived from directories):
%s

Entry points:
%s
Write a detailed README-style summary with the following sections:

1) What this repository does
2) Architecture overview
3) Key entry points and execution flow
4) How to run / use (best effort, clearly label assumptions)
5) Where to make changes
6) Glossary of important concepts

Constraints:
- Do not invent commands or technologies.
- Base reasoning strictly on provided information.
- Prefer clarity and structure.
`, rc.Short, rc.DirOverview, formatPairs(rc.Entrypoints))
	out, err := r.Gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("retrieve: repo summary: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// RepoCapsule writes a short architectural capsule of one repository.
func (r *Retriever) RepoCapsule(ctx context.Context, repoRoot string) (string, error) {
	rc, err := r.BuildRepoContext(ctx, repoRoot)
	if err != nil {
		return "", err
	}
	paths := make([]string, len(rc.Entrypoints))
	for i, ep := range rc.Entrypoints {
		paths[i] = ep.Path
	}
	prompt := fmt.Sprintf(`Summarize the following repository into a short architectural capsule.

Repository description:
%s

Architecture overview:
%s

Entry points:
%s

Return:
- Purpose
- Main responsibilities
- How it is likely used by other repositories
(Keep it concise.)
`, rc.Short, rc.DirOverview, strings.Join(paths, "\n"))
	out, err := r.Gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("retrieve: repo capsule: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// SystemOverview explains how several repositories work together from one
// capsule per repository.
func (r *Retriever) SystemOverview(ctx context.Context, repoRoots []string) (string, error) {
	if len(repoRoots) == 0 {
		return "", errors.New("retrieve: no repositories")
	}
	var b strings.Builder
	for _, root := range repoRoots {
		capsule, err := r.RepoCapsule(ctx, root)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "REPOSITORY: %s\n\n%s\n\n", root, capsule)
	}
	prompt := fmt.Sprintf(`You are analyzing a system composed of multiple software repositories.

Below are architectural capsules for each repository.

%s
Explain how these repositories work together.

Include:
1) System-level overview
2) Role of each repository
3) Interactions and dependencies
4) Entry points and execution flow
5) Developer workflow across repos
6) Assumptions and inferred relationships (clearly labeled)

Constraints:
- Do not invent integrations.
- Reason strictly from provided information.
- Prefer clarity over certainty.
`, b.String())
	out, err := r.Gen.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("retrieve: system overview: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func formatPairs(pairs []PathShort) string {
	var b strings.Builder
	for _, p := range pairs {
		fmt.Fprintf(&b, "- %s: %s\n", p.Path, p.Short)
	}
	return b.String()
}
