// Package pipeline runs the two-pass indexing job: Pass 1 persists one node
// per source file in batches, the link pass attaches repoHttp matches, and
// Pass 2 summarizes directories deepest-first into dir and repo nodes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/repomap/internal/graph"
	"github.com/dusk-indust/repomap/internal/httplink"
	"github.com/dusk-indust/repomap/internal/llm"
	"github.com/dusk-indust/repomap/internal/walk"
)

// DefaultBatchSize is the number of files embedded per call when unset.
const DefaultBatchSize = 20

// Config holds runtime configuration for an indexing run.
type Config struct {
	// Root contains one subdirectory per repository.
	Root string

	// BatchSize is the number of files buffered before a flush.
	BatchSize int

	// Concurrency bounds description requests within one batch.
	Concurrency int

	// Entrypoints overrides graph.DefaultEntrypoints when non-empty.
	Entrypoints []string

	// Exclude lists directory names skipped by the walker.
	Exclude []string

	// MaxFileBytes bounds the content sent for one file description.
	MaxFileBytes int

	Logger   *slog.Logger
	Progress *ProgressReporter
}

// Stats summarizes one run.
type Stats struct {
	FilesSeen    int `json:"filesSeen"`
	FilesSkipped int `json:"filesSkipped"`
	FileNodes    int `json:"fileNodes"`
	DirNodes     int `json:"dirNodes"`
	RepoNodes    int `json:"repoNodes"`
	DirsSkipped  int `json:"dirsSkipped"`
	Batches      int `json:"batches"`
	Relinked     int `json:"relinked"`
}

// Pipeline owns the node store for the duration of a run. It is not safe
// for concurrent use.
type Pipeline struct {
	cfg       Config
	root      string
	walker    *walk.Walker
	parser    graph.Parser
	store     graph.Store
	describer llm.Describer
	embedder  llm.Embedder
	logger    *slog.Logger
}

// New creates a Pipeline over cfg.Root. The root is made absolute so node
// ids are canonical.
func New(cfg Config, parser graph.Parser, store graph.Store, gen llm.TextGenerator, emb llm.Embedder) (*Pipeline, error) {
	if cfg.Root == "" {
		return nil, errors.New("pipeline: root is required")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("pipeline: resolve root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("pipeline: root %s is not a directory", root)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if len(cfg.Entrypoints) == 0 {
		cfg.Entrypoints = graph.DefaultEntrypoints
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:       cfg,
		root:      root,
		walker:    walk.New(root, cfg.Exclude...),
		parser:    parser,
		store:     store,
		describer: llm.Describer{Gen: gen, MaxFileBytes: cfg.MaxFileBytes},
		embedder:  emb,
		logger:    logger,
	}, nil
}

// Root returns the absolute scan root.
func (p *Pipeline) Root() string { return p.root }

// Run executes Pass 1, the link pass and Pass 2 in order. A failure stops
// the run; nodes already upserted stay in the store.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	var st Stats
	if err := p.Pass1(ctx, &st); err != nil {
		return st, err
	}
	if err := p.LinkHTTP(ctx, &st); err != nil {
		return st, err
	}
	if err := p.Pass2(ctx, &st); err != nil {
		return st, err
	}
	p.logger.Info("pipeline.done",
		"files", st.FileNodes, "dirs", st.DirNodes, "repos", st.RepoNodes,
		"skipped_files", st.FilesSkipped, "skipped_dirs", st.DirsSkipped, "relinked", st.Relinked)
	return st, nil
}

// ---------------------------------------------------------------------------
// Pass 1: files
// ---------------------------------------------------------------------------

type pending struct {
	path    string
	content []byte
	fact    *graph.FileFact
}

// Pass1 walks every file, extracts its facts and persists file nodes in
// batches of cfg.BatchSize. Unknown, unreadable and unparsable files are
// skipped.
func (p *Pipeline) Pass1(ctx context.Context, st *Stats) error {
	buf := make([]pending, 0, p.cfg.BatchSize)
	for path := range p.walker.Files() {
		if err := ctx.Err(); err != nil {
			return err
		}
		st.FilesSeen++
		item, ok := p.extract(ctx, path)
		if !ok {
			st.FilesSkipped++
			continue
		}
		buf = append(buf, item)
		if len(buf) >= p.cfg.BatchSize {
			if err := p.flush(ctx, buf, st); err != nil {
				return err
			}
			buf = buf[:0]
		}
	}
	if len(buf) > 0 {
		if err := p.flush(ctx, buf, st); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) extract(ctx context.Context, path string) (pending, bool) {
	lang := graph.DetectLanguage(path)
	if lang == graph.LangUnknown {
		p.logger.Debug("pipeline.skip_file", "path", path, "reason", "unknown language")
		return pending{}, false
	}
	content, err := os.ReadFile(path)
	if err != nil {
		p.logger.Debug("pipeline.skip_file", "path", path, "reason", "unreadable", "err", err)
		return pending{}, false
	}
	fact, err := p.parser.Parse(ctx, path, content, lang)
	if err != nil {
		p.logger.Debug("pipeline.skip_file", "path", path, "reason", "parse", "err", err)
		p.cfg.Progress.Emit(ProgressEvent{Phase: PhaseFiles, Section: path, Status: ProgressSkipped, Message: err.Error()})
		return pending{}, false
	}
	return pending{path: path, content: content, fact: fact}, true
}

// flush describes the buffered files, embeds their detailed descriptions in
// one call and upserts one node per file.
func (p *Pipeline) flush(ctx context.Context, buf []pending, st *Stats) error {
	st.Batches++
	section := fmt.Sprintf("batch %d", st.Batches)
	p.cfg.Progress.Emit(ProgressEvent{Phase: PhaseFiles, Section: section, Status: ProgressWorking})

	descs := make([]llm.Description, len(buf))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, item := range buf {
		g.Go(func() error {
			d, err := p.describer.DescribeFile(gctx, item.path, item.content)
			if err != nil {
				return err
			}
			descs[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.cfg.Progress.Emit(ProgressEvent{Phase: PhaseFiles, Section: section, Status: ProgressFailed, Message: err.Error()})
		return fmt.Errorf("pass1 %s: %w", section, err)
	}

	texts := make([]string, len(descs))
	for i, d := range descs {
		texts[i] = d.Detailed
	}
	vecs, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		p.cfg.Progress.Emit(ProgressEvent{Phase: PhaseFiles, Section: section, Status: ProgressFailed, Message: err.Error()})
		return fmt.Errorf("pass1 %s: embed: %w", section, err)
	}
	if len(vecs) != len(texts) {
		return fmt.Errorf("pass1 %s: embedding count mismatch (got %d want %d)", section, len(vecs), len(texts))
	}

	for i, item := range buf {
		node := graph.Node{
			ID:        item.path,
			Type:      graph.NodeTypeFile,
			Parent:    filepath.Dir(item.path),
			Role:      graph.RoleFor(item.path, p.cfg.Entrypoints),
			Short:     descs[i].Short,
			Detailed:  descs[i].Detailed,
			Embedding: vecs[i],
			Fact:      item.fact,
			RepoHTTP:  []graph.RepoHTTPMatch{},
		}
		if err := p.store.Upsert(ctx, node.Record()); err != nil {
			return fmt.Errorf("pass1 %s: upsert %s: %w", section, item.path, err)
		}
		st.FileNodes++
	}
	p.logger.Debug("pipeline.pass1.flush", "batch", st.Batches, "files", len(buf))
	p.cfg.Progress.Emit(ProgressEvent{Phase: PhaseFiles, Section: section, Status: ProgressComplete, Message: fmt.Sprintf("%d files", len(buf))})
	return nil
}

// ---------------------------------------------------------------------------
// Link pass: repoHttp
// ---------------------------------------------------------------------------

// LinkHTTP matches every stored file's HTTP calls against the routes of all
// stored files and re-upserts only the files whose repoHttp changed.
func (p *Pipeline) LinkHTTP(ctx context.Context, st *Stats) error {
	recs, err := p.store.Get(ctx, graph.OfType(graph.NodeTypeFile))
	if err != nil {
		return fmt.Errorf("link: load files: %w", err)
	}
	nodes := make([]graph.Node, 0, len(recs))
	var routes []graph.Route
	for _, rec := range recs {
		n := graph.NodeFromRecord(rec)
		nodes = append(nodes, n)
		routes = append(routes, n.Fact.Routes...)
	}

	table := httplink.NewRouteTable(routes)
	for _, n := range nodes {
		links := table.Link(n.ID, n.Fact.HTTPCalls)
		if slices.Equal(links, n.RepoHTTP) {
			continue
		}
		n.RepoHTTP = links
		if err := p.store.Upsert(ctx, n.Record()); err != nil {
			return fmt.Errorf("link: upsert %s: %w", n.ID, err)
		}
		st.Relinked++
	}
	p.logger.Info("httplink.links", "files", len(nodes), "routes", len(routes), "relinked", st.Relinked)
	p.cfg.Progress.Emit(ProgressEvent{Phase: PhaseLink, Section: "repoHttp", Status: ProgressComplete, Message: fmt.Sprintf("%d relinked", st.Relinked)})
	return nil
}

// ---------------------------------------------------------------------------
// Pass 2: directories
// ---------------------------------------------------------------------------

// Pass2 summarizes directories deepest-first from the short descriptions of
// their persisted children. A child without a short description is listed
// by name. Directories without persisted children are skipped. A directory directly under the root becomes a repo node.
func (p *Pipeline) Pass2(ctx context.Context, st *Stats) error {
	for dir := range p.walker.DirsBottomUp() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.summarizeDir(ctx, dir, st); err != nil {
			p.cfg.Progress.Emit(ProgressEvent{Phase: PhaseDirs, Section: dir, Status: ProgressFailed, Message: err.Error()})
			return fmt.Errorf("pass2 %s: %w", dir, err)
		}
	}
	return nil
}

func (p *Pipeline) summarizeDir(ctx context.Context, dir string, st *Stats) error {
	children, err := p.store.Get(ctx, graph.ChildrenOf(dir))
	if err != nil {
		return fmt.Errorf("load children: %w", err)
	}
	shorts := make([]string, 0, len(children))
	for _, c := range children {
		s := c.Metadata[graph.MetaShort]
		if s == "" {
			s = filepath.Base(c.ID)
		}
		shorts = append(shorts, s)
	}
	if len(shorts) == 0 {
		st.DirsSkipped++
		p.logger.Debug("pipeline.skip_dir", "path", dir)
		return nil
	}

	desc, err := p.describer.DescribeDir(ctx, dir, shorts)
	if err != nil {
		return err
	}
	vecs, err := p.embedder.Embed(ctx, []string{desc.Detailed})
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(vecs) != 1 {
		return fmt.Errorf("embedding count mismatch (got %d want 1)", len(vecs))
	}

	node := graph.Node{
		ID:        dir,
		Type:      graph.NodeTypeDir,
		Parent:    filepath.Dir(dir),
		Short:     desc.Short,
		Detailed:  desc.Detailed,
		Embedding: vecs[0],
	}
	if walk.IsRepoDir(p.root, dir) {
		node.Type = graph.NodeTypeRepo
		node.Parent = ""
	}
	if err := p.store.Upsert(ctx, node.Record()); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	if node.Type == graph.NodeTypeRepo {
		st.RepoNodes++
	} else {
		st.DirNodes++
	}
	p.logger.Debug("pipeline.pass2.node", "path", dir, "type", node.Type, "children", len(shorts))
	p.cfg.Progress.Emit(ProgressEvent{Phase: PhaseDirs, Section: dir, Status: ProgressComplete})
	return nil
}
