package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/repomap/internal/graph"
	"github.com/dusk-indust/repomap/internal/llm"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeGenerator answers every prompt with a description naming the file or
// directory found on the FILE:/DIRECTORY: line.
func fakeGenerator() llm.TextGenerator {
	return llm.GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		name := "unknown"
		for _, line := range strings.Split(prompt, "\n") {
			if v, ok := strings.CutPrefix(line, "FILE: "); ok {
				name = v
				break
			}
			if v, ok := strings.CutPrefix(line, "DIRECTORY: "); ok {
				name = v + "/"
				break
			}
		}
		return fmt.Sprintf(`{"short": "About %s.", "detailed": "Details of %s."}`, name, name), nil
	})
}

// countingEmbedder returns a constant vector per text and records batch sizes.
type countingEmbedder struct {
	mu      sync.Mutex
	batches []int
	err     error
}

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	e.batches = append(e.batches, len(texts))
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

// recordingStore records the id of every upsert in order.
type recordingStore struct {
	*graph.MemStore
	mu    sync.Mutex
	order []string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemStore: graph.NewMemStore()}
}

func (s *recordingStore) Upsert(ctx context.Context, rec graph.Record) error {
	s.mu.Lock()
	s.order = append(s.order, rec.ID)
	s.mu.Unlock()
	return s.MemStore.Upsert(ctx, rec)
}

// firstIndex returns the position of the first upsert of id, or -1.
func (s *recordingStore) firstIndex(id string) int {
	return slices.Index(s.order, id)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func newTestPipeline(t *testing.T, cfg Config, store graph.Store, emb llm.Embedder) *Pipeline {
	t.Helper()
	parser := graph.NewTreeSitterParser()
	t.Cleanup(func() { parser.Close() })
	p, err := New(cfg, parser, store, fakeGenerator(), emb)
	require.NoError(t, err)
	return p
}

func mustNode(t *testing.T, store graph.Store, id string) graph.Node {
	t.Helper()
	rec, err := store.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec, "node %s not persisted", id)
	return graph.NodeFromRecord(*rec)
}

const routesPy = `from fastapi import FastAPI

app = FastAPI()


@app.get("/users")
def list_users():
    return []
`

// ---------------------------------------------------------------------------
// Ordering and idempotency
// ---------------------------------------------------------------------------

func TestRun_BottomUpOrdering(t *testing.T) {
	root := writeTree(t, map[string]string{
		"repo/D/f.py":          "def f():\n    return 1\n",
		"repo/D/sub/g.py":      "def g():\n    return 2\n",
		"repo/top.py":          "import os\n",
		"repo/D/sub/deep/h.py": "x = 1\n",
	})
	store := newRecordingStore()
	p := newTestPipeline(t, Config{Root: root}, store, &countingEmbedder{})

	st, err := p.Run(context.Background())
	require.NoError(t, err)

	d := filepath.Join(root, "repo", "D")
	dIdx := store.firstIndex(d)
	require.GreaterOrEqual(t, dIdx, 0)
	for _, child := range []string{filepath.Join(d, "f.py"), filepath.Join(d, "sub"), filepath.Join(d, "sub", "g.py")} {
		idx := store.firstIndex(child)
		require.GreaterOrEqual(t, idx, 0, child)
		assert.Less(t, idx, dIdx, "%s must be persisted before %s", child, d)
	}
	assert.Less(t, store.firstIndex(filepath.Join(d, "sub", "deep")), store.firstIndex(filepath.Join(d, "sub")))
	assert.Less(t, dIdx, store.firstIndex(filepath.Join(root, "repo")))

	assert.Equal(t, 4, st.FileNodes)
	assert.Equal(t, 3, st.DirNodes)
	assert.Equal(t, 1, st.RepoNodes)

	repo := mustNode(t, store, filepath.Join(root, "repo"))
	assert.Equal(t, graph.NodeTypeRepo, repo.Type)
	assert.Empty(t, repo.Parent)
	assert.Equal(t, "About repo/.", repo.Short)

	sub := mustNode(t, store, filepath.Join(d, "sub"))
	assert.Equal(t, graph.NodeTypeDir, sub.Type)
	assert.Equal(t, d, sub.Parent)
}

func TestRun_IdempotentRerun(t *testing.T) {
	root := writeTree(t, map[string]string{
		"svc-a/main.py":     "import requests\nrequests.get(\"http://x/users\")\n",
		"svc-b/routes.py":   routesPy,
		"svc-b/pkg/util.py": "def helper():\n    pass\n",
	})
	store := graph.NewMemStore()
	p := newTestPipeline(t, Config{Root: root}, store, &countingEmbedder{})
	ctx := context.Background()

	_, err := p.Run(ctx)
	require.NoError(t, err)
	first, err := store.Count(ctx)
	require.NoError(t, err)

	_, err = p.Run(ctx)
	require.NoError(t, err)
	second, err := store.Count(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// 3 files, svc-b/pkg, svc-a, svc-b.
	assert.Equal(t, 6, second)

	recs, err := store.Get(ctx, nil)
	require.NoError(t, err)
	seen := make(map[string]bool)
	for _, r := range recs {
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
	}
}

// ---------------------------------------------------------------------------
// Skips and batching
// ---------------------------------------------------------------------------

func TestPass1_SkipsUnknownAndBrokenFiles(t *testing.T) {
	root := writeTree(t, map[string]string{
		"repo/app.py":        "print('ok')\n",
		"repo/README.md":     "# readme\n",
		"repo/data.bin":      "\x00\x01",
		"repo/broken.py":     "def broken(:\n",
		"repo/docs/guide.md": "guide\n",
	})
	store := graph.NewMemStore()
	p := newTestPipeline(t, Config{Root: root}, store, &countingEmbedder{})
	ctx := context.Background()

	st, err := p.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 5, st.FilesSeen)
	assert.Equal(t, 4, st.FilesSkipped)
	assert.Equal(t, 1, st.FileNodes)
	assert.Equal(t, 1, st.DirsSkipped, "docs has no persisted children")

	for _, rel := range []string{"repo/README.md", "repo/data.bin", "repo/broken.py", "repo/docs"} {
		rec, err := store.GetByID(ctx, filepath.Join(root, filepath.FromSlash(rel)))
		require.NoError(t, err)
		assert.Nil(t, rec, rel)
	}

	app := mustNode(t, store, filepath.Join(root, "repo", "app.py"))
	assert.Equal(t, graph.RoleEntrypoint, app.Role)
	assert.Equal(t, graph.LangPython, app.Fact.Language)
}

func TestRun_BlankDescriptionsKeepForest(t *testing.T) {
	root := writeTree(t, map[string]string{
		"repo/main.py":     "print('ok')\n",
		"repo/pkg/util.py": "def helper():\n    pass\n",
	})
	store := graph.NewMemStore()
	parser := graph.NewTreeSitterParser()
	t.Cleanup(func() { parser.Close() })
	blank := llm.GeneratorFunc(func(context.Context, string) (string, error) { return "", nil })
	p, err := New(Config{Root: root}, parser, store, blank, &countingEmbedder{})
	require.NoError(t, err)
	ctx := context.Background()

	st, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.DirsSkipped)
	assert.Equal(t, 1, st.DirNodes)
	assert.Equal(t, 1, st.RepoNodes)

	util := mustNode(t, store, filepath.Join(root, "repo", "pkg", "util.py"))
	assert.Equal(t, "util.py", util.Short)
	pkg := mustNode(t, store, filepath.Join(root, "repo", "pkg"))
	assert.Equal(t, "pkg", pkg.Short)

	recs, err := store.Get(ctx, nil)
	require.NoError(t, err)
	for _, rec := range recs {
		n := graph.NodeFromRecord(rec)
		if n.Type == graph.NodeTypeRepo {
			continue
		}
		parent, err := store.GetByID(ctx, n.Parent)
		require.NoError(t, err)
		assert.NotNil(t, parent, "%s has no parent node", n.ID)
	}
}

func TestPass2_ListsUndescribedChildrenByName(t *testing.T) {
	root := writeTree(t, map[string]string{"repo/pkg/a.py": "a = 1\n"})
	store := graph.NewMemStore()
	p := newTestPipeline(t, Config{Root: root}, store, &countingEmbedder{})
	ctx := context.Background()

	pkg := filepath.Join(root, "repo", "pkg")
	file := graph.Node{ID: filepath.Join(pkg, "a.py"), Type: graph.NodeTypeFile, Parent: pkg, Fact: &graph.FileFact{Language: graph.LangPython}}
	require.NoError(t, store.Upsert(ctx, file.Record()))

	var st Stats
	require.NoError(t, p.Pass2(ctx, &st))
	assert.Equal(t, 0, st.DirsSkipped)
	assert.Equal(t, "About pkg/.", mustNode(t, store, pkg).Short)
	mustNode(t, store, filepath.Join(root, "repo"))
}

func TestPass1_Batches(t *testing.T) {
	files := map[string]string{}
	for i := range 5 {
		files[fmt.Sprintf("repo/m%d.py", i)] = fmt.Sprintf("X%d = %d\n", i, i)
	}
	root := writeTree(t, files)
	emb := &countingEmbedder{}
	p := newTestPipeline(t, Config{Root: root, BatchSize: 2, Concurrency: 3}, graph.NewMemStore(), emb)

	var st Stats
	require.NoError(t, p.Pass1(context.Background(), &st))

	assert.Equal(t, 3, st.Batches)
	assert.Equal(t, 5, st.FileNodes)
	assert.Equal(t, []int{2, 2, 1}, emb.batches)
}

func TestRun_EmbedderFailureAborts(t *testing.T) {
	root := writeTree(t, map[string]string{"repo/a.py": "a = 1\n"})
	boom := errors.New("embedder down")
	store := graph.NewMemStore()
	p := newTestPipeline(t, Config{Root: root}, store, &countingEmbedder{err: boom})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{}, nil, nil, nil, nil)
	assert.Error(t, err)

	_, err = New(Config{Root: filepath.Join(t.TempDir(), "missing")}, nil, nil, nil, nil)
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// HTTP scenarios
// ---------------------------------------------------------------------------

func TestRun_CrossRepoHTTPLink(t *testing.T) {
	root := writeTree(t, map[string]string{
		"svc-a/main.py":   "import requests\n\nrequests.get(\"http://x/users\")\n",
		"svc-b/routes.py": routesPy,
	})
	store := graph.NewMemStore()
	p := newTestPipeline(t, Config{Root: root}, store, &countingEmbedder{})
	ctx := context.Background()

	st, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Relinked)

	caller := mustNode(t, store, filepath.Join(root, "svc-a", "main.py"))
	target := filepath.Join(root, "svc-b", "routes.py")
	assert.Equal(t, []graph.RepoHTTPMatch{{TargetFile: target, URL: "http://x/users"}}, caller.RepoHTTP)

	routes := mustNode(t, store, target)
	require.Len(t, routes.Fact.Routes, 1)
	assert.Equal(t, "list_users", routes.Fact.Routes[0].FunctionName)
	assert.Empty(t, routes.RepoHTTP)

	// A second link pass finds nothing new.
	var again Stats
	require.NoError(t, p.LinkHTTP(ctx, &again))
	assert.Zero(t, again.Relinked)
}

func TestRun_EnvURLRecordedButUnmatched(t *testing.T) {
	root := writeTree(t, map[string]string{
		"svc-a/client.py": "import os\nimport requests\n\nrequests.get(os.getenv(\"API_URL\"))\n",
		"svc-b/routes.py": routesPy,
	})
	store := graph.NewMemStore()
	p := newTestPipeline(t, Config{Root: root}, store, &countingEmbedder{})

	st, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.Relinked)

	client := mustNode(t, store, filepath.Join(root, "svc-a", "client.py"))
	require.Len(t, client.Fact.HTTPCalls, 1)
	assert.Equal(t, "ENV:API_URL", client.Fact.HTTPCalls[0].URL)
	assert.Empty(t, client.RepoHTTP)
}

func TestRun_EmitsProgress(t *testing.T) {
	root := writeTree(t, map[string]string{"repo/a.py": "a = 1\n"})
	pr := NewProgressReporter()
	p := newTestPipeline(t, Config{Root: root, Progress: pr}, graph.NewMemStore(), &countingEmbedder{})

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	pr.Close()

	phases := map[Phase]bool{}
	for ev := range pr.Subscribe() {
		if ev.Status == ProgressComplete {
			phases[ev.Phase] = true
		}
	}
	assert.Equal(t, map[Phase]bool{PhaseFiles: true, PhaseLink: true, PhaseDirs: true}, phases)
}
