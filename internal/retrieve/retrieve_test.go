package retrieve

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/repomap/internal/graph"
	"github.com/dusk-indust/repomap/internal/llm"
)

// recordingGen records prompts and answers with a fixed prefix plus the
// call number.
type recordingGen struct {
	mu      sync.Mutex
	prompts []string
}

func (g *recordingGen) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return "  generated  ", nil
}

// axisEmbedder maps texts mentioning "payment" to one axis and everything
// else to another.
var axisEmbedder = llm.EmbedderFunc(func(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if strings.Contains(strings.ToLower(t), "payment") {
			out[i] = []float32{1, 0}
		} else {
			out[i] = []float32{0, 1}
		}
	}
	return out, nil
})

func seed(t *testing.T) graph.Store {
	t.Helper()
	store := graph.NewMemStore()
	nodes := []graph.Node{
		{ID: "/scan/shop", Type: graph.NodeTypeRepo, Short: "Online shop backend.", Detailed: "Shop.", Embedding: []float32{0, 1}},
		{ID: "/scan/shop/api", Type: graph.NodeTypeDir, Parent: "/scan/shop", Short: "HTTP handlers.", Detailed: "Handlers.", Embedding: []float32{0, 1}},
		{ID: "/scan/shop/api/v1", Type: graph.NodeTypeDir, Parent: "/scan/shop/api", Short: "Version one routes.", Detailed: "V1.", Embedding: []float32{0, 1}},
		{ID: "/scan/shop/billing", Type: graph.NodeTypeDir, Parent: "/scan/shop", Short: "Payment processing.", Detailed: "Payment processing with stripe.", Embedding: []float32{1, 0}},
		{ID: "/scan/shop/main.py", Type: graph.NodeTypeFile, Parent: "/scan/shop", Role: graph.RoleEntrypoint, Short: "Starts the server.", Detailed: "Starts the server.", Embedding: []float32{0, 1}, Fact: &graph.FileFact{Language: graph.LangPython}},
		{ID: "/scan/shop/billing/pay.py", Type: graph.NodeTypeFile, Parent: "/scan/shop/billing", Role: graph.RoleModule, Short: "Charges cards.", Detailed: "Charges payment cards.", Embedding: []float32{0.9, 0.1}, Fact: &graph.FileFact{Language: graph.LangPython}},
		{ID: "/scan/shopfront/app.py", Type: graph.NodeTypeFile, Parent: "/scan/shopfront", Role: graph.RoleEntrypoint, Short: "Other repo.", Detailed: "Other.", Embedding: []float32{0, 1}, Fact: &graph.FileFact{Language: graph.LangPython}},
	}
	for _, n := range nodes {
		require.NoError(t, store.Upsert(context.Background(), n.Record()))
	}
	return store
}

func TestRetrieve_RanksBySimilarity(t *testing.T) {
	r := &Retriever{Store: seed(t), Embedder: axisEmbedder, K: 2}

	res, err := r.Retrieve(context.Background(), "where are payments handled?", nil)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "/scan/shop/billing", res[0].Path)
	assert.Equal(t, graph.NodeTypeDir, res[0].Type)
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)
	assert.Equal(t, "/scan/shop/billing/pay.py", res[1].Path)
	assert.Equal(t, "Charges payment cards.", res[1].Document)
}

func TestRetrieve_WithFilter(t *testing.T) {
	r := &Retriever{Store: seed(t), Embedder: axisEmbedder, K: 10}

	res, err := r.Retrieve(context.Background(), "payment", graph.OfType(graph.NodeTypeFile))
	require.NoError(t, err)
	require.Len(t, res, 3)
	for _, h := range res {
		assert.Equal(t, graph.NodeTypeFile, h.Type)
	}
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	r := &Retriever{Store: seed(t), Embedder: axisEmbedder}
	_, err := r.Retrieve(context.Background(), "  ", nil)
	assert.Error(t, err)
}

func TestAnswer(t *testing.T) {
	gen := &recordingGen{}
	r := &Retriever{Store: seed(t), Embedder: axisEmbedder, Gen: gen, K: 1}

	answer, res, err := r.Answer(context.Background(), "How are payments processed?")
	require.NoError(t, err)
	assert.Equal(t, "generated", answer)
	require.Len(t, res, 1)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "[dir] /scan/shop/billing\nPayment processing with stripe.")
	assert.Contains(t, gen.prompts[0], "QUESTION: How are payments processed?")
}

func TestAnswer_GeneratorError(t *testing.T) {
	boom := errors.New("boom")
	gen := llm.GeneratorFunc(func(context.Context, string) (string, error) { return "", boom })
	r := &Retriever{Store: seed(t), Embedder: axisEmbedder, Gen: gen}

	_, _, err := r.Answer(context.Background(), "anything")
	assert.ErrorIs(t, err, boom)
}

func TestBuildRepoContext(t *testing.T) {
	gen := &recordingGen{}
	r := &Retriever{Store: seed(t), Embedder: axisEmbedder, Gen: gen}

	rc, err := r.BuildRepoContext(context.Background(), "/scan/shop")
	require.NoError(t, err)

	assert.Equal(t, "Online shop backend.", rc.Short)
	assert.Equal(t, "generated", rc.DirOverview)
	assert.Equal(t, []PathShort{{Path: "/scan/shop/main.py", Short: "Starts the server."}}, rc.Entrypoints,
		"entrypoints of sibling repos with a shared prefix are excluded")

	require.Len(t, gen.prompts, 1)
	p := gen.prompts[0]
	api := strings.Index(p, "- /scan/shop/api: HTTP handlers.")
	billing := strings.Index(p, "- /scan/shop/billing: Payment processing.")
	v1 := strings.Index(p, "- /scan/shop/api/v1: Version one routes.")
	require.True(t, api >= 0 && billing >= 0 && v1 >= 0, p)
	assert.Less(t, api, billing)
	assert.Less(t, billing, v1, "shallower directories first")
}

func TestBuildRepoContext_UnknownRepo(t *testing.T) {
	gen := &recordingGen{}
	r := &Retriever{Store: seed(t), Embedder: axisEmbedder, Gen: gen}

	rc, err := r.BuildRepoContext(context.Background(), "/scan/missing")
	require.NoError(t, err)
	assert.Equal(t, defaultRepoShort, rc.Short)
	assert.Empty(t, rc.DirOverview)
	assert.Empty(t, rc.Entrypoints)
	assert.Empty(t, gen.prompts, "nothing to compress")
}

func TestRepoSummary(t *testing.T) {
	gen := &recordingGen{}
	r := &Retriever{Store: seed(t), Embedder: axisEmbedder, Gen: gen}

	out, err := r.RepoSummary(context.Background(), "/scan/shop")
	require.NoError(t, err)
	assert.Equal(t, "generated", out)
	require.Len(t, gen.prompts, 2)
	assert.Contains(t, gen.prompts[1], "Online shop backend.")
	assert.Contains(t, gen.prompts[1], "- /scan/shop/main.py: Starts the server.")
	assert.Contains(t, gen.prompts[1], "README-style summary")
}

func TestSystemOverview(t *testing.T) {
	gen := &recordingGen{}
	r := &Retriever{Store: seed(t), Embedder: axisEmbedder, Gen: gen}

	out, err := r.SystemOverview(context.Background(), []string{"/scan/shop", "/scan/shopfront"})
	require.NoError(t, err)
	assert.Equal(t, "generated", out)

	// shop: compress + capsule; shopfront: capsule only; then the overview.
	require.Len(t, gen.prompts, 4)
	last := gen.prompts[3]
	assert.Contains(t, last, "REPOSITORY: /scan/shop\n")
	assert.Contains(t, last, "REPOSITORY: /scan/shopfront\n")

	_, err = r.SystemOverview(context.Background(), nil)
	assert.Error(t, err)
}
