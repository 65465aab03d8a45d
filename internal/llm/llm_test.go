package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Description parsing
// ---------------------------------------------------------------------------

func TestParseDescription(t *testing.T) {
	d, err := ParseDescription(`{"short": "Serves users.", "detailed": "Declares the /users routes."}`)
	require.NoError(t, err)
	assert.Equal(t, Description{Short: "Serves users.", Detailed: "Declares the /users routes."}, d)

	d, err = ParseDescription("```json\n{\"short\": \"A.\", \"detailed\": \"\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, Description{Short: "A.", Detailed: "A."}, d, "fenced reply with empty detailed")

	d, err = ParseDescription(`Sure! {"short": "", "detailed": "Parses config. Loads env."}`)
	require.NoError(t, err)
	assert.Equal(t, "Parses config.", d.Short)

	_, err = ParseDescription("not json at all")
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, err = ParseDescription(`{"other": 1}`)
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestDescriber_FileFallback(t *testing.T) {
	gen := GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		assert.Contains(t, prompt, "FILE: main.py")
		assert.Contains(t, prompt, BodyMarker+"print('hi')")
		return "This file prints a greeting. It has one statement.", nil
	})
	d, err := Describer{Gen: gen}.DescribeFile(context.Background(), "/r/svc/main.py", []byte("print('hi')"))
	require.NoError(t, err)
	assert.Equal(t, "This file prints a greeting.", d.Short)
	assert.Equal(t, "This file prints a greeting. It has one statement.", d.Detailed)
}

func TestDescriber_DirFallback(t *testing.T) {
	var got string
	gen := GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		got = prompt
		return "plain words", nil
	})
	d, err := Describer{Gen: gen}.DescribeDir(context.Background(), "/r/svc/pkg", []string{"Reads files.", "Writes files."})
	require.NoError(t, err)
	assert.Contains(t, got, "- Reads files.\n- Writes files.\n")
	assert.Equal(t, Description{Short: "Reads files.", Detailed: "plain words"}, d)
}

func TestDescriber_GeneratorError(t *testing.T) {
	boom := errors.New("boom")
	gen := GeneratorFunc(func(context.Context, string) (string, error) { return "", boom })
	_, err := Describer{Gen: gen}.DescribeFile(context.Background(), "/r/a.py", nil)
	assert.ErrorIs(t, err, boom)
}

func TestDescriber_TruncatesContent(t *testing.T) {
	var size int
	gen := GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		size = len(prompt)
		return `{"short":"x.","detailed":"y"}`, nil
	})
	_, err := Describer{Gen: gen, MaxFileBytes: 10}.DescribeFile(context.Background(), "/r/a.py", []byte(strings.Repeat("z", 1000)))
	require.NoError(t, err)
	assert.Less(t, size, 1000)
}

func TestDescriber_TruncatesOnRuneBoundary(t *testing.T) {
	var body string
	gen := GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		body = prompt[strings.Index(prompt, BodyMarker)+len(BodyMarker):]
		return `{"short":"x.","detailed":"y"}`, nil
	})
	// "é" is two bytes, so a cut at 11 falls inside the sixth rune.
	content := []byte(strings.Repeat("é", 20))
	_, err := Describer{Gen: gen, MaxFileBytes: 11}.DescribeFile(context.Background(), "/r/a.py", content)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(body))
	assert.Equal(t, strings.Repeat("é", 5)+"\n", body)
}

func TestDescriber_EmptyReplyFallsBackToName(t *testing.T) {
	gen := GeneratorFunc(func(context.Context, string) (string, error) { return "  ", nil })
	d := Describer{Gen: gen}

	file, err := d.DescribeFile(context.Background(), "/r/svc/empty.py", nil)
	require.NoError(t, err)
	assert.Equal(t, Description{Short: "empty.py", Detailed: "empty.py"}, file)

	dir, err := d.DescribeDir(context.Background(), "/r/svc/pkg", nil)
	require.NoError(t, err)
	assert.Equal(t, Description{Short: "pkg", Detailed: "pkg"}, dir)
}

// ---------------------------------------------------------------------------
// Local providers
// ---------------------------------------------------------------------------

func TestHashEmbedder(t *testing.T) {
	vecs, err := HashEmbedder{Dim: 64}.Embed(context.Background(), []string{"user service routes", "user service routes", ""})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Len(t, vecs[0], 64)
	assert.Equal(t, vecs[0], vecs[1], "deterministic")

	var norm float64
	for _, v := range vecs[0] {
		norm += float64(v * v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
	assert.Equal(t, make([]float32, 64), vecs[2])
}

func TestOfflineGenerator(t *testing.T) {
	reply, err := OfflineGenerator{}.Generate(context.Background(), "instructions"+BodyMarker+"\n# Handles payments\nimport stripe\n")
	require.NoError(t, err)
	d, err := ParseDescription(reply)
	require.NoError(t, err)
	assert.Equal(t, "Handles payments", d.Short)
	assert.Contains(t, d.Detailed, "import stripe")
}

// ---------------------------------------------------------------------------
// Cache and retry
// ---------------------------------------------------------------------------

func TestCachedGenerator(t *testing.T) {
	var calls atomic.Int32
	gen := GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		calls.Add(1)
		return "reply:" + prompt, nil
	})
	c, err := NewCachedGenerator(gen, 2)
	require.NoError(t, err)

	ctx := context.Background()
	for range 3 {
		v, err := c.Generate(ctx, "same")
		require.NoError(t, err)
		assert.Equal(t, "reply:same", v)
	}
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCachedGenerator_ErrorsNotCached(t *testing.T) {
	var calls atomic.Int32
	gen := GeneratorFunc(func(context.Context, string) (string, error) {
		calls.Add(1)
		return "", errors.New("down")
	})
	c, err := NewCachedGenerator(gen, 4)
	require.NoError(t, err)
	_, _ = c.Generate(context.Background(), "p")
	_, _ = c.Generate(context.Background(), "p")
	assert.EqualValues(t, 2, calls.Load())
}

func TestRetryGenerator(t *testing.T) {
	var calls int
	gen := GeneratorFunc(func(context.Context, string) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	r := RetryGenerator{Next: gen, Policy: RetryPolicy{Attempts: 3, Base: time.Millisecond}}
	v, err := r.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestRetryEmbedder_PermanentStops(t *testing.T) {
	var calls int
	emb := EmbedderFunc(func(context.Context, []string) ([][]float32, error) {
		calls++
		return nil, Permanent(errors.New("bad key"))
	})
	r := RetryEmbedder{Next: emb, Policy: RetryPolicy{Attempts: 5, Base: time.Millisecond}}
	_, err := r.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
}

// ---------------------------------------------------------------------------
// OpenAI-compatible client
// ---------------------------------------------------------------------------

func TestOpenAIClient_GenerateAndEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/chat/completions":
			var req chatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "m", req.Model)
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
		case "/v1/embeddings":
			_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewOpenAIClient(OpenAIOptions{BaseURL: srv.URL + "/v1", APIKey: "k", Model: "m", EmbedModel: "e"})
	ctx := context.Background()

	text, err := c.Generate(ctx, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	vecs, err := c.Embed(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs, "results ordered by index")
}

func TestOpenAIClient_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewOpenAIClient(OpenAIOptions{BaseURL: srv.URL}).Generate(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}

func TestNewTextGenerator_UnknownProvider(t *testing.T) {
	_, err := NewTextGenerator(context.Background(), Config{Provider: "nope"})
	assert.Error(t, err)
	_, err = NewEmbedder(context.Background(), Config{EmbedProvider: "nope"})
	assert.Error(t, err)
}
