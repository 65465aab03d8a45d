package llm

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiClient generates text and embeddings through the official genai
// client.
type GeminiClient struct {
	cli         *genai.Client
	model       string
	embedModel  string
	embedDim    int32
	temperature float32
}

// GeminiOptions configures NewGeminiClient.
type GeminiOptions struct {
	APIKey      string
	Model       string
	EmbedModel  string
	EmbedDim    int
	Temperature float32
}

// NewGeminiClient creates a client for the Gemini API. An empty APIKey
// lets genai read GEMINI_API_KEY / GOOGLE_API_KEY from the environment.
func NewGeminiClient(ctx context.Context, opts GeminiOptions) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	if opts.Model == "" {
		opts.Model = "gemini-2.0-flash"
	}
	if opts.EmbedModel == "" {
		opts.EmbedModel = "text-embedding-004"
	}
	return &GeminiClient{
		cli:         cli,
		model:       opts.Model,
		embedModel:  opts.EmbedModel,
		embedDim:    int32(opts.EmbedDim),
		temperature: opts.Temperature,
	}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }

// Generate sends prompt as a single user turn and returns the text parts of
// the first candidate.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	temp := g.temperature
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{Temperature: &temp},
	)
	if err != nil {
		return "", fmt.Errorf("gemini: generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini: generate: empty response")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}

// Embed embeds all texts in one request.
func (g *GeminiClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: t}}})
	}
	cfg := &genai.EmbedContentConfig{}
	if g.embedDim > 0 {
		dim := g.embedDim
		cfg.OutputDimensionality = &dim
	}
	resp, err := g.cli.Models.EmbedContent(ctx, g.embedModel, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: embed: %w", err)
	}
	vecs := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		if e == nil {
			vecs = append(vecs, nil)
			continue
		}
		vecs = append(vecs, e.Values)
	}
	if err := checkVectors("gemini", vecs, len(texts)); err != nil {
		return nil, err
	}
	return vecs, nil
}
