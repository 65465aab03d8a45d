package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Base URLs of the OpenAI-compatible providers.
const (
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	OpenAIBaseURL = "https://api.openai.com/v1"
)

// OpenAIClient calls an OpenAI-compatible API (Groq, OpenAI, local
// servers): chat completions for Generate and /embeddings for Embed.
type OpenAIClient struct {
	http        *http.Client
	baseURL     string
	apiKey      string
	model       string
	embedModel  string
	embedDim    int
	temperature float32
}

// OpenAIOptions configures NewOpenAIClient.
type OpenAIOptions struct {
	BaseURL     string
	APIKey      string
	Model       string
	EmbedModel  string
	EmbedDim    int
	Temperature float32
	HTTPClient  *http.Client
}

// NewOpenAIClient creates a client; BaseURL defaults to OpenAI.
func NewOpenAIClient(opts OpenAIOptions) *OpenAIClient {
	if opts.BaseURL == "" {
		opts.BaseURL = OpenAIBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &OpenAIClient{
		http:        opts.HTTPClient,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		model:       opts.Model,
		embedModel:  opts.EmbedModel,
		embedDim:    opts.EmbedDim,
		temperature: opts.Temperature,
	}
}

func (c *OpenAIClient) Name() string { return "OpenAI:" + c.baseURL + ":" + c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type embedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Generate sends prompt as a single user message.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	var out chatResponse
	err := c.post(ctx, "/chat/completions", chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
	}, &out)
	if err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai: generate: empty response")
	}
	return out.Choices[0].Message.Content, nil
}

// Embed embeds all texts in one request, ordering results by index.
func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var out embedResponse
	if err := c.post(ctx, "/embeddings", embedRequest{Model: c.embedModel, Input: texts, Dimensions: c.embedDim}, &out); err != nil {
		return nil, err
	}
	vecs := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("openai: embed: index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("openai: embedding count mismatch (got %d want %d)", len(out.Data), len(texts))
	}
	return vecs, nil
}

// post sends body as JSON and decodes the reply into out. 4xx responses
// other than 429 are permanent.
func (c *OpenAIClient) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return Permanent(fmt.Errorf("openai: encode request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return Permanent(fmt.Errorf("openai: new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("openai: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("openai: %s: unexpected status %s: %s", path, resp.Status, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return Permanent(err)
		}
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("openai: %s: decode: %w", path, err)
	}
	return nil
}
