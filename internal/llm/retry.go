package llm

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy retries transient provider failures with exponential backoff
// starting at Base (300ms when zero). Permanent errors and context
// cancellation stop immediately.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
	Logger   *slog.Logger
}

func (p RetryPolicy) do(ctx context.Context, op string, fn func() error) error {
	attempts := max(p.Attempts, 1)
	base := p.Base
	if base <= 0 {
		base = 300 * time.Millisecond
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil || IsPermanent(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		wait := base * time.Duration(1<<attempt)
		logger.Debug("llm.retry", "op", op, "attempt", attempt+1, "wait", wait, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}

// RetryGenerator wraps a TextGenerator with a RetryPolicy.
type RetryGenerator struct {
	Next   TextGenerator
	Policy RetryPolicy
}

func (r RetryGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var out string
	err := r.Policy.do(ctx, "generate", func() error {
		var err error
		out, err = r.Next.Generate(ctx, prompt)
		return err
	})
	return out, err
}

// RetryEmbedder wraps an Embedder with a RetryPolicy.
type RetryEmbedder struct {
	Next   Embedder
	Policy RetryPolicy
}

func (r RetryEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := r.Policy.do(ctx, "embed", func() error {
		var err error
		out, err = r.Next.Embed(ctx, texts)
		return err
	})
	return out, err
}
