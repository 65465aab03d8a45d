// Package llm defines the text-generation and embedding capabilities the
// pipeline consumes, with hosted and local implementations selected by
// configuration.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidJSON is returned when a model reply cannot be decoded as the
// requested JSON shape.
var ErrInvalidJSON = errors.New("llm: invalid JSON from model")

// TextGenerator turns a prompt into text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder turns texts into vectors, one per input, order-preserving.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// GeneratorFunc adapts a function to TextGenerator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// EmbedderFunc adapts a function to Embedder.
type EmbedderFunc func(ctx context.Context, texts []string) ([][]float32, error)

func (f EmbedderFunc) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

// PermanentError marks a provider failure that retrying cannot fix, such as
// a rejected API key or a malformed request.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// checkVectors verifies an embedder returned one vector per text.
func checkVectors(name string, vecs [][]float32, want int) error {
	if len(vecs) != want {
		return fmt.Errorf("%s: embedding count mismatch (got %d want %d)", name, len(vecs), want)
	}
	return nil
}
