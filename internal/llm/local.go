package llm

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"unicode"

	"github.com/zeebo/xxh3"
)

// DefaultHashDim is the vector size of HashEmbedder when unset.
const DefaultHashDim = 256

// HashEmbedder is an offline embedder using signed feature hashing over
// lowercase word tokens. Vectors are L2-normalized.
type HashEmbedder struct {
	Dim int
}

// Embed hashes every text independently.
func (h HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	dim := h.Dim
	if dim <= 0 {
		dim = DefaultHashDim
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t, dim)
	}
	return out, nil
}

func hashVector(text string, dim int) []float32 {
	vec := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	for _, w := range words {
		sum := xxh3.HashString(w)
		idx := int(sum % uint64(dim))
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// OfflineGenerator answers description prompts without a model: the short
// description is the first meaningful line of the prompt body and the
// detailed one is a bounded excerpt. Prompts built by this package carry
// their body after BodyMarker.
type OfflineGenerator struct{}

// Generate returns a JSON description derived from the prompt body.
func (OfflineGenerator) Generate(_ context.Context, prompt string) (string, error) {
	body := prompt
	if i := strings.LastIndex(prompt, BodyMarker); i >= 0 {
		body = prompt[i+len(BodyMarker):]
	}
	var lines []string
	for _, l := range strings.Split(body, "\n") {
		l = strings.Trim(strings.TrimSpace(l), "-#/*\"' ")
		if l != "" {
			lines = append(lines, l)
		}
	}
	short := "Empty."
	if len(lines) > 0 {
		short = truncate(lines[0], 120)
	}
	detailed := truncate(strings.Join(lines, " "), 600)
	if detailed == "" {
		detailed = short
	}
	b, err := json.Marshal(map[string]string{"short": short, "detailed": detailed})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
