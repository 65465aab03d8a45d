package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// BodyMarker separates prompt instructions from the material to describe.
const BodyMarker = "\nINPUT:\n"

// DefaultMaxFileBytes bounds the file content placed in one prompt.
const DefaultMaxFileBytes = 48 << 10

// Description is the two-level summary stored on every node.
type Description struct {
	Short    string `json:"short"`
	Detailed string `json:"detailed"`
}

const filePrompt = `You are a senior software engineer analyzing a source code file.

Return STRICT JSON with the following fields:
- "short": exactly ONE sentence describing the file's purpose at a high level
- "detailed": a clear, structured explanation of what the file does (max 150 words)

Rules:
- Do NOT repeat the code.
- Do NOT include markdown.
- Do NOT include information not inferable from the code.
- The "short" field must be suitable for architecture-level summaries.

FILE: %s
` + BodyMarker + "%s\n"

const dirPrompt = `You are analyzing a source code directory.

Based on the following brief descriptions of its contents, return STRICT JSON:
- "short": one sentence describing the directory's overall purpose
- "detailed": a clear architectural explanation of the directory's role (max 120 words)

Rules:
- Do NOT repeat the inputs verbatim.
- Do NOT invent functionality.
- Do NOT include markdown.

DIRECTORY: %s
` + BodyMarker + "%s\n"

// Describer produces node descriptions through a TextGenerator.
type Describer struct {
	Gen          TextGenerator
	MaxFileBytes int
}

// DescribeFile describes one source file from its content. A reply that is
// not JSON falls back to its first sentence and full text; an empty reply
// falls back to the file name.
func (d Describer) DescribeFile(ctx context.Context, path string, content []byte) (Description, error) {
	limit := d.MaxFileBytes
	if limit <= 0 {
		limit = DefaultMaxFileBytes
	}
	content = truncateUTF8(content, limit)
	reply, err := d.Gen.Generate(ctx, fmt.Sprintf(filePrompt, filepath.Base(path), content))
	if err != nil {
		return Description{}, fmt.Errorf("describe file %s: %w", path, err)
	}
	desc, err := ParseDescription(reply)
	if err != nil {
		text := strings.TrimSpace(reply)
		desc = Description{Short: firstSentence(text), Detailed: text}
	}
	return withFallback(desc, filepath.Base(path)), nil
}

// DescribeDir summarizes a directory from its children's short
// descriptions. A reply that is not JSON falls back to the first child's
// description and the full text.
func (d Describer) DescribeDir(ctx context.Context, dir string, childShorts []string) (Description, error) {
	var body strings.Builder
	for _, s := range childShorts {
		body.WriteString("- ")
		body.WriteString(s)
		body.WriteString("\n")
	}
	reply, err := d.Gen.Generate(ctx, fmt.Sprintf(dirPrompt, filepath.Base(dir), body.String()))
	if err != nil {
		return Description{}, fmt.Errorf("describe dir %s: %w", dir, err)
	}
	desc, err := ParseDescription(reply)
	if err != nil {
		first := ""
		if len(childShorts) > 0 {
			first = childShorts[0]
		}
		desc = Description{Short: first, Detailed: strings.TrimSpace(reply)}
	}
	return withFallback(desc, filepath.Base(dir)), nil
}

// withFallback fills an empty short or detailed text so every stored node
// has a description its parent can summarize.
func withFallback(desc Description, name string) Description {
	if desc.Short == "" {
		desc.Short = name
	}
	if desc.Detailed == "" {
		desc.Detailed = desc.Short
	}
	return desc
}

// truncateUTF8 cuts b to at most limit bytes without splitting a rune.
func truncateUTF8(b []byte, limit int) []byte {
	if len(b) <= limit {
		return b
	}
	for limit > 0 && !utf8.RuneStart(b[limit]) {
		limit--
	}
	return b[:limit]
}

// ParseDescription decodes a {"short","detailed"} reply, unwrapping
// Markdown code fences. An empty detailed text falls back to short.
func ParseDescription(reply string) (Description, error) {
	raw := unwrapFence(reply)
	if i, j := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); i >= 0 && j > i {
		raw = raw[i : j+1]
	}
	var d Description
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return Description{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	d.Short = strings.TrimSpace(d.Short)
	d.Detailed = strings.TrimSpace(d.Detailed)
	if d.Short == "" && d.Detailed == "" {
		return Description{}, ErrInvalidJSON
	}
	if d.Detailed == "" {
		d.Detailed = d.Short
	}
	if d.Short == "" {
		d.Short = firstSentence(d.Detailed)
	}
	return d, nil
}

// unwrapFence strips a surrounding ``` or ```json fence.
func unwrapFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// firstSentence returns text up to and including the first period.
func firstSentence(text string) string {
	if text == "" {
		return ""
	}
	if i := strings.IndexByte(text, '.'); i >= 0 {
		return strings.TrimSpace(text[:i+1])
	}
	return text + "."
}
