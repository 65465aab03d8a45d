package graph

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedLanguage is returned for languages without a grammar.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrParse marks a file whose syntax tree contains errors.
	ErrParse = errors.New("parse error")
)

// Parser extracts static facts from source files.
// Implementations: TreeSitterParser (production), stub parsers in tests.
type Parser interface {
	// Parse extracts a FileFact from a single source file. path must be
	// absolute; it anchors import resolution and call/route locations.
	Parse(ctx context.Context, path string, source []byte, lang Language) (*FileFact, error)

	// SupportedLanguages returns the languages this parser can handle.
	SupportedLanguages() []Language

	// Close releases parser resources.
	Close() error
}

var extLanguages = map[string]Language{
	".py":   LangPython,
	".c":    LangC,
	".h":    LangC,
	".cpp":  LangCPP,
	".cc":   LangCPP,
	".cxx":  LangCPP,
	".hpp":  LangCPP,
	".hh":   LangCPP,
	".java": LangJava,
}

// DetectLanguage maps a file extension to its language.
func DetectLanguage(path string) Language {
	if lang, ok := extLanguages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return LangUnknown
}

// ExtractFile reads path and extracts its facts. Unknown extensions yield an
// empty fact with LangUnknown and no error.
func ExtractFile(ctx context.Context, p Parser, path string) (*FileFact, error) {
	lang := DetectLanguage(path)
	if lang == LangUnknown {
		return unknownFact(), nil
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p.Parse(ctx, path, source, lang)
}

func unknownFact() *FileFact {
	return &FileFact{
		Language:       LangUnknown,
		Imports:        []string{},
		SymbolsDefined: []string{},
		SymbolsUsed:    []string{},
		HTTPCalls:      []HTTPCall{},
		Routes:         []Route{},
	}
}
