package graph

import (
	"os"
	"path/filepath"
	"strings"
)

// ImportResolver turns a module reference into an absolute file path by
// searching upward from the importing file's directory. At each ancestor
// level the reference, split on Separator, is probed as a source file
// (segments + Ext) and then as a package directory holding Marker. The first
// level with a match wins and a file beats a package at the same level.
type ImportResolver struct {
	Separator string
	Ext       string
	Marker    string
}

var (
	pythonImports = ImportResolver{Separator: ".", Ext: ".py", Marker: "__init__.py"}
	cIncludes     = ImportResolver{Separator: "/"}
	javaImports   = ImportResolver{Separator: ".", Ext: ".java"}
)

// ResolverFor returns the resolver used for lang.
func ResolverFor(lang Language) (ImportResolver, bool) {
	switch lang {
	case LangPython:
		return pythonImports, true
	case LangC, LangCPP:
		return cIncludes, true
	case LangJava:
		return javaImports, true
	default:
		return ImportResolver{}, false
	}
}

// Resolve returns the absolute path module refers to from fromFile, or
// false when no ancestor level matches.
func (r ImportResolver) Resolve(fromFile, module string) (string, bool) {
	if module == "" {
		return "", false
	}
	segments := strings.Split(module, r.Separator)
	for _, seg := range segments {
		if seg == "" {
			return "", false
		}
	}

	abs, err := filepath.Abs(fromFile)
	if err != nil {
		return "", false
	}
	dir := filepath.Dir(abs)
	for {
		candidate := filepath.Join(append([]string{dir}, segments...)...)
		if isRegularFile(candidate + r.Ext) {
			return candidate + r.Ext, true
		}
		if r.Marker != "" {
			if marker := filepath.Join(candidate, r.Marker); isRegularFile(marker) {
				return marker, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// ResolveOrBare resolves module or falls back to the bare reference.
func (r ImportResolver) ResolveOrBare(fromFile, module string) string {
	if p, ok := r.Resolve(fromFile, module); ok {
		return p
	}
	return module
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
