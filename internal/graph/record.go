package graph

import (
	"encoding/json"
	"path/filepath"
	"slices"
)

// Metadata keys of a stored record.
const (
	MetaType           = "type"
	MetaPath           = "path"
	MetaParent         = "parent"
	MetaShort          = "short"
	MetaRole           = "role"
	MetaLanguage       = "language"
	MetaImports        = "imports"
	MetaSymbolsDefined = "symbols_defined"
	MetaSymbolsUsed    = "symbols_used"
	MetaHTTPCalls      = "http_calls"
	MetaRoutes         = "routes"
	MetaRepoHTTP       = "repo_http"
)

// MetadataKeys lists every key a record may carry, in column order.
var MetadataKeys = []string{
	MetaType, MetaPath, MetaParent, MetaShort, MetaRole, MetaLanguage,
	MetaImports, MetaSymbolsDefined, MetaSymbolsUsed, MetaHTTPCalls, MetaRoutes, MetaRepoHTTP,
}

// IsMetadataKey reports whether key belongs to the record schema.
func IsMetadataKey(key string) bool {
	return slices.Contains(MetadataKeys, key)
}

// RoleFor classifies a file path against the entrypoint filename set.
func RoleFor(path string, entrypoints []string) Role {
	if slices.Contains(entrypoints, filepath.Base(path)) {
		return RoleEntrypoint
	}
	return RoleModule
}

// Record converts n to its stored shape. The detailed description is the
// document; list-valued file facts are JSON-encoded strings.
func (n Node) Record() Record {
	md := map[string]string{
		MetaType:  string(n.Type),
		MetaPath:  n.ID,
		MetaShort: n.Short,
	}
	if n.Parent != "" {
		md[MetaParent] = n.Parent
	}
	if n.Type == NodeTypeFile {
		md[MetaRole] = string(n.Role)
		fact := n.Fact
		if fact == nil {
			fact = &FileFact{Language: LangUnknown}
		}
		md[MetaLanguage] = string(fact.Language)
		md[MetaImports] = encodeList(fact.Imports)
		md[MetaSymbolsDefined] = encodeList(fact.SymbolsDefined)
		md[MetaSymbolsUsed] = encodeList(fact.SymbolsUsed)
		md[MetaHTTPCalls] = encodeList(fact.HTTPCalls)
		md[MetaRoutes] = encodeList(fact.Routes)
		md[MetaRepoHTTP] = encodeList(n.RepoHTTP)
	}
	return Record{
		ID:        n.ID,
		Document:  n.Detailed,
		Embedding: n.Embedding,
		Metadata:  md,
	}
}

// NodeFromRecord decodes a stored record. Malformed list fields decode as
// empty lists.
func NodeFromRecord(rec Record) Node {
	md := rec.Metadata
	n := Node{
		ID:        rec.ID,
		Type:      NodeType(md[MetaType]),
		Parent:    md[MetaParent],
		Short:     md[MetaShort],
		Detailed:  rec.Document,
		Embedding: rec.Embedding,
	}
	if n.Type != NodeTypeFile {
		return n
	}
	n.Role = Role(md[MetaRole])
	n.Fact = &FileFact{
		Language:       Language(md[MetaLanguage]),
		Imports:        decodeList[string](md[MetaImports]),
		SymbolsDefined: decodeList[string](md[MetaSymbolsDefined]),
		SymbolsUsed:    decodeList[string](md[MetaSymbolsUsed]),
		HTTPCalls:      decodeList[HTTPCall](md[MetaHTTPCalls]),
		Routes:         decodeList[Route](md[MetaRoutes]),
	}
	n.RepoHTTP = decodeList[RepoHTTPMatch](md[MetaRepoHTTP])
	return n
}

func encodeList[T any](items []T) string {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeList[T any](s string) []T {
	if s == "" {
		return []T{}
	}
	var out []T
	if err := json.Unmarshal([]byte(s), &out); err != nil || out == nil {
		return []T{}
	}
	return out
}
