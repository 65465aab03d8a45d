package graph

import (
	"context"
	"errors"
	"io"
	"math"
)

// ErrUnknownFilterKey is returned by column-backed stores for filter keys
// outside the fixed metadata schema.
var ErrUnknownFilterKey = errors.New("unknown filter key")

// Store is the id-keyed node store. Implementations: MemStore (tests and
// ephemeral runs), SQLiteStore (default persistent), KuzuStore (cgo builds).
// All node persistence goes through this interface.
type Store interface {
	io.Closer

	// Schema setup, called once before any data is written.
	InitSchema(ctx context.Context) error

	// Upsert inserts or overwrites the record with rec.ID.
	Upsert(ctx context.Context, rec Record) error

	// Get returns every record matching where (nil matches all), ordered by id.
	Get(ctx context.Context, where Filter) ([]Record, error)

	// GetByID returns the record with the given id, or nil if absent.
	GetByID(ctx context.Context, id string) (*Record, error)

	// QueryByEmbedding ranks records matching where by cosine similarity to
	// vec and returns at most topK hits, best first.
	QueryByEmbedding(ctx context.Context, vec []float32, topK int, where Filter) ([]Hit, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}

// Record is the stored shape of a Node.
type Record struct {
	ID        string
	Document  string
	Embedding []float32
	Metadata  map[string]string
}

// Hit is a ranked QueryByEmbedding result.
type Hit struct {
	Record
	Score float64
}

// --- Filters ---

// Filter selects records by metadata. Eq, And and Or are the only variants.
type Filter interface {
	Match(md map[string]string) bool
}

// Eq matches records whose metadata Key equals Value. A missing key matches
// the empty string.
type Eq struct {
	Key   string
	Value string
}

func (f Eq) Match(md map[string]string) bool { return md[f.Key] == f.Value }

// And matches when every sub-filter matches.
type And []Filter

func (f And) Match(md map[string]string) bool {
	for _, sub := range f {
		if sub != nil && !sub.Match(md) {
			return false
		}
	}
	return true
}

// Or matches when any sub-filter matches. An empty Or matches nothing.
type Or []Filter

func (f Or) Match(md map[string]string) bool {
	for _, sub := range f {
		if sub == nil || sub.Match(md) {
			return true
		}
	}
	return false
}

// matches applies a possibly-nil filter.
func matches(where Filter, md map[string]string) bool {
	return where == nil || where.Match(md)
}

// ChildrenOf selects the file and dir nodes whose parent is dir.
func ChildrenOf(dir string) Filter {
	return And{
		Eq{Key: MetaParent, Value: dir},
		Or{Eq{Key: MetaType, Value: string(NodeTypeFile)}, Eq{Key: MetaType, Value: string(NodeTypeDir)}},
	}
}

// OfType selects nodes of the given type.
func OfType(t NodeType) Filter {
	return Eq{Key: MetaType, Value: string(t)}
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// the lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
