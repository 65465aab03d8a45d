//go:build cgo

package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuStore implements the Store interface using KuzuDB as the backend.
// It requires CGO because the go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// Compile-time check that KuzuStore satisfies Store.
var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzu(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at the
// given path. KuzuDB creates the leaf itself for new databases.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzu(dbPath)
}

func openKuzu(dbPath string) (*KuzuStore, error) {
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(dbPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// kuzuNodeDDL builds the Node table definition. The embedding is kept as a
// JSON string; similarity is computed in Go.
func kuzuNodeDDL() string {
	var b strings.Builder
	b.WriteString("CREATE NODE TABLE IF NOT EXISTS Node(id STRING, document STRING, embedding STRING")
	for _, key := range MetadataKeys {
		fmt.Fprintf(&b, ", %s STRING", metadataColumn(key))
	}
	b.WriteString(", PRIMARY KEY(id))")
	return b.String()
}

// InitSchema creates the Node table if it does not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	res, err := s.conn.Query(kuzuNodeDDL())
	if err != nil {
		return fmt.Errorf("kuzu: init schema: %w", err)
	}
	res.Close()
	return nil
}

// ---------- Write operations ----------

// Upsert merges a Node by id and overwrites every column.
func (s *KuzuStore) Upsert(_ context.Context, rec Record) error {
	params := map[string]any{
		"id":        rec.ID,
		"document":  rec.Document,
		"embedding": encodeList(rec.Embedding),
	}
	sets := []string{"n.document = $document", "n.embedding = $embedding"}
	for _, key := range MetadataKeys {
		col := metadataColumn(key)
		params[col] = rec.Metadata[key]
		sets = append(sets, fmt.Sprintf("n.%s = $%s", col, col))
	}
	assign := strings.Join(sets, ", ")
	cypher := fmt.Sprintf("MERGE (n:Node {id: $id}) ON CREATE SET %s ON MATCH SET %s", assign, assign)
	return s.exec(cypher, params)
}

// ---------- Read operations ----------

// Get returns all records matching where, ordered by id.
func (s *KuzuStore) Get(_ context.Context, where Filter) ([]Record, error) {
	wb := &whereBuilder{
		ref:   func(col string) string { return "n." + col },
		param: func(n int) string { return fmt.Sprintf("$p%d", n) },
	}
	cond, err := wb.build(where)
	if err != nil {
		return nil, err
	}
	params := make(map[string]any, len(wb.args))
	for i, v := range wb.args {
		params[fmt.Sprintf("p%d", i)] = v
	}
	rows, err := s.query(fmt.Sprintf("MATCH (n:Node) WHERE %s RETURN %s ORDER BY n.id", cond, kuzuReturnColumns()), params)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToRecord(r))
	}
	return out, nil
}

// GetByID returns the record for id, or nil if not found.
func (s *KuzuStore) GetByID(_ context.Context, id string) (*Record, error) {
	rows, err := s.query(
		fmt.Sprintf("MATCH (n:Node) WHERE n.id = $id RETURN %s", kuzuReturnColumns()),
		map[string]any{"id": id},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	rec := rowToRecord(rows[0])
	return &rec, nil
}

// QueryByEmbedding loads the matching records and ranks them in Go.
func (s *KuzuStore) QueryByEmbedding(ctx context.Context, vec []float32, topK int, where Filter) ([]Hit, error) {
	recs, err := s.Get(ctx, where)
	if err != nil {
		return nil, err
	}
	return rankByEmbedding(recs, vec, topK), nil
}

// Count returns the number of Node rows.
func (s *KuzuStore) Count(_ context.Context) (int, error) {
	rows, err := s.query("MATCH (n:Node) RETURN count(n)", nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return toInt(rows[0][0]), nil
}

// ---------- Internal helpers ----------

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a parameterized Cypher statement and collects all result rows.
// Each row is a []any slice with values in column order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// kuzuReturnColumns lists id, document, embedding, then metadata columns.
func kuzuReturnColumns() string {
	cols := []string{"n.id", "n.document", "n.embedding"}
	for _, key := range MetadataKeys {
		cols = append(cols, "n."+metadataColumn(key))
	}
	return strings.Join(cols, ", ")
}

// rowToRecord converts a row in kuzuReturnColumns order. Empty metadata
// columns are omitted from the record.
func rowToRecord(r []any) Record {
	rec := Record{
		ID:        toString(r[0]),
		Document:  toString(r[1]),
		Embedding: decodeList[float32](toString(r[2])),
		Metadata:  make(map[string]string, len(MetadataKeys)),
	}
	for i, key := range MetadataKeys {
		if v := toString(r[3+i]); v != "" {
			rec.Metadata[key] = v
		}
	}
	return rec
}

// ---------- Type coercion helpers ----------
// KuzuDB returns typed Go values (int64, float64, bool, string, nil).

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case int32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
