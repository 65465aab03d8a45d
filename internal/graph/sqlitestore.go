package graph

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Compile-time check that SQLiteStore satisfies Store.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore persists nodes in a single SQLite table through the pure-Go
// modernc driver. Embeddings are little-endian float32 blobs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path. ":memory:" gives
// an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create parent directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases shared and serializes the
	// single writer.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InitSchema creates the nodes table if it does not exist.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS nodes (id TEXT PRIMARY KEY, document TEXT NOT NULL, embedding BLOB")
	for _, key := range MetadataKeys {
		fmt.Fprintf(&b, ", %s TEXT NOT NULL DEFAULT ''", metadataColumn(key))
	}
	b.WriteString(")")
	if _, err := s.db.ExecContext(ctx, b.String()); err != nil {
		return fmt.Errorf("sqlite: init schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS nodes_parent ON nodes("+metadataColumn(MetaParent)+")"); err != nil {
		return fmt.Errorf("sqlite: init schema: %w", err)
	}
	return nil
}

// Upsert inserts rec or overwrites every column of the existing row.
func (s *SQLiteStore) Upsert(ctx context.Context, rec Record) error {
	cols := []string{"id", "document", "embedding"}
	args := []any{rec.ID, rec.Document, encodeVector(rec.Embedding)}
	for _, key := range MetadataKeys {
		cols = append(cols, metadataColumn(key))
		args = append(args, rec.Metadata[key])
	}
	updates := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		updates = append(updates, c+" = excluded."+c)
	}
	stmt := fmt.Sprintf(
		"INSERT INTO nodes (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
		strings.Join(updates, ", "),
	)
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("sqlite: upsert %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns all records matching where, ordered by id.
func (s *SQLiteStore) Get(ctx context.Context, where Filter) ([]Record, error) {
	wb := &whereBuilder{
		ref:   func(col string) string { return col },
		param: func(int) string { return "?" },
	}
	cond, err := wb.build(where)
	if err != nil {
		return nil, err
	}
	return s.selectRecords(ctx, "WHERE "+cond+" ORDER BY id", wb.args...)
}

// GetByID returns the record for id, or nil if not found.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*Record, error) {
	recs, err := s.selectRecords(ctx, "WHERE id = ?", id)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

// QueryByEmbedding loads the matching records and ranks them in Go.
func (s *SQLiteStore) QueryByEmbedding(ctx context.Context, vec []float32, topK int, where Filter) ([]Hit, error) {
	recs, err := s.Get(ctx, where)
	if err != nil {
		return nil, err
	}
	return rankByEmbedding(recs, vec, topK), nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM nodes").Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) selectRecords(ctx context.Context, tail string, args ...any) ([]Record, error) {
	cols := []string{"id", "document", "embedding"}
	for _, key := range MetadataKeys {
		cols = append(cols, metadataColumn(key))
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+strings.Join(cols, ", ")+" FROM nodes "+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec  Record
			blob []byte
			md   = make([]string, len(MetadataKeys))
		)
		dest := []any{&rec.ID, &rec.Document, &blob}
		for i := range md {
			dest = append(dest, &md[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		rec.Embedding = decodeVector(blob)
		rec.Metadata = make(map[string]string, len(MetadataKeys))
		for i, key := range MetadataKeys {
			if md[i] != "" {
				rec.Metadata[key] = md[i]
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows: %w", err)
	}
	return out, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
