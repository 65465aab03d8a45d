package graph

import (
	"context"
	"fmt"
)

// Store backends selectable by configuration.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendKuzu   = "kuzu"
)

// OpenStore opens the named backend at path and initializes its schema. An
// empty backend selects sqlite.
func OpenStore(ctx context.Context, backend, path string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch backend {
	case BackendMemory:
		s = NewMemStore()
	case BackendSQLite, "":
		s, err = NewSQLiteStore(path)
	case BackendKuzu:
		s, err = NewKuzuFileStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
	if err != nil {
		return nil, err
	}
	if err := s.InitSchema(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
