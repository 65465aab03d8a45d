//go:build !cgo

package graph

import "errors"

// ErrKuzuUnavailable is returned when the binary was built without cgo.
var ErrKuzuUnavailable = errors.New("kuzu: store requires a cgo build")

// KuzuStore is unavailable without cgo.
type KuzuStore struct{ MemStore }

// NewKuzuStore always fails in non-cgo builds.
func NewKuzuStore() (*KuzuStore, error) { return nil, ErrKuzuUnavailable }

// NewKuzuFileStore always fails in non-cgo builds.
func NewKuzuFileStore(string) (*KuzuStore, error) { return nil, ErrKuzuUnavailable }
