package store

import (
	"fmt"

	"docqa/internal/port"
)

// Open creates the index store for backend at path. For the file backend
// path is a directory.
func Open(backend, path string) (port.IndexStore, error) {
	switch backend {
	case "bolt", "":
		return NewBoltStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	case "file":
		return NewFileStore(path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}
