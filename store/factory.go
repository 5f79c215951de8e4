package store

import "fmt"

// New creates a Store based on the backend name.
//
// Supported backends:
//
//	"sqlite" - SQLite database file at path (default)
//	"memory" - In-memory (ephemeral, for testing and dry runs)
func New(backend, path string) (Store, error) {
	switch backend {
	case "sqlite", "":
		return NewSqliteStore(path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: sqlite, memory)", backend)
	}
}
