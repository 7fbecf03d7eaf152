package storage

import "fmt"

// NewStore resolves a persistence backend by configuration name. The memory
// backend keeps checkpoints and run records for the process lifetime only;
// the sqlite backend persists them across processes and requires a build
// with -tags sqlite.
func NewStore(kind, sqlitePath string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(sqlitePath)
	default:
		return nil, fmt.Errorf("unsupported store backend %q: want memory or sqlite", kind)
	}
}

// CloseIfSupported releases backends holding external resources. The memory
// backend has nothing to close.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
