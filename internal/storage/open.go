package storage

import (
	"fmt"
	"path/filepath"
)

// Backend kinds accepted by OpenBackend.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// OpenBackend builds the backend named by kind. For "file" path is a
// directory; for "sqlite" it is a database file, or a directory in which
// documents.db is created.
func OpenBackend(kind, path string, compress bool) (Backend, error) {
	switch kind {
	case BackendMemory:
		return NewMemoryBackend(), nil
	case BackendFile, "":
		return NewFileBackend(path, compress)
	case BackendSQLite:
		if path != ":memory:" && filepath.Ext(path) == "" {
			path = filepath.Join(path, "documents.db")
		}
		return NewSQLiteBackend(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}
