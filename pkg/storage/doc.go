// Package storage provides persistence backends for client-side overrides.
//
// # Overview
//
// The storage package defines a small key/value capability used to persist
// the manual environment flag and the per-environment base URL overrides.
// It provides several implementations:
//
//   - Memory: in-process map, no persistence (default)
//   - SQLite: file-based persistence via modernc.org/sqlite (pure Go)
//   - SQLite3: file-based persistence via github.com/mattn/go-sqlite3 (cgo)
//
// Backends are wrapped by Store, which never surfaces errors to callers.
// Failed reads are treated as absent values and failed writes are logged.
// Store also keeps an in-memory cache, so a value written in this process
// stays readable even when the backend is unavailable.
//
// # Usage
//
//	backend, err := storage.NewSQLiteBackend("data/overrides.db")
//	if err != nil {
//	    return err
//	}
//	store := storage.NewStore(backend, logger)
//	defer store.Close()
//
//	store.Set(ctx, storage.KeyTestingBaseURL, "http://192.168.1.10:8080/app/")
//	value, ok := store.Get(ctx, storage.KeyTestingBaseURL)
//
// # Thread Safety
//
// All backends and Store are safe for concurrent use.
package storage
