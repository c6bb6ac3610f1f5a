package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Store wraps a Backend with an in-memory fallback cache.
//
// Reads prefer a non-empty backend value and fall back to the cache. Writes go
// to both. An empty value means removal. Backend failures are logged at warning
// level and never returned, so callers can treat storage as best-effort.
type Store struct {
	backend Backend
	logger  *slog.Logger

	// cache mirrors every write made through this Store.
	cache map[string]string
	mu    sync.RWMutex
}

// NewStore creates a Store over backend. A nil backend gives a cache-only store.
func NewStore(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		logger:  logger.With("component", "storage"),
		cache:   make(map[string]string),
	}
}

// Get returns the value for key and whether a non-empty value exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	if s.backend != nil {
		value, ok, err := s.safeGet(ctx, key)
		if err != nil {
			s.logger.Warn("storage read failed, using cache", "key", key, "error", err)
		} else if ok && value != "" {
			return value, true
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.cache[key]
	return value, ok && value != ""
}

// Set stores value under key. An empty value removes the key.
func (s *Store) Set(ctx context.Context, key, value string) {
	if value == "" {
		s.Remove(ctx, key)
		return
	}

	if s.backend != nil {
		if err := s.safeDo(func() error { return s.backend.Set(ctx, key, value) }); err != nil {
			s.logger.Warn("storage write failed, value kept in memory only", "key", key, "error", err)
		}
	}

	s.mu.Lock()
	s.cache[key] = value
	s.mu.Unlock()
}

// Remove deletes key from the backend and the cache.
func (s *Store) Remove(ctx context.Context, key string) {
	if s.backend != nil {
		if err := s.safeDo(func() error { return s.backend.Remove(ctx, key) }); err != nil {
			s.logger.Warn("storage remove failed", "key", key, "error", err)
		}
	}

	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()
}

// Ping reads a known key straight from the backend and reports any failure.
// A cache-only store is always reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}
	if _, _, err := s.safeGet(ctx, KeyManualEnvironment); err != nil {
		return fmt.Errorf("storage unreachable: %w", err)
	}
	return nil
}

// Close closes the underlying backend.
func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

// safeGet calls Backend.Get and converts a panic into an error.
func (s *Store) safeGet(ctx context.Context, key string) (value string, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	return s.backend.Get(ctx, key)
}

func (s *Store) safeDo(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()
	return fn()
}

// Options selects and configures a backend.
type Options struct {
	// Backend is "memory", "sqlite" or "sqlite3".
	Backend string

	// Path is the database file path for SQLite backends.
	Path string

	// BusyTimeout is the SQLite lock wait.
	BusyTimeout time.Duration
}

// Open creates the backend described by opts.
func Open(opts Options) (Backend, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemoryBackend(), nil
	case DriverSQLite, DriverSQLite3:
		return NewSQLiteBackendWithConfig(SQLiteBackendConfig{
			DBPath:      opts.Path,
			Driver:      opts.Backend,
			BusyTimeout: opts.BusyTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
