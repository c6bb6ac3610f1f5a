package storage

import (
	"context"
	"errors"
)

// Persisted keys. These values are stable across versions because existing
// devices already carry them.
const (
	// KeyManualEnvironment holds the operator-forced environment name.
	KeyManualEnvironment = "__MP_FORCE_ENV__"

	// KeyTestingBaseURL holds the testing environment base URL override.
	KeyTestingBaseURL = "__MP_TESTING_BASE_URL__"

	// KeyProductionBaseURL holds the production environment base URL override.
	KeyProductionBaseURL = "__MP_PROD_BASE_URL__"
)

// Keys lists every key owned by this layer.
func Keys() []string {
	return []string{KeyManualEnvironment, KeyTestingBaseURL, KeyProductionBaseURL}
}

// ErrEmptyKey is returned by backends when called with an empty key.
var ErrEmptyKey = errors.New("key cannot be empty")

// Backend defines the key/value persistence capability.
// Implementations must be thread-safe.
type Backend interface {
	// Get returns the stored value and whether it exists.
	// A missing key is not an error.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. No-op if the key doesn't exist.
	Remove(ctx context.Context, key string) error

	// Close releases any resources held by the backend.
	Close() error
}
