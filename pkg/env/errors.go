package env

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEnvironment is returned for unrecognized environment names.
	ErrInvalidEnvironment = errors.New("invalid environment name")

	// ErrNotOverridable is returned when a base URL override targets development.
	ErrNotOverridable = errors.New("only testing and production accept base URL overrides")

	// ErrInvalidBaseURL is returned when an override URL is empty after sanitizing.
	ErrInvalidBaseURL = errors.New("invalid base URL")
)

// EnvironmentError reports a rejected environment name.
type EnvironmentError struct {
	// Name is the value supplied by the caller.
	Name string

	// Err is ErrInvalidEnvironment or ErrNotOverridable.
	Err error
}

// Error implements the error interface.
func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("environment %q: %v", e.Name, e.Err)
}

// Unwrap returns the underlying sentinel error.
func (e *EnvironmentError) Unwrap() error {
	return e.Err
}

// BaseURLError reports a rejected override URL.
type BaseURLError struct {
	// Raw is the value supplied by the caller.
	Raw string
}

// Error implements the error interface.
func (e *BaseURLError) Error() string {
	return fmt.Sprintf("%v: %q", ErrInvalidBaseURL, e.Raw)
}

// Unwrap returns ErrInvalidBaseURL.
func (e *BaseURLError) Unwrap() error {
	return ErrInvalidBaseURL
}
