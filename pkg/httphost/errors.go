package httphost

import (
	"fmt"

	"nodejsn73cv/envroute/pkg/interceptor"
)

// RequestError is passed to a Fail callback when a call could not produce a
// response.
type RequestError struct {
	// Primitive is the host entry point that failed.
	Primitive interceptor.Primitive

	// URL is the resolved request URL.
	URL string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Primitive, e.URL, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *RequestError) Unwrap() error {
	return e.Cause
}
