// Package httphost provides interceptor primitives backed by net/http.
//
// Request decodes JSON responses into Response.Data and falls back to the
// raw body as a string. Upload streams a multipart body built from
// FilePath, Name and FormData. Download writes the body to FilePath, or to
// a temporary file when none is given. Success fires for every HTTP
// status; Fail only when no response was received.
package httphost
