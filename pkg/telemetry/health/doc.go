// Package health runs readiness checks for the long-running envroute
// commands and serves them over HTTP.
//
//	checker := health.New(2 * time.Second)
//	checker.Register("storage", store.Ping)
//	checker.Mount(mux) // GET /healthz, GET /readyz
package health
