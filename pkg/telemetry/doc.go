// Package telemetry groups the observability packages used by envroute.
//
//   - logging: slog handlers with credential redaction and request context fields
//   - metrics: Prometheus counters for resolution and rewriting
//   - tracing: OpenTelemetry spans around dispatched requests
//   - health: readiness checks served by "envroute watch"
package telemetry
