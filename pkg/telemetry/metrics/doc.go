// Package metrics provides Prometheus metrics for the request normalization layer.
//
// # Metrics
//
//   - environment_resolutions_total{env,forced}
//   - placeholder_warnings_total{env}
//   - override_changes_total{key,op}
//   - requests_rewritten_total{primitive}
//   - install_failures_total{primitive}
//   - media_fields_rewritten_total
//   - rewrite_failures_total{stage}
//
// # Usage
//
//	collector := metrics.NewCollector(metrics.Config{Enabled: true}, nil)
//	collector.RecordRequestRewrite("request")
//
//	http.Handle("/metrics", collector.Handler())
//
// A nil *Collector is valid and records nothing.
package metrics
