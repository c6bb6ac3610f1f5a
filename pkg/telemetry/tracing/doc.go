// Package tracing provides OpenTelemetry spans for outgoing requests.
//
// When tracing is disabled the package uses whatever global tracer provider
// the host application installed, so spans join the caller's traces at no
// cost. When enabled, New installs an OTLP gRPC exporter:
//
//	cfg := &config.TracingConfig{
//	    Enabled:  true,
//	    Endpoint: "localhost:4317",
//	    Insecure: true,
//	}
//	tracer, err := tracing.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
// Trace context is injected into outgoing requests as W3C traceparent headers.
package tracing
