package config

import "time"

// Config is the root configuration structure.
type Config struct {
	// Production forces the production environment when set to true. It is
	// the file form of the explicit production flag; leave unset to let
	// signal detection decide.
	Production *bool `yaml:"production,omitempty"`

	// Profiles is the static per-environment table.
	Profiles ProfilesConfig `yaml:"profiles"`

	// Storage selects where manual environment and overrides persist.
	Storage StorageConfig `yaml:"storage"`

	// Signals names where platform and channel signals come from.
	Signals SignalsConfig `yaml:"signals"`

	// Interceptor configures request rewriting and client registration.
	Interceptor InterceptorConfig `yaml:"interceptor"`

	// Rewriter configures the response media heuristics.
	Rewriter RewriterConfig `yaml:"rewriter"`

	// Telemetry contains logging, metrics, and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProfilesConfig holds one profile per environment.
type ProfilesConfig struct {
	Development ProfileConfig `yaml:"development"`
	Testing     ProfileConfig `yaml:"testing"`
	Production  ProfileConfig `yaml:"production"`
}

// ProfileConfig is the static configuration of one environment.
type ProfileConfig struct {
	// BaseURL is the absolute API base, e.g. "http://192.168.1.10:8080/nodejsn73cv/".
	BaseURL string `yaml:"base_url"`

	// APIRoot is the path suffix of BaseURL identifying the API.
	APIRoot string `yaml:"api_root"`

	// Description is shown in the resolution summary.
	Description string `yaml:"description"`
}

// StorageConfig configures persistence of the manual environment and overrides.
type StorageConfig struct {
	// Backend is "memory", "sqlite" (pure Go) or "sqlite3" (cgo).
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// Path is the database file for the sqlite backends.
	// Default: "data/envroute.db"
	Path string `yaml:"path"`

	// BusyTimeout is how long SQLite waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// SignalsConfig names the process environment variables read as host signals.
type SignalsConfig struct {
	// PlatformVar holds the platform id. Default: "MINIAPP_PLATFORM"
	PlatformVar string `yaml:"platform_var"`

	// EnvironmentVar holds the host environment id. Default: "MINIAPP_ENVIRONMENT"
	EnvironmentVar string `yaml:"environment_var"`

	// ChannelVar holds the release channel. Default: "MINIAPP_CHANNEL"
	ChannelVar string `yaml:"channel_var"`

	// DotenvFiles are loaded before signals and env overrides are read.
	// Missing files are skipped. Default: [".env"]
	DotenvFiles []string `yaml:"dotenv_files"`
}

// InterceptorConfig configures the request interceptor.
type InterceptorConfig struct {
	// PollAttempts bounds the client slot polling shim. A negative value
	// disables polling.
	// Default: 10
	PollAttempts int `yaml:"poll_attempts"`

	// PollInterval is the delay between polls. The scheduler works in whole
	// seconds, so values under 1s are rejected.
	// Default: 1s
	PollInterval time.Duration `yaml:"poll_interval"`

	// RequestIDHeader is set on outgoing requests that don't carry one.
	// Default: "X-Request-ID"
	RequestIDHeader string `yaml:"request_id_header"`

	// HTTPTimeout is the timeout of the built-in HTTP host.
	// Default: 30s
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

// RewriterConfig configures which response fields are treated as media URLs.
// Empty lists use the built-in defaults.
type RewriterConfig struct {
	KeySuffixes     []string `yaml:"key_suffixes"`
	ImageExtensions []string `yaml:"image_extensions"`
	UploadSegments  []string `yaml:"upload_segments"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	AddSource bool `yaml:"add_source"`

	// Redact masks URL credentials and tokens in log output.
	// Default: true
	Redact *bool `yaml:"redact,omitempty"`

	// RedactPatterns are additional patterns to mask.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are recorded.
	// Default: true
	Enabled *bool `yaml:"enabled,omitempty"`

	// Namespace is the metric namespace. Default: "envroute"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem. Default: "client"
	Subsystem string `yaml:"subsystem"`
}

// IsEnabled reports whether metrics are enabled.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled installs an OTLP exporter. When false, spans go to whatever
	// global tracer provider the host application configured.
	Enabled bool `yaml:"enabled"`

	// Sampler is "always", "never" or "ratio". Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio is used by the "ratio" sampler. Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	Timeout time.Duration `yaml:"timeout"`

	// ServiceName is the reported service name. Default: "envroute"
	ServiceName string `yaml:"service_name"`
}

// RedactEnabled reports whether log redaction is enabled.
func (l LoggingConfig) RedactEnabled() bool {
	return l.Redact == nil || *l.Redact
}
