package config

import (
	"time"

	"nodejsn73cv/envroute/pkg/env"
)

// Default values for configuration fields.
const (
	// Storage defaults
	DefaultStorageBackend     = "sqlite"
	DefaultStoragePath        = "data/envroute.db"
	DefaultStorageBusyTimeout = 5 * time.Second

	// Signal defaults
	DefaultPlatformVar    = "MINIAPP_PLATFORM"
	DefaultEnvironmentVar = "MINIAPP_ENVIRONMENT"
	DefaultChannelVar     = "MINIAPP_CHANNEL"
	DefaultDotenvFile     = ".env"

	// Interceptor defaults
	DefaultPollAttempts    = 10
	DefaultPollInterval    = time.Second
	DefaultRequestIDHeader = "X-Request-ID"
	DefaultHTTPTimeout     = 30 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "text"
	DefaultMetricsNamespace   = "envroute"
	DefaultMetricsSubsystem   = "client"
	DefaultTracingSampler     = "always"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingServiceName = "envroute"
	DefaultTracingTimeout     = 10 * time.Second
)

// DefaultConfig returns a configuration with every default applied. Its
// profiles are the built-in table.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	applyProfileDefaults(cfg)

	// Storage defaults
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.BusyTimeout == 0 {
		cfg.Storage.BusyTimeout = DefaultStorageBusyTimeout
	}

	// Signal defaults
	if cfg.Signals.PlatformVar == "" {
		cfg.Signals.PlatformVar = DefaultPlatformVar
	}
	if cfg.Signals.EnvironmentVar == "" {
		cfg.Signals.EnvironmentVar = DefaultEnvironmentVar
	}
	if cfg.Signals.ChannelVar == "" {
		cfg.Signals.ChannelVar = DefaultChannelVar
	}
	if cfg.Signals.DotenvFiles == nil {
		cfg.Signals.DotenvFiles = []string{DefaultDotenvFile}
	}

	// Interceptor defaults
	if cfg.Interceptor.PollAttempts == 0 {
		cfg.Interceptor.PollAttempts = DefaultPollAttempts
	}
	if cfg.Interceptor.PollInterval == 0 {
		cfg.Interceptor.PollInterval = DefaultPollInterval
	}
	if cfg.Interceptor.RequestIDHeader == "" {
		cfg.Interceptor.RequestIDHeader = DefaultRequestIDHeader
	}
	if cfg.Interceptor.HTTPTimeout == 0 {
		cfg.Interceptor.HTTPTimeout = DefaultHTTPTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
}

// applyProfileDefaults fills empty profile fields from the built-in table.
func applyProfileDefaults(cfg *Config) {
	for _, p := range env.DefaultProfiles() {
		target := cfg.Profiles.lookup(p.Name)
		if target.BaseURL == "" {
			target.BaseURL = p.BaseURL
		}
		if target.APIRoot == "" {
			target.APIRoot = p.APIRoot
		}
		if target.Description == "" {
			target.Description = p.Description
		}
	}
}

func (p *ProfilesConfig) lookup(name env.Name) *ProfileConfig {
	switch name {
	case env.Testing:
		return &p.Testing
	case env.Production:
		return &p.Production
	default:
		return &p.Development
	}
}

// Registry builds the environment profile registry from the profiles section.
func (c *Config) Registry() (*env.Registry, error) {
	profiles := make([]env.Profile, 0, 3)
	for _, name := range env.Names() {
		p := c.Profiles.lookup(name)
		profiles = append(profiles, env.Profile{
			Name:        name,
			BaseURL:     p.BaseURL,
			APIRoot:     p.APIRoot,
			Description: p.Description,
		})
	}
	return env.NewRegistry(profiles...)
}
