package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
// It contains detailed information about which fields failed validation.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation failed: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("validation failed with %d errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		b.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return b.String()
}

// Validate validates the entire configuration.
// It returns a ValidationError if any validation rules fail.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateProfiles(&cfg.Profiles)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateInterceptor(&cfg.Interceptor)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func validateProfiles(cfg *ProfilesConfig) []FieldError {
	var errs []FieldError

	check := func(field string, p ProfileConfig) {
		if p.BaseURL == "" {
			errs = append(errs, FieldError{Field: field + ".base_url", Message: "base URL is required"})
			return
		}
		u, err := url.Parse(p.BaseURL)
		if err != nil {
			errs = append(errs, FieldError{Field: field + ".base_url", Message: fmt.Sprintf("invalid URL: %v", err)})
			return
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, FieldError{Field: field + ".base_url", Message: fmt.Sprintf("scheme %q must be http or https", u.Scheme)})
		}
		if u.Host == "" {
			errs = append(errs, FieldError{Field: field + ".base_url", Message: "base URL must include a host"})
		}
	}

	check("profiles.development", cfg.Development)
	check("profiles.testing", cfg.Testing)
	check("profiles.production", cfg.Production)

	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite", "sqlite3":
		if cfg.Path == "" {
			errs = append(errs, FieldError{
				Field:   "storage.path",
				Message: "path is required for sqlite backends",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory', 'sqlite', or 'sqlite3'", cfg.Backend),
		})
	}

	if cfg.BusyTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "storage.busy_timeout",
			Message: "busy timeout must be non-negative",
		})
	}

	return errs
}

func validateInterceptor(cfg *InterceptorConfig) []FieldError {
	var errs []FieldError

	if cfg.PollAttempts > 0 && cfg.PollInterval < time.Second {
		errs = append(errs, FieldError{
			Field:   "interceptor.poll_interval",
			Message: "poll interval must be at least 1s",
		})
	}
	if strings.TrimSpace(cfg.RequestIDHeader) == "" {
		errs = append(errs, FieldError{
			Field:   "interceptor.request_id_header",
			Message: "request ID header is required",
		})
	}
	if cfg.HTTPTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "interceptor.http_timeout",
			Message: "HTTP timeout must be non-negative",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	// Validate logging format
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text', or 'console'", cfg.Logging.Format),
		})
	}

	for i, p := range cfg.Logging.RedactPatterns {
		if _, err := regexp.Compile(p.Pattern); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i),
				Message: fmt.Sprintf("invalid regex: %v", err),
			})
		}
	}

	// Validate tracing configuration
	switch cfg.Tracing.Sampler {
	case "always", "never", "ratio":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	return errs
}
