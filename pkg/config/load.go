package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"nodejsn73cv/envroute/pkg/signals"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "ENVROUTE_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. An empty path starts from DefaultConfig.
//
// The loading sequence is:
//  1. Load YAML from file (or defaults)
//  2. Apply default values
//  3. Load .env files listed in signals.dotenv_files
//  4. Apply ENVROUTE_* environment variable overrides
//  5. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = DefaultConfig()
	} else {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	if err := signals.LoadDotenv(cfg.Signals.DotenvFiles...); err != nil {
		return nil, fmt.Errorf("failed to load dotenv files: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format ENVROUTE_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	if val, ok := lookup("PRODUCTION"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Production = &b
		}
	}

	// Profile overrides
	setString(&cfg.Profiles.Development.BaseURL, "PROFILES_DEVELOPMENT_BASE_URL")
	setString(&cfg.Profiles.Testing.BaseURL, "PROFILES_TESTING_BASE_URL")
	setString(&cfg.Profiles.Production.BaseURL, "PROFILES_PRODUCTION_BASE_URL")

	// Storage overrides
	setString(&cfg.Storage.Backend, "STORAGE_BACKEND")
	setString(&cfg.Storage.Path, "STORAGE_PATH")
	setDuration(&cfg.Storage.BusyTimeout, "STORAGE_BUSY_TIMEOUT")

	// Interceptor overrides
	if val, ok := lookup("INTERCEPTOR_POLL_ATTEMPTS"); ok {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Interceptor.PollAttempts = i
		}
	}
	setDuration(&cfg.Interceptor.PollInterval, "INTERCEPTOR_POLL_INTERVAL")
	setString(&cfg.Interceptor.RequestIDHeader, "INTERCEPTOR_REQUEST_ID_HEADER")
	setDuration(&cfg.Interceptor.HTTPTimeout, "INTERCEPTOR_HTTP_TIMEOUT")

	// Telemetry overrides
	setString(&cfg.Telemetry.Logging.Level, "TELEMETRY_LOGGING_LEVEL")
	setString(&cfg.Telemetry.Logging.Format, "TELEMETRY_LOGGING_FORMAT")
	if val, ok := lookup("TELEMETRY_METRICS_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = &b
		}
	}
	if val, ok := lookup("TELEMETRY_TRACING_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	setString(&cfg.Telemetry.Tracing.Endpoint, "TELEMETRY_TRACING_ENDPOINT")
	if val, ok := lookup("TELEMETRY_TRACING_SAMPLE_RATIO"); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func lookup(name string) (string, bool) {
	val := os.Getenv(EnvPrefix + name)
	return val, val != ""
}

func setString(dst *string, name string) {
	if val, ok := lookup(name); ok {
		*dst = val
	}
}

func setDuration(dst *time.Duration, name string) {
	if val, ok := lookup(name); ok {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
