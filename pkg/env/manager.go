package env

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"nodejsn73cv/envroute/pkg/signals"
	"nodejsn73cv/envroute/pkg/storage"
	"nodejsn73cv/envroute/pkg/telemetry/metrics"
	"nodejsn73cv/envroute/pkg/urlnorm"
)

// ResolvedConfig is the per-call resolution result.
type ResolvedConfig struct {
	Env         Name   `json:"env" yaml:"env"`
	BaseURL     string `json:"base_url" yaml:"base_url"`
	APIRoot     string `json:"api_root" yaml:"api_root"`
	Description string `json:"description" yaml:"description"`

	// Forced is true when a manual environment is persisted.
	Forced bool `json:"forced" yaml:"forced"`

	// OverrideApplied is true when a persisted override replaced BaseURL.
	OverrideApplied bool `json:"override_applied" yaml:"override_applied"`
}

// Options configures a Manager.
type Options struct {
	// Registry is the profile table. Defaults to DefaultRegistry().
	Registry *Registry

	// Store persists the manual environment and overrides. Defaults to a
	// memory-only store.
	Store *storage.Store

	// Signals provides platform and channel signals. May be nil.
	Signals signals.Source

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *metrics.Collector
}

// Manager resolves environments and owns the persisted overrides.
type Manager struct {
	registry atomic.Pointer[Registry]
	store    *storage.Store
	signals  signals.Source
	resolver *Resolver
	logger   *slog.Logger
	metrics  *metrics.Collector

	// logged records that the one-time summary was emitted. Any mutation
	// re-arms it so the next resolution reports the new state.
	logMu  sync.Mutex
	logged bool
}

// NewManager creates a Manager.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("component", "env")
	if opts.Store == nil {
		opts.Store = storage.NewStore(nil, logger)
	}
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry()
	}

	m := &Manager{
		store:    opts.Store,
		signals:  opts.Signals,
		resolver: NewResolver(opts.Store, opts.Signals, logger),
		logger:   logger,
		metrics:  opts.Metrics,
	}
	m.registry.Store(opts.Registry)
	return m
}

// Registry returns the current profile registry.
func (m *Manager) Registry() *Registry {
	return m.registry.Load()
}

// SetRegistry replaces the profile registry. Used by hot reload.
func (m *Manager) SetRegistry(r *Registry) {
	if r == nil {
		return
	}
	m.registry.Store(r)
	m.rearmLog()
	m.logger.Info("environment profiles reloaded", "profiles", len(r.Profiles()))
}

// Resolve returns the current environment name.
func (m *Manager) Resolve(ctx context.Context, explicitProduction *bool) Name {
	return m.resolver.Resolve(ctx, explicitProduction)
}

// EnvConfig resolves the environment and merges any persisted override.
// The first call logs a summary. Placeholder base URLs are reported on
// every call but still returned.
func (m *Manager) EnvConfig(ctx context.Context, explicitProduction *bool) ResolvedConfig {
	in := m.resolver.Inputs(ctx, explicitProduction)
	name := Decide(in)
	profile := m.Registry().Lookup(string(name))

	cfg := ResolvedConfig{
		Env:         name,
		BaseURL:     profile.BaseURL,
		APIRoot:     profile.APIRoot,
		Description: profile.Description,
		Forced:      in.Manual != "",
	}
	if override := m.override(ctx, name); override != "" {
		cfg.BaseURL = override
		cfg.OverrideApplied = true
	}

	m.metrics.RecordResolution(string(name), cfg.Forced)
	m.logOnce(cfg, in)

	if name.Overridable() && (cfg.BaseURL == "" || urlnorm.HasPlaceholder(cfg.BaseURL)) {
		m.warnPlaceholder(cfg)
	}

	return cfg
}

// BaseURL returns the resolved base URL.
func (m *Manager) BaseURL(ctx context.Context, explicitProduction *bool) string {
	return m.EnvConfig(ctx, explicitProduction).BaseURL
}

// APIRoot returns the resolved API root.
func (m *Manager) APIRoot(ctx context.Context, explicitProduction *bool) string {
	return m.EnvConfig(ctx, explicitProduction).APIRoot
}

// SetManualEnvironment persists a manual environment that overrides signal
// detection until cleared. It returns the canonical name stored.
func (m *Manager) SetManualEnvironment(ctx context.Context, name string) (Name, error) {
	normalized, ok := Normalize(name)
	if !ok {
		return "", &EnvironmentError{Name: name, Err: ErrInvalidEnvironment}
	}
	m.store.Set(ctx, storage.KeyManualEnvironment, string(normalized))
	m.metrics.RecordOverrideChange(storage.KeyManualEnvironment, "set")
	m.rearmLog()
	m.logger.Info("manual environment set", "env", normalized)
	return normalized, nil
}

// ClearManualEnvironment removes the manual environment.
func (m *Manager) ClearManualEnvironment(ctx context.Context) {
	m.store.Remove(ctx, storage.KeyManualEnvironment)
	m.metrics.RecordOverrideChange(storage.KeyManualEnvironment, "clear")
	m.rearmLog()
	m.logger.Info("manual environment cleared")
}

// SetEnvironmentBaseURL persists a base URL override for testing or
// production and returns the sanitized value actually stored.
func (m *Manager) SetEnvironmentBaseURL(ctx context.Context, name, rawURL string) (string, error) {
	normalized, ok := Normalize(name)
	if !ok {
		return "", &EnvironmentError{Name: name, Err: ErrInvalidEnvironment}
	}
	if !normalized.Overridable() {
		return "", &EnvironmentError{Name: name, Err: ErrNotOverridable}
	}
	sanitized := urlnorm.SanitizeBaseURL(rawURL)
	if sanitized == "" {
		return "", &BaseURLError{Raw: rawURL}
	}

	key := overrideKey(normalized)
	m.store.Set(ctx, key, sanitized)
	m.metrics.RecordOverrideChange(key, "set")
	m.rearmLog()
	m.logger.Info("environment base URL updated", "env", normalized, "base_url", sanitized)
	return sanitized, nil
}

// ClearEnvironmentBaseURL removes the override for testing or production.
// Development and unknown names are ignored.
func (m *Manager) ClearEnvironmentBaseURL(ctx context.Context, name string) {
	normalized, ok := Normalize(name)
	if !ok || !normalized.Overridable() {
		return
	}
	key := overrideKey(normalized)
	m.store.Remove(ctx, key)
	m.metrics.RecordOverrideChange(key, "clear")
	m.rearmLog()
	m.logger.Info("environment base URL override cleared", "env", normalized)
}

// ClearAll removes every persisted key owned by this layer.
func (m *Manager) ClearAll(ctx context.Context) {
	for _, key := range storage.Keys() {
		m.store.Remove(ctx, key)
		m.metrics.RecordOverrideChange(key, "clear")
	}
	m.rearmLog()
	m.logger.Info("environment cache cleared")
}

// ForceTesting pins the testing environment. With a non-empty ip it also
// points testing at http://<ip>:8080/<api root>.
func (m *Manager) ForceTesting(ctx context.Context, ip string) (string, error) {
	if _, err := m.SetManualEnvironment(ctx, string(Testing)); err != nil {
		return "", err
	}
	if ip == "" {
		return "", nil
	}
	apiRoot := m.Registry().Lookup(string(Testing)).APIRoot
	return m.SetEnvironmentBaseURL(ctx, string(Testing), fmt.Sprintf("http://%s:8080/%s", ip, apiRoot))
}

// override returns the sanitized persisted override for name, or "".
func (m *Manager) override(ctx context.Context, name Name) string {
	if !name.Overridable() {
		return ""
	}
	raw, ok := m.store.Get(ctx, overrideKey(name))
	if !ok {
		return ""
	}
	return urlnorm.SanitizeBaseURL(raw)
}

func overrideKey(name Name) string {
	if name == Production {
		return storage.KeyProductionBaseURL
	}
	return storage.KeyTestingBaseURL
}

func (m *Manager) rearmLog() {
	m.logMu.Lock()
	m.logged = false
	m.logMu.Unlock()
}

func (m *Manager) logOnce(cfg ResolvedConfig, in Inputs) {
	m.logMu.Lock()
	if m.logged {
		m.logMu.Unlock()
		return
	}
	m.logged = true
	m.logMu.Unlock()

	attrs := []any{
		"env", cfg.Env,
		"forced", cfg.Forced,
		"description", cfg.Description,
		"base_url", cfg.BaseURL,
		"override_applied", cfg.OverrideApplied,
	}
	if in.Channel.Present {
		attrs = append(attrs, "channel", in.Channel.Value.ChannelID)
	}
	platform := "unknown"
	if in.Platform.Present && in.Platform.Value.PlatformID != "" {
		platform = in.Platform.Value.PlatformID
	}
	attrs = append(attrs, "platform", platform)

	m.logger.Info("environment resolved", attrs...)
}

func (m *Manager) warnPlaceholder(cfg ResolvedConfig) {
	m.metrics.RecordPlaceholderWarning(string(cfg.Env))

	hint := "set production.base_url to the release server domain"
	if cfg.Env == Testing {
		hint = `run "envroute base-url set testing 192.168.x.x:8080/` + cfg.APIRoot + `" or edit the testing profile`
	}
	m.logger.Warn("environment base URL is not configured",
		"env", cfg.Env,
		"base_url", cfg.BaseURL,
		"hint", hint,
	)
}
