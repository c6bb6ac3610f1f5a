package env

import (
	"context"

	"nodejsn73cv/envroute/pkg/signals"
	"nodejsn73cv/envroute/pkg/storage"
	"nodejsn73cv/envroute/pkg/urlnorm"
)

// Overrides are the raw persisted base URL overrides.
type Overrides struct {
	TestingBaseURL    string `json:"testing_base_url,omitempty" yaml:"testing_base_url,omitempty"`
	ProductionBaseURL string `json:"production_base_url,omitempty" yaml:"production_base_url,omitempty"`
}

// Snapshot is a read-only view of the resolution inputs and outcome.
type Snapshot struct {
	Env       Name      `json:"env" yaml:"env"`
	ManualEnv Name      `json:"manual_env,omitempty" yaml:"manual_env,omitempty"`
	Channel   string    `json:"channel,omitempty" yaml:"channel,omitempty"`
	Platform  string    `json:"platform,omitempty" yaml:"platform,omitempty"`
	Overrides Overrides `json:"overrides" yaml:"overrides"`
}

// RuntimeSnapshot reports the resolved environment and the stored values
// behind it. It never writes and never logs the one-time summary.
func (m *Manager) RuntimeSnapshot(ctx context.Context, explicitProduction *bool) Snapshot {
	in := m.resolver.Inputs(ctx, explicitProduction)

	snap := Snapshot{
		Env:       Decide(in),
		ManualEnv: in.Manual,
	}
	if in.Channel.Present {
		snap.Channel = in.Channel.Value.ChannelID
	}
	if in.Platform.Present {
		snap.Platform = in.Platform.Value.PlatformID
	}
	snap.Overrides.TestingBaseURL, _ = m.store.Get(ctx, storage.KeyTestingBaseURL)
	snap.Overrides.ProductionBaseURL, _ = m.store.Get(ctx, storage.KeyProductionBaseURL)
	return snap
}

// Diagnosis is the result of Diagnose.
type Diagnosis struct {
	Config   ResolvedConfig `json:"config" yaml:"config"`
	Snapshot Snapshot       `json:"snapshot" yaml:"snapshot"`
	Warnings []string       `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// ImageDownload is true when remote images must be downloaded before
	// display because the base URL is plain http.
	ImageDownload bool `json:"image_download" yaml:"image_download"`
}

// OK reports whether no problems were found.
func (d Diagnosis) OK() bool {
	return len(d.Warnings) == 0
}

// Diagnose checks the resolved configuration for common device setup
// mistakes: a loopback base on a physical device, a remote base inside
// developer tools, and unreplaced placeholder hosts.
func (m *Manager) Diagnose(ctx context.Context, explicitProduction *bool) Diagnosis {
	cfg := m.EnvConfig(ctx, explicitProduction)
	snap := m.RuntimeSnapshot(ctx, explicitProduction)
	d := Diagnosis{Config: cfg, Snapshot: snap}

	onDevice := snap.Platform != "" && snap.Platform != signals.PlatformDevtools
	loopback := urlnorm.IsLoopback(cfg.BaseURL)

	switch {
	case onDevice && loopback:
		d.Warnings = append(d.Warnings,
			"device is using a loopback base URL; point testing at the computer's LAN address")
	case snap.Platform == signals.PlatformDevtools && !loopback:
		d.Warnings = append(d.Warnings,
			"developer tools are using a non-loopback base URL; make sure the server is reachable")
	}
	if cfg.Env.Overridable() && (cfg.BaseURL == "" || urlnorm.HasPlaceholder(cfg.BaseURL)) {
		d.Warnings = append(d.Warnings, "base URL for "+cfg.Env.String()+" still contains a placeholder host")
	}
	d.ImageDownload = urlnorm.NeedsImageDownload(cfg.BaseURL)

	for _, w := range d.Warnings {
		m.logger.Warn("environment check", "issue", w, "env", cfg.Env, "base_url", cfg.BaseURL)
	}
	return d
}
