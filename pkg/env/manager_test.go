package env

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"nodejsn73cv/envroute/pkg/signals"
	"nodejsn73cv/envroute/pkg/storage"
	"nodejsn73cv/envroute/pkg/telemetry/metrics"
)

func newTestManager(t *testing.T, src signals.Source) (*Manager, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := NewManager(Options{
		Store:   storage.NewStore(storage.NewMemoryBackend(), logger),
		Signals: src,
		Logger:  logger,
	})
	return m, &buf
}

func deviceSignals() *signals.Static {
	return &signals.Static{PlatformInfo: signals.Platform{PlatformID: "ios"}}
}

func TestManager_EnvConfigDefaults(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	cfg := m.EnvConfig(ctx, nil)
	if cfg.Env != Development {
		t.Fatalf("Env = %q, want %q", cfg.Env, Development)
	}
	if cfg.BaseURL != "http://localhost:8080/nodejsn73cv/" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.APIRoot != "nodejsn73cv/" {
		t.Errorf("APIRoot = %q", cfg.APIRoot)
	}
	if cfg.Forced || cfg.OverrideApplied {
		t.Errorf("Forced = %v, OverrideApplied = %v, want both false", cfg.Forced, cfg.OverrideApplied)
	}

	if got := m.BaseURL(ctx, boolPtr(true)); got != "https://your-domain.com/nodejsn73cv/" {
		t.Errorf("BaseURL(production) = %q", got)
	}
	if got := m.APIRoot(ctx, boolPtr(true)); got != "nodejsn73cv/" {
		t.Errorf("APIRoot(production) = %q", got)
	}
}

func TestManager_OverrideRoundTrip(t *testing.T) {
	m, _ := newTestManager(t, deviceSignals())
	ctx := context.Background()

	stored, err := m.SetEnvironmentBaseURL(ctx, "testing", "192.168.1.10:8080//app")
	if err != nil {
		t.Fatalf("SetEnvironmentBaseURL() error = %v", err)
	}
	if stored != "http://192.168.1.10:8080/app/" {
		t.Errorf("stored = %q, want %q", stored, "http://192.168.1.10:8080/app/")
	}

	cfg := m.EnvConfig(ctx, nil)
	if cfg.Env != Testing || cfg.BaseURL != stored || !cfg.OverrideApplied {
		t.Errorf("EnvConfig() = %+v, want testing with override %q", cfg, stored)
	}
	if cfg.APIRoot != "nodejsn73cv/" {
		t.Errorf("APIRoot changed by override: %q", cfg.APIRoot)
	}

	m.ClearEnvironmentBaseURL(ctx, "test")
	cfg = m.EnvConfig(ctx, nil)
	if cfg.BaseURL != "http://YOUR_LOCAL_IP:8080/nodejsn73cv/" || cfg.OverrideApplied {
		t.Errorf("after clear EnvConfig() = %+v, want static testing profile", cfg)
	}
	if snap := m.RuntimeSnapshot(ctx, nil); snap.Overrides.TestingBaseURL != "" {
		t.Errorf("override residue after clear: %q", snap.Overrides.TestingBaseURL)
	}
}

func TestManager_ProductionOverride(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	if _, err := m.SetEnvironmentBaseURL(ctx, "release", "https://api.example.com/nodejsn73cv"); err != nil {
		t.Fatalf("SetEnvironmentBaseURL() error = %v", err)
	}
	if got := m.BaseURL(ctx, boolPtr(true)); got != "https://api.example.com/nodejsn73cv/" {
		t.Errorf("BaseURL(production) = %q", got)
	}
	// Development ignores overrides entirely.
	if got := m.BaseURL(ctx, nil); got != "http://localhost:8080/nodejsn73cv/" {
		t.Errorf("BaseURL(development) = %q", got)
	}
}

func TestManager_ManualEnvironmentForcesProduction(t *testing.T) {
	m, _ := newTestManager(t, deviceSignals())
	ctx := context.Background()

	name, err := m.SetManualEnvironment(ctx, "PROD")
	if err != nil {
		t.Fatalf("SetManualEnvironment() error = %v", err)
	}
	if name != Production {
		t.Errorf("SetManualEnvironment() = %q, want %q", name, Production)
	}

	for i := 0; i < 3; i++ {
		if got := m.Resolve(ctx, boolPtr(false)); got != Production {
			t.Fatalf("Resolve(false) = %q, want %q", got, Production)
		}
	}
	if cfg := m.EnvConfig(ctx, nil); !cfg.Forced {
		t.Error("Forced = false with a manual environment set")
	}

	m.ClearManualEnvironment(ctx)
	if got := m.Resolve(ctx, nil); got != Testing {
		t.Errorf("Resolve() after clear = %q, want %q", got, Testing)
	}
}

func TestManager_SetterErrors(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	_, err := m.SetManualEnvironment(ctx, "staging")
	if !errors.Is(err, ErrInvalidEnvironment) {
		t.Errorf("SetManualEnvironment(staging) error = %v, want ErrInvalidEnvironment", err)
	}
	var envErr *EnvironmentError
	if !errors.As(err, &envErr) || envErr.Name != "staging" {
		t.Errorf("error = %#v, want *EnvironmentError for staging", err)
	}

	if _, err := m.SetEnvironmentBaseURL(ctx, "dev", "http://10.0.0.1/"); !errors.Is(err, ErrNotOverridable) {
		t.Errorf("SetEnvironmentBaseURL(dev) error = %v, want ErrNotOverridable", err)
	}
	if _, err := m.SetEnvironmentBaseURL(ctx, "nope", "http://10.0.0.1/"); !errors.Is(err, ErrInvalidEnvironment) {
		t.Errorf("SetEnvironmentBaseURL(nope) error = %v, want ErrInvalidEnvironment", err)
	}
	_, err = m.SetEnvironmentBaseURL(ctx, "testing", "   ")
	var urlErr *BaseURLError
	if !errors.Is(err, ErrInvalidBaseURL) || !errors.As(err, &urlErr) {
		t.Errorf("SetEnvironmentBaseURL(blank) error = %v, want *BaseURLError", err)
	}

	// Clearing development or an unknown name is silently ignored.
	m.ClearEnvironmentBaseURL(ctx, "development")
	m.ClearEnvironmentBaseURL(ctx, "bogus")
}

func TestManager_SummaryLoggedOncePerMutation(t *testing.T) {
	m, buf := newTestManager(t, nil)
	ctx := context.Background()

	count := func() int { return strings.Count(buf.String(), "environment resolved") }

	m.EnvConfig(ctx, nil)
	m.EnvConfig(ctx, nil)
	if got := count(); got != 1 {
		t.Fatalf("summary logged %d times, want 1", got)
	}

	if _, err := m.SetManualEnvironment(ctx, "dev"); err != nil {
		t.Fatal(err)
	}
	m.EnvConfig(ctx, nil)
	m.EnvConfig(ctx, nil)
	if got := count(); got != 2 {
		t.Errorf("summary logged %d times after mutation, want 2", got)
	}
}

func TestManager_PlaceholderWarnedEveryCall(t *testing.T) {
	m, buf := newTestManager(t, deviceSignals())
	ctx := context.Background()

	cfg := m.EnvConfig(ctx, nil)
	m.EnvConfig(ctx, nil)

	if cfg.BaseURL != "http://YOUR_LOCAL_IP:8080/nodejsn73cv/" {
		t.Errorf("placeholder URL not returned: %q", cfg.BaseURL)
	}
	if got := strings.Count(buf.String(), "base URL is not configured"); got != 2 {
		t.Errorf("placeholder warning logged %d times, want 2", got)
	}
}

func TestManager_ForceTestingAndClearAll(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	stored, err := m.ForceTesting(ctx, "192.168.0.7")
	if err != nil {
		t.Fatalf("ForceTesting() error = %v", err)
	}
	if stored != "http://192.168.0.7:8080/nodejsn73cv/" {
		t.Errorf("ForceTesting() = %q", stored)
	}

	snap := m.RuntimeSnapshot(ctx, nil)
	if snap.Env != Testing || snap.ManualEnv != Testing {
		t.Errorf("snapshot = %+v, want forced testing", snap)
	}
	if snap.Overrides.TestingBaseURL != stored {
		t.Errorf("snapshot testing override = %q, want %q", snap.Overrides.TestingBaseURL, stored)
	}

	m.ClearAll(ctx)
	snap = m.RuntimeSnapshot(ctx, nil)
	if snap.Env != Development || snap.ManualEnv != "" || snap.Overrides != (Overrides{}) {
		t.Errorf("snapshot after ClearAll = %+v, want empty development", snap)
	}
}

func TestManager_Diagnose(t *testing.T) {
	ctx := context.Background()

	t.Run("loopback on device", func(t *testing.T) {
		m, _ := newTestManager(t, deviceSignals())
		if _, err := m.SetEnvironmentBaseURL(ctx, "testing", "http://127.0.0.1:8080/nodejsn73cv/"); err != nil {
			t.Fatal(err)
		}
		d := m.Diagnose(ctx, nil)
		if d.OK() {
			t.Fatal("Diagnose() reported no issues for loopback on device")
		}
		if !strings.Contains(d.Warnings[0], "loopback") {
			t.Errorf("warning = %q", d.Warnings[0])
		}
		if !d.ImageDownload {
			t.Error("ImageDownload = false for plain http base")
		}
	})

	t.Run("devtools on localhost", func(t *testing.T) {
		src := &signals.Static{PlatformInfo: signals.Platform{PlatformID: "devtools"}}
		m, _ := newTestManager(t, src)
		if d := m.Diagnose(ctx, nil); !d.OK() {
			t.Errorf("Diagnose() warnings = %v, want none", d.Warnings)
		}
	})

	t.Run("placeholder production", func(t *testing.T) {
		m, _ := newTestManager(t, nil)
		d := m.Diagnose(ctx, boolPtr(true))
		if d.OK() {
			t.Fatal("Diagnose() reported no issues for placeholder production URL")
		}
		if d.ImageDownload {
			t.Error("ImageDownload = true for https base")
		}
	})
}

func TestManager_SetRegistry(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	r, err := NewRegistry(Profile{Name: "dev", BaseURL: "http://localhost:9090/api/", APIRoot: "api/"})
	if err != nil {
		t.Fatal(err)
	}
	m.SetRegistry(r)
	m.SetRegistry(nil)

	if got := m.BaseURL(ctx, nil); got != "http://localhost:9090/api/" {
		t.Errorf("BaseURL() = %q after registry swap", got)
	}
	// Missing profiles fall back to development.
	if got := m.BaseURL(ctx, boolPtr(true)); got != "http://localhost:9090/api/" {
		t.Errorf("BaseURL(production) = %q, want development fallback", got)
	}
}

func TestManager_Metrics(t *testing.T) {
	c := metrics.NewCollector(metrics.Config{Enabled: true}, prometheus.NewRegistry())
	m := NewManager(Options{Metrics: c, Logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))})
	ctx := context.Background()

	m.EnvConfig(ctx, boolPtr(true))
	if _, err := m.SetEnvironmentBaseURL(ctx, "testing", "10.0.0.2"); err != nil {
		t.Fatal(err)
	}

	expected := `
# HELP envroute_client_placeholder_warnings_total Resolutions that returned an unconfigured placeholder base URL
# TYPE envroute_client_placeholder_warnings_total counter
envroute_client_placeholder_warnings_total{env="production"} 1
# HELP envroute_client_override_changes_total Persisted override mutations by key and operation
# TYPE envroute_client_override_changes_total counter
envroute_client_override_changes_total{key="__MP_TESTING_BASE_URL__",op="set"} 1
`
	err := testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected),
		"envroute_client_placeholder_warnings_total",
		"envroute_client_override_changes_total",
	)
	if err != nil {
		t.Error(err)
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()

	if got := r.Lookup("debug").Name; got != Testing {
		t.Errorf("Lookup(debug) = %q, want %q", got, Testing)
	}
	if got := r.Lookup("unknown").Name; got != Development {
		t.Errorf("Lookup(unknown) = %q, want %q", got, Development)
	}
	if got := len(r.Profiles()); got != 3 {
		t.Fatalf("Profiles() len = %d, want 3", got)
	}
	if r.Profiles()[2].Name != Production {
		t.Errorf("Profiles() not ordered: %v", r.Profiles())
	}

	if _, err := NewRegistry(Profile{Name: Testing}); err == nil {
		t.Error("NewRegistry() without development succeeded")
	}
	if _, err := NewRegistry(Profile{Name: Development}, Profile{Name: "dev"}); err == nil {
		t.Error("NewRegistry() with duplicate succeeded")
	}
	if _, err := NewRegistry(Profile{Name: "qa"}); !errors.Is(err, ErrInvalidEnvironment) {
		t.Errorf("NewRegistry(qa) error = %v, want ErrInvalidEnvironment", err)
	}
}
