package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Config configures the metrics collector.
type Config struct {
	// Enabled turns recording on. A disabled collector accepts every call and
	// records nothing.
	Enabled bool

	// Namespace is the metric namespace (default "envroute").
	Namespace string

	// Subsystem is the metric subsystem (default "client").
	Subsystem string
}

// Collector records Prometheus metrics for environment resolution, request
// rewriting and response media rewriting.
//
// All methods are safe on a nil *Collector, so components can take an
// optional collector without nil checks at every call site.
type Collector struct {
	config   Config
	registry *prometheus.Registry

	resolutions         *prometheus.CounterVec
	placeholderWarnings *prometheus.CounterVec
	overrideChanges     *prometheus.CounterVec
	requestsRewritten   *prometheus.CounterVec
	installFailures     *prometheus.CounterVec
	mediaFields         prometheus.Counter
	rewriteFailures     *prometheus.CounterVec
}

// NewCollector creates a collector and registers its metrics with registry.
// If registry is nil, a new registry is created.
//
// Example:
//
//	collector := metrics.NewCollector(metrics.Config{Enabled: true}, nil)
//	collector.RecordRequestRewrite("request")
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "envroute"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "client"
	}

	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}

	c := &Collector{
		config:   cfg,
		registry: registry,

		resolutions: counterVec("environment_resolutions_total",
			"Environment resolutions by resulting environment and whether it was forced",
			"env", "forced"),
		placeholderWarnings: counterVec("placeholder_warnings_total",
			"Resolutions that returned an unconfigured placeholder base URL",
			"env"),
		overrideChanges: counterVec("override_changes_total",
			"Persisted override mutations by key and operation",
			"key", "op"),
		requestsRewritten: counterVec("requests_rewritten_total",
			"Outgoing requests whose URL was normalized, by primitive",
			"primitive"),
		installFailures: counterVec("install_failures_total",
			"Primitives that could not be wrapped during install",
			"primitive"),
		mediaFields: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "media_fields_rewritten_total",
			Help:      "Response fields rewritten to absolute media URLs",
		}),
		rewriteFailures: counterVec("rewrite_failures_total",
			"Response rewrites that failed and delivered the original payload",
			"stage"),
	}

	registry.MustRegister(
		c.resolutions,
		c.placeholderWarnings,
		c.overrideChanges,
		c.requestsRewritten,
		c.installFailures,
		c.mediaFields,
		c.rewriteFailures,
	)

	return c
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

// Registry returns the Prometheus registry backing this collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordResolution records one environment resolution.
func (c *Collector) RecordResolution(env string, forced bool) {
	if !c.enabled() {
		return
	}
	f := "false"
	if forced {
		f = "true"
	}
	c.resolutions.WithLabelValues(env, f).Inc()
}

// RecordPlaceholderWarning records a resolution that hit a placeholder base URL.
func (c *Collector) RecordPlaceholderWarning(env string) {
	if !c.enabled() {
		return
	}
	c.placeholderWarnings.WithLabelValues(env).Inc()
}

// RecordOverrideChange records a set or clear of a persisted key.
func (c *Collector) RecordOverrideChange(key, op string) {
	if !c.enabled() {
		return
	}
	c.overrideChanges.WithLabelValues(key, op).Inc()
}

// RecordRequestRewrite records an outgoing request passing through the interceptor.
func (c *Collector) RecordRequestRewrite(primitive string) {
	if !c.enabled() {
		return
	}
	c.requestsRewritten.WithLabelValues(primitive).Inc()
}

// RecordInstallFailure records a primitive that failed to install.
func (c *Collector) RecordInstallFailure(primitive string) {
	if !c.enabled() {
		return
	}
	c.installFailures.WithLabelValues(primitive).Inc()
}

// RecordMediaFields adds n rewritten response fields.
func (c *Collector) RecordMediaFields(n int) {
	if !c.enabled() || n <= 0 {
		return
	}
	c.mediaFields.Add(float64(n))
}

// RecordRewriteFailure records a failed response rewrite.
func (c *Collector) RecordRewriteFailure(stage string) {
	if !c.enabled() {
		return
	}
	c.rewriteFailures.WithLabelValues(stage).Inc()
}
