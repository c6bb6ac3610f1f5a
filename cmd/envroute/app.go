package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"nodejsn73cv/envroute/pkg/cli"
	"nodejsn73cv/envroute/pkg/config"
	"nodejsn73cv/envroute/pkg/env"
	"nodejsn73cv/envroute/pkg/interceptor"
	"nodejsn73cv/envroute/pkg/rewrite"
	"nodejsn73cv/envroute/pkg/signals"
	"nodejsn73cv/envroute/pkg/storage"
	"nodejsn73cv/envroute/pkg/telemetry/logging"
	"nodejsn73cv/envroute/pkg/telemetry/metrics"
	"nodejsn73cv/envroute/pkg/telemetry/tracing"
)

// app is the wired component graph shared by every command.
type app struct {
	cfg        *config.Config
	format     cli.OutputFormat
	logger     *slog.Logger
	store      *storage.Store
	manager    *env.Manager
	metrics    *metrics.Collector
	tracer     *tracing.Tracer
	production *bool
}

// open loads configuration and builds the component graph. Close must be
// called when the command finishes.
func (o *rootOptions) open(cmd *cobra.Command) (*app, error) {
	format, err := cli.ParseFormat(o.output)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfigWithEnvOverrides(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(cfg.Telemetry.Logging, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	backend, err := storage.Open(storage.Options{
		Backend:     cfg.Storage.Backend,
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.Storage.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	store := storage.NewStore(backend, logger)

	registry, err := cfg.Registry()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("invalid profiles: %w", err)
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	collector := metrics.NewCollector(metrics.Config{
		Enabled:   cfg.Telemetry.Metrics.IsEnabled(),
		Namespace: cfg.Telemetry.Metrics.Namespace,
		Subsystem: cfg.Telemetry.Metrics.Subsystem,
	}, nil)

	manager := env.NewManager(env.Options{
		Registry: registry,
		Store:    store,
		Signals: signals.NewEnvSource(signals.EnvVars{
			Platform:    cfg.Signals.PlatformVar,
			Environment: cfg.Signals.EnvironmentVar,
			Channel:     cfg.Signals.ChannelVar,
		}),
		Logger:  logger,
		Metrics: collector,
	})

	production := cfg.Production
	if cmd.Flags().Changed("production") {
		p := o.production
		production = &p
	}

	logger.Debug("envroute initialized",
		"config", o.configPath,
		"storage", cfg.Storage.Backend,
		"tracing", tracer.Enabled(),
		"metrics", cfg.Telemetry.Metrics.IsEnabled(),
	)

	return &app{
		cfg:        cfg,
		format:     format,
		logger:     logger,
		store:      store,
		manager:    manager,
		metrics:    collector,
		tracer:     tracer,
		production: production,
	}, nil
}

// Close flushes spans and releases storage.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Telemetry.Tracing.Timeout)
	defer cancel()
	return errors.Join(a.tracer.Shutdown(ctx), a.store.Close())
}

// interceptor builds an Interceptor resolving against the app's manager.
func (a *app) interceptor() (*interceptor.Interceptor, error) {
	ic, err := interceptor.New(interceptor.Options{
		Resolver: a.manager,
		Rewriter: rewrite.Config{
			KeySuffixes:     a.cfg.Rewriter.KeySuffixes,
			ImageExtensions: a.cfg.Rewriter.ImageExtensions,
			UploadSegments:  a.cfg.Rewriter.UploadSegments,
		},
		RequestIDHeader: a.cfg.Interceptor.RequestIDHeader,
		PollAttempts:    a.cfg.Interceptor.PollAttempts,
		PollInterval:    a.cfg.Interceptor.PollInterval,
		Logger:          a.logger,
		Metrics:         a.metrics,
		Tracer:          a.tracer,
	})
	if err != nil {
		return nil, err
	}
	if a.production != nil {
		ic.SetProduction(a.production)
	}
	return ic, nil
}

// print writes data in the selected format. Text output uses the text
// view when one is given.
func (a *app) print(cmd *cobra.Command, data any, text cli.TextRenderer) error {
	var out any = data
	if a.format == cli.FormatText && text != nil {
		out = text
	}
	return cli.NewFormatter(a.format).FormatTo(cmd.OutOrStdout(), out)
}

// fields is an ordered list of label/value pairs rendered as aligned text.
type fields [][2]string

// RenderText implements cli.TextRenderer.
func (f fields) RenderText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, kv := range f {
		fmt.Fprintf(tw, "%s:\t%s\n", kv[0], kv[1])
	}
	return tw.Flush()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
