package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"nodejsn73cv/envroute/pkg/cli"
	"nodejsn73cv/envroute/pkg/config"
	"nodejsn73cv/envroute/pkg/telemetry/health"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var httpAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reload environment profiles when the config file changes",
		Long: `Watch the config file and swap the environment profiles on every change,
printing the newly resolved configuration. A file that fails to load or
validate is reported and the previous profiles stay in effect.

With --http-addr the Prometheus metrics are served on /metrics, and
liveness and readiness (storage and environment checks) on /healthz and
/readyz. Stops on SIGINT or SIGTERM.

Examples:
  envroute watch --config envroute.yaml
  envroute watch --config envroute.yaml --http-addr 127.0.0.1:9464`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.configPath == "" {
				return cli.NewUsageError("--config", "watch needs a config file")
			}
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := cli.SignalContext(cmd.Context())
			defer stop()

			if httpAddr != "" {
				srv, err := a.serveOps(httpAddr)
				if err != nil {
					return err
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
			}

			rc := a.manager.EnvConfig(ctx, a.production)
			if err := a.print(cmd, rc, resolvedFields(rc)); err != nil {
				return err
			}

			w, err := config.NewWatcher(opts.configPath, 0, a.logger)
			if err != nil {
				return err
			}
			defer w.Stop()

			return w.Watch(ctx, func(cfg *config.Config) error {
				registry, err := cfg.Registry()
				if err != nil {
					return fmt.Errorf("invalid profiles: %w", err)
				}
				a.manager.SetRegistry(registry)
				rc := a.manager.EnvConfig(ctx, a.production)
				return a.print(cmd, rc, resolvedFields(rc))
			})
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "serve /metrics, /healthz and /readyz on this address")
	return cmd
}

// serveOps starts an HTTP server exposing metrics and health checks.
func (a *app) serveOps(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	a.healthChecker().Mount(mux)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", "error", err)
		}
	}()
	a.logger.Info("serving metrics and health checks", "addr", ln.Addr().String())
	return srv, nil
}

// healthChecker checks that storage answers and that the resolved
// environment has no setup problems.
func (a *app) healthChecker() *health.Checker {
	checker := health.New(2 * time.Second)
	checker.Register("storage", a.store.Ping)
	checker.Register("environment", func(ctx context.Context) error {
		d := a.manager.Diagnose(ctx, a.production)
		if !d.OK() {
			return errors.New(strings.Join(d.Warnings, "; "))
		}
		return nil
	})
	return checker
}
