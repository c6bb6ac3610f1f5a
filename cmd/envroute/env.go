package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"nodejsn73cv/envroute/pkg/cli"
	"nodejsn73cv/envroute/pkg/env"
)

func newResolveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Print the resolved environment configuration",
		Long: `Print the environment, base URL and API root requests are sent to.

Examples:
  # Resolve from signals and stored overrides
  envroute resolve

  # Resolve as a production build
  envroute resolve --production -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			rc := a.manager.EnvConfig(cmd.Context(), a.production)
			return a.print(cmd, rc, resolvedFields(rc))
		},
	}
}

func resolvedFields(rc env.ResolvedConfig) fields {
	return fields{
		{"Environment", rc.Env.String()},
		{"Base URL", orNone(rc.BaseURL)},
		{"API root", orNone(rc.APIRoot)},
		{"Description", rc.Description},
		{"Forced", fmt.Sprintf("%t", rc.Forced)},
		{"Override applied", fmt.Sprintf("%t", rc.OverrideApplied)},
	}
}

func newSnapshotCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Print the resolution inputs and stored overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			snap := a.manager.RuntimeSnapshot(cmd.Context(), a.production)
			return a.print(cmd, snap, fields{
				{"Environment", snap.Env.String()},
				{"Manual environment", orNone(snap.ManualEnv.String())},
				{"Channel", orNone(snap.Channel)},
				{"Platform", orNone(snap.Platform)},
				{"Testing override", orNone(snap.Overrides.TestingBaseURL)},
				{"Production override", orNone(snap.Overrides.ProductionBaseURL)},
			})
		},
	}
}

func newDiagnoseCmd(opts *rootOptions) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Check the environment setup for common mistakes",
		Long: `Check the resolved configuration for a loopback base URL on a physical
device, a remote base URL inside developer tools, and placeholder hosts.

Exits non-zero with --strict when a problem is found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			d := a.manager.Diagnose(cmd.Context(), a.production)
			text := append(resolvedFields(d.Config),
				[2]string{"Platform", orNone(d.Snapshot.Platform)},
				[2]string{"Channel", orNone(d.Snapshot.Channel)},
				[2]string{"Download images", fmt.Sprintf("%t", d.ImageDownload)},
			)
			for _, w := range d.Warnings {
				text = append(text, [2]string{"Warning", w})
			}
			if d.OK() {
				text = append(text, [2]string{"Status", "ok"})
			}
			if err := a.print(cmd, d, text); err != nil {
				return err
			}
			if strict && !d.OK() {
				return cli.NewCommandError("diagnose", fmt.Errorf("%d problem(s) found", len(d.Warnings)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when a problem is found")
	return cmd
}

func newEnvCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage the manual environment",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <development|testing|production>",
		Short: "Pin an environment, overriding signal detection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			name, err := a.manager.SetManualEnvironment(cmd.Context(), args[0])
			if err != nil {
				return usageFromEnv(err)
			}
			return a.print(cmd, map[string]string{"manual_env": name.String()}, nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the manual environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			a.manager.ClearManualEnvironment(cmd.Context())
			rc := a.manager.EnvConfig(cmd.Context(), a.production)
			return a.print(cmd, rc, resolvedFields(rc))
		},
	})
	return cmd
}

func newBaseURLCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "base-url",
		Short: "Manage base URL overrides for testing and production",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <testing|production> <url>",
		Short: "Persist a base URL override",
		Long: `Persist a base URL override. The URL is sanitized before it is stored:
scheme-less values get http://, whitespace and fragments are dropped and a
trailing slash is added.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			stored, err := a.manager.SetEnvironmentBaseURL(cmd.Context(), args[0], args[1])
			if err != nil {
				return usageFromEnv(err)
			}
			return a.print(cmd, map[string]string{"env": strings.ToLower(args[0]), "base_url": stored}, nil)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear <testing|production>",
		Short: "Remove a base URL override",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			a.manager.ClearEnvironmentBaseURL(cmd.Context(), args[0])
			rc := a.manager.EnvConfig(cmd.Context(), a.production)
			return a.print(cmd, rc, resolvedFields(rc))
		},
	})
	return cmd
}

func newForceTestingCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "force-testing [ip]",
		Short: "Pin testing, optionally pointing it at a LAN address",
		Long: `Pin the testing environment. With an IP address the testing base URL
becomes http://<ip>:8080/<api root>.

Examples:
  envroute force-testing
  envroute force-testing 192.168.1.10`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ip := ""
			if len(args) == 1 {
				ip = args[0]
			}
			if _, err := a.manager.ForceTesting(cmd.Context(), ip); err != nil {
				return usageFromEnv(err)
			}
			rc := a.manager.EnvConfig(cmd.Context(), a.production)
			return a.print(cmd, rc, resolvedFields(rc))
		},
	}
}

func newClearCacheCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache",
		Short: "Remove the manual environment and every base URL override",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			a.manager.ClearAll(cmd.Context())
			rc := a.manager.EnvConfig(cmd.Context(), a.production)
			return a.print(cmd, rc, resolvedFields(rc))
		},
	}
}

// usageFromEnv turns rejected names and URLs into usage errors.
func usageFromEnv(err error) error {
	var envErr *env.EnvironmentError
	if errors.As(err, &envErr) {
		return cli.NewUsageError("environment", err.Error())
	}
	var urlErr *env.BaseURLError
	if errors.As(err, &urlErr) {
		return cli.NewUsageError("base URL", err.Error())
	}
	return err
}
