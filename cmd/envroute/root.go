package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nodejsn73cv/envroute/pkg/cli"
)

// rootOptions holds the global flags.
type rootOptions struct {
	configPath string
	output     string
	verbose    bool
	production bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "envroute",
		Short: "Environment-aware request routing for mini-program clients",
		Long: `Envroute resolves which backend a mini-program client talks to and rewrites
request and media URLs against it.

The environment comes from, in order: a persisted manual environment, the
explicit production flag, the release channel, the platform and the host
environment. Testing and production accept persisted base URL overrides.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path (defaults apply when empty)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "output format (text, json, yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().BoolVar(&opts.production, "production", false, "explicit production flag (auto-detected when unset)")

	root.AddCommand(
		newResolveCmd(opts),
		newSnapshotCmd(opts),
		newDiagnoseCmd(opts),
		newEnvCmd(opts),
		newBaseURLCmd(opts),
		newForceTestingCmd(opts),
		newClearCacheCmd(opts),
		newImageURLCmd(opts),
		newFetchCmd(opts),
		newWatchCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}
