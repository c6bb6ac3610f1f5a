/*
Package cli provides output formatting and error helpers for the envroute
command.

Results are printed as text, JSON or YAML:

	format, err := cli.ParseFormat(flagValue)
	if err != nil {
		return err
	}
	if err := cli.NewFormatter(format).FormatTo(os.Stdout, result); err != nil {
		return err
	}

Long-running commands such as "envroute watch" stop on SIGINT or SIGTERM:

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()
*/
package cli
