package main

import (
	"io"

	"github.com/spf13/cobra"
)

// Version is injected at build time.
var Version = "dev"

type globalOptions struct {
	configPath string
}

func newRootCmd(out io.Writer, errOut io.Writer) *cobra.Command {
	var g globalOptions
	root := &cobra.Command{
		Use:   "carpin",
		Short: "Validate, pack and upload CAR archives",
		Long: `carpin checks CARv1 archives against the upload rules, packs files
into archives, and uploads archives through the configured pinner,
backup and database.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/carpin/config.yaml)")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		newStatCmd(),
		newPackCmd(),
		newUploadCmd(&g),
		newConfigCmd(&g),
	)
	return root
}

// args wraps a positional argument check so violations exit with status 2.
func args(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, a []string) error {
		if err := check(cmd, a); err != nil {
			return usageError{err}
		}
		return nil
	}
}
