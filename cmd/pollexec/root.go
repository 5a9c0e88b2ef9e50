package main

import (
	"fmt"

	"github.com/fluxorio/pollexec/pkg/config"
	"github.com/fluxorio/pollexec/pkg/core"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type rootOptions struct {
	configPath   string
	logVerbosity int
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "pollexec",
		Short:        "Cooperative poll-based task executor",
		Long:         "pollexec runs futures on a small pool of cooperative workers and a dedicated blocking pool.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (YAML or JSON); POLLEXEC_* env vars override it")
	root.PersistentFlags().IntVar(&opts.logVerbosity, "log-verbosity", -1, "Log verbosity (overrides logging.verbosity; 1 enables debug)")

	root.AddCommand(
		newRunCmd(opts),
		newVersionCmd(),
	)

	return root
}

// load reads the configuration and applies the logging settings.
func (o *rootOptions) load() (config.File, error) {
	file, err := config.LoadFileWithEnv(o.configPath, config.EnvPrefix)
	if err != nil {
		return config.File{}, err
	}
	if o.logVerbosity >= 0 {
		file.Logging.Verbosity = o.logVerbosity
	}
	file.Logging.Apply()
	return file, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pollexec %s\n", version)
		},
	}
}

func cliLogger() core.Logger {
	return core.NewDefaultLogger().WithFields(map[string]interface{}{"component": "cli"})
}
