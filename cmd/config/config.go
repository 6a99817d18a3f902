package config

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sidkik/foldersync/cmd/util"
	"github.com/sidkik/foldersync/pkg/config"
	"github.com/sidkik/foldersync/pkg/errors"
)

// Mocked for unit testing.
var stdout io.Writer = os.Stdout

// New creates a new `config` command.
func New(flags *util.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Save the given flags to the config file",
		Long: "Merge the given flags into the config file, so that later runs don't need them.\n" +
			"The file is written to the path passed with --config, or " + config.DefaultConfigPath + ".",
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := writeConfig(cmd.Flags(), flags); err != nil {
				err = errors.NewFriendlyError("Failed to write configuration:\n%s", errors.GetPrintableMessage(err))
				util.HandleFatalError(err)
			}
		},
	}

	// Setup the commands for querying the contents of the config.
	type getterSpec struct {
		use, short string
		fn         func(config.Config) string
	}

	getters := []getterSpec{
		{
			use:   "get-source-folder",
			short: "Get the configured source folder",
			fn:    func(cfg config.Config) string { return cfg.SourceFolder },
		},
		{
			use:   "get-replica-folder",
			short: "Get the configured replica folder",
			fn:    func(cfg config.Config) string { return cfg.ReplicaFolder },
		},
		{
			use:   "get-log-file",
			short: "Get the configured log file",
			fn:    func(cfg config.Config) string { return cfg.LogFile },
		},
	}
	for _, getter := range getters {
		getter := getter
		cmd.AddCommand(&cobra.Command{
			Use:   getter.use,
			Short: getter.short,
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				cfg, err := flags.Load(cmd.Flags())
				if err != nil {
					util.HandleFatalError(errors.WithContext(err, "read config"))
				}

				fmt.Fprintln(stdout, getter.fn(cfg))
			},
		})
	}

	return cmd
}

func writeConfig(flagSet *pflag.FlagSet, flags *util.Flags) error {
	cfg, err := flags.LoadIgnoringMissing(flagSet)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return errors.WithContext(err, "validate")
	}

	path := flags.ConfigPath
	if path == "" {
		path, err = config.GetDefaultConfigPath()
		if err != nil {
			return errors.WithContext(err, "get config path")
		}
	}

	if err := config.Write(path, cfg); err != nil {
		return errors.WithContext(err, "write")
	}

	fmt.Fprintf(stdout, "Wrote config to %s\n", path)
	return nil
}
