package once

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/foldersync/cmd/util"
	"github.com/sidkik/foldersync/pkg/config"
	"github.com/sidkik/foldersync/pkg/errors"
	"github.com/sidkik/foldersync/pkg/scheduler"
)

// New creates a new `once` command.
func New(flags *util.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Mirror the source folder a single time and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg, err := flags.Setup(cmd.Flags())
			if err != nil {
				util.HandleFatalError(err)
			}

			err = util.WithReplicaLock(cfg.ReplicaFolder, func() error {
				return run(cfg)
			})
			if err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func run(cfg config.Config) error {
	opts, err := util.SchedulerOptions(cfg, nil)
	if err != nil {
		return err
	}

	state, err := scheduler.New(opts).RunOnce(scheduler.State{})
	if err != nil {
		return errors.WithContext(err, "sync")
	}

	if state.Report.Empty() {
		log.Info("Replica is already in sync")
	}
	return nil
}
