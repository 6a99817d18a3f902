package mirror

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sidkik/foldersync/cmd/util"
	"github.com/sidkik/foldersync/pkg/config"
	"github.com/sidkik/foldersync/pkg/fswatch"
	"github.com/sidkik/foldersync/pkg/scheduler"
)

// Mocked for unit testing.
var watch = fswatch.Watch

// New creates the root `foldersync` command, which mirrors the source folder
// until it's interrupted.
func New(flags *util.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "foldersync",
		Short: "Keep a replica folder identical to a source folder",
		Long: "Periodically mirror the source folder into the replica folder.\n" +
			"Files that are missing or different in the replica are copied from the source,\n" +
			"and anything in the replica that isn't in the source is deleted.\n\n" +
			"The synchronizer runs until it receives SIGINT or SIGTERM.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,

		// The call to rootCmd.Execute prints the error, so we silence errors
		// here to avoid double printing.
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg, err := flags.Setup(cmd.Flags())
			if err != nil {
				util.HandleFatalError(err)
			}

			err = util.WithReplicaLock(cfg.ReplicaFolder, func() error {
				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return run(ctx, cfg)
			})
			if err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func run(ctx context.Context, cfg config.Config) error {
	var trigger <-chan struct{}
	if cfg.Watch {
		watcher, err := watch(cfg.SourceFolder)
		if err != nil {
			log.WithError(err).Warn("Failed to watch the source folder. " +
				"Changes will only be picked up after each interval.")
		} else {
			defer watcher.Close()
			trigger = watcher.Events()
		}
	}

	opts, err := util.SchedulerOptions(cfg, trigger)
	if err != nil {
		return err
	}
	return scheduler.New(opts).Run(ctx)
}
