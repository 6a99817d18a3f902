package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"

	configCmd "github.com/sidkik/foldersync/cmd/config"
	"github.com/sidkik/foldersync/cmd/mirror"
	"github.com/sidkik/foldersync/cmd/once"
	"github.com/sidkik/foldersync/cmd/util"
	"github.com/sidkik/foldersync/cmd/version"
)

// verboseLogKey is the environment variable used to enable verbose logging.
// When it's set to `true`, Debug events are logged, rather than just Info and
// above.
const verboseLogKey = "FOLDERSYNC_LOG_VERBOSE"

// Execute runs the main CLI process.
func Execute() {
	if os.Getenv(verboseLogKey) == "true" {
		log.SetLevel(log.DebugLevel)
	}

	var flags util.Flags
	rootCmd := mirror.New(&flags)
	flags.Register(rootCmd.PersistentFlags())
	rootCmd.AddCommand(
		configCmd.New(&flags),
		once.New(&flags),
		version.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		util.HandleFatalError(err)
	}
}
