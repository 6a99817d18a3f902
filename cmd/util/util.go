package util

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/foldersync/pkg/errors"
	"github.com/sidkik/foldersync/pkg/logfile"
)

// Mocked for unit testing.
var (
	exit             = os.Exit
	stdout io.Writer = os.Stdout
)

// HandleFatalError logs `err` and exits. The log entry contains the user
// friendly message, and the full trace is available when debug logging is
// enabled.
func HandleFatalError(err error) {
	log.WithError(err).Debugf("Fatal error trace: %+v", err)
	log.Error(errors.GetPrintableMessage(err))
	exit(1)
}

// HandlePanic logs the stack of a panic before exiting. It should be
// deferred at the top of main.
func HandlePanic() {
	if r := recover(); r != nil {
		log.WithField("panic", r).Errorf("Unexpected panic:\n%s", debug.Stack())
		exit(1)
	}
}

// SetupLogging configures `logger` to write timestamped text to stdout, and to
// append the same entries to the file at `logPath`.
func SetupLogging(logger *log.Logger, logPath string) error {
	logger.SetOutput(stdout)
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	hook, err := logfile.NewHook(logPath)
	if err != nil {
		return errors.WithContext(err, fmt.Sprintf("set up log file %s", logPath))
	}
	logger.AddHook(hook)
	return nil
}
