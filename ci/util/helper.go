//go:build ci
// +build ci

package util

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"syscall"

	"github.com/sidkik/foldersync/pkg/errors"
)

// TestHelper runs the foldersync binary during integration tests.
type TestHelper struct {
	// Binary is the path to the foldersync binary. It defaults to looking up
	// `foldersync` in the PATH.
	Binary string
}

func (helper *TestHelper) binary() string {
	if helper.Binary == "" {
		return "foldersync"
	}
	return helper.Binary
}

// Start starts the given foldersync command. It returns a reader for the
// stdout output, and a channel for obtaining any errors after starting the
// command. Cancelling `ctx` sends SIGTERM to the command, and the channel
// receives the command's exit error, if any, once it has stopped.
func (helper *TestHelper) Start(ctx context.Context, args ...string) (
	io.Reader, chan error, error) {

	cmd := exec.Command(helper.binary(), args...)

	stdoutReader, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}

	stderr := bytes.NewBuffer(nil)
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}

	errChan := make(chan error, 1)
	go func() {
		waitErr := make(chan error)
		go func() {
			waitErr <- cmd.Wait()
			close(waitErr)
		}()

		defer close(errChan)
		select {
		case <-ctx.Done():
			if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
				errChan <- errors.WithContext(err, "signal")
				return
			}
			if err := <-waitErr; err != nil {
				errChan <- fmt.Errorf("exited uncleanly (%s): stderr: %s", err, stderr)
			}
		case err := <-waitErr:
			errChan <- fmt.Errorf("crashed (%v): stderr: %s", err, stderr)
		}
	}()
	return stdoutReader, errChan, nil
}

// Run runs the given foldersync command, and returns its combined output.
func (helper *TestHelper) Run(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, helper.binary(), args...).CombinedOutput()
}
