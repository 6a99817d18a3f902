package util

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/foldersync/pkg/errors"
)

func TestHandleFatalError(t *testing.T) {
	var exitCode int
	exit = func(code int) { exitCode = code }
	defer func() { exit = os.Exit }()

	tests := []struct {
		name   string
		err    error
		expMsg string
	}{
		{
			name:   "Friendly error",
			err:    errors.WithContext(errors.ScanRootMissing{Path: "/source"}, "scan source"),
			expMsg: errors.ScanRootMissing{Path: "/source"}.FriendlyMessage(),
		},
		{
			name:   "Plain error",
			err:    errors.WithContext(errors.New("disk full"), "copy a.txt"),
			expMsg: "copy a.txt: disk full",
		},
	}

	for _, test := range tests {
		exitCode = 0
		hook := logrusTest.NewGlobal()
		HandleFatalError(test.err)

		assert.Equal(t, 1, exitCode, test.name)
		if assert.NotNil(t, hook.LastEntry(), test.name) {
			assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level, test.name)
			assert.Equal(t, test.expMsg, hook.LastEntry().Message, test.name)
		}
	}
}

func TestHandlePanic(t *testing.T) {
	var exitCode int
	exit = func(code int) { exitCode = code }
	defer func() { exit = os.Exit }()

	hook := logrusTest.NewGlobal()
	func() {
		defer HandlePanic()
		panic("unexpected")
	}()

	assert.Equal(t, 1, exitCode)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "unexpected", hook.LastEntry().Data["panic"])
}

func TestSetupLogging(t *testing.T) {
	var out bytes.Buffer
	stdout = &out
	defer func() { stdout = os.Stdout }()

	logPath := filepath.Join(t.TempDir(), "logs", "sync.log")
	logger := logrus.New()
	require.NoError(t, SetupLogging(logger, logPath))

	logger.Info("Synchronizer started ...")
	assert.Contains(t, out.String(), `msg="Synchronizer started ..."`)

	contents, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(contents), `level=info msg="Synchronizer started ..."`)
}

func TestSetupLoggingError(t *testing.T) {
	dir := t.TempDir()
	notADir := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(notADir, nil, 0644))

	err := SetupLogging(logrus.New(), filepath.Join(notADir, "sync.log"))
	assert.Error(t, err)
}
