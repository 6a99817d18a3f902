package logfile

import (
	"os"
	"path/filepath"
	goSync "sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/foldersync/pkg/errors"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// formatter writes one line per entry, without colors, so that the file can
// be read the same way regardless of whether stdout is a terminal.
var formatter = &logrus.TextFormatter{
	DisableColors: true,
	FullTimestamp: true,
}

// Hook appends log entries to a file.
type Hook struct {
	levels []logrus.Level

	lock goSync.Mutex
	file afero.File
}

// NewHook opens `path` for appending, creating it and its parent directory
// if necessary. The hook receives entries at all levels, so the file gets
// the same entries as the logger's main output.
func NewHook(path string) (*Hook, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.WithContext(err, "create log directory")
	}

	file, err := fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.WithContext(err, "open log file")
	}
	return &Hook{levels: logrus.AllLevels, file: file}, nil
}

func (h *Hook) Levels() []logrus.Level {
	return h.levels
}

// Fire may be called concurrently by the sync workers.
func (h *Hook) Fire(entry *logrus.Entry) error {
	line, err := formatter.Format(entry)
	if err != nil {
		return errors.WithContext(err, "format")
	}

	h.lock.Lock()
	defer h.lock.Unlock()
	if _, err := h.file.Write(line); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

// Close closes the underlying file. Entries fired afterwards fail to write.
func (h *Hook) Close() error {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.file.Close()
}
