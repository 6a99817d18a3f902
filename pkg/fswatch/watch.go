package fswatch

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/foldersync/pkg/errors"
)

var fs = afero.NewOsFs()

// Watcher notifies when anything under a directory tree changes.
type Watcher struct {
	watcher *fsnotify.Watcher
	events  chan struct{}
}

// Watch watches `root` and all of its subdirectories. Directories created
// after the watcher starts are watched as well.
func Watch(root string) (*Watcher, error) {
	pathsToWatch, err := getPathsToWatch(root)
	if err != nil {
		return nil, errors.WithContext(err, "get paths")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithContext(err, "create watcher")
	}

	for _, path := range pathsToWatch {
		if err := watcher.Add(path); err != nil {
			// Close the watcher so that we release the file handlers for the
			// previously added paths.
			if err := watcher.Close(); err != nil {
				log.WithError(err).Warn("Failed to close file watcher")
			}

			return nil, errors.WithContext(err, fmt.Sprintf("watch %q", path))
		}
	}

	w := &Watcher{watcher: watcher}
	w.events = combineUpdates(watcher.Events, w.watchIfDir)
	go logErrors(watcher.Errors)
	return w, nil
}

// Events receives a value after one or more changes. Bursts of changes are
// coalesced into a single value.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Close stops watching. The Events channel is not closed.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) watchIfDir(path string) {
	fi, err := fs.Stat(path)
	if err != nil || !fi.IsDir() {
		return
	}

	// The new directory may already contain subdirectories, e.g. if it was
	// moved into the tree.
	paths, err := getPathsToWatch(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("Failed to watch new directory")
		return
	}

	for _, path := range paths {
		if err := w.watcher.Add(path); err != nil {
			log.WithError(err).WithField("path", path).Warn("Failed to watch new directory")
		}
	}
}

func combineUpdates(updates <-chan fsnotify.Event, onCreate func(string)) chan struct{} {
	combined := make(chan struct{}, 1)
	go func() {
		for update := range updates {
			if update.Has(fsnotify.Create) && onCreate != nil {
				onCreate(update.Name)
			}

			select {
			case combined <- struct{}{}:
			default:
			}
		}
	}()
	return combined
}

func logErrors(errs <-chan error) {
	for err := range errs {
		log.WithError(err).Warn("File watcher error")
	}
}

// getPathsToWatch returns `root` and every directory below it. fsnotify
// reports changes to the files within a watched directory, so files don't
// need to be watched individually.
func getPathsToWatch(root string) (paths []string, err error) {
	fi, err := fs.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileNotFound{Path: root}
		}
		return nil, errors.WithContext(err, "stat")
	}

	if !fi.IsDir() {
		return nil, errors.NotADirectory{Path: root}
	}

	err = afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return errors.WithContext(err, "walk error")
			}

			log.WithError(err).WithField("path", path).Debug("Skipping unreadable path")
			return nil
		}

		if fi.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}
