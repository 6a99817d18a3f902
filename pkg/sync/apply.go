package sync

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	goSync "sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/sidkik/foldersync/pkg/errors"
)

// Variables mocked for unit testing.
var (
	copyFile   = copyFileImpl
	removePath = removePathImpl
)

// Options control how a DiffResult is applied.
type Options struct {
	// Workers is the maximum number of files copied or removed at the same
	// time. Values below one are treated as one.
	Workers int

	// DryRun reports the changes without making them.
	DryRun bool
}

// Apply changes the tree at `replicaRoot` according to `diff` so that it
// matches the tree at `sourceRoot`, and logs a summary of the changes.
//
// Paths that were replaced are deleted from the replica and recreated.
// Removed paths that no longer exist are ignored. Added and modified paths
// whose source disappeared since the scan are skipped, since the next pass
// will see them as removed.
//
// The first error stops the pass. The returned Report contains the changes
// that were made before the error.
func Apply(diff DiffResult, sourceRoot, replicaRoot string, opts Options) (Report, error) {
	if opts.DryRun {
		report := Report{
			Added:    diff.Added,
			Removed:  diff.Removed,
			Modified: diff.Modified,
			Replaced: diff.Replaced,
			DryRun:   true,
		}
		report.Log(log.StandardLogger())
		return report, nil
	}

	a := &applier{
		sourceRoot:  sourceRoot,
		replicaRoot: replicaRoot,
		workers:     normalizeWorkers(opts.Workers),
	}
	err := a.apply(diff)

	report := a.getReport()
	report.Log(log.StandardLogger())
	return report, err
}

type applier struct {
	sourceRoot  string
	replicaRoot string
	workers     int

	lock   goSync.Mutex
	report Report
}

func (a *applier) apply(diff DiffResult) error {
	// Clear out the paths whose kind changed so that they can be recreated
	// like any other new path.
	err := a.parallel(diff.Replaced, func(path string) error {
		return errors.WithContext(removePath(join(a.replicaRoot, path)),
			fmt.Sprintf("remove %s", path))
	})
	if err != nil {
		return err
	}

	// Removing a directory removes everything in it, so there's no need to
	// remove its children separately.
	err = a.parallel(pruneDescendants(diff.Removed), func(path string) error {
		return errors.WithContext(removePath(join(a.replicaRoot, path)),
			fmt.Sprintf("remove %s", path))
	})
	if err != nil {
		return err
	}
	a.record(&a.report.Removed, diff.Removed...)

	replaced := map[string]struct{}{}
	for _, path := range diff.Replaced {
		replaced[path] = struct{}{}
	}

	toCreate := append(append([]string{}, diff.Added...), diff.Replaced...)
	sort.Strings(toCreate)

	var dirs, files []string
	for _, path := range toCreate {
		fi, err := fs.Stat(join(a.sourceRoot, path))
		if err != nil {
			if os.IsNotExist(err) {
				logVanished(path)
				continue
			}
			return errors.WithContext(err, fmt.Sprintf("stat %s", path))
		}

		if fi.IsDir() {
			dirs = append(dirs, path)
		} else {
			files = append(files, path)
		}
	}

	// Create the directories in sorted order so that parents exist before
	// any of the files inside them are copied.
	for _, dir := range dirs {
		if err := makeDir(join(a.replicaRoot, dir)); err != nil {
			return errors.WithContext(err, fmt.Sprintf("create directory %s", dir))
		}
		a.recordCreated(dir, replaced)
	}

	err = a.parallel(files, func(path string) error {
		dst := join(a.replicaRoot, path)
		if err := clearPath(dst, DirectoryKind); err != nil {
			return errors.WithContext(err, fmt.Sprintf("clear %s", path))
		}

		if err := fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return errors.WithContext(err, fmt.Sprintf("make parent of %s", path))
		}

		copied, err := a.copy(path)
		if copied {
			a.recordCreated(path, replaced)
		}
		return err
	})
	if err != nil {
		return err
	}

	return a.parallel(diff.Modified, func(path string) error {
		copied, err := a.copy(path)
		if copied {
			a.record(&a.report.Modified, path)
		}
		return err
	})
}

// copy copies `path` from the source to the replica. It returns false
// without an error if the source file no longer exists.
func (a *applier) copy(path string) (bool, error) {
	err := copyFile(join(a.sourceRoot, path), join(a.replicaRoot, path))
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(errors.RootCause(err)) {
		logVanished(path)
		return false, nil
	}
	return false, errors.WithContext(err, fmt.Sprintf("copy %s", path))
}

// parallel runs `fn` on each path using up to `a.workers` goroutines. It
// returns the first error, after which no new paths are started.
func (a *applier) parallel(paths []string, fn func(string) error) error {
	group, ctx := errgroup.WithContext(context.Background())
	group.SetLimit(a.workers)
	for _, path := range paths {
		path := path
		group.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			return fn(path)
		})
	}
	return group.Wait()
}

func (a *applier) recordCreated(path string, replaced map[string]struct{}) {
	if _, ok := replaced[path]; ok {
		a.record(&a.report.Replaced, path)
	} else {
		a.record(&a.report.Added, path)
	}
}

func (a *applier) record(list *[]string, paths ...string) {
	a.lock.Lock()
	defer a.lock.Unlock()
	*list = append(*list, paths...)
}

func (a *applier) getReport() Report {
	a.lock.Lock()
	defer a.lock.Unlock()

	report := a.report
	sort.Strings(report.Added)
	sort.Strings(report.Removed)
	sort.Strings(report.Modified)
	sort.Strings(report.Replaced)
	return report
}

func logVanished(path string) {
	log.WithField("path", path).Warn("Source path no longer exists. " +
		"It was most likely removed after the scan, and will be handled by the next pass.")
}

// pruneDescendants returns the paths that don't have an ancestor in `paths`.
func pruneDescendants(paths []string) (pruned []string) {
	set := map[string]struct{}{}
	for _, p := range paths {
		set[p] = struct{}{}
	}

	for _, p := range paths {
		hasAncestor := false
		for parent := path.Dir(p); parent != "." && parent != "/"; parent = path.Dir(parent) {
			if _, ok := set[parent]; ok {
				hasAncestor = true
				break
			}
		}

		if !hasAncestor {
			pruned = append(pruned, p)
		}
	}
	return pruned
}

// makeDir creates the directory at `path` and any missing parents. If
// something other than a directory is already at `path`, it's removed first.
func makeDir(path string) error {
	if err := clearPath(path, FileKind); err != nil {
		return errors.WithContext(err, "clear")
	}
	return fs.MkdirAll(path, 0755)
}

// clearPath removes whatever is at `path` if it's of kind `conflicting`.
func clearPath(path string, conflicting Kind) error {
	fi, err := lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.WithContext(err, "stat")
	}

	if fi.IsDir() == (conflicting == DirectoryKind) {
		return removePath(path)
	}
	return nil
}

func removePathImpl(path string) error {
	fi, err := lstat(path)
	if err != nil {
		// The path was already removed, most likely by someone other than us.
		if os.IsNotExist(err) {
			return nil
		}
		return errors.WithContext(err, "stat")
	}

	if fi.IsDir() {
		if err := fs.RemoveAll(path); err != nil {
			return errors.WithContext(err, "remove directory")
		}
		return nil
	}

	if err := fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.WithContext(err, "remove file")
	}
	return nil
}

// copyFileImpl copies the file at `src` to `dst`, along with its permission
// bits and modification time. The contents are written to a temporary file
// in the destination directory which is then renamed over `dst`, so `dst`
// never contains a partial copy.
func copyFileImpl(src, dst string) error {
	srcFile, err := fs.Open(src)
	if err != nil {
		return errors.WithContext(err, "open source")
	}
	defer srcFile.Close()

	fileInfo, err := srcFile.Stat()
	if err != nil {
		return errors.WithContext(err, "stat")
	}

	tmpFile, err := afero.TempFile(fs, filepath.Dir(dst), "."+filepath.Base(dst)+".foldersync-")
	if err != nil {
		return errors.WithContext(err, "open destination")
	}
	tmpPath := tmpFile.Name()

	// Clean up the temporary file unless it was successfully renamed.
	renamed := false
	defer func() {
		if !renamed {
			fs.Remove(tmpPath)
		}
	}()

	buf := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(buf)

	if _, err := io.CopyBuffer(tmpFile, srcFile, *buf); err != nil {
		tmpFile.Close()
		return errors.WithContext(err, "copy")
	}

	if err := tmpFile.Close(); err != nil {
		return errors.WithContext(err, "close destination")
	}

	mode := fileInfo.Mode() & (os.ModePerm | os.ModeSetuid | os.ModeSetgid | os.ModeSticky)
	if err := fs.Chmod(tmpPath, mode); err != nil {
		return errors.WithContext(err, "set file mode")
	}

	// Change the modification time as the last step so that it doesn't get
	// reset by other file operations.
	if err := fs.Chtimes(tmpPath, time.Now(), fileInfo.ModTime()); err != nil {
		return errors.WithContext(err, "set file modtime")
	}

	if err := fs.Rename(tmpPath, dst); err != nil {
		return errors.WithContext(err, "rename")
	}
	renamed = true
	return nil
}

func lstat(path string) (os.FileInfo, error) {
	if lstater, ok := fs.(afero.Lstater); ok {
		fi, _, err := lstater.LstatIfPossible(path)
		return fi, err
	}
	return fs.Stat(path)
}
