package sync

import (
	"os"
	"path/filepath"
	"strings"
	goSync "sync"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/sidkik/foldersync/pkg/errors"
)

// DefaultWorkers is the number of files that are hashed or copied in
// parallel when the caller doesn't specify otherwise.
const DefaultWorkers = 8

// Kind is the type of a path in a Manifest.
type Kind int

const (
	// FileKind is a regular file. It's the zero value because anything that
	// isn't a directory is read and copied like a file.
	FileKind Kind = iota

	// DirectoryKind is a directory.
	DirectoryKind
)

func (k Kind) String() string {
	if k == DirectoryKind {
		return "directory"
	}
	return "file"
}

// Entry describes a single path in a Manifest. Directories have no digest.
type Entry struct {
	Kind   Kind
	Digest string
}

// Directory returns the Entry for a directory.
func Directory() Entry {
	return Entry{Kind: DirectoryKind}
}

// File returns the Entry for a file with the given contents digest.
func File(digest string) Entry {
	return Entry{Kind: FileKind, Digest: digest}
}

// IsDir returns whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Kind == DirectoryKind
}

// Manifest is a snapshot of a directory tree. It maps slash separated paths,
// relative to the root of the tree, to their entries. The root itself is
// never included.
type Manifest map[string]Entry

// ScanOptions control how a tree is scanned.
type ScanOptions struct {
	// Workers is the number of files hashed at the same time. Values below
	// one are treated as one.
	Workers int

	// Cache is optional.
	Cache *DigestCache
}

// Scan walks the tree rooted at `root` and returns its Manifest.
func Scan(root string) (Manifest, error) {
	return ScanWith(root, ScanOptions{Workers: DefaultWorkers})
}

// ScanWithWorkers is like Scan, but hashes up to `workers` files at the same
// time.
func ScanWithWorkers(root string, workers int) (Manifest, error) {
	return ScanWith(root, ScanOptions{Workers: workers})
}

// ScanWith walks the tree rooted at `root` according to `opts`.
//
// Files that can't be hashed are logged and left out of the manifest, so
// they look like they don't exist for this pass. The same goes for the
// contents of directories that can't be listed. Only a missing or unreadable
// root is returned as an error.
func ScanWith(root string, opts ScanOptions) (Manifest, error) {
	rootInfo, err := fs.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ScanRootMissing{Path: root}
		}
		return nil, errors.WithContext(err, "stat root")
	}

	if !rootInfo.IsDir() {
		return nil, errors.NotADirectory{Path: root}
	}

	manifest := Manifest{}
	var files []string
	err = afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return errors.WithContext(err, "read root")
			}

			log.WithError(err).WithField("path", path).Error(
				"Failed to read path. It will be skipped for this pass.")
			if fi != nil && fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path == root {
			return nil
		}

		relativePath, err := relativeTo(root, path)
		if err != nil {
			return err
		}

		if fi.IsDir() {
			manifest[relativePath] = Directory()
		} else {
			files = append(files, relativePath)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var lock goSync.Mutex
	var group errgroup.Group
	group.SetLimit(normalizeWorkers(opts.Workers))
	for _, relativePath := range files {
		relativePath := relativePath
		group.Go(func() error {
			path := join(root, relativePath)
			digest, err := opts.Cache.HashFile(path)
			if err != nil {
				log.WithError(err).WithField("path", path).Error(
					"Failed to hash file. It will be skipped for this pass.")
				return nil
			}

			lock.Lock()
			manifest[relativePath] = File(digest)
			lock.Unlock()
			return nil
		})
	}

	// The workers never return errors. Per-file failures are only logged.
	_ = group.Wait()
	return manifest, nil
}

// relativeTo returns `path` relative to `root` in the canonical slash
// separated form used as Manifest keys.
func relativeTo(root, path string) (string, error) {
	relativePath, err := filepath.Rel(root, path)
	if err != nil {
		return "", errors.WithContext(err, "normalize path")
	}

	// This shouldn't happen because the walk only yields children of `root`.
	if relativePath == ".." || strings.HasPrefix(relativePath, ".."+string(filepath.Separator)) {
		return "", errors.New("%q is outside of %q", path, root)
	}
	return filepath.ToSlash(relativePath), nil
}

// join converts a Manifest key back into a path on the filesystem.
func join(root, relativePath string) string {
	return filepath.Join(root, filepath.FromSlash(relativePath))
}

func normalizeWorkers(workers int) int {
	if workers < 1 {
		return 1
	}
	return workers
}
