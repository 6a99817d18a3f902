package sync

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/foldersync/pkg/errors"
)

func TestScan(t *testing.T) {
	fs = afero.NewMemMapFs()
	mkdirs(t, "/src/dir/nested", "/src/empty")
	writeFiles(t, map[string]string{
		"/src/a.txt":     "hello",
		"/src/dir/b.txt": "world",
	})

	exp := Manifest{
		"a.txt":      File(md5Hex("hello")),
		"dir":        Directory(),
		"dir/b.txt":  File(md5Hex("world")),
		"dir/nested": Directory(),
		"empty":      Directory(),
	}

	for _, workers := range []int{0, 1, 8} {
		manifest, err := ScanWithWorkers("/src", workers)
		assert.NoError(t, err)
		if diff := cmp.Diff(exp, manifest); diff != "" {
			t.Errorf("workers %d: unexpected manifest (-want +got):\n%s", workers, diff)
		}
	}
}

func TestScanDotDotNames(t *testing.T) {
	fs = afero.NewMemMapFs()
	mkdirs(t, "/src/...dir")
	writeFiles(t, map[string]string{
		"/src/..notes":        "notes",
		"/src/a.txt":          "a",
		"/src/...dir/..b.txt": "b",
	})

	manifest, err := Scan("/src")
	require.NoError(t, err)

	exp := Manifest{
		"..notes":        File(md5Hex("notes")),
		"a.txt":          File(md5Hex("a")),
		"...dir":         Directory(),
		"...dir/..b.txt": File(md5Hex("b")),
	}
	if diff := cmp.Diff(exp, manifest); diff != "" {
		t.Errorf("unexpected manifest (-want +got):\n%s", diff)
	}
}

func TestRelativeTo(t *testing.T) {
	rel, err := relativeTo("/src", "/src/..notes")
	assert.NoError(t, err)
	assert.Equal(t, "..notes", rel)

	_, err = relativeTo("/src", "/other/a.txt")
	assert.Error(t, err)

	_, err = relativeTo("/src/dir", "/src")
	assert.Error(t, err)
}

func TestScanWithCache(t *testing.T) {
	fs = afero.NewMemMapFs()
	mkdirs(t, "/src/dir")
	writeFiles(t, map[string]string{
		"/src/a.txt":     "hello",
		"/src/dir/b.txt": "world",
	})

	cache, err := NewDigestCache(16)
	require.NoError(t, err)

	opts := ScanOptions{Workers: 2, Cache: cache}
	first, err := ScanWith("/src", opts)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())

	second, err := ScanWith("/src", opts)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached scan differs (-first +second):\n%s", diff)
	}
}

func TestScanEmptyRoot(t *testing.T) {
	fs = afero.NewMemMapFs()
	mkdirs(t, "/src")

	manifest, err := Scan("/src")
	assert.NoError(t, err)
	assert.Empty(t, manifest)
}

func TestScanRootErrors(t *testing.T) {
	fs = afero.NewMemMapFs()
	writeFiles(t, map[string]string{"/file": "contents"})

	_, err := Scan("/missing")
	assert.Equal(t, errors.ScanRootMissing{Path: "/missing"}, err)

	_, err = Scan("/file")
	assert.Equal(t, errors.NotADirectory{Path: "/file"}, err)
}

func TestScanUnreadableFile(t *testing.T) {
	memFs := afero.NewMemMapFs()
	fs = memFs
	mkdirs(t, "/src/locked")
	writeFiles(t, map[string]string{
		"/src/readable.txt":    "readable",
		"/src/secret.txt":      "secret",
		"/src/locked/file.txt": "hidden",
	})

	fs = unreadableFs{Fs: memFs, unreadable: map[string]bool{
		"/src/secret.txt": true,
		"/src/locked":     true,
	}}
	hook := logrusTest.NewGlobal()

	manifest, err := Scan("/src")
	assert.NoError(t, err)
	assert.Equal(t, Manifest{
		"locked":       Directory(),
		"readable.txt": File(md5Hex("readable")),
	}, manifest)

	var errorPaths []string
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			errorPaths = append(errorPaths, entry.Data["path"].(string))
		}
	}
	assert.ElementsMatch(t, []string{"/src/secret.txt", "/src/locked"}, errorPaths)
}

// unreadableFs fails to open the given paths with a permission error.
type unreadableFs struct {
	afero.Fs
	unreadable map[string]bool
}

func (f unreadableFs) Open(name string) (afero.File, error) {
	if f.unreadable[name] {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return f.Fs.Open(name)
}

func mkdirs(t *testing.T, dirs ...string) {
	for _, dir := range dirs {
		require.NoError(t, fs.MkdirAll(dir, 0755))
	}
}

func writeFiles(t *testing.T, files map[string]string) {
	for path, contents := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(contents), 0644))
	}
}
