package sync

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	source := Manifest{
		"matches":       File("same"),
		"changed":       File("new"),
		"added":         File("added"),
		"dir":           Directory(),
		"dir/added":     File("added"),
		"file-to-dir":   Directory(),
		"dir-to-file":   File("file"),
		"unchanged-dir": Directory(),
	}
	replica := Manifest{
		"matches":          File("same"),
		"changed":          File("old"),
		"dir":              Directory(),
		"removed":          File("removed"),
		"removed-dir":      Directory(),
		"removed-dir/file": File("removed"),
		"file-to-dir":      File("file"),
		"dir-to-file":      Directory(),
		"unchanged-dir":    Directory(),
	}

	assert.Equal(t, DiffResult{
		Added:    []string{"added", "dir/added"},
		Removed:  []string{"removed", "removed-dir", "removed-dir/file"},
		Modified: []string{"changed"},
		Replaced: []string{"dir-to-file", "file-to-dir"},
	}, Diff(source, replica))
}

func TestDiffEmpty(t *testing.T) {
	assert.True(t, Diff(Manifest{}, Manifest{}).Empty())
	assert.True(t, Diff(nil, nil).Empty())

	onlySource := Diff(Manifest{"a": File("a")}, nil)
	assert.Equal(t, []string{"a"}, onlySource.Added)
	assert.False(t, onlySource.Empty())

	onlyReplica := Diff(nil, Manifest{"a": Directory()})
	assert.Equal(t, []string{"a"}, onlyReplica.Removed)
}

func TestDiffDirectoriesNeverModified(t *testing.T) {
	// Directories don't have digests, so a stray digest must not matter.
	source := Manifest{"dir": {Kind: DirectoryKind, Digest: "x"}}
	replica := Manifest{"dir": {Kind: DirectoryKind, Digest: "y"}}
	assert.True(t, Diff(source, replica).Empty())
}

func TestDiffProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		a := randomManifest(rng)
		b := randomManifest(rng)

		assert.True(t, Diff(a, a).Empty())

		diff := Diff(a, b)
		seen := map[string]bool{}
		for _, list := range [][]string{diff.Added, diff.Removed, diff.Modified, diff.Replaced} {
			for _, path := range list {
				assert.False(t, seen[path], "%q is in more than one list", path)
				seen[path] = true

				_, inA := a[path]
				_, inB := b[path]
				assert.True(t, inA || inB)
			}
		}

		for _, path := range diff.Modified {
			assert.Equal(t, FileKind, a[path].Kind)
			assert.Equal(t, FileKind, b[path].Kind)
		}
	}
}

func randomManifest(rng *rand.Rand) Manifest {
	manifest := Manifest{}
	for i := 0; i < rng.Intn(20); i++ {
		path := strconv.Itoa(rng.Intn(30))
		if rng.Intn(3) == 0 {
			manifest[path] = Directory()
		} else {
			manifest[path] = File(strconv.Itoa(rng.Intn(3)))
		}
	}
	return manifest
}
