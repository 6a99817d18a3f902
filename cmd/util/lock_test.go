package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/foldersync/pkg/errors"
)

func TestLockPath(t *testing.T) {
	lockDir = func() string { return "/tmp" }
	defer func() { lockDir = os.TempDir }()

	path := lockPath("/data/replica")
	assert.Equal(t, "/tmp", filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "foldersync-"))

	assert.Equal(t, path, lockPath("/data/replica/"), "equivalent paths share a lock")
	assert.NotEqual(t, path, lockPath("/data/other"))
}

func TestLockReplica(t *testing.T) {
	dir := useLockDir(t)

	unlock, err := LockReplica("/data/replica")
	require.NoError(t, err)
	lockFile := lockPath("/data/replica") + ".lock"
	assert.FileExists(t, lockFile)

	// Only the locker's file is created.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	unlock()
	assert.NoFileExists(t, lockFile)

	// The lock can be taken again once it's released.
	unlock, err = LockReplica("/data/replica")
	require.NoError(t, err)
	unlock()
}

func TestLockReplicaHeld(t *testing.T) {
	useLockDir(t)

	unlock, err := LockReplica("/data/replica")
	require.NoError(t, err)
	defer unlock()

	_, err = LockReplica("/data/replica")
	if assert.Error(t, err) {
		assert.Contains(t, errors.GetPrintableMessage(err),
			`Another foldersync process is already mirroring into "/data/replica".`)
	}

	// Other replicas aren't affected.
	unlockOther, err := LockReplica("/data/other")
	require.NoError(t, err)
	unlockOther()
}

func TestLockReplicaRefresh(t *testing.T) {
	useLockDir(t)
	clock := clockwork.NewFakeClock()
	lockClock = clock
	defer func() { lockClock = clockwork.NewRealClock() }()

	unlock, err := LockReplica("/data/replica")
	require.NoError(t, err)
	defer unlock()

	// Age the lock as if the holder had been running for a while.
	lockFile := lockPath("/data/replica") + ".lock"
	aged := time.Now().Add(-lockDuration / 2)
	require.NoError(t, os.Chtimes(lockFile, aged, aged))

	clock.BlockUntil(1)
	clock.Advance(lockRefreshInterval)

	assert.Eventually(t, func() bool {
		fi, err := os.Stat(lockFile)
		return err == nil && fi.ModTime().After(aged.Add(lockDuration/4))
	}, 5*time.Second, 10*time.Millisecond, "the lock should be refreshed")

	_, err = LockReplica("/data/replica")
	assert.Error(t, err, "a refreshed lock should still exclude other processes")
}

func TestLockReplicaExpired(t *testing.T) {
	useLockDir(t)

	// A lock file left behind by a process that died without unlocking.
	lockFile := lockPath("/data/replica") + ".lock"
	require.NoError(t, os.WriteFile(lockFile, nil, 0644))
	expired := time.Now().Add(-2 * lockDuration)
	require.NoError(t, os.Chtimes(lockFile, expired, expired))

	unlock, err := LockReplica("/data/replica")
	require.NoError(t, err)
	unlock()
}

func TestLockReplicaError(t *testing.T) {
	lockDir = func() string { return filepath.Join(t.TempDir(), "missing") }
	defer func() { lockDir = os.TempDir }()

	_, err := LockReplica("/data/replica")
	assert.Error(t, err)
}

func TestWithReplicaLock(t *testing.T) {
	useLockDir(t)
	lockFile := lockPath("/data/replica") + ".lock"

	err := WithReplicaLock("/data/replica", func() error {
		assert.FileExists(t, lockFile)
		_, err := LockReplica("/data/replica")
		assert.Error(t, err)
		return assert.AnError
	})
	assert.Equal(t, assert.AnError, err)
	assert.NoFileExists(t, lockFile, "the lock should be released even when fn fails")

	unlock, err := LockReplica("/data/replica")
	require.NoError(t, err)
	defer unlock()

	called := false
	err = WithReplicaLock("/data/replica", func() error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func useLockDir(t *testing.T) string {
	dir := t.TempDir()
	lockDir = func() string { return dir }
	t.Cleanup(func() { lockDir = os.TempDir })
	return dir
}
