package util

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobg/flock"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/sidkik/foldersync/pkg/errors"
)

const (
	// lockDuration is how long a lock file is honored after it was last
	// refreshed. A holder that dies without unlocking blocks other mirrors
	// for at most this long.
	lockDuration = 30 * time.Second

	// lockRefreshInterval must be well below lockDuration.
	lockRefreshInterval = 10 * time.Second
)

// Mocked for unit testing.
var (
	lockDir   = os.TempDir
	lockClock = clockwork.NewRealClock()
)

var replicaLocker = flock.Locker{LockDur: lockDuration}

// LockReplica makes sure that only one process at a time mirrors into
// `replica`. It fails immediately if another process holds the lock. The
// lock is refreshed in the background until the returned function is called
// to release it.
func LockReplica(replica string) (func(), error) {
	path := lockPath(replica)

	log.WithField("lock", path).Debug("Acquiring replica lock")
	if err := replicaLocker.Lock(path); err != nil {
		if err == flock.ErrLocked {
			return nil, errors.NewFriendlyError("Another foldersync process is already "+
				"mirroring into %q.\nStop it, or wait up to %s if it exited uncleanly.",
				replica, lockDuration)
		}
		return nil, errors.WithContext(err, "lock replica")
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		refreshLock(path, stop)
	}()

	return func() {
		close(stop)
		<-stopped
		if err := replicaLocker.Unlock(path); err != nil {
			log.WithError(err).WithField("lock", path).Warn("Failed to release replica lock")
		}
	}, nil
}

// WithReplicaLock runs `fn` while holding the lock on `replica`. The lock is
// released before returning, so callers can exit with HandleFatalError
// afterwards without leaving a stale lock behind.
func WithReplicaLock(replica string, fn func() error) error {
	unlock, err := LockReplica(replica)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func refreshLock(path string, stop <-chan struct{}) {
	ticker := lockClock.NewTicker(lockRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if err := replicaLocker.Refresh(path); err != nil {
				log.WithError(err).WithField("lock", path).Warn(
					"Failed to refresh replica lock. Another process may start mirroring into the replica.")
			}
		}
	}
}

// lockPath returns the path locked for `replica`. The locker creates the lock
// file at this path plus ".lock". It lives outside the replica so that it
// never shows up in a scan.
func lockPath(replica string) string {
	sum := md5.Sum([]byte(filepath.Clean(replica)))
	return filepath.Join(lockDir(), fmt.Sprintf("foldersync-%x", sum[:8]))
}
