package scheduler

import (
	"context"
	"fmt"
	goSync "sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/sidkik/foldersync/pkg/errors"
	"github.com/sidkik/foldersync/pkg/sync"
)

// Status is what the scheduler is currently doing.
type Status int

const (
	// Idle means that the scheduler is waiting for the next pass.
	Idle Status = iota

	// Syncing means that a pass is running.
	Syncing
)

func (s Status) String() string {
	if s == Syncing {
		return "syncing"
	}
	return "idle"
}

// Mocked out for unit testing.
var (
	scan  = sync.ScanWith
	apply = sync.Apply
)

// Options configures a Scheduler.
type Options struct {
	SourceRoot  string
	ReplicaRoot string

	// Interval is the time to wait between the end of a pass and the start
	// of the next one.
	Interval time.Duration

	// Workers is the number of files hashed or copied in parallel.
	Workers int

	// Cache is shared by the scans of all passes. It's optional.
	Cache *sync.DigestCache

	// ExitOnError stops Run after the first failed pass. Otherwise, failed
	// passes are logged and retried after the interval.
	ExitOnError bool

	// DryRun logs the changes that each pass would make without making them.
	DryRun bool

	// Trigger starts the next pass early whenever it receives a value.
	// It's optional.
	Trigger <-chan struct{}

	// Clock defaults to the real clock.
	Clock clockwork.Clock

	// Log defaults to the logrus standard logger.
	Log *logrus.Logger
}

// State is the result of the most recent pass. It's passed from one pass to
// the next rather than stored globally.
type State struct {
	Source  sync.Manifest
	Replica sync.Manifest
	Report  sync.Report

	// Passes is the number of passes that have been attempted.
	Passes int
}

// Scheduler repeatedly mirrors a source folder to a replica folder.
type Scheduler struct {
	opts  Options
	clock clockwork.Clock
	log   *logrus.Logger

	statusLock goSync.Mutex
	status     Status
}

// New creates a new Scheduler.
func New(opts Options) *Scheduler {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Scheduler{opts: opts, clock: clock, log: log}
}

// Status returns whether a pass is currently running.
func (s *Scheduler) Status() Status {
	s.statusLock.Lock()
	defer s.statusLock.Unlock()
	return s.status
}

func (s *Scheduler) setStatus(status Status) {
	s.statusLock.Lock()
	defer s.statusLock.Unlock()
	s.status = status
}

// Run runs passes until `ctx` is cancelled, waiting for the interval (or the
// trigger) between passes. It returns nil when cancelled. If ExitOnError is
// set, it returns the error of the first failed pass.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.WithFields(logrus.Fields{
		"source":   s.opts.SourceRoot,
		"replica":  s.opts.ReplicaRoot,
		"interval": s.opts.Interval,
	}).Info("Synchronizer started ...")

	var state State
	for {
		if ctx.Err() != nil {
			s.log.Info("Synchronizer stopped")
			return nil
		}

		next, err := s.RunOnce(state)
		state = next
		if err != nil {
			if s.opts.ExitOnError {
				return err
			}

			s.log.WithError(err).Errorf("Sync pass failed. Will retry in %s.", s.opts.Interval)
			s.log.Debugf("Sync pass failure trace: %+v", err)
		}

		select {
		case <-ctx.Done():
		case <-s.clock.After(s.opts.Interval):
		case <-s.opts.Trigger:
			s.log.Debug("Change detected in the source folder")
		}
	}
}

// RunOnce runs a single pass: it scans both folders, compares them, and
// applies the difference to the replica.
func (s *Scheduler) RunOnce(prev State) (State, error) {
	s.setStatus(Syncing)
	defer s.setStatus(Idle)

	next := prev
	next.Passes++

	scanOpts := sync.ScanOptions{Workers: s.opts.Workers, Cache: s.opts.Cache}
	source, err := scan(s.opts.SourceRoot, scanOpts)
	if err != nil {
		return next, errors.WithContext(err, "scan source")
	}

	replica, err := scan(s.opts.ReplicaRoot, scanOpts)
	if err != nil {
		return next, errors.WithContext(err, "scan replica")
	}
	next.Source = source
	next.Replica = replica

	diff := sync.Diff(source, replica)
	report, err := apply(diff, s.opts.SourceRoot, s.opts.ReplicaRoot, sync.Options{
		Workers: s.opts.Workers,
		DryRun:  s.opts.DryRun,
	})
	next.Report = report
	if err != nil {
		return next, errors.WithContext(err, fmt.Sprintf("apply changes to %s", s.opts.ReplicaRoot))
	}

	if report.Empty() {
		s.log.Debug("Replica is already in sync")
	}
	return next, nil
}
