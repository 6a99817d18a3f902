package util

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/sidkik/foldersync/pkg/config"
	"github.com/sidkik/foldersync/pkg/errors"
	"github.com/sidkik/foldersync/pkg/scheduler"
	"github.com/sidkik/foldersync/pkg/sync"
)

// Mocked for unit testing.
var (
	parseConfig         = config.Parse
	parseDefaultConfig  = config.ParseDefault
	getWorkingDirectory = os.Getwd
)

// Flags holds the command line flags that describe a mirror. They're
// registered once on the root command and inherited by the subcommands.
type Flags struct {
	ConfigPath string
	values     config.Config
}

// Register adds the flags to `flags`.
func (f *Flags) Register(flags *pflag.FlagSet) {
	flags.StringVar(&f.ConfigPath, "config", "",
		"Path to a YAML config file. Defaults to "+config.DefaultConfigPath+" if it exists.")
	flags.StringVarP(&f.values.SourceFolder, "source_folder", "s", "",
		"The folder to mirror.")
	flags.StringVarP(&f.values.ReplicaFolder, "replica_folder", "r", "",
		"The folder that's kept identical to the source folder. "+
			"Anything in it that isn't in the source folder is deleted.")
	flags.StringVarP(&f.values.LogFile, "log_file", "l", "",
		"The file that log messages are appended to.")
	flags.IntVarP(&f.values.Interval, "interval", "i", config.DefaultInterval,
		"The number of seconds to wait between passes.")
	flags.IntVar(&f.values.Workers, "workers", config.DefaultWorkers,
		"The number of files to hash or copy in parallel.")
	flags.BoolVar(&f.values.ExitOnError, "exit_on_error", false,
		"Exit after the first failed pass instead of retrying.")
	flags.BoolVar(&f.values.Watch, "watch", false,
		"Start a pass as soon as the source folder changes, "+
			"rather than only after the interval.")
	flags.BoolVar(&f.values.DryRun, "dry_run", false,
		"Log the changes that would be made without making them.")
	flags.IntVar(&f.values.HashCacheSize, "hash_cache_size", 0,
		"The number of file digests to remember between passes. Files whose size "+
			"and modification time are unchanged aren't read again. 0 disables the cache.")
}

// Load returns the config file, overridden by any flags that were set
// explicitly. Relative paths from flags are evaluated relative to the working
// directory.
func (f *Flags) Load(flags *pflag.FlagSet) (config.Config, error) {
	return f.load(flags, false)
}

// LoadIgnoringMissing is like Load, but starts from the default config if the
// config file doesn't exist yet.
func (f *Flags) LoadIgnoringMissing(flags *pflag.FlagSet) (config.Config, error) {
	return f.load(flags, true)
}

// Setup loads and validates the config, and then sets up logging to the
// configured log file.
func (f *Flags) Setup(flags *pflag.FlagSet) (config.Config, error) {
	cfg, err := f.Load(flags)
	if err != nil {
		return config.Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, errors.WithContext(err, "validate config")
	}

	if err := SetupLogging(log.StandardLogger(), cfg.LogFile); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (f *Flags) load(flags *pflag.FlagSet, ignoreMissing bool) (config.Config, error) {
	cfg, err := f.parseFile()
	if _, ok := errors.RootCause(err).(errors.FileNotFound); ok && ignoreMissing {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return config.Config{}, errors.WithContext(err, "read config")
	}

	// Paths inside the config file were already resolved relative to the
	// file, so only the flag values need to be resolved here.
	fromFlags := f.values
	cwd, err := getWorkingDirectory()
	if err != nil {
		return config.Config{}, errors.WithContext(err, "get working directory")
	}
	if err := fromFlags.ExpandPaths(cwd); err != nil {
		return config.Config{}, errors.WithContext(err, "expand paths")
	}

	flags.Visit(func(flag *pflag.Flag) {
		switch flag.Name {
		case "source_folder":
			cfg.SourceFolder = fromFlags.SourceFolder
		case "replica_folder":
			cfg.ReplicaFolder = fromFlags.ReplicaFolder
		case "log_file":
			cfg.LogFile = fromFlags.LogFile
		case "interval":
			cfg.Interval = fromFlags.Interval
		case "workers":
			cfg.Workers = fromFlags.Workers
		case "exit_on_error":
			cfg.ExitOnError = fromFlags.ExitOnError
		case "watch":
			cfg.Watch = fromFlags.Watch
		case "dry_run":
			cfg.DryRun = fromFlags.DryRun
		case "hash_cache_size":
			cfg.HashCacheSize = fromFlags.HashCacheSize
		}
	})
	return cfg, nil
}

func (f *Flags) parseFile() (config.Config, error) {
	if f.ConfigPath != "" {
		return parseConfig(f.ConfigPath)
	}
	return parseDefaultConfig()
}

// SchedulerOptions converts a validated config into scheduler options.
// `trigger` may be nil.
func SchedulerOptions(cfg config.Config, trigger <-chan struct{}) (scheduler.Options, error) {
	opts := scheduler.Options{
		SourceRoot:  cfg.SourceFolder,
		ReplicaRoot: cfg.ReplicaFolder,
		Interval:    cfg.GetInterval(),
		Workers:     cfg.Workers,
		ExitOnError: cfg.ExitOnError,
		DryRun:      cfg.DryRun,
		Trigger:     trigger,
	}

	if cfg.HashCacheSize > 0 {
		cache, err := sync.NewDigestCache(cfg.HashCacheSize)
		if err != nil {
			return scheduler.Options{}, errors.WithContext(err, "create hash cache")
		}
		opts.Cache = cache
	}
	return opts, nil
}
