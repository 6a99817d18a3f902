package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ghodss/yaml"
	"github.com/spf13/afero"

	"github.com/sidkik/foldersync/pkg/errors"
)

const (
	// DefaultConfigPath is where the config is read from if no path is
	// given explicitly.
	DefaultConfigPath = "~/.foldersync.yaml"

	// InitialConfigVersion is the first version of the config. Config files
	// that do not specify a version will default to this version.
	InitialConfigVersion = "v1alpha1"

	// SupportedConfigVersion is the config version supported by this binary.
	SupportedConfigVersion = "v1alpha1"

	// DefaultInterval is the default number of seconds between passes.
	DefaultInterval = 10

	// DefaultWorkers is the default number of files hashed or copied in
	// parallel.
	DefaultWorkers = 8
)

// Config contains the settings for mirroring one folder to another.
type Config struct {
	Version       string `json:"version,omitempty"`
	SourceFolder  string `json:"sourceFolder,omitempty"`
	ReplicaFolder string `json:"replicaFolder,omitempty"`
	LogFile       string `json:"logFile,omitempty"`

	// Interval is in seconds.
	Interval    int  `json:"interval,omitempty"`
	Workers     int  `json:"workers,omitempty"`
	ExitOnError bool `json:"exitOnError,omitempty"`
	Watch       bool `json:"watch,omitempty"`
	DryRun      bool `json:"dryRun,omitempty"`

	// HashCacheSize is the number of file digests remembered between
	// passes. Zero disables the cache, so every file is read on every pass.
	HashCacheSize int `json:"hashCacheSize,omitempty"`
}

// badConfigTemplate is used when the YAML can't be decoded. The decoder's
// messages don't carry line numbers, so all we can do is pass them on.
const badConfigTemplate = "Failed to read the config file %q.\n" +
	"Check that every field is spelled correctly and has the right type.\n\n" +
	"Decoder error: %s"

// versionMismatchError is returned for config files written in a format
// this binary doesn't read.
type versionMismatchError struct {
	path, want, got string
}

func (err versionMismatchError) Error() string {
	return err.FriendlyMessage()
}

func (err versionMismatchError) FriendlyMessage() string {
	return fmt.Sprintf("The config file %q has version %q, but this version of "+
		"foldersync only reads version %q.\n"+
		"Regenerate it with `foldersync config`.", err.path, err.got, err.want)
}

// Default returns the config used when no config file exists.
func Default() Config {
	return Config{
		Version:  InitialConfigVersion,
		Interval: DefaultInterval,
		Workers:  DefaultWorkers,
	}
}

// GetDefaultConfigPath returns the expanded path to the default config.
func GetDefaultConfigPath() (string, error) {
	return homedirExpand(DefaultConfigPath)
}

// Parse reads the config at `path`. Values missing from the file keep their
// defaults. Relative paths in the file are evaluated relative to the
// directory containing the file.
func Parse(path string) (Config, error) {
	path, err := homedirExpand(path)
	if err != nil {
		return Config{}, errors.WithContext(err, "expand config path")
	}

	config := Default()
	if err := decodeFile(path, &config); err != nil {
		return Config{}, errors.WithContext(err, "parse")
	}

	if err := config.ExpandPaths(filepath.Dir(path)); err != nil {
		return Config{}, errors.WithContext(err, "expand paths")
	}
	return config, nil
}

// decodeFile decodes the YAML at `path` over `cfg`. The version is checked
// before unknown fields are rejected, since a file from another version most
// likely has fields this one doesn't know about.
func decodeFile(path string, cfg *Config) error {
	contents, err := afero.ReadFile(fs, path)
	switch {
	case os.IsNotExist(err):
		return errors.FileNotFound{Path: path}
	case err != nil:
		return errors.WithContext(err, "read file")
	}

	var header struct {
		Version string `json:"version"`
	}
	if err := yaml.Unmarshal(contents, &header); err != nil {
		return errors.NewFriendlyError(badConfigTemplate, path, err)
	}

	version := header.Version
	if version == "" {
		version = InitialConfigVersion
	}
	if version != SupportedConfigVersion {
		return versionMismatchError{path: path, want: SupportedConfigVersion, got: version}
	}

	if err := yaml.UnmarshalStrict(contents, cfg, yaml.DisallowUnknownFields); err != nil {
		return errors.NewFriendlyError(badConfigTemplate, path, err)
	}
	return nil
}

// ParseDefault reads the config at the default path. If it's missing, it
// returns the default config.
func ParseDefault() (Config, error) {
	path, err := GetDefaultConfigPath()
	if err != nil {
		return Config{}, errors.WithContext(err, "expand config path")
	}

	if _, err := fs.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Parse(path)
}

// Write writes `cfg` to `path` with the current config version.
func Write(path string, cfg Config) error {
	path, err := homedirExpand(path)
	if err != nil {
		return errors.WithContext(err, "expand config path")
	}

	cfg.Version = SupportedConfigVersion
	yamlBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := afero.WriteFile(fs, path, yamlBytes, 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

// ExpandPaths expands `~` in the folder and log paths, and makes relative
// paths absolute by joining them with `relativeTo`.
func (c *Config) ExpandPaths(relativeTo string) error {
	for _, path := range []*string{&c.SourceFolder, &c.ReplicaFolder, &c.LogFile} {
		if *path == "" {
			continue
		}

		expanded, err := homedirExpand(*path)
		if err != nil {
			return errors.WithContext(err, "expand home directory")
		}

		if !filepath.IsAbs(expanded) {
			expanded = filepath.Join(relativeTo, expanded)
		}
		*path = filepath.Clean(expanded)
	}
	return nil
}

// GetInterval returns the time to wait between passes.
func (c Config) GetInterval() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// Validate checks that the config describes a mirror that can be run
// safely.
func (c Config) Validate() error {
	required := []struct {
		field, value string
	}{
		{"source_folder", c.SourceFolder},
		{"replica_folder", c.ReplicaFolder},
		{"log_file", c.LogFile},
	}
	for _, r := range required {
		if r.value == "" {
			return errors.MissingFieldError{Field: r.field}
		}
	}

	if c.Interval < 1 {
		return errors.NewFriendlyError("The interval must be at least 1 second, but got %d.", c.Interval)
	}

	if c.Workers < 1 {
		return errors.NewFriendlyError("The number of workers must be at least 1, but got %d.", c.Workers)
	}

	if c.HashCacheSize < 0 {
		return errors.NewFriendlyError("The hash cache size can't be negative, but got %d.", c.HashCacheSize)
	}

	source := filepath.Clean(c.SourceFolder)
	replica := filepath.Clean(c.ReplicaFolder)
	switch {
	case source == replica:
		return errors.NewFriendlyError("The source and replica folders must be different, "+
			"but both are %q.", source)
	case isWithin(replica, source):
		return errors.NewFriendlyError("The replica folder %q can't be inside "+
			"the source folder %q.", replica, source)
	case isWithin(source, replica):
		return errors.NewFriendlyError("The source folder %q can't be inside "+
			"the replica folder %q.", source, replica)
	}

	logFile := filepath.Clean(c.LogFile)
	switch {
	case logFile == replica || isWithin(logFile, replica):
		return errors.NewFriendlyError("The log file %q can't be inside "+
			"the replica folder %q, since it would be deleted by the next pass.", logFile, replica)
	case c.Watch && (logFile == source || isWithin(logFile, source)):
		return errors.NewFriendlyError("The log file %q can't be inside the source "+
			"folder %q when watching for changes, since every log line would start a new pass.",
			logFile, source)
	}
	return nil
}

// isWithin returns whether `path` is strictly below `dir`.
func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
