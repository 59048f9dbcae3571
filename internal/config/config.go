// Package config loads the configuration of the command line tool from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/backbone81/graph-txlog/internal/encoding"
	"github.com/backbone81/graph-txlog/internal/logfile"
	"github.com/backbone81/graph-txlog/internal/segment"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds everything required to open a transaction log. Zero values in a loaded file keep the defaults.
type Config struct {
	// The directory the segment files are located in.
	Directory string `yaml:"directory"`

	// The kernel version new segments are created with.
	KernelVersion uint8 `yaml:"kernelVersion"`

	// The segment size which causes a rotation on the next transaction boundary.
	MaxSegmentSize int64 `yaml:"maxSegmentSize"`

	// The number of bytes new segment files are pre-allocated with.
	PreAllocationSize int64 `yaml:"preAllocationSize"`

	// One of none, immediate or periodic.
	SyncPolicy string `yaml:"syncPolicy"`

	// Only used by the periodic sync policy.
	SyncAfterAppendCount int           `yaml:"syncAfterAppendCount"`
	SyncEvery            time.Duration `yaml:"syncEvery"`
}

// Default returns the configuration used when no configuration file is given.
func Default() Config {
	return Config{
		Directory:            ".",
		KernelVersion:        uint8(encoding.LatestKernelVersion),
		MaxSegmentSize:       logfile.DefaultMaxSegmentSize,
		PreAllocationSize:    segment.DefaultPreAllocationSize,
		SyncPolicy:           logfile.DefaultSyncPolicy.String(),
		SyncAfterAppendCount: 100,
		SyncEvery:            time.Second,
	}
}

// Load reads the configuration file at the given path on top of the defaults. Unknown keys are rejected to catch
// typos early.
func Load(path string) (Config, error) {
	config := Default()
	file, err := os.Open(path) //nolint:gosec // The path is given by the user on purpose.
	if err != nil {
		return Config{}, fmt.Errorf("opening the configuration file %q: %w", path, err)
	}
	defer file.Close() //nolint:errcheck // The file was only read from.

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil {
		return Config{}, fmt.Errorf("decoding the configuration file %q: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate checks that all values are usable.
func (c Config) Validate() error {
	var errs []error
	if c.Directory == "" {
		errs = append(errs, errors.New("directory must not be empty"))
	}
	if !encoding.KernelVersion(c.KernelVersion).IsSupported() {
		errs = append(errs, fmt.Errorf("%w: %d", encoding.ErrUnsupportedKernelVersion, c.KernelVersion))
	}
	if c.MaxSegmentSize <= encoding.HeaderSize {
		errs = append(errs, fmt.Errorf("max segment size %d must be larger than the segment header", c.MaxSegmentSize))
	}
	if c.PreAllocationSize < 0 {
		errs = append(errs, fmt.Errorf("pre-allocation size %d must not be negative", c.PreAllocationSize))
	}
	syncPolicyType, err := logfile.ParseSyncPolicyType(c.SyncPolicy)
	if err != nil {
		errs = append(errs, err)
	}
	if err == nil && syncPolicyType == logfile.SyncPolicyTypePeriodic {
		if c.SyncAfterAppendCount <= 0 {
			errs = append(errs, fmt.Errorf("sync after append count %d must be positive", c.SyncAfterAppendCount))
		}
		if c.SyncEvery <= 0 {
			errs = append(errs, fmt.Errorf("sync every %s must be positive", c.SyncEvery))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// LogFileOptions converts the configuration into options for initializing and opening the log file.
func (c Config) LogFileOptions() ([]logfile.Option, error) {
	syncPolicyType, err := logfile.ParseSyncPolicyType(c.SyncPolicy)
	if err != nil {
		return nil, err
	}
	return []logfile.Option{
		logfile.WithKernelVersion(encoding.KernelVersion(c.KernelVersion)),
		logfile.WithMaxSegmentSize(c.MaxSegmentSize),
		logfile.WithPreAllocationSize(c.PreAllocationSize),
		logfile.WithSyncPolicy(logfile.SyncPolicyConfig{
			Type:                 syncPolicyType,
			SyncAfterAppendCount: c.SyncAfterAppendCount,
			SyncEvery:            c.SyncEvery,
		}),
	}, nil
}
