package logfile

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
)

var ErrSyncPolicyUnsupported = errors.New("unsupported transaction log sync policy")

// SyncPolicyType describes the type of sync policy to apply when writing to the segment file.
type SyncPolicyType int

const (
	SyncPolicyTypeNone SyncPolicyType = iota
	SyncPolicyTypeImmediate
	SyncPolicyTypePeriodic
)

// String returns a string representation of the sync policy type.
func (s SyncPolicyType) String() string {
	switch s {
	case SyncPolicyTypeNone:
		return "none"
	case SyncPolicyTypeImmediate:
		return "immediate"
	case SyncPolicyTypePeriodic:
		return "periodic"
	default:
		return "unknown"
	}
}

// ParseSyncPolicyType returns the sync policy type with the given name.
func ParseSyncPolicyType(name string) (SyncPolicyType, error) {
	for _, syncPolicyType := range SyncPolicyTypes {
		if syncPolicyType.String() == name {
			return syncPolicyType, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrSyncPolicyUnsupported, name)
}

// SyncPolicyTypes provides a list of supported sync policies. Helpful for writing tests and benchmarks which iterate
// over all possibilities.
var SyncPolicyTypes = []SyncPolicyType{
	SyncPolicyTypeNone,
	SyncPolicyTypeImmediate,
	SyncPolicyTypePeriodic,
}

// DefaultSyncPolicy is the sync policy type which should work fine for most use cases. Bulk appends are written by a
// single writer, so there is nothing to group.
const DefaultSyncPolicy = SyncPolicyTypeImmediate

// SyncPolicyConfig selects a sync policy together with its parameters.
type SyncPolicyConfig struct {
	Type SyncPolicyType

	// Only used by the periodic sync policy.
	SyncAfterAppendCount int
	SyncEvery            time.Duration
}

// Syncer is the part of the segment writer a sync policy needs.
type Syncer interface {
	Sync() error
}

// SyncPolicy is the interface every sync policy needs to implement. Startup is called whenever a segment becomes the
// active segment, Shutdown when it stops being the active one.
type SyncPolicy interface {
	Startup(syncer Syncer) error
	DataAppended() error
	Shutdown() error
}

// NewSyncPolicy returns an instance of the sync policy matching the configuration.
func NewSyncPolicy(config SyncPolicyConfig, logger logr.Logger) (SyncPolicy, error) {
	switch config.Type {
	case SyncPolicyTypeNone:
		return NewSyncPolicyNone(), nil
	case SyncPolicyTypeImmediate:
		return NewSyncPolicyImmediate(), nil
	case SyncPolicyTypePeriodic:
		return NewSyncPolicyPeriodic(config.SyncAfterAppendCount, config.SyncEvery, logger), nil
	default:
		return nil, ErrSyncPolicyUnsupported
	}
}
