package logfile

import (
	"time"

	"github.com/go-logr/logr"

	"github.com/backbone81/graph-txlog/internal/encoding"
	"github.com/backbone81/graph-txlog/internal/segment"
)

// DefaultMaxSegmentSize is the segment size which causes a rotation on the next transaction boundary.
const DefaultMaxSegmentSize = 64 * 1024 * 1024

// RotationCallback is the callback users can register for getting notified when a rotation of a segment file happens.
// The parameters are the previous and the next log version.
type RotationCallback func(previousLogVersion uint64, nextLogVersion uint64)

// DefaultRotationCallback provides a callback which does nothing.
var DefaultRotationCallback RotationCallback = func(previousLogVersion uint64, nextLogVersion uint64) {}

// Option describes the function signature which all log file options need to implement.
type Option func(l *LogFile)

// WithPreAllocationSize overwrites the default pre-allocation size of new segment files.
// Can be used with Init and Open.
func WithPreAllocationSize(preAllocationSize int64) Option {
	return func(l *LogFile) {
		l.preAllocationSize = max(preAllocationSize, 0)
	}
}

// WithMaxSegmentSize overwrites the default maximum segment size which causes rotation into a new segment when reached
// on a transaction boundary.
// Can be used with Open.
func WithMaxSegmentSize(maxSegmentSize int64) Option {
	return func(l *LogFile) {
		// We need at least one byte more than the header to never rotate away from an empty segment.
		l.maxSegmentSize = max(maxSegmentSize, encoding.HeaderSize+1)
	}
}

// WithKernelVersion overwrites the kernel version recorded in the header of new segment files.
// Can be used with Init and Open.
func WithKernelVersion(kernelVersion encoding.KernelVersion) Option {
	return func(l *LogFile) {
		l.kernelVersion = kernelVersion
	}
}

// WithStoreID sets the store id of a new transaction log. A random store id is generated when this option is not
// given.
// Can be used with Init.
func WithStoreID(storeID encoding.StoreID) Option {
	return func(l *LogFile) {
		l.storeID = storeID
	}
}

// WithSyncPolicyNone overwrites the default sync policy with sync policy none.
// Can be used with Open.
func WithSyncPolicyNone() Option {
	return func(l *LogFile) {
		l.syncPolicyConfig = SyncPolicyConfig{Type: SyncPolicyTypeNone}
	}
}

// WithSyncPolicyImmediate overwrites the default sync policy with sync policy immediate.
// Can be used with Open.
func WithSyncPolicyImmediate() Option {
	return func(l *LogFile) {
		l.syncPolicyConfig = SyncPolicyConfig{Type: SyncPolicyTypeImmediate}
	}
}

// WithSyncPolicyPeriodic overwrites the default sync policy with sync policy periodic.
// Can be used with Open.
func WithSyncPolicyPeriodic(syncAfterAppendCount int, syncEvery time.Duration) Option {
	return func(l *LogFile) {
		l.syncPolicyConfig = SyncPolicyConfig{
			Type:                 SyncPolicyTypePeriodic,
			SyncAfterAppendCount: syncAfterAppendCount,
			SyncEvery:            syncEvery,
		}
	}
}

// WithSyncPolicy overwrites the default sync policy with the given configuration.
// Can be used with Open.
func WithSyncPolicy(config SyncPolicyConfig) Option {
	return func(l *LogFile) {
		l.syncPolicyConfig = config
	}
}

// WithRotationCallback sets the given callback for being triggered when the active segment is rotated.
// Can be used with Open.
func WithRotationCallback(rotationCallback RotationCallback) Option {
	return func(l *LogFile) {
		l.rotationCallback = rotationCallback
	}
}

// WithLogger sets the logger. Nothing is logged by default.
// Can be used with Init and Open.
func WithLogger(logger logr.Logger) Option {
	return func(l *LogFile) {
		l.logger = logger
	}
}

func newLogFile(directory string, options ...Option) *LogFile {
	logFile := LogFile{
		directory:         directory,
		preAllocationSize: segment.DefaultPreAllocationSize,
		maxSegmentSize:    DefaultMaxSegmentSize,
		kernelVersion:     encoding.LatestKernelVersion,
		syncPolicyConfig:  SyncPolicyConfig{Type: DefaultSyncPolicy},
		rotationCallback:  DefaultRotationCallback,
		logger:            logr.Discard(),
	}
	for _, option := range options {
		option(&logFile)
	}
	return &logFile
}
