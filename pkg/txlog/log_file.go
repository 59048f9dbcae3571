package txlog

import intlogfile "github.com/backbone81/graph-txlog/internal/logfile"

// LogFile provides the main functionality for writing to the transaction log. It abstracts away the fact that the log
// is distributed over several segment files and does rotation into new segments as necessary.
//
// LogFile is safe to use from multiple Go routines concurrently.
type LogFile = intlogfile.LogFile

// Boundary describes the last transaction written before a rotation.
type Boundary = intlogfile.Boundary

// ReadOnlyChannel provides read access to a single segment file.
type ReadOnlyChannel = intlogfile.ReadOnlyChannel

// IsInitialized reports if there is already a transaction log available in the given directory.
var IsInitialized = intlogfile.IsInitialized

// Init initializes a new transaction log in the given directory.
var Init = intlogfile.Init

// Open opens the transaction log in the given directory for appending.
var Open = intlogfile.Open

// WithPreAllocationSize overwrites the default pre-allocation size of new segment files.
// Can be used with Init and Open.
var WithPreAllocationSize = intlogfile.WithPreAllocationSize

// WithMaxSegmentSize overwrites the default maximum segment size which causes rotation into a new segment.
// Can be used with Open.
var WithMaxSegmentSize = intlogfile.WithMaxSegmentSize

// WithKernelVersion overwrites the kernel version recorded in the header of new segment files.
// Can be used with Init and Open.
var WithKernelVersion = intlogfile.WithKernelVersion

// WithStoreID sets the store id of a new transaction log.
// Can be used with Init.
var WithStoreID = intlogfile.WithStoreID

// WithSyncPolicyNone overwrites the default sync policy with sync policy none.
// Can be used with Open.
var WithSyncPolicyNone = intlogfile.WithSyncPolicyNone

// WithSyncPolicyImmediate overwrites the default sync policy with sync policy immediate.
// Can be used with Open.
var WithSyncPolicyImmediate = intlogfile.WithSyncPolicyImmediate

// WithSyncPolicyPeriodic overwrites the default sync policy with sync policy periodic.
// Can be used with Open.
var WithSyncPolicyPeriodic = intlogfile.WithSyncPolicyPeriodic

// WithRotationCallback sets the given callback for being triggered when the active segment is rotated.
// Can be used with Open.
var WithRotationCallback = intlogfile.WithRotationCallback

// WithLogger sets the logger of the log file.
// Can be used with Init and Open.
var WithLogger = intlogfile.WithLogger
