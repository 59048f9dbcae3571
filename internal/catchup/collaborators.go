package catchup

import (
	"sync"

	"github.com/backbone81/graph-txlog/internal/availability"
	"github.com/backbone81/graph-txlog/internal/checkpoint"
	"github.com/backbone81/graph-txlog/internal/encoding"
	"github.com/backbone81/graph-txlog/internal/entry"
	"github.com/backbone81/graph-txlog/internal/logfile"
	"github.com/backbone81/graph-txlog/internal/txindex"
)

// LogFile is the part of the log file the service works with.
type LogFile interface {
	PruneLock() sync.Locker
	LowestLogVersion() (uint64, error)
	ExtractHeader(logVersion uint64) (encoding.Header, error)
	OpenForVersion(logVersion uint64) (*logfile.ReadOnlyChannel, error)
	RegisterExternalReaders(channels map[uint64]*logfile.ReadOnlyChannel)
	Append(data []byte, boundary *logfile.Boundary) (encoding.LogPosition, error)
	Truncate(position encoding.LogPosition) error
	Position() encoding.LogPosition
}

// TransactionIndex resolves append indexes and transaction ids into log positions.
type TransactionIndex interface {
	PositionFor(appendIndex uint64) (encoding.LogPosition, error)
	AdvanceToEnd() (encoding.LogPosition, uint64, error)
	VersionFor(transactionID uint64) (uint64, error)
	PositionOf(logVersion uint64, transactionID uint64) (encoding.LogPosition, error)
}

// CheckpointFile writes and reads detached checkpoints.
type CheckpointFile interface {
	ForceCheckpoint(request checkpoint.Request) (entry.DetachedCheckpoint, error)
	Latest() (entry.DetachedCheckpoint, error)
}

// AvailabilityGuard reports if the database is available for regular transaction traffic.
type AvailabilityGuard interface {
	IsAvailable() bool
}

var (
	_ LogFile           = (*logfile.LogFile)(nil)
	_ TransactionIndex  = (*txindex.Index)(nil)
	_ CheckpointFile    = (*checkpoint.File)(nil)
	_ AvailabilityGuard = (*availability.Guard)(nil)
)
