package txlog

import (
	"github.com/go-logr/logr"

	intavailability "github.com/backbone81/graph-txlog/internal/availability"
	intcatchup "github.com/backbone81/graph-txlog/internal/catchup"
	intcheckpoint "github.com/backbone81/graph-txlog/internal/checkpoint"
	inttxindex "github.com/backbone81/graph-txlog/internal/txindex"
)

// CatchUpService gives bulk access to the transaction log.
type CatchUpService = intcatchup.Service

// LogChannel is a read-only view on a byte range of a single segment.
type LogChannel = intcatchup.LogChannel

// TransactionLogChannels is an ordered list of channels with increasing append indexes.
type TransactionLogChannels = intcatchup.TransactionLogChannels

// TransactionID identifies the last transaction contained in appended log content.
type TransactionID = intcatchup.TransactionID

// AppendOption configures a bulk append.
type AppendOption = intcatchup.AppendOption

// WithTransaction marks appended content as ending on a transaction boundary.
var WithTransaction = intcatchup.WithTransaction

// AvailabilityGuard tracks whether the database is available for regular transaction traffic.
type AvailabilityGuard = intavailability.Guard

// NewAvailabilityGuard creates a guard without any pending requirement.
var NewAvailabilityGuard = intavailability.NewGuard

// CheckpointFile persists detached checkpoints.
type CheckpointFile = intcheckpoint.File

var (
	ErrInvalidArgument         = intcatchup.ErrInvalidArgument
	ErrDatabaseAvailable       = intcatchup.ErrDatabaseAvailable
	ErrRestoreBeforeCheckpoint = intcatchup.ErrRestoreBeforeCheckpoint
	ErrNoCheckpoint            = intcheckpoint.ErrNoCheckpoint
)

// NewCatchUpService wires a catch up service to the log file. The checkpoint file is located in the directory of the
// log file.
func NewCatchUpService(logFile *LogFile, guard *AvailabilityGuard, logger logr.Logger) (*CatchUpService, *CheckpointFile) {
	checkpoints := intcheckpoint.New(logFile.Directory(), logFile.StoreID(), intcheckpoint.WithLogger(logger))
	service := intcatchup.NewService(
		logFile,
		inttxindex.New(logFile),
		checkpoints,
		guard,
		intcatchup.WithLogger(logger),
	)
	return service, checkpoints
}
