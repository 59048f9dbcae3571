package catchup

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-logr/logr"

	"github.com/backbone81/graph-txlog/internal/checkpoint"
	"github.com/backbone81/graph-txlog/internal/encoding"
	"github.com/backbone81/graph-txlog/internal/logfile"
	"github.com/backbone81/graph-txlog/internal/txindex"
	"github.com/backbone81/graph-txlog/internal/utils"
)

var (
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrDatabaseAvailable       = errors.New("bulk operations require the database to be unavailable")
	ErrRestoreBeforeCheckpoint = errors.New("restore position is before the latest checkpoint")
)

// TransactionID identifies the last transaction contained in appended log content.
type TransactionID struct {
	ID         uint64
	Checksum   uint32
	CommitTime int64
}

// Service gives bulk access to the transaction log.
//
// Service keeps no state of its own. It is safe to use from multiple Go routines concurrently as long as its
// collaborators are. Concurrent bulk appends are NOT coordinated, the caller is expected to run a single catch up at a
// time.
type Service struct {
	noCopy utils.NoCopy

	logFile     LogFile
	index       TransactionIndex
	checkpoints CheckpointFile
	guard       AvailabilityGuard
	logger      logr.Logger
}

// Option describes the function signature which all service options need to implement.
type Option func(s *Service)

// WithLogger sets the logger the service reports bulk operations to.
func WithLogger(logger logr.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a new service on top of its collaborators.
func NewService(logFile LogFile, index TransactionIndex, checkpoints CheckpointFile, guard AvailabilityGuard, options ...Option) *Service {
	newService := Service{
		logFile:     logFile,
		index:       index,
		checkpoints: checkpoints,
		guard:       guard,
		logger:      logr.Discard(),
	}
	for _, option := range options {
		option(&newService)
	}
	return &newService
}

// LogFilesChannels returns read-only channels covering the log from the entry with the given append index up to the
// current end of the log. The returned channels are registered as external readers, which prevents their segments
// from being pruned until the channels are closed.
func (s *Service) LogFilesChannels(startAppendIndex uint64) (*TransactionLogChannels, error) {
	if startAppendIndex == 0 {
		return nil, fmt.Errorf("%w: append index must be positive", ErrInvalidArgument)
	}
	ChannelRequestsTotal.Inc()

	start, err := s.index.PositionFor(startAppendIndex)
	if err != nil {
		if errors.Is(err, txindex.ErrNoSuchAppendIndex) {
			return nil, fmt.Errorf("%w: append index %d not found in log: %w", ErrInvalidArgument, startAppendIndex, err)
		}
		return nil, err
	}

	// Holding the prune lock keeps all segments in range on disk until the channels are registered.
	pruneLock := s.logFile.PruneLock()
	pruneLock.Lock()
	defer pruneLock.Unlock()

	// The segment might have been pruned after the position was resolved.
	lowest, err := s.logFile.LowestLogVersion()
	if err != nil {
		return nil, err
	}
	if start.LogVersion < lowest {
		return nil, fmt.Errorf("%w: append index %d not found in log: log version %d was pruned", ErrInvalidArgument, startAppendIndex, start.LogVersion)
	}

	end, lastAppendIndex, err := s.index.AdvanceToEnd()
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: append index %d is beyond the end of the log at %s", ErrInvalidArgument, startAppendIndex, end)
	}

	channels := make([]*LogChannel, 0, end.LogVersion-start.LogVersion+1)
	for logVersion := start.LogVersion; logVersion <= end.LogVersion; logVersion++ {
		channel, err := s.openChannel(logVersion, start, startAppendIndex, end, lastAppendIndex)
		if err != nil {
			return nil, errors.Join(err, closeChannels(channels))
		}
		channels = append(channels, channel)
	}

	registrations := make(map[uint64]*logfile.ReadOnlyChannel, len(channels))
	for _, channel := range channels {
		registrations[channel.LogVersion] = channel.channel
	}
	s.logFile.RegisterExternalReaders(registrations)

	s.logger.V(1).Info("Transaction log channels opened",
		"startAppendIndex", startAppendIndex,
		"lastAppendIndex", lastAppendIndex,
		"from", start.String(),
		"to", end.String(),
	)
	return &TransactionLogChannels{channels: channels}, nil
}

func (s *Service) openChannel(
	logVersion uint64,
	start encoding.LogPosition,
	startAppendIndex uint64,
	end encoding.LogPosition,
	lastAppendIndex uint64,
) (*LogChannel, error) {
	header, err := s.logFile.ExtractHeader(logVersion)
	if err != nil {
		return nil, err
	}
	newChannel := LogChannel{
		LogVersion:       logVersion,
		StartOffset:      encoding.HeaderSize,
		StartAppendIndex: header.LastAppendIndex + 1,
		KernelVersion:    header.KernelVersion,
	}
	if logVersion == start.LogVersion {
		newChannel.StartOffset = start.ByteOffset
		newChannel.StartAppendIndex = startAppendIndex
	}
	if logVersion == end.LogVersion {
		newChannel.EndOffset = end.ByteOffset
		newChannel.LastAppendIndex = lastAppendIndex
	} else {
		// The header of the next segment records where this segment ended.
		nextHeader, err := s.logFile.ExtractHeader(logVersion + 1)
		if err != nil {
			return nil, err
		}
		newChannel.LastAppendIndex = nextHeader.LastAppendIndex
	}

	channel, err := s.logFile.OpenForVersion(logVersion)
	if err != nil {
		return nil, err
	}
	newChannel.channel = channel
	if logVersion != end.LogVersion {
		size, err := channel.Size()
		if err != nil {
			return nil, errors.Join(err, channel.Close())
		}
		newChannel.EndOffset = size
	}
	if err := newChannel.detectKernelVersion(); err != nil {
		return nil, errors.Join(err, channel.Close())
	}
	if _, err := channel.Seek(newChannel.StartOffset, io.SeekStart); err != nil {
		return nil, errors.Join(fmt.Errorf("seeking to %s: %w", newChannel.StartPosition(), err), channel.Close())
	}
	return &newChannel, nil
}

// detectKernelVersion takes the kernel version from the first entry in range. Every entry starts with the kernel
// version it was written with.
func (c *LogChannel) detectKernelVersion() error {
	if c.Size() <= 0 {
		return nil
	}
	var kernelVersion [1]byte
	if _, err := c.channel.ReadAt(kernelVersion[:], c.StartOffset); err != nil {
		return fmt.Errorf("reading the kernel version at %s: %w", c.StartPosition(), err)
	}
	if candidate := encoding.KernelVersion(kernelVersion[0]); candidate.IsSupported() {
		c.KernelVersion = candidate
	}
	return nil
}

// AppendOption describes the function signature which all append options need to implement.
type AppendOption func(a *appendRequest)

type appendRequest struct {
	boundary *logfile.Boundary
}

// WithTransaction marks the appended content as ending on a transaction boundary. The log file is then allowed to
// rotate after the content was written, and the next segment records the transaction and append index as its
// starting point.
func WithTransaction(transactionID TransactionID, appendIndex uint64) AppendOption {
	return func(a *appendRequest) {
		a.boundary = &logfile.Boundary{
			TransactionID: transactionID.ID,
			AppendIndex:   appendIndex,
			Checksum:      transactionID.Checksum,
		}
	}
}

// Append writes already serialized log content to the end of the log. The content is not validated. It returns the
// position the content was written to, which is the position to restore to when the append needs to be undone.
func (s *Service) Append(buffer []byte, options ...AppendOption) (encoding.LogPosition, error) {
	if err := s.requireUnavailable("append"); err != nil {
		return encoding.LogPosition{}, err
	}
	var request appendRequest
	for _, option := range options {
		option(&request)
	}

	position, err := s.logFile.Append(buffer, request.boundary)
	if err != nil {
		return encoding.LogPosition{}, fmt.Errorf("bulk appending %d bytes at %s: %w", len(buffer), position, err)
	}
	BulkAppendsTotal.Inc()

	if request.boundary != nil {
		s.logger.V(1).Info("Bulk append on transaction boundary",
			"position", position.String(),
			"length", len(buffer),
			"transactionID", request.boundary.TransactionID,
			"appendIndex", request.boundary.AppendIndex,
		)
	} else {
		s.logger.V(2).Info("Bulk append", "position", position.String(), "length", len(buffer))
	}
	return position, nil
}

// Restore cuts the log back to the given position. Everything written at or after the position is discarded. The
// position must be inside the log and must not be before the latest checkpoint.
func (s *Service) Restore(position encoding.LogPosition) error {
	if err := s.requireUnavailable("restore"); err != nil {
		return err
	}
	if position.ByteOffset < encoding.HeaderSize {
		return fmt.Errorf("%w: position %s is inside the segment header", ErrInvalidArgument, position)
	}
	if tail := s.logFile.Position(); tail.Before(position) {
		return fmt.Errorf("%w: position %s is beyond the end of the log at %s", ErrInvalidArgument, position, tail)
	}
	lowestLogVersion, err := s.logFile.LowestLogVersion()
	if err != nil {
		return err
	}
	if position.LogVersion < lowestLogVersion {
		return fmt.Errorf("%w: log version %d was already pruned", ErrInvalidArgument, position.LogVersion)
	}

	latest, err := s.checkpoints.Latest()
	switch {
	case errors.Is(err, checkpoint.ErrNoCheckpoint):
	case err != nil:
		return err
	case position.Before(latest.LogPosition):
		return fmt.Errorf("%w: %w: position %s, checkpoint at %s",
			ErrInvalidArgument, ErrRestoreBeforeCheckpoint, position, latest.LogPosition)
	}

	if err := s.logFile.Truncate(position); err != nil {
		if errors.Is(err, logfile.ErrInvalidPosition) {
			return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		return err
	}
	RestoresTotal.Inc()
	s.logger.Info("Transaction log restored", "position", position.String())
	return nil
}

// AppendCheckpoint writes a detached checkpoint covering everything up to and including the given transaction. Log
// content for the transaction must already be appended. Recovery will then start right after it.
func (s *Service) AppendCheckpoint(transactionID TransactionID, appendIndex uint64, reason string) error {
	if err := s.requireUnavailable("checkpoint"); err != nil {
		return err
	}

	// The checkpoint points to where the transaction following the given one starts.
	next := transactionID.ID + 1
	logVersion, err := s.index.VersionFor(next)
	if err != nil {
		return s.transactionLookupError(transactionID, err)
	}
	position, err := s.index.PositionOf(logVersion, next)
	if err != nil {
		return s.transactionLookupError(transactionID, err)
	}

	if _, err := s.checkpoints.ForceCheckpoint(checkpoint.Request{
		TransactionID:   transactionID.ID,
		LastAppendIndex: appendIndex,
		Position:        position,
		Reason:          reason,
	}); err != nil {
		return err
	}
	CheckpointsTotal.Inc()
	return nil
}

func (s *Service) transactionLookupError(transactionID TransactionID, err error) error {
	if errors.Is(err, txindex.ErrNoSuchTransaction) {
		return fmt.Errorf("%w: transaction %d: %w", ErrInvalidArgument, transactionID.ID, err)
	}
	return err
}

func (s *Service) requireUnavailable(operation string) error {
	if !s.guard.IsAvailable() {
		return nil
	}
	RejectedRequestsTotal.Inc()
	s.logger.Info("Rejected bulk operation while the database is available", "operation", operation)
	return fmt.Errorf("%w: %s", ErrDatabaseAvailable, operation)
}
