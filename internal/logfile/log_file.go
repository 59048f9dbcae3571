package logfile

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/backbone81/graph-txlog/internal/encoding"
	"github.com/backbone81/graph-txlog/internal/segment"
)

var (
	ErrNotInitialized     = errors.New("transaction log is not initialized")
	ErrAlreadyInitialized = errors.New("transaction log is already initialized")
	ErrClosed             = errors.New("transaction log is closed")
	ErrInvalidPosition    = errors.New("position is outside of the transaction log")
	ErrSegmentInUse       = errors.New("segment has external readers")
)

// LogFile provides the main functionality for writing to the transaction log. It abstracts away the fact that the log
// is distributed over several segment files and does rotation into new segments as necessary.
//
// LogFile is safe to use from multiple Go routines concurrently.
type LogFile struct {
	// Guards the active segment writer and the sync policy.
	mutex sync.Mutex

	// Guards the window between resolving segment versions and registering channels on them against pruning.
	pruneLock sync.Mutex

	directory string
	writer    *segment.Writer
	registry  *Registry
	closed    bool

	syncPolicy        SyncPolicy
	syncPolicyConfig  SyncPolicyConfig
	preAllocationSize int64
	maxSegmentSize    int64
	kernelVersion     encoding.KernelVersion
	storeID           encoding.StoreID
	rotationCallback  RotationCallback
	logger            logr.Logger
}

// IsInitialized reports if there is already a transaction log available in the given directory.
func IsInitialized(directory string) (bool, error) {
	segments, err := segment.GetSegments(directory)
	if err != nil {
		return false, err
	}
	return len(segments) > 0, nil
}

// Init initializes a new transaction log in the given directory. The first segment has log version zero.
func Init(directory string, options ...Option) error {
	initialized, err := IsInitialized(directory)
	if err != nil {
		return err
	}
	if initialized {
		return fmt.Errorf("%w: %q", ErrAlreadyInitialized, directory)
	}

	// We use a log file here, to reuse its options. But we do not work with that log file.
	newLogFile := newLogFile(directory, options...)
	if !newLogFile.kernelVersion.IsSupported() {
		return fmt.Errorf("%w: %d", encoding.ErrUnsupportedKernelVersion, newLogFile.kernelVersion)
	}
	storeID := newLogFile.storeID
	if storeID.IsZero() {
		storeID = encoding.NewStoreID()
	}

	writer, err := segment.CreateSegment(directory, encoding.NewHeader(0, newLogFile.kernelVersion, storeID), newLogFile.preAllocationSize)
	if err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	newLogFile.logger.Info("Initialized transaction log", "directory", directory, "storeID", storeID.String())
	return nil
}

// Open opens the transaction log in the given directory for appending. The end of the written data in the highest
// segment is found by reading all of its entries. Anything after the last closed checksum scope is cut off, as it
// belongs to a transaction which was never finished.
//
// To avoid resources leaking, the returned LogFile needs to be closed by calling Close().
func Open(directory string, options ...Option) (*LogFile, error) {
	newLogFile := newLogFile(directory, options...)
	if !newLogFile.kernelVersion.IsSupported() {
		return nil, fmt.Errorf("%w: %d", encoding.ErrUnsupportedKernelVersion, newLogFile.kernelVersion)
	}

	segments, err := segment.GetSegments(directory)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotInitialized, directory)
	}
	highest := segments[len(segments)-1]

	end, torn, err := findEnd(directory, highest)
	if err != nil {
		return nil, err
	}

	writer, err := segment.OpenSegmentForAppend(directory, highest, end)
	if err != nil {
		return nil, err
	}
	if torn {
		newLogFile.logger.Info("Cutting off incomplete transaction at the end of the transaction log", "position", writer.Position().String())
		if err := writer.Truncate(end); err != nil {
			return nil, errors.Join(err, writer.Close())
		}
	}

	syncPolicy, err := NewSyncPolicy(newLogFile.syncPolicyConfig, newLogFile.logger)
	if err != nil {
		return nil, errors.Join(err, writer.Close())
	}
	if err := syncPolicy.Startup(writer); err != nil {
		return nil, errors.Join(err, writer.Close())
	}

	newLogFile.writer = writer
	newLogFile.syncPolicy = syncPolicy
	newLogFile.storeID = writer.Header().StoreID
	newLogFile.registry = NewRegistry()
	newLogFile.logger.V(1).Info("Opened transaction log", "directory", directory, "position", writer.Position().String())
	return newLogFile, nil
}

// findEnd reads all entries of the segment and returns the offset just past the last closed checksum scope. It
// reports if data follows that offset which needs to be cut off, either a transaction which was never finished or an
// entry which was only written partially. Any other corruption is returned as an error.
func findEnd(directory string, logVersion uint64) (int64, bool, error) {
	file, header, err := segment.OpenSegment(directory, logVersion)
	if err != nil {
		return 0, false, err
	}
	defer file.Close() //nolint:errcheck // The file was only read from.

	fileInfo, err := file.Stat()
	if err != nil {
		return 0, false, fmt.Errorf("reading the size of the segment file %q: %w", file.Name(), err)
	}
	tail, err := segment.Scan(file, fileInfo.Size(), header, nil)
	if err != nil {
		return 0, false, fmt.Errorf("reading the segment file %q: %w", file.Name(), err)
	}
	return tail.End.ByteOffset, tail.Incomplete, nil
}

// Directory returns the directory the segment files are located in.
func (l *LogFile) Directory() string {
	return l.directory
}

// StoreID returns the id of the store this transaction log belongs to.
func (l *LogFile) StoreID() encoding.StoreID {
	return l.storeID
}

// Registry returns the registry of external readers.
func (l *LogFile) Registry() *Registry {
	return l.registry
}

// HighestLogVersion returns the log version of the active segment.
func (l *LogFile) HighestLogVersion() uint64 {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return l.writer.Header().LogVersion
}

// LowestLogVersion returns the log version of the oldest segment still available.
func (l *LogFile) LowestLogVersion() (uint64, error) {
	segments, err := segment.GetSegments(l.directory)
	if err != nil {
		return 0, err
	}
	if len(segments) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrNotInitialized, l.directory)
	}
	return segments[0], nil
}

// Position returns the log position the next append goes to.
func (l *LogFile) Position() encoding.LogPosition {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return l.writer.Position()
}

// ExtractHeader returns the header of the segment with the given log version.
func (l *LogFile) ExtractHeader(logVersion uint64) (encoding.Header, error) {
	l.mutex.Lock()
	if l.writer.Header().LogVersion == logVersion {
		header := l.writer.Header()
		l.mutex.Unlock()
		return header, nil
	}
	l.mutex.Unlock()

	return segment.ReadHeaderFromFile(l.directory, logVersion)
}

// OpenForVersion opens a read-only channel on the segment with the given log version. The channel is positioned
// directly after the segment header. It is not registered as an external reader until passed to
// RegisterExternalReaders.
func (l *LogFile) OpenForVersion(logVersion uint64) (*ReadOnlyChannel, error) {
	file, _, err := segment.OpenSegment(l.directory, logVersion)
	if err != nil {
		return nil, err
	}
	return newReadOnlyChannel(logVersion, file, l.registry), nil
}

// RegisterExternalReaders registers the channels keyed by their log version. Their segments are not pruned until the
// channels are closed.
func (l *LogFile) RegisterExternalReaders(channels map[uint64]*ReadOnlyChannel) {
	l.registry.Register(channels)
}

// UnregisterExternalReader removes the channel from the external readers.
func (l *LogFile) UnregisterExternalReader(logVersion uint64, channel *ReadOnlyChannel) {
	l.registry.Unregister(logVersion, channel)
}

// PruneLock returns the lock which keeps pruning from deleting segments. Hold it while resolving segment versions and
// registering channels on them. Never hold it across reads.
func (l *LogFile) PruneLock() sync.Locker {
	return &l.pruneLock
}

// Append writes the raw bytes to the end of the active segment and returns the position they were written to. The
// data is not interpreted. With a boundary, the active segment is rotated afterward when it exceeds the maximum segment
// size. Without a boundary, the data might end in the middle of a transaction and the segment is never rotated.
func (l *LogFile) Append(data []byte, boundary *Boundary) (encoding.LogPosition, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.closed {
		return encoding.LogPosition{}, ErrClosed
	}

	position := l.writer.Position()
	if len(data) > 0 {
		if _, err := l.writer.Write(data); err != nil {
			return position, err
		}
		if err := l.syncPolicy.DataAppended(); err != nil {
			return position, err
		}
		AppendedBytesTotal.Add(float64(len(data)))
	}

	if boundary != nil && l.writer.Offset() >= l.maxSegmentSize {
		if err := l.rotate(*boundary); err != nil {
			return position, err
		}
	}
	return position, nil
}

// Rotate closes the active segment and continues with a new segment. The boundary describes the last transaction in
// the active segment.
func (l *LogFile) Rotate(boundary Boundary) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.closed {
		return ErrClosed
	}
	return l.rotate(boundary)
}

func (l *LogFile) rotate(boundary Boundary) error {
	RotationTotal.Inc()
	start := time.Now()

	previous := l.writer.Header()
	offset := l.writer.Offset()

	if err := l.syncPolicy.Shutdown(); err != nil {
		return err
	}
	// Cutting off the pre-allocated space makes the file size the end of the written data.
	if err := l.writer.Truncate(offset); err != nil {
		return errors.Join(err, l.syncPolicy.Startup(l.writer))
	}
	if err := l.writer.Close(); err != nil {
		return err
	}

	header := encoding.NewHeader(previous.LogVersion+1, l.kernelVersion, previous.StoreID)
	header.LastCommittedTxID = boundary.TransactionID
	header.LastAppendIndex = boundary.AppendIndex
	header.PreviousChecksum = boundary.Checksum
	nextWriter, err := segment.CreateSegment(l.directory, header, l.preAllocationSize)
	if err != nil {
		// Continue with the previous segment to stay usable.
		previousWriter, reopenErr := segment.OpenSegmentForAppend(l.directory, previous.LogVersion, offset)
		if reopenErr != nil {
			l.closed = true
			return errors.Join(err, reopenErr)
		}
		l.writer = previousWriter
		return errors.Join(err, l.syncPolicy.Startup(l.writer))
	}
	l.writer = nextWriter

	if err := l.syncPolicy.Startup(l.writer); err != nil {
		return err
	}

	l.rotationCallback(previous.LogVersion, header.LogVersion)

	duration := time.Since(start).Seconds()
	if duration > 1.0 {
		l.logger.Info("Segment rotation is too slow", "seconds", duration)
	}
	RotationDuration.Observe(duration)
	l.logger.V(1).Info("Rotated segment", "previousLogVersion", previous.LogVersion, "nextLogVersion", header.LogVersion, "lastAppendIndex", boundary.AppendIndex)
	return nil
}

// Truncate cuts the transaction log at the given position. Segments with a higher log version are deleted and the
// segment of the position becomes the active segment again. Truncation is refused while external readers hold any of
// the segments which would be deleted.
func (l *LogFile) Truncate(position encoding.LogPosition) error {
	l.pruneLock.Lock()
	defer l.pruneLock.Unlock()
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.closed {
		return ErrClosed
	}

	active := l.writer.Position()
	if err := l.validateTruncatePosition(position, active); err != nil {
		return err
	}

	if position.LogVersion < active.LogVersion {
		for logVersion := position.LogVersion + 1; logVersion <= active.LogVersion; logVersion++ {
			if l.registry.HasReaders(logVersion) {
				return fmt.Errorf("%w: truncating to %s would delete segment %d", ErrSegmentInUse, position, logVersion)
			}
		}
		if err := l.syncPolicy.Shutdown(); err != nil {
			return err
		}
		if err := l.writer.Close(); err != nil {
			return err
		}
		for logVersion := active.LogVersion; logVersion > position.LogVersion; logVersion-- {
			if err := segment.RemoveSegment(l.directory, logVersion); err != nil {
				l.closed = true
				return err
			}
		}
		writer, err := segment.OpenSegmentForAppend(l.directory, position.LogVersion, position.ByteOffset)
		if err != nil {
			l.closed = true
			return err
		}
		l.writer = writer
		if err := l.syncPolicy.Startup(l.writer); err != nil {
			return err
		}
	}

	if err := l.writer.Truncate(position.ByteOffset); err != nil {
		return err
	}
	TruncationTotal.Inc()
	l.logger.Info("Truncated transaction log", "position", position.String(), "previousEnd", active.String())
	return nil
}

func (l *LogFile) validateTruncatePosition(position encoding.LogPosition, active encoding.LogPosition) error {
	if position.ByteOffset < encoding.HeaderSize {
		return fmt.Errorf("%w: %s is inside the segment header", ErrInvalidPosition, position)
	}
	if active.Before(position) {
		return fmt.Errorf("%w: %s is after the end %s", ErrInvalidPosition, position, active)
	}
	if position.LogVersion == active.LogVersion {
		return nil
	}

	fileInfo, err := os.Stat(segment.FilePath(l.directory, position.LogVersion))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: segment of %s does not exist", ErrInvalidPosition, position)
		}
		return fmt.Errorf("reading the size of the segment file: %w", err)
	}
	if position.ByteOffset > fileInfo.Size() {
		return fmt.Errorf("%w: %s is after the end of its segment", ErrInvalidPosition, position)
	}
	return nil
}

// Prune deletes segments up to and including the given log version, lowest log version first. It stops at the first
// segment which has an external reader registered, and it never deletes the active segment. It returns the number of
// deleted segments.
func (l *LogFile) Prune(upToLogVersion uint64) (int, error) {
	l.pruneLock.Lock()
	defer l.pruneLock.Unlock()

	segments, err := segment.GetSegments(l.directory)
	if err != nil {
		return 0, err
	}
	active := l.HighestLogVersion()

	pruned := 0
	for _, logVersion := range segments {
		if logVersion > upToLogVersion || logVersion >= active {
			break
		}
		if l.registry.HasReaders(logVersion) {
			l.logger.V(1).Info("Pruning stopped at segment with external readers", "logVersion", logVersion)
			break
		}
		if err := segment.RemoveSegment(l.directory, logVersion); err != nil {
			return pruned, err
		}
		pruned++
		PrunedSegmentsTotal.Inc()
	}
	if pruned > 0 {
		l.logger.Info("Pruned segments", "count", pruned, "upToLogVersion", upToLogVersion)
	}
	return pruned, nil
}

// Sync flushes the active segment to stable storage regardless of the sync policy.
func (l *LogFile) Sync() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.closed {
		return ErrClosed
	}
	return l.writer.Sync()
}

// Close flushes pending changes according to the sync policy and closes the active segment. Calling Close more than
// once is fine.
func (l *LogFile) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	syncErr := l.syncPolicy.Shutdown()
	closeErr := l.writer.Close()
	return errors.Join(syncErr, closeErr)
}
