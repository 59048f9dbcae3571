// Package checkpoint persists detached checkpoints. A checkpoint marks a position in the transaction log from which
// recovery can start, and is only valid for the store it was written for.
package checkpoint

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/backbone81/graph-txlog/internal/encoding"
	"github.com/backbone81/graph-txlog/internal/entry"
)

var (
	ErrNoCheckpoint    = errors.New("no checkpoint available")
	ErrStoreIDMismatch = errors.New("checkpoint belongs to a different store")
)

// FileName is the name of the checkpoint file inside the transaction log directory.
const FileName = "checkpoint.log"

// Request describes a checkpoint to write.
type Request struct {
	// The id of the last transaction covered by the checkpoint.
	TransactionID uint64

	// The highest append index covered by the checkpoint.
	LastAppendIndex uint64

	// The position recovery starts from.
	Position encoding.LogPosition

	// Why the checkpoint was written. Truncated to entry.MaxReasonLength bytes.
	Reason string

	// Reports if the checkpoint also covers external consensus progress. Requires kernel version 2.
	ConsensusIndexInCheckpoint bool
}

// File appends checkpoints to the checkpoint file of a transaction log directory.
//
// File is safe to use from multiple Go routines concurrently.
type File struct {
	mutex sync.Mutex

	filePath      string
	storeID       encoding.StoreID
	kernelVersion encoding.KernelVersion
	now           func() time.Time
	logger        logr.Logger
}

// Option describes the function signature which all checkpoint file options need to implement.
type Option func(f *File)

// WithKernelVersion overwrites the kernel version new checkpoints are written with.
func WithKernelVersion(kernelVersion encoding.KernelVersion) Option {
	return func(f *File) {
		f.kernelVersion = kernelVersion
	}
}

// WithClock overwrites the clock providing the checkpoint time.
func WithClock(now func() time.Time) Option {
	return func(f *File) {
		f.now = now
	}
}

// WithLogger sets the logger. Nothing is logged by default.
func WithLogger(logger logr.Logger) Option {
	return func(f *File) {
		f.logger = logger
	}
}

// New creates a File for the checkpoint file in the directory. The file itself is created with the first checkpoint.
func New(directory string, storeID encoding.StoreID, options ...Option) *File {
	newFile := File{
		filePath:      filepath.Join(directory, FileName),
		storeID:       storeID,
		kernelVersion: encoding.LatestKernelVersion,
		now:           time.Now,
		logger:        logr.Discard(),
	}
	for _, option := range options {
		option(&newFile)
	}
	return &newFile
}

// FilePath returns the path of the checkpoint file.
func (f *File) FilePath() string {
	return f.filePath
}

// ForceCheckpoint appends a detached checkpoint and flushes it to stable storage before returning. A torn checkpoint
// left behind by an earlier failure is cut off first.
func (f *File) ForceCheckpoint(request Request) (entry.DetachedCheckpoint, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	checkpoint := entry.DetachedCheckpoint{
		Version:                    f.kernelVersion,
		TransactionID:              request.TransactionID,
		LastAppendIndex:            request.LastAppendIndex,
		LogPosition:                request.Position,
		CheckpointTime:             f.now().UnixMilli(),
		StoreID:                    f.storeID,
		Reason:                     request.Reason,
		ConsensusIndexInCheckpoint: request.ConsensusIndexInCheckpoint,
	}
	var buffer bytes.Buffer
	checksum, err := entry.NewWriter(&buffer, 0).Write(checkpoint)
	if err != nil {
		return entry.DetachedCheckpoint{}, err
	}
	checkpoint.Checksum = uint32(checksum) //nolint:gosec // checksums are always in uint32 range

	file, err := os.OpenFile(f.filePath, os.O_RDWR|os.O_CREATE, 0o664) //nolint:gosec // We can not validate paths in a library.
	if err != nil {
		return entry.DetachedCheckpoint{}, fmt.Errorf("opening the checkpoint file %q: %w", f.filePath, err)
	}
	if err := appendRecord(file, buffer.Bytes()); err != nil {
		closeErr := file.Close()
		return entry.DetachedCheckpoint{}, errors.Join(fmt.Errorf("the checkpoint file %q: %w", f.filePath, err), closeErr)
	}
	if err := file.Close(); err != nil {
		return entry.DetachedCheckpoint{}, fmt.Errorf("closing the checkpoint file %q: %w", f.filePath, err)
	}

	f.logger.Info("Checkpoint written",
		"transactionID", checkpoint.TransactionID,
		"position", checkpoint.LogPosition.String(),
		"reason", checkpoint.Reason,
	)
	return checkpoint, nil
}

func appendRecord(file *os.File, record []byte) error {
	_, end, torn, err := readAll(file)
	if err != nil {
		return err
	}
	if torn {
		if err := file.Truncate(end); err != nil {
			return fmt.Errorf("cutting off torn checkpoint: %w", err)
		}
	}
	if _, err := file.WriteAt(record, end); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("flushing checkpoint: %w", err)
	}
	return nil
}

// Latest returns the checkpoint written last. A torn checkpoint at the end of the file is ignored. The checkpoint
// needs to belong to the store the File was created for.
func (f *File) Latest() (entry.DetachedCheckpoint, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	file, err := os.Open(f.filePath) //nolint:gosec // We can not validate paths in a library.
	if err != nil {
		if os.IsNotExist(err) {
			return entry.DetachedCheckpoint{}, ErrNoCheckpoint
		}
		return entry.DetachedCheckpoint{}, fmt.Errorf("opening the checkpoint file %q: %w", f.filePath, err)
	}
	defer file.Close() //nolint:errcheck // The file was only read from.

	checkpoints, _, torn, err := readAll(file)
	if err != nil {
		return entry.DetachedCheckpoint{}, fmt.Errorf("the checkpoint file %q: %w", f.filePath, err)
	}
	if torn {
		f.logger.V(1).Info("Ignoring torn checkpoint at the end of the checkpoint file", "filePath", f.filePath)
	}
	if len(checkpoints) == 0 {
		return entry.DetachedCheckpoint{}, ErrNoCheckpoint
	}

	latest := checkpoints[len(checkpoints)-1]
	if latest.StoreID != f.storeID {
		return entry.DetachedCheckpoint{}, fmt.Errorf("%w: expected store %s but got %s", ErrStoreIDMismatch, f.storeID, latest.StoreID)
	}
	return latest, nil
}

// readAll reads all checkpoints from the start of the file. It returns the offset just past the last complete
// checkpoint and reports if an incomplete checkpoint follows.
func readAll(file *os.File) ([]entry.DetachedCheckpoint, int64, bool, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, 0, false, fmt.Errorf("seeking to the start: %w", err)
	}

	var result []entry.DetachedCheckpoint
	reader := entry.NewReader(bufio.NewReader(file), encoding.LogPosition{})
	for reader.Next() {
		checkpoint, ok := reader.Value().(entry.DetachedCheckpoint)
		if !ok {
			return nil, 0, false, fmt.Errorf("%w: unexpected %s entry at %s", entry.ErrCorruptedEntry, reader.Value().Type(), reader.Position())
		}
		result = append(result, checkpoint)
	}
	if err := reader.Err(); err != nil {
		if errors.Is(err, encoding.ErrTruncated) {
			return result, reader.End().ByteOffset, true, nil
		}
		return nil, 0, false, err
	}
	return result, reader.End().ByteOffset, false, nil
}
