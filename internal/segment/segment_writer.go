package segment

import (
	"errors"
	"fmt"
	"os"

	"github.com/backbone81/graph-txlog/internal/encoding"
	"github.com/backbone81/graph-txlog/internal/utils"
)

// DefaultPreAllocationSize is the size new segment files are pre-allocated with. Zero bytes after the written data are
// recognized as the end of the log.
const DefaultPreAllocationSize = 16 * 1024 * 1024

// Writer provides functionality for appending raw bytes to a single segment file.
//
// Instances of Writer are NOT safe to use concurrently. You need to provide external synchronization.
type Writer struct {
	noCopy utils.NoCopy

	// The path to the file the writer is writing to.
	filePath string

	// The file the writer is writing data to.
	file *os.File

	// The header of the segment file.
	header encoding.Header

	// The current offset in bytes from the start of the file. This is where the next write goes to.
	offset int64
}

// CreateSegment creates a new segment file in the given directory. It will create the new file with the file extension
// ".new" appended to the file name and rename it after the header has been written to. This ensures that the new
// segment file is only visible in the directory when the header was correctly written and flushed to stable storage.
//
// directory is the directory all segment files are located in.
// header is written to the start of the file. Its log version is used for deriving the file name.
// preAllocationSize is the size of the file which is pre-allocated.
func CreateSegment(directory string, header encoding.Header, preAllocationSize int64) (*Writer, error) {
	segmentFilePath := FilePath(directory, header.LogVersion)
	if _, err := os.Stat(segmentFilePath); err == nil {
		return nil, fmt.Errorf("the segment file %q: %w", segmentFilePath, os.ErrExist)
	}

	// Remove any temporary segment file which might be there from an earlier failure.
	newSegmentFilePath := segmentFilePath + ".new"
	if err := os.Remove(newSegmentFilePath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing the segment file %q: %w", newSegmentFilePath, err)
	}

	// Create the temporary segment file and pre-allocate its size.
	segmentFile, err := os.OpenFile(newSegmentFilePath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o664) //nolint:gosec // We can not validate paths in a library.
	if err != nil {
		return nil, fmt.Errorf("creating the segment file %q: %w", newSegmentFilePath, err)
	}

	if err := initSegmentFile(segmentFile, header, preAllocationSize); err != nil {
		closeErr := segmentFile.Close()
		removeErr := os.Remove(newSegmentFilePath)
		return nil, errors.Join(fmt.Errorf("the segment file %q: %w", newSegmentFilePath, err), closeErr, removeErr)
	}

	// Rename the temporary segment file to the final one.
	segmentFile, err = renameSegment(segmentFile, encoding.HeaderSize, segmentFilePath)
	if err != nil {
		return nil, err
	}

	return &Writer{
		filePath: segmentFilePath,
		file:     segmentFile,
		header:   header,
		offset:   encoding.HeaderSize,
	}, nil
}

func initSegmentFile(segmentFile *os.File, header encoding.Header, preAllocationSize int64) error {
	if err := segmentFile.Truncate(max(preAllocationSize, encoding.HeaderSize)); err != nil {
		return fmt.Errorf("pre-allocating: %w", err)
	}

	// Write the header to the segment file and flush the content to stable storage.
	var buffer [encoding.HeaderSize]byte
	if err := encoding.WriteHeader(segmentFile, buffer[:], header); err != nil {
		return err
	}
	if err := segmentFile.Sync(); err != nil {
		return fmt.Errorf("flushing: %w", err)
	}
	return nil
}

// OpenSegmentForAppend opens an existing segment file for appending at the given offset.
func OpenSegmentForAppend(directory string, logVersion uint64, offset int64) (*Writer, error) {
	if offset < encoding.HeaderSize {
		return nil, fmt.Errorf("offset %d is inside the segment header", offset)
	}

	segmentFilePath := FilePath(directory, logVersion)
	segmentFile, err := os.OpenFile(segmentFilePath, os.O_RDWR, 0) //nolint:gosec // We can not validate paths in a library.
	if err != nil {
		return nil, fmt.Errorf("opening the segment file %q: %w", segmentFilePath, err)
	}

	header, err := readHeader(segmentFile, logVersion)
	if err != nil {
		closeErr := segmentFile.Close()
		return nil, errors.Join(fmt.Errorf("the segment file %q: %w", segmentFilePath, err), closeErr)
	}

	return &Writer{
		filePath: segmentFilePath,
		file:     segmentFile,
		header:   header,
		offset:   offset,
	}, nil
}

// FilePath returns the file path of the file this writer is writing to.
func (w *Writer) FilePath() string {
	return w.filePath
}

// Header returns the segment file header.
func (w *Writer) Header() encoding.Header {
	return w.header
}

// Offset returns the offset in bytes from the start of the file where the next write goes to.
func (w *Writer) Offset() int64 {
	return w.offset
}

// Position returns the log position where the next write goes to.
func (w *Writer) Position() encoding.LogPosition {
	return encoding.LogPosition{
		LogVersion: w.header.LogVersion,
		ByteOffset: w.offset,
	}
}

// Write appends the data at the current offset. It implements io.Writer.
func (w *Writer) Write(data []byte) (int, error) {
	n, err := w.file.WriteAt(data, w.offset)
	w.offset += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing to segment file %q: %w", w.filePath, err)
	}
	return n, nil
}

// Sync flushes the written data to stable storage.
func (w *Writer) Sync() error {
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("flushing the segment file %q: %w", w.filePath, err)
	}
	return nil
}

// Truncate cuts the segment file at the given offset and continues writing from there. This also removes any
// pre-allocated space after the offset.
func (w *Writer) Truncate(offset int64) error {
	if offset < encoding.HeaderSize {
		return fmt.Errorf("offset %d is inside the segment header", offset)
	}
	if err := w.file.Truncate(offset); err != nil {
		return fmt.Errorf("truncating the segment file %q: %w", w.filePath, err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("flushing the segment file %q: %w", w.filePath, err)
	}
	w.offset = offset
	return nil
}

// Close closes the file. It does not flush.
func (w *Writer) Close() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing the segment file %q: %w", w.filePath, err)
	}
	return nil
}
