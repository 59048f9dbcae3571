package logfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

var ErrUnsupportedOperation = errors.New("operation not supported on a read-only channel")

// ReadOnlyChannel provides read access to a single segment file. All write operations fail with
// ErrUnsupportedOperation.
//
// Read and Seek share the file offset and are NOT safe to use concurrently. ReadAt and Close are.
type ReadOnlyChannel struct {
	mutex sync.Mutex

	logVersion uint64
	file       *os.File
	registry   *Registry
	closed     bool
}

// ReadOnlyChannel implements the read side of io interfaces only. The write methods exist to fail loudly.
var (
	_ io.ReadSeekCloser = (*ReadOnlyChannel)(nil)
	_ io.ReaderAt       = (*ReadOnlyChannel)(nil)
	_ io.Writer         = (*ReadOnlyChannel)(nil)
)

func newReadOnlyChannel(logVersion uint64, file *os.File, registry *Registry) *ReadOnlyChannel {
	return &ReadOnlyChannel{
		logVersion: logVersion,
		file:       file,
		registry:   registry,
	}
}

// LogVersion returns the log version of the segment this channel reads from.
func (c *ReadOnlyChannel) LogVersion() uint64 {
	return c.logVersion
}

// Name returns the path of the segment file.
func (c *ReadOnlyChannel) Name() string {
	return c.file.Name()
}

// Read implements io.Reader.
func (c *ReadOnlyChannel) Read(p []byte) (int, error) {
	return c.file.Read(p)
}

// ReadAt implements io.ReaderAt.
func (c *ReadOnlyChannel) ReadAt(p []byte, offset int64) (int, error) {
	return c.file.ReadAt(p, offset)
}

// Seek implements io.Seeker.
func (c *ReadOnlyChannel) Seek(offset int64, whence int) (int64, error) {
	return c.file.Seek(offset, whence)
}

// Size returns the current size of the segment file.
func (c *ReadOnlyChannel) Size() (int64, error) {
	fileInfo, err := c.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("reading the size of the segment file: %w", err)
	}
	return fileInfo.Size(), nil
}

// Write always fails with ErrUnsupportedOperation.
func (c *ReadOnlyChannel) Write([]byte) (int, error) {
	return 0, ErrUnsupportedOperation
}

// WriteAll always fails with ErrUnsupportedOperation.
func (c *ReadOnlyChannel) WriteAll([]byte) error {
	return ErrUnsupportedOperation
}

// Truncate always fails with ErrUnsupportedOperation.
func (c *ReadOnlyChannel) Truncate(int64) error {
	return ErrUnsupportedOperation
}

// Close unregisters the channel from the external reader registry and closes the file afterward. Unregistering first
// makes sure the segment is only considered for pruning once nothing reads it anymore. Calling Close more than once is
// fine.
func (c *ReadOnlyChannel) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.registry != nil {
		c.registry.Unregister(c.logVersion, c)
	}
	if err := c.file.Close(); err != nil {
		return fmt.Errorf("closing the segment file: %w", err)
	}
	return nil
}
