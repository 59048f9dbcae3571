package entry

import (
	"io"

	"github.com/backbone81/graph-txlog/internal/encoding"
)

// Writer serializes entries to an underlying writer. It keeps track of the checksum of the last closed checksum scope,
// which the next start entry needs to reference.
//
// Instances of Writer are NOT safe to use concurrently. You need to provide external synchronization.
type Writer struct {
	channel      *encoding.WritableChannel
	lastChecksum uint32
}

// NewWriter creates a new Writer. The previous checksum is the checksum the first start entry written will need to
// reference, usually taken from the segment header.
func NewWriter(writer io.Writer, previousChecksum uint32) *Writer {
	return &Writer{
		channel:      encoding.NewWritableChannel(writer),
		lastChecksum: previousChecksum,
	}
}

// Write serializes the entry with the serializer registered for its type and kernel version. The return value is the
// checksum when the entry closes a checksum scope, or NoChecksum otherwise.
func (w *Writer) Write(e Entry) (int64, error) {
	serializer, err := SerializerFor(e.Type(), e.KernelVersion())
	if err != nil {
		return NoChecksum, err
	}
	checksum, err := serializer.Write(w.channel, e)
	if err != nil {
		return NoChecksum, err
	}
	if checksum != NoChecksum && e.Type() != TypeDetachedCheckpoint {
		w.lastChecksum = uint32(checksum) //nolint:gosec // checksums are always in uint32 range
	}
	return checksum, nil
}

// LastChecksum returns the checksum of the last closed checksum scope.
func (w *Writer) LastChecksum() uint32 {
	return w.lastChecksum
}

// Written returns the number of bytes written so far.
func (w *Writer) Written() int64 {
	return w.channel.Written()
}
