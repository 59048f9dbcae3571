package catchup

import (
	"errors"
	"io"
	"slices"

	"github.com/backbone81/graph-txlog/internal/encoding"
	"github.com/backbone81/graph-txlog/internal/logfile"
)

// LogChannel is a read-only view on the byte range [StartOffset, EndOffset) of a single segment.
//
// The caller owns the channel and needs to close it. Closing releases the file and allows the segment to be pruned.
type LogChannel struct {
	LogVersion  uint64
	StartOffset int64
	EndOffset   int64

	// The append index of the first entry in range.
	StartAppendIndex uint64

	// The highest append index in range.
	LastAppendIndex uint64

	// The kernel version of the first entry in range. Falls back to the kernel version of the segment header when the
	// range is empty.
	KernelVersion encoding.KernelVersion

	channel *logfile.ReadOnlyChannel
}

// Channel returns the read-only channel on the whole segment file.
func (c *LogChannel) Channel() *logfile.ReadOnlyChannel {
	return c.channel
}

// Size returns the number of bytes in range.
func (c *LogChannel) Size() int64 {
	return c.EndOffset - c.StartOffset
}

// StartPosition returns the log position of the first byte in range.
func (c *LogChannel) StartPosition() encoding.LogPosition {
	return encoding.LogPosition{LogVersion: c.LogVersion, ByteOffset: c.StartOffset}
}

// Reader returns a reader limited to the range of the channel. Every call returns an independent reader.
func (c *LogChannel) Reader() *io.SectionReader {
	return io.NewSectionReader(c.channel, c.StartOffset, c.Size())
}

// Close releases the channel. Calling Close more than once is fine.
func (c *LogChannel) Close() error {
	return c.channel.Close()
}

// TransactionLogChannels is an ordered list of channels with increasing append indexes. Closing it closes all of its
// channels.
type TransactionLogChannels struct {
	channels []*LogChannel
}

// Channels returns the channels in log order.
func (t *TransactionLogChannels) Channels() []*LogChannel {
	return slices.Clone(t.channels)
}

// Len returns the number of channels.
func (t *TransactionLogChannels) Len() int {
	return len(t.channels)
}

// Close closes all channels. Calling Close more than once is fine.
func (t *TransactionLogChannels) Close() error {
	return closeChannels(t.channels)
}

func closeChannels(channels []*LogChannel) error {
	var errs []error
	for _, channel := range channels {
		if err := channel.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
