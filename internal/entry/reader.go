package entry

import (
	"errors"
	"fmt"
	"io"

	"github.com/backbone81/graph-txlog/internal/encoding"
	"github.com/backbone81/graph-txlog/internal/utils"
)

// Reader provides functionality for reading entries one after the other. It dispatches every entry to the serializer
// of its kernel version and type code, and verifies that start entries reference the checksum of the last closed
// checksum scope.
//
// Instances of Reader are NOT safe to use concurrently. You need to provide external synchronization.
type Reader struct {
	noCopy utils.NoCopy

	channel              *encoding.ReadableChannel
	commandReaderFactory CommandReaderFactory

	// The checksum of the last closed checksum scope. Only valid when lastChecksumKnown is true. A reader starting in
	// the middle of a segment does not know it until the first scope is closed.
	lastChecksum      uint32
	lastChecksumKnown bool

	// The value the reader returns together with its start position. Only contains useful data if err is nil.
	value    Entry
	position encoding.LogPosition

	// The position just past the last entry which was read successfully.
	end encoding.LogPosition

	done bool
	err  error
}

// ReaderOption describes the function signature which all reader options need to implement.
type ReaderOption func(r *Reader)

// WithCommandReaderFactory overwrites the default command reader factory.
func WithCommandReaderFactory(commandReaderFactory CommandReaderFactory) ReaderOption {
	return func(r *Reader) {
		r.commandReaderFactory = commandReaderFactory
	}
}

// WithPreviousChecksum seeds the checksum chain verification. Use it when reading from the start of a segment with
// the previous checksum stored in the segment header.
func WithPreviousChecksum(previousChecksum uint32) ReaderOption {
	return func(r *Reader) {
		r.lastChecksum = previousChecksum
		r.lastChecksumKnown = true
	}
}

// NewReader creates a new Reader. The position is the log position of the first byte the reader returns.
func NewReader(reader io.Reader, position encoding.LogPosition, options ...ReaderOption) *Reader {
	newReader := Reader{
		channel:              encoding.NewReadableChannel(reader, position),
		commandReaderFactory: DefaultCommandReaderFactory,
		position:             position,
		end:                  position,
	}
	for _, option := range options {
		option(&newReader)
	}
	return &newReader
}

// Next reports if an entry has been successfully read. When it returns true, Err() returns nil and Value() contains
// valid data. When it returns false, Err() is nil if the end of the written data was reached, or it contains the
// error. Corrupted data is reported with ErrCorruptedEntry joined with the specific cause.
func (r *Reader) Next() bool {
	if r.done || r.err != nil {
		return false
	}
	value, err := r.next()
	if err != nil {
		if errors.Is(err, io.EOF) && !errors.Is(err, encoding.ErrTruncated) {
			r.done = true
			return false
		}
		if isFormatError(err) {
			err = errors.Join(ErrCorruptedEntry, err)
		}
		r.err = err
		r.value = nil
		return false
	}
	r.value = value
	return true
}

func (r *Reader) next() (Entry, error) {
	start := r.channel.Position()
	version := encoding.KernelVersion(r.channel.Byte())
	if err := r.channel.Err(); err != nil {
		if errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			// No byte left at an entry boundary, this is the regular end of the written data.
			return nil, io.EOF
		}
		return nil, err
	}
	if version == 0 {
		// A zero byte at an entry boundary marks the end of the written data, for example in pre-allocated space.
		return nil, io.EOF
	}
	if !version.IsSupported() {
		return nil, fmt.Errorf("%w: %d at %s", encoding.ErrUnsupportedKernelVersion, version, start)
	}
	entryType := Type(r.channel.Byte())
	if err := r.channel.Err(); err != nil {
		return nil, err
	}
	serializer, err := SerializerFor(entryType, version)
	if err != nil {
		return nil, fmt.Errorf("%w at %s", err, start)
	}
	value, err := serializer.Parse(version, r.channel, start, r.commandReaderFactory)
	if err != nil {
		return nil, err
	}

	if startEntry, ok := value.(Start); ok && r.lastChecksumKnown && startEntry.PreviousChecksum != r.lastChecksum {
		return nil, fmt.Errorf("%w: start entry at %s references %08x but the previous checksum is %08x", ErrChecksumChainBroken, start, startEntry.PreviousChecksum, r.lastChecksum)
	}
	if checksum, ok := ChecksumOf(value); ok {
		r.lastChecksum = checksum
		r.lastChecksumKnown = true
	}

	r.position = start
	r.end = r.channel.Position()
	return value, nil
}

// Value returns the last entry read. The value is only valid after a call to Next() which returned true.
func (r *Reader) Value() Entry {
	return r.value
}

// Position returns the position of the first byte of the last entry read.
func (r *Reader) Position() encoding.LogPosition {
	return r.position
}

// End returns the position just past the last entry which was read successfully. Before the first entry was read,
// this is the position the reader was created with.
func (r *Reader) End() encoding.LogPosition {
	return r.end
}

// Consumed returns the position just past the last byte read from the underlying reader. After a failed call to
// Next(), this includes the bytes of the entry which could not be parsed.
func (r *Reader) Consumed() encoding.LogPosition {
	return r.channel.Position()
}

// LastChecksum returns the checksum of the last closed checksum scope, if it is known.
func (r *Reader) LastChecksum() (uint32, bool) {
	return r.lastChecksum, r.lastChecksumKnown
}

// Err returns the error for the last call to Next(). It is nil when the end of the written data was reached.
func (r *Reader) Err() error {
	return r.err
}
