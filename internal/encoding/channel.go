package encoding

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

var (
	ErrChecksumMismatch = errors.New("transaction log checksum mismatch")
	ErrTruncated        = errors.New("transaction log data is truncated")
	ErrFieldTooLarge    = errors.New("transaction log field exceeds the maximum size")
)

// ChecksumSize is the number of bytes a checksum occupies on disk.
const ChecksumSize = 4

// MaxVariableLength limits the size of length-prefixed fields. It protects against huge allocations caused by a
// corrupted length prefix.
const MaxVariableLength = 64 * 1024 * 1024

var crc32ChecksumTable = crc32.MakeTable(crc32.Castagnoli)

// Checksum calculates the checksum the transaction log uses over the given data.
func Checksum(data []byte) uint32 {
	return crc32.Checksum(data, crc32ChecksumTable)
}

// WritableChannel serializes fixed width fields to a writer and keeps a running checksum over everything written
// since the last call to BeginChecksum.
//
// Errors are sticky. After the first failed write, all following writes are ignored and Err() reports the failure.
//
// Instances of WritableChannel are NOT safe to use concurrently. You need to provide external synchronization.
type WritableChannel struct {
	writer   io.Writer
	scratch  [8]byte
	checksum uint32
	written  int64
	err      error
}

// NewWritableChannel creates a channel writing to the given writer.
func NewWritableChannel(writer io.Writer) *WritableChannel {
	return &WritableChannel{
		writer: writer,
	}
}

// BeginChecksum starts a new checksum scope. Everything written afterward is covered by the next PutChecksum.
func (c *WritableChannel) BeginChecksum() {
	c.checksum = 0
}

// PutByte writes a single byte.
func (c *WritableChannel) PutByte(value byte) {
	c.scratch[0] = value
	c.write(c.scratch[:1])
}

// PutUint16 writes a two byte unsigned integer.
func (c *WritableChannel) PutUint16(value uint16) {
	Endian.PutUint16(c.scratch[:2], value)
	c.write(c.scratch[:2])
}

// PutUint32 writes a four byte unsigned integer.
func (c *WritableChannel) PutUint32(value uint32) {
	Endian.PutUint32(c.scratch[:4], value)
	c.write(c.scratch[:4])
}

// PutInt32 writes a four byte signed integer.
func (c *WritableChannel) PutInt32(value int32) {
	c.PutUint32(uint32(value)) //nolint:gosec // two's complement conversion is intended
}

// PutUint64 writes an eight byte unsigned integer.
func (c *WritableChannel) PutUint64(value uint64) {
	Endian.PutUint64(c.scratch[:8], value)
	c.write(c.scratch[:8])
}

// PutInt64 writes an eight byte signed integer.
func (c *WritableChannel) PutInt64(value int64) {
	c.PutUint64(uint64(value)) //nolint:gosec // two's complement conversion is intended
}

// Put writes the given bytes as they are.
func (c *WritableChannel) Put(data []byte) {
	if len(data) == 0 {
		return
	}
	c.write(data)
}

// PutChecksum writes the checksum of the current scope and returns it. The checksum itself is not part of any scope.
func (c *WritableChannel) PutChecksum() uint32 {
	checksum := c.checksum
	Endian.PutUint32(c.scratch[:4], checksum)
	if c.err != nil {
		return checksum
	}
	n, err := c.writer.Write(c.scratch[:4])
	c.written += int64(n)
	if err != nil {
		c.err = fmt.Errorf("writing transaction log checksum: %w", err)
	}
	return checksum
}

// Written returns the number of bytes written through this channel.
func (c *WritableChannel) Written() int64 {
	return c.written
}

// Err returns the first error which occurred while writing.
func (c *WritableChannel) Err() error {
	return c.err
}

func (c *WritableChannel) write(data []byte) {
	if c.err != nil {
		return
	}
	n, err := c.writer.Write(data)
	c.checksum = crc32.Update(c.checksum, crc32ChecksumTable, data[:n])
	c.written += int64(n)
	if err != nil {
		c.err = fmt.Errorf("writing transaction log data: %w", err)
	}
}

// ReadableChannel deserializes fixed width fields from a reader and keeps a running checksum over everything read
// since the last call to BeginChecksum. It keeps track of the log position it is reading from.
//
// Errors are sticky. After the first failed read, all following reads return zero values and Err() reports the
// failure. Running out of data is reported as ErrTruncated joined with io.EOF or io.ErrUnexpectedEOF.
//
// Instances of ReadableChannel are NOT safe to use concurrently. You need to provide external synchronization.
type ReadableChannel struct {
	reader   io.Reader
	scratch  [8]byte
	checksum uint32
	position LogPosition
	err      error
}

// NewReadableChannel creates a channel reading from the given reader. The position is the log position of the first
// byte the reader returns.
func NewReadableChannel(reader io.Reader, position LogPosition) *ReadableChannel {
	return &ReadableChannel{
		reader:   reader,
		position: position,
	}
}

// BeginChecksum starts a new checksum scope. The seed bytes are bytes which were already read but belong to the new
// scope, like the entry header which needs to be read before the entry type is known.
func (c *ReadableChannel) BeginChecksum(seed ...byte) {
	c.checksum = crc32.Update(0, crc32ChecksumTable, seed)
}

// Byte reads a single byte.
func (c *ReadableChannel) Byte() byte {
	if !c.read(c.scratch[:1]) {
		return 0
	}
	return c.scratch[0]
}

// Uint16 reads a two byte unsigned integer.
func (c *ReadableChannel) Uint16() uint16 {
	if !c.read(c.scratch[:2]) {
		return 0
	}
	return Endian.Uint16(c.scratch[:2])
}

// Uint32 reads a four byte unsigned integer.
func (c *ReadableChannel) Uint32() uint32 {
	if !c.read(c.scratch[:4]) {
		return 0
	}
	return Endian.Uint32(c.scratch[:4])
}

// Int32 reads a four byte signed integer.
func (c *ReadableChannel) Int32() int32 {
	return int32(c.Uint32()) //nolint:gosec // two's complement conversion is intended
}

// Uint64 reads an eight byte unsigned integer.
func (c *ReadableChannel) Uint64() uint64 {
	if !c.read(c.scratch[:8]) {
		return 0
	}
	return Endian.Uint64(c.scratch[:8])
}

// Int64 reads an eight byte signed integer.
func (c *ReadableChannel) Int64() int64 {
	return int64(c.Uint64()) //nolint:gosec // two's complement conversion is intended
}

// Bytes reads exactly length bytes into a newly allocated slice. A negative length or a length above
// MaxVariableLength is treated as corruption.
func (c *ReadableChannel) Bytes(length int) []byte {
	if c.err != nil {
		return nil
	}
	if length < 0 {
		c.err = fmt.Errorf("%w: negative length %d", ErrTruncated, length)
		return nil
	}
	if length > MaxVariableLength {
		c.err = fmt.Errorf("%w: length %d", ErrFieldTooLarge, length)
		return nil
	}
	data := make([]byte, length)
	if length > 0 && !c.read(data) {
		return nil
	}
	return data
}

// Skip reads and discards length bytes. The discarded bytes are still part of the checksum scope.
func (c *ReadableChannel) Skip(length int) {
	for length > 0 && c.err == nil {
		n := min(length, len(c.scratch))
		c.read(c.scratch[:n])
		length -= n
	}
}

// EndChecksumAndValidate reads the stored checksum and compares it with the checksum of the current scope. The
// calculated checksum is returned. A mismatch sets ErrChecksumMismatch.
func (c *ReadableChannel) EndChecksumAndValidate() uint32 {
	calculated := c.checksum
	stored := c.Uint32()
	if c.err != nil {
		return calculated
	}
	if stored != calculated {
		c.err = fmt.Errorf("%w: stored %08x, calculated %08x at %s", ErrChecksumMismatch, stored, calculated, c.position)
	}
	return calculated
}

// Position returns the log position of the next byte to read.
func (c *ReadableChannel) Position() LogPosition {
	return c.position
}

// Err returns the first error which occurred while reading.
func (c *ReadableChannel) Err() error {
	return c.err
}

func (c *ReadableChannel) read(data []byte) bool {
	if c.err != nil {
		return false
	}
	n, err := io.ReadFull(c.reader, data)
	c.position.ByteOffset += int64(n)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			c.err = fmt.Errorf("%w: %w", ErrTruncated, err)
		} else {
			c.err = fmt.Errorf("reading transaction log data: %w", err)
		}
		return false
	}
	c.checksum = crc32.Update(c.checksum, crc32ChecksumTable, data)
	return true
}
