package segment

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/backbone81/graph-txlog/internal/encoding"
	"github.com/backbone81/graph-txlog/internal/entry"
)

// Tail describes the written data of a segment up to the last closed checksum scope.
type Tail struct {
	// The position just past the last commit, rollback or chunk end. This is where the next transaction starts.
	End encoding.LogPosition

	// The checksum of the last closed checksum scope. The next start entry needs to reference it.
	LastChecksum uint32

	// The highest append index of a closed checksum scope, or the one recorded in the segment header.
	LastAppendIndex uint64

	// Reports if data follows End which does not belong to a closed checksum scope. This is either a transaction
	// which is not finished yet, or an entry which was only written partially.
	Incomplete bool
}

// VisitFunc is called for every entry read by Scan. Returning false stops the scan.
type VisitFunc func(e entry.Entry, position encoding.LogPosition) bool

// scanBufferSize is the chunk size for searching the last non-zero byte of a segment.
const scanBufferSize = 64 * 1024

// Scan reads the entries of a segment file of the given size, starting right after its header, and passes each one
// to the visitor until it returns false. The visitor may be nil.
//
// An entry which was only written partially ends the scan like the end of the written data does. A partial write
// leaves nothing but zeros or the end of the file behind its prefix, so the entry failing to parse ends beyond the
// last non-zero byte of the file. Any other corruption is returned as an error.
func Scan(source io.ReaderAt, size int64, header encoding.Header, visit VisitFunc, options ...entry.ReaderOption) (Tail, error) {
	start := encoding.LogPosition{LogVersion: header.LogVersion, ByteOffset: encoding.HeaderSize}
	tail := Tail{
		End:             start,
		LastChecksum:    header.PreviousChecksum,
		LastAppendIndex: header.LastAppendIndex,
	}
	reader := entry.NewReader(
		bufio.NewReader(io.NewSectionReader(source, encoding.HeaderSize, max(size-encoding.HeaderSize, 0))),
		start,
		append([]entry.ReaderOption{entry.WithPreviousChecksum(header.PreviousChecksum)}, options...)...,
	)

	// Append indexes only count once the checksum scope they belong to is closed.
	var pendingAppendIndex uint64
	for reader.Next() {
		value := reader.Value()
		if appendIndex, ok := entry.AppendIndexOf(value); ok {
			pendingAppendIndex = max(pendingAppendIndex, appendIndex)
		}
		if checksum, ok := entry.ChecksumOf(value); ok {
			tail.End = reader.End()
			tail.LastChecksum = checksum
			tail.LastAppendIndex = max(tail.LastAppendIndex, pendingAppendIndex)
			pendingAppendIndex = 0
		}
		if visit != nil && !visit(value, reader.Position()) {
			tail.Incomplete = tail.End != reader.End()
			return tail, nil
		}
	}
	if err := reader.Err(); err != nil {
		torn, tornErr := isTorn(source, size, reader.Consumed(), err)
		if tornErr != nil {
			return Tail{}, errors.Join(err, tornErr)
		}
		if !torn {
			return Tail{}, fmt.Errorf("scanning log version %d: %w", header.LogVersion, err)
		}
		tail.Incomplete = true
		return tail, nil
	}
	tail.Incomplete = tail.End != reader.End()
	return tail, nil
}

// isTorn reports if the error was caused by an entry which was only written partially. Such an entry either reaches
// the end of the file, or its last byte lies in the zeros after the last non-zero byte.
func isTorn(source io.ReaderAt, size int64, consumed encoding.LogPosition, err error) (bool, error) {
	if !errors.Is(err, entry.ErrCorruptedEntry) {
		return false, nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true, nil
	}
	lastNonZero, err := lastNonZeroOffset(source, size)
	if err != nil {
		return false, err
	}
	return consumed.ByteOffset-1 > lastNonZero, nil
}

// lastNonZeroOffset returns the offset of the last non-zero byte, or -1 when all bytes are zero.
func lastNonZeroOffset(source io.ReaderAt, size int64) (int64, error) {
	buffer := make([]byte, scanBufferSize)
	for end := size; end > 0; {
		begin := max(end-scanBufferSize, 0)
		chunk := buffer[:end-begin]
		if _, err := source.ReadAt(chunk, begin); err != nil && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("searching the end of the written data: %w", err)
		}
		for i := len(chunk) - 1; i >= 0; i-- {
			if chunk[i] != 0 {
				return begin + int64(i), nil
			}
		}
		end = begin
	}
	return -1, nil
}
