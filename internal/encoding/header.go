package encoding

import (
	"errors"
	"fmt"
	"io"
)

var (
	ErrHeaderInvalidMagicBytes  = errors.New("invalid transaction log header magic bytes")
	ErrHeaderUnsupportedVersion = errors.New("unsupported transaction log header version")
)

// Header describes the segment file header which is located at the start of every segment file.
type Header struct {
	// These are the magic bytes to identify a segment file. This must always be "TXL" followed by a zero value byte.
	// Encoded as four bytes.
	Magic [4]byte

	// The version of the header format. This allows us to evolve the header over time if necessary. Encoded as two
	// bytes.
	Version uint16

	// The kernel version which was active when the segment was created. Entries carry their own kernel version, this
	// only serves as a fallback for describing empty segments. Encoded as a single byte followed by a reserved byte.
	KernelVersion KernelVersion

	// The log version of the segment. Note that the file name and this header value should always match. To have the
	// log version stored in the header makes it possible to detect accidental file renames. Encoded as eight bytes.
	LogVersion uint64

	// The id of the last transaction committed before this segment was started. Encoded as eight bytes.
	LastCommittedTxID uint64

	// The highest append index written before this segment was started. The first entry of this segment carries the
	// next higher append index. Encoded as eight bytes.
	LastAppendIndex uint64

	// The checksum of the last checksum-terminated entry written before this segment was started. The first start
	// entry of this segment needs to reference this checksum. Encoded as four bytes.
	PreviousChecksum uint32

	// The store this segment belongs to. Encoded as sixteen bytes.
	StoreID StoreID
}

// HeaderSize provides the size in bytes of the header including reserved space. Helpful for reading the full header
// before decoding individual elements. The first entry of every segment starts at this offset.
const HeaderSize = 64

// headerUsedSize is the number of bytes actually carrying data. The remaining bytes up to HeaderSize are reserved and
// written as zeros.
const headerUsedSize = 4 + 2 + 1 + 1 + 8 + 8 + 8 + 4 + StoreIDSize

// Magic holds the magic bytes expected at the start of the file.
var Magic = [4]byte{'T', 'X', 'L', 0}

// HeaderVersion provides the currently supported header version.
const HeaderVersion = 1

// NewHeader returns a header for the given log version with all constant fields filled in.
func NewHeader(logVersion uint64, kernelVersion KernelVersion, storeID StoreID) Header {
	return Header{
		Magic:         Magic,
		Version:       HeaderVersion,
		KernelVersion: kernelVersion,
		LogVersion:    logVersion,
		StoreID:       storeID,
	}
}

// WriteHeader writes the segment header to the writer.
// The buffer is required to avoid allocations and should be big enough to hold the full header temporarily.
func WriteHeader(writer io.Writer, buffer []byte, header Header) error {
	buffer = buffer[:HeaderSize]
	copy(buffer[:4], header.Magic[:])
	Endian.PutUint16(buffer[4:6], header.Version)
	buffer[6] = byte(header.KernelVersion)
	buffer[7] = 0
	Endian.PutUint64(buffer[8:16], header.LogVersion)
	Endian.PutUint64(buffer[16:24], header.LastCommittedTxID)
	Endian.PutUint64(buffer[24:32], header.LastAppendIndex)
	Endian.PutUint32(buffer[32:36], header.PreviousChecksum)
	copy(buffer[36:headerUsedSize], header.StoreID[:])
	clear(buffer[headerUsedSize:])
	if _, err := writer.Write(buffer); err != nil {
		return headerWriteError(err)
	}
	return nil
}

// ReadHeader reads the segment header from the reader.
// The buffer is required to avoid allocations and should be big enough to hold the full header temporarily.
// An error is returned when the header does not match expectations (like magic bytes, version, etc.).
func ReadHeader(reader io.Reader, buffer []byte) (Header, error) {
	var result Header
	if _, err := io.ReadFull(reader, buffer[:HeaderSize]); err != nil {
		return Header{}, headerReadError(err)
	}

	copy(result.Magic[:], buffer[:4])
	result.Version = Endian.Uint16(buffer[4:6])
	result.KernelVersion = KernelVersion(buffer[6])
	result.LogVersion = Endian.Uint64(buffer[8:16])
	result.LastCommittedTxID = Endian.Uint64(buffer[16:24])
	result.LastAppendIndex = Endian.Uint64(buffer[24:32])
	result.PreviousChecksum = Endian.Uint32(buffer[32:36])
	copy(result.StoreID[:], buffer[36:headerUsedSize])

	if result.Magic != Magic {
		return Header{}, ErrHeaderInvalidMagicBytes
	}
	if result.Version != HeaderVersion {
		return Header{}, ErrHeaderUnsupportedVersion
	}
	if !result.KernelVersion.IsSupported() {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedKernelVersion, result.KernelVersion)
	}
	return result, nil
}

func headerWriteError(err error) error {
	return fmt.Errorf("writing transaction log header: %w", err)
}

func headerReadError(err error) error {
	return fmt.Errorf("reading transaction log header: %w", err)
}
