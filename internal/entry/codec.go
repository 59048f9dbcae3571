package entry

import (
	"errors"
	"fmt"

	"github.com/backbone81/graph-txlog/internal/encoding"
)

var (
	ErrUnknownEntryType    = errors.New("unknown transaction log entry type for kernel version")
	ErrUnexpectedEntry     = errors.New("entry does not match the serializer")
	ErrFieldNotSupported   = errors.New("entry field is not supported by the kernel version")
	ErrChecksumChainBroken = errors.New("transaction log checksum chain is broken")
	ErrCorruptedEntry      = errors.New("corrupted transaction log entry")
)

// NoChecksum is returned by WriteFunc for entries which do not close a checksum scope.
const NoChecksum int64 = -1

// HeaderSize is the size in bytes of the header every entry starts with.
const HeaderSize = 2

// ParseFunc reads the body of an entry. The header was already consumed by the caller. The position marker is the
// position of the first header byte.
type ParseFunc func(version encoding.KernelVersion, channel *encoding.ReadableChannel, positionMarker encoding.LogPosition, commandReaderFactory CommandReaderFactory) (Entry, error)

// WriteFunc writes the entry including its header. It returns the checksum when the entry closes a checksum scope,
// or NoChecksum otherwise.
type WriteFunc func(channel *encoding.WritableChannel, entry Entry) (int64, error)

// Serializer bundles the codec functions of a single entry type in a single kernel version.
type Serializer struct {
	Parse ParseFunc
	Write WriteFunc
}

type codecKey struct {
	entryType     Type
	kernelVersion encoding.KernelVersion
}

// serializers is the codec table. Entry types which a kernel version does not know are missing from the table.
var serializers = map[codecKey]Serializer{
	{TypeStart, encoding.KernelVersionV1}:              {Parse: parseStart, Write: writeStart},
	{TypeCommand, encoding.KernelVersionV1}:            {Parse: parseCommand, Write: writeCommand},
	{TypeCommit, encoding.KernelVersionV1}:             {Parse: parseCommit, Write: writeCommit},
	{TypeRollback, encoding.KernelVersionV1}:           {Parse: parseRollback, Write: writeRollback},
	{TypeDetachedCheckpoint, encoding.KernelVersionV1}: {Parse: parseDetachedCheckpointV1, Write: writeDetachedCheckpointV1},

	{TypeStart, encoding.KernelVersionV2}:              {Parse: parseStart, Write: writeStart},
	{TypeCommand, encoding.KernelVersionV2}:            {Parse: parseCommand, Write: writeCommand},
	{TypeCommit, encoding.KernelVersionV2}:             {Parse: parseCommit, Write: writeCommit},
	{TypeRollback, encoding.KernelVersionV2}:           {Parse: parseRollback, Write: writeRollback},
	{TypeChunkStart, encoding.KernelVersionV2}:         {Parse: parseChunkStart, Write: writeChunkStart},
	{TypeChunkEnd, encoding.KernelVersionV2}:           {Parse: parseChunkEnd, Write: writeChunkEnd},
	{TypeDetachedCheckpoint, encoding.KernelVersionV2}: {Parse: parseDetachedCheckpointV2, Write: writeDetachedCheckpointV2},
}

// SerializerFor returns the serializer registered for the entry type in the kernel version.
func SerializerFor(entryType Type, kernelVersion encoding.KernelVersion) (Serializer, error) {
	if !kernelVersion.IsSupported() {
		return Serializer{}, fmt.Errorf("%w: %d", encoding.ErrUnsupportedKernelVersion, kernelVersion)
	}
	serializer, ok := serializers[codecKey{entryType: entryType, kernelVersion: kernelVersion}]
	if !ok {
		return Serializer{}, fmt.Errorf("%w: type %d in %s", ErrUnknownEntryType, entryType, kernelVersion)
	}
	return serializer, nil
}

// IsSupported reports if the kernel version knows the entry type.
func IsSupported(entryType Type, kernelVersion encoding.KernelVersion) bool {
	_, ok := serializers[codecKey{entryType: entryType, kernelVersion: kernelVersion}]
	return ok
}

func writeHeader(channel *encoding.WritableChannel, kernelVersion encoding.KernelVersion, entryType Type) {
	channel.PutByte(byte(kernelVersion))
	channel.PutByte(byte(entryType))
}

func unexpectedEntryError(want Type, got Entry) error {
	return fmt.Errorf("%w: want %s but got %T", ErrUnexpectedEntry, want, got)
}

func parseError(entryType Type, err error) error {
	return fmt.Errorf("parsing %s entry: %w", entryType, err)
}

func writeError(entryType Type, err error) error {
	return fmt.Errorf("writing %s entry: %w", entryType, err)
}

// isFormatError reports if the error is caused by the content of the log rather than by the underlying storage.
func isFormatError(err error) bool {
	return errors.Is(err, encoding.ErrTruncated) ||
		errors.Is(err, encoding.ErrChecksumMismatch) ||
		errors.Is(err, encoding.ErrFieldTooLarge) ||
		errors.Is(err, encoding.ErrUnsupportedKernelVersion) ||
		errors.Is(err, ErrUnknownEntryType) ||
		errors.Is(err, ErrChecksumChainBroken)
}
