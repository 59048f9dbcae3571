package entry

import (
	"fmt"
	"unicode/utf8"

	"github.com/backbone81/graph-txlog/internal/encoding"
)

// MaxReasonLength is the number of bytes reserved for the reason of a detached checkpoint. Longer reasons are
// truncated. The field is padded so that all checkpoint entries of a kernel version have the same size.
const MaxReasonLength = 128

func writeStart(channel *encoding.WritableChannel, e Entry) (int64, error) {
	start, ok := e.(Start)
	if !ok {
		return NoChecksum, unexpectedEntryError(TypeStart, e)
	}
	if len(start.AdditionalHeader) > encoding.MaxVariableLength {
		return NoChecksum, writeError(TypeStart, encoding.ErrFieldTooLarge)
	}

	channel.BeginChecksum()
	writeHeader(channel, start.Version, TypeStart)
	channel.PutInt64(start.TimeWritten)
	channel.PutUint64(start.LastCommittedTxWhenStarted)
	channel.PutUint32(start.PreviousChecksum)
	channel.PutUint64(start.AppendIndex)
	channel.PutInt32(int32(len(start.AdditionalHeader))) //nolint:gosec // length is limited above
	channel.Put(start.AdditionalHeader)
	if err := channel.Err(); err != nil {
		return NoChecksum, writeError(TypeStart, err)
	}
	return NoChecksum, nil
}

func parseStart(version encoding.KernelVersion, channel *encoding.ReadableChannel, positionMarker encoding.LogPosition, _ CommandReaderFactory) (Entry, error) {
	channel.BeginChecksum(byte(version), byte(TypeStart))
	result := Start{
		Version:       version,
		StartPosition: positionMarker,
	}
	result.TimeWritten = channel.Int64()
	result.LastCommittedTxWhenStarted = channel.Uint64()
	result.PreviousChecksum = channel.Uint32()
	result.AppendIndex = channel.Uint64()
	length := channel.Int32()
	additionalHeader := channel.Bytes(int(length))
	if err := channel.Err(); err != nil {
		return nil, parseError(TypeStart, err)
	}
	if len(additionalHeader) > 0 {
		result.AdditionalHeader = additionalHeader
	}
	return result, nil
}

func writeCommand(channel *encoding.WritableChannel, e Entry) (int64, error) {
	command, ok := e.(Command)
	if !ok {
		return NoChecksum, unexpectedEntryError(TypeCommand, e)
	}
	if len(command.Payload) > encoding.MaxVariableLength {
		return NoChecksum, writeError(TypeCommand, encoding.ErrFieldTooLarge)
	}

	writeHeader(channel, command.Version, TypeCommand)
	channel.PutInt32(int32(len(command.Payload))) //nolint:gosec // length is limited above
	channel.Put(command.Payload)
	if err := channel.Err(); err != nil {
		return NoChecksum, writeError(TypeCommand, err)
	}
	return NoChecksum, nil
}

func parseCommand(version encoding.KernelVersion, channel *encoding.ReadableChannel, _ encoding.LogPosition, commandReaderFactory CommandReaderFactory) (Entry, error) {
	commandReader, err := commandReaderFactory.Get(version)
	if err != nil {
		return nil, parseError(TypeCommand, err)
	}
	payload, err := commandReader.Read(channel)
	if err != nil {
		return nil, parseError(TypeCommand, err)
	}
	return Command{
		Version: version,
		Payload: payload,
	}, nil
}

func writeCommit(channel *encoding.WritableChannel, e Entry) (int64, error) {
	commit, ok := e.(Commit)
	if !ok {
		return NoChecksum, unexpectedEntryError(TypeCommit, e)
	}

	writeHeader(channel, commit.Version, TypeCommit)
	channel.PutUint64(commit.TransactionID)
	channel.PutInt64(commit.TimeWritten)
	checksum := channel.PutChecksum()
	if err := channel.Err(); err != nil {
		return NoChecksum, writeError(TypeCommit, err)
	}
	return int64(checksum), nil
}

func parseCommit(version encoding.KernelVersion, channel *encoding.ReadableChannel, _ encoding.LogPosition, _ CommandReaderFactory) (Entry, error) {
	result := Commit{
		Version: version,
	}
	result.TransactionID = channel.Uint64()
	result.TimeWritten = channel.Int64()
	result.Checksum = channel.EndChecksumAndValidate()
	if err := channel.Err(); err != nil {
		return nil, parseError(TypeCommit, err)
	}
	return result, nil
}

func writeRollback(channel *encoding.WritableChannel, e Entry) (int64, error) {
	rollback, ok := e.(Rollback)
	if !ok {
		return NoChecksum, unexpectedEntryError(TypeRollback, e)
	}

	channel.BeginChecksum()
	writeHeader(channel, rollback.Version, TypeRollback)
	channel.PutUint64(rollback.TransactionID)
	channel.PutInt64(rollback.TimeWritten)
	channel.PutUint64(rollback.AppendIndex)
	checksum := channel.PutChecksum()
	if err := channel.Err(); err != nil {
		return NoChecksum, writeError(TypeRollback, err)
	}
	return int64(checksum), nil
}

func parseRollback(version encoding.KernelVersion, channel *encoding.ReadableChannel, _ encoding.LogPosition, _ CommandReaderFactory) (Entry, error) {
	channel.BeginChecksum(byte(version), byte(TypeRollback))
	result := Rollback{
		Version: version,
	}
	result.TransactionID = channel.Uint64()
	result.TimeWritten = channel.Int64()
	result.AppendIndex = channel.Uint64()
	result.Checksum = channel.EndChecksumAndValidate()
	if err := channel.Err(); err != nil {
		return nil, parseError(TypeRollback, err)
	}
	return result, nil
}

func writeChunkStart(channel *encoding.WritableChannel, e Entry) (int64, error) {
	chunkStart, ok := e.(ChunkStart)
	if !ok {
		return NoChecksum, unexpectedEntryError(TypeChunkStart, e)
	}

	channel.BeginChecksum()
	writeHeader(channel, chunkStart.Version, TypeChunkStart)
	channel.PutInt64(chunkStart.TimeWritten)
	channel.PutUint64(chunkStart.ChunkID)
	channel.PutUint64(chunkStart.PreviousBatchAppendIndex)
	channel.PutUint64(chunkStart.AppendIndex)
	if err := channel.Err(); err != nil {
		return NoChecksum, writeError(TypeChunkStart, err)
	}
	return NoChecksum, nil
}

func parseChunkStart(version encoding.KernelVersion, channel *encoding.ReadableChannel, _ encoding.LogPosition, _ CommandReaderFactory) (Entry, error) {
	channel.BeginChecksum(byte(version), byte(TypeChunkStart))
	result := ChunkStart{
		Version: version,
	}
	result.TimeWritten = channel.Int64()
	result.ChunkID = channel.Uint64()
	result.PreviousBatchAppendIndex = channel.Uint64()
	result.AppendIndex = channel.Uint64()
	if err := channel.Err(); err != nil {
		return nil, parseError(TypeChunkStart, err)
	}
	return result, nil
}

func writeChunkEnd(channel *encoding.WritableChannel, e Entry) (int64, error) {
	chunkEnd, ok := e.(ChunkEnd)
	if !ok {
		return NoChecksum, unexpectedEntryError(TypeChunkEnd, e)
	}

	writeHeader(channel, chunkEnd.Version, TypeChunkEnd)
	channel.PutUint64(chunkEnd.TransactionID)
	channel.PutUint64(chunkEnd.ChunkID)
	checksum := channel.PutChecksum()
	if err := channel.Err(); err != nil {
		return NoChecksum, writeError(TypeChunkEnd, err)
	}
	return int64(checksum), nil
}

func parseChunkEnd(version encoding.KernelVersion, channel *encoding.ReadableChannel, _ encoding.LogPosition, _ CommandReaderFactory) (Entry, error) {
	result := ChunkEnd{
		Version: version,
	}
	result.TransactionID = channel.Uint64()
	result.ChunkID = channel.Uint64()
	result.Checksum = channel.EndChecksumAndValidate()
	if err := channel.Err(); err != nil {
		return nil, parseError(TypeChunkEnd, err)
	}
	return result, nil
}

func writeDetachedCheckpointV1(channel *encoding.WritableChannel, e Entry) (int64, error) {
	return writeDetachedCheckpoint(channel, e, false)
}

func writeDetachedCheckpointV2(channel *encoding.WritableChannel, e Entry) (int64, error) {
	return writeDetachedCheckpoint(channel, e, true)
}

func writeDetachedCheckpoint(channel *encoding.WritableChannel, e Entry, withConsensusFlag bool) (int64, error) {
	checkpoint, ok := e.(DetachedCheckpoint)
	if !ok {
		return NoChecksum, unexpectedEntryError(TypeDetachedCheckpoint, e)
	}
	if checkpoint.ConsensusIndexInCheckpoint && !withConsensusFlag {
		return NoChecksum, writeError(TypeDetachedCheckpoint, fmt.Errorf("%w: consensus index in %s", ErrFieldNotSupported, checkpoint.Version))
	}
	reason := truncateReason(checkpoint.Reason)

	channel.BeginChecksum()
	writeHeader(channel, checkpoint.Version, TypeDetachedCheckpoint)
	channel.PutUint64(checkpoint.TransactionID)
	channel.PutUint64(checkpoint.LastAppendIndex)
	channel.PutUint64(checkpoint.LogPosition.LogVersion)
	channel.PutInt64(checkpoint.LogPosition.ByteOffset)
	channel.PutInt64(checkpoint.CheckpointTime)
	channel.Put(checkpoint.StoreID[:])
	if withConsensusFlag {
		channel.PutByte(boolToByte(checkpoint.ConsensusIndexInCheckpoint))
	}
	channel.PutUint16(uint16(len(reason))) //nolint:gosec // length is limited by truncateReason
	var padded [MaxReasonLength]byte
	copy(padded[:], reason)
	channel.Put(padded[:])
	checksum := channel.PutChecksum()
	if err := channel.Err(); err != nil {
		return NoChecksum, writeError(TypeDetachedCheckpoint, err)
	}
	return int64(checksum), nil
}

func parseDetachedCheckpointV1(version encoding.KernelVersion, channel *encoding.ReadableChannel, _ encoding.LogPosition, _ CommandReaderFactory) (Entry, error) {
	return parseDetachedCheckpoint(version, channel, false)
}

func parseDetachedCheckpointV2(version encoding.KernelVersion, channel *encoding.ReadableChannel, _ encoding.LogPosition, _ CommandReaderFactory) (Entry, error) {
	return parseDetachedCheckpoint(version, channel, true)
}

func parseDetachedCheckpoint(version encoding.KernelVersion, channel *encoding.ReadableChannel, withConsensusFlag bool) (Entry, error) {
	channel.BeginChecksum(byte(version), byte(TypeDetachedCheckpoint))
	result := DetachedCheckpoint{
		Version: version,
	}
	result.TransactionID = channel.Uint64()
	result.LastAppendIndex = channel.Uint64()
	result.LogPosition.LogVersion = channel.Uint64()
	result.LogPosition.ByteOffset = channel.Int64()
	result.CheckpointTime = channel.Int64()
	copy(result.StoreID[:], channel.Bytes(encoding.StoreIDSize))
	if withConsensusFlag {
		result.ConsensusIndexInCheckpoint = channel.Byte() != 0
	}
	reasonLength := int(channel.Uint16())
	padded := channel.Bytes(MaxReasonLength)
	result.Checksum = channel.EndChecksumAndValidate()
	if err := channel.Err(); err != nil {
		return nil, parseError(TypeDetachedCheckpoint, err)
	}
	if reasonLength > MaxReasonLength {
		return nil, parseError(TypeDetachedCheckpoint, fmt.Errorf("%w: reason length %d", encoding.ErrFieldTooLarge, reasonLength))
	}
	result.Reason = string(padded[:reasonLength])
	return result, nil
}

// DetachedCheckpointSize returns the number of bytes a detached checkpoint entry occupies in the kernel version.
func DetachedCheckpointSize(version encoding.KernelVersion) int {
	size := HeaderSize + 5*8 + encoding.StoreIDSize + 2 + MaxReasonLength + encoding.ChecksumSize
	if version.IsAtLeast(encoding.KernelVersionV2) {
		size++
	}
	return size
}

// truncateReason shortens the reason to MaxReasonLength bytes without splitting a multi-byte character.
func truncateReason(reason string) string {
	if len(reason) <= MaxReasonLength {
		return reason
	}
	cut := MaxReasonLength
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}

func boolToByte(value bool) byte {
	if value {
		return 1
	}
	return 0
}
