package entry

import (
	"github.com/backbone81/graph-txlog/internal/encoding"
)

// Type is the type code stored in the header of every entry.
type Type byte

const (
	TypeStart Type = iota + 1 // We do not start at 0 to detect missing values.
	TypeCommand
	TypeCommit
	TypeRollback
	TypeChunkStart
	TypeChunkEnd
	TypeDetachedCheckpoint
)

// String returns a string representation of the entry type.
func (t Type) String() string {
	switch t {
	case TypeStart:
		return "start"
	case TypeCommand:
		return "command"
	case TypeCommit:
		return "commit"
	case TypeRollback:
		return "rollback"
	case TypeChunkStart:
		return "chunk-start"
	case TypeChunkEnd:
		return "chunk-end"
	case TypeDetachedCheckpoint:
		return "detached-checkpoint"
	default:
		return "unknown" //nolint:goconst
	}
}

// Entry is a single entry of the transaction log. The concrete types are Start, Command, Commit, Rollback,
// ChunkStart, ChunkEnd and DetachedCheckpoint. Entries are values and never change after construction.
type Entry interface {
	// KernelVersion returns the kernel version the entry is encoded with.
	KernelVersion() encoding.KernelVersion

	// Type returns the type code of the entry.
	Type() Type

	isEntry()
}

// Start marks the beginning of a transaction.
type Start struct {
	Version                    encoding.KernelVersion
	TimeWritten                int64
	LastCommittedTxWhenStarted uint64
	PreviousChecksum           uint32
	AppendIndex                uint64
	AdditionalHeader           []byte

	// StartPosition is the position the entry was read from. It is never serialized.
	StartPosition encoding.LogPosition
}

func (e Start) KernelVersion() encoding.KernelVersion { return e.Version }
func (e Start) Type() Type                            { return TypeStart }
func (e Start) isEntry()                              {}

// Command carries a single serialized command. The payload is opaque to the transaction log.
type Command struct {
	Version encoding.KernelVersion
	Payload []byte
}

func (e Command) KernelVersion() encoding.KernelVersion { return e.Version }
func (e Command) Type() Type                            { return TypeCommand }
func (e Command) isEntry()                              {}

// Commit marks the successful end of a transaction and closes the checksum scope opened by its start entry.
type Commit struct {
	Version       encoding.KernelVersion
	TransactionID uint64
	TimeWritten   int64
	Checksum      uint32
}

func (e Commit) KernelVersion() encoding.KernelVersion { return e.Version }
func (e Commit) Type() Type                            { return TypeCommit }
func (e Commit) isEntry()                              {}

// Rollback marks a transaction which was rolled back after some of its chunks were already written.
type Rollback struct {
	Version       encoding.KernelVersion
	TransactionID uint64
	TimeWritten   int64
	AppendIndex   uint64
	Checksum      uint32
}

func (e Rollback) KernelVersion() encoding.KernelVersion { return e.Version }
func (e Rollback) Type() Type                            { return TypeRollback }
func (e Rollback) isEntry()                              {}

// ChunkStart marks the beginning of a chunk of a large transaction which is written in several batches.
type ChunkStart struct {
	Version                  encoding.KernelVersion
	TimeWritten              int64
	ChunkID                  uint64
	PreviousBatchAppendIndex uint64
	AppendIndex              uint64
}

func (e ChunkStart) KernelVersion() encoding.KernelVersion { return e.Version }
func (e ChunkStart) Type() Type                            { return TypeChunkStart }
func (e ChunkStart) isEntry()                              {}

// ChunkEnd closes the checksum scope of a chunk.
type ChunkEnd struct {
	Version       encoding.KernelVersion
	TransactionID uint64
	ChunkID       uint64
	Checksum      uint32
}

func (e ChunkEnd) KernelVersion() encoding.KernelVersion { return e.Version }
func (e ChunkEnd) Type() Type                            { return TypeChunkEnd }
func (e ChunkEnd) isEntry()                              {}

// DetachedCheckpoint is a recovery marker stored outside the transaction stream. Recovery resumes at LogPosition,
// but only when StoreID matches the store being recovered.
type DetachedCheckpoint struct {
	Version                    encoding.KernelVersion
	TransactionID              uint64
	LastAppendIndex            uint64
	LogPosition                encoding.LogPosition
	CheckpointTime             int64
	StoreID                    encoding.StoreID
	Reason                     string
	ConsensusIndexInCheckpoint bool
	Checksum                   uint32
}

func (e DetachedCheckpoint) KernelVersion() encoding.KernelVersion { return e.Version }
func (e DetachedCheckpoint) Type() Type                            { return TypeDetachedCheckpoint }
func (e DetachedCheckpoint) isEntry()                              {}

// AppendIndexOf returns the append index carried by the entry. Only start, chunk start and rollback entries carry
// one.
func AppendIndexOf(e Entry) (uint64, bool) {
	switch typed := e.(type) {
	case Start:
		return typed.AppendIndex, true
	case ChunkStart:
		return typed.AppendIndex, true
	case Rollback:
		return typed.AppendIndex, true
	default:
		return 0, false
	}
}

// ChecksumOf returns the checksum of entries which close a checksum scope of the transaction stream.
func ChecksumOf(e Entry) (uint32, bool) {
	switch typed := e.(type) {
	case Commit:
		return typed.Checksum, true
	case Rollback:
		return typed.Checksum, true
	case ChunkEnd:
		return typed.Checksum, true
	default:
		return 0, false
	}
}
