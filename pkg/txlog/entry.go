package txlog

import intentry "github.com/backbone81/graph-txlog/internal/entry"

// Entry is a single entry of the transaction log.
type Entry = intentry.Entry

type (
	StartEntry              = intentry.Start
	CommandEntry            = intentry.Command
	CommitEntry             = intentry.Commit
	RollbackEntry           = intentry.Rollback
	ChunkStartEntry         = intentry.ChunkStart
	ChunkEndEntry           = intentry.ChunkEnd
	DetachedCheckpointEntry = intentry.DetachedCheckpoint
)

// EntryReader reads entries from raw log content, for example from the reader of a LogChannel.
//
// Instances of this struct are NOT safe for concurrent use. Either use it on a single Go routine or provide your own
// external synchronization.
type EntryReader = intentry.Reader

// NewEntryReader creates a new EntryReader. The position is the log position of the first byte of the content.
var NewEntryReader = intentry.NewReader

// WithPreviousChecksum sets the checksum the first start entry read needs to reference.
var WithPreviousChecksum = intentry.WithPreviousChecksum

// EntryWriter serializes entries into raw log content.
type EntryWriter = intentry.Writer

// NewEntryWriter creates a new EntryWriter.
var NewEntryWriter = intentry.NewWriter
