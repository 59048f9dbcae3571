package txlog

import intencoding "github.com/backbone81/graph-txlog/internal/encoding"

// LogPosition identifies a byte in the transaction log by the log version of its segment and its offset in the
// segment file.
type LogPosition = intencoding.LogPosition

// KernelVersion is the version of the entry encoding.
type KernelVersion = intencoding.KernelVersion

const (
	KernelVersionV1     = intencoding.KernelVersionV1
	KernelVersionV2     = intencoding.KernelVersionV2
	LatestKernelVersion = intencoding.LatestKernelVersion
)

// StoreID identifies the store a transaction log and its checkpoints belong to.
type StoreID = intencoding.StoreID

// NewStoreID returns a new random store id.
var NewStoreID = intencoding.NewStoreID

// ParseStoreID parses the string representation of a store id.
var ParseStoreID = intencoding.ParseStoreID

// Header is the header at the start of every segment file.
type Header = intencoding.Header

// SegmentHeaderSize is the size of the segment header. The first entry of every segment starts at this offset.
const SegmentHeaderSize = intencoding.HeaderSize
