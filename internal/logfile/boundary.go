package logfile

// Boundary describes the last transaction written before a rotation. It provides the values the header of the next
// segment starts with.
type Boundary struct {
	// The id of the last transaction in the segment which is rotated away from.
	TransactionID uint64

	// The highest append index in the segment which is rotated away from.
	AppendIndex uint64

	// The checksum closing the last transaction. The first start entry of the next segment references it.
	Checksum uint32
}
