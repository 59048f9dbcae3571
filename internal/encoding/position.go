package encoding

import "fmt"

// LogPosition addresses a single byte in the logical transaction log. The log version selects the segment file and
// the byte offset is counted from the start of that file, including the segment header.
type LogPosition struct {
	LogVersion uint64
	ByteOffset int64
}

// Compare returns -1, 0 or +1 depending on whether p is before, equal to or after other.
func (p LogPosition) Compare(other LogPosition) int {
	switch {
	case p.LogVersion < other.LogVersion:
		return -1
	case p.LogVersion > other.LogVersion:
		return 1
	case p.ByteOffset < other.ByteOffset:
		return -1
	case p.ByteOffset > other.ByteOffset:
		return 1
	default:
		return 0
	}
}

// Before reports if p is located strictly before other.
func (p LogPosition) Before(other LogPosition) bool {
	return p.Compare(other) < 0
}

// String returns a human readable representation of the position.
func (p LogPosition) String() string {
	return fmt.Sprintf("LogPosition{version=%d, offset=%d}", p.LogVersion, p.ByteOffset)
}
