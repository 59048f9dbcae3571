package encoding

import (
	"errors"
	"fmt"
	"slices"
)

var ErrUnsupportedKernelVersion = errors.New("unsupported kernel version")

// KernelVersion is the format version every log entry is tagged with. A single segment file can hold entries of
// different kernel versions when the database was upgraded while the segment was active.
type KernelVersion byte

const (
	// KernelVersionV1 is the initial format. It knows no chunked transactions and its detached checkpoints do not
	// carry the consensus flag.
	KernelVersionV1 KernelVersion = iota + 1 // We do not start at 0, a zero byte marks the end of written data.

	// KernelVersionV2 adds chunked transactions and the consensus flag of detached checkpoints.
	KernelVersionV2
)

// LatestKernelVersion is the kernel version new entries are written with by default.
const LatestKernelVersion = KernelVersionV2

// KernelVersions provides a list of supported kernel versions. Helpful for writing tests and benchmarks which iterate
// over all possibilities.
var KernelVersions = []KernelVersion{
	KernelVersionV1,
	KernelVersionV2,
}

// String returns a string representation of the kernel version.
func (k KernelVersion) String() string {
	return fmt.Sprintf("v%d", byte(k))
}

// IsSupported reports if entries of this kernel version can be read and written.
func (k KernelVersion) IsSupported() bool {
	return slices.Contains(KernelVersions, k)
}

// IsAtLeast reports if k is the same or a newer kernel version than other.
func (k KernelVersion) IsAtLeast(other KernelVersion) bool {
	return k >= other
}

// ParseKernelVersion converts the numeric representation into a supported kernel version.
func ParseKernelVersion(value int) (KernelVersion, error) {
	if value < 0 || value > 255 || !KernelVersion(value).IsSupported() {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedKernelVersion, value)
	}
	return KernelVersion(value), nil
}
