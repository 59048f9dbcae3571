package segment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/backbone81/graph-txlog/internal/encoding"
)

var ErrLogVersionMismatch = errors.New("segment file name and header log version do not match")

// FileExtension is the file extension of all segment files.
const FileExtension = ".txlog"

// segmentFileNamePattern is the file pattern all segment files need to follow.
var segmentFileNamePattern = regexp.MustCompile(`^\d{20}\` + FileExtension + `$`)

// FileName returns the file name of the segment with the given log version.
func FileName(logVersion uint64) string {
	return fmt.Sprintf("%020d%s", logVersion, FileExtension)
}

// FilePath returns the path of the segment with the given log version inside the directory.
func FilePath(directory string, logVersion uint64) string {
	return filepath.Join(directory, FileName(logVersion))
}

// GetSegments returns the log versions of all segment files in the directory. The log versions are sorted in
// ascending order.
func GetSegments(directory string) ([]uint64, error) {
	dirEntries, err := os.ReadDir(directory)
	if err != nil {
		return nil, fmt.Errorf("reading directory %q: %w", directory, err)
	}

	result := make([]uint64, 0, len(dirEntries))
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() {
			// We are not interested in directories.
			continue
		}
		if !segmentFileNamePattern.MatchString(dirEntry.Name()) {
			// We are not interested in files not matching our naming pattern. This also skips over left-over ".new"
			// files from a failed segment creation.
			continue
		}
		logVersion, err := strconv.ParseUint(strings.TrimSuffix(dirEntry.Name(), FileExtension), 10, 64)
		if err != nil {
			// This error should never occur when our file name pattern is correct.
			return nil, fmt.Errorf("parsing the log version from the file name: %w", err)
		}
		result = append(result, logVersion)
	}

	// The file names returned by os.ReadDir() should already be in the correct order. For additional safety we sort
	// the log versions again, in case the order does not match.
	slices.Sort(result)
	return result, nil
}

// ReadHeaderFromFile reads the header of the segment with the given log version. It verifies that the log version in
// the header matches the file name.
func ReadHeaderFromFile(directory string, logVersion uint64) (encoding.Header, error) {
	file, header, err := OpenSegment(directory, logVersion)
	if err != nil {
		return encoding.Header{}, err
	}
	if err := file.Close(); err != nil {
		return encoding.Header{}, fmt.Errorf("closing the segment file %q: %w", file.Name(), err)
	}
	return header, nil
}

// OpenSegment opens the segment with the given log version for reading and validates its header. The returned file is
// positioned directly after the header.
func OpenSegment(directory string, logVersion uint64) (*os.File, encoding.Header, error) {
	segmentFilePath := FilePath(directory, logVersion)
	file, err := os.Open(segmentFilePath) //nolint:gosec // We can not validate paths in a library.
	if err != nil {
		return nil, encoding.Header{}, fmt.Errorf("opening the segment file %q: %w", segmentFilePath, err)
	}

	header, err := readHeader(file, logVersion)
	if err != nil {
		closeErr := file.Close()
		return nil, encoding.Header{}, errors.Join(fmt.Errorf("the segment file %q: %w", segmentFilePath, err), closeErr)
	}
	return file, header, nil
}

func readHeader(file *os.File, logVersion uint64) (encoding.Header, error) {
	var buffer [encoding.HeaderSize]byte
	header, err := encoding.ReadHeader(file, buffer[:])
	if err != nil {
		return encoding.Header{}, err
	}
	if header.LogVersion != logVersion {
		return encoding.Header{}, fmt.Errorf("%w: expected %d but got %d", ErrLogVersionMismatch, logVersion, header.LogVersion)
	}
	return header, nil
}

// RemoveSegment deletes the segment file with the given log version.
func RemoveSegment(directory string, logVersion uint64) error {
	segmentFilePath := FilePath(directory, logVersion)
	if err := os.Remove(segmentFilePath); err != nil {
		return fmt.Errorf("removing the segment file %q: %w", segmentFilePath, err)
	}
	return nil
}
