//go:build windows

package segment

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// renameSegment will rename the segment file by closing it, renaming it and then reopening it again. This is necessary
// on windows, as it does not allow renaming of open files.
func renameSegment(file *os.File, offset int64, newFilePath string) (*os.File, error) {
	oldFilePath := file.Name()
	file, err := reopenRenamed(file, offset, oldFilePath, newFilePath)
	if err != nil {
		return nil, fmt.Errorf("renaming the segment file from %q to %q: %w", oldFilePath, newFilePath, err)
	}
	return file, nil
}

func reopenRenamed(file *os.File, offset int64, oldFilePath string, newFilePath string) (*os.File, error) {
	if err := file.Close(); err != nil {
		return nil, err
	}

	if err := os.Rename(oldFilePath, newFilePath); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(newFilePath, os.O_RDWR, 0) //nolint:gosec // We can not validate paths in a library.
	if err != nil {
		return nil, err
	}

	if _, seekErr := file.Seek(offset, io.SeekStart); seekErr != nil {
		closeErr := file.Close()
		return nil, errors.Join(seekErr, closeErr)
	}
	return file, nil
}
