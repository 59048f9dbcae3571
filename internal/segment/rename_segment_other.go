//go:build !windows

package segment

import (
	"errors"
	"fmt"
	"os"
)

// renameSegment will rename the segment file while being open. This works on linux but not on windows.
func renameSegment(file *os.File, _ int64, newFilePath string) (*os.File, error) {
	oldFilePath := file.Name()
	if err := os.Rename(oldFilePath, newFilePath); err != nil {
		closeErr := file.Close()
		return nil, errors.Join(fmt.Errorf("renaming the segment file from %q to %q: %w", oldFilePath, newFilePath, err), closeErr)
	}
	return file, nil
}
