// Package output provides adapters for writing application output.
package output

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FileTarget prepares release note files on the local filesystem.
type FileTarget struct {
	dirPerm  fs.FileMode
	filePerm fs.FileMode
}

// NewFileTarget creates a FileTarget with conventional permissions.
func NewFileTarget() *FileTarget {
	return &FileTarget{dirPerm: 0o755, filePerm: 0o644}
}

// Prepare removes any existing file at path, creates missing parent directories
// and returns a stream to a new, empty file. The caller owns the stream.
func (t *FileTarget) Prepare(path string) (io.WriteCloser, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove existing %s: %w", path, err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, t.dirPerm); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, t.filePerm)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}
