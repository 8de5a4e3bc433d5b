package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vertextoedge/resumable-download/internal/domain"
	"github.com/vertextoedge/resumable-download/internal/port"
)

// DefaultTempSuffix marks a file as still being downloaded
const DefaultTempSuffix = ".downloading"

// Manager handles local filesystem operations of a transfer
type Manager struct {
	tempSuffix string
}

// Ensure Manager implements port.TransferStore
var _ port.TransferStore = (*Manager)(nil)

// NewManager creates a new filesystem manager
func NewManager() *Manager {
	return NewManagerWithSuffix(DefaultTempSuffix)
}

// NewManagerWithSuffix creates a new filesystem manager with a custom
// in-progress suffix
func NewManagerWithSuffix(tempSuffix string) *Manager {
	if tempSuffix == "" {
		tempSuffix = DefaultTempSuffix
	}
	return &Manager{tempSuffix: tempSuffix}
}

// TempSuffix returns the in-progress suffix
func (m *Manager) TempSuffix() string {
	return m.tempSuffix
}

// TempFileName returns the in-progress name for fileName
func (m *Manager) TempFileName(fileName string) string {
	return fileName + m.tempSuffix
}

// ComputeResumeOffset returns the length of the temp file, 0 if it is absent
func (m *Manager) ComputeResumeOffset(destinationDir, tempFileName string) (int64, error) {
	info, err := os.Stat(filepath.Join(destinationDir, tempFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat temp file: %w", err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("temp file path %s is a directory", tempFileName)
	}
	return info.Size(), nil
}

// EnsureDestinationDir creates the directory if it is missing
func (m *Manager) EnsureDestinationDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return domain.NewStorageError("create destination dir", err)
	}
	return nil
}

// OpenTemp opens the temp file in append mode
func (m *Manager) OpenTemp(tempPath string, truncate bool) (io.WriteCloser, error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if truncate {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(tempPath, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open temp file: %w", err)
	}
	return f, nil
}

// Finalize renames the temp file to the final path
func (m *Manager) Finalize(tempPath, finalPath string) error {
	if err := os.Rename(tempPath, finalPath); err != nil {
		return domain.NewStorageError("rename temp file", err)
	}
	return nil
}

// DeleteTempFile removes a temporary file
func (m *Manager) DeleteTempFile(tempPath string) error {
	if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete temp file: %w", err)
	}
	return nil
}

// CleanOldTempFiles removes temp files older than the specified duration
func (m *Manager) CleanOldTempFiles(root string, olderThan time.Duration) (int, error) {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return 0, nil
	}

	count := 0
	threshold := time.Now().Add(-olderThan)

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), m.tempSuffix) {
			return nil
		}
		if info.ModTime().Before(threshold) {
			if removeErr := os.Remove(path); removeErr == nil {
				count++
			}
		}
		return nil
	})
	return count, err
}
