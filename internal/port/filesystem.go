package port

import (
	"io"
	"time"
)

// DiskUsage represents disk usage statistics
type DiskUsage struct {
	Total   uint64  // Total disk space in bytes
	Used    uint64  // Used disk space in bytes
	Free    uint64  // Free disk space in bytes
	UsedPct float64 // Used percentage (0-100)
}

// TransferStore defines the local storage operations of a transfer
type TransferStore interface {
	// TempFileName returns the in-progress name for fileName
	TempFileName(fileName string) string

	// ComputeResumeOffset returns the length of the temp file, or 0 if it
	// does not exist. No side effects.
	ComputeResumeOffset(destinationDir, tempFileName string) (int64, error)

	// EnsureDestinationDir creates the directory if it is missing
	EnsureDestinationDir(path string) error

	// OpenTemp opens the temp file for appending, creating it if needed.
	// When truncate is true any existing content is discarded first.
	OpenTemp(tempPath string, truncate bool) (io.WriteCloser, error)

	// Finalize renames the temp file to its final name. On failure the temp
	// file is left in place.
	Finalize(tempPath, finalPath string) error

	// DeleteTempFile removes a temp file
	DeleteTempFile(tempPath string) error

	// GetDiskUsage returns disk usage statistics for path
	GetDiskUsage(path string) (*DiskUsage, error)

	// CleanOldTempFiles removes temp files under root older than the
	// specified duration. Returns the number of files deleted.
	CleanOldTempFiles(root string, olderThan time.Duration) (int, error)
}
