package port

import (
	"time"

	"github.com/google/uuid"

	"github.com/vertextoedge/resumable-download/internal/domain"
)

// AttemptRepository defines the attempt history operations
type AttemptRepository interface {
	// SaveAttempt records a finished attempt
	SaveAttempt(a *domain.Attempt) error

	// GetAttempt retrieves an attempt by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetAttempt(id uuid.UUID) (*domain.Attempt, error)

	// ListRecentAttempts returns the most recent attempts, newest first
	ListRecentAttempts(limit int) ([]*domain.Attempt, error)

	// ListAttemptsForFile returns attempts for one destination, newest first
	ListAttemptsForFile(destinationDir, fileName string) ([]*domain.Attempt, error)

	// CleanupOldAttempts removes attempts finished before now-olderThan
	CleanupOldAttempts(olderThan time.Duration) (int, error)

	// Close closes the database connection
	Close() error
}
