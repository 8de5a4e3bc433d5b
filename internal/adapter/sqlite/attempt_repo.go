package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vertextoedge/resumable-download/internal/domain"
)

const attemptColumns = `id, url, destination_dir, file_name, outcome, start_bytes,
	bytes_written, status_code, last_error, started_at, finished_at`

// SaveAttempt records a finished attempt
func (s *Store) SaveAttempt(a *domain.Attempt) error {
	query := `
		INSERT INTO attempts (` + attemptColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var lastError sql.NullString
	if a.LastError != "" {
		lastError = sql.NullString{String: a.LastError, Valid: true}
	}

	_, err := s.db.Exec(query,
		a.ID.String(), a.URL, a.DestinationDir, a.FileName, string(a.Kind),
		a.StartBytes, a.BytesWritten, a.StatusCode, lastError,
		a.StartedAt.UTC(), a.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save attempt: %w", err)
	}
	return nil
}

// GetAttempt retrieves an attempt by ID
func (s *Store) GetAttempt(id uuid.UUID) (*domain.Attempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM attempts WHERE id = ?`

	a, err := scanAttempt(s.db.QueryRow(query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListRecentAttempts returns the most recent attempts, newest first
func (s *Store) ListRecentAttempts(limit int) ([]*domain.Attempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM attempts
		ORDER BY finished_at DESC
		LIMIT ?
	`
	return s.queryAttempts(query, limit)
}

// ListAttemptsForFile returns the attempts for one destination, newest first
func (s *Store) ListAttemptsForFile(destinationDir, fileName string) ([]*domain.Attempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM attempts
		WHERE destination_dir = ? AND file_name = ?
		ORDER BY finished_at DESC
	`
	return s.queryAttempts(query, destinationDir, fileName)
}

// CleanupOldAttempts removes attempts finished before now-olderThan
func (s *Store) CleanupOldAttempts(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).UTC()

	result, err := s.db.Exec("DELETE FROM attempts WHERE finished_at < ?", cutoff)
	if err != nil {
		return 0, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *Store) queryAttempts(query string, args ...any) ([]*domain.Attempt, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*domain.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (*domain.Attempt, error) {
	a := &domain.Attempt{}
	var id, kind string
	var lastError sql.NullString

	err := row.Scan(
		&id, &a.URL, &a.DestinationDir, &a.FileName, &kind,
		&a.StartBytes, &a.BytesWritten, &a.StatusCode, &lastError,
		&a.StartedAt, &a.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid attempt id %q: %w", id, err)
	}
	a.ID = parsed
	a.Kind = domain.OutcomeKind(kind)
	if lastError.Valid {
		a.LastError = lastError.String
	}
	return a, nil
}
