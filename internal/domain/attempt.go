package domain

import (
	"time"

	"github.com/google/uuid"
)

// Attempt is the history record of one finished download attempt
type Attempt struct {
	ID             uuid.UUID
	URL            string
	DestinationDir string
	FileName       string
	Kind           OutcomeKind
	StartBytes     int64
	BytesWritten   int64
	StatusCode     int
	LastError      string
	StartedAt      time.Time
	FinishedAt     time.Time
}

// NewAttempt builds a history record from a request and its outcome
func NewAttempt(req Request, out Outcome, startedAt, finishedAt time.Time) *Attempt {
	a := &Attempt{
		ID:             out.AttemptID,
		URL:            req.URL,
		DestinationDir: req.DestinationDir,
		FileName:       req.FileName,
		Kind:           out.Kind,
		StartBytes:     out.StartBytes,
		BytesWritten:   out.BytesWritten,
		StartedAt:      startedAt,
		FinishedAt:     finishedAt,
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if out.Err != nil {
		a.LastError = out.Err.Error()
	}
	if code, ok := StatusCode(out.Err); ok {
		a.StatusCode = code
	}
	return a
}

// Duration returns how long the attempt ran
func (a *Attempt) Duration() time.Duration {
	return a.FinishedAt.Sub(a.StartedAt)
}
