package domain

import "github.com/google/uuid"

// OutcomeKind identifies how an attempt ended
type OutcomeKind string

const (
	OutcomeSuccess   OutcomeKind = "success"
	OutcomeFailure   OutcomeKind = "failure"
	OutcomeCancelled OutcomeKind = "cancelled"
)

// Outcome is the terminal result of one download attempt.
//
// A user-requested pause is its own kind. It is neither a success nor a
// failure caused by an external error; Err is still set to an error matching
// ErrCancelled so that callers which only look at Err see a non-nil value.
type Outcome struct {
	// AttemptID identifies the attempt in logs and history
	AttemptID uuid.UUID

	Kind OutcomeKind

	// Path is the final file path; set only on success
	Path string

	// Err is set for failure and cancelled outcomes
	Err error

	// StartBytes is the resume offset the attempt started from
	StartBytes int64

	// BytesWritten is the number of bytes appended by this attempt
	BytesWritten int64
}

// Succeeded creates a success outcome
func Succeeded(path string, startBytes, written int64) Outcome {
	return Outcome{Kind: OutcomeSuccess, Path: path, StartBytes: startBytes, BytesWritten: written}
}

// Failed creates a failure outcome
func Failed(err error, startBytes, written int64) Outcome {
	return Outcome{Kind: OutcomeFailure, Err: err, StartBytes: startBytes, BytesWritten: written}
}

// Cancelled creates a cancelled outcome
func Cancelled(startBytes, written int64) Outcome {
	return Outcome{Kind: OutcomeCancelled, Err: ErrCancelled, StartBytes: startBytes, BytesWritten: written}
}

// IsSuccess returns true if the file was fully received and finalized
func (o Outcome) IsSuccess() bool {
	return o.Kind == OutcomeSuccess
}

// IsCancelled returns true if the attempt was paused by the caller
func (o Outcome) IsCancelled() bool {
	return o.Kind == OutcomeCancelled
}

// TotalBytes returns the size of the temp file at the end of the attempt
func (o Outcome) TotalBytes() int64 {
	return o.StartBytes + o.BytesWritten
}
