package transfer

import "github.com/vertextoedge/resumable-download/internal/domain"

// ProgressListener receives progress samples of a running attempt
type ProgressListener interface {
	OnUpdate(sample domain.ProgressSample)
}

// Listener receives the events of a started download. OnUpdate may be
// called any number of times; exactly one of OnSuccess or OnFailure is
// called last.
type Listener interface {
	ProgressListener

	// OnSuccess receives the final file path
	OnSuccess(path string)

	// OnFailure receives the error of a failed or cancelled attempt.
	// A pause requested through Handle.Cancel matches domain.ErrCancelled.
	OnFailure(err error)
}

// NopListener ignores every event
type NopListener struct{}

func (NopListener) OnUpdate(domain.ProgressSample) {}
func (NopListener) OnSuccess(string)               {}
func (NopListener) OnFailure(error)                {}

// Callbacks adapts plain functions to Listener. Nil functions are skipped.
type Callbacks struct {
	Update  func(sample domain.ProgressSample)
	Success func(path string)
	Failure func(err error)
}

// OnUpdate calls Update
func (c Callbacks) OnUpdate(sample domain.ProgressSample) {
	if c.Update != nil {
		c.Update(sample)
	}
}

// OnSuccess calls Success
func (c Callbacks) OnSuccess(path string) {
	if c.Success != nil {
		c.Success(path)
	}
}

// OnFailure calls Failure
func (c Callbacks) OnFailure(err error) {
	if c.Failure != nil {
		c.Failure(err)
	}
}

var (
	_ Listener = NopListener{}
	_ Listener = Callbacks{}
)
