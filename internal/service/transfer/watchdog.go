package transfer

import (
	"context"
	"os"
	"time"
)

// watchdog cancels a request context when no data arrived for timeout
type watchdog struct {
	cancel  context.CancelCauseFunc
	timer   *time.Timer
	timeout time.Duration
}

func newWatchdog(parent context.Context, timeout time.Duration) (context.Context, *watchdog) {
	ctx, cancel := context.WithCancelCause(parent)
	var timer *time.Timer
	if timeout > 0 {
		timer = time.AfterFunc(timeout, func() {
			cancel(os.ErrDeadlineExceeded)
		})
	}
	return ctx, &watchdog{
		cancel:  cancel,
		timer:   timer,
		timeout: timeout,
	}
}

// Kick postpones the deadline
func (wd *watchdog) Kick() {
	if wd.timeout > 0 {
		wd.timer.Reset(wd.timeout)
	}
}

// Stop releases the timer and the context
func (wd *watchdog) Stop() {
	if wd.timeout > 0 {
		wd.timer.Stop()
	}
	wd.cancel(nil)
}
