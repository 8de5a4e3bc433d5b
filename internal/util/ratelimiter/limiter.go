package ratelimiter

import (
	"sync"
	"time"
)

// Clock returns the current time
type Clock func() time.Time

// Limiter allows one action per interval and is safe for concurrent use.
type Limiter struct {
	mu          sync.Mutex
	interval    time.Duration
	lastAllowed time.Time
	now         Clock
}

// New creates a new rate limiter with the specified interval.
// The first action is allowed immediately.
func New(interval time.Duration) *Limiter {
	return NewWithClock(interval, time.Now)
}

// NewWithClock creates a rate limiter reading time from now
func NewWithClock(interval time.Duration, now Clock) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		interval: interval,
		now:      now,
	}
}

// Start opens the first window now, so that the next action is only
// allowed once a full interval has elapsed.
func (l *Limiter) Start() {
	l.mu.Lock()
	l.lastAllowed = l.now()
	l.mu.Unlock()
}

// Allow checks if an action is allowed at this time.
// Returns true if allowed (and records this as the last allowed time),
// or false with the remaining wait duration if rate-limited.
func (l *Limiter) Allow() (bool, time.Duration) {
	ok, _, wait := l.take()
	return ok, wait
}

// Sample is Allow for periodic measurements: when allowed it returns the
// length of the window that just closed, i.e. the time since the previous
// allowed action (or since Start). The window of an unstarted limiter is 0.
func (l *Limiter) Sample() (time.Duration, bool) {
	ok, elapsed, _ := l.take()
	return elapsed, ok
}

func (l *Limiter) take() (bool, time.Duration, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.lastAllowed.IsZero() {
		l.lastAllowed = now
		return true, 0, 0
	}

	sinceLast := now.Sub(l.lastAllowed)
	if sinceLast >= l.interval {
		l.lastAllowed = now
		return true, sinceLast, 0
	}

	return false, 0, l.interval - sinceLast
}
