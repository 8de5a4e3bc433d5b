package ratelimiter

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		delays   []time.Duration // clock advance before each Allow() call
		want     []bool
	}{
		{
			name:     "first call always allowed",
			interval: 100 * time.Millisecond,
			delays:   []time.Duration{0},
			want:     []bool{true},
		},
		{
			name:     "second call immediately after is blocked",
			interval: 100 * time.Millisecond,
			delays:   []time.Duration{0, 0},
			want:     []bool{true, false},
		},
		{
			name:     "call after interval is allowed",
			interval: 50 * time.Millisecond,
			delays:   []time.Duration{0, 60 * time.Millisecond},
			want:     []bool{true, true},
		},
		{
			name:     "call exactly at interval is allowed",
			interval: time.Second,
			delays:   []time.Duration{0, time.Second},
			want:     []bool{true, true},
		},
		{
			name:     "multiple rapid calls",
			interval: 100 * time.Millisecond,
			delays:   []time.Duration{0, 0, 10 * time.Millisecond, 10 * time.Millisecond},
			want:     []bool{true, false, false, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			limiter := NewWithClock(tt.interval, clock.Now)

			for i, delay := range tt.delays {
				clock.Advance(delay)

				allowed, waitTime := limiter.Allow()
				if allowed != tt.want[i] {
					t.Errorf("call %d: Allow() = %v, want %v", i, allowed, tt.want[i])
				}
				if !allowed && waitTime <= 0 {
					t.Errorf("call %d: blocked but waitTime = %v, want > 0", i, waitTime)
				}
				if allowed && waitTime != 0 {
					t.Errorf("call %d: allowed but waitTime = %v, want 0", i, waitTime)
				}
			}
		})
	}
}

func TestLimiter_StartDelaysFirstWindow(t *testing.T) {
	clock := newFakeClock()
	limiter := NewWithClock(time.Second, clock.Now)
	limiter.Start()

	if _, ok := limiter.Sample(); ok {
		t.Fatal("Sample() right after Start should be blocked")
	}

	clock.Advance(999 * time.Millisecond)
	if _, ok := limiter.Sample(); ok {
		t.Fatal("Sample() before a full interval should be blocked")
	}

	clock.Advance(1500 * time.Millisecond)
	elapsed, ok := limiter.Sample()
	if !ok {
		t.Fatal("Sample() after a full interval should be allowed")
	}
	if elapsed != 2499*time.Millisecond {
		t.Errorf("elapsed = %v, want %v", elapsed, 2499*time.Millisecond)
	}

	clock.Advance(time.Second)
	elapsed, ok = limiter.Sample()
	if !ok || elapsed != time.Second {
		t.Errorf("Sample() = %v, %v, want 1s, true", elapsed, ok)
	}
}

func TestLimiter_SampleWithoutStart(t *testing.T) {
	limiter := NewWithClock(time.Second, newFakeClock().Now)

	elapsed, ok := limiter.Sample()
	if !ok || elapsed != 0 {
		t.Errorf("first Sample() = %v, %v, want 0, true", elapsed, ok)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter := New(time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if allowed, _ := limiter.Allow(); allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	if allowedCount != 1 {
		t.Errorf("concurrent calls: %d allowed, want exactly 1", allowedCount)
	}
}

func TestLimiter_WaitTime(t *testing.T) {
	clock := newFakeClock()
	limiter := NewWithClock(100*time.Millisecond, clock.Now)

	limiter.Allow()

	allowed, waitTime := limiter.Allow()
	if allowed || waitTime != 100*time.Millisecond {
		t.Errorf("Allow() = %v, %v, want false, 100ms", allowed, waitTime)
	}

	clock.Advance(30 * time.Millisecond)
	allowed, waitTime = limiter.Allow()
	if allowed || waitTime != 70*time.Millisecond {
		t.Errorf("Allow() = %v, %v, want false, 70ms", allowed, waitTime)
	}
}
