package clock

import (
	"sync"
	"time"
)

// Clock abstracts time for components that schedule or compare instants.
type Clock interface {
	// Now returns the current wall-clock instant in UTC.
	Now() time.Time
	// Monotonic returns a strictly non-decreasing duration since an
	// arbitrary start point, for measuring elapsed time.
	Monotonic() time.Duration
}

type realClock struct {
	start time.Time
}

// New returns a Clock backed by the system clock.
func New() Clock {
	return &realClock{start: time.Now()}
}

func (c *realClock) Now() time.Time {
	return time.Now().UTC()
}

func (c *realClock) Monotonic() time.Duration {
	return time.Since(c.start)
}

// Fake is a controllable clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake frozen at the given instant.
func NewFake(now time.Time) *Fake {
	return &Fake{now: now.UTC()}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Monotonic() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now.Sub(time.Time{})
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Set moves the fake clock to the given instant.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t.UTC()
}
