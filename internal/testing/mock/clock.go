package mock

import (
	"sync"
	"time"

	"coherence/internal/portal"
)

var _ portal.Clock = (*MockClock)(nil)

// MockClock is a portal.Clock that only moves when told to. Portals and
// time-based steps built on it can be pushed past their deadlines without
// sleeping.
type MockClock struct {
	mu    sync.Mutex
	start time.Time
	now   time.Time
	tick  time.Duration
}

// NewMockClock returns a clock stopped at t, or at the current time when t is zero.
func NewMockClock(t time.Time) *MockClock {
	if t.IsZero() {
		t = time.Now()
	}
	return &MockClock{start: t, now: t}
}

// Now reports the clock's time, then moves it forward by the tick if one is set.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.tick)
	return now
}

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t. Elapsed is measured from the original start.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Tick makes every Now call advance the clock by d, so each portal poll
// observes time passing. A zero d stops the clock again.
func (c *MockClock) Tick(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick = d
}

// Elapsed is how far the clock has moved since it was created.
func (c *MockClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Sub(c.start)
}
