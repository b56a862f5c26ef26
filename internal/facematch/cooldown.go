package facematch

import (
	"sync"
	"time"
)

// CooldownTracker suppresses repeated streaming events for the same identity.
// Entries live for the process lifetime and are never evicted.
type CooldownTracker struct {
	window time.Duration
	mu     sync.Mutex
	last   map[string]time.Time
}

// NewCooldownTracker creates a tracker with the given suppression window.
func NewCooldownTracker(window time.Duration) *CooldownTracker {
	return &CooldownTracker{
		window: window,
		last:   make(map[string]time.Time),
	}
}

// Allow reports whether an event for identity may be emitted at now. An
// accepted call records now as the identity's last emission; a rejected call
// leaves the entry untouched.
func (c *CooldownTracker) Allow(identity string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.last[identity]; ok && now.Sub(last) <= c.window {
		return false
	}
	c.last[identity] = now
	return true
}

// Forget drops the entry for identity if it still holds the emission recorded
// at at. Used when persisting that emission failed.
func (c *CooldownTracker) Forget(identity string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.last[identity]; ok && last.Equal(at) {
		delete(c.last, identity)
	}
}

// Window returns the suppression window.
func (c *CooldownTracker) Window() time.Duration {
	return c.window
}

// Len returns the number of tracked identities.
func (c *CooldownTracker) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.last)
}
