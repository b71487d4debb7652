package playback

import "sync"

// Clock is a TimeSource fed by position reports from the browser's audio
// element. It stays not-ok until the first report arrives and after Clear.
type Clock struct {
	mu       sync.RWMutex
	position float64
	known    bool
}

// NewClock creates an empty clock.
func NewClock() *Clock {
	return &Clock{}
}

// Set records the latest reported playback position.
func (c *Clock) Set(seconds float64) {
	c.mu.Lock()
	c.position = seconds
	c.known = true
	c.mu.Unlock()
}

// Clear forgets the position, e.g. when the audio is replaced.
func (c *Clock) Clear() {
	c.mu.Lock()
	c.position = 0
	c.known = false
	c.mu.Unlock()
}

// Position implements TimeSource.
func (c *Clock) Position() (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.position, c.known
}
