package eventsub

import (
	"sync"
	"time"
)

// DefaultGraceWindow is how long a new-sub notification is held back waiting
// for a resub message from the same user. Twitch delivers channel.subscribe
// and channel.subscription.message as separate events for a resub share, and
// the share can trail by up to a couple of seconds.
const DefaultGraceWindow = 2 * time.Second

// Coalescer defers an action per user so a later, richer event can replace
// it inside the grace window.
type Coalescer struct {
	grace time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func NewCoalescer(grace time.Duration) *Coalescer {
	return &Coalescer{
		grace:   grace,
		pending: make(map[string]*time.Timer),
	}
}

// Schedule runs fn after the grace window unless Cancel is called for the
// same user first. A second Schedule for the same user replaces the first.
func (c *Coalescer) Schedule(userID string, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.pending[userID]; ok {
		t.Stop()
	}
	c.pending[userID] = time.AfterFunc(c.grace, func() {
		c.mu.Lock()
		delete(c.pending, userID)
		c.mu.Unlock()
		fn()
	})
}

// Cancel drops a pending action. Returns whether one was pending.
func (c *Coalescer) Cancel(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.pending[userID]
	if !ok {
		return false
	}
	t.Stop()
	delete(c.pending, userID)
	return ok
}

// Stop cancels everything pending.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.pending {
		t.Stop()
		delete(c.pending, id)
	}
}
