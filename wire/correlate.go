package wire

import (
	"encoding/json"
	"sync"
)

// Correlations tracks server-issued requests awaiting a client response.
// Each id is resolved exactly once; a response for a cancelled or unknown id
// is accepted as a no-op. The table belongs to exactly one session and is
// never shared across sessions.
type Correlations struct {
	mu        sync.Mutex
	pending   map[string]chan json.RawMessage
	cancelled map[string]bool
}

// NewCorrelations creates an empty correlation table.
func NewCorrelations() *Correlations {
	return &Correlations{
		pending:   make(map[string]chan json.RawMessage),
		cancelled: make(map[string]bool),
	}
}

// Add registers a new outstanding request id and returns the channel its
// response will be delivered on.
func (c *Correlations) Add(id string) <-chan json.RawMessage {
	ch := make(chan json.RawMessage, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	return ch
}

// Resolve delivers a response to the waiter for id. It reports whether the
// response was applied; responses for ids that were cancelled, already
// resolved, or never issued are dropped without error.
func (c *Correlations) Resolve(id string, result json.RawMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.pending[id]
	if !ok {
		// A tombstone left by Cancel has served its purpose once the late
		// response arrives.
		delete(c.cancelled, id)
		return false
	}
	delete(c.pending, id)
	ch <- result
	return true
}

// Cancel marks an outstanding request as cancelled. A later response for the
// id becomes a no-op instead of resuming anything.
func (c *Correlations) Cancel(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.pending[id]; ok {
		delete(c.pending, id)
		c.cancelled[id] = true
	}
}

// Cancelled reports whether id was cancelled before a response arrived.
func (c *Correlations) Cancelled(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled[id]
}

// Pending returns the number of outstanding requests.
func (c *Correlations) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
