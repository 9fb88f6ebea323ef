// Package transcript persists session event streams for later inspection and
// replay.
package transcript

import (
	"sync"

	"github.com/martinemde/agentwire/agentcore"
)

// Recorder receives every event a session emits, in order. Implementations
// must tolerate being called from a single goroutine per session.
type Recorder interface {
	Record(ev agentcore.Event) error
	Close() error
}

// Nop discards all events.
type Nop struct{}

func (Nop) Record(agentcore.Event) error { return nil }
func (Nop) Close() error                 { return nil }

// Memory keeps events in a slice. Intended for tests and short-lived
// sessions.
type Memory struct {
	mu     sync.Mutex
	events []agentcore.Event
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Record(ev agentcore.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// Events returns a snapshot of everything recorded so far.
func (m *Memory) Events() []agentcore.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]agentcore.Event, len(m.events))
	copy(out, m.events)
	return out
}

func (m *Memory) Close() error { return nil }
