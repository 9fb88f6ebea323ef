package agentcore

import (
	"sync"
	"time"
)

// EventKind identifies the type of session event.
type EventKind string

const (
	EventTurnStart        EventKind = "turn_start"
	EventTurnEnd          EventKind = "turn_end"
	EventStepStart        EventKind = "step_start"
	EventStepEnd          EventKind = "step_end"
	EventStepInterrupted  EventKind = "step_interrupted"
	EventTextDelta        EventKind = "text_delta"
	EventThinkDelta       EventKind = "think_delta"
	EventToolCall         EventKind = "tool_call"
	EventToolCallPart     EventKind = "tool_call_part"
	EventToolResult       EventKind = "tool_result"
	EventApprovalResolved EventKind = "approval_resolved"
	EventSteeringInjected EventKind = "steering_injected"
	EventCompaction       EventKind = "compaction"
	EventFlowStart        EventKind = "flow_start"
	EventFlowNode         EventKind = "flow_node"
	EventFlowEnd          EventKind = "flow_end"
	EventLoopDetection    EventKind = "loop_detection"
	EventWarning          EventKind = "warning"
	EventError            EventKind = "error"
)

// Event is a typed event emitted by the turn engine.
type Event struct {
	Kind      EventKind              `json:"kind"`
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"session_id"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventSink delivers events to its single consumer in the exact order they
// were produced. Emit blocks when the buffer is full rather than dropping or
// reordering; the protocol server is required to keep draining.
type EventSink struct {
	sessionID string
	ch        chan Event
	closed    bool
	mu        sync.Mutex
}

// NewEventSink creates a new EventSink with a buffered channel.
func NewEventSink(sessionID string, bufferSize int) *EventSink {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventSink{
		sessionID: sessionID,
		ch:        make(chan Event, bufferSize),
	}
}

// Emit sends an event to the channel. If the sink is closed, the event is
// silently dropped.
func (s *EventSink) Emit(kind EventKind, data map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	// Holding the lock across the send keeps Close from racing a blocked
	// producer; the consumer drains without taking the lock.
	s.ch <- Event{
		Kind:      kind,
		Timestamp: time.Now(),
		SessionID: s.sessionID,
		Data:      data,
	}
}

// Events returns the read-only event channel.
func (s *EventSink) Events() <-chan Event {
	return s.ch
}

// Close closes the event channel. Safe to call multiple times.
func (s *EventSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
