package wire

import (
	"encoding/json"
	"testing"
)

func TestCorrelationsResolveDeliversOnce(t *testing.T) {
	c := NewCorrelations()
	ch := c.Add("req-1")

	if !c.Resolve("req-1", json.RawMessage(`{"ok":true}`)) {
		t.Fatal("expected first resolve to apply")
	}
	if got := <-ch; string(got) != `{"ok":true}` {
		t.Errorf("unexpected payload: %s", got)
	}

	// A duplicate response is a no-op, never a double delivery.
	if c.Resolve("req-1", json.RawMessage(`{"ok":false}`)) {
		t.Error("second resolve must not apply")
	}
	select {
	case extra := <-ch:
		t.Errorf("unexpected second delivery: %s", extra)
	default:
	}
}

func TestCorrelationsUnknownIDIsNoOp(t *testing.T) {
	c := NewCorrelations()
	if c.Resolve("never-issued", json.RawMessage(`{}`)) {
		t.Error("responses for unknown ids must be dropped")
	}
}

func TestCorrelationsCancelledResponseIsNoOp(t *testing.T) {
	c := NewCorrelations()
	ch := c.Add("req-1")
	c.Cancel("req-1")

	if !c.Cancelled("req-1") {
		t.Error("cancellation should be remembered until the response arrives")
	}
	if c.Resolve("req-1", json.RawMessage(`{}`)) {
		t.Error("response after cancellation must be a no-op")
	}
	select {
	case <-ch:
		t.Error("cancelled request must not be resumed")
	default:
	}
	// The late response consumes the tombstone; the id does not linger.
	if c.Cancelled("req-1") {
		t.Error("tombstone should be pruned once the response is dropped")
	}
}

func TestCorrelationsPendingCount(t *testing.T) {
	c := NewCorrelations()
	c.Add("a")
	c.Add("b")
	if c.Pending() != 2 {
		t.Errorf("expected 2 pending, got %d", c.Pending())
	}
	c.Resolve("a", json.RawMessage(`{}`))
	if c.Pending() != 1 {
		t.Errorf("expected 1 pending, got %d", c.Pending())
	}
	c.Cancel("b")
	if c.Pending() != 0 {
		t.Errorf("expected 0 pending, got %d", c.Pending())
	}
}
