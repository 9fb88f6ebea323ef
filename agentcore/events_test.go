package agentcore

import (
	"fmt"
	"sync"
	"testing"
)

func TestEventSinkPreservesOrder(t *testing.T) {
	sink := NewEventSink("s1", 16)

	go func() {
		for i := 0; i < 100; i++ {
			sink.Emit(EventTextDelta, map[string]interface{}{"n": i})
		}
		sink.Close()
	}()

	i := 0
	for ev := range sink.Events() {
		if got := ev.Data["n"].(int); got != i {
			t.Fatalf("event %d arrived out of order as %d", i, got)
		}
		if ev.SessionID != "s1" {
			t.Fatalf("wrong session id: %s", ev.SessionID)
		}
		i++
	}
	if i != 100 {
		t.Errorf("expected 100 events, got %d", i)
	}
}

func TestEventSinkBlocksInsteadOfDropping(t *testing.T) {
	sink := NewEventSink("s1", 2)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// More events than the buffer holds; none may be lost.
		for i := 0; i < 10; i++ {
			sink.Emit(EventWarning, map[string]interface{}{"n": i})
		}
		sink.Close()
	}()

	count := 0
	for range sink.Events() {
		count++
	}
	wg.Wait()
	if count != 10 {
		t.Errorf("expected all 10 events delivered, got %d", count)
	}
}

func TestEventSinkEmitAfterCloseIsNoOp(t *testing.T) {
	sink := NewEventSink("s1", 4)
	sink.Close()
	sink.Close() // idempotent

	// Must not panic.
	sink.Emit(EventWarning, nil)

	if _, ok := <-sink.Events(); ok {
		t.Error("expected a closed channel")
	}
}

func TestEventSinkConcurrentProducers(t *testing.T) {
	sink := NewEventSink("s1", 8)

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				sink.Emit(EventTextDelta, map[string]interface{}{"producer": fmt.Sprintf("p%d", p)})
			}
		}(p)
	}
	go func() {
		wg.Wait()
		sink.Close()
	}()

	count := 0
	for range sink.Events() {
		count++
	}
	if count != 100 {
		t.Errorf("expected 100 events, got %d", count)
	}
}
