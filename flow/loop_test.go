package flow

import (
	"context"
	"strings"
	"testing"
)

func TestRunLoopZeroIterationsRunsOnce(t *testing.T) {
	engine := &scriptedEngine{replies: []string{"did the thing"}}
	err := RunLoop(context.Background(), engine, LoopConfig{
		Prompt:        "do the thing",
		MaxIterations: 0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(engine.prompts) != 1 {
		t.Fatalf("expected exactly one turn, got %d", len(engine.prompts))
	}
	if engine.prompts[0] != "do the thing" {
		t.Errorf("unexpected prompt: %q", engine.prompts[0])
	}
}

func TestRunLoopStopsOnStopChoice(t *testing.T) {
	engine := &scriptedEngine{replies: []string{
		"first pass done",
		"<choice>continue</choice>",
		"second pass done",
		"<choice>stop</choice>",
	}}
	err := RunLoop(context.Background(), engine, LoopConfig{
		Prompt:        "improve the draft",
		MaxIterations: -1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Two execute turns and two decision turns.
	if len(engine.prompts) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(engine.prompts))
	}
	if engine.prompts[0] != "improve the draft" || engine.prompts[2] != "improve the draft" {
		t.Errorf("execute prompts wrong: %v", engine.prompts)
	}
	if !strings.Contains(engine.prompts[1], "continue") || !strings.Contains(engine.prompts[1], "stop") {
		t.Errorf("decision prompt should enumerate options: %q", engine.prompts[1])
	}
}

func TestRunLoopIterationCap(t *testing.T) {
	// Always chooses continue; the iteration bound must end the loop.
	engine := &scriptedEngine{replies: []string{"<choice>continue</choice>"}}
	err := RunLoop(context.Background(), engine, LoopConfig{
		Prompt:        "keep polishing",
		MaxIterations: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	executes := 0
	for _, p := range engine.prompts {
		if p == "keep polishing" {
			executes++
		}
	}
	if executes != 3 {
		t.Errorf("expected 3 execute turns, got %d (prompts: %d)", executes, len(engine.prompts))
	}
}

func TestRunLoopUnboundedRespectsMoveBudget(t *testing.T) {
	engine := &scriptedEngine{replies: []string{"<choice>continue</choice>"}}
	err := RunLoop(context.Background(), engine, LoopConfig{
		Prompt:        "forever",
		MaxIterations: -1,
		MaxMoves:      10,
	})
	if err == nil {
		t.Fatal("expected the move budget to halt an unbounded loop")
	}
}

func TestRunLoopCustomDecisionPrompt(t *testing.T) {
	engine := &scriptedEngine{replies: []string{
		"pass done",
		"<choice>stop</choice>",
	}}
	err := RunLoop(context.Background(), engine, LoopConfig{
		Prompt:         "make a pass",
		DecisionPrompt: "Another round?",
		MaxIterations:  5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(engine.prompts) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(engine.prompts))
	}
	if !strings.Contains(engine.prompts[1], "Another round?") {
		t.Errorf("custom decision prompt missing: %q", engine.prompts[1])
	}
}
