package agentcore

import (
	"context"
	"testing"

	"github.com/martinemde/agentwire/modelkit"
)

func TestSpawnToolRegisteredForSubagents(t *testing.T) {
	adapter := &scriptedAdapter{}
	client := modelkit.NewClient(modelkit.WithProvider("mock", adapter))
	tools := NewToolset()
	spec := AgentSpec{
		Name:         "parent",
		SystemPrompt: "parent prompt",
		Model:        "test-model",
		Provider:     "mock",
		Subagents: []SubagentDef{
			{Name: "researcher", SystemPrompt: "research things"},
		},
	}

	e := NewEngine(client, spec, tools, nil, nil)
	defer e.Close()

	if tools.Resolve("spawn_agent") == nil {
		t.Fatal("spawn_agent should be registered when subagents exist")
	}
}

func TestSpawnToolNotRegisteredWithoutSubagents(t *testing.T) {
	adapter := &scriptedAdapter{}
	client := modelkit.NewClient(modelkit.WithProvider("mock", adapter))
	tools := NewToolset()

	e := NewEngine(client, AgentSpec{Name: "solo", Model: "test-model", Provider: "mock"}, tools, nil, nil)
	defer e.Close()

	if tools.Resolve("spawn_agent") != nil {
		t.Fatal("spawn_agent must not register without subagents")
	}
}

func TestSubagentRunsAndReturnsText(t *testing.T) {
	// Script order: parent requests the spawn, the child turn answers, the
	// parent wraps up.
	adapter := &scriptedAdapter{script: []scriptStep{
		toolStep("c1", "spawn_agent", `{"agent":"researcher","task":"find the answer"}`),
		textStep("the child found it"),
		textStep("parent done"),
	}}
	client := modelkit.NewClient(modelkit.WithProvider("mock", adapter))
	tools := NewToolset()
	spec := AgentSpec{
		Name:         "parent",
		SystemPrompt: "parent prompt",
		Model:        "test-model",
		Provider:     "mock",
		Subagents: []SubagentDef{
			{Name: "researcher", SystemPrompt: "research things"},
		},
	}

	e := NewEngine(client, spec, tools, nil, nil)
	defer e.Close()

	state, err := e.Run(context.Background(), "delegate this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Status != StatusFinished {
		t.Errorf("expected finished, got %s", state.Status)
	}

	// The child's final text is the parent's tool result.
	found := false
	for _, m := range e.History() {
		for _, p := range m.Content {
			if p.Kind == modelkit.ContentToolResult && string(p.ToolResult.Content) != "" {
				found = true
			}
		}
	}
	if !found {
		t.Error("subagent result missing from parent history")
	}
}

func TestSubagentUnknownNameIsErrorResult(t *testing.T) {
	adapter := &scriptedAdapter{script: []scriptStep{
		toolStep("c1", "spawn_agent", `{"agent":"ghost","task":"anything"}`),
		textStep("noted"),
	}}
	client := modelkit.NewClient(modelkit.WithProvider("mock", adapter))
	tools := NewToolset()
	spec := AgentSpec{
		Name:     "parent",
		Model:    "test-model",
		Provider: "mock",
		Subagents: []SubagentDef{
			{Name: "researcher", SystemPrompt: "research things"},
		},
	}

	e := NewEngine(client, spec, tools, nil, nil)
	defer e.Close()

	state, err := e.Run(context.Background(), "delegate this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Status != StatusFinished {
		t.Errorf("expected finished, got %s", state.Status)
	}

	foundError := false
	for _, m := range e.History() {
		for _, p := range m.Content {
			if p.Kind == modelkit.ContentToolResult && p.ToolResult.IsError {
				foundError = true
			}
		}
	}
	if !foundError {
		t.Error("unknown subagent should produce an error tool result")
	}
}
