package agentcore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/martinemde/agentwire/modelkit"
)

// RegisterSpawnTool adds the spawn_agent tool to the toolset. The tool runs
// one of the parent spec's subagents to completion on its own child engine
// and returns the child's final assistant text. Nesting depth is bounded by
// the parent's MaxSubagentDepth.
func RegisterSpawnTool(tools *Toolset, parent *Engine) {
	names := make([]string, len(parent.spec.Subagents))
	for i, sa := range parent.spec.Subagents {
		names[i] = sa.Name
	}

	tools.Register(RegisteredTool{
		Definition: spawnToolDefinition(names),
		Execute: func(ctx context.Context, arguments json.RawMessage) (*ToolReturn, error) {
			return runSubagent(ctx, parent, arguments)
		},
	})
}

func spawnToolDefinition(subagentNames []string) modelkit.ToolDefinition {
	return modelkit.ToolDefinition{
		Name:        "spawn_agent",
		Description: "Delegate a task to a subagent. Available subagents: " + strings.Join(subagentNames, ", "),
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"agent": map[string]interface{}{
					"type":        "string",
					"description": "Name of the subagent to run.",
				},
				"task": map[string]interface{}{
					"type":        "string",
					"description": "The task for the subagent to complete.",
				},
			},
			"required": []string{"agent", "task"},
		},
	}
}

func runSubagent(ctx context.Context, parent *Engine, arguments json.RawMessage) (*ToolReturn, error) {
	args, err := ParseToolArguments(arguments)
	if err != nil {
		return nil, err
	}
	agentName, _ := GetStringArg(args, "agent")
	task, _ := GetStringArg(args, "task")
	if agentName == "" || task == "" {
		return ErrorReturn("spawn_agent requires both 'agent' and 'task'"), nil
	}

	def := parent.spec.SubagentByName(agentName)
	if def == nil {
		return ErrorReturn("unknown subagent: %s", agentName), nil
	}

	childSpec := AgentSpec{
		Name:         def.Name,
		SystemPrompt: def.SystemPrompt,
		AllowedTools: def.Tools,
		Model:        parent.spec.Model,
		Provider:     parent.spec.Provider,
	}

	childConfig := parent.config
	childConfig.subagentDepth = parent.config.subagentDepth + 1

	child := NewEngine(parent.client, childSpec, parent.tools, parent.requester, &childConfig)

	// Forward the child's events onto the parent stream so the client sees
	// nested activity in order.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range child.Events() {
			data := ev.Data
			if data == nil {
				data = map[string]interface{}{}
			}
			data["subagent"] = def.Name
			parent.sink.Emit(ev.Kind, data)
		}
	}()

	state, err := child.Run(ctx, task)
	child.Close()
	<-done

	if err != nil {
		return ErrorReturn("subagent %s failed: %v", def.Name, err), nil
	}

	output := child.LastAssistantText()
	if output == "" {
		output = fmt.Sprintf("subagent %s finished with status %s and no output", def.Name, state.Status)
	}
	return &ToolReturn{
		Output:  output,
		Message: fmt.Sprintf("subagent %s finished: %s (%d steps)", def.Name, state.Status, state.Steps),
	}, nil
}
