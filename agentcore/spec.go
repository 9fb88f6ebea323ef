package agentcore

// SubagentDef describes a child agent the engine may spawn. Definitions
// arrive fully resolved; no inheritance logic runs here.
type SubagentDef struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	SystemPrompt string   `json:"system_prompt"`
	Tools        []string `json:"tools,omitempty"` // empty = inherit parent's toolset
}

// CommandInfo describes a slash-style command the session exposes to
// connected clients.
type CommandInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AgentSpec is the flattened, immutable agent definition a session runs
// with: system prompt, tool allow-list, subagents, and client-visible
// commands. Discovery and inheritance resolution happen before the spec
// reaches this package.
type AgentSpec struct {
	Name         string        `json:"name"`
	SystemPrompt string        `json:"system_prompt"`
	AllowedTools []string      `json:"allowed_tools,omitempty"` // empty = all registered tools
	Subagents    []SubagentDef `json:"subagents,omitempty"`
	Commands     []CommandInfo `json:"commands,omitempty"`
	Model        string        `json:"model,omitempty"`
	Provider     string        `json:"provider,omitempty"`
}

// SubagentByName returns the named subagent definition, or nil.
func (s AgentSpec) SubagentByName(name string) *SubagentDef {
	for i := range s.Subagents {
		if s.Subagents[i].Name == name {
			return &s.Subagents[i]
		}
	}
	return nil
}
