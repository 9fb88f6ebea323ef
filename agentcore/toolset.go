package agentcore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/martinemde/agentwire/modelkit"
)

// DisplayBlock is an opaque rendering hint for the client. The engine never
// interprets it; it rides along on tool results and approval requests.
type DisplayBlock struct {
	Kind string          `json:"kind"` // "diff", "shell", "todo", "brief", ...
	Data json.RawMessage `json:"data,omitempty"`
}

// ToolReturn is the full return value of a tool execution.
type ToolReturn struct {
	IsError bool                   `json:"is_error"`
	Output  string                 `json:"output"`            // fed back to the model
	Message string                 `json:"message,omitempty"` // explanatory text
	Display []DisplayBlock         `json:"display,omitempty"` // opaque blocks for the client
	Extras  map[string]interface{} `json:"extras,omitempty"`
}

// ErrorReturn builds a ToolReturn describing a failed call.
func ErrorReturn(format string, args ...interface{}) *ToolReturn {
	msg := fmt.Sprintf(format, args...)
	return &ToolReturn{IsError: true, Output: msg, Message: msg}
}

// ToolFunc executes a locally implemented tool.
type ToolFunc func(ctx context.Context, arguments json.RawMessage) (*ToolReturn, error)

// ActionFunc derives the human-readable action string used for approval
// prompts and session pre-approval fingerprints.
type ActionFunc func(arguments json.RawMessage) string

// RegisteredTool pairs a tool definition with its execution behavior.
// Exactly one of Execute or External is set: external tools are proxied to
// the connected client through the protocol server.
type RegisteredTool struct {
	Definition       modelkit.ToolDefinition
	Execute          ToolFunc
	External         bool
	RequiresApproval bool
	Action           ActionFunc
}

// Toolset manages tool registration and lookup for one session. It is built
// once at session setup from the agent spec's allowed tool names plus any
// client-declared external tools.
type Toolset struct {
	tools map[string]*RegisteredTool
	mu    sync.RWMutex
}

// NewToolset creates an empty Toolset.
func NewToolset() *Toolset {
	return &Toolset{tools: make(map[string]*RegisteredTool)}
}

// Register adds or replaces a tool.
func (t *Toolset) Register(tool RegisteredTool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tools[tool.Definition.Name] = &tool
}

// RegisterExternal adds a client-declared external tool. It fails when the
// name collides with an existing tool or the schema is unusable; the caller
// reports the failure per-tool rather than aborting the handshake.
func (t *Toolset) RegisterExternal(def modelkit.ToolDefinition, requiresApproval bool) error {
	if def.Name == "" {
		return fmt.Errorf("external tool has no name")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.tools[def.Name]; exists {
		return fmt.Errorf("tool %q is already registered", def.Name)
	}
	t.tools[def.Name] = &RegisteredTool{
		Definition:       def,
		External:         true,
		RequiresApproval: requiresApproval,
	}
	return nil
}

// Resolve returns a registered tool by name, or nil if not found.
func (t *Toolset) Resolve(name string) *RegisteredTool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tools[name]
}

// RequiresApproval reports whether a tool call must pass the approval gate.
// Unknown tools do not require approval; they fail resolution instead.
func (t *Toolset) RequiresApproval(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tool, ok := t.tools[name]
	return ok && tool.RequiresApproval
}

// Definitions returns all tool definitions for the model request, filtered
// to the given allow-list when it is non-empty.
func (t *Toolset) Definitions(allowed []string) []modelkit.ToolDefinition {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(allowed) == 0 {
		defs := make([]modelkit.ToolDefinition, 0, len(t.tools))
		for _, tool := range t.tools {
			defs = append(defs, tool.Definition)
		}
		return defs
	}

	var defs []modelkit.ToolDefinition
	for _, name := range allowed {
		if tool, ok := t.tools[name]; ok {
			defs = append(defs, tool.Definition)
		}
	}
	return defs
}

// Names returns the names of all registered tools.
func (t *Toolset) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.tools))
	for name := range t.tools {
		names = append(names, name)
	}
	return names
}

// Count returns the number of registered tools.
func (t *Toolset) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tools)
}

// ActionFor derives the approval action string for a tool call. Tools
// without an ActionFunc fall back to a canonical rendering of their
// arguments, so equivalent calls fingerprint identically regardless of key
// order or whitespace.
func (t *Toolset) ActionFor(name string, arguments json.RawMessage) string {
	tool := t.Resolve(name)
	if tool != nil && tool.Action != nil {
		return tool.Action(arguments)
	}
	return modelkit.NormalizeArguments(arguments)
}

// ParseToolArguments unmarshals tool call arguments into a map.
func ParseToolArguments(raw json.RawMessage) (map[string]interface{}, error) {
	var args map[string]interface{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	return args, nil
}

// GetStringArg extracts a string argument from parsed tool arguments.
func GetStringArg(args map[string]interface{}, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetIntArg extracts an integer argument from parsed tool arguments.
func GetIntArg(args map[string]interface{}, key string) (int, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
