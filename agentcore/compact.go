package agentcore

import (
	"encoding/json"
	"fmt"

	"github.com/martinemde/agentwire/modelkit"
)

// compactThreshold is the fraction of the model's context window at which
// old tool output is compacted away.
const compactThreshold = 0.8

// compactedPlaceholder replaces tool output that was compacted.
const compactedPlaceholder = "[tool output compacted to free context]"

// maybeCompact replaces the oldest tool result contents with placeholders
// when the approximate token count crosses the threshold, and emits a
// compaction marker so the client can annotate its transcript.
func (e *Engine) maybeCompact() {
	window := modelkit.ContextWindowFor(e.spec.Model)

	e.mu.Lock()
	defer e.mu.Unlock()

	totalChars := 0
	for _, msg := range e.history {
		for _, part := range msg.Content {
			totalChars += len(part.Text)
			if part.Kind == modelkit.ContentToolResult && part.ToolResult != nil {
				totalChars += len(part.ToolResult.Content)
			}
		}
	}

	approxTokens := totalChars / 4
	if approxTokens <= int(float64(window)*compactThreshold) {
		return
	}

	// Compact oldest-first, sparing the most recent quarter of the history.
	// Messages are replaced wholesale, never mutated in place.
	compacted := 0
	cutoff := len(e.history) * 3 / 4
	placeholder, _ := json.Marshal(compactedPlaceholder)
	for i := 0; i < cutoff; i++ {
		msg := e.history[i]
		if msg.Role != modelkit.RoleTool {
			continue
		}
		changed := false
		parts := make([]modelkit.ContentPart, len(msg.Content))
		copy(parts, msg.Content)
		for j, part := range parts {
			if part.Kind == modelkit.ContentToolResult && part.ToolResult != nil && len(part.ToolResult.Content) > len(placeholder) {
				tr := *part.ToolResult
				tr.Content = placeholder
				parts[j].ToolResult = &tr
				changed = true
				compacted++
			}
		}
		if changed {
			e.history[i] = modelkit.Message{Role: msg.Role, Content: parts, ToolCallID: msg.ToolCallID}
		}
	}

	if compacted > 0 {
		e.sink.Emit(EventCompaction, map[string]interface{}{
			"compacted_results": compacted,
			"approx_tokens":     approxTokens,
			"context_window":    window,
			"message":           fmt.Sprintf("compacted %d tool results at ~%d%% context usage", compacted, approxTokens*100/window),
		})
	}
}
