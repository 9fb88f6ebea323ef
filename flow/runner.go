package flow

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/martinemde/agentwire/agentcore"
)

// DefaultMaxMoves bounds total node visits per run, so cyclic flows always
// terminate.
const DefaultMaxMoves = 1000

// TurnRunner runs one conversational turn. *agentcore.Engine satisfies it.
type TurnRunner interface {
	Run(ctx context.Context, input string) (*agentcore.TurnState, error)
	LastAssistantText() string
	Notify(kind agentcore.EventKind, data map[string]interface{})
}

var choiceRe = regexp.MustCompile(`(?s)<choice>(.*?)</choice>`)

// ExtractChoice returns the trimmed contents of the last <choice>...</choice>
// marker in text, or "" when no marker is present. Trailing prose after the
// marker is ignored.
func ExtractChoice(text string) string {
	matches := choiceRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return ""
	}
	return strings.TrimSpace(matches[len(matches)-1][1])
}

// Runner drives a turn engine across multiple turns following a Flow.
type Runner struct {
	flow     *Flow
	engine   TurnRunner
	maxMoves int

	// visitCaps bounds visits per node id; exceeding a cap routes the run
	// straight to the end node. Used by the iteration loop.
	visitCaps map[string]int
	visits    map[string]int
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxMoves overrides the global move budget.
func WithMaxMoves(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxMoves = n
		}
	}
}

// withVisitCap bounds visits to one node.
func withVisitCap(nodeID string, limit int) RunnerOption {
	return func(r *Runner) {
		r.visitCaps[nodeID] = limit
	}
}

// NewRunner creates a Runner for a validated flow.
func NewRunner(f *Flow, engine TurnRunner, opts ...RunnerOption) *Runner {
	r := &Runner{
		flow:      f,
		engine:    engine,
		maxMoves:  DefaultMaxMoves,
		visitCaps: make(map[string]int),
		visits:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run walks the flow from begin to end. Each task or decision node runs one
// turn; decision nodes resolve their outgoing edge from the reply's choice
// marker. The move budget counts every node visit including corrective
// re-prompts; exceeding it returns ErrMaxMovesExceeded.
func (r *Runner) Run(ctx context.Context) error {
	cur := r.flow.BeginID
	moves := 0
	corrective := ""

	r.engine.Notify(agentcore.EventFlowStart, map[string]interface{}{
		"begin": r.flow.BeginID,
		"end":   r.flow.EndID,
	})

	for cur != r.flow.EndID {
		if moves >= r.maxMoves {
			r.engine.Notify(agentcore.EventFlowEnd, map[string]interface{}{
				"status": "max_moves_exceeded",
				"moves":  moves,
			})
			return fmt.Errorf("%w after %d moves", ErrMaxMovesExceeded, moves)
		}
		moves++
		r.visits[cur]++

		node := r.flow.Nodes[cur]
		out := r.flow.Outgoing(cur)

		if limit, capped := r.visitCaps[cur]; capped && r.visits[cur] > limit {
			cur = r.flow.EndID
			continue
		}

		r.engine.Notify(agentcore.EventFlowNode, map[string]interface{}{
			"node":  node.ID,
			"label": node.Label,
			"kind":  string(node.Kind),
		})

		if len(out) == 0 {
			return &ValidationError{Message: fmt.Sprintf("node %q has no outgoing edges and is not the end node", cur)}
		}

		// The begin node with a single edge moves without running a turn.
		if node.Kind == KindBegin && len(out) == 1 {
			cur = out[0].Dst
			continue
		}

		prompt := r.buildPrompt(node, out, corrective)
		corrective = ""

		if _, err := r.engine.Run(ctx, prompt); err != nil {
			return err
		}

		// A single outgoing edge is followed unconditionally; the marker is
		// optional.
		if len(out) == 1 {
			cur = out[0].Dst
			continue
		}

		choice := ExtractChoice(r.engine.LastAssistantText())
		next, ok := matchEdge(out, choice)
		if !ok {
			// Re-prompt the same node with a corrective instruction. The
			// retry counts against the move budget.
			corrective = correctiveInstruction(out, choice)
			continue
		}
		cur = next
	}

	r.engine.Notify(agentcore.EventFlowEnd, map[string]interface{}{
		"status": "completed",
		"moves":  moves,
	})
	return nil
}

// matchEdge matches the trimmed marker value exactly against an edge label.
func matchEdge(out []Edge, choice string) (string, bool) {
	if choice == "" {
		return "", false
	}
	for _, edge := range out {
		if strings.TrimSpace(edge.Label) == choice {
			return edge.Dst, true
		}
	}
	return "", false
}

func (r *Runner) buildPrompt(node Node, out []Edge, corrective string) string {
	var sb strings.Builder
	sb.WriteString(node.Label)

	if node.Kind == KindDecision || len(out) > 1 {
		sb.WriteString("\n\nChoose exactly one of the following options:\n")
		for i, edge := range out {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, strings.TrimSpace(edge.Label))
		}
		sb.WriteString("\nEnd your reply with <choice>OPTION</choice> where OPTION is the exact label of your choice.")
	}

	if corrective != "" {
		sb.WriteString("\n\n")
		sb.WriteString(corrective)
	}
	return sb.String()
}

func correctiveInstruction(out []Edge, got string) string {
	labels := make([]string, len(out))
	for i, edge := range out {
		labels[i] = strings.TrimSpace(edge.Label)
	}
	if got == "" {
		return fmt.Sprintf("Your previous reply did not contain a choice marker. You must end your reply with <choice>OPTION</choice> where OPTION is one of: %s.", strings.Join(labels, ", "))
	}
	return fmt.Sprintf("Your previous choice %q does not match any option. You must end your reply with <choice>OPTION</choice> where OPTION is one of: %s.", got, strings.Join(labels, ", "))
}
