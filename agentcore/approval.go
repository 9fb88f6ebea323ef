package agentcore

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Decision is the outcome of an approval request.
type Decision string

const (
	DecisionApprove           Decision = "approve"
	DecisionApproveForSession Decision = "approve_for_session"
	DecisionReject            Decision = "reject"
)

// ApprovalRequest asks the client to confirm a gated tool call.
type ApprovalRequest struct {
	ID          string         `json:"id"`
	ToolCallID  string         `json:"tool_call_id"`
	Sender      string         `json:"sender"`
	Action      string         `json:"action"`
	Description string         `json:"description"`
	Display     []DisplayBlock `json:"display,omitempty"`
}

// ApprovalResponse is the client's answer to an ApprovalRequest.
type ApprovalResponse struct {
	RequestID string   `json:"request_id"`
	Decision  Decision `json:"decision"`
	Reason    string   `json:"reason,omitempty"`
}

// ToolCallRequest asks the client to run an external tool on the engine's
// behalf and reply with its result.
type ToolCallRequest struct {
	ID         string `json:"id"`
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Arguments  string `json:"arguments"`
}

// Requester delivers client-addressed requests and blocks until the matching
// response arrives. The protocol server implements it; tests substitute
// scripted doubles.
type Requester interface {
	RequestApproval(ctx context.Context, req ApprovalRequest) (ApprovalResponse, error)
	RequestToolCall(ctx context.Context, req ToolCallRequest) (*ToolReturn, error)
}

// Fingerprint identifies an approvable action for session-level pre-approval:
// the tool name plus the action with whitespace runs collapsed. Matching is
// otherwise exact.
func Fingerprint(toolName, action string) string {
	normalized := strings.Join(strings.Fields(action), " ")
	return toolName + "\x00" + normalized
}

// Gate correlates gated tool calls with external decisions and remembers
// session-level pre-approvals. One Gate belongs to exactly one session.
type Gate struct {
	requester Requester
	sender    string
	approved  map[string]bool
	mu        sync.Mutex
}

// NewGate creates a Gate that routes requests through the given Requester.
// sender identifies the requesting agent in approval prompts.
func NewGate(requester Requester, sender string) *Gate {
	return &Gate{
		requester: requester,
		sender:    sender,
		approved:  make(map[string]bool),
	}
}

// Request asks for a decision on a gated tool call. A fingerprint already
// approved for the session bypasses the client entirely and auto-approves.
// approve_for_session records the fingerprint before returning.
func (g *Gate) Request(ctx context.Context, toolName, toolCallID, action, description string, display []DisplayBlock) (ApprovalResponse, error) {
	fp := Fingerprint(toolName, action)

	g.mu.Lock()
	if g.approved[fp] {
		g.mu.Unlock()
		return ApprovalResponse{Decision: DecisionApprove}, nil
	}
	g.mu.Unlock()

	req := ApprovalRequest{
		ID:          uuid.New().String(),
		ToolCallID:  toolCallID,
		Sender:      g.sender,
		Action:      action,
		Description: description,
		Display:     display,
	}

	resp, err := g.requester.RequestApproval(ctx, req)
	if err != nil {
		return ApprovalResponse{}, err
	}

	if resp.Decision == DecisionApproveForSession {
		g.mu.Lock()
		g.approved[fp] = true
		g.mu.Unlock()
	}

	return resp, nil
}

// PreApproved reports whether a (tool, action) pair is already covered by a
// session-level pre-approval.
func (g *Gate) PreApproved(toolName, action string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.approved[Fingerprint(toolName, action)]
}
