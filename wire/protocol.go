// Package wire implements the session protocol: newline-delimited JSON-RPC
// 2.0 over a duplex byte stream. The client drives turns with initialize,
// prompt, and cancel; the server pushes ordered event notifications and
// issues its own requests for approvals and external tool calls.
package wire

import (
	"encoding/json"

	"github.com/martinemde/agentwire/agentcore"
)

// ProtocolVersion is the protocol revision this server speaks.
const ProtocolVersion = "1.0"

// JSON-RPC error codes. The negative-32000 range carries method-specific
// conditions.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeTurnInProgress     = -32001
	CodeNoTurnInProgress   = -32002
	CodeModelNotConfigured = -32003
	CodeModelServiceError  = -32004
)

// Message is a JSON-RPC 2.0 message: request, notification, or response.
// The ID is kept raw so client-chosen numeric ids and server-issued string
// ids round-trip unchanged.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// IsResponse reports whether the message answers an earlier request.
func (m *Message) IsResponse() bool {
	return m.Method == "" && (m.Result != nil || m.Error != nil)
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ClientInfo identifies the connecting client.
type ClientInfo struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// ServerInfo identifies this server in the initialize result.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ExternalToolDecl declares a client-hosted tool during initialize. Calls to
// it are proxied back to the client as ToolCallRequest messages.
type ExternalToolDecl struct {
	Name             string                 `json:"name"`
	Description      string                 `json:"description,omitempty"`
	Parameters       map[string]interface{} `json:"parameters,omitempty"`
	RequiresApproval bool                   `json:"requires_approval,omitempty"`
}

// ToolRejection reports one external tool the server refused to register.
// Rejections are per tool and never fail the handshake.
type ToolRejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// InitializeParams are the parameters for initialize.
type InitializeParams struct {
	ProtocolVersion string             `json:"protocol_version"`
	Client          ClientInfo         `json:"client,omitempty"`
	ExternalTools   []ExternalToolDecl `json:"external_tools,omitempty"`
}

// InitializeResult is the initialize response.
type InitializeResult struct {
	ProtocolVersion string                  `json:"protocol_version"`
	Server          ServerInfo              `json:"server"`
	Commands        []agentcore.CommandInfo `json:"commands,omitempty"`
	RejectedTools   []ToolRejection         `json:"rejected_tools,omitempty"`
}

// PromptParams are the parameters for prompt. A non-empty Flow holds
// flowchart source (Mermaid or DOT); the turn then runs as a flow traversal
// instead of a single turn.
type PromptParams struct {
	UserInput string `json:"user_input"`
	Flow      string `json:"flow,omitempty"`
}

// PromptResult reports the terminal state of a completed prompt call.
type PromptResult struct {
	Status string `json:"status"`
	Steps  int    `json:"steps,omitempty"`
}

// EventParams is the payload of an event notification.
type EventParams struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"session_id"`
	Timestamp string                 `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// RequestParams is the payload of a server-issued request. Type is
// "ApprovalRequest" or "ToolCallRequest"; the client answers with an
// ApprovalResponse or a ToolResult as the JSON-RPC result.
type RequestParams struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
