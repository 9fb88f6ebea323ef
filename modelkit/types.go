package modelkit

import (
	"encoding/json"
	"sort"
	"strings"
)

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentKind is the discriminator tag for ContentPart.
type ContentKind string

const (
	ContentText       ContentKind = "text"
	ContentThinking   ContentKind = "thinking"
	ContentImage      ContentKind = "image"
	ContentAudio      ContentKind = "audio"
	ContentVideo      ContentKind = "video"
	ContentToolCall   ContentKind = "tool_call"
	ContentToolResult ContentKind = "tool_result"
)

// MediaRef points at image, audio, or video content by URL or inline bytes.
type MediaRef struct {
	URL       string `json:"url,omitempty"`
	Data      []byte `json:"data,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// ThinkingData holds model reasoning text plus the provider's opaque
// signature, which must round-trip unmodified for the provider to accept
// the thinking block back in a later request.
type ThinkingData struct {
	Text      string `json:"text"`
	Signature string `json:"signature,omitempty"`
}

// ToolCallData represents a model-initiated tool invocation. Arguments are
// raw JSON text; providers may deliver them incrementally (see Assembler).
type ToolCallData struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResultData carries a tool's return value back to the model.
type ToolResultData struct {
	ToolCallID string          `json:"tool_call_id"`
	Content    json.RawMessage `json:"content"`
	IsError    bool            `json:"is_error"`
}

// ContentPart is a tagged union representing one part of a message.
type ContentPart struct {
	Kind       ContentKind     `json:"kind"`
	Text       string          `json:"text,omitempty"`
	Thinking   *ThinkingData   `json:"thinking,omitempty"`
	Media      *MediaRef       `json:"media,omitempty"`
	ToolCall   *ToolCallData   `json:"tool_call,omitempty"`
	ToolResult *ToolResultData `json:"tool_result,omitempty"`
}

// TextPart creates a text ContentPart.
func TextPart(text string) ContentPart {
	return ContentPart{Kind: ContentText, Text: text}
}

// ThinkingPart creates a thinking ContentPart.
func ThinkingPart(text, signature string) ContentPart {
	return ContentPart{Kind: ContentThinking, Thinking: &ThinkingData{Text: text, Signature: signature}}
}

// MediaPart creates an image, audio, or video ContentPart.
func MediaPart(kind ContentKind, ref MediaRef) ContentPart {
	return ContentPart{Kind: kind, Media: &ref}
}

// ToolCallPart creates a tool call ContentPart.
func ToolCallPart(id, name string, args json.RawMessage) ContentPart {
	return ContentPart{Kind: ContentToolCall, ToolCall: &ToolCallData{ID: id, Name: name, Arguments: args}}
}

// ToolResultPart creates a tool result ContentPart.
func ToolResultPart(toolCallID string, content json.RawMessage, isError bool) ContentPart {
	return ContentPart{
		Kind:       ContentToolResult,
		ToolResult: &ToolResultData{ToolCallID: toolCallID, Content: content, IsError: isError},
	}
}

// Message is the fundamental unit of conversation. Once appended to a
// history, a Message is never mutated.
type Message struct {
	Role       Role          `json:"role"`
	Content    []ContentPart `json:"content"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

// TextContent returns the concatenation of all text content parts.
func (m Message) TextContent() string {
	var sb strings.Builder
	for _, part := range m.Content {
		if part.Kind == ContentText {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// ToolCalls extracts all tool call data from the message content, in
// declaration order.
func (m Message) ToolCalls() []ToolCallData {
	var calls []ToolCallData
	for _, part := range m.Content {
		if part.Kind == ContentToolCall && part.ToolCall != nil {
			calls = append(calls, *part.ToolCall)
		}
	}
	return calls
}

// SystemMessage creates a system Message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: []ContentPart{TextPart(text)}}
}

// UserMessage creates a user Message with text content.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []ContentPart{TextPart(text)}}
}

// AssistantMessage creates an assistant Message with text content.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: []ContentPart{TextPart(text)}}
}

// ToolResultMessage creates a tool result Message.
func ToolResultMessage(toolCallID string, content string, isError bool) Message {
	raw, _ := json.Marshal(content)
	return Message{
		Role:       RoleTool,
		Content:    []ContentPart{ToolResultPart(toolCallID, raw, isError)},
		ToolCallID: toolCallID,
	}
}

// ToolDefinition describes a tool for the model (serializable metadata).
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"` // JSON Schema
}

// ToolCall is extracted from a model response.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Assembler accumulates incremental tool call argument fragments in arrival
// order. Providers that stream arguments deliver them as partial JSON text
// keyed by call id; Finish concatenates the fragments per call.
type Assembler struct {
	order []string
	names map[string]string
	args  map[string][]string
}

// NewAssembler creates an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		names: make(map[string]string),
		args:  make(map[string][]string),
	}
}

// Add appends one argument fragment for the given call. The first fragment
// for a call id establishes its position and name.
func (a *Assembler) Add(id, name, fragment string) {
	if _, ok := a.args[id]; !ok {
		a.order = append(a.order, id)
	}
	if name != "" {
		a.names[id] = name
	}
	a.args[id] = append(a.args[id], fragment)
}

// Finish returns the assembled tool calls in first-fragment arrival order.
func (a *Assembler) Finish() []ToolCall {
	calls := make([]ToolCall, 0, len(a.order))
	for _, id := range a.order {
		joined := strings.Join(a.args[id], "")
		calls = append(calls, ToolCall{
			ID:        id,
			Name:      a.names[id],
			Arguments: json.RawMessage(joined),
		})
	}
	return calls
}

// FinishReason describes why generation stopped.
type FinishReason struct {
	Reason string `json:"reason"` // "stop", "length", "tool_calls", "error", "other"
	Raw    string `json:"raw,omitempty"`
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add returns a new Usage that is the sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// Request is the input to Complete and Stream.
type Request struct {
	Model         string            `json:"model"`
	Messages      []Message         `json:"messages"`
	Provider      string            `json:"provider,omitempty"`
	Tools         []ToolDefinition  `json:"tools,omitempty"`
	Temperature   *float64          `json:"temperature,omitempty"`
	MaxTokens     *int              `json:"max_tokens,omitempty"`
	StopSequences []string          `json:"stop_sequences,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Response is the output of Complete.
type Response struct {
	ID           string       `json:"id"`
	Model        string       `json:"model"`
	Provider     string       `json:"provider"`
	Message      Message      `json:"message"`
	FinishReason FinishReason `json:"finish_reason"`
	Usage        Usage        `json:"usage"`
}

// Text returns the concatenated text from all text parts in the response.
func (r Response) Text() string {
	return r.Message.TextContent()
}

// ToolCallsFromResponse extracts tool calls from the response message.
func (r Response) ToolCallsFromResponse() []ToolCall {
	var calls []ToolCall
	for _, part := range r.Message.Content {
		if part.Kind == ContentToolCall && part.ToolCall != nil {
			calls = append(calls, ToolCall{
				ID:        part.ToolCall.ID,
				Name:      part.ToolCall.Name,
				Arguments: part.ToolCall.Arguments,
			})
		}
	}
	return calls
}

// Reasoning returns concatenated reasoning text from thinking parts.
func (r Response) Reasoning() string {
	var sb strings.Builder
	for _, part := range r.Message.Content {
		if part.Kind == ContentThinking && part.Thinking != nil {
			sb.WriteString(part.Thinking.Text)
		}
	}
	return sb.String()
}

// StreamEventType identifies the kind of stream event.
type StreamEventType string

const (
	StreamStart    StreamEventType = "stream_start"
	TextDelta      StreamEventType = "text_delta"
	ReasoningDelta StreamEventType = "reasoning_delta"
	ToolCallDelta  StreamEventType = "tool_call_delta"
	StreamFinish   StreamEventType = "finish"
	StreamError    StreamEventType = "error"
)

// StreamEvent is a single event from a streaming response.
type StreamEvent struct {
	Type         StreamEventType `json:"type"`
	Delta        string          `json:"delta,omitempty"`
	ToolCallID   string          `json:"tool_call_id,omitempty"`
	ToolCallName string          `json:"tool_call_name,omitempty"`
	Response     *Response       `json:"response,omitempty"`
	Error        error           `json:"-"`
}

// NormalizeArguments produces a canonical rendering of tool call arguments
// for fingerprinting: object keys sorted, insignificant whitespace removed.
// Invalid JSON falls back to whitespace-collapsed raw text.
func NormalizeArguments(raw json.RawMessage) string {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return strings.Join(strings.Fields(string(raw)), " ")
	}
	return canonicalJSON(v)
}

func canonicalJSON(v interface{}) string {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var sb strings.Builder
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			sb.Write(kb)
			sb.WriteByte(':')
			sb.WriteString(canonicalJSON(t[k]))
		}
		sb.WriteByte('}')
		return sb.String()
	case []interface{}:
		var sb strings.Builder
		sb.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(canonicalJSON(e))
		}
		sb.WriteByte(']')
		return sb.String()
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
