package wire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/martinemde/agentwire/agentcore"
	"github.com/martinemde/agentwire/flow"
	"github.com/martinemde/agentwire/modelkit"
	"github.com/martinemde/agentwire/transcript"
)

// serverName and serverVersion identify this implementation during the
// initialize handshake.
const (
	serverName    = "agentwire"
	serverVersion = "0.3.0"
)

// Server speaks the session protocol over one Transport for one engine
// session. Inbound requests are read by Run; prompt executions happen on
// their own goroutine so responses to server-issued requests keep flowing
// while a turn is suspended on an approval or external tool call.
type Server struct {
	transport    Transport
	engine       *agentcore.Engine
	correlations *Correlations
	recorder     transcript.Recorder

	// promptBusy covers the whole prompt call, including the gaps between
	// turns of a flow traversal where the engine itself is briefly idle.
	promptMu   sync.Mutex
	promptBusy bool

	pumpDone chan struct{}
	wg       sync.WaitGroup
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRecorder taps the session event stream into a transcript recorder.
func WithRecorder(r transcript.Recorder) ServerOption {
	return func(s *Server) { s.recorder = r }
}

// NewServer builds a protocol server and its engine session. The server
// registers itself as the engine's Requester so gated approvals and external
// tool calls round-trip through the client.
func NewServer(transport Transport, client *modelkit.Client, spec agentcore.AgentSpec, tools *agentcore.Toolset, config *agentcore.Config, opts ...ServerOption) *Server {
	s := &Server{
		transport:    transport,
		correlations: NewCorrelations(),
		recorder:     transcript.Nop{},
		pumpDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = agentcore.NewEngine(client, spec, tools, s, config)
	return s
}

// SessionID returns the engine session identifier.
func (s *Server) SessionID() string {
	return s.engine.ID()
}

// Engine exposes the underlying session engine.
func (s *Server) Engine() *agentcore.Engine {
	return s.engine
}

// Run reads and dispatches messages until the transport reports EOF or the
// context is cancelled. It drains the event stream in order on a dedicated
// goroutine for the duration of the session.
func (s *Server) Run(ctx context.Context) error {
	go s.pumpEvents()

	// The recorder is not closed here; it may be shared across sessions and
	// belongs to whoever opened it.
	defer func() {
		s.engine.Close()
		<-s.pumpDone
		s.wg.Wait()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line, err := s.transport.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			s.sendError(nil, CodeParseError, fmt.Sprintf("parse error: %v", err))
			continue
		}

		s.dispatch(ctx, &msg)
	}
}

// pumpEvents forwards engine events to the client as notifications, in the
// exact order produced. The recorder sees each event before it is sent.
func (s *Server) pumpEvents() {
	defer close(s.pumpDone)
	for ev := range s.engine.Events() {
		if err := s.recorder.Record(ev); err != nil {
			slog.Warn("transcript record failed", "session", s.engine.ID(), "error", err)
		}
		s.sendNotification("event", EventParams{
			Type:      string(ev.Kind),
			SessionID: ev.SessionID,
			Timestamp: ev.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			Payload:   ev.Data,
		})
	}
}

func (s *Server) dispatch(ctx context.Context, msg *Message) {
	if msg.IsResponse() {
		s.handleResponse(msg)
		return
	}

	switch msg.Method {
	case "initialize":
		s.handleInitialize(msg)
	case "prompt":
		s.handlePrompt(ctx, msg)
	case "cancel":
		s.handleCancel(msg)
	case "":
		s.sendError(msg.ID, CodeInvalidRequest, "message has no method and is not a response")
	default:
		s.sendError(msg.ID, CodeMethodNotFound, fmt.Sprintf("unknown method: %s", msg.Method))
	}
}

// handleResponse resolves a client answer to a server-issued request. An
// answer for an id the table no longer tracks is dropped silently; it belongs
// to a cancelled or already-resolved request.
func (s *Server) handleResponse(msg *Message) {
	var id string
	if err := json.Unmarshal(msg.ID, &id); err != nil {
		return
	}

	result := msg.Result
	if msg.Error != nil {
		// A client-side error still resumes the waiter; it surfaces as a
		// failed tool result or rejected approval.
		result, _ = json.Marshal(map[string]interface{}{
			"is_error": true,
			"output":   msg.Error.Message,
		})
	}
	s.correlations.Resolve(id, result)
}

func (s *Server) handleInitialize(msg *Message) {
	var params InitializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			s.sendError(msg.ID, CodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
			return
		}
	}

	var rejected []ToolRejection
	for _, decl := range params.ExternalTools {
		def := modelkit.ToolDefinition{
			Name:        decl.Name,
			Description: decl.Description,
			Parameters:  decl.Parameters,
		}
		if err := s.engine.Toolset().RegisterExternal(def, decl.RequiresApproval); err != nil {
			rejected = append(rejected, ToolRejection{Name: decl.Name, Reason: err.Error()})
		}
	}

	s.sendResult(msg.ID, InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Server:          ServerInfo{Name: serverName, Version: serverVersion},
		Commands:        s.engine.Spec().Commands,
		RejectedTools:   rejected,
	})
}

// handlePrompt starts a turn (or flow traversal) on its own goroutine and
// responds when it reaches a terminal state. A second prompt while one is in
// flight fails immediately with the turn-in-progress code.
func (s *Server) handlePrompt(ctx context.Context, msg *Message) {
	var params PromptParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			s.sendError(msg.ID, CodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
			return
		}
	}

	s.promptMu.Lock()
	if s.promptBusy {
		s.promptMu.Unlock()
		s.sendError(msg.ID, CodeTurnInProgress, agentcore.ErrTurnInProgress.Error())
		return
	}
	s.promptBusy = true
	s.promptMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.endPrompt()
		if params.Flow != "" {
			s.runFlow(ctx, msg, params)
			return
		}
		s.runTurn(ctx, msg, params.UserInput)
	}()
}

// endPrompt frees the session's prompt slot. It is called before the terminal
// response is sent so a client that pipelines its next prompt after reading
// the response is never spuriously rejected; the deferred call is an
// idempotent backstop for paths that send nothing.
func (s *Server) endPrompt() {
	s.promptMu.Lock()
	s.promptBusy = false
	s.promptMu.Unlock()
}

func (s *Server) runTurn(ctx context.Context, msg *Message, input string) {
	state, err := s.engine.Run(ctx, input)
	s.endPrompt()
	if err != nil {
		if state != nil && errors.Is(err, context.Canceled) {
			s.sendResult(msg.ID, PromptResult{Status: string(state.Status), Steps: state.Steps})
			return
		}
		s.sendError(msg.ID, promptErrorCode(err), err.Error())
		return
	}
	s.sendResult(msg.ID, PromptResult{Status: string(state.Status), Steps: state.Steps})
}

func (s *Server) runFlow(ctx context.Context, msg *Message, params PromptParams) {
	f, err := flow.Parse(params.Flow)
	if err != nil {
		// A bad flow never takes the session down; the flow is simply
		// unavailable.
		s.endPrompt()
		s.sendError(msg.ID, CodeInvalidParams, err.Error())
		return
	}

	runner := flow.NewRunner(f, s.engine)
	err = runner.Run(ctx)
	s.endPrompt()
	if err != nil {
		if errors.Is(err, flow.ErrMaxMovesExceeded) {
			s.sendResult(msg.ID, PromptResult{Status: "max_moves_exceeded"})
			return
		}
		s.sendError(msg.ID, promptErrorCode(err), err.Error())
		return
	}
	s.sendResult(msg.ID, PromptResult{Status: "completed"})
}

func (s *Server) handleCancel(msg *Message) {
	if err := s.engine.Cancel(); err != nil {
		s.sendError(msg.ID, CodeNoTurnInProgress, err.Error())
		return
	}
	s.sendResult(msg.ID, map[string]string{"status": "cancelling"})
}

// promptErrorCode maps a turn failure to its protocol error code.
func promptErrorCode(err error) int {
	if errors.Is(err, agentcore.ErrTurnInProgress) {
		return CodeTurnInProgress
	}
	var confErr *modelkit.ConfigurationError
	if errors.As(err, &confErr) {
		return CodeModelNotConfigured
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if modelkit.IsProviderError(e) {
			return CodeModelServiceError
		}
	}
	return CodeInternalError
}

// RequestApproval sends an ApprovalRequest to the client and suspends the
// calling step until the matching ApprovalResponse arrives or the context is
// cancelled. A response arriving after cancellation is a no-op.
func (s *Server) RequestApproval(ctx context.Context, req agentcore.ApprovalRequest) (agentcore.ApprovalResponse, error) {
	ch := s.correlations.Add(req.ID)
	s.sendRequest(req.ID, RequestParams{Type: "ApprovalRequest", Payload: req})

	select {
	case raw := <-ch:
		var resp agentcore.ApprovalResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return agentcore.ApprovalResponse{}, fmt.Errorf("decode approval response: %w", err)
		}
		resp.RequestID = req.ID
		return resp, nil
	case <-ctx.Done():
		s.correlations.Cancel(req.ID)
		return agentcore.ApprovalResponse{}, &modelkit.AbortError{KitError: modelkit.KitError{Message: "approval request cancelled"}}
	}
}

// RequestToolCall proxies an external tool call to the client and waits for
// its ToolResult.
func (s *Server) RequestToolCall(ctx context.Context, req agentcore.ToolCallRequest) (*agentcore.ToolReturn, error) {
	ch := s.correlations.Add(req.ID)
	s.sendRequest(req.ID, RequestParams{Type: "ToolCallRequest", Payload: req})

	select {
	case raw := <-ch:
		var ret agentcore.ToolReturn
		if err := json.Unmarshal(raw, &ret); err != nil {
			return nil, fmt.Errorf("decode tool result: %w", err)
		}
		return &ret, nil
	case <-ctx.Done():
		s.correlations.Cancel(req.ID)
		return nil, &modelkit.AbortError{KitError: modelkit.KitError{Message: "external tool call cancelled"}}
	}
}

func (s *Server) sendResult(id json.RawMessage, result interface{}) {
	data, _ := json.Marshal(result)
	s.send(&Message{JSONRPC: "2.0", ID: id, Result: data})
}

func (s *Server) sendError(id json.RawMessage, code int, message string) {
	s.send(&Message{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}})
}

func (s *Server) sendNotification(method string, params interface{}) {
	data, _ := json.Marshal(params)
	s.send(&Message{JSONRPC: "2.0", Method: method, Params: data})
}

// sendRequest issues a server-initiated request with a string correlation id.
func (s *Server) sendRequest(id string, params RequestParams) {
	rawID, _ := json.Marshal(id)
	data, _ := json.Marshal(params)
	s.send(&Message{JSONRPC: "2.0", ID: rawID, Method: "request", Params: data})
}

func (s *Server) send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("encode message failed", "session", s.engine.ID(), "error", err)
		return
	}
	if err := s.transport.WriteLine(data); err != nil {
		slog.Warn("write failed", "session", s.engine.ID(), "error", err)
	}
}
