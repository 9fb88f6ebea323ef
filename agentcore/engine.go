package agentcore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/martinemde/agentwire/modelkit"
)

// TurnStatus is the terminal outcome of one turn.
type TurnStatus string

const (
	StatusRunning         TurnStatus = "running"
	StatusFinished        TurnStatus = "finished"
	StatusCancelled       TurnStatus = "cancelled"
	StatusMaxStepsReached TurnStatus = "max_steps_reached"
	StatusFailed          TurnStatus = "failed"
)

// TurnState tracks one turn from the first model call to its terminal
// status. It lives for the duration of one Run call and is discarded after.
type TurnState struct {
	Steps   int        `json:"steps"`
	Retries int        `json:"retries"`
	Status  TurnStatus `json:"status"`
}

// Sentinel errors the protocol server maps to method-specific codes.
var (
	ErrTurnInProgress   = errors.New("a turn is already in progress")
	ErrNoTurnInProgress = errors.New("no agent turn is in progress")
)

// Config holds per-session engine limits.
type Config struct {
	MaxSteps            int            `json:"max_steps"`             // 0 = default
	MaxRetriesPerStep   int            `json:"max_retries_per_step"`  // model failures retried per step
	ToolOutputLimits    map[string]int `json:"tool_output_limits,omitempty"`
	ToolLineLimits      map[string]int `json:"tool_line_limits,omitempty"`
	EnableLoopDetection bool           `json:"enable_loop_detection"`
	LoopDetectionWindow int            `json:"loop_detection_window"`
	MaxSubagentDepth    int            `json:"max_subagent_depth"`
	subagentDepth       int            // internal: current nesting depth
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		MaxSteps:            50,
		MaxRetriesPerStep:   2,
		EnableLoopDetection: true,
		LoopDetectionWindow: 10,
		MaxSubagentDepth:    1,
	}
}

// Engine runs one conversational turn at a time for a single session. All
// state it owns (history, gate allow-list, cancellation flag) belongs to
// that session alone; nothing is shared across sessions.
type Engine struct {
	id        string
	client    *modelkit.Client
	spec      AgentSpec
	tools     *Toolset
	gate      *Gate
	requester Requester
	sink      *EventSink
	config    Config

	history    []modelkit.Message
	steering   []string
	running    bool
	cancelled  bool
	cancelTurn context.CancelFunc
	mu         sync.Mutex
}

// NewEngine creates a session engine. requester may be nil when no client
// can answer approvals; gated tools are then rejected outright.
func NewEngine(client *modelkit.Client, spec AgentSpec, tools *Toolset, requester Requester, config *Config) *Engine {
	sessionID := uuid.New().String()

	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultConfig().MaxSteps
	}
	if cfg.MaxRetriesPerStep < 0 {
		cfg.MaxRetriesPerStep = 0
	}

	e := &Engine{
		id:        sessionID,
		client:    client,
		spec:      spec,
		tools:     tools,
		requester: requester,
		sink:      NewEventSink(sessionID, 256),
		config:    cfg,
	}
	if requester != nil {
		e.gate = NewGate(requester, spec.Name)
	}

	if len(spec.Subagents) > 0 && cfg.subagentDepth < cfg.MaxSubagentDepth {
		RegisterSpawnTool(tools, e)
	}

	return e
}

// ID returns the session identifier.
func (e *Engine) ID() string { return e.id }

// Spec returns the immutable agent spec the engine runs with.
func (e *Engine) Spec() AgentSpec { return e.spec }

// Toolset returns the session's toolset.
func (e *Engine) Toolset() *Toolset { return e.tools }

// Gate returns the session's approval gate (nil without a requester).
func (e *Engine) Gate() *Gate { return e.gate }

// Events returns the session's ordered event channel.
func (e *Engine) Events() <-chan Event { return e.sink.Events() }

// Notify emits an event onto the session stream on behalf of a caller that
// orchestrates the engine, such as a flow runner.
func (e *Engine) Notify(kind EventKind, data map[string]interface{}) {
	e.sink.Emit(kind, data)
}

// Running reports whether a turn is currently in flight.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// History returns a copy of the conversation history.
func (e *Engine) History() []modelkit.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := make([]modelkit.Message, len(e.history))
	copy(h, e.history)
	return h
}

// LastAssistantText returns the text of the most recent assistant message.
func (e *Engine) LastAssistantText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.history) - 1; i >= 0; i-- {
		if e.history[i].Role == modelkit.RoleAssistant {
			return e.history[i].TextContent()
		}
	}
	return ""
}

// Steer queues a message to be injected into the history after the current
// tool round completes.
func (e *Engine) Steer(message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.steering = append(e.steering, message)
}

// Cancel sets the cooperative cancellation flag for the in-flight turn and
// trips the turn context. It fails when no turn is running. The flag is
// observed between tool calls and at streaming chunk boundaries; the context
// unblocks a step suspended on a client-addressed request (approval or
// external tool call), whose eventual response then resolves as a no-op.
func (e *Engine) Cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return ErrNoTurnInProgress
	}
	e.cancelled = true
	if e.cancelTurn != nil {
		e.cancelTurn()
	}
	return nil
}

// Close releases the engine's event channel.
func (e *Engine) Close() {
	e.sink.Close()
}

func (e *Engine) isCancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}

// Run executes one turn: model calls interleaved with tool dispatch until
// the model stops requesting tools, MaxSteps is exceeded, or cancellation is
// observed. Only one Run may be in flight per engine; a concurrent call
// fails with ErrTurnInProgress.
func (e *Engine) Run(ctx context.Context, userInput string) (*TurnState, error) {
	// The turn context lets Cancel unblock anything the turn is waiting on.
	ctx, cancelTurn := context.WithCancel(ctx)
	defer cancelTurn()

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, ErrTurnInProgress
	}
	e.running = true
	e.cancelled = false
	e.cancelTurn = cancelTurn
	e.history = append(e.history, modelkit.UserMessage(userInput))
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.cancelTurn = nil
		e.mu.Unlock()
	}()

	state := &TurnState{Status: StatusRunning}
	e.sink.Emit(EventTurnStart, map[string]interface{}{
		"input": userInput,
	})

	e.drainSteering()

	for {
		if state.Steps >= e.config.MaxSteps {
			// Not an error: the turn ends with an explicit status.
			state.Status = StatusMaxStepsReached
			break
		}

		if e.isCancelled() {
			e.sink.Emit(EventStepInterrupted, map[string]interface{}{
				"step": state.Steps,
			})
			state.Status = StatusCancelled
			break
		}

		select {
		case <-ctx.Done():
			e.sink.Emit(EventStepInterrupted, map[string]interface{}{
				"step": state.Steps,
			})
			state.Status = StatusCancelled
			e.sink.Emit(EventTurnEnd, map[string]interface{}{"status": string(state.Status), "steps": state.Steps})
			return state, ctx.Err()
		default:
		}

		e.sink.Emit(EventStepStart, map[string]interface{}{"step": state.Steps})

		resp, err := e.step(ctx, state)
		if err != nil {
			if e.isCancelled() {
				e.sink.Emit(EventStepInterrupted, map[string]interface{}{"step": state.Steps})
				state.Status = StatusCancelled
				break
			}
			state.Status = StatusFailed
			e.sink.Emit(EventError, map[string]interface{}{"error": err.Error()})
			e.sink.Emit(EventTurnEnd, map[string]interface{}{"status": string(state.Status), "steps": state.Steps})
			return state, fmt.Errorf("model call failed: %w", err)
		}
		state.Steps++

		e.mu.Lock()
		e.history = append(e.history, resp.Message)
		e.mu.Unlock()

		toolCalls := resp.ToolCallsFromResponse()
		if len(toolCalls) == 0 {
			e.sink.Emit(EventStepEnd, map[string]interface{}{"step": state.Steps - 1})
			state.Status = StatusFinished
			break
		}

		interrupted := e.dispatchToolCalls(ctx, toolCalls)
		e.sink.Emit(EventStepEnd, map[string]interface{}{"step": state.Steps - 1})
		if interrupted {
			state.Status = StatusCancelled
			break
		}

		e.drainSteering()

		if e.config.EnableLoopDetection {
			history := e.History()
			if DetectLoop(history, e.config.LoopDetectionWindow) {
				warning := fmt.Sprintf("Loop detected: the last %d tool calls follow a repeating pattern. Try a different approach.", e.config.LoopDetectionWindow)
				e.mu.Lock()
				e.history = append(e.history, modelkit.UserMessage(warning))
				e.mu.Unlock()
				e.sink.Emit(EventLoopDetection, map[string]interface{}{"message": warning})
			}
		}

		e.maybeCompact()
	}

	e.sink.Emit(EventTurnEnd, map[string]interface{}{
		"status": string(state.Status),
		"steps":  state.Steps,
	})
	return state, nil
}

// step performs one model invocation with per-step retry, streaming content
// deltas as they arrive.
func (e *Engine) step(ctx context.Context, state *TurnState) (*modelkit.Response, error) {
	req := modelkit.Request{
		Model:    e.spec.Model,
		Provider: e.spec.Provider,
		Messages: append(
			[]modelkit.Message{modelkit.SystemMessage(e.spec.SystemPrompt)},
			e.History()...,
		),
		Tools: e.tools.Definitions(e.spec.AllowedTools),
	}

	return modelkit.Retry(ctx, e.retryPolicy(state), func(ctx context.Context) (*modelkit.Response, error) {
		return e.streamOnce(ctx, req)
	})
}

func (e *Engine) retryPolicy(state *TurnState) modelkit.RetryPolicy {
	policy := modelkit.DefaultRetryPolicy()
	policy.MaxRetries = e.config.MaxRetriesPerStep
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		state.Retries++
		e.sink.Emit(EventWarning, map[string]interface{}{
			"message": fmt.Sprintf("model call failed (attempt %d), retrying in %s: %v", attempt, delay, err),
		})
	}
	return policy
}

// streamOnce issues a single streaming model call, emitting deltas and
// checking cancellation at every chunk boundary.
func (e *Engine) streamOnce(ctx context.Context, req modelkit.Request) (*modelkit.Response, error) {
	events, err := e.client.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	asm := modelkit.NewAssembler()
	var resp *modelkit.Response
	for ev := range events {
		if e.isCancelled() {
			// Stop consuming; the turn loop reports the cancellation.
			go func() {
				for range events {
				}
			}()
			return nil, &modelkit.AbortError{KitError: modelkit.KitError{Message: "turn cancelled during streaming"}}
		}

		switch ev.Type {
		case modelkit.TextDelta:
			e.sink.Emit(EventTextDelta, map[string]interface{}{"delta": ev.Delta})
		case modelkit.ReasoningDelta:
			e.sink.Emit(EventThinkDelta, map[string]interface{}{"delta": ev.Delta})
		case modelkit.ToolCallDelta:
			asm.Add(ev.ToolCallID, ev.ToolCallName, ev.Delta)
			e.sink.Emit(EventToolCallPart, map[string]interface{}{
				"tool_call_id": ev.ToolCallID,
				"name":         ev.ToolCallName,
				"fragment":     ev.Delta,
			})
		case modelkit.StreamError:
			return nil, ev.Error
		case modelkit.StreamFinish:
			resp = ev.Response
		}
	}

	if resp == nil {
		return nil, &modelkit.NetworkError{KitError: modelkit.KitError{Message: "stream ended without a final response"}}
	}

	// Providers that stream tool call arguments incrementally may omit them
	// from the final response; the assembled fragments fill the gap.
	if calls := asm.Finish(); len(calls) > 0 && len(resp.ToolCallsFromResponse()) == 0 {
		for _, call := range calls {
			resp.Message.Content = append(resp.Message.Content, modelkit.ToolCallPart(call.ID, call.Name, call.Arguments))
		}
	}
	return resp, nil
}

// dispatchToolCalls executes tool calls in emission order, appending a tool
// result message for each. It returns true when cancellation interrupted the
// round; remaining calls are resolved as interrupted errors so the history
// invariant (every tool call answered) holds.
func (e *Engine) dispatchToolCalls(ctx context.Context, toolCalls []modelkit.ToolCall) (interrupted bool) {
	for i, tc := range toolCalls {
		if e.isCancelled() {
			for _, rest := range toolCalls[i:] {
				e.appendToolResult(rest.ID, rest.Name, &ToolReturn{
					IsError: true,
					Output:  "tool call interrupted by cancellation",
					Message: "interrupted",
				})
			}
			e.sink.Emit(EventStepInterrupted, map[string]interface{}{"tool_call_id": tc.ID})
			return true
		}

		ret := e.dispatchOne(ctx, tc)
		e.appendToolResult(tc.ID, tc.Name, ret)
	}
	return false
}

// dispatchOne runs the full pipeline for a single tool call:
// resolve -> gate -> execute (or proxy) -> truncate -> emit.
func (e *Engine) dispatchOne(ctx context.Context, tc modelkit.ToolCall) *ToolReturn {
	e.sink.Emit(EventToolCall, map[string]interface{}{
		"tool_call_id": tc.ID,
		"name":         tc.Name,
		"arguments":    string(tc.Arguments),
	})

	tool := e.tools.Resolve(tc.Name)
	if tool == nil {
		return ErrorReturn("unknown tool: %s", tc.Name)
	}

	if tool.RequiresApproval {
		if e.gate == nil {
			return ErrorReturn("tool %s requires approval but no approver is connected", tc.Name)
		}
		action := e.tools.ActionFor(tc.Name, tc.Arguments)
		resp, err := e.gate.Request(ctx, tc.Name, tc.ID, action,
			fmt.Sprintf("%s wants to run %s", e.spec.Name, tc.Name), nil)
		if err != nil {
			return ErrorReturn("approval request failed: %v", err)
		}
		e.sink.Emit(EventApprovalResolved, map[string]interface{}{
			"tool_call_id": tc.ID,
			"decision":     string(resp.Decision),
		})
		if resp.Decision == DecisionReject {
			// Rejection never aborts the turn; the model sees the error.
			reason := resp.Reason
			if reason == "" {
				reason = "the user rejected this action"
			}
			return &ToolReturn{IsError: true, Output: reason, Message: reason}
		}
	}

	var ret *ToolReturn
	var err error
	if tool.External {
		if e.requester == nil {
			return ErrorReturn("tool %s is external but no client is connected", tc.Name)
		}
		ret, err = e.requester.RequestToolCall(ctx, ToolCallRequest{
			ID:         uuid.New().String(),
			ToolCallID: tc.ID,
			Name:       tc.Name,
			Arguments:  string(tc.Arguments),
		})
	} else {
		ret, err = tool.Execute(ctx, tc.Arguments)
	}
	if err != nil {
		return ErrorReturn("tool error (%s): %v", tc.Name, err)
	}
	if ret == nil {
		ret = &ToolReturn{}
	}
	return ret
}

// appendToolResult emits the tool_result event (full output) and appends the
// truncated result to the history for the model.
func (e *Engine) appendToolResult(toolCallID, toolName string, ret *ToolReturn) {
	e.sink.Emit(EventToolResult, map[string]interface{}{
		"tool_call_id": toolCallID,
		"return":       ret,
	})

	truncated := TruncateToolOutput(ret.Output, toolName, e.config.ToolOutputLimits, e.config.ToolLineLimits)
	e.mu.Lock()
	e.history = append(e.history, modelkit.ToolResultMessage(toolCallID, truncated, ret.IsError))
	e.mu.Unlock()
}

// drainSteering injects all queued steering messages into the history.
func (e *Engine) drainSteering() {
	e.mu.Lock()
	messages := make([]string, len(e.steering))
	copy(messages, e.steering)
	e.steering = e.steering[:0]
	e.mu.Unlock()

	for _, msg := range messages {
		e.mu.Lock()
		e.history = append(e.history, modelkit.UserMessage(msg))
		e.mu.Unlock()
		e.sink.Emit(EventSteeringInjected, map[string]interface{}{"content": msg})
	}
}
