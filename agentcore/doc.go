// Package agentcore implements the turn engine at the center of the agent
// runtime. It drives one conversational turn at a time: the engine calls the
// model, streams content as it is produced, dispatches model-requested tool
// calls through the toolset, gates risky calls behind the approval gate, and
// feeds tool results back to the model until it stops requesting tools or a
// limit is hit.
//
// The package is organized around these core concepts:
//
//   - Engine: the per-session orchestrator holding conversation history,
//     turn state, and the cooperative cancellation flag.
//   - Toolset: registration and dispatch of tool implementations, including
//     external proxies that route calls back to the connected client.
//   - Gate: approval request/response correlation with session-level
//     pre-approval fingerprints.
//   - EventSink: the strictly ordered, single-consumer event channel the
//     protocol server drains.
//
// One Engine serializes one turn pipeline. Concurrency across sessions is
// unconstrained because sessions share no mutable state.
package agentcore
