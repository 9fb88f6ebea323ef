// Package modelkit provides the provider-agnostic model capability used by
// the agent runtime. It defines the conversation types (messages, content
// parts, tool calls and results), a Client that routes requests to registered
// provider adapters, a typed error taxonomy with retryability classification,
// and a generic retry helper with exponential backoff.
//
// The runtime's turn engine depends only on the ProviderAdapter contract:
// Complete for blocking generation and Stream for incremental delivery. The
// concrete backend ships as a gollm-based adapter, but any implementation of
// ProviderAdapter can be registered.
package modelkit
