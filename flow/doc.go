// Package flow implements the graph-based multi-turn automation engine. A
// flow is a small flowchart — begin, task, and decision nodes joined by
// optionally labeled edges — parsed from either a Mermaid or a Graphviz DOT
// subset into one immutable in-memory graph.
//
// The Runner walks the graph one node per turn: task nodes become turn
// prompts, decision nodes additionally enumerate their outgoing edge labels
// and ask the model to end its reply with a <choice>...</choice> marker. A
// global move budget bounds total node visits so cyclic flows terminate.
package flow
