package flow

import (
	"fmt"
	"strings"
)

// NodeKind discriminates between node types.
type NodeKind string

const (
	KindBegin    NodeKind = "begin"
	KindTask     NodeKind = "task"
	KindDecision NodeKind = "decision"
	KindEnd      NodeKind = "end"
)

// Node is one immutable node record. Nodes reference each other by string
// id only; the representation itself is acyclic even when the graph cycles.
type Node struct {
	ID    string   `json:"id"`
	Label string   `json:"label"`
	Kind  NodeKind `json:"kind"`
}

// Edge is a directed edge with an optional label.
type Edge struct {
	Src   string `json:"src"`
	Dst   string `json:"dst"`
	Label string `json:"label,omitempty"`
}

// Flow is a validated, immutable flowchart: a node arena indexed by id plus
// an adjacency table keyed by source id. Built once at load time.
type Flow struct {
	Nodes   map[string]Node
	Edges   map[string][]Edge // keyed by src, in declaration order
	BeginID string
	EndID   string
}

// Outgoing returns the outgoing edges of a node in declaration order.
func (f *Flow) Outgoing(id string) []Edge {
	return f.Edges[id]
}

// Node returns the node record for an id.
func (f *Flow) Node(id string) (Node, bool) {
	n, ok := f.Nodes[id]
	return n, ok
}

// isBeginLabel reports whether a label marks the entry node. "begin" and
// "start" are accepted, case-insensitively.
func isBeginLabel(label string) bool {
	label = strings.TrimSpace(label)
	return strings.EqualFold(label, "begin") || strings.EqualFold(label, "start")
}

// isEndLabel reports whether a label marks the exit node. "end" and "done"
// are accepted, case-insensitively.
func isEndLabel(label string) bool {
	label = strings.TrimSpace(label)
	return strings.EqualFold(label, "end") || strings.EqualFold(label, "done")
}

// finalize assigns begin/end node kinds from labels and freezes the graph.
// Called by the parsers after all declarations are in.
func (f *Flow) finalize() error {
	var beginIDs, endIDs []string
	for id, n := range f.Nodes {
		switch {
		case isBeginLabel(n.Label):
			n.Kind = KindBegin
			f.Nodes[id] = n
			beginIDs = append(beginIDs, id)
		case isEndLabel(n.Label):
			n.Kind = KindEnd
			f.Nodes[id] = n
			endIDs = append(endIDs, id)
		}
	}

	if len(beginIDs) != 1 {
		return &ValidationError{Message: fmt.Sprintf("flow must have exactly one begin node, found %d", len(beginIDs))}
	}
	if len(endIDs) != 1 {
		return &ValidationError{Message: fmt.Sprintf("flow must have exactly one end node, found %d", len(endIDs))}
	}
	f.BeginID = beginIDs[0]
	f.EndID = endIDs[0]
	return nil
}

// Validate checks the structural invariants of a finalized flow:
//
//  1. The end node is reachable from the begin node.
//  2. Every node with more than one outgoing edge has a non-empty label on
//     each of those edges, and the labels are pairwise distinct.
func (f *Flow) Validate() error {
	if !f.reaches(f.BeginID, f.EndID) {
		return &ValidationError{Message: "end node is not reachable from begin node"}
	}

	for id, edges := range f.Edges {
		if len(edges) < 2 {
			continue
		}
		seen := make(map[string]bool, len(edges))
		for _, edge := range edges {
			label := strings.TrimSpace(edge.Label)
			if label == "" {
				return &ValidationError{Message: fmt.Sprintf("node %q has multiple outgoing edges; every edge must carry a label", id)}
			}
			if seen[label] {
				return &ValidationError{Message: fmt.Sprintf("node %q has duplicate outgoing edge label %q", id, label)}
			}
			seen[label] = true
		}
	}
	return nil
}

// reaches runs a breadth-first search from src and reports whether dst is
// reachable.
func (f *Flow) reaches(src, dst string) bool {
	if src == dst {
		return true
	}
	visited := map[string]bool{src: true}
	queue := []string{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, edge := range f.Edges[cur] {
			if edge.Dst == dst {
				return true
			}
			if !visited[edge.Dst] {
				visited[edge.Dst] = true
				queue = append(queue, edge.Dst)
			}
		}
	}
	return false
}

// ensureNode adds an implicit declaration for a referenced id, using the id
// itself as the label.
func (f *Flow) ensureNode(id string) {
	if _, ok := f.Nodes[id]; !ok {
		f.Nodes[id] = Node{ID: id, Label: id, Kind: KindTask}
	}
}

// declareNode records an explicit node declaration, overriding any implicit
// one. The kind sticks once set to decision.
func (f *Flow) declareNode(id, label string, kind NodeKind) {
	existing, ok := f.Nodes[id]
	if ok && existing.Kind == KindDecision && kind == KindTask {
		kind = KindDecision
	}
	if label == "" {
		if ok && existing.Label != existing.ID {
			label = existing.Label
		} else {
			label = id
		}
	}
	f.Nodes[id] = Node{ID: id, Label: label, Kind: kind}
}

// addEdge appends an edge, implicitly declaring endpoints.
func (f *Flow) addEdge(src, dst, label string) {
	f.ensureNode(src)
	f.ensureNode(dst)
	f.Edges[src] = append(f.Edges[src], Edge{Src: src, Dst: dst, Label: strings.TrimSpace(label)})
}

func newFlow() *Flow {
	return &Flow{
		Nodes: make(map[string]Node),
		Edges: make(map[string][]Edge),
	}
}
