package flow

import (
	"errors"
	"strings"
	"testing"
)

func TestParseMermaidBasic(t *testing.T) {
	f, err := Parse(`
flowchart TD
    begin --> plan[Write a plan]
    plan --> review{Is the plan solid?}
    review -->|yes| execute[Carry out the plan]
    review -->|no| plan
    execute --> end_[end]
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.BeginID != "begin" {
		t.Errorf("expected begin node, got %q", f.BeginID)
	}
	if f.EndID != "end_" {
		t.Errorf("expected end_ node, got %q", f.EndID)
	}
	if n, _ := f.Node("review"); n.Kind != KindDecision {
		t.Errorf("braces should mark a decision node, got %s", n.Kind)
	}
	if n, _ := f.Node("plan"); n.Label != "Write a plan" {
		t.Errorf("unexpected label: %q", n.Label)
	}

	out := f.Outgoing("review")
	if len(out) != 2 {
		t.Fatalf("expected 2 edges from review, got %d", len(out))
	}
	labels := map[string]string{}
	for _, e := range out {
		labels[e.Label] = e.Dst
	}
	if labels["yes"] != "execute" || labels["no"] != "plan" {
		t.Errorf("unexpected edge labels: %v", labels)
	}
}

func TestParseMermaidChain(t *testing.T) {
	f, err := Parse(`
flowchart LR
    begin --> a[first] --> b[second] --> done[end]
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Outgoing("a")) != 1 || f.Outgoing("a")[0].Dst != "b" {
		t.Errorf("chain edge a->b missing: %v", f.Outgoing("a"))
	}
	if f.EndID != "done" {
		t.Errorf("expected done as end, got %q", f.EndID)
	}
}

func TestParseMermaidTextEdge(t *testing.T) {
	f, err := Parse(`
flowchart TD
    begin --> d{Ready?}
    d -- ship it --> done[end]
    d -- not yet --> begin
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := f.Outgoing("d")
	if len(out) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(out))
	}
	found := false
	for _, e := range out {
		if e.Label == "ship it" && e.Dst == "done" {
			found = true
		}
	}
	if !found {
		t.Errorf("text edge label lost: %v", out)
	}
}

func TestParseMermaidIgnoresDecorations(t *testing.T) {
	f, err := Parse(`
flowchart TD
    %% a comment line
    begin --> work[Do it] %% trailing comment
    work --> done[end]
    style work fill:#f9f
    classDef red fill:#f00
    linkStyle 0 stroke:#0f0
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Nodes) != 3 {
		t.Errorf("expected 3 nodes, got %d", len(f.Nodes))
	}
}

func TestParseDOTBasic(t *testing.T) {
	f, err := Parse(`
digraph review {
    // entry
    begin [label="begin"];
    plan [label="Write a plan"];
    check [label="Plan ok?" shape=diamond];
    done [label="end"];
    begin -> plan;
    plan -> check;
    check -> plan [label="no"];
    check -> done [label="yes"];
}
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.BeginID != "begin" || f.EndID != "done" {
		t.Errorf("unexpected begin/end: %q %q", f.BeginID, f.EndID)
	}
	if n, _ := f.Node("check"); n.Kind != KindDecision {
		t.Errorf("shape=diamond should mark a decision, got %s", n.Kind)
	}
	out := f.Outgoing("check")
	if len(out) != 2 {
		t.Fatalf("expected 2 edges from check, got %d", len(out))
	}
}

func TestParseDOTChainAndImplicitNodes(t *testing.T) {
	f, err := Parse(`
digraph {
    begin -> work -> end
}
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Implicit nodes take their id as label, so begin/end resolve.
	if f.BeginID != "begin" || f.EndID != "end" {
		t.Errorf("unexpected begin/end: %q %q", f.BeginID, f.EndID)
	}
	if n, _ := f.Node("work"); n.Label != "work" {
		t.Errorf("implicit label should be the id, got %q", n.Label)
	}
}

func TestParseDOTSingleLineDigraph(t *testing.T) {
	f, err := Parse(`digraph g { begin -> work; work -> end }`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.BeginID != "begin" || f.EndID != "end" {
		t.Errorf("unexpected begin/end: %q %q", f.BeginID, f.EndID)
	}
	if len(f.Outgoing("work")) != 1 || f.Outgoing("work")[0].Dst != "end" {
		t.Errorf("edge after the header was lost: %v", f.Outgoing("work"))
	}

	if _, err := Parse(`strict digraph { begin -> end }`); err != nil {
		t.Errorf("strict one-line digraph rejected: %v", err)
	}
}

func TestParseDialectDetection(t *testing.T) {
	dot := "digraph { begin -> end }"
	if _, err := Parse(dot); err != nil {
		t.Errorf("DOT source rejected: %v", err)
	}
	mermaid := "flowchart TD\n  begin --> done[end]\n"
	if _, err := Parse(mermaid); err != nil {
		t.Errorf("mermaid source rejected: %v", err)
	}
}

func TestParseEmptySource(t *testing.T) {
	_, err := Parse("flowchart TD\n")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError for empty flow, got %v", err)
	}
}

func TestParseRejectsMissingBegin(t *testing.T) {
	_, err := Parse(`
flowchart TD
    a[Step one] --> done[end]
`)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Error(), "begin") {
		t.Errorf("error should mention begin: %v", verr)
	}
}

func TestParseRejectsTwoEnds(t *testing.T) {
	_, err := Parse(`
flowchart TD
    begin --> a[end]
    begin --> b[end]
`)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestParseBeginEndLabelsCaseInsensitive(t *testing.T) {
	f, err := Parse(`
flowchart TD
    s[BEGIN] --> work[Do the thing]
    work --> e[End]
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.BeginID != "s" || f.EndID != "e" {
		t.Errorf("case-insensitive begin/end match failed: %q %q", f.BeginID, f.EndID)
	}
}

func TestParseBeginEndLabelSynonyms(t *testing.T) {
	f, err := Parse(`
flowchart TD
    s[Start] --> work[Do the thing]
    work --> e[Done]
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.BeginID != "s" || f.EndID != "e" {
		t.Errorf("start/done synonyms not recognized: %q %q", f.BeginID, f.EndID)
	}
}

func TestValidateUnreachableEnd(t *testing.T) {
	_, err := Parse(`
flowchart TD
    begin --> a[Step]
    a --> a
    isolated[end]
`)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for unreachable end, got %v", err)
	}
	if !strings.Contains(verr.Error(), "reachable") {
		t.Errorf("error should mention reachability: %v", verr)
	}
}

func TestValidateMultiEdgeRequiresLabels(t *testing.T) {
	_, err := Parse(`
flowchart TD
    begin --> d{Pick one}
    d --> a[Option A]
    d -->|b| b[Option B]
    a --> done[end]
    b --> done
`)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for unlabeled fan-out edge, got %v", err)
	}
}

func TestValidateMultiEdgeRejectsDuplicateLabels(t *testing.T) {
	_, err := Parse(`
flowchart TD
    begin --> d{Pick one}
    d -->|same| a[Option A]
    d -->|same | b[Option B]
    a --> done[end]
    b --> done
`)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for duplicate labels, got %v", err)
	}
}

func TestParseErrorMessageIncludesLine(t *testing.T) {
	_, err := Parse(`
flowchart TD
    begin --> ok[fine]
    !!! --> broken
`)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if perr.Line != 4 {
		t.Errorf("expected line 4, got %d", perr.Line)
	}
}
