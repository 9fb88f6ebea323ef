package flow

import (
	"regexp"
	"strings"
)

// Parse turns flowchart source into a validated Flow. Two dialects are
// recognized: a Mermaid flowchart subset and a Graphviz DOT subset. The
// returned graph is dialect-agnostic. Syntax problems surface as *ParseError
// and structural problems as *ValidationError; neither is fatal to the host.
func Parse(source string) (*Flow, error) {
	var f *Flow
	var err error
	if looksLikeDOT(source) {
		f, err = parseDOT(source)
	} else {
		f, err = parseMermaid(source)
	}
	if err != nil {
		return nil, err
	}
	if len(f.Nodes) == 0 {
		return nil, &ParseError{Message: "flow source declares no nodes"}
	}
	if err := f.finalize(); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func looksLikeDOT(source string) bool {
	for _, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "//") || strings.HasPrefix(line, "#") {
			continue
		}
		return strings.HasPrefix(line, "digraph") || strings.HasPrefix(line, "strict digraph")
	}
	return false
}

// Mermaid dialect.
//
// Supported statements: a header line (flowchart/graph + direction), node
// declarations like `id[Label]` or `id{Label}` (braces mark a decision),
// and edges `A --> B`, `A -->|label| B`, `A -- label --> B`. Unknown
// directives (style, classDef, class, linkStyle, click, subgraph markers)
// are ignored without error.

var (
	mermaidHeaderRe   = regexp.MustCompile(`^(flowchart|graph)\b`)
	mermaidIgnoreRe   = regexp.MustCompile(`^(style|classDef|class|linkStyle|click|direction|subgraph\b|end$)`)
	mermaidNodeRe     = regexp.MustCompile(`^([A-Za-z0-9_.-]+)\s*(?:\[([^\]]*)\]|\{([^}]*)\}|\(\(([^)]*)\)\)|\(([^)]*)\))?$`)
	mermaidPipeEdgeRe = regexp.MustCompile(`^\|([^|]*)\|\s*(.*)$`)
	mermaidTextEdgeRe = regexp.MustCompile(`^(.*?)\s*--\s+(.+?)\s+-->\s*(.*)$`)
)

func parseMermaid(source string) (*Flow, error) {
	f := newFlow()

	for lineNo, raw := range strings.Split(source, "\n") {
		line := strings.TrimSpace(raw)
		if idx := strings.Index(line, "%%"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if line == "" {
			continue
		}
		if mermaidHeaderRe.MatchString(line) || mermaidIgnoreRe.MatchString(line) {
			continue
		}

		// `A -- label --> B` form first, since it also contains `-->`.
		if m := mermaidTextEdgeRe.FindStringSubmatch(line); m != nil {
			src, err := parseMermaidEndpoint(f, m[1], lineNo+1)
			if err != nil {
				return nil, err
			}
			dst, err := parseMermaidEndpoint(f, m[3], lineNo+1)
			if err != nil {
				return nil, err
			}
			f.addEdge(src, dst, unquote(m[2]))
			continue
		}

		if strings.Contains(line, "-->") {
			if err := parseMermaidChain(f, line, lineNo+1); err != nil {
				return nil, err
			}
			continue
		}

		// Bare node declaration.
		if _, err := parseMermaidEndpoint(f, line, lineNo+1); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// parseMermaidChain handles `A --> B --> C` chains, where each hop after the
// arrow may start with a `|label|` segment.
func parseMermaidChain(f *Flow, line string, lineNo int) error {
	segments := strings.Split(line, "-->")
	prev, err := parseMermaidEndpoint(f, segments[0], lineNo)
	if err != nil {
		return err
	}
	for _, seg := range segments[1:] {
		seg = strings.TrimSpace(seg)
		label := ""
		if m := mermaidPipeEdgeRe.FindStringSubmatch(seg); m != nil {
			label = unquote(m[1])
			seg = strings.TrimSpace(m[2])
		}
		next, err := parseMermaidEndpoint(f, seg, lineNo)
		if err != nil {
			return err
		}
		f.addEdge(prev, next, label)
		prev = next
	}
	return nil
}

// parseMermaidEndpoint parses one node reference, registering an explicit
// declaration when the reference carries a bracketed label.
func parseMermaidEndpoint(f *Flow, s string, lineNo int) (string, error) {
	s = strings.TrimSpace(s)
	m := mermaidNodeRe.FindStringSubmatch(s)
	if m == nil {
		return "", &ParseError{Line: lineNo, Message: "cannot parse node reference: " + s}
	}
	id := m[1]

	switch {
	case m[2] != "": // id[Label]
		f.declareNode(id, unquote(m[2]), KindTask)
	case m[3] != "": // id{Label} — decision shape
		f.declareNode(id, unquote(m[3]), KindDecision)
	case m[4] != "": // id((Label))
		f.declareNode(id, unquote(m[4]), KindTask)
	case m[5] != "": // id(Label)
		f.declareNode(id, unquote(m[5]), KindTask)
	default:
		f.ensureNode(id)
	}
	return id, nil
}

// DOT dialect.
//
// Supported statements: `digraph name { ... }`, node declarations
// `id [label="..." shape=diamond]`, and edges `a -> b [label="yes"]`,
// including chains `a -> b -> c`. graph/node/edge default blocks and
// unknown attributes are ignored.

var (
	dotIgnoreRe = regexp.MustCompile(`^(graph|node|edge|rankdir|splines|label)\s*[\[=]`)
	dotEdgeRe   = regexp.MustCompile(`^(.+?)\s*(?:\[(.*)\])?$`)
	dotIDRe     = regexp.MustCompile(`^"([^"]*)"$|^([A-Za-z0-9_.-]+)$`)
	dotAttrRe   = regexp.MustCompile(`(\w+)\s*=\s*(?:"((?:[^"\\]|\\.)*)"|([\w.-]+))`)
)

func parseDOT(source string) (*Flow, error) {
	f := newFlow()

	for lineNo, raw := range strings.Split(source, "\n") {
		line := strings.TrimSpace(raw)
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if line == "" {
			continue
		}

		for _, stmt := range strings.Split(line, ";") {
			stmt = strings.TrimSpace(stmt)
			if strings.HasPrefix(stmt, "strict ") {
				stmt = strings.TrimSpace(strings.TrimPrefix(stmt, "strict "))
			}
			if strings.HasPrefix(stmt, "digraph") {
				// The body may share the header's line; keep what follows
				// the opening brace.
				idx := strings.Index(stmt, "{")
				if idx < 0 {
					continue
				}
				stmt = strings.TrimSpace(stmt[idx+1:])
			}
			stmt = strings.TrimSpace(strings.TrimSuffix(stmt, "}"))
			if stmt == "" {
				continue
			}
			if dotIgnoreRe.MatchString(stmt) {
				continue
			}
			if err := parseDOTStatement(f, stmt, lineNo+1); err != nil {
				return nil, err
			}
		}
	}

	return f, nil
}

func parseDOTStatement(f *Flow, stmt string, lineNo int) error {
	m := dotEdgeRe.FindStringSubmatch(stmt)
	if m == nil {
		return &ParseError{Line: lineNo, Message: "cannot parse statement: " + stmt}
	}
	head, attrText := strings.TrimSpace(m[1]), m[2]
	attrs := parseDOTAttrs(attrText)

	if strings.Contains(head, "->") {
		parts := strings.Split(head, "->")
		ids := make([]string, 0, len(parts))
		for _, part := range parts {
			id, err := parseDOTID(part, lineNo)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		for i := 0; i+1 < len(ids); i++ {
			f.addEdge(ids[i], ids[i+1], attrs["label"])
		}
		return nil
	}

	id, err := parseDOTID(head, lineNo)
	if err != nil {
		return err
	}
	kind := KindTask
	if attrs["shape"] == "diamond" {
		kind = KindDecision
	}
	f.declareNode(id, attrs["label"], kind)
	return nil
}

func parseDOTID(s string, lineNo int) (string, error) {
	s = strings.TrimSpace(s)
	m := dotIDRe.FindStringSubmatch(s)
	if m == nil {
		return "", &ParseError{Line: lineNo, Message: "cannot parse node id: " + s}
	}
	if m[1] != "" {
		return m[1], nil
	}
	return m[2], nil
}

func parseDOTAttrs(s string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range dotAttrRe.FindAllStringSubmatch(s, -1) {
		value := m[2]
		if value == "" {
			value = m[3]
		}
		attrs[m[1]] = strings.ReplaceAll(value, `\"`, `"`)
	}
	return attrs
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
