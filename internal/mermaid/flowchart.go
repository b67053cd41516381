package mermaid

import (
	"fmt"
	"strings"

	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/pkg/schema"
)

// ParseFlowchart parses flowchart subset text. Nodes get name-derived ids
// ("n:<ident>"); edges get fresh ids from alloc. The direction token is
// stored on the AST but does not drive layout.
func ParseFlowchart(text string, alloc *model.IDAllocator) (*model.FlowAST, error) {
	ast := model.NewFlowAST()
	headerSeen := false

	for i, raw := range strings.Split(text, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" || strings.HasPrefix(line, "%%") {
			continue
		}
		if !headerSeen {
			fields := strings.Fields(line)
			if fields[0] == "graph" {
				return nil, unsupportedErr(lineNo, line, "legacy 'graph' header is not supported; use 'flowchart'")
			}
			if fields[0] != flowchartHeader || len(fields) != 2 {
				return nil, unsupportedErr(lineNo, line, "expected 'flowchart <TD|LR|RL|BT>' header")
			}
			switch fields[1] {
			case "TD", "LR", "RL", "BT":
				ast.Direction = model.FlowDirection(fields[1])
			default:
				return nil, parseErr(lineNo, line, ParseKindUnknownDirection, "unknown flowchart direction %q", fields[1])
			}
			headerSeen = true
			continue
		}

		keyword := strings.Fields(line)[0]
		switch keyword {
		case "subgraph", "end":
			return nil, unsupportedErr(lineNo, line, "'subgraph' blocks are not supported")
		case "classDef", "class":
			return nil, unsupportedErr(lineNo, line, "'classDef'/'class' styling is not supported")
		}
		if strings.Contains(line, "&") {
			return nil, unsupportedErr(lineNo, line, "'&' node lists are not supported")
		}

		if strings.Contains(line, "-->") {
			if err := parseFlowEdgeLine(ast, alloc, line, lineNo); err != nil {
				return nil, err
			}
			continue
		}
		if _, err := ensureNode(ast, line, lineNo); err != nil {
			return nil, err
		}
	}

	if !headerSeen {
		return nil, schema.NewError(schema.ErrCodeParse, "empty diagram text").WithKind(ParseKindEmptyDiagram)
	}
	return ast, nil
}

func parseFlowEdgeLine(ast *model.FlowAST, alloc *model.IDAllocator, line string, lineNo int) error {
	if strings.Count(line, "-->") > 1 {
		return unsupportedErr(lineNo, line, "chained arrows are not supported; declare one edge per line")
	}
	left, right, _ := strings.Cut(line, "-->")
	left = strings.TrimSpace(left)
	right = strings.TrimSpace(right)

	label := ""
	if strings.HasPrefix(right, "|") {
		body, rest, ok := strings.Cut(right[1:], "|")
		if !ok {
			return parseErr(lineNo, line, ParseKindUnterminatedLabel, "unterminated edge label")
		}
		label = strings.TrimSpace(body)
		right = strings.TrimSpace(rest)
	}

	from, err := ensureNode(ast, left, lineNo)
	if err != nil {
		return err
	}
	to, err := ensureNode(ast, right, lineNo)
	if err != nil {
		return err
	}
	ast.Edges = append(ast.Edges, &model.FlowEdge{
		ID:    alloc.Mint(model.PrefixEdge),
		From:  from.ID,
		To:    to.ID,
		Label: label,
	})
	return nil
}

// nodeSpec splits "<ident>", "<ident>[label]", "<ident>(label)", or
// "<ident>{label}" into its parts.
func nodeSpec(spec string, lineNo int) (ident, label string, shape model.NodeShape, err error) {
	shape = model.ShapeRect
	brackets := []struct {
		open, close byte
		shape       model.NodeShape
	}{
		{'[', ']', model.ShapeRect},
		{'(', ')', model.ShapeRound},
		{'{', '}', model.ShapeDiamond},
	}
	for _, br := range brackets {
		idx := strings.IndexByte(spec, br.open)
		if idx < 0 {
			continue
		}
		if spec[len(spec)-1] != br.close {
			return "", "", "", parseErr(lineNo, spec, ParseKindUnterminatedLabel, "unterminated node label in %q", spec)
		}
		ident = spec[:idx]
		label = strings.TrimSpace(spec[idx+1 : len(spec)-1])
		shape = br.shape
		if verr := validateIdent(ident); verr != nil {
			return "", "", "", parseErr(lineNo, spec, ParseKindInvalidIdent, "invalid node identifier: %v", verr)
		}
		return ident, label, shape, nil
	}
	if verr := validateIdent(spec); verr != nil {
		return "", "", "", parseErr(lineNo, spec, ParseKindInvalidIdent, "invalid node identifier: %v", verr)
	}
	return spec, "", shape, nil
}

// ensureNode resolves or declares the node described by spec. A bare
// reference to an existing node leaves it unchanged. A labelled
// re-declaration replaces the label and shape; it fails only when the node
// already carries a different explicit label (neither empty nor the bare
// identifier).
func ensureNode(ast *model.FlowAST, spec string, lineNo int) (*model.FlowNode, error) {
	ident, label, shape, err := nodeSpec(spec, lineNo)
	if err != nil {
		return nil, err
	}
	if existing := ast.NodeByMermaidID(ident); existing != nil {
		if label != "" {
			if existing.Label != ident && existing.Label != "" && existing.Label != label {
				return nil, parseErr(lineNo, spec, ParseKindDuplicateNodeID, "node %q re-declared with conflicting label %q", ident, label)
			}
			existing.Label = label
			existing.Shape = shape
		}
		return existing, nil
	}
	if label == "" {
		label = ident
	}
	node := &model.FlowNode{
		ID:        model.ObjectID(model.PrefixNode + ":" + ident),
		MermaidID: ident,
		Label:     label,
		Shape:     shape,
	}
	ast.Nodes = append(ast.Nodes, node)
	return node, nil
}

// ExportFlowchart renders canonical flowchart subset text: nodes by object
// id, then edges by (from_id, to_id, edge_id). The emitted identifier is the
// node's stored mermaid_id with a fallback derived from the node id.
func ExportFlowchart(ast *model.FlowAST) (string, error) {
	idents := make(map[model.ObjectID]string, len(ast.Nodes))
	seen := make(map[string]model.ObjectID, len(ast.Nodes))
	for _, n := range ast.Nodes {
		ident := n.MermaidID
		if ident == "" {
			ident = fallbackIdent(n.ID)
		}
		if strings.ContainsAny(n.Label, "\n\r") {
			return "", exportErr("node %s label contains newline", n.ID)
		}
		if prev, dup := seen[ident]; dup {
			return "", exportErr("nodes %s and %s share mermaid identifier %q", prev, n.ID, ident)
		}
		seen[ident] = n.ID
		idents[n.ID] = ident
	}

	direction := ast.Direction
	if direction == "" {
		direction = model.DirectionTD
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", flowchartHeader, direction)
	for _, n := range ast.SortedNodes() {
		ident := idents[n.ID]
		if n.Label == "" || n.Label == ident {
			fmt.Fprintf(&b, "  %s\n", ident)
			continue
		}
		switch n.Shape {
		case model.ShapeRound:
			fmt.Fprintf(&b, "  %s(%s)\n", ident, n.Label)
		case model.ShapeDiamond:
			fmt.Fprintf(&b, "  %s{%s}\n", ident, n.Label)
		default:
			fmt.Fprintf(&b, "  %s[%s]\n", ident, n.Label)
		}
	}
	for _, e := range ast.SortedEdges() {
		if strings.ContainsAny(e.Label, "\n\r") {
			return "", exportErr("edge %s label contains newline", e.ID)
		}
		if e.Label != "" {
			fmt.Fprintf(&b, "  %s -->|%s| %s\n", idents[e.From], e.Label, idents[e.To])
		} else {
			fmt.Fprintf(&b, "  %s --> %s\n", idents[e.From], idents[e.To])
		}
	}
	return b.String(), nil
}
