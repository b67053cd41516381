package mermaid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/pkg/schema"
)

func parseFlow(t *testing.T, text string) *model.FlowAST {
	t.Helper()
	ast, err := ParseFlowchart(text, model.NewIDAllocator())
	require.NoError(t, err)
	return ast
}

func TestParseFlowchartBasics(t *testing.T) {
	ast := parseFlow(t, `flowchart TD
  a[Start here]
  b(Rounded)
  c{Decide}
  a --> b
  b -->|yes| c
`)
	assert.Equal(t, model.DirectionTD, ast.Direction)
	require.Len(t, ast.Nodes, 3)
	assert.Equal(t, model.ShapeRect, ast.NodeByMermaidID("a").Shape)
	assert.Equal(t, model.ShapeRound, ast.NodeByMermaidID("b").Shape)
	assert.Equal(t, model.ShapeDiamond, ast.NodeByMermaidID("c").Shape)
	assert.Equal(t, "Start here", ast.NodeByMermaidID("a").Label)
	require.Len(t, ast.Edges, 2)
	assert.Equal(t, "yes", ast.Edges[1].Label)
	require.NoError(t, ast.Validate())
}

func TestParseFlowchartAutoDeclaresEdgeEndpoints(t *testing.T) {
	ast := parseFlow(t, "flowchart LR\n  a --> b\n")
	assert.NotNil(t, ast.NodeByMermaidID("a"))
	assert.NotNil(t, ast.NodeByMermaidID("b"))
	assert.Equal(t, model.ObjectID("n:a"), ast.NodeByMermaidID("a").ID)
}

func TestParseFlowchartInlineShapeOnEdgeLine(t *testing.T) {
	ast := parseFlow(t, "flowchart TD\n  a[Alpha] --> b{Beta}\n")
	assert.Equal(t, "Alpha", ast.NodeByMermaidID("a").Label)
	assert.Equal(t, model.ShapeDiamond, ast.NodeByMermaidID("b").Shape)
}

func TestParseFlowchartRejections(t *testing.T) {
	cases := []struct {
		name string
		text string
		code string
		kind string
	}{
		{"legacy graph", "graph TD\n  a --> b\n", schema.ErrCodeUnsupported, ParseKindUnsupportedLine},
		{"subgraph", "flowchart TD\n  subgraph s\n", schema.ErrCodeUnsupported, ParseKindUnsupportedLine},
		{"classDef", "flowchart TD\n  classDef red fill:#f00\n", schema.ErrCodeUnsupported, ParseKindUnsupportedLine},
		{"ampersand", "flowchart TD\n  a & b --> c\n", schema.ErrCodeUnsupported, ParseKindUnsupportedLine},
		{"chained arrows", "flowchart TD\n  a --> b --> c\n", schema.ErrCodeUnsupported, ParseKindUnsupportedLine},
		{"bad direction", "flowchart XX\n", schema.ErrCodeParse, ParseKindUnknownDirection},
		{"conflicting label", "flowchart TD\n  a[One]\n  a[Two]\n", schema.ErrCodeParse, ParseKindDuplicateNodeID},
		{"unterminated label", "flowchart TD\n  a[One\n", schema.ErrCodeParse, ParseKindUnterminatedLabel},
		{"invalid identifier", "flowchart TD\n  a! --> b\n", schema.ErrCodeParse, ParseKindInvalidIdent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseFlowchart(tc.text, model.NewIDAllocator())
			require.Error(t, err)
			assert.Equal(t, tc.code, schema.CodeOf(err))
			assert.Equal(t, tc.kind, schema.KindOf(err))
		})
	}
}

func TestParseFlowchartRejectionCarriesLine(t *testing.T) {
	_, err := ParseFlowchart("flowchart TD\n  subgraph inner\n", model.NewIDAllocator())
	var se *schema.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ParseKindUnsupportedLine, se.Kind)
	assert.Equal(t, 2, se.Details["line_no"])
	assert.Equal(t, "subgraph inner", se.Details["line"])
}

func TestExportFlowchartCanonicalRoundTrip(t *testing.T) {
	ast := parseFlow(t, `flowchart LR
  b[Second]
  a[First]
  a --> b
  a -->|go| b
`)
	out, err := ExportFlowchart(ast)
	require.NoError(t, err)

	reparsed, err := ParseFlowchart(out, model.NewIDAllocator())
	require.NoError(t, err)
	assert.Equal(t, model.DirectionLR, reparsed.Direction)
	assert.Equal(t, len(ast.Nodes), len(reparsed.Nodes))
	assert.Equal(t, len(ast.Edges), len(reparsed.Edges))

	out2, err := ExportFlowchart(reparsed)
	require.NoError(t, err)
	assert.Equal(t, out, out2)
}

func TestExportFlowchartUsesStoredMermaidID(t *testing.T) {
	ast := parseFlow(t, "flowchart TD\n  authz[Authorize]\n  authz --> done\n")
	// Rename-via-op changes the mermaid id but never the stable id.
	ast.NodeByMermaidID("authz").MermaidID = "authorize"
	out, err := ExportFlowchart(ast)
	require.NoError(t, err)
	assert.Contains(t, out, "authorize[Authorize]")
	assert.Contains(t, out, "authorize --> done")
	assert.NotContains(t, out, "authz")
}

func TestExportFlowchartShortFormForBareLabels(t *testing.T) {
	ast := parseFlow(t, "flowchart TD\n  a --> b\n")
	out, err := ExportFlowchart(ast)
	require.NoError(t, err)
	assert.Contains(t, out, "\n  a\n")
	assert.NotContains(t, out, "a[a]")
}
