package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/pkg/schema"
)

func seqFixture() *model.SeqAST {
	ast := model.NewSeqAST()
	ast.Participants = []*model.Participant{
		{ID: "p:a", MermaidIdent: "a"},
		{ID: "p:b", MermaidIdent: "b"},
		{ID: "p:c", MermaidIdent: "c"},
	}
	ast.Messages = []*model.Message{
		{ID: "m:1", From: "p:a", To: "p:b", Kind: model.MessageSync, OrderKey: "1"},
		{ID: "m:2", From: "p:b", To: "p:b", Kind: model.MessageSelfSync, OrderKey: "2"},
		{ID: "m:3", From: "p:b", To: "p:c", Kind: model.MessageReturn, OrderKey: "3"},
	}
	return ast
}

func TestSequenceLayoutColumnsAndRows(t *testing.T) {
	l := Sequence(seqFixture(), SequenceOptions{})
	assert.Equal(t, 8, l.ParticipantX["p:a"])
	assert.Equal(t, 24, l.ParticipantX["p:b"])
	assert.Equal(t, 40, l.ParticipantX["p:c"])

	y1 := l.MessageY["m:1"]
	y2 := l.MessageY["m:2"]
	y3 := l.MessageY["m:3"]
	assert.Equal(t, l.HeaderHeight+1, y1)
	assert.Equal(t, y1+2, y2)
	// Self-message reserves one extra row.
	assert.Equal(t, y2+3, y3)
}

func TestSequenceLayoutDeterministic(t *testing.T) {
	a := Sequence(seqFixture(), SequenceOptions{})
	b := Sequence(seqFixture(), SequenceOptions{})
	assert.Equal(t, a, b)
}

func flowFixture() *model.FlowAST {
	ast := model.NewFlowAST()
	ast.Nodes = []*model.FlowNode{
		{ID: "n:a", MermaidID: "a", Label: "A", Shape: model.ShapeRect},
		{ID: "n:b", MermaidID: "b", Label: "B", Shape: model.ShapeRect},
		{ID: "n:c", MermaidID: "c", Label: "C", Shape: model.ShapeRect},
		{ID: "n:d", MermaidID: "d", Label: "D", Shape: model.ShapeRect},
	}
	ast.Edges = []*model.FlowEdge{
		{ID: "e:1", From: "n:a", To: "n:b"},
		{ID: "e:2", From: "n:a", To: "n:c"},
		{ID: "e:3", From: "n:b", To: "n:d"},
		{ID: "e:4", From: "n:c", To: "n:d"},
	}
	return ast
}

func TestFlowchartLayeredAssignment(t *testing.T) {
	l, err := Flowchart(flowFixture())
	require.NoError(t, err)
	assert.Equal(t, 0, l.Positions["n:a"].Layer)
	assert.Equal(t, 1, l.Positions["n:b"].Layer)
	assert.Equal(t, 1, l.Positions["n:c"].Layer)
	assert.Equal(t, 2, l.Positions["n:d"].Layer)

	// Grid coordinates are even/even.
	for id, c := range l.Coords {
		assert.Zero(t, c.X%2, id)
		assert.Zero(t, c.Y%2, id)
	}
}

func TestFlowchartLongestPathLayering(t *testing.T) {
	ast := model.NewFlowAST()
	ast.Nodes = []*model.FlowNode{
		{ID: "n:a", MermaidID: "a", Label: "A"},
		{ID: "n:b", MermaidID: "b", Label: "B"},
		{ID: "n:c", MermaidID: "c", Label: "C"},
	}
	ast.Edges = []*model.FlowEdge{
		{ID: "e:1", From: "n:a", To: "n:b"},
		{ID: "e:2", From: "n:b", To: "n:c"},
		{ID: "e:3", From: "n:a", To: "n:c"},
	}
	l, err := Flowchart(ast)
	require.NoError(t, err)
	// c sits at the longest path from the source, not the shortest.
	assert.Equal(t, 2, l.Positions["n:c"].Layer)
}

func TestFlowchartCycleDetection(t *testing.T) {
	ast := flowFixture()
	ast.Edges = append(ast.Edges, &model.FlowEdge{ID: "e:5", From: "n:d", To: "n:a"})
	_, err := Flowchart(ast)
	require.Error(t, err)
	var se *schema.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, schema.ErrCodeCycleDetected, se.Code)
	assert.Equal(t, []string{"n:a", "n:b", "n:c", "n:d"}, se.Details["nodes"])
}

func TestRouteEdgesLaneOnlyTraversal(t *testing.T) {
	ast := flowFixture()
	l, err := Flowchart(ast)
	require.NoError(t, err)
	routes := RouteEdges(ast, l)
	require.Len(t, routes, len(ast.Edges))

	nodeCells := make(map[GridPoint]bool)
	for _, c := range l.Coords {
		nodeCells[c] = true
	}
	for _, e := range ast.Edges {
		path := routes[e.ID]
		require.NotEmpty(t, path, e.ID)
		from, to := l.Coords[e.From], l.Coords[e.To]
		assert.Equal(t, from, path[0])
		assert.Equal(t, to, path[len(path)-1])
		// Expand to unit steps and check no intermediate node cell.
		for i := 1; i < len(path); i++ {
			for _, seg := range unitSegments(path[i-1], path[i]) {
				for _, p := range []GridPoint{seg.a, seg.b} {
					if p == from || p == to {
						continue
					}
					assert.False(t, nodeCells[p], "edge %s crosses node cell %+v", e.ID, p)
				}
			}
		}
	}
}

func TestRouteEdgesDeterministic(t *testing.T) {
	ast := flowFixture()
	l, err := Flowchart(ast)
	require.NoError(t, err)
	a := RouteEdges(ast, l)
	b := RouteEdges(ast, l)
	assert.Equal(t, a, b)
}

func TestFallbackLIsOrthogonal(t *testing.T) {
	path := fallbackL(GridPoint{X: 0, Y: 0}, GridPoint{X: 4, Y: 2})
	assert.Equal(t, []GridPoint{{0, 0}, {0, 2}, {4, 2}}, path)
}
