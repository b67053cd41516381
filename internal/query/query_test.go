package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/pkg/schema"
)

func seqFixture(t *testing.T) *model.Diagram {
	t.Helper()
	d := model.NewSequenceDiagram("seq", "test")
	d.Seq.Participants = []*model.Participant{
		{ID: "p:x", MermaidIdent: "x"},
		{ID: "p:y", MermaidIdent: "y"},
	}
	d.Seq.Messages = []*model.Message{
		{ID: "m:1", From: "p:x", To: "p:y", Kind: model.MessageSync, Text: "Login request", OrderKey: "1"},
		{ID: "m:2", From: "p:y", To: "p:x", Kind: model.MessageReturn, Text: "login OK", OrderKey: "2"},
		{ID: "m:3", From: "p:x", To: "p:y", Kind: model.MessageAsync, Text: "audit", OrderKey: "3"},
	}
	return d
}

func flowFixture(t *testing.T) *model.Diagram {
	t.Helper()
	d := model.NewFlowchartDiagram("flow", "test")
	d.Flow.Nodes = []*model.FlowNode{
		{ID: "n:a", MermaidID: "a", Label: "A"},
		{ID: "n:b", MermaidID: "b", Label: "B"},
		{ID: "n:c", MermaidID: "c", Label: "C"},
		{ID: "n:d", MermaidID: "d", Label: "D"},
		{ID: "n:island", MermaidID: "island", Label: "I"},
	}
	d.Flow.Edges = []*model.FlowEdge{
		{ID: "e:1", From: "n:a", To: "n:b"},
		{ID: "e:2", From: "n:b", To: "n:c"},
		{ID: "e:3", From: "n:a", To: "n:c"},
		{ID: "e:4", From: "n:c", To: "n:d"},
	}
	return d
}

func TestMessagesFilter(t *testing.T) {
	d := seqFixture(t)
	msgs, err := Messages(d, MessageFilter{From: "p:x"})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.ObjectID("m:1"), msgs[0].ID)

	msgs, err = Messages(d, MessageFilter{Kind: model.MessageReturn})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.ObjectID("m:2"), msgs[0].ID)
}

func TestMessagesWhereExpression(t *testing.T) {
	d := seqFixture(t)
	msgs, err := Messages(d, MessageFilter{Where: `kind == "sync" && text contains "Login"`})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.ObjectID("m:1"), msgs[0].ID)

	_, err = Messages(d, MessageFilter{Where: "((("})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeInvalidParams, schema.CodeOf(err))
}

func TestSearchSubstringCaseInsensitiveByDefault(t *testing.T) {
	d := seqFixture(t)
	msgs, err := Search(d, "LOGIN", SearchSubstring, false)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	msgs, err = Search(d, "login", SearchSubstring, true)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestSearchRegex(t *testing.T) {
	d := seqFixture(t)
	msgs, err := Search(d, "^login", SearchRegex, false)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	_, err = Search(d, "[unclosed", SearchRegex, false)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeInvalidParams, schema.CodeOf(err))
}

func TestTrace(t *testing.T) {
	d := seqFixture(t)
	msgs, err := Trace(d, "m:2", TraceBefore, 5)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.ObjectID("m:1"), msgs[0].ID)

	msgs, err = Trace(d, "m:2", TraceAfter, 5)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.ObjectID("m:3"), msgs[0].ID)

	msgs, err = Trace(d, "m:2", TraceBoth, 1)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)

	_, err = Trace(d, "m:404", TraceBoth, 1)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}

func TestReachable(t *testing.T) {
	d := flowFixture(t)
	nodes, err := Reachable(d, "n:b", DirOut)
	require.NoError(t, err)
	assert.Equal(t, []model.ObjectID{"n:b", "n:c", "n:d"}, nodes)

	nodes, err = Reachable(d, "n:c", DirIn)
	require.NoError(t, err)
	assert.Equal(t, []model.ObjectID{"n:a", "n:b", "n:c"}, nodes)

	_, err = Reachable(d, "n:zz", DirOut)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}

func TestPathsShortestAndAlternates(t *testing.T) {
	d := flowFixture(t)
	paths, err := Paths(d, "n:a", "n:c", 10, 1)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, []model.ObjectID{"n:a", "n:c"}, paths[0])
	assert.Equal(t, []model.ObjectID{"n:a", "n:b", "n:c"}, paths[1])

	// Zero extra hops keeps only the shortest.
	paths, err = Paths(d, "n:a", "n:c", 10, 0)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	// limit=0 returns nothing.
	paths, err = Paths(d, "n:a", "n:c", 0, 2)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestCyclesViaSCC(t *testing.T) {
	d := flowFixture(t)
	cycles, err := Cycles(d)
	require.NoError(t, err)
	assert.Empty(t, cycles)

	d.Flow.Edges = append(d.Flow.Edges, &model.FlowEdge{ID: "e:9", From: "n:d", To: "n:b"})
	cycles, err = Cycles(d)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Equal(t, []model.ObjectID{"n:b", "n:c", "n:d"}, cycles[0])
}

func TestCyclesSelfLoop(t *testing.T) {
	d := flowFixture(t)
	d.Flow.Edges = append(d.Flow.Edges, &model.FlowEdge{ID: "e:9", From: "n:a", To: "n:a"})
	cycles, err := Cycles(d)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Equal(t, []model.ObjectID{"n:a"}, cycles[0])
}

func TestDeadEndsAndUnreachable(t *testing.T) {
	d := flowFixture(t)
	dead, err := DeadEnds(d)
	require.NoError(t, err)
	assert.Equal(t, []model.ObjectID{"n:d", "n:island"}, dead)

	un, err := Unreachable(d, "n:a")
	require.NoError(t, err)
	assert.Equal(t, []model.ObjectID{"n:island"}, un)

	un, err = Unreachable(d, "")
	require.NoError(t, err)
	assert.Empty(t, un, "island is its own source when no start is given")
}

func TestUnreachablePureCycleFallsBackToAllEntries(t *testing.T) {
	d := model.NewFlowchartDiagram("flow", "cycle")
	d.Flow.Nodes = []*model.FlowNode{
		{ID: "n:a", MermaidID: "a", Label: "A"},
		{ID: "n:b", MermaidID: "b", Label: "B"},
		{ID: "n:c", MermaidID: "c", Label: "C"},
	}
	d.Flow.Edges = []*model.FlowEdge{
		{ID: "e:1", From: "n:a", To: "n:b"},
		{ID: "e:2", From: "n:b", To: "n:c"},
		{ID: "e:3", From: "n:c", To: "n:a"},
	}
	// No node has in-degree zero, so every node counts as an entry point
	// and nothing is unreachable.
	un, err := Unreachable(d, "")
	require.NoError(t, err)
	assert.Empty(t, un)
}

func TestDegrees(t *testing.T) {
	d := flowFixture(t)
	entries, err := Degrees(d, 2, SortByTotal)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ObjectID("n:c"), entries[0].NodeID)
	assert.Equal(t, 2, entries[0].In)
	assert.Equal(t, 1, entries[0].Out)
}
