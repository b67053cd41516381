package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nereid-dev/nereid/internal/model"
)

// Session with flow a→b→c, a sequence exchange, and an xref bridging the
// flow node c to the sequence message.
func bridgedSession(t *testing.T) *model.Session {
	t.Helper()
	s := model.NewSession("sess")

	flow := model.NewFlowchartDiagram("f", "flow")
	flow.Flow.Nodes = []*model.FlowNode{
		{ID: "n:a", MermaidID: "a", Label: "A"},
		{ID: "n:b", MermaidID: "b", Label: "B"},
		{ID: "n:c", MermaidID: "c", Label: "C"},
	}
	flow.Flow.Edges = []*model.FlowEdge{
		{ID: "e:1", From: "n:a", To: "n:b"},
		{ID: "e:2", From: "n:b", To: "n:c"},
	}
	require.NoError(t, s.AddDiagram(flow))

	seq := model.NewSequenceDiagram("s", "seq")
	seq.Seq.Participants = []*model.Participant{
		{ID: "p:x", MermaidIdent: "x"},
		{ID: "p:y", MermaidIdent: "y"},
	}
	seq.Seq.Messages = []*model.Message{
		{ID: "m:1", From: "p:x", To: "p:y", Kind: model.MessageSync, Text: "go", OrderKey: "1"},
	}
	require.NoError(t, s.AddDiagram(seq))

	require.NoError(t, s.AddXRef(&model.XRef{
		ID:   "x:1",
		From: flow.Ref(model.CategoryFlowNode, "n:c"),
		To:   seq.Ref(model.CategorySeqMessage, "m:1"),
		Kind: "nav",
	}))
	return s
}

func TestFindRoutesAcrossXRef(t *testing.T) {
	s := bridgedSession(t)
	adj := BuildAdjacency(s)

	routes, err := adj.FindRoutes("d:f/flow/node/n:a", "d:s/seq/message/m:1", 1, 8, OrderFewestHops)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, []string{
		"d:f/flow/node/n:a",
		"d:f/flow/node/n:b",
		"d:f/flow/node/n:c",
		"d:s/seq/message/m:1",
	}, routes[0])
}

func TestFindRoutesLimitZero(t *testing.T) {
	s := bridgedSession(t)
	adj := BuildAdjacency(s)
	routes, err := adj.FindRoutes("d:f/flow/node/n:a", "d:s/seq/message/m:1", 0, 8, OrderFewestHops)
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func TestFindRoutesMaxHopsStrict(t *testing.T) {
	s := bridgedSession(t)
	adj := BuildAdjacency(s)

	routes, err := adj.FindRoutes("d:f/flow/node/n:a", "d:s/seq/message/m:1", 5, 2, OrderFewestHops)
	require.NoError(t, err)
	assert.Empty(t, routes, "3 hops are needed, cap is 2")

	// max_hops=0 yields a single-element route iff from == to.
	routes, err = adj.FindRoutes("d:f/flow/node/n:a", "d:f/flow/node/n:a", 5, 0, OrderFewestHops)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, []string{"d:f/flow/node/n:a"}, routes[0])

	routes, err = adj.FindRoutes("d:f/flow/node/n:a", "d:f/flow/node/n:b", 5, 0, OrderFewestHops)
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func TestFindRoutesSimplePathsOnly(t *testing.T) {
	s := bridgedSession(t)
	adj := BuildAdjacency(s)
	routes, err := adj.FindRoutes("d:f/flow/node/n:a", "d:f/flow/node/n:c", 100, 10, OrderFewestHops)
	require.NoError(t, err)
	for _, r := range routes {
		seen := map[string]bool{}
		for _, ref := range r {
			assert.False(t, seen[ref], "route revisits %s", ref)
			seen[ref] = true
		}
	}
}

func TestAdjacencyStructure(t *testing.T) {
	s := bridgedSession(t)
	adj := BuildAdjacency(s)

	// Directed node→node plus bidirectional node↔edge structural adjacency.
	aN := adj.Neighbors("d:f/flow/node/n:a")
	assert.Contains(t, aN, "d:f/flow/node/n:b")
	assert.Contains(t, aN, "d:f/flow/edge/e:1")
	bN := adj.Neighbors("d:f/flow/node/n:b")
	assert.NotContains(t, bN, "d:f/flow/node/n:a", "flow traversal is directed")
	assert.Contains(t, bN, "d:f/flow/edge/e:1")

	// Participant ↔ message is bidirectional.
	pN := adj.Neighbors("d:s/seq/participant/p:x")
	assert.Contains(t, pN, "d:s/seq/message/m:1")
	mN := adj.Neighbors("d:s/seq/message/m:1")
	assert.Contains(t, mN, "d:s/seq/participant/p:x")
	// XRef adjacency is bidirectional.
	assert.Contains(t, mN, "d:f/flow/node/n:c")
}
