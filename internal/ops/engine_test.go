package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/pkg/schema"
)

func strPtr(s string) *string { return &s }

func flowAB(t *testing.T) *model.Diagram {
	t.Helper()
	d := model.NewFlowchartDiagram("flow", "test")
	d.Flow.Nodes = []*model.FlowNode{
		{ID: "n:a", MermaidID: "a", Label: "A", Shape: model.ShapeRect},
		{ID: "n:b", MermaidID: "b", Label: "B", Shape: model.ShapeRect},
	}
	d.Flow.Edges = []*model.FlowEdge{
		{ID: "e:1", From: "n:a", To: "n:b"},
	}
	return d
}

func seqDiagram(t *testing.T) *model.Diagram {
	t.Helper()
	d := model.NewSequenceDiagram("seq", "test")
	d.Seq.Participants = []*model.Participant{
		{ID: "p:a", MermaidIdent: "a"},
		{ID: "p:b", MermaidIdent: "b"},
	}
	d.Seq.Messages = []*model.Message{
		{ID: "m:1", From: "p:a", To: "p:b", Kind: model.MessageSync, Text: "hi", OrderKey: "1"},
	}
	return d
}

func commit(t *testing.T, e *Engine, d *model.Diagram, baseRev uint64, batch []Op) (uint64, Delta) {
	t.Helper()
	res, err := Prepare(d, baseRev, batch)
	require.NoError(t, err)
	require.NoError(t, e.Commit(d, baseRev, res))
	return res.NewRev, res.Delta
}

func TestApplyAtomicityOnOpFailure(t *testing.T) {
	d := flowAB(t)
	require.NoError(t, d.RestoreRev(3))

	_, err := Prepare(d, 3, []Op{
		{Type: OpAddNode, Ident: "c", Label: strPtr("C")},
		{Type: OpAddEdge, From: "n:b", To: "n:x"},
	})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeInvalidEndpoint, schema.CodeOf(err))
	assert.Equal(t, uint64(3), d.Rev)
	assert.Nil(t, d.Flow.Node("n:c"), "failed batch must not leave partial state")
}

func TestBaseRevConflict(t *testing.T) {
	d := flowAB(t)
	require.NoError(t, d.RestoreRev(5))

	_, err := Prepare(d, 4, nil)
	require.Error(t, err)
	var se *schema.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, schema.ErrCodeConflict, se.Code)
	assert.Equal(t, uint64(5), se.Details["current_rev"])
}

func TestEmptyBatchStillIncrementsRev(t *testing.T) {
	d := flowAB(t)
	e := NewEngine(0)
	rev, delta := commit(t, e, d, 0, nil)
	assert.Equal(t, uint64(1), rev)
	assert.Equal(t, uint64(1), d.Rev)
	assert.True(t, delta.Empty())
}

func TestRevIncrementsByOnePerBatch(t *testing.T) {
	d := flowAB(t)
	e := NewEngine(0)
	rev, _ := commit(t, e, d, 0, []Op{
		{Type: OpAddNode, Ident: "c"},
		{Type: OpAddNode, Ident: "x"},
		{Type: OpAddEdge, From: "n:c", To: "n:x"},
	})
	assert.Equal(t, uint64(1), rev)
}

func TestRemoveNodeCascadesEdges(t *testing.T) {
	d := flowAB(t)
	e := NewEngine(0)
	_, delta := commit(t, e, d, 0, []Op{{Type: OpRemoveNode, ID: "n:a"}})
	assert.Equal(t, []string{"d:flow/flow/edge/e:1", "d:flow/flow/node/n:a"}, delta.Removed)
	assert.Nil(t, d.Flow.Edge("e:1"))
}

func TestDeltaCollapseAddThenRemove(t *testing.T) {
	d := flowAB(t)
	e := NewEngine(0)
	_, delta := commit(t, e, d, 0, []Op{
		{Type: OpAddNode, ID: "n:c", Ident: "c"},
		{Type: OpRemoveNode, ID: "n:c"},
	})
	assert.Empty(t, delta.Added)
	assert.Empty(t, delta.Removed)
}

func TestDeltaCollapseRemoveThenAdd(t *testing.T) {
	d := seqDiagram(t)
	e := NewEngine(0)
	_, delta := commit(t, e, d, 0, []Op{
		{Type: OpRemoveMessage, ID: "m:1"},
		{Type: OpAddMessage, ID: "m:2", From: "p:a", To: "p:b", Kind: "sync", Text: strPtr("again"), OrderKey: "2"},
	})
	assert.Equal(t, []string{"d:seq/seq/message/m:2"}, delta.Added)
	assert.Equal(t, []string{"d:seq/seq/message/m:1"}, delta.Removed)
	assert.Empty(t, delta.Updated)
}

func TestDeltaUpdateThenRemoveListsRemovedOnly(t *testing.T) {
	d := seqDiagram(t)
	e := NewEngine(0)
	_, delta := commit(t, e, d, 0, []Op{
		{Type: OpUpdateMessage, ID: "m:1", Text: strPtr("x")},
		{Type: OpRemoveMessage, ID: "m:1"},
	})
	assert.Empty(t, delta.Added)
	assert.Empty(t, delta.Updated)
	assert.Equal(t, []string{"d:seq/seq/message/m:1"}, delta.Removed)
}

func TestRepeatedUpdatesAppearOnce(t *testing.T) {
	d := seqDiagram(t)
	e := NewEngine(0)
	_, delta := commit(t, e, d, 0, []Op{
		{Type: OpUpdateMessage, ID: "m:1", Text: strPtr("x")},
		{Type: OpUpdateMessage, ID: "m:1", Text: strPtr("y")},
	})
	assert.Equal(t, []string{"d:seq/seq/message/m:1"}, delta.Updated)
}

func TestRemoveParticipantCascadesMessages(t *testing.T) {
	d := seqDiagram(t)
	e := NewEngine(0)
	_, delta := commit(t, e, d, 0, []Op{{Type: OpRemoveParticipant, ID: "p:a"}})
	assert.Contains(t, delta.Removed, "d:seq/seq/message/m:1")
	assert.Contains(t, delta.Removed, "d:seq/seq/participant/p:a")
	assert.Empty(t, d.Seq.Messages)
}

func TestRemoveMessagePrunesEmptiedBlocks(t *testing.T) {
	d := seqDiagram(t)
	d.Seq.Blocks = []*model.Block{{
		ID:   "b:1",
		Kind: model.BlockOpt,
		Sections: []*model.Section{
			{ID: "s:1", Kind: model.SectionMain, Messages: []model.ObjectID{"m:1"}},
		},
	}}
	e := NewEngine(0)
	_, delta := commit(t, e, d, 0, []Op{{Type: OpRemoveMessage, ID: "m:1"}})
	assert.Empty(t, d.Seq.Blocks)
	assert.Contains(t, delta.Removed, "d:seq/seq/block/b:1")
	assert.Contains(t, delta.Removed, "d:seq/seq/section/s:1")
}

func TestRenameNodeMermaidIDKeepsStableID(t *testing.T) {
	d := flowAB(t)
	e := NewEngine(0)
	_, delta := commit(t, e, d, 0, []Op{{Type: OpRenameNodeMermaidID, ID: "n:a", NewIdent: "alpha"}})
	n := d.Flow.Node("n:a")
	require.NotNil(t, n)
	assert.Equal(t, "alpha", n.MermaidID)
	assert.Equal(t, []string{"d:flow/flow/node/n:a"}, delta.Updated)
}

func TestIdentifierCollisionRejected(t *testing.T) {
	d := flowAB(t)
	_, err := Prepare(d, 0, []Op{{Type: OpRenameNodeMermaidID, ID: "n:a", NewIdent: "b"}})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeDuplicateID, schema.CodeOf(err))

	_, err = Prepare(d, 0, []Op{{Type: OpAddNode, Ident: "a"}})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeDuplicateID, schema.CodeOf(err))
}

func TestNewlineTextRejected(t *testing.T) {
	d := seqDiagram(t)
	_, err := Prepare(d, 0, []Op{{Type: OpUpdateMessage, ID: "m:1", Text: strPtr("two\nlines")}})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeInvalidText, schema.CodeOf(err))
}

func TestAddBlockValidatesMessages(t *testing.T) {
	d := seqDiagram(t)
	_, err := Prepare(d, 0, []Op{{
		Type: OpAddBlock, Kind: "opt",
		Sections: []SectionSpec{{Kind: "main", Messages: []model.ObjectID{"m:404"}}},
	}})
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeInvalidEndpoint, schema.CodeOf(err))
}
