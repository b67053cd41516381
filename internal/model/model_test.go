package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoParticipantSeq(t *testing.T) *Diagram {
	t.Helper()
	d := NewSequenceDiagram("seq", "test")
	a := &Participant{ID: "p:a", MermaidIdent: "a"}
	b := &Participant{ID: "p:b", MermaidIdent: "b"}
	d.Seq.Participants = []*Participant{a, b}
	d.Seq.Messages = []*Message{
		{ID: "m:1", From: "p:a", To: "p:b", Kind: MessageSync, Text: "ping", OrderKey: "1"},
		{ID: "m:2", From: "p:b", To: "p:a", Kind: MessageReturn, Text: "pong", OrderKey: "2"},
	}
	return d
}

func TestSeqASTValidate(t *testing.T) {
	d := twoParticipantSeq(t)
	require.NoError(t, d.Seq.Validate())

	d.Seq.Messages = append(d.Seq.Messages, &Message{ID: "m:3", From: "p:missing", To: "p:b", Kind: MessageSync, OrderKey: "3"})
	assert.Error(t, d.Seq.Validate())
}

func TestSeqASTRejectsEmptySection(t *testing.T) {
	d := twoParticipantSeq(t)
	d.Seq.Blocks = []*Block{{
		ID:   "b:1",
		Kind: BlockAlt,
		Sections: []*Section{
			{ID: "s:1", Kind: SectionMain, Messages: []ObjectID{"m:1"}},
			{ID: "s:2", Kind: SectionElse},
		},
	}}
	assert.Error(t, d.Seq.Validate())
}

func TestSeqASTCloneIsDeep(t *testing.T) {
	d := twoParticipantSeq(t)
	d.Seq.Blocks = []*Block{{
		ID:   "b:1",
		Kind: BlockLoop,
		Sections: []*Section{
			{ID: "s:1", Kind: SectionMain, Messages: []ObjectID{"m:1", "m:2"}},
		},
	}}
	clone := d.Seq.Clone()
	clone.Participants[0].MermaidIdent = "changed"
	clone.Messages[0].Text = "changed"
	clone.Blocks[0].Sections[0].Messages[0] = "m:9"

	assert.Equal(t, "a", d.Seq.Participants[0].MermaidIdent)
	assert.Equal(t, "ping", d.Seq.Messages[0].Text)
	assert.Equal(t, ObjectID("m:1"), d.Seq.Blocks[0].Sections[0].Messages[0])
}

func TestSortedMessagesUsesOrderKeyThenID(t *testing.T) {
	d := twoParticipantSeq(t)
	d.Seq.Messages = append(d.Seq.Messages, &Message{ID: "m:0", From: "p:a", To: "p:b", Kind: MessageSync, Text: "tie", OrderKey: "1"})
	sorted := d.Seq.SortedMessages()
	require.Len(t, sorted, 3)
	assert.Equal(t, ObjectID("m:0"), sorted[0].ID)
	assert.Equal(t, ObjectID("m:1"), sorted[1].ID)
	assert.Equal(t, ObjectID("m:2"), sorted[2].ID)
}

func TestDiagramKindCheckedASTReplacement(t *testing.T) {
	seq := NewSequenceDiagram("s", "s")
	flow := NewFlowchartDiagram("f", "f")

	assert.NoError(t, seq.ReplaceSeqAST(NewSeqAST()))
	assert.Error(t, seq.ReplaceFlowAST(NewFlowAST()))
	assert.NoError(t, flow.ReplaceFlowAST(NewFlowAST()))
	assert.Error(t, flow.ReplaceSeqAST(NewSeqAST()))
}

func TestRestoreRevCapped(t *testing.T) {
	d := NewSequenceDiagram("s", "s")
	require.NoError(t, d.RestoreRev(41))
	assert.Equal(t, uint64(41), d.Rev)
	assert.Error(t, d.RestoreRev(MaxRestorableRev+1))
}

func TestIDAllocatorMonotonicAndObserved(t *testing.T) {
	a := NewIDAllocator()
	assert.Equal(t, ObjectID("m:1"), a.Mint(PrefixMessage))
	assert.Equal(t, ObjectID("m:2"), a.Mint(PrefixMessage))
	a.Observe("m:10")
	assert.Equal(t, ObjectID("m:11"), a.Mint(PrefixMessage))
	// Name-derived ids never move the numeric floor.
	a.Observe("p:alice")
	assert.Equal(t, ObjectID("p:1"), a.Mint(PrefixParticipant))
}

func TestSessionXRefStatusRecompute(t *testing.T) {
	s := NewSession("sess")
	flow := NewFlowchartDiagram("f", "f")
	flow.Flow.Nodes = []*FlowNode{{ID: "n:a", MermaidID: "a", Label: "A", Shape: ShapeRect}}
	require.NoError(t, s.AddDiagram(flow))

	x := &XRef{ID: "x:1", From: flow.Ref(CategoryFlowNode, "n:a"), To: NewObjectRef("gone", CategoryFlowNode, "n:z"), Kind: "nav"}
	require.NoError(t, s.AddXRef(x))
	assert.Equal(t, XRefDanglingTo, x.Status)

	flow.Flow.Nodes = nil
	s.RecomputeXRefStatuses()
	assert.Equal(t, XRefDanglingBoth, x.Status)
}

func TestDemoSessionResolves(t *testing.T) {
	s := DemoSession()
	require.NotEmpty(t, s.Diagrams)
	for _, x := range s.XRefs {
		assert.Equal(t, XRefOk, x.Status)
	}
	require.NotEmpty(t, s.Walkthroughs)
	for _, w := range s.Walkthroughs {
		require.NoError(t, w.Validate())
		for _, n := range w.Nodes {
			for _, ref := range n.Refs {
				assert.True(t, s.Resolve(ref), ref.String())
			}
		}
	}
}
