package model

import (
	"github.com/nereid-dev/nereid/pkg/schema"
)

// DiagramKind distinguishes the two supported diagram families.
type DiagramKind string

const (
	KindSequence  DiagramKind = "sequence"
	KindFlowchart DiagramKind = "flowchart"
)

// MaxRestorableRev caps revision values accepted during load so a corrupted
// meta file cannot push a diagram near overflow.
const MaxRestorableRev uint64 = 1 << 53

// Diagram is one named diagram with its AST and persistent revision counter.
// Exactly one of Seq/Flow is non-nil, matching Kind.
type Diagram struct {
	ID    DiagramID
	Name  string
	Kind  DiagramKind
	Seq   *SeqAST
	Flow  *FlowAST
	Rev   uint64
	Alloc *IDAllocator
}

// NewSequenceDiagram creates an empty sequence diagram at rev 0.
func NewSequenceDiagram(id DiagramID, name string) *Diagram {
	return &Diagram{ID: id, Name: name, Kind: KindSequence, Seq: NewSeqAST(), Alloc: NewIDAllocator()}
}

// NewFlowchartDiagram creates an empty flowchart diagram at rev 0.
func NewFlowchartDiagram(id DiagramID, name string) *Diagram {
	return &Diagram{ID: id, Name: name, Kind: KindFlowchart, Flow: NewFlowAST(), Alloc: NewIDAllocator()}
}

// ReplaceSeqAST swaps the sequence AST in O(1). Fails with KIND_MISMATCH on
// a flowchart diagram.
func (d *Diagram) ReplaceSeqAST(ast *SeqAST) error {
	if d.Kind != KindSequence {
		return schema.NewErrorf(schema.ErrCodeKindMismatch, "diagram %s is %s, not sequence", d.ID, d.Kind)
	}
	d.Seq = ast
	return nil
}

// ReplaceFlowAST swaps the flowchart AST in O(1). Fails with KIND_MISMATCH
// on a sequence diagram.
func (d *Diagram) ReplaceFlowAST(ast *FlowAST) error {
	if d.Kind != KindFlowchart {
		return schema.NewErrorf(schema.ErrCodeKindMismatch, "diagram %s is %s, not flowchart", d.ID, d.Kind)
	}
	d.Flow = ast
	return nil
}

// CommitRev increments the revision by exactly one.
func (d *Diagram) CommitRev() error {
	if d.Rev >= MaxRestorableRev {
		return schema.NewErrorf(schema.ErrCodeRevOverflow, "diagram %s revision overflow", d.ID)
	}
	d.Rev++
	return nil
}

// RestoreRev sets the revision during load, rejecting pathological values.
func (d *Diagram) RestoreRev(rev uint64) error {
	if rev > MaxRestorableRev {
		return schema.NewErrorf(schema.ErrCodeRevOverflow, "diagram %s stored revision %d exceeds cap", d.ID, rev)
	}
	d.Rev = rev
	return nil
}

// ObserveIDs raises the allocator floor over every object id currently in
// the AST. Called after load so fresh mints never collide.
func (d *Diagram) ObserveIDs() {
	if d.Alloc == nil {
		d.Alloc = NewIDAllocator()
	}
	switch d.Kind {
	case KindSequence:
		for _, p := range d.Seq.Participants {
			d.Alloc.Observe(p.ID)
		}
		for _, m := range d.Seq.Messages {
			d.Alloc.Observe(m.ID)
		}
		d.Seq.WalkBlocks(func(b *Block, _ int) {
			d.Alloc.Observe(b.ID)
			for _, s := range b.Sections {
				d.Alloc.Observe(s.ID)
			}
		})
	case KindFlowchart:
		for _, n := range d.Flow.Nodes {
			d.Alloc.Observe(n.ID)
		}
		for _, e := range d.Flow.Edges {
			d.Alloc.Observe(e.ID)
		}
	}
}

// Resolve reports whether the category/object pair addresses an existing
// object in this diagram.
func (d *Diagram) Resolve(category string, object ObjectID) bool {
	switch category {
	case CategorySeqParticipant:
		return d.Kind == KindSequence && d.Seq.Participant(object) != nil
	case CategorySeqMessage:
		return d.Kind == KindSequence && d.Seq.Message(object) != nil
	case CategorySeqBlock:
		return d.Kind == KindSequence && d.Seq.Block(object) != nil
	case CategorySeqSection:
		return d.Kind == KindSequence && d.Seq.Section(object) != nil
	case CategoryFlowNode:
		return d.Kind == KindFlowchart && d.Flow.Node(object) != nil
	case CategoryFlowEdge:
		return d.Kind == KindFlowchart && d.Flow.Edge(object) != nil
	default:
		return false
	}
}

// Ref builds an ObjectRef into this diagram.
func (d *Diagram) Ref(category string, object ObjectID) ObjectRef {
	return NewObjectRef(d.ID, category, object)
}
