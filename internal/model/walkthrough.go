package model

import (
	"sort"

	"github.com/nereid-dev/nereid/pkg/schema"
)

// WnNode is one step of a walkthrough narrative, pointing at underlying
// diagram objects through Refs.
type WnNode struct {
	ID     WnID
	Title  string
	BodyMD string
	Refs   []ObjectRef
	Tags   []string
	Status string
}

// WnEdge is a directed link between walkthrough nodes.
type WnEdge struct {
	From  WnID
	To    WnID
	Kind  string
	Label string
}

// Walkthrough is a shareable narrative artifact with its own revision
// counter and op history. Tree or DAG shaped; cycles are tolerated.
type Walkthrough struct {
	ID    WalkthroughID
	Title string
	Rev   uint64
	Nodes map[WnID]*WnNode
	Edges []WnEdge
	Alloc *IDAllocator
}

// NewWalkthrough creates an empty walkthrough at rev 0.
func NewWalkthrough(id WalkthroughID, title string) *Walkthrough {
	return &Walkthrough{ID: id, Title: title, Nodes: make(map[WnID]*WnNode), Alloc: NewIDAllocator()}
}

// Node returns the node with the given id, or nil.
func (w *Walkthrough) Node(id WnID) *WnNode {
	return w.Nodes[id]
}

// SortedNodes returns nodes ordered by id.
func (w *Walkthrough) SortedNodes() []*WnNode {
	out := make([]*WnNode, 0, len(w.Nodes))
	for _, n := range w.Nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clone deep-copies the walkthrough content. The allocator is shared so ids
// minted against a discarded clone are still never reused.
func (w *Walkthrough) Clone() *Walkthrough {
	out := &Walkthrough{
		ID:    w.ID,
		Title: w.Title,
		Rev:   w.Rev,
		Nodes: make(map[WnID]*WnNode, len(w.Nodes)),
		Edges: append([]WnEdge(nil), w.Edges...),
		Alloc: w.Alloc,
	}
	for id, n := range w.Nodes {
		cn := *n
		cn.Refs = append([]ObjectRef(nil), n.Refs...)
		cn.Tags = append([]string(nil), n.Tags...)
		out.Nodes[id] = &cn
	}
	return out
}

// CommitRev increments the revision by exactly one.
func (w *Walkthrough) CommitRev() error {
	if w.Rev >= MaxRestorableRev {
		return schema.NewErrorf(schema.ErrCodeRevOverflow, "walkthrough %s revision overflow", w.ID)
	}
	w.Rev++
	return nil
}

// RestoreRev sets the revision during load, rejecting pathological values.
func (w *Walkthrough) RestoreRev(rev uint64) error {
	if rev > MaxRestorableRev {
		return schema.NewErrorf(schema.ErrCodeRevOverflow, "walkthrough %s stored revision %d exceeds cap", w.ID, rev)
	}
	w.Rev = rev
	return nil
}

// ObserveIDs raises the allocator floor over every node id.
func (w *Walkthrough) ObserveIDs() {
	if w.Alloc == nil {
		w.Alloc = NewIDAllocator()
	}
	for id := range w.Nodes {
		w.Alloc.Observe(ObjectID(id))
	}
}

// Validate checks that every edge endpoint resolves to a node.
func (w *Walkthrough) Validate() error {
	for _, e := range w.Edges {
		if w.Nodes[e.From] == nil {
			return schema.NewErrorf(schema.ErrCodeInvalidEndpoint, "walkthrough edge references unknown node %s", e.From)
		}
		if w.Nodes[e.To] == nil {
			return schema.NewErrorf(schema.ErrCodeInvalidEndpoint, "walkthrough edge references unknown node %s", e.To)
		}
	}
	return nil
}
