package ops

import (
	"fmt"

	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/pkg/schema"
)

// WtResult is a prepared walkthrough batch: the mutated clone plus its delta.
type WtResult struct {
	NewRev uint64
	Delta  Delta
	Clone  *model.Walkthrough
}

// Delta reference strings for walkthrough objects are scoped to the
// walkthrough: "node/<id>" and "edge/<from>-><to>".
func wtNodeRef(id model.WnID) string {
	return "node/" + string(id)
}

func wtEdgeRef(from, to model.WnID) string {
	return fmt.Sprintf("edge/%s->%s", from, to)
}

// PrepareWalkthrough validates and applies the batch to a clone without
// committing. Same all-or-nothing contract as diagram batches.
func PrepareWalkthrough(w *model.Walkthrough, baseRev uint64, batch []WtOp) (*WtResult, error) {
	if baseRev != w.Rev {
		return nil, schema.
			NewErrorf(schema.ErrCodeConflict, "base rev %d does not match current rev %d", baseRev, w.Rev).
			WithDetail("current_rev", w.Rev)
	}
	// Minted node ids skip past ids already present.
	w.ObserveIDs()
	clone := w.Clone()
	delta := newDeltaBuilder()
	for _, op := range batch {
		if err := applyWtOp(clone, op, delta); err != nil {
			return nil, err
		}
	}
	if err := clone.Validate(); err != nil {
		return nil, err
	}
	return &WtResult{NewRev: w.Rev + 1, Delta: delta.build(), Clone: clone}, nil
}

// CommitWalkthrough installs a prepared result onto the live walkthrough.
func (e *Engine) CommitWalkthrough(w *model.Walkthrough, baseRev uint64, res *WtResult) error {
	if baseRev != w.Rev {
		return schema.
			NewErrorf(schema.ErrCodeConflict, "base rev %d does not match current rev %d", baseRev, w.Rev).
			WithDetail("current_rev", w.Rev)
	}
	w.Title = res.Clone.Title
	w.Nodes = res.Clone.Nodes
	w.Edges = res.Clone.Edges
	if err := w.CommitRev(); err != nil {
		return err
	}
	e.WalkthroughHistory(w.ID).Append(HistoryEntry{FromRev: baseRev, ToRev: w.Rev, Delta: res.Delta})
	return nil
}

func applyWtOp(w *model.Walkthrough, op WtOp, delta *deltaBuilder) error {
	switch op.Type {
	case WtOpAddNode:
		id := op.ID
		if id == "" {
			id = model.WnID(w.Alloc.Mint(model.PrefixWnNode))
		}
		if w.Nodes[id] != nil {
			return schema.NewErrorf(schema.ErrCodeDuplicateID, "walkthrough node %s already exists", id)
		}
		node := &model.WnNode{ID: id}
		if op.Title != nil {
			node.Title = *op.Title
		}
		if op.BodyMD != nil {
			node.BodyMD = *op.BodyMD
		}
		if op.Status != nil {
			node.Status = *op.Status
		}
		node.Tags = append([]string(nil), op.Tags...)
		refs, err := parseWtRefs(op.Refs)
		if err != nil {
			return err
		}
		node.Refs = refs
		w.Nodes[id] = node
		delta.add(wtNodeRef(id))

	case WtOpUpdateNode:
		node := w.Nodes[op.ID]
		if node == nil {
			return schema.NewErrorf(schema.ErrCodeNotFound, "unknown walkthrough node %s", op.ID)
		}
		if op.Title != nil {
			node.Title = *op.Title
		}
		if op.BodyMD != nil {
			node.BodyMD = *op.BodyMD
		}
		if op.Status != nil {
			node.Status = *op.Status
		}
		if op.Tags != nil {
			node.Tags = append([]string(nil), op.Tags...)
		}
		if op.Refs != nil {
			refs, err := parseWtRefs(op.Refs)
			if err != nil {
				return err
			}
			node.Refs = refs
		}
		delta.update(wtNodeRef(op.ID))

	case WtOpRemoveNode:
		if w.Nodes[op.ID] == nil {
			return schema.NewErrorf(schema.ErrCodeNotFound, "unknown walkthrough node %s", op.ID)
		}
		edges := w.Edges[:0]
		for _, e := range w.Edges {
			if e.From == op.ID || e.To == op.ID {
				delta.remove(wtEdgeRef(e.From, e.To))
				continue
			}
			edges = append(edges, e)
		}
		w.Edges = edges
		delete(w.Nodes, op.ID)
		delta.remove(wtNodeRef(op.ID))

	case WtOpAddEdge:
		if w.Nodes[op.From] == nil {
			return schema.NewErrorf(schema.ErrCodeInvalidEndpoint, "unknown walkthrough node %s", op.From)
		}
		if w.Nodes[op.To] == nil {
			return schema.NewErrorf(schema.ErrCodeInvalidEndpoint, "unknown walkthrough node %s", op.To)
		}
		for _, e := range w.Edges {
			if e.From == op.From && e.To == op.To {
				return schema.NewErrorf(schema.ErrCodeDuplicateID, "walkthrough edge %s->%s already exists", op.From, op.To)
			}
		}
		w.Edges = append(w.Edges, model.WnEdge{From: op.From, To: op.To, Kind: op.Kind, Label: op.Label})
		delta.add(wtEdgeRef(op.From, op.To))

	case WtOpRemoveEdge:
		for i, e := range w.Edges {
			if e.From == op.From && e.To == op.To {
				w.Edges = append(w.Edges[:i], w.Edges[i+1:]...)
				delta.remove(wtEdgeRef(op.From, op.To))
				return nil
			}
		}
		return schema.NewErrorf(schema.ErrCodeNotFound, "unknown walkthrough edge %s->%s", op.From, op.To)

	case WtOpSetTitle:
		if op.Title == nil {
			return schema.NewError(schema.ErrCodeInvalidParams, "set_title requires title")
		}
		w.Title = *op.Title
		delta.update("title")

	default:
		return schema.NewErrorf(schema.ErrCodeInvalidParams, "unknown walkthrough op type %q", op.Type)
	}
	return nil
}

func parseWtRefs(raw []string) ([]model.ObjectRef, error) {
	refs := make([]model.ObjectRef, 0, len(raw))
	for _, s := range raw {
		ref, err := model.ParseObjectRef(s)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
