package ops

import (
	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/pkg/schema"
)

// Result is the outcome of preparing an op batch against a clone. Exactly one
// of Seq/Flow is non-nil for diagram batches. The clone is not installed
// until Commit.
type Result struct {
	NewRev uint64
	Delta  Delta
	Seq    *model.SeqAST
	Flow   *model.FlowAST
}

// Engine tracks bounded delta histories per diagram and per walkthrough and
// drives the prepare/commit cycle.
type Engine struct {
	histories   map[model.DiagramID]*History
	wtHistories map[model.WalkthroughID]*History
	capacity    int
}

// NewEngine creates an engine with the given history capacity per object
// (DefaultHistoryCapacity when zero).
func NewEngine(capacity int) *Engine {
	return &Engine{
		histories:   make(map[model.DiagramID]*History),
		wtHistories: make(map[model.WalkthroughID]*History),
		capacity:    capacity,
	}
}

// DiagramHistory returns (creating if needed) the history for a diagram.
func (e *Engine) DiagramHistory(id model.DiagramID) *History {
	h, ok := e.histories[id]
	if !ok {
		h = NewHistory(e.capacity)
		e.histories[id] = h
	}
	return h
}

// WalkthroughHistory returns (creating if needed) the history for a walkthrough.
func (e *Engine) WalkthroughHistory(id model.WalkthroughID) *History {
	h, ok := e.wtHistories[id]
	if !ok {
		h = NewHistory(e.capacity)
		e.wtHistories[id] = h
	}
	return h
}

// DropDiagram discards the history of a deleted diagram.
func (e *Engine) DropDiagram(id model.DiagramID) {
	delete(e.histories, id)
}

// DropWalkthrough discards the history of a deleted walkthrough.
func (e *Engine) DropWalkthrough(id model.WalkthroughID) {
	delete(e.wtHistories, id)
}

// Prepare validates and applies the batch to a clone of the diagram's AST
// without committing. All-or-nothing: the first op failure discards the
// clone. A zero-op batch is a valid commit that only bumps the revision.
func Prepare(d *model.Diagram, baseRev uint64, batch []Op) (*Result, error) {
	if baseRev != d.Rev {
		return nil, schema.
			NewErrorf(schema.ErrCodeConflict, "base rev %d does not match current rev %d", baseRev, d.Rev).
			WithDetail("current_rev", d.Rev)
	}
	// Raise the allocator floor past ids already present so minted ids never
	// collide with existing objects.
	d.ObserveIDs()

	delta := newDeltaBuilder()
	res := &Result{NewRev: d.Rev + 1}
	switch d.Kind {
	case model.KindSequence:
		clone := d.Seq.Clone()
		for _, op := range batch {
			if err := applySeqOp(d, clone, op, delta); err != nil {
				return nil, err
			}
		}
		if err := clone.Validate(); err != nil {
			return nil, err
		}
		res.Seq = clone
	case model.KindFlowchart:
		clone := d.Flow.Clone()
		for _, op := range batch {
			if err := applyFlowOp(d, clone, op, delta); err != nil {
				return nil, err
			}
		}
		if err := clone.Validate(); err != nil {
			return nil, err
		}
		res.Flow = clone
	default:
		return nil, schema.NewErrorf(schema.ErrCodeKindMismatch, "diagram %s has unknown kind %q", d.ID, d.Kind)
	}
	res.Delta = delta.build()
	return res, nil
}

// Commit installs a prepared result: O(1) kind-checked AST swap, revision
// bump by exactly one, history append.
func (e *Engine) Commit(d *model.Diagram, baseRev uint64, res *Result) error {
	if baseRev != d.Rev {
		return schema.
			NewErrorf(schema.ErrCodeConflict, "base rev %d does not match current rev %d", baseRev, d.Rev).
			WithDetail("current_rev", d.Rev)
	}
	switch {
	case res.Seq != nil:
		if err := d.ReplaceSeqAST(res.Seq); err != nil {
			return err
		}
	case res.Flow != nil:
		if err := d.ReplaceFlowAST(res.Flow); err != nil {
			return err
		}
	default:
		return schema.NewError(schema.ErrCodeInternal, "prepared result carries no AST")
	}
	if err := d.CommitRev(); err != nil {
		return err
	}
	e.DiagramHistory(d.ID).Append(HistoryEntry{FromRev: baseRev, ToRev: d.Rev, Delta: res.Delta})
	return nil
}

// --- sequence ops ---

func applySeqOp(d *model.Diagram, ast *model.SeqAST, op Op, delta *deltaBuilder) error {
	ref := func(category string, id model.ObjectID) string {
		return model.NewObjectRef(d.ID, category, id).String()
	}
	switch op.Type {
	case OpAddParticipant:
		if op.Ident == "" {
			return schema.NewError(schema.ErrCodeInvalidParams, "add_participant requires ident")
		}
		if ast.ParticipantByIdent(op.Ident) != nil {
			return schema.NewErrorf(schema.ErrCodeDuplicateID, "participant ident %q already in use", op.Ident)
		}
		id := op.ID
		if id == "" {
			id = model.ObjectID(model.PrefixParticipant + ":" + op.Ident)
		}
		if ast.Participant(id) != nil {
			return schema.NewErrorf(schema.ErrCodeDuplicateID, "participant %s already exists", id)
		}
		p := &model.Participant{ID: id, MermaidIdent: op.Ident}
		if op.Label != nil {
			p.DisplayLabel = *op.Label
		}
		if op.Role != nil {
			p.Role = *op.Role
		}
		if op.Note != nil {
			p.Note = *op.Note
		}
		if err := model.ValidateText(p.DisplayLabel); err != nil {
			return err
		}
		ast.Participants = append(ast.Participants, p)
		delta.add(ref(model.CategorySeqParticipant, id))

	case OpUpdateParticipant:
		p := ast.Participant(op.ID)
		if p == nil {
			return schema.NewErrorf(schema.ErrCodeNotFound, "unknown participant %s", op.ID)
		}
		if op.Ident != "" && op.Ident != p.MermaidIdent {
			if ast.ParticipantByIdent(op.Ident) != nil {
				return schema.NewErrorf(schema.ErrCodeDuplicateID, "participant ident %q already in use", op.Ident)
			}
			p.MermaidIdent = op.Ident
		}
		if op.Label != nil {
			if err := model.ValidateText(*op.Label); err != nil {
				return err
			}
			p.DisplayLabel = *op.Label
		}
		if op.Role != nil {
			p.Role = *op.Role
		}
		if op.Note != nil {
			p.Note = *op.Note
		}
		delta.update(ref(model.CategorySeqParticipant, op.ID))

	case OpSetParticipantNote:
		p := ast.Participant(op.ID)
		if p == nil {
			return schema.NewErrorf(schema.ErrCodeNotFound, "unknown participant %s", op.ID)
		}
		if op.Note != nil {
			p.Note = *op.Note
		} else {
			p.Note = ""
		}
		delta.update(ref(model.CategorySeqParticipant, op.ID))

	case OpRemoveParticipant:
		p := ast.Participant(op.ID)
		if p == nil {
			return schema.NewErrorf(schema.ErrCodeNotFound, "unknown participant %s", op.ID)
		}
		var cascade []model.ObjectID
		for _, m := range ast.Messages {
			if m.From == op.ID || m.To == op.ID {
				cascade = append(cascade, m.ID)
			}
		}
		for _, mid := range cascade {
			removeSeqMessage(d, ast, mid, delta)
		}
		for i, cand := range ast.Participants {
			if cand.ID == op.ID {
				ast.Participants = append(ast.Participants[:i], ast.Participants[i+1:]...)
				break
			}
		}
		delta.remove(ref(model.CategorySeqParticipant, op.ID))

	case OpAddMessage:
		id := op.ID
		if id == "" {
			id = d.Alloc.Mint(model.PrefixMessage)
		}
		if ast.Message(id) != nil {
			return schema.NewErrorf(schema.ErrCodeDuplicateID, "message %s already exists", id)
		}
		if ast.Participant(op.From) == nil {
			return schema.NewErrorf(schema.ErrCodeInvalidEndpoint, "unknown participant %s", op.From)
		}
		if ast.Participant(op.To) == nil {
			return schema.NewErrorf(schema.ErrCodeInvalidEndpoint, "unknown participant %s", op.To)
		}
		text := ""
		if op.Text != nil {
			text = *op.Text
		}
		if err := model.ValidateText(text); err != nil {
			return err
		}
		key := op.OrderKey
		if key == "" {
			last := model.OrderKey("")
			for _, m := range ast.SortedMessages() {
				last = m.OrderKey
			}
			var err error
			key, err = model.OrderKeyBetween(last, "")
			if err != nil {
				return err
			}
		} else if !key.Valid() {
			return schema.NewErrorf(schema.ErrCodeInvalidParams, "invalid order key %q", key)
		}
		ast.Messages = append(ast.Messages, &model.Message{
			ID: id, From: op.From, To: op.To,
			Kind: model.MessageKind(op.Kind), Text: text, OrderKey: key,
		})
		delta.add(ref(model.CategorySeqMessage, id))

	case OpUpdateMessage:
		m := ast.Message(op.ID)
		if m == nil {
			return schema.NewErrorf(schema.ErrCodeNotFound, "unknown message %s", op.ID)
		}
		if op.From != "" {
			if ast.Participant(op.From) == nil {
				return schema.NewErrorf(schema.ErrCodeInvalidEndpoint, "unknown participant %s", op.From)
			}
			m.From = op.From
		}
		if op.To != "" {
			if ast.Participant(op.To) == nil {
				return schema.NewErrorf(schema.ErrCodeInvalidEndpoint, "unknown participant %s", op.To)
			}
			m.To = op.To
		}
		if op.Kind != "" {
			m.Kind = model.MessageKind(op.Kind)
		}
		if op.Text != nil {
			if err := model.ValidateText(*op.Text); err != nil {
				return err
			}
			m.Text = *op.Text
		}
		if op.OrderKey != "" {
			if !op.OrderKey.Valid() {
				return schema.NewErrorf(schema.ErrCodeInvalidParams, "invalid order key %q", op.OrderKey)
			}
			m.OrderKey = op.OrderKey
		}
		delta.update(ref(model.CategorySeqMessage, op.ID))

	case OpRemoveMessage:
		if ast.Message(op.ID) == nil {
			return schema.NewErrorf(schema.ErrCodeNotFound, "unknown message %s", op.ID)
		}
		removeSeqMessage(d, ast, op.ID, delta)

	case OpAddBlock:
		id := op.ID
		if id == "" {
			id = d.Alloc.Mint(model.PrefixBlock)
		}
		if ast.Block(id) != nil {
			return schema.NewErrorf(schema.ErrCodeDuplicateID, "block %s already exists", id)
		}
		header := ""
		if op.Header != nil {
			header = *op.Header
		}
		block := &model.Block{ID: id, Kind: model.BlockKind(op.Kind), Header: header}
		if len(op.Sections) == 0 {
			return schema.NewError(schema.ErrCodeInvalidParams, "add_block requires at least one section")
		}
		for _, spec := range op.Sections {
			sid := spec.ID
			if sid == "" {
				sid = d.Alloc.Mint(model.PrefixSection)
			}
			for _, mid := range spec.Messages {
				if ast.Message(mid) == nil {
					return schema.NewErrorf(schema.ErrCodeInvalidEndpoint, "unknown message %s", mid)
				}
			}
			kind := model.SectionKind(spec.Kind)
			if kind == "" {
				kind = model.SectionMain
			}
			block.Sections = append(block.Sections, &model.Section{
				ID: sid, Kind: kind, Header: spec.Header,
				Messages: append([]model.ObjectID(nil), spec.Messages...),
			})
			delta.add(ref(model.CategorySeqSection, sid))
		}
		ast.Blocks = append(ast.Blocks, block)
		delta.add(ref(model.CategorySeqBlock, id))

	case OpUpdateBlock:
		b := ast.Block(op.ID)
		if b == nil {
			return schema.NewErrorf(schema.ErrCodeNotFound, "unknown block %s", op.ID)
		}
		if op.Kind != "" {
			b.Kind = model.BlockKind(op.Kind)
		}
		if op.Header != nil {
			b.Header = *op.Header
		}
		delta.update(ref(model.CategorySeqBlock, op.ID))

	case OpRemoveBlock:
		b := ast.Block(op.ID)
		if b == nil {
			return schema.NewErrorf(schema.ErrCodeNotFound, "unknown block %s", op.ID)
		}
		removeBlock(d, ast, op.ID, delta)

	default:
		return schema.NewErrorf(schema.ErrCodeInvalidParams, "unknown sequence op type %q", op.Type)
	}
	return nil
}

// removeSeqMessage deletes a message, scrubs it from block sections, and
// prunes sections and blocks left without content.
func removeSeqMessage(d *model.Diagram, ast *model.SeqAST, id model.ObjectID, delta *deltaBuilder) {
	for i, m := range ast.Messages {
		if m.ID == id {
			ast.Messages = append(ast.Messages[:i], ast.Messages[i+1:]...)
			delta.remove(model.NewObjectRef(d.ID, model.CategorySeqMessage, id).String())
			break
		}
	}
	ast.Blocks = pruneBlocks(d, ast.Blocks, id, delta)
}

// pruneBlocks scrubs the removed message id and drops sections and blocks
// that no longer carry any content.
func pruneBlocks(d *model.Diagram, blocks []*model.Block, removed model.ObjectID, delta *deltaBuilder) []*model.Block {
	out := blocks[:0]
	for _, b := range blocks {
		sections := b.Sections[:0]
		for _, s := range b.Sections {
			msgs := s.Messages[:0]
			for _, mid := range s.Messages {
				if mid != removed {
					msgs = append(msgs, mid)
				}
			}
			s.Messages = msgs
			s.Children = pruneBlocks(d, s.Children, removed, delta)
			if len(s.Messages) == 0 && len(s.Children) == 0 {
				delta.remove(model.NewObjectRef(d.ID, model.CategorySeqSection, s.ID).String())
				continue
			}
			sections = append(sections, s)
		}
		b.Sections = sections
		if len(b.Sections) == 0 {
			delta.remove(model.NewObjectRef(d.ID, model.CategorySeqBlock, b.ID).String())
			continue
		}
		out = append(out, b)
	}
	return out
}

// removeBlock deletes a block anywhere in the tree. Its messages survive;
// nested child blocks are removed with it.
func removeBlock(d *model.Diagram, ast *model.SeqAST, id model.ObjectID, delta *deltaBuilder) {
	var drop func(blocks []*model.Block) []*model.Block
	var record func(b *model.Block)
	record = func(b *model.Block) {
		delta.remove(model.NewObjectRef(d.ID, model.CategorySeqBlock, b.ID).String())
		for _, s := range b.Sections {
			delta.remove(model.NewObjectRef(d.ID, model.CategorySeqSection, s.ID).String())
			for _, child := range s.Children {
				record(child)
			}
		}
	}
	drop = func(blocks []*model.Block) []*model.Block {
		out := blocks[:0]
		for _, b := range blocks {
			if b.ID == id {
				record(b)
				continue
			}
			for _, s := range b.Sections {
				s.Children = drop(s.Children)
			}
			out = append(out, b)
		}
		return out
	}
	ast.Blocks = drop(ast.Blocks)
}

// --- flow ops ---

func applyFlowOp(d *model.Diagram, ast *model.FlowAST, op Op, delta *deltaBuilder) error {
	ref := func(category string, id model.ObjectID) string {
		return model.NewObjectRef(d.ID, category, id).String()
	}
	switch op.Type {
	case OpAddNode:
		if op.Ident == "" {
			return schema.NewError(schema.ErrCodeInvalidParams, "add_node requires a mermaid identifier")
		}
		ident := op.Ident
		if ast.NodeByMermaidID(ident) != nil {
			return schema.NewErrorf(schema.ErrCodeDuplicateID, "mermaid identifier %q already in use", ident)
		}
		id := op.ID
		if id == "" {
			id = model.ObjectID(model.PrefixNode + ":" + ident)
		}
		if ast.Node(id) != nil {
			return schema.NewErrorf(schema.ErrCodeDuplicateID, "node %s already exists", id)
		}
		label := ident
		if op.Label != nil {
			label = *op.Label
		}
		if err := model.ValidateText(label); err != nil {
			return err
		}
		shape := model.NodeShape(op.Shape)
		if shape == "" {
			shape = model.ShapeRect
		}
		node := &model.FlowNode{ID: id, MermaidID: ident, Label: label, Shape: shape}
		if op.Note != nil {
			node.Note = *op.Note
		}
		ast.Nodes = append(ast.Nodes, node)
		delta.add(ref(model.CategoryFlowNode, id))

	case OpUpdateNode:
		n := ast.Node(op.ID)
		if n == nil {
			return schema.NewErrorf(schema.ErrCodeNotFound, "unknown node %s", op.ID)
		}
		if op.Label != nil {
			if err := model.ValidateText(*op.Label); err != nil {
				return err
			}
			n.Label = *op.Label
		}
		if op.Shape != "" {
			n.Shape = model.NodeShape(op.Shape)
		}
		if op.Note != nil {
			n.Note = *op.Note
		}
		delta.update(ref(model.CategoryFlowNode, op.ID))

	case OpRenameNodeMermaidID:
		n := ast.Node(op.ID)
		if n == nil {
			return schema.NewErrorf(schema.ErrCodeNotFound, "unknown node %s", op.ID)
		}
		if op.NewIdent == "" {
			return schema.NewError(schema.ErrCodeInvalidParams, "rename_node_mermaid_id requires new_ident")
		}
		if other := ast.NodeByMermaidID(op.NewIdent); other != nil && other.ID != n.ID {
			return schema.NewErrorf(schema.ErrCodeDuplicateID, "mermaid identifier %q already in use", op.NewIdent)
		}
		n.MermaidID = op.NewIdent
		delta.update(ref(model.CategoryFlowNode, op.ID))

	case OpSetNodeNote:
		n := ast.Node(op.ID)
		if n == nil {
			return schema.NewErrorf(schema.ErrCodeNotFound, "unknown node %s", op.ID)
		}
		if op.Note != nil {
			n.Note = *op.Note
		} else {
			n.Note = ""
		}
		delta.update(ref(model.CategoryFlowNode, op.ID))

	case OpRemoveNode:
		if ast.Node(op.ID) == nil {
			return schema.NewErrorf(schema.ErrCodeNotFound, "unknown node %s", op.ID)
		}
		edges := ast.Edges[:0]
		for _, e := range ast.Edges {
			if e.From == op.ID || e.To == op.ID {
				delta.remove(ref(model.CategoryFlowEdge, e.ID))
				continue
			}
			edges = append(edges, e)
		}
		ast.Edges = edges
		for i, n := range ast.Nodes {
			if n.ID == op.ID {
				ast.Nodes = append(ast.Nodes[:i], ast.Nodes[i+1:]...)
				break
			}
		}
		delta.remove(ref(model.CategoryFlowNode, op.ID))

	case OpAddEdge:
		id := op.ID
		if id == "" {
			id = d.Alloc.Mint(model.PrefixEdge)
		}
		if ast.Edge(id) != nil {
			return schema.NewErrorf(schema.ErrCodeDuplicateID, "edge %s already exists", id)
		}
		if ast.Node(op.From) == nil {
			return schema.NewErrorf(schema.ErrCodeInvalidEndpoint, "unknown node %s", op.From)
		}
		if ast.Node(op.To) == nil {
			return schema.NewErrorf(schema.ErrCodeInvalidEndpoint, "unknown node %s", op.To)
		}
		edge := &model.FlowEdge{ID: id, From: op.From, To: op.To}
		if op.Label != nil {
			if err := model.ValidateText(*op.Label); err != nil {
				return err
			}
			edge.Label = *op.Label
		}
		if op.Style != nil {
			edge.Style = *op.Style
		}
		ast.Edges = append(ast.Edges, edge)
		delta.add(ref(model.CategoryFlowEdge, id))

	case OpUpdateEdge:
		e := ast.Edge(op.ID)
		if e == nil {
			return schema.NewErrorf(schema.ErrCodeNotFound, "unknown edge %s", op.ID)
		}
		if op.From != "" {
			if ast.Node(op.From) == nil {
				return schema.NewErrorf(schema.ErrCodeInvalidEndpoint, "unknown node %s", op.From)
			}
			e.From = op.From
		}
		if op.To != "" {
			if ast.Node(op.To) == nil {
				return schema.NewErrorf(schema.ErrCodeInvalidEndpoint, "unknown node %s", op.To)
			}
			e.To = op.To
		}
		if op.Label != nil {
			if err := model.ValidateText(*op.Label); err != nil {
				return err
			}
			e.Label = *op.Label
		}
		if op.Style != nil {
			e.Style = *op.Style
		}
		delta.update(ref(model.CategoryFlowEdge, op.ID))

	case OpRemoveEdge:
		for i, e := range ast.Edges {
			if e.ID == op.ID {
				ast.Edges = append(ast.Edges[:i], ast.Edges[i+1:]...)
				delta.remove(ref(model.CategoryFlowEdge, op.ID))
				return nil
			}
		}
		return schema.NewErrorf(schema.ErrCodeNotFound, "unknown edge %s", op.ID)

	default:
		return schema.NewErrorf(schema.ErrCodeInvalidParams, "unknown flow op type %q", op.Type)
	}
	return nil
}
