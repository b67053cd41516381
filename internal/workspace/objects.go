package workspace

import (
	"sort"
	"strings"

	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/pkg/schema"
)

// ReadObject resolves a reference and returns the object's fields.
func (w *Workspace) ReadObject(refStr string) (map[string]any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ref, err := model.ParseObjectRef(refStr)
	if err != nil {
		return nil, err
	}
	d, err := w.session.Diagram(ref.Diagram)
	if err != nil {
		return nil, err
	}
	obj := map[string]any{"ref": refStr, "category": ref.Category, "diagram_id": string(ref.Diagram)}
	switch ref.Category {
	case model.CategorySeqParticipant:
		p := d.Seq.Participant(ref.Object)
		if p == nil {
			break
		}
		obj["id"] = string(p.ID)
		obj["ident"] = p.MermaidIdent
		if p.DisplayLabel != "" {
			obj["label"] = p.DisplayLabel
		}
		if p.Role != "" {
			obj["role"] = p.Role
		}
		if p.Note != "" {
			obj["note"] = p.Note
		}
		return obj, nil
	case model.CategorySeqMessage:
		m := d.Seq.Message(ref.Object)
		if m == nil {
			break
		}
		obj["id"] = string(m.ID)
		obj["from"] = string(m.From)
		obj["to"] = string(m.To)
		obj["kind"] = string(m.Kind)
		obj["text"] = m.Text
		obj["order_key"] = string(m.OrderKey)
		return obj, nil
	case model.CategorySeqBlock:
		b := d.Seq.Block(ref.Object)
		if b == nil {
			break
		}
		obj["id"] = string(b.ID)
		obj["kind"] = string(b.Kind)
		obj["header"] = b.Header
		sections := make([]map[string]any, 0, len(b.Sections))
		for _, s := range b.Sections {
			sections = append(sections, map[string]any{
				"id":          string(s.ID),
				"kind":        string(s.Kind),
				"header":      s.Header,
				"message_ids": objectIDStrings(s.Messages),
			})
		}
		obj["sections"] = sections
		return obj, nil
	case model.CategorySeqSection:
		s := d.Seq.Section(ref.Object)
		if s == nil {
			break
		}
		obj["id"] = string(s.ID)
		obj["kind"] = string(s.Kind)
		obj["header"] = s.Header
		obj["message_ids"] = objectIDStrings(s.Messages)
		return obj, nil
	case model.CategoryFlowNode:
		n := d.Flow.Node(ref.Object)
		if n == nil {
			break
		}
		obj["id"] = string(n.ID)
		obj["mermaid_id"] = n.MermaidID
		obj["label"] = n.Label
		obj["shape"] = string(n.Shape)
		if n.Note != "" {
			obj["note"] = n.Note
		}
		return obj, nil
	case model.CategoryFlowEdge:
		e := d.Flow.Edge(ref.Object)
		if e == nil {
			break
		}
		obj["id"] = string(e.ID)
		obj["from"] = string(e.From)
		obj["to"] = string(e.To)
		if e.Label != "" {
			obj["label"] = e.Label
		}
		if e.Style != "" {
			obj["style"] = e.Style
		}
		return obj, nil
	}
	return nil, schema.NewErrorf(schema.ErrCodeNotFound, "object %s not found", refStr)
}

// GetAST returns the whole AST of a diagram as a JSON-shaped document.
func (w *Workspace) GetAST(id model.DiagramID) (map[string]any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, err := w.session.Diagram(id)
	if err != nil {
		return nil, err
	}
	doc := map[string]any{
		"diagram_id": string(d.ID),
		"name":       d.Name,
		"kind":       string(d.Kind),
		"rev":        d.Rev,
	}
	switch d.Kind {
	case model.KindSequence:
		participants := []map[string]any{}
		for _, p := range d.Seq.SortedParticipants() {
			participants = append(participants, map[string]any{
				"id": string(p.ID), "ident": p.MermaidIdent,
				"label": p.DisplayLabel, "role": p.Role, "note": p.Note,
			})
		}
		messages := []map[string]any{}
		for _, m := range d.Seq.SortedMessages() {
			messages = append(messages, map[string]any{
				"id": string(m.ID), "from": string(m.From), "to": string(m.To),
				"kind": string(m.Kind), "text": m.Text, "order_key": string(m.OrderKey),
			})
		}
		doc["participants"] = participants
		doc["messages"] = messages
		doc["blocks"] = blockDocs(d.Seq.Blocks)
	case model.KindFlowchart:
		nodes := []map[string]any{}
		for _, n := range d.Flow.SortedNodes() {
			nodes = append(nodes, map[string]any{
				"id": string(n.ID), "mermaid_id": n.MermaidID,
				"label": n.Label, "shape": string(n.Shape), "note": n.Note,
			})
		}
		edges := []map[string]any{}
		for _, e := range d.Flow.SortedEdges() {
			edges = append(edges, map[string]any{
				"id": string(e.ID), "from": string(e.From), "to": string(e.To),
				"label": e.Label, "style": e.Style,
			})
		}
		doc["direction"] = string(d.Flow.Direction)
		doc["nodes"] = nodes
		doc["edges"] = edges
	}
	return doc, nil
}

func blockDocs(blocks []*model.Block) []map[string]any {
	out := []map[string]any{}
	for _, b := range blocks {
		sections := []map[string]any{}
		for _, s := range b.Sections {
			sections = append(sections, map[string]any{
				"id":          string(s.ID),
				"kind":        string(s.Kind),
				"header":      s.Header,
				"message_ids": objectIDStrings(s.Messages),
				"blocks":      blockDocs(s.Children),
			})
		}
		out = append(out, map[string]any{
			"id": string(b.ID), "kind": string(b.Kind), "header": b.Header, "sections": sections,
		})
	}
	return out
}

func objectIDStrings(ids []model.ObjectID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// XRefView is the wire form of one cross-reference.
type XRefView struct {
	XRefID string `json:"xref_id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Kind   string `json:"kind"`
	Label  string `json:"label,omitempty"`
	Status string `json:"status"`
}

// XRefFilter narrows an xref listing.
type XRefFilter struct {
	Status        string
	Kind          string
	FromRef       string
	ToRef         string
	InvolvesRef   string
	LabelContains string
	Limit         int
}

// ListXRefs returns xrefs matching the filter, in session order.
func (w *Workspace) ListXRefs(f XRefFilter) []XRefView {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := []XRefView{}
	for _, x := range w.session.XRefs {
		if f.Status != "" && string(x.Status) != f.Status {
			continue
		}
		if f.Kind != "" && x.Kind != f.Kind {
			continue
		}
		if f.FromRef != "" && x.From.String() != f.FromRef {
			continue
		}
		if f.ToRef != "" && x.To.String() != f.ToRef {
			continue
		}
		if f.InvolvesRef != "" && x.From.String() != f.InvolvesRef && x.To.String() != f.InvolvesRef {
			continue
		}
		if f.LabelContains != "" && !strings.Contains(strings.ToLower(x.Label), strings.ToLower(f.LabelContains)) {
			continue
		}
		out = append(out, xrefView(x))
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}

func xrefView(x *model.XRef) XRefView {
	return XRefView{
		XRefID: string(x.ID),
		From:   x.From.String(),
		To:     x.To.String(),
		Kind:   x.Kind,
		Label:  x.Label,
		Status: string(x.Status),
	}
}

// XRefNeighbors returns the refs linked to objectRef by xrefs, with the
// linking xref, in direction "out" (from objectRef), "in", or "both".
func (w *Workspace) XRefNeighbors(objectRef, direction string) ([]map[string]any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := model.ParseObjectRef(objectRef); err != nil {
		return nil, err
	}
	out := []map[string]any{}
	for _, x := range w.session.XRefs {
		switch direction {
		case "out", "":
			if x.From.String() == objectRef {
				out = append(out, map[string]any{"ref": x.To.String(), "xref": xrefView(x), "direction": "out"})
			}
			if direction == "" && x.To.String() == objectRef {
				out = append(out, map[string]any{"ref": x.From.String(), "xref": xrefView(x), "direction": "in"})
			}
		case "in":
			if x.To.String() == objectRef {
				out = append(out, map[string]any{"ref": x.From.String(), "xref": xrefView(x), "direction": "in"})
			}
		case "both":
			if x.From.String() == objectRef {
				out = append(out, map[string]any{"ref": x.To.String(), "xref": xrefView(x), "direction": "out"})
			}
			if x.To.String() == objectRef {
				out = append(out, map[string]any{"ref": x.From.String(), "xref": xrefView(x), "direction": "in"})
			}
		default:
			return nil, schema.NewErrorf(schema.ErrCodeInvalidParams, "unknown direction %q", direction)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["ref"].(string) < out[j]["ref"].(string)
	})
	return out, nil
}

// AddXRef validates endpoints as parseable refs, stores the xref with a
// computed status, and persists.
func (w *Workspace) AddXRef(id model.XRefID, fromRef, toRef, kind, label string) (XRefView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	from, err := model.ParseObjectRef(fromRef)
	if err != nil {
		return XRefView{}, err
	}
	to, err := model.ParseObjectRef(toRef)
	if err != nil {
		return XRefView{}, err
	}
	if id == "" {
		id = model.NewXRefID()
	}
	x := &model.XRef{ID: id, From: from, To: to, Kind: kind, Label: label}
	if err := w.session.AddXRef(x); err != nil {
		return XRefView{}, err
	}
	if err := w.persist(); err != nil {
		_ = w.session.RemoveXRef(id)
		return XRefView{}, err
	}
	return xrefView(x), nil
}

// RemoveXRef deletes an xref and persists.
func (w *Workspace) RemoveXRef(id model.XRefID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	x, err := w.session.XRef(id)
	if err != nil {
		return err
	}
	if err := w.session.RemoveXRef(id); err != nil {
		return err
	}
	if err := w.persist(); err != nil {
		_ = w.session.AddXRef(x)
		return err
	}
	return nil
}
