package workspace

import (
	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/internal/ops"
	"github.com/nereid-dev/nereid/internal/render"
	"github.com/nereid-dev/nereid/pkg/schema"
)

// WalkthroughInfo is the listing row for one walkthrough.
type WalkthroughInfo struct {
	WalkthroughID string `json:"walkthrough_id"`
	Title         string `json:"title"`
	Rev           uint64 `json:"rev"`
	Nodes         int    `json:"nodes"`
	Active        bool   `json:"active"`
}

// ListWalkthroughs returns all walkthroughs in canonical id order.
func (w *Workspace) ListWalkthroughs() []WalkthroughInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]WalkthroughInfo, 0, len(w.session.Walkthroughs))
	for _, id := range w.session.SortedWalkthroughIDs() {
		wt := w.session.Walkthroughs[id]
		out = append(out, WalkthroughInfo{
			WalkthroughID: string(wt.ID),
			Title:         wt.Title,
			Rev:           wt.Rev,
			Nodes:         len(wt.Nodes),
			Active:        w.session.ActiveWalkthroughID == wt.ID,
		})
	}
	return out
}

// CreateWalkthrough installs an empty walkthrough and persists.
func (w *Workspace) CreateWalkthrough(id model.WalkthroughID, title string, makeActive bool) (WalkthroughInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if id == "" {
		id = model.NewWalkthroughID()
	}
	if err := model.ValidateID(string(id)); err != nil {
		return WalkthroughInfo{}, err
	}
	if _, exists := w.session.Walkthroughs[id]; exists {
		return WalkthroughInfo{}, schema.NewErrorf(schema.ErrCodeDuplicateID, "walkthrough %s already exists", id)
	}
	wt := model.NewWalkthrough(id, title)
	w.session.Walkthroughs[id] = wt
	prevActive := w.session.ActiveWalkthroughID
	if makeActive {
		w.session.ActiveWalkthroughID = id
	}
	if err := w.persist(); err != nil {
		delete(w.session.Walkthroughs, id)
		w.session.ActiveWalkthroughID = prevActive
		return WalkthroughInfo{}, err
	}
	return WalkthroughInfo{WalkthroughID: string(id), Title: title, Active: makeActive}, nil
}

// OpenWalkthrough makes a walkthrough active and persists.
func (w *Workspace) OpenWalkthrough(id model.WalkthroughID) (WalkthroughInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	wt, err := w.session.Walkthrough(id)
	if err != nil {
		return WalkthroughInfo{}, err
	}
	prev := w.session.ActiveWalkthroughID
	w.session.ActiveWalkthroughID = id
	if err := w.persist(); err != nil {
		w.session.ActiveWalkthroughID = prev
		return WalkthroughInfo{}, err
	}
	return WalkthroughInfo{WalkthroughID: string(wt.ID), Title: wt.Title, Rev: wt.Rev, Nodes: len(wt.Nodes), Active: true}, nil
}

// DeleteWalkthrough removes a walkthrough (its file is garbage-collected by
// the save) and persists.
func (w *Workspace) DeleteWalkthrough(id model.WalkthroughID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	wt, err := w.session.Walkthrough(id)
	if err != nil {
		return err
	}
	prevActive := w.session.ActiveWalkthroughID
	delete(w.session.Walkthroughs, id)
	if w.session.ActiveWalkthroughID == id {
		w.session.ActiveWalkthroughID = ""
	}
	if err := w.persist(); err != nil {
		w.session.Walkthroughs[id] = wt
		w.session.ActiveWalkthroughID = prevActive
		return err
	}
	w.engine.DropWalkthrough(id)
	return nil
}

// ReadWalkthrough returns the full walkthrough content.
func (w *Workspace) ReadWalkthrough(id model.WalkthroughID) (map[string]any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	wt, err := w.session.Walkthrough(id)
	if err != nil {
		return nil, err
	}
	nodes := []map[string]any{}
	for _, n := range wt.SortedNodes() {
		refs := make([]string, 0, len(n.Refs))
		for _, r := range n.Refs {
			refs = append(refs, r.String())
		}
		nodes = append(nodes, map[string]any{
			"id":      string(n.ID),
			"title":   n.Title,
			"body_md": n.BodyMD,
			"refs":    refs,
			"tags":    n.Tags,
			"status":  n.Status,
		})
	}
	edges := []map[string]any{}
	for _, e := range wt.Edges {
		edges = append(edges, map[string]any{
			"from": string(e.From), "to": string(e.To), "kind": e.Kind, "label": e.Label,
		})
	}
	return map[string]any{
		"walkthrough_id": string(wt.ID),
		"title":          wt.Title,
		"rev":            wt.Rev,
		"nodes":          nodes,
		"edges":          edges,
	}, nil
}

// RenderWalkthrough renders the walkthrough text.
func (w *Workspace) RenderWalkthrough(id model.WalkthroughID) (*render.Rendered, uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	wt, err := w.session.Walkthrough(id)
	if err != nil {
		return nil, 0, err
	}
	rendered, err := render.Walkthrough(wt)
	if err != nil {
		return nil, 0, err
	}
	return rendered, wt.Rev, nil
}

// ApplyWalkthroughOps mirrors ApplyOps for walkthroughs, persisting in
// persistent mode.
func (w *Workspace) ApplyWalkthroughOps(id model.WalkthroughID, baseRev uint64, batch []ops.WtOp) (uint64, ops.Delta, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	wt, err := w.session.Walkthrough(id)
	if err != nil {
		return 0, ops.Delta{}, err
	}
	res, err := ops.PrepareWalkthrough(wt, baseRev, batch)
	if err != nil {
		return 0, ops.Delta{}, err
	}

	oldTitle, oldNodes, oldEdges, oldRev := wt.Title, wt.Nodes, wt.Edges, wt.Rev
	wt.Title = res.Clone.Title
	wt.Nodes = res.Clone.Nodes
	wt.Edges = res.Clone.Edges
	if err := wt.RestoreRev(res.NewRev); err != nil {
		wt.Title, wt.Nodes, wt.Edges = oldTitle, oldNodes, oldEdges
		return 0, ops.Delta{}, err
	}
	if err := w.persist(); err != nil {
		wt.Title, wt.Nodes, wt.Edges = oldTitle, oldNodes, oldEdges
		if rerr := wt.RestoreRev(oldRev); rerr != nil {
			w.logger.Error("revision rollback failed", "walkthrough_id", id, "error", rerr)
		}
		return 0, ops.Delta{}, err
	}
	w.engine.WalkthroughHistory(id).Append(ops.HistoryEntry{FromRev: baseRev, ToRev: res.NewRev, Delta: res.Delta})
	return res.NewRev, res.Delta, nil
}

// ProposeWalkthroughOps is the non-committing variant.
func (w *Workspace) ProposeWalkthroughOps(id model.WalkthroughID, baseRev uint64, batch []ops.WtOp) (uint64, ops.Delta, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	wt, err := w.session.Walkthrough(id)
	if err != nil {
		return 0, ops.Delta{}, err
	}
	res, err := ops.PrepareWalkthrough(wt, baseRev, batch)
	if err != nil {
		return 0, ops.Delta{}, err
	}
	return res.NewRev, res.Delta, nil
}

// WalkthroughDiff returns the collapsed walkthrough delta since a revision.
func (w *Workspace) WalkthroughDiff(id model.WalkthroughID, sinceRev uint64) (uint64, ops.Delta, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	wt, err := w.session.Walkthrough(id)
	if err != nil {
		return 0, ops.Delta{}, err
	}
	delta, err := w.engine.WalkthroughHistory(id).Since(sinceRev, wt.Rev)
	if err != nil {
		return wt.Rev, ops.Delta{}, err
	}
	return wt.Rev, delta, nil
}
