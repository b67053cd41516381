// Package workspace owns the live Session behind a single mutual-exclusion
// boundary. All mutating calls run validate → clone → persist → commit; a
// persistence failure discards the clone and leaves the in-memory state
// untouched.
package workspace

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/nereid-dev/nereid/internal/collab"
	"github.com/nereid-dev/nereid/internal/mermaid"
	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/internal/ops"
	"github.com/nereid-dev/nereid/internal/query"
	"github.com/nereid-dev/nereid/internal/render"
	"github.com/nereid-dev/nereid/internal/store"
	"github.com/nereid-dev/nereid/pkg/schema"
)

// Workspace serializes all access to one Session plus its runtime
// collaboration state. Folder is nil for in-memory (demo) sessions.
type Workspace struct {
	mu      sync.Mutex
	session *model.Session
	collab  *collab.State
	engine  *ops.Engine
	folder  *store.SessionFolder
	logger  *slog.Logger
}

// New wraps a session. A nil folder keeps everything in memory.
func New(session *model.Session, folder *store.SessionFolder, logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{
		session: session,
		collab:  collab.New(),
		engine:  ops.NewEngine(0),
		folder:  folder,
		logger:  logger,
	}
}

// With runs fn under the workspace lock with direct access to the session
// and the runtime collaboration state. For callers (like the terminal
// shell) whose reads span multiple objects.
func (w *Workspace) With(fn func(s *model.Session, c *collab.State) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return fn(w.session, w.collab)
}

// persist saves the whole session when a folder is attached. Callers hold
// the lock and roll their in-memory change back on failure.
func (w *Workspace) persist() error {
	if w.folder == nil {
		return nil
	}
	if err := w.folder.Save(w.session); err != nil {
		return schema.NewError(schema.ErrCodeInternal, "session persistence failed").WithCause(err)
	}
	return nil
}

// Save persists the session. Saves are byte-deterministic and atomic, so the
// autosave loop can call this unconditionally; demo sessions are a no-op.
func (w *Workspace) Save() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.persist()
}

func notFoundRef(ref string) error {
	return schema.NewErrorf(schema.ErrCodeNotFound, "object %s not found", ref)
}

// DiagramInfo is the listing row for one diagram.
type DiagramInfo struct {
	DiagramID string `json:"diagram_id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Rev       uint64 `json:"rev"`
	Active    bool   `json:"active"`
}

// ListDiagrams returns all diagrams in canonical id order.
func (w *Workspace) ListDiagrams() []DiagramInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]DiagramInfo, 0, len(w.session.Diagrams))
	for _, id := range w.session.SortedDiagramIDs() {
		d := w.session.Diagrams[id]
		out = append(out, DiagramInfo{
			DiagramID: string(d.ID),
			Name:      d.Name,
			Kind:      string(d.Kind),
			Rev:       d.Rev,
			Active:    w.session.ActiveDiagramID == d.ID,
		})
	}
	return out
}

// CurrentDiagram returns the active diagram's info.
func (w *Workspace) CurrentDiagram() (DiagramInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session.ActiveDiagramID == "" {
		return DiagramInfo{}, schema.NewError(schema.ErrCodeNotFound, "no active diagram")
	}
	d, err := w.session.Diagram(w.session.ActiveDiagramID)
	if err != nil {
		return DiagramInfo{}, err
	}
	return DiagramInfo{DiagramID: string(d.ID), Name: d.Name, Kind: string(d.Kind), Rev: d.Rev, Active: true}, nil
}

// OpenDiagram makes a diagram active and persists the session manifest.
func (w *Workspace) OpenDiagram(id model.DiagramID) (DiagramInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, err := w.session.Diagram(id)
	if err != nil {
		return DiagramInfo{}, err
	}
	prev := w.session.ActiveDiagramID
	w.session.ActiveDiagramID = id
	if err := w.persist(); err != nil {
		w.session.ActiveDiagramID = prev
		return DiagramInfo{}, err
	}
	return DiagramInfo{DiagramID: string(d.ID), Name: d.Name, Kind: string(d.Kind), Rev: d.Rev, Active: true}, nil
}

// DeleteDiagram removes a diagram, its op history, and persists.
func (w *Workspace) DeleteDiagram(id model.DiagramID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, err := w.session.Diagram(id)
	if err != nil {
		return err
	}
	prevActive := w.session.ActiveDiagramID
	if err := w.session.RemoveDiagram(id); err != nil {
		return err
	}
	if err := w.persist(); err != nil {
		_ = w.session.AddDiagram(d)
		w.session.ActiveDiagramID = prevActive
		w.session.RecomputeXRefStatuses()
		return err
	}
	w.engine.DropDiagram(id)
	return nil
}

// CreateFromMermaid parses the text, preflights layout and render, installs
// the diagram, and persists. All-or-nothing: any failure leaves the session
// unchanged.
func (w *Workspace) CreateFromMermaid(text string, id model.DiagramID, name string, makeActive bool) (DiagramInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if id == "" {
		id = model.NewDiagramID()
	}
	if err := model.ValidateID(string(id)); err != nil {
		return DiagramInfo{}, err
	}
	if _, exists := w.session.Diagrams[id]; exists {
		return DiagramInfo{}, schema.NewErrorf(schema.ErrCodeDuplicateID, "diagram %s already exists", id)
	}

	alloc := model.NewIDAllocator()
	kind, seqAST, flowAST, err := mermaid.Parse(text, alloc)
	if err != nil {
		return DiagramInfo{}, err
	}
	d := &model.Diagram{ID: id, Name: name, Kind: kind, Seq: seqAST, Flow: flowAST, Alloc: alloc}
	d.ObserveIDs()

	// Preflight: the new diagram must lay out and render before it is
	// admitted to the session.
	if _, err := render.Diagram(d, render.Options{}); err != nil {
		return DiagramInfo{}, err
	}

	if err := w.session.AddDiagram(d); err != nil {
		return DiagramInfo{}, err
	}
	prevActive := w.session.ActiveDiagramID
	if makeActive {
		w.session.ActiveDiagramID = id
	}
	w.session.RecomputeXRefStatuses()
	if err := w.persist(); err != nil {
		delete(w.session.Diagrams, id)
		w.session.ActiveDiagramID = prevActive
		w.session.RecomputeXRefStatuses()
		return DiagramInfo{}, err
	}
	return DiagramInfo{DiagramID: string(d.ID), Name: d.Name, Kind: string(d.Kind), Rev: d.Rev, Active: makeActive}, nil
}

// ApplyOps runs the full mutation contract on a diagram and returns the new
// revision and collapsed delta.
func (w *Workspace) ApplyOps(id model.DiagramID, baseRev uint64, batch []ops.Op) (uint64, ops.Delta, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, err := w.session.Diagram(id)
	if err != nil {
		return 0, ops.Delta{}, err
	}
	res, err := ops.Prepare(d, baseRev, batch)
	if err != nil {
		return 0, ops.Delta{}, err
	}

	oldSeq, oldFlow, oldRev := d.Seq, d.Flow, d.Rev
	if res.Seq != nil {
		d.Seq = res.Seq
	}
	if res.Flow != nil {
		d.Flow = res.Flow
	}
	if err := d.RestoreRev(res.NewRev); err != nil {
		d.Seq, d.Flow = oldSeq, oldFlow
		return 0, ops.Delta{}, err
	}
	w.session.RecomputeXRefStatuses()

	if err := w.persist(); err != nil {
		d.Seq, d.Flow = oldSeq, oldFlow
		if rerr := d.RestoreRev(oldRev); rerr != nil {
			w.logger.Error("revision rollback failed", "diagram_id", id, "error", rerr)
		}
		w.session.RecomputeXRefStatuses()
		return 0, ops.Delta{}, err
	}
	w.engine.DiagramHistory(id).Append(ops.HistoryEntry{FromRev: baseRev, ToRev: res.NewRev, Delta: res.Delta})
	return res.NewRev, res.Delta, nil
}

// ProposeOps runs the same validation and application against a clone
// without committing. Pure.
func (w *Workspace) ProposeOps(id model.DiagramID, baseRev uint64, batch []ops.Op) (uint64, ops.Delta, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, err := w.session.Diagram(id)
	if err != nil {
		return 0, ops.Delta{}, err
	}
	res, err := ops.Prepare(d, baseRev, batch)
	if err != nil {
		return 0, ops.Delta{}, err
	}
	return res.NewRev, res.Delta, nil
}

// Diff returns the collapsed delta since a revision, or UNAVAILABLE when the
// history no longer covers it.
func (w *Workspace) Diff(id model.DiagramID, sinceRev uint64) (uint64, ops.Delta, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, err := w.session.Diagram(id)
	if err != nil {
		return 0, ops.Delta{}, err
	}
	delta, err := w.engine.DiagramHistory(id).Since(sinceRev, d.Rev)
	if err != nil {
		return d.Rev, ops.Delta{}, err
	}
	return d.Rev, delta, nil
}

// RenderText renders a diagram with options, returning text and highlights.
func (w *Workspace) RenderText(id model.DiagramID, opts render.Options) (*render.Rendered, uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, err := w.session.Diagram(id)
	if err != nil {
		return nil, 0, err
	}
	rendered, err := render.Diagram(d, opts)
	if err != nil {
		return nil, 0, err
	}
	return rendered, d.Rev, nil
}

// ExportMermaid returns the canonical interchange text of a diagram.
func (w *Workspace) ExportMermaid(id model.DiagramID) (string, uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, err := w.session.Diagram(id)
	if err != nil {
		return "", 0, err
	}
	text, err := mermaid.Export(d)
	if err != nil {
		return "", 0, err
	}
	return text, d.Rev, nil
}

// Stat summarizes a diagram: revision plus object counts.
func (w *Workspace) Stat(id model.DiagramID) (map[string]any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, err := w.session.Diagram(id)
	if err != nil {
		return nil, err
	}
	stat := map[string]any{
		"diagram_id": string(d.ID),
		"name":       d.Name,
		"kind":       string(d.Kind),
		"rev":        d.Rev,
	}
	switch d.Kind {
	case model.KindSequence:
		blocks := 0
		d.Seq.WalkBlocks(func(*model.Block, int) { blocks++ })
		stat["participants"] = len(d.Seq.Participants)
		stat["messages"] = len(d.Seq.Messages)
		stat["blocks"] = blocks
	case model.KindFlowchart:
		stat["nodes"] = len(d.Flow.Nodes)
		stat["edges"] = len(d.Flow.Edges)
	}
	return stat, nil
}

// SliceEntry is one object in a slice result with its graph distance from
// the center.
type SliceEntry struct {
	Ref      string `json:"ref"`
	Distance int    `json:"distance"`
}

// GetSlice returns the objects within radius hops of center on the session
// meta-graph. depth caps how many diagram boundaries a path may cross;
// categories (optional) filters the result.
func (w *Workspace) GetSlice(centerRef string, radius, depth int, categories []string) ([]SliceEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	center, err := model.ParseObjectRef(centerRef)
	if err != nil {
		return nil, err
	}
	if !w.session.Resolve(center) {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "object %s not found", centerRef)
	}
	if radius < 0 {
		return nil, schema.NewError(schema.ErrCodeInvalidParams, "radius must be >= 0")
	}

	catOK := func(ref model.ObjectRef) bool {
		if len(categories) == 0 {
			return true
		}
		for _, c := range categories {
			if ref.Category == c {
				return true
			}
		}
		return false
	}

	adj := query.BuildAdjacency(w.session)
	type state struct {
		ref      string
		dist     int
		switches int
	}
	seen := map[string]int{centerRef: 0}
	queue := []state{{ref: centerRef}}
	var out []SliceEntry
	if catOK(center) {
		out = append(out, SliceEntry{Ref: centerRef, Distance: 0})
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.dist >= radius {
			continue
		}
		curParsed, perr := model.ParseObjectRef(cur.ref)
		if perr != nil {
			continue
		}
		for _, next := range adj.Neighbors(cur.ref) {
			nextParsed, perr := model.ParseObjectRef(next)
			if perr != nil {
				continue
			}
			switches := cur.switches
			if nextParsed.Diagram != curParsed.Diagram {
				switches++
				if depth >= 0 && switches > depth {
					continue
				}
			}
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = cur.dist + 1
			queue = append(queue, state{ref: next, dist: cur.dist + 1, switches: switches})
			if catOK(nextParsed) {
				out = append(out, SliceEntry{Ref: next, Distance: cur.dist + 1})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Ref < out[j].Ref
	})
	return out, nil
}
