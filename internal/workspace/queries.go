package workspace

import (
	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/internal/query"
)

// MessageView is the wire form of one sequence message.
type MessageView struct {
	ID       string `json:"id"`
	Ref      string `json:"ref"`
	From     string `json:"from"`
	To       string `json:"to"`
	Kind     string `json:"kind"`
	Text     string `json:"text"`
	OrderKey string `json:"order_key"`
}

func messageViews(d *model.Diagram, msgs []*model.Message) []MessageView {
	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageView{
			ID:       string(m.ID),
			Ref:      d.Ref(model.CategorySeqMessage, m.ID).String(),
			From:     string(m.From),
			To:       string(m.To),
			Kind:     string(m.Kind),
			Text:     m.Text,
			OrderKey: string(m.OrderKey),
		})
	}
	return out
}

// SeqMessages lists messages of a sequence diagram through the filter.
func (w *Workspace) SeqMessages(id model.DiagramID, f query.MessageFilter) ([]MessageView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, err := w.session.Diagram(id)
	if err != nil {
		return nil, err
	}
	msgs, err := query.Messages(d, f)
	if err != nil {
		return nil, err
	}
	return messageViews(d, msgs), nil
}

// SeqSearch finds messages by needle.
func (w *Workspace) SeqSearch(id model.DiagramID, needle string, mode query.SearchMode, caseSensitive bool) ([]MessageView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, err := w.session.Diagram(id)
	if err != nil {
		return nil, err
	}
	msgs, err := query.Search(d, needle, mode, caseSensitive)
	if err != nil {
		return nil, err
	}
	return messageViews(d, msgs), nil
}

// SeqTrace returns the timeline slice around a message.
func (w *Workspace) SeqTrace(id model.DiagramID, fromMessage model.ObjectID, direction query.TraceDirection, limit int) ([]MessageView, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, err := w.session.Diagram(id)
	if err != nil {
		return nil, err
	}
	msgs, err := query.Trace(d, fromMessage, direction, limit)
	if err != nil {
		return nil, err
	}
	return messageViews(d, msgs), nil
}

// FlowReachable wraps query.Reachable.
func (w *Workspace) FlowReachable(id model.DiagramID, from model.ObjectID, dir query.Direction) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, err := w.session.Diagram(id)
	if err != nil {
		return nil, err
	}
	nodes, err := query.Reachable(d, from, dir)
	if err != nil {
		return nil, err
	}
	return objectIDStrings(nodes), nil
}

// FlowPaths wraps query.Paths.
func (w *Workspace) FlowPaths(id model.DiagramID, from, to model.ObjectID, limit, maxExtraHops int) ([][]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, err := w.session.Diagram(id)
	if err != nil {
		return nil, err
	}
	paths, err := query.Paths(d, from, to, limit, maxExtraHops)
	if err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, objectIDStrings(p))
	}
	return out, nil
}

// FlowCycles wraps query.Cycles.
func (w *Workspace) FlowCycles(id model.DiagramID) ([][]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, err := w.session.Diagram(id)
	if err != nil {
		return nil, err
	}
	cycles, err := query.Cycles(d)
	if err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(cycles))
	for _, c := range cycles {
		out = append(out, objectIDStrings(c))
	}
	return out, nil
}

// FlowDeadEnds wraps query.DeadEnds.
func (w *Workspace) FlowDeadEnds(id model.DiagramID) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, err := w.session.Diagram(id)
	if err != nil {
		return nil, err
	}
	nodes, err := query.DeadEnds(d)
	if err != nil {
		return nil, err
	}
	return objectIDStrings(nodes), nil
}

// FlowUnreachable wraps query.Unreachable.
func (w *Workspace) FlowUnreachable(id model.DiagramID, start model.ObjectID) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, err := w.session.Diagram(id)
	if err != nil {
		return nil, err
	}
	nodes, err := query.Unreachable(d, start)
	if err != nil {
		return nil, err
	}
	return objectIDStrings(nodes), nil
}

// FlowDegrees wraps query.Degrees.
func (w *Workspace) FlowDegrees(id model.DiagramID, top int, sortBy query.DegreeSort) ([]query.DegreeEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, err := w.session.Diagram(id)
	if err != nil {
		return nil, err
	}
	return query.Degrees(d, top, sortBy)
}

// FindRoutes runs a route query over the derived session meta-graph. Both
// endpoints must resolve.
func (w *Workspace) FindRoutes(fromRef, toRef string, limit, maxHops int, ordering query.RouteOrdering) ([][]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	from, err := model.ParseObjectRef(fromRef)
	if err != nil {
		return nil, err
	}
	to, err := model.ParseObjectRef(toRef)
	if err != nil {
		return nil, err
	}
	if !w.session.Resolve(from) {
		return nil, notFoundRef(fromRef)
	}
	if !w.session.Resolve(to) {
		return nil, notFoundRef(toRef)
	}
	adj := query.BuildAdjacency(w.session)
	return adj.FindRoutes(fromRef, toRef, limit, maxHops, ordering)
}
