package model

import (
	"sort"

	"github.com/nereid-dev/nereid/pkg/schema"
)

// Session is the root container: diagrams, walkthroughs, and the ordered
// cross-reference list. Runtime collaboration state lives elsewhere and is
// never part of the Session.
type Session struct {
	ID                  SessionID
	Diagrams            map[DiagramID]*Diagram
	Walkthroughs        map[WalkthroughID]*Walkthrough
	XRefs               []*XRef
	ActiveDiagramID     DiagramID
	ActiveWalkthroughID WalkthroughID
}

// NewSession creates an empty session.
func NewSession(id SessionID) *Session {
	return &Session{
		ID:           id,
		Diagrams:     make(map[DiagramID]*Diagram),
		Walkthroughs: make(map[WalkthroughID]*Walkthrough),
	}
}

// Diagram returns the diagram with the given id or a NOT_FOUND error.
func (s *Session) Diagram(id DiagramID) (*Diagram, error) {
	d, ok := s.Diagrams[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "unknown diagram %s", id)
	}
	return d, nil
}

// Walkthrough returns the walkthrough with the given id or a NOT_FOUND error.
func (s *Session) Walkthrough(id WalkthroughID) (*Walkthrough, error) {
	w, ok := s.Walkthroughs[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "unknown walkthrough %s", id)
	}
	return w, nil
}

// AddDiagram inserts a diagram, rejecting duplicate ids.
func (s *Session) AddDiagram(d *Diagram) error {
	if _, exists := s.Diagrams[d.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeDuplicateID, "diagram %s already exists", d.ID)
	}
	s.Diagrams[d.ID] = d
	return nil
}

// RemoveDiagram deletes a diagram and recomputes xref statuses.
func (s *Session) RemoveDiagram(id DiagramID) error {
	if _, ok := s.Diagrams[id]; !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "unknown diagram %s", id)
	}
	delete(s.Diagrams, id)
	if s.ActiveDiagramID == id {
		s.ActiveDiagramID = ""
	}
	s.RecomputeXRefStatuses()
	return nil
}

// SortedDiagramIDs returns diagram ids in canonical sorted order.
func (s *Session) SortedDiagramIDs() []DiagramID {
	out := make([]DiagramID, 0, len(s.Diagrams))
	for id := range s.Diagrams {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SortedWalkthroughIDs returns walkthrough ids in canonical sorted order.
func (s *Session) SortedWalkthroughIDs() []WalkthroughID {
	out := make([]WalkthroughID, 0, len(s.Walkthroughs))
	for id := range s.Walkthroughs {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve reports whether the reference addresses an existing object.
func (s *Session) Resolve(ref ObjectRef) bool {
	d, ok := s.Diagrams[ref.Diagram]
	if !ok {
		return false
	}
	return d.Resolve(ref.Category, ref.Object)
}

// XRef returns the xref with the given id or a NOT_FOUND error.
func (s *Session) XRef(id XRefID) (*XRef, error) {
	for _, x := range s.XRefs {
		if x.ID == id {
			return x, nil
		}
	}
	return nil, schema.NewErrorf(schema.ErrCodeNotFound, "unknown xref %s", id)
}

// AddXRef appends an xref, rejecting duplicate ids, and computes its status.
func (s *Session) AddXRef(x *XRef) error {
	for _, existing := range s.XRefs {
		if existing.ID == x.ID {
			return schema.NewErrorf(schema.ErrCodeDuplicateID, "xref %s already exists", x.ID)
		}
	}
	x.Status = ComputeXRefStatus(s.Resolve(x.From), s.Resolve(x.To))
	s.XRefs = append(s.XRefs, x)
	return nil
}

// RemoveXRef deletes an xref by id.
func (s *Session) RemoveXRef(id XRefID) error {
	for i, x := range s.XRefs {
		if x.ID == id {
			s.XRefs = append(s.XRefs[:i], s.XRefs[i+1:]...)
			return nil
		}
	}
	return schema.NewErrorf(schema.ErrCodeNotFound, "unknown xref %s", id)
}

// RecomputeXRefStatuses refreshes every xref status against the current
// ASTs. Called whenever endpoints may have changed.
func (s *Session) RecomputeXRefStatuses() {
	for _, x := range s.XRefs {
		x.Status = ComputeXRefStatus(s.Resolve(x.From), s.Resolve(x.To))
	}
}
