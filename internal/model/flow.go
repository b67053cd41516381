package model

import (
	"sort"

	"github.com/nereid-dev/nereid/pkg/schema"
)

// NodeShape classifies a flowchart node box.
type NodeShape string

const (
	ShapeRect    NodeShape = "rect"
	ShapeRound   NodeShape = "round"
	ShapeDiamond NodeShape = "diamond"
)

// FlowDirection is the parsed flowchart direction header. It is stored and
// re-exported but does not drive layout.
type FlowDirection string

const (
	DirectionTD FlowDirection = "TD"
	DirectionLR FlowDirection = "LR"
	DirectionRL FlowDirection = "RL"
	DirectionBT FlowDirection = "BT"
)

// FlowNode is one box in a flowchart.
type FlowNode struct {
	ID        ObjectID
	MermaidID string
	Label     string
	Shape     NodeShape
	Note      string
}

// FlowEdge is one directed connector between nodes.
type FlowEdge struct {
	ID    ObjectID
	From  ObjectID
	To    ObjectID
	Label string
	Style string
}

// FlowAST is the flowchart model.
type FlowAST struct {
	Direction FlowDirection
	Nodes     []*FlowNode
	Edges     []*FlowEdge
}

// NewFlowAST returns an empty flowchart AST with the default direction.
func NewFlowAST() *FlowAST {
	return &FlowAST{Direction: DirectionTD}
}

// Node returns the node with the given id, or nil.
func (a *FlowAST) Node(id ObjectID) *FlowNode {
	for _, n := range a.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// NodeByMermaidID returns the node with the given mermaid identifier, or nil.
func (a *FlowAST) NodeByMermaidID(ident string) *FlowNode {
	for _, n := range a.Nodes {
		if n.MermaidID == ident {
			return n
		}
	}
	return nil
}

// Edge returns the edge with the given id, or nil.
func (a *FlowAST) Edge(id ObjectID) *FlowEdge {
	for _, e := range a.Edges {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// SortedNodes returns nodes ordered by object id.
func (a *FlowAST) SortedNodes() []*FlowNode {
	out := make([]*FlowNode, len(a.Nodes))
	copy(out, a.Nodes)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SortedEdges returns edges ordered by (from_id, to_id, edge_id).
func (a *FlowAST) SortedEdges() []*FlowEdge {
	out := make([]*FlowEdge, len(a.Edges))
	copy(out, a.Edges)
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Clone deep-copies the AST.
func (a *FlowAST) Clone() *FlowAST {
	out := &FlowAST{
		Direction: a.Direction,
		Nodes:     make([]*FlowNode, len(a.Nodes)),
		Edges:     make([]*FlowEdge, len(a.Edges)),
	}
	for i, n := range a.Nodes {
		cn := *n
		out.Nodes[i] = &cn
	}
	for i, e := range a.Edges {
		ce := *e
		out.Edges[i] = &ce
	}
	return out
}

// Validate checks that every edge endpoint resolves and labels are
// single-line.
func (a *FlowAST) Validate() error {
	for _, n := range a.Nodes {
		if err := ValidateText(n.Label); err != nil {
			return err
		}
	}
	for _, e := range a.Edges {
		if a.Node(e.From) == nil {
			return schema.NewErrorf(schema.ErrCodeInvalidEndpoint, "edge %s references unknown node %s", e.ID, e.From)
		}
		if a.Node(e.To) == nil {
			return schema.NewErrorf(schema.ErrCodeInvalidEndpoint, "edge %s references unknown node %s", e.ID, e.To)
		}
		if err := ValidateText(e.Label); err != nil {
			return err
		}
	}
	return nil
}
