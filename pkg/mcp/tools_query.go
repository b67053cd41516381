package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/internal/query"
)

func (s *NereidServer) queryTools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: mcp.NewTool("route.find",
			mcp.WithDescription("Simple paths between two objects over the session meta-graph (flow edges, message chronology, xrefs)"),
			mcp.WithString("from_ref", mcp.Required(), mcp.Description("Start object ref")),
			mcp.WithString("to_ref", mcp.Required(), mcp.Description("Goal object ref")),
			mcp.WithNumber("limit", mcp.Description("Max routes to return (default 5)")),
			mcp.WithNumber("max_hops", mcp.Description("Strict hop cap per route (default 8)")),
			mcp.WithString("ordering", mcp.Enum("fewest_hops", "lexicographic"), mcp.Description("Result ordering (default fewest_hops)")),
		), Handler: s.handleRouteFind},
		{Tool: mcp.NewTool("seq.messages",
			mcp.WithDescription("List sequence messages in canonical order through a filter"),
			mcp.WithString("diagram_id", mcp.Description("Defaults to the active diagram")),
			mcp.WithString("from", mcp.Description("Sender participant id")),
			mcp.WithString("to", mcp.Description("Receiver participant id")),
			mcp.WithString("kind", mcp.Enum("sync", "async", "return", "self_sync", "self_async"), mcp.Description("Message kind")),
			mcp.WithString("where", mcp.Description("Optional expression over {from, to, kind, text}, e.g. `kind == \"sync\" and text contains \"login\"`")),
		), Handler: s.handleSeqMessages},
		{Tool: mcp.NewTool("seq.search",
			mcp.WithDescription("Search message text; case-insensitive by default"),
			mcp.WithString("diagram_id", mcp.Description("Defaults to the active diagram")),
			mcp.WithString("needle", mcp.Required(), mcp.Description("Text or pattern to find")),
			mcp.WithString("mode", mcp.Enum("substring", "regex"), mcp.Description("Matching mode (default substring)")),
			mcp.WithBoolean("case_sensitive", mcp.Description("Match case exactly")),
		), Handler: s.handleSeqSearch},
		{Tool: mcp.NewTool("seq.trace",
			mcp.WithDescription("Timeline slice around a message"),
			mcp.WithString("diagram_id", mcp.Description("Defaults to the active diagram")),
			mcp.WithString("from_message_id", mcp.Description("Anchor message (optional)")),
			mcp.WithString("direction", mcp.Enum("before", "after", "both"), mcp.Description("Which side of the anchor (default both)")),
			mcp.WithNumber("limit", mcp.Description("Max messages per side (default 10)")),
		), Handler: s.handleSeqTrace},
		{Tool: mcp.NewTool("flow.reachable",
			mcp.WithDescription("Nodes reachable from a node, including itself, sorted by id"),
			mcp.WithString("diagram_id", mcp.Description("Defaults to the active diagram")),
			mcp.WithString("from", mcp.Required(), mcp.Description("Start node id")),
			mcp.WithString("direction", mcp.Enum("out", "in", "both"), mcp.Description("Traversal direction (default out)")),
		), Handler: s.handleFlowReachable},
		{Tool: mcp.NewTool("flow.paths",
			mcp.WithDescription("Shortest path plus bounded alternates between two nodes"),
			mcp.WithString("diagram_id", mcp.Description("Defaults to the active diagram")),
			mcp.WithString("from", mcp.Required(), mcp.Description("Start node id")),
			mcp.WithString("to", mcp.Required(), mcp.Description("Goal node id")),
			mcp.WithNumber("limit", mcp.Description("Max paths (default 5)")),
			mcp.WithNumber("max_extra_hops", mcp.Description("Alternates may exceed the shortest by this many hops (default 2)")),
		), Handler: s.handleFlowPaths},
		{Tool: mcp.NewTool("flow.cycles",
			mcp.WithDescription("Strongly connected components containing a cycle"),
			mcp.WithString("diagram_id", mcp.Description("Defaults to the active diagram")),
		), Handler: s.handleFlowCycles},
		{Tool: mcp.NewTool("flow.dead_ends",
			mcp.WithDescription("Nodes with out-degree zero"),
			mcp.WithString("diagram_id", mcp.Description("Defaults to the active diagram")),
		), Handler: s.handleFlowDeadEnds},
		{Tool: mcp.NewTool("flow.unreachable",
			mcp.WithDescription("Nodes not reachable from the start (or from any source node)"),
			mcp.WithString("diagram_id", mcp.Description("Defaults to the active diagram")),
			mcp.WithString("start", mcp.Description("Start node id (defaults to all in-degree-zero nodes)")),
		), Handler: s.handleFlowUnreachable},
		{Tool: mcp.NewTool("flow.degrees",
			mcp.WithDescription("Top nodes ranked by degree"),
			mcp.WithString("diagram_id", mcp.Description("Defaults to the active diagram")),
			mcp.WithNumber("top", mcp.Description("Max rows (default 10)")),
			mcp.WithString("sort_by", mcp.Enum("in", "out", "total"), mcp.Description("Ranking key (default total)")),
		), Handler: s.handleFlowDegrees},
	}
}

func (s *NereidServer) handleRouteFind(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fromRef, err := req.RequireString("from_ref")
	if err != nil {
		return mcp.NewToolResultError("from_ref is required"), nil
	}
	toRef, err := req.RequireString("to_ref")
	if err != nil {
		return mcp.NewToolResultError("to_ref is required"), nil
	}
	routes, findErr := s.ws.FindRoutes(
		fromRef, toRef,
		getInt(req, "limit", 5),
		getInt(req, "max_hops", 8),
		query.RouteOrdering(req.GetString("ordering", string(query.OrderFewestHops))),
	)
	if findErr != nil {
		return toolError(findErr), nil
	}
	return marshalResult(map[string]any{"from": fromRef, "to": toRef, "routes": routes})
}

func (s *NereidServer) handleSeqMessages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDiagramID(req)
	if err != nil {
		return toolError(err), nil
	}
	msgs, qErr := s.ws.SeqMessages(id, query.MessageFilter{
		From:  model.ObjectID(req.GetString("from", "")),
		To:    model.ObjectID(req.GetString("to", "")),
		Kind:  model.MessageKind(req.GetString("kind", "")),
		Where: req.GetString("where", ""),
	})
	if qErr != nil {
		return toolError(qErr), nil
	}
	return marshalResult(map[string]any{"diagram_id": string(id), "messages": msgs})
}

func (s *NereidServer) handleSeqSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDiagramID(req)
	if err != nil {
		return toolError(err), nil
	}
	needle, err := req.RequireString("needle")
	if err != nil {
		return mcp.NewToolResultError("needle is required"), nil
	}
	msgs, qErr := s.ws.SeqSearch(
		id, needle,
		query.SearchMode(req.GetString("mode", string(query.SearchSubstring))),
		req.GetBool("case_sensitive", false),
	)
	if qErr != nil {
		return toolError(qErr), nil
	}
	return marshalResult(map[string]any{"diagram_id": string(id), "messages": msgs})
}

func (s *NereidServer) handleSeqTrace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDiagramID(req)
	if err != nil {
		return toolError(err), nil
	}
	msgs, qErr := s.ws.SeqTrace(
		id,
		model.ObjectID(req.GetString("from_message_id", "")),
		query.TraceDirection(req.GetString("direction", string(query.TraceBoth))),
		getInt(req, "limit", 10),
	)
	if qErr != nil {
		return toolError(qErr), nil
	}
	return marshalResult(map[string]any{"diagram_id": string(id), "messages": msgs})
}

func (s *NereidServer) handleFlowReachable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDiagramID(req)
	if err != nil {
		return toolError(err), nil
	}
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError("from is required"), nil
	}
	nodes, qErr := s.ws.FlowReachable(id, model.ObjectID(from), query.Direction(req.GetString("direction", string(query.DirOut))))
	if qErr != nil {
		return toolError(qErr), nil
	}
	return marshalResult(map[string]any{"diagram_id": string(id), "nodes": nodes})
}

func (s *NereidServer) handleFlowPaths(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDiagramID(req)
	if err != nil {
		return toolError(err), nil
	}
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError("from is required"), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError("to is required"), nil
	}
	paths, qErr := s.ws.FlowPaths(id, model.ObjectID(from), model.ObjectID(to), getInt(req, "limit", 5), getInt(req, "max_extra_hops", 2))
	if qErr != nil {
		return toolError(qErr), nil
	}
	return marshalResult(map[string]any{"diagram_id": string(id), "paths": paths})
}

func (s *NereidServer) handleFlowCycles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDiagramID(req)
	if err != nil {
		return toolError(err), nil
	}
	cycles, qErr := s.ws.FlowCycles(id)
	if qErr != nil {
		return toolError(qErr), nil
	}
	return marshalResult(map[string]any{"diagram_id": string(id), "cycles": cycles})
}

func (s *NereidServer) handleFlowDeadEnds(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDiagramID(req)
	if err != nil {
		return toolError(err), nil
	}
	nodes, qErr := s.ws.FlowDeadEnds(id)
	if qErr != nil {
		return toolError(qErr), nil
	}
	return marshalResult(map[string]any{"diagram_id": string(id), "nodes": nodes})
}

func (s *NereidServer) handleFlowUnreachable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDiagramID(req)
	if err != nil {
		return toolError(err), nil
	}
	nodes, qErr := s.ws.FlowUnreachable(id, model.ObjectID(req.GetString("start", "")))
	if qErr != nil {
		return toolError(qErr), nil
	}
	return marshalResult(map[string]any{"diagram_id": string(id), "nodes": nodes})
}

func (s *NereidServer) handleFlowDegrees(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDiagramID(req)
	if err != nil {
		return toolError(err), nil
	}
	entries, qErr := s.ws.FlowDegrees(id, getInt(req, "top", 10), query.DegreeSort(req.GetString("sort_by", string(query.SortByTotal))))
	if qErr != nil {
		return toolError(qErr), nil
	}
	return marshalResult(map[string]any{"diagram_id": string(id), "degrees": entries})
}
