package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/internal/workspace"
)

func (s *NereidServer) xrefTools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: mcp.NewTool("xref.list",
			mcp.WithDescription("List cross-references through a filter"),
			mcp.WithString("status", mcp.Enum("ok", "dangling_from", "dangling_to", "dangling_both"), mcp.Description("Status filter")),
			mcp.WithString("kind", mcp.Description("Kind filter")),
			mcp.WithString("from_ref", mcp.Description("Exact from endpoint")),
			mcp.WithString("to_ref", mcp.Description("Exact to endpoint")),
			mcp.WithString("involves_ref", mcp.Description("Either endpoint")),
			mcp.WithString("label_contains", mcp.Description("Case-insensitive label substring")),
			mcp.WithNumber("limit", mcp.Description("Max rows")),
		), Handler: s.handleXRefList},
		{Tool: mcp.NewTool("xref.neighbors",
			mcp.WithDescription("Objects linked to one object by cross-references"),
			mcp.WithString("object_ref", mcp.Required(), mcp.Description("Canonical object ref")),
			mcp.WithString("direction", mcp.Enum("out", "in", "both"), mcp.Description("Link direction (default both)")),
		), Handler: s.handleXRefNeighbors},
		{Tool: mcp.NewTool("xref.add",
			mcp.WithDescription("Add a cross-reference between two objects"),
			mcp.WithString("from_ref", mcp.Required(), mcp.Description("From endpoint ref")),
			mcp.WithString("to_ref", mcp.Required(), mcp.Description("To endpoint ref")),
			mcp.WithString("kind", mcp.Required(), mcp.Description("Relationship kind, e.g. nav or impl")),
			mcp.WithString("label", mcp.Description("Optional display label")),
			mcp.WithString("xref_id", mcp.Description("Stable id (generated when omitted)")),
		), Handler: s.handleXRefAdd},
		{Tool: mcp.NewTool("xref.remove",
			mcp.WithDescription("Remove a cross-reference"),
			mcp.WithString("xref_id", mcp.Required(), mcp.Description("XRef to remove")),
		), Handler: s.handleXRefRemove},
		{Tool: mcp.NewTool("object.read",
			mcp.WithDescription("Read one addressable object by its canonical ref, with optional jq projection"),
			mcp.WithString("object_ref", mcp.Required(), mcp.Description("Canonical object ref")),
			mcp.WithString("jq", mcp.Description("Optional jq expression applied to the object document")),
		), Handler: s.handleObjectRead},
	}
}

func (s *NereidServer) handleXRefList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	xrefs := s.ws.ListXRefs(workspace.XRefFilter{
		Status:        req.GetString("status", ""),
		Kind:          req.GetString("kind", ""),
		FromRef:       req.GetString("from_ref", ""),
		ToRef:         req.GetString("to_ref", ""),
		InvolvesRef:   req.GetString("involves_ref", ""),
		LabelContains: req.GetString("label_contains", ""),
		Limit:         getInt(req, "limit", 0),
	})
	return marshalResult(map[string]any{"xrefs": xrefs})
}

func (s *NereidServer) handleXRefNeighbors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	objectRef, err := req.RequireString("object_ref")
	if err != nil {
		return mcp.NewToolResultError("object_ref is required"), nil
	}
	neighbors, qErr := s.ws.XRefNeighbors(objectRef, req.GetString("direction", "both"))
	if qErr != nil {
		return toolError(qErr), nil
	}
	return marshalResult(map[string]any{"object_ref": objectRef, "neighbors": neighbors})
}

func (s *NereidServer) handleXRefAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fromRef, err := req.RequireString("from_ref")
	if err != nil {
		return mcp.NewToolResultError("from_ref is required"), nil
	}
	toRef, err := req.RequireString("to_ref")
	if err != nil {
		return mcp.NewToolResultError("to_ref is required"), nil
	}
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError("kind is required"), nil
	}
	view, addErr := s.ws.AddXRef(
		model.XRefID(req.GetString("xref_id", "")),
		fromRef, toRef, kind,
		req.GetString("label", ""),
	)
	if addErr != nil {
		return toolError(addErr), nil
	}
	return marshalResult(view)
}

func (s *NereidServer) handleXRefRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("xref_id")
	if err != nil {
		return mcp.NewToolResultError("xref_id is required"), nil
	}
	if rmErr := s.ws.RemoveXRef(model.XRefID(id)); rmErr != nil {
		return toolError(rmErr), nil
	}
	return marshalResult(map[string]any{"ok": true, "xref_id": id})
}

func (s *NereidServer) handleObjectRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	objectRef, err := req.RequireString("object_ref")
	if err != nil {
		return mcp.NewToolResultError("object_ref is required"), nil
	}
	doc, readErr := s.ws.ReadObject(objectRef)
	if readErr != nil {
		return toolError(readErr), nil
	}
	if expr := req.GetString("jq", ""); expr != "" {
		projected, jqErr := applyJQ(doc, expr)
		if jqErr != nil {
			return toolError(jqErr), nil
		}
		return marshalResult(projected)
	}
	return marshalResult(doc)
}
