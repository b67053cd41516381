package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/internal/ops"
)

func (s *NereidServer) walkthroughTools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: mcp.NewTool("walkthrough.list",
			mcp.WithDescription("List all walkthroughs in the session"),
		), Handler: s.handleWtList},
		{Tool: mcp.NewTool("walkthrough.create",
			mcp.WithDescription("Create an empty walkthrough"),
			mcp.WithString("title", mcp.Required(), mcp.Description("Walkthrough title")),
			mcp.WithString("walkthrough_id", mcp.Description("Stable id (generated when omitted)")),
			mcp.WithBoolean("make_active", mcp.Description("Activate the new walkthrough")),
		), Handler: s.handleWtCreate},
		{Tool: mcp.NewTool("walkthrough.open",
			mcp.WithDescription("Make a walkthrough active"),
			mcp.WithString("walkthrough_id", mcp.Required(), mcp.Description("Walkthrough to activate")),
		), Handler: s.handleWtOpen},
		{Tool: mcp.NewTool("walkthrough.delete",
			mcp.WithDescription("Delete a walkthrough; its files are garbage-collected on save"),
			mcp.WithString("walkthrough_id", mcp.Required(), mcp.Description("Walkthrough to delete")),
		), Handler: s.handleWtDelete},
		{Tool: mcp.NewTool("walkthrough.read",
			mcp.WithDescription("Full walkthrough content: nodes, refs, edges"),
			mcp.WithString("walkthrough_id", mcp.Description("Defaults to the active walkthrough")),
		), Handler: s.handleWtRead},
		{Tool: mcp.NewTool("walkthrough.render_text",
			mcp.WithDescription("Deterministic Unicode rendering of the walkthrough"),
			mcp.WithString("walkthrough_id", mcp.Description("Defaults to the active walkthrough")),
		), Handler: s.handleWtRenderText},
		{Tool: mcp.NewTool("walkthrough.diff",
			mcp.WithDescription("Collapsed walkthrough delta since a revision"),
			mcp.WithString("walkthrough_id", mcp.Description("Defaults to the active walkthrough")),
			mcp.WithNumber("since_rev", mcp.Required(), mcp.Description("Revision the caller last saw")),
		), Handler: s.handleWtDiff},
		{Tool: mcp.NewTool("walkthrough.apply_ops",
			mcp.WithDescription("Apply a walkthrough op batch against base_rev; persists in persistent mode"),
			mcp.WithString("walkthrough_id", mcp.Description("Defaults to the active walkthrough")),
			mcp.WithNumber("base_rev", mcp.Required(), mcp.Description("Revision the batch was prepared against")),
			mcp.WithArray("ops", mcp.Required(), mcp.Description("Typed walkthrough operations")),
		), Handler: s.handleWtApplyOps},
		{Tool: mcp.NewTool("walkthrough.propose_ops",
			mcp.WithDescription("Validate and predict a walkthrough op batch without committing"),
			mcp.WithString("walkthrough_id", mcp.Description("Defaults to the active walkthrough")),
			mcp.WithNumber("base_rev", mcp.Required(), mcp.Description("Revision the batch was prepared against")),
			mcp.WithArray("ops", mcp.Required(), mcp.Description("Typed walkthrough operations")),
		), Handler: s.handleWtProposeOps},
	}
}

func (s *NereidServer) handleWtList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(map[string]any{"walkthroughs": s.ws.ListWalkthroughs()})
}

func (s *NereidServer) handleWtCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("title is required"), nil
	}
	info, createErr := s.ws.CreateWalkthrough(
		model.WalkthroughID(req.GetString("walkthrough_id", "")),
		title,
		req.GetBool("make_active", false),
	)
	if createErr != nil {
		return toolError(createErr), nil
	}
	return marshalResult(info)
}

func (s *NereidServer) handleWtOpen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("walkthrough_id")
	if err != nil {
		return mcp.NewToolResultError("walkthrough_id is required"), nil
	}
	info, openErr := s.ws.OpenWalkthrough(model.WalkthroughID(id))
	if openErr != nil {
		return toolError(openErr), nil
	}
	return marshalResult(info)
}

func (s *NereidServer) handleWtDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("walkthrough_id")
	if err != nil {
		return mcp.NewToolResultError("walkthrough_id is required"), nil
	}
	if delErr := s.ws.DeleteWalkthrough(model.WalkthroughID(id)); delErr != nil {
		return toolError(delErr), nil
	}
	return marshalResult(map[string]any{"ok": true, "walkthrough_id": id})
}

func (s *NereidServer) handleWtRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveWalkthroughID(req)
	if err != nil {
		return toolError(err), nil
	}
	doc, readErr := s.ws.ReadWalkthrough(id)
	if readErr != nil {
		return toolError(readErr), nil
	}
	return marshalResult(doc)
}

func (s *NereidServer) handleWtRenderText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveWalkthroughID(req)
	if err != nil {
		return toolError(err), nil
	}
	rendered, rev, renderErr := s.ws.RenderWalkthrough(id)
	if renderErr != nil {
		return toolError(renderErr), nil
	}
	return marshalResult(map[string]any{
		"walkthrough_id": string(id),
		"rev":            rev,
		"text":           rendered.Text,
	})
}

func (s *NereidServer) handleWtDiff(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveWalkthroughID(req)
	if err != nil {
		return toolError(err), nil
	}
	sinceRev, err := requireUint64(req, "since_rev")
	if err != nil {
		return toolError(err), nil
	}
	rev, delta, diffErr := s.ws.WalkthroughDiff(id, sinceRev)
	if diffErr != nil {
		return toolError(diffErr), nil
	}
	return marshalResult(map[string]any{"walkthrough_id": string(id), "current_rev": rev, "delta": delta})
}

func (s *NereidServer) handleWtApplyOps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveWalkthroughID(req)
	if err != nil {
		return toolError(err), nil
	}
	baseRev, err := requireUint64(req, "base_rev")
	if err != nil {
		return toolError(err), nil
	}
	var batch []ops.WtOp
	if err := decodeArg(req, "ops", &batch); err != nil {
		return toolError(err), nil
	}
	rev, delta, applyErr := s.ws.ApplyWalkthroughOps(id, baseRev, batch)
	if applyErr != nil {
		return toolError(applyErr), nil
	}
	return marshalResult(map[string]any{"walkthrough_id": string(id), "new_rev": rev, "delta": delta})
}

func (s *NereidServer) handleWtProposeOps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveWalkthroughID(req)
	if err != nil {
		return toolError(err), nil
	}
	baseRev, err := requireUint64(req, "base_rev")
	if err != nil {
		return toolError(err), nil
	}
	var batch []ops.WtOp
	if err := decodeArg(req, "ops", &batch); err != nil {
		return toolError(err), nil
	}
	rev, delta, propErr := s.ws.ProposeWalkthroughOps(id, baseRev, batch)
	if propErr != nil {
		return toolError(propErr), nil
	}
	return marshalResult(map[string]any{"walkthrough_id": string(id), "predicted_rev": rev, "delta": delta})
}
