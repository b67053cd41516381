package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/internal/ops"
	"github.com/nereid-dev/nereid/internal/render"
)

func (s *NereidServer) diagramTools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: mcp.NewTool("diagram.list",
			mcp.WithDescription("List all diagrams in the session"),
		), Handler: s.handleDiagramList},
		{Tool: mcp.NewTool("diagram.current",
			mcp.WithDescription("Get the active diagram"),
		), Handler: s.handleDiagramCurrent},
		{Tool: mcp.NewTool("diagram.open",
			mcp.WithDescription("Make a diagram active"),
			mcp.WithString("diagram_id", mcp.Required(), mcp.Description("Diagram to activate")),
		), Handler: s.handleDiagramOpen},
		{Tool: mcp.NewTool("diagram.delete",
			mcp.WithDescription("Delete a diagram from the session"),
			mcp.WithString("diagram_id", mcp.Required(), mcp.Description("Diagram to delete")),
		), Handler: s.handleDiagramDelete},
		{Tool: mcp.NewTool("diagram.create_from_mermaid",
			mcp.WithDescription("Create a diagram from Mermaid subset text; parse, layout, and render are preflighted all-or-nothing"),
			mcp.WithString("mermaid", mcp.Required(), mcp.Description("Mermaid subset source text")),
			mcp.WithString("diagram_id", mcp.Description("Stable diagram id (generated when omitted)")),
			mcp.WithString("name", mcp.Description("Human-readable diagram name")),
			mcp.WithBoolean("make_active", mcp.Description("Activate the new diagram")),
		), Handler: s.handleDiagramCreate},
		{Tool: mcp.NewTool("diagram.stat",
			mcp.WithDescription("Summarize a diagram: revision and object counts"),
			mcp.WithString("diagram_id", mcp.Description("Defaults to the active diagram")),
		), Handler: s.handleDiagramStat},
		{Tool: mcp.NewTool("diagram.get_slice",
			mcp.WithDescription("Objects within a graph radius of a center object on the session meta-graph"),
			mcp.WithString("center_ref", mcp.Required(), mcp.Description("Canonical object ref at the center")),
			mcp.WithNumber("radius", mcp.Description("Max hops from the center (default 2)")),
			mcp.WithNumber("depth", mcp.Description("Max diagram boundaries to cross (default 1, -1 unbounded)")),
			mcp.WithArray("categories", mcp.Description("Optional category filter, e.g. [\"flow/node\"]")),
		), Handler: s.handleDiagramGetSlice},
		{Tool: mcp.NewTool("diagram.diff",
			mcp.WithDescription("Collapsed delta since a revision, or UNAVAILABLE when history no longer covers it"),
			mcp.WithString("diagram_id", mcp.Description("Defaults to the active diagram")),
			mcp.WithNumber("since_rev", mcp.Required(), mcp.Description("Revision the caller last saw")),
		), Handler: s.handleDiagramDiff},
		{Tool: mcp.NewTool("diagram.read",
			mcp.WithDescription("Canonical Mermaid interchange text of a diagram"),
			mcp.WithString("diagram_id", mcp.Description("Defaults to the active diagram")),
		), Handler: s.handleDiagramRead},
		{Tool: mcp.NewTool("diagram.get_ast",
			mcp.WithDescription("Full AST of a diagram as JSON, with optional jq projection"),
			mcp.WithString("diagram_id", mcp.Description("Defaults to the active diagram")),
			mcp.WithString("jq", mcp.Description("Optional jq expression applied to the AST document")),
		), Handler: s.handleDiagramGetAST},
		{Tool: mcp.NewTool("diagram.render_text",
			mcp.WithDescription("Deterministic Unicode rendering plus the highlight index"),
			mcp.WithString("diagram_id", mcp.Description("Defaults to the active diagram")),
			mcp.WithBoolean("show_notes", mcp.Description("Render note lines inside boxes")),
			mcp.WithNumber("column_width", mcp.Description("Sequence column width override")),
			mcp.WithNumber("row_spacing", mcp.Description("Sequence row spacing override")),
		), Handler: s.handleDiagramRenderText},
		{Tool: mcp.NewTool("diagram.apply_ops",
			mcp.WithDescription("Apply a typed op batch against base_rev; all-or-nothing, rev advances by exactly one"),
			mcp.WithString("diagram_id", mcp.Description("Defaults to the active diagram")),
			mcp.WithNumber("base_rev", mcp.Required(), mcp.Description("Revision the batch was prepared against")),
			mcp.WithArray("ops", mcp.Required(), mcp.Description("Typed operations")),
		), Handler: s.handleDiagramApplyOps},
		{Tool: mcp.NewTool("diagram.propose_ops",
			mcp.WithDescription("Validate and predict an op batch without committing"),
			mcp.WithString("diagram_id", mcp.Description("Defaults to the active diagram")),
			mcp.WithNumber("base_rev", mcp.Required(), mcp.Description("Revision the batch was prepared against")),
			mcp.WithArray("ops", mcp.Required(), mcp.Description("Typed operations")),
		), Handler: s.handleDiagramProposeOps},
	}
}

func (s *NereidServer) handleDiagramList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(map[string]any{"diagrams": s.ws.ListDiagrams()})
}

func (s *NereidServer) handleDiagramCurrent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := s.ws.CurrentDiagram()
	if err != nil {
		return toolError(err), nil
	}
	return marshalResult(info)
}

func (s *NereidServer) handleDiagramOpen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("diagram_id")
	if err != nil {
		return mcp.NewToolResultError("diagram_id is required"), nil
	}
	info, openErr := s.ws.OpenDiagram(model.DiagramID(id))
	if openErr != nil {
		return toolError(openErr), nil
	}
	return marshalResult(info)
}

func (s *NereidServer) handleDiagramDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("diagram_id")
	if err != nil {
		return mcp.NewToolResultError("diagram_id is required"), nil
	}
	if delErr := s.ws.DeleteDiagram(model.DiagramID(id)); delErr != nil {
		return toolError(delErr), nil
	}
	return marshalResult(map[string]any{"ok": true, "diagram_id": id})
}

func (s *NereidServer) handleDiagramCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("mermaid")
	if err != nil {
		return mcp.NewToolResultError("mermaid is required"), nil
	}
	info, createErr := s.ws.CreateFromMermaid(
		text,
		model.DiagramID(req.GetString("diagram_id", "")),
		req.GetString("name", ""),
		req.GetBool("make_active", false),
	)
	if createErr != nil {
		return toolError(createErr), nil
	}
	return marshalResult(info)
}

func (s *NereidServer) handleDiagramStat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDiagramID(req)
	if err != nil {
		return toolError(err), nil
	}
	stat, statErr := s.ws.Stat(id)
	if statErr != nil {
		return toolError(statErr), nil
	}
	return marshalResult(stat)
}

func (s *NereidServer) handleDiagramGetSlice(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	center, err := req.RequireString("center_ref")
	if err != nil {
		return mcp.NewToolResultError("center_ref is required"), nil
	}
	entries, sliceErr := s.ws.GetSlice(
		center,
		getInt(req, "radius", 2),
		getInt(req, "depth", 1),
		getStringSlice(req, "categories"),
	)
	if sliceErr != nil {
		return toolError(sliceErr), nil
	}
	return marshalResult(map[string]any{"center": center, "objects": entries})
}

func (s *NereidServer) handleDiagramDiff(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDiagramID(req)
	if err != nil {
		return toolError(err), nil
	}
	sinceRev, err := requireUint64(req, "since_rev")
	if err != nil {
		return toolError(err), nil
	}
	rev, delta, diffErr := s.ws.Diff(id, sinceRev)
	if diffErr != nil {
		return toolError(diffErr), nil
	}
	return marshalResult(map[string]any{"diagram_id": string(id), "current_rev": rev, "delta": delta})
}

func (s *NereidServer) handleDiagramRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDiagramID(req)
	if err != nil {
		return toolError(err), nil
	}
	text, rev, readErr := s.ws.ExportMermaid(id)
	if readErr != nil {
		return toolError(readErr), nil
	}
	return marshalResult(map[string]any{"diagram_id": string(id), "rev": rev, "mermaid": text})
}

func (s *NereidServer) handleDiagramGetAST(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDiagramID(req)
	if err != nil {
		return toolError(err), nil
	}
	doc, astErr := s.ws.GetAST(id)
	if astErr != nil {
		return toolError(astErr), nil
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

func (s *NereidServer) handleDiagramRenderText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDiagramID(req)
	if err != nil {
		return toolError(err), nil
	}
	opts := render.Options{
		ShowNotes:   req.GetBool("show_notes", false),
		ColumnWidth: getInt(req, "column_width", 0),
		RowSpacing:  getInt(req, "row_spacing", 0),
	}
	rendered, rev, renderErr := s.ws.RenderText(id, opts)
	if renderErr != nil {
		return toolError(renderErr), nil
	}
	return marshalResult(map[string]any{
		"diagram_id": string(id),
		"rev":        rev,
		"text":       rendered.Text,
		"highlights": rendered.Highlights,
	})
}

func (s *NereidServer) handleDiagramApplyOps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDiagramID(req)
	if err != nil {
		return toolError(err), nil
	}
	baseRev, err := requireUint64(req, "base_rev")
	if err != nil {
		return toolError(err), nil
	}
	var batch []ops.Op
	if err := decodeArg(req, "ops", &batch); err != nil {
		return toolError(err), nil
	}
	rev, delta, applyErr := s.ws.ApplyOps(id, baseRev, batch)
	if applyErr != nil {
		return toolError(applyErr), nil
	}
	return marshalResult(map[string]any{"diagram_id": string(id), "new_rev": rev, "delta": delta})
}

func (s *NereidServer) handleDiagramProposeOps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDiagramID(req)
	if err != nil {
		return toolError(err), nil
	}
	baseRev, err := requireUint64(req, "base_rev")
	if err != nil {
		return toolError(err), nil
	}
	var batch []ops.Op
	if err := decodeArg(req, "ops", &batch); err != nil {
		return toolError(err), nil
	}
	rev, delta, propErr := s.ws.ProposeOps(id, baseRev, batch)
	if propErr != nil {
		return toolError(propErr), nil
	}
	return marshalResult(map[string]any{"diagram_id": string(id), "predicted_rev": rev, "delta": delta})
}
