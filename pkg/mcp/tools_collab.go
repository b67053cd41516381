package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Collaboration tools share runtime-only state with the terminal shell.
// Nothing here is ever persisted.
func (s *NereidServer) collabTools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: mcp.NewTool("attention.human.read",
			mcp.WithDescription("Where the human is currently looking"),
		), Handler: s.handleHumanAttentionRead},
		{Tool: mcp.NewTool("attention.agent.read",
			mcp.WithDescription("The current agent highlight set"),
		), Handler: s.handleAgentAttentionRead},
		{Tool: mcp.NewTool("attention.agent.set",
			mcp.WithDescription("Highlight objects for the human; replaces the previous set"),
			mcp.WithString("diagram_id", mcp.Description("Diagram the highlights belong to")),
			mcp.WithArray("refs", mcp.Required(), mcp.Description("Canonical object refs to highlight")),
			mcp.WithString("note", mcp.Description("Short explanation shown with the highlight")),
		), Handler: s.handleAgentAttentionSet},
		{Tool: mcp.NewTool("attention.agent.clear",
			mcp.WithDescription("Clear the agent highlight set"),
		), Handler: s.handleAgentAttentionClear},
		{Tool: mcp.NewTool("follow_ai.read",
			mcp.WithDescription("Whether the shell follows agent activity"),
		), Handler: s.handleFollowAIRead},
		{Tool: mcp.NewTool("follow_ai.set",
			mcp.WithDescription("Enable or disable follow-ai in the shell"),
			mcp.WithBoolean("enabled", mcp.Required(), mcp.Description("New follow-ai value")),
		), Handler: s.handleFollowAISet},
		{Tool: mcp.NewTool("selection.read",
			mcp.WithDescription("The shared selection"),
		), Handler: s.handleSelectionRead},
		{Tool: mcp.NewTool("selection.update",
			mcp.WithDescription("Replace the shared selection"),
			mcp.WithArray("refs", mcp.Required(), mcp.Description("Canonical object refs to select")),
		), Handler: s.handleSelectionUpdate},
		{Tool: mcp.NewTool("view.read_state",
			mcp.WithDescription("What the terminal shell currently shows"),
		), Handler: s.handleViewReadState},
	}
}

func (s *NereidServer) handleHumanAttentionRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(s.ws.HumanAttention())
}

func (s *NereidServer) handleAgentAttentionRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(s.ws.AgentAttention())
}

func (s *NereidServer) handleAgentAttentionSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	refs := getStringSlice(req, "refs")
	s.ws.SetAgentAttention(req.GetString("diagram_id", ""), refs, req.GetString("note", ""))
	return marshalResult(map[string]any{"ok": true, "refs": refs})
}

func (s *NereidServer) handleAgentAttentionClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.ws.ClearAgentAttention()
	return marshalResult(map[string]any{"ok": true})
}

func (s *NereidServer) handleFollowAIRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(map[string]any{"enabled": s.ws.FollowAI()})
}

func (s *NereidServer) handleFollowAISet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	enabled := req.GetBool("enabled", false)
	s.ws.SetFollowAI(enabled)
	return marshalResult(map[string]any{"ok": true, "enabled": enabled})
}

func (s *NereidServer) handleSelectionRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(map[string]any{"refs": s.ws.Selection()})
}

func (s *NereidServer) handleSelectionUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	refs := getStringSlice(req, "refs")
	s.ws.SetSelection(refs)
	return marshalResult(map[string]any{"ok": true, "refs": refs})
}

func (s *NereidServer) handleViewReadState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return marshalResult(s.ws.View())
}
