package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/internal/workspace"
)

func demoServer(t *testing.T) *NereidServer {
	t.Helper()
	ws := workspace.New(model.DemoSession(), nil, nil)
	return NewNereidServer(NereidServerDeps{Workspace: ws})
}

func callReq(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func decodeResult(t *testing.T, res *mcp.CallToolResult, out any) {
	t.Helper()
	require.False(t, res.IsError, "tool errored: %s", resultText(t, res))
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), out))
}

func TestAllToolsRegistered(t *testing.T) {
	s := demoServer(t)
	names := map[string]bool{}
	for _, tool := range s.tools() {
		assert.False(t, names[tool.Tool.Name], "duplicate tool %s", tool.Tool.Name)
		names[tool.Tool.Name] = true
	}
	for _, want := range []string{
		"diagram.list", "diagram.current", "diagram.open", "diagram.delete",
		"diagram.create_from_mermaid", "diagram.stat", "diagram.get_slice",
		"diagram.diff", "diagram.read", "diagram.get_ast", "diagram.render_text",
		"diagram.apply_ops", "diagram.propose_ops",
		"walkthrough.list", "walkthrough.apply_ops", "walkthrough.propose_ops",
		"attention.human.read", "attention.agent.read", "attention.agent.set",
		"attention.agent.clear", "follow_ai.read", "follow_ai.set",
		"selection.read", "selection.update", "view.read_state",
		"xref.list", "xref.neighbors", "xref.add", "xref.remove", "object.read",
		"route.find", "seq.messages", "seq.search", "seq.trace",
		"flow.reachable", "flow.paths", "flow.cycles", "flow.unreachable",
		"flow.dead_ends", "flow.degrees",
	} {
		assert.True(t, names[want], "missing tool %s", want)
	}
}

func TestApplyOpsToolRoundTrip(t *testing.T) {
	s := demoServer(t)
	res, err := s.handleDiagramApplyOps(context.Background(), callReq("diagram.apply_ops", map[string]any{
		"diagram_id": "deploy-flow",
		"base_rev":   float64(0),
		"ops": []any{
			map[string]any{"type": "add_node", "ident": "verify", "label": "Verify"},
		},
	}))
	require.NoError(t, err)
	var out struct {
		NewRev uint64 `json:"new_rev"`
		Delta  struct {
			Added []string `json:"added"`
		} `json:"delta"`
	}
	decodeResult(t, res, &out)
	assert.Equal(t, uint64(1), out.NewRev)
	assert.Equal(t, []string{"d:deploy-flow/flow/node/n:verify"}, out.Delta.Added)
}

func TestApplyOpsToolConflictMessage(t *testing.T) {
	s := demoServer(t)
	res, err := s.handleDiagramApplyOps(context.Background(), callReq("diagram.apply_ops", map[string]any{
		"diagram_id": "deploy-flow",
		"base_rev":   float64(9),
		"ops":        []any{},
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	text := resultText(t, res)
	assert.Contains(t, text, "CONFLICT")
	assert.Contains(t, text, "current_rev=0")
}

func TestSeqSearchToolInvalidRegex(t *testing.T) {
	s := demoServer(t)
	res, err := s.handleSeqSearch(context.Background(), callReq("seq.search", map[string]any{
		"diagram_id": "login-seq",
		"needle":     "[unclosed",
		"mode":       "regex",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "INVALID_PARAMS")
}

func TestRenderTextToolReturnsHighlights(t *testing.T) {
	s := demoServer(t)
	res, err := s.handleDiagramRenderText(context.Background(), callReq("diagram.render_text", map[string]any{
		"diagram_id": "login-seq",
	}))
	require.NoError(t, err)
	var out struct {
		Text       string                      `json:"text"`
		Highlights map[string][]map[string]int `json:"highlights"`
	}
	decodeResult(t, res, &out)
	assert.True(t, strings.Contains(out.Text, "─"))
	assert.NotEmpty(t, out.Highlights)
}

func TestGetASTToolWithJQ(t *testing.T) {
	s := demoServer(t)
	res, err := s.handleDiagramGetAST(context.Background(), callReq("diagram.get_ast", map[string]any{
		"diagram_id": "deploy-flow",
		"jq":         ".nodes | length",
	}))
	require.NoError(t, err)
	assert.Equal(t, "4", strings.TrimSpace(resultText(t, res)))

	res, err = s.handleDiagramGetAST(context.Background(), callReq("diagram.get_ast", map[string]any{
		"diagram_id": "deploy-flow",
		"jq":         ".nodes | bogus(",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestRouteFindTool(t *testing.T) {
	s := demoServer(t)
	res, err := s.handleRouteFind(context.Background(), callReq("route.find", map[string]any{
		"from_ref": "d:deploy-flow/flow/node/n:1",
		"to_ref":   "d:login-seq/seq/message/m:4",
		"limit":    float64(1),
	}))
	require.NoError(t, err)
	var out struct {
		Routes [][]string `json:"routes"`
	}
	decodeResult(t, res, &out)
	require.Len(t, out.Routes, 1)
	assert.Equal(t, "d:deploy-flow/flow/node/n:1", out.Routes[0][0])
	assert.Equal(t, "d:login-seq/seq/message/m:4", out.Routes[0][len(out.Routes[0])-1])
}

func TestCollabToolsShareRuntimeState(t *testing.T) {
	s := demoServer(t)
	_, err := s.handleSelectionUpdate(context.Background(), callReq("selection.update", map[string]any{
		"refs": []any{"d:login-seq/seq/message/m:1"},
	}))
	require.NoError(t, err)

	res, err := s.handleSelectionRead(context.Background(), callReq("selection.read", nil))
	require.NoError(t, err)
	var out struct {
		Refs []string `json:"refs"`
	}
	decodeResult(t, res, &out)
	assert.Equal(t, []string{"d:login-seq/seq/message/m:1"}, out.Refs)

	_, err = s.handleFollowAISet(context.Background(), callReq("follow_ai.set", map[string]any{"enabled": true}))
	require.NoError(t, err)
	res, err = s.handleFollowAIRead(context.Background(), callReq("follow_ai.read", nil))
	require.NoError(t, err)
	var fa struct {
		Enabled bool `json:"enabled"`
	}
	decodeResult(t, res, &fa)
	assert.True(t, fa.Enabled)
}

func TestObjectReadTool(t *testing.T) {
	s := demoServer(t)
	res, err := s.handleObjectRead(context.Background(), callReq("object.read", map[string]any{
		"object_ref": "d:login-seq/seq/message/m:1",
	}))
	require.NoError(t, err)
	var out map[string]any
	decodeResult(t, res, &out)
	assert.Equal(t, "POST /login", out["text"])

	res, err = s.handleObjectRead(context.Background(), callReq("object.read", map[string]any{
		"object_ref": "d:login-seq/seq/message/m:404",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "NOT_FOUND")
}
