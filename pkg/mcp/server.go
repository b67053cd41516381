// Package mcp exposes the nereid workspace as typed agent tools over MCP
// stdio and streamable HTTP transports.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/itchyny/gojq"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/internal/workspace"
	"github.com/nereid-dev/nereid/pkg/schema"
)

// DefaultHTTPPort is the embedded agent server port for the interactive mode.
const DefaultHTTPPort = 27435

// NereidServerDeps holds the dependencies for creating a NereidServer.
type NereidServerDeps struct {
	Workspace *workspace.Workspace
	Logger    *slog.Logger
}

// NereidServer wraps an MCP server with nereid-specific tool handlers.
type NereidServer struct {
	ws        *workspace.Workspace
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewNereidServer creates a NereidServer with every tool registered.
func NewNereidServer(deps NereidServerDeps) *NereidServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	s := &NereidServer{ws: deps.Workspace, logger: logger}

	mcpSrv := server.NewMCPServer(
		"nereid",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Nereid is a collaborative diagramming workspace for sequence diagrams and flowcharts. Read diagrams with diagram.read/get_ast/render_text, mutate them through diagram.apply_ops against the diagram's current rev, and explore structure with the seq.*, flow.*, and route.find queries. Selection and highlight tools share runtime state with the human's terminal shell."),
	)
	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or
// stdin closes.
func (s *NereidServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// ServeHTTP starts the streamable HTTP transport at /mcp on addr and blocks.
func (s *NereidServer) ServeHTTP(ctx context.Context, addr string) error {
	httpSrv := server.NewStreamableHTTPServer(s.mcpServer, server.WithEndpointPath("/mcp"))
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Start(addr)
	}()
	select {
	case <-ctx.Done():
		_ = httpSrv.Shutdown(context.Background())
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// MCPServer returns the underlying MCPServer for testing or custom
// transports.
func (s *NereidServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *NereidServer) tools() []server.ServerTool {
	var out []server.ServerTool
	out = append(out, s.diagramTools()...)
	out = append(out, s.walkthroughTools()...)
	out = append(out, s.queryTools()...)
	out = append(out, s.xrefTools()...)
	out = append(out, s.collabTools()...)
	return out
}

// --- shared handler helpers ---

// marshalResult renders v as indented JSON in a text result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

// toolError maps a workspace error to a structured tool error message.
func toolError(err error) *mcp.CallToolResult {
	var se *schema.Error
	if errors.As(err, &se) {
		msg := fmt.Sprintf("%s: %s", se.Code, se.Message)
		if cur, ok := se.Details["current_rev"]; ok {
			msg = fmt.Sprintf("%s (current_rev=%v)", msg, cur)
		}
		return mcp.NewToolResultError(msg)
	}
	return mcp.NewToolResultError(err.Error())
}

// resolveDiagramID reads diagram_id, falling back to the active diagram.
func (s *NereidServer) resolveDiagramID(req mcp.CallToolRequest) (model.DiagramID, error) {
	if id := req.GetString("diagram_id", ""); id != "" {
		return model.DiagramID(id), nil
	}
	if id, ok := s.ws.ActiveDiagram(); ok {
		return id, nil
	}
	return "", schema.NewError(schema.ErrCodeNotFound, "no diagram_id given and no active diagram")
}

// resolveWalkthroughID reads walkthrough_id, falling back to the active one.
func (s *NereidServer) resolveWalkthroughID(req mcp.CallToolRequest) (model.WalkthroughID, error) {
	if id := req.GetString("walkthrough_id", ""); id != "" {
		return model.WalkthroughID(id), nil
	}
	if id, ok := s.ws.ActiveWalkthrough(); ok {
		return id, nil
	}
	return "", schema.NewError(schema.ErrCodeNotFound, "no walkthrough_id given and no active walkthrough")
}

// getUint64 reads a non-negative integer argument; numbers arrive as
// float64 from JSON.
func getUint64(req mcp.CallToolRequest, key string) (uint64, bool, error) {
	args := req.GetArguments()
	v, ok := args[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	f, ok := v.(float64)
	if !ok || f < 0 || f != float64(uint64(f)) {
		return 0, false, schema.NewErrorf(schema.ErrCodeInvalidParams, "%s must be a non-negative integer", key)
	}
	return uint64(f), true, nil
}

func requireUint64(req mcp.CallToolRequest, key string) (uint64, error) {
	v, ok, err := getUint64(req, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, schema.NewErrorf(schema.ErrCodeInvalidParams, "%s is required", key)
	}
	return v, nil
}

func getInt(req mcp.CallToolRequest, key string, fallback int) int {
	args := req.GetArguments()
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return fallback
}

func getStringSlice(req mcp.CallToolRequest, key string) []string {
	args := req.GetArguments()
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// decodeArg re-marshals a JSON argument into a typed payload.
func decodeArg(req mcp.CallToolRequest, key string, out any) error {
	args := req.GetArguments()
	v, ok := args[key]
	if !ok || v == nil {
		return schema.NewErrorf(schema.ErrCodeInvalidParams, "%s is required", key)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeInvalidParams, "invalid %s", key).WithCause(err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return schema.NewErrorf(schema.ErrCodeInvalidParams, "invalid %s: %s", key, err.Error()).WithCause(err)
	}
	return nil
}

// applyJQ runs an optional jq projection over a JSON-shaped document. A
// single output is returned as-is; multiple outputs come back as an array.
func applyJQ(doc any, expression string) (any, error) {
	q, err := gojq.Parse(expression)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidParams, "invalid jq expression %q: %s", expression, err.Error()).WithCause(err)
	}
	// gojq needs plain map/slice/scalar input; round-trip through JSON.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeInternal, "marshal for jq failed").WithCause(err)
	}
	var input any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, schema.NewError(schema.ErrCodeInternal, "unmarshal for jq failed").WithCause(err)
	}

	var outputs []any
	iter := q.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if jqErr, isErr := v.(error); isErr {
			return nil, schema.NewErrorf(schema.ErrCodeInvalidParams, "jq evaluation failed: %s", jqErr.Error()).WithCause(jqErr)
		}
		outputs = append(outputs, v)
	}
	switch len(outputs) {
	case 0:
		return nil, nil
	case 1:
		return outputs[0], nil
	default:
		return outputs, nil
	}
}
