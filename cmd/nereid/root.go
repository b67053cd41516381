package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nereid-dev/nereid/internal/autosave"
	"github.com/nereid-dev/nereid/internal/logging"
	"github.com/nereid-dev/nereid/internal/model"
	"github.com/nereid-dev/nereid/internal/store"
	"github.com/nereid-dev/nereid/internal/workspace"
	nereidmcp "github.com/nereid-dev/nereid/pkg/mcp"
)

// usageError marks argument problems so main can exit with code 2.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func newRootCommand(version string) *cobra.Command {
	var (
		sessionFlag      string
		durableWrites    bool
		mcpStdio         bool
		mcpHTTPPort      int
		demo             bool
		autosaveSchedule string
	)

	cmd := &cobra.Command{
		Use:     "nereid [session-dir]",
		Short:   "Terminal-first collaborative diagramming workspace",
		Version: version,
		Long: `Nereid holds a session of Mermaid-subset sequence diagrams and flowcharts
that a human and agents edit together through structured operations.
Without --mcp it serves agents over streamable HTTP on 127.0.0.1; with
--mcp it speaks MCP over stdio and exits when stdin closes.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionDir := sessionFlag
			if len(args) == 1 {
				if sessionDir != "" && sessionDir != args[0] {
					return &usageError{msg: "give the session directory either positionally or via --session, not both"}
				}
				sessionDir = args[0]
			}
			if demo && sessionDir != "" {
				return &usageError{msg: "--demo is mutually exclusive with a session directory"}
			}
			if !demo && sessionDir == "" {
				sessionDir = "."
			}

			logger := slog.New(logging.NewCorrelationHandler(
				slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}),
			))
			slog.SetDefault(logger)

			ws, err := buildWorkspace(sessionDir, demo, durableWrites, logger)
			if err != nil {
				return err
			}
			srv := nereidmcp.NewNereidServer(nereidmcp.NereidServerDeps{Workspace: ws, Logger: logger})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if mcpStdio {
				logger.Info("serving MCP over stdio", "session", sessionDir, "demo", demo)
				return srv.Serve(ctx)
			}

			addr := fmt.Sprintf("127.0.0.1:%d", mcpHTTPPort)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("serving MCP over HTTP", "addr", addr, "path", "/mcp")
				return srv.ServeHTTP(gctx, addr)
			})
			if !demo {
				saver, err := autosave.New(autosaveSchedule, ws, logger)
				if err != nil {
					return err
				}
				if err := saver.Start(gctx); err != nil {
					return err
				}
				defer saver.Stop()
			}
			err = g.Wait()
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&sessionFlag, "session", "", "Session directory (alternative to the positional argument)")
	cmd.Flags().BoolVar(&durableWrites, "durable-writes", false, "fsync files and directories around atomic renames")
	cmd.Flags().BoolVar(&mcpStdio, "mcp", false, "Serve MCP over stdio instead of the workspace HTTP server")
	cmd.Flags().IntVar(&mcpHTTPPort, "mcp-http-port", nereidmcp.DefaultHTTPPort, "Port of the embedded agent HTTP server")
	cmd.Flags().BoolVar(&demo, "demo", false, "Use the built-in in-memory demo session")
	cmd.Flags().StringVar(&autosaveSchedule, "autosave", autosave.DefaultSchedule, "Autosave cron schedule for the workspace mode")

	return cmd
}

// buildWorkspace opens (or initializes) the session folder, or the in-memory
// demo session.
func buildWorkspace(sessionDir string, demo, durableWrites bool, logger *slog.Logger) (*workspace.Workspace, error) {
	if demo {
		return workspace.New(model.DemoSession(), nil, logger), nil
	}
	folder := store.New(sessionDir, logger).WithDurability(durableWrites)
	session, err := folder.LoadOrInit()
	if err != nil {
		return nil, err
	}
	logger.Info("session loaded", "session_id", string(session.ID), "diagrams", len(session.Diagrams), "walkthroughs", len(session.Walkthroughs))
	return workspace.New(session, folder, logger), nil
}
