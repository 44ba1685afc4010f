// Package mcpapi provides a stateless MCP streamable-HTTP adapter.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hylla/dealboard/internal/adapters/server/common"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewHandler builds one stateless MCP adapter exposing board read and mutation tools.
func NewHandler(cfg Config, board common.BoardService) (*Handler, error) {
	if board == nil {
		return nil, fmt.Errorf("board service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerReadTools(mcpSrv, board)
	registerCardTools(mcpSrv, board)
	registerStageTools(mcpSrv, board)

	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "dealboard"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerReadTools registers board, summary, and activity read tools.
func registerReadTools(srv *mcpserver.MCPServer, board common.BoardService) {
	srv.AddTool(
		mcp.NewTool(
			"dealboard.get_board",
			mcp.WithDescription("Return every stage in display order with its cards, counts and value totals, plus the pipeline name and a board revision. priority and temperature narrow the cards shown."),
			mcp.WithString("priority", mcp.Description("Only cards with this priority"), mcp.Enum("low", "medium", "high")),
			mcp.WithString("temperature", mcp.Description("Only cards with this temperature"), mcp.Enum("cold", "warm", "hot")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			view, err := board.GetBoard(ctx, common.BoardFilter{
				Priority:    req.GetString("priority", ""),
				Temperature: req.GetString("temperature", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonToolResult("get_board", view)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"dealboard.summary",
			mcp.WithDescription("Return pipeline totals: card counts and deal value per stage, hot leads, and message volume."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			summary, err := board.Summary(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonToolResult("summary", summary)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"dealboard.list_events",
			mcp.WithDescription("List recent board change events, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum events to return (defaults to 50)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			events, err := board.ListEvents(ctx, req.GetInt("limit", 0))
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonToolResult("list_events", map[string]any{
				"events": events,
			})
		},
	)
}

// withToolActor attributes one tool call to the calling agent.
func withToolActor(ctx context.Context, actorID, actorType string) context.Context {
	if strings.TrimSpace(actorType) == "" {
		actorType = "agent"
	}
	return common.WithActor(ctx, actorID, actorType)
}

// jsonToolResult encodes one structured tool payload.
func jsonToolResult(tool string, payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrStaleMove):
		return mcp.NewToolResultError("stale_move: " + err.Error())
	case errors.Is(err, common.ErrStageNotEmpty):
		return mcp.NewToolResultError("stage_not_empty: " + err.Error())
	case errors.Is(err, common.ErrConflict):
		return mcp.NewToolResultError("conflict: " + err.Error())
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrUnavailable):
		return mcp.NewToolResultError("service_unavailable: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}

// invalidRequestToolResult wraps argument-binding failures as deterministic tool errors.
func invalidRequestToolResult(err error) *mcp.CallToolResult {
	if err == nil {
		return mcp.NewToolResultError("invalid_request: malformed arguments")
	}
	return mcp.NewToolResultError("invalid_request: " + err.Error())
}

// missingArgumentResult reports one absent required argument.
func missingArgumentResult(name string) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("invalid_request: required argument %q not found", name))
}
