package mcpapi

import (
	"context"
	"strings"

	"github.com/hylla/dealboard/internal/adapters/server/common"
	"github.com/hylla/dealboard/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// colorValues lists the stage colors accepted by stage tools.
func colorValues() []string {
	colors := domain.Colors()
	out := make([]string, 0, len(colors))
	for _, color := range colors {
		out = append(out, string(color))
	}
	return out
}

// actorOptions returns the shared attribution arguments for mutation tools.
func actorOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("actor_id", mcp.Description("Caller identity recorded on the change event")),
		mcp.WithString("actor_type", mcp.Description("user|agent|system (defaults to agent)"), mcp.Enum("user", "agent", "system")),
	}
}

// newMutationTool builds one tool definition carrying actor arguments.
func newMutationTool(name string, opts ...mcp.ToolOption) mcp.Tool {
	return mcp.NewTool(name, append(opts, actorOptions()...)...)
}

// registerCardTools registers card move and CRUD tools.
func registerCardTools(srv *mcpserver.MCPServer, board common.BoardService) {
	srv.AddTool(
		newMutationTool(
			"dealboard.move_card",
			mcp.WithDescription("Drop one card at a destination slot. source_stage_id and source_index must still describe where the card sits; otherwise the move is rejected as stale."),
			mcp.WithString("card_id", mcp.Required(), mcp.Description("Card identifier")),
			mcp.WithString("source_stage_id", mcp.Required(), mcp.Description("Stage the card was picked up from")),
			mcp.WithNumber("source_index", mcp.Required(), mcp.Description("Index the card was picked up from")),
			mcp.WithString("dest_stage_id", mcp.Required(), mcp.Description("Destination stage")),
			mcp.WithNumber("dest_index", mcp.Required(), mcp.Description("Destination index, interpreted after the card is removed from its source")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				common.MoveCardRequest
				ActorID   string `json:"actor_id"`
				ActorType string `json:"actor_type"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			for _, required := range [][2]string{
				{"card_id", args.CardID},
				{"source_stage_id", args.SourceStageID},
				{"dest_stage_id", args.DestStageID},
			} {
				if strings.TrimSpace(required[1]) == "" {
					return missingArgumentResult(required[0]), nil
				}
			}
			if args.SourceIndex == nil {
				return missingArgumentResult("source_index"), nil
			}
			if args.DestIndex == nil {
				return missingArgumentResult("dest_index"), nil
			}
			res, err := board.MoveCard(withToolActor(ctx, args.ActorID, args.ActorType), args.MoveCardRequest)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonToolResult("move_card", res)
		},
	)

	srv.AddTool(
		newMutationTool(
			"dealboard.add_card",
			mcp.WithDescription("Create one card in a stage. Omit position to append."),
			mcp.WithString("stage_id", mcp.Required(), mcp.Description("Stage identifier")),
			mcp.WithString("title", mcp.Required(), mcp.Description("Deal title")),
			mcp.WithString("id", mcp.Description("Optional card identifier")),
			mcp.WithNumber("position", mcp.Description("Optional insert index")),
			mcp.WithString("company", mcp.Description("Company name")),
			mcp.WithString("contact", mcp.Description("Contact name")),
			mcp.WithArray("tags", mcp.Description("Optional tags"), mcp.WithStringItems()),
			mcp.WithNumber("message_count", mcp.Description("Message count")),
			mcp.WithString("status", mcp.Description("Free-form status")),
			mcp.WithNumber("value_cents", mcp.Description("Deal value in cents")),
			mcp.WithString("priority", mcp.Description("low|medium|high"), mcp.Enum("low", "medium", "high")),
			mcp.WithString("temperature", mcp.Description("cold|warm|hot"), mcp.Enum("cold", "warm", "hot")),
			mcp.WithString("notes", mcp.Description("Markdown notes")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				common.AddCardRequest
				ActorID   string `json:"actor_id"`
				ActorType string `json:"actor_type"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if strings.TrimSpace(args.StageID) == "" {
				return missingArgumentResult("stage_id"), nil
			}
			if strings.TrimSpace(args.Title) == "" {
				return missingArgumentResult("title"), nil
			}
			card, err := board.AddCard(withToolActor(ctx, args.ActorID, args.ActorType), args.AddCardRequest)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonToolResult("add_card", card)
		},
	)

	srv.AddTool(
		newMutationTool(
			"dealboard.update_card",
			mcp.WithDescription("Patch one card. Omitted fields are left unchanged."),
			mcp.WithString("card_id", mcp.Required(), mcp.Description("Card identifier")),
			mcp.WithString("title", mcp.Description("Deal title")),
			mcp.WithString("company", mcp.Description("Company name")),
			mcp.WithString("contact", mcp.Description("Contact name")),
			mcp.WithArray("tags", mcp.Description("Replacement tags"), mcp.WithStringItems()),
			mcp.WithNumber("message_count", mcp.Description("Message count")),
			mcp.WithString("status", mcp.Description("Free-form status")),
			mcp.WithNumber("value_cents", mcp.Description("Deal value in cents")),
			mcp.WithString("priority", mcp.Description("low|medium|high"), mcp.Enum("low", "medium", "high")),
			mcp.WithString("temperature", mcp.Description("cold|warm|hot"), mcp.Enum("cold", "warm", "hot")),
			mcp.WithString("notes", mcp.Description("Markdown notes")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				common.UpdateCardRequest
				ActorID   string `json:"actor_id"`
				ActorType string `json:"actor_type"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if strings.TrimSpace(args.CardID) == "" {
				return missingArgumentResult("card_id"), nil
			}
			card, err := board.UpdateCard(withToolActor(ctx, args.ActorID, args.ActorType), args.UpdateCardRequest)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonToolResult("update_card", card)
		},
	)

	srv.AddTool(
		newMutationTool(
			"dealboard.delete_card",
			mcp.WithDescription("Remove one card from the board."),
			mcp.WithString("card_id", mcp.Required(), mcp.Description("Card identifier")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			cardID, err := req.RequireString("card_id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			ctx = withToolActor(ctx, req.GetString("actor_id", ""), req.GetString("actor_type", ""))
			card, err := board.DeleteCard(ctx, cardID)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonToolResult("delete_card", card)
		},
	)
}

// registerStageTools registers pipeline rename, stage CRUD and ordering tools.
func registerStageTools(srv *mcpserver.MCPServer, board common.BoardService) {
	srv.AddTool(
		newMutationTool(
			"dealboard.rename_pipeline",
			mcp.WithDescription("Rename the pipeline shown above the board."),
			mcp.WithString("name", mcp.Required(), mcp.Description("New pipeline name")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				common.RenamePipelineRequest
				ActorID   string `json:"actor_id"`
				ActorType string `json:"actor_type"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if strings.TrimSpace(args.Name) == "" {
				return missingArgumentResult("name"), nil
			}
			pipeline, err := board.RenamePipeline(withToolActor(ctx, args.ActorID, args.ActorType), args.RenamePipelineRequest)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonToolResult("rename_pipeline", pipeline)
		},
	)

	srv.AddTool(
		newMutationTool(
			"dealboard.add_stage",
			mcp.WithDescription("Create one empty stage. Omit position to append."),
			mcp.WithString("title", mcp.Required(), mcp.Description("Stage title")),
			mcp.WithString("id", mcp.Description("Optional stage identifier (derived from the title when omitted)")),
			mcp.WithString("color", mcp.Description("Stage color"), mcp.Enum(colorValues()...)),
			mcp.WithNumber("position", mcp.Description("Optional insert index")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				common.AddStageRequest
				ActorID   string `json:"actor_id"`
				ActorType string `json:"actor_type"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if strings.TrimSpace(args.Title) == "" {
				return missingArgumentResult("title"), nil
			}
			stage, err := board.AddStage(withToolActor(ctx, args.ActorID, args.ActorType), args.AddStageRequest)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonToolResult("add_stage", stage)
		},
	)

	srv.AddTool(
		newMutationTool(
			"dealboard.edit_stage",
			mcp.WithDescription("Change one stage's title or color. Cards are untouched."),
			mcp.WithString("stage_id", mcp.Required(), mcp.Description("Stage identifier")),
			mcp.WithString("title", mcp.Description("New title")),
			mcp.WithString("color", mcp.Description("New color"), mcp.Enum(colorValues()...)),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				common.EditStageRequest
				ActorID   string `json:"actor_id"`
				ActorType string `json:"actor_type"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if strings.TrimSpace(args.StageID) == "" {
				return missingArgumentResult("stage_id"), nil
			}
			stage, err := board.EditStage(withToolActor(ctx, args.ActorID, args.ActorType), args.EditStageRequest)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonToolResult("edit_stage", stage)
		},
	)

	srv.AddTool(
		newMutationTool(
			"dealboard.reorder_stages",
			mcp.WithDescription("Replace the stage order. order must list every stage id exactly once."),
			mcp.WithArray("order", mcp.Required(), mcp.Description("Stage ids in the new display order"), mcp.WithStringItems()),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				common.ReorderStagesRequest
				ActorID   string `json:"actor_id"`
				ActorType string `json:"actor_type"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if len(args.Order) == 0 {
				return missingArgumentResult("order"), nil
			}
			view, err := board.ReorderStages(withToolActor(ctx, args.ActorID, args.ActorType), args.ReorderStagesRequest)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonToolResult("reorder_stages", view)
		},
	)

	srv.AddTool(
		newMutationTool(
			"dealboard.delete_stage",
			mcp.WithDescription("Delete one stage. mode require_empty refuses when cards remain, reassign moves them to target_stage_id, drop_cards deletes them."),
			mcp.WithString("stage_id", mcp.Required(), mcp.Description("Stage identifier")),
			mcp.WithString("mode", mcp.Description("Delete policy (defaults to the configured policy)"), mcp.Enum("require_empty", "reassign", "drop_cards")),
			mcp.WithString("target_stage_id", mcp.Description("Destination stage for mode=reassign")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var args struct {
				common.DeleteStageRequest
				ActorID   string `json:"actor_id"`
				ActorType string `json:"actor_type"`
			}
			if err := req.BindArguments(&args); err != nil {
				return invalidRequestToolResult(err), nil
			}
			if strings.TrimSpace(args.StageID) == "" {
				return missingArgumentResult("stage_id"), nil
			}
			res, err := board.DeleteStage(withToolActor(ctx, args.ActorID, args.ActorType), args.DeleteStageRequest)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonToolResult("delete_stage", res)
		},
	)
}
