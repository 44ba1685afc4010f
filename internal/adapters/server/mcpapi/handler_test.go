package mcpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/hylla/dealboard/internal/adapters/server/common"
	"github.com/hylla/dealboard/internal/app"
	"github.com/hylla/dealboard/internal/domain"
	"github.com/mark3labs/mcp-go/mcp"
)

// stubBoardService provides deterministic board responses for MCP tool tests.
type stubBoardService struct {
	board   common.BoardView
	summary domain.Summary
	events  []domain.ChangeEvent
	move    domain.MoveResult
	card    domain.Card
	stage   domain.Stage
	deleted domain.DeleteStageResult
	err     error

	lastLimit   int
	lastFilter  common.BoardFilter
	lastRename  common.RenamePipelineRequest
	lastMove    common.MoveCardRequest
	lastAdd     common.AddCardRequest
	lastUpdate  common.UpdateCardRequest
	lastDelete  string
	lastEdit    common.EditStageRequest
	lastReorder common.ReorderStagesRequest
	lastDropped common.DeleteStageRequest
	lastActor   app.MutationActor
}

func (s *stubBoardService) GetBoard(_ context.Context, filter common.BoardFilter) (common.BoardView, error) {
	s.lastFilter = filter
	return s.board, s.err
}

func (s *stubBoardService) RenamePipeline(ctx context.Context, req common.RenamePipelineRequest) (common.PipelineView, error) {
	s.lastRename = req
	s.lastActor, _ = app.MutationActorFromContext(ctx)
	return common.PipelineView{Name: req.Name}, s.err
}

func (s *stubBoardService) Summary(context.Context) (domain.Summary, error) {
	return s.summary, s.err
}

func (s *stubBoardService) ListEvents(_ context.Context, limit int) ([]domain.ChangeEvent, error) {
	s.lastLimit = limit
	return s.events, s.err
}

func (s *stubBoardService) MoveCard(ctx context.Context, req common.MoveCardRequest) (domain.MoveResult, error) {
	s.lastMove = req
	s.lastActor, _ = app.MutationActorFromContext(ctx)
	return s.move, s.err
}

func (s *stubBoardService) AddCard(ctx context.Context, req common.AddCardRequest) (common.CardView, error) {
	s.lastAdd = req
	s.lastActor, _ = app.MutationActorFromContext(ctx)
	return common.CardView{Card: s.card, Location: domain.CardLocation{StageID: req.StageID}}, s.err
}

func (s *stubBoardService) UpdateCard(_ context.Context, req common.UpdateCardRequest) (domain.Card, error) {
	s.lastUpdate = req
	return s.card, s.err
}

func (s *stubBoardService) DeleteCard(_ context.Context, cardID string) (domain.Card, error) {
	s.lastDelete = cardID
	return s.card, s.err
}

func (s *stubBoardService) AddStage(_ context.Context, _ common.AddStageRequest) (domain.Stage, error) {
	return s.stage, s.err
}

func (s *stubBoardService) EditStage(_ context.Context, req common.EditStageRequest) (domain.Stage, error) {
	s.lastEdit = req
	return s.stage, s.err
}

func (s *stubBoardService) ReorderStages(_ context.Context, req common.ReorderStagesRequest) (common.BoardView, error) {
	s.lastReorder = req
	return s.board, s.err
}

func (s *stubBoardService) DeleteStage(_ context.Context, req common.DeleteStageRequest) (domain.DeleteStageResult, error) {
	s.lastDropped = req
	return s.deleted, s.err
}

// jsonRPCResponse models minimal JSON-RPC response fields used in MCP adapter tests.
type jsonRPCResponse struct {
	ID     float64        `json:"id"`
	Result map[string]any `json:"result"`
}

// callToolRequest constructs one deterministic tools/call JSON-RPC request payload.
func callToolRequest(id int, toolName string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": arguments,
		},
	}
}

// toolResultText decodes the first text entry from one tool-call result payload.
func toolResultText(t *testing.T, result map[string]any) string {
	t.Helper()
	contentRaw, ok := result["content"].([]any)
	if !ok || len(contentRaw) == 0 {
		t.Fatalf("content missing in tool result: %#v", result)
	}
	first, ok := contentRaw[0].(map[string]any)
	if !ok {
		t.Fatalf("first content entry has unexpected type: %#v", contentRaw[0])
	}
	text, ok := first["text"].(string)
	if !ok {
		t.Fatalf("content text missing in tool result: %#v", first)
	}
	return text
}

// toolResultStructured decodes structuredContent as one map for stable assertions.
func toolResultStructured(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	structured, ok := result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("structuredContent missing in tool result: %#v", result)
	}
	return structured
}

// postJSONRPC sends one JSON-RPC payload and decodes the response body.
func postJSONRPC(t *testing.T, client *http.Client, url string, payload any) (*http.Response, jsonRPCResponse) {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	var decoded jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if err := resp.Body.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return resp, decoded
}

// initializeRequest builds a deterministic MCP initialize request payload.
func initializeRequest() map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": mcp.LATEST_PROTOCOL_VERSION,
			"clientInfo": map[string]any{
				"name":    "dealboard-test",
				"version": "1.0.0",
			},
		},
	}
}

// newTestServer starts one MCP server over a stub and runs initialize.
func newTestServer(t *testing.T, board *stubBoardService) *httptest.Server {
	t.Helper()
	handler, err := NewHandler(Config{}, board)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	_, _ = postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	return server
}

// TestHandlerUsesStatelessTransport verifies MCP transport does not issue session ids.
func TestHandlerUsesStatelessTransport(t *testing.T) {
	handler, err := NewHandler(Config{}, &stubBoardService{})
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	server := httptest.NewServer(handler)
	defer server.Close()

	resp, decoded := postJSONRPC(t, server.Client(), server.URL, initializeRequest())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if decoded.ID != 1 {
		t.Fatalf("id = %v, want 1", decoded.ID)
	}
	if got := resp.Header.Get("Mcp-Session-Id"); got != "" {
		t.Fatalf("Mcp-Session-Id header = %q, want empty (stateless transport)", got)
	}
}

// TestHandlerRegistersBoardTools verifies tool discovery lists every board tool.
func TestHandlerRegistersBoardTools(t *testing.T) {
	server := newTestServer(t, &stubBoardService{})
	_, toolsResp := postJSONRPC(t, server.Client(), server.URL, map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
	})

	toolsRaw, ok := toolsResp.Result["tools"].([]any)
	if !ok {
		t.Fatalf("tools list payload missing tools: %#v", toolsResp.Result)
	}
	toolNames := make([]string, 0, len(toolsRaw))
	for _, toolRaw := range toolsRaw {
		toolMap, ok := toolRaw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := toolMap["name"].(string)
		toolNames = append(toolNames, name)
	}
	for _, required := range []string{
		"dealboard.get_board",
		"dealboard.summary",
		"dealboard.list_events",
		"dealboard.move_card",
		"dealboard.add_card",
		"dealboard.update_card",
		"dealboard.delete_card",
		"dealboard.add_stage",
		"dealboard.edit_stage",
		"dealboard.reorder_stages",
		"dealboard.delete_stage",
		"dealboard.rename_pipeline",
	} {
		if !slices.Contains(toolNames, required) {
			t.Fatalf("tool list missing %q: %#v", required, toolNames)
		}
	}
}

// TestHandlerGetBoardToolCall verifies board reads return structured content.
func TestHandlerGetBoardToolCall(t *testing.T) {
	board := &stubBoardService{board: common.BoardView{
		Revision: "rev-1",
		Order:    []string{"lead"},
		Stages:   []common.StageView{{Stage: domain.Stage{ID: "lead", Title: "Lead"}, Count: 3}},
	}}
	server := newTestServer(t, board)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "dealboard.get_board", map[string]any{}))
	structured := toolResultStructured(t, callResp.Result)
	if structured["revision"] != "rev-1" {
		t.Fatalf("revision = %#v, want rev-1", structured["revision"])
	}
	stages, ok := structured["stages"].([]any)
	if !ok || len(stages) != 1 {
		t.Fatalf("stages = %#v, want one stage", structured["stages"])
	}
	if board.lastFilter != (common.BoardFilter{}) {
		t.Fatalf("unfiltered call passed filter %#v", board.lastFilter)
	}

	_, _ = postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "dealboard.get_board", map[string]any{
		"priority":    "high",
		"temperature": "hot",
	}))
	if want := (common.BoardFilter{Priority: "high", Temperature: "hot"}); board.lastFilter != want {
		t.Fatalf("filter = %#v, want %#v", board.lastFilter, want)
	}
}

// TestHandlerRenamePipelineToolCall verifies rename arguments and attribution reach the service.
func TestHandlerRenamePipelineToolCall(t *testing.T) {
	board := &stubBoardService{}
	server := newTestServer(t, board)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "dealboard.rename_pipeline", map[string]any{
		"name":     "Channel deals",
		"actor_id": "ops-bot",
	}))
	if isError, _ := callResp.Result["isError"].(bool); isError {
		t.Fatalf("isError = true, text = %q", toolResultText(t, callResp.Result))
	}
	if board.lastRename.Name != "Channel deals" || board.lastActor.ActorID != "ops-bot" {
		t.Fatalf("rename = %#v actor = %#v", board.lastRename, board.lastActor)
	}
	if structured := toolResultStructured(t, callResp.Result); structured["name"] != "Channel deals" {
		t.Fatalf("name = %#v", structured["name"])
	}

	_, callResp = postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "dealboard.rename_pipeline", map[string]any{"name": "  "}))
	if isError, _ := callResp.Result["isError"].(bool); !isError {
		t.Fatal("expected blank name to fail")
	}
}

// TestHandlerMoveCardToolCall verifies move arguments and agent attribution reach the service.
func TestHandlerMoveCardToolCall(t *testing.T) {
	board := &stubBoardService{move: domain.MoveResult{
		Card:    domain.Card{ID: "c1"},
		To:      domain.CardLocation{StageID: "won", Index: 2},
		Changed: true,
	}}
	server := newTestServer(t, board)

	_, callResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "dealboard.move_card", map[string]any{
		"card_id":         "c1",
		"source_stage_id": "lead",
		"source_index":    1,
		"dest_stage_id":   "won",
		"dest_index":      2,
		"actor_id":        "closer-bot",
	}))
	if isError, _ := callResp.Result["isError"].(bool); isError {
		t.Fatalf("isError = true, text = %q", toolResultText(t, callResp.Result))
	}
	got := board.lastMove
	if got.CardID != "c1" || got.SourceStageID != "lead" || got.DestStageID != "won" {
		t.Fatalf("request = %#v", got)
	}
	if got.SourceIndex == nil || *got.SourceIndex != 1 || got.DestIndex == nil || *got.DestIndex != 2 {
		t.Fatalf("indexes = %v / %v, want 1 / 2", got.SourceIndex, got.DestIndex)
	}
	if board.lastActor.ActorID != "closer-bot" || board.lastActor.ActorType != app.ActorTypeAgent {
		t.Fatalf("actor = %#v, want closer-bot/agent", board.lastActor)
	}
	structured := toolResultStructured(t, callResp.Result)
	if changed, _ := structured["changed"].(bool); !changed {
		t.Fatalf("changed = %#v, want true", structured["changed"])
	}
}

// TestHandlerMutationToolCalls verifies card and stage mutation tools forward arguments.
func TestHandlerMutationToolCalls(t *testing.T) {
	board := &stubBoardService{
		card:    domain.Card{ID: "c1", Title: "Initech"},
		stage:   domain.Stage{ID: "lead", Title: "Leads"},
		board:   common.BoardView{Order: []string{"won", "lead"}},
		deleted: domain.DeleteStageResult{Stage: domain.Stage{ID: "lead"}},
	}
	server := newTestServer(t, board)
	client := server.Client()

	_, resp := postJSONRPC(t, client, server.URL, callToolRequest(3, "dealboard.add_card", map[string]any{
		"stage_id":    "lead",
		"title":       "Initech",
		"value_cents": 120000,
		"tags":        []string{"enterprise"},
		"actor_id":    "ana",
		"actor_type":  "user",
	}))
	if isError, _ := resp.Result["isError"].(bool); isError {
		t.Fatalf("add_card isError, text = %q", toolResultText(t, resp.Result))
	}
	if board.lastAdd.ValueCents != 120000 || !slices.Equal(board.lastAdd.Tags, []string{"enterprise"}) {
		t.Fatalf("unexpected add request %#v", board.lastAdd)
	}
	if board.lastActor.ActorType != app.ActorTypeUser {
		t.Fatalf("actor type = %q, want user", board.lastActor.ActorType)
	}

	_, _ = postJSONRPC(t, client, server.URL, callToolRequest(4, "dealboard.update_card", map[string]any{
		"card_id":     "c1",
		"temperature": "hot",
	}))
	if board.lastUpdate.CardID != "c1" || board.lastUpdate.Temperature == nil || *board.lastUpdate.Temperature != "hot" || board.lastUpdate.Title != nil {
		t.Fatalf("unexpected update request %#v", board.lastUpdate)
	}

	_, _ = postJSONRPC(t, client, server.URL, callToolRequest(5, "dealboard.delete_card", map[string]any{"card_id": "c1"}))
	if board.lastDelete != "c1" {
		t.Fatalf("deleted = %q, want c1", board.lastDelete)
	}

	_, _ = postJSONRPC(t, client, server.URL, callToolRequest(6, "dealboard.edit_stage", map[string]any{
		"stage_id": "lead",
		"title":    "Leads",
	}))
	if board.lastEdit.StageID != "lead" || board.lastEdit.Title == nil || *board.lastEdit.Title != "Leads" || board.lastEdit.Color != nil {
		t.Fatalf("unexpected edit request %#v", board.lastEdit)
	}

	_, _ = postJSONRPC(t, client, server.URL, callToolRequest(7, "dealboard.reorder_stages", map[string]any{
		"order": []string{"won", "lead"},
	}))
	if !slices.Equal(board.lastReorder.Order, []string{"won", "lead"}) {
		t.Fatalf("unexpected reorder request %#v", board.lastReorder)
	}

	_, _ = postJSONRPC(t, client, server.URL, callToolRequest(8, "dealboard.delete_stage", map[string]any{
		"stage_id":        "lead",
		"mode":            "reassign",
		"target_stage_id": "won",
	}))
	if board.lastDropped.StageID != "lead" || board.lastDropped.Mode != "reassign" || board.lastDropped.TargetStageID != "won" {
		t.Fatalf("unexpected delete request %#v", board.lastDropped)
	}

	_, _ = postJSONRPC(t, client, server.URL, callToolRequest(9, "dealboard.list_events", map[string]any{"limit": 7}))
	if board.lastLimit != 7 {
		t.Fatalf("limit = %d, want 7", board.lastLimit)
	}
}

// TestHandlerToolCallErrorPaths verifies required-arg and mapped-service errors.
func TestHandlerToolCallErrorPaths(t *testing.T) {
	board := &stubBoardService{err: errors.Join(common.ErrStaleMove, errors.New("card moved"))}
	server := newTestServer(t, board)

	_, missingArgResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(3, "dealboard.move_card", map[string]any{
		"card_id":       "c1",
		"dest_stage_id": "won",
	}))
	if isError, _ := missingArgResp.Result["isError"].(bool); !isError {
		t.Fatalf("isError = %v, want true", missingArgResp.Result["isError"])
	}
	if got := toolResultText(t, missingArgResp.Result); !strings.Contains(got, `required argument "source_stage_id" not found`) {
		t.Fatalf("missing arg text = %q", got)
	}

	for id, missing := range map[int]string{5: "source_index", 6: "dest_index"} {
		args := map[string]any{
			"card_id":         "c1",
			"source_stage_id": "lead",
			"source_index":    0,
			"dest_stage_id":   "won",
			"dest_index":      0,
		}
		delete(args, missing)
		board.lastMove = common.MoveCardRequest{}
		_, resp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(id, "dealboard.move_card", args))
		if got := toolResultText(t, resp.Result); !strings.Contains(got, `required argument "`+missing+`" not found`) {
			t.Fatalf("missing %s text = %q", missing, got)
		}
		if board.lastMove.CardID != "" {
			t.Fatalf("move without %s reached the service", missing)
		}
	}

	_, staleResp := postJSONRPC(t, server.Client(), server.URL, callToolRequest(4, "dealboard.move_card", map[string]any{
		"card_id":         "c1",
		"source_stage_id": "lead",
		"source_index":    0,
		"dest_stage_id":   "won",
		"dest_index":      0,
	}))
	if isError, _ := staleResp.Result["isError"].(bool); !isError {
		t.Fatalf("isError = %v, want true", staleResp.Result["isError"])
	}
	if got := toolResultText(t, staleResp.Result); !strings.HasPrefix(got, "stale_move:") {
		t.Fatalf("stale text = %q, want stale_move prefix", got)
	}
}

// TestNewHandlerRequiresBoardService verifies constructor validation.
func TestNewHandlerRequiresBoardService(t *testing.T) {
	handler, err := NewHandler(Config{}, nil)
	if err == nil {
		t.Fatalf("NewHandler() error = nil, want non-nil")
	}
	if handler != nil {
		t.Fatalf("handler = %#v, want nil", handler)
	}
}

// TestNormalizeConfig verifies deterministic config defaults and path normalization.
func TestNormalizeConfig(t *testing.T) {
	cases := []struct {
		name string
		in   Config
		want Config
	}{
		{
			name: "defaults",
			in:   Config{},
			want: Config{ServerName: "dealboard", ServerVersion: "dev", EndpointPath: "/mcp"},
		},
		{
			name: "trimmed values and slash prefix",
			in:   Config{ServerName: " dealboard-server ", ServerVersion: " v1.2.3 ", EndpointPath: "custom/path"},
			want: Config{ServerName: "dealboard-server", ServerVersion: "v1.2.3", EndpointPath: "/custom/path"},
		},
		{
			name: "endpoint trim of repeated slashes",
			in:   Config{ServerName: "dealboard", ServerVersion: "dev", EndpointPath: "///mcp///"},
			want: Config{ServerName: "dealboard", ServerVersion: "dev", EndpointPath: "/mcp"},
		},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeConfig(tt.in); got != tt.want {
				t.Fatalf("normalizeConfig() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

// TestHandlerServeHTTPUnavailable verifies nil handler paths fail closed with 503.
func TestHandlerServeHTTPUnavailable(t *testing.T) {
	cases := []struct {
		name    string
		handler *Handler
	}{
		{name: "nil receiver", handler: nil},
		{name: "missing inner http handler", handler: &Handler{}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(`{}`))
			rec := httptest.NewRecorder()
			tt.handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusServiceUnavailable {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
			}
		})
	}
}

// TestToolResultFromErrorMapping verifies deterministic error-to-tool-result mapping.
func TestToolResultFromErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantPrefix string
	}{
		{name: "nil error", err: nil, wantPrefix: "unknown error"},
		{name: "stale", err: errors.Join(common.ErrStaleMove, errors.New("moved")), wantPrefix: "stale_move:"},
		{name: "not empty", err: errors.Join(common.ErrStageNotEmpty, errors.New("2 cards")), wantPrefix: "stage_not_empty:"},
		{name: "conflict", err: errors.Join(common.ErrConflict, errors.New("dup")), wantPrefix: "conflict:"},
		{name: "invalid", err: errors.Join(common.ErrInvalidRequest, errors.New("bad")), wantPrefix: "invalid_request:"},
		{name: "not found", err: errors.Join(common.ErrNotFound, errors.New("missing")), wantPrefix: "not_found:"},
		{name: "unavailable", err: common.ErrUnavailable, wantPrefix: "service_unavailable:"},
		{name: "internal", err: errors.New("boom"), wantPrefix: "internal_error:"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			result := toolResultFromError(tt.err)
			if !result.IsError {
				t.Fatalf("IsError = false, want true")
			}
			text, ok := result.Content[0].(mcp.TextContent)
			if !ok {
				t.Fatalf("content[0] has unexpected type %T", result.Content[0])
			}
			if !strings.HasPrefix(text.Text, tt.wantPrefix) {
				t.Fatalf("text = %q, want prefix %q", text.Text, tt.wantPrefix)
			}
		})
	}
}
