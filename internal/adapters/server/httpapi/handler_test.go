package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hylla/dealboard/internal/adapters/server/common"
	"github.com/hylla/dealboard/internal/adapters/storage/sqlite"
	"github.com/hylla/dealboard/internal/app"
	"github.com/hylla/dealboard/internal/domain"
)

// stubBoardService provides deterministic board responses for handler tests.
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
	lastStage   common.AddStageRequest
	lastEdit    common.EditStageRequest
	lastReorder common.ReorderStagesRequest
	lastDropped common.DeleteStageRequest
	lastActor   app.MutationActor
}

// GetBoard records the filter and returns the configured board.
func (s *stubBoardService) GetBoard(_ context.Context, filter common.BoardFilter) (common.BoardView, error) {
	s.lastFilter = filter
	return s.board, s.err
}

// RenamePipeline records the request.
func (s *stubBoardService) RenamePipeline(_ context.Context, req common.RenamePipelineRequest) (common.PipelineView, error) {
	s.lastRename = req
	return common.PipelineView{Name: req.Name}, s.err
}

// Summary returns the configured summary.
func (s *stubBoardService) Summary(context.Context) (domain.Summary, error) {
	return s.summary, s.err
}

// ListEvents records the limit and returns configured events.
func (s *stubBoardService) ListEvents(_ context.Context, limit int) ([]domain.ChangeEvent, error) {
	s.lastLimit = limit
	return s.events, s.err
}

// MoveCard records the request and actor.
func (s *stubBoardService) MoveCard(ctx context.Context, req common.MoveCardRequest) (domain.MoveResult, error) {
	s.lastMove = req
	s.lastActor, _ = app.MutationActorFromContext(ctx)
	return s.move, s.err
}

// AddCard records the request.
func (s *stubBoardService) AddCard(_ context.Context, req common.AddCardRequest) (common.CardView, error) {
	s.lastAdd = req
	return common.CardView{Card: s.card, Location: domain.CardLocation{StageID: req.StageID}}, s.err
}

// UpdateCard records the request.
func (s *stubBoardService) UpdateCard(_ context.Context, req common.UpdateCardRequest) (domain.Card, error) {
	s.lastUpdate = req
	return s.card, s.err
}

// DeleteCard records the card id.
func (s *stubBoardService) DeleteCard(_ context.Context, cardID string) (domain.Card, error) {
	s.lastDelete = cardID
	return s.card, s.err
}

// AddStage records the request.
func (s *stubBoardService) AddStage(_ context.Context, req common.AddStageRequest) (domain.Stage, error) {
	s.lastStage = req
	return s.stage, s.err
}

// EditStage records the request.
func (s *stubBoardService) EditStage(_ context.Context, req common.EditStageRequest) (domain.Stage, error) {
	s.lastEdit = req
	return s.stage, s.err
}

// ReorderStages records the request.
func (s *stubBoardService) ReorderStages(_ context.Context, req common.ReorderStagesRequest) (common.BoardView, error) {
	s.lastReorder = req
	return s.board, s.err
}

// DeleteStage records the request.
func (s *stubBoardService) DeleteStage(_ context.Context, req common.DeleteStageRequest) (domain.DeleteStageResult, error) {
	s.lastDropped = req
	return s.deleted, s.err
}

// decodeBody decodes one JSON response body into T.
func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response body: %v (body=%s)", err, rr.Body.String())
	}
	return out
}

// serve runs one request through a handler and returns the recorder.
func serve(handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// TestHandlerGetBoard verifies board reads return the configured view.
func TestHandlerGetBoard(t *testing.T) {
	stub := &stubBoardService{board: common.BoardView{
		Revision: "abc123",
		Order:    []string{"lead", "won"},
		Stages: []common.StageView{
			{Stage: domain.Stage{ID: "lead", Title: "Lead"}, Count: 2, ValueCents: 1500},
			{Stage: domain.Stage{ID: "won", Title: "Won"}},
		},
	}}
	rr := serve(NewHandler(stub), http.MethodGet, "/board", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	got := decodeBody[common.BoardView](t, rr)
	if got.Revision != "abc123" || len(got.Stages) != 2 || got.Stages[0].Count != 2 || got.Stages[0].ValueCents != 1500 {
		t.Fatalf("unexpected board %#v", got)
	}
	if stub.lastFilter != (common.BoardFilter{}) {
		t.Fatalf("unfiltered read passed filter %#v", stub.lastFilter)
	}

	rr = serve(NewHandler(stub), http.MethodGet, "/board?priority=high&temperature=%20hot%20", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("filtered status = %d, want %d", rr.Code, http.StatusOK)
	}
	if want := (common.BoardFilter{Priority: "high", Temperature: "hot"}); stub.lastFilter != want {
		t.Fatalf("filter = %#v, want %#v", stub.lastFilter, want)
	}
}

// TestHandlerRenamePipeline verifies PATCH /pipeline decoding and method checks.
func TestHandlerRenamePipeline(t *testing.T) {
	stub := &stubBoardService{}
	handler := NewHandler(stub)

	rr := serve(handler, http.MethodPatch, "/pipeline", `{"name":"Enterprise"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body=%s)", rr.Code, http.StatusOK, rr.Body.String())
	}
	if stub.lastRename.Name != "Enterprise" {
		t.Fatalf("request = %#v", stub.lastRename)
	}
	if got := decodeBody[common.PipelineView](t, rr); got.Name != "Enterprise" {
		t.Fatalf("unexpected response %#v", got)
	}

	rr = serve(handler, http.MethodGet, "/pipeline", "")
	if rr.Code != http.StatusMethodNotAllowed || rr.Header().Get("Allow") != http.MethodPatch {
		t.Fatalf("status = %d allow = %q", rr.Code, rr.Header().Get("Allow"))
	}
}

// TestHandlerMoveCard verifies move payload decoding and actor attribution.
func TestHandlerMoveCard(t *testing.T) {
	stub := &stubBoardService{move: domain.MoveResult{
		Card:    domain.Card{ID: "c1"},
		From:    domain.CardLocation{StageID: "lead", Index: 0},
		To:      domain.CardLocation{StageID: "won", Index: 1},
		Changed: true,
	}}
	req := httptest.NewRequest(http.MethodPost, "/cards/move", strings.NewReader(
		`{"card_id":"c1","source_stage_id":"lead","source_index":0,"dest_stage_id":"won","dest_index":1}`,
	))
	req.Header.Set(ActorHeader, "ana")
	rr := httptest.NewRecorder()
	NewHandler(stub).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body=%s)", rr.Code, http.StatusOK, rr.Body.String())
	}
	got := stub.lastMove
	if got.CardID != "c1" || got.SourceStageID != "lead" || got.DestStageID != "won" {
		t.Fatalf("request = %#v", got)
	}
	if got.SourceIndex == nil || *got.SourceIndex != 0 || got.DestIndex == nil || *got.DestIndex != 1 {
		t.Fatalf("indexes = %v / %v, want 0 / 1", got.SourceIndex, got.DestIndex)
	}
	if stub.lastActor.ActorID != "ana" || stub.lastActor.ActorType != app.ActorTypeUser {
		t.Fatalf("actor = %#v, want ana/user", stub.lastActor)
	}
	res := decodeBody[domain.MoveResult](t, rr)
	if res.To.StageID != "won" || res.To.Index != 1 || !res.Changed {
		t.Fatalf("unexpected move result %#v", res)
	}
}

// TestHandlerCardRoutes verifies add, patch and delete card routes.
func TestHandlerCardRoutes(t *testing.T) {
	stub := &stubBoardService{card: domain.Card{ID: "c9", Title: "Globex"}}
	handler := NewHandler(stub)

	rr := serve(handler, http.MethodPost, "/cards", `{"stage_id":"lead","title":"Globex","value_cents":2500,"tags":["vip"]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add status = %d, want %d", rr.Code, http.StatusCreated)
	}
	if stub.lastAdd.StageID != "lead" || stub.lastAdd.ValueCents != 2500 || len(stub.lastAdd.Tags) != 1 {
		t.Fatalf("unexpected add request %#v", stub.lastAdd)
	}

	rr = serve(handler, http.MethodPatch, "/cards/c9", `{"priority":"high","message_count":4}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("patch status = %d, want %d", rr.Code, http.StatusOK)
	}
	if stub.lastUpdate.CardID != "c9" || stub.lastUpdate.Priority == nil || *stub.lastUpdate.Priority != "high" {
		t.Fatalf("unexpected update request %#v", stub.lastUpdate)
	}
	if stub.lastUpdate.Title != nil || stub.lastUpdate.MessageCount == nil || *stub.lastUpdate.MessageCount != 4 {
		t.Fatalf("unexpected patch fields %#v", stub.lastUpdate)
	}

	rr = serve(handler, http.MethodDelete, "/cards/c9", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want %d", rr.Code, http.StatusOK)
	}
	if stub.lastDelete != "c9" {
		t.Fatalf("deleted = %q, want c9", stub.lastDelete)
	}
}

// TestHandlerStageRoutes verifies stage create, edit, reorder and delete routes.
func TestHandlerStageRoutes(t *testing.T) {
	stub := &stubBoardService{
		stage:   domain.Stage{ID: "demo", Title: "Demo"},
		board:   common.BoardView{Order: []string{"won", "lead"}},
		deleted: domain.DeleteStageResult{Stage: domain.Stage{ID: "lead"}, TargetID: "won"},
	}
	handler := NewHandler(stub)

	rr := serve(handler, http.MethodPost, "/stages", `{"title":"Demo","color":"purple","position":1}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add stage status = %d, want %d", rr.Code, http.StatusCreated)
	}
	if stub.lastStage.Title != "Demo" || stub.lastStage.Position == nil || *stub.lastStage.Position != 1 {
		t.Fatalf("unexpected add stage request %#v", stub.lastStage)
	}

	rr = serve(handler, http.MethodPatch, "/stages/demo", `{"color":"indigo"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("edit stage status = %d, want %d", rr.Code, http.StatusOK)
	}
	if stub.lastEdit.StageID != "demo" || stub.lastEdit.Color == nil || *stub.lastEdit.Color != "indigo" || stub.lastEdit.Title != nil {
		t.Fatalf("unexpected edit request %#v", stub.lastEdit)
	}

	rr = serve(handler, http.MethodPut, "/stages/order", `{"order":["won","lead"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("reorder status = %d, want %d", rr.Code, http.StatusOK)
	}
	if len(stub.lastReorder.Order) != 2 || stub.lastReorder.Order[0] != "won" {
		t.Fatalf("unexpected reorder request %#v", stub.lastReorder)
	}

	rr = serve(handler, http.MethodDelete, "/stages/lead", `{"mode":"reassign","target_stage_id":"won"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete stage status = %d, want %d", rr.Code, http.StatusOK)
	}
	if stub.lastDropped.StageID != "lead" || stub.lastDropped.Mode != "reassign" || stub.lastDropped.TargetStageID != "won" {
		t.Fatalf("unexpected delete request %#v", stub.lastDropped)
	}

	rr = serve(handler, http.MethodDelete, "/stages/lead", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete stage without body status = %d, want %d", rr.Code, http.StatusOK)
	}
	if stub.lastDropped.Mode != "" {
		t.Fatalf("expected empty mode for bodiless delete, got %q", stub.lastDropped.Mode)
	}
}

// TestHandlerListEvents verifies limit parsing.
func TestHandlerListEvents(t *testing.T) {
	stub := &stubBoardService{events: []domain.ChangeEvent{{ID: 3, Operation: domain.ChangeOperationCardMove}}}
	handler := NewHandler(stub)

	rr := serve(handler, http.MethodGet, "/events?limit=5", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if stub.lastLimit != 5 {
		t.Fatalf("limit = %d, want 5", stub.lastLimit)
	}
	got := decodeBody[struct {
		Events []domain.ChangeEvent `json:"events"`
	}](t, rr)
	if len(got.Events) != 1 || got.Events[0].ID != 3 {
		t.Fatalf("unexpected events %#v", got)
	}

	rr = serve(handler, http.MethodGet, "/events?limit=abc", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// TestHandlerErrorMapping verifies transport errors map to status codes and error codes.
func TestHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "stale", err: common.ErrStaleMove, wantStatus: http.StatusConflict, wantCode: "stale_move"},
		{name: "not empty", err: common.ErrStageNotEmpty, wantStatus: http.StatusConflict, wantCode: "stage_not_empty"},
		{name: "conflict", err: common.ErrConflict, wantStatus: http.StatusConflict, wantCode: "conflict"},
		{name: "not found", err: common.ErrNotFound, wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{name: "invalid", err: common.ErrInvalidRequest, wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "unavailable", err: common.ErrUnavailable, wantStatus: http.StatusServiceUnavailable, wantCode: "service_unavailable"},
		{name: "wrapped", err: fmt.Errorf("move card: %w", errors.Join(common.ErrStaleMove, errors.New("slot moved"))), wantStatus: http.StatusConflict, wantCode: "stale_move"},
		{name: "internal", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubBoardService{err: tc.err}
			rr := serve(NewHandler(stub), http.MethodPost, "/cards/move", `{"card_id":"c1","source_stage_id":"lead","dest_stage_id":"won"}`)
			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantStatus)
			}
			got := decodeBody[ErrorEnvelope](t, rr)
			if got.Error.Code != tc.wantCode {
				t.Fatalf("code = %q, want %q", got.Error.Code, tc.wantCode)
			}
		})
	}
}

// TestHandlerRejectsMalformedRequests verifies strict decoding, routing and method checks.
func TestHandlerRejectsMalformedRequests(t *testing.T) {
	handler := NewHandler(&stubBoardService{})
	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
		wantAllow  string
	}{
		{name: "unknown field", method: http.MethodPost, target: "/cards/move", body: `{"card":"c1"}`, wantStatus: http.StatusBadRequest},
		{name: "trailing content", method: http.MethodPost, target: "/cards", body: `{"stage_id":"lead"}{}`, wantStatus: http.StatusBadRequest},
		{name: "empty required body", method: http.MethodPut, target: "/stages/order", body: "", wantStatus: http.StatusBadRequest},
		{name: "bad delete body", method: http.MethodDelete, target: "/stages/lead", body: `{"mode":`, wantStatus: http.StatusBadRequest},
		{name: "wrong method", method: http.MethodPost, target: "/board", wantStatus: http.StatusMethodNotAllowed, wantAllow: http.MethodGet},
		{name: "wrong item method", method: http.MethodGet, target: "/cards/c1", wantStatus: http.StatusMethodNotAllowed, wantAllow: "PATCH, DELETE"},
		{name: "nested item", method: http.MethodPatch, target: "/cards/c1/extra", body: `{}`, wantStatus: http.StatusNotFound},
		{name: "unknown route", method: http.MethodGet, target: "/nope", wantStatus: http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := serve(handler, tc.method, tc.target, tc.body)
			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body=%s)", rr.Code, tc.wantStatus, rr.Body.String())
			}
			if tc.wantAllow != "" && rr.Header().Get("Allow") != tc.wantAllow {
				t.Fatalf("Allow = %q, want %q", rr.Header().Get("Allow"), tc.wantAllow)
			}
		})
	}
}

// TestHandlerNilService verifies an unconfigured handler fails closed.
func TestHandlerNilService(t *testing.T) {
	rr := serve(NewHandler(nil), http.MethodGet, "/board", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
}

// TestHandlerOverLiveService verifies index validation, filtering and renaming through the real adapter.
func TestHandlerOverLiveService(t *testing.T) {
	ctx := context.Background()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	svc, err := app.Open(ctx, repo, nil, nil, app.ServiceConfig{SeedDemoCards: true})
	if err != nil {
		t.Fatalf("app.Open() error = %v", err)
	}
	handler := NewHandler(common.NewAppServiceAdapter(svc))

	rr := serve(handler, http.MethodPost, "/cards/move", `{"card_id":"demo-acme-renewal","source_stage_id":"lead","dest_stage_id":"won","dest_index":0}`)
	if rr.Code != http.StatusBadRequest || decodeBody[ErrorEnvelope](t, rr).Error.Code != "invalid_request" {
		t.Fatalf("move without source_index: status = %d", rr.Code)
	}
	board, _ := svc.Board(ctx)
	if _, loc, _ := board.Card("demo-acme-renewal"); loc.StageID != "lead" || loc.Index != 0 {
		t.Fatalf("rejected move changed the board: %#v", loc)
	}

	rr = serve(handler, http.MethodGet, "/board?priority=low", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("filtered board status = %d (body=%s)", rr.Code, rr.Body.String())
	}
	view := decodeBody[common.BoardView](t, rr)
	total := 0
	for _, stage := range view.Stages {
		for _, card := range stage.Cards {
			if card.Priority != domain.PriorityLow {
				t.Fatalf("filter leaked card %s with priority %s", card.ID, card.Priority)
			}
			total++
		}
	}
	if total != 1 || len(view.Stages) != len(view.Order) {
		t.Fatalf("unexpected filtered view: %d cards over %d stages", total, len(view.Stages))
	}

	rr = serve(handler, http.MethodGet, "/board?priority=urgent", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad filter status = %d", rr.Code)
	}

	rr = serve(handler, http.MethodPatch, "/pipeline", `{"name":"Renewals"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("rename status = %d (body=%s)", rr.Code, rr.Body.String())
	}
	if sum, _ := svc.Summary(ctx); sum.Pipeline != "Renewals" {
		t.Fatalf("pipeline = %q, want Renewals", sum.Pipeline)
	}
}
