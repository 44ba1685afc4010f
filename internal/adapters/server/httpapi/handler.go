// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hylla/dealboard/internal/adapters/server/common"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// ActorHeader names the request header that attributes mutations to a caller.
const ActorHeader = "X-Dealboard-Actor"

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	board common.BoardService
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter over a board service.
func NewHandler(board common.BoardService) *Handler {
	return &Handler{board: board}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.board == nil {
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: "board service is not configured",
		})
		return
	}
	if actor := strings.TrimSpace(r.Header.Get(ActorHeader)); actor != "" {
		r = r.WithContext(common.WithActor(r.Context(), actor, "user"))
	}

	path := normalizePath(r.URL.Path)
	switch {
	case path == "board":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleGetBoard(w, r)
	case path == "pipeline":
		if r.Method != http.MethodPatch {
			writeMethodNotAllowed(w, http.MethodPatch)
			return
		}
		h.handleRenamePipeline(w, r)
	case path == "summary":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleSummary(w, r)
	case path == "events":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListEvents(w, r)
	case path == "cards":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleAddCard(w, r)
	case path == "cards/move":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleMoveCard(w, r)
	case path == "stages":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleAddStage(w, r)
	case path == "stages/order":
		if r.Method != http.MethodPut {
			writeMethodNotAllowed(w, http.MethodPut)
			return
		}
		h.handleReorderStages(w, r)
	default:
		if cardID, ok := resolveItemID(path, "cards/"); ok {
			switch r.Method {
			case http.MethodPatch:
				h.handleUpdateCard(w, r, cardID)
			case http.MethodDelete:
				h.handleDeleteCard(w, r, cardID)
			default:
				writeMethodNotAllowed(w, http.MethodPatch, http.MethodDelete)
			}
			return
		}
		if stageID, ok := resolveItemID(path, "stages/"); ok {
			switch r.Method {
			case http.MethodPatch:
				h.handleEditStage(w, r, stageID)
			case http.MethodDelete:
				h.handleDeleteStage(w, r, stageID)
			default:
				writeMethodNotAllowed(w, http.MethodPatch, http.MethodDelete)
			}
			return
		}
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	}
}

// handleGetBoard serves GET `/board?priority=&temperature=`.
func (h *Handler) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	board, err := h.board.GetBoard(r.Context(), common.BoardFilter{
		Priority:    strings.TrimSpace(query.Get("priority")),
		Temperature: strings.TrimSpace(query.Get("temperature")),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// handleRenamePipeline serves PATCH `/pipeline`.
func (h *Handler) handleRenamePipeline(w http.ResponseWriter, r *http.Request) {
	var req common.RenamePipelineRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	pipeline, err := h.board.RenamePipeline(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pipeline)
}

// handleSummary serves GET `/summary`.
func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.board.Summary(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleListEvents serves GET `/events?limit=`.
func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: "limit must be a non-negative integer",
			})
			return
		}
		limit = parsed
	}
	events, err := h.board.ListEvents(r.Context(), limit)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
	})
}

// handleMoveCard serves POST `/cards/move`.
func (h *Handler) handleMoveCard(w http.ResponseWriter, r *http.Request) {
	var req common.MoveCardRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	res, err := h.board.MoveCard(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleAddCard serves POST `/cards`.
func (h *Handler) handleAddCard(w http.ResponseWriter, r *http.Request) {
	var req common.AddCardRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	card, err := h.board.AddCard(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

// handleUpdateCard serves PATCH `/cards/{id}`.
func (h *Handler) handleUpdateCard(w http.ResponseWriter, r *http.Request, cardID string) {
	var req common.UpdateCardRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.CardID = cardID
	card, err := h.board.UpdateCard(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// handleDeleteCard serves DELETE `/cards/{id}`.
func (h *Handler) handleDeleteCard(w http.ResponseWriter, r *http.Request, cardID string) {
	card, err := h.board.DeleteCard(r.Context(), cardID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// handleAddStage serves POST `/stages`.
func (h *Handler) handleAddStage(w http.ResponseWriter, r *http.Request) {
	var req common.AddStageRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	stage, err := h.board.AddStage(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stage)
}

// handleEditStage serves PATCH `/stages/{id}`.
func (h *Handler) handleEditStage(w http.ResponseWriter, r *http.Request, stageID string) {
	var req common.EditStageRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.StageID = stageID
	stage, err := h.board.EditStage(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stage)
}

// handleDeleteStage serves DELETE `/stages/{id}` with an optional policy body.
func (h *Handler) handleDeleteStage(w http.ResponseWriter, r *http.Request, stageID string) {
	var req common.DeleteStageRequest
	if err := decodeOptionalJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.StageID = stageID
	res, err := h.board.DeleteStage(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleReorderStages serves PUT `/stages/order`.
func (h *Handler) handleReorderStages(w http.ResponseWriter, r *http.Request) {
	var req common.ReorderStagesRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	board, err := h.board.ReorderStages(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// resolveItemID parses `{prefix}{id}` and returns `{id}`.
func resolveItemID(path, prefix string) (string, bool) {
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	id := strings.TrimSpace(strings.TrimPrefix(path, prefix))
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrStaleMove):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "stale_move",
			Message: err.Error(),
			Hint:    "Reload the board and retry the move from the card's current slot.",
		})
	case errors.Is(err, common.ErrStageNotEmpty):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "stage_not_empty",
			Message: err.Error(),
			Hint:    "Pass mode=reassign with target_stage_id, or mode=drop_cards.",
		})
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "conflict",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, APIError{
			Code:    "service_unavailable",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}

// decodeOptionalJSONBody decodes one optional JSON body and ignores empty payloads.
func decodeOptionalJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(out)
	if err == nil {
		select {
		case <-ctx.Done():
			return fmt.Errorf("request canceled: %w", ctx.Err())
		default:
			return nil
		}
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
}
