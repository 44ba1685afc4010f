// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"

	"github.com/hylla/dealboard/internal/domain"
)

// ErrInvalidRequest reports malformed or rejected board input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrStaleMove reports a move whose source slot no longer holds the dragged card.
var ErrStaleMove = errors.New("stale move")

// ErrStageNotEmpty reports a delete that the chosen policy refused because of remaining cards.
var ErrStageNotEmpty = errors.New("stage not empty")

// ErrConflict reports duplicate identifiers.
var ErrConflict = errors.New("conflict")

// ErrUnavailable reports a board service that is not configured or not loaded.
var ErrUnavailable = errors.New("board service unavailable")

// BoardService is the transport-facing board contract shared by REST and MCP.
type BoardService interface {
	GetBoard(context.Context, BoardFilter) (BoardView, error)
	Summary(context.Context) (domain.Summary, error)
	RenamePipeline(context.Context, RenamePipelineRequest) (PipelineView, error)
	ListEvents(context.Context, int) ([]domain.ChangeEvent, error)
	MoveCard(context.Context, MoveCardRequest) (domain.MoveResult, error)
	AddCard(context.Context, AddCardRequest) (CardView, error)
	UpdateCard(context.Context, UpdateCardRequest) (domain.Card, error)
	DeleteCard(context.Context, string) (domain.Card, error)
	AddStage(context.Context, AddStageRequest) (domain.Stage, error)
	EditStage(context.Context, EditStageRequest) (domain.Stage, error)
	ReorderStages(context.Context, ReorderStagesRequest) (BoardView, error)
	DeleteStage(context.Context, DeleteStageRequest) (domain.DeleteStageResult, error)
}

// BoardView is one read of the whole board. Under a filter, stages hold only matching cards
// while Revision still fingerprints the unfiltered board.
type BoardView struct {
	Pipeline       string         `json:"pipeline"`
	Revision       string         `json:"revision"`
	Order          []string       `json:"order"`
	Filter         *BoardFilter   `json:"filter,omitempty"`
	PriorityCounts map[string]int `json:"priority_counts"`
	Stages         []StageView    `json:"stages"`
}

// BoardFilter narrows a board read to cards with the given priority and temperature.
// Empty fields match every card.
type BoardFilter struct {
	Priority    string `json:"priority,omitempty"`
	Temperature string `json:"temperature,omitempty"`
}

// RenamePipelineRequest sets the pipeline name.
type RenamePipelineRequest struct {
	Name string `json:"name"`
}

// PipelineView reports the pipeline name after a rename.
type PipelineView struct {
	Name string `json:"name"`
}

// StageView is one stage with derived figures.
type StageView struct {
	domain.Stage
	Count      int   `json:"count"`
	ValueCents int64 `json:"value_cents"`
}

// CardView is one card together with its slot.
type CardView struct {
	Card     domain.Card         `json:"card"`
	Location domain.CardLocation `json:"location"`
}

// MoveCardRequest describes one drop: the picked-up card, where it was, and where it lands.
// Both indexes are required; a missing index is rejected rather than read as zero.
type MoveCardRequest struct {
	CardID        string `json:"card_id"`
	SourceStageID string `json:"source_stage_id"`
	SourceIndex   *int   `json:"source_index"`
	DestStageID   string `json:"dest_stage_id"`
	DestIndex     *int   `json:"dest_index"`
}

// AddCardRequest creates one card. A nil Position appends.
type AddCardRequest struct {
	StageID      string   `json:"stage_id"`
	Position     *int     `json:"position,omitempty"`
	ID           string   `json:"id,omitempty"`
	Title        string   `json:"title"`
	Company      string   `json:"company,omitempty"`
	Contact      string   `json:"contact,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	MessageCount int      `json:"message_count,omitempty"`
	Status       string   `json:"status,omitempty"`
	ValueCents   int64    `json:"value_cents,omitempty"`
	Priority     string   `json:"priority,omitempty"`
	Temperature  string   `json:"temperature,omitempty"`
	Notes        string   `json:"notes,omitempty"`
}

// UpdateCardRequest patches one card. Nil fields are left unchanged.
type UpdateCardRequest struct {
	CardID       string    `json:"card_id,omitempty"`
	Title        *string   `json:"title,omitempty"`
	Company      *string   `json:"company,omitempty"`
	Contact      *string   `json:"contact,omitempty"`
	Tags         *[]string `json:"tags,omitempty"`
	MessageCount *int      `json:"message_count,omitempty"`
	Status       *string   `json:"status,omitempty"`
	ValueCents   *int64    `json:"value_cents,omitempty"`
	Priority     *string   `json:"priority,omitempty"`
	Temperature  *string   `json:"temperature,omitempty"`
	Notes        *string   `json:"notes,omitempty"`
}

// AddStageRequest creates one empty stage. A nil Position appends.
type AddStageRequest struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Color    string `json:"color,omitempty"`
	Position *int   `json:"position,omitempty"`
}

// EditStageRequest patches stage metadata.
type EditStageRequest struct {
	StageID string  `json:"stage_id,omitempty"`
	Title   *string `json:"title,omitempty"`
	Color   *string `json:"color,omitempty"`
}

// ReorderStagesRequest carries the full new stage order.
type ReorderStagesRequest struct {
	Order []string `json:"order"`
}

// DeleteStageRequest deletes one stage. An empty mode uses the configured default policy.
type DeleteStageRequest struct {
	StageID       string `json:"stage_id,omitempty"`
	Mode          string `json:"mode,omitempty"`
	TargetStageID string `json:"target_stage_id,omitempty"`
}
