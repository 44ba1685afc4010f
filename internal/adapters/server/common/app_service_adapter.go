package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/hylla/dealboard/internal/app"
	"github.com/hylla/dealboard/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service board APIs.
type AppServiceAdapter struct {
	service *app.Service
}

var _ BoardService = (*AppServiceAdapter)(nil)

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// WithActor attributes mutations made with ctx to one transport caller.
func WithActor(ctx context.Context, actorID, actorType string) context.Context {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return ctx
	}
	return app.WithMutationActor(ctx, app.MutationActor{
		ActorID:   actorID,
		ActorType: app.ActorType(actorType),
	})
}

// GetBoard returns the board with a content revision, narrowed by filter.
func (a *AppServiceAdapter) GetBoard(ctx context.Context, filter BoardFilter) (BoardView, error) {
	if err := a.ready(); err != nil {
		return BoardView{}, err
	}
	cardFilter, err := domain.CardFilter{
		Priority:    domain.Priority(filter.Priority),
		Temperature: domain.Temperature(filter.Temperature),
	}.Normalize()
	if err != nil {
		return BoardView{}, mapAppError("get board", err)
	}
	board, err := a.service.Board(ctx)
	if err != nil {
		return BoardView{}, mapAppError("get board", err)
	}
	view := boardView(board, board.FilterStages(cardFilter))
	if !cardFilter.IsZero() {
		view.Filter = &BoardFilter{Priority: string(cardFilter.Priority), Temperature: string(cardFilter.Temperature)}
	}
	return view, nil
}

// RenamePipeline sets the pipeline name.
func (a *AppServiceAdapter) RenamePipeline(ctx context.Context, in RenamePipelineRequest) (PipelineView, error) {
	if err := a.ready(); err != nil {
		return PipelineView{}, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return PipelineView{}, fmt.Errorf("name is required: %w", ErrInvalidRequest)
	}
	name, err := a.service.RenamePipeline(ctx, in.Name)
	if err != nil {
		return PipelineView{}, mapAppError("rename pipeline", err)
	}
	return PipelineView{Name: name}, nil
}

// Summary returns pipeline figures.
func (a *AppServiceAdapter) Summary(ctx context.Context) (domain.Summary, error) {
	if err := a.ready(); err != nil {
		return domain.Summary{}, err
	}
	summary, err := a.service.Summary(ctx)
	if err != nil {
		return domain.Summary{}, mapAppError("summary", err)
	}
	return summary, nil
}

// ListEvents lists recent activity, newest first.
func (a *AppServiceAdapter) ListEvents(ctx context.Context, limit int) ([]domain.ChangeEvent, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, fmt.Errorf("limit must be >= 0: %w", ErrInvalidRequest)
	}
	events, err := a.service.ListChangeEvents(ctx, limit)
	if err != nil {
		return nil, mapAppError("list events", err)
	}
	return events, nil
}

// MoveCard applies one drop.
func (a *AppServiceAdapter) MoveCard(ctx context.Context, in MoveCardRequest) (domain.MoveResult, error) {
	if err := a.ready(); err != nil {
		return domain.MoveResult{}, err
	}
	if strings.TrimSpace(in.CardID) == "" || strings.TrimSpace(in.SourceStageID) == "" || strings.TrimSpace(in.DestStageID) == "" {
		return domain.MoveResult{}, fmt.Errorf("card_id, source_stage_id and dest_stage_id are required: %w", ErrInvalidRequest)
	}
	if in.SourceIndex == nil || in.DestIndex == nil {
		return domain.MoveResult{}, fmt.Errorf("source_index and dest_index are required: %w", ErrInvalidRequest)
	}
	res, err := a.service.MoveCard(ctx, domain.MoveRequest{
		CardID:        in.CardID,
		SourceStageID: in.SourceStageID,
		SourceIndex:   *in.SourceIndex,
		DestStageID:   in.DestStageID,
		DestIndex:     *in.DestIndex,
	})
	if err != nil {
		return domain.MoveResult{}, mapAppError("move card", err)
	}
	return res, nil
}

// AddCard creates one card.
func (a *AppServiceAdapter) AddCard(ctx context.Context, in AddCardRequest) (CardView, error) {
	if err := a.ready(); err != nil {
		return CardView{}, err
	}
	if strings.TrimSpace(in.StageID) == "" {
		return CardView{}, fmt.Errorf("stage_id is required: %w", ErrInvalidRequest)
	}
	card, loc, err := a.service.AddCard(ctx, app.AddCardInput{
		StageID:  in.StageID,
		Position: in.Position,
		Card: domain.CardInput{
			ID:           in.ID,
			Title:        in.Title,
			Company:      in.Company,
			Contact:      in.Contact,
			Tags:         in.Tags,
			MessageCount: in.MessageCount,
			Status:       in.Status,
			ValueCents:   in.ValueCents,
			Priority:     domain.Priority(in.Priority),
			Temperature:  domain.Temperature(in.Temperature),
			Notes:        in.Notes,
		},
	})
	if err != nil {
		return CardView{}, mapAppError("add card", err)
	}
	return CardView{Card: card, Location: loc}, nil
}

// UpdateCard patches one card.
func (a *AppServiceAdapter) UpdateCard(ctx context.Context, in UpdateCardRequest) (domain.Card, error) {
	if err := a.ready(); err != nil {
		return domain.Card{}, err
	}
	if strings.TrimSpace(in.CardID) == "" {
		return domain.Card{}, fmt.Errorf("card_id is required: %w", ErrInvalidRequest)
	}
	patch := domain.CardPatch{
		Title:        in.Title,
		Company:      in.Company,
		Contact:      in.Contact,
		Tags:         in.Tags,
		MessageCount: in.MessageCount,
		Status:       in.Status,
		ValueCents:   in.ValueCents,
		Notes:        in.Notes,
	}
	if in.Priority != nil {
		priority := domain.Priority(*in.Priority)
		patch.Priority = &priority
	}
	if in.Temperature != nil {
		temperature := domain.Temperature(*in.Temperature)
		patch.Temperature = &temperature
	}
	card, err := a.service.UpdateCard(ctx, in.CardID, patch)
	if err != nil {
		return domain.Card{}, mapAppError("update card", err)
	}
	return card, nil
}

// DeleteCard removes one card.
func (a *AppServiceAdapter) DeleteCard(ctx context.Context, cardID string) (domain.Card, error) {
	if err := a.ready(); err != nil {
		return domain.Card{}, err
	}
	if strings.TrimSpace(cardID) == "" {
		return domain.Card{}, fmt.Errorf("card_id is required: %w", ErrInvalidRequest)
	}
	card, err := a.service.RemoveCard(ctx, cardID)
	if err != nil {
		return domain.Card{}, mapAppError("delete card", err)
	}
	return card, nil
}

// AddStage creates one empty stage.
func (a *AppServiceAdapter) AddStage(ctx context.Context, in AddStageRequest) (domain.Stage, error) {
	if err := a.ready(); err != nil {
		return domain.Stage{}, err
	}
	stage, err := a.service.AddStage(ctx, app.AddStageInput{
		ID:       in.ID,
		Title:    in.Title,
		Color:    domain.Color(in.Color),
		Position: in.Position,
	})
	if err != nil {
		return domain.Stage{}, mapAppError("add stage", err)
	}
	return stage, nil
}

// EditStage patches stage metadata.
func (a *AppServiceAdapter) EditStage(ctx context.Context, in EditStageRequest) (domain.Stage, error) {
	if err := a.ready(); err != nil {
		return domain.Stage{}, err
	}
	if strings.TrimSpace(in.StageID) == "" {
		return domain.Stage{}, fmt.Errorf("stage_id is required: %w", ErrInvalidRequest)
	}
	patch := domain.StageMetadataPatch{Title: in.Title}
	if in.Color != nil {
		color := domain.Color(*in.Color)
		patch.Color = &color
	}
	stage, err := a.service.EditStage(ctx, in.StageID, patch)
	if err != nil {
		return domain.Stage{}, mapAppError("edit stage", err)
	}
	return stage, nil
}

// ReorderStages replaces the stage order and returns the resulting board.
func (a *AppServiceAdapter) ReorderStages(ctx context.Context, in ReorderStagesRequest) (BoardView, error) {
	if err := a.ready(); err != nil {
		return BoardView{}, err
	}
	if err := a.service.ReorderStages(ctx, in.Order); err != nil {
		return BoardView{}, mapAppError("reorder stages", err)
	}
	return a.GetBoard(ctx, BoardFilter{})
}

// DeleteStage removes one stage under the requested policy.
func (a *AppServiceAdapter) DeleteStage(ctx context.Context, in DeleteStageRequest) (domain.DeleteStageResult, error) {
	if err := a.ready(); err != nil {
		return domain.DeleteStageResult{}, err
	}
	if strings.TrimSpace(in.StageID) == "" {
		return domain.DeleteStageResult{}, fmt.Errorf("stage_id is required: %w", ErrInvalidRequest)
	}
	res, err := a.service.DeleteStage(ctx, in.StageID, domain.DeleteStagePolicy{
		Mode:          domain.DeleteStageMode(in.Mode),
		TargetStageID: in.TargetStageID,
	})
	if err != nil {
		return domain.DeleteStageResult{}, mapAppError("delete stage", err)
	}
	return res, nil
}

// ready reports whether the adapter has a backing service.
func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrUnavailable)
	}
	return nil
}

// boardView converts one board into its transport shape, listing stages as given.
func boardView(board *domain.Board, stages []domain.Stage) BoardView {
	out := BoardView{
		Pipeline:       board.Name(),
		Order:          board.Order(),
		PriorityCounts: map[string]int{},
		Stages:         make([]StageView, 0, len(stages)),
	}
	for priority, n := range board.PriorityCounts() {
		out.PriorityCounts[string(priority)] = n
	}
	for _, stage := range stages {
		out.Stages = append(out.Stages, StageView{
			Stage:      stage,
			Count:      stage.Count(),
			ValueCents: stage.TotalValue(),
		})
	}
	out.Revision = boardRevision(board)
	return out
}

// boardRevision fingerprints stage order and card placement so clients can detect staleness.
func boardRevision(board *domain.Board) string {
	h := sha256.New()
	fmt.Fprintf(h, "p:%s\n", board.Name())
	for _, stage := range board.Stages() {
		fmt.Fprintf(h, "s:%s:%s:%s\n", stage.ID, stage.Title, stage.Color)
		for _, card := range stage.Cards {
			fmt.Fprintf(h, "c:%s:%d\n", card.ID, card.UpdatedAt.UnixNano())
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// mapAppError maps app and domain failures onto transport errors.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, domain.ErrStaleMove):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrStaleMove, err))
	case errors.Is(err, domain.ErrStageNotEmpty):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrStageNotEmpty, err))
	case errors.Is(err, app.ErrNotFound),
		errors.Is(err, domain.ErrStageNotFound),
		errors.Is(err, domain.ErrCardNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, domain.ErrDuplicateStage),
		errors.Is(err, domain.ErrDuplicateCard):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidTitle),
		errors.Is(err, domain.ErrInvalidColor),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidTemperature),
		errors.Is(err, domain.ErrInvalidValue),
		errors.Is(err, domain.ErrInvalidMessageCount),
		errors.Is(err, domain.ErrInvalidPolicy),
		errors.Is(err, domain.ErrInvalidPermutation),
		errors.Is(err, app.ErrInvalidSnapshot):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	case errors.Is(err, app.ErrRevisionConflict):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrConflict, err))
	case errors.Is(err, app.ErrBoardNotLoaded):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrUnavailable, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
