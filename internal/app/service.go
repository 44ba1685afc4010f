package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hylla/dealboard/internal/domain"
)

// DefaultPipelineName names a freshly seeded board when no name is configured.
const DefaultPipelineName = "Sales Pipeline"

// maxMutateAttempts bounds how often one mutation is retried after losing a revision race.
const maxMutateAttempts = 3

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	PipelineName        string
	StageTemplates      []StageTemplate
	SeedDemoCards       bool
	DefaultDeletePolicy domain.DeleteStageMode
	Logger              Logger
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service owns the cached board of one process. Other processes may write the same store,
// so the cache is reloaded whenever the stored revision moves. A mutation is persisted
// against the revision it was computed from before it replaces the cache.
type Service struct {
	mu             sync.Mutex
	repo           Repository
	idGen          IDGenerator
	clock          Clock
	logger         Logger
	board          *domain.Board
	revision       int64
	pipelineName   string
	defaultDelete  domain.DeleteStageMode
	stageTemplates []StageTemplate
	seedDemo       bool
}

// NewService constructs a service. Call Load before using it.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	templates := sanitizeStageTemplates(cfg.StageTemplates)
	if len(templates) == 0 {
		templates = defaultStageTemplates()
	}
	name := strings.TrimSpace(cfg.PipelineName)
	if name == "" {
		name = DefaultPipelineName
	}
	return &Service{
		repo:           repo,
		idGen:          idGen,
		clock:          clock,
		logger:         cfg.Logger,
		pipelineName:   name,
		defaultDelete:  domain.NormalizeDeleteStageMode(cfg.DefaultDeletePolicy),
		stageTemplates: templates,
		seedDemo:       cfg.SeedDemoCards,
	}
}

// Open constructs a service and loads its board.
func Open(ctx context.Context, repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) (*Service, error) {
	svc := NewService(repo, idGen, clock, cfg)
	if err := svc.Load(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

// Load reads the stored board. A store that has never been written is seeded once; a board
// whose stages were all deleted later stays empty.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.repo.LoadBoard(ctx)
	if err != nil {
		return fmt.Errorf("load board: %w", err)
	}
	if stored.Revision > 0 || len(stored.Stages) > 0 {
		return s.install(stored)
	}

	now := s.clock()
	stages, err := seedStages(s.stageTemplates, now)
	if err != nil {
		return err
	}
	if s.seedDemo {
		if err := addDemoCards(stages, now); err != nil {
			return err
		}
	}
	board, err := domain.NewBoard(stages...)
	if err != nil {
		return fmt.Errorf("seed board: %w", err)
	}
	if _, err := board.Rename(s.pipelineName); err != nil {
		return fmt.Errorf("seed board: %w", err)
	}
	name := board.Name()
	change := domain.BoardChange{
		Revision: stored.Revision,
		Name:     &name,
		Order:    board.Order(),
		Stages:   board.Stages(),
		Event: domain.ChangeEvent{
			Operation:  domain.ChangeOperationBoardImport,
			Metadata:   map[string]string{"source": "seed", "stages": strconv.Itoa(len(stages)), "cards": strconv.Itoa(board.CardCount())},
			OccurredAt: now.UTC(),
		},
	}
	attributeEvent(ctx, &change.Event)
	if err := s.repo.SaveChange(ctx, change); err != nil {
		if errors.Is(err, ErrRevisionConflict) {
			// Another process seeded first.
			return s.reloadLocked(ctx)
		}
		return fmt.Errorf("persist seeded board: %w", err)
	}
	s.board = board
	s.revision = stored.Revision + 1
	s.info("board seeded", "pipeline", name, "stages", len(stages), "cards", board.CardCount())
	return nil
}

// install replaces the live board with one stored read.
func (s *Service) install(stored StoredBoard) error {
	board, err := domain.NewBoard(stored.Stages...)
	if err != nil {
		return fmt.Errorf("load board: %w", err)
	}
	name := stored.Name
	if strings.TrimSpace(name) == "" {
		name = s.pipelineName
	}
	if _, err := board.Rename(name); err != nil {
		return fmt.Errorf("load board: %w", err)
	}
	s.board = board
	s.revision = stored.Revision
	s.debug("board loaded", "revision", stored.Revision, "stages", len(stored.Stages), "cards", board.CardCount())
	return nil
}

// reloadLocked reads the stored board unconditionally. The caller holds s.mu.
func (s *Service) reloadLocked(ctx context.Context) error {
	stored, err := s.repo.LoadBoard(ctx)
	if err != nil {
		return fmt.Errorf("load board: %w", err)
	}
	return s.install(stored)
}

// refreshLocked reloads the board when another writer moved the stored revision. The caller
// holds s.mu.
func (s *Service) refreshLocked(ctx context.Context) error {
	if s.board == nil {
		return ErrBoardNotLoaded
	}
	rev, err := s.repo.Revision(ctx)
	if err != nil {
		return fmt.Errorf("read board revision: %w", err)
	}
	if rev == s.revision {
		return nil
	}
	s.debug("stored board moved, reloading", "cached", s.revision, "stored", rev)
	return s.reloadLocked(ctx)
}

// Board returns an independent copy of the current board.
func (s *Service) Board(ctx context.Context) (*domain.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refreshLocked(ctx); err != nil {
		return nil, err
	}
	return s.board.Clone(), nil
}

// FilterStages returns the current stages holding only cards that match filter.
func (s *Service) FilterStages(ctx context.Context, filter domain.CardFilter) ([]domain.Stage, error) {
	filter, err := filter.Normalize()
	if err != nil {
		return nil, err
	}
	board, err := s.Board(ctx)
	if err != nil {
		return nil, err
	}
	return board.FilterStages(filter), nil
}

// Stages returns the live stages in display order.
func (s *Service) Stages(ctx context.Context) ([]domain.Stage, error) {
	board, err := s.Board(ctx)
	if err != nil {
		return nil, err
	}
	return board.Stages(), nil
}

// Summary returns pipeline figures for the current board.
func (s *Service) Summary(ctx context.Context) (domain.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refreshLocked(ctx); err != nil {
		return domain.Summary{}, err
	}
	return s.board.Summary(), nil
}

// RenamePipeline sets the pipeline name. Renaming to the current name is not persisted.
func (s *Service) RenamePipeline(ctx context.Context, name string) (string, error) {
	var renamed string
	err := s.mutate(ctx, func(next *domain.Board, _ time.Time) (domain.BoardChange, error) {
		before := next.Name()
		changed, err := next.Rename(name)
		if err != nil {
			return domain.BoardChange{}, err
		}
		renamed = next.Name()
		if !changed {
			return domain.BoardChange{}, errNoChange
		}
		return domain.BoardChange{
			Name: &renamed,
			Event: domain.ChangeEvent{
				Operation: domain.ChangeOperationBoardRename,
				Metadata:  map[string]string{"from": before, "to": renamed},
			},
		}, nil
	})
	if err != nil {
		return "", err
	}
	return renamed, nil
}

// ListChangeEvents lists recent activity, newest first.
func (s *Service) ListChangeEvents(ctx context.Context, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListChangeEvents(ctx, limit)
}

// MoveCard relocates one card. A same-slot move is reported with Changed == false and is
// not persisted.
func (s *Service) MoveCard(ctx context.Context, req domain.MoveRequest) (domain.MoveResult, error) {
	var result domain.MoveResult
	err := s.mutate(ctx, func(next *domain.Board, now time.Time) (domain.BoardChange, error) {
		res, err := next.MoveCard(req)
		if err != nil {
			return domain.BoardChange{}, err
		}
		result = res
		if !res.Changed {
			return domain.BoardChange{}, errNoChange
		}
		return domain.BoardChange{
			Stages: stagesOf(next, res.From.StageID, res.To.StageID),
			Event: domain.ChangeEvent{
				Operation: domain.ChangeOperationCardMove,
				StageID:   res.To.StageID,
				CardID:    res.Card.ID,
				Metadata: map[string]string{
					"from_stage": res.From.StageID,
					"from_index": strconv.Itoa(res.From.Index),
					"to_stage":   res.To.StageID,
					"to_index":   strconv.Itoa(res.To.Index),
				},
			},
		}, nil
	})
	if err != nil {
		return domain.MoveResult{}, err
	}
	if result.Changed {
		s.debug("card moved", "card", result.Card.ID, "from", result.From.StageID, "to", result.To.StageID, "index", result.To.Index)
	}
	return result, nil
}

// AddCardInput holds input values for add card operations.
type AddCardInput struct {
	StageID string
	// Position is the insert index. Nil appends.
	Position *int
	Card     domain.CardInput
}

// AddCard creates one card. A blank card id is generated.
func (s *Service) AddCard(ctx context.Context, in AddCardInput) (domain.Card, domain.CardLocation, error) {
	if strings.TrimSpace(in.Card.ID) == "" {
		in.Card.ID = s.idGen()
	}
	var (
		card domain.Card
		loc  domain.CardLocation
	)
	err := s.mutate(ctx, func(next *domain.Board, now time.Time) (domain.BoardChange, error) {
		stage, err := next.Stage(in.StageID)
		if err != nil {
			return domain.BoardChange{}, err
		}
		position := stage.Count()
		if in.Position != nil {
			position = *in.Position
		}
		card, loc, err = next.AddCard(stage.ID, in.Card, position, now)
		if err != nil {
			return domain.BoardChange{}, err
		}
		return domain.BoardChange{
			Stages: stagesOf(next, loc.StageID),
			Event: domain.ChangeEvent{
				Operation: domain.ChangeOperationCardCreate,
				StageID:   loc.StageID,
				CardID:    card.ID,
				Metadata:  map[string]string{"title": card.Title, "index": strconv.Itoa(loc.Index)},
			},
		}, nil
	})
	if err != nil {
		return domain.Card{}, domain.CardLocation{}, err
	}
	return card, loc, nil
}

// UpdateCard edits card fields in place.
func (s *Service) UpdateCard(ctx context.Context, cardID string, patch domain.CardPatch) (domain.Card, error) {
	var card domain.Card
	err := s.mutate(ctx, func(next *domain.Board, now time.Time) (domain.BoardChange, error) {
		var err error
		card, err = next.UpdateCard(cardID, patch, now)
		if err != nil {
			return domain.BoardChange{}, err
		}
		loc, err := next.Locate(card.ID)
		if err != nil {
			return domain.BoardChange{}, err
		}
		return domain.BoardChange{
			Stages: stagesOf(next, loc.StageID),
			Event: domain.ChangeEvent{
				Operation: domain.ChangeOperationCardUpdate,
				StageID:   loc.StageID,
				CardID:    card.ID,
				Metadata:  map[string]string{"fields": strings.Join(patchFields(patch), ",")},
			},
		}, nil
	})
	if err != nil {
		return domain.Card{}, err
	}
	return card, nil
}

// IncrementMessageCount records delta newly synced messages on one card.
func (s *Service) IncrementMessageCount(ctx context.Context, cardID string, delta int) (domain.Card, error) {
	var card domain.Card
	err := s.mutate(ctx, func(next *domain.Board, now time.Time) (domain.BoardChange, error) {
		var err error
		card, err = next.IncrementMessageCount(cardID, delta, now)
		if err != nil {
			return domain.BoardChange{}, err
		}
		loc, err := next.Locate(card.ID)
		if err != nil {
			return domain.BoardChange{}, err
		}
		return domain.BoardChange{
			Stages: stagesOf(next, loc.StageID),
			Event: domain.ChangeEvent{
				Operation: domain.ChangeOperationCardUpdate,
				StageID:   loc.StageID,
				CardID:    card.ID,
				Metadata:  map[string]string{"fields": "message_count", "delta": strconv.Itoa(delta)},
			},
		}, nil
	})
	if err != nil {
		return domain.Card{}, err
	}
	return card, nil
}

// RemoveCard deletes one card.
func (s *Service) RemoveCard(ctx context.Context, cardID string) (domain.Card, error) {
	var card domain.Card
	err := s.mutate(ctx, func(next *domain.Board, now time.Time) (domain.BoardChange, error) {
		removed, loc, err := next.RemoveCard(cardID)
		if err != nil {
			return domain.BoardChange{}, err
		}
		card = removed
		return domain.BoardChange{
			Stages:         stagesOf(next, loc.StageID),
			DeletedCardIDs: []string{removed.ID},
			Event: domain.ChangeEvent{
				Operation: domain.ChangeOperationCardDelete,
				StageID:   loc.StageID,
				CardID:    removed.ID,
				Metadata:  map[string]string{"title": removed.Title},
			},
		}, nil
	})
	if err != nil {
		return domain.Card{}, err
	}
	return card, nil
}

// AddStageInput holds input values for add stage operations.
type AddStageInput struct {
	ID    string
	Title string
	Color domain.Color
	// Position is the insert index. Nil appends.
	Position *int
}

// AddStage creates one empty stage. A blank id is derived from the title.
func (s *Service) AddStage(ctx context.Context, in AddStageInput) (domain.Stage, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = normalizeStageID(in.Title)
	}
	if id == "" {
		id = s.idGen()
	}
	var stage domain.Stage
	err := s.mutate(ctx, func(next *domain.Board, now time.Time) (domain.BoardChange, error) {
		position := len(next.Order())
		if in.Position != nil {
			position = *in.Position
		}
		var err error
		stage, err = next.AddStage(domain.StageInput{ID: id, Title: in.Title, Color: in.Color}, position, now)
		if err != nil {
			return domain.BoardChange{}, err
		}
		idx, _ := next.StageIndex(stage.ID)
		return domain.BoardChange{
			Order:  next.Order(),
			Stages: []domain.Stage{stage},
			Event: domain.ChangeEvent{
				Operation: domain.ChangeOperationStageCreate,
				StageID:   stage.ID,
				Metadata:  map[string]string{"title": stage.Title, "color": string(stage.Color), "index": strconv.Itoa(idx)},
			},
		}, nil
	})
	if err != nil {
		return domain.Stage{}, err
	}
	return stage, nil
}

// EditStage updates stage title and color.
func (s *Service) EditStage(ctx context.Context, stageID string, patch domain.StageMetadataPatch) (domain.Stage, error) {
	var stage domain.Stage
	err := s.mutate(ctx, func(next *domain.Board, now time.Time) (domain.BoardChange, error) {
		var err error
		stage, err = next.EditStageMetadata(stageID, patch, now)
		if err != nil {
			return domain.BoardChange{}, err
		}
		return domain.BoardChange{
			Stages: []domain.Stage{stage},
			Event: domain.ChangeEvent{
				Operation: domain.ChangeOperationStageUpdate,
				StageID:   stage.ID,
				Metadata:  map[string]string{"title": stage.Title, "color": string(stage.Color)},
			},
		}, nil
	})
	if err != nil {
		return domain.Stage{}, err
	}
	return stage, nil
}

// ReorderStages replaces the stage display order. Reordering to the current order is not
// persisted.
func (s *Service) ReorderStages(ctx context.Context, order []string) error {
	return s.mutate(ctx, func(next *domain.Board, _ time.Time) (domain.BoardChange, error) {
		before := next.Order()
		if err := next.ReorderStages(order); err != nil {
			return domain.BoardChange{}, err
		}
		return reorderChange(before, next.Order())
	})
}

// MoveStage shifts one stage to a new display position.
func (s *Service) MoveStage(ctx context.Context, stageID string, toIndex int) error {
	return s.mutate(ctx, func(next *domain.Board, _ time.Time) (domain.BoardChange, error) {
		before := next.Order()
		if err := next.MoveStage(stageID, toIndex); err != nil {
			return domain.BoardChange{}, err
		}
		return reorderChange(before, next.Order())
	})
}

// DeleteStage removes one stage. An empty policy mode falls back to the configured default.
func (s *Service) DeleteStage(ctx context.Context, stageID string, policy domain.DeleteStagePolicy) (domain.DeleteStageResult, error) {
	if strings.TrimSpace(string(policy.Mode)) == "" {
		policy.Mode = s.defaultDelete
	}
	var result domain.DeleteStageResult
	err := s.mutate(ctx, func(next *domain.Board, now time.Time) (domain.BoardChange, error) {
		var err error
		result, err = next.DeleteStage(stageID, policy, now)
		if err != nil {
			return domain.BoardChange{}, err
		}
		change := domain.BoardChange{
			Order:           next.Order(),
			DeletedStageIDs: []string{result.Stage.ID},
			Event: domain.ChangeEvent{
				Operation: domain.ChangeOperationStageDelete,
				StageID:   result.Stage.ID,
				Metadata:  map[string]string{"mode": string(domain.NormalizeDeleteStageMode(policy.Mode))},
			},
		}
		if result.TargetID != "" {
			change.Stages = stagesOf(next, result.TargetID)
			change.Event.Metadata["target_stage"] = result.TargetID
			change.Event.Metadata["reassigned"] = strconv.Itoa(len(result.Reassigned))
		}
		for _, card := range result.Dropped {
			change.DeletedCardIDs = append(change.DeletedCardIDs, card.ID)
		}
		if len(result.Dropped) > 0 {
			change.Event.Metadata["dropped"] = strconv.Itoa(len(result.Dropped))
		}
		return change, nil
	})
	if err != nil {
		return domain.DeleteStageResult{}, err
	}
	s.info("stage deleted", "stage", result.Stage.ID, "mode", policy.Mode, "reassigned", len(result.Reassigned), "dropped", len(result.Dropped))
	return result, nil
}

// errNoChange marks a mutation that applied cleanly but left nothing to persist.
var errNoChange = errors.New("no change")

// mutation applies one operation to a board clone and describes what to persist.
type mutation func(next *domain.Board, now time.Time) (domain.BoardChange, error)

// mutate runs one mutation under the lock: refresh from the store, apply to a clone,
// persist against the refreshed revision, then swap. A lost revision race reloads and
// applies the mutation again, so its preconditions are always checked against stored state.
func (s *Service) mutate(ctx context.Context, apply mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 1; ; attempt++ {
		if err := s.refreshLocked(ctx); err != nil {
			return err
		}
		now := s.clock()
		next := s.board.Clone()
		change, err := apply(next, now)
		if errors.Is(err, errNoChange) {
			return nil
		}
		if err != nil {
			return err
		}
		change.Revision = s.revision
		change.Event.OccurredAt = now.UTC()
		attributeEvent(ctx, &change.Event)
		err = s.repo.SaveChange(ctx, change)
		if errors.Is(err, ErrRevisionConflict) && attempt < maxMutateAttempts {
			s.debug("board revision moved during save, retrying", "operation", change.Event.Operation, "attempt", attempt)
			continue
		}
		if err != nil {
			s.warn("persist board change failed", "operation", change.Event.Operation, "err", err)
			return fmt.Errorf("persist %s: %w", change.Event.Operation, err)
		}
		s.board = next
		s.revision = change.Revision + 1
		return nil
	}
}

// reorderChange builds the persisted footprint of one stage order change.
func reorderChange(before, after []string) (domain.BoardChange, error) {
	if slices.Equal(before, after) {
		return domain.BoardChange{}, errNoChange
	}
	return domain.BoardChange{
		Order: after,
		Event: domain.ChangeEvent{
			Operation: domain.ChangeOperationStageReorder,
			Metadata:  map[string]string{"order": strings.Join(after, ",")},
		},
	}, nil
}

// stagesOf copies the named stages, skipping repeats and unknown ids.
func stagesOf(b *domain.Board, ids ...string) []domain.Stage {
	out := make([]domain.Stage, 0, len(ids))
	seen := map[string]struct{}{}
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		stage, err := b.Stage(id)
		if err != nil {
			continue
		}
		out = append(out, stage)
	}
	return out
}

// patchFields lists the field names set on one card patch.
func patchFields(patch domain.CardPatch) []string {
	fields := make([]string, 0, 10)
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(patch.Title != nil, "title")
	add(patch.Company != nil, "company")
	add(patch.Contact != nil, "contact")
	add(patch.Tags != nil, "tags")
	add(patch.MessageCount != nil, "message_count")
	add(patch.Status != nil, "status")
	add(patch.ValueCents != nil, "value_cents")
	add(patch.Priority != nil, "priority")
	add(patch.Temperature != nil, "temperature")
	add(patch.Notes != nil, "notes")
	return fields
}

func (s *Service) debug(msg string, keyvals ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, keyvals...)
	}
}

func (s *Service) info(msg string, keyvals ...any) {
	if s.logger != nil {
		s.logger.Info(msg, keyvals...)
	}
}

func (s *Service) warn(msg string, keyvals ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, keyvals...)
	}
}
