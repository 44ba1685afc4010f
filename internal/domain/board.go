package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Board holds the ordered stages of one pipeline and every card on it.
//
// A Board has a single writer. Every card lives in exactly one stage, stage and card ids are
// unique, and the display order is always a permutation of the stage set. Mutating methods
// either apply completely or return an error and leave the board as it was.
type Board struct {
	name      string
	order     []string
	stages    map[string]*Stage
	cardStage map[string]string
}

// CardLocation identifies one card slot on the board.
type CardLocation struct {
	StageID string `json:"stage_id"`
	Index   int    `json:"index"`
}

// NewBoard builds a board from stages given in display order.
func NewBoard(stages ...Stage) (*Board, error) {
	b := &Board{
		order:     make([]string, 0, len(stages)),
		stages:    make(map[string]*Stage, len(stages)),
		cardStage: map[string]string{},
	}
	for _, stage := range stages {
		stage = stage.clone()
		stage.ID = strings.TrimSpace(stage.ID)
		if stage.ID == "" {
			return nil, ErrInvalidID
		}
		if _, ok := b.stages[stage.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStage, stage.ID)
		}
		for _, card := range stage.Cards {
			if strings.TrimSpace(card.ID) == "" {
				return nil, fmt.Errorf("stage %s: %w", stage.ID, ErrInvalidID)
			}
			if owner, ok := b.cardStage[card.ID]; ok {
				return nil, fmt.Errorf("%w: %s in stages %s and %s", ErrDuplicateCard, card.ID, owner, stage.ID)
			}
			b.cardStage[card.ID] = stage.ID
		}
		b.order = append(b.order, stage.ID)
		b.stages[stage.ID] = &stage
	}
	return b, nil
}

// Name returns the pipeline name.
func (b *Board) Name() string {
	return b.name
}

// Rename sets the pipeline name. It reports whether the name changed.
func (b *Board) Rename(name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, fmt.Errorf("pipeline name: %w", ErrInvalidTitle)
	}
	if name == b.name {
		return false, nil
	}
	b.name = name
	return true, nil
}

// Order returns a copy of the stage display order.
func (b *Board) Order() []string {
	return slices.Clone(b.order)
}

// Stages returns deep copies of every stage in display order.
func (b *Board) Stages() []Stage {
	out := make([]Stage, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.stages[id].clone())
	}
	return out
}

// Stage returns a deep copy of one stage.
func (b *Board) Stage(stageID string) (Stage, error) {
	stage, err := b.stage(stageID)
	if err != nil {
		return Stage{}, err
	}
	return stage.clone(), nil
}

// StageIndex returns the display position of one stage.
func (b *Board) StageIndex(stageID string) (int, error) {
	idx := slices.Index(b.order, strings.TrimSpace(stageID))
	if idx < 0 {
		return -1, fmt.Errorf("%w: %s", ErrStageNotFound, stageID)
	}
	return idx, nil
}

// Locate returns the current slot of one card.
func (b *Board) Locate(cardID string) (CardLocation, error) {
	cardID = strings.TrimSpace(cardID)
	stageID, ok := b.cardStage[cardID]
	if !ok {
		return CardLocation{}, fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
	}
	return CardLocation{StageID: stageID, Index: b.stages[stageID].IndexOf(cardID)}, nil
}

// Card returns a copy of one card together with its slot.
func (b *Board) Card(cardID string) (Card, CardLocation, error) {
	loc, err := b.Locate(cardID)
	if err != nil {
		return Card{}, CardLocation{}, err
	}
	return b.stages[loc.StageID].Cards[loc.Index].clone(), loc, nil
}

// CardCount returns the number of cards on the board.
func (b *Board) CardCount() int {
	return len(b.cardStage)
}

// Clone returns a board that shares no mutable state with the receiver.
func (b *Board) Clone() *Board {
	out := &Board{
		name:      b.name,
		order:     slices.Clone(b.order),
		stages:    make(map[string]*Stage, len(b.stages)),
		cardStage: make(map[string]string, len(b.cardStage)),
	}
	for id, stage := range b.stages {
		cp := stage.clone()
		out.stages[id] = &cp
	}
	for cardID, stageID := range b.cardStage {
		out.cardStage[cardID] = stageID
	}
	return out
}

// Validate rechecks every board invariant from scratch.
func (b *Board) Validate() error {
	if len(b.order) != len(b.stages) {
		return fmt.Errorf("%w: order has %d ids for %d stages", ErrInvalidPermutation, len(b.order), len(b.stages))
	}
	seenStage := make(map[string]struct{}, len(b.order))
	seenCard := make(map[string]string, len(b.cardStage))
	for _, id := range b.order {
		stage, ok := b.stages[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrStageNotFound, id)
		}
		if _, dup := seenStage[id]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateStage, id)
		}
		seenStage[id] = struct{}{}
		if stage.ID != id {
			return fmt.Errorf("stage key %s holds stage %s: %w", id, stage.ID, ErrInvalidID)
		}
		for _, card := range stage.Cards {
			if owner, dup := seenCard[card.ID]; dup {
				return fmt.Errorf("%w: %s in stages %s and %s", ErrDuplicateCard, card.ID, owner, id)
			}
			seenCard[card.ID] = id
			if b.cardStage[card.ID] != id {
				return fmt.Errorf("card %s indexed under %q, found in %s: %w", card.ID, b.cardStage[card.ID], id, ErrCardNotFound)
			}
		}
	}
	if len(seenCard) != len(b.cardStage) {
		return fmt.Errorf("card index holds %d ids, stages hold %d: %w", len(b.cardStage), len(seenCard), ErrCardNotFound)
	}
	return nil
}

// stage resolves one live stage pointer.
func (b *Board) stage(stageID string) (*Stage, error) {
	stageID = strings.TrimSpace(stageID)
	stage, ok := b.stages[stageID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStageNotFound, stageID)
	}
	return stage, nil
}

// clampIndex bounds an insert position to [0, n].
func clampIndex(idx, n int) int {
	return max(0, min(idx, n))
}
