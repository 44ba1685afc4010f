package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// DeleteStageMode selects what happens to the cards of a deleted stage.
type DeleteStageMode string

// DeleteStageMode values.
const (
	DeleteStageRequireEmpty DeleteStageMode = "require_empty"
	DeleteStageReassign     DeleteStageMode = "reassign"
	DeleteStageDropCards    DeleteStageMode = "drop_cards"
)

// DeleteStagePolicy carries the caller's choice for the cards of a deleted stage.
type DeleteStagePolicy struct {
	Mode          DeleteStageMode `json:"mode"`
	TargetStageID string          `json:"target_stage_id,omitempty"`
}

// DeleteStageResult reports one applied stage deletion.
type DeleteStageResult struct {
	Stage      Stage  `json:"stage"`
	Reassigned []Card `json:"reassigned,omitempty"`
	TargetID   string `json:"target_stage_id,omitempty"`
	Dropped    []Card `json:"dropped,omitempty"`
}

// NormalizeDeleteStageMode canonicalizes one delete mode, defaulting to require_empty.
func NormalizeDeleteStageMode(mode DeleteStageMode) DeleteStageMode {
	mode = DeleteStageMode(strings.TrimSpace(strings.ToLower(string(mode))))
	if mode == "" {
		return DeleteStageRequireEmpty
	}
	return mode
}

// AddStage inserts a new empty stage at one display position. The position is clamped.
func (b *Board) AddStage(in StageInput, atIndex int, now time.Time) (Stage, error) {
	stage, err := NewStage(in, now)
	if err != nil {
		return Stage{}, err
	}
	if _, ok := b.stages[stage.ID]; ok {
		return Stage{}, fmt.Errorf("%w: %s", ErrDuplicateStage, stage.ID)
	}
	b.order = slices.Insert(b.order, clampIndex(atIndex, len(b.order)), stage.ID)
	b.stages[stage.ID] = &stage
	return stage.clone(), nil
}

// EditStageMetadata updates stage title and color in place. Cards are never touched.
func (b *Board) EditStageMetadata(stageID string, patch StageMetadataPatch, now time.Time) (Stage, error) {
	stage, err := b.stage(stageID)
	if err != nil {
		return Stage{}, err
	}
	if err := stage.applyMetadata(patch, now); err != nil {
		return Stage{}, err
	}
	return stage.clone(), nil
}

// ReorderStages replaces the display order. The new order must be a permutation of the
// current stage ids.
func (b *Board) ReorderStages(order []string) error {
	if len(order) != len(b.order) {
		return fmt.Errorf("%w: got %d ids, board has %d stages", ErrInvalidPermutation, len(order), len(b.order))
	}
	next := make([]string, 0, len(order))
	seen := make(map[string]struct{}, len(order))
	for _, raw := range order {
		id := strings.TrimSpace(raw)
		if _, ok := b.stages[id]; !ok {
			return fmt.Errorf("%w: unknown stage %q", ErrInvalidPermutation, id)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: stage %q repeated", ErrInvalidPermutation, id)
		}
		seen[id] = struct{}{}
		next = append(next, id)
	}
	if slices.Equal(next, b.order) {
		return nil
	}
	b.order = next
	return nil
}

// MoveStage shifts one stage to a new display position. The position is clamped.
func (b *Board) MoveStage(stageID string, toIndex int) error {
	from, err := b.StageIndex(stageID)
	if err != nil {
		return err
	}
	next := slices.Delete(slices.Clone(b.order), from, from+1)
	next = slices.Insert(next, clampIndex(toIndex, len(next)), b.order[from])
	return b.ReorderStages(next)
}

// DeleteStage removes one stage, handling its cards per the supplied policy.
func (b *Board) DeleteStage(stageID string, policy DeleteStagePolicy, now time.Time) (DeleteStageResult, error) {
	stage, err := b.stage(stageID)
	if err != nil {
		return DeleteStageResult{}, err
	}
	if len(b.order) == 1 && len(stage.Cards) > 0 {
		return DeleteStageResult{}, fmt.Errorf("%w: %s is the last stage", ErrStageNotEmpty, stage.ID)
	}
	result := DeleteStageResult{}
	switch NormalizeDeleteStageMode(policy.Mode) {
	case DeleteStageRequireEmpty:
		if len(stage.Cards) > 0 {
			return DeleteStageResult{}, fmt.Errorf("%w: %s holds %d cards", ErrStageNotEmpty, stage.ID, len(stage.Cards))
		}
	case DeleteStageReassign:
		targetID := strings.TrimSpace(policy.TargetStageID)
		if targetID == stage.ID || targetID == "" {
			return DeleteStageResult{}, fmt.Errorf("%w: reassign target must be another stage", ErrInvalidPolicy)
		}
		target, err := b.stage(targetID)
		if err != nil {
			return DeleteStageResult{}, err
		}
		for _, card := range stage.Cards {
			b.cardStage[card.ID] = target.ID
			result.Reassigned = append(result.Reassigned, card.clone())
		}
		target.Cards = append(target.Cards, stage.Cards...)
		target.UpdatedAt = now.UTC()
		result.TargetID = target.ID
	case DeleteStageDropCards:
		for _, card := range stage.Cards {
			delete(b.cardStage, card.ID)
			result.Dropped = append(result.Dropped, card.clone())
		}
	default:
		return DeleteStageResult{}, fmt.Errorf("%w: %q", ErrInvalidPolicy, policy.Mode)
	}

	stage.Cards = []Card{}
	result.Stage = stage.clone()
	b.order = slices.DeleteFunc(b.order, func(id string) bool { return id == stage.ID })
	delete(b.stages, stage.ID)
	return result, nil
}
