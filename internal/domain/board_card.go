package domain

import (
	"fmt"
	"slices"
	"time"
)

// AddCard validates one card and inserts it into a stage. The position is clamped.
func (b *Board) AddCard(stageID string, in CardInput, atIndex int, now time.Time) (Card, CardLocation, error) {
	stage, err := b.stage(stageID)
	if err != nil {
		return Card{}, CardLocation{}, err
	}
	card, err := NewCard(in, now)
	if err != nil {
		return Card{}, CardLocation{}, err
	}
	if owner, ok := b.cardStage[card.ID]; ok {
		return Card{}, CardLocation{}, fmt.Errorf("%w: %s already in %s", ErrDuplicateCard, card.ID, owner)
	}
	loc := CardLocation{StageID: stage.ID, Index: clampIndex(atIndex, len(stage.Cards))}
	stage.Cards = slices.Insert(stage.Cards, loc.Index, card)
	b.cardStage[card.ID] = stage.ID
	return card.clone(), loc, nil
}

// UpdateCard edits card fields in place. The card keeps its stage and position.
func (b *Board) UpdateCard(cardID string, patch CardPatch, now time.Time) (Card, error) {
	loc, err := b.Locate(cardID)
	if err != nil {
		return Card{}, err
	}
	card := &b.stages[loc.StageID].Cards[loc.Index]
	if err := card.Apply(patch, now); err != nil {
		return Card{}, err
	}
	return card.clone(), nil
}

// SetCardTags replaces the tag set of one card.
func (b *Board) SetCardTags(cardID string, tags []string, now time.Time) (Card, error) {
	return b.UpdateCard(cardID, CardPatch{Tags: &tags}, now)
}

// SetCardStatus replaces the free-form status of one card. Empty clears it.
func (b *Board) SetCardStatus(cardID, status string, now time.Time) (Card, error) {
	return b.UpdateCard(cardID, CardPatch{Status: &status}, now)
}

// IncrementMessageCount adds delta synced messages to one card.
func (b *Board) IncrementMessageCount(cardID string, delta int, now time.Time) (Card, error) {
	card, _, err := b.Card(cardID)
	if err != nil {
		return Card{}, err
	}
	next := card.MessageCount + delta
	return b.UpdateCard(cardID, CardPatch{MessageCount: &next}, now)
}

// RemoveCard deletes one card from its stage.
func (b *Board) RemoveCard(cardID string) (Card, CardLocation, error) {
	loc, err := b.Locate(cardID)
	if err != nil {
		return Card{}, CardLocation{}, err
	}
	stage := b.stages[loc.StageID]
	card := stage.Cards[loc.Index]
	stage.Cards = slices.Delete(stage.Cards, loc.Index, loc.Index+1)
	delete(b.cardStage, card.ID)
	return card, loc, nil
}
