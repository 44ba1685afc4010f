package domain

import (
	"fmt"
	"slices"
	"strings"
)

// MoveRequest describes one drop gesture: the card that was picked up, the slot it was
// picked up from, and the slot it was dropped on.
type MoveRequest struct {
	CardID        string `json:"card_id"`
	SourceStageID string `json:"source_stage_id"`
	SourceIndex   int    `json:"source_index"`
	DestStageID   string `json:"dest_stage_id"`
	DestIndex     int    `json:"dest_index"`
}

// MoveResult reports one applied move.
type MoveResult struct {
	Card    Card         `json:"card"`
	From    CardLocation `json:"from"`
	To      CardLocation `json:"to"`
	Changed bool         `json:"changed"`
}

// MoveCard relocates one card.
//
// DestIndex is read against the destination sequence after the card has been removed from
// its source, and is clamped to that sequence's bounds. A move onto the card's own slot
// leaves the board untouched and reports Changed == false.
func (b *Board) MoveCard(req MoveRequest) (MoveResult, error) {
	req.CardID = strings.TrimSpace(req.CardID)
	src, err := b.stage(req.SourceStageID)
	if err != nil {
		return MoveResult{}, err
	}
	dst, err := b.stage(req.DestStageID)
	if err != nil {
		return MoveResult{}, err
	}
	if req.SourceIndex < 0 || req.SourceIndex >= len(src.Cards) {
		return MoveResult{}, fmt.Errorf("%w: %s has no slot %d", ErrStaleMove, src.ID, req.SourceIndex)
	}
	if got := src.Cards[req.SourceIndex].ID; got != req.CardID {
		return MoveResult{}, fmt.Errorf("%w: %s[%d] holds %s, not %s", ErrStaleMove, src.ID, req.SourceIndex, got, req.CardID)
	}

	from := CardLocation{StageID: src.ID, Index: req.SourceIndex}
	destLen := len(dst.Cards)
	if src == dst {
		destLen--
	}
	to := CardLocation{StageID: dst.ID, Index: clampIndex(req.DestIndex, destLen)}
	if from == to {
		return MoveResult{Card: src.Cards[from.Index].clone(), From: from, To: to}, nil
	}

	card := src.Cards[from.Index]
	src.Cards = slices.Delete(src.Cards, from.Index, from.Index+1)
	dst.Cards = slices.Insert(dst.Cards, to.Index, card)
	b.cardStage[card.ID] = dst.ID
	return MoveResult{Card: card.clone(), From: from, To: to, Changed: true}, nil
}
