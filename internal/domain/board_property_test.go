package domain

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"
)

// allCardIDs lists every card id on the board, sorted.
func allCardIDs(b *Board) []string {
	var out []string
	for _, stage := range b.Stages() {
		for _, card := range stage.Cards {
			out = append(out, card.ID)
		}
	}
	slices.Sort(out)
	return out
}

func TestRandomMovesPreserveCardSet(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	stages := make([]Stage, 0, 4)
	n := 0
	for s := range 4 {
		ids := make([]string, 0, 5)
		for range rng.IntN(6) {
			ids = append(ids, fmt.Sprintf("c%02d", n))
			n++
		}
		stages = append(stages, mustStage(t, fmt.Sprintf("s%d", s), fmt.Sprintf("Stage %d", s), ids...))
	}
	b := mustBoard(t, stages...)
	want := allCardIDs(b)
	order := b.Order()

	for step := range 500 {
		if b.CardCount() == 0 {
			break
		}
		ids := allCardIDs(b)
		cardID := ids[rng.IntN(len(ids))]
		loc, err := b.Locate(cardID)
		if err != nil {
			t.Fatalf("step %d: Locate() error = %v", step, err)
		}
		req := MoveRequest{
			CardID:        cardID,
			SourceStageID: loc.StageID,
			SourceIndex:   loc.Index,
			DestStageID:   order[rng.IntN(len(order))],
			DestIndex:     rng.IntN(10) - 2,
		}
		if rng.IntN(5) == 0 {
			req.SourceIndex++
		}
		before := b.Summary().TotalCards
		if _, err := b.MoveCard(req); err != nil {
			if before != b.Summary().TotalCards {
				t.Fatalf("step %d: failed move changed card count", step)
			}
		}
		if err := b.Validate(); err != nil {
			t.Fatalf("step %d: Validate() error = %v", step, err)
		}
		if got := allCardIDs(b); !slices.Equal(got, want) {
			t.Fatalf("step %d: card set = %v, want %v", step, got, want)
		}
		total := 0
		for _, stage := range b.Stages() {
			total += stage.Count()
		}
		if total != len(want) {
			t.Fatalf("step %d: stage counts sum to %d, want %d", step, total, len(want))
		}
	}
}
